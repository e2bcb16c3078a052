package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeOffsetIsNormalisedToUTC(t *testing.T) {
	got, ok := ParseTime("2024-10-10T17:10:10+07:00")
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Location() != time.UTC || got.Hour() != 10 {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeUnixMillis(t *testing.T) {
	want := time.Date(2024, 10, 10, 10, 10, 10, 500e6, time.UTC)
	got, ok := ParseTime(strconv.FormatInt(want.UnixMilli(), 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if !got.Equal(want) {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeDateOnly(t *testing.T) {
	got, ok := ParseTime("2024-03-01")
	if !ok {
		t.Fatalf("expected ok")
	}
	if !got.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeStrictRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "yesterday", "2024-13-01", "-5"} {
		if _, err := ParseTimeStrict(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}

func TestParseOptionalTime(t *testing.T) {
	got, err := ParseOptionalTime("")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %v, %v", got, err)
	}
	if _, err := ParseOptionalTime("nope"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSplitCSV(t *testing.T) {
	got := SplitCSV(" BTC-USD, ,ETH-USD,BTC-USD ")
	if len(got) != 2 || got[0] != "BTC-USD" || got[1] != "ETH-USD" {
		t.Fatalf("unexpected %v", got)
	}
	if SplitCSV("") != nil {
		t.Fatalf("expected nil for empty input")
	}
}
