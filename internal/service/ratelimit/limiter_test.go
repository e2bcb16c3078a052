package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestAllowPerKeyBurst(t *testing.T) {
	l := New(1, 2)
	fixed := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))

	fixed = fixed.Add(time.Second)
	assert.True(t, l.Allow("a"))
}

func TestSweepDropsIdleKeys(t *testing.T) {
	l := New(1, 1)
	fixed := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }
	l.Allow("old")

	fixed = fixed.Add(time.Hour)
	l.Allow("new")
	assert.Len(t, l.m, 1)
}

func TestMiddlewareReturns429(t *testing.T) {
	e := echo.New()
	l := New(0.001, 1)
	h := l.Middleware()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	call := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/anomalies", nil)
		req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
		rec := httptest.NewRecorder()
		_ = h(e.NewContext(req, rec))
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, call())
	assert.Equal(t, http.StatusTooManyRequests, call())
}
