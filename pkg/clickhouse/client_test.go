package clickhouse

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSNReadOnlySettings(t *testing.T) {
	dsn := BuildDSN(ClientConfig{
		Host:          "ch.local",
		Port:          9000,
		Database:      "market",
		User:          "reader",
		Password:      "p@ss:word",
		DialTimeout:   5 * time.Second,
		ReadTimeout:   30 * time.Second,
		MaxExecTime:   20 * time.Second,
		MaxResultRows: 500000,
		ReadOnly:      true,
	})

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "clickhouse", u.Scheme)
	assert.Equal(t, "ch.local:9000", u.Host)
	assert.Equal(t, "/market", u.Path)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss:word", pw)

	q := u.Query()
	assert.Equal(t, "5s", q.Get("dial_timeout"))
	assert.Equal(t, "30s", q.Get("read_timeout"))
	assert.Equal(t, "20", q.Get("max_execution_time"))
	assert.Equal(t, "500000", q.Get("max_result_rows"))
	assert.Equal(t, "2", q.Get("readonly"))
}

func TestBuildDSNSchemaInitAndHTTP(t *testing.T) {
	dsn := BuildDSN(ClientConfig{Host: "ch.local", Port: 8123, Database: "market", UseHTTP: true})

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
	assert.Empty(t, u.Query().Get("readonly"))
	assert.Empty(t, u.RawQuery)
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient()
	assert.Error(t, err)
}
