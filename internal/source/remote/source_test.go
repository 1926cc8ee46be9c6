package remote

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSource_Open(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/state_transfers_table-ode.csv" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("Date,Param1\n2020-04-01,1\n"))
	}))
	defer server.Close()

	src := NewSource(DefaultConfig(server.URL + "/data"))

	rc, err := src.Open(context.Background(), "state_transfers_table-ode.csv")
	require.NoError(t, err)
	defer rc.Close()

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "Date,Param1\n2020-04-01,1\n", string(body))
}

func TestSource_Retry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	config := DefaultConfig(server.URL)
	config.RetryDelay = time.Millisecond
	src := NewSource(config)

	rc, err := src.Open(context.Background(), "table.csv")
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestSource_GivesUp(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	config := DefaultConfig(server.URL)
	config.RetryCount = 1
	config.RetryDelay = time.Millisecond
	src := NewSource(config)

	_, err := src.Open(context.Background(), "missing.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestSource_Describe(t *testing.T) {
	src := NewSource(DefaultConfig("https://example.org/data"))
	assert.Equal(t, "https://example.org/data", src.Describe())
}
