package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"market-relay/src/helpers"
	"market-relay/src/logger"
	"market-relay/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(retries int) *models.MConfig {
	return &models.MConfig{
		Network: models.MNetworkConfig{
			RequestTimeout:     5,
			MaxRetries:         retries,
			ConcurrentRequests: 2,
			UserAgent:          "relay-test",
		},
	}
}

func TestGetSendsParamsAndUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "relay-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "NSE", r.URL.Query().Get("exchange"))
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	nm := NewAsyncNetworkManager(testConfig(0), logger.NewNop())
	body, err := nm.Get(context.Background(), srv.URL, map[string]string{"exchange": "NSE"})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestPostJSONHeadersAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "k", r.Header.Get("X-PrivateKey"))

		var got map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "C1", got["clientcode"])
		w.Write([]byte(`{"status":true}`))
	}))
	defer srv.Close()

	nm := NewAsyncNetworkManager(testConfig(0), logger.NewNop())
	body, err := nm.PostJSON(context.Background(), srv.URL, map[string]string{"X-PrivateKey": "k"}, map[string]string{"clientcode": "C1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":true}`, string(body))
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	nm := NewAsyncNetworkManager(testConfig(3), logger.NewNop())
	_, err := nm.Get(context.Background(), srv.URL, nil)

	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestServerErrorRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	nm := NewAsyncNetworkManager(testConfig(1), logger.NewNop())
	nm.RetryBaseDelay = time.Millisecond
	body, err := nm.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", string(body))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRetriesExhaustedIsNetworkError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	nm := NewAsyncNetworkManager(testConfig(2), logger.NewNop())
	nm.RetryBaseDelay = time.Millisecond
	_, err := nm.Get(context.Background(), srv.URL, nil)

	require.Error(t, err)
	var netErr *helpers.NetworkError
	assert.ErrorAs(t, err, &netErr)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}
