package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bayue48/pia-scrap/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T, refresh func(ctx context.Context) error) *Executor {
	t.Helper()
	if refresh == nil {
		refresh = func(ctx context.Context) error { return nil }
	}
	exec := NewExecutor(false, func() {}, refresh)
	exec.sleep = func(time.Duration) {} // no real backoff in tests
	return exec
}

func TestExecutor_RetriesThroughServerErrors(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"result": {"ok": true}}`))
	}))
	defer server.Close()

	client := resty.New()
	exec := newTestExecutor(t, nil)

	resp, err := exec.Execute(context.Background(), client.R, resty.MethodGet, server.URL,
		ExecOptions{MaxRetries: 3, BackoffBase: 1.25})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	require.EqualValues(t, 3, atomic.LoadInt32(&attempts))
}

func TestExecutor_ExhaustsOnPersistentServerError(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := resty.New()
	exec := newTestExecutor(t, nil)

	resp, err := exec.Execute(context.Background(), client.R, resty.MethodGet, server.URL,
		ExecOptions{MaxRetries: 3, BackoffBase: 1.25})
	require.ErrorIs(t, err, models.ErrNetworkExhausted)
	require.EqualValues(t, 3, atomic.LoadInt32(&attempts))
	// The last response stays inspectable alongside the sentinel error.
	require.NotNil(t, resp)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode())
}

func TestExecutor_ExhaustsOnNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listening anymore

	client := resty.New()
	exec := newTestExecutor(t, nil)

	_, err := exec.Execute(context.Background(), client.R, resty.MethodGet, server.URL,
		ExecOptions{MaxRetries: 3, BackoffBase: 1.25})
	require.ErrorIs(t, err, models.ErrNetworkExhausted)
}

func TestExecutor_RefreshesExactlyOnceOnExpirySignal(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			w.Write([]byte(`{"errmsg": "The token has expired."}`))
			return
		}
		w.Write([]byte(`{"result": {"ok": true}}`))
	}))
	defer server.Close()

	var refreshes int32
	client := resty.New()
	exec := newTestExecutor(t, func(ctx context.Context) error {
		atomic.AddInt32(&refreshes, 1)
		return nil
	})

	resp, err := exec.Execute(context.Background(), client.R, resty.MethodGet, server.URL,
		ExecOptions{MaxRetries: 3, BackoffBase: 1.25, AllowRefresh: true})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	require.EqualValues(t, 1, atomic.LoadInt32(&refreshes))
	require.EqualValues(t, 2, atomic.LoadInt32(&requests), "expired call plus one replay")
}

func TestExecutor_SecondExpiryWithinCallIsNotLooped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errmsg": "The token has expired."}`))
	}))
	defer server.Close()

	var refreshes int32
	client := resty.New()
	exec := newTestExecutor(t, func(ctx context.Context) error {
		atomic.AddInt32(&refreshes, 1)
		return nil
	})

	resp, err := exec.Execute(context.Background(), client.R, resty.MethodGet, server.URL,
		ExecOptions{MaxRetries: 3, BackoffBase: 1.25, AllowRefresh: true})
	require.NoError(t, err)
	require.NotNil(t, resp)
	require.EqualValues(t, 1, atomic.LoadInt32(&refreshes), "refresh must not be retried within one call")
}

func TestExecutor_RefreshNotInvokedWithoutOptIn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errmsg": "The token has expired."}`))
	}))
	defer server.Close()

	var refreshes int32
	client := resty.New()
	exec := newTestExecutor(t, func(ctx context.Context) error {
		atomic.AddInt32(&refreshes, 1)
		return nil
	})

	_, err := exec.Execute(context.Background(), client.R, resty.MethodGet, server.URL,
		ExecOptions{MaxRetries: 3, BackoffBase: 1.25})
	require.NoError(t, err)
	require.Zero(t, atomic.LoadInt32(&refreshes))
}
