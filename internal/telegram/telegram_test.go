package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/macrotracker/internal/retry"
)

func TestSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "42", payload["chat_id"])
		assert.Equal(t, "hello", payload["text"])
		assert.Equal(t, "HTML", payload["parse_mode"])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient("TOKEN", "42").WithBaseURL(srv.URL)
	assert.NoError(t, c.Send(context.Background(), "hello"))
}

func TestSend_Retries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient("TOKEN", "42").
		WithBaseURL(srv.URL).
		WithRetry(retry.Policy{MaxAttempts: 3, Delay: time.Millisecond})
	require.NoError(t, c.Send(context.Background(), "hi"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSend_GivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient("TOKEN", "42").
		WithBaseURL(srv.URL).
		WithRetry(retry.Policy{MaxAttempts: 2, Delay: time.Millisecond})
	err := c.Send(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestSend_NotConfigured(t *testing.T) {
	assert.ErrorIs(t, NewClient("", "").Send(context.Background(), "x"), ErrNotConfigured)
}

func TestNewClient_DefaultRetryPolicy(t *testing.T) {
	c := NewClient("TOKEN", "42")
	assert.Equal(t, retry.Default, c.policy)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
}
