package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accordlabs/accord-gateway/pkg/logger"
	"github.com/accordlabs/accord-gateway/pkg/session"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *session.Store) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	store := session.NewStore()
	return New(server.URL, store, logger.Discard()), store
}

func TestBearerHeaderAttached(t *testing.T) {
	var gotAuth atomic.Value
	client, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.Write([]byte(`{}`))
	})

	store.Set("tok-123")
	require.NoError(t, client.Get(context.Background(), "/x", nil))
	assert.Equal(t, "Bearer tok-123", gotAuth.Load())

	store.Clear()
	require.NoError(t, client.Get(context.Background(), "/x", nil))
	assert.Equal(t, "", gotAuth.Load())
}

func TestUnauthorizedEvictsTokenAndFiresHook(t *testing.T) {
	client, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})

	store.Set("stale")
	hookFired := false
	client.OnUnauthorized(func() { hookFired = true })

	err := client.Get(context.Background(), "/me", nil)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.True(t, hookFired)

	_, ok := store.Token()
	assert.False(t, ok, "token must be evicted on 401")
}

func TestTimeoutMapsToErrRequestTimeout(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	client.SetTimeout(30 * time.Millisecond)

	err := client.Get(context.Background(), "/slow", nil)
	assert.ErrorIs(t, err, ErrRequestTimeout)
}

func TestContextDeadlineMapsToErrRequestTimeout(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := client.Get(ctx, "/slow", nil)
	assert.ErrorIs(t, err, ErrRequestTimeout)
}

func TestNon2xxBecomesAPIError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "chat not found", http.StatusNotFound)
	})

	err := client.Get(context.Background(), "/missing", nil)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "chat not found")
}

func TestNoRetryOnFailure(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_ = client.Get(context.Background(), "/flaky", nil)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPostEncodesAndDecodesJSON(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"echo":"hello"}`))
	})

	var out struct {
		Echo string `json:"echo"`
	}
	require.NoError(t, client.Post(context.Background(), "/echo", map[string]string{"msg": "hello"}, &out))
	assert.Equal(t, "hello", out.Echo)
}
