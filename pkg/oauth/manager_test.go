package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenServer(t *testing.T, hits *atomic.Int64, expiresIn int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)

		require.Equal(t, http.MethodPost, r.Method)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))

		token := "token-next"
		if n == 1 {
			token = "token-1"
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": token,
			"token_type":   "Bearer",
			"expires_in":   expiresIn,
		})
	}))
}

func TestGetTokenCachesAcrossCalls(t *testing.T) {
	var hits atomic.Int64
	srv := newTokenServer(t, &hits, 3600)
	defer srv.Close()

	m := NewManager(Config{
		TokenEndpoint: srv.URL,
		ClientID:      "client-id",
		ClientSecret:  "client-secret",
	})

	for i := 0; i < 5; i++ {
		token, err := m.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "token-1", token)
	}
	assert.Equal(t, int64(1), hits.Load())
}

func TestGetTokenRefreshInsideBuffer(t *testing.T) {
	var hits atomic.Int64
	srv := newTokenServer(t, &hits, 600)
	defer srv.Close()

	m := NewManager(Config{
		TokenEndpoint: srv.URL,
		ClientID:      "client-id",
		ClientSecret:  "client-secret",
		RefreshBuffer: 5 * time.Minute,
	})

	clock := time.Now()
	m.now = func() time.Time { return clock }

	token, err := m.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)

	// 600s lifetime minus a 5 minute buffer leaves 5 minutes of validity.
	clock = clock.Add(4 * time.Minute)
	_, err = m.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load())

	clock = clock.Add(2 * time.Minute)
	token, err = m.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-next", token)
	assert.Equal(t, int64(2), hits.Load())
}

func TestGetTokenConcurrentSingleRefresh(t *testing.T) {
	var hits atomic.Int64
	srv := newTokenServer(t, &hits, 3600)
	defer srv.Close()

	m := NewManager(Config{
		TokenEndpoint: srv.URL,
		ClientID:      "client-id",
		ClientSecret:  "client-secret",
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := m.GetToken(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "token-1", token)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), hits.Load())
}

func TestGetTokenEndpointFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := NewManager(Config{
		TokenEndpoint: srv.URL,
		ClientID:      "client-id",
		ClientSecret:  "wrong",
	})

	token, err := m.GetToken(context.Background())
	assert.Error(t, err)
	assert.Empty(t, token)
	assert.Contains(t, err.Error(), "401")
}

func TestGetTokenMissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"token_type": "Bearer", "expires_in": 3600})
	}))
	defer srv.Close()

	m := NewManager(Config{TokenEndpoint: srv.URL, ClientID: "a", ClientSecret: "b"})

	_, err := m.GetToken(context.Background())
	assert.ErrorIs(t, err, ErrNoAccessToken)
}

func TestInvalidateForcesRefresh(t *testing.T) {
	var hits atomic.Int64
	srv := newTokenServer(t, &hits, 3600)
	defer srv.Close()

	m := NewManager(Config{TokenEndpoint: srv.URL, ClientID: "client-id", ClientSecret: "client-secret"})

	_, err := m.GetToken(context.Background())
	require.NoError(t, err)

	m.Invalidate()

	token, err := m.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-next", token)
	assert.Equal(t, int64(2), hits.Load())
}

func TestScopeIsSent(t *testing.T) {
	var gotScope string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotScope = r.PostForm.Get("scope")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	}))
	defer srv.Close()

	m := NewManager(Config{TokenEndpoint: srv.URL, ClientID: "a", ClientSecret: "b", Scope: "api.read"})

	_, err := m.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "api.read", gotScope)
}
