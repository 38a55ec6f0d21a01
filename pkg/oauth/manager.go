// Package oauth implements a client-credentials token cache with proactive
// refresh. One Manager guards one upstream credential; it is safe for
// concurrent use by every in-flight proxy request.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultRefreshBuffer is subtracted from the token's declared lifetime so a
// token handed out is still valid for the duration of a downstream request.
const DefaultRefreshBuffer = 5 * time.Minute

// tokenRequestTimeout bounds the token-endpoint call.
const tokenRequestTimeout = 30 * time.Second

// ErrNoAccessToken is returned when the token endpoint answers 200 without
// an access_token field.
var ErrNoAccessToken = errors.New("oauth: token response has no access_token")

// Config holds the client-credentials grant parameters.
type Config struct {
	TokenEndpoint string
	ClientID      string
	ClientSecret  string
	Scope         string

	// RefreshBuffer defaults to DefaultRefreshBuffer when zero.
	RefreshBuffer time.Duration

	// HTTPClient defaults to a 30-second-timeout client when nil.
	HTTPClient *http.Client
}

// Manager caches one bearer token and refreshes it before expiry.
type Manager struct {
	config        Config
	refreshBuffer time.Duration
	client        *http.Client

	// now is swapped in tests.
	now func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewManager creates a token cache for the given grant.
func NewManager(config Config) *Manager {
	buffer := config.RefreshBuffer
	if buffer <= 0 {
		buffer = DefaultRefreshBuffer
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: tokenRequestTimeout}
	}
	return &Manager{
		config:        config,
		refreshBuffer: buffer,
		client:        client,
		now:           time.Now,
	}
}

// GetToken returns a valid bearer token, refreshing it when the cached one
// is absent or inside the refresh buffer. Concurrent callers serialize on
// one mutex so only a single refresh request is ever in flight; losers wait
// and read the fresh token. On refresh failure the error is returned and
// any still-valid cached token is left intact.
func (m *Manager) GetToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && m.now().Before(m.expiresAt) {
		return m.token, nil
	}

	token, expiresIn, err := m.requestToken(ctx)
	if err != nil {
		// Keep any previous entry; a caller racing just under the buffer
		// may still use it.
		return "", err
	}

	m.token = token
	m.expiresAt = m.now().Add(time.Duration(expiresIn)*time.Second - m.refreshBuffer)
	logrus.Infof("obtained OAuth token, valid %ds (refresh buffer %s)", expiresIn, m.refreshBuffer)
	return m.token, nil
}

// Invalidate drops the cached token so the next GetToken refreshes.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.expiresAt = time.Time{}
}

func (m *Manager) requestToken(ctx context.Context) (string, int64, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	if m.config.Scope != "" {
		form.Set("scope", m.config.Scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("oauth: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(m.config.ClientID, m.config.ClientSecret)

	resp, err := m.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("oauth: token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, fmt.Errorf("oauth: read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("oauth: token endpoint returned %d: %.200s", resp.StatusCode, body)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", 0, fmt.Errorf("oauth: parse token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", 0, ErrNoAccessToken
	}
	return payload.AccessToken, payload.ExpiresIn, nil
}
