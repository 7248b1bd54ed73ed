package reddit

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

	logx "redditcord/pkg/logx"
)

// Credentials are the client and refresh secrets exchanged for access tokens.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	UserAgent    string
	TokenURL     string
}

// TokenGate owns the process-wide access token. Only Refresh and Seed mutate it.
type TokenGate struct {
	creds Credentials
	http  *http.Client
	log   logx.Logger

	mu          sync.RWMutex
	token       string
	refreshedAt time.Time
}

// NewTokenGate validates creds. Empty client id/secret/refresh token is a
// configuration error.
func NewTokenGate(creds Credentials, httpClient *http.Client, log logx.Logger) (*TokenGate, error) {
	var missing []string
	if strings.TrimSpace(creds.ClientID) == "" {
		missing = append(missing, "client id")
	}
	if strings.TrimSpace(creds.ClientSecret) == "" {
		missing = append(missing, "client secret")
	}
	if strings.TrimSpace(creds.RefreshToken) == "" {
		missing = append(missing, "refresh token")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("reddit: missing %s", strings.Join(missing, ", "))
	}
	if strings.TrimSpace(creds.TokenURL) == "" {
		return nil, errors.New("reddit: token url is empty")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &TokenGate{creds: creds, http: httpClient, log: log}, nil
}

// Seed installs a token obtained out of band (ACCESS_TOKEN).
func (g *TokenGate) Seed(token string) {
	g.mu.Lock()
	g.token = strings.TrimSpace(token)
	g.mu.Unlock()
}

// Current returns the current access token ("" before the first refresh).
func (g *TokenGate) Current() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.token
}

// Refresh exchanges the refresh token for a new access token and replaces
// the current one. Failures are returned as *AuthError and are not retried.
func (g *TokenGate) Refresh(ctx context.Context) (string, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {g.creds.RefreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.creds.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &AuthError{Err: err}
	}
	req.SetBasicAuth(g.creds.ClientID, g.creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", g.creds.UserAgent)

	start := time.Now()
	resp, err := g.http.Do(req)
	if err != nil {
		return "", &AuthError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", &AuthError{Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{Status: resp.StatusCode, Payload: truncate(string(body), 300)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", &AuthError{Status: resp.StatusCode, Payload: truncate(string(body), 300), Err: err}
	}
	// Reddit reports some grant failures with a 200 and an "error" field.
	if tr.Error != "" || tr.AccessToken == "" {
		return "", &AuthError{Status: resp.StatusCode, Payload: truncate(string(body), 300)}
	}

	g.mu.Lock()
	g.token = tr.AccessToken
	prev := g.refreshedAt
	g.refreshedAt = time.Now()
	g.mu.Unlock()

	fields := []logx.Field{logx.Int("expires_in", tr.ExpiresIn), logx.Duration("took", time.Since(start))}
	if !prev.IsZero() {
		fields = append(fields, logx.Duration("since_prev", time.Since(prev)))
	}
	g.log.Debug("access token refreshed", fields...)
	return tr.AccessToken, nil
}
