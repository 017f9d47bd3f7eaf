package salesforce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// Salesforce access tokens have no expiry in the token response; session
	// timeout is org-configured with a 2h floor. Refresh 5 minutes early.
	tokenLifetime = 2*time.Hour - 5*time.Minute

	productionLoginURL = "https://login.salesforce.com"
	sandboxLoginURL    = "https://test.salesforce.com"
)

// Credentials holds the OAuth username-password flow credentials for a
// connected app.
type Credentials struct {
	ClientID      string
	ClientSecret  string
	Username      string
	Password      string
	SecurityToken string
	LoginURL      string
}

// LoginURLFor returns the OAuth login host for the given environment.
func LoginURLFor(sandbox bool) string {
	if sandbox {
		return sandboxLoginURL
	}
	return productionLoginURL
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	InstanceURL string `json:"instance_url"`
	TokenType   string `json:"token_type"`
	IssuedAt    string `json:"issued_at"`
}

type tokenError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type cachedToken struct {
	accessToken string
	instanceURL string
	obtainedAt  time.Time
}

func (t *cachedToken) expired() bool {
	return time.Since(t.obtainedAt) >= tokenLifetime
}

// TokenManager acquires and caches Salesforce access tokens using the OAuth
// username-password grant. Safe for concurrent use.
type TokenManager struct {
	mu         sync.RWMutex
	creds      *Credentials
	token      *cachedToken
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewTokenManager creates a token manager with no credentials configured.
func NewTokenManager(logger *logrus.Logger) *TokenManager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &TokenManager{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// SetCredentials replaces the stored credentials and drops any cached token.
func (m *TokenManager) SetCredentials(creds Credentials) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if creds.LoginURL == "" {
		creds.LoginURL = productionLoginURL
	}
	m.creds = &creds
	m.token = nil
}

// ClearCredentials removes credentials and the cached token.
func (m *TokenManager) ClearCredentials() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = nil
	m.token = nil
}

// HasCredentials reports whether credentials are configured.
func (m *TokenManager) HasCredentials() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds != nil
}

// GetToken returns a valid access token and the instance URL, requesting a
// new token from Salesforce when the cache is empty or stale.
func (m *TokenManager) GetToken(ctx context.Context) (string, string, error) {
	m.mu.RLock()
	tok := m.token
	m.mu.RUnlock()

	if tok != nil && !tok.expired() {
		return tok.accessToken, tok.instanceURL, nil
	}
	return m.RefreshToken(ctx)
}

// RefreshToken discards any cached token and authenticates against the token
// endpoint. Returns the new access token and instance URL.
func (m *TokenManager) RefreshToken(ctx context.Context) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.creds == nil {
		return "", "", &Error{Kind: ErrKindAuth, Message: "salesforce credentials not configured"}
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", m.creds.ClientID)
	form.Set("client_secret", m.creds.ClientSecret)
	form.Set("username", m.creds.Username)
	form.Set("password", m.creds.Password+m.creds.SecurityToken)

	endpoint := strings.TrimRight(m.creds.LoginURL, "/") + "/services/oauth2/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", "", &Error{Kind: ErrKindNetwork, Message: "token request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", &Error{Kind: ErrKindNetwork, Message: "failed to read token response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		var te tokenError
		if json.Unmarshal(body, &te) == nil && te.Error != "" {
			return "", "", &Error{
				Kind:    ErrKindAuth,
				Message: fmt.Sprintf("authentication failed: %s - %s", te.Error, te.ErrorDescription),
			}
		}
		return "", "", &Error{
			Kind:    ErrKindAuth,
			Message: fmt.Sprintf("authentication failed with status %d", resp.StatusCode),
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if tr.AccessToken == "" || tr.InstanceURL == "" {
		return "", "", &Error{Kind: ErrKindAuth, Message: "token response missing access_token or instance_url"}
	}

	m.token = &cachedToken{
		accessToken: tr.AccessToken,
		instanceURL: tr.InstanceURL,
		obtainedAt:  time.Now(),
	}

	m.logger.WithFields(logrus.Fields{
		"instance_url": tr.InstanceURL,
		"username":     m.creds.Username,
	}).Info("Salesforce token obtained")

	return tr.AccessToken, tr.InstanceURL, nil
}

// TestConnection forces a fresh authentication and returns a short
// confirmation naming the connected instance.
func (m *TokenManager) TestConnection(ctx context.Context) (string, error) {
	_, instanceURL, err := m.RefreshToken(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Connected to %s", instanceURL), nil
}
