package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/carlwiddowson/googleadsdashboard/internal/auth"
	"github.com/carlwiddowson/googleadsdashboard/internal/config"
	"github.com/carlwiddowson/googleadsdashboard/internal/util"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const defaultTokenURL = "https://oauth2.googleapis.com/token"

// Client talks to Google's token and revocation endpoints.
// It holds no credential state; callers persist what it returns.
type Client struct {
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a client whose HTTP transport honours cfg.ProxyURL.
func NewClient(cfg *config.Config) *Client {
	proxyURL := ""
	if cfg != nil {
		proxyURL = cfg.ProxyURL
	}
	return NewClientWithHTTP(util.SetProxy(proxyURL, &http.Client{Timeout: 30 * time.Second}))
}

// NewClientWithHTTP creates a client using httpClient as is.
func NewClientWithHTTP(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{httpClient: httpClient, now: time.Now}
}

// WithClock overrides the time source used to compute expiries.
func (c *Client) WithClock(now func() time.Time) *Client {
	if now != nil {
		c.now = now
	}
	return c
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int64  `json:"expires_in"`
}

// ExchangeCode redeems an authorization code. verifier is the PKCE verifier and may be empty.
func (c *Client) ExchangeCode(ctx context.Context, code string, cfg config.OAuthConfig, verifier string) (*auth.TokenSet, error) {
	if strings.TrimSpace(code) == "" {
		return nil, &TokenExchangeError{Kind: ExchangeOther, Message: "authorization code is empty"}
	}
	data := url.Values{
		"client_id":    {strings.TrimSpace(cfg.ClientID)},
		"code":         {code},
		"grant_type":   {"authorization_code"},
		"redirect_uri": {strings.TrimSpace(cfg.RedirectURI)},
	}
	if verifier != "" {
		data.Set("code_verifier", verifier)
	}

	issuedAt := c.now()
	status, body, err := c.postForm(ctx, tokenEndpoint(cfg), data)
	if err != nil {
		log.Debugf("token exchange transport failure: %v", err)
		return nil, &TokenExchangeError{Kind: ExchangeNetwork, Message: "token endpoint unreachable", Cause: err}
	}
	if status != http.StatusOK || gjson.GetBytes(body, "error").Exists() {
		code, description := oauthErrorFields(body)
		return nil, &TokenExchangeError{
			Kind:       classifyExchange(code),
			Message:    describe(code, description, status),
			StatusCode: status,
		}
	}

	var tokenResp tokenResponse
	if err = json.Unmarshal(body, &tokenResp); err != nil {
		return nil, &TokenExchangeError{Kind: ExchangeOther, Message: "malformed token response", StatusCode: status, Cause: err}
	}
	ts, err := auth.NewTokenSet(tokenResp.AccessToken, tokenResp.RefreshToken, tokenResp.ExpiresIn, issuedAt)
	if err != nil {
		return nil, &TokenExchangeError{Kind: ExchangeOther, Message: err.Error(), StatusCode: status}
	}
	if ts.RefreshToken == "" {
		log.Warn("token exchange returned no refresh token; the session will end when the access token expires")
	}
	return ts, nil
}

// Refresh redeems refreshToken for a new access token. The returned set carries
// whatever refresh token the server sent, which may be empty; carrying the previous
// one forward is the caller's job.
func (c *Client) Refresh(ctx context.Context, refreshToken string, cfg config.OAuthConfig) (*auth.TokenSet, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, &RefreshError{Kind: InvalidGrant, Message: "refresh token is empty"}
	}
	data := url.Values{
		"client_id":     {strings.TrimSpace(cfg.ClientID)},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	}

	issuedAt := c.now()
	status, body, err := c.postForm(ctx, tokenEndpoint(cfg), data)
	if err != nil {
		log.Debugf("token refresh transport failure: %v", err)
		return nil, &RefreshError{Kind: RefreshNetwork, Message: "token endpoint unreachable", Cause: err}
	}
	if status != http.StatusOK || gjson.GetBytes(body, "error").Exists() {
		code, description := oauthErrorFields(body)
		kind := RefreshOther
		if code == "invalid_grant" {
			kind = InvalidGrant
		}
		return nil, &RefreshError{Kind: kind, Message: describe(code, description, status), StatusCode: status}
	}

	var tokenResp tokenResponse
	if err = json.Unmarshal(body, &tokenResp); err != nil {
		return nil, &RefreshError{Kind: RefreshOther, Message: "malformed refresh response", StatusCode: status, Cause: err}
	}
	ts, err := auth.NewTokenSet(tokenResp.AccessToken, tokenResp.RefreshToken, tokenResp.ExpiresIn, issuedAt)
	if err != nil {
		return nil, &RefreshError{Kind: RefreshOther, Message: err.Error(), StatusCode: status}
	}
	return ts, nil
}

// Revoke invalidates token at the revocation endpoint. Revoking a refresh token
// also invalidates the access tokens minted from it.
func (c *Client) Revoke(ctx context.Context, token string, cfg config.OAuthConfig) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	endpoint := cfg.RevokeURL
	if endpoint == "" {
		endpoint = config.DefaultRevokeURL
	}
	status, body, err := c.postForm(ctx, endpoint, url.Values{"token": {token}})
	if err != nil {
		return fmt.Errorf("revoke request failed: %w", err)
	}
	if status != http.StatusOK {
		code, description := oauthErrorFields(body)
		return fmt.Errorf("revoke failed: %s", describe(code, description, status))
	}
	return nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, data url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("failed to close response body: %v", errClose)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func tokenEndpoint(cfg config.OAuthConfig) string {
	if cfg.TokenURL != "" {
		return cfg.TokenURL
	}
	return defaultTokenURL
}

func oauthErrorFields(body []byte) (string, string) {
	if !gjson.ValidBytes(body) {
		return "", ""
	}
	parsed := gjson.ParseBytes(body)
	code := parsed.Get("error")
	// Some Google endpoints nest the error object.
	if code.IsObject() {
		return code.Get("status").String(), code.Get("message").String()
	}
	return code.String(), parsed.Get("error_description").String()
}

func classifyExchange(code string) ExchangeKind {
	switch code {
	case "invalid_client", "unauthorized_client":
		return InvalidClient
	case "redirect_uri_mismatch":
		return RedirectMismatch
	default:
		return ExchangeOther
	}
}

func describe(code, description string, status int) string {
	switch {
	case code != "" && description != "":
		return fmt.Sprintf("%s: %s", code, description)
	case code != "":
		return code
	default:
		return fmt.Sprintf("unexpected status %d", status)
	}
}
