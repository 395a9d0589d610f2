// Package google implements the Google OAuth 2.0 pieces of the authorization core:
// building the consent URL, exchanging an authorization code, refreshing and
// revoking tokens, and the error taxonomy surfaced to callers.
package google

import (
	"net/url"
	"strings"

	"github.com/carlwiddowson/googleadsdashboard/internal/config"
	"github.com/carlwiddowson/googleadsdashboard/internal/misc"
	"golang.org/x/oauth2"
)

const (
	// PromptSelectAccountConsent forces account re-selection and the consent screen,
	// which is what makes Google return a refresh token on every sign-in.
	PromptSelectAccountConsent = "select_account consent"
	responseTypeCode           = "code"
	accessTypeOffline          = "offline"
)

// AuthRequest is a prepared authorization request. It is built per sign-in attempt.
type AuthRequest struct {
	ClientID     string
	RedirectURI  string
	Scopes       []string
	ResponseType string
	AccessType   string
	Prompt       string
	// State is the CSRF token echoed back on the redirect.
	State string
	// Verifier is the PKCE code verifier sent with the code exchange.
	Verifier string
	// URL is the full consent URL to open.
	URL string
}

// ValidateConfig checks the fields required before any surface is opened.
func ValidateConfig(cfg config.OAuthConfig) (*url.URL, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, &ConfigurationError{Kind: MissingClientID, Message: "client id is empty"}
	}
	raw := strings.TrimSpace(cfg.RedirectURI)
	if raw == "" {
		return nil, &ConfigurationError{Kind: MissingRedirectURI, Message: "redirect uri is empty"}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &ConfigurationError{Kind: MalformedRedirectURI, Message: "redirect uri must be absolute: " + raw}
	}
	return u, nil
}

// OAuth2Config maps the registration onto an oauth2.Config. The client is public,
// so ClientSecret stays empty.
func OAuth2Config(cfg config.OAuthConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    strings.TrimSpace(cfg.ClientID),
		RedirectURL: strings.TrimSpace(cfg.RedirectURI),
		Scopes:      cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   cfg.AuthURL,
			TokenURL:  cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// BuildAuthRequest validates cfg and produces the consent URL with a fresh state and
// PKCE verifier. It performs no network I/O.
func BuildAuthRequest(cfg config.OAuthConfig) (*AuthRequest, error) {
	if _, err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{config.DefaultScope}
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = "https://accounts.google.com/o/oauth2/v2/auth"
	}

	state, err := misc.GenerateRandomState()
	if err != nil {
		return nil, err
	}
	verifier := oauth2.GenerateVerifier()

	opts := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", PromptSelectAccountConsent),
		oauth2.S256ChallengeOption(verifier),
	}
	if cfg.IncludeGrantedScopes {
		opts = append(opts, oauth2.SetAuthURLParam("include_granted_scopes", "true"))
	}
	oc := OAuth2Config(cfg)

	return &AuthRequest{
		ClientID:     oc.ClientID,
		RedirectURI:  oc.RedirectURL,
		Scopes:       append([]string(nil), cfg.Scopes...),
		ResponseType: responseTypeCode,
		AccessType:   accessTypeOffline,
		Prompt:       PromptSelectAccountConsent,
		State:        state,
		Verifier:     verifier,
		URL:          oc.AuthCodeURL(state, opts...),
	}, nil
}
