package google

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
)

// ConfigurationKind names the configuration defect that prevented a sign-in.
type ConfigurationKind string

const (
	MissingClientID      ConfigurationKind = "missing_client_id"
	MissingRedirectURI   ConfigurationKind = "missing_redirect_uri"
	MalformedRedirectURI ConfigurationKind = "malformed_redirect_uri"
)

// ConfigurationError is returned before any surface is opened or request is sent.
type ConfigurationError struct {
	Kind    ConfigurationKind
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("configuration error %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Kind)
}

// OAuthError represents an error reported by the authorization server on the redirect.
type OAuthError struct {
	// Code is the OAuth error code, for example access_denied.
	Code string `json:"error"`
	// Description is a human-readable description of the error.
	Description string `json:"error_description,omitempty"`
}

// Error returns a string representation of the OAuth error.
func (e *OAuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("OAuth error %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("OAuth error: %s", e.Code)
}

// Codes produced locally rather than by the authorization server.
const (
	ReasonPopupBlocked  = "popup_blocked"
	ReasonNoCode        = "no_code"
	ReasonStateMismatch = "state_mismatch"
)

// NewOAuthError creates a new OAuth error with the specified code and description.
func NewOAuthError(code, description string) *OAuthError {
	return &OAuthError{Code: code, Description: description}
}

// ExchangeKind classifies a failed authorization-code exchange.
type ExchangeKind string

const (
	InvalidClient    ExchangeKind = "invalid_client"
	RedirectMismatch ExchangeKind = "redirect_uri_mismatch"
	ExchangeNetwork  ExchangeKind = "network"
	ExchangeOther    ExchangeKind = "other"
)

// TokenExchangeError is returned when the token endpoint rejects or cannot be
// reached for a code exchange. Message never contains the raw transport error.
type TokenExchangeError struct {
	Kind       ExchangeKind
	Message    string
	StatusCode int
	Cause      error
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed (%s): %s", e.Kind, e.Message)
}

func (e *TokenExchangeError) Unwrap() error { return e.Cause }

// Remediation returns the operator action that fixes the failure, if any.
func (e *TokenExchangeError) Remediation() string {
	switch e.Kind {
	case InvalidClient:
		return "Verify GOOGLE_OAUTH_CLIENT_ID is a Web application client id from Google Cloud Console > APIs & Services > Credentials."
	case RedirectMismatch:
		return "Add the configured redirect URI exactly (scheme, host, port and path) to Authorized redirect URIs in Google Cloud Console."
	case ExchangeNetwork:
		return "Check network connectivity or the configured proxy-url and try again."
	default:
		return ""
	}
}

// RefreshKind classifies a failed refresh.
type RefreshKind string

const (
	InvalidGrant   RefreshKind = "invalid_grant"
	RefreshNetwork RefreshKind = "network"
	RefreshOther   RefreshKind = "other"
)

// RefreshError is returned when a refresh token cannot be redeemed.
type RefreshError struct {
	Kind       RefreshKind
	Message    string
	StatusCode int
	Cause      error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh failed (%s): %s", e.Kind, e.Message)
}

func (e *RefreshError) Unwrap() error { return e.Cause }

// AuthenticationError represents session-level failures that carry no provider payload.
type AuthenticationError struct {
	// Type is the type of authentication error.
	Type string `json:"type"`
	// Message is a human-readable message describing the error.
	Message string `json:"message"`
	// Code is the HTTP status code associated with the error.
	Code int `json:"code"`
	// Cause is the underlying error that caused this authentication error.
	Cause error `json:"-"`
}

// Error returns a string representation of the authentication error.
func (e *AuthenticationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AuthenticationError) Unwrap() error { return e.Cause }

// Is matches any AuthenticationError of the same Type, so errors built with
// NewAuthenticationError still satisfy errors.Is against the templates below.
func (e *AuthenticationError) Is(target error) bool {
	t, ok := target.(*AuthenticationError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// Common authentication error types.
var (
	// ErrPopupBlocked means the consent surface could not be opened.
	ErrPopupBlocked = &AuthenticationError{
		Type:    ReasonPopupBlocked,
		Message: "Consent window could not be opened",
		Code:    http.StatusServiceUnavailable,
	}

	// ErrCancelled means the user closed the consent surface or the caller cancelled.
	ErrCancelled = &AuthenticationError{
		Type:    "cancelled",
		Message: "Authorization was cancelled",
		Code:    499,
	}

	// ErrTimedOut means no result arrived before the coordinator timeout.
	ErrTimedOut = &AuthenticationError{
		Type:    "timed_out",
		Message: "Timeout waiting for authorization",
		Code:    http.StatusRequestTimeout,
	}

	// ErrAlreadyInProgress rejects a sign-in while another one is running.
	ErrAlreadyInProgress = &AuthenticationError{
		Type:    "already_in_progress",
		Message: "A sign-in is already in progress",
		Code:    http.StatusConflict,
	}

	// ErrNotAuthenticated means no valid credential is available.
	ErrNotAuthenticated = &AuthenticationError{
		Type:    "authentication_required",
		Message: "No valid access token",
		Code:    http.StatusUnauthorized,
	}

	// ErrStoreFailed means the credential could not be persisted or removed.
	ErrStoreFailed = &AuthenticationError{
		Type:    "store_failed",
		Message: "Token store operation failed",
		Code:    http.StatusInternalServerError,
	}

	// ErrPortInUse means the loopback callback port is already bound.
	ErrPortInUse = &AuthenticationError{
		Type:    "port_in_use",
		Message: "OAuth callback port is already in use",
		Code:    13, // Special exit code for port-in-use
	}
)

// NewAuthenticationError creates a new authentication error with a cause based on a base error.
func NewAuthenticationError(baseErr *AuthenticationError, cause error) *AuthenticationError {
	return &AuthenticationError{
		Type:    baseErr.Type,
		Message: baseErr.Message,
		Code:    baseErr.Code,
		Cause:   cause,
	}
}

// IsAuthenticationError checks if an error is an authentication error.
func IsAuthenticationError(err error) bool {
	var authenticationError *AuthenticationError
	return errors.As(err, &authenticationError)
}

// IsOAuthError checks if an error is an OAuth error.
func IsOAuthError(err error) bool {
	var oAuthError *OAuthError
	return errors.As(err, &oAuthError)
}

// GetUserFriendlyMessage returns a user-friendly error message based on the error type.
func GetUserFriendlyMessage(err error) string {
	var (
		cfgErr      *ConfigurationError
		exchangeErr *TokenExchangeError
		refreshErr  *RefreshError
		oauthErr    *OAuthError
		authErr     *AuthenticationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cfgErr):
		switch cfgErr.Kind {
		case MissingClientID:
			return "Google OAuth client id is not configured. Set GOOGLE_OAUTH_CLIENT_ID or oauth.client-id."
		case MissingRedirectURI:
			return "Google OAuth redirect URI is not configured. Set GOOGLE_OAUTH_REDIRECT_URI or oauth.redirect-uri."
		default:
			return "Google OAuth redirect URI must be an absolute URL such as http://localhost:8085/oauth/callback."
		}
	case errors.As(err, &exchangeErr):
		if hint := exchangeErr.Remediation(); hint != "" {
			return fmt.Sprintf("Could not complete sign-in: %s %s", exchangeErr.Message, hint)
		}
		return fmt.Sprintf("Could not complete sign-in: %s", exchangeErr.Message)
	case errors.As(err, &refreshErr):
		return "Your Google Ads session has expired. Please sign in again."
	case errors.As(err, &authErr):
		switch authErr.Type {
		case ReasonPopupBlocked:
			return PopupBlockedInstructions(runtime.GOOS)
		case "port_in_use":
			return "The OAuth callback port is already in use. Close the application using it or change the redirect URI port."
		case "cancelled":
			return "Sign-in was cancelled."
		case "timed_out":
			return "Sign-in timed out. Please try again."
		case "already_in_progress":
			return "A sign-in is already in progress. Finish it in the open window first."
		case "authentication_required":
			return "Please sign in to Google Ads to continue."
		case "store_failed":
			return "Your Google Ads credentials could not be saved. Check the token store configuration."
		default:
			return "Authentication failed. Please try again."
		}
	case errors.As(err, &oauthErr):
		switch oauthErr.Code {
		case "access_denied":
			return "Access to Google Ads was denied on the consent screen."
		case ReasonNoCode:
			return "The consent screen returned without an authorization code. Please try again."
		case ReasonStateMismatch:
			return "The authorization response did not match this sign-in attempt. Please try again."
		case "invalid_request":
			return "Invalid authentication request. Please check the OAuth configuration."
		case "server_error", "temporarily_unavailable":
			return "Google authentication server error. Please try again later."
		default:
			if oauthErr.Description != "" {
				return fmt.Sprintf("Authentication failed: %s", oauthErr.Description)
			}
			return fmt.Sprintf("Authentication failed: %s", oauthErr.Code)
		}
	default:
		return "An unexpected error occurred. Please try again."
	}
}

// PopupBlockedInstructions explains how to get the consent window open on the given platform.
func PopupBlockedInstructions(goos string) string {
	base := "The consent window could not be opened. "
	switch goos {
	case "darwin":
		return base + "Check that a default browser is set in System Settings > Desktop & Dock, or rerun with -no-browser and open the printed URL."
	case "windows":
		return base + "Check the default browser under Settings > Apps > Default apps, or rerun with -no-browser and open the printed URL."
	case "linux":
		return base + "Install xdg-utils or set $BROWSER, or rerun with -no-browser (or -manual over SSH) and open the printed URL."
	default:
		return base + "Rerun with -no-browser and open the printed URL in any browser."
	}
}
