package auth

import (
	"github.com/carlwiddowson/googleadsdashboard/internal/auth/google"
)

// Error taxonomy surfaced by Manager. The concrete types live with the Google
// client; they are re-exported so callers need a single import.
type (
	ConfigurationError  = google.ConfigurationError
	OAuthError          = google.OAuthError
	TokenExchangeError  = google.TokenExchangeError
	RefreshError        = google.RefreshError
	AuthenticationError = google.AuthenticationError
)

var (
	ErrPopupBlocked      = google.ErrPopupBlocked
	ErrCancelled         = google.ErrCancelled
	ErrTimedOut          = google.ErrTimedOut
	ErrAlreadyInProgress = google.ErrAlreadyInProgress
	ErrNotAuthenticated  = google.ErrNotAuthenticated
	ErrStoreFailed       = google.ErrStoreFailed
	ErrPortInUse         = google.ErrPortInUse
)

// GetUserFriendlyMessage returns remediation text for any error returned by Manager.
func GetUserFriendlyMessage(err error) string {
	return google.GetUserFriendlyMessage(err)
}
