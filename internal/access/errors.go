// Package access authenticates callers of the local HTTP API against the
// configured API keys.
package access

import (
	"fmt"
	"net/http"
	"strings"
)

// AuthErrorCode classifies authentication failures.
type AuthErrorCode string

const (
	AuthErrorCodeNoCredentials     AuthErrorCode = "no_credentials"
	AuthErrorCodeInvalidCredential AuthErrorCode = "invalid_credential"
)

// AuthError carries authentication failure details and HTTP status.
type AuthError struct {
	Code       AuthErrorCode
	Message    string
	StatusCode int
}

func (e *AuthError) Error() string {
	if e == nil {
		return ""
	}
	message := strings.TrimSpace(e.Message)
	if message == "" {
		message = "authentication error"
	}
	return fmt.Sprintf("%s (%s)", message, e.Code)
}

// HTTPStatusCode returns a safe fallback for missing status codes.
func (e *AuthError) HTTPStatusCode() int {
	if e == nil || e.StatusCode <= 0 {
		return http.StatusInternalServerError
	}
	return e.StatusCode
}

func NewNoCredentialsError() *AuthError {
	return &AuthError{Code: AuthErrorCodeNoCredentials, Message: "Missing API key", StatusCode: http.StatusUnauthorized}
}

func NewInvalidCredentialError() *AuthError {
	return &AuthError{Code: AuthErrorCodeInvalidCredential, Message: "Invalid API key", StatusCode: http.StatusUnauthorized}
}
