// Package handlers implements the /v0/auth endpoints of the local API.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/carlwiddowson/googleadsdashboard/internal/logging"
	sdkauth "github.com/carlwiddowson/googleadsdashboard/sdk/auth"
	"github.com/gin-gonic/gin"
)

// Session is the part of *sdkauth.Manager the handlers need.
type Session interface {
	State() sdkauth.State
	IsAuthenticated(ctx context.Context) bool
	GetAccessToken(ctx context.Context) (string, bool)
	SignIn(ctx context.Context) error
	SignOut(ctx context.Context) error
}

// ErrorDetail mirrors the error body returned by every endpoint.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// AuthHandler serves sign-in, sign-out, status and token requests.
type AuthHandler struct {
	session Session
	// base outlives individual requests; background sign-ins derive from it.
	base context.Context

	mu      sync.Mutex
	lastErr error
	lastAt  time.Time
}

// NewAuthHandler creates handlers bound to session. Background sign-ins are
// cancelled when base is done.
func NewAuthHandler(base context.Context, session Session) *AuthHandler {
	if base == nil {
		base = context.Background()
	}
	return &AuthHandler{session: session, base: base}
}

// Status reports the session state and the outcome of the last sign-in.
func (h *AuthHandler) Status(c *gin.Context) {
	state := h.session.State()
	body := gin.H{
		"state":         state.String(),
		"authenticated": h.session.IsAuthenticated(c.Request.Context()),
	}
	h.mu.Lock()
	if h.lastErr != nil {
		body["last_error"] = errorDetail(h.lastErr)
		body["last_error_at"] = h.lastAt.UTC().Format(time.RFC3339)
	}
	h.mu.Unlock()
	c.JSON(http.StatusOK, body)
}

// Token returns a valid access token, refreshing it when expired.
func (h *AuthHandler) Token(c *gin.Context) {
	token, ok := h.session.GetAccessToken(c.Request.Context())
	if !ok {
		writeError(c, sdkauth.ErrNotAuthenticated)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "Bearer"})
}

// Login starts an interactive sign-in. With ?wait=true the request blocks until
// the sign-in finishes; otherwise it returns 202 and the outcome is reported by Status.
func (h *AuthHandler) Login(c *gin.Context) {
	if h.session.State() == sdkauth.StateAuthenticating {
		writeError(c, sdkauth.ErrAlreadyInProgress)
		return
	}
	if wait, _ := strconv.ParseBool(c.Query("wait")); wait {
		err := h.session.SignIn(c.Request.Context())
		h.record(err)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"state": h.session.State().String()})
		return
	}

	// The request context ends with this response; keep only its id.
	ctx := logging.WithRequestID(h.base, logging.GetGinRequestID(c))
	started := make(chan struct{})
	go func() {
		close(started)
		err := h.session.SignIn(ctx)
		h.record(err)
		if err != nil && !errors.Is(err, sdkauth.ErrAlreadyInProgress) {
			logging.Entry(ctx).WithError(err).Debug("background sign-in finished with error")
		}
	}()
	<-started
	c.JSON(http.StatusAccepted, gin.H{"state": sdkauth.StateAuthenticating.String()})
}

// Logout signs out and clears the stored credential.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.session.SignOut(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	h.record(nil)
	c.JSON(http.StatusOK, gin.H{"state": h.session.State().String()})
}

func (h *AuthHandler) record(err error) {
	if errors.Is(err, sdkauth.ErrAlreadyInProgress) {
		return
	}
	h.mu.Lock()
	h.lastErr = err
	h.lastAt = time.Now()
	h.mu.Unlock()
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": errorDetail(err)})
}

func errorDetail(err error) ErrorDetail {
	d := ErrorDetail{Message: sdkauth.GetUserFriendlyMessage(err), Type: "server_error"}
	var (
		authErr  *sdkauth.AuthenticationError
		oauthErr *sdkauth.OAuthError
		exErr    *sdkauth.TokenExchangeError
		cfgErr   *sdkauth.ConfigurationError
	)
	switch {
	case errors.As(err, &cfgErr):
		d.Type, d.Code = "configuration_error", string(cfgErr.Kind)
	case errors.As(err, &oauthErr):
		d.Type, d.Code = "oauth_error", oauthErr.Code
	case errors.As(err, &exErr):
		d.Type, d.Code = "token_exchange_error", string(exErr.Kind)
	case errors.As(err, &authErr):
		d.Type, d.Code = "authentication_error", authErr.Type
	}
	return d
}

func statusFor(err error) int {
	var (
		authErr  *sdkauth.AuthenticationError
		oauthErr *sdkauth.OAuthError
		exErr    *sdkauth.TokenExchangeError
		cfgErr   *sdkauth.ConfigurationError
	)
	switch {
	case errors.Is(err, sdkauth.ErrAlreadyInProgress):
		return http.StatusConflict
	case errors.Is(err, sdkauth.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError
	case errors.As(err, &oauthErr):
		return http.StatusUnauthorized
	case errors.As(err, &exErr):
		return http.StatusBadGateway
	case errors.As(err, &authErr) && authErr.Code >= 400 && authErr.Code < 600:
		return authErr.Code
	default:
		return http.StatusInternalServerError
	}
}
