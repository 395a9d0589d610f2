package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/carlwiddowson/googleadsdashboard/internal/auth"
	"github.com/carlwiddowson/googleadsdashboard/internal/auth/google"
	"github.com/carlwiddowson/googleadsdashboard/internal/config"
	"github.com/carlwiddowson/googleadsdashboard/internal/logging"
	"github.com/carlwiddowson/googleadsdashboard/internal/popup"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const revokeTimeout = 10 * time.Second

// Manager is the session facade: it drives sign-in through the consent surface,
// persists the resulting credential and hands out valid access tokens.
// It holds only the state tag; the credential itself lives in the TokenStore.
type Manager struct {
	cfg      config.Provider
	tokens   *TokenStore
	client   TokenClient
	launcher Launcher
	now      func() time.Time

	mu            sync.Mutex
	state         State
	generation    uint64
	cancelAttempt context.CancelFunc
	listeners     []StateListener
}

// NewManager constructs a manager. The initial state is Authenticated when store
// already holds a usable credential: one that is unexpired or carries a refresh token.
func NewManager(cfg config.Provider, store auth.Store, client TokenClient, launcher Launcher) *Manager {
	m := &Manager{
		cfg:      cfg,
		tokens:   NewTokenStore(store),
		client:   client,
		launcher: launcher,
		now:      time.Now,
		state:    StateUnauthenticated,
	}
	m.tokens.SetObserver(m)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if ts, ok := m.tokens.Get(ctx); ok && (!IsExpired(ts, m.now()) || ts.RefreshToken != "") {
		m.state = StateAuthenticated
	}
	return m
}

// NewDefaultManager wires the Google token client, a coordinator over surface and
// the registered token backend. Proxy and popup settings are read once from holder;
// the OAuth registration is re-read on every sign-in.
func NewDefaultManager(holder *config.Holder, surface popup.Surface) *Manager {
	cfg := holder.Load()
	return NewManager(holder, GetTokenStore(), google.NewClient(cfg), popup.NewCoordinator(surface, cfg.Popup))
}

// SetClock replaces the time source. Intended for tests.
func (m *Manager) SetClock(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// Tokens exposes the underlying token store.
func (m *Manager) Tokens() *TokenStore {
	return m.tokens
}

// OnStateChange registers a listener for state transitions.
func (m *Manager) OnStateChange(l StateListener) {
	if l == nil {
		return
	}
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

// State returns the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

type transition struct {
	state  State
	reason error
}

// setLocked records a transition; the caller dispatches the returned events after unlocking.
func (m *Manager) setLocked(events []transition, s State, reason error) []transition {
	if m.state == s && s != StateFailed {
		return events
	}
	m.state = s
	return append(events, transition{state: s, reason: reason})
}

func (m *Manager) dispatch(events []transition) {
	if len(events) == 0 {
		return
	}
	m.mu.Lock()
	listeners := append([]StateListener(nil), m.listeners...)
	m.mu.Unlock()
	for _, ev := range events {
		for _, l := range listeners {
			l(ev.state, ev.reason)
		}
	}
}

// SignIn runs one interactive authorization. It returns nil once the credential
// is persisted, or exactly one error from the taxonomy in errors.go.
func (m *Manager) SignIn(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateAuthenticating {
		m.mu.Unlock()
		return google.NewAuthenticationError(ErrAlreadyInProgress, nil)
	}
	oauthCfg := m.oauthConfig()
	req, err := google.BuildAuthRequest(oauthCfg)
	if err != nil {
		m.mu.Unlock()
		log.WithError(err).Error("sign-in rejected: OAuth configuration is incomplete")
		return classifyBuildError(err)
	}
	attemptCtx, cancel := context.WithCancel(ctx)
	m.generation++
	gen := m.generation
	m.cancelAttempt = cancel
	events := m.setLocked(nil, StateAuthenticating, nil)
	m.mu.Unlock()
	m.dispatch(events)
	defer cancel()

	entry := logging.Entry(ctx).WithField(logging.FieldAttempt, logging.NewID())
	for _, issue := range oauthCfg.Validate() {
		if issue.Severity == config.SeverityWarning {
			entry.Warnf("oauth config: %s", issue.Message)
		}
	}
	entry.Debug("launching consent surface")

	redirect, _ := url.Parse(req.RedirectURI)
	result := m.launcher.Launch(attemptCtx, req.URL, redirect)

	var ts *auth.TokenSet
	code, err := codeFromResult(result, req.State)
	if err == nil {
		entry.Debug("authorization code received, exchanging")
		ts, err = m.client.ExchangeCode(attemptCtx, code, oauthCfg, req.Verifier)
		if err != nil {
			err = classifyExchangeError(err)
		}
	}
	return m.finishSignIn(attemptCtx, gen, entry, ts, err)
}

// finishSignIn persists the credential under the lock so a concurrent SignOut
// either runs fully before or fully after it.
func (m *Manager) finishSignIn(ctx context.Context, gen uint64, entry *log.Entry, ts *auth.TokenSet, err error) error {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		entry.Info("sign-in superseded by sign-out")
		return google.NewAuthenticationError(ErrCancelled, err)
	}
	m.cancelAttempt = nil

	if err == nil {
		if errPut := m.tokens.Put(context.WithoutCancel(ctx), ts); errPut != nil {
			err = google.NewAuthenticationError(ErrStoreFailed, errPut)
		}
	}

	var events []transition
	if err == nil {
		events = m.setLocked(events, StateAuthenticated, nil)
		m.mu.Unlock()
		entry.Info("signed in to Google Ads")
		m.dispatch(events)
		return nil
	}

	events = m.setLocked(events, StateFailed, err)
	events = m.setLocked(events, StateUnauthenticated, nil)
	m.mu.Unlock()

	if errors.Is(err, ErrCancelled) {
		entry.Info("sign-in cancelled")
	} else {
		entry.WithError(err).Error("sign-in failed")
	}
	m.dispatch(events)
	return err
}

// SignOut cancels any in-flight sign-in, revokes the credential when configured,
// clears the store and resets the session. It is idempotent.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	// Bumping the generation makes a racing finishSignIn skip its Put.
	m.generation++
	if m.cancelAttempt != nil {
		m.cancelAttempt()
		m.cancelAttempt = nil
	}
	oauthCfg := m.oauthConfig()
	events := m.setLocked(nil, StateUnauthenticated, nil)
	m.mu.Unlock()

	if oauthCfg.RevokeOnSignOut && m.client != nil {
		m.revoke(ctx, oauthCfg)
	}
	errClear := m.tokens.Clear(context.WithoutCancel(ctx))
	m.dispatch(events)
	if errClear != nil {
		log.WithError(errClear).Error("sign-out: failed to clear token store")
		return google.NewAuthenticationError(ErrStoreFailed, errClear)
	}
	log.Info("signed out of Google Ads")
	return nil
}

// revoke is best effort; failures never block sign-out.
func (m *Manager) revoke(ctx context.Context, oauthCfg config.OAuthConfig) {
	ts, ok := m.tokens.Get(ctx)
	if !ok {
		return
	}
	token := ts.RefreshToken
	if token == "" {
		token = ts.AccessToken
	}
	revokeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), revokeTimeout)
	defer cancel()
	if err := m.client.Revoke(revokeCtx, token, oauthCfg); err != nil {
		log.WithError(err).Warn("token revocation failed; clearing local credential anyway")
		return
	}
	log.Debug("credential revoked")
}

// IsAuthenticated reports whether a valid access token can be produced,
// refreshing an expired credential first when a refresh token is stored.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	_, ok := m.tokens.GetValidAccessToken(ctx, m.refresh, m.now())
	return ok
}

// GetAccessToken returns a valid access token, refreshing an expired one.
func (m *Manager) GetAccessToken(ctx context.Context) (string, bool) {
	return m.tokens.GetValidAccessToken(ctx, m.refresh, m.now())
}

func (m *Manager) refresh(ctx context.Context, refreshToken string) (*auth.TokenSet, error) {
	if m.client == nil {
		return nil, &RefreshError{Kind: google.RefreshOther, Message: "no token client configured"}
	}
	return m.client.Refresh(ctx, refreshToken, m.oauthConfig())
}

// RefreshStarted implements RefreshObserver.
func (m *Manager) RefreshStarted() {
	m.mu.Lock()
	var events []transition
	if m.state != StateAuthenticating {
		events = m.setLocked(events, StateRefreshing, nil)
	}
	m.mu.Unlock()
	m.dispatch(events)
}

// RefreshFinished implements RefreshObserver.
func (m *Manager) RefreshFinished(err error) {
	m.mu.Lock()
	var events []transition
	if m.state != StateAuthenticating {
		if err == nil {
			events = m.setLocked(events, StateAuthenticated, nil)
		} else {
			events = m.setLocked(events, StateUnauthenticated, nil)
		}
	}
	m.mu.Unlock()
	m.dispatch(events)
}

// Token implements oauth2.TokenSource.
func (m *Manager) Token() (*oauth2.Token, error) {
	ctx := context.Background()
	access, ok := m.GetAccessToken(ctx)
	if !ok {
		return nil, google.NewAuthenticationError(ErrNotAuthenticated, nil)
	}
	tok := &oauth2.Token{AccessToken: access, TokenType: "Bearer"}
	if ts, found := m.tokens.Get(ctx); found && ts.AccessToken == access {
		tok.Expiry = ts.ExpiresAt
	}
	return tok, nil
}

// Client returns an HTTP client that authorizes requests with the current access token.
func (m *Manager) Client(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, m)
}

func (m *Manager) oauthConfig() config.OAuthConfig {
	if m.cfg == nil {
		return config.OAuthConfig{}
	}
	return m.cfg.OAuthConfig()
}

func classifyBuildError(err error) error {
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return cfgErr
	}
	return &ConfigurationError{Kind: google.MalformedRedirectURI, Message: err.Error()}
}

func classifyExchangeError(err error) error {
	var exErr *TokenExchangeError
	if errors.As(err, &exErr) {
		return exErr
	}
	return &TokenExchangeError{Kind: google.ExchangeOther, Message: "token exchange failed", Cause: err}
}

// codeFromResult maps a coordinator result onto the error taxonomy.
func codeFromResult(result popup.Result, wantState string) (string, error) {
	switch r := result.(type) {
	case popup.Code:
		if r.State != wantState {
			return "", google.NewOAuthError(google.ReasonStateMismatch, "state parameter does not match this attempt")
		}
		return r.Code, nil
	case popup.AuthError:
		if r.Reason == popup.ReasonPopupBlocked {
			cause := r.Cause
			if errors.Is(cause, popup.ErrPortInUse) {
				cause = google.NewAuthenticationError(ErrPortInUse, cause)
			} else if cause == nil && r.Description != "" {
				cause = errors.New(r.Description)
			}
			return "", google.NewAuthenticationError(ErrPopupBlocked, cause)
		}
		return "", google.NewOAuthError(r.Reason, r.Description)
	case popup.Cancelled:
		return "", google.NewAuthenticationError(ErrCancelled, nil)
	case popup.TimedOut:
		return "", google.NewAuthenticationError(ErrTimedOut, nil)
	default:
		return "", google.NewAuthenticationError(ErrCancelled, nil)
	}
}
