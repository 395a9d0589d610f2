package auth

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/carlwiddowson/googleadsdashboard/internal/auth"
	"github.com/carlwiddowson/googleadsdashboard/internal/config"
	"github.com/carlwiddowson/googleadsdashboard/internal/popup"
	"github.com/carlwiddowson/googleadsdashboard/internal/store"
)

var base = time.UnixMilli(1_750_000_000_000)

func testConfig() *config.Config {
	return &config.Config{OAuth: config.OAuthConfig{
		ClientID:    "123-abc.apps.googleusercontent.com",
		RedirectURI: "http://localhost:8085/oauth2callback",
		Scopes:      []string{config.DefaultScope},
		AuthURL:     "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:    "https://oauth2.googleapis.com/token",
	}}
}

func mustTokens(t *testing.T, access, refresh string, issuedAt time.Time) *auth.TokenSet {
	t.Helper()
	ts, err := auth.NewTokenSet(access, refresh, 3600, issuedAt)
	if err != nil {
		t.Fatalf("NewTokenSet: %v", err)
	}
	return ts
}

type stubLauncher struct {
	mu      sync.Mutex
	opens   int
	started chan struct{}
	respond func(ctx context.Context, state string) popup.Result
}

func newStubLauncher(respond func(ctx context.Context, state string) popup.Result) *stubLauncher {
	return &stubLauncher{started: make(chan struct{}, 16), respond: respond}
}

func (l *stubLauncher) Launch(ctx context.Context, target string, _ *url.URL) popup.Result {
	l.mu.Lock()
	l.opens++
	l.mu.Unlock()
	l.started <- struct{}{}
	u, err := url.Parse(target)
	if err != nil {
		return popup.AuthError{Reason: popup.ReasonPopupBlocked, Description: err.Error()}
	}
	return l.respond(ctx, u.Query().Get("state"))
}

func (l *stubLauncher) Opens() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.opens
}

// codeLauncher approves immediately, echoing the attempt's state.
func codeLauncher() *stubLauncher {
	return newStubLauncher(func(_ context.Context, state string) popup.Result {
		return popup.Code{Code: "auth-code", State: state}
	})
}

// blockingLauncher waits for the attempt to be cancelled.
func blockingLauncher() *stubLauncher {
	return newStubLauncher(func(ctx context.Context, _ string) popup.Result {
		<-ctx.Done()
		return popup.Cancelled{}
	})
}

type stubClient struct {
	exchange     func(code string) (*auth.TokenSet, error)
	refresh      func(ctx context.Context, refreshToken string) (*auth.TokenSet, error)
	refreshCalls atomic.Int32
	exchanges    atomic.Int32

	mu        sync.Mutex
	revoked   []string
	revokeErr error
}

func (c *stubClient) ExchangeCode(_ context.Context, code string, _ config.OAuthConfig, verifier string) (*auth.TokenSet, error) {
	c.exchanges.Add(1)
	if verifier == "" {
		return nil, errors.New("missing PKCE verifier")
	}
	if c.exchange == nil {
		return nil, errors.New("exchange not configured")
	}
	return c.exchange(code)
}

func (c *stubClient) Refresh(ctx context.Context, refreshToken string, _ config.OAuthConfig) (*auth.TokenSet, error) {
	c.refreshCalls.Add(1)
	if c.refresh == nil {
		return nil, errors.New("refresh not configured")
	}
	return c.refresh(ctx, refreshToken)
}

func (c *stubClient) Revoke(_ context.Context, token string, _ config.OAuthConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked = append(c.revoked, token)
	return c.revokeErr
}

func (c *stubClient) Revoked() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.revoked...)
}

type recorder struct {
	mu     sync.Mutex
	states []State
	errs   []error
}

func (r *recorder) listen(s State, reason error) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.errs = append(r.errs, reason)
	r.mu.Unlock()
}

func (r *recorder) States() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func newTestManager(t *testing.T, cfg *config.Config, backend *store.MemoryStore, client TokenClient, launcher Launcher) (*Manager, *recorder) {
	t.Helper()
	m := NewManager(cfg, backend, client, launcher)
	m.SetClock(func() time.Time { return base })
	rec := &recorder{}
	m.OnStateChange(rec.listen)
	return m, rec
}

func equalStates(a, b []State) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func waitStarted(t *testing.T, l *stubLauncher) {
	t.Helper()
	select {
	case <-l.started:
	case <-time.After(2 * time.Second):
		t.Fatal("launcher was not started")
	}
}
