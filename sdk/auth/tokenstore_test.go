package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/carlwiddowson/googleadsdashboard/internal/auth"
	"github.com/carlwiddowson/googleadsdashboard/internal/auth/google"
	"github.com/carlwiddowson/googleadsdashboard/internal/store"
)

func TestIsExpired(t *testing.T) {
	t.Parallel()
	ts := &auth.TokenSet{AccessToken: "A", ExpiresAt: base}
	tests := []struct {
		name string
		ts   *auth.TokenSet
		now  time.Time
		want bool
	}{
		{"before expiry", ts, base.Add(-time.Millisecond), false},
		{"at expiry", ts, base, true},
		{"after expiry", ts, base.Add(time.Second), true},
		{"nil", nil, base, true},
	}
	for _, tt := range tests {
		if got := IsExpired(tt.ts, tt.now); got != tt.want {
			t.Errorf("%s: IsExpired = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestTokenStoreRejectsEmptySet(t *testing.T) {
	t.Parallel()
	s := NewTokenStore(store.NewMemoryStore())
	if err := s.Put(context.Background(), nil); err == nil {
		t.Fatal("Put(nil) succeeded")
	}
	if err := s.Put(context.Background(), &auth.TokenSet{ExpiresAt: base}); err == nil {
		t.Fatal("Put without access token succeeded")
	}
}

func TestTokenStoreRoundTrip(t *testing.T) {
	t.Parallel()
	s := NewTokenStore(store.NewMemoryStore())
	want := mustTokens(t, "A1", "R1", base)
	if err := s.Put(context.Background(), want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok := s.Get(context.Background())
	if !ok || !got.Equal(want) {
		t.Fatalf("Get = %+v, %v; want %+v", got, ok, want)
	}
	got.AccessToken = "mutated"
	again, _ := s.Get(context.Background())
	if again.AccessToken != "A1" {
		t.Fatal("Get returned shared state")
	}
}

func TestTokenStoreRoundTripTruncatesToMillis(t *testing.T) {
	t.Parallel()
	expiry := time.Date(2026, 3, 1, 12, 0, 40, 123456789, time.UTC)
	backends := []struct {
		name    string
		backend auth.Store
	}{
		{"memory", store.NewMemoryStore()},
		{"file", store.NewFileStore(t.TempDir())},
	}
	for _, tt := range backends {
		t.Run(tt.name, func(t *testing.T) {
			s := NewTokenStore(tt.backend)
			want := &auth.TokenSet{AccessToken: "A1", RefreshToken: "R1", ExpiresAt: expiry}
			if err := s.Put(context.Background(), want); err != nil {
				t.Fatalf("Put: %v", err)
			}
			got, ok := s.Get(context.Background())
			if !ok || !got.Equal(want) {
				t.Fatalf("Get = %+v, %v; want %+v", got, ok, want)
			}
			if wantMs := time.UnixMilli(expiry.UnixMilli()); !got.ExpiresAt.Equal(wantMs) {
				t.Fatalf("expiry = %v, want %v", got.ExpiresAt, wantMs)
			}
			if want.ExpiresAt.Nanosecond() != 123456789 {
				t.Fatal("Put modified the caller's token set")
			}
		})
	}
}

func TestGetValidAccessTokenRefreshesExpired(t *testing.T) {
	t.Parallel()
	backend := store.NewMemoryStore()
	client := &stubClient{refresh: func(_ context.Context, refreshToken string) (*auth.TokenSet, error) {
		if refreshToken != "R1" {
			return nil, errors.New("unexpected refresh token " + refreshToken)
		}
		return auth.NewTokenSet("T2", "", 3600, base)
	}}
	m, rec := newTestManager(t, testConfig(), backend, client, codeLauncher())
	if err := backend.Put(context.Background(), mustTokens(t, "T1", "R1", base.Add(-2*time.Hour))); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !m.IsAuthenticated(context.Background()) {
		t.Fatal("IsAuthenticated = false for an expired credential with a refresh token")
	}
	if n := client.refreshCalls.Load(); n != 1 {
		t.Fatalf("refresh called %d times, want 1", n)
	}

	token, ok := m.GetAccessToken(context.Background())
	if !ok || token != "T2" {
		t.Fatalf("GetAccessToken = %q, %v; want T2", token, ok)
	}
	if n := client.refreshCalls.Load(); n != 1 {
		t.Fatalf("refresh called %d times after the token was renewed, want 1", n)
	}
	stored, ok := m.Tokens().Get(context.Background())
	if !ok {
		t.Fatal("store empty after refresh")
	}
	if stored.AccessToken != "T2" || stored.RefreshToken != "R1" {
		t.Fatalf("stored = %+v, want T2 with refresh token R1 kept", stored)
	}
	if want := base.Add(3600 * time.Second); !stored.ExpiresAt.Equal(want) {
		t.Fatalf("expiry = %v, want %v", stored.ExpiresAt, want)
	}
	wantStates := []State{StateRefreshing, StateAuthenticated}
	if got := rec.States(); !equalStates(got, wantStates) {
		t.Fatalf("transitions = %v, want %v", got, wantStates)
	}
}

func TestIsAuthenticatedClearsUnrefreshableCredential(t *testing.T) {
	t.Parallel()
	backend := store.NewMemoryStore()
	client := &stubClient{}
	m, _ := newTestManager(t, testConfig(), backend, client, codeLauncher())
	if err := backend.Put(context.Background(), mustTokens(t, "T1", "", base.Add(-2*time.Hour))); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if m.IsAuthenticated(context.Background()) {
		t.Fatal("IsAuthenticated = true for an expired credential without a refresh token")
	}
	if n := client.refreshCalls.Load(); n != 0 {
		t.Fatalf("refresh called %d times without a refresh token", n)
	}
	if len(backend.Entries()) != 0 {
		t.Fatalf("store not cleared: %v", backend.Entries())
	}
}

func TestGetValidAccessTokenSkipsRefreshWhenValid(t *testing.T) {
	t.Parallel()
	backend := store.NewMemoryStore()
	client := &stubClient{}
	m, _ := newTestManager(t, testConfig(), backend, client, codeLauncher())
	if err := backend.Put(context.Background(), mustTokens(t, "T1", "R1", base)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if token, ok := m.GetAccessToken(context.Background()); !ok || token != "T1" {
		t.Fatalf("GetAccessToken = %q, %v", token, ok)
	}
	if n := client.refreshCalls.Load(); n != 0 {
		t.Fatalf("refresh called %d times for a valid token", n)
	}
}

func TestConcurrentRefreshIsShared(t *testing.T) {
	t.Parallel()
	backend := store.NewMemoryStore()
	release := make(chan struct{})
	client := &stubClient{refresh: func(ctx context.Context, _ string) (*auth.TokenSet, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return auth.NewTokenSet("T2", "", 3600, base)
	}}
	m, _ := newTestManager(t, testConfig(), backend, client, codeLauncher())
	if err := backend.Put(context.Background(), mustTokens(t, "T1", "R1", base.Add(-2*time.Hour))); err != nil {
		t.Fatalf("seed: %v", err)
	}

	const callers = 10
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, _ := m.GetAccessToken(context.Background())
			results[i] = token
		}()
	}

	deadline := time.After(2 * time.Second)
	for client.refreshCalls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("refresh never started")
		case <-time.After(5 * time.Millisecond):
		}
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := client.refreshCalls.Load(); n != 1 {
		t.Fatalf("refresh called %d times, want 1", n)
	}
	for i, token := range results {
		if token != "T2" {
			t.Errorf("caller %d got %q, want T2", i, token)
		}
	}
}

func TestRefreshFailureClearsStore(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
	}{
		{"network", &RefreshError{Kind: google.RefreshNetwork, Message: "token endpoint unreachable"}},
		{"invalid grant", &RefreshError{Kind: google.InvalidGrant, Message: "invalid_grant", StatusCode: 400}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			backend := store.NewMemoryStore()
			client := &stubClient{refresh: func(context.Context, string) (*auth.TokenSet, error) {
				return nil, tt.err
			}}
			m, rec := newTestManager(t, testConfig(), backend, client, codeLauncher())
			if err := backend.Put(context.Background(), mustTokens(t, "T1", "R1", base.Add(-2*time.Hour))); err != nil {
				t.Fatalf("seed: %v", err)
			}

			if token, ok := m.GetAccessToken(context.Background()); ok || token != "" {
				t.Fatalf("GetAccessToken = %q, %v; want none", token, ok)
			}
			if len(backend.Entries()) != 0 {
				t.Fatalf("store not cleared: %v", backend.Entries())
			}
			if m.IsAuthenticated(context.Background()) {
				t.Fatal("IsAuthenticated = true after failed refresh")
			}
			// Refreshing is reported, then the reset; the initial state was already unauthenticated.
			want := []State{StateRefreshing, StateUnauthenticated}
			if got := rec.States(); !equalStates(got, want) {
				t.Fatalf("transitions = %v, want %v", got, want)
			}
		})
	}
}

func TestExpiredWithoutRefreshTokenClears(t *testing.T) {
	t.Parallel()
	backend := store.NewMemoryStore()
	client := &stubClient{}
	m, _ := newTestManager(t, testConfig(), backend, client, codeLauncher())
	if err := backend.Put(context.Background(), mustTokens(t, "T1", "", base.Add(-2*time.Hour))); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, ok := m.GetAccessToken(context.Background()); ok {
		t.Fatal("GetAccessToken returned a token")
	}
	if client.refreshCalls.Load() != 0 {
		t.Fatal("refresh attempted without a refresh token")
	}
	if len(backend.Entries()) != 0 {
		t.Fatal("expired credential kept")
	}
}

func TestRefreshDiscardedAfterClear(t *testing.T) {
	t.Parallel()
	backend := store.NewMemoryStore()
	started := make(chan struct{})
	release := make(chan struct{})
	ts := NewTokenStore(backend)
	if err := ts.Put(context.Background(), mustTokens(t, "T1", "R1", base.Add(-2*time.Hour))); err != nil {
		t.Fatalf("seed: %v", err)
	}
	refresh := func(context.Context, string) (*auth.TokenSet, error) {
		close(started)
		<-release
		return auth.NewTokenSet("T2", "", 3600, base)
	}

	done := make(chan bool, 1)
	go func() {
		_, ok := ts.GetValidAccessToken(context.Background(), refresh, base)
		done <- ok
	}()
	<-started
	if err := ts.Clear(context.Background()); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	close(release)

	if ok := <-done; ok {
		t.Fatal("refreshed token returned after Clear")
	}
	if _, ok := ts.Get(context.Background()); ok {
		t.Fatal("refreshed token written back after Clear")
	}
}

func TestGetValidAccessTokenHonoursCallerContext(t *testing.T) {
	t.Parallel()
	backend := store.NewMemoryStore()
	ts := NewTokenStore(backend)
	if err := ts.Put(context.Background(), mustTokens(t, "T1", "R1", base.Add(-2*time.Hour))); err != nil {
		t.Fatalf("seed: %v", err)
	}
	release := make(chan struct{})
	refresh := func(context.Context, string) (*auth.TokenSet, error) {
		<-release
		return auth.NewTokenSet("T2", "", 3600, base)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, ok := ts.GetValidAccessToken(ctx, refresh, base); ok {
		t.Fatal("expected no token for an abandoned call")
	}
	close(release)

	// the detached refresh still completes for everyone else
	deadline := time.After(2 * time.Second)
	for {
		if got, ok := ts.Get(context.Background()); ok && got.AccessToken == "T2" {
			break
		}
		select {
		case <-deadline:
			t.Fatal("shared refresh did not complete")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
