package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/carlwiddowson/googleadsdashboard/internal/auth"
	"github.com/carlwiddowson/googleadsdashboard/internal/auth/google"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	refreshFlightKey      = "refresh"
	defaultRefreshTimeout = 30 * time.Second
)

// TokenStore owns the persisted credential and its refresh. It caches nothing:
// every call reads through to the backend, so several processes sharing a backend
// observe each other's writes.
type TokenStore struct {
	backend        auth.Store
	group          singleflight.Group
	mu             sync.Mutex
	epoch          uint64
	refreshTimeout time.Duration
	observer       RefreshObserver
}

// NewTokenStore wraps backend.
func NewTokenStore(backend auth.Store) *TokenStore {
	return &TokenStore{backend: backend, refreshTimeout: defaultRefreshTimeout}
}

// SetObserver registers the refresh observer. Call before concurrent use.
func (s *TokenStore) SetObserver(o RefreshObserver) {
	s.observer = o
}

// Get returns the stored token set. A backend failure is logged and reported as nothing stored.
func (s *TokenStore) Get(ctx context.Context) (*auth.TokenSet, bool) {
	ts, err := s.backend.Get(ctx)
	if err != nil {
		log.WithError(err).Warn("token store: read failed, treating as signed out")
		return nil, false
	}
	if ts == nil || ts.AccessToken == "" {
		return nil, false
	}
	return ts.Clone(), true
}

// Put replaces the stored token set as a whole.
func (s *TokenStore) Put(ctx context.Context, t *auth.TokenSet) error {
	if t == nil || t.AccessToken == "" {
		return errors.New("token store: refusing to persist an empty token set")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Put(ctx, persistable(t))
}

// Clear removes every persisted entry. A refresh already in flight will not
// write its result back afterwards.
func (s *TokenStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	return s.backend.Clear(ctx)
}

func (s *TokenStore) currentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// putIfEpoch persists t only if no Clear happened since epoch was read.
func (s *TokenStore) putIfEpoch(ctx context.Context, t *auth.TokenSet, epoch uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false, nil
	}
	return true, s.backend.Put(ctx, persistable(t))
}

// persistable copies t with its expiry truncated to the millisecond precision
// every backend stores, so a Put followed by a Get yields an equal set.
func persistable(t *auth.TokenSet) *auth.TokenSet {
	c := t.Clone()
	c.ExpiresAt = time.UnixMilli(c.ExpiresAt.UnixMilli())
	return c
}

// IsExpired reports whether t is unusable at now.
func IsExpired(t *auth.TokenSet, now time.Time) bool {
	return t == nil || !now.Before(t.ExpiresAt)
}

// IsExpired reports whether t is unusable at now.
func (s *TokenStore) IsExpired(t *auth.TokenSet, now time.Time) bool {
	return IsExpired(t, now)
}

// GetValidAccessToken returns a usable access token, refreshing an expired one.
// Concurrent callers share a single refresh. On refresh failure the store is
// cleared and no token is returned. The refresh runs detached from ctx, so a
// caller that gives up does not abort it for the others.
func (s *TokenStore) GetValidAccessToken(ctx context.Context, refresh RefreshFunc, now time.Time) (string, bool) {
	current, ok := s.Get(ctx)
	if !ok {
		return "", false
	}
	if !IsExpired(current, now) {
		return current.AccessToken, true
	}

	ch := s.group.DoChan(refreshFlightKey, func() (any, error) {
		return s.refreshShared(context.WithoutCancel(ctx), refresh, now), nil
	})
	select {
	case <-ctx.Done():
		return "", false
	case res := <-ch:
		token, _ := res.Val.(string)
		return token, token != ""
	}
}

func (s *TokenStore) refreshShared(parent context.Context, refresh RefreshFunc, now time.Time) string {
	ctx, cancel := context.WithTimeout(parent, s.refreshTimeout)
	defer cancel()

	// Re-read inside the flight: a refresh that finished just before this one
	// started has already replaced the record.
	epoch := s.currentEpoch()
	current, ok := s.Get(ctx)
	if !ok {
		return ""
	}
	if !IsExpired(current, now) {
		return current.AccessToken
	}
	if current.RefreshToken == "" || refresh == nil {
		log.Info("access token expired and no refresh token is stored; signing out")
		s.clearQuietly(ctx)
		return ""
	}

	if s.observer != nil {
		s.observer.RefreshStarted()
	}
	next, err := refresh(ctx, current.RefreshToken)
	if err == nil && (next == nil || next.AccessToken == "") {
		err = &RefreshError{Kind: google.RefreshOther, Message: "refresh returned no access token"}
	}
	if err != nil {
		log.WithError(err).Warn("token refresh failed; credential cleared")
		s.clearQuietly(ctx)
		if s.observer != nil {
			s.observer.RefreshFinished(err)
		}
		return ""
	}

	if next.RefreshToken == "" {
		next.RefreshToken = current.RefreshToken
	}
	stored, errPut := s.putIfEpoch(ctx, next, epoch)
	if errPut != nil {
		log.WithError(errPut).Error("token store: failed to persist refreshed token")
	}
	if !stored && errPut == nil {
		log.Info("credential cleared during refresh; discarding refreshed token")
		if s.observer != nil {
			s.observer.RefreshFinished(ErrNotAuthenticated)
		}
		return ""
	}
	if s.observer != nil {
		s.observer.RefreshFinished(nil)
	}
	log.Debug("access token refreshed")
	return next.AccessToken
}

func (s *TokenStore) clearQuietly(ctx context.Context) {
	if err := s.Clear(ctx); err != nil {
		log.WithError(err).Error("token store: failed to clear credential")
	}
}
