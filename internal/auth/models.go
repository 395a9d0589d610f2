// Package auth provides the credential model shared by the authorization flow and
// the token persistence backends. It defines the TokenSet record and the Store
// interface every backend implements.
package auth

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Names of the persisted entries. A backend stores exactly these three values.
const (
	KeyAccessToken  = "google_ads_access_token"
	KeyRefreshToken = "google_ads_refresh_token"
	KeyTokenExpiry  = "google_ads_token_expiry"
)

// TokenSet is the credential obtained from the token endpoint.
type TokenSet struct {
	// AccessToken is the bearer credential used against the protected API.
	AccessToken string `json:"access_token"`
	// RefreshToken obtains a new access token without user interaction. Optional.
	RefreshToken string `json:"refresh_token,omitempty"`
	// ExpiresAt is the absolute expiry of AccessToken, millisecond precision.
	ExpiresAt time.Time `json:"-"`
}

// NewTokenSet builds a token set issued at issuedAt that expires after expiresIn seconds.
// The expiry is truncated to milliseconds so it round-trips through every backend.
func NewTokenSet(accessToken, refreshToken string, expiresIn int64, issuedAt time.Time) (*TokenSet, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, fmt.Errorf("token set: access token is empty")
	}
	if expiresIn <= 0 {
		return nil, fmt.Errorf("token set: expires_in must be positive, got %d", expiresIn)
	}
	expiresAt := time.UnixMilli(issuedAt.Add(time.Duration(expiresIn) * time.Second).UnixMilli())
	return &TokenSet{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

// Clone returns a copy of the token set.
func (t *TokenSet) Clone() *TokenSet {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// Equal reports whether two token sets carry the same credential. Expiries are
// compared at millisecond precision, the resolution they are persisted with.
func (t *TokenSet) Equal(o *TokenSet) bool {
	if t == nil || o == nil {
		return t == o
	}
	return t.AccessToken == o.AccessToken &&
		t.RefreshToken == o.RefreshToken &&
		t.ExpiresAt.UnixMilli() == o.ExpiresAt.UnixMilli()
}

// Entries flattens the token set into the three persisted entries.
// The refresh token entry is omitted when empty.
func (t *TokenSet) Entries() map[string]string {
	entries := map[string]string{
		KeyAccessToken: t.AccessToken,
		KeyTokenExpiry: strconv.FormatInt(t.ExpiresAt.UnixMilli(), 10),
	}
	if t.RefreshToken != "" {
		entries[KeyRefreshToken] = t.RefreshToken
	}
	return entries
}

// TokenSetFromEntries rebuilds a token set from persisted entries.
// It returns nil without error when no access token is stored.
func TokenSetFromEntries(entries map[string]string) (*TokenSet, error) {
	access := entries[KeyAccessToken]
	if access == "" {
		return nil, nil
	}
	rawExpiry := strings.TrimSpace(entries[KeyTokenExpiry])
	if rawExpiry == "" {
		return nil, fmt.Errorf("token set: %s missing", KeyTokenExpiry)
	}
	ms, err := strconv.ParseInt(rawExpiry, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("token set: parse %s: %w", KeyTokenExpiry, err)
	}
	return &TokenSet{
		AccessToken:  access,
		RefreshToken: entries[KeyRefreshToken],
		ExpiresAt:    time.UnixMilli(ms),
	}, nil
}

// Store abstracts persistence of the single credential record.
// Implementations replace the record as a whole; there is no partial update.
type Store interface {
	// Get returns the stored token set, or nil when nothing is stored.
	Get(ctx context.Context) (*TokenSet, error)
	// Put replaces the stored token set.
	Put(ctx context.Context, t *TokenSet) error
	// Clear removes every persisted entry. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}
