package auth

import (
	"context"
	"net/url"

	"github.com/carlwiddowson/googleadsdashboard/internal/auth"
	"github.com/carlwiddowson/googleadsdashboard/internal/config"
	"github.com/carlwiddowson/googleadsdashboard/internal/popup"
)

// TokenClient talks to the token endpoint. *google.Client implements it.
type TokenClient interface {
	ExchangeCode(ctx context.Context, code string, cfg config.OAuthConfig, verifier string) (*auth.TokenSet, error)
	Refresh(ctx context.Context, refreshToken string, cfg config.OAuthConfig) (*auth.TokenSet, error)
	Revoke(ctx context.Context, token string, cfg config.OAuthConfig) error
}

// Launcher shows the consent surface and waits for its outcome. *popup.Coordinator implements it.
type Launcher interface {
	Launch(ctx context.Context, target string, redirect *url.URL) popup.Result
}

// RefreshFunc redeems a refresh token for a new token set.
type RefreshFunc func(ctx context.Context, refreshToken string) (*auth.TokenSet, error)

// RefreshObserver is told when a shared refresh starts and how it ended.
type RefreshObserver interface {
	RefreshStarted()
	RefreshFinished(err error)
}
