package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/carlwiddowson/googleadsdashboard/internal/auth"
	"github.com/carlwiddowson/googleadsdashboard/internal/config"
	"github.com/carlwiddowson/googleadsdashboard/internal/misc"
	sdkAuth "github.com/carlwiddowson/googleadsdashboard/sdk/auth"
	log "github.com/sirupsen/logrus"
)

const commandTimeout = 30 * time.Second

// DoLogout signs out, revoking the credential when configured, and returns the exit code.
func DoLogout(holder *config.Holder, options *LoginOptions) int {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return runLogout(ctx, newAuthManager(holder, options), options.output())
}

func runLogout(ctx context.Context, manager *sdkAuth.Manager, out io.Writer) int {
	if err := manager.SignOut(ctx); err != nil {
		log.Error(sdkAuth.GetUserFriendlyMessage(err))
		return 1
	}
	_, _ = fmt.Fprintln(out, "Signed out of Google Ads.")
	return 0
}

// DoStatus prints the stored credential summary and returns the exit code.
// The exit code is 1 when no usable credential is stored.
func DoStatus(holder *config.Holder, options *LoginOptions) int {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return runStatus(ctx, newAuthManager(holder, options), options.output(), time.Now())
}

func runStatus(ctx context.Context, manager *sdkAuth.Manager, out io.Writer, now time.Time) int {
	ts, ok := manager.Tokens().Get(ctx)
	if !ok {
		_, _ = fmt.Fprintln(out, "State: unauthenticated")
		return 1
	}
	_, _ = fmt.Fprintf(out, "State: %s\n", manager.State())
	printTokenSummary(out, ts, now)
	if sdkAuth.IsExpired(ts, now) && ts.RefreshToken == "" {
		return 1
	}
	return 0
}

func printTokenSummary(out io.Writer, ts *auth.TokenSet, now time.Time) {
	_, _ = fmt.Fprintf(out, "Access token: %s\n", misc.MaskToken(ts.AccessToken))
	if sdkAuth.IsExpired(ts, now) {
		_, _ = fmt.Fprintf(out, "Expired at: %s\n", ts.ExpiresAt.Format(time.RFC3339))
	} else {
		_, _ = fmt.Fprintf(out, "Expires at: %s (in %s)\n", ts.ExpiresAt.Format(time.RFC3339), ts.ExpiresAt.Sub(now).Truncate(time.Second))
	}
	if ts.RefreshToken != "" {
		_, _ = fmt.Fprintln(out, "Refresh token: present")
	} else {
		_, _ = fmt.Fprintln(out, "Refresh token: none")
	}
}

// DoToken prints a valid access token, refreshing it when needed, and returns the exit code.
func DoToken(holder *config.Holder, options *LoginOptions) int {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return runToken(ctx, newAuthManager(holder, options), options.output())
}

func runToken(ctx context.Context, manager *sdkAuth.Manager, out io.Writer) int {
	token, ok := manager.GetAccessToken(ctx)
	if !ok {
		log.Error(sdkAuth.GetUserFriendlyMessage(sdkAuth.ErrNotAuthenticated))
		return 1
	}
	_, _ = fmt.Fprintln(out, token)
	return 0
}
