package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/carlwiddowson/googleadsdashboard/internal/config"
	"github.com/carlwiddowson/googleadsdashboard/internal/util"
	sdkAuth "github.com/carlwiddowson/googleadsdashboard/sdk/auth"
	log "github.com/sirupsen/logrus"
)

// signInSession is the part of the manager used by the login command.
type signInSession interface {
	SignIn(ctx context.Context) error
}

// DoLogin runs the interactive Google Ads sign-in and returns the process exit code.
// Ctrl-C cancels the attempt.
func DoLogin(holder *config.Holder, options *LoginOptions) int {
	if options == nil {
		options = &LoginOptions{}
	}
	manager := newAuthManager(holder, options)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return runLogin(ctx, manager, holder.Load(), options)
}

func runLogin(ctx context.Context, session signInSession, cfg *config.Config, options *LoginOptions) int {
	out := options.output()
	if options.NoBrowser && !options.Manual && !cfg.Popup.ManualPrompt {
		util.PrintSSHTunnelInstructions(out, callbackPort(cfg.OAuth.RedirectURI))
	}

	if err := session.SignIn(ctx); err != nil {
		log.Error(sdkAuth.GetUserFriendlyMessage(err))
		if errors.Is(err, sdkAuth.ErrPortInUse) {
			return sdkAuth.ErrPortInUse.Code
		}
		return 1
	}

	_, _ = fmt.Fprintln(out, "Google Ads authentication successful!")
	return 0
}
