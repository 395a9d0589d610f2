package cmd

import (
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/carlwiddowson/googleadsdashboard/internal/browser"
	"github.com/carlwiddowson/googleadsdashboard/internal/config"
	"github.com/carlwiddowson/googleadsdashboard/internal/popup"
	sdkAuth "github.com/carlwiddowson/googleadsdashboard/sdk/auth"
	log "github.com/sirupsen/logrus"
)

// LoginOptions controls how the consent screen is presented to the user.
type LoginOptions struct {
	// NoBrowser prints the consent URL instead of launching a browser.
	NoBrowser bool

	// Manual reads the callback URL pasted by the user instead of listening on the
	// loopback redirect. Use it when the browser runs on another machine.
	Manual bool

	// In and Out default to the process stdin and stdout.
	In  io.Reader
	Out io.Writer
}

func (o *LoginOptions) output() io.Writer {
	if o == nil || o.Out == nil {
		return os.Stdout
	}
	return o.Out
}

func (o *LoginOptions) input() io.Reader {
	if o == nil || o.In == nil {
		return os.Stdin
	}
	return o.In
}

// newSurface picks the consent surface for the current terminal.
func newSurface(cfg *config.Config, options *LoginOptions) popup.Surface {
	if options == nil {
		options = &LoginOptions{}
	}
	if options.Manual || cfg.Popup.ManualPrompt {
		s := &popup.PromptSurface{In: options.input(), Out: options.output()}
		if !options.NoBrowser {
			s.OpenBrowser = browser.OpenURL
		}
		return s
	}
	noBrowser := options.NoBrowser
	if !noBrowser && !browser.IsAvailable() {
		log.Info("no browser available; printing the sign-in URL instead")
		noBrowser = true
	}
	return &popup.LoopbackSurface{NoBrowser: noBrowser, Out: options.output()}
}

// newAuthManager creates the session manager over the registered token store.
func newAuthManager(holder *config.Holder, options *LoginOptions) *sdkAuth.Manager {
	return sdkAuth.NewDefaultManager(holder, newSurface(holder.Load(), options))
}

// callbackPort returns the loopback port named by redirectURI, or 0.
func callbackPort(redirectURI string) int {
	u, err := url.Parse(strings.TrimSpace(redirectURI))
	if err != nil || u.Host == "" || !config.IsLoopbackHost(u.Hostname()) {
		return 0
	}
	p := u.Port()
	if p == "" {
		if u.Scheme == "https" {
			return 443
		}
		return 80
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return 0
	}
	return port
}
