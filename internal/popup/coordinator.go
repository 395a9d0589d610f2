package popup

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/carlwiddowson/googleadsdashboard/internal/config"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultProbeInterval = time.Second
	DefaultTimeout       = 5 * time.Minute
)

// DefaultSize is the window size requested when none is configured.
var DefaultSize = Size{Width: 500, Height: 600}

// Coordinator launches a consent window and waits for its outcome.
type Coordinator struct {
	Surface       Surface
	Size          Size
	ProbeInterval time.Duration
	Timeout       time.Duration
}

// NewCoordinator builds a coordinator for surface using the popup settings in cfg.
func NewCoordinator(surface Surface, cfg config.PopupConfig) *Coordinator {
	return &Coordinator{
		Surface:       surface,
		Size:          Size{Width: cfg.Width, Height: cfg.Height},
		ProbeInterval: cfg.ProbeInterval,
		Timeout:       cfg.Timeout,
	}
}

// Launch opens target and blocks until exactly one Result is known.
// redirect identifies the address that carries the authorization response;
// a nil redirect accepts the first readable address. Cancelling ctx resolves
// to Cancelled. The window is closed before Launch returns.
func (c *Coordinator) Launch(ctx context.Context, target string, redirect *url.URL) Result {
	size, interval, timeout := c.settings()

	if c.Surface == nil {
		return AuthError{Reason: ReasonPopupBlocked, Description: "no consent surface configured"}
	}
	win, err := c.Surface.Open(ctx, target, size)
	if err != nil {
		log.Debugf("consent window could not be opened: %v", err)
		return AuthError{Reason: ReasonPopupBlocked, Description: err.Error(), Cause: err}
	}
	if win == nil {
		return AuthError{Reason: ReasonPopupBlocked, Description: "surface returned no window"}
	}
	if win.Probe().Status == ProbeClosed {
		win.Close()
		return AuthError{Reason: ReasonPopupBlocked, Description: "window closed immediately after opening"}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		once   sync.Once
		result Result
	)
	resolve := func(r Result) {
		once.Do(func() { result = r })
		cancel()
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if r, done := evaluate(win.Probe(), redirect); done {
					resolve(r)
					return nil
				}
			}
		}
	})
	g.Go(func() error {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-gctx.Done():
			return nil
		case <-timer.C:
			resolve(TimedOut{})
			return nil
		}
	})
	_ = g.Wait()

	// Neither goroutine resolved, so the caller's context ended the launch.
	once.Do(func() { result = Cancelled{} })
	win.Close()
	return result
}

func (c *Coordinator) settings() (Size, time.Duration, time.Duration) {
	size := c.Size
	if size.Width <= 0 || size.Height <= 0 {
		size = DefaultSize
	}
	interval := c.ProbeInterval
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return size, interval, timeout
}

// evaluate turns a probe into a result. done is false while polling should continue.
func evaluate(p Probe, redirect *url.URL) (Result, bool) {
	switch p.Status {
	case ProbeClosed:
		return Cancelled{}, true
	case ProbeReady:
		if p.URL == nil || !MatchesRedirect(p.URL, redirect) {
			return nil, false
		}
		query := p.URL.Query()
		if reason := query.Get("error"); reason != "" {
			return AuthError{Reason: reason, Description: query.Get("error_description")}, true
		}
		if code := query.Get("code"); code != "" {
			return Code{Code: code, State: query.Get("state")}, true
		}
		return AuthError{Reason: ReasonNoCode, Description: "redirect carried neither code nor error"}, true
	default:
		return nil, false
	}
}

// MatchesRedirect reports whether u is on the redirect target: same scheme, host and path.
func MatchesRedirect(u, redirect *url.URL) bool {
	if redirect == nil {
		return true
	}
	if !strings.EqualFold(u.Scheme, redirect.Scheme) || !strings.EqualFold(u.Host, redirect.Host) {
		return false
	}
	return normalizePath(u.Path) == normalizePath(redirect.Path)
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
