package popup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/carlwiddowson/googleadsdashboard/internal/browser"
	log "github.com/sirupsen/logrus"
)

// LoopbackSurface opens the consent URL in the system browser and listens for the
// redirect on the loopback address named by the URL's redirect_uri parameter.
type LoopbackSurface struct {
	// NoBrowser prints the URL (and copies it to the clipboard) instead of launching a browser.
	NoBrowser bool
	// Out receives user-facing instructions. Defaults to os.Stdout.
	Out io.Writer
	// OpenBrowser launches a browser. Defaults to browser.OpenURL.
	OpenBrowser func(string) error
	// CopyToClipboard defaults to browser.CopyToClipboard.
	CopyToClipboard func(string) bool
}

// Open starts the callback listener and shows target.
func (s *LoopbackSurface) Open(ctx context.Context, target string, _ Size) (Window, error) {
	redirect, err := redirectFromTarget(target)
	if err != nil {
		return nil, err
	}
	if redirect.Scheme != "http" {
		return nil, fmt.Errorf("loopback listener requires an http redirect uri, got %s", redirect.Scheme)
	}
	port := redirect.Port()
	if port == "" {
		port = "80"
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(redirect.Hostname(), port))
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("%w: %s", ErrPortInUse, port)
		}
		return nil, fmt.Errorf("failed to start callback listener: %w", err)
	}

	w := &loopbackWindow{redirect: redirect}
	mux := http.NewServeMux()
	mux.HandleFunc(normalizePath(redirect.Path), w.handleCallback)
	w.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	go func() {
		if errServe := w.server.Serve(ln); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			log.Errorf("callback listener failed: %v", errServe)
			w.markClosed()
		}
	}()
	log.Debugf("callback listener started on %s", ln.Addr())

	out := s.Out
	if out == nil {
		out = os.Stdout
	}
	if s.NoBrowser {
		_, _ = fmt.Fprintf(out, "Open this URL in your browser to sign in to Google Ads:\n\n%s\n\n", target)
		copyFn := s.CopyToClipboard
		if copyFn == nil {
			copyFn = browser.CopyToClipboard
		}
		if copyFn(target) {
			_, _ = fmt.Fprintln(out, "(The URL has been copied to your clipboard.)")
		}
		return w, nil
	}

	openFn := s.OpenBrowser
	if openFn == nil {
		openFn = browser.OpenURL
	}
	if errOpen := openFn(target); errOpen != nil {
		w.Close()
		return nil, fmt.Errorf("failed to open browser: %w", errOpen)
	}
	_, _ = fmt.Fprintln(out, "Waiting for Google Ads authorization in your browser...")
	return w, nil
}

type loopbackWindow struct {
	redirect *url.URL
	server   *http.Server

	mu       sync.Mutex
	callback *url.URL
	closed   bool
	closeOne sync.Once
}

func (w *loopbackWindow) Probe() Probe {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.callback != nil {
		return Probe{Status: ProbeReady, URL: w.callback}
	}
	if w.closed {
		return Probe{Status: ProbeClosed}
	}
	return Probe{Status: ProbePending}
}

func (w *loopbackWindow) Close() {
	w.closeOne.Do(func() {
		w.markClosed()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.server.Shutdown(ctx); err != nil {
			log.Debugf("callback listener shutdown: %v", err)
		}
	})
}

func (w *loopbackWindow) markClosed() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}

func (w *loopbackWindow) handleCallback(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(rw, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	log.Debug("Received OAuth callback")

	callback := *w.redirect
	callback.RawQuery = r.URL.RawQuery
	callback.Fragment = ""

	w.mu.Lock()
	if w.callback == nil && !w.closed {
		w.callback = &callback
	}
	w.mu.Unlock()

	query := r.URL.Query()
	renderCallbackPage(rw, query.Get("code") != "", query.Get("error"))
}

func redirectFromTarget(target string) (*url.URL, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid consent url: %w", err)
	}
	raw := strings.TrimSpace(u.Query().Get("redirect_uri"))
	if raw == "" {
		return nil, fmt.Errorf("consent url has no redirect_uri")
	}
	redirect, err := url.Parse(raw)
	if err != nil || redirect.Host == "" {
		return nil, fmt.Errorf("consent url has an invalid redirect_uri %q", raw)
	}
	return redirect, nil
}
