package popup

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/carlwiddowson/googleadsdashboard/internal/misc"
	log "github.com/sirupsen/logrus"
)

// PromptSurface is the headless fallback: it prints the consent URL and reads the
// callback URL the user pastes back from the browser address bar. An empty line or
// end of input closes the window.
type PromptSurface struct {
	In  io.Reader
	Out io.Writer
	// OpenBrowser, when set, is tried once; failures are ignored.
	OpenBrowser func(string) error
}

// Open prints target and starts reading the pasted callback.
func (s *PromptSurface) Open(ctx context.Context, target string, _ Size) (Window, error) {
	redirect, err := redirectFromTarget(target)
	if err != nil {
		return nil, err
	}
	in := s.In
	if in == nil {
		in = os.Stdin
	}
	out := s.Out
	if out == nil {
		out = os.Stdout
	}

	if s.OpenBrowser != nil {
		if errOpen := s.OpenBrowser(target); errOpen != nil {
			log.Debugf("browser not opened for manual flow: %v", errOpen)
		}
	}
	_, _ = fmt.Fprintf(out, "Visit the following URL to sign in to Google Ads:\n\n%s\n\n", target)
	_, _ = fmt.Fprintln(out, "After approving, paste the full URL from the browser address bar (or press Enter to cancel):")

	w := &promptWindow{}
	w.start = func() { go w.read(ctx, bufio.NewReader(in), out, redirect) }
	return w, nil
}

type promptWindow struct {
	mu       sync.Mutex
	callback *url.URL
	closed   bool
	start    func()
	started  sync.Once
}

// Probe starts reading input after the first observation, so the window is never
// seen closed before the coordinator begins polling.
func (w *promptWindow) Probe() Probe {
	w.mu.Lock()
	p := Probe{Status: ProbePending}
	switch {
	case w.callback != nil:
		p = Probe{Status: ProbeReady, URL: w.callback}
	case w.closed:
		p = Probe{Status: ProbeClosed}
	}
	w.mu.Unlock()
	w.started.Do(w.start)
	return p
}

func (w *promptWindow) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}

func (w *promptWindow) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// read consumes lines until a callback URL parses, the input ends, or the window closes.
func (w *promptWindow) read(ctx context.Context, r *bufio.Reader, out io.Writer, redirect *url.URL) {
	for {
		line, err := r.ReadString('\n')
		if w.isClosed() || ctx.Err() != nil {
			return
		}
		if strings.TrimSpace(line) == "" {
			w.Close()
			return
		}
		callback, errParse := misc.ResolveCallbackURL(line, redirect)
		if errParse == nil && callback != nil && !MatchesRedirect(callback, redirect) {
			errParse = fmt.Errorf("expected an address starting with %s", redirect.String())
		}
		if errParse == nil && callback != nil {
			w.mu.Lock()
			if !w.closed {
				w.callback = callback
			}
			w.mu.Unlock()
			return
		}
		_, _ = fmt.Fprintf(out, "Could not read that callback URL (%v). Paste it again or press Enter to cancel:\n", errParse)
		if err != nil {
			w.Close()
			return
		}
	}
}
