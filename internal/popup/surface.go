// Package popup coordinates the consent surface of the authorization-code flow.
// The surface lives on a domain the application cannot read, so completion is
// detected by probing a Window until it either lands on the redirect target or
// is closed. A Coordinator resolves every launch to exactly one Result.
package popup

import (
	"context"
	"errors"
	"net/url"
)

// ProbeStatus is the observable state of a consent window.
type ProbeStatus int

const (
	// ProbePending means the window is open but its location cannot be read yet.
	ProbePending ProbeStatus = iota
	// ProbeReady means the window's location is readable; Probe.URL is set.
	ProbeReady
	// ProbeClosed means the window is gone.
	ProbeClosed
)

func (s ProbeStatus) String() string {
	switch s {
	case ProbePending:
		return "pending"
	case ProbeReady:
		return "ready"
	case ProbeClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Probe is a single observation of a window.
type Probe struct {
	Status ProbeStatus
	URL    *url.URL
}

// Size is the requested window size in pixels.
type Size struct {
	Width  int
	Height int
}

// Window is an open consent surface.
type Window interface {
	// Probe reports the window's current state without blocking.
	Probe() Probe
	// Close dismisses the window. It is safe to call more than once.
	Close()
}

// Surface opens consent windows.
type Surface interface {
	// Open shows target. A non-nil error means the window could not be opened.
	Open(ctx context.Context, target string, size Size) (Window, error)
}

// ErrPortInUse is wrapped by Open when the callback listener port is already bound.
var ErrPortInUse = errors.New("callback port is already in use")

// Reasons attached to AuthError by the coordinator itself.
const (
	ReasonPopupBlocked = "popup_blocked"
	ReasonNoCode       = "no_code"
)

// Result is the outcome of one launch: Code, AuthError, Cancelled or TimedOut.
type Result interface {
	isResult()
}

// Code carries the authorization code returned on the redirect.
type Code struct {
	Code  string
	State string
}

// AuthError carries an error reported on the redirect or detected locally.
type AuthError struct {
	Reason      string
	Description string
	Cause       error
}

// Cancelled means the user closed the window or the caller cancelled.
type Cancelled struct{}

// TimedOut means no result arrived within the coordinator timeout.
type TimedOut struct{}

func (Code) isResult()      {}
func (AuthError) isResult() {}
func (Cancelled) isResult() {}
func (TimedOut) isResult()  {}
