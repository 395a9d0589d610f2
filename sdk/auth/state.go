package auth

// State is the session state tracked by Manager.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateRefreshing
	// StateFailed is transient: listeners see it once before the reset to StateUnauthenticated.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StateListener observes transitions. reason is set only for StateFailed.
// Listeners run synchronously after the manager lock is released.
type StateListener func(state State, reason error)
