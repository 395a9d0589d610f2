package config

import "sync/atomic"

// Holder publishes the current configuration to concurrent readers.
// It implements Provider so the core observes reloads on the next sign-in.
type Holder struct {
	current atomic.Pointer[Config]
}

// NewHolder returns a holder initialised with cfg.
func NewHolder(cfg *Config) *Holder {
	h := &Holder{}
	h.Store(cfg)
	return h
}

// Load returns the current configuration.
func (h *Holder) Load() *Config {
	return h.current.Load()
}

// Store swaps in a new configuration. A nil cfg is ignored.
func (h *Holder) Store(cfg *Config) {
	if cfg == nil {
		return
	}
	h.current.Store(cfg)
}

// OAuthConfig implements Provider.
func (h *Holder) OAuthConfig() OAuthConfig {
	return h.Load().OAuthConfig()
}
