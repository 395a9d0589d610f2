// Package diff describes configuration changes for reload logging. Secrets are
// never printed; only whether they were added, changed or removed.
package diff

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/carlwiddowson/googleadsdashboard/internal/config"
)

// BuildConfigChangeDetails lists human-readable differences between two configs.
func BuildConfigChangeDetails(oldCfg, newCfg *config.Config) []string {
	if oldCfg == nil || newCfg == nil {
		return nil
	}
	var changes []string
	add := func(format string, args ...any) {
		changes = append(changes, fmt.Sprintf(format, args...))
	}

	o, n := oldCfg.OAuth, newCfg.OAuth
	if o.ClientID != n.ClientID {
		add("oauth.client-id: %s -> %s", o.Redacted().ClientID, n.Redacted().ClientID)
	}
	if o.RedirectURI != n.RedirectURI {
		add("oauth.redirect-uri: %s -> %s", orNone(o.RedirectURI), orNone(n.RedirectURI))
	}
	if !slices.Equal(o.Scopes, n.Scopes) {
		add("oauth.scopes: %s -> %s", strings.Join(o.Scopes, " "), strings.Join(n.Scopes, " "))
	}
	if o.IncludeGrantedScopes != n.IncludeGrantedScopes {
		add("oauth.include-granted-scopes: %t -> %t", o.IncludeGrantedScopes, n.IncludeGrantedScopes)
	}
	if o.AuthURL != n.AuthURL {
		add("oauth.auth-url: %s -> %s", o.AuthURL, n.AuthURL)
	}
	if o.TokenURL != n.TokenURL {
		add("oauth.token-url: %s -> %s", o.TokenURL, n.TokenURL)
	}
	if o.RevokeOnSignOut != n.RevokeOnSignOut {
		add("oauth.revoke-on-sign-out: %t -> %t", o.RevokeOnSignOut, n.RevokeOnSignOut)
	}

	op, np := oldCfg.Popup, newCfg.Popup
	if op.Width != np.Width || op.Height != np.Height {
		add("popup.size: %dx%d -> %dx%d", op.Width, op.Height, np.Width, np.Height)
	}
	if op.ProbeInterval != np.ProbeInterval {
		add("popup.probe-interval: %s -> %s", op.ProbeInterval, np.ProbeInterval)
	}
	if op.Timeout != np.Timeout {
		add("popup.timeout: %s -> %s", op.Timeout, np.Timeout)
	}
	if op.ManualPrompt != np.ManualPrompt {
		add("popup.manual-prompt: %t -> %t", op.ManualPrompt, np.ManualPrompt)
	}

	if oldCfg.API.Host != newCfg.API.Host || oldCfg.API.Port != newCfg.API.Port {
		add("api.address: %s:%d -> %s:%d (restart required)", oldCfg.API.Host, oldCfg.API.Port, newCfg.API.Host, newCfg.API.Port)
	}
	if len(oldCfg.API.Keys) != len(newCfg.API.Keys) {
		add("api.keys count: %d -> %d", len(oldCfg.API.Keys), len(newCfg.API.Keys))
	} else if !slices.Equal(oldCfg.API.Keys, newCfg.API.Keys) {
		add("api.keys: updated")
	}

	if oldCfg.ProxyURL != newCfg.ProxyURL {
		add("proxy-url: %s -> %s", formatProxyURL(oldCfg.ProxyURL), formatProxyURL(newCfg.ProxyURL))
	}
	if oldCfg.Store != newCfg.Store {
		add("store: backend settings changed (restart required)")
	}
	if oldCfg.AuthDir != newCfg.AuthDir {
		add("auth-dir: %s -> %s", oldCfg.AuthDir, newCfg.AuthDir)
	}
	if oldCfg.Debug != newCfg.Debug {
		add("debug: %t -> %t", oldCfg.Debug, newCfg.Debug)
	}
	if oldCfg.LoggingToFile != newCfg.LoggingToFile {
		add("logging-to-file: %t -> %t", oldCfg.LoggingToFile, newCfg.LoggingToFile)
	}
	if oldCfg.LogsMaxTotalSizeMB != newCfg.LogsMaxTotalSizeMB {
		add("logs-max-total-size-mb: %d -> %d", oldCfg.LogsMaxTotalSizeMB, newCfg.LogsMaxTotalSizeMB)
	}
	return changes
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "<none>"
	}
	return s
}

// formatProxyURL keeps scheme and host only.
func formatProxyURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "<none>"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "<redacted>"
	}
	if u.Scheme != "" && u.Host != "" {
		return u.Scheme + "://" + u.Host
	}
	// host:port without a scheme parses with the host as scheme
	if u2, errHost := url.Parse("//" + raw); errHost == nil && u2.Host != "" && !strings.HasPrefix(raw, "/") {
		return u2.Host
	}
	return "<redacted>"
}
