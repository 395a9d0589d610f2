package misc

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// GenerateRandomState generates a cryptographically secure random state parameter
// for OAuth2 flows to prevent CSRF attacks.
func GenerateRandomState() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// ResolveCallbackURL turns user input pasted from a browser address bar into an
// absolute callback URL rooted at redirect. Input may be a full URL, a bare query
// string ("?code=..."), or "code=...&state=..." pairs. Parameters found in the
// fragment are folded into the query. Empty input yields nil.
func ResolveCallbackURL(input string, redirect *url.URL) (*url.URL, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, nil
	}
	if redirect == nil {
		return nil, fmt.Errorf("redirect target is required")
	}

	var candidate *url.URL
	switch {
	case strings.Contains(trimmed, "://"):
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return nil, err
		}
		candidate = parsed
	case strings.HasPrefix(trimmed, "?") || strings.Contains(trimmed, "="):
		query := strings.TrimPrefix(trimmed, "?")
		if _, err := url.ParseQuery(query); err != nil {
			return nil, fmt.Errorf("invalid callback query: %w", err)
		}
		u := *redirect
		u.RawQuery = query
		u.Fragment = ""
		candidate = &u
	default:
		return nil, fmt.Errorf("invalid callback URL")
	}

	if candidate.Fragment != "" {
		if fragQuery, errFrag := url.ParseQuery(candidate.Fragment); errFrag == nil {
			query := candidate.Query()
			for _, key := range []string{"code", "state", "error", "error_description"} {
				if query.Get(key) == "" && fragQuery.Get(key) != "" {
					query.Set(key, fragQuery.Get(key))
				}
			}
			candidate.RawQuery = query.Encode()
			candidate.Fragment = ""
		}
	}
	return candidate, nil
}
