package access

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Result describes an authenticated caller.
type Result struct {
	// Principal is the matched key, masked for logging.
	Principal string
	// Source names where the key was found.
	Source string
}

// Authenticate matches the request's API key against keys. The key is read from
// "Authorization: Bearer <key>" or the X-API-Key header.
func Authenticate(r *http.Request, keys []string) (*Result, *AuthError) {
	authHeader := r.Header.Get("Authorization")
	apiKeyHeader := r.Header.Get("X-Api-Key")
	if authHeader == "" && apiKeyHeader == "" {
		return nil, NewNoCredentialsError()
	}

	candidates := []struct {
		value  string
		source string
	}{
		{extractBearerToken(authHeader), "authorization"},
		{strings.TrimSpace(apiKeyHeader), "x-api-key"},
	}
	normalized := NormalizeKeys(keys)
	for _, candidate := range candidates {
		if candidate.value == "" {
			continue
		}
		for _, key := range normalized {
			if subtle.ConstantTimeCompare([]byte(candidate.value), []byte(key)) == 1 {
				return &Result{Principal: maskKey(key), Source: candidate.source}, nil
			}
		}
	}
	return nil, NewInvalidCredentialError()
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return header
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return header
	}
	return strings.TrimSpace(parts[1])
}

// NormalizeKeys trims keys and drops blanks and duplicates.
func NormalizeKeys(keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		if _, exists := seen[trimmedKey]; exists {
			continue
		}
		seen[trimmedKey] = struct{}{}
		normalized = append(normalized, trimmedKey)
	}
	return normalized
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
