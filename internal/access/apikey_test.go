package access

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthenticate(t *testing.T) {
	t.Parallel()
	keys := []string{" secret-key-123 ", "", "secret-key-123", "other-key-4567"}

	tests := []struct {
		name       string
		headers    map[string]string
		wantSource string
		wantCode   AuthErrorCode
	}{
		{"bearer", map[string]string{"Authorization": "Bearer secret-key-123"}, "authorization", ""},
		{"bearer lowercase scheme", map[string]string{"Authorization": "bearer other-key-4567"}, "authorization", ""},
		{"raw authorization", map[string]string{"Authorization": "secret-key-123"}, "authorization", ""},
		{"x-api-key", map[string]string{"X-API-Key": "other-key-4567"}, "x-api-key", ""},
		{"missing", nil, "", AuthErrorCodeNoCredentials},
		{"wrong", map[string]string{"Authorization": "Bearer nope"}, "", AuthErrorCodeInvalidCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/v0/auth/status", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			res, authErr := Authenticate(r, keys)
			if tt.wantCode != "" {
				if authErr == nil || authErr.Code != tt.wantCode {
					t.Fatalf("err = %v, want %s", authErr, tt.wantCode)
				}
				if authErr.HTTPStatusCode() != http.StatusUnauthorized {
					t.Fatalf("status = %d", authErr.HTTPStatusCode())
				}
				return
			}
			if authErr != nil {
				t.Fatalf("unexpected error: %v", authErr)
			}
			if res.Source != tt.wantSource {
				t.Fatalf("source = %s, want %s", res.Source, tt.wantSource)
			}
			if res.Principal == "secret-key-123" || res.Principal == "other-key-4567" {
				t.Fatal("principal is not masked")
			}
		})
	}
}

func TestNormalizeKeys(t *testing.T) {
	t.Parallel()
	got := NormalizeKeys([]string{" a ", "a", "", "b"})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("NormalizeKeys = %v", got)
	}
	if NormalizeKeys(nil) != nil {
		t.Fatal("NormalizeKeys(nil) != nil")
	}
}
