package google

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/carlwiddowson/googleadsdashboard/internal/config"
)

var fixedNow = time.UnixMilli(1_700_000_000_000)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, config.OAuthConfig) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := testOAuthConfig()
	cfg.TokenURL = srv.URL + "/token"
	cfg.RevokeURL = srv.URL + "/revoke"
	client := NewClientWithHTTP(srv.Client()).WithClock(func() time.Time { return fixedNow })
	return client, cfg
}

func TestExchangeCodeSendsPublicClientForm(t *testing.T) {
	t.Parallel()

	client, cfg := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("content-type = %q", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		want := map[string]string{
			"client_id":     "123-abc.apps.googleusercontent.com",
			"code":          "C",
			"grant_type":    "authorization_code",
			"redirect_uri":  "http://localhost:8085/oauth/callback",
			"code_verifier": "V",
		}
		for key, value := range want {
			if got := r.PostForm.Get(key); got != value {
				t.Errorf("form %s = %q, want %q", key, got, value)
			}
		}
		if r.PostForm.Has("client_secret") {
			t.Error("client_secret must not be sent")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"T","refresh_token":"R","expires_in":3600,"token_type":"Bearer"}`))
	})

	ts, err := client.ExchangeCode(context.Background(), "C", cfg, "V")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}
	if ts.AccessToken != "T" || ts.RefreshToken != "R" {
		t.Fatalf("token set = %+v", ts)
	}
	if want := fixedNow.Add(time.Hour); !ts.ExpiresAt.Equal(want) {
		t.Fatalf("expires at = %v, want %v", ts.ExpiresAt, want)
	}
}

func TestExchangeCodeClassifiesProviderErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		body        string
		kind        ExchangeKind
		remediation bool
	}{
		{"invalid client", `{"error":"invalid_client","error_description":"The OAuth client was not found."}`, InvalidClient, true},
		{"redirect mismatch", `{"error":"redirect_uri_mismatch","error_description":"Bad Request"}`, RedirectMismatch, true},
		{"invalid grant", `{"error":"invalid_grant","error_description":"Bad Request"}`, ExchangeOther, false},
		{"non json", `<html>oops</html>`, ExchangeOther, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			client, cfg := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := client.ExchangeCode(context.Background(), "C", cfg, "")
			var exErr *TokenExchangeError
			if !errors.As(err, &exErr) {
				t.Fatalf("error = %v, want *TokenExchangeError", err)
			}
			if exErr.Kind != tc.kind {
				t.Fatalf("kind = %s, want %s", exErr.Kind, tc.kind)
			}
			if got := exErr.Remediation() != ""; got != tc.remediation {
				t.Fatalf("remediation present = %v, want %v", got, tc.remediation)
			}
		})
	}
}

func TestExchangeCodeNetworkFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	tokenURL := srv.URL + "/token"
	srv.Close()

	cfg := testOAuthConfig()
	cfg.TokenURL = tokenURL
	_, err := NewClientWithHTTP(&http.Client{Timeout: time.Second}).ExchangeCode(context.Background(), "C", cfg, "")
	var exErr *TokenExchangeError
	if !errors.As(err, &exErr) {
		t.Fatalf("error = %v, want *TokenExchangeError", err)
	}
	if exErr.Kind != ExchangeNetwork {
		t.Fatalf("kind = %s, want network", exErr.Kind)
	}
	if strings.Contains(exErr.Message, "127.0.0.1") {
		t.Fatalf("message leaks transport detail: %q", exErr.Message)
	}
}

func TestRefreshWithoutRotatedRefreshToken(t *testing.T) {
	t.Parallel()

	client, cfg := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("grant_type") != "refresh_token" || r.PostForm.Get("refresh_token") != "R" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		if r.PostForm.Has("redirect_uri") {
			t.Error("redirect_uri is only sent with the code grant")
		}
		_, _ = w.Write([]byte(`{"access_token":"T2","expires_in":3600}`))
	})

	ts, err := client.Refresh(context.Background(), "R", cfg)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if ts.AccessToken != "T2" || ts.RefreshToken != "" {
		t.Fatalf("token set = %+v", ts)
	}
}

func TestRefreshInvalidGrant(t *testing.T) {
	t.Parallel()

	client, cfg := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`))
	})
	_, err := client.Refresh(context.Background(), "R", cfg)
	var rErr *RefreshError
	if !errors.As(err, &rErr) || rErr.Kind != InvalidGrant {
		t.Fatalf("error = %v, want invalid_grant RefreshError", err)
	}
}

func TestRevokePostsToken(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client, cfg := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = r.ParseForm()
		if r.URL.Path != "/revoke" || r.PostForm.Get("token") != "R" {
			t.Errorf("unexpected revoke request %s %v", r.URL.Path, r.PostForm)
		}
	})
	if err := client.Revoke(context.Background(), "R", cfg); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if err := client.Revoke(context.Background(), "", cfg); err != nil {
		t.Fatalf("Revoke(empty) error = %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("revoke calls = %d, want 1", got)
	}
}
