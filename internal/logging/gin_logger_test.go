package logging

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func TestGinLogrusRecoveryRepanicsErrAbortHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(GinLogrusRecovery())
	engine.GET("/abort", func(c *gin.Context) {
		panic(http.ErrAbortHandler)
	})

	req := httptest.NewRequest(http.MethodGet, "/abort", nil)
	recorder := httptest.NewRecorder()

	defer func() {
		recovered := recover()
		if recovered == nil {
			t.Fatalf("expected panic, got nil")
		}
		err, ok := recovered.(error)
		if !ok {
			t.Fatalf("expected error panic, got %T", recovered)
		}
		if !errors.Is(err, http.ErrAbortHandler) {
			t.Fatalf("expected ErrAbortHandler, got %v", err)
		}
		if err != http.ErrAbortHandler {
			t.Fatalf("expected exact ErrAbortHandler sentinel, got %v", err)
		}
	}()

	engine.ServeHTTP(recorder, req)
}

func TestGinLogrusRecoveryHandlesRegularPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(GinLogrusRecovery())
	engine.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	recorder := httptest.NewRecorder()

	engine.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", recorder.Code)
	}
}

func TestMaskSensitiveQuery(t *testing.T) {
	got := maskSensitiveQuery("code=abc&state=xyz&verbose=1")
	if strings.Contains(got, "abc") || strings.Contains(got, "xyz") {
		t.Fatalf("sensitive values leaked: %s", got)
	}
	if !strings.Contains(got, "verbose=1") {
		t.Fatalf("non-sensitive value dropped: %s", got)
	}
}

func TestGinLogrusLoggerSetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seen string
	engine := gin.New()
	engine.Use(GinLogrusLogger())
	engine.GET("/v0/auth/status", func(c *gin.Context) {
		seen = GetRequestID(c.Request.Context())
		if GetGinRequestID(c) != seen {
			t.Errorf("gin and context request ids differ")
		}
		c.Status(http.StatusNoContent)
	})

	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v0/auth/status", nil))
	if seen == "" {
		t.Fatal("request id not set")
	}
}

func TestLogFormatterUsesAttemptID(t *testing.T) {
	logger := log.New()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.SetFormatter(&LogFormatter{})

	logger.WithFields(log.Fields{FieldAttempt: "0123456789abcdef", FieldState: "authenticating"}).Info("launching")
	line := buf.String()
	if !strings.Contains(line, "[01234567]") || !strings.Contains(line, "state=authenticating") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.HasSuffix(line, "\n") {
		t.Fatalf("line not terminated: %q", line)
	}
}

func TestEntryCarriesRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1234")
	if got := Entry(ctx).Data[FieldRequestID]; got != "req-1234" {
		t.Fatalf("request id field = %v", got)
	}
	if _, ok := Entry(context.Background()).Data[FieldRequestID]; ok {
		t.Fatal("entry without request id should not carry the field")
	}
	if WithRequestID(context.Background(), "") != context.Background() {
		t.Fatal("empty id should leave the context unchanged")
	}
}
