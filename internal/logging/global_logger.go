// Package logging configures the shared logrus logger: a compact line format,
// optional rotating file output, Gin integration for the local API, and
// retention of old log files.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/carlwiddowson/googleadsdashboard/internal/config"
	"github.com/carlwiddowson/googleadsdashboard/internal/util"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Field names attached to log entries across the module.
const (
	FieldAttempt   = "attempt"
	FieldRequestID = "request_id"
	FieldState     = "state"
	FieldSurface   = "surface"
	FieldBackend   = "backend"
)

var (
	setupOnce      sync.Once
	writerMu       sync.Mutex
	logWriter      *lumberjack.Logger
	ginInfoWriter  *io.PipeWriter
	ginErrorWriter *io.PipeWriter
)

// LogFormatter renders one line per entry:
// [2026-01-02 15:04:05] [1f0c2b7e] [info ] [manager.go:142] signed in to Google Ads backend=file
// The bracketed id is the sign-in attempt or API request the entry belongs to.
type LogFormatter struct{}

// logFieldOrder lists the fields printed after the message, in order.
var logFieldOrder = []string{FieldState, FieldSurface, FieldBackend, "path", "error"}

// Format renders a single log entry with custom formatting.
func (m *LogFormatter) Format(entry *log.Entry) ([]byte, error) {
	buffer := entry.Buffer
	if buffer == nil {
		buffer = &bytes.Buffer{}
	}

	timestamp := entry.Time.Format("2006-01-02 15:04:05")
	message := strings.TrimRight(entry.Message, "\r\n")

	id := "--------"
	for _, key := range []string{FieldAttempt, FieldRequestID} {
		if v, ok := entry.Data[key].(string); ok && v != "" {
			id = shortID(v)
			break
		}
	}

	level := entry.Level.String()
	if level == "warning" {
		level = "warn"
	}

	var fields []string
	for _, k := range logFieldOrder {
		if v, ok := entry.Data[k]; ok {
			fields = append(fields, fmt.Sprintf("%s=%v", k, v))
		}
	}
	fieldsStr := ""
	if len(fields) > 0 {
		fieldsStr = " " + strings.Join(fields, " ")
	}

	if entry.Caller != nil {
		_, _ = fmt.Fprintf(buffer, "[%s] [%s] [%-5s] [%s:%d] %s%s\n", timestamp, id, level, filepath.Base(entry.Caller.File), entry.Caller.Line, message, fieldsStr)
	} else {
		_, _ = fmt.Fprintf(buffer, "[%s] [%s] [%-5s] %s%s\n", timestamp, id, level, message, fieldsStr)
	}
	return buffer.Bytes(), nil
}

// shortID keeps the first eight characters of a uuid so lines stay aligned.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// SetupBaseLogger configures the shared logrus instance and Gin writers.
// It is safe to call multiple times; initialization happens only once.
func SetupBaseLogger() {
	setupOnce.Do(func() {
		log.SetOutput(os.Stdout)
		log.SetReportCaller(true)
		log.SetFormatter(&LogFormatter{})

		ginInfoWriter = log.StandardLogger().Writer()
		gin.DefaultWriter = ginInfoWriter
		ginErrorWriter = log.StandardLogger().WriterLevel(log.ErrorLevel)
		gin.DefaultErrorWriter = ginErrorWriter
		gin.DebugPrintFunc = func(format string, values ...any) {
			log.StandardLogger().Debugf(strings.TrimRight(format, "\r\n"), values...)
		}

		log.RegisterExitHandler(closeLogOutputs)
	})
}

// ResolveLogDirectory picks the log directory: log-dir, then WRITABLE_PATH/logs,
// then <auth-dir>/logs.
func ResolveLogDirectory(cfg *config.Config) string {
	if cfg != nil && strings.TrimSpace(cfg.LogDir) != "" {
		if dir, err := util.ResolveAuthDir(cfg.LogDir); err == nil && dir != "" {
			return dir
		}
	}
	if base := util.WritablePath(); base != "" {
		return filepath.Join(base, "logs")
	}
	if cfg != nil {
		authDir, err := util.ResolveAuthDir(cfg.AuthDir)
		if err != nil {
			log.Warnf("Failed to resolve auth-dir %q for log directory: %v", cfg.AuthDir, err)
		}
		if authDir != "" {
			return filepath.Join(authDir, "logs")
		}
	}
	return "logs"
}

// ConfigureLogOutput switches the global log destination between a rotating file and stdout.
func ConfigureLogOutput(cfg *config.Config) error {
	SetupBaseLogger()
	if cfg == nil {
		cfg = &config.Config{}
	}

	writerMu.Lock()
	defer writerMu.Unlock()

	logDir := ResolveLogDirectory(cfg)
	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}

	activePath := ""
	if cfg.LoggingToFile {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return fmt.Errorf("logging: failed to create log directory: %w", err)
		}
		activePath = filepath.Join(logDir, "adsauth.log")
		logWriter = &lumberjack.Logger{
			Filename: activePath,
			MaxSize:  10,
		}
		log.SetOutput(logWriter)
	} else {
		log.SetOutput(os.Stdout)
	}

	startRetentionLocked(logDir, cfg.LogsMaxTotalSizeMB, activePath)
	return nil
}

func closeLogOutputs() {
	writerMu.Lock()
	defer writerMu.Unlock()

	stopRetentionLocked()
	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}
	if ginInfoWriter != nil {
		_ = ginInfoWriter.Close()
		ginInfoWriter = nil
	}
	if ginErrorWriter != nil {
		_ = ginErrorWriter.Close()
		ginErrorWriter = nil
	}
}
