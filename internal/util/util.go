// Package util provides helper functions shared by the authorization core:
// log level management, auth directory resolution, proxy-aware HTTP clients,
// and SSH tunnel hints for remote sign-in.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/carlwiddowson/googleadsdashboard/internal/config"
	log "github.com/sirupsen/logrus"
)

// SetLogLevel configures the logrus log level based on the configuration.
// It sets the log level to DebugLevel if debug mode is enabled, otherwise to InfoLevel.
func SetLogLevel(cfg *config.Config) {
	currentLevel := log.GetLevel()
	newLevel := log.InfoLevel
	if cfg != nil && cfg.Debug {
		newLevel = log.DebugLevel
	}
	if currentLevel != newLevel {
		log.SetLevel(newLevel)
		log.Debugf("log level changed from %s to %s", currentLevel, newLevel)
	}
}

// ResolveAuthDir expands a leading tilde (~) to the user's home directory and returns a cleaned path.
func ResolveAuthDir(authDir string) (string, error) {
	authDir = strings.TrimSpace(authDir)
	if authDir == "" {
		return "", nil
	}
	if !strings.HasPrefix(authDir, "~") {
		return filepath.Clean(authDir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve auth dir: %w", err)
	}
	remainder := strings.TrimLeft(strings.TrimPrefix(authDir, "~"), "/\\")
	if remainder == "" {
		return filepath.Clean(home), nil
	}
	normalized := strings.ReplaceAll(remainder, "\\", "/")
	return filepath.Clean(filepath.Join(home, filepath.FromSlash(normalized))), nil
}

// WritablePath returns the cleaned WRITABLE_PATH environment variable when it is set.
func WritablePath() string {
	for _, key := range []string{"WRITABLE_PATH", "writable_path"} {
		if value, ok := os.LookupEnv(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return filepath.Clean(trimmed)
			}
		}
	}
	return ""
}
