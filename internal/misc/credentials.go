package misc

import (
	"fmt"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// LogSavingCredentials emits a consistent message when persisting the credential.
// Local paths are cleaned; remote locations such as bucket keys are logged as given.
func LogSavingCredentials(location string) {
	if location == "" {
		return
	}
	if !strings.Contains(location, "://") {
		location = filepath.Clean(location)
	}
	log.Debugf("Saving credentials to %s", location)
}

// MaskToken shortens a credential for log output.
func MaskToken(token string) string {
	token = strings.TrimSpace(token)
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return fmt.Sprintf("%s...%s", token[:4], token[len(token)-4:])
}
