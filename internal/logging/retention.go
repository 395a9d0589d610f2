package logging

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const retentionInterval = time.Minute

var retentionCancel context.CancelFunc

// startRetentionLocked keeps the total size of *.log files in dir under maxMB,
// never touching the file currently written to. writerMu must be held.
func startRetentionLocked(dir string, maxMB int, activePath string) {
	stopRetentionLocked()
	dir = strings.TrimSpace(dir)
	if maxMB <= 0 || dir == "" {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	retentionCancel = cancel
	go func() {
		ticker := time.NewTicker(retentionInterval)
		defer ticker.Stop()
		for {
			if removed, err := pruneLogs(filepath.Clean(dir), int64(maxMB)<<20, activePath); err != nil {
				log.WithError(err).Warn("logging: log retention failed")
			} else if removed > 0 {
				log.Debugf("logging: removed %d old log file(s)", removed)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func stopRetentionLocked() {
	if retentionCancel != nil {
		retentionCancel()
		retentionCancel = nil
	}
}

type logFile struct {
	path    string
	size    int64
	modTime time.Time
}

// pruneLogs deletes the oldest log files until the directory fits in maxBytes.
func pruneLogs(dir string, maxBytes int64, activePath string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	if activePath != "" {
		activePath = filepath.Clean(activePath)
	}

	var files []logFile
	var total int64
	for _, entry := range entries {
		name := strings.ToLower(entry.Name())
		if entry.IsDir() || !(strings.HasSuffix(name, ".log") || strings.HasSuffix(name, ".log.gz")) {
			continue
		}
		info, errInfo := entry.Info()
		if errInfo != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, logFile{path: filepath.Join(dir, entry.Name()), size: info.Size(), modTime: info.ModTime()})
		total += info.Size()
	}
	if total <= maxBytes {
		return 0, nil
	}

	slices.SortFunc(files, func(a, b logFile) int { return a.modTime.Compare(b.modTime) })
	removed := 0
	for _, f := range files {
		if total <= maxBytes {
			break
		}
		if f.path == activePath {
			continue
		}
		if errRemove := os.Remove(f.path); errRemove != nil {
			log.WithError(errRemove).Warnf("logging: failed to remove %s", filepath.Base(f.path))
			continue
		}
		total -= f.size
		removed++
	}
	return removed, nil
}
