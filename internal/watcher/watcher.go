// Package watcher watches the configuration file and hot-reloads it into a config.Holder.
// It supports cross-platform fsnotify event handling.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/carlwiddowson/googleadsdashboard/internal/config"
	"github.com/fsnotify/fsnotify"
)

const configReloadDebounce = 150 * time.Millisecond

// Watcher reloads the configuration file when it changes on disk.
type Watcher struct {
	configPath        string
	holder            *config.Holder
	reloadCallback    func(*config.Config)
	watcher           *fsnotify.Watcher
	configReloadMu    sync.Mutex
	configReloadTimer *time.Timer
	hashMu            sync.Mutex
	lastConfigHash    string
	debounce          time.Duration
}

// NewWatcher creates a watcher for configPath. Successful reloads are stored in
// holder and then passed to reloadCallback, which may be nil.
func NewWatcher(configPath string, holder *config.Holder, reloadCallback func(*config.Config)) (*Watcher, error) {
	watcher, errNewWatcher := fsnotify.NewWatcher()
	if errNewWatcher != nil {
		return nil, errNewWatcher
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		abs = configPath
	}
	w := &Watcher{
		configPath:     filepath.Clean(abs),
		holder:         holder,
		reloadCallback: reloadCallback,
		watcher:        watcher,
		debounce:       configReloadDebounce,
	}
	w.lastConfigHash = w.currentHash()
	return w, nil
}

// Start begins watching the configuration file.
func (w *Watcher) Start(ctx context.Context) error {
	return w.start(ctx)
}

// Stop stops the file watcher.
func (w *Watcher) Stop() error {
	w.stopConfigReloadTimer()
	return w.watcher.Close()
}
