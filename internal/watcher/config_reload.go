// config_reload.go implements debounced configuration hot reload.
package watcher

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"time"

	"github.com/carlwiddowson/googleadsdashboard/internal/config"
	"github.com/carlwiddowson/googleadsdashboard/internal/util"
	"github.com/carlwiddowson/googleadsdashboard/internal/watcher/diff"
	log "github.com/sirupsen/logrus"
)

func (w *Watcher) stopConfigReloadTimer() {
	w.configReloadMu.Lock()
	if w.configReloadTimer != nil {
		w.configReloadTimer.Stop()
		w.configReloadTimer = nil
	}
	w.configReloadMu.Unlock()
}

func (w *Watcher) scheduleConfigReload() {
	w.configReloadMu.Lock()
	defer w.configReloadMu.Unlock()
	if w.configReloadTimer != nil {
		w.configReloadTimer.Stop()
	}
	w.configReloadTimer = time.AfterFunc(w.debounce, func() {
		w.configReloadMu.Lock()
		w.configReloadTimer = nil
		w.configReloadMu.Unlock()
		w.reloadConfigIfChanged()
	})
}

func (w *Watcher) currentHash() string {
	data, err := os.ReadFile(w.configPath)
	if err != nil || len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (w *Watcher) reloadConfigIfChanged() {
	data, err := os.ReadFile(w.configPath)
	if err != nil {
		log.Errorf("failed to read config file for hash check: %v", err)
		return
	}
	if len(data) == 0 {
		log.Debugf("ignoring empty config file write event")
		return
	}
	sum := sha256.Sum256(data)
	newHash := hex.EncodeToString(sum[:])

	w.hashMu.Lock()
	unchanged := w.lastConfigHash != "" && w.lastConfigHash == newHash
	w.hashMu.Unlock()
	if unchanged {
		log.Debugf("config file content unchanged (hash match), skipping reload")
		return
	}

	log.Infof("config file changed, reloading: %s", w.configPath)
	if w.reloadConfig() {
		w.hashMu.Lock()
		w.lastConfigHash = newHash
		w.hashMu.Unlock()
	}
}

func (w *Watcher) reloadConfig() bool {
	newConfig, errLoadConfig := config.LoadConfig(w.configPath)
	if errLoadConfig != nil {
		log.Errorf("failed to reload config: %v", errLoadConfig)
		return false
	}
	if resolved, errResolve := util.ResolveAuthDir(newConfig.AuthDir); errResolve != nil {
		log.Errorf("failed to resolve auth directory from config: %v", errResolve)
	} else {
		newConfig.AuthDir = resolved
	}

	var oldConfig *config.Config
	if w.holder != nil {
		oldConfig = w.holder.Load()
		w.holder.Store(newConfig)
	}

	util.SetLogLevel(newConfig)
	if details := diff.BuildConfigChangeDetails(oldConfig, newConfig); len(details) > 0 {
		log.Debugf("config changes detected:")
		for _, d := range details {
			log.Debugf("  %s", d)
		}
	} else if oldConfig != nil {
		log.Debugf("no material config field changes detected")
	}
	for _, issue := range newConfig.OAuth.Validate() {
		log.Warnf("oauth config %s: %s", issue.Severity, issue.Message)
	}

	log.Info("config successfully reloaded")
	if w.reloadCallback != nil {
		w.reloadCallback(newConfig)
	}
	return true
}
