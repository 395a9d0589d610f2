// events.go implements fsnotify event handling for the configuration file.
package watcher

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// start watches the directory holding the config file; editors that save by
// rename would otherwise drop a watch placed on the file itself.
func (w *Watcher) start(ctx context.Context) error {
	dir := filepath.Dir(w.configPath)
	if errAdd := w.watcher.Add(dir); errAdd != nil {
		log.Errorf("failed to watch config directory %s: %v", dir, errAdd)
		return errAdd
	}
	log.Debugf("watching config file: %s", w.configPath)

	go w.processEvents(ctx)
	return nil
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case errWatch, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("file watcher error: %v", errWatch)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	configOps := fsnotify.Write | fsnotify.Create | fsnotify.Rename
	if filepath.Clean(event.Name) != w.configPath || event.Op&configOps == 0 {
		return
	}
	log.Debugf("config file change details - operation: %s, timestamp: %s", event.Op.String(), time.Now().Format("2006-01-02 15:04:05.000"))
	w.scheduleConfigReload()
}
