package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/carlwiddowson/googleadsdashboard/internal/config"
	"github.com/fsnotify/fsnotify"
)

func unsetClientEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GOOGLE_OAUTH_CLIENT_ID", "")
	_ = os.Unsetenv("GOOGLE_OAUTH_CLIENT_ID")
}

func writeConfig(t *testing.T, path, clientID string) {
	t.Helper()
	body := "oauth:\n  client-id: " + clientID + "\n  redirect-uri: http://localhost:8085/oauth2callback\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestWatcherReloadsConfigIntoHolder(t *testing.T) {
	unsetClientEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "first.apps.googleusercontent.com")

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	holder := config.NewHolder(cfg)
	reloaded := make(chan *config.Config, 4)

	w, err := NewWatcher(path, holder, func(c *config.Config) { reloaded <- c })
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.debounce = 20 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err = w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = w.Stop() }()

	writeConfig(t, path, "second.apps.googleusercontent.com")

	select {
	case c := <-reloaded:
		if c.OAuth.ClientID != "second.apps.googleusercontent.com" {
			t.Fatalf("reloaded client id = %q", c.OAuth.ClientID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
	if got := holder.OAuthConfig().ClientID; got != "second.apps.googleusercontent.com" {
		t.Fatalf("holder client id = %q", got)
	}
}

func TestHandleEventIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "x.apps.googleusercontent.com")
	w, err := NewWatcher(path, config.NewHolder(&config.Config{}), nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer func() { _ = w.Stop() }()

	w.handleEvent(fsnotify.Event{Name: filepath.Join(dir, "other.yaml"), Op: fsnotify.Write})
	w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Chmod})
	w.configReloadMu.Lock()
	scheduled := w.configReloadTimer != nil
	w.configReloadMu.Unlock()
	if scheduled {
		t.Fatal("reload scheduled for an unrelated event")
	}

	w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Write})
	w.configReloadMu.Lock()
	scheduled = w.configReloadTimer != nil
	w.configReloadMu.Unlock()
	if !scheduled {
		t.Fatal("reload not scheduled for a config write")
	}
}

func TestReloadSkipsUnchangedContent(t *testing.T) {
	unsetClientEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "x.apps.googleusercontent.com")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	holder := config.NewHolder(cfg)
	calls := 0
	w, err := NewWatcher(path, holder, func(*config.Config) { calls++ })
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer func() { _ = w.Stop() }()

	// unchanged content hashes equal and is skipped
	w.reloadConfigIfChanged()
	if calls != 0 {
		t.Fatalf("reload ran for unchanged content")
	}

	writeConfig(t, path, "y.apps.googleusercontent.com")
	w.reloadConfigIfChanged()
	if calls != 1 {
		t.Fatalf("reload calls = %d, want 1", calls)
	}
	if holder.Load().OAuth.ClientID != "y.apps.googleusercontent.com" {
		t.Fatal("holder not updated")
	}
}
