package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/carlwiddowson/googleadsdashboard/internal/api"
	"github.com/carlwiddowson/googleadsdashboard/internal/config"
	"github.com/carlwiddowson/googleadsdashboard/internal/watcher"
	sdkAuth "github.com/carlwiddowson/googleadsdashboard/sdk/auth"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// StartService runs the local API until SIGINT or SIGTERM and returns the exit code.
// When configPath is set the file is watched and reloaded into holder.
func StartService(holder *config.Holder, configPath string, options *LoginOptions) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return runService(ctx, holder, configPath, options)
}

func runService(ctx context.Context, holder *config.Holder, configPath string, options *LoginOptions) int {
	manager := newAuthManager(holder, options)
	manager.OnStateChange(func(state sdkAuth.State, reason error) {
		entry := log.WithField("state", state.String())
		if reason != nil {
			entry = entry.WithError(reason)
		}
		entry.Info("session state changed")
	})

	if strings.TrimSpace(configPath) != "" {
		w, err := watcher.NewWatcher(configPath, holder, func(*config.Config) {
			log.Info("configuration reloaded; changes apply to the next sign-in")
		})
		if err != nil {
			log.Errorf("failed to create config watcher: %v", err)
			return 1
		}
		if err = w.Start(ctx); err != nil {
			log.Errorf("failed to start config watcher: %v", err)
			return 1
		}
		defer func() {
			if errStop := w.Stop(); errStop != nil {
				log.Debugf("config watcher stop: %v", errStop)
			}
		}()
	}

	server := api.NewServer(holder, manager)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error(err)
			return 1
		}
		return 0
	case <-ctx.Done():
	}

	log.Info("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error(err)
		return 1
	}
	if err := <-errCh; err != nil {
		log.Error(err)
		return 1
	}
	return 0
}
