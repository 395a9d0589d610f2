// Package main provides the entry point for the Google Ads authorization helper.
// It signs the user in to Google Ads through the OAuth consent screen, keeps the
// credential in the configured token store, and can expose it over a local HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/carlwiddowson/googleadsdashboard/internal/auth"
	"github.com/carlwiddowson/googleadsdashboard/internal/buildinfo"
	"github.com/carlwiddowson/googleadsdashboard/internal/cmd"
	"github.com/carlwiddowson/googleadsdashboard/internal/config"
	"github.com/carlwiddowson/googleadsdashboard/internal/logging"
	"github.com/carlwiddowson/googleadsdashboard/internal/store"
	"github.com/carlwiddowson/googleadsdashboard/internal/util"
	sdkAuth "github.com/carlwiddowson/googleadsdashboard/sdk/auth"
	log "github.com/sirupsen/logrus"
)

var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = ""
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	os.Exit(run())
}

// run parses flags, loads configuration, selects the token store and dispatches
// to the requested command. It returns the process exit code.
func run() int {
	var login bool
	var logout bool
	var status bool
	var token bool
	var serve bool
	var noBrowser bool
	var manual bool
	var ephemeral bool
	var configPath string

	flag.BoolVar(&login, "login", false, "Sign in to Google Ads")
	flag.BoolVar(&logout, "logout", false, "Sign out and clear the stored credential")
	flag.BoolVar(&status, "status", false, "Show the stored credential")
	flag.BoolVar(&token, "token", false, "Print a valid access token, refreshing it when needed")
	flag.BoolVar(&serve, "serve", false, "Run the local HTTP API")
	flag.BoolVar(&noBrowser, "no-browser", false, "Don't open browser automatically for OAuth")
	flag.BoolVar(&manual, "manual", false, "Paste the callback URL instead of listening on the redirect address")
	flag.BoolVar(&ephemeral, "ephemeral", false, "Keep credentials in memory only")
	flag.StringVar(&configPath, "config", DefaultConfigPath, "Configure File Path")
	flag.Parse()

	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("failed to get working directory: %v", err)
		return 1
	}

	// Load environment variables from .env if present.
	if errLoad := config.LoadDotEnv(filepath.Join(wd, ".env")); errLoad != nil {
		log.WithError(errLoad).Warn("failed to load .env file")
	}

	optional := configPath == ""
	if configPath == "" {
		configPath = filepath.Join(wd, "config.yaml")
	}
	cfg, err := config.LoadConfigOptional(configPath, optional)
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		return 1
	}

	if err = logging.ConfigureLogOutput(cfg); err != nil {
		log.Errorf("failed to configure log output: %v", err)
		return 1
	}
	if token && !cfg.LoggingToFile {
		// Keep stdout for the token itself.
		log.SetOutput(os.Stderr)
	}
	util.SetLogLevel(cfg)
	log.Debugf("googleadsdashboard Version: %s, Commit: %s, BuiltAt: %s", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	if resolvedAuthDir, errResolveAuthDir := util.ResolveAuthDir(cfg.AuthDir); errResolveAuthDir != nil {
		log.Errorf("failed to resolve auth directory: %v", errResolveAuthDir)
		return 1
	} else {
		cfg.AuthDir = resolvedAuthDir
	}

	for _, issue := range cfg.OAuth.Validate() {
		if issue.Severity == config.SeverityWarning {
			log.Warnf("config %s: %s", issue.Field, issue.Message)
		}
	}

	// Register the shared token store once so all components use the same persistence backend.
	var backend auth.Store
	if ephemeral {
		backend = store.NewMemoryStore()
		log.Info("ephemeral mode: credentials are kept in memory only")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		var name string
		backend, name, err = store.Open(ctx, cfg)
		cancel()
		if err != nil {
			log.Errorf("failed to initialize token store: %v", err)
			return 1
		}
		log.Debugf("token store backend: %s", name)
	}
	defer store.Close(backend)
	sdkAuth.RegisterTokenStore(backend)

	holder := config.NewHolder(cfg)
	options := &cmd.LoginOptions{
		NoBrowser: noBrowser,
		Manual:    manual,
	}

	switch {
	case login:
		return cmd.DoLogin(holder, options)
	case logout:
		return cmd.DoLogout(holder, options)
	case status:
		return cmd.DoStatus(holder, options)
	case token:
		return cmd.DoToken(holder, options)
	case serve:
		watchPath := configPath
		if _, errStat := os.Stat(watchPath); errStat != nil {
			watchPath = ""
		}
		return cmd.StartService(holder, watchPath, options)
	default:
		_, _ = fmt.Fprintf(os.Stderr, "googleadsdashboard %s: choose one of -login, -logout, -status, -token or -serve\n", buildinfo.Version)
		flag.Usage()
		return 2
	}
}
