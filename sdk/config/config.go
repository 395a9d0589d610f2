// Package config provides the public SDK configuration API.
//
// It re-exports the configuration types and helpers so applications embedding the
// Google Ads session manager do not need to import internal packages.
package config

import internalconfig "github.com/carlwiddowson/googleadsdashboard/internal/config"

type SDKConfig = internalconfig.SDKConfig

type Config = internalconfig.Config

type OAuthConfig = internalconfig.OAuthConfig
type PopupConfig = internalconfig.PopupConfig
type APIConfig = internalconfig.APIConfig
type StoreConfig = internalconfig.StoreConfig

// Holder publishes reloaded configuration to a running manager.
type Holder = internalconfig.Holder

type Issue = internalconfig.Issue

const (
	DefaultScope     = internalconfig.DefaultScope
	DefaultRevokeURL = internalconfig.DefaultRevokeURL
	DefaultAuthDir   = internalconfig.DefaultAuthDir
)

func LoadConfig(configFile string) (*Config, error) { return internalconfig.LoadConfig(configFile) }

func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	return internalconfig.LoadConfigOptional(configFile, optional)
}

func NewHolder(cfg *Config) *Holder { return internalconfig.NewHolder(cfg) }
