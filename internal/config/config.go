// Package config resolves spyglass runtime configuration from environment
// variables, the user config file, and a project-local dotfile. The
// environment is captured once at startup; commands read the snapshot.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// DefaultBaseURL is the hosted service's control-plane API root. OAuth and
// the "my regions" endpoint always go here; org-scoped endpoints are routed
// to regional roots discovered at runtime.
const DefaultBaseURL = "https://spyglass.io/api/0"

// EnvPrefix namespaces every spyglass environment variable.
const EnvPrefix = "SPYGLASS"

// Config is the process-wide runtime configuration snapshot.
type Config struct {
	// BaseURL is the control-plane API root. Overridable for self-hosted
	// deployments via SPYGLASS_URL.
	BaseURL string

	// ConfigDir holds the local store and user config file.
	ConfigDir string

	// Org and Project are environment-supplied target context. Project may
	// be an "org/project" combo, which takes precedence over Org.
	Org     string
	Project string
}

var (
	loadOnce sync.Once
	loaded   *Config
)

// Load returns the process configuration, reading the environment and config
// file on first call.
func Load() *Config {
	loadOnce.Do(func() {
		loaded = load()
	})
	return loaded
}

func load() *Config {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetDefault("url", DefaultBaseURL)

	dir := v.GetString("config_dir")
	if dir == "" {
		dir = defaultConfigDir()
	}

	// The user config file is optional; env always wins over it.
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(dir)
	_ = v.ReadInConfig()

	base := strings.TrimRight(v.GetString("url"), "/")
	if base == "" {
		base = DefaultBaseURL
	}

	return &Config{
		BaseURL:   base,
		ConfigDir: dir,
		Org:       v.GetString("org"),
		Project:   v.GetString("project"),
	}
}

func defaultConfigDir() string {
	if cfg, err := os.UserConfigDir(); err == nil {
		return filepath.Join(cfg, "spyglass")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".spyglass"
	}
	return filepath.Join(home, ".spyglass")
}

// SplitCombo splits an "org/project" combo value. ok is false when value is
// not a combo.
func SplitCombo(value string) (org, project string, ok bool) {
	i := strings.Index(value, "/")
	if i <= 0 || i == len(value)-1 {
		return "", "", false
	}
	return value[:i], value[i+1:], true
}

// ResetForTest clears the cached snapshot so tests can vary the environment.
func ResetForTest() {
	loadOnce = sync.Once{}
	loaded = nil
}
