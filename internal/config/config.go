package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Storage    StorageConfig    `yaml:"storage" mapstructure:"storage"`
	Enrichment EnrichmentConfig `yaml:"enrichment" mapstructure:"enrichment"`
	Contacts   ContactsConfig   `yaml:"contacts" mapstructure:"contacts"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

type StorageConfig struct {
	Backend      string        `yaml:"backend" mapstructure:"backend"`
	Path         string        `yaml:"path" mapstructure:"path"`
	Key          string        `yaml:"key" mapstructure:"key"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

type EnrichmentConfig struct {
	BaseURL    string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey     string        `yaml:"api_key" mapstructure:"api_key"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"`
}

type ContactsConfig struct {
	Paths  []string `yaml:"paths" mapstructure:"paths"`
	Access string   `yaml:"access" mapstructure:"access"`
}

type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file" mapstructure:"file"`
}

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"

	AccessGranted = "granted"
	AccessDenied  = "denied"
)

var envVarRe = regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`)

func expandEnv(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimPrefix(match, "$")
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// expandPath resolves $VARS and a leading ~/.
func expandPath(p string) string {
	p = expandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:      BackendFile,
			Key:          "favourites",
			WriteTimeout: 5 * time.Second,
		},
		Enrichment: EnrichmentConfig{
			BaseURL:    "https://api.genderize.io",
			APIKey:     "$GENDERIZE_API_KEY",
			Timeout:    5 * time.Second,
			MaxRetries: 2,
		},
		Contacts: ContactsConfig{
			Paths:  []string{filepath.Join(Dir(), "contacts", "**", "*.{json,yaml,yml,csv,xlsx}")},
			Access: AccessGranted,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Dir is the per-user config directory.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "favourites")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "favourites")
}

// Load reads config.yaml from the working directory or the config dir,
// overlays FAVOURITES_* environment variables and validates the result.
// A missing file is not an error.
func Load() (*Config, error) {
	return load(viper.New(), ".", Dir())
}

func load(v *viper.Viper, paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("FAVOURITES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only applies to keys viper already knows about.
	for _, key := range []string{
		"storage.backend", "storage.path", "storage.key", "storage.write_timeout",
		"enrichment.base_url", "enrichment.api_key", "enrichment.timeout", "enrichment.max_retries",
		"contacts.paths", "contacts.access", "log.level", "log.file",
	} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.Enrichment.APIKey = expandEnv(cfg.Enrichment.APIKey)
	cfg.Enrichment.BaseURL = expandEnv(cfg.Enrichment.BaseURL)
	cfg.Storage.Path = expandPath(cfg.Storage.Path)
	cfg.Log.File = expandPath(cfg.Log.File)
	for i, p := range cfg.Contacts.Paths {
		cfg.Contacts.Paths[i] = expandPath(p)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors and fills in defaults for
// zero values.
func (c *Config) Validate() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	switch c.Storage.Backend {
	case "":
		c.Storage.Backend = BackendFile
	case BackendFile, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("config: storage.backend %q is invalid (must be file, sqlite, or memory)", c.Storage.Backend)
	}
	if c.Storage.Key == "" {
		c.Storage.Key = "favourites"
	}
	if strings.ContainsAny(c.Storage.Key, `/\`) {
		return fmt.Errorf("config: storage.key %q must not contain path separators", c.Storage.Key)
	}
	if c.Storage.Path == "" {
		switch c.Storage.Backend {
		case BackendFile:
			c.Storage.Path = Dir()
		case BackendSQLite:
			c.Storage.Path = filepath.Join(Dir(), "favourites.db")
		}
	}
	if c.Storage.WriteTimeout <= 0 {
		c.Storage.WriteTimeout = 5 * time.Second
	}

	if c.Enrichment.BaseURL == "" {
		return fmt.Errorf("config: enrichment.base_url is required")
	}
	if c.Enrichment.Timeout <= 0 {
		c.Enrichment.Timeout = 5 * time.Second
	}
	if c.Enrichment.MaxRetries < 0 {
		c.Enrichment.MaxRetries = 0
	}
	// An unexpanded $VAR means the variable is unset.
	if strings.HasPrefix(c.Enrichment.APIKey, "$") {
		c.Enrichment.APIKey = ""
	}

	switch c.Contacts.Access {
	case "":
		c.Contacts.Access = AccessGranted
	case AccessGranted, AccessDenied:
	default:
		return fmt.Errorf("config: contacts.access %q is invalid (must be granted or denied)", c.Contacts.Access)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps debug|info|warn|error to a slog level. Empty is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("config: log.level %q is invalid", s)
}
