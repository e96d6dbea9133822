package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Match       MatchConfig       `yaml:"match" mapstructure:"match"`
	Reconcile   ReconcileConfig   `yaml:"reconcile" mapstructure:"reconcile"`
	Google      GoogleConfig      `yaml:"google" mapstructure:"google"`
	Import      ImportConfig      `yaml:"import" mapstructure:"import"`
	Preferences PreferencesConfig `yaml:"preferences" mapstructure:"preferences"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MatchConfig configures candidate computation.
type MatchConfig struct {
	FuzzyThreshold  float64 `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	CacheTTLSecs    int     `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
	CacheMaxEntries int     `yaml:"cache_max_entries" mapstructure:"cache_max_entries"`
}

// ReconcileConfig configures approvals.
type ReconcileConfig struct {
	BulkConcurrency int `yaml:"bulk_concurrency" mapstructure:"bulk_concurrency"`
}

// GoogleConfig holds Places API settings. An empty key disables lookup.
type GoogleConfig struct {
	APIKey     string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL    string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// ImportConfig configures survey imports.
type ImportConfig struct {
	CategoryMap string `yaml:"category_map" mapstructure:"category_map"` // optional YAML override path
}

// PreferencesConfig configures preference storage.
type PreferencesConfig struct {
	DefaultTTLHours int `yaml:"default_ttl_hours" mapstructure:"default_ttl_hours"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CLIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("match.fuzzy_threshold", 0.3)
	v.SetDefault("match.cache_ttl_secs", 30)
	v.SetDefault("match.cache_max_entries", 64)
	v.SetDefault("reconcile.bulk_concurrency", 4)
	v.SetDefault("google.api_key", "")
	v.SetDefault("google.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("google.rate_per_sec", 5)
	v.SetDefault("import.category_map", "")
	v.SetDefault("preferences.default_ttl_hours", 24*30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode needs: "store" for any
// command touching the database, "serve" for the HTTP server, "places" for
// place lookups.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "store", "serve", "places":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if mode == "store" || mode == "serve" {
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required for postgres")
			}
		case "sqlite":
		default:
			problems = append(problems, "store.driver must be postgres or sqlite")
		}
		if c.Match.FuzzyThreshold <= 0 || c.Match.FuzzyThreshold > 1 {
			problems = append(problems, "match.fuzzy_threshold must be in (0, 1]")
		}
		if c.Reconcile.BulkConcurrency < 1 || c.Reconcile.BulkConcurrency > 32 {
			problems = append(problems, "reconcile.bulk_concurrency must be between 1 and 32")
		}
	}
	if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		problems = append(problems, "server.port must be > 0")
	}
	if mode == "places" && c.Google.APIKey == "" {
		problems = append(problems, "google.api_key is required")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
