package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                 = "PITWALL"
	defaultHTTPAddress        = "127.0.0.1:8780"
	defaultDatabasePath       = "pitwall.db"
	defaultLogLevel           = "info"
	defaultJolpicaBaseURL     = "https://api.jolpi.ca/ergast/f1"
	defaultOpenF1BaseURL      = "https://api.openf1.org/v1"
	defaultStalenessThreshold = time.Hour
)

// AppConfig captures runtime configuration for the pitwall process.
type AppConfig struct {
	HTTPAddress        string
	DatabasePath       string
	LogLevel           string
	Season             int
	StalenessThreshold time.Duration
	JolpicaBaseURL     string
	OpenF1BaseURL      string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("season", time.Now().UTC().Year())
	configViper.SetDefault("staleness.threshold", defaultStalenessThreshold)
	configViper.SetDefault("api.jolpica_url", defaultJolpicaBaseURL)
	configViper.SetDefault("api.openf1_url", defaultOpenF1BaseURL)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		DatabasePath:       configViper.GetString("database.path"),
		LogLevel:           configViper.GetString("log.level"),
		Season:             configViper.GetInt("season"),
		StalenessThreshold: configViper.GetDuration("staleness.threshold"),
		JolpicaBaseURL:     configViper.GetString("api.jolpica_url"),
		OpenF1BaseURL:      configViper.GetString("api.openf1_url"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Season <= 0 {
		return fmt.Errorf("season must be a positive year, got %d", c.Season)
	}
	if c.StalenessThreshold <= 0 {
		return fmt.Errorf("staleness.threshold must be positive, got %s", c.StalenessThreshold)
	}
	if strings.TrimSpace(c.JolpicaBaseURL) == "" {
		return fmt.Errorf("api.jolpica_url is required")
	}
	if strings.TrimSpace(c.OpenF1BaseURL) == "" {
		return fmt.Errorf("api.openf1_url is required")
	}
	return nil
}
