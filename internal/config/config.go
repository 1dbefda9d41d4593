package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Logger   Logger   `mapstructure:"logger"`
	Prices   Prices   `mapstructure:"prices"`
	Reports  Reports  `mapstructure:"reports"`
}

// Server holds the configuration for the HTTP API server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Prices holds the configuration for the OSRS wiki price API client.
// The wiki asks every consumer to send a descriptive User-Agent.
type Prices struct {
	BaseURL        string        `mapstructure:"base_url"`
	UserAgent      string        `mapstructure:"user_agent"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
}

// Reports holds tunables for the profit report read path.
type Reports struct {
	TopFlips int `mapstructure:"top_flips"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.dsn", "ge-ledger.db")
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("prices.base_url", "https://prices.runescape.wiki/api/v1/osrs")
	viper.SetDefault("prices.user_agent", "ge-ledger-go")
	viper.SetDefault("prices.rate_limit", 2) // requests per second
	viper.SetDefault("prices.rate_limit_burst", 2)
	viper.SetDefault("prices.cache_ttl", time.Minute)
	viper.SetDefault("reports.top_flips", 10)

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
