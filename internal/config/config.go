package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Remote  Remote  `mapstructure:"remote"`
	Auth    Auth    `mapstructure:"auth"`
	Market  Market  `mapstructure:"market"`
	Logger  Logger  `mapstructure:"logger"`
	Journal Journal `mapstructure:"journal"`
	Server  Server  `mapstructure:"server"`
}

// Remote holds the configuration for the remote trading service.
// MaxReadRetries applies to read-only operations only.
type Remote struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	MaxReadRetries int           `mapstructure:"max_read_retries"`
}

// Auth holds the configuration for the identity provider.
// StartupWait bounds how long startup waits on the login before loading views.
type Auth struct {
	Token        string        `mapstructure:"token"`
	VerifySecret string        `mapstructure:"verify_secret"`
	ProviderURL  string        `mapstructure:"provider_url"`
	CallbackAddr string        `mapstructure:"callback_addr"`
	LoginTimeout time.Duration `mapstructure:"login_timeout"`
	StartupWait  time.Duration `mapstructure:"startup_wait"`
}

// Market holds the configuration for price input parsing.
type Market struct {
	Delimiter string `mapstructure:"delimiter"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"` // console, file or both
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// Journal holds the configuration for the session action journal.
type Journal struct {
	DSN string `mapstructure:"dsn"`
}

// Server holds the configuration for the web UI.
type Server struct {
	Port int `mapstructure:"port"`
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults and environment apply.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("remote.base_url", "http://127.0.0.1:4943/api")
	v.SetDefault("remote.timeout", 30*time.Second)
	v.SetDefault("remote.rate_limit", 10) // requests per second
	v.SetDefault("remote.rate_limit_burst", 5)
	v.SetDefault("remote.max_read_retries", 2)

	// Listed so AutomaticEnv picks up AUTH_TOKEN and friends on Unmarshal.
	v.SetDefault("auth.token", "")
	v.SetDefault("auth.verify_secret", "")
	v.SetDefault("auth.provider_url", "")
	v.SetDefault("auth.callback_addr", "127.0.0.1:8765")
	v.SetDefault("auth.login_timeout", 2*time.Minute)
	v.SetDefault("auth.startup_wait", 5*time.Second)

	v.SetDefault("market.delimiter", ",")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output", "console")
	v.SetDefault("logger.file", "logs/console.log")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)

	v.SetDefault("journal.dsn", "file::memory:?cache=shared")

	v.SetDefault("server.port", 8080)
}
