// Package config handles the configuration directory, the API base URL
// and the saved-session cookie file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	// AppName is the application directory name.
	AppName = "tasker"

	// CookieFile is the saved-session cookie filename.
	CookieFile = "cookies.json"

	// DefaultAPIURL is used when neither the config file nor the
	// environment names a base URL. It includes the server's route
	// prefix.
	DefaultAPIURL = "http://localhost:8002/api"
)

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// APIURL is the base URL for every endpoint, prefix included.
	APIURL string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool
}

// New creates a Config from the default or specified config directory.
// The base URL comes from config.yaml's api_url key, overridden by
// TASKER_API_URL, falling back to DefaultAPIURL.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.SetDefault("api_url", DefaultAPIURL)
	v.SetEnvPrefix("TASKER")
	if err := v.BindEnv("api_url"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// No config file is fine; defaults and env apply.
	}

	return &Config{Dir: dir, APIURL: v.GetString("api_url")}, nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// CookiePath returns the path to the saved-session cookie file.
func (c *Config) CookiePath() string {
	return filepath.Join(c.Dir, CookieFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// HasCookies checks if a saved session cookie file exists.
func (c *Config) HasCookies() bool {
	_, err := os.Stat(c.CookiePath())
	return err == nil
}

// RemoveCookies deletes the saved session cookie file.
func (c *Config) RemoveCookies() error {
	return os.Remove(c.CookiePath())
}

// Logger returns the process logger. With Debug unset the logger is
// disabled so command output stays clean.
func (c *Config) Logger() zerolog.Logger {
	if !c.Debug {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger().
		Level(zerolog.DebugLevel)
}
