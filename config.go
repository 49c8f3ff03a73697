package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/austinb847/map-planner/nav"
)

// Config holds the application configuration
type Config struct {
	Port          string        `toml:"port"`
	LogLevel      string        `toml:"log_level"`
	RedisAddr     string        `toml:"redis_addr"`
	RedisPassword string        `toml:"redis_password"`
	Nav           nav.NavConfig `toml:"nav"`
}

var config Config

// LoadConfig loads the configuration from a TOML file. Values from the
// environment (or a .env file next to the binary) take precedence.
func LoadConfig(filename string) error {
	var c Config
	if _, err := toml.DecodeFile(filename, &c); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error decoding config file: %v", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading .env: %v", err)
	}
	if v := os.Getenv("MAPBOX_ACCESS_TOKEN"); v != "" {
		c.Nav.AccessToken = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Port = ":" + v
	}

	// Validate required fields
	if c.Port == "" {
		c.Port = ":8080" // Default port
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Nav.AccessToken == "" {
		return fmt.Errorf("nav.access_token or MAPBOX_ACCESS_TOKEN is required")
	}
	c.Nav = c.Nav.WithDefaults()

	config = c
	return nil
}

// GetConfig returns the current configuration
func GetConfig() Config {
	return config
}

// GetNavConfig returns the navigation-specific configuration
func GetNavConfig() nav.NavConfig {
	return config.Nav
}
