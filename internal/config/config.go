package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds client configuration
type Config struct {
	Env      string
	LogLevel string

	APIBaseURL   string
	AccessToken  string
	RefreshToken string
	HTTPTimeout  time.Duration

	DefaultSlotDurationMins int
	BookingTimeZone         string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	MetricsEnabled bool
}

// Load reads configuration from the environment.
func Load() *Config {
	return &Config{
		Env:                     getEnv("ENV", "development"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		APIBaseURL:              strings.TrimRight(getEnv("CAREBOOK_API_BASE_URL", "http://localhost:8080/api"), "/"),
		AccessToken:             strings.TrimSpace(getEnv("CAREBOOK_ACCESS_TOKEN", "")),
		RefreshToken:            strings.TrimSpace(getEnv("CAREBOOK_REFRESH_TOKEN", "")),
		HTTPTimeout:             getEnvAsDuration("CAREBOOK_HTTP_TIMEOUT", 15*time.Second),
		DefaultSlotDurationMins: getEnvAsInt("DEFAULT_SLOT_DURATION_MINS", 30),
		BookingTimeZone:         getEnv("BOOKING_TIME_ZONE", "UTC"),
		RedisAddr:               getEnv("REDIS_ADDR", ""),
		RedisPassword:           getEnv("REDIS_PASSWORD", ""),
		RedisTLS:                getEnvAsBool("REDIS_TLS", false),
		MetricsEnabled:          getEnvAsBool("METRICS_ENABLED", false),
	}
}

// Validate reports settings the client cannot start without.
func (c *Config) Validate() error {
	var problems []string
	if c.APIBaseURL == "" {
		problems = append(problems, "CAREBOOK_API_BASE_URL is required")
	}
	if c.AccessToken == "" {
		problems = append(problems, "CAREBOOK_ACCESS_TOKEN is required")
	}
	if c.DefaultSlotDurationMins <= 0 {
		problems = append(problems, "DEFAULT_SLOT_DURATION_MINS must be positive")
	}
	if _, err := c.Location(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return errors.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// Location resolves BookingTimeZone.
func (c *Config) Location() (*time.Location, error) {
	if c.BookingTimeZone == "" || strings.EqualFold(c.BookingTimeZone, "UTC") {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.BookingTimeZone)
	if err != nil {
		return nil, fmt.Errorf("BOOKING_TIME_ZONE %q: %w", c.BookingTimeZone, err)
	}
	return loc, nil
}

// IsProduction is true for ENV=production or prod.
func (c *Config) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "production", "prod":
		return true
	}
	return false
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
