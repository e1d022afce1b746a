// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"investing_monitor/internal/models"
)

// Config holds the application configuration.
type Config struct {
	// Server settings
	Port string
	Host string

	// Database settings
	DBPath string

	// Credential encryption
	EncryptionSecret string

	// Provider settings
	ProviderBaseURL string
	// InstanceSeed makes the generated device ID deterministic per install.
	InstanceSeed string

	// Timezone is the single fixed reference zone all schedules are
	// evaluated in. Not overridable per portfolio.
	Timezone string

	// Schedule defaults applied when a portfolio omits options.
	Schedule models.ScheduleOptions

	// Environment
	IsDevelopment bool
}

// New creates a new Config with values from the environment or defaults.
// A .env file in the working directory is loaded first if present.
func New() *Config {
	godotenv.Load()

	return &Config{
		Port:             getEnv("PORT", "8080"),
		Host:             getEnv("HOST", "localhost"),
		DBPath:           getEnv("DB_PATH", filepath.Join("data", "monitor.db")),
		EncryptionSecret: getEnv("ENCRYPTION_SECRET", "change-me-in-production-32chars!"),
		ProviderBaseURL:  getEnv("PROVIDER_BASE_URL", ""),
		InstanceSeed:     getEnv("INSTANCE_SEED", ""),
		Timezone:         getEnv("TIMEZONE", "Europe/Copenhagen"),
		Schedule: models.ScheduleOptions{
			WeekdayInterval:    getEnvInt("UPDATE_WEEKDAY_INTERVAL", models.DefaultWeekdayInterval),
			WeekdayStart:       getEnvInt("UPDATE_WEEKDAY_START", models.DefaultWeekdayStart),
			WeekdayEnd:         getEnvInt("UPDATE_WEEKDAY_END", models.DefaultWeekdayEnd),
			NightUpdate:        getEnv("UPDATE_NIGHT_TIME", models.DefaultNightUpdate),
			MorningUpdate:      getEnv("UPDATE_MORNING_TIME", models.DefaultMorningUpdate),
			WeekendCheckpoints: getEnvBool("UPDATE_WEEKEND_CHECKPOINTS", true),
		},
		IsDevelopment: getEnv("ENV", "development") == "development",
	}
}

// Address returns the full address to bind the server to.
func (c *Config) Address() string {
	return c.Host + ":" + c.Port
}

// Location loads the configured reference timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
