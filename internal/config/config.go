package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server Server
	Store  Store
	Queue  Queue
	Alerts Alerts
}

// Server holds HTTP server related options.
type Server struct {
	Port     string
	LogLevel string
}

// Store contains connection secrets for the hosted data backend.
type Store struct {
	URL     string
	AnonKey string
}

// Queue holds local persistence options for the offline write queue.
type Queue struct {
	DBPath string
}

// Alerts holds scheduler-related settings.
type Alerts struct {
	CronSchedule string
	Timezone     string
	Channel      string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	cfg := &Config{
		Server: Server{
			Port:     getenvWithDefault("PORT", "8080"),
			LogLevel: getenvWithDefault("LOG_LEVEL", "info"),
		},
		Store: Store{
			URL:     os.Getenv("SUPABASE_URL"),
			AnonKey: os.Getenv("SUPABASE_ANON_KEY"),
		},
		Queue: Queue{
			DBPath: getenvWithDefault("QUEUE_DB_PATH", "morvarid-queue.db"),
		},
		Alerts: Alerts{
			CronSchedule: getenvWithDefault("ALERT_CRON_SCHEDULE", "0 20 * * *"),
			Timezone:     getenvWithDefault("TIMEZONE", "Asia/Tehran"),
			Channel:      getenvWithDefault("ALERT_CHANNEL", "farm-alerts"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate enforces the fail-fast startup policy: the application refuses to
// boot without its backend connection secrets.
func (c *Config) Validate() error {
	switch {
	case c.Store.URL == "":
		return errors.New("SUPABASE_URL must be provided")
	case c.Store.AnonKey == "":
		return errors.New("SUPABASE_ANON_KEY must be provided")
	}

	if c.Queue.DBPath == "" {
		return errors.New("QUEUE_DB_PATH must not be empty")
	}

	if c.Alerts.CronSchedule == "" {
		return errors.New("ALERT_CRON_SCHEDULE must not be empty")
	}
	if c.Alerts.Timezone == "" {
		return errors.New("TIMEZONE must not be empty")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
