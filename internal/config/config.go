// Package config provides configuration management for the portfolio persistence core.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	apperrors "github.com/defi-common/internal/errors"
	"github.com/defi-common/internal/types"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Config holds all application configuration
type Config struct {
	Environment types.Environment
	Database    DatabaseConfig
	Logging     LoggingConfig
	Metrics     MetricsConfig
}

// DatabaseConfig holds configuration for both stores
type DatabaseConfig struct {
	Postgres PostgresConfig
	Mongo    MongoConfig
}

// PostgresConfig holds relational store configuration
type PostgresConfig struct {
	URL            string
	TestURL        string
	MaxConnections int
	MinConnections int
	ConnectTimeout time.Duration
	// Environment and AllowSchemaReset gate InitializeSchema on the primary endpoint
	Environment      types.Environment
	AllowSchemaReset bool
}

// MongoConfig holds document store configuration
type MongoConfig struct {
	URL              string
	TestURL          string
	Database         string
	ConnectTimeout   time.Duration
	AllowShapeUpdate bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

// MetricsConfig holds prometheus configuration
type MetricsConfig struct {
	Namespace string
}

// Environment variable names
const (
	EnvDBURL            = "DB_URL"
	EnvTestDBURL        = "TEST_DB_URL"
	EnvMongoURL         = "MONGO_URL"
	EnvTestMongoURL     = "TEST_MONGO_URL"
	EnvMongoDatabase    = "MONGO_DATABASE"
	EnvAppEnv           = "APP_ENV"
	EnvAllowSchemaReset = "ALLOW_SCHEMA_RESET"
)

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, apperrors.NewConfigurationError(fmt.Sprintf("error loading .env file: %v", err), ".env")
		}
	}

	env, ok := types.ParseEnvironment(getEnv(EnvAppEnv, string(types.EnvDevelopment)))
	if !ok {
		return nil, apperrors.NewConfigurationError(
			fmt.Sprintf("%s must be one of development, test, production", EnvAppEnv), EnvAppEnv)
	}

	config := &Config{
		Environment: env,
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				URL:              getEnv(EnvDBURL, ""),
				TestURL:          getEnv(EnvTestDBURL, ""),
				MaxConnections:   getEnvAsInt("DB_MAX_CONNECTIONS", 10),
				MinConnections:   getEnvAsInt("DB_MIN_CONNECTIONS", 0),
				ConnectTimeout:   getEnvAsDuration("DB_CONNECT_TIMEOUT", 10*time.Second),
				Environment:      env,
				AllowSchemaReset: getEnvAsBool(EnvAllowSchemaReset, false),
			},
			Mongo: MongoConfig{
				URL:              getEnv(EnvMongoURL, ""),
				TestURL:          getEnv(EnvTestMongoURL, ""),
				Database:         getEnv(EnvMongoDatabase, "db_name"),
				ConnectTimeout:   getEnvAsDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second),
				AllowShapeUpdate: getEnvAsBool("MONGO_ALLOW_SHAPE_UPDATE", false),
			},
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", ""),
		},
		Metrics: MetricsConfig{
			Namespace: getEnv("METRICS_NAMESPACE", "defi_common"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks that every required endpoint is present and well formed.
// All problems are reported together in one configuration error.
func (c *Config) Validate() error {
	var problems, settings []string
	add := func(setting, problem string) {
		settings = append(settings, setting)
		problems = append(problems, problem)
	}

	pg := c.Database.Postgres
	checkURL := func(setting, value string, schemes ...string) {
		if value == "" {
			add(setting, setting+" is not set")
			return
		}
		if err := validateURL(value, schemes...); err != nil {
			add(setting, fmt.Sprintf("%s is malformed: %v", setting, err))
		}
	}

	checkURL(EnvDBURL, pg.URL, "postgres", "postgresql")
	checkURL(EnvTestDBURL, pg.TestURL, "postgres", "postgresql")
	checkURL(EnvMongoURL, c.Database.Mongo.URL, "mongodb", "mongodb+srv")

	if pg.URL != "" && pg.URL == pg.TestURL {
		add(EnvTestDBURL, EnvTestDBURL+" must differ from "+EnvDBURL)
	}
	if pg.MaxConnections <= 0 {
		add("DB_MAX_CONNECTIONS", "DB_MAX_CONNECTIONS must be positive")
	}
	if pg.MinConnections < 0 || pg.MinConnections > pg.MaxConnections {
		add("DB_MIN_CONNECTIONS", "DB_MIN_CONNECTIONS must be between 0 and DB_MAX_CONNECTIONS")
	}
	if c.Database.Mongo.Database == "" {
		add(EnvMongoDatabase, EnvMongoDatabase+" is empty")
	}

	if len(problems) > 0 {
		return apperrors.NewConfigurationError(strings.Join(problems, "; "), settings...)
	}
	return nil
}

// URLFor returns the relational connection string for the primary or test endpoint
func (c *PostgresConfig) URLFor(test bool) string {
	if test {
		return c.TestURL
	}
	return c.URL
}

// URLFor returns the document store connection string, falling back to URL when no test endpoint is set
func (c *MongoConfig) URLFor(test bool) string {
	if test && c.TestURL != "" {
		return c.TestURL
	}
	return c.URL
}

func validateURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("missing host")
			}
			return nil
		}
	}
	return fmt.Errorf("scheme %q not one of %v", u.Scheme, schemes)
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := cast.ToIntE(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := cast.ToBoolE(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := cast.ToDurationE(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
