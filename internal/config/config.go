// Package config provides configuration for the application.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/starquake/quizstore/internal/logging"
)

var (
	// ErrDBUriNotSetInProduction is returned when DB_URI is not set in production. We need this to prevent accidental
	// production deployments against a default database.
	ErrDBUriNotSetInProduction = errors.New("DB_URI must be set in production")
	// ErrUnsupportedDriver is returned when DB_DRIVER names a backend we do not have.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

const (
	// DriverMongoDB selects the MongoDB document store.
	DriverMongoDB = "mongodb"
	// DriverSQLite selects the embedded SQLite document store.
	DriverSQLite = "sqlite"
)

const (
	// AppEnvironmentDefault is the default application environment.
	AppEnvironmentDefault = "development"
	// AppEnvironmentProduction is the production application environment.
	AppEnvironmentProduction = "production"
	// HostDefault is the default host to listen on. Can be an IP address or hostname.
	HostDefault = "localhost"
	// PortDefault is the default port to listen on.
	PortDefault = "3000"

	// DBDriverDefault is the default database driver.
	DBDriverDefault = DriverMongoDB
	// DBURIMongoDBDefault is the default URI for the mongodb driver, a local deployment.
	DBURIMongoDBDefault = "mongodb://localhost:27017/QuizApp"
	// DBURISQLiteDefault is the default URI for the sqlite driver, quizzes.sqlite in the current directory.
	DBURISQLiteDefault = "file:quizzes.sqlite?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	// DBNameDefault is the default MongoDB database name.
	DBNameDefault = "QuizApp"
	// DBConnectTimeoutDefault bounds the initial connection attempt.
	DBConnectTimeoutDefault = 10 * time.Second
	// DBMaxOpenConnsDefault is the default maximum number of open database connections.
	DBMaxOpenConnsDefault = 10
	// DBMaxIdleConnsDefault is the default maximum number of idle database connections.
	DBMaxIdleConnsDefault = 10
	// DBConnMaxLifetimeDefault is the default maximum lifetime of a database connection.
	DBConnMaxLifetimeDefault = 5 * time.Minute

	// LogLevelDefault is the default log level.
	LogLevelDefault = slog.LevelInfo
)

// Config represents the application configuration.
type Config struct {
	AppEnvironment string

	Host string
	Port string

	DBDriver         string
	DBURI            string
	DBName           string
	DBConnectTimeout time.Duration

	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	LogLevel slog.Level

	// DocsDir serves the API reference from disk instead of the embedded copy. Empty in production.
	DocsDir string
}

// IsProduction reports whether the application runs in production.
func (c *Config) IsProduction() bool {
	return c.AppEnvironment == AppEnvironmentProduction
}

// Parse parses environment variables into the config.
func Parse(getenv func(string) string) (*Config, error) {
	var err error
	c := Config{
		AppEnvironment:    AppEnvironmentDefault,
		Host:              HostDefault,
		Port:              PortDefault,
		DBDriver:          DBDriverDefault,
		DBName:            DBNameDefault,
		DBConnectTimeout:  DBConnectTimeoutDefault,
		DBMaxOpenConns:    DBMaxOpenConnsDefault,
		DBMaxIdleConns:    DBMaxIdleConnsDefault,
		DBConnMaxLifetime: DBConnMaxLifetimeDefault,
		LogLevel:          LogLevelDefault,
	}
	// Overwrite defaults with environment variables.
	if val := getenv("APP_ENV"); val != "" {
		c.AppEnvironment = val
	}
	if val := getenv("HOST"); val != "" {
		c.Host = val
	}
	if val := getenv("PORT"); val != "" {
		c.Port = val
	}
	if val := getenv("DB_DRIVER"); val != "" {
		c.DBDriver = val
	}
	if val := getenv("DB_NAME"); val != "" {
		c.DBName = val
	}
	if val := getenv("DOCS_DIR"); val != "" && !c.IsProduction() {
		c.DocsDir = val
	}

	switch c.DBDriver {
	case DriverMongoDB:
		c.DBURI = DBURIMongoDBDefault
	case DriverSQLite, "sqlite3":
		c.DBDriver = DriverSQLite
		c.DBURI = DBURISQLiteDefault
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, c.DBDriver)
	}
	if val := getenv("DB_URI"); val != "" {
		c.DBURI = val
	}

	// Strict validation for types
	if val := getenv("DB_CONNECT_TIMEOUT"); val != "" {
		c.DBConnectTimeout, err = time.ParseDuration(val)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_CONNECT_TIMEOUT: %q, err: %w", val, err)
		}
	}

	if val := getenv("DB_MAX_OPEN_CONNS"); val != "" {
		c.DBMaxOpenConns, err = strconv.Atoi(val)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %q, err: %w", val, err)
		}
	}

	if val := getenv("DB_MAX_IDLE_CONNS"); val != "" {
		c.DBMaxIdleConns, err = strconv.Atoi(val)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %q, err: %w", val, err)
		}
	}

	if val := getenv("DB_CONN_MAX_LIFETIME"); val != "" {
		c.DBConnMaxLifetime, err = time.ParseDuration(val)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %q, err: %w", val, err)
		}
	}

	if val := getenv("LOG_LEVEL"); val != "" {
		c.LogLevel, err = logging.ParseLevel(val)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
	}

	// Mandatory fields
	if c.IsProduction() && getenv("DB_URI") == "" {
		return nil, ErrDBUriNotSetInProduction
	}

	return &c, nil
}
