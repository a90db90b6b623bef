package app

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	RunAddress      string
	DatabaseURI     string
	LogLevel        string
	JWTSecretKey    string
	TokenTTL        time.Duration
	MigrationsPath  string
	ShutdownTimeout time.Duration
	DBPingTimeout   time.Duration
}

// NewConfigFromFlags loads an optional .env file, parses the command line and
// lets environment variables override flags.
func NewConfigFromFlags() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return ParseConfig(os.Args[0], os.Args[1:])
}

func ParseConfig(name string, args []string) (*Config, error) {
	cfg := &Config{}

	fset := flag.NewFlagSet(name, flag.ContinueOnError)
	fset.StringVar(&cfg.RunAddress, "a", "localhost:8080", "Server address (env: RUN_ADDRESS)")
	fset.StringVar(&cfg.DatabaseURI, "d", "", "Database URI for the user registry, in-memory when empty (env: DATABASE_URI)")
	fset.StringVar(&cfg.LogLevel, "l", "info", "Log level (debug|info|warn|error) (env: LOG_LEVEL)")
	fset.StringVar(&cfg.JWTSecretKey, "jwt-secret", "", "JWT secret key (env: JWT_SECRET_KEY)")
	fset.DurationVar(&cfg.TokenTTL, "token-ttl", 24*time.Hour, "Lifetime of issued tokens (env: TOKEN_TTL)")
	fset.StringVar(&cfg.MigrationsPath, "migrations", "./migrations", "Path to migrations folder (env: MIGRATIONS_PATH)")
	fset.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", 10*time.Second, "Graceful shutdown timeout (env: SHUTDOWN_TIMEOUT)")
	fset.DurationVar(&cfg.DBPingTimeout, "db-ping-timeout", 5*time.Second, "Timeout of the startup database ping (env: DB_PING_TIMEOUT)")
	if err := fset.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnvVars() error {
	if envAddr := os.Getenv("RUN_ADDRESS"); envAddr != "" {
		c.RunAddress = envAddr
	}
	if envDB := os.Getenv("DATABASE_URI"); envDB != "" {
		c.DatabaseURI = envDB
	}
	if envLogLevel := os.Getenv("LOG_LEVEL"); envLogLevel != "" {
		c.LogLevel = envLogLevel
	}
	if envSecret := os.Getenv("JWT_SECRET_KEY"); envSecret != "" {
		c.JWTSecretKey = envSecret
	}
	if envMigrations := os.Getenv("MIGRATIONS_PATH"); envMigrations != "" {
		c.MigrationsPath = envMigrations
	}
	if err := envDuration("TOKEN_TTL", &c.TokenTTL); err != nil {
		return err
	}
	if err := envDuration("SHUTDOWN_TIMEOUT", &c.ShutdownTimeout); err != nil {
		return err
	}
	return envDuration("DB_PING_TIMEOUT", &c.DBPingTimeout)
}

func (c *Config) validate() error {
	if c.JWTSecretKey == "" {
		return errors.New("JWT secret key is required (use -jwt-secret flag or JWT_SECRET_KEY env)")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive, got %s", c.TokenTTL)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %s", c.ShutdownTimeout)
	}
	if c.DBPingTimeout <= 0 {
		return fmt.Errorf("database ping timeout must be positive, got %s", c.DBPingTimeout)
	}
	return nil
}

func (c *Config) MaskDBPassword() string {
	u, err := url.Parse(c.DatabaseURI)
	if err != nil {
		return c.DatabaseURI
	}

	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}

func envDuration(key string, dst *time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
	}
	*dst = d
	return nil
}
