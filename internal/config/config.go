package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultAccessTTL   = 24 * time.Hour
	defaultRefreshTTL  = 30 * 24 * time.Hour
	defaultSweepEvery  = time.Hour
	defaultShutdown    = 10 * time.Second
	defaultHTTPPort    = "8080"
	defaultMongoDBName = "citbif"
)

var ErrMissingSecret = errors.New("JWT_SECRET is empty")

// Config is loaded once at startup and passed down explicitly.
type Config struct {
	Env         string
	HTTPPort    string
	DatabaseURL string
	LogLevel    string

	JWTSecret        string
	JWTRefreshSecret string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration

	// StrictSessionWrites makes refresh-token issuance fail when the
	// session row cannot be written instead of returning an orphan token.
	StrictSessionWrites  bool
	SessionSweepInterval time.Duration
	ShutdownTimeout      time.Duration

	MongoURI      string
	MongoDatabase string

	SeedAdminEmail    string
	SeedAdminPassword string
}

// fileConfig mirrors Config for the optional YAML file. Durations stay
// strings so the day suffix works there too.
type fileConfig struct {
	Env                  string `yaml:"env"`
	HTTPPort             string `yaml:"http_port"`
	DatabaseURL          string `yaml:"database_url"`
	LogLevel             string `yaml:"log_level"`
	JWTSecret            string `yaml:"jwt_secret"`
	JWTRefreshSecret     string `yaml:"jwt_refresh_secret"`
	AccessTokenTTL       string `yaml:"access_token_ttl"`
	RefreshTokenTTL      string `yaml:"refresh_token_ttl"`
	StrictSessionWrites  *bool  `yaml:"strict_session_writes"`
	SessionSweepInterval string `yaml:"session_sweep_interval"`
	ShutdownTimeout      string `yaml:"shutdown_timeout"`
	MongoURI             string `yaml:"mongo_uri"`
	MongoDatabase        string `yaml:"mongo_database"`
}

func Default() Config {
	return Config{
		Env:                  "development",
		HTTPPort:             defaultHTTPPort,
		LogLevel:             "info",
		AccessTokenTTL:       defaultAccessTTL,
		RefreshTokenTTL:      defaultRefreshTTL,
		SessionSweepInterval: defaultSweepEvery,
		ShutdownTimeout:      defaultShutdown,
		MongoDatabase:        defaultMongoDBName,
	}
}

// Load builds the configuration from defaults, the YAML file named by
// CONFIG_FILE (if any) and finally the process environment.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	if cfg.JWTSecret == "" {
		return Config{}, ErrMissingSecret
	}
	return cfg, nil
}

// IsProduction reports whether diagnostic details must be hidden from clients.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// RefreshSecret falls back to the access-token secret.
func (c Config) RefreshSecret() string {
	if c.JWTRefreshSecret != "" {
		return c.JWTRefreshSecret
	}
	return c.JWTSecret
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	setString(&c.Env, fc.Env)
	setString(&c.HTTPPort, fc.HTTPPort)
	setString(&c.DatabaseURL, fc.DatabaseURL)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.JWTSecret, fc.JWTSecret)
	setString(&c.JWTRefreshSecret, fc.JWTRefreshSecret)
	setString(&c.MongoURI, fc.MongoURI)
	setString(&c.MongoDatabase, fc.MongoDatabase)
	if fc.StrictSessionWrites != nil {
		c.StrictSessionWrites = *fc.StrictSessionWrites
	}
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"access_token_ttl", fc.AccessTokenTTL, &c.AccessTokenTTL},
		{"refresh_token_ttl", fc.RefreshTokenTTL, &c.RefreshTokenTTL},
		{"session_sweep_interval", fc.SessionSweepInterval, &c.SessionSweepInterval},
		{"shutdown_timeout", fc.ShutdownTimeout, &c.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("config file %s: %w", d.key, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString(&c.Env, getenv("APP_ENV"))
	setString(&c.HTTPPort, getenv("HTTP_PORT"))
	setString(&c.DatabaseURL, getenv("DATABASE_URL"))
	setString(&c.LogLevel, getenv("LOG_LEVEL"))
	setString(&c.JWTSecret, getenv("JWT_SECRET"))
	setString(&c.JWTRefreshSecret, getenv("JWT_REFRESH_SECRET"))
	setString(&c.MongoURI, getenv("MONGO_URI"))
	setString(&c.MongoDatabase, getenv("MONGO_DATABASE"))
	setString(&c.SeedAdminEmail, getenv("SEED_ADMIN_EMAIL"))
	setString(&c.SeedAdminPassword, getenv("SEED_ADMIN_PASSWORD"))
	if s := getenv("SESSION_STRICT_WRITES"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("SESSION_STRICT_WRITES: %w", err)
		}
		c.StrictSessionWrites = b
	}
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"JWT_EXPIRES_IN", &c.AccessTokenTTL},
		{"JWT_REFRESH_EXPIRES_IN", &c.RefreshTokenTTL},
		{"SESSION_SWEEP_INTERVAL", &c.SessionSweepInterval},
		{"SHUTDOWN_TIMEOUT", &c.ShutdownTimeout},
	}
	for _, d := range durations {
		s := getenv(d.key)
		if s == "" {
			continue
		}
		v, err := ParseDuration(s)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = v
	}
	return nil
}

// ParseDuration accepts time.ParseDuration syntax plus a whole-day form
// such as "30d".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
