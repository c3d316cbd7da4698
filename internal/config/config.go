// Package config loads the server configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port      int    `env:"PORT" envDefault:"8080"`
	DBPath    string `env:"DB_PATH" envDefault:"data/authors-haven.db"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	JWTSecret string `env:"JWT_SECRET,required,notEmpty"`

	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	ResetTTL   time.Duration `env:"RESET_TTL" envDefault:"15m"`

	// ResetPasswordURL is the frontend page that receives the reset
	// credential as its last path segment.
	ResetPasswordURL string `env:"RESET_PASSWORD_URL" envDefault:"http://localhost:8080/users/reset-password"`

	// ImageDir is where uploads go when no S3 bucket is configured. They are
	// served under /images/.
	ImageDir string `env:"IMAGE_DIR" envDefault:"data/images"`

	SMTP   SMTP   `envPrefix:"SMTP_"`
	GitHub GitHub `envPrefix:"GITHUB_"`
	S3     S3     `envPrefix:"S3_"`
}

// SMTP is optional; without a host, reset emails are written to the log.
type SMTP struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM" envDefault:"Authors Haven <no-reply@authorshaven.local>"`
}

// GitHub is optional; without a client id the social login routes are not
// mounted.
type GitHub struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	CallbackURL  string `env:"CALLBACK_URL" envDefault:"http://localhost:8080/auth/github/callback"`
}

// S3 is optional; without a bucket, images are stored on disk.
type S3 struct {
	Bucket    string `env:"BUCKET"`
	Region    string `env:"REGION" envDefault:"us-east-1"`
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	PublicURL string `env:"PUBLIC_URL"`
}

func (s SMTP) Enabled() bool   { return s.Host != "" }
func (g GitHub) Enabled() bool { return g.ClientID != "" }
func (s S3) Enabled() bool     { return s.Bucket != "" }

// Load reads the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads from vars instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d is out of range", c.Port))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.ResetTTL <= 0 {
		errs = append(errs, errors.New("RESET_TTL must be positive"))
	}
	if c.GitHub.Enabled() && c.GitHub.ClientSecret == "" {
		errs = append(errs, errors.New("GITHUB_CLIENT_SECRET is required with GITHUB_CLIENT_ID"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Level parses LOG_LEVEL (debug, info, warn, error).
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q is not a valid level", c.LogLevel)
	}
	return lvl, nil
}
