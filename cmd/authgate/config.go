package main

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/authgate/internal/handlers"
	"github.com/nkiryanov/authgate/internal/logger"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
	defaultMailBackend  = "log"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Redis holding the token blacklist, e.g. redis://localhost:6379/0
	RedisURL string

	// Application instance id, used as the issuer of every signed token
	AppID string

	// Domain of the frontend the service works for. Used as the default
	// token audience and in the emailed links
	Domain string

	// Optional regexp matched against the token audience on verify.
	// Empty accepts the domain only
	AudiencePattern string

	// Paths to the PEM encoded RSA key pair signing access tokens.
	// Public key path may be omitted: it is derived from the private key
	AccessPrivateKeyPath string
	AccessPublicKeyPath  string

	// Per-category secrets for the symmetrically signed tokens
	RefreshSecret       string
	ConfirmationSecret  string
	ResetPasswordSecret string

	// Per-category token lifetimes, zero means the built-in default
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	ConfirmationTTL  time.Duration
	ResetPasswordTTL time.Duration

	// Name of the httpOnly cookie holding the refresh token
	RefreshCookieName string

	// Mail delivery: "ses" or "log"
	MailBackend string

	// From address for outgoing emails (required for the ses backend)
	MailFrom string

	// Environment
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:          defaultLoggingLevel,
		ListenAddr:        defaultListenAddr,
		Environment:       defaultEnvironment,
		MailBackend:       defaultMailBackend,
		RefreshCookieName: handlers.DefaultRefreshCookieName,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}

	// Parse duration and set if it not empty and valid
	setDuration := func(o *time.Duration) func(value string) {
		return func(value string) {
			if value == "" {
				return
			}
			if d, err := time.ParseDuration(value); err == nil {
				*o = d
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":             setString(&c.ListenAddr),
		"DATABASE_URI":            setString(&c.DatabaseDSN),
		"REDIS_URL":               setString(&c.RedisURL),
		"LOG_LEVEL":               setString(&c.LogLevel),
		"ENVIRONMENT":             setString(&c.Environment),
		"APP_ID":                  setString(&c.AppID),
		"APP_DOMAIN":              setString(&c.Domain),
		"AUDIENCE_PATTERN":        setString(&c.AudiencePattern),
		"ACCESS_PRIVATE_KEY_PATH": setString(&c.AccessPrivateKeyPath),
		"ACCESS_PUBLIC_KEY_PATH":  setString(&c.AccessPublicKeyPath),
		"REFRESH_SECRET":          setString(&c.RefreshSecret),
		"CONFIRMATION_SECRET":     setString(&c.ConfirmationSecret),
		"RESET_PASSWORD_SECRET":   setString(&c.ResetPasswordSecret),
		"ACCESS_TTL":              setDuration(&c.AccessTTL),
		"REFRESH_TTL":             setDuration(&c.RefreshTTL),
		"CONFIRMATION_TTL":        setDuration(&c.ConfirmationTTL),
		"RESET_PASSWORD_TTL":      setDuration(&c.ResetPasswordTTL),
		"REFRESH_COOKIE_NAME":     setString(&c.RefreshCookieName),
		"MAIL_BACKEND":            setString(&c.MailBackend),
		"MAIL_FROM":               setString(&c.MailFrom),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("authgate", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.RedisURL, "redis", "r", c.RedisURL, "Redis connection url")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVar(&c.AppID, "app-id", c.AppID, "Application id, used as token issuer")
	fs.StringVar(&c.Domain, "domain", c.Domain, "Frontend domain, used as token audience")
	fs.StringVar(&c.AccessPrivateKeyPath, "access-private-key", c.AccessPrivateKeyPath, "Path to PEM encoded RSA private key")
	fs.StringVar(&c.AccessPublicKeyPath, "access-public-key", c.AccessPublicKeyPath, "Path to PEM encoded RSA public key")
	fs.StringVar(&c.MailBackend, "mail-backend", c.MailBackend, "Mail delivery backend (ses, log)")
	fs.StringVar(&c.MailFrom, "mail-from", c.MailFrom, "From address for outgoing emails")

	return fs.Parse(args)
}

// Validate checks that everything the app can not run without is set
func (c *Config) Validate() error {
	required := map[string]string{
		"database dsn":            c.DatabaseDSN,
		"redis url":               c.RedisURL,
		"app id":                  c.AppID,
		"domain":                  c.Domain,
		"access private key path": c.AccessPrivateKeyPath,
		"refresh secret":          c.RefreshSecret,
		"confirmation secret":     c.ConfirmationSecret,
		"reset password secret":   c.ResetPasswordSecret,
	}

	for name, value := range required {
		if value == "" {
			return errors.New(name + " must be set")
		}
	}

	if c.MailBackend == "ses" && c.MailFrom == "" {
		return errors.New("mail from must be set for the ses backend")
	}

	return nil
}
