package main

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/nkiryanov/authgate/internal/cache/rediscache"
	"github.com/nkiryanov/authgate/internal/db"
	"github.com/nkiryanov/authgate/internal/handlers"
	"github.com/nkiryanov/authgate/internal/logger"
	"github.com/nkiryanov/authgate/internal/mailer"
	"github.com/nkiryanov/authgate/internal/repository/postgres"
	"github.com/nkiryanov/authgate/internal/service/auth"
	"github.com/nkiryanov/authgate/internal/service/user"
	"github.com/nkiryanov/authgate/internal/tokens"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config invalid: %w", err)
	}

	// Initialize logger
	l, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Connect to the token blacklist
	blacklist, err := rediscache.Connect(ctx, c.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Load access token signing keys
	privateKey, publicKey, err := loadRSAKeys(c.AccessPrivateKeyPath, c.AccessPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("error while loading access token keys. Err: %w", err)
	}

	codec, err := tokens.New(tokens.Config{
		Issuer:           c.AppID,
		Domain:           c.Domain,
		AudiencePattern:  c.AudiencePattern,
		AccessPrivateKey: privateKey,
		AccessPublicKey:  publicKey,
		AccessTTL:        c.AccessTTL,
		Refresh:          tokens.Symmetric{Secret: c.RefreshSecret, TTL: c.RefreshTTL},
		Confirmation:     tokens.Symmetric{Secret: c.ConfirmationSecret, TTL: c.ConfirmationTTL},
		ResetPassword:    tokens.Symmetric{Secret: c.ResetPasswordSecret, TTL: c.ResetPasswordTTL},
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating token codec. Err: %w", err)
	}

	// Initialize mail delivery
	m, err := newMailer(ctx, c, l)
	if err != nil {
		return nil, fmt.Errorf("error while creating mailer. Err: %w", err)
	}

	// Initialize services
	authService, err := auth.NewService(auth.ServiceConfig{
		Codec:  codec,
		Repo:   storage.Users(),
		Cache:  blacklist,
		Mailer: m,
		Logger: l,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	userService, err := user.NewService(storage.Users(), nil)
	if err != nil {
		return nil, fmt.Errorf("error while creating user service. Err: %w", err)
	}

	mux := handlers.NewRouter(handlers.RouterConfig{
		AuthService:       authService,
		UserService:       userService,
		Logger:            l,
		RefreshCookieName: c.RefreshCookieName,
	})

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
	}, nil
}

func newMailer(ctx context.Context, c *Config, l logger.Logger) (mailer.Mailer, error) {
	switch c.MailBackend {
	case "ses":
		return mailer.NewSESMailer(ctx, c.Domain, c.MailFrom)
	case "log":
		return mailer.NewLogMailer(c.Domain, l)
	default:
		return nil, fmt.Errorf("unknown mail backend %q", c.MailBackend)
	}
}

// loadRSAKeys reads the PEM encoded key pair. When publicPath is empty the
// public key is taken from the private one.
func loadRSAKeys(privatePath string, publicPath string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	privateKey, err := readPrivateKey(privatePath)
	if err != nil {
		return nil, nil, err
	}

	if publicPath == "" {
		return privateKey, &privateKey.PublicKey, nil
	}

	publicKey, err := readPublicKey(publicPath)
	if err != nil {
		return nil, nil, err
	}

	return privateKey, publicKey, nil
}

func readPrivateKey(path string) (*rsa.PrivateKey, error) {
	block, err := readPEM(path)
	if err != nil {
		return nil, err
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("cant parse private key %s: %w", path, err)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key %s is not RSA", path)
	}
	return key, nil
}

func readPublicKey(path string) (*rsa.PublicKey, error) {
	block, err := readPEM(path)
	if err != nil {
		return nil, err
	}

	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("cant parse public key %s: %w", path, err)
	}

	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key %s is not RSA", path)
	}
	return key, nil
}

func readPEM(path string) (*pem.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cant read key file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found in " + path)
	}
	return block, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			slog.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		slog.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	slog.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
