// Package di assembles the service from its configuration.
package di

import (
	"fmt"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/optimode/emailverify"
	"github.com/optimode/emailverify/cache"
	"github.com/optimode/emailverify/internal/config"
	"github.com/optimode/emailverify/internal/logging"
	"github.com/optimode/emailverify/internal/server"
)

// BuildContainer creates the dependency injection container for an
// already loaded configuration.
func BuildContainer(cfg *config.Config) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register cache store
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (cache.Store, error) {
		cc := cfg.Cache()
		store, err := cache.New(cc, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("cache ready", zap.String("type", cc.Type))
		return store, nil
	}); err != nil {
		return nil, err
	}

	// Register verifier
	if err := container.Provide(NewVerifier); err != nil {
		return nil, err
	}

	// Register HTTP server
	if err := container.Provide(func(cfg *config.Config, v *emailverify.Verifier, logger *zap.Logger) *server.Server {
		return server.New(server.Config{
			Listen:         cfg.GetString("server.listen"),
			MaxBulk:        cfg.GetInt("server.max_bulk"),
			RequestTimeout: cfg.GetDuration("server.request_timeout"),
		}, v, logger)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// NewVerifier builds a verifier backed by store.
func NewVerifier(cfg *config.Config, store cache.Store, logger *zap.Logger) (*emailverify.Verifier, error) {
	v := emailverify.New(cfg.Verifier()).WithLogger(logger).WithCache(store)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("configure verifier: %w", err)
	}
	c := v.Config()
	logger.Info("verifier ready",
		zap.String("mail_from", c.MailFrom),
		zap.String("helo_domain", c.SMTP.HeloDomain),
		zap.Int("max_concurrent", c.MaxConcurrent),
		zap.Bool("proxy", c.SMTP.ProxyAddr != ""),
	)
	return v, nil
}
