// Package server exposes the verifier over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/optimode/emailverify/internal/metrics"
	"github.com/optimode/emailverify/types"
)

// Verifier is the part of *emailverify.Verifier the handlers use.
type Verifier interface {
	VerifySingle(ctx context.Context, address string) (types.Result, error)
	VerifyBulk(ctx context.Context, addresses []string) ([]types.Result, error)
	Forget(ctx context.Context, address string) error
}

// Config holds the listener settings.
type Config struct {
	// Listen is the TCP address, e.g. ":8080".
	Listen string
	// MaxBulk caps the addresses accepted by one /verify-bulk call. Default: 1000
	MaxBulk int
	// RequestTimeout bounds a single request's verification work. Default: 5m
	RequestTimeout time.Duration
}

// Server wires the routes to a Verifier.
type Server struct {
	cfg      Config
	verifier Verifier
	logger   *zap.Logger
	router   *gin.Engine
}

// New builds the router. It does not start listening.
func New(cfg Config, verifier Verifier, logger *zap.Logger) *Server {
	if cfg.MaxBulk <= 0 {
		cfg.MaxBulk = 1000
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.PrometheusMiddleware())
	router.Use(requestLogger(logger))

	s := &Server{cfg: cfg, verifier: verifier, logger: logger, router: router}

	router.GET("/health", s.Health)
	router.GET("/metrics", metrics.Handler())
	router.POST("/verify", s.Verify)
	router.POST("/verify-bulk", s.VerifyBulk)
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP listening", zap.String("address", s.cfg.Listen))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen on %s: %w", s.cfg.Listen, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Health handles GET /health.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "email_verification"})
}

// Verify handles POST /verify.
//
// Request body: {"email": "user@example.com", "refresh": false}
//
// refresh drops any cached verdict before verifying.
func (s *Server) Verify(c *gin.Context) {
	var req struct {
		Email   string `json:"email" binding:"required"`
		Refresh bool   `json:"refresh"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "request body must contain an email"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	defer cancel()

	if req.Refresh {
		if err := s.verifier.Forget(ctx, req.Email); err != nil {
			s.logger.Warn("forget cached result", zap.String("email", req.Email), zap.Error(err))
		}
	}

	res, err := s.verifier.VerifySingle(ctx, req.Email)
	if err != nil {
		s.logger.Error("verification failed", zap.String("email", req.Email), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}

// VerifyBulk handles POST /verify-bulk.
//
// Request body: {"emails": ["a@example.com", "b@example.com"]}
func (s *Server) VerifyBulk(c *gin.Context) {
	var req struct {
		Emails []string `json:"emails"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request format"})
		return
	}
	if len(req.Emails) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "emails must not be empty"})
		return
	}
	if len(req.Emails) > s.cfg.MaxBulk {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   fmt.Sprintf("at most %d emails per request", s.cfg.MaxBulk),
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	defer cancel()

	results, err := s.verifier.VerifyBulk(ctx, req.Emails)
	if err != nil {
		s.logger.Error("bulk verification failed", zap.Int("count", len(req.Emails)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	valid := 0
	for _, r := range results {
		if r.IsVerified {
			valid++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"data":        results,
		"total":       len(results),
		"valid_count": valid,
	})
}

// requestLogger logs each request with zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
