// Package invoice_gateway exposes invoice operations and reconciled reads over
// HTTP.
package invoice_gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/invoice-ledger/internal/config"
	"github.com/invoice-ledger/internal/invoice_gateway/handler"
	"github.com/invoice-ledger/internal/invoice_gateway/service"
)

// Server handles HTTP requests and manages the application's lifecycle
type Server struct {
	logger          *slog.Logger
	httpServer      *http.Server
	httpRouter      *gin.Engine
	shutdownTimeout time.Duration
}

// NewServer creates and configures a new HTTP server with the given services
func NewServer(log *slog.Logger, cfg *config.Config, operationService service.OperationService, invoiceService service.InvoiceService) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpRouter := gin.New()

	operationHandler := handler.NewOperationHandler(log, operationService)
	invoiceHandler := handler.NewInvoiceHandler(log, invoiceService)

	setupRouter(log, httpRouter, operationHandler, invoiceHandler, cfg.Server.EnableMint)
	if cfg.Server.EnableMint {
		log.Warn("Mint route enabled", "route", "/api/v1/mints")
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:          log,
		httpServer:      httpServer,
		httpRouter:      httpRouter,
		shutdownTimeout: cfg.Server.ShutdownTimeout,
	}
}

// Handler exposes the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.httpRouter
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server, waiting at most the configured
// shutdown timeout for in-flight requests
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}
	return nil
}
