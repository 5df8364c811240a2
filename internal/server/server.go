// Package server runs the HTTP API of the document parser.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/book-expert/logger"
	"github.com/gin-gonic/gin"

	"github.com/book-expert/ocr-parser-service/internal/config"
	"github.com/book-expert/ocr-parser-service/internal/server/handler"
	"github.com/book-expert/ocr-parser-service/internal/server/router"
	"github.com/book-expert/ocr-parser-service/internal/server/service"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// Parser is the parsing dependency of the API.
type Parser interface {
	service.Parser
	ArchiveDir() string
}

// NewHandler builds the dependency chain and returns the routed engine.
func NewHandler(cfg config.ServerConfig, parser Parser, workDir string, log *logger.Logger) *gin.Engine {
	documentService := service.NewDocumentService(parser, workDir, log)
	documentHandler := handler.NewDocumentHandler(
		documentService,
		parser.ArchiveDir(),
		cfg.MaxUploadBytes,
		log,
	)

	return router.New(cfg.APIKey, documentHandler)
}

// Run serves the API until ctx is cancelled.
func Run(ctx context.Context, cfg config.ServerConfig, parser Parser, workDir string, log *logger.Logger) error {
	if cfg.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(cfg, parser, workDir, log),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	shutdownErr := make(chan error, 1)

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		shutdownErr <- httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("Listening on %s", cfg.Addr)

	serveErr := httpServer.ListenAndServe()
	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", serveErr)
	}

	if err := <-shutdownErr; err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	return nil
}
