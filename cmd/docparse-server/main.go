// Command docparse-server serves the document parser over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"

	"github.com/book-expert/ocr-parser-service/internal/config"
	"github.com/book-expert/ocr-parser-service/internal/docparser"
	"github.com/book-expert/ocr-parser-service/internal/ocrengine"
	"github.com/book-expert/ocr-parser-service/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := flag.String("addr", "", "Listen address, overriding [server] addr.")
	apiKey := flag.String("api-key", os.Getenv("API_KEY"), "Required x-api-key value; empty disables the check.")
	flag.Parse()

	if err := run(ctx, *addr, *apiKey); err != nil {
		log.Printf("Fatal application error: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, addr, apiKey string) error {
	projectRoot, configPath, err := configurator.FindProjectRoot(".")
	if err != nil {
		return fmt.Errorf("could not find project root: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	applyServerFlags(&cfg.Server, addr, apiKey)

	logsDir := cfg.Paths.BaseLogsDir
	if logsDir == "" {
		logsDir = filepath.Join(projectRoot, "logs", "docparse-server")
	}

	appLogger, err := logger.New(logsDir, "docparse-server.log")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		if closeErr := appLogger.Close(); closeErr != nil {
			log.Printf("Warning: failed to close app logger: %v", closeErr)
		}
	}()

	parser, engine := docparser.NewDefaultParser(
		docparser.Options{WorkDir: cfg.Paths.WorkDir, ArchiveDir: cfg.Paths.ArchiveDir},
		cfg.OCR,
		ocrengine.Options{Binary: cfg.Engine.Binary, Timeout: cfg.Engine.Timeout.Duration},
		cfg.Engine.DPIRounding,
		appLogger,
	)

	if binaryErr := engine.EnsureBinary(); binaryErr != nil {
		return binaryErr
	}

	return server.Run(ctx, cfg.Server, parser, cfg.Paths.WorkDir, appLogger)
}

// applyServerFlags lets non-empty flags override the [server] section.
func applyServerFlags(cfg *config.ServerConfig, addr, apiKey string) {
	if addr != "" {
		cfg.Addr = addr
	}

	if apiKey != "" {
		cfg.APIKey = apiKey
	}
}
