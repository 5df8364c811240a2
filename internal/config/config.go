// Package config loads the TOML configuration shared by the docparse binaries.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/pelletier/go-toml/v2"

	"github.com/book-expert/ocr-parser-service/internal/dpi"
	"github.com/book-expert/ocr-parser-service/internal/ocrparams"
)

const (
	defaultBinary         = "ocrmypdf"
	defaultTimeout        = 10 * time.Minute
	defaultServerAddr     = ":8080"
	defaultMaxUploadBytes = 100 << 20
)

// ErrInvalidConfig is returned when a loaded configuration is out of bounds.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the overall configuration of the parser binaries.
type Config struct {
	OCR    ocrparams.Config `toml:"ocr"`
	Engine EngineConfig     `toml:"engine"`
	Paths  PathsConfig      `toml:"paths"`
	Batch  BatchConfig      `toml:"batch"`
	NATS   NATSConfig       `toml:"nats"`
	Server ServerConfig     `toml:"server"`
}

// EngineConfig configures the external OCR tool and image handling.
type EngineConfig struct {
	Binary      string       `toml:"binary"`
	Timeout     Duration     `toml:"timeout"`
	DPIRounding dpi.Rounding `toml:"dpi_rounding"`
}

// PathsConfig holds directory locations.
type PathsConfig struct {
	WorkDir     string `toml:"work_dir"`
	ArchiveDir  string `toml:"archive_dir"`
	InputDir    string `toml:"input_dir"`
	OutputDir   string `toml:"output_dir"`
	BaseLogsDir string `toml:"base_logs_dir"`
}

// BatchConfig configures directory processing.
type BatchConfig struct {
	Workers int `toml:"workers"`
}

// NATSConfig holds the JetStream resources used by the queue worker.
type NATSConfig struct {
	URL                      string `toml:"url"`
	SourceStreamName         string `toml:"source_stream_name"`
	SourceConsumerName       string `toml:"source_consumer_name"`
	SourceCreatedSubject     string `toml:"source_created_subject"`
	SourceObjectStoreBucket  string `toml:"source_object_store_bucket"`
	ParsedStreamName         string `toml:"parsed_stream_name"`
	ParsedSubject            string `toml:"parsed_subject"`
	TextObjectStoreBucket    string `toml:"text_object_store_bucket"`
	ArchiveObjectStoreBucket string `toml:"archive_object_store_bucket"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `toml:"addr"`
	// APIKey enables the x-api-key check when set.
	APIKey         string `toml:"api_key"`
	MaxUploadBytes int64  `toml:"max_upload_bytes"`
	ReleaseMode    bool   `toml:"release_mode"`
}

// Duration is a time.Duration read from strings such as "90s" or "10m".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, parseErr := time.ParseDuration(string(text))
	if parseErr != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), parseErr)
	}

	d.Duration = parsed

	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used for everything a file leaves out.
func Default() Config {
	return Config{
		OCR: ocrparams.DefaultConfig(),
		Engine: EngineConfig{
			Binary:      defaultBinary,
			Timeout:     Duration{Duration: defaultTimeout},
			DPIRounding: dpi.RoundNearest,
		},
		Paths: PathsConfig{
			WorkDir:     "",
			ArchiveDir:  "",
			InputDir:    "",
			OutputDir:   "",
			BaseLogsDir: "",
		},
		Batch: BatchConfig{Workers: 0},
		NATS: NATSConfig{
			URL:                      "nats://127.0.0.1:4222",
			SourceStreamName:         "PDF_FILES",
			SourceConsumerName:       "ocr-parser",
			SourceCreatedSubject:     "pdf.created",
			SourceObjectStoreBucket:  "PDF_FILES",
			ParsedStreamName:         "PARSED_DOCUMENTS",
			ParsedSubject:            "document.parsed",
			TextObjectStoreBucket:    "DOCUMENT_TEXT",
			ArchiveObjectStoreBucket: "DOCUMENT_ARCHIVES",
		},
		Server: ServerConfig{
			Addr:           defaultServerAddr,
			APIKey:         "",
			MaxUploadBytes: defaultMaxUploadBytes,
			ReleaseMode:    false,
		},
	}
}

// Load reads the TOML file at path over the defaults. A missing file yields
// the defaults without error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, readErr := os.ReadFile(path)
	if readErr != nil {
		if errors.Is(readErr, os.ErrNotExist) {
			return cfg, nil
		}

		return Config{}, fmt.Errorf("error loading config file: %w", readErr)
	}

	decodeErr := toml.Unmarshal(data, &cfg)
	if decodeErr != nil {
		return Config{}, fmt.Errorf("failed to decode config file: %w", decodeErr)
	}

	return cfg, cfg.Validate()
}

// LoadFromURL fetches the configuration from a remote TOML document.
func LoadFromURL(url string, log *logger.Logger) (Config, error) {
	cfg := Default()

	loadErr := configurator.LoadFromURL(url, &cfg, log)
	if loadErr != nil {
		return Config{}, fmt.Errorf("failed to load configuration from URL %s: %w", url, loadErr)
	}

	return cfg, cfg.Validate()
}

// Validate checks the OCR settings and numeric bounds.
func (cfg Config) Validate() error {
	ocrErr := cfg.OCR.Validate()
	if ocrErr != nil {
		return fmt.Errorf("%w: [ocr] section: %w", ErrInvalidConfig, ocrErr)
	}

	if cfg.Engine.Timeout.Duration < 0 {
		return fmt.Errorf("%w: [engine] timeout %s", ErrInvalidConfig, cfg.Engine.Timeout)
	}

	if cfg.Batch.Workers < 0 {
		return fmt.Errorf("%w: [batch] workers %d", ErrInvalidConfig, cfg.Batch.Workers)
	}

	return nil
}
