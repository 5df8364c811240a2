package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/ocr-parser-service/internal/batch"
	"github.com/book-expert/ocr-parser-service/internal/config"
	"github.com/book-expert/ocr-parser-service/internal/docparser"
	"github.com/book-expert/ocr-parser-service/internal/dpi"
	"github.com/book-expert/ocr-parser-service/internal/ocrengine"
	"github.com/book-expert/ocr-parser-service/internal/ocrparams"
)

func baseConfig() config.Config {
	cfg := config.Default()
	cfg.Paths.InputDir = "/config/in"
	cfg.Paths.OutputDir = "/config/out"
	cfg.Paths.WorkDir = "/config/work"
	cfg.Paths.BaseLogsDir = "/config/logs"
	cfg.Batch.Workers = 4
	cfg.OCR.PageLimit = 10
	cfg.Engine.Timeout = config.Duration{Duration: time.Minute}
	cfg.Engine.DPIRounding = dpi.RoundFloor

	return cfg
}

// TestMergeConfigAndFlags verifies that command-line flags correctly override
// config file settings.
func TestMergeConfigAndFlags(t *testing.T) {
	t.Parallel()

	t.Run("Flags should override all corresponding config values", func(t *testing.T) {
		t.Parallel()

		opts, err := mergeConfigAndFlags(baseConfig(), flags{
			inputPath:  "/flag/in",
			outputPath: "/flag/out",
			mode:       "redo",
			language:   "deu",
			pages:      0,
			workers:    8,
		})
		require.NoError(t, err)

		assert.Equal(t, batch.Options{
			ProgressBarOutput: nil,
			InputPath:         "/flag/in",
			OutputPath:        "/flag/out",
			Workers:           8,
		}, opts.batch)
		assert.Equal(t, ocrparams.ModeRedo, opts.ocr.Mode)
		assert.Equal(t, "deu", opts.ocr.Language)
		assert.Equal(t, 0, opts.ocr.PageLimit)
	})

	t.Run("Config values should be used when flags are not provided", func(t *testing.T) {
		t.Parallel()

		cfg := baseConfig()

		opts, err := mergeConfigAndFlags(cfg, flags{
			inputPath:  "",
			outputPath: "",
			mode:       "",
			language:   "",
			pages:      -1,
			workers:    0,
		})
		require.NoError(t, err)

		assert.Equal(t, batch.Options{
			ProgressBarOutput: nil,
			InputPath:         "/config/in",
			OutputPath:        "/config/out",
			Workers:           4,
		}, opts.batch)
		assert.Equal(t, cfg.OCR, opts.ocr)
		assert.Equal(t, docparser.Options{WorkDir: "/config/work", ArchiveDir: ""}, opts.parser)
		assert.Equal(t, ocrengine.Options{Binary: "ocrmypdf", Timeout: time.Minute}, opts.engine)
		assert.Equal(t, dpi.RoundFloor, opts.rounding)
		assert.Equal(t, "/config/logs", opts.logsDir)
	})

	t.Run("Invalid mode flag is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := mergeConfigAndFlags(baseConfig(), flags{
			inputPath:  "",
			outputPath: "",
			mode:       "always",
			language:   "",
			pages:      -1,
			workers:    0,
		})
		require.ErrorIs(t, err, ocrparams.ErrInvalidMode)
	})
}

func TestParseFlags(t *testing.T) {
	t.Parallel()

	flgs, err := parseFlags([]string{"-input", "in", "-output", "out", "-mode", "force", "-pages", "3", "-lang", "fra"})
	require.NoError(t, err)
	assert.Equal(t, flags{
		inputPath:  "in",
		outputPath: "out",
		mode:       "force",
		language:   "fra",
		pages:      3,
		workers:    0,
	}, flgs)

	flgs, err = parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, -1, flgs.pages, "an unset page limit keeps the configured one")

	_, err = parseFlags([]string{"-unknown"})
	require.Error(t, err)
}
