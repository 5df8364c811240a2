package batch_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/ocr-parser-service/internal/batch"
	"github.com/book-expert/ocr-parser-service/internal/docparser"
)

type fakeParser struct {
	mu      sync.Mutex
	failFor map[string]error
	sources []docparser.Source
}

func (f *fakeParser) Parse(_ context.Context, src docparser.Source) (docparser.Result, error) {
	f.mu.Lock()
	f.sources = append(f.sources, src)
	f.mu.Unlock()

	if parseErr, ok := f.failFor[filepath.Base(src.Path)]; ok {
		return docparser.Result{}, parseErr
	}

	archivePath := filepath.Join(src.ArchiveDir, "archive.pdf")

	writeErr := os.WriteFile(archivePath, []byte("%PDF"), 0o600)
	if writeErr != nil {
		return docparser.Result{}, writeErr
	}

	return docparser.Result{
		Text:        "text of " + filepath.Base(src.Path),
		ArchivePath: archivePath,
		Sidecar:     "[OCR skipped on page(s) 2]",
		Attempts:    1,
	}, nil
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, loggerErr := logger.New(t.TempDir(), "test.log")
	require.NoError(t, loggerErr)

	return log
}

func TestNewProcessor_Defaults(t *testing.T) {
	t.Parallel()

	log := newTestLogger(t)

	t.Run("Zero values should default correctly", func(t *testing.T) {
		t.Parallel()

		processor := batch.NewProcessor(&batch.Options{
			ProgressBarOutput: nil,
			InputPath:         "",
			OutputPath:        "",
			Workers:           0,
		}, &fakeParser{}, log)
		cfg := processor.ConfigForTest()
		assert.Equal(t, max(runtime.NumCPU()/2, 1), cfg.Workers)
		assert.Equal(t, os.Stdout, cfg.ProgressBarOutput)
	})

	t.Run("Custom values should be preserved", func(t *testing.T) {
		t.Parallel()

		processor := batch.NewProcessor(&batch.Options{
			ProgressBarOutput: nil,
			InputPath:         "in",
			OutputPath:        "out",
			Workers:           4,
		}, &fakeParser{}, log)
		assert.Equal(t, 4, processor.ConfigForTest().Workers)
	})
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	log := newTestLogger(t)

	proc := batch.NewProcessor(&batch.Options{InputPath: "", OutputPath: ""}, &fakeParser{}, log)
	require.ErrorIs(t, proc.ValidateConfigForTest(), batch.ErrInputPathRequired)

	proc = batch.NewProcessor(&batch.Options{InputPath: "in", OutputPath: ""}, &fakeParser{}, log)
	require.ErrorIs(t, proc.ValidateConfigForTest(), batch.ErrOutputPathRequired)

	proc = batch.NewProcessor(&batch.Options{InputPath: "in", OutputPath: "out"}, &fakeParser{}, log)
	require.NoError(t, proc.ValidateConfigForTest())
}

func TestDiscoverDocuments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"a.pdf", "b.PDF", "c.txt", "d.JPEG", "e.tif", "f.webp"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(""), 0o600))
	}

	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.pdf"), 0o750))

	documents, err := batch.DiscoverDocuments(dir)
	require.NoError(t, err)
	require.Len(t, documents, 5)

	types := make(map[string]string, len(documents))
	for _, document := range documents {
		types[filepath.Base(document.Path)] = document.MimeType
	}

	assert.Equal(t, map[string]string{
		"a.pdf":  "application/pdf",
		"b.PDF":  "application/pdf",
		"d.JPEG": "image/jpeg",
		"e.tif":  "image/tiff",
		"f.webp": "image/webp",
	}, types)

	_, err = batch.DiscoverDocuments(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestSetupOutputDirectory(t *testing.T) {
	t.Parallel()

	base := t.TempDir()

	outputDir, err := batch.SetupOutputDirectoryForTest(base, "/input/My Scan.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "My Scan_png"), outputDir)
	assert.DirExists(t, outputDir)
}

func TestSetupOutputDirectory_SameStemDifferentType(t *testing.T) {
	t.Parallel()

	base := t.TempDir()

	pdfDir, err := batch.SetupOutputDirectoryForTest(base, "/input/scan.pdf")
	require.NoError(t, err)

	pngDir, err := batch.SetupOutputDirectoryForTest(base, "/input/scan.png")
	require.NoError(t, err)

	assert.NotEqual(t, pdfDir, pngDir)
	assert.Equal(t, filepath.Join(base, "scan_pdf"), pdfDir)
	assert.Equal(t, filepath.Join(base, "scan_png"), pngDir)
}

func TestProcess_EmptyDirectory(t *testing.T) {
	t.Parallel()

	proc := batch.NewProcessor(&batch.Options{
		ProgressBarOutput: &bytes.Buffer{},
		InputPath:         t.TempDir(),
		OutputPath:        t.TempDir(),
		Workers:           1,
	}, &fakeParser{}, newTestLogger(t))

	_, err := proc.Process(context.Background())
	require.ErrorIs(t, err, batch.ErrNoDocuments)
}

func TestProcess_ParsesEveryDocument(t *testing.T) {
	t.Parallel()

	inDir := t.TempDir()
	outDir := t.TempDir()

	for _, name := range []string{"one.pdf", "two.png", "broken.pdf", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(inDir, name), []byte("content"), 0o600))
	}

	parser := &fakeParser{
		mu:      sync.Mutex{},
		failFor: map[string]error{"broken.pdf": errors.New("both attempts failed")},
		sources: nil,
	}

	var progress bytes.Buffer

	proc := batch.NewProcessor(&batch.Options{
		ProgressBarOutput: &progress,
		InputPath:         inDir,
		OutputPath:        outDir,
		Workers:           2,
	}, parser, newTestLogger(t))

	summary, err := proc.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, batch.Summary{Parsed: 2, Failed: 1}, summary)
	assert.NotEqual(t, 0, progress.Len())
	assert.Len(t, parser.sources, 3)

	for _, src := range parser.sources {
		assert.Equal(t, outDir, filepath.Dir(src.ArchiveDir))
	}

	text, readErr := os.ReadFile(filepath.Join(outDir, "one_pdf", "text.txt"))
	require.NoError(t, readErr)
	assert.Equal(t, "text of one.pdf", string(text))

	sidecar, readErr := os.ReadFile(filepath.Join(outDir, "two_png", "sidecar.txt"))
	require.NoError(t, readErr)
	assert.Equal(t, "[OCR skipped on page(s) 2]", string(sidecar))

	assert.FileExists(t, filepath.Join(outDir, "two_png", "archive.pdf"))
	assert.NoFileExists(t, filepath.Join(outDir, "broken_pdf", "text.txt"))
}

func TestProcess_CancelledContextSkipsDocuments(t *testing.T) {
	t.Parallel()

	inDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(inDir, "one.pdf"), []byte("content"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	parser := &fakeParser{}
	proc := batch.NewProcessor(&batch.Options{
		ProgressBarOutput: &bytes.Buffer{},
		InputPath:         inDir,
		OutputPath:        t.TempDir(),
		Workers:           1,
	}, parser, newTestLogger(t))

	summary, err := proc.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, batch.Summary{Parsed: 0, Failed: 1}, summary)
	assert.Empty(t, parser.sources)
}
