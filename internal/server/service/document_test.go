package service_test

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/ocr-parser-service/internal/docparser"
	"github.com/book-expert/ocr-parser-service/internal/ocrparams"
	"github.com/book-expert/ocr-parser-service/internal/server/service"
)

type fakeParser struct {
	result      docparser.Result
	err         error
	lastCfg     ocrparams.Config
	lastSource  docparser.Source
	lastContent []byte
}

func (f *fakeParser) Config() ocrparams.Config {
	return ocrparams.DefaultConfig()
}

func (f *fakeParser) ParseWithConfig(
	_ context.Context,
	cfg ocrparams.Config,
	src docparser.Source,
) (docparser.Result, error) {
	f.lastCfg = cfg
	f.lastSource = src

	content, readErr := os.ReadFile(src.Path)
	if readErr != nil {
		return docparser.Result{}, readErr
	}

	f.lastContent = content

	if f.err != nil {
		return docparser.Result{}, f.err
	}

	return f.result, nil
}

func newService(t *testing.T, parser service.Parser) (*service.DocumentService, string) {
	t.Helper()

	log, loggerErr := logger.New(t.TempDir(), "test.log")
	require.NoError(t, loggerErr)

	workDir := t.TempDir()

	return service.NewDocumentService(parser, workDir, log), workDir
}

func fileHeader(name, contentType string) *multipart.FileHeader {
	header := textproto.MIMEHeader{}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}

	return &multipart.FileHeader{Filename: name, Header: header, Size: 0}
}

func TestDocumentService_Parse_Success(t *testing.T) {
	t.Parallel()

	parser := &fakeParser{
		result: docparser.Result{Text: "hello", Attempts: 1},
	}
	svc, workDir := newService(t, parser)

	result, err := svc.Parse(
		context.Background(),
		bytes.NewBufferString("%PDF-1.7"),
		fileHeader("Scan.PDF", ""),
		service.Overrides{Mode: "force", Language: "deu", Pages: "3"},
	)
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Text)

	assert.Equal(t, ocrparams.ModeForce, parser.lastCfg.Mode)
	assert.Equal(t, "deu", parser.lastCfg.Language)
	assert.Equal(t, 3, parser.lastCfg.PageLimit)
	assert.Equal(t, "application/pdf", parser.lastSource.MimeType)
	assert.Equal(t, ".pdf", filepath.Ext(parser.lastSource.Path))
	assert.Equal(t, workDir, filepath.Dir(parser.lastSource.Path))
	assert.Equal(t, []byte("%PDF-1.7"), parser.lastContent)
	assert.NoFileExists(t, parser.lastSource.Path, "upload is removed after parsing")
}

func TestDocumentService_Parse_ContentTypeFallback(t *testing.T) {
	t.Parallel()

	parser := &fakeParser{}
	svc, _ := newService(t, parser)

	_, err := svc.Parse(
		context.Background(),
		bytes.NewBufferString("png"),
		fileHeader("blob", "image/png"),
		service.Overrides{},
	)
	require.NoError(t, err)
	assert.Equal(t, "image/png", parser.lastSource.MimeType)
	assert.Equal(t, ocrparams.DefaultConfig(), parser.lastCfg)
}

func TestDocumentService_Parse_Errors(t *testing.T) {
	t.Parallel()

	t.Run("Unsupported type", func(t *testing.T) {
		t.Parallel()

		parser := &fakeParser{}
		svc, _ := newService(t, parser)

		_, err := svc.Parse(
			context.Background(),
			bytes.NewBufferString("text"),
			fileHeader("notes.txt", "text/plain"),
			service.Overrides{},
		)
		require.ErrorIs(t, err, docparser.ErrUnsupportedSource)
		assert.Empty(t, parser.lastSource.Path)
	})

	t.Run("Invalid override", func(t *testing.T) {
		t.Parallel()

		parser := &fakeParser{}
		svc, _ := newService(t, parser)

		_, err := svc.Parse(
			context.Background(),
			bytes.NewBufferString("%PDF"),
			fileHeader("doc.pdf", ""),
			service.Overrides{Mode: "sometimes"},
		)
		require.ErrorIs(t, err, service.ErrInvalidOverride)
		require.ErrorIs(t, err, ocrparams.ErrInvalidMode)
	})

	t.Run("Parser error propagates", func(t *testing.T) {
		t.Parallel()

		parseErr := errors.New("ocr failed")
		parser := &fakeParser{err: parseErr}
		svc, _ := newService(t, parser)

		_, err := svc.Parse(
			context.Background(),
			bytes.NewBufferString("%PDF"),
			fileHeader("doc.pdf", ""),
			service.Overrides{},
		)
		require.ErrorIs(t, err, parseErr)
	})
}

func TestApplyOverrides(t *testing.T) {
	t.Parallel()

	base := ocrparams.DefaultConfig()

	cfg, err := service.ApplyOverrides(base, service.Overrides{})
	require.NoError(t, err)
	assert.Equal(t, base, cfg)

	cfg, err = service.ApplyOverrides(base, service.Overrides{Mode: "skip_noarchive", Pages: " 0 "})
	require.NoError(t, err)
	assert.Equal(t, ocrparams.ModeSkipNoArchive, cfg.Mode)
	assert.Equal(t, 0, cfg.PageLimit)

	for _, pages := range []string{"-1", "two", "1.5"} {
		_, err = service.ApplyOverrides(base, service.Overrides{Pages: pages})
		require.ErrorIs(t, err, service.ErrInvalidOverride, pages)
	}
}

func TestSaveUploadedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	path, cleanup, err := service.SaveUploadedFile(bytes.NewBufferString("data"), dir, ".PNG")
	require.NoError(t, err)
	assert.Equal(t, ".png", filepath.Ext(path))

	content, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "data", string(content))

	cleanup()
	assert.NoFileExists(t, path)

	_, _, err = service.SaveUploadedFile(bytes.NewBufferString("data"), filepath.Join(dir, "missing"), "")
	require.Error(t, err)
}
