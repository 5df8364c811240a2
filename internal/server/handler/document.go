// Package handler serves the document parsing HTTP endpoints.
package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/book-expert/logger"
	"github.com/gin-gonic/gin"

	"github.com/book-expert/ocr-parser-service/internal/docparser"
	"github.com/book-expert/ocr-parser-service/internal/dpi"
	"github.com/book-expert/ocr-parser-service/internal/server/service"
)

const defaultMaxUploadBytes = 100 << 20

// DocumentService defines the behavior consumed by the handler.
type DocumentService interface {
	Parse(
		ctx context.Context,
		file io.Reader,
		header *multipart.FileHeader,
		overrides service.Overrides,
	) (docparser.Result, error)
}

// ParseResponse is the JSON body of a successful parse.
type ParseResponse struct {
	Text    string `json:"text"`
	Sidecar string `json:"sidecar"`
	// Archive is the file name to fetch from the archives endpoint, empty
	// when no archive was kept.
	Archive   string `json:"archive"`
	Attempts  int    `json:"attempts"`
	TextState string `json:"text_state"`
	DPI       int    `json:"dpi,omitempty"`
}

// DocumentHandler manages document HTTP interactions.
type DocumentHandler struct {
	service        DocumentService
	archiveDir     string
	maxUploadBytes int64
	log            *logger.Logger
}

// NewDocumentHandler builds the handler. Archives are served from archiveDir.
func NewDocumentHandler(
	svc DocumentService,
	archiveDir string,
	maxUploadBytes int64,
	log *logger.Logger,
) *DocumentHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}

	return &DocumentHandler{
		service:        svc,
		archiveDir:     archiveDir,
		maxUploadBytes: maxUploadBytes,
		log:            log,
	}
}

// HandleParse parses an uploaded document.
func (h *DocumentHandler) HandleParse(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	if err := c.Request.ParseMultipartForm(h.maxUploadBytes); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error": "invalid multipart payload",
		})

		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error": "missing file",
		})

		return
	}
	defer file.Close()

	overrides := service.Overrides{
		Mode:     c.Request.FormValue("mode"),
		Language: c.Request.FormValue("lang"),
		Pages:    c.Request.FormValue("pages"),
	}

	result, err := h.service.Parse(c.Request.Context(), file, header, overrides)
	if err != nil {
		status := StatusForError(err)
		h.log.Error("Parse of %s failed with status %d: %v", header.Filename, status, err)
		c.AbortWithStatusJSON(status, gin.H{
			"error": err.Error(),
		})

		return
	}

	archive := ""
	if result.ArchivePath != "" {
		archive = filepath.Base(result.ArchivePath)
	}

	c.JSON(http.StatusOK, ParseResponse{
		Text:      result.Text,
		Sidecar:   result.Sidecar,
		Archive:   archive,
		Attempts:  result.Attempts,
		TextState: result.State.String(),
		DPI:       result.DPI,
	})
}

// HandleArchive serves a retained archive by file name.
func (h *DocumentHandler) HandleArchive(c *gin.Context) {
	name := c.Param("name")
	if name == "" || name != filepath.Base(name) || !strings.EqualFold(filepath.Ext(name), ".pdf") {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error": "invalid archive name",
		})

		return
	}

	path := filepath.Join(h.archiveDir, name)

	info, statErr := os.Stat(path)
	if statErr != nil || info.IsDir() {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"error": "archive not found",
		})

		return
	}

	c.FileAttachment(path, name)
}

// StatusForError maps a parse failure onto an HTTP status.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidOverride):
		return http.StatusBadRequest
	case errors.Is(err, docparser.ErrUnsupportedSource):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, dpi.ErrNoDPI):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusBadGateway
	}
}
