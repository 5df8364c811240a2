// Package router wires the HTTP routes of the parser API.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/book-expert/ocr-parser-service/internal/server/middleware"
)

// DocumentHandler defines the interface for the document handler.
type DocumentHandler interface {
	HandleParse(c *gin.Context)
	HandleArchive(c *gin.Context)
}

// New wires up handlers to the Gin engine.
func New(apiKey string, documentHandler DocumentHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	v1 := r.Group("/api/v1")
	{
		documents := v1.Group("/documents")
		documents.Use(middleware.WithAPIKey(apiKey))

		documents.POST("/parse", documentHandler.HandleParse)
		documents.GET("/archives/:name", documentHandler.HandleArchive)
	}

	return r
}
