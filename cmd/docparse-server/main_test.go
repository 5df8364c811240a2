package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/book-expert/ocr-parser-service/internal/config"
)

func TestApplyServerFlags(t *testing.T) {
	t.Parallel()

	cfg := config.Default().Server
	cfg.APIKey = "from-file"

	applyServerFlags(&cfg, "", "")
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "from-file", cfg.APIKey)

	applyServerFlags(&cfg, "127.0.0.1:9000", "from-flag")
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, "from-flag", cfg.APIKey)
}
