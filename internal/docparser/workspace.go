package docparser

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
)

const (
	workspaceDirMode = 0o700
	archiveDirMode   = 0o755
	archiveFileMode  = 0o644
)

// workspace is the scratch directory owned by exactly one parse.
type workspace struct {
	dir string
	log *logger.Logger
}

func acquireWorkspace(baseDir string, log *logger.Logger) (*workspace, error) {
	dir := filepath.Join(baseDir, "docparse-"+uuid.NewString())

	mkdirErr := os.MkdirAll(dir, workspaceDirMode)
	if mkdirErr != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", mkdirErr)
	}

	return &workspace{dir: dir, log: log}, nil
}

func (ws *workspace) path(name string) string {
	return filepath.Join(ws.dir, name)
}

// release removes the workspace and everything left in it.
func (ws *workspace) release() {
	removeErr := os.RemoveAll(ws.dir)
	if removeErr != nil {
		ws.log.Warn("Failed to remove workspace %s: %v", ws.dir, removeErr)
	}
}

// moveFile renames src to dst, copying when they live on different devices.
func moveFile(src, dst string) error {
	renameErr := os.Rename(src, dst)
	if renameErr == nil {
		return nil
	}

	if !errors.Is(renameErr, syscall.EXDEV) {
		return fmt.Errorf("failed to move %s: %w", src, renameErr)
	}

	copyErr := copyFile(src, dst)
	if copyErr != nil {
		return copyErr
	}

	return os.Remove(src)
}

func copyFile(src, dst string) error {
	source, openErr := os.Open(src)
	if openErr != nil {
		return fmt.Errorf("failed to open %s: %w", src, openErr)
	}
	defer source.Close()

	target, createErr := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, archiveFileMode)
	if createErr != nil {
		return fmt.Errorf("failed to create %s: %w", dst, createErr)
	}

	_, copyErr := io.Copy(target, source)
	closeErr := target.Close()

	if copyErr != nil {
		return fmt.Errorf("failed to copy %s: %w", src, copyErr)
	}

	if closeErr != nil {
		return fmt.Errorf("failed to close %s: %w", dst, closeErr)
	}

	return nil
}
