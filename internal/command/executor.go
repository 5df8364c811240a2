// Package command runs the external binaries the parser depends on
// (pdfinfo, pdftotext, ocrmypdf).
package command

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// ErrEmptyCommand is returned when no binary name is given.
var ErrEmptyCommand = errors.New("command name cannot be empty")

// Executor defines an interface for running external commands.
// Every caller goes through it so unit tests can fake the binaries.
type Executor interface {
	// Run executes a command and returns its standard output.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	// RunCombined executes a command and returns its combined standard output and
	// standard error.
	RunCombined(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewExecutor returns the os/exec backed Executor used in production.
func NewExecutor() Executor {
	return &defaultExecutor{}
}

type defaultExecutor struct{}

// Run is the production implementation for executing a command.
func (executor *defaultExecutor) Run(
	ctx context.Context,
	name string,
	args ...string,
) ([]byte, error) {
	if name == "" {
		return nil, ErrEmptyCommand
	}

	return exec.CommandContext(ctx, name, args...).Output()
}

// RunCombined is the production implementation for executing a command and capturing all
// output.
func (executor *defaultExecutor) RunCombined(
	ctx context.Context,
	name string,
	args ...string,
) ([]byte, error) {
	if name == "" {
		return nil, ErrEmptyCommand
	}

	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// ExitCode extracts the process exit code from an error returned by an Executor.
// The boolean is false when the command never ran (missing binary, permissions).
func ExitCode(execErr error) (int, bool) {
	var exitErr *exec.ExitError
	if errors.As(execErr, &exitErr) {
		return exitErr.ExitCode(), true
	}

	return 0, false
}

// LookPath checks whether binary is available on PATH.
func LookPath(binary string) (string, error) {
	path, lookErr := exec.LookPath(binary)
	if lookErr != nil {
		return "", fmt.Errorf("%s binary not found: %w", binary, lookErr)
	}

	return path, nil
}
