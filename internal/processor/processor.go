// Package processor invokes the external stylesheet transformation tool.
//
// The tool is a black box: given an input path and an output path it reads
// the input, transforms it and writes the output. Invocations are
// synchronous and have no timeout.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Transformer transforms the stylesheet at input and writes it to output.
type Transformer interface {
	Transform(ctx context.Context, input, output string) error
}

// Func adapts an ordinary function to the Transformer interface.
type Func func(ctx context.Context, input, output string) error

// Transform calls f(ctx, input, output).
func (f Func) Transform(ctx context.Context, input, output string) error {
	return f(ctx, input, output)
}

// TransformationFailed reports a failed tool invocation for the effective
// input that was handed to the tool.
type TransformationFailed struct {
	Input string
	Err   error
}

func (e *TransformationFailed) Error() string {
	return fmt.Sprintf("transformation of %s failed: %v", e.Input, e.Err)
}

func (e *TransformationFailed) Unwrap() error { return e.Err }

// Exec runs the tool as `name [args...] input output`.
type Exec struct {
	name   string
	args   []string
	dir    string
	logger *slog.Logger
}

// ExecOption configures an Exec.
type ExecOption func(*Exec)

// WithArgs sets leading arguments placed before the input and output paths.
func WithArgs(args ...string) ExecOption {
	return func(e *Exec) {
		e.args = append([]string(nil), args...)
	}
}

// WithDir sets the working directory of the tool process.
func WithDir(dir string) ExecOption {
	return func(e *Exec) {
		e.dir = dir
	}
}

// WithLogger sets the logger used for exit status reporting.
func WithLogger(logger *slog.Logger) ExecOption {
	return func(e *Exec) {
		e.logger = logger
	}
}

// NewExec creates a transformer for the named tool.
func NewExec(name string, opts ...ExecOption) *Exec {
	e := &Exec{
		name:   name,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Name returns the tool name.
func (e *Exec) Name() string { return e.name }

// Transform runs the tool and returns an error for invocation failures and
// non-zero exit codes. The error carries the tool's combined output.
func (e *Exec) Transform(ctx context.Context, input, output string) error {
	args := make([]string, 0, len(e.args)+2)
	args = append(args, e.args...)
	args = append(args, input, output)

	out, exitCode, err := e.run(ctx, args)

	e.logger.Debug("processor exited",
		slog.String("tool", e.name),
		slog.String("input", input),
		slog.Int("status", exitCode),
	)

	if err != nil {
		return commandError(e.name, err, out)
	}

	return nil
}

func (e *Exec) run(ctx context.Context, args []string) (string, int, error) {
	cmd := exec.CommandContext(ctx, e.name, args...) //nolint:gosec
	cmd.Dir = e.dir

	out, err := cmd.CombinedOutput()

	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}

	return string(out), exitCode, err
}

func commandError(name string, err error, output string) error {
	output = strings.TrimSpace(output)

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if output == "" {
			return fmt.Errorf("%s exited with status %d", name, exitErr.ExitCode())
		}

		return fmt.Errorf("%s exited with status %d: %s", name, exitErr.ExitCode(), output)
	}

	return fmt.Errorf("running %s: %w", name, err)
}
