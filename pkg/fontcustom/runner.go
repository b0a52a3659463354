package fontcustom

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTool is the fontcustom executable looked up on PATH.
const DefaultTool = "fontcustom"

// waitDelay bounds how long Run waits for output pipes held open by
// grandchildren after the tool was killed.
const waitDelay = 2 * time.Second

// ErrToolFailed matches every error returned by a failed tool invocation.
var ErrToolFailed = errors.New("fontcustom failed")

// Runner executes the font generation tool with the given arguments.
type Runner interface {
	Run(ctx context.Context, args []string) error
}

// ToolError describes a failed invocation, keeping the tool output as
// diagnostics.
type ToolError struct {
	Tool   string
	Args   []string
	Output string
	Err    error
}

func (e *ToolError) Error() string {
	tool := e.Tool
	if tool == "" {
		tool = DefaultTool
	}
	msg := fmt.Sprintf("%s %s: %v", tool, strings.Join(e.Args, " "), e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\n" + out
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

func (e *ToolError) Is(target error) bool { return target == ErrToolFailed }

// ExecRunner runs the tool as a child process.
type ExecRunner struct {
	Tool   string
	logger *zap.Logger
}

// NewExecRunner returns a runner for tool, defaulting to DefaultTool.
func NewExecRunner(tool string, logger *zap.Logger) *ExecRunner {
	if tool == "" {
		tool = DefaultTool
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecRunner{Tool: tool, logger: logger}
}

// Run resolves the tool on PATH and executes it, capturing stdout and stderr
// into the returned error on failure.
func (r *ExecRunner) Run(ctx context.Context, args []string) error {
	execPath, err := exec.LookPath(r.Tool)
	if err != nil {
		r.logger.Error("Tool not found", zap.String("tool", r.Tool), zap.Error(err))
		return &ToolError{Tool: r.Tool, Args: args, Err: err}
	}

	startTime := time.Now()
	r.logger.Debug("Executing tool", zap.String("execPath", execPath), zap.Strings("args", args))

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, execPath, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w (%v)", ctxErr, err)
		}
		r.logger.Warn("Tool exited with error",
			zap.Strings("args", args),
			zap.Duration("elapsed", time.Since(startTime)),
			zap.Error(err))
		return &ToolError{Tool: execPath, Args: args, Output: output.String(), Err: err}
	}

	r.logger.Debug("Tool completed", zap.Duration("elapsed", time.Since(startTime)))
	return nil
}
