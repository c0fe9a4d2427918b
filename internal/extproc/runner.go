// Package extproc runs the external tools the pipeline depends on (ffmpeg
// and the vrs CLI) with captured stderr and checked exit status. A tool that
// exits non-zero always surfaces as an ExternalToolError; results are never
// trusted on a best-effort basis.
package extproc

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/banshee-data/egopose/internal/monitoring"
)

// ExternalToolError reports an external tool run that failed.
type ExternalToolError struct {
	Tool     string
	Args     []string
	ExitCode int // -1 when the tool could not be started
	Stderr   string
}

func (e *ExternalToolError) Error() string {
	msg := fmt.Sprintf("%s %s: exit status %d", e.Tool, strings.Join(e.Args, " "), e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

// Runner executes an external tool to completion. Implementations must check
// the exit status; a nil return means the tool succeeded.
type Runner interface {
	Run(ctx context.Context, tool string, args ...string) error
}

// ExecRunner runs tools through os/exec with stderr capture.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, tool string, args ...string) error {
	monitoring.Logf("running %s with %d args", tool, len(args))

	cmd := exec.CommandContext(ctx, tool, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return &ExternalToolError{
			Tool:     tool,
			Args:     args,
			ExitCode: exitCode,
			Stderr:   stderr.String(),
		}
	}
	return nil
}
