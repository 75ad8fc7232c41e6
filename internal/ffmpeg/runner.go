// Package ffmpeg provides FFmpeg/FFprobe binary detection and structured
// command execution for the processing pipeline.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"time"
)

// Default per-operation timeouts.
const (
	ProbeTimeout     = 30 * time.Second
	PosterTimeout    = 60 * time.Second
	PreviewTimeout   = 300 * time.Second
	SegmentTimeout   = 60 * time.Second
	ConcatTimeout    = 60 * time.Second
	EncodeTimeout    = 3600 * time.Second
	PackagingTimeout = 7200 * time.Second
)

// maxCapturedOutput bounds stdout/stderr retained on a Result.
const maxCapturedOutput = 64 * 1024

// Result is the structured outcome of one tool invocation. Tool failures
// are reported through the Result fields rather than as Go errors, so
// callers branch on Success instead of unwinding.
type Result struct {
	Success         bool    `json:"success"`
	ExitCode        int     `json:"exit_code"`
	Stdout          string  `json:"stdout,omitempty"`
	Stderr          string  `json:"stderr,omitempty"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	TimedOut        bool    `json:"timed_out"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// RunSpec describes one tool invocation.
type RunSpec struct {
	// Binary is the resolved tool path. Empty means the invocation fails
	// with a tool-unavailable Result.
	Binary string
	// Args are passed verbatim to the binary.
	Args []string
	// Timeout bounds the invocation wall-clock time. Zero means no bound
	// beyond the caller's context.
	Timeout time.Duration
	// Operation labels the invocation in logs, e.g. "poster" or "encode".
	Operation string
}

// Runner executes tool invocations. The production implementation shells
// out; tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, spec RunSpec) *Result
}

// execRunner runs commands via os/exec.
type execRunner struct {
	logger *slog.Logger
}

// NewRunner creates a Runner that shells out to the given binaries.
func NewRunner(logger *slog.Logger) Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &execRunner{logger: logger}
}

// Run executes the command described by spec. It never returns tool
// failures as panics or errors: every outcome is encoded in the Result.
func (r *execRunner) Run(ctx context.Context, spec RunSpec) *Result {
	log := r.logger.With(
		slog.String("operation", spec.Operation),
		slog.String("binary", spec.Binary),
	)

	if spec.Binary == "" {
		log.Warn("tool binary not available")
		return &Result{ErrorMessage: "tool binary not available"}
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, spec.Binary, spec.Args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	result := &Result{
		Stdout:          truncateOutput(stdout.String()),
		Stderr:          truncateOutput(stderr.String()),
		DurationSeconds: elapsed.Seconds(),
	}

	switch {
	case err == nil:
		result.Success = true
	case runCtx.Err() != nil:
		result.TimedOut = errors.Is(runCtx.Err(), context.DeadlineExceeded)
		result.ExitCode = -1
		if result.TimedOut {
			result.ErrorMessage = "operation timed out after " + spec.Timeout.String()
		} else {
			result.ErrorMessage = "operation canceled"
		}
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			result.ErrorMessage = lastStderrLine(result.Stderr)
			if result.ErrorMessage == "" {
				result.ErrorMessage = err.Error()
			}
		} else {
			result.ExitCode = -1
			result.ErrorMessage = err.Error()
		}
	}

	if result.Success {
		log.Debug("command completed",
			slog.Float64("duration_seconds", result.DurationSeconds))
	} else {
		log.Warn("command failed",
			slog.Int("exit_code", result.ExitCode),
			slog.Bool("timed_out", result.TimedOut),
			slog.String("error", result.ErrorMessage))
	}

	return result
}

// truncateOutput bounds captured tool output.
func truncateOutput(s string) string {
	if len(s) <= maxCapturedOutput {
		return s
	}
	return s[:maxCapturedOutput]
}

// lastStderrLine returns the last non-empty line of tool stderr, which for
// ffmpeg is usually the actual error.
func lastStderrLine(stderr string) string {
	var last string
	start := 0
	for i := 0; i <= len(stderr); i++ {
		if i == len(stderr) || stderr[i] == '\n' {
			if line := stderr[start:i]; len(line) > 0 {
				last = line
			}
			start = i + 1
		}
	}
	return last
}
