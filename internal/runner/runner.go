// Package runner launches external programs, either collecting their output
// or streaming it chunk by chunk to a caller-supplied sink.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/kballard/go-shellquote"
)

// ExitNotStarted is the exit code reported when the process never started.
const ExitNotStarted = -1

// chunkSize is the read buffer used when streaming process output.
const chunkSize = 32 * 1024

// Stream identifies which output stream a chunk came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Result describes a finished process.
type Result struct {
	Success  bool
	Stdout   string
	Stderr   string
	ExitCode int
}

// Sink receives one chunk of raw process output. It is called from one
// goroutine per stream, so implementations must be safe for concurrent use.
type Sink func(stream Stream, chunk []byte)

// Runner is implemented by ExecRunner and by test doubles.
type Runner interface {
	// Run waits for the process to exit and returns everything it printed.
	// A program that cannot be started is reported through Result with
	// ExitCode set to ExitNotStarted, never as an error.
	Run(ctx context.Context, name string, args ...string) Result

	// Stream starts the process and hands every output chunk to sink as it
	// arrives. It returns once both streams are drained and the process has
	// exited. Launch failures are returned as errors; a non-zero exit is not.
	// Output is not accumulated in the returned Result.
	Stream(ctx context.Context, name string, args []string, sink Sink) (Result, error)
}

// ExecRunner runs programs with os/exec.
type ExecRunner struct {
	logger *slog.Logger
	env    []string
}

// New creates an ExecRunner. Children inherit the parent environment with
// TERM forced to a color-capable value.
func New(logger *slog.Logger) *ExecRunner {
	return &ExecRunner{
		logger: logger,
		env:    append(os.Environ(), "TERM=xterm-256color"),
	}
}

// CommandLine renders argv the way a shell user would type it.
func CommandLine(name string, args ...string) string {
	return shellquote.Join(append([]string{name}, args...)...)
}

func (r *ExecRunner) command(ctx context.Context, name string, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = r.env
	return cmd
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) Result {
	var stdout, stderr bytes.Buffer

	cmd := r.command(ctx, name, args)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("running command", "cmd", CommandLine(name, args...))

	if err := cmd.Start(); err != nil {
		r.logger.Debug("command could not start", "cmd", name, "error", err)
		return Result{ExitCode: ExitNotStarted}
	}

	result := exitResult(cmd.Wait())
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	return result
}

// Stream implements Runner.
func (r *ExecRunner) Stream(ctx context.Context, name string, args []string, sink Sink) (Result, error) {
	cmd := r.command(ctx, name, args)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{ExitCode: ExitNotStarted}, fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{ExitCode: ExitNotStarted}, fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	line := CommandLine(name, args...)
	r.logger.Info("starting process", "cmd", line)

	if err := cmd.Start(); err != nil {
		r.logger.Error("process failed to start", "cmd", line, "error", err)
		return Result{ExitCode: ExitNotStarted}, err
	}

	// Both pipes must be drained before Wait closes them.
	var wg sync.WaitGroup
	wg.Add(2)
	go pump(&wg, stdout, Stdout, sink)
	go pump(&wg, stderr, Stderr, sink)
	wg.Wait()

	result := exitResult(cmd.Wait())
	r.logger.Info("process exited", "cmd", line, "code", result.ExitCode)
	return result, nil
}

func pump(wg *sync.WaitGroup, src io.Reader, stream Stream, sink Sink) {
	defer wg.Done()

	buf := make([]byte, chunkSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			sink(stream, chunk)
		}
		if err != nil {
			return
		}
	}
}

func exitResult(err error) Result {
	if err == nil {
		return Result{Success: true}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Result{ExitCode: exitErr.ExitCode()}
	}
	return Result{ExitCode: ExitNotStarted}
}

var _ Runner = (*ExecRunner)(nil)
