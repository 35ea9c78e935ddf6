package operation

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Vulkestra/AUS-Arch-User-Store/internal/runner"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// MockDetector implements HelperDetector.
type MockDetector struct {
	mock.Mock
}

func (m *MockDetector) Detect(ctx context.Context) (string, bool) {
	args := m.Called(ctx)
	return args.String(0), args.Bool(1)
}

// invocation records one Stream call.
type invocation struct {
	program string
	args    []string
}

type scriptedChunk struct {
	stream runner.Stream
	data   string
}

// FakeRunner replays scripted output instead of running processes.
type FakeRunner struct {
	mu          sync.Mutex
	invocations []invocation
	chunks      []scriptedChunk
	result      runner.Result
	launchErr   error
}

func NewFakeRunner(exitCode int, chunks ...scriptedChunk) *FakeRunner {
	return &FakeRunner{
		chunks: chunks,
		result: runner.Result{Success: exitCode == 0, ExitCode: exitCode},
	}
}

func (f *FakeRunner) Run(ctx context.Context, name string, args ...string) runner.Result {
	return f.result
}

func (f *FakeRunner) Stream(ctx context.Context, name string, args []string, sink runner.Sink) (runner.Result, error) {
	f.mu.Lock()
	f.invocations = append(f.invocations, invocation{program: name, args: append([]string(nil), args...)})
	f.mu.Unlock()

	if f.launchErr != nil {
		return runner.Result{ExitCode: runner.ExitNotStarted}, f.launchErr
	}
	for _, c := range f.chunks {
		sink(c.stream, []byte(c.data))
	}
	return f.result, nil
}

func (f *FakeRunner) Invocations() []invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]invocation(nil), f.invocations...)
}

// Recorder collects emitted events.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func newTestManager(detector HelperDetector, r runner.Runner) *Manager {
	return NewManager(Config{
		Detector: detector,
		Runner:   r,
		Logger:   testLogger(),
	})
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("session %s did not terminate", s.ID())
	}
}

// requireGrammar checks start output* (complete|error), or a lone error.
func requireGrammar(t *testing.T, events []Event) {
	t.Helper()
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	require.True(t, last.Terminal(), "last event must be terminal, got %s", last.Type)

	if len(events) == 1 {
		require.Equal(t, EventError, last.Type, "a lone event must be a precondition failure")
		return
	}

	require.Equal(t, EventStart, events[0].Type)
	for _, e := range events[1 : len(events)-1] {
		require.Equal(t, EventOutput, e.Type)
	}
}
