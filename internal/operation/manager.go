// Package operation runs install, remove and update commands as independent
// sessions and reports their progress as an ordered stream of events.
package operation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Vulkestra/AUS-Arch-User-Store/internal/runner"
)

// DefaultElevate is the privilege wrapper used for pacman removals.
const DefaultElevate = "sudo"

// Config wires a Manager to its collaborators.
type Config struct {
	Detector HelperDetector
	Runner   runner.Runner
	Elevate  string
	Logger   *slog.Logger
}

// Manager starts sessions. Sessions run concurrently with no locking
// between them, even for the same package.
type Manager struct {
	detector HelperDetector
	runner   runner.Runner
	elevate  string
	logger   *slog.Logger

	seq    atomic.Uint64
	active atomic.Int64
	wg     sync.WaitGroup
}

// NewManager creates a Manager.
func NewManager(cfg Config) *Manager {
	elevate := cfg.Elevate
	if elevate == "" {
		elevate = DefaultElevate
	}
	return &Manager{
		detector: cfg.Detector,
		runner:   cfg.Runner,
		elevate:  elevate,
		logger:   cfg.Logger,
	}
}

// Start launches cmd in its own goroutine and returns immediately. The
// session is detached from ctx cancellation: a client going away does not
// stop a running package operation.
func (m *Manager) Start(ctx context.Context, cmd Command, emitter Emitter) *Session {
	id := fmt.Sprintf("op-%d", m.seq.Add(1))
	s := newSession(id, cmd, m, emitter)

	m.active.Add(1)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.active.Add(-1)
		s.Run(context.WithoutCancel(ctx))
	}()

	return s
}

// Active returns the number of sessions that have not terminated.
func (m *Manager) Active() int {
	return int(m.active.Load())
}

// Wait blocks until every started session has terminated or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
