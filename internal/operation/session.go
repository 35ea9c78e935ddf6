package operation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Vulkestra/AUS-Arch-User-Store/internal/runner"
)

// State is a session's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	msgNoHelperInstall = "No AUR helper found. Please install yay or paru first."
	msgNoHelperUpdate  = "No AUR helper found."
)

// HelperDetector finds the AUR helper to use for install and update.
type HelperDetector interface {
	Detect(ctx context.Context) (string, bool)
}

// plan is the concrete process a command resolves to.
type plan struct {
	program string
	args    []string
	start   string
	success string
	failure string // formatted with the exit code
}

func planFor(cmd Command, helper, elevate string) plan {
	switch cmd.Action {
	case ActionInstall:
		args := []string{"-S", cmd.Package}
		if cmd.NoConfirm {
			args = append(args, "--noconfirm")
		}
		return plan{
			program: helper,
			args:    args,
			start:   fmt.Sprintf("Installing %s using %s...", cmd.Package, helper),
			success: fmt.Sprintf("%s installed successfully!", cmd.Package),
			failure: "Installation failed with code %d",
		}
	case ActionRemove:
		return plan{
			program: elevate,
			args:    []string{"pacman", "-Rns", cmd.Package, "--noconfirm"},
			start:   fmt.Sprintf("Removing %s...", cmd.Package),
			success: fmt.Sprintf("%s removed successfully!", cmd.Package),
			failure: "Removal failed with code %d",
		}
	default:
		return plan{
			program: helper,
			args:    []string{"-Syu", "--noconfirm"},
			start:   "Updating system...",
			success: "System updated successfully!",
			failure: "Update failed with code %d",
		}
	}
}

// Session drives one command from acceptance to its single terminal event.
type Session struct {
	id       string
	cmd      Command
	detector HelperDetector
	runner   runner.Runner
	elevate  string
	emitter  Emitter
	logger   *slog.Logger

	mu    sync.Mutex
	state State
	done  chan struct{}
}

func newSession(id string, cmd Command, m *Manager, emitter Emitter) *Session {
	return &Session{
		id:       id,
		cmd:      cmd,
		detector: m.detector,
		runner:   m.runner,
		elevate:  m.elevate,
		emitter:  emitter,
		logger:   m.logger.With("op", id, "action", string(cmd.Action), "package", cmd.Package),
		state:    StateIdle,
		done:     make(chan struct{}),
	}
}

// ID identifies the session in logs.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session has emitted its terminal event.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// emit forwards an event unless the session already terminated. Holding the
// lock across Emit keeps stdout and stderr chunks from interleaving within
// the emitter and keeps the terminal event last, so an Emitter must return
// promptly: a blocked Emit stalls the process output pumps.
func (s *Session) emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTerminated {
		s.logger.Warn("dropping event after termination", "type", e.Type)
		return
	}

	switch {
	case e.Terminal():
		s.state = StateTerminated
	case e.Type == EventStart:
		s.state = StateRunning
	}

	s.emitter.Emit(e)
}

func (s *Session) transition(to State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = to
}

// Run executes the session to completion. It blocks until the process exits.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)

	s.transition(StateStarting)

	var helperName string
	if s.cmd.needsHelper() {
		name, ok := s.detector.Detect(ctx)
		if !ok {
			s.logger.Warn("no AUR helper found")
			if s.cmd.Action == ActionInstall {
				s.emit(Failed(msgNoHelperInstall))
			} else {
				s.emit(Failed(msgNoHelperUpdate))
			}
			return
		}
		helperName = name
	}

	p := planFor(s.cmd, helperName, s.elevate)
	s.logger.Info("starting operation", "cmd", runner.CommandLine(p.program, p.args...))
	s.emit(Started(p.start))

	result, err := s.runner.Stream(ctx, p.program, p.args, func(_ runner.Stream, chunk []byte) {
		s.emit(Output(chunk))
	})
	if err != nil {
		s.logger.Error("operation failed to launch", "error", err)
		s.emit(Failed(err.Error()))
		return
	}

	if result.Success {
		s.logger.Info("operation completed")
		s.emit(Completed(true, p.success))
		return
	}

	s.logger.Warn("operation failed", "code", result.ExitCode)
	s.emit(Completed(false, fmt.Sprintf(p.failure, result.ExitCode)))
}
