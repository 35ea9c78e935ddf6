package operation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Vulkestra/AUS-Arch-User-Store/internal/runner"
)

func detectorWith(helper string) *MockDetector {
	d := &MockDetector{}
	d.On("Detect", mock.Anything).Return(helper, helper != "")
	return d
}

func TestSession_InstallStreamsAndCompletes(t *testing.T) {
	fr := NewFakeRunner(0,
		scriptedChunk{runner.Stdout, "resolving dependencies...\n"},
		scriptedChunk{runner.Stderr, "warning: something\n"},
		scriptedChunk{runner.Stdout, "installing foo\n"},
	)
	m := newTestManager(detectorWith("paru"), fr)
	rec := &Recorder{}

	s := m.Start(context.Background(), Install("foo", false), rec)
	waitDone(t, s)

	events := rec.Events()
	requireGrammar(t, events)
	require.Len(t, events, 5)

	assert.Equal(t, Started("Installing foo using paru..."), events[0])
	assert.Equal(t, "resolving dependencies...\n", events[1].Data)
	assert.Equal(t, "warning: something\n", events[2].Data)
	assert.Equal(t, "installing foo\n", events[3].Data)
	assert.Equal(t, Completed(true, "foo installed successfully!"), events[4])
	assert.Equal(t, StateTerminated, s.State())

	inv := fr.Invocations()
	require.Len(t, inv, 1)
	assert.Equal(t, "paru", inv[0].program)
	assert.Equal(t, []string{"-S", "foo"}, inv[0].args)
}

func TestSession_InstallNoConfirm(t *testing.T) {
	fr := NewFakeRunner(0)
	m := newTestManager(detectorWith("yay"), fr)

	s := m.Start(context.Background(), Install("foo", true), &Recorder{})
	waitDone(t, s)

	inv := fr.Invocations()
	require.Len(t, inv, 1)
	assert.Equal(t, "yay", inv[0].program)
	assert.Equal(t, []string{"-S", "foo", "--noconfirm"}, inv[0].args)
}

func TestSession_InstallWithoutHelper(t *testing.T) {
	fr := NewFakeRunner(0)
	m := newTestManager(detectorWith(""), fr)
	rec := &Recorder{}

	s := m.Start(context.Background(), Install("foo", false), rec)
	waitDone(t, s)

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
	assert.Contains(t, events[0].Message, "No AUR helper found")
	assert.Empty(t, fr.Invocations(), "no process may be spawned without a helper")
}

func TestSession_UpdateWithoutHelper(t *testing.T) {
	fr := NewFakeRunner(0)
	m := newTestManager(detectorWith(""), fr)
	rec := &Recorder{}

	s := m.Start(context.Background(), Update(), rec)
	waitDone(t, s)

	assert.Equal(t, []Event{Failed("No AUR helper found.")}, rec.Events())
	assert.Empty(t, fr.Invocations())
}

func TestSession_RemoveNeverConsultsDetector(t *testing.T) {
	for _, helper := range []string{"", "paru", "yay"} {
		t.Run(fmt.Sprintf("helper=%q", helper), func(t *testing.T) {
			fr := NewFakeRunner(0)
			d := detectorWith(helper)
			m := newTestManager(d, fr)
			rec := &Recorder{}

			s := m.Start(context.Background(), Remove("foo"), rec)
			waitDone(t, s)

			d.AssertNotCalled(t, "Detect", mock.Anything)

			inv := fr.Invocations()
			require.Len(t, inv, 1)
			assert.Equal(t, "sudo", inv[0].program)
			assert.Equal(t, []string{"pacman", "-Rns", "foo", "--noconfirm"}, inv[0].args)

			events := rec.Events()
			requireGrammar(t, events)
			assert.Equal(t, Started("Removing foo..."), events[0])
			assert.Equal(t, Completed(true, "foo removed successfully!"), events[len(events)-1])
		})
	}
}

func TestSession_RemoveCustomElevation(t *testing.T) {
	fr := NewFakeRunner(0)
	m := NewManager(Config{Detector: detectorWith(""), Runner: fr, Elevate: "doas", Logger: testLogger()})

	s := m.Start(context.Background(), Remove("foo"), &Recorder{})
	waitDone(t, s)

	inv := fr.Invocations()
	require.Len(t, inv, 1)
	assert.Equal(t, "doas", inv[0].program)
}

func TestSession_Update(t *testing.T) {
	fr := NewFakeRunner(0, scriptedChunk{runner.Stdout, ":: Starting full system upgrade...\n"})
	m := newTestManager(detectorWith("paru"), fr)
	rec := &Recorder{}

	s := m.Start(context.Background(), Update(), rec)
	waitDone(t, s)

	inv := fr.Invocations()
	require.Len(t, inv, 1)
	assert.Equal(t, "paru", inv[0].program)
	assert.Equal(t, []string{"-Syu", "--noconfirm"}, inv[0].args)

	events := rec.Events()
	requireGrammar(t, events)
	assert.Equal(t, Started("Updating system..."), events[0])
	assert.Equal(t, Completed(true, "System updated successfully!"), events[2])
}

func TestSession_ExitCodes(t *testing.T) {
	tests := []struct {
		name        string
		cmd         Command
		code        int
		wantSuccess bool
		wantMessage string
	}{
		{"install ok", Install("foo", false), 0, true, "foo installed successfully!"},
		{"install 42", Install("foo", false), 42, false, "Installation failed with code 42"},
		{"remove 42", Remove("foo"), 42, false, "Removal failed with code 42"},
		{"update 1", Update(), 1, false, "Update failed with code 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(detectorWith("paru"), NewFakeRunner(tt.code))
			rec := &Recorder{}

			s := m.Start(context.Background(), tt.cmd, rec)
			waitDone(t, s)

			events := rec.Events()
			requireGrammar(t, events)
			last := events[len(events)-1]
			assert.Equal(t, EventComplete, last.Type)
			assert.Equal(t, tt.wantSuccess, last.Success)
			assert.Equal(t, tt.wantMessage, last.Message)
		})
	}
}

func TestSession_LaunchFailure(t *testing.T) {
	fr := NewFakeRunner(0)
	fr.launchErr = errors.New("fork/exec /usr/bin/paru: permission denied")
	m := newTestManager(detectorWith("paru"), fr)
	rec := &Recorder{}

	s := m.Start(context.Background(), Install("foo", false), rec)
	waitDone(t, s)

	events := rec.Events()
	requireGrammar(t, events)
	require.Len(t, events, 2)
	assert.Equal(t, EventStart, events[0].Type)
	assert.Equal(t, Failed("fork/exec /usr/bin/paru: permission denied"), events[1])
}

func TestSession_DropsEventsAfterTermination(t *testing.T) {
	m := newTestManager(detectorWith("paru"), NewFakeRunner(0))
	rec := &Recorder{}
	s := newSession("op-test", Install("foo", false), m, rec)

	s.emit(Started("x"))
	s.emit(Completed(true, "done"))
	s.emit(Output([]byte("late")))
	s.emit(Failed("late"))

	assert.Equal(t, []Event{Started("x"), Completed(true, "done")}, rec.Events())
}

func TestSession_StateTransitions(t *testing.T) {
	m := newTestManager(detectorWith("paru"), NewFakeRunner(0))
	s := newSession("op-test", Install("foo", false), m, &Recorder{})
	assert.Equal(t, StateIdle, s.State())

	s.transition(StateStarting)
	assert.Equal(t, StateStarting, s.State())

	s.emit(Started("x"))
	assert.Equal(t, StateRunning, s.State())

	s.emit(Completed(false, "y"))
	assert.Equal(t, StateTerminated, s.State())
	assert.Equal(t, "terminated", s.State().String())
}

// concurrentRunner writes from two goroutines like the real runner does.
type concurrentRunner struct {
	FakeRunner
	perStream int
}

func (c *concurrentRunner) Stream(ctx context.Context, name string, args []string, sink runner.Sink) (runner.Result, error) {
	var wg sync.WaitGroup
	for _, st := range []runner.Stream{runner.Stdout, runner.Stderr} {
		wg.Add(1)
		go func(st runner.Stream) {
			defer wg.Done()
			for i := 0; i < c.perStream; i++ {
				sink(st, []byte(fmt.Sprintf("%s-%d\n", st, i)))
			}
		}(st)
	}
	wg.Wait()
	return runner.Result{Success: true}, nil
}

func TestSession_OrderWithinStreamPreserved(t *testing.T) {
	cr := &concurrentRunner{perStream: 200}
	m := newTestManager(detectorWith("paru"), cr)
	rec := &Recorder{}

	s := m.Start(context.Background(), Install("foo", false), rec)
	waitDone(t, s)

	events := rec.Events()
	requireGrammar(t, events)
	require.Len(t, events, 2+2*cr.perStream)

	next := map[string]int{"stdout": 0, "stderr": 0}
	for _, e := range events[1 : len(events)-1] {
		var stream string
		var n int
		_, err := fmt.Sscanf(strings.Replace(e.Data, "-", " ", 1), "%s %d", &stream, &n)
		require.NoError(t, err)
		assert.Equal(t, next[stream], n, "chunks from %s out of order", stream)
		next[stream] = n + 1
	}
}

func TestManager_IndependentSessions(t *testing.T) {
	m := newTestManager(detectorWith("paru"), NewFakeRunner(0, scriptedChunk{runner.Stdout, "x"}))
	recA, recB := &Recorder{}, &Recorder{}

	a := m.Start(context.Background(), Install("a", false), recA)
	b := m.Start(context.Background(), Install("b", false), recB)
	waitDone(t, a)
	waitDone(t, b)

	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, "a installed successfully!", recA.Events()[2].Message)
	assert.Equal(t, "b installed successfully!", recB.Events()[2].Message)
	require.NoError(t, m.Wait(context.Background()))
	assert.Zero(t, m.Active())
}

func TestManager_DetachedFromCallerContext(t *testing.T) {
	m := newTestManager(detectorWith("paru"), NewFakeRunner(0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &Recorder{}
	s := m.Start(ctx, Remove("foo"), rec)
	waitDone(t, s)

	events := rec.Events()
	requireGrammar(t, events)
	assert.True(t, events[len(events)-1].Success)
}
