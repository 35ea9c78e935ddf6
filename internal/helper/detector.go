// Package helper finds which AUR helper is installed on the host.
package helper

import (
	"context"
	"log/slog"
	"os/exec"
)

// DefaultCandidates is the built-in priority order. Earlier entries win.
var DefaultCandidates = []string{"paru", "yay", "pikaur", "trizen", "aurman"}

// ProbeFunc reports whether a program is resolvable on the current PATH.
type ProbeFunc func(name string) bool

// CandidateSource supplies the ordered candidate list for one detection.
type CandidateSource func() []string

// Detector probes candidate helpers in priority order. Nothing is cached:
// the set of installed helpers can change between calls.
type Detector struct {
	candidates CandidateSource
	probe      ProbeFunc
	logger     *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithProbe replaces the PATH lookup, mainly for tests.
func WithProbe(probe ProbeFunc) Option {
	return func(d *Detector) {
		d.probe = probe
	}
}

// WithCandidates replaces the default candidate list. The source is consulted
// on every detection so a reloaded settings file takes effect immediately.
func WithCandidates(source CandidateSource) Option {
	return func(d *Detector) {
		d.candidates = source
	}
}

// NewDetector creates a detector using exec.LookPath and DefaultCandidates.
func NewDetector(logger *slog.Logger, opts ...Option) *Detector {
	d := &Detector{
		candidates: func() []string { return DefaultCandidates },
		probe:      lookPath,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func lookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// Detect returns the first candidate that probes successfully. ok is false
// when none is installed, which callers must treat as a normal outcome.
func (d *Detector) Detect(ctx context.Context) (name string, ok bool) {
	for _, candidate := range d.candidates() {
		if ctx.Err() != nil {
			return "", false
		}
		if candidate == "" {
			continue
		}
		if d.probe(candidate) {
			d.logger.Debug("detected AUR helper", "helper", candidate)
			return candidate, true
		}
	}

	d.logger.Debug("no AUR helper found")
	return "", false
}
