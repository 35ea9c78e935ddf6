package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Vulkestra/AUS-Arch-User-Store/internal/aur"
	"github.com/Vulkestra/AUS-Arch-User-Store/internal/operation"
	"github.com/Vulkestra/AUS-Arch-User-Store/internal/pacman"
	"github.com/Vulkestra/AUS-Arch-User-Store/internal/runner"
	"github.com/Vulkestra/AUS-Arch-User-Store/internal/system"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors during tests
	}))
}

type fakeAUR struct {
	packages  map[string]aur.Package
	searchErr error
	pkgbuilds map[string]string

	mu           sync.Mutex
	popularTerms []string
}

func (f *fakeAUR) Search(ctx context.Context, query, by string) ([]aur.Package, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var out []aur.Package
	for _, p := range f.packages {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeAUR) Info(ctx context.Context, name string) (*aur.Package, error) {
	p, ok := f.packages[name]
	if !ok {
		return nil, aur.ErrNotFound
	}
	return &p, nil
}

func (f *fakeAUR) InfoMulti(ctx context.Context, names []string) ([]aur.Package, error) {
	var out []aur.Package
	for _, n := range names {
		if p, ok := f.packages[n]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeAUR) Popular(ctx context.Context, terms []string) ([]aur.Package, error) {
	f.mu.Lock()
	f.popularTerms = terms
	f.mu.Unlock()
	return []aur.Package{{Name: "popular-one", Popularity: 10}}, nil
}

func (f *fakeAUR) PKGBUILD(ctx context.Context, name string) (string, error) {
	body, ok := f.pkgbuilds[name]
	if !ok {
		return "", aur.ErrNotFound
	}
	return body, nil
}

type fakePacman struct {
	installed  []pacman.LocalPackage
	version    string
	updates    []pacman.Update
	updatesErr error
}

func (f *fakePacman) Installed(ctx context.Context) []pacman.LocalPackage {
	if f.installed == nil {
		return []pacman.LocalPackage{}
	}
	return f.installed
}

func (f *fakePacman) Query(ctx context.Context, name string) (string, bool) {
	for _, p := range f.installed {
		if p.Name == name {
			return p.Version, true
		}
	}
	return "", false
}

func (f *fakePacman) Version(ctx context.Context) string {
	return f.version
}

func (f *fakePacman) Updates(ctx context.Context, source pacman.InfoSource) ([]pacman.Update, error) {
	if f.updatesErr != nil {
		return nil, f.updatesErr
	}
	return f.updates, nil
}

type staticDetector string

func (d staticDetector) Detect(ctx context.Context) (string, bool) {
	return string(d), d != ""
}

type fixedStats system.Stats

func (f fixedStats) Stats() system.Stats {
	return system.Stats(f)
}

// echoRunner streams a few lines naming the package it was asked about,
// pausing between chunks so concurrent sessions interleave.
type echoRunner struct {
	exitCode int
}

func (e *echoRunner) Run(ctx context.Context, name string, args ...string) runner.Result {
	return runner.Result{}
}

func (e *echoRunner) Stream(ctx context.Context, name string, args []string, sink runner.Sink) (runner.Result, error) {
	if name == "missing-helper" {
		return runner.Result{ExitCode: runner.ExitNotStarted}, errors.New("exec: \"missing-helper\": executable file not found in $PATH")
	}
	label := "system"
	if len(args) > 1 && args[0] == "-S" {
		label = args[1]
	}
	for i := 0; i < 5; i++ {
		sink(runner.Stdout, []byte(fmt.Sprintf("%s line %d\n", label, i)))
		time.Sleep(2 * time.Millisecond)
	}
	return runner.Result{Success: e.exitCode == 0, ExitCode: e.exitCode}, nil
}

type testDeps struct {
	aur    *fakeAUR
	pacman *fakePacman
	helper string
	runner runner.Runner
	webDir string
	terms  func() []string
}

func defaultDeps() testDeps {
	return testDeps{
		aur: &fakeAUR{
			packages: map[string]aur.Package{
				"yay":  {Name: "yay", Version: "12.4.2-1", Popularity: 20},
				"paru": {Name: "paru", Version: "2.0.4-1", Popularity: 15},
			},
			pkgbuilds: map[string]string{"yay": "pkgname=yay\n"},
		},
		pacman: &fakePacman{
			installed: []pacman.LocalPackage{{Name: "yay", Version: "12.4.1-1"}},
			version:   "Pacman v6.1.0 - libalpm v14.0.0",
		},
		helper: "paru",
		runner: &echoRunner{},
	}
}

func newTestServer(t *testing.T, deps testDeps) *Server {
	t.Helper()
	logger := testLogger()
	manager := operation.NewManager(operation.Config{
		Detector: staticDetector(deps.helper),
		Runner:   deps.runner,
		Logger:   logger,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		manager.Wait(ctx)
	})

	return NewServer(ServerConfig{
		Addr:           "127.0.0.1:0",
		WebDir:         deps.webDir,
		AUR:            deps.aur,
		Pacman:         deps.pacman,
		Detector:       staticDetector(deps.helper),
		Stats:          fixedStats{CPU: 12, Memory: 34, Disk: 56},
		PopularTerms:   deps.terms,
		Dispatcher:     manager,
		StreamInterval: 20 * time.Millisecond,
	}, logger)
}
