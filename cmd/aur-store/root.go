package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Vulkestra/AUS-Arch-User-Store/internal/config"
	"github.com/Vulkestra/AUS-Arch-User-Store/internal/helper"
	"github.com/Vulkestra/AUS-Arch-User-Store/internal/runner"
)

// app carries what every subcommand needs. Tests swap the runner, the
// helper probe and the output.
type app struct {
	cfg    *config.Config
	out    io.Writer
	runner func(logger *slog.Logger) runner.Runner
	probe  helper.ProbeFunc
}

func newApp() *app {
	return &app{
		cfg: config.Load(),
		out: os.Stdout,
		runner: func(logger *slog.Logger) runner.Runner {
			return runner.New(logger)
		},
	}
}

// logger builds the process logger: JSON on stdout at the configured level.
func (a *app) logger() *slog.Logger {
	level, err := config.ParseLevel(a.cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(a.out, &slog.HandlerOptions{
		Level: level,
	}))
}

func (a *app) detectorOptions(candidates helper.CandidateSource) []helper.Option {
	var opts []helper.Option
	if candidates != nil {
		opts = append(opts, helper.WithCandidates(candidates))
	}
	if a.probe != nil {
		opts = append(opts, helper.WithProbe(a.probe))
	}
	return opts
}

func newRootCmd(a *app) *cobra.Command {
	serve := newServeCmd(a)

	root := &cobra.Command{
		Use:           "aur-store",
		Short:         "Web console for browsing and installing AUR packages",
		Long:          "aur-store serves a browser UI for searching the Arch User Repository and installing, removing and updating packages through the local AUR helper.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		// Bare invocation serves
		RunE: serve.RunE,
	}
	a.cfg.BindFlags(root.PersistentFlags())

	root.AddCommand(serve, newDoctorCmd(a), newInstalledCmd(a))
	return root
}
