package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/Vulkestra/AUS-Arch-User-Store/internal/helper"
	"github.com/Vulkestra/AUS-Arch-User-Store/internal/pacman"
	"github.com/Vulkestra/AUS-Arch-User-Store/internal/settings"
	"github.com/Vulkestra/AUS-Arch-User-Store/internal/system"
)

func newDoctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Show the detected AUR helper, pacman version and host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))

			prefs, err := settings.Load(a.cfg.SettingsPath)
			if err != nil {
				return err
			}
			store := settings.NewStore(prefs)

			detector := helper.NewDetector(logger, a.detectorOptions(store.Helpers)...)
			pac := pacman.NewClient(a.runner(logger), logger)
			info := system.Info(ctx)

			fmt.Fprintf(a.out, "Host:          %s (%s, kernel %s)\n", info.Hostname, info.Platform, info.KernelVersion)
			fmt.Fprintf(a.out, "Uptime:        %s\n", time.Duration(info.Uptime)*time.Second)
			fmt.Fprintf(a.out, "Pacman:        %s\n", pac.Version(ctx))
			fmt.Fprintf(a.out, "Helper order:  %v\n", prefs.Helpers)
			if name, ok := detector.Detect(ctx); ok {
				fmt.Fprintf(a.out, "AUR helper:    %s\n", color.Green.Sprint(name))
			} else {
				fmt.Fprintf(a.out, "AUR helper:    %s\n", color.Red.Sprint("none found, install yay or paru"))
			}
			fmt.Fprintf(a.out, "Elevation:     %s\n", a.cfg.Elevate)
			return nil
		},
	}
}
