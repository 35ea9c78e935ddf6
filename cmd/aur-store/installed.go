package main

import (
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Vulkestra/AUS-Arch-User-Store/internal/pacman"
)

func newInstalledCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "installed",
		Short: "List installed AUR (foreign) packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			pkgs := pacman.NewClient(a.runner(logger), logger).Installed(cmd.Context())
			if len(pkgs) == 0 {
				fmt.Fprintln(a.out, "no foreign packages installed")
				return nil
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			for _, p := range pkgs {
				fmt.Fprintf(tw, "%s\t%s\n", p.Name, p.Version)
			}
			return tw.Flush()
		},
	}
}
