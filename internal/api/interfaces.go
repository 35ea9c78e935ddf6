package api

import (
	"context"

	"github.com/Vulkestra/AUS-Arch-User-Store/internal/aur"
	"github.com/Vulkestra/AUS-Arch-User-Store/internal/pacman"
	"github.com/Vulkestra/AUS-Arch-User-Store/internal/system"
)

// AURClient is the subset of *aur.Client the handlers use.
type AURClient interface {
	Search(ctx context.Context, query, by string) ([]aur.Package, error)
	Info(ctx context.Context, name string) (*aur.Package, error)
	InfoMulti(ctx context.Context, names []string) ([]aur.Package, error)
	Popular(ctx context.Context, terms []string) ([]aur.Package, error)
	PKGBUILD(ctx context.Context, name string) (string, error)
}

// PackageDB is the subset of *pacman.Client the handlers use.
type PackageDB interface {
	Installed(ctx context.Context) []pacman.LocalPackage
	Query(ctx context.Context, name string) (string, bool)
	Version(ctx context.Context) string
	Updates(ctx context.Context, source pacman.InfoSource) ([]pacman.Update, error)
}

// HelperDetector finds the AUR helper reported by /api/system.
type HelperDetector interface {
	Detect(ctx context.Context) (string, bool)
}

// StatsSource returns the latest host usage snapshot.
type StatsSource interface {
	Stats() system.Stats
}
