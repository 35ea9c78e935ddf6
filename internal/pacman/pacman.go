// Package pacman queries the local package database.
package pacman

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Vulkestra/AUS-Arch-User-Store/internal/aur"
	"github.com/Vulkestra/AUS-Arch-User-Store/internal/runner"
)

// UnknownVersion is reported when pacman --version cannot be read.
const UnknownVersion = "Unknown"

// LocalPackage is an installed package.
type LocalPackage struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Update is a foreign package with a newer version in the AUR.
type Update struct {
	Name      string `json:"name"`
	Installed string `json:"installed"`
	Available string `json:"available"`
}

// InfoSource looks up AUR records for a set of names.
type InfoSource interface {
	InfoMulti(ctx context.Context, names []string) ([]aur.Package, error)
}

// Client runs pacman queries through a Runner.
type Client struct {
	runner runner.Runner
	logger *slog.Logger
}

// NewClient creates a pacman client.
func NewClient(r runner.Runner, logger *slog.Logger) *Client {
	return &Client{runner: r, logger: logger}
}

// Installed lists foreign (AUR) packages. pacman exits non-zero when there
// are none, so a failed query yields an empty list.
func (c *Client) Installed(ctx context.Context) []LocalPackage {
	res := c.runner.Run(ctx, "pacman", "-Qm")
	if !res.Success {
		c.logger.Debug("pacman -Qm failed", "exitCode", res.ExitCode, "stderr", strings.TrimSpace(res.Stderr))
		return []LocalPackage{}
	}
	return ParseQuery(res.Stdout)
}

// Query reports whether name is installed and at which version.
func (c *Client) Query(ctx context.Context, name string) (string, bool) {
	res := c.runner.Run(ctx, "pacman", "-Q", name)
	if !res.Success {
		return "", false
	}
	pkgs := ParseQuery(res.Stdout)
	if len(pkgs) == 0 {
		return "", false
	}
	return pkgs[0].Version, true
}

// Version returns the first line of pacman --version.
func (c *Client) Version(ctx context.Context) string {
	res := c.runner.Run(ctx, "pacman", "--version")
	if !res.Success {
		return UnknownVersion
	}
	line, _, _ := strings.Cut(strings.TrimLeft(res.Stdout, "\n"), "\n")
	return line
}

// Vercmp compares two package versions with pacman's vercmp: negative when
// a is older than b, zero when equal, positive when newer.
func (c *Client) Vercmp(ctx context.Context, a, b string) (int, error) {
	res := c.runner.Run(ctx, "vercmp", a, b)
	if !res.Success {
		return 0, fmt.Errorf("vercmp %s %s: exit code %d", a, b, res.ExitCode)
	}
	n, err := strconv.Atoi(strings.TrimSpace(res.Stdout))
	if err != nil {
		return 0, fmt.Errorf("parsing vercmp output: %w", err)
	}
	return n, nil
}

// Updates compares installed foreign packages against the AUR. Packages the
// AUR does not know are skipped.
func (c *Client) Updates(ctx context.Context, source InfoSource) ([]Update, error) {
	installed := c.Installed(ctx)
	if len(installed) == 0 {
		return []Update{}, nil
	}

	names := make([]string, len(installed))
	for i, p := range installed {
		names[i] = p.Name
	}
	remote, err := source.InfoMulti(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("looking up AUR versions: %w", err)
	}
	available := make(map[string]string, len(remote))
	for _, p := range remote {
		available[p.Name] = p.Version
	}

	updates := []Update{}
	for _, p := range installed {
		remoteVersion, ok := available[p.Name]
		if !ok {
			continue
		}
		cmp, err := c.Vercmp(ctx, p.Version, remoteVersion)
		if err != nil {
			c.logger.Warn("version comparison failed", "package", p.Name, "error", err)
			continue
		}
		if cmp < 0 {
			updates = append(updates, Update{Name: p.Name, Installed: p.Version, Available: remoteVersion})
		}
	}
	return updates, nil
}

// ParseQuery parses "name version" lines as printed by pacman -Q.
func ParseQuery(output string) []LocalPackage {
	pkgs := []LocalPackage{}
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		pkgs = append(pkgs, LocalPackage{Name: fields[0], Version: fields[1]})
	}
	return pkgs
}
