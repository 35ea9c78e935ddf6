// Package aur talks to the Arch User Repository RPC interface and its cgit
// frontend.
package aur

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultBaseURL is the public AUR.
	DefaultBaseURL = "https://aur.archlinux.org"

	MaxSearchResults  = 100
	MaxPopularResults = 50

	// DefaultSearchBy is the RPC search field used when none is given.
	DefaultSearchBy = "name-desc"

	// infoBatchSize bounds the arg[] list of one multiinfo request.
	infoBatchSize  = 100
	popularWorkers = 4
)

// DefaultPopularTerms seed the discover listing.
var DefaultPopularTerms = []string{
	"browser", "editor", "terminal", "spotify", "discord", "vscode", "chrome",
	"firefox", "steam", "nvidia", "amd", "git", "docker", "kubernetes",
}

var (
	// ErrNotFound means the AUR has no package by that name.
	ErrNotFound = errors.New("package not found")
)

// RPCError is an error reported in the body of an RPC response, such as
// "Too many package results.".
type RPCError struct {
	Message string
}

func (e *RPCError) Error() string {
	return "aur: " + e.Message
}

// Package is one RPC result. Info-only fields are empty in search results.
type Package struct {
	ID             int64    `json:"ID"`
	Name           string   `json:"Name"`
	PackageBaseID  int64    `json:"PackageBaseID"`
	PackageBase    string   `json:"PackageBase"`
	Version        string   `json:"Version"`
	Description    string   `json:"Description"`
	URL            string   `json:"URL"`
	NumVotes       int      `json:"NumVotes"`
	Popularity     float64  `json:"Popularity"`
	OutOfDate      *int64   `json:"OutOfDate"`
	Maintainer     *string  `json:"Maintainer"`
	FirstSubmitted int64    `json:"FirstSubmitted"`
	LastModified   int64    `json:"LastModified"`
	URLPath        string   `json:"URLPath"`
	Depends        []string `json:"Depends,omitempty"`
	MakeDepends    []string `json:"MakeDepends,omitempty"`
	OptDepends     []string `json:"OptDepends,omitempty"`
	CheckDepends   []string `json:"CheckDepends,omitempty"`
	Conflicts      []string `json:"Conflicts,omitempty"`
	Provides       []string `json:"Provides,omitempty"`
	Replaces       []string `json:"Replaces,omitempty"`
	License        []string `json:"License,omitempty"`
	Keywords       []string `json:"Keywords,omitempty"`
}

type rpcResponse struct {
	Version     int       `json:"version"`
	Type        string    `json:"type"`
	ResultCount int       `json:"resultcount"`
	Results     []Package `json:"results"`
	Error       string    `json:"error"`
}

// Client provides access to the AUR.
type Client struct {
	baseURL    string
	cache      Cache
	logger     *slog.Logger
	httpClient *http.Client
}

// NewClient creates an AUR client. A nil cache disables caching.
func NewClient(baseURL string, cache Cache, logger *slog.Logger) *Client {
	if cache == nil {
		cache = NopCache{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		cache:   cache,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Search queries the AUR and returns results by popularity, highest first,
// capped at MaxSearchResults.
func (c *Client) Search(ctx context.Context, query, by string) ([]Package, error) {
	results, err := c.search(ctx, query, by)
	if err != nil {
		return nil, err
	}
	return topByPopularity(results, MaxSearchResults), nil
}

func (c *Client) search(ctx context.Context, query, by string) ([]Package, error) {
	if by == "" {
		by = DefaultSearchBy
	}
	reqURL := fmt.Sprintf("%s/rpc/v5/search/%s?by=%s", c.baseURL, url.PathEscape(query), url.QueryEscape(by))

	resp, err := c.rpc(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Info returns the full record for one package.
func (c *Client) Info(ctx context.Context, name string) (*Package, error) {
	reqURL := fmt.Sprintf("%s/rpc/v5/info/%s", c.baseURL, url.PathEscape(name))

	resp, err := c.rpc(ctx, reqURL)
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, ErrNotFound
	}
	return &resp.Results[0], nil
}

// InfoMulti returns the records for every name the AUR knows. Unknown names
// are absent from the result.
func (c *Client) InfoMulti(ctx context.Context, names []string) ([]Package, error) {
	var all []Package
	for start := 0; start < len(names); start += infoBatchSize {
		end := min(start+infoBatchSize, len(names))

		q := url.Values{}
		for _, name := range names[start:end] {
			q.Add("arg[]", name)
		}
		resp, err := c.rpc(ctx, fmt.Sprintf("%s/rpc/v5/info?%s", c.baseURL, q.Encode()))
		if err != nil {
			return nil, err
		}
		all = append(all, resp.Results...)
	}
	return all, nil
}

// Popular searches every term, merges the results without duplicates and
// returns the most popular. A failing term is skipped.
func (c *Client) Popular(ctx context.Context, terms []string) ([]Package, error) {
	perTerm := make([][]Package, len(terms))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(popularWorkers)
	for i, term := range terms {
		i, term := i, term
		g.Go(func() error {
			results, err := c.search(gctx, term, DefaultSearchBy)
			if err != nil {
				c.logger.Debug("popular term failed", "term", term, "error", err)
				return nil
			}
			perTerm[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var merged []Package
	for _, results := range perTerm {
		for _, pkg := range results {
			if seen[pkg.Name] {
				continue
			}
			seen[pkg.Name] = true
			merged = append(merged, pkg)
		}
	}
	return topByPopularity(merged, MaxPopularResults), nil
}

// PKGBUILD fetches the build script of a package base from cgit.
func (c *Client) PKGBUILD(ctx context.Context, name string) (string, error) {
	reqURL := fmt.Sprintf("%s/cgit/aur.git/plain/PKGBUILD?h=%s", c.baseURL, url.QueryEscape(name))

	if body, ok := c.cache.Get(ctx, reqURL); ok {
		return string(body), nil
	}

	body, status, err := c.get(ctx, reqURL)
	if err != nil {
		return "", err
	}
	switch {
	case status == http.StatusNotFound:
		return "", ErrNotFound
	case status != http.StatusOK:
		return "", fmt.Errorf("unexpected status %d: %s", status, string(body))
	}

	c.cache.Set(ctx, reqURL, body)
	return string(body), nil
}

// rpc performs one RPC request, consulting the cache first. Error responses
// are returned as *RPCError and never cached.
func (c *Client) rpc(ctx context.Context, reqURL string) (*rpcResponse, error) {
	body, cached := c.cache.Get(ctx, reqURL)
	if !cached {
		var status int
		var err error
		body, status, err = c.get(ctx, reqURL)
		if err != nil {
			return nil, err
		}
		// The RPC reports most failures in a 200 body; anything else without
		// a JSON body is an upstream problem.
		if status != http.StatusOK && !json.Valid(body) {
			return nil, fmt.Errorf("unexpected status %d: %s", status, string(body))
		}
	}

	var resp rpcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if resp.Type == "error" {
		return nil, &RPCError{Message: resp.Error}
	}

	if !cached {
		c.cache.Set(ctx, reqURL, body)
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, reqURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("reading response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func topByPopularity(pkgs []Package, limit int) []Package {
	sort.SliceStable(pkgs, func(i, j int) bool {
		return pkgs[i].Popularity > pkgs[j].Popularity
	})
	if len(pkgs) > limit {
		pkgs = pkgs[:limit]
	}
	if pkgs == nil {
		pkgs = []Package{}
	}
	return pkgs
}
