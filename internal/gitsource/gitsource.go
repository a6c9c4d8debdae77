// Package gitsource fetches project sources from git URLs so they can be
// prepared like any local source tree. URLs may carry a "@ref" suffix
// selecting a branch or tag.
package gitsource

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	wherrors "github.com/pyforge/wheelhouse/internal/errors"
	"github.com/pyforge/wheelhouse/internal/logfields"
)

// Source is a parsed git artifact reference.
type Source struct {
	URL string
	Ref string
}

// Parse splits "url@ref" into its parts. A URL without a trailing "@ref" has
// an empty Ref. Only an "@" in the final path segment is a ref separator:
// userinfo (https://token@host/...) and scp-like prefixes (git@host:...) sit
// before the last "/" and keep their "@".
func Parse(raw string) Source {
	idx := strings.LastIndex(raw, "@")
	slash := strings.LastIndex(raw, "/")
	if idx <= 0 || slash == -1 || idx < slash {
		return Source{URL: raw}
	}
	return Source{URL: raw[:idx], Ref: raw[idx+1:]}
}

// Client clones git sources into a workspace directory.
type Client struct {
	workspaceDir string
	depth        int
}

// NewClient creates a git source client cloning under workspaceDir.
// Clones are shallow (depth 1) unless WithDepth overrides it.
func NewClient(workspaceDir string) *Client {
	return &Client{workspaceDir: workspaceDir, depth: 1}
}

// WithDepth sets the clone depth; zero disables shallow cloning.
func (c *Client) WithDepth(depth int) *Client {
	if depth >= 0 {
		c.depth = depth
	}
	return c
}

// Fetch clones the source and returns the checkout path. Any existing
// checkout of the same name is replaced.
func (c *Client) Fetch(ctx context.Context, src Source) (string, error) {
	name := checkoutName(src.URL)
	path := filepath.Join(c.workspaceDir, name)

	slog.Debug("Cloning source repository",
		logfields.URL(src.URL), slog.String("ref", src.Ref), logfields.Path(path))
	if err := os.RemoveAll(path); err != nil {
		return "", wherrors.WrapError(err, wherrors.CategoryFileSystem, "failed to clear checkout directory")
	}

	opts := &git.CloneOptions{URL: src.URL}
	if c.depth > 0 {
		opts.Depth = c.depth
	}
	if src.Ref != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(src.Ref)
		opts.SingleBranch = true
	}

	repo, err := git.PlainCloneContext(ctx, path, false, opts)
	if err != nil && src.Ref != "" {
		// The ref may be a tag rather than a branch.
		_ = os.RemoveAll(path)
		opts.ReferenceName = plumbing.NewTagReferenceName(src.Ref)
		repo, err = git.PlainCloneContext(ctx, path, false, opts)
	}
	if err != nil {
		return "", classifyCloneError(src.URL, err)
	}

	if ref, herr := repo.Head(); herr == nil {
		slog.Info("Cloned source repository",
			logfields.URL(src.URL),
			slog.String("commit", ref.Hash().String()[:8]),
			logfields.Path(path))
	}
	return path, nil
}

// checkoutName derives a stable directory name from a repository URL.
func checkoutName(url string) string {
	name := strings.TrimSuffix(filepath.Base(strings.TrimSuffix(url, "/")), ".git")
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "source"
	}
	return name
}

// classifyCloneError maps go-git failures onto error categories so callers
// can distinguish auth problems from flaky networks without string parsing.
func classifyCloneError(url string, err error) error {
	l := strings.ToLower(err.Error())

	base := wherrors.Wrap(err, wherrors.CategoryGit, wherrors.SeverityError, "failed to clone repository").
		WithContext("url", url)

	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "invalid credentials") || strings.Contains(l, "could not read username"):
		base.Message = "authentication failed for repository"
	case strings.Contains(l, "repository not found") || strings.Contains(l, "not found") || strings.Contains(l, "does not exist"):
		base.Message = "repository not found"
	case strings.Contains(l, "timeout") || strings.Contains(l, "connection reset") || strings.Contains(l, "no route to host"):
		base.Message = "network failure while cloning repository"
		base.Retryable = true
	case strings.Contains(l, "reference not found"):
		base.Message = "ref not found in repository"
	}
	return base
}
