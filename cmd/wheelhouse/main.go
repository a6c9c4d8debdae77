package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/pyforge/wheelhouse/internal/cache"
	"github.com/pyforge/wheelhouse/internal/chef"
	"github.com/pyforge/wheelhouse/internal/config"
	wherrors "github.com/pyforge/wheelhouse/internal/errors"
	"github.com/pyforge/wheelhouse/internal/gitsource"
	"github.com/pyforge/wheelhouse/internal/isolated"
	"github.com/pyforge/wheelhouse/internal/logfields"
	"github.com/pyforge/wheelhouse/internal/metrics"
	"github.com/pyforge/wheelhouse/internal/version"
	"github.com/pyforge/wheelhouse/internal/watch"
	"github.com/pyforge/wheelhouse/internal/workspace"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Prepare struct {
		Artifact string            `arg:"" help:"Wheel, sdist archive, source directory, or git URL (url@ref)"`
		Output   string            `short:"o" help:"Destination directory for the built wheel"`
		Editable bool              `short:"e" help:"Build an editable distribution (source directories only)"`
		Setting  map[string]string `short:"C" help:"Backend config settings (KEY=VALUE)"`
	} `cmd:"" help:"Prepare an artifact for installation"`

	Watch struct {
		Source string `arg:"" type:"existingdir" help:"Source directory to watch"`
		Output string `short:"o" required:"" help:"Destination directory for rebuilt distributions"`
	} `cmd:"" help:"Rebuild an editable distribution whenever the source changes"`

	Cache struct {
		List struct{} `cmd:"" help:"List prepared wheels recorded in the cache index"`

		Prune struct {
			OlderThan time.Duration `default:"720h" help:"Remove entries older than this duration"`
		} `cmd:"" help:"Remove old entries from the cache"`
	} `cmd:"" help:"Inspect and maintain the artifact cache"`

	Version struct{} `cmd:"" help:"Show version information"`
}

func main() {
	kctx := kong.Parse(&CLI)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(7)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(7)
	}

	setupLogging(cfg)
	adapter := wherrors.NewCLIErrorAdapter(CLI.Verbose, slog.Default())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch kctx.Command() {
	case "prepare <artifact>":
		wheel, err := runPrepare(ctx, cfg)
		if err != nil {
			handleError(adapter, err)
		}
		fmt.Println(wheel)

	case "watch <source>":
		if err := runWatch(ctx, cfg); err != nil && ctx.Err() == nil {
			handleError(adapter, err)
		}

	case "cache list":
		if err := runCacheList(ctx, cfg); err != nil {
			handleError(adapter, err)
		}

	case "cache prune":
		if err := runCachePrune(ctx, cfg); err != nil {
			handleError(adapter, err)
		}

	case "version":
		fmt.Printf("wheelhouse %s (commit %s, built %s)\n",
			version.Version, version.GitCommit, version.BuildTime)
	}
}

func setupLogging(cfg *config.Config) {
	level := slog.LevelInfo
	if CLI.Verbose || cfg.Logging.Level == string(config.LogLevelDebug) {
		level = slog.LevelDebug
	} else if cfg.Logging.Level == string(config.LogLevelWarn) {
		level = slog.LevelWarn
	} else if cfg.Logging.Level == string(config.LogLevelError) {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == string(config.LogFormatJSON) {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// handleError maps errors to exit codes. Backend build failures carry their
// own composed message and a fixed build exit code.
func handleError(adapter *wherrors.CLIErrorAdapter, err error) {
	var buildErr *chef.BuildError
	if errors.As(err, &buildErr) {
		fmt.Fprintf(os.Stderr, "%s\n", buildErr.Error())
		os.Exit(11)
	}
	adapter.HandleError(err)
}

func newChef(cfg *config.Config) (*chef.Chef, *cache.Index, error) {
	builder := isolated.NewBuilder(cfg.Python.Interpreter, isolated.SourcePolicy{
		IndexURL:       cfg.Sources.IndexURL,
		ExtraIndexURLs: cfg.Sources.ExtraIndexURLs,
	}, cfg.Workspace.BaseDir)

	idx, err := cache.NewIndex(cfg.Cache.IndexPath)
	if err != nil {
		return nil, nil, wherrors.WrapError(err, wherrors.CategoryCache, "failed to open cache index")
	}

	c := chef.New(builder, cache.New(cfg.Cache.Directory)).
		WithIndex(idx).
		WithWorkspaceBase(cfg.Workspace.BaseDir)
	return c, idx, nil
}

func runPrepare(ctx context.Context, cfg *config.Config) (string, error) {
	artifact := CLI.Prepare.Artifact

	// Git URLs are fetched into scratch space first, then prepared like any
	// local source tree.
	if isGitURL(artifact) {
		// A git checkout is ephemeral, so the wheel must land somewhere
		// durable; fail before spending a clone on it.
		if CLI.Prepare.Output == "" {
			return "", wherrors.ValidationError("--output is required when preparing a git URL")
		}

		ws := workspace.NewManager(cfg.Workspace.BaseDir)
		if err := ws.Create(); err != nil {
			return "", err
		}
		defer func() {
			if err := ws.Cleanup(); err != nil {
				slog.Warn("Failed to cleanup checkout workspace", logfields.Error(err))
			}
		}()

		checkouts, err := ws.CreateSubdir("checkout")
		if err != nil {
			return "", wherrors.WrapError(err, wherrors.CategoryFileSystem, "failed to create checkout directory")
		}

		client := gitsource.NewClient(checkouts)
		path, err := client.Fetch(ctx, gitsource.Parse(strings.TrimPrefix(artifact, "git+")))
		if err != nil {
			return "", err
		}
		artifact = path
	}

	c, idx, err := newChef(cfg)
	if err != nil {
		return "", err
	}
	defer idx.Close()

	return c.Prepare(ctx, artifact, chef.PrepareOptions{
		OutputDir: CLI.Prepare.Output,
		Editable:  CLI.Prepare.Editable,
		Settings:  CLI.Prepare.Setting,
	})
}

func runWatch(ctx context.Context, cfg *config.Config) error {
	c, idx, err := newChef(cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	recorder := metrics.Recorder(metrics.NoopRecorder{})
	if cfg.Metrics.ListenAddr != "" {
		reg := prom.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)
		go serveMetrics(cfg.Metrics.ListenAddr, reg)
	}
	c.WithRecorder(recorder)

	w := watch.New(CLI.Watch.Source,
		time.Duration(cfg.Watch.DebounceMS)*time.Millisecond,
		func(ctx context.Context) error {
			_, err := c.Prepare(ctx, CLI.Watch.Source, chef.PrepareOptions{
				OutputDir: CLI.Watch.Output,
				Editable:  true,
			})
			return err
		})
	return w.Run(ctx)
}

func serveMetrics(addr string, reg *prom.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(reg))
	slog.Info("Serving metrics", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("Metrics server failed", logfields.Error(err))
	}
}

func runCacheList(ctx context.Context, cfg *config.Config) error {
	idx, err := cache.NewIndex(cfg.Cache.IndexPath)
	if err != nil {
		return wherrors.WrapError(err, wherrors.CategoryCache, "failed to open cache index")
	}
	defer idx.Close()

	entries, err := idx.List(ctx)
	if err != nil {
		return wherrors.WrapError(err, wherrors.CategoryCache, "failed to list cache entries")
	}

	if len(entries) == 0 {
		fmt.Println("cache is empty")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  %s  %s\n", e.CreatedAt.Format(time.RFC3339), e.CacheKey[:12], e.Wheel)
	}
	return nil
}

func runCachePrune(ctx context.Context, cfg *config.Config) error {
	idx, err := cache.NewIndex(cfg.Cache.IndexPath)
	if err != nil {
		return wherrors.WrapError(err, wherrors.CategoryCache, "failed to open cache index")
	}
	defer idx.Close()

	cutoff := time.Now().Add(-CLI.Cache.Prune.OlderThan)
	removed, err := idx.Prune(ctx, cutoff)
	if err != nil {
		return wherrors.WrapError(err, wherrors.CategoryCache, "failed to prune cache entries")
	}

	artifacts := cache.New(cfg.Cache.Directory)
	for _, e := range removed {
		dir := artifacts.DirectoryForKey(e.CacheKey)
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("Failed to remove cached artifact directory",
				logfields.CacheKey(e.CacheKey), logfields.Error(err))
		}
	}

	fmt.Printf("pruned %d entries\n", len(removed))
	return nil
}

// isGitURL reports whether an artifact reference points at a git repository
// rather than a local path.
func isGitURL(s string) bool {
	switch {
	case strings.HasPrefix(s, "git+"), strings.HasPrefix(s, "git@"), strings.HasPrefix(s, "ssh://"):
		return true
	case strings.HasPrefix(s, "https://"), strings.HasPrefix(s, "http://"):
		// Strip any @ref before checking for a repository suffix.
		return strings.HasSuffix(gitsource.Parse(s).URL, ".git")
	}
	return false
}
