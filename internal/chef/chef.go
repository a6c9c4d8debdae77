// Package chef prepares distribution artifacts for installation: wheels pass
// through untouched, source trees and sdists are built into wheels through the
// project's declared backend.
package chef

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pyforge/wheelhouse/internal/archive"
	"github.com/pyforge/wheelhouse/internal/cache"
	wherrors "github.com/pyforge/wheelhouse/internal/errors"
	"github.com/pyforge/wheelhouse/internal/isolated"
	"github.com/pyforge/wheelhouse/internal/logfields"
	"github.com/pyforge/wheelhouse/internal/metrics"
	"github.com/pyforge/wheelhouse/internal/workspace"
)

// Builder produces a distribution from a source tree into a destination
// directory, returning the path of the built artifact.
type Builder interface {
	Build(ctx context.Context, source string, dist isolated.Distribution, destination string, settings map[string]string) (string, error)
}

// ArtifactCache resolves the durable destination directory for a source link.
type ArtifactCache interface {
	DirectoryForLink(link string) string
}

// BuildIndex records prepared wheels for later listing and pruning. Recording
// is best effort; failures never abort a preparation.
type BuildIndex interface {
	Record(ctx context.Context, link, cacheKey, wheel string) error
}

// PrepareOptions controls a single preparation.
type PrepareOptions struct {
	// OutputDir, when set, receives the built wheel. When empty, source
	// trees build into a fresh temporary directory and sdists build into
	// the artifact cache.
	OutputDir string

	// Editable requests an editable distribution. Only honored for source
	// trees; sdists always build regular wheels.
	Editable bool

	// Settings are backend config settings, passed through to the hook.
	Settings map[string]string
}

// Chef orchestrates artifact preparation.
type Chef struct {
	builder  Builder
	cache    ArtifactCache
	recorder metrics.Recorder
	index    BuildIndex
	workBase string
}

// New creates a Chef with the given backend driver and artifact cache.
func New(builder Builder, cache ArtifactCache) *Chef {
	return &Chef{
		builder:  builder,
		cache:    cache,
		recorder: metrics.NoopRecorder{},
	}
}

// WithRecorder sets the metrics recorder.
func (c *Chef) WithRecorder(r metrics.Recorder) *Chef {
	if r != nil {
		c.recorder = r
	}
	return c
}

// WithIndex sets the build index used to record prepared wheels.
func (c *Chef) WithIndex(idx BuildIndex) *Chef {
	c.index = idx
	return c
}

// WithWorkspaceBase sets the base directory for scratch unpack directories.
func (c *Chef) WithWorkspaceBase(dir string) *Chef {
	c.workBase = dir
	return c
}

// Prepare turns an artifact into an installable wheel and returns its path.
// Wheels are returned unchanged. Directories build in place into OutputDir or
// a fresh temporary directory. Archives unpack into scratch space and build
// into the artifact cache unless OutputDir overrides it.
func (c *Chef) Prepare(ctx context.Context, artifact string, opts PrepareOptions) (string, error) {
	buildID := uuid.New().String()
	log := slog.With(logfields.BuildID(buildID), logfields.Artifact(artifact))

	start := time.Now()
	result, err := c.prepare(ctx, log, artifact, opts)
	c.recorder.ObservePrepareDuration(time.Since(start))
	switch {
	case err == nil && result == artifact:
		c.recorder.IncPrepareOutcome(metrics.ResultSkipped)
	case err == nil:
		c.recorder.IncPrepareOutcome(metrics.ResultSuccess)
	case ctx.Err() != nil:
		c.recorder.IncPrepareOutcome(metrics.ResultCanceled)
	default:
		c.recorder.IncPrepareOutcome(metrics.ResultFailed)
	}
	return result, err
}

func (c *Chef) prepare(ctx context.Context, log *slog.Logger, artifact string, opts PrepareOptions) (string, error) {
	info, err := os.Stat(artifact)
	if err != nil {
		return "", wherrors.ValidationError("artifact does not exist: " + artifact)
	}

	if !info.IsDir() && filepath.Ext(artifact) == ".whl" {
		log.Debug("Artifact is already a wheel, passing through")
		return artifact, nil
	}

	if info.IsDir() {
		return c.prepareDirectory(ctx, log, artifact, opts)
	}
	return c.prepareSdist(ctx, log, artifact, opts)
}

// prepareDirectory builds a source tree in place.
func (c *Chef) prepareDirectory(ctx context.Context, log *slog.Logger, source string, opts PrepareOptions) (string, error) {
	destination := opts.OutputDir
	if destination != "" {
		if err := os.MkdirAll(destination, 0o750); err != nil {
			return "", wherrors.WrapError(err, wherrors.CategoryFileSystem, "failed to create output directory")
		}
	} else {
		dir, err := os.MkdirTemp("", "wheelhouse-chef-")
		if err != nil {
			return "", wherrors.WrapError(err, wherrors.CategoryFileSystem, "failed to create build destination")
		}
		destination = dir
	}
	return c.build(ctx, log, source, destination, distributionFor(opts.Editable), opts.Settings, "")
}

// prepareSdist unpacks an archive into scratch space, locates the project
// root, and builds a wheel into a durable destination.
func (c *Chef) prepareSdist(ctx context.Context, log *slog.Logger, sdist string, opts PrepareOptions) (string, error) {
	ws := workspace.NewManager(c.workBase)
	if err := ws.Create(); err != nil {
		return "", err
	}
	defer func() {
		if err := ws.Cleanup(); err != nil {
			log.Warn("Failed to cleanup unpack directory", logfields.Error(err))
		}
	}()

	stageStart := time.Now()
	unpackDir := ws.GetPath()
	if err := archive.Extract(sdist, unpackDir, filepath.Ext(sdist) == ".zip"); err != nil {
		return "", err
	}
	c.recorder.ObserveStageDuration("extract", time.Since(stageStart))

	root, err := projectRoot(sdist, unpackDir)
	if err != nil {
		return "", err
	}
	log.Debug("Located project root", logfields.Path(root))

	link := ""
	destination := opts.OutputDir
	if destination == "" {
		link = fileURL(sdist)
		destination = c.cache.DirectoryForLink(link)
		_, statErr := os.Stat(destination)
		c.recorder.IncCacheResolution(os.IsNotExist(statErr))
	}
	if err := os.MkdirAll(destination, 0o750); err != nil {
		return "", wherrors.WrapError(err, wherrors.CategoryFileSystem, "failed to create cache destination")
	}

	// Archives always build regular wheels; editable installs only make
	// sense against a live source tree.
	wheel, err := c.build(ctx, log, root, destination, isolated.DistWheel, nil, link)
	if err != nil {
		return "", err
	}
	return wheel, nil
}

// build runs the backend and translates its failures into a single error
// type, discarding the raw cause chain.
func (c *Chef) build(ctx context.Context, log *slog.Logger, source, destination string, dist isolated.Distribution, settings map[string]string, link string) (string, error) {
	if settings == nil {
		settings = map[string]string{}
	}

	log.Info("Building distribution",
		logfields.Path(source),
		logfields.Destination(destination),
		logfields.DistKind(string(dist)))

	stageStart := time.Now()
	wheel, err := c.builder.Build(ctx, source, dist, destination, settings)
	c.recorder.ObserveStageDuration("build", time.Since(stageStart))
	if err != nil {
		var backendErr *isolated.BackendError
		if errors.As(err, &backendErr) {
			return "", newBuildError(backendErr)
		}
		return "", err
	}

	if c.index != nil && link != "" {
		key := cache.KeyForLink(link)
		if err := c.index.Record(ctx, link, key, wheel); err != nil {
			log.Warn("Failed to record prepared wheel", logfields.CacheKey(key), logfields.Error(err))
		}
	}

	log.Info("Built distribution", logfields.Path(wheel))
	return wheel, nil
}

// projectRoot finds the unpacked project directory. A single top-level
// directory is the root; otherwise a directory named after the archive with
// its last extension stripped; otherwise the unpack root itself.
func projectRoot(archivePath, unpackDir string) (string, error) {
	entries, err := os.ReadDir(unpackDir)
	if err != nil {
		return "", wherrors.WrapError(err, wherrors.CategoryFileSystem, "failed to inspect unpacked archive")
	}

	if len(entries) == 1 {
		if entries[0].IsDir() {
			return filepath.Join(unpackDir, entries[0].Name()), nil
		}
		return unpackDir, nil
	}

	stem := strings.TrimSuffix(filepath.Base(archivePath), filepath.Ext(archivePath))
	candidate := filepath.Join(unpackDir, stem)
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		return candidate, nil
	}
	return unpackDir, nil
}

func distributionFor(editable bool) isolated.Distribution {
	if editable {
		return isolated.DistEditable
	}
	return isolated.DistWheel
}

// fileURL canonicalizes an artifact path into a file:// URL for cache identity.
func fileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String()
}
