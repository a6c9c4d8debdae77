// Package isolated runs PEP 517 build backends inside ephemeral virtual
// environments, bound to a specific interpreter and package-source policy.
package isolated

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pyforge/wheelhouse/internal/logfields"
	"github.com/pyforge/wheelhouse/internal/pyproject"
	"github.com/pyforge/wheelhouse/internal/workspace"
)

// Distribution selects what the backend should produce.
type Distribution string

const (
	DistWheel    Distribution = "wheel"
	DistEditable Distribution = "editable"
)

// SourcePolicy controls where build requirements are resolved from.
type SourcePolicy struct {
	IndexURL       string
	ExtraIndexURLs []string
}

// Builder provisions an ephemeral virtual environment per build and drives
// the project's declared backend through a small in-process Python runner.
type Builder struct {
	python   string
	policy   SourcePolicy
	workBase string
}

// NewBuilder creates a builder bound to the given interpreter. An empty
// interpreter defaults to python3 from PATH.
func NewBuilder(python string, policy SourcePolicy, workBase string) *Builder {
	if python == "" {
		python = "python3"
	}
	return &Builder{python: python, policy: policy, workBase: workBase}
}

// hookRunner invokes the backend hook named by the environment and writes the
// produced artifact's basename to the result file.
const hookRunner = `
import importlib, json, os, sys

backend_path = os.environ.get("PEP517_BACKEND_PATH")
if backend_path:
    sys.path[:0] = backend_path.split(os.pathsep)

spec = os.environ["PEP517_BACKEND"]
module_name, _, attr_path = spec.partition(":")
backend = importlib.import_module(module_name)
for attr in filter(None, attr_path.split(".")):
    backend = getattr(backend, attr)

settings = json.loads(os.environ["PEP517_SETTINGS"]) or None
hook = getattr(backend, "build_" + os.environ["PEP517_DISTRIBUTION"])
name = hook(os.environ["PEP517_DESTINATION"], config_settings=settings)
with open(os.environ["PEP517_RESULT"], "w") as fh:
    fh.write(name)
`

// Build runs the project's backend hook for the requested distribution kind
// and returns the path of the produced artifact under destination.
//
// Environment provisioning failures surface as plain errors; only failures of
// the backend hook itself come back as *BackendError.
func (b *Builder) Build(ctx context.Context, source string, dist Distribution, destination string, settings map[string]string) (string, error) {
	bs, err := pyproject.Load(source)
	if err != nil {
		return "", err
	}

	ws := workspace.NewManager(b.workBase)
	if err := ws.Create(); err != nil {
		return "", err
	}
	defer func() {
		if err := ws.Cleanup(); err != nil {
			slog.Warn("Failed to cleanup build environment", logfields.Error(err))
		}
	}()

	venv := filepath.Join(ws.GetPath(), "venv")
	slog.Debug("Provisioning build environment",
		logfields.Path(venv), slog.String("backend", bs.BuildBackend))
	if err := b.run(ctx, "", nil, b.python, "-m", "venv", venv); err != nil {
		return "", fmt.Errorf("failed to provision virtual environment: %w", err)
	}

	py := venvPython(venv)
	// A project may declare an empty requires (backend shipped in-tree via
	// backend-path); pip rejects an install with no requirements.
	if len(bs.Requires) > 0 {
		installArgs := append([]string{"-m", "pip", "install", "--disable-pip-version-check", "--no-input"},
			policyArgs(b.policy)...)
		installArgs = append(installArgs, bs.Requires...)
		if err := b.run(ctx, "", nil, py, installArgs...); err != nil {
			return "", fmt.Errorf("failed to install build requirements: %w", err)
		}
	}

	resultPath := filepath.Join(ws.GetPath(), "result")
	env, err := hookEnv(bs, dist, destination, resultPath, settings)
	if err != nil {
		return "", err
	}

	slog.Debug("Invoking build backend",
		slog.String("backend", bs.BuildBackend),
		logfields.DistKind(string(dist)),
		logfields.Destination(destination))
	if err := b.run(ctx, source, env, py, "-c", hookRunner); err != nil {
		return "", &BackendError{
			Message: fmt.Sprintf("backend %q failed to build a %s for %s", bs.BuildBackend, dist, source),
			Err:     err,
		}
	}

	name, err := os.ReadFile(resultPath)
	if err != nil {
		return "", &BackendError{
			Message: fmt.Sprintf("backend %q reported no artifact", bs.BuildBackend),
			Err:     err,
		}
	}
	return filepath.Join(destination, strings.TrimSpace(string(name))), nil
}

// run executes a command with captured output. Non-zero exits come back as
// *ProcessError carrying the captured streams.
func (b *Builder) run(ctx context.Context, dir string, extraEnv []string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if len(extraEnv) > 0 {
		cmd.Env = append(os.Environ(), extraEnv...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ProcessError{
				Args:     append([]string{name}, args...),
				ExitCode: exitErr.ExitCode(),
				Stdout:   stdout.Bytes(),
				Stderr:   stderr.Bytes(),
			}
		}
		return err
	}
	return nil
}

// venvPython returns the interpreter path inside a virtual environment.
func venvPython(venv string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(venv, "Scripts", "python.exe")
	}
	return filepath.Join(venv, "bin", "python")
}

// policyArgs translates the source policy into pip flags.
func policyArgs(p SourcePolicy) []string {
	var args []string
	if p.IndexURL != "" {
		args = append(args, "--index-url", p.IndexURL)
	}
	for _, u := range p.ExtraIndexURLs {
		args = append(args, "--extra-index-url", u)
	}
	return args
}

// hookEnv builds the environment consumed by hookRunner. Settings are
// serialized fresh per call; the caller's map is never retained or mutated.
func hookEnv(bs *pyproject.BuildSystem, dist Distribution, destination, resultPath string, settings map[string]string) ([]string, error) {
	if settings == nil {
		settings = map[string]string{}
	}
	payload, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode build settings: %w", err)
	}

	env := []string{
		"PEP517_BACKEND=" + bs.BuildBackend,
		"PEP517_DISTRIBUTION=" + string(dist),
		"PEP517_DESTINATION=" + destination,
		"PEP517_RESULT=" + resultPath,
		"PEP517_SETTINGS=" + string(payload),
	}
	if len(bs.BackendPath) > 0 {
		env = append(env, "PEP517_BACKEND_PATH="+strings.Join(bs.BackendPath, string(os.PathListSeparator)))
	}
	return env, nil
}
