// Package pyproject reads the build-system declaration from a project's
// pyproject.toml, falling back to the legacy setuptools backend when the
// project declares none.
package pyproject

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// LegacyBackend is the default backend used when a project declares no
// build-system table (PEP 517 fallback behavior).
const LegacyBackend = "setuptools.build_meta:__legacy__"

// legacyRequires are the build requirements implied by the legacy backend.
var legacyRequires = []string{"setuptools>=40.8.0"}

// BuildSystem describes a project's declared build backend.
type BuildSystem struct {
	Requires     []string `toml:"requires"`
	BuildBackend string   `toml:"build-backend"`
	BackendPath  []string `toml:"backend-path"`
}

type document struct {
	BuildSystem *BuildSystem `toml:"build-system"`
}

// Load reads the build-system table from projectDir/pyproject.toml.
// A missing file or missing table yields the legacy setuptools backend with
// its implied requirements; a declared table without a backend keeps its
// requirements (even empty) but builds through the legacy backend.
func Load(projectDir string) (*BuildSystem, error) {
	data, err := os.ReadFile(filepath.Join(projectDir, "pyproject.toml"))
	if os.IsNotExist(err) {
		return legacyBuildSystem(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pyproject.toml: %w", err)
	}

	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse pyproject.toml: %w", err)
	}

	if doc.BuildSystem == nil {
		return legacyBuildSystem(), nil
	}

	bs := doc.BuildSystem
	if bs.BuildBackend == "" {
		bs.BuildBackend = LegacyBackend
	}
	return bs, nil
}

func legacyBuildSystem() *BuildSystem {
	return &BuildSystem{
		Requires:     append([]string(nil), legacyRequires...),
		BuildBackend: LegacyBackend,
	}
}
