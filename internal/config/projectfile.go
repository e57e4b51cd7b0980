package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ProjectFileName is the project-local defaults file, checked into repos that
// want a pinned org/project for everyone who runs spy inside them.
const ProjectFileName = ".spyglass.toml"

// ProjectFile carries per-repository target defaults.
type ProjectFile struct {
	Org     string `toml:"org"`
	Project string `toml:"project"`
}

// FindProjectFile walks from dir upward looking for ProjectFileName, stopping
// at the filesystem root. Returns nil when no file exists or it cannot be
// parsed; a malformed defaults file must not break detection.
func FindProjectFile(dir string) *ProjectFile {
	cur, err := filepath.Abs(dir)
	if err != nil {
		return nil
	}
	for {
		candidate := filepath.Join(cur, ProjectFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			var pf ProjectFile
			if _, err := toml.DecodeFile(candidate, &pf); err != nil {
				return nil
			}
			if pf.Org == "" && pf.Project == "" {
				return nil
			}
			return &pf
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return nil
		}
		cur = parent
	}
}
