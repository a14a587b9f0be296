package prefabs

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

//go:embed *.yaml scripts/*.tengo
var assets embed.FS

// Source reads prefab files from Dir when a copy exists there and falls back
// to the files compiled into the binary. An empty Dir reads embedded files
// only.
type Source struct {
	Dir string
}

// Default is the source behind Load and LoadScript.
var Default = Source{Dir: "prefabs"}

// Load returns a yaml document from the default source.
func Load(name string) ([]byte, error) {
	return Default.Config(name)
}

// LoadScript returns a tengo script from the default source.
func LoadScript(name string) ([]byte, error) {
	return Default.Script(name)
}

// Config returns a document at the top of the prefab tree.
func (s Source) Config(name string) ([]byte, error) {
	return s.read(name, false)
}

// Script returns a file under scripts/. name may carry a prefabs/ or
// scripts/ prefix.
func (s Source) Script(name string) ([]byte, error) {
	return s.read(name, true)
}

// Watch reports edits below Dir and its scripts directory.
func (s Source) Watch() (*Watcher, error) {
	if s.Dir == "" {
		return nil, errors.New("prefabs: watch: source has no directory")
	}
	return NewWatcher(s.Dir, filepath.Join(s.Dir, "scripts"))
}

func (s Source) read(name string, script bool) ([]byte, error) {
	rel, err := relPath(name, script)
	if err != nil {
		return nil, err
	}
	if s.Dir != "" {
		data, err := os.ReadFile(filepath.Join(s.Dir, filepath.FromSlash(rel)))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("prefabs: read %s: %w", rel, err)
		}
	}
	return assets.ReadFile(rel)
}

// relPath maps name to a slash path inside the prefab tree.
func relPath(name string, script bool) (string, error) {
	if name == "" {
		return "", errors.New("prefabs: empty file name")
	}
	p := path.Clean(filepath.ToSlash(name))
	p = strings.TrimPrefix(p, "prefabs/")
	if script {
		p = "scripts/" + strings.TrimPrefix(p, "scripts/")
	}
	if p == ".." || strings.HasPrefix(p, "../") || strings.Contains(p, "/../") {
		return "", fmt.Errorf("prefabs: %q leaves the prefab tree", name)
	}
	return p, nil
}
