// Package yamlfile reads query definitions from YAML documents on disk.
package yamlfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vshulcz/pgstatsd/internal/ports"
)

// File is a single YAML document mapping metric keys to SQL.
type File struct {
	path string
}

var _ ports.QuerySource = (*File)(nil)

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Name() string { return f.path }

// Load decodes the document. An empty file yields an empty map.
func (f *File) Load(_ context.Context) (out map[string]string, retErr error) {
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func() {
		if cerr := fh.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close: %w", cerr)
		}
	}()

	var m map[string]string
	if err := yaml.NewDecoder(fh).Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("decode: %w", err)
	}
	if m == nil {
		m = map[string]string{}
	}
	return m, nil
}

// Dir discovers every *.yaml and *.yml file below root.
type Dir struct {
	root string
}

var _ ports.SourceDiscoverer = (*Dir)(nil)

func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Discover walks root in lexical order and skips dot-prefixed directories,
// such as the ..data links of a mounted ConfigMap.
func (d *Dir) Discover(ctx context.Context) ([]ports.QuerySource, error) {
	var out []ports.QuerySource
	err := filepath.WalkDir(d.root, func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if e.IsDir() {
			if path != d.root && strings.HasPrefix(e.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if isYAML(e.Name()) {
			out = append(out, NewFile(path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", d.root, err)
	}
	return out, nil
}

func isYAML(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
