package local

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const PartFilename = "part-00000"

// FindFiles expands input locations into regular files. A location naming a
// directory stands for every file below it; anything else is a glob pattern.
// Files whose names start with "_" or "." are skipped, as the engine does
// for markers such as _SUCCESS.
func FindFiles(locations []string) ([]string, error) {
	var files []string
	for _, location := range locations {
		matches, err := expand(location)
		if err != nil {
			return nil, err
		}
		for _, name := range matches {
			base := filepath.Base(name)
			if strings.HasPrefix(base, "_") || strings.HasPrefix(base, ".") {
				continue
			}
			info, err := os.Lstat(name)
			if err != nil {
				continue
			}
			if info.Mode().IsRegular() {
				files = append(files, name)
			}
		}
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

// expand globs a directory as its own filesystem, so metacharacters in its
// path are taken literally.
func expand(location string) ([]string, error) {
	info, err := os.Stat(location)
	if err != nil || !info.IsDir() {
		return doublestar.FilepathGlob(location, doublestar.WithFilesOnly())
	}

	matches, err := doublestar.Glob(os.DirFS(location), "**", doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	for i, m := range matches {
		matches[i] = filepath.Join(location, filepath.FromSlash(m))
	}
	return matches, nil
}

// WriteOutput replaces <dir>/part-00000 with data.
func WriteOutput(dir string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, PartFilename), data, 0o644)
}
