package hadoop

import (
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

// JarNotFound is returned in place of a streaming jar path when none could
// be found. Submissions using it fail at the engine.
const JarNotFound = "JAR-NOT-FOUND"

const streamingJarPattern = "**/*streaming*jar"

// FindStreamingJar searches home recursively, following symlinks, for a
// file whose name contains "streaming" and ends in "jar". It returns the
// lexically first match, or "" when there is none.
func FindStreamingJar(home string) (string, error) {
	matches, err := doublestar.Glob(os.DirFS(home), streamingJarPattern, doublestar.WithFilesOnly())
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", nil
	}
	slices.Sort(matches)
	return filepath.Join(home, filepath.FromSlash(matches[0])), nil
}
