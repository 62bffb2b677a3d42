package datasets

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ManifestPatterns are the file names tried by FindManifest, in order.
var ManifestPatterns = []string{"manifest.txt", "train.txt", "val.txt", "*.txt"}

// FindManifest returns the manifest file in dir: either dir itself if it
// is a file, or the first file matching ManifestPatterns.
func FindManifest(dir string) (string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return "", errors.Wrap(err, "manifest")
	}
	if !info.IsDir() {
		return dir, nil
	}
	patterns := make([]string, len(ManifestPatterns))
	for i, p := range ManifestPatterns {
		patterns[i] = filepath.Join(dir, p)
	}
	return autoFindManifest(patterns)
}

func autoFindManifest(patterns []string) (string, error) {
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err == nil && len(matches) > 0 {
			return matches[0], nil
		}
	}
	return "", errors.Errorf("no manifest found in %v", patterns)
}
