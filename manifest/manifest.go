// Package manifest reads the text files listing the images of a dataset.
//
// Each non-empty line of a manifest holds a path relative to a root
// directory and an integer class label, separated by a single space:
//
//	cats/cat001.png 0
//	dogs/dog001.png 1
//
// Paths containing spaces are not supported: the first space is always
// the delimiter.
package manifest

import (
	"bufio"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when the manifest file does not exist.
	ErrNotFound = errors.New("manifest not found")
	// ErrIO is returned when the manifest exists but can't be read.
	ErrIO = errors.New("manifest read failed")
	// ErrFormat is returned for a line that is not "<path> <label>".
	ErrFormat = errors.New("malformed manifest line")
	// ErrRange is returned by Validate for labels outside [0, numClasses).
	ErrRange = errors.New("label out of range")
)

// Entry is one image of the dataset.
type Entry struct {
	Path  string
	Label int
}

// Dataset holds the aligned image paths and labels of a manifest.
// Paths[i] always goes with Labels[i].
type Dataset struct {
	Paths  []string
	Labels []int
}

// Load reads the manifest at path, joining every image path onto rootDir.
func Load(path, rootDir string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "%s", path)
		}
		return nil, errors.Wrapf(ErrIO, "%s: %v", path, err)
	}
	defer f.Close()

	ds, err := Parse(f, rootDir)
	if err != nil {
		return nil, errors.WithMessagef(err, "manifest %s", path)
	}
	return ds, nil
}

// Parse reads manifest lines from r.
func Parse(r io.Reader, rootDir string) (*Dataset, error) {
	ds := &Dataset{}
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry, err := parseLine(line, rootDir)
		if err != nil {
			return nil, errors.WithMessagef(err, "line %d", lineNum)
		}
		ds.Paths = append(ds.Paths, entry.Path)
		ds.Labels = append(ds.Labels, entry.Label)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(ErrIO, "after line %d: %v", lineNum, err)
	}
	return ds, nil
}

func parseLine(line, rootDir string) (Entry, error) {
	relPath, labelToken, found := strings.Cut(line, " ")
	if !found || relPath == "" {
		return Entry{}, errors.Wrapf(ErrFormat, "%q: want \"<path> <label>\"", line)
	}
	label, err := strconv.Atoi(strings.TrimSpace(labelToken))
	if err != nil {
		return Entry{}, errors.Wrapf(ErrFormat, "%q: label %q is not an integer", line, labelToken)
	}
	return Entry{Path: joinRoot(rootDir, relPath), Label: label}, nil
}

// joinRoot prefixes rootDir, keeping paths that are already absolute.
func joinRoot(rootDir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(rootDir, path)
}

// Len returns the number of entries.
func (d *Dataset) Len() int {
	return len(d.Paths)
}

// Entry returns the i-th entry.
func (d *Dataset) Entry(i int) (Entry, error) {
	if i < 0 || i >= len(d.Paths) {
		return Entry{}, errors.Errorf("index %d out of range [0, %d)", i, len(d.Paths))
	}
	return Entry{Path: d.Paths[i], Label: d.Labels[i]}, nil
}

// Shuffle permutes paths and labels together. A zero seed uses the clock.
func (d *Dataset) Shuffle(seed int64) {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	d.ShuffleWith(rand.New(rand.NewSource(seed)))
}

// ShuffleWith permutes paths and labels together using rng.
func (d *Dataset) ShuffleWith(rng *rand.Rand) {
	perm := rng.Perm(len(d.Paths))
	paths := make([]string, len(perm))
	labels := make([]int, len(perm))
	for i, j := range perm {
		paths[i] = d.Paths[j]
		labels[i] = d.Labels[j]
	}
	d.Paths = paths
	d.Labels = labels
}

// ClassCounts returns how many entries carry each label in [0, numClasses).
// Labels outside the range are counted in the returned outOfRange.
func (d *Dataset) ClassCounts(numClasses int) (counts []int, outOfRange int) {
	counts = make([]int, numClasses)
	for _, label := range d.Labels {
		if label < 0 || label >= numClasses {
			outOfRange++
			continue
		}
		counts[label]++
	}
	return counts, outOfRange
}

// Validate returns an error wrapping ErrRange for the first label outside
// [0, numClasses).
func (d *Dataset) Validate(numClasses int) error {
	for i, label := range d.Labels {
		if label < 0 || label >= numClasses {
			return errors.Wrapf(ErrRange, "entry %d (%s): label %d, num_classes %d",
				i, d.Paths[i], label, numClasses)
		}
	}
	return nil
}
