package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeManifest writes the given lines, newline terminated, into dir/name.
func writeManifest(t *testing.T, dir, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write manifest %s: %v", path, err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tmp := t.TempDir()
	path := writeManifest(t, tmp, "train.txt", []string{
		"cats/cat1.png 0",
		"dogs/dog1.png 1",
		"",
		"birds/bird1.jpg 2",
	})

	ds, err := Load(path, "/data/images")
	require.NoError(t, err)
	require.Equal(t, 3, ds.Len())
	assert.Equal(t, []string{
		"/data/images/cats/cat1.png",
		"/data/images/dogs/dog1.png",
		"/data/images/birds/bird1.jpg",
	}, ds.Paths)
	assert.Equal(t, []int{0, 1, 2}, ds.Labels)

	e, err := ds.Entry(1)
	require.NoError(t, err)
	assert.Equal(t, Entry{Path: "/data/images/dogs/dog1.png", Label: 1}, e)
	_, err = ds.Entry(3)
	assert.Error(t, err)
}

func TestLoadManyLines(t *testing.T) {
	const n = 250
	lines := make([]string, n)
	for i := range n {
		lines[i] = fmt.Sprintf("img_%03d.png %d", i, i%7)
	}
	path := writeManifest(t, t.TempDir(), "big.txt", lines)

	ds, err := Load(path, "root")
	require.NoError(t, err)
	require.Equal(t, n, ds.Len())
	for i := range n {
		assert.Equal(t, filepath.Join("root", fmt.Sprintf("img_%03d.png", i)), ds.Paths[i])
		assert.Equal(t, i%7, ds.Labels[i])
	}
}

func TestParseCarriageReturnAndAbsolutePath(t *testing.T) {
	ds, err := Parse(strings.NewReader("a.png 3\r\n/abs/b.png 4\r\n"), "/root")
	require.NoError(t, err)
	assert.Equal(t, []string{"/root/a.png", "/abs/b.png"}, ds.Paths)
	assert.Equal(t, []int{3, 4}, ds.Labels)
}

func TestParseFormatErrors(t *testing.T) {
	for _, content := range []string{
		"no_label.png\n",
		"cat.png zero\n",
		"ok.png 1\ncat.png 1.5\n",
		" 3\n",
		"spaced name.png 1\n",
	} {
		_, err := Parse(strings.NewReader(content), "/root")
		require.Error(t, err, "content %q", content)
		assert.True(t, errors.Is(err, ErrFormat), "content %q: got %v", content, err)
	}
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.txt"), "/root")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLoadFormatErrorMentionsLine(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "bad.txt", []string{"a.png 0", "b.png x"})
	_, err := Load(path, "/root")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFormat))
	assert.Contains(t, err.Error(), "line 2")
}

func pairs(ds *Dataset) []string {
	out := make([]string, ds.Len())
	for i := range out {
		out[i] = fmt.Sprintf("%s|%d", ds.Paths[i], ds.Labels[i])
	}
	return out
}

func TestShufflePreservesPairs(t *testing.T) {
	ds := &Dataset{}
	for i := range 100 {
		ds.Paths = append(ds.Paths, fmt.Sprintf("/img/%03d.png", i))
		ds.Labels = append(ds.Labels, i*3)
	}
	original := pairs(ds)

	ds.Shuffle(42)
	shuffled := pairs(ds)
	assert.NotEqual(t, original, shuffled, "100 elements should not keep their order")

	// Path i was written with label 3*i, the pairing must survive.
	for i, p := range ds.Paths {
		var idx int
		_, err := fmt.Sscanf(p, "/img/%03d.png", &idx)
		require.NoError(t, err)
		assert.Equal(t, idx*3, ds.Labels[i])
	}

	sort.Strings(original)
	sort.Strings(shuffled)
	assert.Equal(t, original, shuffled)
}

func TestShuffleDeterministic(t *testing.T) {
	build := func() *Dataset {
		ds := &Dataset{}
		for i := range 20 {
			ds.Paths = append(ds.Paths, fmt.Sprintf("%d.png", i))
			ds.Labels = append(ds.Labels, i)
		}
		return ds
	}
	a, b := build(), build()
	a.Shuffle(7)
	b.Shuffle(7)
	assert.Equal(t, a.Paths, b.Paths)
	assert.Equal(t, a.Labels, b.Labels)
}

func TestClassCountsAndValidate(t *testing.T) {
	ds := &Dataset{
		Paths:  []string{"a", "b", "c", "d"},
		Labels: []int{0, 1, 1, 5},
	}
	counts, outOfRange := ds.ClassCounts(3)
	assert.Equal(t, []int{1, 2, 0}, counts)
	assert.Equal(t, 1, outOfRange)

	err := ds.Validate(3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRange))
	require.NoError(t, ds.Validate(6))
}
