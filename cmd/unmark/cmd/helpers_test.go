package cmd

import (
	"bytes"
	"context"
	"image"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/unmark/internal/testutil"
	"github.com/MeKo-Tech/unmark/internal/watermark"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory with no user configuration in
// reach and returns that directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	return dir
}

// execute runs a fresh command tree with args and captures its output.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return executeContext(t, context.Background(), args...)
}

func executeContext(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

// cleanImage is a flat 200x150 image, small footprint at (120, 70).
func cleanImage() *image.NRGBA {
	return testutil.UniformImage(200, 150, 60)
}

// markedImage composites the default mark onto img.
func markedImage(t *testing.T, img image.Image) *image.NRGBA {
	t.Helper()
	comp, err := watermark.NewCompositor()
	require.NoError(t, err)
	out, err := comp.AddWatermark(img, watermark.Options{})
	require.NoError(t, err)
	return out
}

// writeMarked saves a marked copy of cleanImage at path.
func writeMarked(t *testing.T, path string) {
	t.Helper()
	testutil.SaveImage(t, markedImage(t, cleanImage()), path)
}

// requireRestored checks that the image at path matches cleanImage within
// the round-trip tolerance of the default mattes.
func requireRestored(t *testing.T, path string) {
	t.Helper()
	got := testutil.LoadImage(t, path)
	want := cleanImage()
	require.Equal(t, want.Bounds(), got.Bounds())
	require.LessOrEqual(t, testutil.MaxChannelDiff(want, got, want.Bounds()), 3)
}
