package memory

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSource_Open(t *testing.T) {
	src := NewSource()
	src.SetTable("b.csv", []byte("x\n1\n"))

	path := filepath.Join(t.TempDir(), "fixture.csv")
	require.NoError(t, os.WriteFile(path, []byte("y\n2\n"), 0o644))
	require.NoError(t, src.LoadTable("a.csv", path))

	rc, err := src.Open(context.Background(), "a.csv")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "y\n2\n", string(data))

	assert.Equal(t, "memory://a.csv,b.csv", src.Describe())

	_, err = src.Open(context.Background(), "c.csv")
	assert.ErrorContains(t, err, "table not found")

	assert.Error(t, src.LoadTable("d.csv", filepath.Join(t.TempDir(), "missing.csv")))
}

func TestSource_OpenCanceled(t *testing.T) {
	src := NewSource()
	src.SetTable("a.csv", []byte("x\n"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Open(ctx, "a.csv")
	assert.ErrorIs(t, err, context.Canceled)
}
