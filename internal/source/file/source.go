package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/covidanalytics/ventdash/internal/source"
)

// Source reads tables from a local directory
type Source struct {
	dir string
}

// NewSource creates a directory-backed source
func NewSource(dir string) *Source {
	return &Source{dir: dir}
}

// Verify interface compliance
var _ source.Source = (*Source)(nil)

// Open opens dir/name. Names may not escape the directory.
func (s *Source) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clean := filepath.Clean(name)
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return nil, fmt.Errorf("table name %q escapes data directory", name)
	}

	f, err := os.Open(filepath.Join(s.dir, clean))
	if err != nil {
		return nil, fmt.Errorf("failed to open table %s: %w", name, err)
	}
	return f, nil
}

// Describe returns the directory path
func (s *Source) Describe() string {
	return "file://" + s.dir
}
