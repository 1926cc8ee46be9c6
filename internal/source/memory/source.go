package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/covidanalytics/ventdash/internal/source"
)

// Source serves tables held in memory. It backs tests and fixtures.
type Source struct {
	mu     sync.RWMutex
	tables map[string][]byte
}

// NewSource creates an empty in-memory source
func NewSource() *Source {
	return &Source{
		tables: make(map[string][]byte),
	}
}

// Verify interface compliance
var _ source.Source = (*Source)(nil)

// LoadTable reads the file at path and serves it as name
func (s *Source) LoadTable(name string, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read fixture: %w", err)
	}

	s.SetTable(name, data)
	return nil
}

// SetTable directly sets the content of a table
func (s *Source) SetTable(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[name] = data
}

// Open returns a reader over the stored table bytes
func (s *Source) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, exists := s.tables[name]
	s.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("table not found: %s", name)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Describe lists the held table names
func (s *Source) Describe() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return "memory://" + strings.Join(names, ",")
}
