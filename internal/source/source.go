package source

import (
	"context"
	"io"
)

// Source provides the raw bytes of a named static table. Implementations
// must be safe for concurrent use.
type Source interface {
	// Open returns a reader over the named table. The caller closes it.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Describe returns a human-readable location for logs
	Describe() string
}
