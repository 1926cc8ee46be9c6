package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/covidanalytics/ventdash/internal/source"
)

// Config holds remote source configuration
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	MaxConcurrency int64
	RetryCount     int
	RetryDelay     time.Duration
}

// DefaultConfig returns default configuration
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		Timeout:        30 * time.Second,
		MaxConcurrency: 4,
		RetryCount:     2,
		RetryDelay:     250 * time.Millisecond,
	}
}

// Source downloads tables over HTTP(S) from a base URL
type Source struct {
	config Config
	client *http.Client
	sem    *semaphore.Weighted
}

// NewSource creates a new remote source
func NewSource(config Config) *Source {
	return &Source{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		sem: semaphore.NewWeighted(config.MaxConcurrency),
	}
}

// Verify interface compliance
var _ source.Source = (*Source)(nil)

// Open downloads the named table in full and returns a reader over it.
// The body is buffered so the concurrency slot is released before parsing.
func (s *Source) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("semaphore acquire: %w", err)
	}
	defer s.sem.Release(1)

	tableURL, err := s.tableURL(name)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= s.config.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.config.RetryDelay):
			}
		}

		body, err := s.fetch(ctx, tableURL)
		if err == nil {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("fetch %s failed after %d attempts: %w", name, s.config.RetryCount+1, lastErr)
}

// Describe returns the base URL
func (s *Source) Describe() string {
	return s.config.BaseURL
}

func (s *Source) tableURL(name string) (string, error) {
	base, err := url.Parse(strings.TrimSuffix(s.config.BaseURL, "/") + "/")
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	ref, err := url.Parse(url.PathEscape(name))
	if err != nil {
		return "", fmt.Errorf("invalid table name %q: %w", name, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// fetch performs a single GET
func (s *Source) fetch(ctx context.Context, tableURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tableURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}

	return body, nil
}
