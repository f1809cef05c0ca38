// File: internal/proxy/list.go
package proxy

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/eSupun-real/Fake-Signup-Helper/internal/config"
)

// TextFetcher returns the body of a GET. network.Fetcher satisfies it.
type TextFetcher interface {
	GetText(ctx context.Context, url string) (string, error)
}

// ListSource loads candidate proxies.
type ListSource interface {
	Load(ctx context.Context) ([]string, error)
}

// ParseList splits text into trimmed, non-empty lines.
func ParseList(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// FileSource reads the list from a local file.
type FileSource struct{ Path string }

// Load implements ListSource.
func (s FileSource) Load(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read proxy list: %w", err)
	}
	return ParseList(string(data)), nil
}

// URLSource downloads the list.
type URLSource struct {
	URL     string
	Fetcher TextFetcher
}

// Load implements ListSource.
func (s URLSource) Load(ctx context.Context) ([]string, error) {
	body, err := s.Fetcher.GetText(ctx, s.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to download proxy list: %w", err)
	}
	return ParseList(body), nil
}

// SourceFromConfig prefers a configured file over the URL.
func SourceFromConfig(cfg config.ProxyConfig, fetcher TextFetcher) ListSource {
	if cfg.ListFile != "" {
		return FileSource{Path: cfg.ListFile}
	}
	return URLSource{URL: cfg.ListURL, Fetcher: fetcher}
}
