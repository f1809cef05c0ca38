// File: internal/network/fetch.go
package network

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/eSupun-real/Fake-Signup-Helper/internal/config"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/observability"
)

// maxBodySize caps how much of a collaborator response is read.
const maxBodySize = 2 << 20

// Doer is the part of http.Client the fetcher needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError reports a non-2xx collaborator response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

// Fetcher issues rate limited JSON requests against collaborator APIs.
type Fetcher struct {
	client    Doer
	limiter   *rate.Limiter
	userAgent string
	logger    *zap.Logger
}

// NewFetcher wraps client. A zero cfg.RateLimit disables limiting.
func NewFetcher(client Doer, cfg config.NetworkConfig, logger *zap.Logger) *Fetcher {
	if client == nil {
		client = NewClient(ClientConfigFrom(cfg))
	}
	f := &Fetcher{
		client:    client,
		userAgent: cfg.UserAgent,
		logger:    observability.OrNop(logger).Named("fetch"),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return f
}

// GetJSON decodes the JSON body of a GET into out.
func (f *Fetcher) GetJSON(ctx context.Context, url string, header http.Header, out interface{}) error {
	return f.DoJSON(ctx, http.MethodGet, url, header, nil, out)
}

// GetText returns the body of a GET as a string.
func (f *Fetcher) GetText(ctx context.Context, url string) (string, error) {
	body, err := f.do(ctx, http.MethodGet, url, nil, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// DoJSON performs one request. in may be nil; out may be nil to discard the body.
func (f *Fetcher) DoJSON(ctx context.Context, method, url string, header http.Header, in, out interface{}) error {
	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
		if header == nil {
			header = http.Header{}
		} else {
			header = header.Clone()
		}
		header.Set("Content-Type", "application/json")
	}

	body, err := f.do(ctx, method, url, header, reqBody)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}

func (f *Fetcher) do(ctx context.Context, method, url string, header http.Header, body io.Reader) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	f.logger.Debug("Collaborator request complete.",
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(data)
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, &StatusError{Method: method, URL: url, StatusCode: resp.StatusCode, Body: strings.TrimSpace(snippet)}
	}
	return data, nil
}
