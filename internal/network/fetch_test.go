package network

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eSupun-real/Fake-Signup-Helper/internal/config"
)

func newTestFetcher(t *testing.T, cfg config.NetworkConfig) *Fetcher {
	t.Helper()
	return NewFetcher(http.DefaultClient, cfg, nil)
}

func TestFetcher_GetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "fakesignup-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ip":"203.0.113.7"}`)
	}))
	defer server.Close()

	f := newTestFetcher(t, config.NetworkConfig{UserAgent: "fakesignup-test"})
	var out struct {
		IP string `json:"ip"`
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer tok")
	require.NoError(t, f.GetJSON(context.Background(), server.URL, h, &out))
	assert.Equal(t, "203.0.113.7", out.IP)
}

func TestFetcher_DoJSONPost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"address":"a@b.c","password":"pw"}`, string(body))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"42"}`)
	}))
	defer server.Close()

	f := newTestFetcher(t, config.NetworkConfig{})
	in := map[string]string{"address": "a@b.c", "password": "pw"}
	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, f.DoJSON(context.Background(), http.MethodPost, server.URL, nil, in, &out))
	assert.Equal(t, "42", out.ID)
}

func TestFetcher_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTooManyRequests)
	}))
	defer server.Close()

	f := newTestFetcher(t, config.NetworkConfig{})
	err := f.GetJSON(context.Background(), server.URL, nil, &struct{}{})
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Equal(t, "nope", se.Body)
}

func TestFetcher_DecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{not json`)
	}))
	defer server.Close()

	f := newTestFetcher(t, config.NetworkConfig{})
	var out map[string]interface{}
	err := f.GetJSON(context.Background(), server.URL, nil, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")
}

func TestFetcher_EmptyBodyIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	f := newTestFetcher(t, config.NetworkConfig{})
	var out map[string]interface{}
	require.NoError(t, f.GetJSON(context.Background(), server.URL, nil, &out))
	assert.Nil(t, out)
}

func TestFetcher_GetText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "1.2.3.4:1080\n\n5.6.7.8:9050\n")
	}))
	defer server.Close()

	f := newTestFetcher(t, config.NetworkConfig{})
	body, err := f.GetText(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3.4:1080\n\n5.6.7.8:9050\n", body)
}

func TestFetcher_RateLimitHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	defer server.Close()

	// One token per minute: the second call has to wait and the context expires first.
	f := newTestFetcher(t, config.NetworkConfig{RateLimit: 1.0 / 60, Burst: 1})
	require.NoError(t, f.GetJSON(context.Background(), server.URL, nil, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := f.GetJSON(ctx, server.URL, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter wait")
}

func TestFetcher_NilClientUsesDefault(t *testing.T) {
	f := NewFetcher(nil, config.NetworkConfig{Timeout: time.Second}, nil)
	require.NotNil(t, f.client)
	assert.Nil(t, f.limiter)
}
