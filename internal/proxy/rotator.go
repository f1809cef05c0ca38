// File: internal/proxy/rotator.go
package proxy

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eSupun-real/Fake-Signup-Helper/internal/config"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/observability"
)

// Outcome messages reported in Result.Message.
const (
	MsgNoProxies  = "No proxies available"
	MsgNoneWorked = "Could not find a working proxy"
)

// ErrNoProxies is returned when the proxy list is empty.
var ErrNoProxies = errors.New("no proxies available")

// Result reports a switch or disconnect.
type Result struct {
	Success bool   `json:"success"`
	Proxy   string `json:"proxy,omitempty"`
	Message string `json:"message,omitempty"`
}

// StateStore remembers the proxy in use across runs.
type StateStore interface {
	CurrentProxy(ctx context.Context) (string, error)
	SetCurrentProxy(ctx context.Context, addr string) error
	ClearCurrentProxy(ctx context.Context) error
}

// Rotator picks random proxies from a list and applies them.
type Rotator struct {
	cfg      config.ProxyConfig
	source   ListSource
	applier  Applier
	verifier Verifier
	state    StateStore
	logger   *zap.Logger

	mu      sync.Mutex
	rng     *rand.Rand
	current string
}

// Option configures a Rotator.
type Option func(*Rotator)

// WithVerifier checks each candidate before it is applied.
func WithVerifier(p Verifier) Option { return func(r *Rotator) { r.verifier = p } }

// WithStateStore persists the current proxy.
func WithStateStore(s StateStore) Option { return func(r *Rotator) { r.state = s } }

// WithRand fixes the random source.
func WithRand(rng *rand.Rand) Option { return func(r *Rotator) { r.rng = rng } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Rotator) { r.logger = observability.OrNop(l).Named("proxy") }
}

// NewRotator creates a Rotator. When cfg.Verify is set and no verifier is
// given, a SOCKS5Verifier against cfg.VerifyTarget is used.
func NewRotator(cfg config.ProxyConfig, source ListSource, applier Applier, opts ...Option) *Rotator {
	r := &Rotator{
		cfg:     cfg,
		source:  source,
		applier: applier,
		logger:  zap.NewNop(),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.verifier == nil && cfg.Verify {
		r.verifier = SOCKS5Verifier{Target: cfg.VerifyTarget, Timeout: cfg.VerifyTimeout}
	}
	return r
}

// Switch tries up to MaxAttempts random entries, each at most once.
// Malformed entries and failed checks use up an attempt. An apply error ends
// the switch immediately.
func (r *Rotator) Switch(ctx context.Context) Result {
	proxies, err := r.Candidates(ctx)
	if errors.Is(err, ErrNoProxies) {
		return Result{Message: MsgNoProxies}
	}
	if err != nil {
		r.logger.Warn("Failed to load proxy list.", zap.Error(err))
		return Result{Message: err.Error()}
	}

	// Candidates are removed as they are tried; the source's slice stays intact.
	proxies = append([]string(nil), proxies...)

	attempts := r.cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 5
	}

	for i := 0; i < attempts && len(proxies) > 0; i++ {
		if err := ctx.Err(); err != nil {
			return Result{Message: err.Error()}
		}

		idx := r.intn(len(proxies))
		candidate := proxies[idx]
		proxies = append(proxies[:idx], proxies[idx+1:]...)

		host, port, ok := SplitHostPort(candidate)
		if !ok {
			r.logger.Debug("Skipping malformed proxy entry.", zap.String("entry", candidate))
			continue
		}
		addr := net.JoinHostPort(host, strconv.Itoa(port))

		if r.verifier != nil {
			if err := r.verifier.Verify(ctx, addr); err != nil {
				r.logger.Debug("Proxy check failed.", zap.String("proxy", addr), zap.Error(err))
				continue
			}
		}

		if err := r.applier.Apply(ctx, FixedSOCKS5(host, port, r.cfg.BypassList)); err != nil {
			r.logger.Error("Failed to apply proxy.", zap.String("proxy", addr), zap.Error(err))
			return Result{Message: "Error setting proxy: " + err.Error()}
		}

		r.setCurrent(ctx, addr)
		r.logger.Info("Proxy switched.", zap.String("proxy", addr))
		return Result{Success: true, Proxy: addr}
	}
	return Result{Message: MsgNoneWorked}
}

// Candidates loads the proxy list, failing with ErrNoProxies when it is empty.
func (r *Rotator) Candidates(ctx context.Context) ([]string, error) {
	proxies, err := r.source.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(proxies) == 0 {
		return nil, ErrNoProxies
	}
	return proxies, nil
}

// Disconnect restores system proxy settings and forgets the current proxy.
func (r *Rotator) Disconnect(ctx context.Context) Result {
	r.setCurrent(ctx, "")
	if err := r.applier.Apply(ctx, SystemSettings()); err != nil {
		r.logger.Error("Failed to restore system proxy.", zap.Error(err))
		return Result{Message: "Error disabling proxy: " + err.Error()}
	}
	r.logger.Info("Proxy disconnected.")
	return Result{Success: true}
}

// Current returns the proxy in use, consulting the state store when this
// Rotator has not switched yet.
func (r *Rotator) Current(ctx context.Context) (string, bool) {
	r.mu.Lock()
	cur := r.current
	r.mu.Unlock()
	if cur != "" {
		return cur, true
	}
	if r.state == nil {
		return "", false
	}
	addr, err := r.state.CurrentProxy(ctx)
	if err != nil || addr == "" {
		return "", false
	}
	return addr, true
}

func (r *Rotator) setCurrent(ctx context.Context, addr string) {
	r.mu.Lock()
	r.current = addr
	r.mu.Unlock()

	if r.state == nil {
		return
	}
	var err error
	if addr == "" {
		err = r.state.ClearCurrentProxy(ctx)
	} else {
		err = r.state.SetCurrentProxy(ctx, addr)
	}
	if err != nil {
		r.logger.Warn("Failed to persist current proxy.", zap.Error(err))
	}
}

func (r *Rotator) intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}

// SplitHostPort parses "host:port". The host must be non-empty and the port
// a number in 1..65535.
func SplitHostPort(entry string) (host string, port int, ok bool) {
	h, p, found := strings.Cut(strings.TrimSpace(entry), ":")
	if !found || h == "" || p == "" {
		return "", 0, false
	}
	n, err := strconv.Atoi(p)
	if err != nil || n < 1 || n > 65535 {
		return "", 0, false
	}
	return h, n, true
}
