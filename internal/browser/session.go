// File: internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/eSupun-real/Fake-Signup-Helper/internal/config"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/observability"
)

// runFunc matches chromedp.Run and is swapped out in tests.
type runFunc func(ctx context.Context, actions ...chromedp.Action) error

// Session is one Chrome instance with a single tab. Close releases both.
type Session struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	// ctx is the tab context; every action runs against it.
	ctx         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	run         runFunc
}

// Launch starts a browser and verifies it responds. proxyAddr, when set, is a
// SOCKS5 host:port every request of the browser goes through.
func Launch(ctx context.Context, cfg config.BrowserConfig, proxyAddr string, logger *zap.Logger) (*Session, error) {
	logger = observability.OrNop(logger).Named("browser")
	logger.Info("Launching browser...", zap.Bool("headless", cfg.Headless), zap.String("proxy", proxyAddr))

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, ExecAllocatorOptions(cfg, proxyAddr)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Sugar().Debugf))

	s := &Session{
		cfg:         cfg,
		logger:      logger,
		ctx:         tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		run:         chromedp.Run,
	}

	// The first Run starts the process; a blank page confirms it is alive.
	if err := s.run(tabCtx, chromedp.Navigate("about:blank")); err != nil {
		s.Close()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}
	logger.Debug("Browser is responsive.")
	return s, nil
}

// Close shuts the tab and the browser process.
func (s *Session) Close() {
	if s.tabCancel != nil {
		s.tabCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
}

// Snapshot navigates to url and returns the rendered page markup once the
// body is ready.
func (s *Session) Snapshot(ctx context.Context, url string) (string, error) {
	navCtx, cancel := s.actionContext(ctx)
	defer cancel()

	var page string
	err := s.run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &page, chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(navCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("timed out loading %s after %s: %w", url, s.cfg.NavigationTimeout, err)
		}
		return "", fmt.Errorf("failed to load %s: %w", url, err)
	}
	s.logger.Debug("Page captured.", zap.String("url", url), zap.Int("bytes", len(page)))
	return page, nil
}

// Wait blocks until ctx is done or the browser goes away.
func (s *Session) Wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-s.ctx.Done():
	}
}

// actionContext bounds the tab context by the navigation timeout and ties it
// to the caller's ctx.
func (s *Session) actionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	actCtx, cancel := context.WithTimeout(s.ctx, s.cfg.NavigationTimeout)
	stop := context.AfterFunc(ctx, cancel)
	return actCtx, func() {
		stop()
		cancel()
	}
}

// ExecAllocatorOptions translates the configuration into chromedp allocator options.
func ExecAllocatorOptions(cfg config.BrowserConfig, proxyAddr string) []chromedp.ExecAllocatorOption {
	// Flags set after the defaults replace them.
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range allocatorFlags(cfg, proxyAddr) {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// allocatorFlags returns the command line flags for Chrome, keyed without the
// leading dashes.
func allocatorFlags(cfg config.BrowserConfig, proxyAddr string) map[string]interface{} {
	flags := map[string]interface{}{
		"headless":                  cfg.Headless,
		"disable-gpu":               cfg.DisableGPU,
		"ignore-certificate-errors": cfg.IgnoreTLSErrors,
		"disable-blink-features":    "AutomationControlled",
		"enable-automation":         false,
		"no-sandbox":                true,
		"disable-dev-shm-usage":     true,
	}
	if proxyAddr != "" {
		flags["proxy-server"] = "socks5://" + proxyAddr
	}

	// Extra arguments from the config file: "--flag" or "--flag=value".
	for _, arg := range cfg.Args {
		arg = strings.TrimPrefix(strings.TrimSpace(arg), "--")
		if arg == "" {
			continue
		}
		if name, value, ok := strings.Cut(arg, "="); ok {
			flags[name] = value
			continue
		}
		flags[arg] = true
	}
	return flags
}
