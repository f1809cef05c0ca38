// File: cmd/components.go
package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eSupun-real/Fake-Signup-Helper/internal/api"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/autofill"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/config"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/identity"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/mail"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/network"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/proxy"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/store"
)

// components holds the initialized services shared by the commands.
type components struct {
	Store      *store.Store
	Fetcher    *network.Fetcher
	Passwords  *identity.PasswordGenerator
	Identities *identity.Service
	Mail       *mail.Session
	Bundler    *identity.Bundler
	Proxies    *proxy.Rotator
	Filler     *autofill.Filler
}

// Shutdown releases the state database.
func (c *components) Shutdown(logger *zap.Logger) {
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			logger.Warn("Error closing state store", zap.Error(err))
		}
	}
}

// services exposes the components to the action API.
func (c *components) services() api.Services {
	return api.Services{
		Bundles:     c.Bundler,
		Mail:        c.Mail,
		Proxies:     c.Proxies,
		Passwords:   c.Passwords,
		Filler:      c.Filler,
		Submissions: c.Store,
	}
}

// initializeComponents handles dependency injection.
func initializeComponents(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*components, error) {
	c := &components{}

	// 1. State store
	st, err := store.OpenFromConfig(cfg.Store(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	c.Store = st

	// 2. Outbound HTTP
	c.Fetcher = network.NewFetcher(nil, cfg.Network(), logger)

	// 3. Identity sources
	c.Passwords = identity.NewPasswordGenerator(cfg.Password(), c.Fetcher, logger)
	c.Identities = identity.NewService(cfg.Identity(), c.Fetcher, logger)

	// 4. Disposable mail, resuming the last mailbox when one was saved.
	pwOpts := identity.PasswordOptionsFrom(cfg.Password())
	c.Mail = mail.NewSession(cfg.Mail(), c.Fetcher,
		mail.WithAccountStore(st),
		mail.WithPasswords(c.Passwords, pwOpts),
		mail.WithLogger(logger),
	)
	if c.Mail.Restore(ctx) {
		acct, _ := c.Mail.Account()
		logger.Debug("Restored disposable mailbox", zap.String("address", acct.Address))
	}
	c.Bundler = identity.NewBundler(c.Identities, c.Mail, c.Passwords, pwOpts, logger)

	// 5. Proxy rotation
	proxyCfg := cfg.Proxy()
	c.Proxies = proxy.NewRotator(proxyCfg,
		proxy.SourceFromConfig(proxyCfg, c.Fetcher),
		proxy.FileApplier{Path: proxyCfg.SettingsFile},
		proxy.WithStateStore(st),
		proxy.WithLogger(logger),
	)

	// 6. Form filling
	c.Filler = autofill.NewFiller(cfg.Autofill(),
		autofill.WithRecorder(st),
		autofill.WithLogger(logger),
	)

	return c, nil
}
