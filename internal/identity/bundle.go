// File: internal/identity/bundle.go
package identity

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eSupun-real/Fake-Signup-Helper/internal/observability"
)

// Mailbox is a disposable inbox the generated identity can sign up with.
type Mailbox struct {
	ID       string `json:"id"`
	Address  string `json:"address"`
	Password string `json:"password"`
}

// MailboxProvider creates disposable inboxes.
type MailboxProvider interface {
	CreateMailbox(ctx context.Context) (Mailbox, error)
}

// Generator is the identity source used by a Bundler.
type Generator interface {
	Generate(ctx context.Context) (Record, error)
}

// PasswordSource produces passwords for the given options.
type PasswordSource interface {
	Generate(ctx context.Context, opts PasswordOptions) (string, error)
}

// Bundle is everything needed to fill one signup form.
type Bundle struct {
	Record  Record   `json:"record"`
	Mailbox *Mailbox `json:"mailbox,omitempty"`
	// Strength rates Record.Password.
	Strength StrengthRating `json:"strength"`
}

// Bundler fetches identity, mailbox and password concurrently.
type Bundler struct {
	identities Generator
	mailboxes  MailboxProvider
	passwords  PasswordSource
	opts       PasswordOptions
	logger     *zap.Logger
}

// NewBundler creates a Bundler. mailboxes may be nil, in which case the
// identity's own email address and the generated password are used.
func NewBundler(identities Generator, mailboxes MailboxProvider, passwords PasswordSource, opts PasswordOptions, logger *zap.Logger) *Bundler {
	return &Bundler{
		identities: identities,
		mailboxes:  mailboxes,
		passwords:  passwords,
		opts:       opts,
		logger:     observability.OrNop(logger).Named("bundle"),
	}
}

// Bundle runs the three lookups in parallel. An identity or password failure
// fails the bundle; a mailbox failure is logged and the record keeps the
// identity's email with the generated password.
func (b *Bundler) Bundle(ctx context.Context) (*Bundle, error) {
	var (
		rec        Record
		pw         string
		mbox       Mailbox
		mailboxErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := b.identities.Generate(gctx)
		if err != nil {
			return err
		}
		rec = r
		return nil
	})
	g.Go(func() error {
		p, err := b.passwords.Generate(gctx, b.opts)
		if err != nil {
			return fmt.Errorf("failed to generate password: %w", err)
		}
		pw = p
		return nil
	})
	if b.mailboxes != nil {
		g.Go(func() error {
			mbox, mailboxErr = b.mailboxes.CreateMailbox(gctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Bundle{Record: rec}
	out.Record.Password = pw
	switch {
	case b.mailboxes == nil:
	case mailboxErr != nil:
		b.logger.Warn("Disposable mailbox unavailable, keeping generated email.", zap.Error(mailboxErr))
	default:
		out.Record.Email = mbox.Address
		if mbox.Password != "" {
			out.Record.Password = mbox.Password
		}
		out.Mailbox = &mbox
	}
	out.Strength = Strength(out.Record.Password)
	return out, nil
}
