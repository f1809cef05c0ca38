// File: internal/mail/session.go
package mail

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eSupun-real/Fake-Signup-Helper/internal/config"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/identity"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/observability"
)

// Messages returned in place of a code. They are results, not errors.
const (
	NoMessagesYet = "No messages yet. Check back in a minute."
	WaitTimedOut  = "No verification code received within the timeout period."
)

var (
	// ErrNoAccount is returned when an operation needs a mailbox and none is active.
	ErrNoAccount = errors.New("no active mail account")
	// ErrNoDomains is returned when the provider offers no domain to register under.
	ErrNoDomains = errors.New("mail provider offers no domains")
)

const localPartChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Account is an active disposable mailbox. Token is a bearer credential.
type Account struct {
	ID       string `json:"id"`
	Address  string `json:"address"`
	Password string `json:"password"`
	Token    string `json:"token"`
}

// AccountStore persists the active account between runs.
type AccountStore interface {
	SaveMailAccount(ctx context.Context, acct Account) error
	MailAccount(ctx context.Context) (*Account, error)
}

// Session owns one disposable mailbox. It is safe for concurrent use.
type Session struct {
	client    *Client
	cfg       config.MailConfig
	passwords identity.PasswordSource
	pwOpts    identity.PasswordOptions
	store     AccountStore
	logger    *zap.Logger

	mu      sync.RWMutex
	account *Account
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithAccountStore persists accounts created or logged into.
func WithAccountStore(s AccountStore) SessionOption {
	return func(sess *Session) { sess.store = s }
}

// WithPasswords sets the password source for new accounts.
func WithPasswords(p identity.PasswordSource, opts identity.PasswordOptions) SessionOption {
	return func(sess *Session) {
		sess.passwords = p
		sess.pwOpts = opts
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) SessionOption {
	return func(sess *Session) { sess.logger = observability.OrNop(l).Named("mail") }
}

// NewSession creates a Session with no active account.
func NewSession(cfg config.MailConfig, fetcher Fetcher, opts ...SessionOption) *Session {
	s := &Session{
		client: NewClient(cfg.BaseURL, fetcher),
		cfg:    cfg,
		pwOpts: identity.DefaultPasswordOptions(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.passwords == nil {
		s.passwords = identity.NewPasswordGenerator(config.PasswordConfig{}, nil, s.logger)
	}
	return s
}

// Account returns a copy of the active account.
func (s *Session) Account() (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.account == nil {
		return Account{}, false
	}
	return *s.account, true
}

func (s *Session) setAccount(ctx context.Context, acct Account) {
	s.mu.Lock()
	s.account = &acct
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveMailAccount(ctx, acct); err != nil {
			s.logger.Warn("Failed to persist mail account.", zap.Error(err))
		}
	}
}

// Restore loads the last persisted account, if any. It reports whether an
// account is now active.
func (s *Session) Restore(ctx context.Context) bool {
	if s.store == nil {
		return false
	}
	acct, err := s.store.MailAccount(ctx)
	if err != nil || acct == nil || acct.Token == "" {
		return false
	}
	s.mu.Lock()
	s.account = acct
	s.mu.Unlock()
	return true
}

// CreateAccount registers a fresh mailbox under the first active domain and
// logs in to it.
func (s *Session) CreateAccount(ctx context.Context) (Account, error) {
	domains, err := s.client.Domains(ctx)
	if err != nil {
		return Account{}, err
	}
	domain := pickDomain(domains)
	if domain == "" {
		return Account{}, ErrNoDomains
	}

	local, err := randomLocalPart(s.cfg.LocalPartLength)
	if err != nil {
		return Account{}, err
	}
	password, err := s.passwords.Generate(ctx, s.pwOpts)
	if err != nil {
		return Account{}, fmt.Errorf("failed to generate mailbox password: %w", err)
	}

	address := local + "@" + domain
	if _, err := s.client.Register(ctx, address, password); err != nil {
		return Account{}, err
	}
	acct, err := s.Login(ctx, address, password)
	if err != nil {
		return Account{}, err
	}
	s.logger.Info("Disposable mailbox created.", zap.String("address", acct.Address))
	return acct, nil
}

// CreateMailbox adapts CreateAccount for identity bundling.
func (s *Session) CreateMailbox(ctx context.Context) (identity.Mailbox, error) {
	acct, err := s.CreateAccount(ctx)
	if err != nil {
		return identity.Mailbox{}, err
	}
	return identity.Mailbox{ID: acct.ID, Address: acct.Address, Password: acct.Password}, nil
}

// Login obtains a token for an existing mailbox and makes it active.
func (s *Session) Login(ctx context.Context, address, password string) (Account, error) {
	token, id, err := s.client.Token(ctx, address, password)
	if err != nil {
		return Account{}, err
	}
	acct := Account{ID: id, Address: address, Password: password, Token: token}
	s.setAccount(ctx, acct)
	return acct, nil
}

// CredentialSource supplies a mailbox address and password to log in with.
type CredentialSource func(ctx context.Context) (address, password string, err error)

// Ensure makes a mailbox active. Explicit credentials win; otherwise the
// active account is kept; otherwise fallback is consulted. With nothing to
// go on it returns ErrNoAccount.
func (s *Session) Ensure(ctx context.Context, address, password string, fallback CredentialSource) (Account, error) {
	if address != "" {
		if acct, ok := s.Account(); ok && acct.Address == address && acct.Password == password {
			return acct, nil
		}
		return s.Login(ctx, address, password)
	}
	if acct, ok := s.Account(); ok {
		return acct, nil
	}
	if fallback != nil {
		addr, pw, err := fallback(ctx)
		if err == nil && addr != "" {
			return s.Login(ctx, addr, pw)
		}
	}
	return Account{}, ErrNoAccount
}

func (s *Session) active() (Account, error) {
	acct, ok := s.Account()
	if !ok {
		return Account{}, ErrNoAccount
	}
	return acct, nil
}

// Messages lists the active inbox, newest first.
func (s *Session) Messages(ctx context.Context) ([]MessageSummary, error) {
	acct, err := s.active()
	if err != nil {
		return nil, err
	}
	return s.client.Messages(ctx, acct.Token)
}

// Message fetches one message of the active inbox.
func (s *Session) Message(ctx context.Context, id string) (*Message, error) {
	acct, err := s.active()
	if err != nil {
		return nil, err
	}
	return s.client.Message(ctx, acct.Token, id)
}

// LatestCode extracts a code from the newest message. An empty inbox yields
// NoMessagesYet; a message without a code yields the not-found description.
func (s *Session) LatestCode(ctx context.Context) (string, error) {
	msgs, err := s.Messages(ctx)
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		return NoMessagesYet, nil
	}
	msg, err := s.Message(ctx, msgs[0].ID)
	if err != nil {
		return "", err
	}
	code, _ := ExtractCode(msg)
	return code, nil
}

// WaitForCode polls the inbox until a message newer than the ones present
// at the start yields a code, or timeout elapses (WaitTimedOut). A
// non-positive timeout uses the configured default.
func (s *Session) WaitForCode(ctx context.Context, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = s.cfg.WaitTimeout
	}
	interval := s.cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	initial, err := s.Messages(ctx)
	if err != nil {
		return "", err
	}
	baseline := len(initial)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline.C:
			return WaitTimedOut, nil
		case <-ticker.C:
		}

		msgs, err := s.Messages(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			s.logger.Warn("Inbox poll failed.", zap.Error(err))
			continue
		}
		if len(msgs) <= baseline {
			continue
		}
		msg, err := s.Message(ctx, msgs[0].ID)
		if err != nil {
			s.logger.Warn("Failed to fetch new message.", zap.Error(err))
			continue
		}
		if code, found := ExtractCode(msg); found {
			return code, nil
		}
	}
}

func pickDomain(domains []Domain) string {
	for _, d := range domains {
		if d.IsActive && d.Domain != "" {
			return d.Domain
		}
	}
	// Some deployments omit isActive.
	for _, d := range domains {
		if d.Domain != "" {
			return d.Domain
		}
	}
	return ""
}

func randomLocalPart(n int) (string, error) {
	if n <= 0 {
		n = 10
	}
	max := big.NewInt(int64(len(localPartChars)))
	b := make([]byte, n)
	for i := range b {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		b[i] = localPartChars[v.Int64()]
	}
	return string(b), nil
}
