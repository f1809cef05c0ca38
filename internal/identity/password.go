// File: internal/identity/password.go
package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/eSupun-real/Fake-Signup-Helper/internal/config"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/observability"
)

// Character classes. Look-alike glyphs (I, O, l, 0, 1) are left out.
const (
	upperChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	lowerChars  = "abcdefghijkmnopqrstuvwxyz"
	digitChars  = "23456789"
	symbolChars = "!@#$%^&*()_+-=[]{}|;:,./?"
)

// DefaultPasswordLength is used when PasswordOptions.Length is zero.
const DefaultPasswordLength = 16

// PasswordOptions selects the length and character classes of a password.
type PasswordOptions struct {
	Length    int  `json:"length"`
	Uppercase bool `json:"uppercase"`
	Lowercase bool `json:"lowercase"`
	Numbers   bool `json:"numbers"`
	Symbols   bool `json:"symbols"`
}

// DefaultPasswordOptions is 16 characters with every class enabled.
func DefaultPasswordOptions() PasswordOptions {
	return PasswordOptions{Length: DefaultPasswordLength, Uppercase: true, Lowercase: true, Numbers: true, Symbols: true}
}

// PasswordOptionsFrom reads the password section of the configuration.
func PasswordOptionsFrom(cfg config.PasswordConfig) PasswordOptions {
	return PasswordOptions{
		Length:    cfg.Length,
		Uppercase: cfg.Uppercase,
		Lowercase: cfg.Lowercase,
		Numbers:   cfg.Numbers,
		Symbols:   cfg.Symbols,
	}
}

func (o PasswordOptions) length() int {
	if o.Length <= 0 {
		return DefaultPasswordLength
	}
	return o.Length
}

// classes returns the enabled character sets; lowercase alone when none is enabled.
func (o PasswordOptions) classes() []string {
	var sets []string
	if o.Uppercase {
		sets = append(sets, upperChars)
	}
	if o.Lowercase {
		sets = append(sets, lowerChars)
	}
	if o.Numbers {
		sets = append(sets, digitChars)
	}
	if o.Symbols {
		sets = append(sets, symbolChars)
	}
	if len(sets) == 0 {
		sets = []string{lowerChars}
	}
	return sets
}

// GenerateLocalPassword builds a password from crypto/rand. One character
// of each enabled class is included while room remains, the rest is drawn
// from the union of the classes, and the result is shuffled.
func GenerateLocalPassword(opts PasswordOptions) (string, error) {
	length := opts.length()
	sets := opts.classes()

	charset := ""
	for _, s := range sets {
		charset += s
	}

	buf := make([]byte, 0, length)
	for _, s := range sets {
		if len(buf) >= length {
			break
		}
		c, err := randomChar(s)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}
	for len(buf) < length {
		c, err := randomChar(charset)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}

	// Fisher-Yates
	for i := len(buf) - 1; i > 0; i-- {
		j, err := randomInt(i + 1)
		if err != nil {
			return "", err
		}
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf), nil
}

func randomChar(set string) (byte, error) {
	i, err := randomInt(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

func randomInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return int(v.Int64()), nil
}

// genratrResponse covers the field names the service has used over time.
type genratrResponse struct {
	Password string `json:"password"`
	Result   string `json:"result"`
	Value    string `json:"value"`
}

func (r genratrResponse) pick() string {
	switch {
	case r.Password != "":
		return r.Password
	case r.Result != "":
		return r.Result
	}
	return r.Value
}

// PasswordGenerator asks the remote generator first and falls back to
// local generation on any failure.
type PasswordGenerator struct {
	fetcher    JSONFetcher
	serviceURL string
	useRemote  bool
	logger     *zap.Logger
}

// NewPasswordGenerator creates a PasswordGenerator. A nil fetcher or
// cfg.UseRemote=false means passwords are always generated locally.
func NewPasswordGenerator(cfg config.PasswordConfig, fetcher JSONFetcher, logger *zap.Logger) *PasswordGenerator {
	return &PasswordGenerator{
		fetcher:    fetcher,
		serviceURL: cfg.ServiceURL,
		useRemote:  cfg.UseRemote && fetcher != nil && cfg.ServiceURL != "",
		logger:     observability.OrNop(logger).Named("password"),
	}
}

// Generate returns a password honoring opts. Remote failures are logged and
// never returned; only a failing system random source is an error.
func (g *PasswordGenerator) Generate(ctx context.Context, opts PasswordOptions) (string, error) {
	if g.useRemote {
		pw, err := g.remote(ctx, opts)
		if err == nil {
			return pw, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		g.logger.Warn("Remote password generation failed, generating locally.", zap.Error(err))
	}
	return GenerateLocalPassword(opts)
}

func (g *PasswordGenerator) remote(ctx context.Context, opts PasswordOptions) (string, error) {
	q := url.Values{}
	q.Set("length", strconv.Itoa(opts.length()))
	q.Set("numbers", strconv.FormatBool(opts.Numbers))
	q.Set("symbols", strconv.FormatBool(opts.Symbols))
	q.Set("lowercase", strconv.FormatBool(opts.Lowercase))
	q.Set("uppercase", strconv.FormatBool(opts.Uppercase))

	var resp genratrResponse
	if err := g.fetcher.GetJSON(ctx, g.serviceURL+"?"+q.Encode(), nil, &resp); err != nil {
		return "", err
	}
	pw := resp.pick()
	if pw == "" {
		return "", errors.New("password service returned no password")
	}
	return pw, nil
}
