// File: internal/store/store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	json "github.com/json-iterator/go"
	"github.com/tidwall/buntdb"
	"go.uber.org/zap"

	"github.com/eSupun-real/Fake-Signup-Helper/internal/config"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/identity"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/mail"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/observability"
)

// ErrNotFound is returned when the requested state is absent or too old.
var ErrNotFound = errors.New("not found")

const (
	submissionTable = "submissions"
	submissionIndex = "submissions_at"
	keyCurrentProxy = "proxy:current"
	keyMailAccount  = "mail:account"
)

// Submission is the identity used by a fill and when it was used.
type Submission struct {
	Record identity.Record `json:"record"`
	// At is Unix nanoseconds so the JSON index orders numerically.
	At int64 `json:"at"`
}

// Time returns At as a time.Time.
func (s Submission) Time() time.Time { return time.Unix(0, s.At) }

// Store keeps local state in an embedded buntdb database.
type Store struct {
	db  *buntdb.DB
	ttl time.Duration
	now func() time.Time
	log *zap.Logger
}

// Open opens (or creates) the database at path. ":memory:" keeps everything
// in memory. A non-positive ttl keeps submissions until overwritten.
func Open(path string, ttl time.Duration, logger *zap.Logger) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", path, err)
	}
	if err := db.CreateIndex(submissionIndex, submissionTable+":*", buntdb.IndexJSON("at")); err != nil && !errors.Is(err, buntdb.ErrIndexExists) {
		db.Close()
		return nil, fmt.Errorf("failed to create submission index: %w", err)
	}

	s := &Store{
		db:  db,
		ttl: ttl,
		now: time.Now,
		log: observability.OrNop(logger).Named("store"),
	}
	if path != ":memory:" {
		if err := db.Shrink(); err != nil {
			s.log.Debug("Store shrink skipped.", zap.Error(err))
		}
	}
	return s, nil
}

// OpenFromConfig opens the store described by the store section.
func OpenFromConfig(cfg config.StoreConfig, logger *zap.Logger) (*Store, error) {
	return Open(cfg.Path, cfg.SubmissionTTL, logger)
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) setOptions() *buntdb.SetOptions {
	if s.ttl <= 0 {
		return nil
	}
	return &buntdb.SetOptions{Expires: true, TTL: s.ttl}
}

// SaveLastSubmission records rec as used at the given time. Older
// submissions are removed in the same transaction.
func (s *Store) SaveLastSubmission(ctx context.Context, rec identity.Record, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sub := Submission{Record: rec, At: at.UnixNano()}
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to encode submission: %w", err)
	}

	err = s.db.Update(func(tx *buntdb.Tx) error {
		var stale []string
		if err := tx.Ascend(submissionIndex, func(key, _ string) bool {
			stale = append(stale, key)
			return true
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if _, err := tx.Delete(k); err != nil && !errors.Is(err, buntdb.ErrNotFound) {
				return err
			}
		}
		_, _, err := tx.Set(submissionTable+":"+strconv.FormatInt(sub.At, 10), string(data), s.setOptions())
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save submission: %w", err)
	}
	s.log.Debug("Submission recorded.", zap.String("username", rec.Username), zap.Time("at", at))
	return nil
}

// LastSubmission returns the most recent submission when it is younger than
// maxAge, else ErrNotFound. A non-positive maxAge disables the age check.
func (s *Store) LastSubmission(ctx context.Context, maxAge time.Duration) (*Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		latest *Submission
		decErr error
	)
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.Descend(submissionIndex, func(_, val string) bool {
			sub := &Submission{}
			if decErr = json.Unmarshal([]byte(val), sub); decErr != nil {
				return false
			}
			latest = sub
			return false
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read submissions: %w", err)
	}
	if decErr != nil {
		return nil, fmt.Errorf("failed to decode submission: %w", decErr)
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	if maxAge > 0 && s.now().Sub(latest.Time()) > maxAge {
		return nil, ErrNotFound
	}
	return latest, nil
}

// CurrentProxy returns the proxy in use as "host:port", or ErrNotFound.
func (s *Store) CurrentProxy(ctx context.Context) (string, error) {
	return s.get(ctx, keyCurrentProxy)
}

// SetCurrentProxy records the proxy in use.
func (s *Store) SetCurrentProxy(ctx context.Context, addr string) error {
	return s.set(ctx, keyCurrentProxy, addr)
}

// ClearCurrentProxy forgets the proxy in use. Clearing twice is not an error.
func (s *Store) ClearCurrentProxy(ctx context.Context) error {
	return s.del(ctx, keyCurrentProxy)
}

// SaveMailAccount records the active disposable mailbox, token included.
func (s *Store) SaveMailAccount(ctx context.Context, acct mail.Account) error {
	data, err := json.Marshal(acct)
	if err != nil {
		return fmt.Errorf("failed to encode mail account: %w", err)
	}
	return s.set(ctx, keyMailAccount, string(data))
}

// MailAccount returns the active disposable mailbox, or ErrNotFound.
func (s *Store) MailAccount(ctx context.Context) (*mail.Account, error) {
	raw, err := s.get(ctx, keyMailAccount)
	if err != nil {
		return nil, err
	}
	acct := &mail.Account{}
	if err := json.Unmarshal([]byte(raw), acct); err != nil {
		return nil, fmt.Errorf("failed to decode mail account: %w", err)
	}
	return acct, nil
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var val string
	err := s.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return err
		}
		val = v
		return nil
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return val, nil
}

func (s *Store) set(ctx context.Context, key, val string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, val, nil)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *Store) del(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		return err
	})
	if err != nil && !errors.Is(err, buntdb.ErrNotFound) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
