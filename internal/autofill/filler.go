// File: internal/autofill/filler.go
package autofill

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eSupun-real/Fake-Signup-Helper/internal/config"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/dom"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/identity"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/observability"
)

var (
	// ErrNoForms is returned alongside an unsuccessful result when the
	// document holds no forms. It is not fatal.
	ErrNoForms = errors.New("no forms found in document")
	// ErrNoDocument is returned when there is no document to scan.
	ErrNoDocument = errors.New("document is not accessible")
)

// Pass names the stage of a fill that made a decision.
type Pass string

const (
	PassPrimary    Pass = "primary"
	PassConsent    Pass = "consent"
	PassSelect     Pass = "select"
	PassPhoneGroup Pass = "phone-group"
)

// FillDecision records the outcome for one classified control.
type FillDecision struct {
	Selector string `json:"selector"`
	Role     Role   `json:"role"`
	// Value is what was written, or "" when the record had nothing for the role.
	Value string `json:"value,omitempty"`
	Pass  Pass   `json:"pass"`
}

// FillResult summarizes one FillForm invocation.
type FillResult struct {
	RunID     string         `json:"run_id"`
	Success   bool           `json:"success"`
	Filled    int            `json:"filled"`
	Decisions []FillDecision `json:"decisions,omitempty"`
}

// Redacted returns a copy of r with password values blanked.
func (r FillResult) Redacted() FillResult {
	out := r
	out.Decisions = make([]FillDecision, len(r.Decisions))
	for i, d := range r.Decisions {
		if d.Role == RolePassword || d.Role == RoleConfirmPassword {
			d.Value = ""
		}
		out.Decisions[i] = d
	}
	return out
}

// Recorder persists the identity used by the most recent fill.
type Recorder interface {
	SaveLastSubmission(ctx context.Context, rec identity.Record, at time.Time) error
}

// Filler classifies form controls and writes identity values into them.
// A Filler holds no per-document state and may be reused.
type Filler struct {
	cfg      config.AutofillConfig
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time
}

// Option configures a Filler.
type Option func(*Filler)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Filler) { f.logger = observability.OrNop(l) }
}

// WithRecorder sets where the identity of each fill is persisted.
func WithRecorder(r Recorder) Option {
	return func(f *Filler) { f.recorder = r }
}

// WithClock overrides the timestamp source used for persistence.
func WithClock(now func() time.Time) Option {
	return func(f *Filler) { f.now = now }
}

// NewFiller creates a Filler.
func NewFiller(cfg config.AutofillConfig, opts ...Option) *Filler {
	f := &Filler{
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FillForm runs every pass over every form of doc. The record is persisted
// once per call whatever the outcome; a failure to persist is only logged.
// A document without forms yields an unsuccessful result and ErrNoForms.
func (f *Filler) FillForm(ctx context.Context, rec identity.Record, doc dom.Scanner) (*FillResult, error) {
	if doc == nil {
		return nil, ErrNoDocument
	}

	res := &FillResult{RunID: uuid.NewString()}
	logger := f.logger.With(zap.String("run_id", res.RunID))

	f.persist(ctx, rec, logger)

	forms := doc.Forms()
	if len(forms) == 0 {
		logger.Info("No forms found in document.")
		return res, ErrNoForms
	}

	for i, form := range forms {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		run := newFormRun(doc, rec, form, res, f.cfg)
		run.primaryPass()
		if f.cfg.FillSelects {
			run.selectPass()
		}
		if f.cfg.FillPhoneGroups {
			run.phoneGroupPass()
		}
		logger.Debug("Form processed.",
			zap.Int("form", i),
			zap.String("selector", form.Selector),
			zap.Int("controls", len(form.Elements)),
		)
	}

	res.Success = true
	logger.Info("Form fill complete.", zap.Int("forms", len(forms)), zap.Int("filled", res.Filled))
	for _, d := range res.Decisions {
		// Values are omitted; they include the password.
		logger.Debug("Fill decision.", zap.String("selector", d.Selector), zap.String("role", string(d.Role)), zap.String("pass", string(d.Pass)))
	}
	return res, nil
}

func (f *Filler) persist(ctx context.Context, rec identity.Record, logger *zap.Logger) {
	if f.recorder == nil {
		return
	}
	if err := f.recorder.SaveLastSubmission(ctx, rec, f.now()); err != nil {
		logger.Warn("Failed to record form submission.", zap.Error(err))
	}
}
