// File: internal/browser/replay.go
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/eSupun-real/Fake-Signup-Helper/internal/autofill"
)

// Replay modes understood by replayJS.
const (
	modeNotify = "notify"
	modeCheck  = "check"
	modeSelect = "select"
)

// replayJS locates the control by XPath and reproduces what the in-memory
// fill did to it. It returns false when the control is not on the page.
const replayJS = `(function(xpath, mode, value) {
	const el = document.evaluate(xpath, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
	if (!el) return false;
	const fire = (type) => el.dispatchEvent(new Event(type, { bubbles: true }));
	if (mode === "check") {
		el.checked = true;
		fire("change");
		return true;
	}
	if (mode === "select") {
		const idx = Array.from(el.options).findIndex((o) => o.text.trim() === value.trim());
		if (idx < 0) return false;
		el.selectedIndex = idx;
		fire("change");
		return true;
	}
	el.focus();
	el.value = value;
	fire("input");
	fire("change");
	fire("blur");
	return true;
})(%s, %s, %s)`

// step is the browser work for one fill decision.
type step struct {
	Selector string
	Mode     string
	// Value is the text written, or the option text to select.
	Value string
}

// ReplayReport counts the outcome of a replay.
type ReplayReport struct {
	Applied int `json:"applied"`
	// Missing lists selectors that were not found on the live page.
	Missing []string `json:"missing,omitempty"`
}

// planReplay turns fill decisions into browser steps. Decisions that wrote
// nothing produce no step.
func planReplay(decisions []autofill.FillDecision) []step {
	steps := make([]step, 0, len(decisions))
	for _, d := range decisions {
		switch {
		case d.Role == autofill.RoleConsent:
			steps = append(steps, step{Selector: d.Selector, Mode: modeCheck})
		case d.Value == "":
			continue
		case d.Pass == autofill.PassSelect:
			steps = append(steps, step{Selector: d.Selector, Value: d.Value, Mode: modeSelect})
		default:
			steps = append(steps, step{Selector: d.Selector, Value: d.Value, Mode: modeNotify})
		}
	}
	return steps
}

// script renders replayJS for st.
func (st step) script() (string, error) {
	args := make([]interface{}, 0, 3)
	for _, v := range []string{st.Selector, st.Mode, st.Value} {
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		args = append(args, string(b))
	}
	return fmt.Sprintf(replayJS, args...), nil
}

// action returns the chromedp action for st. found is set by the script.
// The value is assigned in the page rather than with chromedp.SetValue, which
// waits for a missing node until the deadline.
func (st step) action(found *bool) (chromedp.Action, error) {
	js, err := st.script()
	if err != nil {
		return nil, fmt.Errorf("failed to build replay script: %w", err)
	}
	return chromedp.Evaluate(js, found, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithSilent(true)
	}), nil
}

// Replay applies the decisions of an in-memory fill to the live page.
// Controls missing from the page are reported, not treated as errors.
func (s *Session) Replay(ctx context.Context, decisions []autofill.FillDecision) (*ReplayReport, error) {
	report := &ReplayReport{}
	for _, st := range planReplay(decisions) {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		var found bool
		act, err := st.action(&found)
		if err != nil {
			return report, err
		}

		actCtx, cancel := s.actionContext(ctx)
		err = s.run(actCtx, act)
		cancel()
		if err != nil {
			return report, fmt.Errorf("failed to replay %s: %w", st.Selector, err)
		}

		if !found {
			s.logger.Warn("Control not found on live page.", zap.String("selector", st.Selector), zap.String("mode", st.Mode))
			report.Missing = append(report.Missing, st.Selector)
			continue
		}
		report.Applied++
	}
	s.logger.Info("Replay complete.", zap.Int("applied", report.Applied), zap.Int("missing", len(report.Missing)))
	return report, nil
}
