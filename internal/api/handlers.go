// File: internal/api/handlers.go
package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/eSupun-real/Fake-Signup-Helper/internal/autofill"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/dom"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/identity"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/mail"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/proxy"
)

// Action names accepted at /api/actions/{action}.
const (
	ActionGenerateFakeData        = "generateFakeData"
	ActionGetDisposableEmail      = "getDisposableEmail"
	ActionGetVerificationCode     = "getVerificationCode"
	ActionWaitForVerificationCode = "waitForVerificationCode"
	ActionGetProxy                = "getProxy"
	ActionSwitchProxy             = "switchProxy"
	ActionDisconnectProxy         = "disconnectProxy"
	ActionGenerateCustomPassword  = "generateCustomPassword"
	ActionFormSubmitted           = "formSubmitted"
	ActionFillForm                = "fillForm"
)

// maxRequestBody bounds a request, which may carry a whole HTML page.
const maxRequestBody = 8 << 20

var errServiceUnavailable = errors.New("service not configured")

type credentialsRequest struct {
	EmailID  string `json:"emailId"`
	Password string `json:"password"`
	// Timeout is in milliseconds.
	Timeout int64 `json:"timeout"`
}

type passwordRequest struct {
	Length    *int  `json:"length"`
	Uppercase *bool `json:"uppercase"`
	Lowercase *bool `json:"lowercase"`
	Numbers   *bool `json:"numbers"`
	Symbols   *bool `json:"symbols"`
}

func (p passwordRequest) options(opts identity.PasswordOptions) identity.PasswordOptions {
	if p.Length != nil && *p.Length > 0 {
		opts.Length = *p.Length
	}
	if p.Uppercase != nil {
		opts.Uppercase = *p.Uppercase
	}
	if p.Lowercase != nil {
		opts.Lowercase = *p.Lowercase
	}
	if p.Numbers != nil {
		opts.Numbers = *p.Numbers
	}
	if p.Symbols != nil {
		opts.Symbols = *p.Symbols
	}
	return opts
}

type recordRequest struct {
	Data identity.Record `json:"data"`
}

type fillRequest struct {
	HTML string          `json:"html"`
	Data identity.Record `json:"data"`
}

// FillResponse answers fillForm.
type FillResponse struct {
	Success   bool                    `json:"success"`
	Message   string                  `json:"message,omitempty"`
	Filled    int                     `json:"filled"`
	HTML      string                  `json:"html,omitempty"`
	RunID     string                  `json:"run_id,omitempty"`
	Decisions []autofill.FillDecision `json:"decisions,omitempty"`
}

// ProxyStatus answers getProxy.
type ProxyStatus struct {
	Success bool   `json:"success"`
	Proxy   string `json:"proxy,omitempty"`
}

func decodeBody(r *http.Request, v interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]
	logger := s.logger.With(zap.String("action", action), zap.String("request_id", requestIDFrom(r)))
	logger.Debug("Action received.")

	switch action {
	case ActionGenerateFakeData:
		s.generateFakeData(w, r)
	case ActionGetDisposableEmail:
		s.getDisposableEmail(w, r)
	case ActionGetVerificationCode, ActionWaitForVerificationCode:
		s.verificationCode(w, r, action == ActionWaitForVerificationCode)
	case ActionGetProxy:
		s.getProxy(w, r)
	case ActionSwitchProxy:
		s.proxyAction(w, r, ProxyService.Switch)
	case ActionDisconnectProxy:
		s.proxyAction(w, r, ProxyService.Disconnect)
	case ActionGenerateCustomPassword:
		s.generateCustomPassword(w, r)
	case ActionFormSubmitted:
		s.formSubmitted(w, r)
	case ActionFillForm:
		s.fillForm(w, r)
	default:
		s.sendError(w, r, "Unknown action: "+action, http.StatusNotFound)
	}
}

// fail maps an action error to a status code and logs it.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, errServiceUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, mail.ErrNoAccount):
		status = http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	s.logger.Warn("Action failed.", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	s.sendError(w, r, err.Error(), status)
}

func (s *Server) generateFakeData(w http.ResponseWriter, r *http.Request) {
	if s.svc.Bundles == nil {
		s.fail(w, r, errServiceUnavailable)
		return
	}
	b, err := s.svc.Bundles.Bundle(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.sendSuccess(w, r, b)
}

func (s *Server) getDisposableEmail(w http.ResponseWriter, r *http.Request) {
	if s.svc.Mail == nil {
		s.fail(w, r, errServiceUnavailable)
		return
	}
	acct, err := s.svc.Mail.CreateAccount(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.sendSuccess(w, r, map[string]string{"email": acct.Address, "password": acct.Password, "id": acct.ID})
}

// recentCredentials falls back to the identity of the latest form submission.
func (s *Server) recentCredentials(ctx context.Context) (string, string, error) {
	if s.svc.Submissions == nil {
		return "", "", errServiceUnavailable
	}
	sub, err := s.svc.Submissions.LastSubmission(ctx, s.storeCfg.RecentWindow)
	if err != nil {
		return "", "", err
	}
	return sub.Record.Email, sub.Record.Password, nil
}

func (s *Server) verificationCode(w http.ResponseWriter, r *http.Request, wait bool) {
	if s.svc.Mail == nil {
		s.fail(w, r, errServiceUnavailable)
		return
	}
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		s.sendError(w, r, "Invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if _, err := s.svc.Mail.Ensure(ctx, req.EmailID, req.Password, s.recentCredentials); err != nil {
		s.fail(w, r, err)
		return
	}

	var (
		code string
		err  error
	)
	if wait {
		timeout := s.mailCfg.WaitTimeout
		if req.Timeout > 0 {
			timeout = time.Duration(req.Timeout) * time.Millisecond
		}
		code, err = s.svc.Mail.WaitForCode(ctx, timeout)
	} else {
		code, err = s.svc.Mail.LatestCode(ctx)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.sendSuccess(w, r, map[string]string{"code": code})
}

func (s *Server) getProxy(w http.ResponseWriter, r *http.Request) {
	if s.svc.Proxies == nil {
		s.fail(w, r, errServiceUnavailable)
		return
	}
	cur, ok := s.svc.Proxies.Current(r.Context())
	s.sendJSON(w, ProxyStatus{Success: ok, Proxy: cur}, http.StatusOK)
}

func (s *Server) proxyAction(w http.ResponseWriter, r *http.Request, do func(ProxyService, context.Context) proxy.Result) {
	if s.svc.Proxies == nil {
		s.fail(w, r, errServiceUnavailable)
		return
	}
	s.sendJSON(w, do(s.svc.Proxies, r.Context()), http.StatusOK)
}

func (s *Server) generateCustomPassword(w http.ResponseWriter, r *http.Request) {
	if s.svc.Passwords == nil {
		s.fail(w, r, errServiceUnavailable)
		return
	}
	var req passwordRequest
	if err := decodeBody(r, &req); err != nil {
		s.sendError(w, r, "Invalid request body", http.StatusBadRequest)
		return
	}
	pw, err := s.svc.Passwords.Generate(r.Context(), req.options(s.pwOpts))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.sendSuccess(w, r, map[string]string{"password": pw, "strength": string(identity.Strength(pw))})
}

func (s *Server) formSubmitted(w http.ResponseWriter, r *http.Request) {
	if s.svc.Submissions == nil {
		s.fail(w, r, errServiceUnavailable)
		return
	}
	var req recordRequest
	if err := decodeBody(r, &req); err != nil {
		s.sendError(w, r, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.svc.Submissions.SaveLastSubmission(r.Context(), req.Data, s.now()); err != nil {
		s.fail(w, r, err)
		return
	}
	s.sendSuccess(w, r, nil)
}

func (s *Server) fillForm(w http.ResponseWriter, r *http.Request) {
	if s.svc.Filler == nil {
		s.fail(w, r, errServiceUnavailable)
		return
	}
	var req fillRequest
	if err := decodeBody(r, &req); err != nil {
		s.sendError(w, r, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.HTML) == "" {
		s.sendError(w, r, "html is required", http.StatusBadRequest)
		return
	}

	doc, err := dom.Parse(strings.NewReader(req.HTML))
	if err != nil {
		s.sendError(w, r, "Could not parse html: "+err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.svc.Filler.FillForm(r.Context(), req.Data, doc)
	if errors.Is(err, autofill.ErrNoForms) {
		s.sendJSON(w, FillResponse{Message: err.Error(), RunID: res.RunID}, http.StatusOK)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		s.fail(w, r, err)
		return
	}
	redacted := res.Redacted()
	s.sendJSON(w, FillResponse{
		Success:   redacted.Success,
		Filled:    redacted.Filled,
		HTML:      buf.String(),
		RunID:     redacted.RunID,
		Decisions: redacted.Decisions,
	}, http.StatusOK)
}
