// File: internal/api/server.go
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/eSupun-real/Fake-Signup-Helper/internal/autofill"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/config"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/dom"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/identity"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/mail"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/observability"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/proxy"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/store"
)

// BundleService produces a full identity bundle.
type BundleService interface {
	Bundle(ctx context.Context) (*identity.Bundle, error)
}

// MailService is the disposable mailbox session.
type MailService interface {
	CreateAccount(ctx context.Context) (mail.Account, error)
	Ensure(ctx context.Context, address, password string, fallback mail.CredentialSource) (mail.Account, error)
	LatestCode(ctx context.Context) (string, error)
	WaitForCode(ctx context.Context, timeout time.Duration) (string, error)
}

// ProxyService switches and reports the active proxy.
type ProxyService interface {
	Switch(ctx context.Context) proxy.Result
	Disconnect(ctx context.Context) proxy.Result
	Current(ctx context.Context) (string, bool)
}

// FormFiller fills forms of a parsed document.
type FormFiller interface {
	FillForm(ctx context.Context, rec identity.Record, doc dom.Scanner) (*autofill.FillResult, error)
}

// SubmissionStore records and recalls the identity used most recently.
type SubmissionStore interface {
	SaveLastSubmission(ctx context.Context, rec identity.Record, at time.Time) error
	LastSubmission(ctx context.Context, maxAge time.Duration) (*store.Submission, error)
}

// Services are the collaborators behind the actions. Any may be nil, in
// which case the actions needing it answer with an error.
type Services struct {
	Bundles     BundleService
	Mail        MailService
	Proxies     ProxyService
	Passwords   identity.PasswordSource
	Filler      FormFiller
	Submissions SubmissionStore
}

// Response is the envelope of every action except the proxy and fill actions,
// which answer in their own shape.
type Response struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// Server exposes the actions over HTTP.
type Server struct {
	cfg      config.APIConfig
	mailCfg  config.MailConfig
	storeCfg config.StoreConfig
	pwOpts   identity.PasswordOptions
	svc      Services
	router   *mux.Router
	logger   *zap.Logger
	now      func() time.Time
}

// NewServer builds the router for cfg.
func NewServer(cfg config.Interface, svc Services, logger *zap.Logger) *Server {
	s := &Server{
		cfg:      cfg.API(),
		mailCfg:  cfg.Mail(),
		storeCfg: cfg.Store(),
		pwOpts:   identity.PasswordOptionsFrom(cfg.Password()),
		svc:      svc,
		router:   mux.NewRouter(),
		logger:   observability.OrNop(logger).Named("api"),
		now:      time.Now,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestID)
	s.router.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/actions/{action}", s.handleAction).Methods(http.MethodPost)
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.sendError(w, r, "Not found", http.StatusNotFound)
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.sendError(w, r, "Method not allowed", http.StatusMethodNotAllowed)
	})
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

type ctxKey struct{}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func requestIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

// ListenAndServe serves on the configured address until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Action API listening.", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("Action API stopped.")
	return nil
}

func (s *Server) sendJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("Failed to write response.", zap.Error(err))
	}
}

func (s *Server) sendSuccess(w http.ResponseWriter, r *http.Request, data interface{}) {
	s.sendJSON(w, Response{Success: true, Data: data, RequestID: requestIDFrom(r)}, http.StatusOK)
}

func (s *Server) sendError(w http.ResponseWriter, r *http.Request, message string, status int) {
	s.sendJSON(w, Response{Success: false, Message: message, RequestID: requestIDFrom(r)}, status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, r, map[string]string{"status": "ok"})
}
