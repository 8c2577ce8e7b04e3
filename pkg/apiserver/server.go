// Package apiserver hosts the executor over HTTP: an execute endpoint, a
// health check, and a docs route, mounted with chi.
package apiserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alennartz/toolscript/pkg/executor"
	toolerrors "github.com/alennartz/toolscript/pkg/errors"
	"github.com/alennartz/toolscript/pkg/httpgateway"
	"github.com/alennartz/toolscript/pkg/logger"
)

const (
	middlewareTimeout = 60 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Server hosts the execute/health/docs endpoints over HTTP.
type Server struct {
	exec *executor.Executor
	auth func(http.Handler) http.Handler
}

// New constructs a Server backed by exec. auth, if non-nil, wraps the
// execute route only — health and docs stay unauthenticated.
func New(exec *executor.Executor, auth func(http.Handler) http.Handler) *Server {
	return &Server{exec: exec, auth: auth}
}

// Router builds the chi router mounting every route.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Timeout(middlewareTimeout))

	executeHandler := http.HandlerFunc(s.handleExecute)
	var mounted http.Handler = executeHandler
	if s.auth != nil {
		mounted = s.auth(executeHandler)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/docs", s.handleDocs)
	r.Method(http.MethodPost, "/execute_script", mounted)
	return r
}

// Serve starts the HTTP server on address and blocks until ctx is done.
func (s *Server) Serve(ctx context.Context, address string) error {
	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Addr:              address,
		Handler:           s.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	logger.Infof("starting http server on %s", srv.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Infof("http server stopped")
	return nil
}

// executeRequest is the execute_script endpoint's JSON body.
type executeRequest struct {
	Script      string                       `json:"script"`
	Credentials map[string]credentialPayload `json:"credentials,omitempty"`
}

type credentialPayload struct {
	Kind  string `json:"kind"`
	Token string `json:"token,omitempty"`
	Key   string `json:"key,omitempty"`
	User  string `json:"user,omitempty"`
	Pass  string `json:"pass,omitempty"`
}

func (p credentialPayload) toCredential() *httpgateway.Credential {
	return &httpgateway.Credential{
		Kind:  httpgateway.CredentialKind(p.Kind),
		Token: p.Token,
		Key:   p.Key,
		User:  p.User,
		Pass:  p.Pass,
	}
}

type executeResponse struct {
	Result       any                     `json:"result"`
	Logs         []string                `json:"logs"`
	FilesTouched []fileTouchedResponse   `json:"files_touched"`
}

type fileTouchedResponse struct {
	Name  string `json:"name"`
	Op    string `json:"op"`
	Bytes int64  `json:"bytes"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, toolerrors.NewInvalidArgumentError("malformed request body", err))
		return
	}

	credentials := make(map[string]*httpgateway.Credential, len(req.Credentials))
	for api, cred := range req.Credentials {
		credentials[api] = cred.toCredential()
	}

	result, err := s.exec.Run(r.Context(), executor.Request{Script: req.Script, Credentials: credentials})
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	touched := make([]fileTouchedResponse, len(result.FilesTouched))
	for i, f := range result.FilesTouched {
		touched[i] = fileTouchedResponse{Name: f.Name, Op: string(f.Op), Bytes: f.Bytes}
	}

	writeJSON(w, http.StatusOK, executeResponse{
		Result:       result.Value,
		Logs:         result.Logs,
		FilesTouched: touched,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDocs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"execute_script": "POST /execute_script {script, credentials?} -> {result, logs, files_touched}",
		"health":         "GET /health",
	})
}

func statusForError(err error) int {
	switch {
	case toolerrors.IsInvalidArgument(err):
		return http.StatusBadRequest
	case toolerrors.IsNotFound(err):
		return http.StatusNotFound
	case toolerrors.IsPermissionDenied(err):
		return http.StatusForbidden
	case toolerrors.IsResourceExhausted(err):
		return http.StatusTooManyRequests
	case toolerrors.IsDeadlineExceeded(err):
		return http.StatusGatewayTimeout
	case toolerrors.IsUnavailable(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
