package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/observability"
	"github.com/sandevgo/tuskmem/internal/service/memory"
	"github.com/sandevgo/tuskmem/pkg/log"
)

// Engine is the memory facade served over HTTP.
type Engine interface {
	core.Memory
	ConversationContext(ctx context.Context, conversationID, userID, query string, topK int) (*core.AssembledContext, error)
}

type Server struct {
	addr    string
	memCfg  config.MemoryConfig
	engine  Engine
	metrics *observability.Metrics
	http    *http.Server
}

// New builds the server. Request contexts derive from ctx, so handlers log
// through its logger.
func New(ctx context.Context, addr string, memCfg config.MemoryConfig, engine Engine, metrics *observability.Metrics) *Server {
	s := &Server{
		addr:    addr,
		memCfg:  memCfg,
		engine:  engine,
		metrics: metrics,
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Post("/v1/memory", s.handleStore)
	r.Post("/v1/memory/search", s.handleSearch)
	r.Post("/v1/context", s.handleContext)
	r.Delete("/v1/conversations/{id}/memory", s.handleDeleteConversation)
	r.Delete("/v1/users/{id}/memory", s.handleDeleteUser)

	return r
}

// Start serves until the listener is closed by Shutdown.
func (s *Server) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Str("addr", s.addr).Msg("http api listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": core.AppName,
		"version": core.AppVersion,
	})
}

type storeRequest struct {
	ConversationID string      `json:"conversation_id"`
	UserID         string      `json:"user_id"`
	Turns          []core.Turn `json:"turns"`
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	var req storeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	err := s.engine.StoreConversationMemory(r.Context(), req.ConversationID, req.UserID, req.Turns)
	if failed, ok := memory.IsPartialWrite(err); ok {
		respondJSON(w, http.StatusMultiStatus, map[string]any{
			"stored": len(req.Turns) - len(failed),
			"failed": failed,
			"error":  err.Error(),
		})
		return
	}
	if err != nil {
		respondCoreError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"stored": len(req.Turns)})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req core.RetrieveRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.TopK == 0 {
		req.TopK = s.memCfg.TopK
	}

	results, err := s.engine.Retrieve(r.Context(), req)
	if err != nil {
		respondCoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"results": results})
}

type contextRequest struct {
	core.AssembleRequest
	// FromLog loads the recent turns from the conversation log instead of the request.
	FromLog bool `json:"from_log"`
}

type contextResponse struct {
	*core.AssembledContext
	Prompt string `json:"prompt"`
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	var req contextRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.TopK == 0 {
		req.TopK = s.memCfg.TopK
	}

	var (
		ac  *core.AssembledContext
		err error
	)
	if req.FromLog {
		ac, err = s.engine.ConversationContext(r.Context(), req.ConversationID, req.UserID, req.Query, req.TopK)
	} else {
		ac, err = s.engine.AssembleContext(r.Context(), req.AssembleRequest)
	}
	if err != nil {
		respondCoreError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, contextResponse{AssembledContext: ac, Prompt: memory.FormatContext(ac)})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteConversationMemory(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondCoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteUserMemory(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondCoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondCoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, core.ErrProviderUnavailable):
		log.FromCtx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("provider unavailable")
		respondError(w, http.StatusServiceUnavailable, "provider_unavailable", err.Error())
	default:
		log.FromCtx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		respondError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
