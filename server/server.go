// Package server exposes the harness over HTTP: synchronous single-session
// runs, asynchronous batch submission with status polling, and persona /
// session inspection.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hupe1980/personamesh/batch"
	"github.com/hupe1980/personamesh/core"
	"github.com/hupe1980/personamesh/internal/util"
	"github.com/hupe1980/personamesh/logging"
	"github.com/hupe1980/personamesh/persona"
	"github.com/hupe1980/personamesh/session"
	"github.com/hupe1980/personamesh/store"
)

// Options configure a Server.
type Options struct {
	Logger logging.Logger
}

// Server wires the scheduler, orchestrator and stores to HTTP routes.
type Server struct {
	runner    batch.SessionRunner
	scheduler *batch.Scheduler
	personas  *persona.StoreProvider
	store     store.Store
	logger    logging.Logger
}

// New constructs a Server.
func New(runner batch.SessionRunner, scheduler *batch.Scheduler, personas *persona.StoreProvider, s store.Store, optFns ...func(o *Options)) *Server {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Server{
		runner:    runner,
		scheduler: scheduler,
		personas:  personas,
		store:     s,
		logger:    opts.Logger,
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", s.handleHealth)

		api.Post("/sessions/run", s.handleRunSession)
		api.Get("/sessions", s.handleListSessions)
		api.Get("/sessions/{sessionID}", s.handleGetSession)

		api.Post("/batches", s.handleSubmitBatch)
		api.Get("/batches/{batchID}", s.handleBatchStatus)
		api.Delete("/batches/{batchID}", s.handleClearBatch)

		api.Get("/personas", s.handleListPersonas)
		api.Get("/personas/{personaID}", s.handleGetPersona)
		api.Post("/personas/load", s.handleLoadPersonas)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type runSessionRequest struct {
	PersonaID            string `json:"persona_id"`
	NumGoals             int    `json:"num_goals"`
	MaxTurns             int    `json:"max_turns"`
	ConversationsPerGoal int    `json:"conversations_per_goal"`
	TargetAgentConfig    string `json:"target_agent_config"`
}

type runSessionResponse struct {
	SessionID string             `json:"session_id"`
	PersonaID string             `json:"persona_id"`
	Result    core.SessionResult `json:"result"`
}

// handleRunSession runs one session synchronously and persists its record.
func (s *Server) handleRunSession(w http.ResponseWriter, r *http.Request) {
	var req runSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PersonaID == "" {
		RespondError(w, http.StatusBadRequest, "persona_id is required")
		return
	}

	ctx := r.Context()
	rec, err := s.personas.GetByID(ctx, req.PersonaID)
	if err != nil {
		if errors.Is(err, persona.ErrNotFound) {
			RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result, err := s.runner.Run(ctx, rec, session.Params{
		NumGoals:             req.NumGoals,
		MaxTurns:             req.MaxTurns,
		ConversationsPerGoal: req.ConversationsPerGoal,
		TargetAgentConfig:    req.TargetAgentConfig,
	})
	if err != nil {
		s.logger.Error("session run failed", "persona_id", req.PersonaID, "error", err)
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	record := &core.SessionRecord{
		ID:                   util.NewID(),
		PersonaID:            rec.ID,
		NumGoals:             req.NumGoals,
		MaxTurns:             req.MaxTurns,
		ConversationsPerGoal: req.ConversationsPerGoal,
		Result:               result,
	}
	if err := s.store.SaveSessions(ctx, []*core.SessionRecord{record}); err != nil {
		s.logger.Error("session persistence failed", "session_id", record.ID, "error", err)
	}

	RespondJSON(w, http.StatusOK, runSessionResponse{
		SessionID: record.ID,
		PersonaID: rec.ID,
		Result:    result,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListSessions(r.Context(), r.URL.Query().Get("persona_id"))
	if err != nil {
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	RespondJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	rec, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	RespondJSON(w, http.StatusOK, rec)
}

type submitBatchRequest struct {
	PersonaIDs           []string `json:"persona_ids"`
	NumGoals             int      `json:"num_goals"`
	MaxTurns             int      `json:"max_turns"`
	ConversationsPerGoal int      `json:"conversations_per_goal"`
	TargetAgentConfig    string   `json:"target_agent_config"`
}

func (s *Server) handleSubmitBatch(w http.ResponseWriter, r *http.Request) {
	var req submitBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	batchID, err := s.scheduler.Submit(req.PersonaIDs, batch.Params{
		NumGoals:             req.NumGoals,
		MaxTurns:             req.MaxTurns,
		ConversationsPerGoal: req.ConversationsPerGoal,
		TargetAgentConfig:    req.TargetAgentConfig,
	})
	if err != nil {
		RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	RespondJSON(w, http.StatusAccepted, map[string]string{"batch_id": batchID})
}

func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.scheduler.Status(chi.URLParam(r, "batchID"))
	if err != nil {
		if errors.Is(err, batch.ErrBatchNotFound) {
			RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	RespondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleClearBatch(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.Clear(chi.URLParam(r, "batchID")); err != nil {
		if errors.Is(err, batch.ErrBatchNotFound) {
			RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	records, err := s.personas.List(r.Context())
	if err != nil {
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	RespondJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	rec, err := s.personas.GetByID(r.Context(), chi.URLParam(r, "personaID"))
	if err != nil {
		if errors.Is(err, persona.ErrNotFound) {
			RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	RespondJSON(w, http.StatusOK, rec)
}

type loadPersonasRequest struct {
	Directory string `json:"directory"`
}

func (s *Server) handleLoadPersonas(w http.ResponseWriter, r *http.Request) {
	var req loadPersonasRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Directory == "" {
		RespondError(w, http.StatusBadRequest, "directory is required")
		return
	}

	loaded, skipped, err := s.personas.LoadDir(r.Context(), req.Directory)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	RespondJSON(w, http.StatusOK, map[string]int{"loaded": loaded, "skipped": skipped})
}
