// Package personamesh provides a high-level façade over the harness's
// building blocks (config loading, session orchestration, batch scheduling,
// persistence) for testing conversational AI systems against simulated
// personas. Most applications interact with this package by:
//  1. Creating a Harness via New() (optionally overriding the default
//     in-memory store, the model factory or the gate width)
//  2. Loading personas from storage or JSON files
//  3. Running single sessions (RunSession) or submitting batches
//     (SubmitBatch) and polling their status
//
// All defaults are safe for local development and testing; production
// deployments typically supply a sqlite store and a structured logger.
package personamesh

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hupe1980/personamesh/batch"
	"github.com/hupe1980/personamesh/config"
	"github.com/hupe1980/personamesh/core"
	"github.com/hupe1980/personamesh/internal/util"
	"github.com/hupe1980/personamesh/logging"
	"github.com/hupe1980/personamesh/model"
	"github.com/hupe1980/personamesh/model/anthropic"
	"github.com/hupe1980/personamesh/model/openai"
	"github.com/hupe1980/personamesh/persona"
	"github.com/hupe1980/personamesh/server"
	"github.com/hupe1980/personamesh/session"
	"github.com/hupe1980/personamesh/store"
)

// Options configures the Harness.
type Options struct {
	// ConfigRoot is the directory holding the agent config documents.
	ConfigRoot string

	// Store persists personas and session records. Defaults to an
	// in-memory store.
	Store store.Store

	// ModelFactory builds model clients from config documents. Defaults to
	// DefaultModelFactory.
	ModelFactory session.ModelFactory

	// GateWidth bounds concurrent sessions within a batch.
	GateWidth int

	// GoalGeneratorConfig / TesterConfig name the shared config documents.
	GoalGeneratorConfig string
	TesterConfig        string

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Harness is the high-level façade aggregating the orchestrator, the batch
// scheduler and persistence.
type Harness struct {
	opts         Options
	store        store.Store
	personas     *persona.StoreProvider
	orchestrator *session.Orchestrator
	scheduler    *batch.Scheduler
}

// New creates a Harness. The config root must exist; every other dependency
// has an in-memory default.
func New(optFns ...func(o *Options)) (*Harness, error) {
	opts := Options{
		ConfigRoot:          "configs",
		Store:               store.NewMemory(),
		ModelFactory:        DefaultModelFactory,
		GateWidth:           core.DefaultGateWidth,
		GoalGeneratorConfig: "goal_generator",
		TesterConfig:        "tester",
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	loader, err := config.NewLoader(opts.ConfigRoot)
	if err != nil {
		return nil, err
	}

	personas := persona.NewStoreProvider(opts.Store, func(po *persona.StoreProviderOptions) {
		po.Logger = opts.Logger
	})

	orchestrator := session.NewOrchestrator(loader, opts.ModelFactory, func(so *session.Options) {
		so.GoalGeneratorConfig = opts.GoalGeneratorConfig
		so.TesterConfig = opts.TesterConfig
		so.Logger = opts.Logger
	})

	scheduler := batch.NewScheduler(orchestrator, personas, opts.Store, func(bo *batch.Options) {
		bo.GateWidth = opts.GateWidth
		bo.Logger = opts.Logger
	})

	return &Harness{
		opts:         opts,
		store:        opts.Store,
		personas:     personas,
		orchestrator: orchestrator,
		scheduler:    scheduler,
	}, nil
}

// Personas exposes the persona provider.
func (h *Harness) Personas() *persona.StoreProvider { return h.personas }

// Store exposes the underlying store.
func (h *Harness) Store() store.Store { return h.store }

// RunSession runs one persona session synchronously, persists its record and
// returns the result alongside the stored session id.
func (h *Harness) RunSession(ctx context.Context, personaID string, params session.Params) (core.SessionResult, string, error) {
	rec, err := h.personas.GetByID(ctx, personaID)
	if err != nil {
		return nil, "", err
	}

	result, err := h.orchestrator.Run(ctx, rec, params)
	if err != nil {
		return nil, "", err
	}

	record := &core.SessionRecord{
		ID:                   util.NewID(),
		PersonaID:            rec.ID,
		NumGoals:             params.NumGoals,
		MaxTurns:             params.MaxTurns,
		ConversationsPerGoal: params.ConversationsPerGoal,
		Result:               result,
	}
	if err := h.store.SaveSessions(ctx, []*core.SessionRecord{record}); err != nil {
		h.opts.Logger.Error("session persistence failed", "session_id", record.ID, "error", err)
		return result, "", nil
	}
	return result, record.ID, nil
}

// SubmitBatch launches a background batch over the given persona ids.
func (h *Harness) SubmitBatch(personaIDs []string, params batch.Params) (string, error) {
	return h.scheduler.Submit(personaIDs, params)
}

// BatchStatus returns a snapshot of a batch.
func (h *Harness) BatchStatus(batchID string) (core.BatchSnapshot, error) {
	return h.scheduler.Status(batchID)
}

// ClearBatch drops a batch from the scheduler's history.
func (h *Harness) ClearBatch(batchID string) error {
	return h.scheduler.Clear(batchID)
}

// LoadPersonas imports persona JSON documents from a directory.
func (h *Harness) LoadPersonas(ctx context.Context, dir string) (loaded, skipped int, err error) {
	return h.personas.LoadDir(ctx, dir)
}

// Handler returns the HTTP API handler serving this harness.
func (h *Harness) Handler() http.Handler {
	srv := server.New(h.orchestrator, h.scheduler, h.personas, h.store, func(so *server.Options) {
		so.Logger = h.opts.Logger
	})
	return srv.Router()
}

// DefaultModelFactory builds a provider client from a config document's llm
// block. The per-attempt timeout of the document's retry policy is handed to
// the client; an unset provider defaults to openai, which also covers
// OpenAI-compatible gateways via base_url.
func DefaultModelFactory(cfg *config.Config) (model.Model, error) {
	timeout := cfg.Retry("").Timeout()

	switch cfg.LLM.Provider {
	case "", "openai":
		return openai.NewModel(func(o *openai.Options) {
			o.Model = cfg.LLM.Model
			o.BaseURL = cfg.LLM.BaseURL
			o.Timeout = timeout
			if cfg.LLM.Params.Temperature > 0 {
				o.Temperature = cfg.LLM.Params.Temperature
			}
			if cfg.LLM.Params.MaxCompletionTokens > 0 {
				o.MaxCompletionTokens = cfg.LLM.Params.MaxCompletionTokens
			}
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = cfg.LLM.Model
			o.Timeout = timeout
			if cfg.LLM.Params.Temperature > 0 {
				o.Temperature = cfg.LLM.Params.Temperature
			}
			if cfg.LLM.Params.MaxCompletionTokens > 0 {
				o.MaxTokens = cfg.LLM.Params.MaxCompletionTokens
			}
		}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
