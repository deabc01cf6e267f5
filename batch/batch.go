// Package batch schedules persona sessions across a bounded worker pool. A
// submitted batch runs in the background; callers poll its status by id.
// Session results are buffered in memory and written in one bulk persistence
// call once every persona has reached a terminal state.
package batch

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/personamesh/core"
	"github.com/hupe1980/personamesh/internal/util"
	"github.com/hupe1980/personamesh/logging"
	"github.com/hupe1980/personamesh/persona"
	"github.com/hupe1980/personamesh/session"
)

// SessionRunner executes one persona session. Satisfied by
// *session.Orchestrator.
type SessionRunner interface {
	Run(ctx context.Context, rec *core.PersonaRecord, params session.Params) (core.SessionResult, error)
}

// SessionSaver persists all of a batch's session records in one call.
// Satisfied by store.Store.
type SessionSaver interface {
	SaveSessions(ctx context.Context, records []*core.SessionRecord) error
}

// ErrBatchNotFound marks an unknown batch id.
var ErrBatchNotFound = fmt.Errorf("batch not found")

// Params are the session knobs shared by every persona in a batch.
type Params struct {
	NumGoals             int    `json:"num_goals"`
	MaxTurns             int    `json:"max_turns"`
	ConversationsPerGoal int    `json:"conversations_per_goal"`
	TargetAgentConfig    string `json:"target_agent_config"`
}

// Options configure a Scheduler.
type Options struct {
	// GateWidth bounds how many sessions run concurrently. Defaults to
	// core.DefaultGateWidth.
	GateWidth int
	// Logger receives per-persona lifecycle events.
	Logger logging.Logger
}

// Scheduler runs batches of persona sessions. Jobs are retained in memory
// until an explicit Clear call; there is no expiry.
type Scheduler struct {
	mu       sync.Mutex
	jobs     map[string]*core.BatchJob
	gate     *core.AdmissionGate
	runner   SessionRunner
	personas persona.Provider
	saver    SessionSaver
	logger   logging.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(runner SessionRunner, personas persona.Provider, saver SessionSaver, optFns ...func(o *Options)) *Scheduler {
	opts := Options{
		GateWidth: core.DefaultGateWidth,
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Scheduler{
		jobs:     make(map[string]*core.BatchJob),
		gate:     core.NewAdmissionGate(opts.GateWidth),
		runner:   runner,
		personas: personas,
		saver:    saver,
		logger:   opts.Logger,
	}
}

// Submit registers a batch over the given persona ids and launches its
// background execution. Returns the batch id immediately.
func (s *Scheduler) Submit(personaIDs []string, params Params) (string, error) {
	if len(personaIDs) == 0 {
		return "", fmt.Errorf("at least one persona id is required")
	}
	if params.TargetAgentConfig == "" {
		return "", fmt.Errorf("target agent config is required")
	}

	batchID := util.NewID()
	job := core.NewBatchJob(batchID, personaIDs)

	s.mu.Lock()
	s.jobs[batchID] = job
	s.mu.Unlock()

	s.logger.Info("batch submitted", "batch_id", batchID, "personas", len(personaIDs))

	// Execution deliberately detaches from the caller: a submitted batch
	// runs to completion or failure with no cancellation path.
	go s.execute(context.Background(), job, personaIDs, params)

	return batchID, nil
}

// Status returns a point-in-time snapshot of a batch.
func (s *Scheduler) Status(batchID string) (core.BatchSnapshot, error) {
	s.mu.Lock()
	job, ok := s.jobs[batchID]
	s.mu.Unlock()
	if !ok {
		return core.BatchSnapshot{}, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}
	return job.Snapshot(), nil
}

// Clear drops a batch from the scheduler's history. The background execution,
// if still in flight, continues against its own job handle.
func (s *Scheduler) Clear(batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[batchID]; !ok {
		return fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}
	delete(s.jobs, batchID)
	return nil
}

func (s *Scheduler) execute(ctx context.Context, job *core.BatchJob, personaIDs []string, params Params) {
	var (
		mu      sync.Mutex
		records []*core.SessionRecord
		wg      sync.WaitGroup
	)

	for _, personaID := range personaIDs {
		wg.Add(1)
		go func(personaID string) {
			defer wg.Done()

			plog := logging.WithBatch(s.logger, job.ID, personaID)

			if err := s.gate.Acquire(ctx); err != nil {
				job.MarkFailed(personaID, fmt.Sprintf("admission aborted: %v", err))
				return
			}
			defer s.gate.Release()

			rec, result, err := s.runPersona(ctx, job, personaID, params)
			if err != nil {
				plog.Warn("persona session failed", "error", err)
				job.MarkFailed(personaID, err.Error())
				return
			}

			mu.Lock()
			records = append(records, &core.SessionRecord{
				ID:                   util.NewID(),
				PersonaID:            rec.ID,
				NumGoals:             params.NumGoals,
				MaxTurns:             params.MaxTurns,
				ConversationsPerGoal: params.ConversationsPerGoal,
				Result:               result,
			})
			mu.Unlock()

			job.MarkCompleted(personaID, "session completed")
			plog.Debug("persona session completed")
		}(personaID)
	}
	wg.Wait()

	s.persist(ctx, job, records)

	state := job.Finalize()
	s.logger.Info("batch finished", "batch_id", job.ID, "status", string(state))
}

// runPersona executes one persona's session, converting panics into errors so
// a misbehaving pipeline can never take down its siblings.
func (s *Scheduler) runPersona(ctx context.Context, job *core.BatchJob, personaID string, params Params) (rec *core.PersonaRecord, result core.SessionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("session panicked: %v", r)
		}
	}()

	job.MarkRunning(personaID)

	rec, err = s.personas.GetByID(ctx, personaID)
	if err != nil {
		return nil, nil, err
	}

	result, err = s.runner.Run(ctx, rec, session.Params{
		NumGoals:             params.NumGoals,
		MaxTurns:             params.MaxTurns,
		ConversationsPerGoal: params.ConversationsPerGoal,
		TargetAgentConfig:    params.TargetAgentConfig,
		Progress: func(progress int, message string) {
			// Progress stays below 100 until persistence settles the
			// terminal state.
			if progress > 99 {
				progress = 99
			}
			job.UpdateProgress(personaID, message, progress)
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return rec, result, nil
}

// persist writes all buffered records in one call and back-fills the session
// ids into the batch status. A persistence failure is logged; personas
// already marked completed stay completed, they just carry no session id.
func (s *Scheduler) persist(ctx context.Context, job *core.BatchJob, records []*core.SessionRecord) {
	if len(records) == 0 {
		return
	}
	if err := s.saver.SaveSessions(ctx, records); err != nil {
		s.logger.Error("bulk session persistence failed", "batch_id", job.ID, "sessions", len(records), "error", err)
		return
	}
	for _, rec := range records {
		job.SetSessionID(rec.PersonaID, rec.ID)
	}
}
