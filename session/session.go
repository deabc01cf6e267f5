// Package session orchestrates one persona's full test run: goal generation,
// per-goal seed prompts, and the concurrent conversation fan-out. One
// orchestrator instance serves many runs; all per-run state lives on the
// stack of Run.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/personamesh/config"
	"github.com/hupe1980/personamesh/core"
	"github.com/hupe1980/personamesh/engine"
	"github.com/hupe1980/personamesh/generate"
	"github.com/hupe1980/personamesh/internal/util"
	"github.com/hupe1980/personamesh/logging"
	"github.com/hupe1980/personamesh/model"
)

// Progress checkpoints reported to the observer during a run. Values are
// percentages; the scheduler mirrors them into batch status.
const (
	ProgressConfigsLoaded   = 35
	ProgressPersonaPrepared = 40
	ProgressGoalsGenerated  = 50
	ProgressStarting        = 60
	ProgressRunning         = 70
	ProgressProcessing      = 85
)

// ConfigLoader resolves named agent configuration documents.
type ConfigLoader interface {
	Load(name string) (*config.Config, error)
}

// ModelFactory builds a model client from a config document's llm block.
type ModelFactory func(cfg *config.Config) (model.Model, error)

// ProgressFunc observes run progress. Purely informational: a panicking
// observer is swallowed and never fails the run.
type ProgressFunc func(progress int, message string)

// Params are the per-run knobs of a session.
type Params struct {
	NumGoals             int          `json:"num_goals"`
	MaxTurns             int          `json:"max_turns"`
	ConversationsPerGoal int          `json:"conversations_per_goal"`
	TargetAgentConfig    string       `json:"target_agent_config"`
	Progress             ProgressFunc `json:"-"`
}

// Options configure an Orchestrator.
type Options struct {
	// GoalGeneratorConfig names the goal generator config document.
	GoalGeneratorConfig string
	// TesterConfig names the tester (seed + persona agent) config document.
	TesterConfig string
	// Logger receives run progress and per-unit failures.
	Logger logging.Logger
}

// Orchestrator runs persona test sessions.
type Orchestrator struct {
	loader            ConfigLoader
	factory           ModelFactory
	goalGenConfigName string
	testerConfigName  string
	logger            logging.Logger
}

// NewOrchestrator constructs an Orchestrator from a config loader and a model
// factory.
func NewOrchestrator(loader ConfigLoader, factory ModelFactory, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		GoalGeneratorConfig: "goal_generator",
		TesterConfig:        "tester",
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Orchestrator{
		loader:            loader,
		factory:           factory,
		goalGenConfigName: opts.GoalGeneratorConfig,
		testerConfigName:  opts.TesterConfig,
		logger:            opts.Logger,
	}
}

// unit is one (goal, replica) conversation slot.
type unit struct {
	goalIndex int // 1-based
	replica   int
	goal      string
}

// Run executes a full session for the persona. Goal generation failure aborts
// the whole run; a failed seed prompt only skips its (goal, replica) unit. A
// goal key is present in the result iff at least one of its replicas produced
// a conversation.
func (o *Orchestrator) Run(ctx context.Context, rec *core.PersonaRecord, params Params) (core.SessionResult, error) {
	if rec == nil {
		return nil, fmt.Errorf("persona record is required")
	}
	if params.TargetAgentConfig == "" {
		return nil, fmt.Errorf("target agent config is required")
	}
	if params.NumGoals < 1 {
		params.NumGoals = 1
	}
	if params.ConversationsPerGoal < 0 {
		params.ConversationsPerGoal = 0
	}

	goalCfg, err := o.loader.Load(o.goalGenConfigName)
	if err != nil {
		return nil, err
	}
	testerCfg, err := o.loader.Load(o.testerConfigName)
	if err != nil {
		return nil, err
	}
	targetCfg, err := o.loader.Load(params.TargetAgentConfig)
	if err != nil {
		return nil, err
	}
	o.notify(params.Progress, ProgressConfigsLoaded, "configurations loaded")

	vars := rec.TemplateVars()
	vars["agent_sys_prompt"] = targetCfg.Templates.SystemPrompt
	o.notify(params.Progress, ProgressPersonaPrepared, "persona prepared")

	goalModel, err := o.factory(goalCfg)
	if err != nil {
		return nil, fmt.Errorf("build goal generator model: %w", err)
	}
	testerModel, err := o.factory(testerCfg)
	if err != nil {
		return nil, fmt.Errorf("build tester model: %w", err)
	}
	targetModel, err := o.factory(targetCfg)
	if err != nil {
		return nil, fmt.Errorf("build target agent model: %w", err)
	}

	goalGen := generate.NewGoalGenerator(goalModel, goalCfg, func(g *generate.GoalGeneratorOptions) {
		g.Logger = o.logger
	})
	goals, err := goalGen.Generate(ctx, vars, params.NumGoals)
	if err != nil {
		return nil, fmt.Errorf("generate goals for persona %s: %w", rec.ID, err)
	}
	o.notify(params.Progress, ProgressGoalsGenerated, fmt.Sprintf("generated %d goals", len(goals)))

	seedGen := generate.NewSeedPromptGenerator(testerModel, testerCfg, func(so *generate.SeedPromptGeneratorOptions) {
		so.Logger = o.logger
	})

	units := make([]unit, 0, len(goals)*params.ConversationsPerGoal)
	for i, goal := range goals {
		for r := 0; r < params.ConversationsPerGoal; r++ {
			units = append(units, unit{goalIndex: i + 1, replica: r, goal: goal})
		}
	}
	o.notify(params.Progress, ProgressStarting, "starting conversations")

	var (
		mu      sync.Mutex
		result  = make(core.SessionResult)
		unitErr []error
		wg      sync.WaitGroup
	)

	o.notify(params.Progress, ProgressRunning, "conversations running")

	for _, u := range units {
		wg.Add(1)
		go func(u unit) {
			defer wg.Done()

			conv, err := o.runUnit(ctx, u, vars, testerCfg, targetCfg, testerModel, targetModel, seedGen, params.MaxTurns)
			if err != nil {
				var genErr *generate.GenerationError
				if errors.As(err, &genErr) {
					// A failed seed prompt skips this unit only.
					o.logger.Warn("skipping conversation unit",
						"persona_id", rec.ID, "goal_index", u.goalIndex, "replica", u.replica, "error", err)
					return
				}
				mu.Lock()
				unitErr = append(unitErr, err)
				mu.Unlock()
				return
			}

			key := fmt.Sprintf("goal_%d", u.goalIndex)
			mu.Lock()
			result[key] = append(result[key], conv)
			mu.Unlock()
		}(u)
	}
	wg.Wait()

	if len(unitErr) > 0 {
		return nil, fmt.Errorf("session for persona %s: %w", rec.ID, errors.Join(unitErr...))
	}

	o.notify(params.Progress, ProgressProcessing, "processing results")

	return result, nil
}

// runUnit produces one conversation: seed prompt, fresh agent identities, one
// engine run.
func (o *Orchestrator) runUnit(
	ctx context.Context,
	u unit,
	vars map[string]string,
	testerCfg, targetCfg *config.Config,
	testerModel, targetModel model.Model,
	seedGen *generate.SeedPromptGenerator,
	maxTurns int,
) (*core.Conversation, error) {
	seed, err := seedGen.Generate(ctx, vars, u.goal)
	if err != nil {
		return nil, err
	}

	sutPrompt, err := util.Substitute(targetCfg.Templates.SystemPrompt, vars)
	if err != nil {
		return nil, fmt.Errorf("render target agent system prompt: %w", err)
	}
	personaPrompt, err := personaAgentPrompt(testerCfg, vars, u.goal)
	if err != nil {
		return nil, err
	}

	sut := model.NewAgent(fmt.Sprintf("target-%d-%d", u.goalIndex, u.replica), targetModel, sutPrompt)
	personaAgent := model.NewAgent(fmt.Sprintf("persona-%d-%d", u.goalIndex, u.replica), testerModel, personaPrompt)

	eng := engine.New(sut, personaAgent, func(eo *engine.Options) {
		eo.MaxTurns = maxTurns
		eo.Extractor = engine.NewFlagExtractor(testerCfg.Signal.FlagKey)
		eo.Logger = o.logger
	})
	return eng.Run(ctx, u.goal, seed)
}

// personaAgentPrompt renders the persona agent's system prompt: the role and
// task template joined with the target goal template.
func personaAgentPrompt(testerCfg *config.Config, vars map[string]string, goal string) (string, error) {
	roleAndTask, err := util.Substitute(testerCfg.Templates.RoleAndTaskPrompt, vars)
	if err != nil {
		return "", fmt.Errorf("render role and task prompt: %w", err)
	}

	goalVars := make(map[string]string, len(vars)+1)
	for k, v := range vars {
		goalVars[k] = v
	}
	goalVars["goal"] = goal

	targetGoal, err := util.Substitute(testerCfg.Templates.TargetGoal, goalVars)
	if err != nil {
		return "", fmt.Errorf("render target goal prompt: %w", err)
	}
	return roleAndTask + "\n\n" + targetGoal, nil
}

// notify invokes the progress observer, swallowing panics so a broken
// observer can never fail the pipeline.
func (o *Orchestrator) notify(fn ProgressFunc, progress int, message string) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("progress observer panicked", "progress", progress, "panic", r)
		}
	}()
	fn(progress, message)
}
