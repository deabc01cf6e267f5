// Package engine runs a single persona-versus-SUT conversation to completion.
// The loop alternates one SUT reply and one persona reply per turn, checking
// each persona reply for an embedded termination signal, until the signal
// fires or the turn budget is exhausted.
package engine

import (
	"context"
	"fmt"

	"github.com/hupe1980/personamesh/core"
	"github.com/hupe1980/personamesh/internal/util"
	"github.com/hupe1980/personamesh/logging"
	"github.com/hupe1980/personamesh/model"
)

// Options configure an Engine.
type Options struct {
	// MaxTurns bounds the number of SUT/persona exchange rounds.
	MaxTurns int
	// Extractor detects the persona's termination signal. Defaults to a
	// FlagExtractor on DefaultFlagKey.
	Extractor SignalExtractor
	// Logger receives per-turn debug output.
	Logger logging.Logger
}

// DefaultMaxTurns bounds conversations when no turn budget is configured.
const DefaultMaxTurns = 10

// Engine drives one conversation between a SUT agent and a persona agent.
// Instances are single-use: construct a fresh Engine per conversation so no
// history leaks between goals or replicas.
type Engine struct {
	sut       *model.Agent
	persona   *model.Agent
	maxTurns  int
	extractor SignalExtractor
	logger    logging.Logger
}

// New constructs an Engine for one SUT/persona agent pair.
func New(sut, persona *model.Agent, optFns ...func(o *Options)) *Engine {
	opts := Options{
		MaxTurns: DefaultMaxTurns,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxTurns < 1 {
		opts.MaxTurns = DefaultMaxTurns
	}
	if opts.Extractor == nil {
		opts.Extractor = NewFlagExtractor("")
	}
	return &Engine{
		sut:       sut,
		persona:   persona,
		maxTurns:  opts.MaxTurns,
		extractor: opts.Extractor,
		logger:    opts.Logger,
	}
}

// Run executes the conversation for goal, opened by the persona's seed
// prompt, and returns the completed Conversation. A model failure aborts the
// run and surfaces the partial state to the caller through the error only.
func (e *Engine) Run(ctx context.Context, goal, seed string) (*core.Conversation, error) {
	conv := core.NewConversation(util.NewID(), goal)
	conv.AddTurn(e.persona.Name(), core.RoleUser, seed)

	terminated := false
	for turn := 1; turn <= e.maxTurns; turn++ {
		sutReply, err := e.sut.Respond(ctx, e.historyFor(conv, e.sut))
		if err != nil {
			return nil, fmt.Errorf("sut reply on turn %d: %w", turn, err)
		}
		conv.AddTurn(e.sut.Name(), core.RoleAssistant, sutReply)

		personaReply, err := e.persona.Respond(ctx, e.historyFor(conv, e.persona))
		if err != nil {
			return nil, fmt.Errorf("persona reply on turn %d: %w", turn, err)
		}
		conv.AddTurn(e.persona.Name(), core.RoleUser, personaReply)

		if value, found := e.extractor.Extract(personaReply); found && value {
			e.logger.Debug("conversation terminated early", "goal", goal, "turn", turn)
			terminated = true
			break
		}
	}

	if !terminated {
		e.logger.Debug("conversation exhausted turn budget", "goal", goal, "max_turns", e.maxTurns)
	}

	// A trailing persona judgment is only requested when the loop ended
	// right after a SUT reply; its signal is informational and never
	// reopens the loop.
	if last, ok := conv.LastTurn(); ok && last.Role == core.RoleAssistant {
		assessment, err := e.persona.Respond(ctx, e.historyFor(conv, e.persona))
		if err != nil {
			return nil, fmt.Errorf("final assessment: %w", err)
		}
		conv.AddTurn(e.persona.Name(), core.RoleUser, assessment)
	}

	return conv, nil
}

// historyFor rewrites the conversation into the given agent's perspective:
// its own turns become assistant messages, the counterpart's become user
// messages.
func (e *Engine) historyFor(conv *core.Conversation, agent *model.Agent) []core.Message {
	messages := make([]core.Message, 0, len(conv.Turns))
	for _, t := range conv.Turns {
		role := core.RoleUser
		if t.SpeakerID == agent.Name() {
			role = core.RoleAssistant
		}
		messages = append(messages, core.Message{Role: role, Content: t.Content})
	}
	return messages
}
