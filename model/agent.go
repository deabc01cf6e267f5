package model

import (
	"context"

	"github.com/hupe1980/personamesh/core"
)

// Agent binds a name and a fixed system prompt to a Model. The dialogue
// engine constructs a fresh pair of Agents per conversation so no state leaks
// between goals or replicas.
type Agent struct {
	name         string
	model        Model
	systemPrompt string
}

// NewAgent constructs an Agent. The system prompt is applied to every call.
func NewAgent(name string, m Model, systemPrompt string) *Agent {
	return &Agent{
		name:         name,
		model:        m,
		systemPrompt: systemPrompt,
	}
}

// Name returns the agent's identity, used as the speaker id on recorded turns.
func (a *Agent) Name() string { return a.name }

// SystemPrompt returns the agent's fixed system prompt.
func (a *Agent) SystemPrompt() string { return a.systemPrompt }

// Respond produces the agent's reply to the given history. The history must
// already be rewritten into the agent's own perspective (its previous replies
// as assistant messages, the counterpart's as user messages).
func (a *Agent) Respond(ctx context.Context, history []core.Message) (string, error) {
	return a.model.Invoke(ctx, Request{
		SystemPrompt: a.systemPrompt,
		Messages:     history,
	})
}
