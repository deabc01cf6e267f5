package personamesh

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/personamesh/batch"
	"github.com/hupe1980/personamesh/config"
	"github.com/hupe1980/personamesh/core"
	"github.com/hupe1980/personamesh/model"
	"github.com/hupe1980/personamesh/session"
)

const (
	goalGeneratorDoc = `
llm:
  provider: openai
  model: goal-model
templates:
  system_prompt: "Produce $num_goals goals."
  user_prompt: "Persona $participant_id tests: $agent_sys_prompt"
retries:
  goal_generation:
    max_attempts: 3
    backoff_seconds: 0.001
`
	testerDoc = `
llm:
  provider: openai
  model: tester-model
templates:
  role_and_task_prompt: "You are participant $participant_id."
  job_description_prompt: "Open a conversation."
  user_prompt: "Seed for $goal"
  target_goal: "Pursue: $goal"
signal:
  flag_key: goal_achieved
retries:
  seed_prompt_generation:
    max_attempts: 3
    backoff_seconds: 0.001
`
	targetAgentDoc = `
llm:
  provider: openai
  model: target-model
templates:
  system_prompt: "You are a helpful assistant."
`
)

// mockFactory routes each config document to a dedicated MockModel, keyed on
// the document's model id.
type mockFactory struct {
	models map[string]*model.MockModel
}

func newMockFactory() *mockFactory {
	return &mockFactory{models: map[string]*model.MockModel{
		"goal-model":   model.NewMockModel("goal-model"),
		"tester-model": model.NewMockModel("tester-model"),
		"target-model": model.NewMockModel("target-model"),
	}}
}

func (f *mockFactory) build(cfg *config.Config) (model.Model, error) {
	m, ok := f.models[cfg.LLM.Model]
	if !ok {
		return nil, fmt.Errorf("unknown model %q", cfg.LLM.Model)
	}
	return m, nil
}

func writeConfigRoot(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, doc := range map[string]string{
		"goal_generator.yaml": goalGeneratorDoc,
		"tester.yaml":         testerDoc,
		"target_agent.yaml":   targetAgentDoc,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(doc), 0o644))
	}
	return dir
}

func newTestHarness(t *testing.T) (*Harness, *mockFactory) {
	t.Helper()
	factory := newMockFactory()

	harness, err := New(func(o *Options) {
		o.ConfigRoot = writeConfigRoot(t)
		o.ModelFactory = factory.build
	})
	require.NoError(t, err)
	return harness, factory
}

func prime(f *mockFactory, goal string) {
	seed := "seed-" + goal
	f.models["tester-model"].AddResponse("Seed for "+goal, fmt.Sprintf(`{"seed_prompt": %q}`, seed))
	f.models["tester-model"].AddResponse("Mock response to: "+seed, `Done. {"goal_achieved": true}`)
}

func TestHarnessRunSession(t *testing.T) {
	harness, factory := newTestHarness(t)
	factory.models["goal-model"].Enqueue(`{"goals": ["g1"]}`)
	prime(factory, "g1")

	ctx := context.Background()
	_, err := harness.Store().PutPersona(ctx, &core.PersonaRecord{ID: "p-1", ParticipantID: "p-1"})
	require.NoError(t, err)

	result, sessionID, err := harness.RunSession(ctx, "p-1", session.Params{
		NumGoals:             1,
		MaxTurns:             5,
		ConversationsPerGoal: 1,
		TargetAgentConfig:    "target_agent",
	})
	require.NoError(t, err)
	require.Contains(t, result, "goal_1")
	require.NotEmpty(t, sessionID)

	stored, err := harness.Store().GetSession(ctx, sessionID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "p-1", stored.PersonaID)
}

func TestHarnessBatch(t *testing.T) {
	harness, factory := newTestHarness(t)
	// Identical scripted replies, one per persona session.
	factory.models["goal-model"].Enqueue(`{"goals": ["g1"]}`, `{"goals": ["g1"]}`)
	prime(factory, "g1")

	ctx := context.Background()
	for _, id := range []string{"p-1", "p-2"} {
		_, err := harness.Store().PutPersona(ctx, &core.PersonaRecord{ID: id, ParticipantID: id})
		require.NoError(t, err)
	}

	batchID, err := harness.SubmitBatch([]string{"p-1", "p-2"}, batch.Params{
		NumGoals:             1,
		MaxTurns:             5,
		ConversationsPerGoal: 1,
		TargetAgentConfig:    "target_agent",
	})
	require.NoError(t, err)

	var snap core.BatchSnapshot
	require.Eventually(t, func() bool {
		snap, err = harness.BatchStatus(batchID)
		return err == nil && snap.OverallStatus == core.BatchCompleted
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 2, snap.Completed)
	for _, st := range snap.PersonaStatuses {
		assert.NotEmpty(t, st.SessionID)
	}

	require.NoError(t, harness.ClearBatch(batchID))
	_, err = harness.BatchStatus(batchID)
	require.ErrorIs(t, err, batch.ErrBatchNotFound)
}

func TestHarnessMissingConfigRoot(t *testing.T) {
	_, err := New(func(o *Options) {
		o.ConfigRoot = filepath.Join(t.TempDir(), "missing")
	})
	require.Error(t, err)
}

func TestDefaultModelFactory(t *testing.T) {
	openaiModel, err := DefaultModelFactory(&config.Config{
		LLM: config.LLM{Provider: "openai", Model: "gpt-4o-mini"},
	})
	require.NoError(t, err)
	assert.Equal(t, "openai", openaiModel.Info().Provider)

	anthropicModel, err := DefaultModelFactory(&config.Config{
		LLM: config.LLM{Provider: "anthropic", Model: "claude-3-5-sonnet-20241022"},
	})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", anthropicModel.Info().Provider)

	_, err = DefaultModelFactory(&config.Config{
		LLM: config.LLM{Provider: "bogus", Model: "x"},
	})
	require.Error(t, err)
}
