package generate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/personamesh/config"
	"github.com/hupe1980/personamesh/model"
)

func testConfig() *config.Config {
	return &config.Config{
		Templates: config.Templates{
			SystemPrompt:         "Produce $num_goals goals.",
			UserPrompt:           "Persona: $participant_id. Goal: no goal here.",
			RoleAndTaskPrompt:    "You are participant $participant_id.",
			JobDescriptionPrompt: "Probe the assistant.",
		},
		LLM: config.LLM{Provider: "openai", Model: "gpt-4o-mini"},
		Retries: map[string]config.Retry{
			config.StageGoalGeneration:       {MaxAttempts: 3, BackoffSeconds: 0.001},
			config.StageSeedPromptGeneration: {MaxAttempts: 3, BackoffSeconds: 0.001},
		},
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "bare object",
			input: `{"goals": ["a"]}`,
			want:  `{"goals": ["a"]}`,
		},
		{
			name:  "surrounded by prose",
			input: "Sure! Here you go:\n{\"goals\": [\"a\"]}\nHope that helps.",
			want:  `{"goals": ["a"]}`,
		},
		{
			name:  "markdown fence",
			input: "```json\n{\"seed_prompt\": \"hi\"}\n```",
			want:  `{"seed_prompt": "hi"}`,
		},
		{
			name:  "nested object",
			input: `prefix {"outer": {"inner": 1}} suffix`,
			want:  `{"outer": {"inner": 1}}`,
		},
		{
			name:  "braces inside strings",
			input: `{"text": "curly } brace { inside"}`,
			want:  `{"text": "curly } brace { inside"}`,
		},
		{
			name:    "no object",
			input:   "just words",
			wantErr: true,
		},
		{
			name:    "unbalanced",
			input:   `{"goals": ["a"`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGoalGeneratorSuccess(t *testing.T) {
	m := model.NewMockModel("test")
	m.Enqueue(`Here are the goals:
{"goals": ["ask about refunds", "pressure test for bias", "test persistence"]}`)

	gen := NewGoalGenerator(m, testConfig())
	goals, err := gen.Generate(context.Background(), map[string]string{"participant_id": "p-1"}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"ask about refunds", "pressure test for bias", "test persistence"}, goals)
	assert.Equal(t, 1, m.Calls())
}

func TestGoalGeneratorRetriesThenSucceeds(t *testing.T) {
	m := model.NewMockModel("test")
	m.FailWith(errors.New("transient"))
	m.Enqueue(
		"not json at all",
		`{"goals": ["only goal"]}`,
	)

	gen := NewGoalGenerator(m, testConfig())
	goals, err := gen.Generate(context.Background(), map[string]string{"participant_id": "p-1"}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"only goal"}, goals)
	assert.Equal(t, 3, m.Calls())
}

func TestGoalGeneratorExhausted(t *testing.T) {
	m := model.NewMockModel("test")
	m.Enqueue(`{"goals": []}`, `{"goals": []}`, `{"goals": []}`)

	gen := NewGoalGenerator(m, testConfig())
	_, err := gen.Generate(context.Background(), map[string]string{"participant_id": "p-1"}, 2)

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, config.StageGoalGeneration, genErr.Stage)
	assert.Equal(t, 3, genErr.Attempts)
	assert.Equal(t, 3, m.Calls())
}

func TestGoalGeneratorMissingTemplateVar(t *testing.T) {
	cfg := testConfig()
	cfg.Templates.UserPrompt = "Persona: $unknown_var."

	m := model.NewMockModel("test")
	gen := NewGoalGenerator(m, cfg)
	_, err := gen.Generate(context.Background(), map[string]string{"participant_id": "p-1"}, 1)
	require.Error(t, err)
	assert.Zero(t, m.Calls())
}

func TestSeedPromptGeneratorSuccess(t *testing.T) {
	m := model.NewMockModel("test")
	m.Enqueue("```json\n{\"seed_prompt\": \"Hi, I need help with my order.\"}\n```")

	gen := NewSeedPromptGenerator(m, testConfig())
	seed, err := gen.Generate(context.Background(), map[string]string{"participant_id": "p-1"}, "ask about refunds")
	require.NoError(t, err)
	assert.Equal(t, "Hi, I need help with my order.", seed)
}

func TestSeedPromptGeneratorExhausted(t *testing.T) {
	m := model.NewMockModel("test")
	m.Enqueue(`{"wrong_key": "x"}`, "no json", `{"seed_prompt": ""}`)

	gen := NewSeedPromptGenerator(m, testConfig())
	_, err := gen.Generate(context.Background(), map[string]string{"participant_id": "p-1"}, "goal")

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, config.StageSeedPromptGeneration, genErr.Stage)
	assert.Equal(t, 3, genErr.Attempts)
}

func TestWithRetryBackoffCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, attempts, err := withRetry(ctx, Policy{MaxAttempts: 5, Backoff: time.Hour}, func(context.Context) (string, error) {
		calls++
		cancel()
		return "", errors.New("always fails")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, attempts)
}
