package generate

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/personamesh/config"
	"github.com/hupe1980/personamesh/core"
	"github.com/hupe1980/personamesh/internal/util"
	"github.com/hupe1980/personamesh/logging"
	"github.com/hupe1980/personamesh/model"
)

// SeedPromptGeneratorOptions configure a SeedPromptGenerator.
type SeedPromptGeneratorOptions struct {
	Logger logging.Logger
}

// SeedPromptGenerator produces the persona's opening message for one goal.
// Its system prompt is the persona role-and-task template joined with the
// job description template; the model must answer with a JSON object of the
// shape {"seed_prompt": "..."}.
type SeedPromptGenerator struct {
	model  model.Model
	cfg    *config.Config
	policy Policy
	logger logging.Logger
}

// NewSeedPromptGenerator constructs a SeedPromptGenerator from the tester
// config document and the model it should drive.
func NewSeedPromptGenerator(m model.Model, cfg *config.Config, optFns ...func(o *SeedPromptGeneratorOptions)) *SeedPromptGenerator {
	opts := SeedPromptGeneratorOptions{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &SeedPromptGenerator{
		model:  m,
		cfg:    cfg,
		policy: PolicyFromConfig(cfg.Retry(config.StageSeedPromptGeneration)),
		logger: opts.Logger,
	}
}

// Generate produces the seed prompt opening a conversation about goal. The
// vars map carries the persona template variables; the goal is exposed to the
// user prompt template as goal. Exhausted retries surface as a
// *GenerationError.
func (g *SeedPromptGenerator) Generate(ctx context.Context, vars map[string]string, goal string) (string, error) {
	roleAndTask, err := util.Substitute(g.cfg.Templates.RoleAndTaskPrompt, vars)
	if err != nil {
		return "", fmt.Errorf("render role and task prompt: %w", err)
	}
	jobDescription, err := util.Substitute(g.cfg.Templates.JobDescriptionPrompt, vars)
	if err != nil {
		return "", fmt.Errorf("render job description prompt: %w", err)
	}
	systemPrompt := roleAndTask + "\n\n" + jobDescription

	userVars := make(map[string]string, len(vars)+1)
	for k, v := range vars {
		userVars[k] = v
	}
	userVars["goal"] = goal

	userPrompt, err := util.Substitute(g.cfg.Templates.UserPrompt, userVars)
	if err != nil {
		return "", fmt.Errorf("render seed user prompt: %w", err)
	}

	seed, attempts, err := withRetry(ctx, g.policy, func(ctx context.Context) (string, error) {
		text, err := g.model.Invoke(ctx, model.Request{
			SystemPrompt: systemPrompt,
			Messages:     []core.Message{{Role: core.RoleUser, Content: userPrompt}},
		})
		if err != nil {
			return "", err
		}
		return parseSeedPrompt(text)
	})
	if err != nil {
		g.logger.Error("seed prompt generation failed", "goal", goal, "attempts", attempts, "error", err)
		return "", &GenerationError{Stage: config.StageSeedPromptGeneration, Attempts: attempts, Err: err}
	}

	g.logger.Debug("seed prompt generated", "goal", goal, "attempts", attempts)

	return seed, nil
}

// parseSeedPrompt extracts the seed_prompt field from free-form model output.
func parseSeedPrompt(text string) (string, error) {
	raw, err := ExtractJSONObject(text)
	if err != nil {
		return "", err
	}
	result := gjson.Get(raw, "seed_prompt")
	if result.Type != gjson.String || result.String() == "" {
		return "", fmt.Errorf("model output missing seed_prompt")
	}
	return result.String(), nil
}
