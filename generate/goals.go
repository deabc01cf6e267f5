package generate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/personamesh/config"
	"github.com/hupe1980/personamesh/core"
	"github.com/hupe1980/personamesh/internal/util"
	"github.com/hupe1980/personamesh/logging"
	"github.com/hupe1980/personamesh/model"
)

// GoalGeneratorOptions configure a GoalGenerator.
type GoalGeneratorOptions struct {
	Logger logging.Logger
}

// GoalGenerator derives the list of conversational test goals for a persona.
// The model is instructed through the goal generator config document's
// templates and must answer with a JSON object of the shape
// {"goals": ["...", ...]}.
type GoalGenerator struct {
	model  model.Model
	cfg    *config.Config
	policy Policy
	logger logging.Logger
}

// NewGoalGenerator constructs a GoalGenerator from a goal generator config
// document and the model it should drive.
func NewGoalGenerator(m model.Model, cfg *config.Config, optFns ...func(o *GoalGeneratorOptions)) *GoalGenerator {
	opts := GoalGeneratorOptions{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &GoalGenerator{
		model:  m,
		cfg:    cfg,
		policy: PolicyFromConfig(cfg.Retry(config.StageGoalGeneration)),
		logger: opts.Logger,
	}
}

// Generate produces numGoals goals for the persona described by vars. The
// vars map carries the persona template variables plus agent_sys_prompt; the
// requested count is exposed to the system prompt template as num_goals.
// Exhausted retries surface as a *GenerationError.
func (g *GoalGenerator) Generate(ctx context.Context, vars map[string]string, numGoals int) ([]string, error) {
	sysVars := make(map[string]string, len(vars)+1)
	for k, v := range vars {
		sysVars[k] = v
	}
	sysVars["num_goals"] = strconv.Itoa(numGoals)

	systemPrompt, err := util.Substitute(g.cfg.Templates.SystemPrompt, sysVars)
	if err != nil {
		return nil, fmt.Errorf("render goal generator system prompt: %w", err)
	}
	userPrompt, err := util.Substitute(g.cfg.Templates.UserPrompt, sysVars)
	if err != nil {
		return nil, fmt.Errorf("render goal generator user prompt: %w", err)
	}

	goals, attempts, err := withRetry(ctx, g.policy, func(ctx context.Context) ([]string, error) {
		text, err := g.model.Invoke(ctx, model.Request{
			SystemPrompt: systemPrompt,
			Messages:     []core.Message{{Role: core.RoleUser, Content: userPrompt}},
		})
		if err != nil {
			return nil, err
		}
		return parseGoals(text)
	})
	if err != nil {
		g.logger.Error("goal generation failed", "attempts", attempts, "error", err)
		return nil, &GenerationError{Stage: config.StageGoalGeneration, Attempts: attempts, Err: err}
	}

	g.logger.Debug("goals generated", "count", len(goals), "attempts", attempts)

	return goals, nil
}

// parseGoals extracts the goals array from free-form model output.
func parseGoals(text string) ([]string, error) {
	raw, err := ExtractJSONObject(text)
	if err != nil {
		return nil, err
	}
	result := gjson.Get(raw, "goals")
	if !result.IsArray() {
		return nil, fmt.Errorf("model output missing goals array")
	}
	var goals []string
	for _, g := range result.Array() {
		if g.Type != gjson.String || g.String() == "" {
			continue
		}
		goals = append(goals, g.String())
	}
	if len(goals) == 0 {
		return nil, fmt.Errorf("model returned an empty goals list")
	}
	return goals, nil
}
