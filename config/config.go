// Package config loads the named YAML configuration documents that
// parameterize the agents of a testing session: prompt templates with
// $variable placeholders, the model settings for the hosted LLM client and
// the retry policy per generation stage.
package config

import (
	"fmt"
	"time"
)

// Default retry policy values applied when a stage has no explicit entry.
const (
	DefaultMaxAttempts    = 3
	DefaultBackoffSeconds = 2
	DefaultTimeoutSeconds = 30
)

// Well-known retry stage names.
const (
	StageGoalGeneration       = "goal_generation"
	StageSeedPromptGeneration = "seed_prompt_generation"
)

// Config is one named agent configuration document.
type Config struct {
	Templates Templates        `koanf:"templates"`
	LLM       LLM              `koanf:"llm" validate:"required"`
	Signal    Signal           `koanf:"signal"`
	Retries   map[string]Retry `koanf:"retries" validate:"dive"`
}

// Templates holds the prompt templates of a config document. Which fields
// are populated depends on the agent kind: target agents and goal generators
// carry system_prompt/user_prompt, tester agents carry the role/task, job
// description and target goal templates.
type Templates struct {
	SystemPrompt         string `koanf:"system_prompt"`
	UserPrompt           string `koanf:"user_prompt"`
	RoleAndTaskPrompt    string `koanf:"role_and_task_prompt"`
	JobDescriptionPrompt string `koanf:"job_description_prompt"`
	TargetGoal           string `koanf:"target_goal"`
}

// LLM identifies the hosted model an agent runs on.
type LLM struct {
	Provider string `koanf:"provider" validate:"omitempty,oneof=openai anthropic"`
	Model    string `koanf:"model" validate:"required"`
	BaseURL  string `koanf:"base_url" validate:"omitempty,url"`
	Params   Params `koanf:"params"`
}

// Params are the completion parameters forwarded to the model client.
type Params struct {
	Temperature         float64 `koanf:"temperature" validate:"gte=0,lte=2"`
	MaxCompletionTokens int64   `koanf:"max_completion_tokens" validate:"gte=0"`
}

// Signal configures termination signal detection for conversations driven by
// this agent. The flag key is configurable because historical configs used
// both goal_achieved and untrustworthy_behavior.
type Signal struct {
	FlagKey string `koanf:"flag_key"`
}

// Retry is the per-stage retry policy carried in a config document. The
// timeout is handed to the model client; the orchestration core does not
// enforce it.
type Retry struct {
	MaxAttempts    int     `koanf:"max_attempts" validate:"gte=1"`
	BackoffSeconds float64 `koanf:"backoff_seconds" validate:"gte=0"`
	TimeoutSeconds float64 `koanf:"timeout_seconds" validate:"gte=0"`
}

// Backoff returns the initial backoff as a duration.
func (r Retry) Backoff() time.Duration {
	return time.Duration(r.BackoffSeconds * float64(time.Second))
}

// Timeout returns the per-attempt timeout as a duration.
func (r Retry) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds * float64(time.Second))
}

// Retry returns the retry policy for a stage, falling back to defaults for
// missing entries or fields.
func (c *Config) Retry(stage string) Retry {
	r := Retry{
		MaxAttempts:    DefaultMaxAttempts,
		BackoffSeconds: DefaultBackoffSeconds,
		TimeoutSeconds: DefaultTimeoutSeconds,
	}
	if c.Retries == nil {
		return r
	}
	cfg, ok := c.Retries[stage]
	if !ok {
		return r
	}
	if cfg.MaxAttempts > 0 {
		r.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BackoffSeconds > 0 {
		r.BackoffSeconds = cfg.BackoffSeconds
	}
	if cfg.TimeoutSeconds > 0 {
		r.TimeoutSeconds = cfg.TimeoutSeconds
	}
	return r
}

// ConfigError marks a missing or invalid configuration document. It is fatal
// for the operation that triggered the load.
type ConfigError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ConfigError) Unwrap() error { return e.Err }
