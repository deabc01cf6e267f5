package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/hupe1980/personamesh/evaluation"
	"github.com/hupe1980/personamesh/session"
)

// RunCmd runs a single persona session and prints the result as JSON.
type RunCmd struct {
	PersonaID            string `arg:"" help:"Persona id to test"`
	TargetAgentConfig    string `default:"target_agent" help:"Config document of the system under test"`
	NumGoals             int    `default:"2" help:"Number of goals to generate"`
	MaxTurns             int    `default:"10" help:"Turn budget per conversation"`
	ConversationsPerGoal int    `default:"1" help:"Replica conversations per goal"`
}

// Run implements the run command.
func (c *RunCmd) Run(cli *CLI) error {
	harness, cleanup, err := buildHarness(cli, 0)
	if err != nil {
		return err
	}
	defer cleanup()

	result, sessionID, err := harness.RunSession(context.Background(), c.PersonaID, session.Params{
		NumGoals:             c.NumGoals,
		MaxTurns:             c.MaxTurns,
		ConversationsPerGoal: c.ConversationsPerGoal,
		TargetAgentConfig:    c.TargetAgentConfig,
	})
	if err != nil {
		return fmt.Errorf("session failed: %w", err)
	}

	if sessionID != "" {
		fmt.Fprintf(os.Stderr, "session %s stored\n", sessionID)
	}

	sum := evaluation.Summarize(result, nil)
	fmt.Fprintf(os.Stderr, "%d/%d conversations reached their goal (%.0f%%), %d turns total\n",
		sum.Achieved, sum.Conversations, sum.AchievementRate()*100, sum.TotalTurns)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
