// Package evaluation derives aggregate outcomes from finished session
// results: how many conversations ran, how many reached their goal, and how
// many turns they took to get there.
package evaluation

import (
	"sort"

	"github.com/hupe1980/personamesh/core"
	"github.com/hupe1980/personamesh/engine"
)

// Summary aggregates the conversations of one session result.
type Summary struct {
	Goals         int `json:"goals"`
	Conversations int `json:"conversations"`
	Achieved      int `json:"achieved"`
	TotalTurns    int `json:"total_turns"`
}

// AchievementRate returns the fraction of conversations that reached their
// goal, or 0 when no conversations ran.
func (s Summary) AchievementRate() float64 {
	if s.Conversations == 0 {
		return 0
	}
	return float64(s.Achieved) / float64(s.Conversations)
}

// Summarize walks every conversation in the result and counts the ones whose
// persona signalled goal achievement. The extractor decides what counts as a
// signal; a nil extractor uses the default flag key.
func Summarize(result core.SessionResult, extractor engine.SignalExtractor) Summary {
	if extractor == nil {
		extractor = engine.NewFlagExtractor("")
	}

	var sum Summary
	for _, convs := range result {
		sum.Goals++
		for _, conv := range convs {
			sum.Conversations++
			sum.TotalTurns += len(conv.Turns)
			if conversationAchieved(conv, extractor) {
				sum.Achieved++
			}
		}
	}
	return sum
}

// GoalOutcome counts the conversations of a single goal.
type GoalOutcome struct {
	Key      string `json:"key"`
	Goal     string `json:"goal"`
	Achieved int    `json:"achieved"`
	Total    int    `json:"total"`
}

// GoalOutcomes returns per-goal achieved/total counts keyed by the result's
// goal keys, in sorted key order.
func GoalOutcomes(result core.SessionResult, extractor engine.SignalExtractor) []GoalOutcome {
	if extractor == nil {
		extractor = engine.NewFlagExtractor("")
	}

	keys := make([]string, 0, len(result))
	for k := range result {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	outcomes := make([]GoalOutcome, 0, len(keys))
	for _, k := range keys {
		out := GoalOutcome{Key: k}
		for _, conv := range result[k] {
			out.Goal = conv.Goal
			out.Total++
			if conversationAchieved(conv, extractor) {
				out.Achieved++
			}
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

func conversationAchieved(conv *core.Conversation, extractor engine.SignalExtractor) bool {
	for _, t := range conv.Turns {
		if t.Role != core.RoleUser {
			continue
		}
		if achieved, found := extractor.Extract(t.Content); found && achieved {
			return true
		}
	}
	return false
}
