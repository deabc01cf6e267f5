package core

import "time"

// SessionRecord is the persisted outcome of one persona session: the
// parameters it ran with and the full result map. Records are buffered during
// batch execution and written in one bulk call once every persona finishes.
type SessionRecord struct {
	ID                   string        `json:"id"`
	PersonaID            string        `json:"persona_id"`
	NumGoals             int           `json:"num_goals"`
	MaxTurns             int           `json:"max_turns"`
	ConversationsPerGoal int           `json:"conversations_per_goal"`
	Result               SessionResult `json:"session_data"`
	CreatedAt            time.Time     `json:"created_at"`
}
