package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hupe1980/personamesh/core"
)

// personaRow mirrors the personas table. JSON columns stay serialized until
// conversion into a core.PersonaRecord.
type personaRow struct {
	ID               string    `db:"id"`
	ParticipantID    string    `db:"participant_id"`
	ResponseLanguage string    `db:"response_language"`
	HighLevelAIView  string    `db:"high_level_ai_view"`
	DemographicInfo  string    `db:"demographic_info"`
	SurveyResponses  string    `db:"survey_responses"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r *personaRow) record() (*core.PersonaRecord, error) {
	rec := &core.PersonaRecord{
		ID:               r.ID,
		ParticipantID:    r.ParticipantID,
		ResponseLanguage: r.ResponseLanguage,
		HighLevelAIView:  r.HighLevelAIView,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if r.DemographicInfo != "" {
		if err := json.Unmarshal([]byte(r.DemographicInfo), &rec.DemographicInfo); err != nil {
			return nil, fmt.Errorf("decode demographic_info for persona %s: %w", r.ID, err)
		}
	}
	if r.SurveyResponses != "" {
		if err := json.Unmarshal([]byte(r.SurveyResponses), &rec.SurveyResponses); err != nil {
			return nil, fmt.Errorf("decode survey_responses for persona %s: %w", r.ID, err)
		}
	}
	return rec, nil
}

func newPersonaRow(rec *core.PersonaRecord) (*personaRow, error) {
	demographic, err := json.Marshal(rec.DemographicInfo)
	if err != nil {
		return nil, fmt.Errorf("encode demographic_info for persona %s: %w", rec.ID, err)
	}
	survey, err := json.Marshal(rec.SurveyResponses)
	if err != nil {
		return nil, fmt.Errorf("encode survey_responses for persona %s: %w", rec.ID, err)
	}
	return &personaRow{
		ID:               rec.ID,
		ParticipantID:    rec.ParticipantID,
		ResponseLanguage: rec.ResponseLanguage,
		HighLevelAIView:  rec.HighLevelAIView,
		DemographicInfo:  string(demographic),
		SurveyResponses:  string(survey),
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}, nil
}

// sessionRow mirrors the sessions table.
type sessionRow struct {
	ID                   string    `db:"id"`
	PersonaID            string    `db:"persona_id"`
	NumGoals             int       `db:"num_goals"`
	MaxTurns             int       `db:"max_turns"`
	ConversationsPerGoal int       `db:"conversations_per_goal"`
	SessionData          string    `db:"session_data"`
	CreatedAt            time.Time `db:"created_at"`
}

func (r *sessionRow) record() (*core.SessionRecord, error) {
	rec := &core.SessionRecord{
		ID:                   r.ID,
		PersonaID:            r.PersonaID,
		NumGoals:             r.NumGoals,
		MaxTurns:             r.MaxTurns,
		ConversationsPerGoal: r.ConversationsPerGoal,
		CreatedAt:            r.CreatedAt,
	}
	if r.SessionData != "" {
		if err := json.Unmarshal([]byte(r.SessionData), &rec.Result); err != nil {
			return nil, fmt.Errorf("decode session_data for session %s: %w", r.ID, err)
		}
	}
	return rec, nil
}
