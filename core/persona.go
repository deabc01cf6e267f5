package core

import (
	"encoding/json"
	"time"
)

// PersonaRecord is a simulated user profile used to parameterize prompts.
// DemographicInfo and SurveyResponses are opaque to the orchestration core;
// they only feed template substitution.
type PersonaRecord struct {
	ID               string            `json:"id"`
	ParticipantID    string            `json:"participant_id"`
	ResponseLanguage string            `json:"response_language"`
	HighLevelAIView  string            `json:"high_level_AI_view"`
	DemographicInfo  map[string]any    `json:"demographic_info"`
	SurveyResponses  map[string]string `json:"survey_responses"`
	CreatedAt        time.Time         `json:"created_at,omitempty"`
	UpdatedAt        time.Time         `json:"updated_at,omitempty"`
}

// TemplateVars flattens the record into the variable map consumed by prompt
// templates. The returned map is a fresh copy; callers may extend it (e.g.
// with agent_sys_prompt) without mutating the record.
func (p *PersonaRecord) TemplateVars() map[string]string {
	vars := map[string]string{
		"age_bracket":        p.demographic("age bracket"),
		"gender":             p.demographic("gender"),
		"religion":           p.demographic("religion"),
		"country":            p.demographic("self identified country"),
		"community_type":     p.demographic("community type"),
		"preferred_language": p.demographic("preferred language"),
		"high_level_AI_view": p.HighLevelAIView,
		"participant_id":     p.ParticipantID,
		"response_language":  p.ResponseLanguage,
	}

	if p.SurveyResponses != nil {
		if b, err := json.MarshalIndent(p.SurveyResponses, "", "    "); err == nil {
			vars["survey_responses"] = string(b)
		}
	}

	return vars
}

// demographic returns the stringified demographic value for key, or "" if
// the key is absent.
func (p *PersonaRecord) demographic(key string) string {
	v, ok := p.DemographicInfo[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
