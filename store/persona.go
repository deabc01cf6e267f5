package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"

	"github.com/hupe1980/personamesh/core"
)

const personaColumns = `id, participant_id, response_language, high_level_ai_view, demographic_info, survey_responses, created_at, updated_at`

// GetPersonaByID retrieves a persona by its ID. Returns nil when absent.
func GetPersonaByID(ctx context.Context, db sqlscan.Querier, id string) (*core.PersonaRecord, error) {
	query := `SELECT ` + personaColumns + ` FROM personas WHERE id = ?`
	var row personaRow
	if err := sqlscan.Get(ctx, db, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.record()
}

// ListPersonas retrieves all personas ordered by id.
func ListPersonas(ctx context.Context, db sqlscan.Querier) ([]*core.PersonaRecord, error) {
	query := `SELECT ` + personaColumns + ` FROM personas ORDER BY id`
	var rows []*personaRow
	if err := sqlscan.Select(ctx, db, &rows, query); err != nil {
		return nil, err
	}
	records := make([]*core.PersonaRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// InsertPersona inserts a persona unless its id already exists. Returns true
// when a row was inserted, false when the id was already present.
func InsertPersona(ctx context.Context, db Execer, rec *core.PersonaRecord) (bool, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	row, err := newPersonaRow(rec)
	if err != nil {
		return false, err
	}
	query := `INSERT OR IGNORE INTO personas (` + personaColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := db.ExecContext(ctx, query,
		row.ID, row.ParticipantID, row.ResponseLanguage, row.HighLevelAIView,
		row.DemographicInfo, row.SurveyResponses, row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
