package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"

	"github.com/hupe1980/personamesh/core"
)

const sessionColumns = `id, persona_id, num_goals, max_turns, conversations_per_goal, session_data, created_at`

// GetSessionByID retrieves a session record by its ID. Returns nil when
// absent.
func GetSessionByID(ctx context.Context, db sqlscan.Querier, id string) (*core.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`
	var row sessionRow
	if err := sqlscan.Get(ctx, db, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.record()
}

// ListSessions retrieves session records newest first, optionally filtered by
// persona.
func ListSessions(ctx context.Context, db sqlscan.Querier, personaID string) ([]*core.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY created_at DESC`
	args := []any{}
	if personaID != "" {
		query = `SELECT ` + sessionColumns + ` FROM sessions WHERE persona_id = ? ORDER BY created_at DESC`
		args = append(args, personaID)
	}
	var rows []*sessionRow
	if err := sqlscan.Select(ctx, db, &rows, query, args...); err != nil {
		return nil, err
	}
	records := make([]*core.SessionRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// CreateSession inserts a session record, assigning an id and timestamp when
// missing.
func CreateSession(ctx context.Context, db Execer, rec *core.SessionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	data, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("encode session_data: %w", err)
	}

	query := `INSERT INTO sessions (` + sessionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = db.ExecContext(ctx, query,
		rec.ID, rec.PersonaID, rec.NumGoals, rec.MaxTurns,
		rec.ConversationsPerGoal, string(data), rec.CreatedAt,
	)
	return err
}
