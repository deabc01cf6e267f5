package store

import (
	"context"

	"github.com/hupe1980/personamesh/core"
)

// Store is the persistence surface consumed by the persona provider, the
// batch scheduler and the HTTP API. Lookup methods return (nil, nil) when the
// row does not exist; callers decide whether absence is an error.
type Store interface {
	// GetPersona returns the persona with the given id, or nil if absent.
	GetPersona(ctx context.Context, id string) (*core.PersonaRecord, error)
	// ListPersonas returns all stored personas ordered by id.
	ListPersonas(ctx context.Context) ([]*core.PersonaRecord, error)
	// PutPersona inserts a persona unless its id already exists. Returns
	// true when a row was inserted.
	PutPersona(ctx context.Context, rec *core.PersonaRecord) (bool, error)

	// SaveSessions writes all records in a single transaction.
	SaveSessions(ctx context.Context, records []*core.SessionRecord) error
	// GetSession returns the session with the given id, or nil if absent.
	GetSession(ctx context.Context, id string) (*core.SessionRecord, error)
	// ListSessions returns stored sessions, newest first. An empty
	// personaID lists all sessions.
	ListSessions(ctx context.Context, personaID string) ([]*core.SessionRecord, error)

	Close() error
}
