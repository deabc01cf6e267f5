package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/personamesh/core"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func samplePersona(id string) *core.PersonaRecord {
	return &core.PersonaRecord{
		ID:               id,
		ParticipantID:    "participant-" + id,
		ResponseLanguage: "en",
		HighLevelAIView:  "cautiously optimistic",
		DemographicInfo: map[string]any{
			"age_bracket": "25-34",
			"gender":      "female",
		},
		SurveyResponses: map[string]string{
			"q1": "agree",
		},
	}
}

func testStores(t *testing.T) map[string]Store {
	return map[string]Store{
		"sqlite": openTestDB(t),
		"memory": NewMemory(),
	}
}

func TestPersonaRoundTrip(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			created, err := s.PutPersona(ctx, samplePersona("p-1"))
			require.NoError(t, err)
			assert.True(t, created)

			// Existing ids are skipped, not overwritten.
			created, err = s.PutPersona(ctx, samplePersona("p-1"))
			require.NoError(t, err)
			assert.False(t, created)

			got, err := s.GetPersona(ctx, "p-1")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "participant-p-1", got.ParticipantID)
			assert.Equal(t, "25-34", got.DemographicInfo["age_bracket"])
			assert.Equal(t, "agree", got.SurveyResponses["q1"])
			assert.False(t, got.CreatedAt.IsZero())
		})
	}
}

func TestGetPersonaAbsent(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := s.GetPersona(context.Background(), "nope")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestListPersonasOrdered(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, id := range []string{"p-2", "p-1", "p-3"} {
				_, err := s.PutPersona(ctx, samplePersona(id))
				require.NoError(t, err)
			}

			records, err := s.ListPersonas(ctx)
			require.NoError(t, err)
			require.Len(t, records, 3)
			assert.Equal(t, "p-1", records[0].ID)
			assert.Equal(t, "p-3", records[2].ID)
		})
	}
}

func TestSaveSessionsBulk(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			conv := core.NewConversation("conv-1", "pressure test for bias")
			conv.AddTurn("persona", core.RoleUser, "seed")
			conv.AddTurn("sut", core.RoleAssistant, "reply")

			records := []*core.SessionRecord{
				{
					PersonaID:            "p-1",
					NumGoals:             1,
					MaxTurns:             5,
					ConversationsPerGoal: 1,
					Result:               core.SessionResult{"goal_1": {conv}},
				},
				{
					PersonaID: "p-2",
					NumGoals:  1,
					MaxTurns:  5,
				},
			}
			require.NoError(t, s.SaveSessions(ctx, records))

			// Ids are assigned during the bulk write.
			assert.NotEmpty(t, records[0].ID)
			assert.NotEmpty(t, records[1].ID)

			got, err := s.GetSession(ctx, records[0].ID)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "p-1", got.PersonaID)
			require.Contains(t, got.Result, "goal_1")
			require.Len(t, got.Result["goal_1"], 1)
			assert.Equal(t, "pressure test for bias", got.Result["goal_1"][0].Goal)
			assert.Len(t, got.Result["goal_1"][0].Turns, 2)

			all, err := s.ListSessions(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 2)

			filtered, err := s.ListSessions(ctx, "p-2")
			require.NoError(t, err)
			require.Len(t, filtered, 1)
			assert.Equal(t, "p-2", filtered[0].PersonaID)
		})
	}
}

func TestSaveSessionsEmpty(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveSessions(context.Background(), nil))
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(path)
	require.NoError(t, err)
	_, err = db.PutPersona(context.Background(), samplePersona("p-1"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopening applies no pending migrations and keeps existing data.
	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	got, err := db.GetPersona(context.Background(), "p-1")
	require.NoError(t, err)
	require.NotNil(t, got)
}
