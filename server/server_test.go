package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/personamesh/batch"
	"github.com/hupe1980/personamesh/core"
	"github.com/hupe1980/personamesh/persona"
	"github.com/hupe1980/personamesh/session"
	"github.com/hupe1980/personamesh/store"
)

// stubRunner returns a one-conversation result for every persona.
type stubRunner struct {
	err error
}

func (r *stubRunner) Run(_ context.Context, rec *core.PersonaRecord, _ session.Params) (core.SessionResult, error) {
	if r.err != nil {
		return nil, r.err
	}
	conv := core.NewConversation("c-"+rec.ID, "goal for "+rec.ID)
	conv.AddTurn("persona", core.RoleUser, "seed")
	conv.AddTurn("sut", core.RoleAssistant, "reply")
	return core.SessionResult{"goal_1": {conv}}, nil
}

type testEnv struct {
	server *httptest.Server
	store  *store.Memory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := store.NewMemory()
	provider := persona.NewStoreProvider(mem)
	runner := &stubRunner{}
	scheduler := batch.NewScheduler(runner, provider, mem)

	srv := New(runner, scheduler, provider, mem)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, store: mem}
}

func (e *testEnv) seedPersona(t *testing.T, id string) {
	t.Helper()
	_, err := e.store.PutPersona(context.Background(), &core.PersonaRecord{ID: id, ParticipantID: id})
	require.NoError(t, err)
}

func doJSON[T any](t *testing.T, ts *httptest.Server, method, path, body string, wantStatus int) T {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, wantStatus, resp.StatusCode)

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	out := doJSON[map[string]string](t, env.server, http.MethodGet, "/api/health", "", http.StatusOK)
	assert.Equal(t, "ok", out["status"])
}

func TestRunSessionEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedPersona(t, "p-1")

	body := `{"persona_id": "p-1", "num_goals": 1, "max_turns": 5, "conversations_per_goal": 1, "target_agent_config": "target_agent"}`
	out := doJSON[runSessionResponse](t, env.server, http.MethodPost, "/api/sessions/run", body, http.StatusOK)

	assert.NotEmpty(t, out.SessionID)
	assert.Equal(t, "p-1", out.PersonaID)
	require.Contains(t, out.Result, "goal_1")

	// The record was persisted.
	stored, err := env.store.GetSession(context.Background(), out.SessionID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "p-1", stored.PersonaID)
}

func TestRunSessionUnknownPersona(t *testing.T) {
	env := newTestEnv(t)
	out := doJSON[map[string]string](t, env.server, http.MethodPost, "/api/sessions/run",
		`{"persona_id": "ghost"}`, http.StatusNotFound)
	assert.Contains(t, out["error"], "persona not found")
}

func TestRunSessionBadBody(t *testing.T) {
	env := newTestEnv(t)
	doJSON[map[string]string](t, env.server, http.MethodPost, "/api/sessions/run", "{garbage", http.StatusBadRequest)
}

func TestBatchLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.seedPersona(t, "p-1")
	env.seedPersona(t, "p-2")

	body := `{"persona_ids": ["p-1", "p-2"], "num_goals": 1, "conversations_per_goal": 1, "target_agent_config": "target_agent"}`
	out := doJSON[map[string]string](t, env.server, http.MethodPost, "/api/batches", body, http.StatusAccepted)
	batchID := out["batch_id"]
	require.NotEmpty(t, batchID)

	require.Eventually(t, func() bool {
		snap := doJSON[core.BatchSnapshot](t, env.server, http.MethodGet, "/api/batches/"+batchID, "", http.StatusOK)
		return snap.OverallStatus == core.BatchCompleted
	}, 5*time.Second, 10*time.Millisecond)

	snap := doJSON[core.BatchSnapshot](t, env.server, http.MethodGet, "/api/batches/"+batchID, "", http.StatusOK)
	assert.Equal(t, 2, snap.Completed)
	assert.Len(t, snap.PersonaStatuses, 2)

	doJSON[map[string]string](t, env.server, http.MethodDelete, "/api/batches/"+batchID, "", http.StatusOK)
	doJSON[map[string]string](t, env.server, http.MethodGet, "/api/batches/"+batchID, "", http.StatusNotFound)
}

func TestSubmitBatchValidation(t *testing.T) {
	env := newTestEnv(t)
	out := doJSON[map[string]string](t, env.server, http.MethodPost, "/api/batches",
		`{"persona_ids": [], "target_agent_config": "t"}`, http.StatusBadRequest)
	assert.NotEmpty(t, out["error"])
}

func TestPersonaEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.seedPersona(t, "p-1")

	list := doJSON[[]*core.PersonaRecord](t, env.server, http.MethodGet, "/api/personas", "", http.StatusOK)
	require.Len(t, list, 1)
	assert.Equal(t, "p-1", list[0].ID)

	got := doJSON[*core.PersonaRecord](t, env.server, http.MethodGet, "/api/personas/p-1", "", http.StatusOK)
	assert.Equal(t, "p-1", got.ID)

	doJSON[map[string]string](t, env.server, http.MethodGet, "/api/personas/ghost", "", http.StatusNotFound)
}

func TestLoadPersonasEndpoint(t *testing.T) {
	env := newTestEnv(t)

	dir := t.TempDir()
	for i := 1; i <= 2; i++ {
		path := filepath.Join(dir, fmt.Sprintf("p%d.json", i))
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(`{"participant_id": "p-%d"}`, i)), 0o644))
	}

	body := fmt.Sprintf(`{"directory": %q}`, dir)
	out := doJSON[map[string]int](t, env.server, http.MethodPost, "/api/personas/load", body, http.StatusOK)
	assert.Equal(t, 2, out["loaded"])
	assert.Equal(t, 0, out["skipped"])

	out = doJSON[map[string]int](t, env.server, http.MethodPost, "/api/personas/load", body, http.StatusOK)
	assert.Equal(t, 2, out["skipped"])
}

func TestSessionEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.seedPersona(t, "p-1")

	run := doJSON[runSessionResponse](t, env.server, http.MethodPost, "/api/sessions/run",
		`{"persona_id": "p-1", "num_goals": 1, "conversations_per_goal": 1, "target_agent_config": "t"}`, http.StatusOK)

	list := doJSON[[]*core.SessionRecord](t, env.server, http.MethodGet, "/api/sessions", "", http.StatusOK)
	require.Len(t, list, 1)

	filtered := doJSON[[]*core.SessionRecord](t, env.server, http.MethodGet, "/api/sessions?persona_id=p-1", "", http.StatusOK)
	require.Len(t, filtered, 1)

	none := doJSON[[]*core.SessionRecord](t, env.server, http.MethodGet, "/api/sessions?persona_id=other", "", http.StatusOK)
	assert.Empty(t, none)

	got := doJSON[*core.SessionRecord](t, env.server, http.MethodGet, "/api/sessions/"+run.SessionID, "", http.StatusOK)
	assert.Equal(t, "p-1", got.PersonaID)
	require.Contains(t, got.Result, "goal_1")

	doJSON[map[string]string](t, env.server, http.MethodGet, "/api/sessions/ghost", "", http.StatusNotFound)
}
