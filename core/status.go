package core

import (
	"sync"
	"time"
)

// PersonaState enumerates the per-persona pipeline states within a batch.
type PersonaState string

const (
	PersonaPending   PersonaState = "pending"
	PersonaRunning   PersonaState = "running"
	PersonaCompleted PersonaState = "completed"
	PersonaFailed    PersonaState = "failed"
)

// Terminal reports whether the state is a terminal state.
func (s PersonaState) Terminal() bool {
	return s == PersonaCompleted || s == PersonaFailed
}

// BatchState enumerates overall batch states.
type BatchState string

const (
	BatchPending            BatchState = "pending"
	BatchRunning            BatchState = "running"
	BatchCompleted          BatchState = "completed"
	BatchFailed             BatchState = "failed"
	BatchPartiallyCompleted BatchState = "partially_completed"
)

// PersonaStatus tracks one persona's progress through a batch. It is created
// at batch submission, mutated only by the pipeline running that persona and
// read by status-polling callers. Progress never decreases within a run.
type PersonaStatus struct {
	PersonaID   string       `json:"persona_id"`
	State       PersonaState `json:"status"`
	Progress    int          `json:"progress"`
	Message     string       `json:"message"`
	SessionID   string       `json:"session_id,omitempty"`
	Error       string       `json:"error,omitempty"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// BatchJob tracks a submitted batch and its per-persona statuses. All
// mutating and reading methods are safe for concurrent use; Snapshot returns
// deep copies so pollers never observe partial writes.
type BatchJob struct {
	ID        string
	CreatedAt time.Time

	mu          sync.RWMutex
	state       BatchState
	completedAt *time.Time
	statuses    map[string]*PersonaStatus
	order       []string
}

// NewBatchJob creates a batch job with one pending PersonaStatus per id,
// preserving submission order for snapshots.
func NewBatchJob(id string, personaIDs []string) *BatchJob {
	statuses := make(map[string]*PersonaStatus, len(personaIDs))
	order := make([]string, 0, len(personaIDs))
	for _, pid := range personaIDs {
		if _, ok := statuses[pid]; ok {
			continue
		}
		statuses[pid] = &PersonaStatus{
			PersonaID: pid,
			State:     PersonaPending,
			Message:   "Waiting to start",
		}
		order = append(order, pid)
	}
	return &BatchJob{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		state:     BatchPending,
		statuses:  statuses,
		order:     order,
	}
}

// MarkRunning transitions a persona to running and stamps its start time.
// The batch itself moves to running on the first persona start.
func (b *BatchJob) MarkRunning(personaID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.statuses[personaID]
	if !ok {
		return
	}
	now := time.Now().UTC()
	st.State = PersonaRunning
	st.StartedAt = &now
	st.Message = "Session starting"
	if b.state == BatchPending {
		b.state = BatchRunning
	}
}

// UpdateProgress records a progress checkpoint for a running persona.
// Progress is clamped to [0,100] and never moves backwards.
func (b *BatchJob) UpdateProgress(personaID, message string, progress int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.statuses[personaID]
	if !ok || st.State.Terminal() {
		return
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	if progress > st.Progress {
		st.Progress = progress
	}
	if message != "" {
		st.Message = message
	}
}

// MarkCompleted transitions a persona to completed with full progress.
func (b *BatchJob) MarkCompleted(personaID, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.statuses[personaID]
	if !ok {
		return
	}
	now := time.Now().UTC()
	st.State = PersonaCompleted
	st.Progress = 100
	st.Message = message
	st.CompletedAt = &now
}

// MarkFailed transitions a persona to failed, resetting progress and
// recording the error string.
func (b *BatchJob) MarkFailed(personaID, errMsg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.statuses[personaID]
	if !ok {
		return
	}
	now := time.Now().UTC()
	st.State = PersonaFailed
	st.Progress = 0
	st.Message = "Session failed"
	st.Error = errMsg
	st.CompletedAt = &now
}

// SetSessionID back-fills the persisted session identifier for a persona.
func (b *BatchJob) SetSessionID(personaID, sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok := b.statuses[personaID]; ok {
		st.SessionID = sessionID
	}
}

// Finalize computes the overall batch state once every persona has reached a
// terminal state: failed only if zero personas completed, completed only if
// none failed, partially_completed otherwise.
func (b *BatchJob) Finalize() BatchState {
	b.mu.Lock()
	defer b.mu.Unlock()

	completed, failed := 0, 0
	for _, st := range b.statuses {
		switch st.State {
		case PersonaCompleted:
			completed++
		case PersonaFailed:
			failed++
		}
	}

	switch {
	case failed == 0:
		b.state = BatchCompleted
	case completed == 0:
		b.state = BatchFailed
	default:
		b.state = BatchPartiallyCompleted
	}

	now := time.Now().UTC()
	b.completedAt = &now
	return b.state
}

// BatchSnapshot is an immutable point-in-time view of a batch job.
type BatchSnapshot struct {
	BatchID         string          `json:"batch_id"`
	OverallStatus   BatchState      `json:"overall_status"`
	TotalPersonas   int             `json:"total_personas"`
	Completed       int             `json:"completed"`
	Failed          int             `json:"failed"`
	Running         int             `json:"running"`
	Pending         int             `json:"pending"`
	CreatedAt       time.Time       `json:"created_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	PersonaStatuses []PersonaStatus `json:"persona_statuses"`
}

// Snapshot returns a deep copy of the batch state. Repeated calls with no
// intervening mutation return identical snapshots.
func (b *BatchJob) Snapshot() BatchSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := BatchSnapshot{
		BatchID:         b.ID,
		OverallStatus:   b.state,
		TotalPersonas:   len(b.order),
		CreatedAt:       b.CreatedAt,
		PersonaStatuses: make([]PersonaStatus, 0, len(b.order)),
	}
	if b.completedAt != nil {
		t := *b.completedAt
		snap.CompletedAt = &t
	}

	for _, pid := range b.order {
		st := *b.statuses[pid]
		if st.StartedAt != nil {
			t := *st.StartedAt
			st.StartedAt = &t
		}
		if st.CompletedAt != nil {
			t := *st.CompletedAt
			st.CompletedAt = &t
		}
		snap.PersonaStatuses = append(snap.PersonaStatuses, st)

		switch st.State {
		case PersonaCompleted:
			snap.Completed++
		case PersonaFailed:
			snap.Failed++
		case PersonaRunning:
			snap.Running++
		default:
			snap.Pending++
		}
	}
	return snap
}

// RunningCount returns how many personas are currently in the running state.
func (b *BatchJob) RunningCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, st := range b.statuses {
		if st.State == PersonaRunning {
			n++
		}
	}
	return n
}
