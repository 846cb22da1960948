package httpapi

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/r3e-network/flowengine/internal/persistence"
	"github.com/r3e-network/flowengine/pkg/gml/value"
)

// ExecutionRecord is one tracked execution's status, progress, and outcome.
type ExecutionRecord struct {
	ID          string
	TenantID    string
	Status      persistence.ExecutionStatus
	Progress    float64
	CurrentNode string
	StartedAt   time.Time
	CompletedAt time.Time
	Error       string
	Result      value.Value
	cancel      bool
}

// Tracker is the in-process active-execution registry cancel removes a
// record from. Grounded on persistence.InMemoryBackend's mutex-guarded map
// shape, specialized to live (non-snapshotted) execution bookkeeping.
type Tracker struct {
	mu      sync.Mutex
	records map[string]*ExecutionRecord
}

// NewTracker builds an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{records: map[string]*ExecutionRecord{}}
}

// Begin registers a new pending execution and returns its id.
func (t *Tracker) Begin(tenantID string) *ExecutionRecord {
	rec := &ExecutionRecord{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Status:    persistence.StatusPending,
		StartedAt: time.Now(),
	}
	t.mu.Lock()
	t.records[rec.ID] = rec
	t.mu.Unlock()
	return rec
}

// Get returns a tenant-scoped execution record, or nil if absent or owned
// by a different tenant.
func (t *Tracker) Get(tenantID, id string) *ExecutionRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[id]
	if !ok || rec.TenantID != tenantID {
		return nil
	}
	return rec
}

// MarkRunning transitions a record to running.
func (t *Tracker) MarkRunning(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[id]; ok {
		rec.Status = persistence.StatusRunning
	}
}

// IsCancelled reports whether Cancel was called for id.
func (t *Tracker) IsCancelled(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[id]
	return ok && rec.cancel
}

// Complete records a terminal outcome.
func (t *Tracker) Complete(id string, result value.Value, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[id]
	if !ok {
		return
	}
	rec.CompletedAt = time.Now()
	rec.Progress = 1
	if err != nil {
		rec.Status = persistence.StatusFailed
		rec.Error = err.Error()
	} else {
		rec.Status = persistence.StatusCompleted
		rec.Result = result
	}
}

// Cancel performs a soft cancel: marks the record cancelled and removes it
// from future Get lookups. Running tasks are expected to cooperatively
// observe IsCancelled at suspension points; there is no forced abort.
func (t *Tracker) Cancel(tenantID, id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[id]
	if !ok || rec.TenantID != tenantID {
		return false
	}
	rec.cancel = true
	rec.Status = persistence.StatusCancelled
	rec.CompletedAt = time.Now()
	delete(t.records, id)
	return true
}
