package persistence

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/r3e-network/flowengine/internal/flow"
)

// NewSnapshotFromContext captures an in-flight execution's state for
// persistence (spec.md §4.3).
func NewSnapshotFromContext(executionID, tenantID, flowID string, ec *flow.ExecutionContext, status ExecutionStatus) ExecutionSnapshot {
	now := time.Now().UTC()
	return ExecutionSnapshot{
		ExecutionID:    executionID,
		TenantID:       tenantID,
		FlowID:         flowID,
		Status:         status,
		Inputs:         ec.Inputs(),
		Variables:      ec.Variables(),
		CompletedNodes: ec.CompletedNodes(),
		FailedNodes:    ec.FailedNodes(),
		CreatedAt:      now,
		UpdatedAt:      now,
		Metadata:       map[string]string{},
	}
}

// Backend is the storage seam for execution snapshots. InMemoryBackend
// satisfies it for development/tests; postgres.Store for production.
type Backend interface {
	SaveSnapshot(ctx context.Context, snap *ExecutionSnapshot) error
	LoadSnapshot(ctx context.Context, executionID string) (*ExecutionSnapshot, error)
	ListSnapshots(ctx context.Context, tenantID, flowID string, limit int) ([]ExecutionSnapshot, error)
	DeleteSnapshot(ctx context.Context, executionID string) error
	ListIncomplete(ctx context.Context, tenantID string) ([]ExecutionSnapshot, error)
}

// InMemoryBackend is a Backend for tests and single-process deployments.
type InMemoryBackend struct {
	mu        sync.RWMutex
	snapshots map[string]ExecutionSnapshot
}

func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{snapshots: map[string]ExecutionSnapshot{}}
}

func (b *InMemoryBackend) SaveSnapshot(ctx context.Context, snap *ExecutionSnapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshots[snap.ExecutionID] = *snap
	return nil
}

func (b *InMemoryBackend) LoadSnapshot(ctx context.Context, executionID string) (*ExecutionSnapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snap, ok := b.snapshots[executionID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (b *InMemoryBackend) ListSnapshots(ctx context.Context, tenantID, flowID string, limit int) ([]ExecutionSnapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []ExecutionSnapshot
	for _, s := range b.snapshots {
		if s.TenantID == tenantID && s.FlowID == flowID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (b *InMemoryBackend) DeleteSnapshot(ctx context.Context, executionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.snapshots, executionID)
	return nil
}

func (b *InMemoryBackend) ListIncomplete(ctx context.Context, tenantID string) ([]ExecutionSnapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []ExecutionSnapshot
	for _, s := range b.snapshots {
		if s.TenantID == tenantID && (s.Status == StatusRunning || s.Status == StatusPaused) {
			out = append(out, s)
		}
	}
	return out, nil
}

// Config tunes how aggressively Manager snapshots a running execution.
type Config struct {
	SnapshotInterval     uint32
	MaxHistorySize       int
	PersistOnNodeComplete bool
	AsyncWrite           bool
}

func DefaultConfig() Config {
	return Config{
		SnapshotInterval:      5,
		MaxHistorySize:        1000,
		PersistOnNodeComplete: true,
		AsyncWrite:            true,
	}
}

// Manager wraps a Backend with the snapshot-cadence policy (spec.md §4.3).
type Manager struct {
	backend Backend
	config  Config
}

func NewManager(backend Backend, config Config) *Manager {
	return &Manager{backend: backend, config: config}
}

func InMemoryManager() *Manager {
	return NewManager(NewInMemoryBackend(), DefaultConfig())
}

func (m *Manager) Save(ctx context.Context, snap *ExecutionSnapshot) error {
	if len(snap.History) > m.config.MaxHistorySize {
		snap.History = snap.History[len(snap.History)-m.config.MaxHistorySize:]
	}
	return m.backend.SaveSnapshot(ctx, snap)
}

func (m *Manager) Load(ctx context.Context, executionID string) (*ExecutionSnapshot, error) {
	return m.backend.LoadSnapshot(ctx, executionID)
}

func (m *Manager) List(ctx context.Context, tenantID, flowID string, limit int) ([]ExecutionSnapshot, error) {
	return m.backend.ListSnapshots(ctx, tenantID, flowID, limit)
}

func (m *Manager) Delete(ctx context.Context, executionID string) error {
	return m.backend.DeleteSnapshot(ctx, executionID)
}

func (m *Manager) GetIncomplete(ctx context.Context, tenantID string) ([]ExecutionSnapshot, error) {
	return m.backend.ListIncomplete(ctx, tenantID)
}

// ShouldSnapshot reports whether Manager should persist given the count of
// nodes completed so far in the current execution.
func (m *Manager) ShouldSnapshot(completedCount uint32) bool {
	return m.config.PersistOnNodeComplete ||
		(completedCount > 0 && completedCount%m.config.SnapshotInterval == 0)
}

func (m *Manager) Config() Config { return m.config }

// NewExecutionID mints a fresh execution identifier.
func NewExecutionID() string { return uuid.NewString() }

// RecoveryService rebuilds an ExecutionContext from a persisted snapshot so
// a crashed or paused execution can resume (spec.md §4.3).
type RecoveryService struct {
	manager *Manager
}

func NewRecoveryService(manager *Manager) *RecoveryService {
	return &RecoveryService{manager: manager}
}

func (r *RecoveryService) Recover(ctx context.Context, executionID string) (*flow.ExecutionContext, *ExecutionSnapshot, error) {
	snap, err := r.manager.Load(ctx, executionID)
	if err != nil {
		return nil, nil, err
	}
	if snap == nil {
		return nil, nil, fmt.Errorf("persistence: no snapshot found for execution %q", executionID)
	}

	ec := flow.NewExecutionContext()
	ec.SetInputs(snap.Inputs)
	for k, v := range snap.Variables {
		ec.SetVariable(k, v)
	}
	for _, id := range snap.CompletedNodes {
		ec.MarkCompleted(id)
	}
	for _, id := range snap.FailedNodes {
		ec.MarkFailed(id)
	}
	return ec, snap, nil
}

func (r *RecoveryService) ListRecoverable(ctx context.Context, tenantID string) ([]ExecutionSnapshot, error) {
	return r.manager.GetIncomplete(ctx, tenantID)
}
