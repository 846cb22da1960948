package repository

import (
	"context"
	"testing"

	"github.com/r3e-network/flowengine/internal/flow"
	"github.com/r3e-network/flowengine/internal/flowerr"
	"github.com/r3e-network/flowengine/internal/persistence"
)

func newSnapshot(t *testing.T, tenantID, executionID string) persistence.ExecutionSnapshot {
	t.Helper()
	ec := flow.NewExecutionContext()
	return persistence.NewSnapshotFromContext(executionID, tenantID, "flow-1", ec, persistence.StatusRunning)
}

func TestSnapshotRepositoryLoadSameTenant(t *testing.T) {
	backend := persistence.NewInMemoryBackend()
	snap := newSnapshot(t, "tenant-a", "exec-1")
	if err := backend.SaveSnapshot(context.Background(), &snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	repo := NewSnapshotRepository(backend)
	got, err := repo.LoadSnapshot(context.Background(), "tenant-a", "exec-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ExecutionID != "exec-1" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestSnapshotRepositoryLoadWrongTenantReadsAsNotFound(t *testing.T) {
	backend := persistence.NewInMemoryBackend()
	snap := newSnapshot(t, "tenant-a", "exec-1")
	if err := backend.SaveSnapshot(context.Background(), &snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	repo := NewSnapshotRepository(backend)
	_, err := repo.LoadSnapshot(context.Background(), "tenant-b", "exec-1")
	if err == nil {
		t.Fatalf("expected not-found error for mismatched tenant")
	}
	fe, ok := err.(*flowerr.Error)
	if !ok || fe.Code != flowerr.CodeSnapshotNotFound {
		t.Fatalf("expected CodeSnapshotNotFound, got %v", err)
	}
}

func TestSnapshotRepositoryLoadMissingIsNotFound(t *testing.T) {
	backend := persistence.NewInMemoryBackend()
	repo := NewSnapshotRepository(backend)
	_, err := repo.LoadSnapshot(context.Background(), "tenant-a", "does-not-exist")
	if err == nil {
		t.Fatalf("expected not-found error")
	}
}

func TestSnapshotRepositoryDeleteRefusesWrongTenant(t *testing.T) {
	backend := persistence.NewInMemoryBackend()
	snap := newSnapshot(t, "tenant-a", "exec-1")
	if err := backend.SaveSnapshot(context.Background(), &snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	repo := NewSnapshotRepository(backend)
	if err := repo.DeleteSnapshot(context.Background(), "tenant-b", "exec-1"); err == nil {
		t.Fatalf("expected delete to refuse cross-tenant access")
	}

	got, err := repo.LoadSnapshot(context.Background(), "tenant-a", "exec-1")
	if err != nil || got == nil {
		t.Fatalf("expected snapshot to survive the refused delete, err=%v", err)
	}
}
