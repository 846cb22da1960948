// Package repository supplies the tenant-ownership guard pattern spec.md
// §4.6 requires on top of stores whose lookups are keyed by a global id
// rather than a (tenant_id, name) pair: a record found under the wrong
// tenant must read back as not-found, never as permission-denied, so a
// caller cannot use response shape to enumerate other tenants' resource
// ids. Grounded on the teacher's tenant-predicate repository tests
// (internal/app/storage/postgres/store_tenant_filters_test.go), which pin
// exactly this behavior at the SQL layer; this package gives the same
// guarantee to stores (like persistence.Backend) whose by-id operations
// don't already take a tenant parameter.
package repository

import (
	"context"

	"github.com/r3e-network/flowengine/internal/flowerr"
	"github.com/r3e-network/flowengine/internal/persistence"
)

// ValidateTenantAccess reports a not-found-shaped error when recordTenantID
// does not match expectedTenantID, and nil otherwise. notFound is the
// flowerr.Code the caller's resource type uses for "does not exist" so the
// mismatch is indistinguishable from a genuine miss.
func ValidateTenantAccess(expectedTenantID, recordTenantID string, notFound flowerr.Code, resourceMessage string) error {
	if expectedTenantID != "" && recordTenantID != expectedTenantID {
		return flowerr.New(notFound, resourceMessage)
	}
	return nil
}

// SnapshotRepository wraps a persistence.Backend's by-id operations
// (LoadSnapshot, DeleteSnapshot) with the tenant-ownership guard above.
// ListSnapshots and ListIncomplete already take tenantID as a query
// predicate and need no wrapping.
type SnapshotRepository struct {
	backend persistence.Backend
}

// NewSnapshotRepository builds a tenant-guarded view over backend.
func NewSnapshotRepository(backend persistence.Backend) *SnapshotRepository {
	return &SnapshotRepository{backend: backend}
}

// LoadSnapshot loads the snapshot by id and verifies it belongs to
// tenantID, returning CodeSnapshotNotFound on either a genuine miss or a
// tenant mismatch.
func (r *SnapshotRepository) LoadSnapshot(ctx context.Context, tenantID, executionID string) (*persistence.ExecutionSnapshot, error) {
	snap, err := r.backend.LoadSnapshot(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, flowerr.New(flowerr.CodeSnapshotNotFound, "snapshot not found: "+executionID)
	}
	if err := ValidateTenantAccess(tenantID, snap.TenantID, flowerr.CodeSnapshotNotFound, "snapshot not found: "+executionID); err != nil {
		return nil, err
	}
	return snap, nil
}

// DeleteSnapshot deletes the snapshot by id after verifying tenant
// ownership, so a caller cannot delete another tenant's execution by
// guessing its id.
func (r *SnapshotRepository) DeleteSnapshot(ctx context.Context, tenantID, executionID string) error {
	if _, err := r.LoadSnapshot(ctx, tenantID, executionID); err != nil {
		return err
	}
	return r.backend.DeleteSnapshot(ctx, executionID)
}

// ListSnapshots and ListIncomplete pass through unchanged: both already
// take tenantID as a query predicate at the backend layer.
func (r *SnapshotRepository) ListSnapshots(ctx context.Context, tenantID, flowID string, limit int) ([]persistence.ExecutionSnapshot, error) {
	return r.backend.ListSnapshots(ctx, tenantID, flowID, limit)
}

func (r *SnapshotRepository) ListIncomplete(ctx context.Context, tenantID string) ([]persistence.ExecutionSnapshot, error) {
	return r.backend.ListIncomplete(ctx, tenantID)
}
