// Package postgres persists flow execution snapshots to PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/r3e-network/flowengine/internal/persistence"
	"github.com/r3e-network/flowengine/pkg/gml/value"
)

// Store implements persistence.Backend using PostgreSQL.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a new PostgreSQL-backed snapshot store.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) SaveSnapshot(ctx context.Context, snap *persistence.ExecutionSnapshot) error {
	variablesJSON, err := json.Marshal(toAnyMap(snap.Variables))
	if err != nil {
		return err
	}
	historyJSON, err := json.Marshal(snap.History)
	if err != nil {
		return err
	}
	inputsJSON, err := json.Marshal(snap.Inputs.ToAny())
	if err != nil {
		return err
	}
	metadataJSON, err := json.Marshal(snap.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO flow_execution_snapshots
			(execution_id, tenant_id, flow_id, flow_version, status, inputs, variables,
			 completed_nodes, failed_nodes, current_nodes, history, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (execution_id) DO UPDATE SET
			status = $5, inputs = $6, variables = $7, completed_nodes = $8,
			failed_nodes = $9, current_nodes = $10, history = $11, metadata = $12,
			updated_at = $14
	`, snap.ExecutionID, snap.TenantID, snap.FlowID, snap.FlowVersion, int(snap.Status),
		inputsJSON, variablesJSON, pq.Array(snap.CompletedNodes), pq.Array(snap.FailedNodes),
		pq.Array(snap.CurrentNodes), historyJSON, metadataJSON, snap.CreatedAt, snap.UpdatedAt)
	return err
}

func (s *Store) LoadSnapshot(ctx context.Context, executionID string) (*persistence.ExecutionSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT execution_id, tenant_id, flow_id, flow_version, status, inputs, variables,
		       completed_nodes, failed_nodes, current_nodes, history, metadata, created_at, updated_at
		FROM flow_execution_snapshots
		WHERE execution_id = $1
	`, executionID)

	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Store) ListSnapshots(ctx context.Context, tenantID, flowID string, limit int) ([]persistence.ExecutionSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT execution_id, tenant_id, flow_id, flow_version, status, inputs, variables,
		       completed_nodes, failed_nodes, current_nodes, history, metadata, created_at, updated_at
		FROM flow_execution_snapshots
		WHERE tenant_id = $1 AND flow_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, tenantID, flowID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

func (s *Store) DeleteSnapshot(ctx context.Context, executionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM flow_execution_snapshots WHERE execution_id = $1`, executionID)
	return err
}

func (s *Store) ListIncomplete(ctx context.Context, tenantID string) ([]persistence.ExecutionSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT execution_id, tenant_id, flow_id, flow_version, status, inputs, variables,
		       completed_nodes, failed_nodes, current_nodes, history, metadata, created_at, updated_at
		FROM flow_execution_snapshots
		WHERE tenant_id = $1 AND status IN ($2, $3)
		ORDER BY created_at
	`, tenantID, int(persistence.StatusRunning), int(persistence.StatusPaused))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (*persistence.ExecutionSnapshot, error) {
	var (
		snap                                              persistence.ExecutionSnapshot
		flowVersion                                       sql.NullString
		status                                             int
		inputsRaw, variablesRaw, historyRaw, metadataRaw  []byte
		completedNodes, failedNodes, currentNodes         pq.StringArray
	)
	if err := row.Scan(&snap.ExecutionID, &snap.TenantID, &snap.FlowID, &flowVersion, &status,
		&inputsRaw, &variablesRaw, &completedNodes, &failedNodes, &currentNodes,
		&historyRaw, &metadataRaw, &snap.CreatedAt, &snap.UpdatedAt); err != nil {
		return nil, err
	}
	snap.FlowVersion = flowVersion.String
	snap.Status = persistence.ExecutionStatus(status)
	snap.CompletedNodes = []string(completedNodes)
	snap.FailedNodes = []string(failedNodes)
	snap.CurrentNodes = []string(currentNodes)

	var inputsAny any
	if len(inputsRaw) > 0 {
		_ = json.Unmarshal(inputsRaw, &inputsAny)
	}
	snap.Inputs = value.FromAny(inputsAny)

	var variablesAny map[string]any
	if len(variablesRaw) > 0 {
		_ = json.Unmarshal(variablesRaw, &variablesAny)
	}
	snap.Variables = fromAnyMap(variablesAny)

	if len(historyRaw) > 0 {
		_ = json.Unmarshal(historyRaw, &snap.History)
	}
	if len(metadataRaw) > 0 {
		_ = json.Unmarshal(metadataRaw, &snap.Metadata)
	}
	return &snap, nil
}

func scanSnapshots(rows *sql.Rows) ([]persistence.ExecutionSnapshot, error) {
	var out []persistence.ExecutionSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *snap)
	}
	return out, rows.Err()
}

func toAnyMap(m map[string]value.Value) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.ToAny()
	}
	return out
}

func fromAnyMap(m map[string]any) map[string]value.Value {
	out := make(map[string]value.Value, len(m))
	for k, v := range m {
		out[k] = value.FromAny(v)
	}
	return out
}
