// Package postgres persists tool configuration (API services, datasources,
// UDFs) to PostgreSQL, grounded on fdl-tools/src/postgres_config.rs.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/r3e-network/flowengine/internal/config"
)

// Store implements config.ConfigStore against tool_api_services,
// tool_datasources and tool_udfs tables.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ListApiServices(ctx context.Context, tenantID string) ([]config.ApiServiceConfig, error) {
	tenantID = config.NormalizeTenantID(tenantID)
	rows, err := s.db.QueryxContext(ctx, `
		SELECT name, display_name, description, base_url, auth_type, auth_config,
		       default_headers, timeout_ms, retry_count, enabled, created_at, updated_at
		FROM tool_api_services WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []config.ApiServiceConfig
	for rows.Next() {
		cfg, err := scanApiService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cfg)
	}
	return out, rows.Err()
}

func (s *Store) GetApiService(ctx context.Context, tenantID, name string) (*config.ApiServiceConfig, error) {
	tenantID = config.NormalizeTenantID(tenantID)
	row := s.db.QueryRowxContext(ctx, `
		SELECT name, display_name, description, base_url, auth_type, auth_config,
		       default_headers, timeout_ms, retry_count, enabled, created_at, updated_at
		FROM tool_api_services WHERE tenant_id = $1 AND name = $2`, tenantID, name)
	cfg, err := scanApiService(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return cfg, err
}

func (s *Store) SaveApiService(ctx context.Context, tenantID string, cfg config.ApiServiceConfig) error {
	tenantID = config.NormalizeTenantID(tenantID)
	authConfig, err := json.Marshal(cfg.AuthConfig)
	if err != nil {
		return err
	}
	headers, err := json.Marshal(cfg.DefaultHeaders)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tool_api_services
			(tenant_id, name, display_name, description, base_url, auth_type, auth_config,
			 default_headers, timeout_ms, retry_count, enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (tenant_id, name) DO UPDATE SET
			display_name = $3, description = $4, base_url = $5, auth_type = $6, auth_config = $7,
			default_headers = $8, timeout_ms = $9, retry_count = $10, enabled = $11, updated_at = now()
	`, tenantID, cfg.Name, cfg.DisplayName, cfg.Description, cfg.BaseURL, string(cfg.AuthType),
		authConfig, headers, cfg.TimeoutMs, cfg.RetryCount, cfg.Enabled)
	return err
}

func (s *Store) DeleteApiService(ctx context.Context, tenantID, name string) error {
	tenantID = config.NormalizeTenantID(tenantID)
	_, err := s.db.ExecContext(ctx, `DELETE FROM tool_api_services WHERE tenant_id = $1 AND name = $2`, tenantID, name)
	return err
}

func (s *Store) ListDatasources(ctx context.Context, tenantID string) ([]config.DatasourceConfig, error) {
	tenantID = config.NormalizeTenantID(tenantID)
	rows, err := s.db.QueryxContext(ctx, `
		SELECT name, display_name, description, db_type, connection_string, schema, "table",
		       pool_size, timeout_ms, read_only, enabled, created_at, updated_at
		FROM tool_datasources WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []config.DatasourceConfig
	for rows.Next() {
		cfg, err := scanDatasource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cfg)
	}
	return out, rows.Err()
}

func (s *Store) GetDatasource(ctx context.Context, tenantID, name string) (*config.DatasourceConfig, error) {
	tenantID = config.NormalizeTenantID(tenantID)
	row := s.db.QueryRowxContext(ctx, `
		SELECT name, display_name, description, db_type, connection_string, schema, "table",
		       pool_size, timeout_ms, read_only, enabled, created_at, updated_at
		FROM tool_datasources WHERE tenant_id = $1 AND name = $2`, tenantID, name)
	cfg, err := scanDatasource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return cfg, err
}

func (s *Store) SaveDatasource(ctx context.Context, tenantID string, cfg config.DatasourceConfig) error {
	tenantID = config.NormalizeTenantID(tenantID)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_datasources
			(tenant_id, name, display_name, description, db_type, connection_string, schema,
			 "table", pool_size, timeout_ms, read_only, enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
		ON CONFLICT (tenant_id, name) DO UPDATE SET
			display_name = $3, description = $4, db_type = $5, connection_string = $6, schema = $7,
			"table" = $8, pool_size = $9, timeout_ms = $10, read_only = $11, enabled = $12, updated_at = now()
	`, tenantID, cfg.Name, cfg.DisplayName, cfg.Description, string(cfg.DBType), cfg.ConnectionString,
		cfg.Schema, cfg.Table, cfg.PoolSize, cfg.TimeoutMs, cfg.ReadOnly, cfg.Enabled)
	return err
}

func (s *Store) DeleteDatasource(ctx context.Context, tenantID, name string) error {
	tenantID = config.NormalizeTenantID(tenantID)
	_, err := s.db.ExecContext(ctx, `DELETE FROM tool_datasources WHERE tenant_id = $1 AND name = $2`, tenantID, name)
	return err
}

func (s *Store) ListUdfs(ctx context.Context, tenantID string) ([]config.UdfConfig, error) {
	tenantID = config.NormalizeTenantID(tenantID)
	rows, err := s.db.QueryxContext(ctx, `
		SELECT name, display_name, description, udf_type, handler, applicable_db_types,
		       is_builtin, enabled, created_at, updated_at
		FROM tool_udfs WHERE tenant_id = $1 OR tenant_id = $2`, tenantID, config.GlobalTenant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []config.UdfConfig
	for rows.Next() {
		cfg, err := scanUdf(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cfg)
	}
	return out, rows.Err()
}

// GetUdf tries the tenant's own rows first, then the global sentinel tenant.
func (s *Store) GetUdf(ctx context.Context, tenantID, name string) (*config.UdfConfig, error) {
	tenantID = config.NormalizeTenantID(tenantID)
	row := s.db.QueryRowxContext(ctx, `
		SELECT name, display_name, description, udf_type, handler, applicable_db_types,
		       is_builtin, enabled, created_at, updated_at
		FROM tool_udfs WHERE tenant_id = $1 AND name = $2`, tenantID, name)
	cfg, err := scanUdf(row)
	if err == nil {
		return cfg, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	row = s.db.QueryRowxContext(ctx, `
		SELECT name, display_name, description, udf_type, handler, applicable_db_types,
		       is_builtin, enabled, created_at, updated_at
		FROM tool_udfs WHERE tenant_id = $1 AND name = $2`, config.GlobalTenant, name)
	cfg, err = scanUdf(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return cfg, err
}

func (s *Store) SaveUdf(ctx context.Context, tenantID string, cfg config.UdfConfig) error {
	tenantID = config.NormalizeTenantID(tenantID)
	dbTypes := make([]string, len(cfg.ApplicableDBTypes))
	for i, t := range cfg.ApplicableDBTypes {
		dbTypes[i] = string(t)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_udfs
			(tenant_id, name, display_name, description, udf_type, handler, applicable_db_types,
			 is_builtin, enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (tenant_id, name) DO UPDATE SET
			display_name = $3, description = $4, udf_type = $5, handler = $6,
			applicable_db_types = $7, is_builtin = $8, enabled = $9, updated_at = now()
	`, tenantID, cfg.Name, cfg.DisplayName, cfg.Description, string(cfg.UdfType), cfg.Handler,
		pqStringArray(dbTypes), cfg.IsBuiltin, cfg.Enabled)
	return err
}

func (s *Store) DeleteUdf(ctx context.Context, tenantID, name string) error {
	tenantID = config.NormalizeTenantID(tenantID)
	_, err := s.db.ExecContext(ctx, `DELETE FROM tool_udfs WHERE tenant_id = $1 AND name = $2`, tenantID, name)
	return err
}

var _ config.ConfigStore = (*Store)(nil)
