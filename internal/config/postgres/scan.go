package postgres

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"github.com/r3e-network/flowengine/internal/config"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func pqStringArray(s []string) any { return pq.Array(s) }

func scanApiService(row rowScanner) (*config.ApiServiceConfig, error) {
	var (
		cfg                         config.ApiServiceConfig
		description                 sql.NullString
		authType                    string
		authConfigRaw, headersRaw   []byte
		createdAt, updatedAt        sql.NullTime
	)
	if err := row.Scan(&cfg.Name, &cfg.DisplayName, &description, &cfg.BaseURL, &authType,
		&authConfigRaw, &headersRaw, &cfg.TimeoutMs, &cfg.RetryCount, &cfg.Enabled,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	cfg.Description = description.String
	cfg.AuthType = config.AuthType(authType)
	cfg.CreatedAt = toTime(createdAt)
	cfg.UpdatedAt = toTime(updatedAt)
	if len(authConfigRaw) > 0 {
		_ = json.Unmarshal(authConfigRaw, &cfg.AuthConfig)
	}
	if len(headersRaw) > 0 {
		_ = json.Unmarshal(headersRaw, &cfg.DefaultHeaders)
	}
	return &cfg, nil
}

func scanDatasource(row rowScanner) (*config.DatasourceConfig, error) {
	var (
		cfg                  config.DatasourceConfig
		description, schema, table sql.NullString
		dbType               string
		createdAt, updatedAt sql.NullTime
	)
	if err := row.Scan(&cfg.Name, &cfg.DisplayName, &description, &dbType, &cfg.ConnectionString,
		&schema, &table, &cfg.PoolSize, &cfg.TimeoutMs, &cfg.ReadOnly, &cfg.Enabled,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	cfg.Description = description.String
	cfg.Schema = schema.String
	cfg.Table = table.String
	cfg.DBType = config.DatabaseType(dbType)
	cfg.CreatedAt = toTime(createdAt)
	cfg.UpdatedAt = toTime(updatedAt)
	return &cfg, nil
}

func scanUdf(row rowScanner) (*config.UdfConfig, error) {
	var (
		cfg                  config.UdfConfig
		description          sql.NullString
		udfType              string
		applicable           pq.StringArray
		createdAt, updatedAt sql.NullTime
	)
	if err := row.Scan(&cfg.Name, &cfg.DisplayName, &description, &udfType, &cfg.Handler,
		&applicable, &cfg.IsBuiltin, &cfg.Enabled, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	cfg.Description = description.String
	cfg.UdfType = config.UdfType(udfType)
	cfg.CreatedAt = toTime(createdAt)
	cfg.UpdatedAt = toTime(updatedAt)
	for _, t := range applicable {
		cfg.ApplicableDBTypes = append(cfg.ApplicableDBTypes, config.DatabaseType(t))
	}
	return &cfg, nil
}

func toTime(nt sql.NullTime) time.Time {
	if !nt.Valid {
		return time.Time{}
	}
	return nt.Time
}
