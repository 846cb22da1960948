// Package config implements the tenant-scoped configuration and service
// stores tool dispatch resolves against (spec.md §4.5), plus the ambient
// FlowEngineConfig environment loader (spec.md §9 Auxiliary, SPEC_FULL §A.3).
package config

import "time"

// AuthType selects how ManagedToolRegistry authenticates an outbound api://
// call, grounded on fdl-tools/src/config.rs's AuthType enum.
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthAPIKey AuthType = "apikey"
	AuthBasic  AuthType = "basic"
	AuthBearer AuthType = "bearer"
	AuthOAuth2 AuthType = "oauth2"
	AuthCustom AuthType = "custom"
)

// ApiServiceConfig describes one REST API service reachable as
// api://name/endpoint.
type ApiServiceConfig struct {
	Name           string            `json:"name"`
	DisplayName    string            `json:"display_name"`
	Description    string            `json:"description,omitempty"`
	BaseURL        string            `json:"base_url"`
	AuthType       AuthType          `json:"auth_type"`
	AuthConfig     map[string]string `json:"auth_config,omitempty"`
	DefaultHeaders map[string]string `json:"default_headers,omitempty"`
	TimeoutMs      int64             `json:"timeout_ms"`
	RetryCount     int               `json:"retry_count"`
	Enabled        bool              `json:"enabled"`
	CreatedAt      time.Time         `json:"created_at,omitempty"`
	UpdatedAt      time.Time         `json:"updated_at,omitempty"`
}

// DefaultApiServiceConfig fills the same zero-value defaults the Rust
// `#[serde(default = ...)]` attributes apply: 30s timeout, enabled.
func DefaultApiServiceConfig() ApiServiceConfig {
	return ApiServiceConfig{TimeoutMs: 30000, Enabled: true}
}

// DatabaseType enumerates the backends a DatasourceConfig can name.
type DatabaseType string

const (
	DBMySQL         DatabaseType = "mysql"
	DBPostgreSQL    DatabaseType = "postgresql"
	DBSQLite        DatabaseType = "sqlite"
	DBMongoDB       DatabaseType = "mongodb"
	DBRedis         DatabaseType = "redis"
	DBElasticsearch DatabaseType = "elasticsearch"
	DBClickHouse    DatabaseType = "clickhouse"
)

// DatasourceConfig describes one database connection reachable as
// db://name/udf.
type DatasourceConfig struct {
	Name             string       `json:"name"`
	DisplayName      string       `json:"display_name"`
	Description      string       `json:"description,omitempty"`
	DBType           DatabaseType `json:"db_type"`
	ConnectionString string       `json:"connection_string"`
	Schema           string       `json:"schema,omitempty"`
	Table            string       `json:"table,omitempty"`
	PoolSize         int          `json:"pool_size"`
	TimeoutMs        int64        `json:"timeout_ms"`
	ReadOnly         bool         `json:"read_only"`
	Enabled          bool         `json:"enabled"`
	CreatedAt        time.Time    `json:"created_at,omitempty"`
	UpdatedAt        time.Time    `json:"updated_at,omitempty"`
}

func DefaultDatasourceConfig() DatasourceConfig {
	return DatasourceConfig{PoolSize: 10, TimeoutMs: 30000, Enabled: true}
}

// UdfType selects how a UdfConfig's Handler is interpreted.
type UdfType string

const (
	UdfBuiltin UdfType = "builtin"
	UdfSQL     UdfType = "sql"
	UdfWasm    UdfType = "wasm"
	UdfHTTP    UdfType = "http"
)

// UdfConfig describes one database operation usable as the `operation`
// segment of a db:// URI (count, list, page, take, create, modify, delete,
// native), grounded on fdl-tools/src/config.rs's UdfConfig.
type UdfConfig struct {
	Name               string         `json:"name"`
	DisplayName        string         `json:"display_name"`
	Description        string         `json:"description,omitempty"`
	UdfType            UdfType        `json:"udf_type"`
	Handler            string         `json:"handler"`
	InputSchema        map[string]any `json:"input_schema,omitempty"`
	OutputSchema       map[string]any `json:"output_schema,omitempty"`
	ApplicableDBTypes  []DatabaseType `json:"applicable_db_types,omitempty"`
	IsBuiltin          bool           `json:"is_builtin"`
	Enabled            bool           `json:"enabled"`
	CreatedAt          time.Time      `json:"created_at,omitempty"`
	UpdatedAt          time.Time      `json:"updated_at,omitempty"`
}

// ToolType tags the kind of ToolService a unified record describes
// (spec.md §4.5's ToolServiceStore, beyond bare ConfigStore).
type ToolType string

const (
	ToolTypeAPI   ToolType = "api"
	ToolTypeMCP   ToolType = "mcp"
	ToolTypeDB    ToolType = "db"
	ToolTypeFlow  ToolType = "flow"
	ToolTypeAgent ToolType = "agent"
	ToolTypeSvc   ToolType = "svc"
	ToolTypeOSS   ToolType = "oss"
	ToolTypeMQ    ToolType = "mq"
	ToolTypeMail  ToolType = "mail"
	ToolTypeSMS   ToolType = "sms"
)

// ToolService is the unified service record ToolServiceStore manages: one
// row per (tenant_id, code), tagged by ToolType, carrying whichever variant
// config applies.
type ToolService struct {
	TenantID    string         `json:"tenant_id"`
	Code        string         `json:"code"`
	DisplayName string         `json:"display_name"`
	Type        ToolType       `json:"type"`
	Config      map[string]any `json:"config"`
	Enabled     bool           `json:"enabled"`
	CreatedAt   time.Time      `json:"created_at,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at,omitempty"`
}

// Tool subordinates a named operation under a ToolService, with a typed
// argument schema (spec.md §4.5).
type Tool struct {
	TenantID     string         `json:"tenant_id"`
	ServiceCode  string         `json:"service_code"`
	Code         string         `json:"code"`
	DisplayName  string         `json:"display_name"`
	ArgsSchema   map[string]any `json:"args_schema,omitempty"`
	ResultSchema map[string]any `json:"result_schema,omitempty"`
	Enabled      bool           `json:"enabled"`
}
