package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/r3e-network/flowengine/internal/runtime"
)

// Backend selects which ConfigStore/persistence.Backend implementation a
// deployment wires up.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendPostgres Backend = "postgres"
)

// FlowEngineConfig is the ambient process configuration, decoded from
// environment variables the way the teacher's pkg/config.Config does via
// joeshaw/envdecode, with joho/godotenv providing local .env support: New()
// sets defaults, Load() overlays whatever the environment sets on top.
type FlowEngineConfig struct {
	Env runtime.Environment

	HTTPAddr  string `env:"FLOWENGINE_HTTP_ADDR"`
	AdminAddr string `env:"FLOWENGINE_ADMIN_ADDR"`

	PersistenceBackend Backend `env:"FLOWENGINE_PERSISTENCE_BACKEND"`
	ConfigBackend      Backend `env:"FLOWENGINE_CONFIG_BACKEND"`

	PostgresDSN string `env:"FLOWENGINE_POSTGRES_DSN"`
	RedisAddr   string `env:"FLOWENGINE_REDIS_ADDR"`

	SnapshotInterval      uint32        `env:"FLOWENGINE_SNAPSHOT_INTERVAL"`
	PersistOnNodeComplete bool          `env:"FLOWENGINE_PERSIST_ON_NODE_COMPLETE"`
	ToolTimeout           time.Duration `env:"FLOWENGINE_TOOL_TIMEOUT"`

	JWTSecret string `env:"FLOWENGINE_JWT_SECRET"`
	JWTIssuer string `env:"FLOWENGINE_JWT_ISSUER"`

	LogLevel  string `env:"FLOWENGINE_LOG_LEVEL"`
	LogFormat string `env:"FLOWENGINE_LOG_FORMAT"`

	MetricsEnabled bool `env:"FLOWENGINE_METRICS_ENABLED"`
}

// New returns a FlowEngineConfig populated with defaults, mirroring the
// teacher's pkg/config.New().
func New() *FlowEngineConfig {
	return &FlowEngineConfig{
		Env:                   runtime.Development,
		HTTPAddr:              ":8080",
		AdminAddr:             ":8081",
		PersistenceBackend:    BackendMemory,
		ConfigBackend:         BackendMemory,
		SnapshotInterval:      5,
		PersistOnNodeComplete: true,
		ToolTimeout:           30 * time.Second,
		JWTIssuer:             "flowengine",
		LogLevel:              "info",
		LogFormat:             "text",
		MetricsEnabled:        true,
	}
}

// Load reads an optional .env overlay, applies process-environment
// overrides on top of New()'s defaults, and resolves the deployment
// Environment from MARBLE_ENV/ENVIRONMENT.
func Load() (*FlowEngineConfig, error) {
	_ = godotenv.Load()

	cfg := New()
	cfg.Env = runtime.Env()

	if err := envdecode.Decode(cfg); err != nil {
		// envdecode errors when none of the tagged fields have a matching
		// environment variable set; that just means "use the defaults".
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("config: decoding environment: %w", err)
		}
	}
	return cfg, nil
}
