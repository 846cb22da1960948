package config

import (
	"context"
	"sync"
)

// ConfigStore is the tenant-scoped CRUD seam ManagedToolRegistry resolves
// api://, db:// and UDF lookups against. Every method takes a raw tenant_id
// and normalizes it internally, so callers never need to call
// NormalizeTenantID themselves (spec.md §4.5).
type ConfigStore interface {
	ListApiServices(ctx context.Context, tenantID string) ([]ApiServiceConfig, error)
	GetApiService(ctx context.Context, tenantID, name string) (*ApiServiceConfig, error)
	SaveApiService(ctx context.Context, tenantID string, cfg ApiServiceConfig) error
	DeleteApiService(ctx context.Context, tenantID, name string) error

	ListDatasources(ctx context.Context, tenantID string) ([]DatasourceConfig, error)
	GetDatasource(ctx context.Context, tenantID, name string) (*DatasourceConfig, error)
	SaveDatasource(ctx context.Context, tenantID string, cfg DatasourceConfig) error
	DeleteDatasource(ctx context.Context, tenantID, name string) error

	ListUdfs(ctx context.Context, tenantID string) ([]UdfConfig, error)
	GetUdf(ctx context.Context, tenantID, name string) (*UdfConfig, error)
	SaveUdf(ctx context.Context, tenantID string, cfg UdfConfig) error
	DeleteUdf(ctx context.Context, tenantID, name string) error
}

// InMemoryConfigStore is a ConfigStore for development and tests, grounded
// on fdl-tools/src/config.rs's InMemoryConfigStore.
type InMemoryConfigStore struct {
	mu          sync.RWMutex
	apiServices map[string]map[string]ApiServiceConfig
	datasources map[string]map[string]DatasourceConfig
	udfs        map[string]map[string]UdfConfig
}

// NewInMemoryConfigStore builds a store pre-seeded with the eight built-in
// UDFs under GlobalTenant, the way register_builtin_udfs does.
func NewInMemoryConfigStore() *InMemoryConfigStore {
	s := &InMemoryConfigStore{
		apiServices: map[string]map[string]ApiServiceConfig{},
		datasources: map[string]map[string]DatasourceConfig{},
		udfs:        map[string]map[string]UdfConfig{},
	}
	s.registerBuiltinUdfs()
	return s
}

func (s *InMemoryConfigStore) registerBuiltinUdfs() {
	builtins := []UdfConfig{
		{Name: "take", DisplayName: "Fetch one record", UdfType: UdfBuiltin, Handler: "builtin::take", IsBuiltin: true, Enabled: true},
		{Name: "list", DisplayName: "Fetch a list", UdfType: UdfBuiltin, Handler: "builtin::list", IsBuiltin: true, Enabled: true},
		{Name: "count", DisplayName: "Count records", UdfType: UdfBuiltin, Handler: "builtin::count", IsBuiltin: true, Enabled: true},
		{Name: "page", DisplayName: "Paginated query", UdfType: UdfBuiltin, Handler: "builtin::page", IsBuiltin: true, Enabled: true},
		{Name: "create", DisplayName: "Create a record", UdfType: UdfBuiltin, Handler: "builtin::create", IsBuiltin: true, Enabled: true},
		{Name: "modify", DisplayName: "Modify records", UdfType: UdfBuiltin, Handler: "builtin::modify", IsBuiltin: true, Enabled: true},
		{Name: "delete", DisplayName: "Delete records", UdfType: UdfBuiltin, Handler: "builtin::delete", IsBuiltin: true, Enabled: true},
		{
			Name: "native", DisplayName: "Native query", UdfType: UdfBuiltin, Handler: "builtin::native", IsBuiltin: true, Enabled: true,
			ApplicableDBTypes: []DatabaseType{DBMySQL, DBPostgreSQL, DBSQLite},
		},
	}
	global := map[string]UdfConfig{}
	for _, u := range builtins {
		global[u.Name] = u
	}
	s.udfs[GlobalTenant] = global
}

func (s *InMemoryConfigStore) ListApiServices(ctx context.Context, tenantID string) ([]ApiServiceConfig, error) {
	tenantID = NormalizeTenantID(tenantID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ApiServiceConfig
	for _, v := range s.apiServices[tenantID] {
		out = append(out, v)
	}
	return out, nil
}

func (s *InMemoryConfigStore) GetApiService(ctx context.Context, tenantID, name string) (*ApiServiceConfig, error) {
	tenantID = NormalizeTenantID(tenantID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cfg, ok := s.apiServices[tenantID][name]; ok {
		c := cfg
		return &c, nil
	}
	return nil, nil
}

func (s *InMemoryConfigStore) SaveApiService(ctx context.Context, tenantID string, cfg ApiServiceConfig) error {
	tenantID = NormalizeTenantID(tenantID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.apiServices[tenantID] == nil {
		s.apiServices[tenantID] = map[string]ApiServiceConfig{}
	}
	s.apiServices[tenantID][cfg.Name] = cfg
	return nil
}

func (s *InMemoryConfigStore) DeleteApiService(ctx context.Context, tenantID, name string) error {
	tenantID = NormalizeTenantID(tenantID)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.apiServices[tenantID], name)
	return nil
}

func (s *InMemoryConfigStore) ListDatasources(ctx context.Context, tenantID string) ([]DatasourceConfig, error) {
	tenantID = NormalizeTenantID(tenantID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []DatasourceConfig
	for _, v := range s.datasources[tenantID] {
		out = append(out, v)
	}
	return out, nil
}

func (s *InMemoryConfigStore) GetDatasource(ctx context.Context, tenantID, name string) (*DatasourceConfig, error) {
	tenantID = NormalizeTenantID(tenantID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cfg, ok := s.datasources[tenantID][name]; ok {
		c := cfg
		return &c, nil
	}
	return nil, nil
}

func (s *InMemoryConfigStore) SaveDatasource(ctx context.Context, tenantID string, cfg DatasourceConfig) error {
	tenantID = NormalizeTenantID(tenantID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.datasources[tenantID] == nil {
		s.datasources[tenantID] = map[string]DatasourceConfig{}
	}
	s.datasources[tenantID][cfg.Name] = cfg
	return nil
}

func (s *InMemoryConfigStore) DeleteDatasource(ctx context.Context, tenantID, name string) error {
	tenantID = NormalizeTenantID(tenantID)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.datasources[tenantID], name)
	return nil
}

// ListUdfs returns global (built-in) UDFs followed by tenant-specific ones.
func (s *InMemoryConfigStore) ListUdfs(ctx context.Context, tenantID string) ([]UdfConfig, error) {
	tenantID = NormalizeTenantID(tenantID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []UdfConfig
	for _, v := range s.udfs[GlobalTenant] {
		out = append(out, v)
	}
	for _, v := range s.udfs[tenantID] {
		out = append(out, v)
	}
	return out, nil
}

// GetUdf looks in the tenant's own UDFs first, then falls back to the
// global sentinel tenant — a tenant-defined "count" shadows the built-in one.
func (s *InMemoryConfigStore) GetUdf(ctx context.Context, tenantID, name string) (*UdfConfig, error) {
	tenantID = NormalizeTenantID(tenantID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cfg, ok := s.udfs[tenantID][name]; ok {
		c := cfg
		return &c, nil
	}
	if cfg, ok := s.udfs[GlobalTenant][name]; ok {
		c := cfg
		return &c, nil
	}
	return nil, nil
}

func (s *InMemoryConfigStore) SaveUdf(ctx context.Context, tenantID string, cfg UdfConfig) error {
	tenantID = NormalizeTenantID(tenantID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.udfs[tenantID] == nil {
		s.udfs[tenantID] = map[string]UdfConfig{}
	}
	s.udfs[tenantID][cfg.Name] = cfg
	return nil
}

func (s *InMemoryConfigStore) DeleteUdf(ctx context.Context, tenantID, name string) error {
	tenantID = NormalizeTenantID(tenantID)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.udfs[tenantID], name)
	return nil
}
