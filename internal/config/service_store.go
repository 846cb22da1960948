package config

import (
	"context"
	"fmt"
	"sync"
)

// ToolServiceStore extends ConfigStore-style tenant-scoped CRUD to the
// unified ToolService/Tool model (spec.md §4.5), supporting the combined
// lookup `scheme://code/tool_code` used by the mcp/agent/oss/mq/mail/sms/svc
// schemes that don't have their own typed config struct the way api/db do.
type ToolServiceStore interface {
	ListServices(ctx context.Context, tenantID string) ([]ToolService, error)
	GetService(ctx context.Context, tenantID, code string) (*ToolService, error)
	SaveService(ctx context.Context, svc ToolService) error
	DeleteService(ctx context.Context, tenantID, code string) error

	ListTools(ctx context.Context, tenantID, serviceCode string) ([]Tool, error)
	GetTool(ctx context.Context, tenantID, serviceCode, toolCode string) (*Tool, error)
	SaveTool(ctx context.Context, tool Tool) error
	DeleteTool(ctx context.Context, tenantID, serviceCode, toolCode string) error

	// Resolve performs the combined lookup a scheme://code/tool_code URI
	// needs in one call.
	Resolve(ctx context.Context, tenantID, serviceCode, toolCode string) (*ToolService, *Tool, error)
}

// InMemoryToolServiceStore is the ToolServiceStore counterpart to
// InMemoryConfigStore.
type InMemoryToolServiceStore struct {
	mu       sync.RWMutex
	services map[string]map[string]ToolService
	tools    map[string]map[string]Tool // key: tenant -> "serviceCode/toolCode"
}

func NewInMemoryToolServiceStore() *InMemoryToolServiceStore {
	return &InMemoryToolServiceStore{
		services: map[string]map[string]ToolService{},
		tools:    map[string]map[string]Tool{},
	}
}

func toolKey(serviceCode, toolCode string) string { return serviceCode + "/" + toolCode }

func (s *InMemoryToolServiceStore) ListServices(ctx context.Context, tenantID string) ([]ToolService, error) {
	tenantID = NormalizeTenantID(tenantID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ToolService
	for _, v := range s.services[tenantID] {
		out = append(out, v)
	}
	return out, nil
}

func (s *InMemoryToolServiceStore) GetService(ctx context.Context, tenantID, code string) (*ToolService, error) {
	tenantID = NormalizeTenantID(tenantID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.services[tenantID][code]; ok {
		c := v
		return &c, nil
	}
	return nil, nil
}

func (s *InMemoryToolServiceStore) SaveService(ctx context.Context, svc ToolService) error {
	svc.TenantID = NormalizeTenantID(svc.TenantID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.services[svc.TenantID] == nil {
		s.services[svc.TenantID] = map[string]ToolService{}
	}
	s.services[svc.TenantID][svc.Code] = svc
	return nil
}

func (s *InMemoryToolServiceStore) DeleteService(ctx context.Context, tenantID, code string) error {
	tenantID = NormalizeTenantID(tenantID)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.services[tenantID], code)
	return nil
}

func (s *InMemoryToolServiceStore) ListTools(ctx context.Context, tenantID, serviceCode string) ([]Tool, error) {
	tenantID = NormalizeTenantID(tenantID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Tool
	for k, v := range s.tools[tenantID] {
		if v.ServiceCode == serviceCode {
			_ = k
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *InMemoryToolServiceStore) GetTool(ctx context.Context, tenantID, serviceCode, toolCode string) (*Tool, error) {
	tenantID = NormalizeTenantID(tenantID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.tools[tenantID][toolKey(serviceCode, toolCode)]; ok {
		c := v
		return &c, nil
	}
	return nil, nil
}

func (s *InMemoryToolServiceStore) SaveTool(ctx context.Context, tool Tool) error {
	tool.TenantID = NormalizeTenantID(tool.TenantID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tools[tool.TenantID] == nil {
		s.tools[tool.TenantID] = map[string]Tool{}
	}
	s.tools[tool.TenantID][toolKey(tool.ServiceCode, tool.Code)] = tool
	return nil
}

func (s *InMemoryToolServiceStore) DeleteTool(ctx context.Context, tenantID, serviceCode, toolCode string) error {
	tenantID = NormalizeTenantID(tenantID)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tools[tenantID], toolKey(serviceCode, toolCode))
	return nil
}

func (s *InMemoryToolServiceStore) Resolve(ctx context.Context, tenantID, serviceCode, toolCode string) (*ToolService, *Tool, error) {
	svc, err := s.GetService(ctx, tenantID, serviceCode)
	if err != nil {
		return nil, nil, err
	}
	if svc == nil {
		return nil, nil, fmt.Errorf("config: service %q not found", serviceCode)
	}
	tool, err := s.GetTool(ctx, tenantID, serviceCode, toolCode)
	if err != nil {
		return nil, nil, err
	}
	return svc, tool, nil
}
