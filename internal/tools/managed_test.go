package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/r3e-network/flowengine/internal/config"
	"github.com/r3e-network/flowengine/internal/flow"
	"github.com/r3e-network/flowengine/pkg/gml/value"
)

func newTestRegistry() (*ManagedToolRegistry, config.ConfigStore, config.ToolServiceStore) {
	cs := config.NewInMemoryConfigStore()
	ss := config.NewInMemoryToolServiceStore()
	return NewManagedToolRegistry(cs, ss, nil), cs, ss
}

func TestDispatchUnsupportedScheme(t *testing.T) {
	r, _, _ := newTestRegistry()
	_, err := r.Dispatch("ftp://host/path", value.Null, flow.ToolContext{})
	if err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
}

func TestExecuteAPISuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("X-API-Key") != "secret" {
			t.Errorf("expected api key header to be applied")
		}
		if req.Header.Get("X-Tenant-Id") == "" {
			t.Errorf("expected tenant header to be set")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	r, cs, _ := newTestRegistry()
	cfg := config.DefaultApiServiceConfig()
	cfg.Name = "crm"
	cfg.BaseURL = srv.URL
	cfg.AuthType = config.AuthAPIKey
	cfg.AuthConfig = map[string]string{"api_key": "secret"}
	if err := cs.SaveApiService(context.Background(), "tenant-a", cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	result, err := r.Dispatch("api://crm/customers", value.Mapping(map[string]value.Value{"id": value.Int(1)}),
		flow.ToolContext{TenantID: "tenant-a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind() != value.KindMapping || !result.AsMapping()["ok"].AsBool() {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestExecuteAPIDisabledService(t *testing.T) {
	r, cs, _ := newTestRegistry()
	cfg := config.DefaultApiServiceConfig()
	cfg.Name = "crm"
	cfg.Enabled = false
	_ = cs.SaveApiService(context.Background(), "tenant-a", cfg)

	_, err := r.Dispatch("api://crm/customers", value.Null, flow.ToolContext{TenantID: "tenant-a"})
	if err == nil {
		t.Fatalf("expected error for disabled service")
	}
}

func TestExecuteDBBuiltinCount(t *testing.T) {
	r, cs, _ := newTestRegistry()
	ds := config.DefaultDatasourceConfig()
	ds.Name = "warehouse"
	ds.DBType = config.DBPostgreSQL
	_ = cs.SaveDatasource(context.Background(), "tenant-a", ds)

	result, err := r.Dispatch("db://warehouse/count", value.Null, flow.ToolContext{TenantID: "tenant-a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AsMapping()["count"].AsInt() != 0 {
		t.Fatalf("unexpected count result: %+v", result)
	}
}

func TestExecuteDBDefaultsToListUdf(t *testing.T) {
	r, cs, _ := newTestRegistry()
	ds := config.DefaultDatasourceConfig()
	ds.Name = "warehouse"
	_ = cs.SaveDatasource(context.Background(), "tenant-a", ds)

	result, err := r.Dispatch("db://warehouse", value.Null, flow.ToolContext{TenantID: "tenant-a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := result.AsMapping()["items"]; !ok {
		t.Fatalf("expected list udf shape, got %+v", result)
	}
}

func TestExecuteDBRejectsInapplicableDBType(t *testing.T) {
	r, cs, _ := newTestRegistry()
	ds := config.DefaultDatasourceConfig()
	ds.Name = "cache"
	ds.DBType = config.DBRedis
	_ = cs.SaveDatasource(context.Background(), "tenant-a", ds)
	_ = cs.SaveUdf(context.Background(), "tenant-a", config.UdfConfig{
		Name: "pg_only", UdfType: config.UdfBuiltin, Handler: "builtin::list",
		ApplicableDBTypes: []config.DatabaseType{config.DBPostgreSQL}, Enabled: true,
	})

	_, err := r.Dispatch("db://cache/pg_only", value.Null, flow.ToolContext{TenantID: "tenant-a"})
	if err == nil {
		t.Fatalf("expected error for inapplicable db type")
	}
}

func TestExecuteMCPReadFile(t *testing.T) {
	r, _, _ := newTestRegistry()
	result, err := r.Dispatch("mcp://filesystem/read_file",
		value.Mapping(map[string]value.Value{"path": value.String("/tmp/a.txt")}),
		flow.ToolContext{TenantID: "tenant-a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	content := result.AsMapping()["content"].AsArray()
	if len(content) != 1 || content[0].AsMapping()["type"].AsString() != "text" {
		t.Fatalf("unexpected mcp content: %+v", result)
	}
}

func TestExecuteOSSUploadWithOperationInArgs(t *testing.T) {
	r, _, ss := newTestRegistry()
	_ = ss.SaveService(context.Background(), config.ToolService{
		TenantID: "tenant-a", Code: "minio", Type: config.ToolTypeOSS, Enabled: true,
		Config: map[string]any{"bucket": "assets"},
	})

	result, err := r.Dispatch("oss://minio/reports/customer-5.json",
		value.Mapping(map[string]value.Value{"operation": value.String("upload"), "content": value.String("{}")}),
		flow.ToolContext{TenantID: "tenant-a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AsMapping()["key"].AsString() != "reports/customer-5.json" {
		t.Fatalf("unexpected key: %+v", result)
	}
}

func TestExecuteOSSExplicitOperation(t *testing.T) {
	r, _, ss := newTestRegistry()
	_ = ss.SaveService(context.Background(), config.ToolService{
		TenantID: "tenant-a", Code: "minio", Type: config.ToolTypeOSS, Enabled: true,
		Config: map[string]any{"bucket": "assets"},
	})

	result, err := r.Dispatch("oss://minio/list/reports", value.Null, flow.ToolContext{TenantID: "tenant-a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := result.AsMapping()["contents"]; !ok {
		t.Fatalf("expected list contents, got %+v", result)
	}
}

func TestExecuteMQSend(t *testing.T) {
	r, _, ss := newTestRegistry()
	_ = ss.SaveService(context.Background(), config.ToolService{
		TenantID: "tenant-a", Code: "rabbitmq", Type: config.ToolTypeMQ, Enabled: true,
	})

	result, err := r.Dispatch("mq://rabbitmq/publish/customer.events",
		value.Mapping(map[string]value.Value{"message": value.String("hi")}),
		flow.ToolContext{TenantID: "tenant-a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AsMapping()["topic"].AsString() != "customer.events" {
		t.Fatalf("unexpected topic: %+v", result)
	}
}

func TestExecuteMailSendRequiresSubjectAndBody(t *testing.T) {
	r, _, ss := newTestRegistry()
	_ = ss.SaveService(context.Background(), config.ToolService{
		TenantID: "tenant-a", Code: "sendgrid", Type: config.ToolTypeMail, Enabled: true,
	})

	_, err := r.Dispatch("mail://sendgrid/send",
		value.Mapping(map[string]value.Value{"to": value.String("a@b.com")}),
		flow.ToolContext{TenantID: "tenant-a"})
	if err == nil {
		t.Fatalf("expected error for missing subject")
	}
}

func TestExecuteSMSSendNormalizesPhone(t *testing.T) {
	r, _, ss := newTestRegistry()
	_ = ss.SaveService(context.Background(), config.ToolService{
		TenantID: "tenant-a", Code: "aliyun", Type: config.ToolTypeSMS, Enabled: true,
		Config: map[string]any{"region": "cn"},
	})

	result, err := r.Dispatch("sms://aliyun/send",
		value.Mapping(map[string]value.Value{"phone": value.String("13800000000"), "content": value.String("hi")}),
		flow.ToolContext{TenantID: "tenant-a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AsMapping()["phone"].AsString() != "+8613800000000" {
		t.Fatalf("expected normalized phone, got %+v", result)
	}
}

func TestExecuteSvcCallRoundRobin(t *testing.T) {
	r, _, ss := newTestRegistry()
	_ = ss.SaveService(context.Background(), config.ToolService{
		TenantID: "tenant-z", Code: "orders", Type: config.ToolTypeSvc, Enabled: true,
		Config: map[string]any{"endpoints": []any{"http://a:8080", "http://b:8080"}},
	})

	first, err := r.Dispatch("svc://orders/GetOrder", value.Null, flow.ToolContext{TenantID: "tenant-z"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := r.Dispatch("svc://orders/GetOrder", value.Null, flow.ToolContext{TenantID: "tenant-z"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.AsMapping()["endpoint"].AsString() == second.AsMapping()["endpoint"].AsString() {
		t.Fatalf("expected round robin to rotate endpoints")
	}
}

func TestExecuteSvcHealth(t *testing.T) {
	r, _, ss := newTestRegistry()
	_ = ss.SaveService(context.Background(), config.ToolService{
		TenantID: "tenant-a", Code: "orders", Type: config.ToolTypeSvc, Enabled: true,
		Config: map[string]any{"endpoints": []any{"http://a:8080"}},
	})

	result, err := r.Dispatch("svc://orders/health", value.Null, flow.ToolContext{TenantID: "tenant-a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.AsMapping()["healthy"].AsBool() {
		t.Fatalf("expected healthy result, got %+v", result)
	}
}

func TestToolServiceNotFound(t *testing.T) {
	r, _, _ := newTestRegistry()
	_, err := r.Dispatch("mq://unknown/publish/x", value.Null, flow.ToolContext{TenantID: "tenant-a"})
	if err == nil {
		t.Fatalf("expected error for unknown tool service")
	}
}
