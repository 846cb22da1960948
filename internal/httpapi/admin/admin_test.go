package admin

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/r3e-network/flowengine/internal/config"
)

const petStoreV3 = `{
  "openapi": "3.0.0",
  "info": {"title": "Pet Store API", "version": "1.0.0"},
  "servers": [{"url": "https://api.petstore.com/v1"}],
  "paths": {
    "/pets": {
      "get": {
        "operationId": "listPets",
        "responses": {"200": {"content": {"application/json": {"schema": {"type": "array"}}}}}
      }
    }
  }
}`

func TestAPIServiceCRUDRoundTrip(t *testing.T) {
	store := config.NewInMemoryConfigStore()
	router := NewRouter(store).Mount()

	cfg := config.ApiServiceConfig{DisplayName: "Payments", BaseURL: "https://pay.example.com", Enabled: true}
	body, _ := json.Marshal(cfg)

	req := httptest.NewRequest(http.MethodPut, "/tenants/t1/api-services/payments", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 saving service, got %d: %s", rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/tenants/t1/api-services/payments", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 getting service, got %d", rr.Code)
	}
	var got config.ApiServiceConfig
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Name != "payments" || got.BaseURL != cfg.BaseURL {
		t.Fatalf("unexpected round-tripped config: %+v", got)
	}

	req = httptest.NewRequest(http.MethodDelete, "/tenants/t1/api-services/payments", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 deleting service, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/tenants/t1/api-services/payments", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}
}

func TestListUdfsIncludesBuiltins(t *testing.T) {
	store := config.NewInMemoryConfigStore()
	router := NewRouter(store).Mount()

	req := httptest.NewRequest(http.MethodGet, "/tenants/t1/udfs", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var udfs []config.UdfConfig
	if err := json.Unmarshal(rr.Body.Bytes(), &udfs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(udfs) == 0 {
		t.Fatalf("expected built-in udfs to be listed")
	}
}

func TestDiscoveryImportSavesAPIServiceAndTools(t *testing.T) {
	configStore := config.NewInMemoryConfigStore()
	serviceStore := config.NewInMemoryToolServiceStore()
	router := NewDiscoveryRouter(configStore, serviceStore).Mount()

	req := httptest.NewRequest(http.MethodPost, "/tenants/t1/discovery/petstore", bytes.NewReader([]byte(petStoreV3)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	saved, err := configStore.GetApiService(req.Context(), "t1", "petstore")
	if err != nil || saved == nil {
		t.Fatalf("expected api service to be saved, err=%v saved=%v", err, saved)
	}
	if saved.BaseURL != "https://api.petstore.com/v1" {
		t.Fatalf("unexpected base url: %s", saved.BaseURL)
	}

	tools, err := serviceStore.ListTools(req.Context(), "t1", "petstore")
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	if len(tools) != 1 {
		t.Fatalf("expected 1 discovered tool, got %d", len(tools))
	}
}

func TestDiscoveryImportRejectsInvalidSpec(t *testing.T) {
	configStore := config.NewInMemoryConfigStore()
	router := NewDiscoveryRouter(configStore, nil).Mount()

	req := httptest.NewRequest(http.MethodPost, "/tenants/t1/discovery/broken", bytes.NewReader([]byte(`not json or yaml: [`)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
