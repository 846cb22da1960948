package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/r3e-network/flowengine/internal/flow"
	"github.com/r3e-network/flowengine/pkg/gml/value"
)

type stubDispatcher struct{}

func (stubDispatcher) Dispatch(uri string, args value.Value, tc flow.ToolContext) (value.Value, error) {
	return value.Null, nil
}

func singleNodeFlow() *flow.Flow {
	return &flow.Flow{
		Meta:  flow.FlowMeta{Name: "noop"},
		Nodes: map[string]*flow.FlowNode{
			"start": {Name: "start", WithExpr: "1"},
		},
	}
}

func newTestServer() *Server {
	gin.SetMode(gin.TestMode)
	return NewServer(NewFlowRegistry(), stubDispatcher{}, nil, nil)
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	engine.ServeHTTP(rr, req)
	return rr
}

func TestExecuteRequiresAFlowSource(t *testing.T) {
	s := newTestServer()
	rr := doJSON(t, s.Router(), http.MethodPost, "/v1/tenants/t1/execute", map[string]any{})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestExecuteByInlineFlowReturnsAccepted(t *testing.T) {
	s := newTestServer()
	f := singleNodeFlow()
	raw, _ := json.Marshal(f)
	rr := doJSON(t, s.Router(), http.MethodPost, "/v1/tenants/t1/execute", map[string]any{
		"flow": json.RawMessage(raw),
	})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp executeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ExecutionID == "" {
		t.Fatalf("expected a non-empty execution id")
	}
}

func TestSaveAndExecuteByFlowID(t *testing.T) {
	s := newTestServer()
	engine := s.Router()

	f := singleNodeFlow()
	raw, _ := json.Marshal(f)
	saveRR := doJSON(t, engine, http.MethodPost, "/v1/tenants/t1/flows/greet", map[string]any{
		"flow": json.RawMessage(raw),
	})
	if saveRR.Code != http.StatusNoContent {
		t.Fatalf("expected 204 saving flow, got %d: %s", saveRR.Code, saveRR.Body.String())
	}

	execRR := doJSON(t, engine, http.MethodPost, "/v1/tenants/t1/execute", map[string]any{
		"flow_id": "greet",
	})
	if execRR.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", execRR.Code, execRR.Body.String())
	}
}

func TestExecuteUnknownFlowIDReturnsBadRequest(t *testing.T) {
	s := newTestServer()
	rr := doJSON(t, s.Router(), http.MethodPost, "/v1/tenants/t1/execute", map[string]any{
		"flow_id": "missing",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestStatusUnknownExecutionReturnsNotFound(t *testing.T) {
	s := newTestServer()
	rr := doJSON(t, s.Router(), http.MethodGet, "/v1/tenants/t1/executions/missing/status", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestStatusReflectsCompletedExecution(t *testing.T) {
	s := newTestServer()
	engine := s.Router()
	f := singleNodeFlow()
	raw, _ := json.Marshal(f)
	execRR := doJSON(t, engine, http.MethodPost, "/v1/tenants/t1/execute", map[string]any{
		"flow": json.RawMessage(raw),
	})
	var resp executeResponse
	_ = json.Unmarshal(execRR.Body.Bytes(), &resp)

	deadline := time.Now().Add(time.Second)
	var statusRR *httptest.ResponseRecorder
	for time.Now().Before(deadline) {
		statusRR = doJSON(t, engine, http.MethodGet, "/v1/tenants/t1/executions/"+resp.ExecutionID+"/status", nil)
		var sr statusResponse
		_ = json.Unmarshal(statusRR.Body.Bytes(), &sr)
		if sr.Status == "completed" || sr.Status == "failed" {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("execution never reached a terminal status, last body: %s", statusRR.Body.String())
}

func TestCancelUnknownExecutionReturnsNotFound(t *testing.T) {
	s := newTestServer()
	rr := doJSON(t, s.Router(), http.MethodPost, "/v1/tenants/t1/executions/missing/cancel", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestCancelTenantMismatchReturnsNotFound(t *testing.T) {
	s := newTestServer()
	rec := s.track.Begin("tenant-a")
	rr := doJSON(t, s.Router(), http.MethodPost, "/v1/tenants/tenant-b/executions/"+rec.ID+"/cancel", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for cross-tenant cancel, got %d", rr.Code)
	}
}

func TestHealthzAndMetricsRoutes(t *testing.T) {
	s := newTestServer()
	engine := s.Router()

	rr := doJSON(t, engine, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from healthz, got %d", rr.Code)
	}

	rr = doJSON(t, engine, http.MethodGet, "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from metrics, got %d", rr.Code)
	}
}
