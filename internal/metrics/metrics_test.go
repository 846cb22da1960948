package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheusCollector) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if m.Counter != nil {
		return m.Counter.GetValue()
	}
	if m.Histogram != nil {
		return float64(m.Histogram.GetSampleCount())
	}
	return 0
}

type prometheusCollector interface {
	Write(*dto.Metric) error
}

func TestRecordSchedulerWaveIncrements(t *testing.T) {
	before := counterValue(t, schedulerWaves.WithLabelValues("tenant-a"))
	RecordSchedulerWave("tenant-a")
	after := counterValue(t, schedulerWaves.WithLabelValues("tenant-a"))
	if after != before+1 {
		t.Fatalf("expected increment of 1, got %v -> %v", before, after)
	}
}

func TestRecordExecutionUpdatesCounterAndHistogram(t *testing.T) {
	RecordExecution("tenant-b", "completed", 10*time.Millisecond)
	if v := counterValue(t, schedulerExecutions.WithLabelValues("tenant-b", "completed")); v < 1 {
		t.Fatalf("expected execution counter to be recorded, got %v", v)
	}
	if v := counterValue(t, schedulerDuration.WithLabelValues("tenant-b")); v < 1 {
		t.Fatalf("expected duration histogram sample, got %v", v)
	}
}

func TestRecordToolDispatchLabelsBySchemeAndOutcome(t *testing.T) {
	RecordToolDispatch("api", true, time.Millisecond)
	RecordToolDispatch("api", false, time.Millisecond)
	if v := counterValue(t, toolDispatchTotal.WithLabelValues("api", "true")); v < 1 {
		t.Fatalf("expected success counter recorded, got %v", v)
	}
	if v := counterValue(t, toolDispatchTotal.WithLabelValues("api", "false")); v < 1 {
		t.Fatalf("expected failure counter recorded, got %v", v)
	}
}

func TestInstrumentHandlerRecordsStatusAndInFlight(t *testing.T) {
	handler := InstrumentHandler("/execute", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/execute", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if v := counterValue(t, httpRequests.WithLabelValues(http.MethodPost, "/execute", "201")); v < 1 {
		t.Fatalf("expected request counter recorded, got %v", v)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	RecordSnapshotSaved("tenant-c")
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Body.Len() == 0 {
		t.Fatalf("expected non-empty metrics body")
	}
}
