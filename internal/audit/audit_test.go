package audit

import (
	"context"
	"testing"
	"time"
)

func TestSeverityForKnownAndUnknown(t *testing.T) {
	if SeverityFor(EventTenantMismatch) != SeverityCritical {
		t.Fatalf("expected tenant mismatch to be critical")
	}
	if SeverityFor(EventAuthLogin) != SeverityInfo {
		t.Fatalf("expected login to be info")
	}
	if SeverityFor(EventType("made.up")) != SeverityInfo {
		t.Fatalf("expected unknown event type to default to info")
	}
}

func TestInMemoryBackendRecordAssignsDefaults(t *testing.T) {
	b := NewInMemoryBackend(10)
	err := b.Record(context.Background(), Entry{TenantID: "tenant-a", EventType: EventResourceDeleted, Action: "delete"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	results, err := b.Query(context.Background(), "tenant-a", "", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(results))
	}
	if results[0].ID == "" || results[0].Timestamp.IsZero() {
		t.Fatalf("expected id/timestamp to be assigned, got %+v", results[0])
	}
	if results[0].Severity != SeverityWarning {
		t.Fatalf("expected severity to be derived, got %s", results[0].Severity)
	}
}

func TestInMemoryBackendEvictsOldest(t *testing.T) {
	b := NewInMemoryBackend(3)
	for i := 0; i < 5; i++ {
		_ = b.Record(context.Background(), Entry{TenantID: "tenant-a", EventType: EventResourceRead, Action: "read"})
	}
	results, _ := b.Query(context.Background(), "tenant-a", "", time.Time{}, time.Time{})
	if len(results) != 3 {
		t.Fatalf("expected retention bound to cap entries at 3, got %d", len(results))
	}
}

func TestInMemoryBackendFiltersByTenantAndType(t *testing.T) {
	b := NewInMemoryBackend(100)
	_ = b.Record(context.Background(), Entry{TenantID: "tenant-a", EventType: EventAuthLogin})
	_ = b.Record(context.Background(), Entry{TenantID: "tenant-b", EventType: EventAuthLogin})
	_ = b.Record(context.Background(), Entry{TenantID: "tenant-a", EventType: EventAuthLoginFailed})

	results, _ := b.Query(context.Background(), "tenant-a", EventAuthLogin, time.Time{}, time.Time{})
	if len(results) != 1 {
		t.Fatalf("expected 1 filtered entry, got %d", len(results))
	}
}

func TestInMemoryBackendFiltersByTimeRange(t *testing.T) {
	b := NewInMemoryBackend(100)
	now := time.Now().UTC()
	_ = b.Record(context.Background(), Entry{TenantID: "tenant-a", EventType: EventAuthLogin, Timestamp: now.Add(-time.Hour)})
	_ = b.Record(context.Background(), Entry{TenantID: "tenant-a", EventType: EventAuthLogin, Timestamp: now})

	results, _ := b.Query(context.Background(), "tenant-a", "", now.Add(-time.Minute), time.Time{})
	if len(results) != 1 {
		t.Fatalf("expected only the recent entry, got %d", len(results))
	}
}

func TestLoggerCallsOnErrorOnFailure(t *testing.T) {
	var captured error
	l := NewLogger(failingBackend{}, func(err error) { captured = err })
	l.Log(context.Background(), Entry{TenantID: "tenant-a", EventType: EventAuthLogin})
	if captured == nil {
		t.Fatalf("expected onError to be invoked")
	}
}

type failingBackend struct{}

func (failingBackend) Record(context.Context, Entry) error { return errBoom }
func (failingBackend) Query(context.Context, string, EventType, time.Time, time.Time) ([]Entry, error) {
	return nil, nil
}

var errBoom = &boomError{}

type boomError struct{}

func (*boomError) Error() string { return "boom" }
