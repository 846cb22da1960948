package trigger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/r3e-network/flowengine/pkg/gml/value"
)

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeDispatcher) Execute(_ context.Context, tenantID, flowID string, _ value.Value) (value.Value, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, tenantID+"/"+flowID)
	return value.Null, f.err
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestNextExecutionEveryMinute(t *testing.T) {
	from := time.Date(2026, 1, 1, 10, 30, 15, 0, time.UTC)
	next, err := NextExecution("* * * * *", from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 1, 1, 10, 31, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected %v, got %v", want, next)
	}
}

func TestNextExecutionRejectsGarbage(t *testing.T) {
	if _, err := NextExecution("not a schedule", time.Now()); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestInMemoryStoreDueRequiresEnabledAndPast(t *testing.T) {
	store := NewInMemoryStore()
	now := time.Now()

	_ = store.Save(context.Background(), Trigger{ID: "disabled", TenantID: "t1", Schedule: "* * * * *", Enabled: false, NextExecution: now.Add(-time.Minute)})
	_ = store.Save(context.Background(), Trigger{ID: "future", TenantID: "t1", Schedule: "* * * * *", Enabled: true, NextExecution: now.Add(time.Minute)})
	_ = store.Save(context.Background(), Trigger{ID: "due", TenantID: "t1", Schedule: "* * * * *", Enabled: true, NextExecution: now.Add(-time.Minute)})
	_ = store.Save(context.Background(), Trigger{ID: "manual", TenantID: "t1", Enabled: true})

	due, err := store.Due(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(due) != 1 || due[0].ID != "due" {
		t.Fatalf("expected only the due trigger, got %+v", due)
	}
}

func TestInMemoryStoreTenantIsolation(t *testing.T) {
	store := NewInMemoryStore()
	_ = store.Save(context.Background(), Trigger{ID: "t1-trigger", TenantID: "tenant-a"})
	_ = store.Save(context.Background(), Trigger{ID: "t2-trigger", TenantID: "tenant-b"})

	if got, _ := store.Get(context.Background(), "tenant-b", "t1-trigger"); got != nil {
		t.Fatalf("expected cross-tenant get to miss, got %+v", got)
	}

	list, _ := store.List(context.Background(), "tenant-a")
	if len(list) != 1 || list[0].ID != "t1-trigger" {
		t.Fatalf("unexpected tenant-scoped list: %+v", list)
	}

	_ = store.Delete(context.Background(), "tenant-b", "t1-trigger")
	if got, _ := store.Get(context.Background(), "tenant-a", "t1-trigger"); got == nil {
		t.Fatalf("cross-tenant delete must not remove another tenant's trigger")
	}
}

func TestRunnerFiresDueTriggersAndReschedules(t *testing.T) {
	store := NewInMemoryStore()
	dispatcher := &fakeDispatcher{}
	_ = store.Save(context.Background(), Trigger{
		ID: "due", TenantID: "t1", FlowID: "flow-1",
		Schedule: "* * * * *", Enabled: true, NextExecution: time.Now().Add(-time.Second),
	})

	runner := NewRunner(store, dispatcher, 10*time.Millisecond, nil)
	runner.Start(context.Background())
	deadline := time.Now().Add(time.Second)
	for dispatcher.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	runner.Stop()

	if dispatcher.count() == 0 {
		t.Fatalf("expected runner to dispatch the due trigger")
	}

	updated, _ := store.Get(context.Background(), "t1", "due")
	if updated.LastExecution.IsZero() {
		t.Fatalf("expected LastExecution to be stamped")
	}
	if !updated.NextExecution.After(time.Now().Add(-time.Minute)) {
		t.Fatalf("expected NextExecution to be rescheduled forward, got %v", updated.NextExecution)
	}
}

func TestRunnerFireRunsManualTriggerImmediately(t *testing.T) {
	store := NewInMemoryStore()
	dispatcher := &fakeDispatcher{}
	_ = store.Save(context.Background(), Trigger{ID: "manual", TenantID: "t1", FlowID: "flow-9", Enabled: true})

	runner := NewRunner(store, dispatcher, time.Hour, nil)
	if _, err := runner.Fire(context.Background(), "t1", "manual", value.Null); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dispatcher.count() != 1 {
		t.Fatalf("expected exactly one dispatch, got %d", dispatcher.count())
	}
}

func TestRunnerFireUnknownTriggerErrors(t *testing.T) {
	store := NewInMemoryStore()
	dispatcher := &fakeDispatcher{}
	runner := NewRunner(store, dispatcher, time.Hour, nil)
	if _, err := runner.Fire(context.Background(), "t1", "missing", value.Null); err == nil {
		t.Fatalf("expected error for unknown trigger")
	}
}

func TestRunnerOnErrorCallback(t *testing.T) {
	store := NewInMemoryStore()
	dispatcher := &fakeDispatcher{err: errBoom}
	_ = store.Save(context.Background(), Trigger{
		ID: "due", TenantID: "t1", FlowID: "flow-1",
		Schedule: "* * * * *", Enabled: true, NextExecution: time.Now().Add(-time.Second),
	})

	var mu sync.Mutex
	var gotErr error
	runner := NewRunner(store, dispatcher, 10*time.Millisecond, func(_ Trigger, err error) {
		mu.Lock()
		gotErr = err
		mu.Unlock()
	})

	runner.Start(context.Background())
	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		done := gotErr != nil
		mu.Unlock()
		if done || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	runner.Stop()

	mu.Lock()
	defer mu.Unlock()
	if gotErr == nil {
		t.Fatalf("expected onError to be invoked with the dispatcher's error")
	}
}

var errBoom = &boomError{}

type boomError struct{}

func (*boomError) Error() string { return "boom" }
