// Package trigger schedules flow executions on a cron expression or lets a
// caller fire one on demand. A Runner polls a Store for due triggers on an
// interval and dispatches each through a FlowDispatcher; next-execution
// times are computed with a standard five-field cron parser.
package trigger

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/r3e-network/flowengine/internal/flowerr"
	"github.com/r3e-network/flowengine/pkg/gml/value"
)

// Trigger is a scheduled or manual binding from a cron schedule to a flow
// execution.
type Trigger struct {
	ID            string
	TenantID      string
	FlowID        string
	Schedule      string // empty for a manual-only trigger
	Enabled       bool
	LastExecution time.Time
	NextExecution time.Time
}

// Store persists Trigger records and the polling loop's due-query.
type Store interface {
	List(ctx context.Context, tenantID string) ([]Trigger, error)
	Get(ctx context.Context, tenantID, id string) (*Trigger, error)
	Save(ctx context.Context, t Trigger) error
	Delete(ctx context.Context, tenantID, id string) error
	// Due returns enabled cron triggers whose NextExecution has passed.
	Due(ctx context.Context, now time.Time) ([]Trigger, error)
}

// InMemoryStore is a Store for tests and single-process deployments.
type InMemoryStore struct {
	mu       sync.RWMutex
	triggers map[string]Trigger
}

// NewInMemoryStore builds an empty in-memory trigger store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{triggers: map[string]Trigger{}}
}

var _ Store = (*InMemoryStore)(nil)

func (s *InMemoryStore) List(_ context.Context, tenantID string) ([]Trigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Trigger, 0)
	for _, t := range s.triggers {
		if t.TenantID == tenantID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Get(_ context.Context, tenantID, id string) (*Trigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.triggers[id]
	if !ok || t.TenantID != tenantID {
		return nil, nil
	}
	return &t, nil
}

func (s *InMemoryStore) Save(_ context.Context, t Trigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggers[t.ID] = t
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.triggers[id]; ok && t.TenantID == tenantID {
		delete(s.triggers, id)
	}
	return nil
}

func (s *InMemoryStore) Due(_ context.Context, now time.Time) ([]Trigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []Trigger
	for _, t := range s.triggers {
		if t.Enabled && t.Schedule != "" && !t.NextExecution.IsZero() && now.After(t.NextExecution) {
			due = append(due, t)
		}
	}
	return due, nil
}

// FlowDispatcher runs a tenant's flow by id, the seam a Runner calls into on
// every due trigger and on a manual Fire.
type FlowDispatcher interface {
	Execute(ctx context.Context, tenantID, flowID string, inputs value.Value) (value.Value, error)
}

// standardParser parses 5-field cron expressions (minute hour dom month
// dow).
var standardParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextExecution returns the next time schedule fires after from.
func NextExecution(schedule string, from time.Time) (time.Time, error) {
	sched, err := standardParser.Parse(schedule)
	if err != nil {
		return time.Time{}, flowerr.Wrap(flowerr.CodeParseError, "invalid cron schedule", err)
	}
	return sched.Next(from), nil
}

// Runner polls Store.Due on an interval and dispatches each due trigger,
// ported from Scheduler's Start/Stop/tick ticker loop (mutex-guarded
// cancel + WaitGroup, immediate first tick so a freshly-saved trigger
// doesn't wait a full interval).
type Runner struct {
	store      Store
	dispatcher FlowDispatcher
	interval   time.Duration
	onError    func(Trigger, error)

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewRunner builds a Runner polling every interval (defaulting to one
// second).
func NewRunner(store Store, dispatcher FlowDispatcher, interval time.Duration, onError func(Trigger, error)) *Runner {
	if interval <= 0 {
		interval = time.Second
	}
	return &Runner{store: store, dispatcher: dispatcher, interval: interval, onError: onError}
}

// Start begins the polling loop. Calling Start twice while already running
// is a no-op.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.mu.Unlock()

	go r.tick(runCtx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				r.tick(runCtx)
			}
		}
	}()
}

// Stop halts the polling loop and waits for the in-flight tick to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

func (r *Runner) tick(ctx context.Context) {
	now := time.Now()
	due, err := r.store.Due(ctx, now)
	if err != nil {
		return
	}
	for _, t := range due {
		go r.fire(ctx, t, value.Null)
	}
}

func (r *Runner) fire(ctx context.Context, t Trigger, inputs value.Value) {
	_, err := r.dispatcher.Execute(ctx, t.TenantID, t.FlowID, inputs)

	t.LastExecution = time.Now()
	if t.Schedule != "" {
		if next, nerr := NextExecution(t.Schedule, t.LastExecution); nerr == nil {
			t.NextExecution = next
		}
	}
	_ = r.store.Save(ctx, t)

	if err != nil && r.onError != nil {
		r.onError(t, err)
	}
}

// Fire runs trigger id immediately regardless of its schedule, the manual
// invocation path alongside cron-scheduled dispatch.
func (r *Runner) Fire(ctx context.Context, tenantID, id string, inputs value.Value) (value.Value, error) {
	t, err := r.store.Get(ctx, tenantID, id)
	if err != nil {
		return value.Null, err
	}
	if t == nil {
		return value.Null, flowerr.New(flowerr.CodeToolNotFound, "trigger not found: "+id)
	}
	result, err := r.dispatcher.Execute(ctx, t.TenantID, t.FlowID, inputs)
	t.LastExecution = time.Now()
	_ = r.store.Save(ctx, *t)
	return result, err
}
