// Package audit records outcome-significant security and lifecycle events
// (spec.md §3.7/§4.6): authentication, authorization, resource CRUD,
// execution lifecycle, and anomalies. Grounded on the teacher's
// system/sandbox.SecurityAuditor (a mutex-guarded, bounded ring buffer of
// AuditEvent) generalized to the tenant-scoped AuditEntry shape and given
// time/type filtered queries.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Severity classifies an AuditEntry by how serious its event type is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityAlert    Severity = "alert"
	SeverityCritical Severity = "critical"
)

// EventType enumerates the audited event categories.
type EventType string

const (
	EventAuthLogin          EventType = "auth.login"
	EventAuthLoginFailed    EventType = "auth.login_failed"
	EventAuthTokenIssued    EventType = "auth.token_issued"
	EventPermissionDenied   EventType = "permission.denied"
	EventResourceCreated    EventType = "resource.created"
	EventResourceUpdated    EventType = "resource.updated"
	EventResourceDeleted    EventType = "resource.deleted"
	EventResourceRead       EventType = "resource.read"
	EventExecutionStarted   EventType = "execution.started"
	EventExecutionCompleted EventType = "execution.completed"
	EventExecutionFailed    EventType = "execution.failed"
	EventExecutionCancelled EventType = "execution.cancelled"
	EventTenantMismatch     EventType = "security.tenant_mismatch"
	EventAnomalyDetected    EventType = "security.anomaly"
)

// severityByEventType is the pure function spec.md §3.7 requires: severity
// derives from event type alone, never from caller input.
var severityByEventType = map[EventType]Severity{
	EventAuthLogin:          SeverityInfo,
	EventAuthLoginFailed:    SeverityWarning,
	EventAuthTokenIssued:    SeverityInfo,
	EventPermissionDenied:   SeverityAlert,
	EventResourceCreated:    SeverityInfo,
	EventResourceUpdated:    SeverityInfo,
	EventResourceDeleted:    SeverityWarning,
	EventResourceRead:       SeverityInfo,
	EventExecutionStarted:   SeverityInfo,
	EventExecutionCompleted: SeverityInfo,
	EventExecutionFailed:    SeverityWarning,
	EventExecutionCancelled: SeverityInfo,
	EventTenantMismatch:     SeverityCritical,
	EventAnomalyDetected:    SeverityCritical,
}

// SeverityFor returns the severity for an event type, defaulting to Info for
// any event type not in the table rather than panicking on an unknown kind.
func SeverityFor(eventType EventType) Severity {
	if s, ok := severityByEventType[eventType]; ok {
		return s
	}
	return SeverityInfo
}

// Entry is one audit record (spec.md §3.7).
type Entry struct {
	ID           string
	Timestamp    time.Time
	EventType    EventType
	Severity     Severity
	TenantID     string
	UserID       string
	IP           string
	ResourceType string
	ResourceID   string
	Action       string
	Success      bool
	Error        string
	Metadata     map[string]any
}

// Backend is the pluggable audit sink (spec.md §4.6: "writes go to an audit
// backend that supports time-and-type filtered queries").
type Backend interface {
	Record(ctx context.Context, entry Entry) error
	Query(ctx context.Context, tenantID string, eventType EventType, since, until time.Time) ([]Entry, error)
}

// InMemoryBackend is the reference Backend: a mutex-guarded ring buffer
// bounded to maxEntries, oldest dropped first, ported from SecurityAuditor's
// log/GetEvents pattern.
type InMemoryBackend struct {
	mu         sync.Mutex
	entries    []Entry
	maxEntries int
}

// DefaultMaxEntries is the retention bound spec.md §4.6 names for the
// reference in-memory audit backend.
const DefaultMaxEntries = 10000

// NewInMemoryBackend builds a backend retaining at most maxEntries records.
// A non-positive maxEntries falls back to DefaultMaxEntries.
func NewInMemoryBackend(maxEntries int) *InMemoryBackend {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &InMemoryBackend{maxEntries: maxEntries}
}

var _ Backend = (*InMemoryBackend)(nil)

// Record appends entry, assigning an id/timestamp/severity if unset, and
// evicts the oldest record once at capacity.
func (b *InMemoryBackend) Record(_ context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Severity == "" {
		entry.Severity = SeverityFor(entry.EventType)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) >= b.maxEntries {
		b.entries = b.entries[1:]
	}
	b.entries = append(b.entries, entry)
	return nil
}

// Query returns entries matching tenantID (ignored when empty) and eventType
// (ignored when empty) whose timestamp falls in [since, until). A zero
// since/until leaves that bound unconstrained.
func (b *InMemoryBackend) Query(_ context.Context, tenantID string, eventType EventType, since, until time.Time) ([]Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := make([]Entry, 0, len(b.entries))
	for _, e := range b.entries {
		if tenantID != "" && e.TenantID != tenantID {
			continue
		}
		if eventType != "" && e.EventType != eventType {
			continue
		}
		if !since.IsZero() && e.Timestamp.Before(since) {
			continue
		}
		if !until.IsZero() && !e.Timestamp.Before(until) {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

// Logger records audit entries, swallowing backend errors (reporting them
// only through the optional onError callback) the way a security-event sink
// should never block its caller's primary operation on audit-write failure.
type Logger struct {
	backend Backend
	onError func(error)
}

// NewLogger wraps a Backend. onError may be nil, in which case record
// failures are silently dropped.
func NewLogger(backend Backend, onError func(error)) *Logger {
	return &Logger{backend: backend, onError: onError}
}

// Log hands entry to the backend unchanged; filling an unset
// ID/Timestamp/Severity is left to the backend (InMemoryBackend does).
func (l *Logger) Log(ctx context.Context, entry Entry) {
	if err := l.backend.Record(ctx, entry); err != nil && l.onError != nil {
		l.onError(err)
	}
}

// Query delegates to the backend.
func (l *Logger) Query(ctx context.Context, tenantID string, eventType EventType, since, until time.Time) ([]Entry, error) {
	return l.backend.Query(ctx, tenantID, eventType, since, until)
}
