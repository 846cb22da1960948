// Package persistence implements snapshot-based recovery for long-running
// flow executions (spec.md §4.3).
package persistence

import (
	"time"

	"github.com/r3e-network/flowengine/pkg/gml/value"
)

// ExecutionStatus is the lifecycle state of one flow execution.
type ExecutionStatus int

const (
	StatusPending ExecutionStatus = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusCancelled
	StatusPaused
)

func (s ExecutionStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	case StatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// NodeStatus is the lifecycle state of one node within an execution.
type NodeStatus int

const (
	NodePending NodeStatus = iota
	NodeRunning
	NodeCompleted
	NodeFailed
	NodeSkipped
)

func (s NodeStatus) String() string {
	switch s {
	case NodePending:
		return "pending"
	case NodeRunning:
		return "running"
	case NodeCompleted:
		return "completed"
	case NodeFailed:
		return "failed"
	case NodeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// NodeExecutionRecord is one entry in a snapshot's execution history.
type NodeExecutionRecord struct {
	NodeID     string
	StartedAt  time.Time
	EndedAt    *time.Time
	Status     NodeStatus
	Output     value.Value
	Error      string
	RetryCount int
}

// ExecutionSnapshot is the durable, recoverable state of one flow execution
// (spec.md §4.3's recovery model).
type ExecutionSnapshot struct {
	ExecutionID   string
	TenantID      string
	FlowID        string
	FlowVersion   string
	Status        ExecutionStatus
	Inputs        value.Value
	Variables     map[string]value.Value
	CompletedNodes []string
	FailedNodes   []string
	CurrentNodes  []string
	History       []NodeExecutionRecord
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Metadata      map[string]string
}

// MarkNodeCompleted records a node's successful output, moving it out of
// CurrentNodes and into CompletedNodes (idempotent on repeat calls).
func (s *ExecutionSnapshot) MarkNodeCompleted(nodeID string, output value.Value) {
	s.UpdatedAt = time.Now().UTC()
	s.CurrentNodes = removeString(s.CurrentNodes, nodeID)
	if !containsString(s.CompletedNodes, nodeID) {
		s.CompletedNodes = append(s.CompletedNodes, nodeID)
	}
	if s.Variables == nil {
		s.Variables = map[string]value.Value{}
	}
	s.Variables[nodeID] = output
}

// MarkNodeFailed records a node's failure and appends a history entry.
func (s *ExecutionSnapshot) MarkNodeFailed(nodeID, errMsg string) {
	s.UpdatedAt = time.Now().UTC()
	s.CurrentNodes = removeString(s.CurrentNodes, nodeID)
	if !containsString(s.FailedNodes, nodeID) {
		s.FailedNodes = append(s.FailedNodes, nodeID)
	}
	s.History = append(s.History, NodeExecutionRecord{
		NodeID:    nodeID,
		StartedAt: s.UpdatedAt,
		EndedAt:   &s.UpdatedAt,
		Status:    NodeFailed,
		Error:     errMsg,
	})
}

func (s *ExecutionSnapshot) AddHistory(rec NodeExecutionRecord) {
	s.UpdatedAt = time.Now().UTC()
	s.History = append(s.History, rec)
}

func (s *ExecutionSnapshot) SetStatus(status ExecutionStatus) {
	s.UpdatedAt = time.Now().UTC()
	s.Status = status
}

func containsString(ss []string, target string) bool {
	for _, s := range ss {
		if s == target {
			return true
		}
	}
	return false
}

func removeString(ss []string, target string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}
