package flow

import (
	"sync"

	"github.com/r3e-network/flowengine/pkg/gml/value"
)

// systemVars are stripped from the final projected output (spec §3.4/§4.2.6).
var systemVars = []string{"tenantId", "buCode"}

// ToolContext carries the tenant/bu scoping and transport knobs forwarded to
// every tool dispatch call (spec §3.4, §4.4.2).
type ToolContext struct {
	TenantID  string
	BuCode    string
	TimeoutMs int64
	Headers   map[string]string
}

// ToolDispatcher is the seam the executor calls through for exec/mcp/agent
// node kinds; internal/tools.ManagedToolRegistry implements it.
type ToolDispatcher interface {
	Dispatch(uri string, args value.Value, tc ToolContext) (value.Value, error)
}

// ExecutionContext is owned by a single execution; its lifetime is bounded
// by one Scheduler.Execute call (spec §3.4).
type ExecutionContext struct {
	mu sync.Mutex

	inputs    value.Value
	variables map[string]value.Value
	globals   map[string]value.Value
	completed map[string]bool
	failed    map[string]bool

	tools   ToolDispatcher
	toolCtx ToolContext
}

// NewExecutionContext creates an empty context. Inputs, tool registry and
// tool context are attached before Scheduler.Execute runs the graph.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{
		variables: map[string]value.Value{},
		globals:   map[string]value.Value{},
		completed: map[string]bool{},
		failed:    map[string]bool{},
	}
}

func (c *ExecutionContext) SetInputs(v value.Value)            { c.mu.Lock(); c.inputs = v; c.mu.Unlock() }
func (c *ExecutionContext) SetToolDispatcher(d ToolDispatcher)  { c.mu.Lock(); c.tools = d; c.mu.Unlock() }
func (c *ExecutionContext) SetToolContext(tc ToolContext)       { c.mu.Lock(); c.toolCtx = tc; c.mu.Unlock() }

func (c *ExecutionContext) Inputs() value.Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inputs
}

// SetGlobal writes one global variable under the context's mutex. A node's
// multi-key `sets` result is merged in one critical section by
// Scheduler.applySetsOnly, so concurrent nodes never observe it partially
// applied (spec §5).
func (c *ExecutionContext) SetGlobal(key string, v value.Value) {
	c.mu.Lock()
	c.globals[key] = v
	c.mu.Unlock()
}

func (c *ExecutionContext) Global(key string) value.Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.globals[key]; ok {
		return v
	}
	return value.Null
}

// SetVariable records a node's output. Entries are present iff the node
// executed (spec §3.4's invariant).
func (c *ExecutionContext) SetVariable(nodeID string, v value.Value) {
	c.mu.Lock()
	c.variables[nodeID] = v
	c.mu.Unlock()
}

func (c *ExecutionContext) MarkCompleted(nodeID string) {
	c.mu.Lock()
	c.completed[nodeID] = true
	c.mu.Unlock()
}

func (c *ExecutionContext) MarkFailed(nodeID string) {
	c.mu.Lock()
	c.failed[nodeID] = true
	c.mu.Unlock()
}

func (c *ExecutionContext) IsCompleted(nodeID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed[nodeID]
}

func (c *ExecutionContext) IsFailed(nodeID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed[nodeID]
}

// Variables returns a snapshot copy of the per-node output map, for
// persistence.ExecutionSnapshot construction.
func (c *ExecutionContext) Variables() map[string]value.Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]value.Value, len(c.variables))
	for k, v := range c.variables {
		out[k] = v
	}
	return out
}

// CompletedNodes returns the ids of every node that has finished running.
func (c *ExecutionContext) CompletedNodes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.completed))
	for id := range c.completed {
		out = append(out, id)
	}
	return out
}

// FailedNodes returns the ids of every node that raised an unrouted error.
func (c *ExecutionContext) FailedNodes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.failed))
	for id := range c.failed {
		out = append(out, id)
	}
	return out
}

// BuildEvalContext flattens inputs, per-node variables and globals into one
// mapping for GML evaluation: a node's `step1.a` reference resolves via this
// flattened object, with globals (the most recently and explicitly written
// state) taking priority over node outputs, which in turn win over raw
// inputs on key collision.
func (c *ExecutionContext) BuildEvalContext() value.Value {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := map[string]value.Value{}
	if c.inputs.Kind() == value.KindMapping {
		for k, v := range c.inputs.AsMapping() {
			out[k] = v
		}
	}
	for k, v := range c.variables {
		out[k] = v
	}
	for k, v := range c.globals {
		out[k] = v
	}
	return value.Mapping(out)
}

// ProjectedOutput returns the mapping handed back from Scheduler.Execute:
// one entry per executed node plus the globals merged at the top level,
// with system-variable keys stripped (spec §4.2, §4.2.6).
func (c *ExecutionContext) ProjectedOutput() value.Value {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]value.Value, len(c.variables)+len(c.globals))
	for k, v := range c.globals {
		out[k] = v
	}
	for k, v := range c.variables {
		out[k] = v
	}
	for _, sv := range systemVars {
		delete(out, sv)
	}
	return value.Mapping(out)
}
