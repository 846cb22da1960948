// Package flow implements the FlowNode graph model and the scheduler that
// drives a flow from its entry nodes to a terminal state (spec §3.2-3.4,
// §4.2).
package flow

import "strings"

// NodeKind is the variant a FlowNode resolves to based on which of its
// fields are populated. Resolution is first-match-wins in the order listed
// here.
type NodeKind int

const (
	KindCondition NodeKind = iota
	KindSwitch
	KindLoop
	KindEach
	KindSubflow
	KindExec
	KindMCP
	KindAgent
	KindWait
	KindMapping
)

func (k NodeKind) String() string {
	switch k {
	case KindCondition:
		return "condition"
	case KindSwitch:
		return "switch"
	case KindLoop:
		return "loop"
	case KindEach:
		return "each"
	case KindSubflow:
		return "subflow"
	case KindExec:
		return "exec"
	case KindMCP:
		return "mcp"
	case KindAgent:
		return "agent"
	case KindWait:
		return "wait"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// CaseBranch is one arm of a Switch node's case list.
type CaseBranch struct {
	When string
	Then string
}

// FlowNode is a single vertex in the flow graph. Its kind is derived from
// field presence (Kind()), not stored explicitly — this mirrors how flow
// definitions are authored (YAML/UI both omit a kind discriminator).
type FlowNode struct {
	Name        string
	Description string

	// Common to every kind.
	Only     string // pre-guard GML predicate
	Sets     string // post-execution GML expression merged into globals
	WithExpr string // post-execution transform producing the stored value
	Next     string // comma-separated successor ids
	Fail     string // successor id on handler error

	// Condition
	When        string
	Then        string
	ElseBranch  string

	// Switch
	Case []CaseBranch

	// Loop / Each
	Vars string // "name = expr[, name = expr]" global initializers (Loop)
	Each string // "source => item[, index]" (Each)
	Node map[string]*FlowNode

	// Exec / MCP / Agent
	Exec string
	MCP  string
	Agent string
	Args string

	// Wait
	Wait string
}

// Kind resolves the node's variant by field presence, first match wins
// (spec §3.3's resolution table).
func (n *FlowNode) Kind() NodeKind {
	switch {
	case n.When != "" && (n.Then != "" || n.ElseBranch != ""):
		return KindCondition
	case len(n.Case) > 0:
		return KindSwitch
	case n.Vars != "" && n.When != "" && n.Node != nil:
		return KindLoop
	case n.Each != "" && n.Node != nil:
		return KindEach
	case n.Node != nil:
		return KindSubflow
	case n.Exec != "":
		return KindExec
	case n.MCP != "":
		return KindMCP
	case n.Agent != "":
		return KindAgent
	case n.Wait != "":
		return KindWait
	default:
		return KindMapping
	}
}

// NextIDs splits the comma-separated Next field, trimming whitespace.
func (n *FlowNode) NextIDs() []string {
	return splitIDs(n.Next)
}

func splitIDs(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FlowArgs describes the flow's declared input parameters and its optional
// output projection (spec §3.2). The input schema is kept opaque (adapters
// validate against it); Out names the top-level keys retained when the
// caller requests a projected result.
type FlowArgs struct {
	In  map[string]any
	Out []string
}

// FlowMeta is the flow's identifying metadata.
type FlowMeta struct {
	Name        string
	Description string
}

// GlobalInit is one `name = expr` global initializer, evaluated once at
// flow start in declaration order (order matters: a later initializer may
// reference an earlier one).
type GlobalInit struct {
	Name string
	Expr string
}

// Flow is an immutable flow definition — one per execution, shared
// read-only across all its nodes and sub-graphs.
type Flow struct {
	Meta  FlowMeta
	Args  FlowArgs
	Vars  []GlobalInit
	Nodes map[string]*FlowNode
}
