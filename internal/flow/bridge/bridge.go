// Package bridge converts a UI-authored (nodes, edges) graph into the
// internal/flow node-field model: edges carrying a type (next/then/else/
// fail) become the corresponding FlowNode field, and a handful of node-data
// shortcuts (model-only agent, server+tool-only MCP) are expanded into full
// scheme:// URIs. Grounded on fdl-runtime/src/converter.rs's
// convert_frontend_to_executor.
package bridge

import (
	"fmt"
	"strings"

	"github.com/r3e-network/flowengine/internal/flow"
)

// EdgeType is the connection kind a UI edge declares. Unknown values
// default to EdgeNext (spec.md §4.7).
type EdgeType string

const (
	EdgeNext EdgeType = "next"
	EdgeThen EdgeType = "then"
	EdgeElse EdgeType = "else"
	EdgeFail EdgeType = "fail"
)

// Position is the UI node's canvas coordinates, carried through for
// round-tripping but never consulted by the executor.
type Position struct {
	X float64
	Y float64
}

// Case is one arm of a switch node's case list, as authored in the UI.
type Case struct {
	When string
	Then string
}

// NodeData is the UI's per-node field bag — a superset covering every node
// kind, since the UI does not tag a node with its resolved kind up front
// (resolution happens the same way internal/flow.FlowNode.Kind does: by
// field presence).
type NodeData struct {
	NodeType    string
	Label       string
	Description string
	Only        string

	Exec     string
	WithExpr string
	Sets     string
	Args     string

	When  string
	Cases []Case

	Wait string
	Each string
	Vars string

	Agent        string
	Model        string
	Instructions string

	MCP    string
	Server string
	Tool   string
}

// Node is one vertex of the UI graph.
type Node struct {
	ID       string
	NodeType string
	Position Position
	Data     NodeData
}

// EdgeData carries the connection's declared type and optional UI-only
// metadata (label, which switch case it represents).
type EdgeData struct {
	EdgeType  EdgeType
	Label     string
	CaseIndex *int
}

// Edge connects two UI nodes.
type Edge struct {
	ID     string
	Source string
	Target string
	Data   *EdgeData
}

// Meta is the UI flow's identifying metadata.
type Meta struct {
	Name        string
	Description string
}

// Graph is the UI's full flow representation: metadata, nodes, edges, and a
// raw "key = value" per line globals block.
type Graph struct {
	Meta  Meta
	Nodes []Node
	Edges []Edge
	Vars  string
}

// edgeType returns edge's declared type, defaulting to EdgeNext when the
// edge carries no data or an unrecognized type string (spec.md §4.7:
// "unknown types default to next").
func edgeType(e Edge) EdgeType {
	if e.Data == nil {
		return EdgeNext
	}
	switch e.Data.EdgeType {
	case EdgeNext, EdgeThen, EdgeElse, EdgeFail:
		return e.Data.EdgeType
	default:
		return EdgeNext
	}
}

// ToFlow converts a UI Graph into an internal/flow.Flow ready for the
// scheduler. Unlike the Rust original (which keeps a single target per
// (source, edge type) in a HashMap, silently dropping earlier edges on a
// collision), multiple "next" edges from the same source are preserved as
// FlowNode.Next's comma-separated list, since the executor itself supports
// fanning out to more than one successor per node (spec.md §4.2.5).
func ToFlow(g Graph) *flow.Flow {
	nextEdges := map[string][]string{}
	thenEdges := map[string]string{}
	elseEdges := map[string]string{}
	failEdges := map[string]string{}

	for _, e := range g.Edges {
		switch edgeType(e) {
		case EdgeThen:
			thenEdges[e.Source] = e.Target
		case EdgeElse:
			elseEdges[e.Source] = e.Target
		case EdgeFail:
			failEdges[e.Source] = e.Target
		default:
			nextEdges[e.Source] = append(nextEdges[e.Source], e.Target)
		}
	}

	nodes := make(map[string]*flow.FlowNode, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes[n.ID] = convertNode(n, nextEdges, thenEdges, elseEdges, failEdges)
	}

	return &flow.Flow{
		Meta:  flow.FlowMeta{Name: g.Meta.Name, Description: g.Meta.Description},
		Args:  flow.FlowArgs{},
		Vars:  parseVars(g.Vars),
		Nodes: nodes,
	}
}

func convertNode(n Node, nextEdges map[string][]string, thenEdges, elseEdges, failEdges map[string]string) *flow.FlowNode {
	d := n.Data

	fn := &flow.FlowNode{
		Name:        d.Label,
		Description: d.Description,
		Only:        d.Only,
		Sets:        d.Sets,
		WithExpr:    d.WithExpr,
		Next:        strings.Join(nextEdges[n.ID], ","),
		Fail:        failEdges[n.ID],
		Exec:        d.Exec,
		Args:        d.Args,
		When:        d.When,
		Then:        thenEdges[n.ID],
		ElseBranch:  elseEdges[n.ID],
		Wait:        d.Wait,
		Each:        d.Each,
		Vars:        d.Vars,
		Agent:       composeAgentURI(d),
		MCP:         composeMCPURI(d),
	}

	if len(d.Cases) > 0 {
		fn.Case = make([]flow.CaseBranch, len(d.Cases))
		for i, c := range d.Cases {
			fn.Case[i] = flow.CaseBranch{When: c.When, Then: c.Then}
		}
	}

	return fn
}

// composeAgentURI prefers an explicit agent URI and falls back to building
// agent://{model} when only a bare model name was authored (spec.md §4.7).
func composeAgentURI(d NodeData) string {
	if d.Agent != "" {
		return d.Agent
	}
	if d.Model != "" {
		return fmt.Sprintf("agent://%s", d.Model)
	}
	return ""
}

// composeMCPURI prefers an explicit mcp URI and falls back to building
// mcp://{server}/{tool} when both fields are present (spec.md §4.7).
func composeMCPURI(d NodeData) string {
	if d.MCP != "" {
		return d.MCP
	}
	if d.Server != "" && d.Tool != "" {
		return fmt.Sprintf("mcp://%s/%s", d.Server, d.Tool)
	}
	return ""
}

// parseVars splits a "key = value" per-line globals block into
// flow.GlobalInit entries in declaration order, skipping lines without an
// '='. Grounded on convert_frontend_to_executor's splitn(2, '=') parse.
func parseVars(raw string) []flow.GlobalInit {
	if raw == "" {
		return nil
	}
	var out []flow.GlobalInit
	for _, line := range strings.Split(raw, "\n") {
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		name := strings.TrimSpace(parts[0])
		expr := strings.TrimSpace(parts[1])
		if name == "" {
			continue
		}
		out = append(out, flow.GlobalInit{Name: name, Expr: expr})
	}
	return out
}
