package bridge

import "testing"

func TestToFlowMapsEdgeTypesToFields(t *testing.T) {
	g := Graph{
		Meta: Meta{Name: "demo"},
		Nodes: []Node{
			{ID: "cond-1", Data: NodeData{Label: "check", When: "x > 0"}},
			{ID: "ok", Data: NodeData{Label: "ok", WithExpr: "y = 1"}},
			{ID: "bad", Data: NodeData{Label: "bad", WithExpr: "y = -1"}},
			{ID: "cleanup", Data: NodeData{Label: "cleanup", WithExpr: "done = true"}},
		},
		Edges: []Edge{
			{Source: "cond-1", Target: "ok", Data: &EdgeData{EdgeType: EdgeThen}},
			{Source: "cond-1", Target: "bad", Data: &EdgeData{EdgeType: EdgeElse}},
			{Source: "ok", Target: "cleanup", Data: &EdgeData{EdgeType: EdgeNext}},
		},
	}

	f := ToFlow(g)
	cond := f.Nodes["cond-1"]
	if cond.Then != "ok" || cond.ElseBranch != "bad" {
		t.Fatalf("unexpected branch wiring: then=%q else=%q", cond.Then, cond.ElseBranch)
	}
	if f.Nodes["ok"].Next != "cleanup" {
		t.Fatalf("unexpected next wiring: %q", f.Nodes["ok"].Next)
	}
}

func TestToFlowDefaultsUnknownEdgeTypeToNext(t *testing.T) {
	g := Graph{
		Nodes: []Node{{ID: "a"}, {ID: "b"}},
		Edges: []Edge{{Source: "a", Target: "b", Data: &EdgeData{EdgeType: "weird"}}},
	}
	f := ToFlow(g)
	if f.Nodes["a"].Next != "b" {
		t.Fatalf("expected unknown edge type to default to next, got %q", f.Nodes["a"].Next)
	}
}

func TestToFlowPreservesMultipleNextEdges(t *testing.T) {
	g := Graph{
		Nodes: []Node{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		Edges: []Edge{
			{Source: "a", Target: "b"},
			{Source: "a", Target: "c"},
		},
	}
	f := ToFlow(g)
	if f.Nodes["a"].Next != "b,c" {
		t.Fatalf("expected fan-out to be preserved, got %q", f.Nodes["a"].Next)
	}
}

func TestToFlowBuildsAgentURIFromModel(t *testing.T) {
	g := Graph{Nodes: []Node{{ID: "a", Data: NodeData{Model: "gpt-4"}}}}
	f := ToFlow(g)
	if f.Nodes["a"].Agent != "agent://gpt-4" {
		t.Fatalf("unexpected agent uri: %q", f.Nodes["a"].Agent)
	}
}

func TestToFlowPrefersExplicitAgentURI(t *testing.T) {
	g := Graph{Nodes: []Node{{ID: "a", Data: NodeData{Agent: "agent://custom", Model: "gpt-4"}}}}
	f := ToFlow(g)
	if f.Nodes["a"].Agent != "agent://custom" {
		t.Fatalf("expected explicit uri to win, got %q", f.Nodes["a"].Agent)
	}
}

func TestToFlowBuildsMCPURIFromServerAndTool(t *testing.T) {
	g := Graph{Nodes: []Node{{ID: "a", Data: NodeData{Server: "filesystem", Tool: "read_file"}}}}
	f := ToFlow(g)
	if f.Nodes["a"].MCP != "mcp://filesystem/read_file" {
		t.Fatalf("unexpected mcp uri: %q", f.Nodes["a"].MCP)
	}
}

func TestToFlowSwitchCasesCopiedDirectly(t *testing.T) {
	g := Graph{
		Nodes: []Node{{ID: "a", Data: NodeData{Cases: []Case{
			{When: "x == 1", Then: "one"},
			{When: "x == 2", Then: "two"},
		}}}},
	}
	f := ToFlow(g)
	if len(f.Nodes["a"].Case) != 2 || f.Nodes["a"].Case[1].Then != "two" {
		t.Fatalf("unexpected case list: %+v", f.Nodes["a"].Case)
	}
}

func TestParseVarsSkipsMalformedLines(t *testing.T) {
	g := Graph{Vars: "count = 0\nnot-a-var\nname = 'demo'"}
	f := ToFlow(g)
	if len(f.Vars) != 2 || f.Vars[0].Name != "count" || f.Vars[1].Expr != "'demo'" {
		t.Fatalf("unexpected parsed vars: %+v", f.Vars)
	}
}
