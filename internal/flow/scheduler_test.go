package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/flowengine/pkg/gml/value"
)

func runFlow(t *testing.T, nodes map[string]*FlowNode, inputs value.Value) value.Value {
	t.Helper()
	s := New(nil, nil)
	f := &Flow{Nodes: nodes}
	out, err := s.Execute(f, inputs, nil, ToolContext{})
	require.NoError(t, err)
	return out
}

func TestSchedulerSimpleMappingFlow(t *testing.T) {
	out := runFlow(t, map[string]*FlowNode{
		"compute": {WithExpr: "result = 1 + 2"},
	}, value.Null)
	compute := out.AsMapping()["compute"]
	assert.Equal(t, int64(3), compute.AsMapping()["result"].AsInt())
}

func TestSchedulerLinearChain(t *testing.T) {
	out := runFlow(t, map[string]*FlowNode{
		"step1": {WithExpr: "a = 10", Next: "step2"},
		"step2": {WithExpr: "b = step1.a * 2", Next: "step3"},
		"step3": {WithExpr: "c = step2.b + 5"},
	}, value.Null)
	m := out.AsMapping()
	assert.Equal(t, int64(10), m["step1"].AsMapping()["a"].AsInt())
	assert.Equal(t, int64(20), m["step2"].AsMapping()["b"].AsInt())
	assert.Equal(t, int64(25), m["step3"].AsMapping()["c"].AsInt())
}

func TestSchedulerConditionTrueBranch(t *testing.T) {
	out := runFlow(t, map[string]*FlowNode{
		"check": {When: "true", Then: "yes", ElseBranch: "no"},
		"yes":   {WithExpr: "answer = 'correct'"},
		"no":    {WithExpr: "answer = 'wrong'"},
	}, value.Null)
	m := out.AsMapping()
	assert.Equal(t, "correct", m["yes"].AsMapping()["answer"].AsString())
	_, hasNo := m["no"]
	assert.False(t, hasNo)
}

func TestSchedulerConditionFalseBranch(t *testing.T) {
	out := runFlow(t, map[string]*FlowNode{
		"check": {When: "1 > 5", Then: "yes", ElseBranch: "no"},
		"yes":   {WithExpr: "answer = 'correct'"},
		"no":    {WithExpr: "answer = 'wrong'"},
	}, value.Null)
	m := out.AsMapping()
	assert.Equal(t, "wrong", m["no"].AsMapping()["answer"].AsString())
	_, hasYes := m["yes"]
	assert.False(t, hasYes)
}

func TestSchedulerSwitchNode(t *testing.T) {
	out := runFlow(t, map[string]*FlowNode{
		"setup": {WithExpr: "value = 2", Next: "route"},
		"route": {
			Case: []CaseBranch{
				{When: "setup.value == 1", Then: "case1"},
				{When: "setup.value == 2", Then: "case2"},
				{When: "setup.value == 3", Then: "case3"},
			},
			ElseBranch: "default",
		},
		"case1":   {WithExpr: "matched = 'one'"},
		"case2":   {WithExpr: "matched = 'two'"},
		"case3":   {WithExpr: "matched = 'three'"},
		"default": {WithExpr: "matched = 'default'"},
	}, value.Null)
	m := out.AsMapping()
	assert.Equal(t, "two", m["case2"].AsMapping()["matched"].AsString())
	for _, k := range []string{"case1", "case3", "default"} {
		_, has := m[k]
		assert.False(t, has, k)
	}
}

func TestSchedulerOnlyGuardSkipsNodeButNotChain(t *testing.T) {
	out := runFlow(t, map[string]*FlowNode{
		"setup": {WithExpr: "skip = true", Next: "maybe"},
		"maybe": {Only: "!setup.skip", WithExpr: "ran = true", Next: "final"},
		"final": {WithExpr: "done = true"},
	}, value.Null)
	m := out.AsMapping()
	_, hasMaybe := m["maybe"]
	assert.False(t, hasMaybe)
	assert.Equal(t, true, m["final"].AsMapping()["done"].AsBool())
}

func TestSchedulerParallelIndependentNodes(t *testing.T) {
	out := runFlow(t, map[string]*FlowNode{
		"nodeA": {WithExpr: "a = 'A'"},
		"nodeB": {WithExpr: "b = 'B'"},
	}, value.Null)
	m := out.AsMapping()
	assert.Equal(t, "A", m["nodeA"].AsMapping()["a"].AsString())
	assert.Equal(t, "B", m["nodeB"].AsMapping()["b"].AsString())
}

func TestSchedulerInputParameters(t *testing.T) {
	inputs := value.Mapping(map[string]value.Value{"name": value.String("World")})
	out := runFlow(t, map[string]*FlowNode{
		"greet": {WithExpr: "message = 'Hello, ' + name"},
	}, inputs)
	m := out.AsMapping()
	assert.Equal(t, "Hello, World", m["greet"].AsMapping()["message"].AsString())
}

func TestSchedulerEachNodeIteration(t *testing.T) {
	out := runFlow(t, map[string]*FlowNode{
		"setup": {WithExpr: "numbers = [1, 2, 3]", Next: "iterate"},
		"iterate": {
			Each: "setup.numbers => item, idx",
			Node: map[string]*FlowNode{
				"double": {WithExpr: "value = item * 2"},
			},
		},
	}, value.Null)
	m := out.AsMapping()
	assert.Equal(t, int64(6), m["double"].AsMapping()["value"].AsInt())
}

func TestSchedulerLoopNodeIteration(t *testing.T) {
	out := runFlow(t, map[string]*FlowNode{
		"counter": {
			Vars: "count = 0",
			When: "count < 5",
			Node: map[string]*FlowNode{
				"increment": {Sets: "count = count + 1", WithExpr: "step = count"},
			},
			WithExpr: "final = count",
		},
	}, value.Null)
	m := out.AsMapping()
	assert.Equal(t, int64(5), m["counter"].AsMapping()["final"].AsInt())
}

type stubDispatcher struct{}

func (stubDispatcher) Dispatch(uri string, args value.Value, tc ToolContext) (value.Value, error) {
	return value.Mapping(map[string]value.Value{
		"success": value.Bool(true),
		"tool":    value.String(uri),
	}), nil
}

func TestSchedulerExecNodeDispatch(t *testing.T) {
	s := New(nil, nil)
	f := &Flow{Nodes: map[string]*FlowNode{
		"call_api": {Exec: "api://test/endpoint", Args: "param = 'value'"},
	}}
	out, err := s.Execute(f, value.Null, stubDispatcher{}, ToolContext{})
	require.NoError(t, err)
	callResult := out.AsMapping()["call_api"]
	assert.Equal(t, true, callResult.AsMapping()["success"].AsBool())
	assert.Equal(t, "api://test/endpoint", callResult.AsMapping()["tool"].AsString())
}

type failingDispatcher struct{}

func (failingDispatcher) Dispatch(uri string, args value.Value, tc ToolContext) (value.Value, error) {
	return value.Null, assert.AnError
}

func TestSchedulerExecFailRoutesToFailTarget(t *testing.T) {
	s := New(nil, nil)
	f := &Flow{Nodes: map[string]*FlowNode{
		"call_api": {Exec: "api://test/endpoint", Fail: "handle_error"},
		"handle_error": {WithExpr: "recovered = true"},
	}}
	out, err := s.Execute(f, value.Null, failingDispatcher{}, ToolContext{})
	require.NoError(t, err)
	m := out.AsMapping()
	assert.Equal(t, true, m["handle_error"].AsMapping()["recovered"].AsBool())
}

func TestSchedulerExecFailWithoutRouteIsFatal(t *testing.T) {
	s := New(nil, nil)
	f := &Flow{Nodes: map[string]*FlowNode{
		"call_api": {Exec: "api://test/endpoint"},
	}}
	_, err := s.Execute(f, value.Null, failingDispatcher{}, ToolContext{})
	require.Error(t, err)
}

func TestSchedulerTernaryExpression(t *testing.T) {
	out := runFlow(t, map[string]*FlowNode{
		"data":  {WithExpr: "score = 85", Next: "check"},
		"check": {WithExpr: "grade = data.score >= 60 ? 'pass' : 'fail'"},
	}, value.Null)
	m := out.AsMapping()
	assert.Equal(t, "pass", m["check"].AsMapping()["grade"].AsString())
}
