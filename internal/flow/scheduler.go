package flow

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/r3e-network/flowengine/pkg/gml/eval"
	"github.com/r3e-network/flowengine/pkg/gml/value"
	"github.com/r3e-network/flowengine/pkg/logger"
)

// maxLoopIterations bounds Loop-kind nodes against a runaway `when` guard
// that never turns false.
const maxLoopIterations = 100000

// Metrics are the scheduler's prometheus counters, registered once by the
// embedder and passed in (nil is safe — every call is guarded).
type Metrics struct {
	WavesTotal      prometheus.Counter
	NodesRun        prometheus.Counter
	NodesSkipped    prometheus.Counter
	NodesFailed     prometheus.Counter
}

// Scheduler drives one flow's node graph from entry nodes to a terminal
// state (spec §4.2).
type Scheduler struct {
	log     *logger.Logger
	metrics *Metrics
}

// New builds a Scheduler. log/metrics may be nil.
func New(log *logger.Logger, metrics *Metrics) *Scheduler {
	if log == nil {
		log = logger.NewDefault("flow-scheduler")
	}
	return &Scheduler{log: log, metrics: metrics}
}

// Execute runs flow to completion and returns the projected output mapping:
// one entry per executed node plus globals merged at the top level, with
// system-variable keys removed (spec §4.2, §4.2.6).
func (s *Scheduler) Execute(f *Flow, inputs value.Value, tools ToolDispatcher, tc ToolContext) (value.Value, error) {
	ec := NewExecutionContext()
	ec.SetInputs(inputs)
	ec.SetToolDispatcher(tools)
	ec.SetToolContext(tc)
	ec.SetGlobal("tenantId", value.String(tc.TenantID))
	ec.SetGlobal("buCode", value.String(tc.BuCode))

	for _, g := range f.Vars {
		v, err := eval.EvalSource(g.Expr, eval.Context(ec.BuildEvalContext().AsMapping()))
		if err != nil {
			return value.Null, &InvalidFlowError{Message: "global initializer " + g.Name + ": " + err.Error()}
		}
		ec.SetGlobal(g.Name, v)
	}

	if err := s.runGraph(f.Nodes, ec); err != nil {
		return value.Null, err
	}
	return ec.ProjectedOutput(), nil
}

// waveState is the shared, mutex-guarded bookkeeping for one runGraph call:
// per-node remaining-predecessor counts, whether any live edge has reached
// each node, and which nodes have already been queued for dispatch.
type waveState struct {
	mu         sync.Mutex
	pred       map[string]int
	active     map[string]bool
	dispatched map[string]bool
	next       []string
}

func (ws *waveState) resolve(target string, isActive bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if isActive {
		ws.active[target] = true
	}
	ws.pred[target]--
	if ws.pred[target] == 0 && !ws.dispatched[target] {
		ws.dispatched[target] = true
		ws.next = append(ws.next, target)
	}
}

// staticTargets returns every successor id a node may statically reach via
// next/then/else/case — the edges counted toward readiness (spec §3.3's DAG
// invariant; `fail` is deliberately excluded, it is an out-of-band jump).
func staticTargets(n *FlowNode) []string {
	var out []string
	out = append(out, n.NextIDs()...)
	if n.Then != "" {
		out = append(out, n.Then)
	}
	if n.ElseBranch != "" {
		out = append(out, n.ElseBranch)
	}
	for _, c := range n.Case {
		if c.Then != "" {
			out = append(out, c.Then)
		}
	}
	return out
}

// runGraph executes one node map (a flow's top-level graph, or a Loop/Each
// sub-graph) to completion, writing every node's output directly into ec
// (shared across nested graphs, so inner node ids surface at the top level —
// spec §4.2.4's Each/Loop behavior).
func (s *Scheduler) runGraph(nodes map[string]*FlowNode, ec *ExecutionContext) error {
	ws := &waveState{
		pred:       map[string]int{},
		active:     map[string]bool{},
		dispatched: map[string]bool{},
	}
	for id := range nodes {
		ws.pred[id] = 0
	}
	for _, n := range nodes {
		for _, t := range staticTargets(n) {
			if _, ok := nodes[t]; !ok {
				return &InvalidNodeError{NodeID: t, Message: "referenced but not defined in this graph"}
			}
			ws.pred[t]++
		}
	}

	var wave []string
	for id, c := range ws.pred {
		if c == 0 {
			ws.dispatched[id] = true
			ws.active[id] = true
			wave = append(wave, id)
		}
	}

	for len(wave) > 0 {
		if s.metrics != nil && s.metrics.WavesTotal != nil {
			s.metrics.WavesTotal.Inc()
		}
		var wg sync.WaitGroup
		var mu sync.Mutex
		var fatal error

		for _, id := range wave {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				node := nodes[id]
				isActive := ws.active[id]
				err := s.dispatchNode(id, node, ec, nodes, ws, isActive)
				if err != nil {
					mu.Lock()
					if fatal == nil {
						fatal = err
					}
					mu.Unlock()
				}
			}(id)
		}
		wg.Wait()
		if fatal != nil {
			return fatal
		}

		ws.mu.Lock()
		wave = ws.next
		ws.next = nil
		ws.mu.Unlock()
	}
	return nil
}

// dispatchNode runs (or elides) one node and propagates its edges into ws
// for the next wave. A node reached with isActive==false never ran any
// predecessor's chosen branch — it is skipped by cascade, not by its own
// `only` guard, but propagates exactly like an `only`-skip so the remainder
// of the chain is not starved (spec §4.2.3).
func (s *Scheduler) dispatchNode(id string, node *FlowNode, ec *ExecutionContext, nodes map[string]*FlowNode, ws *waveState, isActive bool) error {
	if !isActive {
		s.propagateSkip(node, ws)
		return nil
	}

	onlyOK, err := evalGuard(node.Only, true, ec)
	if err != nil {
		return &NodeError{NodeID: id, Err: err}
	}
	if !onlyOK {
		if s.metrics != nil && s.metrics.NodesSkipped != nil {
			s.metrics.NodesSkipped.Inc()
		}
		s.propagateSkip(node, ws)
		return nil
	}

	chosen, failed, err := s.runNode(id, node, ec)
	if err != nil {
		if node.Fail != "" {
			ec.MarkFailed(id)
			if s.metrics != nil && s.metrics.NodesFailed != nil {
				s.metrics.NodesFailed.Inc()
			}
			s.log.WithField("node", id).WithError(err).Warn("node failed, routing to fail target")
			return s.runGraph(map[string]*FlowNode{node.Fail: nodes[node.Fail]}, ec)
		}
		ec.MarkFailed(id)
		if s.metrics != nil && s.metrics.NodesFailed != nil {
			s.metrics.NodesFailed.Inc()
		}
		return &NodeError{NodeID: id, Err: err}
	}
	_ = failed

	ec.MarkCompleted(id)
	if s.metrics != nil && s.metrics.NodesRun != nil {
		s.metrics.NodesRun.Inc()
	}

	switch node.Kind() {
	case KindCondition:
		branch := node.ElseBranch
		if chosen {
			branch = node.Then
		}
		for _, t := range node.NextIDs() {
			ws.resolve(t, true)
		}
		if node.Then != "" && node.Then != branch {
			ws.resolve(node.Then, false)
		}
		if node.ElseBranch != "" && node.ElseBranch != branch {
			ws.resolve(node.ElseBranch, false)
		}
		if branch != "" {
			ws.resolve(branch, true)
		}
	case KindSwitch:
		chosenTarget := switchTarget(node, ec)
		for _, t := range node.NextIDs() {
			ws.resolve(t, true)
		}
		for _, c := range node.Case {
			if c.Then == chosenTarget {
				ws.resolve(c.Then, true)
			} else if c.Then != "" {
				ws.resolve(c.Then, false)
			}
		}
		if chosenTarget == node.ElseBranch && node.ElseBranch != "" {
			ws.resolve(node.ElseBranch, true)
		} else if node.ElseBranch != "" {
			ws.resolve(node.ElseBranch, false)
		}
	default:
		for _, t := range node.NextIDs() {
			ws.resolve(t, true)
		}
	}
	return nil
}

// propagateSkip marks every static successor active (trivially satisfied),
// matching the documented behavior for both `only`-skips and cascade-skips
// — the rest of the chain keeps moving.
func (s *Scheduler) propagateSkip(node *FlowNode, ws *waveState) {
	for _, t := range staticTargets(node) {
		ws.resolve(t, true)
	}
}

func evalGuard(src string, defaultVal bool, ec *ExecutionContext) (bool, error) {
	if src == "" {
		return defaultVal, nil
	}
	v, err := eval.EvalSource(src, eval.Context(ec.BuildEvalContext().AsMapping()))
	if err != nil {
		return false, err
	}
	return v.Truthy(), nil
}

// switchTarget evaluates a Switch node's case list at dispatch time,
// independent of the boolean `chosen` flag runNode returns (which only
// carries Condition's branch decision) — recomputing here keeps the two
// kinds' dispatch code paths decoupled and easy to read in isolation.
func switchTarget(node *FlowNode, ec *ExecutionContext) string {
	for _, c := range node.Case {
		ok, err := evalGuard(c.When, false, ec)
		if err == nil && ok {
			return c.Then
		}
	}
	return node.ElseBranch
}

// runNode executes one node's kind-specific behavior. The returned bool is
// Condition's branch decision (true => Then); it is meaningless for other
// kinds. Handler/tool errors are returned as-is for the caller to route via
// `fail` or propagate as fatal.
func (s *Scheduler) runNode(id string, node *FlowNode, ec *ExecutionContext) (conditionTrue bool, failedNode bool, err error) {
	switch node.Kind() {
	case KindCondition:
		ok, err := evalGuard(node.When, false, ec)
		if err != nil {
			return false, false, err
		}
		if err := s.applySetsOnly(id, node, ec, value.Null, false); err != nil {
			return false, false, err
		}
		return ok, false, nil

	case KindSwitch:
		if err := s.applySetsOnly(id, node, ec, value.Null, false); err != nil {
			return false, false, err
		}
		return false, false, nil

	case KindMapping:
		scope := ec.BuildEvalContext().AsMapping()
		result, err := eval.EvalSource(node.WithExpr, eval.Context(scope))
		if err != nil {
			return false, false, err
		}
		if err := s.applySetsOnly(id, node, ec, result, true); err != nil {
			return false, false, err
		}
		ec.SetVariable(id, result)
		return false, false, nil

	case KindExec:
		return false, false, s.runDispatch(id, node, node.Exec, ec)
	case KindMCP:
		return false, false, s.runDispatch(id, node, node.MCP, ec)
	case KindAgent:
		return false, false, s.runDispatch(id, node, node.Agent, ec)

	case KindWait:
		d, err := parseWaitDuration(node.Wait)
		if err != nil {
			return false, false, err
		}
		time.Sleep(d)
		final, store, err := s.applyPostPhase(id, node, ec, value.Null, false)
		if err != nil {
			return false, false, err
		}
		if store {
			ec.SetVariable(id, final)
		}
		return false, false, nil

	case KindLoop:
		return false, false, s.runLoop(id, node, ec)

	case KindEach:
		return false, false, s.runEach(id, node, ec)

	case KindSubflow:
		return false, false, s.runSubflow(id, node, ec)
	}
	return false, false, nil
}

// applyPostPhase evaluates `sets` (merging its mapping into globals) then
// `with_expr` (replacing the stored value; the node's own pre-with result is
// exposed to it under the node's own id, per the reference MCP handler's
// scope-insertion pattern), returning the value to store and whether to
// store it at all.
func (s *Scheduler) applyPostPhase(id string, node *FlowNode, ec *ExecutionContext, preResult value.Value, preValid bool) (value.Value, bool, error) {
	if err := s.applySetsOnly(id, node, ec, preResult, preValid); err != nil {
		return value.Null, false, err
	}
	if node.WithExpr != "" {
		scope := ec.BuildEvalContext().AsMapping()
		if preValid {
			scope[id] = preResult
		}
		result, err := eval.EvalSource(node.WithExpr, eval.Context(scope))
		if err != nil {
			return value.Null, false, err
		}
		return result, true, nil
	}
	if preValid {
		return preResult, true, nil
	}
	return value.Null, false, nil
}

// applySetsOnly evaluates `sets` alone (used by Condition/Switch, which
// never store a node value, and as the first half of applyPostPhase).
func (s *Scheduler) applySetsOnly(id string, node *FlowNode, ec *ExecutionContext, preResult value.Value, preValid bool) error {
	if node.Sets == "" {
		return nil
	}
	scope := ec.BuildEvalContext().AsMapping()
	if preValid {
		scope[id] = preResult
	}
	result, err := eval.EvalSource(node.Sets, eval.Context(scope))
	if err != nil {
		return err
	}
	if result.Kind() == value.KindMapping {
		ec.mu.Lock()
		for k, v := range result.AsMapping() {
			ec.globals[k] = v
		}
		ec.mu.Unlock()
	}
	return nil
}

func (s *Scheduler) runDispatch(id string, node *FlowNode, uri string, ec *ExecutionContext) error {
	scope := ec.BuildEvalContext().AsMapping()
	var args value.Value = value.Mapping(nil)
	if node.Args != "" {
		a, err := eval.EvalSource(node.Args, eval.Context(scope))
		if err != nil {
			return err
		}
		args = a
	}
	if ec.tools == nil {
		return &InvalidNodeError{NodeID: id, Message: "no tool dispatcher configured"}
	}
	result, err := ec.tools.Dispatch(uri, args, ec.toolCtx)
	if err != nil {
		return err
	}
	final, store, err := s.applyPostPhase(id, node, ec, result, true)
	if err != nil {
		return err
	}
	if store {
		ec.SetVariable(id, final)
	}
	return nil
}

func (s *Scheduler) runLoop(id string, node *FlowNode, ec *ExecutionContext) error {
	initResult, err := eval.EvalSource(node.Vars, eval.Context(ec.BuildEvalContext().AsMapping()))
	if err != nil {
		return err
	}
	if initResult.Kind() == value.KindMapping {
		for k, v := range initResult.AsMapping() {
			ec.SetGlobal(k, v)
		}
	}

	for i := 0; i < maxLoopIterations; i++ {
		ok, err := evalGuard(node.When, false, ec)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := s.runGraph(node.Node, ec); err != nil {
			return err
		}
	}

	final, store, err := s.applyPostPhase(id, node, ec, value.Null, false)
	if err != nil {
		return err
	}
	if store {
		ec.SetVariable(id, final)
	}
	return nil
}

// parseEachHeader splits an `each` field of the form `source => item[, idx]`
// into the source expression and the bound names.
func parseEachHeader(header string) (sourceExpr, itemName, idxName string) {
	parts := strings.SplitN(header, "=>", 2)
	sourceExpr = strings.TrimSpace(parts[0])
	if len(parts) < 2 {
		return sourceExpr, "item", ""
	}
	names := strings.Split(parts[1], ",")
	itemName = strings.TrimSpace(names[0])
	if itemName == "" {
		itemName = "item"
	}
	if len(names) > 1 {
		idxName = strings.TrimSpace(names[1])
	}
	return sourceExpr, itemName, idxName
}

func (s *Scheduler) runEach(id string, node *FlowNode, ec *ExecutionContext) error {
	sourceExpr, itemName, idxName := parseEachHeader(node.Each)
	src, err := eval.EvalSource(sourceExpr, eval.Context(ec.BuildEvalContext().AsMapping()))
	if err != nil {
		return err
	}
	if src.Kind() != value.KindArray {
		return &InvalidNodeError{NodeID: id, Message: "each source did not evaluate to an array"}
	}

	for i, item := range src.AsArray() {
		ec.SetGlobal(itemName, item)
		if idxName != "" {
			ec.SetGlobal(idxName, value.Int(int64(i)))
		}
		if err := s.runGraph(node.Node, ec); err != nil {
			return err
		}
	}

	final, store, err := s.applyPostPhase(id, node, ec, value.Null, false)
	if err != nil {
		return err
	}
	if store {
		ec.SetVariable(id, final)
	}
	return nil
}

func (s *Scheduler) runSubflow(id string, node *FlowNode, ec *ExecutionContext) error {
	subInputs := value.Mapping(ec.BuildEvalContext().AsMapping())
	child := &Flow{Nodes: node.Node}
	result, err := s.Execute(child, subInputs, ec.tools, ec.toolCtx)
	if err != nil {
		return err
	}
	final, store, err := s.applyPostPhase(id, node, ec, result, true)
	if err != nil {
		return err
	}
	if store {
		ec.SetVariable(id, final)
	}
	return nil
}

// parseWaitDuration accepts either a Go duration literal ("500ms") or the
// GML date-offset style ("2s", "3m", "1h") used elsewhere in the language.
func parseWaitDuration(spec string) (time.Duration, error) {
	if spec == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(spec); err == nil {
		return d, nil
	}
	unit := spec[len(spec)-1]
	numPart := spec[:len(spec)-1]
	n, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, &InvalidNodeError{Message: "invalid wait duration: " + spec}
	}
	switch unit {
	case 's':
		return time.Duration(n * float64(time.Second)), nil
	case 'm':
		return time.Duration(n * float64(time.Minute)), nil
	case 'h':
		return time.Duration(n * float64(time.Hour)), nil
	}
	return 0, &InvalidNodeError{Message: "invalid wait duration unit: " + spec}
}
