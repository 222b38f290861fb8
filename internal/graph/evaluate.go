package graph

import (
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/calcflow-labs/calcflow/internal/formula"
	"github.com/calcflow-labs/calcflow/internal/unit"
)

// ErrCircular is the fixed per-node error message for nodes on a cycle.
const ErrCircular = "Circular dependency detected"

// Evaluation is the complete outcome of one graph pass. Results carries one
// entry per evaluated node; Cyclic lists the ids of nodes on a cycle, which
// also appear in Results with ErrCircular and a nil value. Values exposes
// the raw unit-tagged outputs for callers that feed them onward, such as the
// batch engine's scalar inputs.
type Evaluation struct {
	Results map[string]Result     `json:"results"`
	Cyclic  []string              `json:"cyclic,omitempty"`
	Values  map[string]unit.Value `json:"-"`
}

// Evaluate runs one full pass over the node graph. It builds in-degrees from
// the edge list (multi-edges count individually), orders the acyclic portion
// with Kahn's algorithm, reports every node never reaching the sorted order
// as circular, and evaluates the rest strictly in topological order. A
// node's failure never blocks its siblings.
func Evaluate(nodes []Node, edges []Edge, logger *slog.Logger) *Evaluation {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	byID := make(map[string]*Node, len(nodes))
	for i := range nodes {
		byID[nodes[i].ID] = &nodes[i]
	}

	succ := make(map[string][]string, len(nodes))
	indeg := make(map[string]int, len(nodes))
	for _, e := range edges {
		if _, ok := byID[e.Source]; !ok {
			continue
		}
		if _, ok := byID[e.Target]; !ok {
			continue
		}
		succ[e.Source] = append(succ[e.Source], e.Target)
		indeg[e.Target]++
	}

	// Kahn's algorithm: seed with zero in-degree nodes in input order,
	// append successors as their in-degree reaches zero.
	queue := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if indeg[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}
	order := make([]string, 0, len(nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, next := range succ[id] {
			indeg[next]--
			if indeg[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	ev := &Evaluation{
		Results: make(map[string]Result, len(nodes)),
		Values:  make(map[string]unit.Value, len(nodes)),
	}

	sorted := make(map[string]bool, len(order))
	for _, id := range order {
		sorted[id] = true
	}
	for _, n := range nodes {
		if n.Kind == KindGroup {
			continue
		}
		if !sorted[n.ID] {
			ev.Results[n.ID] = Result{Error: ErrCircular}
			ev.Cyclic = append(ev.Cyclic, n.ID)
		}
	}
	sort.Strings(ev.Cyclic)
	if len(ev.Cyclic) > 0 {
		logger.Debug("circular dependency detected", "nodes", ev.Cyclic)
	}

	for _, id := range order {
		n := byID[id]
		if n.Kind == KindGroup {
			continue
		}
		ev.Results[id] = safeEvaluateNode(n, edges, ev.Values, logger)
	}
	return ev
}

// safeEvaluateNode converts a panic inside node evaluation into a per-node
// calculation error so one bad node cannot take down the whole pass.
func safeEvaluateNode(n *Node, edges []Edge, calculated map[string]unit.Value, logger *slog.Logger) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("node evaluation panicked", "node", n.ID, "panic", r)
			res = Result{Error: fmt.Sprintf("Calculation error: %v", r)}
		}
	}()
	return evaluateNode(n, edges, calculated, logger)
}

// evaluateNode computes one node's result. Upstream values are read from
// calculated, which topological order guarantees to be complete for every
// acyclic predecessor.
func evaluateNode(n *Node, edges []Edge, calculated map[string]unit.Value, logger *slog.Logger) Result {
	switch n.Kind {
	case KindSource, KindFactor:
		v := unit.NewValue(n.Value, n.Unit)
		calculated[n.ID] = v
		return Result{Value: v.Format()}

	case KindPassthrough:
		for _, e := range edges {
			if e.Target != n.ID {
				continue
			}
			if v, ok := calculated[e.Source]; ok {
				calculated[n.ID] = v
				return Result{Value: v.Format()}
			}
			break
		}
		return Result{}

	case KindProcess:
		return evaluateProcess(n, edges, calculated, logger)

	default:
		return Result{Error: fmt.Sprintf("unknown node kind %q", n.Kind)}
	}
}

// evaluateProcess binds each declared input handle's upstream value into the
// formula scope keyed by the input label, then evaluates unit-aware. When
// unit evaluation yields no result for a connected node, a pure +/- formula
// is reported as a unit mismatch and anything else falls back to value-only
// arithmetic over the bare numbers (units are lost in that fallback).
func evaluateProcess(n *Node, edges []Edge, calculated map[string]unit.Value, logger *slog.Logger) Result {
	scope := make(map[string]unit.Value, len(n.Inputs))
	for _, in := range n.Inputs {
		edge, ok := inboundEdge(edges, n.ID, in.HandleID)
		if !ok {
			logger.Debug("process input not connected, defaults to zero",
				"node", n.ID, "label", in.Label)
			continue
		}
		if v, ok := calculated[edge.Source]; ok {
			scope[in.Label] = v
		}
	}

	if v, ok := formula.EvalUnits(n.Formula, scope); ok {
		calculated[n.ID] = v
		return Result{Value: v.Format()}
	}

	if len(scope) == 0 {
		return Result{Error: "Calculation error: formula produced no result"}
	}

	// A formula that only adds or subtracts cannot have failed for any
	// reason other than incompatible units.
	if formula.ContainsOperator(n.Formula, "+-") && !formula.ContainsOperator(n.Formula, "*/^") {
		return Result{Error: "Unit mismatch: cannot add or subtract incompatible units"}
	}

	numeric := make(map[string]any, len(scope))
	for label, v := range scope {
		numeric[label] = v.Number
	}
	out, err := formula.Eval(n.Formula, numeric)
	if err != nil {
		return Result{Error: "Calculation error: " + err.Error()}
	}
	if f, ok := formula.ToNumber(out); ok {
		calculated[n.ID] = unit.Value{Number: f}
		return Result{Value: f}
	}
	return Result{Value: out}
}

// inboundEdge finds the at-most-one edge targeting the given handle.
func inboundEdge(edges []Edge, nodeID, handleID string) (Edge, bool) {
	for _, e := range edges {
		if e.Target == nodeID && e.TargetHandle == handleID {
			return e, true
		}
	}
	return Edge{}, false
}
