// Package graph implements the scalar dependency-graph evaluator. Nodes
// produce unit-tagged values that flow along edges into downstream process
// nodes; evaluation orders the graph topologically, reports cycles per node,
// and never aborts the rest of the graph on a single node's failure.
package graph

// Kind discriminates the node variants.
type Kind string

const (
	// KindSource emits a constant value with a unit.
	KindSource Kind = "source"
	// KindFactor evaluates exactly like a source; the distinction is
	// presentation metadata carried by the editor.
	KindFactor Kind = "factor"
	// KindProcess combines its inputs through a formula.
	KindProcess Kind = "process"
	// KindPassthrough forwards its single input unchanged.
	KindPassthrough Kind = "passthrough"
	// KindGroup is a visual container; it produces no value and is
	// excluded from evaluation.
	KindGroup Kind = "group"
)

// Input is one declared input handle of a process node. Formulas refer to
// inputs by Label, which the user may rename independently of the stable
// handle id.
type Input struct {
	HandleID string `json:"handle" koanf:"handle"`
	Label    string `json:"label" koanf:"label"`
}

// Node is one calculation node. Value and Unit apply to source and factor
// nodes; Formula and Inputs apply to process nodes.
type Node struct {
	ID      string  `json:"id" koanf:"id"`
	Kind    Kind    `json:"kind" koanf:"kind"`
	Value   float64 `json:"value,omitempty" koanf:"value"`
	Unit    string  `json:"unit,omitempty" koanf:"unit"`
	Formula string  `json:"formula,omitempty" koanf:"formula"`
	Inputs  []Input `json:"inputs,omitempty" koanf:"inputs"`
}

// Edge connects a source node (optionally a specific output handle) to one
// input handle of a target node. A target handle accepts at most one edge;
// a source may feed any number of edges.
type Edge struct {
	Source       string `json:"source" koanf:"source"`
	SourceHandle string `json:"source_handle,omitempty" koanf:"source_handle"`
	Target       string `json:"target" koanf:"target"`
	TargetHandle string `json:"target_handle,omitempty" koanf:"target_handle"`
}

// Result is the outcome of evaluating one node for one pass. Value holds the
// formatted unit value (string), a plain number when units were lost in the
// numeric fallback, or nil on error. Results are replaced wholesale on
// every evaluation pass.
type Result struct {
	Value any    `json:"value"`
	Error string `json:"error,omitempty"`
}
