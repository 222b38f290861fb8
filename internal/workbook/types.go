// Package workbook loads and validates workbook files: a YAML document
// describing a scalar calculation graph, named datasets, and an ordered
// list of tabular steps that run against those datasets.
package workbook

import (
	"fmt"

	"github.com/calcflow-labs/calcflow/internal/graph"
	"github.com/calcflow-labs/calcflow/internal/table"
)

// Step kinds.
const (
	StepFormula   = "formula"
	StepTransform = "transform"
	StepJoin      = "join"
	StepFilter    = "filter"
)

// Workbook is one loaded workbook file.
type Workbook struct {
	Name     string                   `koanf:"name" json:"name"`
	Nodes    []graph.Node             `koanf:"nodes" json:"nodes"`
	Edges    []graph.Edge             `koanf:"edges" json:"edges"`
	Datasets map[string]table.Dataset `koanf:"datasets" json:"datasets"`
	Steps    []Step                   `koanf:"steps" json:"steps"`
}

// Step is one tabular operation. Dataset names a workbook dataset or the
// id of an earlier step, so steps chain into a pipeline.
type Step struct {
	ID      string `koanf:"id" json:"id"`
	Kind    string `koanf:"kind" json:"kind"`
	Dataset string `koanf:"dataset" json:"dataset"`

	// formula steps
	Column  string            `koanf:"column" json:"column,omitempty"`
	Formula string            `koanf:"formula" json:"formula,omitempty"`
	Unit    string            `koanf:"unit" json:"unit,omitempty"`
	Inputs  map[string]string `koanf:"inputs" json:"inputs,omitempty"`

	// transform steps
	Operations []table.OperationSpec `koanf:"operations" json:"operations,omitempty"`
	Sources    []string              `koanf:"sources" json:"sources,omitempty"`

	// join steps
	Lookup        string   `koanf:"lookup" json:"lookup,omitempty"`
	LeftKey       string   `koanf:"left_key" json:"left_key,omitempty"`
	RightKey      string   `koanf:"right_key" json:"right_key,omitempty"`
	TargetColumns []string `koanf:"target_columns" json:"target_columns,omitempty"`

	// filter steps
	FilterColumn string `koanf:"filter_column" json:"filter_column,omitempty"`
	Operator     string `koanf:"operator" json:"operator,omitempty"`
	Value        any    `koanf:"value" json:"value,omitempty"`
}

// Validate checks structural consistency before any evaluation runs: step
// ids are unique, kinds are known, every dataset reference resolves to a
// workbook dataset or an earlier step, and each kind carries its required
// fields.
func (w *Workbook) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("workbook has no name")
	}

	nodeIDs := make(map[string]bool, len(w.Nodes))
	for _, n := range w.Nodes {
		if n.ID == "" {
			return fmt.Errorf("node with empty id")
		}
		if nodeIDs[n.ID] {
			return fmt.Errorf("duplicate node id %q", n.ID)
		}
		nodeIDs[n.ID] = true
	}
	for _, e := range w.Edges {
		if !nodeIDs[e.Source] {
			return fmt.Errorf("edge references unknown source node %q", e.Source)
		}
		if !nodeIDs[e.Target] {
			return fmt.Errorf("edge references unknown target node %q", e.Target)
		}
	}

	resolvable := make(map[string]bool, len(w.Datasets)+len(w.Steps))
	for name := range w.Datasets {
		resolvable[name] = true
	}

	seen := make(map[string]bool, len(w.Steps))
	for i, s := range w.Steps {
		if s.ID == "" {
			return fmt.Errorf("step %d has no id", i+1)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate step id %q", s.ID)
		}
		seen[s.ID] = true

		if s.Dataset == "" {
			return fmt.Errorf("step %q has no dataset", s.ID)
		}
		if !resolvable[s.Dataset] {
			return fmt.Errorf("step %q references unknown dataset %q", s.ID, s.Dataset)
		}

		if err := validateStepFields(s, resolvable, nodeIDs); err != nil {
			return err
		}
		resolvable[s.ID] = true
	}
	return nil
}

func validateStepFields(s Step, resolvable, nodeIDs map[string]bool) error {
	switch s.Kind {
	case StepFormula:
		if s.Column == "" || s.Formula == "" {
			return fmt.Errorf("formula step %q needs column and formula", s.ID)
		}
		for name, nodeID := range s.Inputs {
			if !nodeIDs[nodeID] {
				return fmt.Errorf("formula step %q input %q references unknown node %q", s.ID, name, nodeID)
			}
		}
	case StepTransform:
		if len(s.Operations) == 0 {
			return fmt.Errorf("transform step %q has no operations", s.ID)
		}
		for _, src := range s.Sources {
			if !resolvable[src] {
				return fmt.Errorf("transform step %q references unknown source %q", s.ID, src)
			}
		}
	case StepJoin:
		if s.Lookup == "" {
			return fmt.Errorf("join step %q has no lookup dataset", s.ID)
		}
		if !resolvable[s.Lookup] {
			return fmt.Errorf("join step %q references unknown lookup dataset %q", s.ID, s.Lookup)
		}
		if s.LeftKey == "" || s.RightKey == "" {
			return fmt.Errorf("join step %q needs left_key and right_key", s.ID)
		}
	case StepFilter:
		if s.FilterColumn == "" || s.Operator == "" {
			return fmt.Errorf("filter step %q needs filter_column and operator", s.ID)
		}
	default:
		return fmt.Errorf("step %q has unknown kind %q", s.ID, s.Kind)
	}
	return nil
}
