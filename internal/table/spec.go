package table

import "fmt"

// OperationSpec is the declarative wire form of an Operation, as it appears
// in workbook files and API payloads.
type OperationSpec struct {
	Kind    string         `json:"kind" koanf:"kind"`
	Column  string         `json:"column,omitempty" koanf:"column"`
	NewName string         `json:"new_name,omitempty" koanf:"new_name"`
	Columns []string       `json:"columns,omitempty" koanf:"columns"`
	Inputs  []CombineInput `json:"inputs,omitempty" koanf:"inputs"`
}

// Operation converts the wire form into its tagged variant.
func (s OperationSpec) Operation() (Operation, error) {
	switch s.Kind {
	case "delete":
		if s.Column == "" {
			return nil, fmt.Errorf("delete: column is required")
		}
		return Delete{Column: s.Column}, nil
	case "rename":
		if s.Column == "" || s.NewName == "" {
			return nil, fmt.Errorf("rename: column and new_name are required")
		}
		return Rename{Column: s.Column, NewName: s.NewName}, nil
	case "select":
		if len(s.Columns) == 0 {
			return nil, fmt.Errorf("select: columns are required")
		}
		return Select{Columns: s.Columns}, nil
	case "combine":
		if len(s.Inputs) == 0 {
			return nil, fmt.Errorf("combine: inputs are required")
		}
		return Combine{Inputs: s.Inputs}, nil
	default:
		return nil, fmt.Errorf("unknown operation kind %q", s.Kind)
	}
}

// Operations converts a list of wire specs.
func Operations(specs []OperationSpec) ([]Operation, error) {
	ops := make([]Operation, len(specs))
	for i, s := range specs {
		op, err := s.Operation()
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i+1, err)
		}
		ops[i] = op
	}
	return ops, nil
}
