package table

import (
	"fmt"

	"github.com/calcflow-labs/calcflow/internal/formula"
)

// filterOperators is the comparison set a filter accepts.
var filterOperators = map[string]bool{
	"==": true, "!=": true, ">": true, "<": true, ">=": true, "<=": true,
}

// Filter keeps the rows whose cell in the given column satisfies
// `cell <operator> value`. Comparison is numeric when both sides coerce to
// numbers and string-wise otherwise; rows with a null or missing cell are
// dropped. The schema is unchanged.
func Filter(ds Dataset, column, operator string, value any) (Dataset, error) {
	if _, ok := ds.Column(column); !ok {
		return Dataset{}, fmt.Errorf("column %q not found", column)
	}
	if !filterOperators[operator] {
		return Dataset{}, fmt.Errorf("unsupported filter operator %q", operator)
	}

	out := Dataset{Schema: ds.Schema, Rows: make([]Row, 0, len(ds.Rows))}
	for _, row := range ds.Rows {
		cell, ok := row[column]
		if !ok || cell == nil {
			continue
		}
		if matches(cell, operator, value) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

func matches(cell any, operator string, value any) bool {
	a, okA := formula.ToNumber(cell)
	b, okB := formula.ToNumber(value)
	if okA && okB {
		switch operator {
		case "==":
			return a == b
		case "!=":
			return a != b
		case ">":
			return a > b
		case "<":
			return a < b
		case ">=":
			return a >= b
		case "<=":
			return a <= b
		}
		return false
	}

	sa, sb := formula.Stringify(cell), formula.Stringify(value)
	switch operator {
	case "==":
		return sa == sb
	case "!=":
		return sa != sb
	case ">":
		return sa > sb
	case "<":
		return sa < sb
	case ">=":
		return sa >= sb
	case "<=":
		return sa <= sb
	}
	return false
}
