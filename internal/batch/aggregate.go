package batch

import (
	"fmt"
	"strings"

	"github.com/calcflow-labs/calcflow/internal/formula"
	"github.com/calcflow-labs/calcflow/internal/table"
)

// applyAggregates computes every $FUNC_[Column] expression once over the
// whole dataset and substitutes it with a named constant. Non-numeric and
// null cells are skipped; when no cell qualifies the constant is nil, so a
// formula built on an empty aggregate fails the same way a null cell does.
func applyAggregates(f string, ds table.Dataset) (string, map[string]any, error) {
	static := make(map[string]any)

	matches := aggregateRe.FindAllStringSubmatch(f, -1)
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		full, fn, ref := m[0], m[1], m[2]
		if seen[full] {
			continue
		}
		seen[full] = true

		col, ok := ds.ColumnByName(ref)
		if !ok {
			return "", nil, fmt.Errorf("aggregate over unknown column %q", ref)
		}
		val, err := aggregate(fn, ds, col.ID)
		if err != nil {
			return "", nil, err
		}
		name := fmt.Sprintf("agg_%d", len(static))
		static[name] = val
		f = strings.ReplaceAll(f, full, name)
	}
	return f, static, nil
}

func aggregate(fn string, ds table.Dataset, columnID string) (any, error) {
	var nums []float64
	for _, row := range ds.Rows {
		cell := row[columnID]
		if cell == nil {
			continue
		}
		if n, ok := formula.ToNumber(cell); ok {
			nums = append(nums, n)
		}
	}
	if len(nums) == 0 {
		return nil, nil
	}

	switch fn {
	case "SUM":
		return sum(nums), nil
	case "AVG":
		return sum(nums) / float64(len(nums)), nil
	case "MIN":
		m := nums[0]
		for _, n := range nums[1:] {
			if n < m {
				m = n
			}
		}
		return m, nil
	case "MAX":
		m := nums[0]
		for _, n := range nums[1:] {
			if n > m {
				m = n
			}
		}
		return m, nil
	case "COUNT":
		return float64(len(nums)), nil
	default:
		return nil, fmt.Errorf("unsupported aggregate function $%s_", fn)
	}
}

func sum(nums []float64) float64 {
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return total
}
