package table

import (
	"fmt"

	"github.com/calcflow-labs/calcflow/internal/formula"
)

// Join performs a hash-based left join: every main row appears exactly once
// in the output, enriched with the target columns of the lookup row whose
// rightKey equals the main row's leftKey. The lookup hash is built first;
// when the lookup dataset repeats a key the last row wins. Unmatched keys
// fill the target columns with null. When the main dataset already has a
// column named like a target column, the looked-up value lands in
// "<column>_lookup" instead.
func Join(main, lookup Dataset, leftKey, rightKey string, targetColumns []string) (Dataset, error) {
	if len(main.Rows) == 0 {
		return Dataset{}, fmt.Errorf("main dataset is empty")
	}
	if len(lookup.Rows) == 0 {
		return Dataset{}, fmt.Errorf("lookup dataset is empty")
	}
	if _, ok := main.Column(leftKey); !ok {
		return Dataset{}, fmt.Errorf("key column %q not found in main dataset", leftKey)
	}
	if _, ok := lookup.Column(rightKey); !ok {
		return Dataset{}, fmt.Errorf("key column %q not found in lookup dataset", rightKey)
	}
	if len(targetColumns) == 0 {
		return Dataset{}, fmt.Errorf("no target columns selected")
	}
	for _, col := range targetColumns {
		if _, ok := lookup.Column(col); !ok {
			return Dataset{}, fmt.Errorf("target column %q not found in lookup dataset", col)
		}
	}

	// Build phase: hash the lookup side. Keys hash by canonical string so
	// 2, 2.0 and "2" collide, matching the formula language's equality.
	index := make(map[string]Row, len(lookup.Rows))
	for _, row := range lookup.Rows {
		index[formula.Stringify(row[rightKey])] = row
	}

	// Output keys: collide with an existing main column -> "<col>_lookup".
	outKey := make(map[string]string, len(targetColumns))
	for _, col := range targetColumns {
		key := col
		if _, exists := main.Column(col); exists {
			key = col + "_lookup"
		}
		outKey[col] = key
	}

	out := Dataset{
		Rows:   make([]Row, len(main.Rows)),
		Schema: make([]Column, len(main.Schema), len(main.Schema)+len(targetColumns)),
	}
	copy(out.Schema, main.Schema)
	for _, col := range targetColumns {
		meta, _ := lookup.Column(col)
		meta.ID = outKey[col]
		meta.Name = outKey[col]
		out.Schema = append(out.Schema, meta)
	}

	// Probe phase: single pass over the main dataset.
	for i, row := range main.Rows {
		nr := make(Row, len(row)+len(targetColumns))
		for k, v := range row {
			nr[k] = v
		}
		match, found := index[formula.Stringify(row[leftKey])]
		for _, col := range targetColumns {
			if found {
				nr[outKey[col]] = match[col]
			} else {
				nr[outKey[col]] = nil
			}
		}
		out.Rows[i] = nr
	}
	return out, nil
}
