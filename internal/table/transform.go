package table

import "fmt"

// Operation is the sealed tagged union of column transforms. Operations
// apply in the order given, each producing a new Dataset from the previous.
type Operation interface {
	isOperation()
}

// Delete removes one column from every row and from the schema.
type Delete struct {
	Column string
}

// Rename changes a column's id and display name in place, preserving its
// unit. Row values move from the old key to the new one.
type Rename struct {
	Column  string
	NewName string
}

// Select keeps only the listed columns, in schema order.
type Select struct {
	Columns []string
}

// CombineInput selects columns from one source dataset by index.
type CombineInput struct {
	Source  int      `json:"source" koanf:"source"`
	Columns []string `json:"columns" koanf:"columns"`
}

// Combine stitches columns from multiple source datasets side by side. The
// output has as many rows as the largest source; shorter sources pad with
// nulls. On column id collision the first occurrence wins.
type Combine struct {
	Inputs []CombineInput
}

func (Delete) isOperation()  {}
func (Rename) isOperation()  {}
func (Select) isOperation()  {}
func (Combine) isOperation() {}

// Apply runs a single operation against ds. Combine reads from sources,
// indexed by CombineInput.Source; the other operations ignore sources.
// Validation failures are reported before any data is transformed.
func Apply(ds Dataset, op Operation, sources []Dataset) (Dataset, error) {
	switch o := op.(type) {
	case Delete:
		return applyDelete(ds, o)
	case Rename:
		return applyRename(ds, o)
	case Select:
		return applySelect(ds, o)
	case Combine:
		return applyCombine(o, sources)
	default:
		return Dataset{}, fmt.Errorf("unknown operation type %T", op)
	}
}

// ApplyAll runs operations in sequence, each over the previous result.
func ApplyAll(ds Dataset, ops []Operation, sources []Dataset) (Dataset, error) {
	out := ds
	var err error
	for i, op := range ops {
		out, err = Apply(out, op, sources)
		if err != nil {
			return Dataset{}, fmt.Errorf("operation %d: %w", i+1, err)
		}
	}
	return out, nil
}

func applyDelete(ds Dataset, op Delete) (Dataset, error) {
	if _, ok := ds.Column(op.Column); !ok {
		return Dataset{}, fmt.Errorf("column %q not found", op.Column)
	}
	out := Dataset{
		Rows:   make([]Row, len(ds.Rows)),
		Schema: make([]Column, 0, len(ds.Schema)-1),
	}
	for _, c := range ds.Schema {
		if c.ID != op.Column {
			out.Schema = append(out.Schema, c)
		}
	}
	for i, row := range ds.Rows {
		nr := make(Row, len(row))
		for k, v := range row {
			if k != op.Column {
				nr[k] = v
			}
		}
		out.Rows[i] = nr
	}
	return out, nil
}

func applyRename(ds Dataset, op Rename) (Dataset, error) {
	if _, ok := ds.Column(op.Column); !ok {
		return Dataset{}, fmt.Errorf("column %q not found", op.Column)
	}
	if op.NewName == "" {
		return Dataset{}, fmt.Errorf("new column name is empty")
	}
	out := Dataset{
		Rows:   make([]Row, len(ds.Rows)),
		Schema: make([]Column, len(ds.Schema)),
	}
	for i, c := range ds.Schema {
		if c.ID == op.Column {
			c.ID = op.NewName
			c.Name = op.NewName
			// Unit deliberately preserved.
		}
		out.Schema[i] = c
	}
	for i, row := range ds.Rows {
		nr := make(Row, len(row))
		for k, v := range row {
			if k == op.Column {
				nr[op.NewName] = v
			} else {
				nr[k] = v
			}
		}
		out.Rows[i] = nr
	}
	return out, nil
}

func applySelect(ds Dataset, op Select) (Dataset, error) {
	if len(op.Columns) == 0 {
		return Dataset{}, fmt.Errorf("no columns selected")
	}
	keep := make(map[string]bool, len(op.Columns))
	for _, id := range op.Columns {
		if _, ok := ds.Column(id); !ok {
			return Dataset{}, fmt.Errorf("column %q not found", id)
		}
		keep[id] = true
	}

	out := Dataset{Rows: make([]Row, len(ds.Rows))}
	for _, c := range ds.Schema {
		if keep[c.ID] {
			out.Schema = append(out.Schema, c)
		}
	}
	for i, row := range ds.Rows {
		nr := make(Row, len(out.Schema))
		for _, c := range out.Schema {
			if v, ok := row[c.ID]; ok {
				nr[c.ID] = v
			}
		}
		out.Rows[i] = nr
	}
	return out, nil
}

func applyCombine(op Combine, sources []Dataset) (Dataset, error) {
	if len(op.Inputs) == 0 {
		return Dataset{}, fmt.Errorf("combine needs at least one input")
	}

	maxRows := 0
	for _, in := range op.Inputs {
		if in.Source < 0 || in.Source >= len(sources) {
			return Dataset{}, fmt.Errorf("combine input references source %d, have %d source(s)", in.Source, len(sources))
		}
		src := sources[in.Source]
		for _, col := range in.Columns {
			if _, ok := src.Column(col); !ok {
				return Dataset{}, fmt.Errorf("column %q not found in source %d", col, in.Source)
			}
		}
		if len(src.Rows) > maxRows {
			maxRows = len(src.Rows)
		}
	}

	var out Dataset
	seen := make(map[string]bool)
	for _, in := range op.Inputs {
		src := sources[in.Source]
		for _, col := range in.Columns {
			if seen[col] {
				continue // first occurrence wins
			}
			seen[col] = true
			c, _ := src.Column(col)
			out.Schema = append(out.Schema, c)
		}
	}

	out.Rows = make([]Row, maxRows)
	for i := 0; i < maxRows; i++ {
		row := make(Row, len(out.Schema))
		for _, in := range op.Inputs {
			src := sources[in.Source]
			for _, col := range in.Columns {
				var v any
				if i < len(src.Rows) {
					v = src.Rows[i][col]
				}
				if _, taken := row[col]; !taken {
					row[col] = v
				}
			}
		}
		out.Rows[i] = row
	}
	return out, nil
}
