// Package batch implements the tabular formula engine: it validates a
// formula once, compiles it against a dataset (aggregate pre-pass, lookup
// array binding, column reference substitution), then evaluates it row by
// row. Row evaluation is fail-fast: the first invalid row aborts the whole
// operation and no partial dataset is ever returned.
package batch

import (
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/calcflow-labs/calcflow/internal/formula"
	"github.com/calcflow-labs/calcflow/internal/table"
)

// ScalarInput is a named scalar value supplied by an upstream non-batch
// node, referenced in formulas with the same bracket syntax as columns.
type ScalarInput struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// Request describes one batch formula evaluation.
type Request struct {
	Dataset    table.Dataset
	ColumnName string
	Formula    string
	// ColumnUnits overrides or augments the schema's per-column units,
	// keyed by column id.
	ColumnUnits map[string]string
	// Scalars are upstream scalar inputs, keyed by their bracket name.
	Scalars map[string]ScalarInput
	// UnitOverride, when set, wins over the derived unit.
	UnitOverride string
	Logger       *slog.Logger
}

// Result is a successful evaluation: the input dataset with the new column
// appended to every row and to the schema, the column's unit, and an
// optional warning from unit derivation.
type Result struct {
	Dataset table.Dataset `json:"dataset"`
	Unit    string        `json:"unit,omitempty"`
	Warning string        `json:"warning,omitempty"`
}

// RowError reports a row-level evaluation failure with its 1-based row
// index. Validation failures that precede row evaluation carry Row == 0.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

func (e *RowError) Error() string {
	if e.Row == 0 {
		return e.Message
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// columnBinding binds one sanitized identifier to a column's per-row cell.
type columnBinding struct {
	ident    string
	columnID string
}

// Evaluate runs the full pipeline: validate, compile, aggregate pre-pass,
// per-row map, unit derivation. Any error means no dataset was produced.
// A panic inside evaluation surfaces as an error, never across the API.
func Evaluate(req Request) (res *Result, err error) {
	logger := req.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("batch evaluation panicked", "formula", req.Formula, "panic", r)
			res, err = nil, fmt.Errorf("formula evaluation failed: %v", r)
		}
	}()
	if req.ColumnName == "" {
		return nil, &RowError{Message: "column name is empty"}
	}
	if err := validateFormula(req.Formula); err != nil {
		return nil, err
	}

	// Aggregate pre-pass: whole-column reductions computed exactly once,
	// substituted as named constants shared by every row's scope.
	compiled, static, err := applyAggregates(req.Formula, req.Dataset)
	if err != nil {
		return nil, err
	}

	// XLOOKUP needs whole-column arrays in place of per-row scalars.
	compiled, arrays := bindLookupArrays(compiled, req.Dataset)
	for name, arr := range arrays {
		static[name] = arr
	}

	// Remaining bracket references become per-row column bindings or
	// scalar constants.
	compiled, bindings, err := bindReferences(compiled, req.Dataset, req.Scalars, static)
	if err != nil {
		return nil, err
	}
	logger.Debug("formula compiled", "formula", req.Formula, "compiled", compiled)

	out := req.Dataset.Clone()
	values := make([]any, len(out.Rows))
	allNumeric := true
	for i, row := range out.Rows {
		scope := make(map[string]any, len(static)+len(bindings))
		for k, v := range static {
			scope[k] = v
		}
		for _, b := range bindings {
			scope[b.ident] = coerceCell(row[b.columnID])
		}

		val, err := formula.Eval(compiled, scope)
		if err != nil {
			return nil, &RowError{Row: i + 1, Message: err.Error()}
		}
		if f, ok := val.(float64); ok && math.IsNaN(f) {
			return nil, &RowError{Row: i + 1, Message: "result is not a number"}
		}
		// A nil result is a legal null cell: an XLOOKUP miss without a
		// default, or an IF with no else branch. Nulls carry no type.
		if val != nil {
			if _, ok := formula.ToNumber(val); !ok {
				allNumeric = false
			}
		}
		values[i] = val
	}

	colUnit, warning := req.UnitOverride, ""
	if colUnit == "" {
		colUnit, warning = deriveUnit(req.Formula, unitResolverFor(req))
	}

	colType := table.ColumnNumber
	if !allNumeric {
		colType = table.ColumnString
	}
	appendColumn(&out, table.Column{
		ID:   req.ColumnName,
		Name: req.ColumnName,
		Type: colType,
		Unit: colUnit,
	}, values)

	return &Result{Dataset: out, Unit: colUnit, Warning: warning}, nil
}

// appendColumn adds the computed column to schema and rows, replacing an
// existing column of the same id in place.
func appendColumn(ds *table.Dataset, col table.Column, values []any) {
	replaced := false
	for i, c := range ds.Schema {
		if c.ID == col.ID {
			ds.Schema[i] = col
			replaced = true
			break
		}
	}
	if !replaced {
		ds.Schema = append(ds.Schema, col)
	}
	for i := range ds.Rows {
		ds.Rows[i][col.ID] = values[i]
	}
}

// coerceCell turns numeric-looking cells into float64 so arithmetic works
// on stringly-typed imports; everything else passes through.
func coerceCell(v any) any {
	if v == nil {
		return nil
	}
	if _, isStr := v.(string); !isStr {
		if f, ok := formula.ToNumber(v); ok {
			return f
		}
		return v
	}
	if f, ok := formula.ToNumber(v); ok {
		return f
	}
	return v
}

// unitResolverFor maps a bracket reference name to its unit: schema unit
// (overridable per column id through ColumnUnits), or a scalar input's unit.
func unitResolverFor(req Request) func(name string) (string, bool) {
	return func(name string) (string, bool) {
		if col, ok := req.Dataset.ColumnByName(name); ok {
			if u, ok := req.ColumnUnits[col.ID]; ok {
				return u, true
			}
			return col.Unit, true
		}
		if sc, ok := req.Scalars[name]; ok {
			return sc.Unit, true
		}
		return "", false
	}
}
