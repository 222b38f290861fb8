package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calcflow-labs/calcflow/internal/table"
)

func fuelDataset() table.Dataset {
	return table.Dataset{
		Schema: []table.Column{
			{ID: "fuel", Name: "Fuel", Type: table.ColumnString},
			{ID: "qty", Name: "Quantity", Type: table.ColumnNumber, Unit: "L"},
			{ID: "factor", Name: "Factor", Type: table.ColumnNumber, Unit: "kg/L"},
		},
		Rows: []table.Row{
			{"fuel": "diesel", "qty": 100.0, "factor": 2.68},
			{"fuel": "petrol", "qty": 50.0, "factor": 2.31},
		},
	}
}

func TestEvaluate_ColumnProduct(t *testing.T) {
	res, err := Evaluate(Request{
		Dataset:    fuelDataset(),
		ColumnName: "co2",
		Formula:    "[Quantity] * [Factor]",
	})
	require.NoError(t, err)
	require.Len(t, res.Dataset.Rows, 2)
	assert.InDelta(t, 268.0, res.Dataset.Rows[0]["co2"], 1e-9)
	assert.InDelta(t, 115.5, res.Dataset.Rows[1]["co2"], 1e-9)
	assert.Equal(t, "kg", res.Unit)
	assert.Empty(t, res.Warning)

	col, ok := res.Dataset.Column("co2")
	require.True(t, ok)
	assert.Equal(t, table.ColumnNumber, col.Type)
	assert.Equal(t, "kg", col.Unit)
}

func TestEvaluate_ReferenceByColumnID(t *testing.T) {
	res, err := Evaluate(Request{
		Dataset:    fuelDataset(),
		ColumnName: "double",
		Formula:    "[qty] * 2",
	})
	require.NoError(t, err)
	assert.InDelta(t, 200.0, res.Dataset.Rows[0]["double"], 1e-9)
	assert.Equal(t, "L", res.Unit)
}

func TestEvaluate_AggregateConstantAcrossRows(t *testing.T) {
	ds := table.Dataset{
		Schema: []table.Column{
			{ID: "co2", Name: "CO2", Type: table.ColumnNumber, Unit: "kg"},
		},
		Rows: []table.Row{
			{"co2": 10.0},
			{"co2": 20.0},
			{"co2": 30.0},
		},
	}
	res, err := Evaluate(Request{
		Dataset:    ds,
		ColumnName: "total",
		Formula:    "$SUM_[CO2]",
	})
	require.NoError(t, err)
	for i := range res.Dataset.Rows {
		assert.InDelta(t, 60.0, res.Dataset.Rows[i]["total"], 1e-9, "row %d", i)
	}
	assert.Equal(t, "kg", res.Unit)
}

func TestEvaluate_AggregateShareOfTotal(t *testing.T) {
	ds := table.Dataset{
		Schema: []table.Column{
			{ID: "co2", Name: "CO2", Type: table.ColumnNumber, Unit: "kg"},
		},
		Rows: []table.Row{{"co2": 25.0}, {"co2": 75.0}},
	}
	res, err := Evaluate(Request{
		Dataset:    ds,
		ColumnName: "share",
		Formula:    "[CO2] / $SUM_[CO2] * 100",
	})
	require.NoError(t, err)
	assert.InDelta(t, 25.0, res.Dataset.Rows[0]["share"], 1e-9)
	assert.InDelta(t, 75.0, res.Dataset.Rows[1]["share"], 1e-9)
}

func TestEvaluate_AggregateFunctions(t *testing.T) {
	ds := table.Dataset{
		Schema: []table.Column{
			{ID: "v", Name: "V", Type: table.ColumnNumber},
		},
		Rows: []table.Row{{"v": 4.0}, {"v": nil}, {"v": 8.0}, {"v": "oops"}},
	}
	tests := []struct {
		formula string
		want    float64
	}{
		{"$SUM_[V]", 12},
		{"$AVG_[V]", 6},
		{"$MIN_[V]", 4},
		{"$MAX_[V]", 8},
		{"$COUNT_[V]", 2},
	}
	for _, tt := range tests {
		res, err := Evaluate(Request{Dataset: ds, ColumnName: "out", Formula: tt.formula})
		require.NoError(t, err, tt.formula)
		assert.InDelta(t, tt.want, res.Dataset.Rows[0]["out"], 1e-9, tt.formula)
	}
}

func TestEvaluate_AggregateOverEmptyColumnYieldsNulls(t *testing.T) {
	ds := table.Dataset{
		Schema: []table.Column{{ID: "v", Name: "V", Type: table.ColumnNumber}},
		Rows:   []table.Row{{"v": nil}, {"v": nil}},
	}
	res, err := Evaluate(Request{Dataset: ds, ColumnName: "out", Formula: "$SUM_[V]"})
	require.NoError(t, err)
	assert.Nil(t, res.Dataset.Rows[0]["out"])
	assert.Nil(t, res.Dataset.Rows[1]["out"])
}

func TestEvaluate_XlookupMissWithoutDefaultIsNull(t *testing.T) {
	ds := table.Dataset{
		Schema: []table.Column{
			{ID: "fuel", Name: "Fuel", Type: table.ColumnString},
			{ID: "code", Name: "Code", Type: table.ColumnString},
			{ID: "rate", Name: "Rate", Type: table.ColumnNumber},
		},
		Rows: []table.Row{
			{"fuel": "diesel", "code": "diesel", "rate": 2.68},
			{"fuel": "kerosene", "code": "petrol", "rate": 2.31},
		},
	}
	res, err := Evaluate(Request{
		Dataset:    ds,
		ColumnName: "matched",
		Formula:    `XLOOKUP([Fuel], [Code], [Rate])`,
	})
	require.NoError(t, err)
	assert.InDelta(t, 2.68, res.Dataset.Rows[0]["matched"], 1e-9)
	assert.Nil(t, res.Dataset.Rows[1]["matched"])

	col, ok := res.Dataset.Column("matched")
	require.True(t, ok)
	assert.Equal(t, table.ColumnNumber, col.Type, "null cells do not change the column type")
}

func TestEvaluate_ConditionalWithoutElseIsNull(t *testing.T) {
	res, err := Evaluate(Request{
		Dataset:    fuelDataset(),
		ColumnName: "flag",
		Formula:    `IF([Quantity] > 60, "big")`,
	})
	require.NoError(t, err)
	assert.Equal(t, "big", res.Dataset.Rows[0]["flag"])
	assert.Nil(t, res.Dataset.Rows[1]["flag"])
}

func TestEvaluate_FailFastReportsRowIndex(t *testing.T) {
	ds := table.Dataset{
		Schema: []table.Column{{ID: "v", Name: "V", Type: table.ColumnNumber}},
		Rows:   []table.Row{{"v": 1.0}, {"v": 2.0}, {"v": nil}, {"v": 4.0}},
	}
	_, err := Evaluate(Request{Dataset: ds, ColumnName: "out", Formula: "[V] * 2"})
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 3, rowErr.Row)
	assert.Contains(t, rowErr.Error(), "row 3")
}

func TestEvaluate_NaNResultFails(t *testing.T) {
	ds := table.Dataset{
		Schema: []table.Column{{ID: "v", Name: "V", Type: table.ColumnNumber}},
		Rows:   []table.Row{{"v": -1.0}},
	}
	_, err := Evaluate(Request{Dataset: ds, ColumnName: "out", Formula: "SQRT([V])"})
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 1, rowErr.Row)
}

func TestEvaluate_ScalarInput(t *testing.T) {
	res, err := Evaluate(Request{
		Dataset:    fuelDataset(),
		ColumnName: "scaled",
		Formula:    "[Quantity] * [Intensity]",
		Scalars:    map[string]ScalarInput{"Intensity": {Value: 0.5, Unit: "kg/L"}},
	})
	require.NoError(t, err)
	assert.InDelta(t, 50.0, res.Dataset.Rows[0]["scaled"], 1e-9)
	assert.Equal(t, "kg", res.Unit)
}

func TestEvaluate_Xlookup(t *testing.T) {
	ds := table.Dataset{
		Schema: []table.Column{
			{ID: "fuel", Name: "Fuel", Type: table.ColumnString},
			{ID: "code", Name: "Code", Type: table.ColumnString},
			{ID: "rate", Name: "Rate", Type: table.ColumnNumber},
		},
		Rows: []table.Row{
			{"fuel": "diesel", "code": "diesel", "rate": 2.68},
			{"fuel": "petrol", "code": "petrol", "rate": 2.31},
		},
	}
	res, err := Evaluate(Request{
		Dataset:    ds,
		ColumnName: "matched",
		Formula:    `XLOOKUP([Fuel], [Code], [Rate], 0)`,
	})
	require.NoError(t, err)
	assert.InDelta(t, 2.68, res.Dataset.Rows[0]["matched"], 1e-9)
	assert.InDelta(t, 2.31, res.Dataset.Rows[1]["matched"], 1e-9)
}

func TestEvaluate_XlookupDefault(t *testing.T) {
	ds := table.Dataset{
		Schema: []table.Column{
			{ID: "fuel", Name: "Fuel", Type: table.ColumnString},
			{ID: "code", Name: "Code", Type: table.ColumnString},
			{ID: "rate", Name: "Rate", Type: table.ColumnNumber},
		},
		Rows: []table.Row{
			{"fuel": "kerosene", "code": "diesel", "rate": 2.68},
		},
	}
	res, err := Evaluate(Request{
		Dataset:    ds,
		ColumnName: "matched",
		Formula:    `XLOOKUP([Fuel], [Code], [Rate], -1)`,
	})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, res.Dataset.Rows[0]["matched"], 1e-9)
}

func TestEvaluate_ConditionalOnStrings(t *testing.T) {
	res, err := Evaluate(Request{
		Dataset:    fuelDataset(),
		ColumnName: "kind",
		Formula:    `IF([Fuel] == "diesel", "heavy", "light")`,
	})
	require.NoError(t, err)
	assert.Equal(t, "heavy", res.Dataset.Rows[0]["kind"])
	assert.Equal(t, "light", res.Dataset.Rows[1]["kind"])

	col, ok := res.Dataset.Column("kind")
	require.True(t, ok)
	assert.Equal(t, table.ColumnString, col.Type)
}

func TestEvaluate_OverwritesExistingColumn(t *testing.T) {
	res, err := Evaluate(Request{
		Dataset:    fuelDataset(),
		ColumnName: "qty",
		Formula:    "[Quantity] * 2",
	})
	require.NoError(t, err)
	assert.InDelta(t, 200.0, res.Dataset.Rows[0]["qty"], 1e-9)
	// schema keeps a single qty column, now at its original position
	count := 0
	for _, c := range res.Dataset.Schema {
		if c.ID == "qty" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestEvaluate_UnitOverrideWins(t *testing.T) {
	res, err := Evaluate(Request{
		Dataset:      fuelDataset(),
		ColumnName:   "co2",
		Formula:      "[Quantity] * [Factor]",
		UnitOverride: "t",
	})
	require.NoError(t, err)
	assert.Equal(t, "t", res.Unit)
}

func TestEvaluate_ColumnUnitsOverride(t *testing.T) {
	res, err := Evaluate(Request{
		Dataset:     fuelDataset(),
		ColumnName:  "co2",
		Formula:     "[Quantity] * [Factor]",
		ColumnUnits: map[string]string{"factor": "t/L"},
	})
	require.NoError(t, err)
	assert.Equal(t, "t", res.Unit)
}

func TestEvaluate_AdditionMismatchWarns(t *testing.T) {
	res, err := Evaluate(Request{
		Dataset:    fuelDataset(),
		ColumnName: "odd",
		Formula:    "[Quantity] + [Factor]",
	})
	require.NoError(t, err)
	assert.Equal(t, "L", res.Unit)
	assert.NotEmpty(t, res.Warning)
}

func TestEvaluate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantMsg string
	}{
		{
			name:    "empty formula",
			req:     Request{Dataset: fuelDataset(), ColumnName: "x", Formula: "   "},
			wantMsg: "formula is empty",
		},
		{
			name:    "bare identifier",
			req:     Request{Dataset: fuelDataset(), ColumnName: "x", Formula: "Quantity * 2"},
			wantMsg: "must be bracketed",
		},
		{
			name:    "unknown reference",
			req:     Request{Dataset: fuelDataset(), ColumnName: "x", Formula: "[Nope] * 2"},
			wantMsg: `unknown column or input "Nope"`,
		},
		{
			name:    "unknown aggregate",
			req:     Request{Dataset: fuelDataset(), ColumnName: "x", Formula: "$MEDIAN_[Quantity]"},
			wantMsg: "unsupported aggregate function",
		},
		{
			name:    "missing column name",
			req:     Request{Dataset: fuelDataset(), Formula: "[Quantity]"},
			wantMsg: "column name is empty",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tt.req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestEvaluate_FunctionNamesAllowedBare(t *testing.T) {
	res, err := Evaluate(Request{
		Dataset:    fuelDataset(),
		ColumnName: "r",
		Formula:    "ROUND([Factor], 1)",
	})
	require.NoError(t, err)
	assert.InDelta(t, 2.7, res.Dataset.Rows[0]["r"], 1e-9)
}

func TestDeriveUnit_Shapes(t *testing.T) {
	units := map[string]string{"A": "kg", "B": "L", "C": "kg/L", "D": ""}
	resolve := func(name string) (string, bool) {
		u, ok := units[name]
		return u, ok
	}

	tests := []struct {
		formula  string
		want     string
		warn    bool
	}{
		{"[A]", "kg", false},
		{"$SUM_[A]", "kg", false},
		{"[B] * [C]", "kg", false},
		{"[A] / [B]", "kg/L", false},
		{"[A] + [A]", "kg", false},
		{"[A] - [B]", "kg", true},
		{"2 * [A]", "kg", false},
		{"[A] * 2", "kg", false},
		{"[D] * 3", "", false},
		{"1 + 2", "", false},
		{"[B] * [C] / [B]", "kg/L", false},
	}
	for _, tt := range tests {
		got, warning := deriveUnit(tt.formula, resolve)
		assert.Equal(t, tt.want, got, tt.formula)
		if tt.warn {
			assert.NotEmpty(t, warning, tt.formula)
		} else {
			assert.Empty(t, warning, tt.formula)
		}
	}
}

func TestEvaluate_InputDatasetUntouched(t *testing.T) {
	ds := fuelDataset()
	_, err := Evaluate(Request{Dataset: ds, ColumnName: "co2", Formula: "[Quantity] * [Factor]"})
	require.NoError(t, err)
	_, ok := ds.Rows[0]["co2"]
	assert.False(t, ok)
	assert.Len(t, ds.Schema, 3)
}
