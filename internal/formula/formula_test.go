package formula

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calcflow-labs/calcflow/internal/unit"
)

func TestEvalUnits_MultiplyCancelsUnits(t *testing.T) {
	scope := map[string]unit.Value{
		"A": unit.NewValue(1000, "L"),
		"B": unit.NewValue(2.68, "kg/L"),
	}
	v, ok := EvalUnits("A*B", scope)
	require.True(t, ok)
	assert.Equal(t, "2680 kg", v.Format())
}

func TestEvalUnits_AdditionRequiresCompatibleUnits(t *testing.T) {
	scope := map[string]unit.Value{
		"A": unit.NewValue(5, "kg"),
		"B": unit.NewValue(3, "L"),
	}
	_, ok := EvalUnits("A+B", scope)
	assert.False(t, ok, "kg + L must yield no result")

	scope["B"] = unit.NewValue(3, "kg")
	v, ok := EvalUnits("A+B", scope)
	require.True(t, ok)
	assert.Equal(t, "8 kg", v.Format())
}

func TestEvalUnits_PrecedenceAndParens(t *testing.T) {
	scope := map[string]unit.Value{
		"A": unit.NewValue(2, ""),
		"B": unit.NewValue(3, ""),
		"C": unit.NewValue(4, ""),
	}
	v, ok := EvalUnits("A+B*C", scope)
	require.True(t, ok)
	assert.Equal(t, 14.0, v.Number)

	v, ok = EvalUnits("(A+B)*C", scope)
	require.True(t, ok)
	assert.Equal(t, 20.0, v.Number)

	v, ok = EvalUnits("-A*B", scope)
	require.True(t, ok)
	assert.Equal(t, -6.0, v.Number)
}

func TestEvalUnits_MissingIdentifierIsUnitlessZero(t *testing.T) {
	v, ok := EvalUnits("A+B", map[string]unit.Value{"A": unit.NewValue(7, "")})
	require.True(t, ok)
	assert.Equal(t, 7.0, v.Number)
	assert.True(t, v.Unit.IsEmpty())
}

func TestEvalUnits_UnsupportedGrammarFails(t *testing.T) {
	scope := map[string]unit.Value{"A": unit.NewValue(2, "kg")}
	for _, expr := range []string{"A^2", "A*", "(A", "", "IF(A, 1, 2)"} {
		_, ok := EvalUnits(expr, scope)
		assert.False(t, ok, "expr %q should not evaluate in unit mode", expr)
	}
}

func TestEval_Arithmetic(t *testing.T) {
	tests := []struct {
		expr string
		want any
	}{
		{"1+2*3", 7.0},
		{"(1+2)*3", 9.0},
		{"10/4", 2.5},
		{"-3+5", 2.0},
		{"2^10", 1024.0},
		{"1 + 2 > 2", true},
		{"3 <= 2", false},
		{"2 == 2", true},
		{"2 != 2", false},
	}
	for _, tt := range tests {
		got, err := Eval(tt.expr, nil)
		require.NoError(t, err, tt.expr)
		assert.Equal(t, tt.want, got, tt.expr)
	}
}

func TestEval_StringAwareComparison(t *testing.T) {
	scope := map[string]any{"Fuel": "diesel", "Qty": 10.0}

	got, err := Eval(`Fuel == "diesel"`, scope)
	require.NoError(t, err)
	assert.Equal(t, true, got)

	got, err = Eval(`Fuel != "petrol"`, scope)
	require.NoError(t, err)
	assert.Equal(t, true, got)

	// Numeric string compares numerically against a number.
	got, err = Eval(`"10" == Qty`, scope)
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestEval_IF(t *testing.T) {
	scope := map[string]any{"Value": 42.0}

	got, err := Eval(`IF(Value > 10, "big", "small")`, scope)
	require.NoError(t, err)
	assert.Equal(t, "big", got)

	got, err = Eval(`IF(Value < 10, "big")`, scope)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEval_IFS(t *testing.T) {
	scope := map[string]any{"n": 5.0}

	got, err := Eval(`IFS(n > 10, "large", n > 3, "medium", n > 0, "small")`, scope)
	require.NoError(t, err)
	assert.Equal(t, "medium", got)

	// Trailing default when nothing matches.
	got, err = Eval(`IFS(n > 10, "large", "other")`, scope)
	require.NoError(t, err)
	assert.Equal(t, "other", got)

	// No match, no default: error.
	_, err = Eval(`IFS(n > 10, "large")`, scope)
	assert.Error(t, err)
}

func TestEval_SWITCH(t *testing.T) {
	scope := map[string]any{"fuel": "diesel"}

	got, err := Eval(`SWITCH(fuel, "petrol", 2.31, "diesel", 2.68)`, scope)
	require.NoError(t, err)
	assert.Equal(t, 2.68, got)

	// Even argument count: last argument is the default.
	got, err = Eval(`SWITCH(fuel, "petrol", 2.31, "lpg", 1.51, 0)`, scope)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)

	// Value-or-string equality: "2" matches 2.
	got, err = Eval(`SWITCH(2, "2", "two", "other")`, nil)
	require.NoError(t, err)
	assert.Equal(t, "two", got)
}

func TestEval_XLOOKUP(t *testing.T) {
	scope := map[string]any{
		"ids":   []any{1.0, 2.0, 3.0},
		"names": []any{"a", "b", "c"},
	}

	got, err := Eval(`XLOOKUP(2, ids, names)`, scope)
	require.NoError(t, err)
	assert.Equal(t, "b", got)

	got, err = Eval(`XLOOKUP(9, ids, names, "missing")`, scope)
	require.NoError(t, err)
	assert.Equal(t, "missing", got)

	got, err = Eval(`XLOOKUP(9, ids, names)`, scope)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Scalar where an array is required is an error.
	_, err = Eval(`XLOOKUP(2, 1, names)`, scope)
	assert.Error(t, err)
}

func TestEval_MathFunctions(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"sqrt(16)", 4},
		{"abs(-3)", 3},
		{"pow(2, 8)", 256},
		{"round(2.6)", 3},
		{"round(2.345, 2)", 2.35},
		{"ceil(1.1)", 2},
		{"floor(1.9)", 1},
		{"min(3, 1, 2)", 1},
		{"max(3, 1, 2)", 3},
		{"mod(7, 3)", 1},
		{"log(e)", 1},
		{"log10(100)", 2},
	}
	for _, tt := range tests {
		got, err := Eval(tt.expr, nil)
		require.NoError(t, err, tt.expr)
		assert.InDelta(t, tt.want, got.(float64), 1e-9, tt.expr)
	}
}

func TestEval_BooleanFunctionsAndConstants(t *testing.T) {
	got, err := Eval(`and(true, 1, "x")`, nil)
	require.NoError(t, err)
	assert.Equal(t, true, got)

	got, err = Eval(`or(false, 0, "")`, nil)
	require.NoError(t, err)
	assert.Equal(t, false, got)

	got, err = Eval(`not(0)`, nil)
	require.NoError(t, err)
	assert.Equal(t, true, got)

	got, err = Eval(`xor(true, true, false)`, nil)
	require.NoError(t, err)
	assert.Equal(t, false, got)

	got, err = Eval(`pi`, nil)
	require.NoError(t, err)
	assert.InDelta(t, math.Pi, got.(float64), 1e-12)

	got, err = Eval(`null`, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEval_UndefinedVariable(t *testing.T) {
	_, err := Eval("Missing + 1", map[string]any{})
	assert.Error(t, err)
}

func TestTokenizer_DropsUnknownCharacters(t *testing.T) {
	// '#' and '@' are outside the language and silently dropped.
	got, err := Eval("1 #@ + 2", nil)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)
}

func TestTokenizer_LoneEqualsIsDropped(t *testing.T) {
	// Only '==' compares; a single '=' is out of the language.
	got, err := Eval("1 = + 2", nil)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)

	got, err = Eval("1 == 1", nil)
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestIdentifiers(t *testing.T) {
	assert.Equal(t, []string{"IF", "Total", "abs", "x_1"}, Identifiers(`IF(Total > 1, abs(x_1), "ignored words")`))
	assert.Empty(t, Identifiers("1 + 2"))
}

func TestContainsOperator(t *testing.T) {
	assert.True(t, ContainsOperator("A+B", "+-"))
	assert.False(t, ContainsOperator("A*B", "+-"))
	assert.False(t, ContainsOperator(`"a+b"`, "+-"), "operators inside strings do not count")
}

func TestKnownFunction(t *testing.T) {
	for _, name := range []string{"IF", "ifs", "Switch", "XLOOKUP", "sqrt", "mod", "and", "pi", "null"} {
		assert.True(t, KnownFunction(name), name)
	}
	assert.False(t, KnownFunction("Total"))
	assert.False(t, KnownFunction("vlookup"))
}
