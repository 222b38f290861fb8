package unit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		num   []string
		den   []string
	}{
		{"single token", "kg", []string{"kg"}, nil},
		{"quotient", "kg/L", []string{"kg"}, []string{"L"}},
		{"dot separator", "kg·km", []string{"kg", "km"}, nil},
		{"star separator", "kg*km", []string{"kg", "km"}, nil},
		{"whitespace separator", "kg km", []string{"kg", "km"}, nil},
		{"caret exponent", "m^2", []string{"m", "m"}, nil},
		{"digit suffix exponent", "m2", []string{"m", "m"}, nil},
		{"superscript exponent", "m³", []string{"m", "m", "m"}, nil},
		{"negative exponent flips side", "s^-1", nil, []string{"s"}},
		{"negative exponent in denominator", "kg/m^-2", []string{"kg", "m", "m"}, nil},
		{"compound denominator", "kg/kWh·h", []string{"kg"}, []string{"kWh", "h"}},
		{"empty", "", nil, nil},
		{"unitless literal", "unitless", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input)
			assert.ElementsMatch(t, tt.num, got.Num, "numerator")
			assert.ElementsMatch(t, tt.den, got.Den, "denominator")
		})
	}
}

func TestParse_MoleculeTokensKeepDigits(t *testing.T) {
	for _, mol := range []string{"CO2", "H2O", "SO2", "NO2", "CH4", "N2O", "O2", "N2", "H2"} {
		got := Parse(mol)
		require.Equal(t, []string{mol}, got.Num, "molecule %s must stay one token", mol)
	}

	// A caret exponent still applies to a molecule token.
	got := Parse("CO2^2")
	assert.ElementsMatch(t, []string{"CO2", "CO2"}, got.Num)
}

func TestParse_CancelsAcrossSides(t *testing.T) {
	got := Parse("kg·L/L")
	assert.Equal(t, []string{"kg"}, got.Num)
	assert.Empty(t, got.Den)
}

func TestSimplify(t *testing.T) {
	e := Expression{
		Num: []string{"kg", "kg", "m"},
		Den: []string{"kg", "m", "s"},
	}
	got := e.Simplify()
	assert.Equal(t, []string{"kg"}, got.Num)
	assert.Equal(t, []string{"s"}, got.Den)
}

func TestMultiplyDivideRoundTrip(t *testing.T) {
	// multiply(divide(U, V), V) == U after simplification.
	cases := []struct{ u, v string }{
		{"kg", "L"},
		{"kg/L", "L"},
		{"kg·km/kWh", "km·s"},
		{"m^2", "m"},
		{"CO2/kWh", "CO2"},
	}
	for _, c := range cases {
		u, v := Parse(c.u), Parse(c.v)
		got := u.Divide(v).Multiply(v)
		assert.True(t, Compatible(u, got), "%s round-trip through %s: got %s", c.u, c.v, got.Format())
	}
}

func TestCompatible(t *testing.T) {
	assert.True(t, Compatible(Parse("kg/L"), Parse("kg/L")))
	assert.True(t, Compatible(Parse("kg·m"), Parse("m·kg")), "order-insensitive")
	assert.True(t, Compatible(Parse("kg·L/L"), Parse("kg")), "compares after simplification")
	assert.False(t, Compatible(Parse("kg"), Parse("L")))
	assert.False(t, Compatible(Parse("kg"), Parse("kg/L")))
	assert.False(t, Compatible(Parse("kg·kg"), Parse("kg")))
	assert.True(t, Compatible(Expression{}, Parse("")))
}

func TestFormat(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"kg", "kg"},
		{"kg/L", "kg/L"},
		{"m^2", "m²"},
		{"m^3", "m³"},
		{"m^4", "m^4"},
		{"kg·km/kWh", "kg·km/kWh"},
		{"s^-1", "1/s"},
		{"", "unitless"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Parse(tt.input).Format(), "input %q", tt.input)
	}
}

func TestValueArithmetic(t *testing.T) {
	litres := NewValue(1000, "L")
	factor := NewValue(2.68, "kg/L")

	product := litres.Mul(factor)
	assert.Equal(t, "2680 kg", product.Format())

	// 2680/2.68 is not exact in floating point, so compare the number
	// with a tolerance and the unit separately.
	quotient := product.Div(factor)
	assert.InDelta(t, 1000, quotient.Number, 1e-9)
	assert.Equal(t, "L", quotient.Unit.Format())

	sum, ok := product.Add(NewValue(20, "kg"))
	require.True(t, ok)
	assert.Equal(t, "2700 kg", sum.Format())

	_, ok = product.Add(litres)
	assert.False(t, ok, "kg + L must not be addable")

	diff, ok := product.Sub(NewValue(680, "kg"))
	require.True(t, ok)
	assert.Equal(t, "2000 kg", diff.Format())
}

func TestValueFormat_Unitless(t *testing.T) {
	assert.Equal(t, "42", NewValue(42, "").Format())
	assert.Equal(t, "2.5", NewValue(2.5, "unitless").Format())
}
