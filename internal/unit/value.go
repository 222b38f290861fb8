package unit

import "strconv"

// Value is a number tagged with a compound unit. It is the quantity that
// flows along graph edges: "1000 L", "2.68 kg/L".
type Value struct {
	Number float64
	Unit   Expression
}

// NewValue builds a Value from a number and a raw unit string.
func NewValue(number float64, unitStr string) Value {
	return Value{Number: number, Unit: Parse(unitStr)}
}

// Mul multiplies two values, combining and cancelling their units.
func (v Value) Mul(o Value) Value {
	return Value{Number: v.Number * o.Number, Unit: v.Unit.Multiply(o.Unit)}
}

// Div divides two values, combining and cancelling their units.
func (v Value) Div(o Value) Value {
	return Value{Number: v.Number / o.Number, Unit: v.Unit.Divide(o.Unit)}
}

// Add sums two values. It reports false when the units are not compatible;
// the returned Value is meaningless in that case.
func (v Value) Add(o Value) (Value, bool) {
	if !Compatible(v.Unit, o.Unit) {
		return Value{}, false
	}
	return Value{Number: v.Number + o.Number, Unit: v.Unit.Simplify()}, true
}

// Sub subtracts o from v under the same compatibility rule as Add.
func (v Value) Sub(o Value) (Value, bool) {
	if !Compatible(v.Unit, o.Unit) {
		return Value{}, false
	}
	return Value{Number: v.Number - o.Number, Unit: v.Unit.Simplify()}, true
}

// Neg returns the value with its sign flipped.
func (v Value) Neg() Value {
	return Value{Number: -v.Number, Unit: v.Unit}
}

// Format renders the value for display: "2680 kg". A unitless value renders
// as the bare number.
func (v Value) Format() string {
	num := strconv.FormatFloat(v.Number, 'f', -1, 64)
	if v.Unit.IsEmpty() {
		return num
	}
	return num + " " + v.Unit.Format()
}
