// Package unit implements the compound-unit algebra used by the calculation
// engine. A unit is a pair of base-token multisets (numerator and
// denominator); multiplication, division and cancellation operate on those
// multisets, so "kg/L * L" simplifies back to "kg".
package unit

import (
	"strconv"
	"strings"
	"unicode"
)

// Unitless is the display form of an expression with no tokens.
const Unitless = "unitless"

// molecules are chemical formula tokens whose trailing digits are part of
// the name, not an exponent. "CO2" is carbon dioxide, never "CO" squared.
var molecules = map[string]struct{}{
	"CO2": {}, "H2O": {}, "SO2": {}, "NO2": {}, "CH4": {},
	"N2O": {}, "O2": {}, "N2": {}, "H2": {},
}

// superscripts maps Unicode superscript digits to their exponent value.
var superscripts = map[rune]int{'²': 2, '³': 3, '⁴': 4, '⁵': 5}

// Expression is a compound unit: an ordered sequence of numerator tokens and
// denominator tokens. Order carries no meaning; equality is multiset
// equality after simplification. A simplified expression never holds the
// same token on both sides.
type Expression struct {
	Num []string
	Den []string
}

// Parse converts a unit string like "kg·CO2/kWh" or "m^2 s" into an
// Expression. The string splits on "/" into numerator and optional
// denominator; each side splits on "·", "*" or whitespace into tokens.
// Exponents may be written as "^N", as a trailing digit suffix ("m2"), or
// with Unicode superscripts ("m²"); a negative exponent moves the token to
// the other side. The result is simplified.
func Parse(s string) Expression {
	s = strings.TrimSpace(s)
	if s == "" || s == Unitless {
		return Expression{}
	}

	var e Expression
	num, den, hasDen := strings.Cut(s, "/")
	parseSide(num, &e.Num, &e.Den)
	if hasDen {
		parseSide(den, &e.Den, &e.Num)
	}
	return e.Simplify()
}

// parseSide expands the tokens of one side of a unit string into same
// (tokens with positive exponents) and other (negative exponents).
func parseSide(part string, same, other *[]string) {
	fields := strings.FieldsFunc(part, func(r rune) bool {
		return r == '·' || r == '*' || unicode.IsSpace(r)
	})
	for _, field := range fields {
		base, exp := splitExponent(field)
		if base == "" || exp == 0 {
			continue
		}
		dst, n := same, exp
		if exp < 0 {
			dst, n = other, -exp
		}
		for i := 0; i < n; i++ {
			*dst = append(*dst, base)
		}
	}
}

// splitExponent separates a token into its base name and exponent.
func splitExponent(tok string) (string, int) {
	// Explicit caret form: kg^2, m^-1.
	if base, expStr, ok := strings.Cut(tok, "^"); ok {
		exp, err := strconv.Atoi(expStr)
		if err != nil {
			return base, 1
		}
		return base, exp
	}

	// Unicode superscript suffix: m², s³.
	runes := []rune(tok)
	if n, ok := superscripts[runes[len(runes)-1]]; ok {
		return string(runes[:len(runes)-1]), n
	}

	// Trailing digit suffix: m2, s3. Molecule names keep their digits.
	if _, ok := molecules[tok]; ok {
		return tok, 1
	}
	cut := len(tok)
	for cut > 0 && tok[cut-1] >= '0' && tok[cut-1] <= '9' {
		cut--
	}
	if cut == len(tok) || cut == 0 {
		return tok, 1
	}
	exp, err := strconv.Atoi(tok[cut:])
	if err != nil || exp == 0 {
		return tok, 1
	}
	return tok[:cut], exp
}

// Multiply returns the simplified product of two expressions.
func (e Expression) Multiply(o Expression) Expression {
	return Expression{
		Num: concat(e.Num, o.Num),
		Den: concat(e.Den, o.Den),
	}.Simplify()
}

// Divide returns the simplified quotient of two expressions.
func (e Expression) Divide(o Expression) Expression {
	return Expression{
		Num: concat(e.Num, o.Den),
		Den: concat(e.Den, o.Num),
	}.Simplify()
}

// Simplify cancels matching tokens between numerator and denominator, one
// occurrence per match, for every occurrence. Token order within each side
// is preserved for the survivors.
func (e Expression) Simplify() Expression {
	counts := make(map[string]int, len(e.Den))
	for _, tok := range e.Den {
		counts[tok]++
	}

	num := make([]string, 0, len(e.Num))
	cancelled := make(map[string]int, len(counts))
	for _, tok := range e.Num {
		if counts[tok] > 0 {
			counts[tok]--
			cancelled[tok]++
			continue
		}
		num = append(num, tok)
	}

	den := make([]string, 0, len(e.Den))
	for _, tok := range e.Den {
		if cancelled[tok] > 0 {
			cancelled[tok]--
			continue
		}
		den = append(den, tok)
	}

	return Expression{Num: num, Den: den}
}

// IsEmpty reports whether the expression has no tokens on either side.
func (e Expression) IsEmpty() bool {
	return len(e.Num) == 0 && len(e.Den) == 0
}

// Format renders the expression as a display string. Repeated tokens group
// into exponents (count 1 bare, 2 and 3 as superscripts, larger as "^N");
// tokens join with "·" and sides with "/". An empty expression renders as
// "unitless", an empty numerator as "1/den".
func (e Expression) Format() string {
	num := formatSide(e.Num)
	den := formatSide(e.Den)
	switch {
	case num == "" && den == "":
		return Unitless
	case den == "":
		return num
	case num == "":
		return "1/" + den
	default:
		return num + "/" + den
	}
}

// formatSide groups one side's tokens by identity, in first-appearance
// order, and renders each group with its exponent.
func formatSide(tokens []string) string {
	if len(tokens) == 0 {
		return ""
	}
	var order []string
	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}

	parts := make([]string, 0, len(order))
	for _, tok := range order {
		switch n := counts[tok]; n {
		case 1:
			parts = append(parts, tok)
		case 2:
			parts = append(parts, tok+"²")
		case 3:
			parts = append(parts, tok+"³")
		default:
			parts = append(parts, tok+"^"+strconv.Itoa(n))
		}
	}
	return strings.Join(parts, "·")
}

// Compatible reports whether two expressions denote the same unit: after
// simplification their numerator and denominator token multisets match
// exactly. Addition and subtraction are only defined between compatible
// units.
func Compatible(a, b Expression) bool {
	a, b = a.Simplify(), b.Simplify()
	return sameMultiset(a.Num, b.Num) && sameMultiset(a.Den, b.Den)
}

func sameMultiset(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, tok := range a {
		counts[tok]++
	}
	for _, tok := range b {
		counts[tok]--
		if counts[tok] < 0 {
			return false
		}
	}
	return true
}

func concat(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
