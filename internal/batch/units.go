package batch

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/calcflow-labs/calcflow/internal/unit"
)

var (
	soloRefRe    = regexp.MustCompile(`^\s*\[([^\]]+)\]\s*$`)
	soloAggRe    = regexp.MustCompile(`^\s*\$[A-Z]+_\[([^\]]+)\]\s*$`)
	binaryRefRe  = regexp.MustCompile(`^\s*\[([^\]]+)\]\s*([*/+\-])\s*\[([^\]]+)\]\s*$`)
	constLeftRe  = regexp.MustCompile(`^\s*-?\d+(?:\.\d+)?\s*\*\s*\[([^\]]+)\]\s*$`)
	constRightRe = regexp.MustCompile(`^\s*\[([^\]]+)\]\s*\*\s*-?\d+(?:\.\d+)?\s*$`)
	refTokenRe   = regexp.MustCompile(`\$[A-Z]+_\[([^\]]+)\]|\[([^\]]+)\]`)
)

// deriveUnit infers the new column's unit from the formula shape. Exact
// binary and constant-scaled forms get proper unit algebra; anything more
// elaborate falls back to a left-to-right walk over the references, which
// is an approximation and is flagged with a warning when + or - appears.
func deriveUnit(f string, resolve func(name string) (string, bool)) (string, string) {
	lookup := func(name string) unit.Expression {
		if u, ok := resolve(name); ok && u != "" {
			return unit.Parse(u)
		}
		return unit.Expression{}
	}

	if m := soloRefRe.FindStringSubmatch(f); m != nil {
		return formatUnit(lookup(m[1])), ""
	}
	if m := soloAggRe.FindStringSubmatch(f); m != nil {
		return formatUnit(lookup(m[1])), ""
	}
	if m := binaryRefRe.FindStringSubmatch(f); m != nil {
		left, op, right := lookup(m[1]), m[2], lookup(m[3])
		switch op {
		case "*":
			return formatUnit(left.Multiply(right)), ""
		case "/":
			return formatUnit(left.Divide(right)), ""
		default:
			if unit.Compatible(left, right) {
				return formatUnit(left), ""
			}
			warning := fmt.Sprintf("unit mismatch: combining %s and %s with %q, keeping %s",
				orUnitless(formatUnit(left)), orUnitless(formatUnit(right)), op, orUnitless(formatUnit(left)))
			return formatUnit(left), warning
		}
	}
	if m := constLeftRe.FindStringSubmatch(f); m != nil {
		return formatUnit(lookup(m[1])), ""
	}
	if m := constRightRe.FindStringSubmatch(f); m != nil {
		return formatUnit(lookup(m[1])), ""
	}

	return deriveUnitWalk(f, lookup)
}

// deriveUnitWalk accumulates units across all references left to right,
// applying the most recent * or / seen between them. Emissions formulas
// are overwhelmingly products and quotients, so this covers the long tail
// without a full unit-aware parse of lookup and conditional calls.
func deriveUnitWalk(f string, lookup func(name string) unit.Expression) (string, string) {
	locs := refTokenRe.FindAllStringSubmatchIndex(f, -1)
	if len(locs) == 0 {
		return "", ""
	}

	acc := unit.Expression{}
	first := true
	prevEnd := 0
	hasAddSub := false
	for _, loc := range locs {
		name := submatchAt(f, loc)
		between := f[prevEnd:loc[0]]
		prevEnd = loc[1]

		if strings.ContainsAny(between, "+-") {
			hasAddSub = true
		}
		if first {
			acc = lookup(name)
			first = false
			continue
		}
		op := lastMulDiv(between)
		if op == '/' {
			acc = acc.Divide(lookup(name))
		} else {
			acc = acc.Multiply(lookup(name))
		}
	}
	if strings.ContainsAny(f[prevEnd:], "+-") {
		hasAddSub = true
	}

	warning := ""
	if hasAddSub {
		warning = "derived unit is approximate: formula mixes + or - with unit-bearing references"
	}
	return formatUnit(acc), warning
}

// submatchAt picks whichever capture group matched: aggregate column or
// plain reference.
func submatchAt(f string, loc []int) string {
	if loc[2] >= 0 {
		return f[loc[2]:loc[3]]
	}
	return f[loc[4]:loc[5]]
}

func lastMulDiv(s string) byte {
	op := byte('*')
	for i := 0; i < len(s); i++ {
		if s[i] == '*' || s[i] == '/' {
			op = s[i]
		}
	}
	return op
}

func formatUnit(e unit.Expression) string {
	e = e.Simplify()
	if e.IsEmpty() {
		return ""
	}
	return e.Format()
}

func orUnitless(u string) string {
	if u == "" {
		return "unitless"
	}
	return u
}
