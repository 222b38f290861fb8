package formula

import (
	"github.com/calcflow-labs/calcflow/internal/unit"
)

// EvalUnits evaluates an arithmetic formula against a scope of unit-tagged
// values. Multiplication and division combine units through the unit
// algebra; addition and subtraction require compatible units. It reports
// ok=false when the formula cannot produce a unit-consistent result,
// whether from incompatible addition, grammar the unit mode does not
// support, or a parse failure; the caller falls back or reports a mismatch.
//
// An identifier absent from scope resolves to a unitless zero rather than
// failing; the graph evaluator logs when that happens.
func EvalUnits(expr string, scope map[string]unit.Value) (unit.Value, bool) {
	p := &unitParser{toks: tokenize(expr), scope: scope}
	v, ok := p.expression()
	if !ok || p.peek().kind != tokenEOF {
		return unit.Value{}, false
	}
	return v, true
}

type unitParser struct {
	toks  []token
	pos   int
	scope map[string]unit.Value
}

func (p *unitParser) peek() token { return p.toks[p.pos] }

func (p *unitParser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokenEOF {
		p.pos++
	}
	return t
}

// expression := term (('+'|'-') term)*
func (p *unitParser) expression() (unit.Value, bool) {
	left, ok := p.term()
	if !ok {
		return unit.Value{}, false
	}
	for {
		switch p.peek().kind {
		case tokenPlus:
			p.next()
			right, ok := p.term()
			if !ok {
				return unit.Value{}, false
			}
			left, ok = left.Add(right)
			if !ok {
				return unit.Value{}, false
			}
		case tokenMinus:
			p.next()
			right, ok := p.term()
			if !ok {
				return unit.Value{}, false
			}
			left, ok = left.Sub(right)
			if !ok {
				return unit.Value{}, false
			}
		default:
			return left, true
		}
	}
}

// term := factor (('*'|'/') factor)*
func (p *unitParser) term() (unit.Value, bool) {
	left, ok := p.factor()
	if !ok {
		return unit.Value{}, false
	}
	for {
		switch p.peek().kind {
		case tokenStar:
			p.next()
			right, ok := p.factor()
			if !ok {
				return unit.Value{}, false
			}
			left = left.Mul(right)
		case tokenSlash:
			p.next()
			right, ok := p.factor()
			if !ok {
				return unit.Value{}, false
			}
			left = left.Div(right)
		default:
			return left, true
		}
	}
}

// factor := '(' expression ')' | '-' factor | NUMBER | IDENT
func (p *unitParser) factor() (unit.Value, bool) {
	switch tok := p.peek(); tok.kind {
	case tokenLParen:
		p.next()
		v, ok := p.expression()
		if !ok || p.peek().kind != tokenRParen {
			return unit.Value{}, false
		}
		p.next()
		return v, true
	case tokenMinus:
		p.next()
		v, ok := p.factor()
		if !ok {
			return unit.Value{}, false
		}
		return v.Neg(), true
	case tokenNumber:
		p.next()
		return unit.Value{Number: tok.num}, true
	case tokenIdent:
		p.next()
		if v, ok := p.scope[tok.text]; ok {
			return v, true
		}
		return unit.Value{}, true // missing identifier: unitless zero
	default:
		return unit.Value{}, false
	}
}
