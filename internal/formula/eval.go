package formula

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Eval evaluates a formula in value mode against a scope of plain values.
// Scope entries may be numbers, strings, booleans, nil, or whole-column
// arrays ([]any) for XLOOKUP bindings. Value mode supports comparison
// operators with string-aware semantics, boolean/null literals, the
// conditional and lookup functions, and the common math set.
func Eval(expr string, scope map[string]any) (any, error) {
	p := &valueParser{toks: tokenize(expr), scope: scope}
	v, err := p.comparison()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokenEOF {
		return nil, fmt.Errorf("unexpected %q in formula", tok.text)
	}
	return v, nil
}

type valueParser struct {
	toks  []token
	pos   int
	scope map[string]any
}

func (p *valueParser) peek() token { return p.toks[p.pos] }

func (p *valueParser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokenEOF {
		p.pos++
	}
	return t
}

// comparison := additive (COMPARE additive)*
func (p *valueParser) comparison() (any, error) {
	left, err := p.additive()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek().kind
		switch op {
		case tokenEQ, tokenNE, tokenGT, tokenLT, tokenGE, tokenLE:
			p.next()
			right, err := p.additive()
			if err != nil {
				return nil, err
			}
			left = compare(op, left, right)
		default:
			return left, nil
		}
	}
}

// additive := multiplicative (('+'|'-') multiplicative)*
func (p *valueParser) additive() (any, error) {
	left, err := p.multiplicative()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().kind {
		case tokenPlus:
			p.next()
			right, err := p.multiplicative()
			if err != nil {
				return nil, err
			}
			left, err = arith("+", left, right)
			if err != nil {
				return nil, err
			}
		case tokenMinus:
			p.next()
			right, err := p.multiplicative()
			if err != nil {
				return nil, err
			}
			left, err = arith("-", left, right)
			if err != nil {
				return nil, err
			}
		default:
			return left, nil
		}
	}
}

// multiplicative := unary (('*'|'/') unary)*
func (p *valueParser) multiplicative() (any, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().kind {
		case tokenStar:
			p.next()
			right, err := p.unary()
			if err != nil {
				return nil, err
			}
			left, err = arith("*", left, right)
			if err != nil {
				return nil, err
			}
		case tokenSlash:
			p.next()
			right, err := p.unary()
			if err != nil {
				return nil, err
			}
			left, err = arith("/", left, right)
			if err != nil {
				return nil, err
			}
		default:
			return left, nil
		}
	}
}

// unary := '-' unary | power
func (p *valueParser) unary() (any, error) {
	if p.peek().kind == tokenMinus {
		p.next()
		v, err := p.unary()
		if err != nil {
			return nil, err
		}
		n, ok := ToNumber(v)
		if !ok {
			return nil, fmt.Errorf("cannot negate %v", v)
		}
		return -n, nil
	}
	return p.power()
}

// power := primary ('^' unary)?  (right associative)
func (p *valueParser) power() (any, error) {
	base, err := p.primary()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokenCaret {
		return base, nil
	}
	p.next()
	exp, err := p.unary()
	if err != nil {
		return nil, err
	}
	b, ok1 := ToNumber(base)
	e, ok2 := ToNumber(exp)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("^ requires numeric operands")
	}
	return math.Pow(b, e), nil
}

// primary := '(' comparison ')' | NUMBER | STRING | IDENT | IDENT '(' args ')'
func (p *valueParser) primary() (any, error) {
	switch tok := p.peek(); tok.kind {
	case tokenLParen:
		p.next()
		v, err := p.comparison()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokenRParen {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		p.next()
		return v, nil
	case tokenNumber:
		p.next()
		return tok.num, nil
	case tokenString:
		p.next()
		return tok.text, nil
	case tokenIdent:
		p.next()
		if p.peek().kind == tokenLParen {
			return p.call(tok.text)
		}
		return p.resolve(tok.text)
	default:
		return nil, fmt.Errorf("unexpected %q in formula", tok.text)
	}
}

// call parses and evaluates a function invocation. Arguments are evaluated
// eagerly, left to right.
func (p *valueParser) call(name string) (any, error) {
	p.next() // '('
	var args []any
	if p.peek().kind != tokenRParen {
		for {
			v, err := p.comparison()
			if err != nil {
				return nil, err
			}
			args = append(args, v)
			if p.peek().kind != tokenComma {
				break
			}
			p.next()
		}
	}
	if p.peek().kind != tokenRParen {
		return nil, fmt.Errorf("%s: missing closing parenthesis", name)
	}
	p.next()
	return callFunction(name, args)
}

// resolve looks up a bare identifier: built-in constants first, then scope.
func (p *valueParser) resolve(name string) (any, error) {
	switch strings.ToLower(name) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null":
		return nil, nil
	case "pi":
		return math.Pi, nil
	case "e":
		return math.E, nil
	}
	if v, ok := p.scope[name]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("undefined variable %q", name)
}

// arith applies a binary arithmetic operator to numeric operands.
// "+" concatenates when either operand is a string.
func arith(op string, a, b any) (any, error) {
	x, okA := ToNumber(a)
	y, okB := ToNumber(b)
	if op == "+" && (!okA || !okB) {
		sa, isStrA := a.(string)
		sb, isStrB := b.(string)
		if isStrA || isStrB {
			if !isStrA {
				sa = Stringify(a)
			}
			if !isStrB {
				sb = Stringify(b)
			}
			return sa + sb, nil
		}
	}
	if !okA || !okB {
		return nil, fmt.Errorf("%s requires numeric operands", op)
	}
	switch op {
	case "+":
		return x + y, nil
	case "-":
		return x - y, nil
	case "*":
		return x * y, nil
	case "/":
		return x / y, nil
	}
	return nil, fmt.Errorf("unknown operator %s", op)
}

// compare applies a comparison operator. Two numeric operands compare
// numerically; anything else compares as strings, never as NaN.
func compare(op tokenKind, a, b any) bool {
	x, okA := ToNumber(a)
	y, okB := ToNumber(b)
	if okA && okB {
		switch op {
		case tokenEQ:
			return x == y
		case tokenNE:
			return x != y
		case tokenGT:
			return x > y
		case tokenLT:
			return x < y
		case tokenGE:
			return x >= y
		case tokenLE:
			return x <= y
		}
		return false
	}

	sa, sb := Stringify(a), Stringify(b)
	switch op {
	case tokenEQ:
		return sa == sb
	case tokenNE:
		return sa != sb
	case tokenGT:
		return sa > sb
	case tokenLT:
		return sa < sb
	case tokenGE:
		return sa >= sb
	case tokenLE:
		return sa <= sb
	}
	return false
}

// equalValues is the value-or-string equality used by SWITCH, XLOOKUP and
// the join hash: numeric when both sides coerce, string otherwise.
func equalValues(a, b any) bool {
	return compare(tokenEQ, a, b)
}

// ToNumber coerces a value to float64. Strings parse when they are numeric
// literals; booleans map to 0/1; nil never coerces.
func ToNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Stringify renders a value the way the formula language compares and
// concatenates it: numbers without trailing zeros, nil as empty string.
func Stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		if s {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(s)
	}
}

// Truthy reports whether a value counts as true in conditionals.
func Truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case float64:
		return b != 0
	case string:
		return b != ""
	default:
		return true
	}
}
