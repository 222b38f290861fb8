// Package formula implements the expression language shared by the scalar
// graph and the batch engine. One tokenizer feeds two recursive-descent
// evaluators: a unit-aware evaluator over unit.Values and a value-mode
// evaluator with comparisons, functions and column arrays.
package formula

import (
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNumber
	tokenIdent
	tokenString
	tokenPlus
	tokenMinus
	tokenStar
	tokenSlash
	tokenCaret
	tokenLParen
	tokenRParen
	tokenComma
	tokenEQ
	tokenNE
	tokenGT
	tokenLT
	tokenGE
	tokenLE
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// tokenize splits a formula into tokens. Identifiers follow
// [A-Za-z][A-Za-z0-9_]*, numbers are unsigned decimals, and strings may use
// single or double quotes. Whitespace is skipped and any character outside
// the language is silently dropped.
func tokenize(input string) []token {
	var toks []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isLetter(c):
			start := i
			for i < len(input) && (isLetter(input[i]) || isDigit(input[i]) || input[i] == '_') {
				i++
			}
			toks = append(toks, token{kind: tokenIdent, text: input[start:i]})
		case isDigit(c) || (c == '.' && i+1 < len(input) && isDigit(input[i+1])):
			start := i
			for i < len(input) && (isDigit(input[i]) || input[i] == '.') {
				i++
			}
			n, err := strconv.ParseFloat(input[start:i], 64)
			if err != nil {
				continue
			}
			toks = append(toks, token{kind: tokenNumber, text: input[start:i], num: n})
		case c == '"' || c == '\'':
			quote := c
			i++
			start := i
			for i < len(input) && input[i] != quote {
				i++
			}
			toks = append(toks, token{kind: tokenString, text: input[start:i]})
			if i < len(input) {
				i++ // closing quote
			}
		case c == '+':
			toks = append(toks, token{kind: tokenPlus, text: "+"})
			i++
		case c == '-':
			toks = append(toks, token{kind: tokenMinus, text: "-"})
			i++
		case c == '*':
			toks = append(toks, token{kind: tokenStar, text: "*"})
			i++
		case c == '/':
			toks = append(toks, token{kind: tokenSlash, text: "/"})
			i++
		case c == '^':
			toks = append(toks, token{kind: tokenCaret, text: "^"})
			i++
		case c == '(':
			toks = append(toks, token{kind: tokenLParen, text: "("})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokenRParen, text: ")"})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokenComma, text: ","})
			i++
		case c == '=':
			if i+1 < len(input) && input[i+1] == '=' {
				toks = append(toks, token{kind: tokenEQ, text: "=="})
				i += 2
			} else {
				i++ // lone '=' is dropped like other out-of-language characters
			}
		case c == '!':
			if i+1 < len(input) && input[i+1] == '=' {
				toks = append(toks, token{kind: tokenNE, text: "!="})
				i += 2
			} else {
				i++ // lone '!' is dropped
			}
		case c == '>':
			if i+1 < len(input) && input[i+1] == '=' {
				toks = append(toks, token{kind: tokenGE, text: ">="})
				i += 2
			} else {
				toks = append(toks, token{kind: tokenGT, text: ">"})
				i++
			}
		case c == '<':
			if i+1 < len(input) && input[i+1] == '=' {
				toks = append(toks, token{kind: tokenLE, text: "<="})
				i += 2
			} else {
				toks = append(toks, token{kind: tokenLT, text: "<"})
				i++
			}
		default:
			// Unknown characters are dropped, not errors.
			i++
		}
	}
	return append(toks, token{kind: tokenEOF})
}

// Identifiers extracts the identifier tokens of a formula in order of
// appearance. String literal contents are not identifiers.
func Identifiers(input string) []string {
	var names []string
	for _, tok := range tokenize(input) {
		if tok.kind == tokenIdent {
			names = append(names, tok.text)
		}
	}
	return names
}

// ContainsOperator reports whether the formula contains any of the given
// operator characters outside string literals.
func ContainsOperator(input string, operators string) bool {
	inString := byte(0)
	for i := 0; i < len(input); i++ {
		c := input[i]
		if inString != 0 {
			if c == inString {
				inString = 0
			}
			continue
		}
		if c == '"' || c == '\'' {
			inString = c
			continue
		}
		if strings.IndexByte(operators, c) >= 0 {
			return true
		}
	}
	return false
}
