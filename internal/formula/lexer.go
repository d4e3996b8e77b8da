package formula

import (
	"fmt"
)

// Token kinds produced by the lexer.
const (
	tEOF = iota
	tNumber
	tIdent
	tPlus
	tMinus
	tStar
	tSlash
	tPercent
	tLparen
	tRparen
	tLbracket
	tRbracket
	tComma
	tLt
	tLe
	tGt
	tGe
	tEq
	tNe
	tAnd
	tOr
	tNot
)

type token struct {
	kind int
	text string
	pos  int
}

type lexer struct {
	input string
	i     int
}

func (lx *lexer) next() (token, error) {
Again:
	if lx.i >= len(lx.input) {
		return token{kind: tEOF, pos: lx.i}, nil
	}
	start := lx.i
	c := lx.input[start]
	lx.i++
	switch c {
	case ' ', '\t', '\r', '\n':
		goto Again
	case '+':
		return token{kind: tPlus, pos: start}, nil
	case '-':
		return token{kind: tMinus, pos: start}, nil
	case '*':
		return token{kind: tStar, pos: start}, nil
	case '/':
		return token{kind: tSlash, pos: start}, nil
	case '%':
		return token{kind: tPercent, pos: start}, nil
	case '(':
		return token{kind: tLparen, pos: start}, nil
	case ')':
		return token{kind: tRparen, pos: start}, nil
	case '[':
		return token{kind: tLbracket, pos: start}, nil
	case ']':
		return token{kind: tRbracket, pos: start}, nil
	case ',':
		return token{kind: tComma, pos: start}, nil
	case '<':
		if lx.i < len(lx.input) && lx.input[lx.i] == '=' {
			lx.i++
			return token{kind: tLe, pos: start}, nil
		}
		return token{kind: tLt, pos: start}, nil
	case '>':
		if lx.i < len(lx.input) && lx.input[lx.i] == '=' {
			lx.i++
			return token{kind: tGe, pos: start}, nil
		}
		return token{kind: tGt, pos: start}, nil
	case '=':
		if lx.i < len(lx.input) && lx.input[lx.i] == '=' {
			lx.i++
			return token{kind: tEq, pos: start}, nil
		}
		return token{}, fmt.Errorf("expected '==' at position %d", start)
	case '!':
		if lx.i < len(lx.input) && lx.input[lx.i] == '=' {
			lx.i++
			return token{kind: tNe, pos: start}, nil
		}
		return token{kind: tNot, pos: start}, nil
	case '&':
		if lx.i < len(lx.input) && lx.input[lx.i] == '&' {
			lx.i++
			return token{kind: tAnd, pos: start}, nil
		}
		return token{}, fmt.Errorf("expected '&&' at position %d", start)
	case '|':
		if lx.i < len(lx.input) && lx.input[lx.i] == '|' {
			lx.i++
			return token{kind: tOr, pos: start}, nil
		}
		return token{}, fmt.Errorf("expected '||' at position %d", start)
	case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '.':
		if c == '.' && (lx.i >= len(lx.input) || !isDigit(lx.input[lx.i])) {
			return token{}, fmt.Errorf("unexpected character '.' at position %d", start)
		}
		lx.scanDigits()
		if lx.i < len(lx.input) && lx.input[lx.i] == '.' && c != '.' {
			lx.i++
			lx.scanDigits()
		}
		if lx.i < len(lx.input) && (lx.input[lx.i] == 'e' || lx.input[lx.i] == 'E') {
			lx.i++
			if lx.i < len(lx.input) && (lx.input[lx.i] == '+' || lx.input[lx.i] == '-') {
				lx.i++
			}
			if !lx.scanDigits() {
				return token{}, fmt.Errorf("malformed exponent at position %d", start)
			}
		}
		return token{kind: tNumber, text: lx.input[start:lx.i], pos: start}, nil
	default:
		if isInitial(c) {
			for lx.i < len(lx.input) && isSubsequent(lx.input[lx.i]) {
				lx.i++
			}
			return token{kind: tIdent, text: lx.input[start:lx.i], pos: start}, nil
		}
		return token{}, fmt.Errorf("unexpected character '%c' at position %d", c, start)
	}
}

func (lx *lexer) scanDigits() bool {
	here := lx.i
	for lx.i < len(lx.input) && isDigit(lx.input[lx.i]) {
		lx.i++
	}
	return lx.i > here
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isInitial(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isSubsequent(c byte) bool {
	return isInitial(c) || isDigit(c)
}
