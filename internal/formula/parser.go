package formula

import (
	"fmt"
	"math"
	"strconv"
)

// Syntax tree nodes, tagged by concrete type the way the compiler dispatches.

type pnode interface{}

type numberNode struct {
	val float64
}

type fieldNode struct {
	name   string
	index  int // -1 for a bare array or scalar reference
	offset int
	length int
}

type unaryNode struct {
	op  int
	opd pnode
}

type binaryNode struct {
	op       int
	lhs, rhs pnode
}

type callNode struct {
	fn   string
	args []pnode
}

// funcArity lists the supported functions and their argument counts.
var funcArity = map[string]int{
	"abs":   1,
	"sqrt":  1,
	"exp":   1,
	"log":   1,
	"floor": 1,
	"min":   2,
	"max":   2,
	"pow":   2,
}

type parser struct {
	lx     *lexer
	tok    token
	schema Schema
}

func newParser(input string, schema Schema) (*parser, error) {
	p := &parser{lx: &lexer{input: input}, schema: schema}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() error {
	tok, err := p.lx.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) parse() (pnode, error) {
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tEOF {
		return nil, fmt.Errorf("unexpected trailing input at position %d", p.tok.pos)
	}
	return n, nil
}

func (p *parser) parseOr() (pnode, error) {
	lhs, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tOr {
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		lhs = &binaryNode{op: tOr, lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *parser) parseAnd() (pnode, error) {
	lhs, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tAnd {
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		lhs = &binaryNode{op: tAnd, lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *parser) parseEquality() (pnode, error) {
	lhs, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tEq || p.tok.kind == tNe {
		op := p.tok.kind
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		lhs = &binaryNode{op: op, lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *parser) parseRelational() (pnode, error) {
	lhs, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tLt || p.tok.kind == tLe || p.tok.kind == tGt || p.tok.kind == tGe {
		op := p.tok.kind
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		lhs = &binaryNode{op: op, lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *parser) parseAdditive() (pnode, error) {
	lhs, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tPlus || p.tok.kind == tMinus {
		op := p.tok.kind
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		lhs = &binaryNode{op: op, lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *parser) parseMultiplicative() (pnode, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tStar || p.tok.kind == tSlash || p.tok.kind == tPercent {
		op := p.tok.kind
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		lhs = &binaryNode{op: op, lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *parser) parseUnary() (pnode, error) {
	switch p.tok.kind {
	case tMinus:
		if err := p.advance(); err != nil {
			return nil, err
		}
		opd, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: tMinus, opd: opd}, nil
	case tNot:
		if err := p.advance(); err != nil {
			return nil, err
		}
		opd, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: tNot, opd: opd}, nil
	default:
		return p.parsePrimary()
	}
}

func (p *parser) parsePrimary() (pnode, error) {
	switch p.tok.kind {
	case tNumber:
		val, err := strconv.ParseFloat(p.tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed number %q at position %d", p.tok.text, p.tok.pos)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &numberNode{val: val}, nil
	case tLparen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tRparen {
			return nil, fmt.Errorf("expected ')' at position %d", p.tok.pos)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return n, nil
	case tIdent:
		name := p.tok.text
		pos := p.tok.pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind == tLparen {
			return p.parseCall(name, pos)
		}
		return p.parseFieldRef(name, pos)
	default:
		return nil, fmt.Errorf("unexpected token at position %d", p.tok.pos)
	}
}

// parseCall parses the argument list of a function call, the name and '('
// position having been consumed.
func (p *parser) parseCall(name string, pos int) (pnode, error) {
	arity, known := funcArity[name]
	if !known {
		return nil, fmt.Errorf("unknown function %q at position %d", name, pos)
	}
	if err := p.advance(); err != nil { // consume '('
		return nil, err
	}
	var args []pnode
	for p.tok.kind != tRparen {
		if len(args) > 0 {
			if p.tok.kind != tComma {
				return nil, fmt.Errorf("expected ',' or ')' at position %d", p.tok.pos)
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	if err := p.advance(); err != nil { // consume ')'
		return nil, err
	}
	if len(args) != arity {
		return nil, fmt.Errorf("function %q takes %d argument(s), got %d", name, arity, len(args))
	}
	return &callNode{fn: name, args: args}, nil
}

// parseFieldRef resolves a field name, with an optional [index] suffix,
// against the schema.
func (p *parser) parseFieldRef(name string, pos int) (pnode, error) {
	offset, length, ok := p.schema.LookupField(name)
	if !ok {
		return nil, fmt.Errorf("unknown field %q at position %d", name, pos)
	}

	index := -1
	if p.tok.kind == tLbracket {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind != tNumber {
			return nil, fmt.Errorf("expected array index at position %d", p.tok.pos)
		}
		idx, err := strconv.Atoi(p.tok.text)
		if err != nil {
			return nil, fmt.Errorf("malformed array index %q at position %d", p.tok.text, p.tok.pos)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind != tRbracket {
			return nil, fmt.Errorf("expected ']' at position %d", p.tok.pos)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if length == 1 {
			return nil, fmt.Errorf("field %q is not an array", name)
		}
		if idx < 0 || idx >= length {
			return nil, fmt.Errorf("index %d out of range for field %q of length %d", idx, name, length)
		}
		index = idx
	}

	return &fieldNode{name: name, index: index, offset: offset, length: length}, nil
}

// Compilation to closures over the committed row.

type evalFunc func(row []float64, i int) float64

// compileNode lowers a syntax node to an eval closure plus its instance count.
func compileNode(n pnode) (evalFunc, int, error) {
	switch t := n.(type) {
	case *numberNode:
		val := t.val
		return func(row []float64, i int) float64 { return val }, 1, nil

	case *fieldNode:
		offset := t.offset
		if t.index >= 0 {
			offset += t.index
			return func(row []float64, i int) float64 { return row[offset] }, 1, nil
		}
		if t.length == 1 {
			return func(row []float64, i int) float64 { return row[offset] }, 1, nil
		}
		return func(row []float64, i int) float64 { return row[offset+i] }, t.length, nil

	case *unaryNode:
		opd, ndata, err := compileNode(t.opd)
		if err != nil {
			return nil, 0, err
		}
		switch t.op {
		case tMinus:
			return func(row []float64, i int) float64 { return -opd(row, i) }, ndata, nil
		case tNot:
			return func(row []float64, i int) float64 {
				if opd(row, i) == 0 {
					return 1
				}
				return 0
			}, ndata, nil
		default:
			panic("formula: unknown unary op")
		}

	case *binaryNode:
		lhs, ln, err := compileNode(t.lhs)
		if err != nil {
			return nil, 0, err
		}
		rhs, rn, err := compileNode(t.rhs)
		if err != nil {
			return nil, 0, err
		}
		ndata, err := mergeNdata(ln, rn)
		if err != nil {
			return nil, 0, err
		}
		switch t.op {
		case tPlus:
			return func(row []float64, i int) float64 { return lhs(row, i) + rhs(row, i) }, ndata, nil
		case tMinus:
			return func(row []float64, i int) float64 { return lhs(row, i) - rhs(row, i) }, ndata, nil
		case tStar:
			return func(row []float64, i int) float64 { return lhs(row, i) * rhs(row, i) }, ndata, nil
		case tSlash:
			return func(row []float64, i int) float64 { return lhs(row, i) / rhs(row, i) }, ndata, nil
		case tPercent:
			return func(row []float64, i int) float64 { return math.Mod(lhs(row, i), rhs(row, i)) }, ndata, nil
		case tEq:
			return boolOp(func(a, b float64) bool { return a == b }, lhs, rhs), ndata, nil
		case tNe:
			return boolOp(func(a, b float64) bool { return a != b }, lhs, rhs), ndata, nil
		case tLt:
			return boolOp(func(a, b float64) bool { return a < b }, lhs, rhs), ndata, nil
		case tLe:
			return boolOp(func(a, b float64) bool { return a <= b }, lhs, rhs), ndata, nil
		case tGt:
			return boolOp(func(a, b float64) bool { return a > b }, lhs, rhs), ndata, nil
		case tGe:
			return boolOp(func(a, b float64) bool { return a >= b }, lhs, rhs), ndata, nil
		case tAnd:
			return func(row []float64, i int) float64 {
				if lhs(row, i) == 0 {
					return 0
				}
				if rhs(row, i) == 0 {
					return 0
				}
				return 1
			}, ndata, nil
		case tOr:
			return func(row []float64, i int) float64 {
				if lhs(row, i) != 0 || rhs(row, i) != 0 {
					return 1
				}
				return 0
			}, ndata, nil
		default:
			panic("formula: unknown binary op")
		}

	case *callNode:
		args := make([]evalFunc, len(t.args))
		ndata := 1
		for k, a := range t.args {
			fn, n, err := compileNode(a)
			if err != nil {
				return nil, 0, err
			}
			ndata, err = mergeNdata(ndata, n)
			if err != nil {
				return nil, 0, err
			}
			args[k] = fn
		}
		switch t.fn {
		case "abs":
			a := args[0]
			return func(row []float64, i int) float64 { return math.Abs(a(row, i)) }, ndata, nil
		case "sqrt":
			a := args[0]
			return func(row []float64, i int) float64 { return math.Sqrt(a(row, i)) }, ndata, nil
		case "exp":
			a := args[0]
			return func(row []float64, i int) float64 { return math.Exp(a(row, i)) }, ndata, nil
		case "log":
			a := args[0]
			return func(row []float64, i int) float64 { return math.Log(a(row, i)) }, ndata, nil
		case "floor":
			a := args[0]
			return func(row []float64, i int) float64 { return math.Floor(a(row, i)) }, ndata, nil
		case "min":
			a, b := args[0], args[1]
			return func(row []float64, i int) float64 { return math.Min(a(row, i), b(row, i)) }, ndata, nil
		case "max":
			a, b := args[0], args[1]
			return func(row []float64, i int) float64 { return math.Max(a(row, i), b(row, i)) }, ndata, nil
		case "pow":
			a, b := args[0], args[1]
			return func(row []float64, i int) float64 { return math.Pow(a(row, i), b(row, i)) }, ndata, nil
		default:
			panic("formula: unknown function")
		}

	default:
		panic("formula: bad node type")
	}
}

func boolOp(cmp func(a, b float64) bool, lhs, rhs evalFunc) evalFunc {
	return func(row []float64, i int) float64 {
		if cmp(lhs(row, i), rhs(row, i)) {
			return 1
		}
		return 0
	}
}

// mergeNdata combines the instance counts of two operands. Scalars broadcast
// across array instances, arrays must agree on length.
func mergeNdata(a, b int) (int, error) {
	if a == b {
		return a, nil
	}
	if a == 1 {
		return b, nil
	}
	if b == 1 {
		return a, nil
	}
	return 0, fmt.Errorf("array length mismatch: %d vs %d", a, b)
}
