// Package formula compiles gate and parameter expressions against an event
// record schema and evaluates them over the committed row. Expressions
// reference scalar fields by name, array fields bare (one instance per
// element) or indexed (arr[3]), and support arithmetic, comparisons and
// boolean connectives plus a small function set.
package formula

import (
	"strings"

	"github.com/tphakala/birdnet-go/internal/errors"
)

// Schema resolves field names to their location in the committed row.
// Implemented by the event record's row table.
type Schema interface {
	// LookupField returns the offset and element count of the named field in
	// the committed row, and whether the field exists. Scalars have length 1.
	LookupField(name string) (offset, length int, ok bool)
}

// Formula is a compiled expression. Evaluation is pure: the caller supplies
// the committed row and must hold whatever lock protects it for the duration
// of the call.
type Formula struct {
	src   string
	ndata int
	eval  evalFunc
}

// Compile compiles src against schema. An empty or whitespace-only source
// compiles to the constant 1, the always-true gate.
func Compile(src string, schema Schema) (*Formula, error) {
	trimmed := strings.TrimSpace(src)
	if trimmed == "" {
		return &Formula{
			src:   src,
			ndata: 1,
			eval:  func(row []float64, i int) float64 { return 1 },
		}, nil
	}

	p, err := newParser(trimmed, schema)
	if err != nil {
		return nil, compileError(err, src)
	}
	root, err := p.parse()
	if err != nil {
		return nil, compileError(err, src)
	}
	eval, ndata, err := compileNode(root)
	if err != nil {
		return nil, compileError(err, src)
	}

	return &Formula{src: src, ndata: ndata, eval: eval}, nil
}

func compileError(err error, src string) error {
	return errors.New(err).
		Component("formula").
		Category(errors.CategoryFormula).
		Context("expression", src).
		Build()
}

// Source returns the original expression text.
func (f *Formula) Source() string {
	return f.src
}

// Ndata returns the number of instances the formula evaluates to per row.
// Scalar expressions have one instance; expressions over a bare array field
// have one instance per element.
func (f *Formula) Ndata() int {
	return f.ndata
}

// EvalInstance evaluates instance i against row. The caller guarantees
// 0 <= i < Ndata() and that row is the committed row of the schema the
// formula was compiled against.
func (f *Formula) EvalInstance(row []float64, i int) float64 {
	return f.eval(row, i)
}

// EvalBool evaluates the first instance as a gate: any nonzero value passes.
func (f *Formula) EvalBool(row []float64) bool {
	return f.eval(row, 0) != 0
}
