// Package event owns the typed destination of unpacked buffers: a
// row-oriented table with named field bindings and exactly one live row, and
// the record that serializes unpack and commit under its lock.
package event

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tphakala/birdnet-go/internal/errors"
)

// Tree is the row table of one event record. Collaborators bind named fields
// ("branches") to their own variables before streaming starts; Commit copies
// the bound values into the committed row, which is what formulas evaluate
// against. A new commit overwrites the previous row.
//
// The schema is frozen when the owning record finishes construction, after
// which it is immutable and may be read without the row lock. The committed
// row itself is only read or written under the record's row lock.
type Tree struct {
	fields []Field
	index  map[string]int
	bound  []binding
	row    []float64
	frozen bool
	fills  uint64
}

// Field describes one named column of the row table.
type Field struct {
	Name   string
	Offset int
	Length int // 1 for scalars
}

type binding struct {
	scalar *float64
	array  []float64 // nil for scalar bindings
	offset int
}

// NewTree creates an empty row table.
func NewTree() *Tree {
	return &Tree{index: make(map[string]int)}
}

// Branch binds a scalar field to src. The value at src is copied into the
// committed row on every Commit.
func (t *Tree) Branch(name string, src *float64) error {
	if src == nil {
		return errors.Newf("nil source for field %q", name).
			Component("event").
			Category(errors.CategoryValidation).
			Build()
	}
	offset, err := t.addField(name, 1)
	if err != nil {
		return err
	}
	t.bound = append(t.bound, binding{scalar: src, offset: offset})
	return nil
}

// BranchArray binds a fixed-length array field to src. The slice contents are
// copied into the committed row on every Commit; the slice must not be
// reallocated by the caller afterwards.
func (t *Tree) BranchArray(name string, src []float64) error {
	if len(src) == 0 {
		return errors.Newf("empty source array for field %q", name).
			Component("event").
			Category(errors.CategoryValidation).
			Build()
	}
	offset, err := t.addField(name, len(src))
	if err != nil {
		return err
	}
	t.bound = append(t.bound, binding{array: src, offset: offset})
	return nil
}

func (t *Tree) addField(name string, length int) (int, error) {
	if t.frozen {
		return 0, errors.Newf("cannot add field %q: schema is frozen", name).
			Component("event").
			Category(errors.CategoryState).
			Build()
	}
	if !validFieldName(name) {
		return 0, errors.Newf("invalid field name %q", name).
			Component("event").
			Category(errors.CategoryValidation).
			Build()
	}
	if _, exists := t.index[name]; exists {
		return 0, errors.Newf("duplicate field %q", name).
			Component("event").
			Category(errors.CategoryConflict).
			Build()
	}

	offset := len(t.row)
	t.index[name] = len(t.fields)
	t.fields = append(t.fields, Field{Name: name, Offset: offset, Length: length})
	t.row = append(t.row, make([]float64, length)...)
	return offset, nil
}

// Freeze marks the schema complete. Further Branch calls fail.
func (t *Tree) Freeze() {
	t.frozen = true
}

// Frozen reports whether the schema is complete.
func (t *Tree) Frozen() bool {
	return t.frozen
}

// Commit copies all bound values into the committed row, overwriting the
// previous row. Caller holds the row lock.
func (t *Tree) Commit() {
	for i := range t.bound {
		b := &t.bound[i]
		if b.array != nil {
			copy(t.row[b.offset:b.offset+len(b.array)], b.array)
		} else {
			t.row[b.offset] = *b.scalar
		}
	}
	t.fills++
}

// Row returns the committed row storage. Caller holds the row lock for the
// duration of any access.
func (t *Tree) Row() []float64 {
	return t.row
}

// Fills returns the number of committed rows over the tree's lifetime.
func (t *Tree) Fills() uint64 {
	return t.fills
}

// Fields returns the schema in registration order.
func (t *Tree) Fields() []Field {
	out := make([]Field, len(t.fields))
	copy(out, t.fields)
	return out
}

// LookupField resolves a field name to its offset and element count in the
// committed row. Safe without the row lock once the schema is frozen.
func (t *Tree) LookupField(name string) (offset, length int, ok bool) {
	i, exists := t.index[name]
	if !exists {
		return 0, 0, false
	}
	f := t.fields[i]
	return f.Offset, f.Length, true
}

// Value returns the committed value of a field spec, either a scalar name or
// an indexed array element like "qdc[4]". Caller holds the row lock.
func (t *Tree) Value(spec string) (float64, error) {
	name := spec
	index := 0
	if open := strings.IndexByte(spec, '['); open >= 0 {
		if !strings.HasSuffix(spec, "]") {
			return 0, badFieldSpec(spec, "malformed index")
		}
		name = spec[:open]
		idx, err := strconv.Atoi(spec[open+1 : len(spec)-1])
		if err != nil {
			return 0, badFieldSpec(spec, "malformed index")
		}
		index = idx
	}

	offset, length, ok := t.LookupField(name)
	if !ok {
		return 0, errors.Newf("field %q not found", name).
			Component("event").
			Category(errors.CategoryNotFound).
			Build()
	}
	if index < 0 || index >= length {
		return 0, badFieldSpec(spec, fmt.Sprintf("index out of range for length %d", length))
	}
	return t.row[offset+index], nil
}

func badFieldSpec(spec, reason string) error {
	return errors.Newf("invalid field spec %q: %s", spec, reason).
		Component("event").
		Category(errors.CategoryValidation).
		Build()
}

func validFieldName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		letter := c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
		digit := c >= '0' && c <= '9'
		if i == 0 && !letter {
			return false
		}
		if !letter && !digit {
			return false
		}
	}
	return true
}
