// Package cell implements the value handles an embedding threads through
// script code: cloneable, nullable references to typed backing storage with
// a dynamically enforced aliasing discipline. A handle either wraps a shared
// chain link or nothing at all; every access-performing operation consumes
// the handle, so callers clone first when they need continued use.
package cell

import (
	"fmt"
	"reflect"

	"tern/internal/host"
	"tern/internal/mem"
)

var (
	byteType   = reflect.TypeFor[byte]()
	stringType = reflect.TypeFor[string]()
	unitType   = reflect.TypeFor[struct{}]()
)

// Cell is the public cloneable nullable handle. The zero value is the nil
// cell: no storage, no grant.
type Cell struct {
	link *link
}

// Nil returns the empty cell.
func Nil() Cell {
	return Cell{}
}

// IsNil reports whether the cell holds no storage.
func (c Cell) IsNil() bool {
	return c.link == nil
}

// Len returns the element count, 0 for the nil cell.
func (c Cell) Len() int {
	if c.link == nil {
		return 0
	}
	return c.link.slice.Len()
}

// Elem returns the stored element type identity, nil for the nil cell.
// Host text values report the byte element type here; use Is to ask for the
// text type itself.
func (c Cell) Elem() reflect.Type {
	if c.link == nil {
		return nil
	}
	return c.link.slice.Elem()
}

// Origin returns the provenance tag of the cell's storage, for diagnostics.
func (c Cell) Origin() string {
	if c.link == nil {
		return "nil"
	}
	return c.link.slice.Origin()
}

// Is reports whether the cell stores values of type T. The nil cell answers
// true only for the host unit type; text storage answers true for both the
// text type and its byte elements.
func Is[T any](c Cell) bool {
	want := reflect.TypeFor[T]()
	if c.link == nil {
		return want == unitType
	}
	s := c.link.slice
	if want == stringType {
		return s.Elem() == byteType && s.Caps().Has(mem.CapText)
	}
	return s.Elem() == want
}

// Clone returns another handle on the same chain link, bumping its reference
// count. Clones carry no borrow state of their own.
func (c *Cell) Clone() Cell {
	if c.link == nil {
		return Cell{}
	}
	c.link.refs.Add(1)
	return Cell{link: c.link}
}

// Drop gives up the handle. Dropping the last handle on a link releases its
// grant, then drops the upstream handle, recursively repeating the rule.
// Drop on the nil cell is a no-op.
func (c *Cell) Drop() {
	l := c.link
	c.link = nil
	dropLink(l)
}

// Give moves a host value into a fresh self-owned backing slice and returns
// the handle on it. The host unit value and a nil interface degenerate to the
// nil cell; host text becomes byte storage flagged unicode-safe.
func Give(v any) Cell {
	host.Builtins()
	if v == nil {
		return Cell{}
	}
	t := reflect.TypeOf(v)
	if d := host.Lookup(t); d != nil {
		if d.Unit {
			return Cell{}
		}
		if d.Text {
			return GiveText(reflect.ValueOf(v).String())
		}
	}
	data := reflect.MakeSlice(reflect.SliceOf(t), 1, 1)
	data.Index(0).Set(reflect.ValueOf(v))
	s := mem.NewOwnedValue(data, mem.CapRead|mem.CapWrite, fmt.Sprintf("give[%s]", t))
	return Cell{link: newLink(s, Cell{})}
}

// GiveArray moves elems into a fresh self-owned backing slice without the
// host conversion step. Empty arrays are honored: the result is a non-nil
// cell of length zero.
func GiveArray[T any](elems []T) Cell {
	host.Builtins()
	owned := append([]T(nil), elems...)
	t := reflect.TypeFor[T]()
	s := mem.NewOwned(owned, mem.CapRead|mem.CapWrite, fmt.Sprintf("array[%s;%d]", t, len(owned)))
	return Cell{link: newLink(s, Cell{})}
}

// GiveText moves host text into byte storage flagged unicode-safe.
func GiveText(text string) Cell {
	host.Builtins()
	s := mem.NewOwned([]byte(text), mem.CapRead|mem.CapWrite|mem.CapText,
		fmt.Sprintf("text[%d]", len(text)))
	return Cell{link: newLink(s, Cell{})}
}

func nilAccess(op string) *mem.Fault {
	return &mem.Fault{
		Code:    mem.FaultNilAccess,
		Message: fmt.Sprintf("%s on nil cell", op),
		Origin:  "nil",
	}
}

func arityFault(s *mem.Slice, op string) *mem.Fault {
	return &mem.Fault{
		Code:    mem.FaultArityMismatch,
		Message: fmt.Sprintf("%s requires exactly one element, slice holds %d", op, s.Len()),
		Origin:  s.Origin(),
		Stored:  s.Elem().String(),
	}
}

func typeFault(s *mem.Slice, want reflect.Type) *mem.Fault {
	return &mem.Fault{
		Code:     mem.FaultTypeMismatch,
		Message:  fmt.Sprintf("expected element type %s, got %s", want, s.Elem()),
		Origin:   s.Origin(),
		Stored:   s.Elem().String(),
		Expected: want.String(),
	}
}
