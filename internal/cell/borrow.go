package cell

import (
	"reflect"

	"tern/internal/host"
	"tern/internal/mem"
)

// BorrowRef acquires a shared value grant and returns a reference to the
// cell's sole element. The reference stays valid until the cell is dropped;
// the cell itself is spent for further operations, so clone first when more
// are needed.
//
// Zero-sized element types are exempt from the single-element constraint and
// may even be borrowed from the nil cell.
func BorrowRef[T any](c *Cell) (*T, *mem.Fault) {
	return borrowOne[T](c, mem.SharedValue)
}

// BorrowMut is BorrowRef with an exclusive value grant: the reference may be
// written through, and no other grant can coexist with it.
func BorrowMut[T any](c *Cell) (*T, *mem.Fault) {
	return borrowOne[T](c, mem.ExclusiveValue)
}

// BorrowArrayRef acquires a shared value grant and returns a read view of all
// elements, valid until the cell is dropped.
func BorrowArrayRef[T any](c *Cell) ([]T, *mem.Fault) {
	return borrowAll[T](c, mem.SharedValue)
}

// BorrowArrayMut is BorrowArrayRef with an exclusive value grant.
func BorrowArrayMut[T any](c *Cell) ([]T, *mem.Fault) {
	return borrowAll[T](c, mem.ExclusiveValue)
}

// BorrowText acquires a shared value grant on byte storage and decodes it,
// infallibly for unicode-safe storage and lossily otherwise.
func (c *Cell) BorrowText() (string, *mem.Fault) {
	host.Builtins()
	if c.link == nil {
		return "", nilAccess("borrow-text")
	}
	s := c.link.slice
	if s.Elem() != byteType {
		return "", typeFault(s, byteType)
	}
	if f := c.acquire(mem.SharedValue); f != nil {
		return "", f
	}
	view, f := mem.View[byte](c.link.grant)
	if f != nil {
		return "", f
	}
	return decodeText(view, s.Caps().Has(mem.CapText), s.Origin()), nil
}

func borrowOne[T any](c *Cell, kind mem.GrantKind) (*T, *mem.Fault) {
	host.Builtins()
	want := reflect.TypeFor[T]()
	zeroSized := want.Size() == 0
	if c.link == nil {
		if zeroSized {
			return new(T), nil
		}
		return nil, nilAccess(borrowName(kind))
	}
	s := c.link.slice
	if s.Elem() != want {
		return nil, typeFault(s, want)
	}
	if !zeroSized && s.Len() != 1 {
		return nil, arityFault(s, borrowName(kind))
	}
	view, f := borrowView[T](c, kind)
	if f != nil {
		return nil, f
	}
	if len(view) == 0 {
		return new(T), nil // zero-sized: out-of-range tolerated
	}
	return &view[0], nil
}

func borrowAll[T any](c *Cell, kind mem.GrantKind) ([]T, *mem.Fault) {
	host.Builtins()
	want := reflect.TypeFor[T]()
	if c.link == nil {
		if want.Size() == 0 {
			return nil, nil
		}
		return nil, nilAccess(borrowName(kind))
	}
	if c.link.slice.Elem() != want {
		return nil, typeFault(c.link.slice, want)
	}
	return borrowView[T](c, kind)
}

func borrowView[T any](c *Cell, kind mem.GrantKind) ([]T, *mem.Fault) {
	if f := c.acquire(kind); f != nil {
		return nil, f
	}
	if kind == mem.ExclusiveValue {
		return mem.ViewMut[T](c.link.grant)
	}
	return mem.View[T](c.link.grant)
}

func borrowName(kind mem.GrantKind) string {
	if kind == mem.ExclusiveValue {
		return "borrow-mut"
	}
	return "borrow-ref"
}
