// Package selfcheck exercises the value core's observable guarantees at
// runtime. The CLI runs these checks to validate a build of the engine on the
// host it will actually embed into.
package selfcheck

import (
	"fmt"

	"tern/internal/cell"
	"tern/internal/mem"
)

// Check is one named behavioral check.
type Check struct {
	Name string
	Run  func() error
}

// All returns every check in a stable order.
func All() []Check {
	return []Check{
		{Name: "unique-move", Run: uniqueMove},
		{Name: "mutual-exclusion", Run: mutualExclusion},
		{Name: "shared-readers", Run: sharedReaders},
		{Name: "array-round-trip", Run: arrayRoundTrip},
		{Name: "subrange-bounds", Run: subrangeBounds},
		{Name: "text-duality", Run: textDuality},
		{Name: "projection-liveness", Run: projectionLiveness},
		{Name: "nil-unit", Run: nilUnit},
	}
}

type opaque struct {
	n int
}

// uniqueMove: a type with no duplication operator moves out of a uniquely
// held cell and refuses to copy out of a cloned one.
func uniqueMove() error {
	c := cell.Give(opaque{n: 7})
	got, f := cell.Take[opaque](&c)
	if f != nil {
		return fmt.Errorf("unique take: %w", f)
	}
	if got.n != 7 {
		return fmt.Errorf("unique take returned %+v", got)
	}

	c = cell.Give(opaque{n: 8})
	clone := c.Clone()
	if _, f := cell.Take[opaque](&c); f == nil || f.Code != mem.FaultNoDup {
		clone.Drop()
		return fmt.Errorf("take on cloned cell: want no-dup fault, got %v", f)
	}
	clone.Drop()
	return nil
}

// mutualExclusion: a live shared reference on one clone blocks an exclusive
// borrow on the other, and dropping it unblocks.
func mutualExclusion() error {
	a := cell.Give(uint16(125))
	b := a.Clone()
	p, f := cell.BorrowRef[uint16](&a)
	if f != nil {
		b.Drop()
		return fmt.Errorf("borrow-ref: %w", f)
	}
	if *p != 125 {
		a.Drop()
		b.Drop()
		return fmt.Errorf("borrow-ref read %d", *p)
	}
	if _, f := cell.BorrowMut[uint16](&b); f == nil || f.Code != mem.FaultConflict {
		a.Drop()
		b.Drop()
		return fmt.Errorf("borrow-mut under live reference: want conflict, got %v", f)
	}
	a.Drop()
	q, f := cell.BorrowMut[uint16](&b)
	if f != nil {
		b.Drop()
		return fmt.Errorf("borrow-mut after release: %w", f)
	}
	if *q != 125 {
		b.Drop()
		return fmt.Errorf("borrow-mut read %d", *q)
	}
	b.Drop()
	return nil
}

// sharedReaders: two clones may hold shared references simultaneously.
func sharedReaders() error {
	a := cell.Give(int64(41))
	b := a.Clone()
	pa, f := cell.BorrowRef[int64](&a)
	if f != nil {
		b.Drop()
		return fmt.Errorf("first borrow: %w", f)
	}
	pb, f := cell.BorrowRef[int64](&b)
	if f != nil {
		a.Drop()
		return fmt.Errorf("second borrow: %w", f)
	}
	if *pa != 41 || *pb != 41 {
		a.Drop()
		b.Drop()
		return fmt.Errorf("shared reads %d, %d", *pa, *pb)
	}
	a.Drop()
	b.Drop()
	return nil
}

// arrayRoundTrip: give_array then take_array returns an equal sequence for
// empty, singleton and multi-element arrays.
func arrayRoundTrip() error {
	for _, in := range [][]uint32{nil, {9}, {1, 2, 3, 4, 5}} {
		c := cell.GiveArray(in)
		out, f := cell.TakeArray[uint32](&c)
		if f != nil {
			return fmt.Errorf("take-array of %v: %w", in, f)
		}
		if len(out) != len(in) {
			return fmt.Errorf("round trip of %v returned %v", in, out)
		}
		for i := range in {
			if out[i] != in[i] {
				return fmt.Errorf("round trip of %v returned %v", in, out)
			}
		}
	}
	return nil
}

// subrangeBounds: projecting [2:] of a four-element array reads the tail;
// inverted and oversized bounds fail.
func subrangeBounds() error {
	c := cell.GiveArray([]uint16{10, 20, 30, 40})
	tail, f := c.MapSlice(2, -1)
	if f != nil {
		return fmt.Errorf("map-slice: %w", f)
	}
	view, f := cell.BorrowArrayRef[uint16](&tail)
	if f != nil {
		tail.Drop()
		return fmt.Errorf("borrow tail: %w", f)
	}
	if len(view) != 2 || view[0] != 30 || view[1] != 40 {
		tail.Drop()
		return fmt.Errorf("tail view %v", view)
	}
	tail.Drop()

	c = cell.GiveArray([]uint16{1, 2, 3})
	if _, f := c.MapSlice(2, 1); f == nil || f.Code != mem.FaultBadRange {
		return fmt.Errorf("inverted bounds: want bad-range, got %v", f)
	}
	if _, f := c.MapSlice(0, 9); f == nil || f.Code != mem.FaultOutOfBounds {
		return fmt.Errorf("oversized bounds: want out-of-bounds, got %v", f)
	}
	c.Drop()
	return nil
}

// textDuality: host text stores as unicode-safe bytes, answers for both the
// text type and the byte element type, and never fails to decode.
func textDuality() error {
	c := cell.Give("grüße")
	if !cell.Is[string](c) {
		return fmt.Errorf("text cell does not answer for the text type")
	}
	if !cell.Is[byte](c) {
		return fmt.Errorf("text cell does not answer for byte elements")
	}
	s, f := cell.TakeText(&c)
	if f != nil {
		return fmt.Errorf("take-text: %w", f)
	}
	if s != "grüße" {
		return fmt.Errorf("take-text returned %q", s)
	}
	return nil
}

// projectionLiveness: a projection outlives its source handle, and keeps a
// surviving clone of the source from being exclusively borrowed.
func projectionLiveness() error {
	h1 := cell.GiveArray([]int32{5, 6, 7})
	survivor := h1.Clone()
	h2, f := h1.MapSlice(1, -1)
	if f != nil {
		survivor.Drop()
		return fmt.Errorf("projection: %w", f)
	}
	view, f := cell.BorrowArrayRef[int32](&h2)
	if f != nil {
		survivor.Drop()
		h2.Drop()
		return fmt.Errorf("borrow projection: %w", f)
	}
	if len(view) != 2 || view[0] != 6 {
		survivor.Drop()
		h2.Drop()
		return fmt.Errorf("projection view %v", view)
	}
	if _, f := cell.BorrowArrayMut[int32](&survivor); f == nil || f.Code != mem.FaultConflict {
		survivor.Drop()
		h2.Drop()
		return fmt.Errorf("exclusive borrow under projection: want conflict, got %v", f)
	}
	h2.Drop()
	survivor.Drop()
	return nil
}

// nilUnit: the nil cell reports zero length, yields the unit type, and
// refuses everything else.
func nilUnit() error {
	n := cell.Nil()
	if !n.IsNil() || n.Len() != 0 {
		return fmt.Errorf("nil cell reports len %d", n.Len())
	}
	if _, f := cell.Take[struct{}](&n); f != nil {
		return fmt.Errorf("take unit from nil: %w", f)
	}
	n = cell.Nil()
	if _, f := cell.Take[int](&n); f == nil || f.Code != mem.FaultNilAccess {
		return fmt.Errorf("take int from nil: want nil-access, got %v", f)
	}
	return nil
}
