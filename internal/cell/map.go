package cell

import (
	"fmt"
	"reflect"
	"unicode/utf8"
	"unsafe"

	"tern/internal/host"
	"tern/internal/mem"
)

// MapRef borrows the cell's sole element as a shared From, runs mapper to
// derive a same-lifetime reference, and wraps that reference as a new cell
// depending on this one. The source cell moves into the projection and is
// released with it; the projection outlives any other handle on the source.
//
// Fails under the same conditions as BorrowRef, leaving the source intact; a
// mapper error reports a mapper fault and consumes the source, since the
// borrow already happened. A mapper returning nil yields the nil cell.
func MapRef[From, To any](c *Cell, mapper func(*From) (*To, error)) (Cell, *mem.Fault) {
	return mapThrough[From, To](c, mem.SharedValue, mapper)
}

// MapMut is MapRef through an exclusive borrow: the mapper receives a
// writable reference and the projected cell permits writes.
func MapMut[From, To any](c *Cell, mapper func(*From) (*To, error)) (Cell, *mem.Fault) {
	return mapThrough[From, To](c, mem.ExclusiveValue, mapper)
}

func mapThrough[From, To any](c *Cell, kind mem.GrantKind, mapper func(*From) (*To, error)) (Cell, *mem.Fault) {
	p, f := borrowOne[From](c, kind)
	if f != nil {
		return Cell{}, f
	}
	out, err := mapper(p)
	if err != nil {
		f := mapperFault(c, err)
		c.Drop()
		return Cell{}, f
	}
	if out == nil {
		c.Drop()
		return Cell{}, nil
	}
	caps := mem.CapRead
	if kind == mem.ExclusiveValue {
		caps |= mem.CapWrite
	}
	origin := fmt.Sprintf("map[%s->%s]", reflect.TypeFor[From](), reflect.TypeFor[To]())
	child := mem.WrapAddr(out, 1, caps, origin)
	from := *c
	c.link = nil
	return Cell{link: newLink(child, from)}, nil
}

// MapPtr projects an address computed from the sole element's address,
// without dereferencing anything during the projection. byRef and byMut are
// the read and write direction of the same computation; the unverified
// contract is that neither dereferences its input, that both compute the same
// address for the same input, and that the output address outlives the
// projection. Omitting both yields the nil cell.
//
// Only place-level access is required: exclusive when byMut is supplied,
// shared otherwise.
func MapPtr[From, To any](c *Cell, byRef, byMut func(unsafe.Pointer) unsafe.Pointer) (Cell, *mem.Fault) {
	host.Builtins()
	if byRef == nil && byMut == nil {
		c.Drop()
		return Cell{}, nil
	}
	want := reflect.TypeFor[From]()
	if c.link == nil {
		return Cell{}, nilAccess("map-ptr")
	}
	s := c.link.slice
	if s.Elem() != want {
		return Cell{}, typeFault(s, want)
	}
	if want.Size() != 0 && s.Len() != 1 {
		return Cell{}, arityFault(s, "map-ptr")
	}
	kind := mem.SharedPlace
	caps := mem.Caps(0)
	if byRef != nil {
		caps |= mem.CapRead
	}
	if byMut != nil {
		caps |= mem.CapWrite
		kind = mem.ExclusivePlace
	}
	if f := c.acquire(kind); f != nil {
		return Cell{}, f
	}
	compute := byRef
	if compute == nil {
		compute = byMut
	}
	addr := compute(mem.Addr(c.link.grant))
	origin := fmt.Sprintf("ptr[%s->%s]", want, reflect.TypeFor[To]())
	child := mem.WrapAddr((*To)(addr), 1, caps, origin)
	from := *c
	c.link = nil
	return Cell{link: newLink(child, from)}, nil
}

// MapSlice projects the contiguous element range [lo, hi) into a new cell
// aliasing the same storage, without borrowing the whole array. A negative hi
// means through the end. The range must be in order; the end must be in
// bounds unless the element type is zero-sized.
func (c *Cell) MapSlice(lo, hi int) (Cell, *mem.Fault) {
	if c.link == nil {
		return Cell{}, nilAccess("map-slice")
	}
	s := c.link.slice
	if hi < 0 {
		hi = s.Len()
	}
	if lo < 0 || lo > hi {
		return Cell{}, &mem.Fault{
			Code:    mem.FaultBadRange,
			Message: fmt.Sprintf("malformed range [%d:%d]", lo, hi),
			Origin:  s.Origin(),
			Stored:  s.Elem().String(),
		}
	}
	if !s.ZeroSized() && hi > s.Len() {
		return Cell{}, &mem.Fault{
			Code:    mem.FaultOutOfBounds,
			Message: fmt.Sprintf("range end %d out of bounds for length %d", hi, s.Len()),
			Origin:  s.Origin(),
			Stored:  s.Elem().String(),
		}
	}
	if f := c.acquire(mem.SharedPlace); f != nil {
		return Cell{}, f
	}
	child, f := s.SubRange(c.link.grant, lo, hi)
	if f != nil {
		return Cell{}, f
	}
	from := *c
	c.link = nil
	return Cell{link: newLink(child, from)}, nil
}

// MapText borrows the cell's byte storage as text and projects a new cell
// guaranteed to hold valid UTF-8. Storage not flagged unicode-safe is
// validated first and fails with a bad-text fault when it cannot back a text
// view. The decoded text is returned alongside the projection.
func (c *Cell) MapText() (string, Cell, *mem.Fault) {
	host.Builtins()
	if c.link == nil {
		return "", Cell{}, nilAccess("map-text")
	}
	s := c.link.slice
	if s.Elem() != byteType {
		return "", Cell{}, typeFault(s, byteType)
	}
	if f := c.acquire(mem.SharedValue); f != nil {
		return "", Cell{}, f
	}
	view, f := mem.View[byte](c.link.grant)
	if f != nil {
		return "", Cell{}, f
	}
	var child *mem.Slice
	if s.Caps().Has(mem.CapText) {
		child, f = s.SubRange(c.link.grant, 0, s.Len())
		if f != nil {
			return "", Cell{}, f
		}
	} else {
		if !utf8.Valid(view) {
			return "", Cell{}, badText(s)
		}
		child = s.Retext(c.link.grant)
	}
	text := string(view)
	from := *c
	c.link = nil
	return text, Cell{link: newLink(child, from)}, nil
}

func mapperFault(c *Cell, err error) *mem.Fault {
	f := &mem.Fault{
		Code:    mem.FaultMapper,
		Message: fmt.Sprintf("projection mapper failed: %v", err),
		Origin:  "nil",
	}
	if c.link != nil {
		f.Origin = c.link.slice.Origin()
		f.Stored = c.link.slice.Elem().String()
	}
	return f
}
