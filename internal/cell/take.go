package cell

import (
	"fmt"
	"reflect"

	"tern/internal/host"
	"tern/internal/mem"
)

// Take consumes the cell and returns its sole element as an owned T.
//
// A uniquely referenced cell that is sole owner of self-owned storage moves
// the element out without copying. Shared or foreign storage is read through
// a grant and duplicated with the type's registered duplication operator;
// types without one fail rather than silently copying. The cell is consumed
// on every path, success or failure.
//
// Taking the host unit type from the nil cell succeeds; every other take on
// nil is a nil-access fault. Taking the host text type from unicode-safe
// byte storage decodes it without an arity constraint.
func Take[T any](c *Cell) (T, *mem.Fault) {
	host.Builtins()
	var zero T
	want := reflect.TypeFor[T]()
	if c.link == nil {
		if want == unitType {
			return zero, nil
		}
		return zero, nilAccess("take")
	}
	s := c.link.slice
	if want == stringType && s.Elem() == byteType && s.Caps().Has(mem.CapText) {
		str, f := takeText(c)
		if f != nil {
			return zero, f
		}
		return any(str).(T), nil
	}
	if s.Elem() != want {
		f := typeFault(s, want)
		c.Drop()
		return zero, f
	}
	if s.Len() != 1 {
		f := arityFault(s, "take")
		c.Drop()
		return zero, f
	}
	elems, f := takeElems[T](c)
	if f != nil {
		return zero, f
	}
	return elems[0], nil
}

// TakeArray consumes the cell and returns all elements as an owned []T,
// including zero of them. The zero-copy versus duplicate policy matches Take.
func TakeArray[T any](c *Cell) ([]T, *mem.Fault) {
	host.Builtins()
	want := reflect.TypeFor[T]()
	if c.link == nil {
		return nil, nilAccess("take-array")
	}
	s := c.link.slice
	if s.Elem() != want {
		f := typeFault(s, want)
		c.Drop()
		return nil, f
	}
	return takeElems[T](c)
}

// TakeText consumes the cell and returns its byte storage decoded as text.
// Unicode-safe storage decodes infallibly; a decode failure there is an
// internal-consistency violation, not a reported error. Other byte storage
// decodes lossily.
func TakeText(c *Cell) (string, *mem.Fault) {
	host.Builtins()
	if c.link == nil {
		return "", nilAccess("take-text")
	}
	s := c.link.slice
	if s.Elem() != byteType {
		f := typeFault(s, byteType)
		c.Drop()
		return "", f
	}
	return takeText(c)
}

func takeText(c *Cell) (string, *mem.Fault) {
	s := c.link.slice
	safe := s.Caps().Has(mem.CapText)
	origin := s.Origin()
	b, f := takeElems[byte](c)
	if f != nil {
		return "", f
	}
	return decodeText(b, safe, origin), nil
}

// takeElems consumes the cell and recovers its elements, moving when the
// chain link and the storage are both uniquely held, duplicating otherwise.
func takeElems[T any](c *Cell) ([]T, *mem.Fault) {
	l := c.link
	s := l.slice

	if l.refs.Load() == 1 && s.Sole() && s.Caps().Has(mem.CapOwned) {
		if l.grant != nil {
			l.grant.Release()
			l.grant = nil
		}
		elems, f := mem.TakeOwned[T](s)
		if f == nil {
			c.Drop()
			return elems, nil
		}
		// Storage turned out to be contended; fall back to duplication.
	}

	view, done, f := readElems[T](c)
	if f != nil {
		c.Drop()
		return nil, f
	}
	dup := host.Dup(s.Elem())
	if dup == nil {
		done()
		f := noDup(s)
		c.Drop()
		return nil, f
	}
	out := make([]T, len(view))
	for i, v := range view {
		out[i] = dup(v).(T)
	}
	done()
	c.Drop()
	return out, nil
}

// readElems yields a read view of the cell's elements. An already-held value
// grant is read through directly; otherwise a temporary grant is taken in
// whichever direction the slice allows and handed back through done, so no
// grant dangles on any path.
func readElems[T any](c *Cell) ([]T, func(), *mem.Fault) {
	l := c.link
	if l.grant != nil && l.grant.Kind().ValueLevel() {
		view, f := mem.View[T](l.grant)
		if f != nil {
			return nil, nil, f
		}
		return view, func() {}, nil
	}
	g, f := l.slice.Acquire(mem.SharedValue)
	if f != nil && f.Code == mem.FaultWriteOnly {
		g, f = l.slice.Acquire(mem.ExclusiveValue)
	}
	if f != nil {
		return nil, nil, f
	}
	view, f := mem.View[T](g)
	if f != nil {
		g.Release()
		return nil, nil, f
	}
	return view, g.Release, nil
}

func noDup(s *mem.Slice) *mem.Fault {
	return &mem.Fault{
		Code:    mem.FaultNoDup,
		Message: fmt.Sprintf("type %s has no duplication operator", s.Elem()),
		Origin:  s.Origin(),
		Stored:  s.Elem().String(),
	}
}
