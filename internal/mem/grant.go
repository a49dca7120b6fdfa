package mem

import (
	"fmt"
	"sync/atomic"
)

// GrantKind identifies the access level a grant proves.
//
// Value grants authorize dereferencing the slice's data in the named
// direction. Place grants authorize address and range computation without
// reading, and are what projections hold on their ancestors to keep them
// alive.
type GrantKind uint8

const (
	// SharedValue authorizes reading; coexists with other shared grants.
	SharedValue GrantKind = iota
	// ExclusiveValue authorizes reading and writing; coexists with nothing.
	ExclusiveValue
	// SharedPlace authorizes address computation; coexists with other shared grants.
	SharedPlace
	// ExclusivePlace authorizes address computation for a mutable projection.
	ExclusivePlace
)

// String returns a human-readable name for the grant kind.
func (k GrantKind) String() string {
	switch k {
	case SharedValue:
		return "shared-value"
	case ExclusiveValue:
		return "exclusive-value"
	case SharedPlace:
		return "shared-place"
	case ExclusivePlace:
		return "exclusive-place"
	default:
		return fmt.Sprintf("GrantKind(%d)", k)
	}
}

// Exclusive reports whether the kind refuses to share the slice.
func (k GrantKind) Exclusive() bool {
	return k == ExclusiveValue || k == ExclusivePlace
}

// ValueLevel reports whether the kind authorizes dereferencing.
func (k GrantKind) ValueLevel() bool {
	return k == SharedValue || k == ExclusiveValue
}

// PlaceEquivalent maps a grant kind to the place-level kind an ancestor must
// hold while a descendant holds this kind.
func (k GrantKind) PlaceEquivalent() GrantKind {
	if k.Exclusive() {
		return ExclusivePlace
	}
	return SharedPlace
}

// Satisfies reports whether an already-held grant of kind k covers a request
// for want without re-arbitration. Any grant keeps the slice addressable, so
// every kind covers shared-place; exclusive-place is covered only by the
// exclusive kinds.
func (k GrantKind) Satisfies(want GrantKind) bool {
	switch want {
	case SharedPlace:
		return true
	case ExclusivePlace:
		return k.Exclusive()
	default:
		return k == want
	}
}

// Grant is an opaque token proving a currently-held access level on one
// Slice. It must be released exactly once; a second release is an
// internal-consistency violation.
type Grant struct {
	s        *Slice
	kind     GrantKind
	released atomic.Bool
}

// Kind returns the access level this grant proves.
func (g *Grant) Kind() GrantKind {
	return g.kind
}

// Slice returns the slice the grant was issued on.
func (g *Grant) Slice() *Slice {
	return g.s
}

// Release returns the grant to its slice. Releasing twice panics.
func (g *Grant) Release() {
	if g == nil {
		return
	}
	if g.released.Swap(true) {
		violate(ViolationDoubleRelease, "%s grant on %s released twice", g.kind, g.s.Origin())
	}
	g.s.release(g.kind)
}
