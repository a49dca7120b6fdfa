package cell

import (
	"sync/atomic"

	"tern/internal/mem"
)

// link is one reference-counted node of a dependency chain. It pairs at most
// one live grant on one backing slice with the upstream cell this one was
// projected from. The chain is singly linked: release is a walk toward the
// root, never graph traversal.
type link struct {
	refs  atomic.Int32
	from  Cell
	slice *mem.Slice
	grant *mem.Grant
}

// newLink wraps slice in a fresh link, taking over the caller's share of the
// slice and ownership of from.
func newLink(slice *mem.Slice, from Cell) *link {
	l := &link{from: from, slice: slice}
	l.refs.Store(1)
	return l
}

// acquire ensures c's link holds a grant covering kind, propagating the
// place-level equivalent up the chain first so that every ancestor stays
// pinned while the grant is held. A failed request leaves the whole chain at
// its prior grant state: ancestors already escalated for this request are
// walked back down before the fault is returned.
func (c *Cell) acquire(kind mem.GrantKind) *mem.Fault {
	f, _ := c.escalate(kind)
	return f
}

// escalate is acquire plus an undo restoring the link and its ancestors to
// their pre-call grant state, used when a descendant's own request fails
// after the escalation succeeded. On failure the state is already restored
// and no undo is returned.
//
// The sole-referenced link is updated in place: release the old grant,
// request the new one. Once the link has been cloned, it is left untouched
// and the cell is repointed at a brand-new link sharing the same slice, so
// sibling clones keep their prior grant state.
func (c *Cell) escalate(kind mem.GrantKind) (*mem.Fault, func()) {
	l := c.link
	if l.grant != nil && l.grant.Kind().Satisfies(kind) {
		return nil, func() {}
	}

	if l.refs.Load() == 1 {
		undoUp := func() {}
		if !l.from.IsNil() {
			f, undo := l.from.escalate(kind.PlaceEquivalent())
			if f != nil {
				return f, nil
			}
			undoUp = undo
		}
		var prev mem.GrantKind
		had := false
		if l.grant != nil {
			prev, had = l.grant.Kind(), true
			l.grant.Release()
			l.grant = nil
		}
		g, f := l.slice.Acquire(kind)
		if f != nil {
			restoreGrant(l, prev, had)
			undoUp()
			return f, nil
		}
		l.grant = g
		return nil, func() {
			l.grant.Release()
			l.grant = nil
			restoreGrant(l, prev, had)
			undoUp()
		}
	}

	// Cloned link: fork. The new link clones from, so any upstream
	// escalation lands on forks too and dying with nl releases it all.
	nl := newLink(l.slice, l.from.Clone())
	l.slice.Retain()
	if !nl.from.IsNil() {
		if f, _ := nl.from.escalate(kind.PlaceEquivalent()); f != nil {
			dropLink(nl)
			return f, nil
		}
	}
	g, f := l.slice.Acquire(kind)
	if f != nil {
		dropLink(nl)
		return f, nil
	}
	nl.grant = g
	c.link = nl
	dropLink(l)
	return nil, func() {
		l.refs.Add(1)
		c.link = l
		dropLink(nl)
	}
}

// restoreGrant best-effort reinstates the grant kind a link held before a
// failed or undone upgrade. Siblings could have observed that state.
func restoreGrant(l *link, prev mem.GrantKind, had bool) {
	if !had {
		return
	}
	if g, f := l.slice.Acquire(prev); f == nil {
		l.grant = g
	}
}

// dropLink gives up one reference to l. Dropping the last reference releases
// the link's own grant, then its share of the slice, then repeats the rule on
// the upstream link. The loop keeps the release strictly child-before-parent.
func dropLink(l *link) {
	for l != nil {
		if l.refs.Add(-1) != 0 {
			return
		}
		if l.grant != nil {
			l.grant.Release()
			l.grant = nil
		}
		l.slice.ReleaseShare()
		next := l.from.link
		l.from = Cell{}
		l = next
	}
}
