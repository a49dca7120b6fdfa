// Package mem implements the backing store of the value core: type-erased
// fixed-length slices that own element storage and arbitrate every grant of
// access to it. Conflict detection lives here and nowhere else; the cell
// layer above never second-guesses a refused grant.
package mem

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Caps describes what a slice permits, independent of outstanding grants.
type Caps uint8

const (
	// CapRead permits value-level read access.
	CapRead Caps = 1 << iota
	// CapWrite permits value-level write access.
	CapWrite
	// CapOwned marks a slice that owns its storage; only owned storage can
	// be moved out.
	CapOwned
	// CapText marks byte storage that is known to be valid UTF-8.
	CapText
)

// Has reports whether all flags in f are set.
func (c Caps) Has(f Caps) bool {
	return c&f == f
}

// String renders the flags as a fixed-width "rwot" mask.
func (c Caps) String() string {
	b := []byte("----")
	if c.Has(CapRead) {
		b[0] = 'r'
	}
	if c.Has(CapWrite) {
		b[1] = 'w'
	}
	if c.Has(CapOwned) {
		b[2] = 'o'
	}
	if c.Has(CapText) {
		b[3] = 't'
	}
	return string(b)
}

var nextAllocID atomic.Uint64

// Slice is a fixed-length array of same-typed elements behind a type-erased
// front. A Slice is shared by every chain link that can reach its storage;
// the share count decides when the storage itself dies and whether a move-out
// is sole-owner. All grant bookkeeping is internally synchronized, so a Slice
// may be used from multiple goroutines at once.
type Slice struct {
	elem    reflect.Type
	length  int
	caps    Caps
	origin  string
	allocID uint64

	shares atomic.Int32

	mu          sync.Mutex
	data        reflect.Value // always a slice value of []elem
	sharedValue int
	sharedPlace int
	exclusive   bool
	exclusiveK  GrantKind
	freed       bool
}

// Stats is a point-in-time view of a slice's grant bookkeeping, used for
// diagnostics snapshots.
type Stats struct {
	SharedValue int
	SharedPlace int
	Exclusive   bool
	Shares      int
}

func newSlice(data reflect.Value, caps Caps, origin string) *Slice {
	if data.Kind() != reflect.Slice {
		violate(ViolationUseAfterFree, "backing storage must be a slice, got %s", data.Kind())
	}
	s := &Slice{
		elem:    data.Type().Elem(),
		length:  data.Len(),
		caps:    caps,
		origin:  origin,
		allocID: nextAllocID.Add(1),
		data:    data,
	}
	s.shares.Store(1)
	trackAlloc(s)
	return s
}

// NewOwned wraps elems in a fresh slice that owns its storage. The caller
// hands the elements over; it must not retain the Go slice.
func NewOwned[T any](elems []T, caps Caps, origin string) *Slice {
	return newSlice(reflect.ValueOf(elems), caps|CapOwned, origin)
}

// NewOwnedValue is the reflection-level variant of NewOwned for callers that
// only have the element type at runtime. data must be a slice value.
func NewOwnedValue(data reflect.Value, caps Caps, origin string) *Slice {
	return newSlice(data, caps|CapOwned, origin)
}

// WrapAddr registers caller-supplied storage at p without taking ownership.
// The resulting slice aliases that storage for n elements; the caller
// warrants that the address outlives the slice.
func WrapAddr[T any](p *T, n int, caps Caps, origin string) *Slice {
	var data []T
	if p != nil {
		data = unsafe.Slice(p, n)
	} else {
		data = make([]T, n) // zero-sized elements carry no storage to alias
	}
	return newSlice(reflect.ValueOf(data), caps&^CapOwned, origin)
}

// Elem returns the element type identity.
func (s *Slice) Elem() reflect.Type { return s.elem }

// Len returns the element count.
func (s *Slice) Len() int { return s.length }

// Caps returns the capability flags.
func (s *Slice) Caps() Caps { return s.caps }

// Origin returns the provenance tag carried for diagnostics.
func (s *Slice) Origin() string { return s.origin }

// AllocID returns the process-unique allocation id.
func (s *Slice) AllocID() uint64 { return s.allocID }

// ZeroSized reports whether elements occupy no storage. Zero-sized element
// types are exempt from ordinary bounds checks.
func (s *Slice) ZeroSized() bool { return s.elem.Size() == 0 }

// Retain records another sharer of this slice's storage.
func (s *Slice) Retain() {
	s.shares.Add(1)
}

// ReleaseShare drops one sharer. The last release frees owned storage; it is
// a violation for grants to still be outstanding at that point, since every
// holder releases its grant before its share.
func (s *Slice) ReleaseShare() {
	if s.shares.Add(-1) != 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sharedValue != 0 || s.sharedPlace != 0 || s.exclusive {
		violate(ViolationLiveGrants, "slice %s dropped with grants outstanding", s.origin)
	}
	if s.freed {
		return // storage already moved out
	}
	s.freed = true
	s.data = reflect.Value{}
	trackFree(s)
}

// Sole reports whether exactly one sharer can reach this slice.
func (s *Slice) Sole() bool {
	return s.shares.Load() == 1
}

// Acquire requests a grant of the given kind. It fails immediately with a
// typed fault on capability or conflict problems; it never queues.
func (s *Slice) Acquire(kind GrantKind) (*Grant, *Fault) {
	switch kind {
	case SharedValue:
		if !s.caps.Has(CapRead) {
			return nil, s.fault(FaultWriteOnly, "read access to write-only slice")
		}
	case ExclusiveValue:
		if !s.caps.Has(CapWrite) {
			return nil, s.fault(FaultReadOnly, "write access to read-only slice")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.freed {
		violate(ViolationUseAfterFree, "grant requested on freed slice %s", s.origin)
	}
	if s.exclusive {
		return nil, s.fault(FaultConflict, "%s grant refused: %s grant outstanding", kind, s.exclusiveK)
	}
	if kind.Exclusive() && s.sharedValue+s.sharedPlace > 0 {
		return nil, s.fault(FaultConflict,
			"%s grant refused: %d shared grant(s) outstanding", kind, s.sharedValue+s.sharedPlace)
	}

	switch kind {
	case SharedValue:
		s.sharedValue++
	case SharedPlace:
		s.sharedPlace++
	default:
		s.exclusive = true
		s.exclusiveK = kind
	}
	return &Grant{s: s, kind: kind}, nil
}

func (s *Slice) release(kind GrantKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case SharedValue:
		s.sharedValue--
	case SharedPlace:
		s.sharedPlace--
	default:
		s.exclusive = false
	}
	if s.sharedValue < 0 || s.sharedPlace < 0 {
		violate(ViolationDoubleRelease, "grant accounting below zero on %s", s.origin)
	}
}

// Stats returns the current grant bookkeeping.
func (s *Slice) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		SharedValue: s.sharedValue,
		SharedPlace: s.sharedPlace,
		Exclusive:   s.exclusive,
		Shares:      int(s.shares.Load()),
	}
}

// View returns the typed elements readable under g. The returned Go slice is
// valid only while g is held.
func View[T any](g *Grant) ([]T, *Fault) {
	s := g.s
	if !g.kind.ValueLevel() {
		return nil, s.fault(FaultConflict, "%s grant does not authorize reading", g.kind)
	}
	if g.released.Load() {
		violate(ViolationUseAfterFree, "view through released grant on %s", s.origin)
	}
	want := reflect.TypeFor[T]()
	if s.elem != want {
		return nil, s.typeFault(want)
	}
	return s.dataSlice().Interface().([]T), nil
}

// ViewMut returns the typed elements writable under g, which must be an
// exclusive value grant.
func ViewMut[T any](g *Grant) ([]T, *Fault) {
	if g.kind != ExclusiveValue {
		return nil, g.s.fault(FaultConflict, "%s grant does not authorize writing", g.kind)
	}
	return View[T](g)
}

// Addr returns the raw address of the first element, valid while g is held.
// Any grant is place-level authority. The address is nil for empty and
// zero-sized storage.
func Addr(g *Grant) unsafe.Pointer {
	s := g.s
	if g.released.Load() {
		violate(ViolationUseAfterFree, "address through released grant on %s", s.origin)
	}
	if s.length == 0 || s.ZeroSized() {
		return nil
	}
	return s.dataSlice().Index(0).Addr().UnsafePointer()
}

// SubRange projects the half-open element range [lo, hi) into a new aliasing
// slice. The caller proves liveness with any grant on s. Bounds are checked
// against the element count unless the element type is zero-sized, in which
// case arbitrary in-order bounds are honored with fresh ghost storage.
func (s *Slice) SubRange(g *Grant, lo, hi int) (*Slice, *Fault) {
	if g == nil || g.s != s {
		violate(ViolationUseAfterFree, "subrange of %s without a grant on it", s.origin)
	}
	if lo < 0 || lo > hi {
		return nil, s.fault(FaultBadRange, "malformed range [%d:%d]", lo, hi)
	}
	caps := s.caps &^ CapOwned
	origin := fmt.Sprintf("%s[%d:%d]", s.origin, lo, hi)
	if s.ZeroSized() {
		data := reflect.MakeSlice(reflect.SliceOf(s.elem), hi-lo, hi-lo)
		return newSlice(data, caps, origin), nil
	}
	if hi > s.length {
		return nil, s.fault(FaultOutOfBounds, "range end %d out of bounds for length %d", hi, s.length)
	}
	s.mu.Lock()
	data := s.data.Slice3(lo, hi, hi)
	s.mu.Unlock()
	return newSlice(data, caps, origin), nil
}

// Retext returns a new aliasing slice over the same storage with the text
// capability set. The caller warrants the bytes are valid UTF-8.
func (s *Slice) Retext(g *Grant) *Slice {
	if g == nil || g.s != s {
		violate(ViolationUseAfterFree, "retext of %s without a grant on it", s.origin)
	}
	s.mu.Lock()
	data := s.data
	s.mu.Unlock()
	return newSlice(data, (s.caps|CapText)&^CapOwned, s.origin)
}

// TakeOwned moves the element storage out of a slice that is self-owned,
// sole-shared, and grant-free. On success the slice is dead: its storage
// belongs to the caller and every further grant request is a violation.
func TakeOwned[T any](s *Slice) ([]T, *Fault) {
	want := reflect.TypeFor[T]()
	if s.elem != want {
		return nil, s.typeFault(want)
	}
	if !s.caps.Has(CapOwned) {
		return nil, s.fault(FaultConflict, "storage is not self-owned")
	}
	if !s.Sole() {
		return nil, s.fault(FaultConflict, "storage is shared")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.freed {
		violate(ViolationUseAfterFree, "move out of freed slice %s", s.origin)
	}
	if s.sharedValue != 0 || s.sharedPlace != 0 || s.exclusive {
		return nil, s.fault(FaultConflict, "storage has grants outstanding")
	}
	out := s.data.Interface().([]T)
	s.freed = true
	s.data = reflect.Value{}
	trackFree(s)
	return out, nil
}

func (s *Slice) dataSlice() reflect.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.freed {
		violate(ViolationUseAfterFree, "data access on freed slice %s", s.origin)
	}
	return s.data
}

func (s *Slice) fault(code FaultCode, format string, args ...any) *Fault {
	return &Fault{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Origin:  s.origin,
		Stored:  s.elem.String(),
	}
}

func (s *Slice) typeFault(want reflect.Type) *Fault {
	f := s.fault(FaultTypeMismatch, "expected element type %s, got %s", want, s.elem)
	f.Expected = want.String()
	return f
}
