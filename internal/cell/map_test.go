package cell_test

import (
	"errors"
	"reflect"
	"testing"
	"unsafe"

	"tern/internal/cell"
	"tern/internal/mem"
)

func TestMapSliceScenario(t *testing.T) {
	base := cell.GiveArray([]int64{10, 20, 30, 40})
	proj, f := base.MapSlice(2, -1)
	if f != nil {
		t.Fatalf("map-slice: %v", f)
	}
	view, f := cell.BorrowArrayRef[int64](&proj)
	if f != nil {
		t.Fatalf("borrow projection: %v", f)
	}
	if !reflect.DeepEqual(view, []int64{30, 40}) {
		t.Fatalf("projected %v", view)
	}
	proj.Drop()
}

func TestMapSliceAliasesStorage(t *testing.T) {
	base := cell.GiveArray([]int64{10, 20, 30, 40})
	survivor := base.Clone()
	proj, f := base.MapSlice(2, -1)
	if f != nil {
		t.Fatalf("map-slice: %v", f)
	}
	view, f := cell.BorrowArrayMut[int64](&proj)
	if f != nil {
		t.Fatalf("borrow-mut projection: %v", f)
	}
	view[0] = 99
	proj.Drop()

	out, f := cell.TakeArray[int64](&survivor)
	if f != nil {
		t.Fatalf("take survivor: %v", f)
	}
	if !reflect.DeepEqual(out, []int64{10, 20, 99, 40}) {
		t.Fatalf("write through projection lost: %v", out)
	}
}

func TestProjectionKeepsSourceAlive(t *testing.T) {
	base := cell.GiveArray([]uint32{7, 8, 9})
	survivor := base.Clone()
	proj, f := base.MapSlice(0, 2)
	if f != nil {
		t.Fatalf("map-slice: %v", f)
	}

	// The projection holds place access on the whole source slice, so the
	// surviving clone can still read but cannot take it exclusively.
	if _, f := cell.BorrowArrayRef[uint32](&survivor); f != nil {
		t.Fatalf("shared read beside projection: %v", f)
	}
	s2 := survivor.Clone()
	if _, f := cell.BorrowArrayMut[uint32](&s2); f == nil || f.Code != mem.FaultConflict {
		t.Fatalf("exclusive beside projection: want conflict, got %v", f)
	}
	s2.Drop()

	proj.Drop()
	if _, f := cell.BorrowArrayMut[uint32](&survivor); f != nil {
		t.Fatalf("exclusive after projection died: %v", f)
	}
	survivor.Drop()
}

func TestMapSliceBounds(t *testing.T) {
	c := cell.GiveArray([]int{1, 2, 3})
	if _, f := c.MapSlice(2, 1); f == nil || f.Code != mem.FaultBadRange {
		t.Fatalf("reversed range: want bad range, got %v", f)
	}
	if _, f := c.MapSlice(0, 4); f == nil || f.Code != mem.FaultOutOfBounds {
		t.Fatalf("overlong range: want out of bounds, got %v", f)
	}
	empty, f := c.MapSlice(3, 3)
	if f != nil {
		t.Fatalf("empty tail range: %v", f)
	}
	if empty.Len() != 0 {
		t.Fatalf("empty range length %d", empty.Len())
	}
	empty.Drop()
}

type pair struct {
	First  int32
	Second int32
}

func TestMapRefProjectsField(t *testing.T) {
	c := cell.Give(pair{First: 5, Second: 6})
	proj, f := cell.MapRef(&c, func(p *pair) (*int32, error) { return &p.Second, nil })
	if f != nil {
		t.Fatalf("map-ref: %v", f)
	}
	v, f := cell.BorrowRef[int32](&proj)
	if f != nil {
		t.Fatalf("borrow projection: %v", f)
	}
	if *v != 6 {
		t.Fatalf("projected %d", *v)
	}
	// A shared projection does not permit writes.
	if _, f := cell.BorrowMut[int32](&proj); f == nil || f.Code != mem.FaultReadOnly {
		t.Fatalf("write through shared projection: want read only, got %v", f)
	}
	proj.Drop()
}

func TestMapMutWritesThrough(t *testing.T) {
	c := cell.Give(pair{First: 5, Second: 6})
	survivor := c.Clone()
	proj, f := cell.MapMut(&c, func(p *pair) (*int32, error) { return &p.First, nil })
	if f != nil {
		t.Fatalf("map-mut: %v", f)
	}
	v, f := cell.BorrowMut[int32](&proj)
	if f != nil {
		t.Fatalf("borrow-mut projection: %v", f)
	}
	*v = 55
	proj.Drop()

	got, f := cell.Take[pair](&survivor)
	if f != nil {
		t.Fatalf("take survivor: %v", f)
	}
	if got.First != 55 {
		t.Fatalf("write through projection lost: %+v", got)
	}
}

func TestMapRefFailures(t *testing.T) {
	boom := errors.New("boom")
	c := cell.Give(pair{})
	if _, f := cell.MapRef(&c, func(*pair) (*int32, error) { return nil, boom }); f == nil || f.Code != mem.FaultMapper {
		t.Fatalf("failing mapper: want mapper fault, got %v", f)
	}
	// The source is consumed by the failed projection.
	if !c.IsNil() {
		t.Fatal("source survived failed projection")
	}

	c = cell.Give(pair{})
	out, f := cell.MapRef(&c, func(*pair) (*int32, error) { return nil, nil })
	if f != nil {
		t.Fatalf("nil-yielding mapper: %v", f)
	}
	if !out.IsNil() {
		t.Fatal("nil mapper result should project the nil cell")
	}
}

func TestMapPtr(t *testing.T) {
	c := cell.Give(pair{First: 11, Second: 12})
	off := unsafe.Offsetof(pair{}.Second)
	proj, f := cell.MapPtr[pair, int32](&c, func(p unsafe.Pointer) unsafe.Pointer {
		return unsafe.Add(p, off)
	}, nil)
	if f != nil {
		t.Fatalf("map-ptr: %v", f)
	}
	v, f := cell.BorrowRef[int32](&proj)
	if f != nil {
		t.Fatalf("borrow projection: %v", f)
	}
	if *v != 12 {
		t.Fatalf("projected %d", *v)
	}
	proj.Drop()

	n := cell.Nil()
	out, f := cell.MapPtr[pair, int32](&n, nil, nil)
	if f != nil {
		t.Fatalf("omitted directions: %v", f)
	}
	if !out.IsNil() {
		t.Fatal("omitted directions should yield the nil cell")
	}
}

func TestMapPtrExclusiveDirection(t *testing.T) {
	c := cell.Give(int32(1))
	survivor := c.Clone()
	proj, f := cell.MapPtr[int32, int32](&c,
		func(p unsafe.Pointer) unsafe.Pointer { return p },
		func(p unsafe.Pointer) unsafe.Pointer { return p })
	if f != nil {
		t.Fatalf("map-ptr: %v", f)
	}
	// An exclusive-place projection refuses every other grant on the
	// source, shared reads included.
	if _, f := cell.BorrowRef[int32](&survivor); f == nil || f.Code != mem.FaultConflict {
		t.Fatalf("shared read beside exclusive place projection: want conflict, got %v", f)
	}
	v, f := cell.BorrowMut[int32](&proj)
	if f != nil {
		t.Fatalf("borrow-mut projection: %v", f)
	}
	*v = 2
	proj.Drop()
	survivor.Drop()
}

func TestMapText(t *testing.T) {
	c := cell.GiveText("héllo")
	text, proj, f := c.MapText()
	if f != nil {
		t.Fatalf("map-text: %v", f)
	}
	if text != "héllo" {
		t.Fatalf("decoded %q", text)
	}
	if !cell.Is[string](proj) {
		t.Fatal("text projection lost its text capability")
	}
	proj.Drop()
}

func TestMapTextRetextsValidBytes(t *testing.T) {
	c := cell.GiveArray([]byte("plain"))
	text, proj, f := c.MapText()
	if f != nil {
		t.Fatalf("map-text on valid bytes: %v", f)
	}
	if text != "plain" {
		t.Fatalf("decoded %q", text)
	}
	if !cell.Is[string](proj) {
		t.Fatal("retexted projection not recognised as text")
	}
	proj.Drop()
}

func TestMapTextRejections(t *testing.T) {
	c := cell.GiveArray([]byte{0xff, 0xfe})
	if _, _, f := c.MapText(); f == nil || f.Code != mem.FaultBadText {
		t.Fatalf("invalid bytes: want bad text, got %v", f)
	}
	c.Drop()

	c = cell.Give(int(1))
	if _, _, f := c.MapText(); f == nil || f.Code != mem.FaultTypeMismatch {
		t.Fatalf("non-byte storage: want type mismatch, got %v", f)
	}
	c.Drop()
}
