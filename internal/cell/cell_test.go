package cell_test

import (
	"reflect"
	"testing"

	"tern/internal/cell"
	"tern/internal/mem"
)

// opaque has no registered duplication operator, so it can only move.
type opaque struct {
	payload string
}

func TestGiveTakeMovesUniqueValue(t *testing.T) {
	c := cell.Give(opaque{payload: "only"})
	got, f := cell.Take[opaque](&c)
	if f != nil {
		t.Fatalf("take: %v", f)
	}
	if got.payload != "only" {
		t.Fatalf("take returned %+v", got)
	}
}

func TestTakeOnClonedCellRefusesToCopy(t *testing.T) {
	c := cell.Give(opaque{payload: "shared"})
	clone := c.Clone()
	defer clone.Drop()

	_, f := cell.Take[opaque](&c)
	if f == nil || f.Code != mem.FaultNoDup {
		t.Fatalf("expected no-dup fault, got %v", f)
	}

	// The surviving clone is unaffected and can still move the value out.
	got, f := cell.Take[opaque](&clone)
	if f != nil {
		t.Fatalf("take on survivor: %v", f)
	}
	if got.payload != "shared" {
		t.Fatalf("take returned %+v", got)
	}
}

func TestTakeDuplicatesRegisteredType(t *testing.T) {
	c := cell.Give(uint32(77))
	clone := c.Clone()

	first, f := cell.Take[uint32](&c)
	if f != nil {
		t.Fatalf("take on clone: %v", f)
	}
	second, f := cell.Take[uint32](&clone)
	if f != nil {
		t.Fatalf("take on survivor: %v", f)
	}
	if first != 77 || second != 77 {
		t.Fatalf("takes returned %d, %d", first, second)
	}
}

func TestTakeChecksTypeAndArity(t *testing.T) {
	c := cell.Give(int64(5))
	if _, f := cell.Take[int32](&c); f == nil || f.Code != mem.FaultTypeMismatch {
		t.Fatalf("wrong type: want type mismatch, got %v", f)
	}

	c = cell.GiveArray([]int64{1, 2})
	if _, f := cell.Take[int64](&c); f == nil || f.Code != mem.FaultArityMismatch {
		t.Fatalf("two elements: want arity mismatch, got %v", f)
	}

	c = cell.GiveArray([]int64{})
	if _, f := cell.Take[int64](&c); f == nil || f.Code != mem.FaultArityMismatch {
		t.Fatalf("zero elements: want arity mismatch, got %v", f)
	}
}

func TestTakeFaultCarriesProvenance(t *testing.T) {
	c := cell.Give(int64(5))
	_, f := cell.Take[int32](&c)
	if f == nil {
		t.Fatal("expected fault")
	}
	if f.Origin == "" || f.Stored != "int64" || f.Expected != "int32" {
		t.Fatalf("fault context incomplete: %+v", f)
	}
}

func TestTakeArrayRoundTrip(t *testing.T) {
	for _, in := range [][]uint16{nil, {9}, {10, 20, 30, 40}} {
		c := cell.GiveArray(in)
		if c.IsNil() {
			t.Fatal("give-array must not produce the nil cell")
		}
		if c.Len() != len(in) {
			t.Fatalf("length %d, want %d", c.Len(), len(in))
		}
		out, f := cell.TakeArray[uint16](&c)
		if f != nil {
			t.Fatalf("take-array: %v", f)
		}
		if !reflect.DeepEqual(out, append([]uint16(nil), in...)) {
			t.Fatalf("round trip of %v returned %v", in, out)
		}
	}
}

func TestNilCellBasics(t *testing.T) {
	n := cell.Nil()
	if !n.IsNil() {
		t.Fatal("Nil() is not nil")
	}
	if n.Len() != 0 {
		t.Fatalf("nil length %d", n.Len())
	}
	if n.Elem() != nil {
		t.Fatalf("nil element type %v", n.Elem())
	}
	n.Drop() // tolerated
}

func TestGiveAbsentDegeneratesToNil(t *testing.T) {
	if c := cell.Give(nil); !c.IsNil() {
		t.Fatal("give(nil) should be the nil cell")
	}
	if c := cell.Give(struct{}{}); !c.IsNil() {
		t.Fatal("give(unit) should be the nil cell")
	}
}

func TestTakeUnitFromNilSucceeds(t *testing.T) {
	n := cell.Nil()
	if _, f := cell.Take[struct{}](&n); f != nil {
		t.Fatalf("take unit from nil: %v", f)
	}

	n = cell.Nil()
	_, f := cell.Take[int](&n)
	if f == nil || f.Code != mem.FaultNilAccess {
		t.Fatalf("take int from nil: want nil access, got %v", f)
	}
}

func TestInspection(t *testing.T) {
	c := cell.Give(uint16(125))
	defer c.Drop()
	if c.IsNil() {
		t.Fatal("given cell is nil")
	}
	if c.Len() != 1 {
		t.Fatalf("length %d", c.Len())
	}
	if c.Elem() != reflect.TypeFor[uint16]() {
		t.Fatalf("element type %v", c.Elem())
	}
	if !cell.Is[uint16](c) {
		t.Fatal("Is[uint16] is false")
	}
	if cell.Is[uint32](c) {
		t.Fatal("Is[uint32] is true")
	}
}

func TestIsOnNilAnswersUnitOnly(t *testing.T) {
	n := cell.Nil()
	if !cell.Is[struct{}](n) {
		t.Fatal("nil cell should answer for the unit type")
	}
	if cell.Is[int](n) {
		t.Fatal("nil cell answered for int")
	}
}

func TestCloneChainDropOrder(t *testing.T) {
	// A chain of projections drops cleanly in either order.
	base := cell.GiveArray([]int{1, 2, 3, 4, 5})
	mid, f := base.MapSlice(1, 5)
	if f != nil {
		t.Fatalf("first projection: %v", f)
	}
	top, f := mid.MapSlice(1, 3)
	if f != nil {
		t.Fatalf("second projection: %v", f)
	}
	view, f := cell.BorrowArrayRef[int](&top)
	if f != nil {
		t.Fatalf("borrow: %v", f)
	}
	if len(view) != 2 || view[0] != 3 || view[1] != 4 {
		t.Fatalf("projected view %v", view)
	}
	top.Drop() // releases its grant, then the whole upstream chain
}
