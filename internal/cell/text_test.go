package cell_test

import (
	"testing"

	"tern/internal/cell"
	"tern/internal/mem"
)

func TestTextDuality(t *testing.T) {
	c := cell.GiveText("hé")
	b := c.Clone()

	s, f := cell.Take[string](&c)
	if f != nil {
		t.Fatalf("take text: %v", f)
	}
	if s != "hé" {
		t.Fatalf("decoded %q", s)
	}

	raw, f := cell.TakeArray[byte](&b)
	if f != nil {
		t.Fatalf("take bytes: %v", f)
	}
	if string(raw) != "hé" {
		t.Fatalf("raw bytes %v", raw)
	}
}

func TestTakeTextLossyOnRawBytes(t *testing.T) {
	c := cell.GiveArray([]byte{'a', 0xff, 'b'})
	s, f := cell.TakeText(&c)
	if f != nil {
		t.Fatalf("take-text: %v", f)
	}
	if s != "a�b" {
		t.Fatalf("lossy decode %q", s)
	}

	c = cell.GiveArray([]byte("clean"))
	s, f = cell.TakeText(&c)
	if f != nil {
		t.Fatalf("take-text: %v", f)
	}
	if s != "clean" {
		t.Fatalf("decoded %q", s)
	}
}

func TestTakeStringNeedsTextStorage(t *testing.T) {
	c := cell.GiveArray([]byte("bytes"))
	if _, f := cell.Take[string](&c); f == nil || f.Code != mem.FaultTypeMismatch {
		t.Fatalf("take string from raw bytes: want type mismatch, got %v", f)
	}
}

func TestBorrowText(t *testing.T) {
	c := cell.GiveText("abc")
	s, f := c.BorrowText()
	if f != nil {
		t.Fatalf("borrow-text: %v", f)
	}
	if s != "abc" {
		t.Fatalf("decoded %q", s)
	}
	c.Drop()

	c = cell.GiveArray([]byte{0xc3})
	s, f = c.BorrowText()
	if f != nil {
		t.Fatalf("borrow-text on raw bytes: %v", f)
	}
	if s != "�" {
		t.Fatalf("lossy decode %q", s)
	}
	c.Drop()
}

func TestCorruptedTextStorageViolates(t *testing.T) {
	c := cell.GiveText("ok")
	view, f := cell.BorrowArrayMut[byte](&c)
	if f != nil {
		t.Fatalf("borrow bytes: %v", f)
	}
	view[0] = 0xff

	defer func() {
		r := recover()
		v, ok := r.(*mem.Violation)
		if !ok {
			t.Fatalf("recovered %v", r)
		}
		if v.Code != mem.ViolationTextCorrupt {
			t.Fatalf("violation code %d", v.Code)
		}
	}()
	_, _ = cell.Take[string](&c)
	t.Fatal("decode of corrupted unicode-safe storage did not panic")
}
