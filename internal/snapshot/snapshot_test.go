package snapshot

import (
	"bytes"
	"testing"

	"tern/internal/mem"
)

func TestCaptureSeesTrackedSlices(t *testing.T) {
	mem.EnableTracking()
	defer mem.DisableTracking()

	s := mem.NewOwned([]int64{1, 2, 3}, mem.CapRead|mem.CapWrite, "capture-probe")
	defer s.ReleaseShare()
	g, f := s.Acquire(mem.SharedValue)
	if f != nil {
		t.Fatalf("acquire: %v", f)
	}
	defer g.Release()

	snap, err := Capture()
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if snap.Schema != SchemaVersion {
		t.Fatalf("schema %d", snap.Schema)
	}
	var probe *SliceInfo
	for i := range snap.Slices {
		if snap.Slices[i].Origin == "capture-probe" {
			probe = &snap.Slices[i]
		}
	}
	if probe == nil {
		t.Fatal("tracked slice missing from capture")
	}
	if probe.Len != 3 || probe.Elem != "int64" {
		t.Fatalf("probe shape: %+v", probe)
	}
	if probe.SharedValue != 1 || probe.Exclusive {
		t.Fatalf("probe grants: %+v", probe)
	}
	for i := 1; i < len(snap.Slices); i++ {
		if snap.Slices[i-1].AllocID > snap.Slices[i].AllocID {
			t.Fatal("capture not ordered by allocation id")
		}
	}
}

func TestEncodeDecode(t *testing.T) {
	snap, err := Capture()
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, snap); err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.Schema != snap.Schema || len(back.Slices) != len(snap.Slices) {
		t.Fatalf("round trip lost data: %+v", back)
	}
}

func TestDecodeRejectsUnknownSchema(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, Snapshot{Schema: SchemaVersion + 1}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := Decode(&buf); err == nil {
		t.Fatal("unknown schema accepted")
	}
}
