// Package snapshot captures diagnostics snapshots of the live backing slices
// and serializes them for offline inspection.
package snapshot

import (
	"fmt"
	"io"
	"sort"
	"time"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"

	"tern/internal/mem"
)

// Current schema version - increment when the payload format changes.
const SchemaVersion uint16 = 1

// Snapshot is one point-in-time capture of the tracked slices.
type Snapshot struct {
	Schema  uint16
	TakenAt time.Time
	Slices  []SliceInfo
}

// SliceInfo records the diagnostics view of one live slice: provenance,
// shape, capabilities and outstanding grant bookkeeping.
type SliceInfo struct {
	AllocID     uint64
	Origin      string
	Elem        string
	Len         uint32
	Caps        string
	Shares      uint32
	SharedValue uint32
	SharedPlace uint32
	Exclusive   bool
}

// Capture snapshots the slices currently recorded by the mem tracker,
// ordered by allocation id. Tracking must be enabled for the capture to see
// anything.
func Capture() (Snapshot, error) {
	live := mem.LiveSlices()
	infos := make([]SliceInfo, 0, len(live))
	for _, s := range live {
		info, err := sliceInfo(s)
		if err != nil {
			return Snapshot{}, err
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].AllocID < infos[j].AllocID
	})
	return Snapshot{
		Schema:  SchemaVersion,
		TakenAt: time.Now().UTC(),
		Slices:  infos,
	}, nil
}

func sliceInfo(s *mem.Slice) (SliceInfo, error) {
	stats := s.Stats()
	length, err := safecast.Conv[uint32](s.Len())
	if err != nil {
		return SliceInfo{}, fmt.Errorf("slice %s: length overflow: %w", s.Origin(), err)
	}
	shares, err := safecast.Conv[uint32](stats.Shares)
	if err != nil {
		return SliceInfo{}, fmt.Errorf("slice %s: share count overflow: %w", s.Origin(), err)
	}
	sharedValue, err := safecast.Conv[uint32](stats.SharedValue)
	if err != nil {
		return SliceInfo{}, fmt.Errorf("slice %s: grant count overflow: %w", s.Origin(), err)
	}
	sharedPlace, err := safecast.Conv[uint32](stats.SharedPlace)
	if err != nil {
		return SliceInfo{}, fmt.Errorf("slice %s: grant count overflow: %w", s.Origin(), err)
	}
	return SliceInfo{
		AllocID:     s.AllocID(),
		Origin:      s.Origin(),
		Elem:        s.Elem().String(),
		Len:         length,
		Caps:        s.Caps().String(),
		Shares:      shares,
		SharedValue: sharedValue,
		SharedPlace: sharedPlace,
		Exclusive:   stats.Exclusive,
	}, nil
}

// Encode writes the snapshot to w in msgpack format.
func Encode(w io.Writer, snap Snapshot) error {
	if err := msgpack.NewEncoder(w).Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// Decode reads one snapshot from r, rejecting unknown schema versions.
func Decode(r io.Reader) (Snapshot, error) {
	var snap Snapshot
	if err := msgpack.NewDecoder(r).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Schema != SchemaVersion {
		return Snapshot{}, fmt.Errorf("snapshot schema %d not supported (want %d)", snap.Schema, SchemaVersion)
	}
	return snap, nil
}
