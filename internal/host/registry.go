// Package host maintains the process-wide registry of host types the value
// core can store. Each entry is a capability record of optional operators;
// the map is built during startup and frozen, read-only, on first use.
package host

import (
	"fmt"
	"reflect"
	"sync"
)

// Desc is the capability record for one host type. All operators are
// optional; a type with no duplication operator can still be stored and
// moved, it just cannot be copied out of shared storage.
type Desc struct {
	// Type is the host type identity.
	Type reflect.Type
	// Dup duplicates one element value, or nil when the type cannot be
	// duplicated.
	Dup func(v any) any
	// Text marks a type whose storage is UTF-8 bytes rather than the type
	// itself (the host text type).
	Text bool
	// Unit marks the host "no value" type, which the nil cell stands in for.
	Unit bool
}

var registry struct {
	mu     sync.Mutex
	frozen bool
	byType map[reflect.Type]*Desc
}

// Register adds a capability record for T. Registration happens at startup,
// before the registry is first consulted; registering after the freeze or
// registering the same type twice is a fatal configuration error.
func Register[T any](d Desc) {
	t := reflect.TypeFor[T]()
	d.Type = t

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if registry.frozen {
		panic(fmt.Sprintf("host: Register(%s) after registry freeze", t))
	}
	if registry.byType == nil {
		registry.byType = make(map[reflect.Type]*Desc, 32)
	}
	if _, dup := registry.byType[t]; dup {
		panic(fmt.Sprintf("host: duplicate registration for %s", t))
	}
	registry.byType[t] = &d
}

// RegisterCopyable adds a record for T whose duplication operator is the
// plain value copy. Suitable for any type without interior sharing.
func RegisterCopyable[T any]() {
	Register[T](Desc{Dup: func(v any) any { return v.(T) }})
}

// Lookup returns the capability record for t, or nil when t was never
// registered. The first lookup freezes the registry.
func Lookup(t reflect.Type) *Desc {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.frozen = true
	return registry.byType[t]
}

// Dup returns the duplication operator for t, or nil when the type has none.
func Dup(t reflect.Type) func(v any) any {
	d := Lookup(t)
	if d == nil {
		return nil
	}
	return d.Dup
}

var builtinOnce sync.Once

// Builtins registers the capability records every embedding starts from:
// the host text type, raw bytes, the unit type, booleans and the fixed-width
// numerics. Safe to call more than once; only the first call registers.
func Builtins() {
	builtinOnce.Do(func() {
		Register[string](Desc{Text: true, Dup: func(v any) any { return v.(string) }})
		Register[struct{}](Desc{Unit: true, Dup: func(v any) any { return v.(struct{}) }})
		RegisterCopyable[byte]()
		RegisterCopyable[bool]()
		RegisterCopyable[int]()
		RegisterCopyable[int8]()
		RegisterCopyable[int16]()
		RegisterCopyable[int32]()
		RegisterCopyable[int64]()
		RegisterCopyable[uint16]()
		RegisterCopyable[uint32]()
		RegisterCopyable[uint64]()
		RegisterCopyable[float32]()
		RegisterCopyable[float64]()
	})
}
