// Package gc implements the moving, typed-allocation heap shared by both
// execution engines.
//
// Every managed SOM object - strings, big integers, arrays, blocks, classes,
// instances, and invokables - lives in one of a handful of typed arenas (see
// package objects, which owns one Arena per kind). Allocating an object
// never returns a Go pointer; it returns a 32-bit Handle, a process-local
// index. The NaN-boxed value.Value sign-extends that index into its 47-bit
// pointer payload (see package value), so a managed pointer is really
// "which arena, which slot" rather than a raw memory address.
//
// That indirection is what makes the heap a *moving* collector even though
// Go's own runtime never relocates anything on our behalf: Collect compacts
// each arena in place, drops unreachable slots, and rewrites every
// surviving Handle (in frames, globals, and object fields) to its
// post-compaction index. Any Go pointer obtained from Get before a Collect
// is invalid after one; callers must re-fetch from the Value that still
// carries the Handle, exactly as the design calls for.
//
// Collect runs to completion before the allocation call that triggered it
// returns - the interpreter loop never sees a half-moved heap.
package gc

// Handle is an index into one of the heap's typed arenas. The zero Handle
// is never a valid allocation; arenas reserve slot 0 as a guard so that a
// zero-valued Value (as produced by a zeroed struct, before NaN-boxing
// tagging) can never alias a live object.
type Handle uint32

// Arena is a typed, growable slab of T, indexed by Handle. Slot 0 is always
// a reserved guard entry so Handle(0) never refers to a live allocation.
type Arena[T any] struct {
	slots []T
}

// NewArena returns an empty arena with room for capacity live objects
// before it needs to grow.
func NewArena[T any](capacity int) *Arena[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Arena[T]{slots: make([]T, 1, capacity+1)}
}

// Alloc appends a zero-valued T and returns its Handle. The returned
// pointer is only valid until the next Alloc (which may grow the backing
// slice) or Compact.
func (a *Arena[T]) Alloc() (Handle, *T) {
	a.slots = append(a.slots, *new(T))
	h := Handle(len(a.slots) - 1)
	return h, &a.slots[h]
}

// Get dereferences a Handle. The returned pointer is a safe-point boundary:
// it must not be held across a call that can allocate, since Compact may
// have moved the slot it points into.
func (a *Arena[T]) Get(h Handle) *T {
	return &a.slots[h]
}

// Compact keeps only the slots whose Handle is in live, renumbering them
// starting at 1 in their original relative order, and returns the
// old-Handle -> new-Handle mapping so callers can rewrite references.
func (a *Arena[T]) Compact(live map[Handle]bool) map[Handle]Handle {
	remap := make(map[Handle]Handle, len(live))
	kept := make([]T, 1, len(live)+1)
	for idx := 1; idx < len(a.slots); idx++ {
		h := Handle(idx)
		if !live[h] {
			continue
		}
		remap[h] = Handle(len(kept))
		kept = append(kept, a.slots[idx])
	}
	a.slots = kept
	return remap
}

// Len returns the number of slots currently in the arena, including the
// guard slot.
func (a *Arena[T]) Len() int { return len(a.slots) }
