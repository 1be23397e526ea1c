package objects

import (
	"github.com/kristofer/smogvm/pkg/gc"
	"github.com/kristofer/smogvm/pkg/value"
)

// Roots is the external root set Collect needs in order to find every
// live object: the frame stacks of both interpreters (whichever is
// running), and a callback pair for the universe's globals table, whose
// map values are not addressable and so must be read out, remapped, and
// written back rather than rewritten in place.
type Roots struct {
	// Frames are every activation record currently on a call stack
	// (including parent frames reachable only through Owner.Outer/Prev
	// chains starting from these).
	Frames []*Frame

	// MarkGlobals calls visit once per live global Value currently in the
	// universe's globals table, in any order.
	MarkGlobals func(visit func(value.Value))

	// RewriteGlobals calls remap on every global Value and replaces the
	// table entry with the result. Used after compaction to fix up
	// pointer-tagged globals to their new Handles. The universe's globals
	// table is a swiss.Map, whose values are not addressable, so this
	// read-remap-write pattern stands in for the in-place pointer rewrite
	// Collect performs on frame slots and object fields.
	RewriteGlobals func(remap func(value.Value) value.Value)
}

// mark tracks, per arena, which handles are reachable.
type mark struct {
	strings    map[gc.Handle]bool
	bigints    map[gc.Handle]bool
	arrays     map[gc.Handle]bool
	blocks     map[gc.Handle]bool
	classes    map[gc.Handle]bool
	instances  map[gc.Handle]bool
	invokables map[gc.Handle]bool
}

func newMark() *mark {
	return &mark{
		strings:    map[gc.Handle]bool{},
		bigints:    map[gc.Handle]bool{},
		arrays:     map[gc.Handle]bool{},
		blocks:     map[gc.Handle]bool{},
		classes:    map[gc.Handle]bool{},
		instances:  map[gc.Handle]bool{},
		invokables: map[gc.Handle]bool{},
	}
}

// Collect performs a full mark-and-compact pass: every object reachable
// from roots is kept, everything else is dropped, and every surviving
// Handle anywhere (frame slots, globals, and fields of other kept
// objects) is rewritten to its post-compaction index.
//
// This runs to completion synchronously; there is no concurrent or
// incremental phase. A SOM program's working set is small enough (this is
// a teaching VM, not a production language runtime) that stop-the-world
// mark/compact is the right tradeoff: it is far simpler to get right than
// a concurrent collector, and its pause is not something any of the
// target workloads (recursive fibonacci, loop benchmarks, a handful of
// classes) will ever notice.
func (h *Heap) Collect(roots Roots) {
	m := newMark()

	for _, f := range roots.Frames {
		h.markFrame(f, m)
	}
	if roots.MarkGlobals != nil {
		roots.MarkGlobals(func(v value.Value) {
			h.markValue(v, m)
		})
	}

	remapStrings := h.Strings.Compact(m.strings)
	remapBigInts := h.BigInts.Compact(m.bigints)
	remapArrays := h.Arrays.Compact(m.arrays)
	remapBlocks := h.Blocks.Compact(m.blocks)
	remapClasses := h.Classes.Compact(m.classes)
	remapInstances := h.Instances.Compact(m.instances)
	remapInvokables := h.Invokables.Compact(m.invokables)

	remap := func(v value.Value) value.Value {
		if !v.IsPtrType() {
			return v
		}
		old := gc.Handle(v.Handle())
		switch v.Tag() {
		case value.TagString:
			return value.NewString(uint32(remapStrings[old]))
		case value.TagBigInt:
			return value.NewBigInt(uint32(remapBigInts[old]))
		case value.TagArray:
			return value.NewArray(uint32(remapArrays[old]))
		case value.TagBlock:
			return value.NewBlock(uint32(remapBlocks[old]))
		case value.TagClass:
			return value.NewClass(uint32(remapClasses[old]))
		case value.TagInstance:
			return value.NewInstance(uint32(remapInstances[old]))
		case value.TagInvokable:
			return value.NewInvokable(uint32(remapInvokables[old]))
		default:
			return v
		}
	}

	for _, f := range roots.Frames {
		h.rewriteFrame(f, remap, remapInvokables, remapBlocks)
	}
	if roots.RewriteGlobals != nil {
		roots.RewriteGlobals(remap)
	}
	h.rewriteArenas(remap, remapClasses, remapInvokables, remapBlocks)

	h.noteCollected()
}

func (h *Heap) markFrame(f *Frame, m *mark) {
	for cur := f; cur != nil; cur = cur.Prev {
		for _, v := range cur.storage {
			h.markValue(v, m)
		}
		m.invokables[gc.Handle(cur.Method)] = true
		if cur.Owner != nil {
			h.markBlockValue(cur.Owner, m)
		}
	}
}

func (h *Heap) markValue(v value.Value, m *mark) {
	if !v.IsPtrType() {
		return
	}
	handle := gc.Handle(v.Handle())
	switch v.Tag() {
	case value.TagString:
		m.strings[handle] = true
	case value.TagBigInt:
		m.bigints[handle] = true
	case value.TagArray:
		if m.arrays[handle] {
			return
		}
		m.arrays[handle] = true
		arr := h.Arrays.Get(handle)
		for _, elem := range arr.Elements {
			h.markValue(elem, m)
		}
	case value.TagBlock:
		if m.blocks[handle] {
			return
		}
		m.blocks[handle] = true
		blk := h.Blocks.Get(handle)
		h.markBlockValue(blk, m)
	case value.TagClass:
		h.markClass(handle, m)
	case value.TagInstance:
		if m.instances[handle] {
			return
		}
		m.instances[handle] = true
		inst := h.Instances.Get(handle)
		h.markClass(inst.Class, m)
		for _, field := range inst.Fields {
			h.markValue(field, m)
		}
	case value.TagInvokable:
		m.invokables[handle] = true
	}
}

func (h *Heap) markBlockValue(blk *Block, m *mark) {
	m.invokables[gc.Handle(blk.Method)] = true
	h.markValue(blk.Receiver, m)
	if blk.Outer != nil {
		h.markFrame(blk.Outer, m)
	}
}

func (h *Heap) markClass(handle gc.Handle, m *mark) {
	if m.classes[handle] {
		return
	}
	m.classes[handle] = true
	cls := h.Classes.Get(handle)
	if cls.HasSuper {
		h.markClass(cls.Super, m)
	}
	for _, inv := range cls.Methods {
		m.invokables[inv] = true
	}
	for _, inv := range cls.ClassMethods {
		m.invokables[inv] = true
	}
}

func (h *Heap) rewriteFrame(f *Frame, remap func(value.Value) value.Value, remapInvokables, remapBlocks map[gc.Handle]gc.Handle) {
	for cur := f; cur != nil; cur = cur.Prev {
		for i, v := range cur.storage {
			cur.storage[i] = remap(v)
		}
		cur.Method = remapInvokables[cur.Method]
	}
}

func (h *Heap) rewriteArenas(remap func(value.Value) value.Value, remapClasses, remapInvokables, remapBlocks map[gc.Handle]gc.Handle) {
	for i := 1; i < h.Arrays.Len(); i++ {
		arr := h.Arrays.Get(gc.Handle(i))
		for j, v := range arr.Elements {
			arr.Elements[j] = remap(v)
		}
	}
	for i := 1; i < h.Instances.Len(); i++ {
		inst := h.Instances.Get(gc.Handle(i))
		inst.Class = remapClasses[inst.Class]
		for j, v := range inst.Fields {
			inst.Fields[j] = remap(v)
		}
	}
	for i := 1; i < h.Blocks.Len(); i++ {
		blk := h.Blocks.Get(gc.Handle(i))
		blk.Method = remapInvokables[blk.Method]
		blk.Receiver = remap(blk.Receiver)
		if blk.Outer != nil {
			h.rewriteFrame(blk.Outer, remap, remapInvokables, remapBlocks)
		}
	}
	for i := 1; i < h.Classes.Len(); i++ {
		cls := h.Classes.Get(gc.Handle(i))
		if cls.HasSuper {
			cls.Super = remapClasses[cls.Super]
		}
		for sel, inv := range cls.Methods {
			cls.Methods[sel] = remapInvokables[inv]
		}
		for sel, inv := range cls.ClassMethods {
			cls.ClassMethods[sel] = remapInvokables[inv]
		}
	}
}
