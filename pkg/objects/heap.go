// Package objects defines the seven managed object kinds - strings, big
// integers, arrays, blocks, classes, instances, and invokables - and the
// Heap that allocates and collects them.
//
// This is the one package that knows about both package gc (the generic
// arena primitive) and package value (the NaN-boxed tag bits): it maps a
// value.Value's tag to the right arena, and it is where a pointer-tagged
// Value's payload actually gets turned into live Go data.
package objects

import (
	"math/big"

	"github.com/kristofer/smogvm/pkg/gc"
	"github.com/kristofer/smogvm/pkg/value"
)

// String is a managed, immutable SOM string. Symbols are not stored here:
// a Symbol Value carries its interned id directly.
type String struct {
	Data string
}

// BigInteger is a managed arbitrary-precision integer, used once a
// fixnum computation overflows 32 bits.
type BigInteger struct {
	Data *big.Int
}

// Array is a managed, fixed-length, mutable vector of Values.
type Array struct {
	Elements []value.Value
}

// Block is a managed closure: a reference to compiled block code plus the
// activation Frame it closed over (both engines always capture the frame
// the block literal was evaluated in, whether or not the block reads it).
type Block struct {
	Method   gc.Handle // TagInvokable handle for the block's compiled body
	Outer    *Frame    // captured lexical frame
	Receiver value.Value
}

// Class is a managed class object: superclass link, instance and class
// method dictionaries, and the names of the instance fields every Instance
// of this class carries.
type Class struct {
	Name            string
	Super           gc.Handle // TagClass handle, or 0 for Object's superclass
	HasSuper        bool
	InstanceFields  []string
	Methods         map[string]gc.Handle // selector -> TagInvokable handle
	ClassMethods    map[string]gc.Handle
	ClassFields     []string
	IsMetaclassOf   gc.Handle // 0 unless this Class is a metaclass
}

// Instance is a managed user-object: a class link and a flat slice of field
// Values, ordered per Class.InstanceFields (including inherited fields,
// superclass fields first).
type Instance struct {
	Class  gc.Handle // TagClass handle
	Fields []value.Value
}

// InvokableKind distinguishes a compiled method/block body from a
// primitive (native Go function) body.
type InvokableKind int

const (
	// InvokableCompiled bodies run through the bytecode interpreter or the
	// AST walker; each engine reads its own compiled representation.
	InvokableCompiled InvokableKind = iota
	// InvokablePrimitive bodies are native Go functions registered by
	// package primitives.
	InvokablePrimitive
)

// Invokable is a managed compiled method or block body, or a primitive.
// For InvokableCompiled invokables, Bytecode, ASTBody, or both are
// populated, depending on the engine selection the classfile was loaded
// with (universe.EngineBoth fills in both).
type Invokable struct {
	Signature  string
	Holder     gc.Handle // TagClass handle of the defining class
	Kind       InvokableKind
	NumArgs    int
	NumLocals  int
	MaxStack   int
	Bytecode   CompiledMethod // nil unless this is a bytecode-engine body
	ASTBody    CompiledASTNode
	Primitive  PrimitiveFn
	IsBlock    bool
	// ClassSide is true for a method installed via a classfile's class-side
	// ("Foo class >> ...") block, i.e. one found through a Class value's
	// ClassMethods chain rather than an ordinary instance's Methods chain.
	// A frame running one carries this forward so a super-send inside it
	// keeps walking the class-side chain too.
	ClassSide bool
}

// Invoker is the slice of an execution engine a primitive needs to call
// back into the interpreter: activating a block argument (Array>>do:,
// Integer>>timesRepeat:, the non-inlined to:do: family), performing an
// ordinary send (perform:), or resolving and invoking a method directly once a primitive
// has already done its own lookup (perform:inSuperclass: and friends).
// Both package vm and package astwalk implement this over their own
// invoke/invokeBlock and their universe.Universe, so a primitive never
// needs to know which engine is currently running it or import package
// universe itself (which would cycle back through primitiveregistry).
type Invoker interface {
	Send(caller *Frame, receiver value.Value, selector string, args []value.Value) (value.Value, error)
	InvokeBlock(caller *Frame, block value.Value, args []value.Value) (value.Value, error)
	InvokeMethod(caller *Frame, invHandle gc.Handle, args []value.Value) (value.Value, error)
	ClassOf(v value.Value) gc.Handle
	Lookup(class gc.Handle, selector string) (gc.Handle, bool)
	LookupSuper(holderClass gc.Handle, selector string, classSide bool) (gc.Handle, bool)
	ClassName(class gc.Handle) string
	SymbolName(id uint32) string
	Intern(s string) uint32
	Global(name string) (value.Value, bool)
	SetGlobal(name string, v value.Value)
	CollectGarbage(frames []*Frame)
}

// PrimitiveFn is a native Go implementation of an Invokable. It receives
// the running interpreter's heap (to allocate results), an Invoker for
// the rare primitive that needs to call back into SOM code, the calling
// frame (nil at the top level; passed through to Invoker calls as their
// caller), and the already-popped receiver+argument Values. It returns the
// result Value or an error describing why the primitive failed.
type PrimitiveFn func(h *Heap, inv Invoker, caller *Frame, args []value.Value) (value.Value, error)

// Heap owns one gc.Arena per managed object kind and performs mark/compact
// collection across all seven, rewriting every live Handle anywhere a root
// set (frames, globals, or another object's fields) still references one.
type Heap struct {
	Strings    *gc.Arena[String]
	BigInts    *gc.Arena[BigInteger]
	Arrays     *gc.Arena[Array]
	Blocks     *gc.Arena[Block]
	Classes    *gc.Arena[Class]
	Instances  *gc.Arena[Instance]
	Invokables *gc.Arena[Invokable]

	// bytesAllocated is an approximate accounting counter that
	// ShouldCollect compares against nextCollectAt. Neither engine consults
	// it: Collect runs only when System>>fullGC asks for it.
	bytesAllocated int
	nextCollectAt  int
}

// NewHeap returns an empty Heap with modest initial per-arena capacity.
func NewHeap() *Heap {
	return &Heap{
		Strings:       gc.NewArena[String](256),
		BigInts:       gc.NewArena[BigInteger](16),
		Arrays:        gc.NewArena[Array](256),
		Blocks:        gc.NewArena[Block](256),
		Classes:       gc.NewArena[Class](64),
		Instances:     gc.NewArena[Instance](1024),
		Invokables:    gc.NewArena[Invokable](512),
		nextCollectAt: 4 << 20,
	}
}

// AllocString allocates a managed String and returns the Value referencing
// it.
func (h *Heap) AllocString(s string) value.Value {
	handle, slot := h.Strings.Alloc()
	slot.Data = s
	h.bytesAllocated += len(s) + 16
	return value.NewString(uint32(handle))
}

// AllocBigInt allocates a managed BigInteger and returns the Value
// referencing it.
func (h *Heap) AllocBigInt(n *big.Int) value.Value {
	handle, slot := h.BigInts.Alloc()
	slot.Data = n
	h.bytesAllocated += 32
	return value.NewBigInt(uint32(handle))
}

// AllocArray allocates a managed Array of the given length, filled with
// nil, and returns the Value referencing it.
func (h *Heap) AllocArray(length int) value.Value {
	handle, slot := h.Arrays.Alloc()
	slot.Elements = make([]value.Value, length)
	for i := range slot.Elements {
		slot.Elements[i] = value.Nil()
	}
	h.bytesAllocated += length*8 + 16
	return value.NewArray(uint32(handle))
}

// AllocInstance allocates a managed Instance of the given class, with its
// fields slice sized and nil-filled, and returns the Value referencing it.
func (h *Heap) AllocInstance(class gc.Handle, numFields int) value.Value {
	handle, slot := h.Instances.Alloc()
	slot.Class = class
	slot.Fields = make([]value.Value, numFields)
	for i := range slot.Fields {
		slot.Fields[i] = value.Nil()
	}
	h.bytesAllocated += numFields*8 + 16
	return value.NewInstance(uint32(handle))
}

// AllocBlock allocates a managed Block closing over outer, and returns the
// Value referencing it.
func (h *Heap) AllocBlock(method gc.Handle, outer *Frame, receiver value.Value) value.Value {
	handle, slot := h.Blocks.Alloc()
	slot.Method = method
	slot.Outer = outer
	slot.Receiver = receiver
	h.bytesAllocated += 48
	return value.NewBlock(uint32(handle))
}

// AllocClass allocates a managed Class and returns its Handle (classes are
// referenced by Handle directly far more often than via a boxed Value,
// since the universe's globals table, not a Value slot, is usually what
// holds them).
func (h *Heap) AllocClass(name string) (gc.Handle, *Class) {
	handle, slot := h.Classes.Alloc()
	slot.Name = name
	slot.Methods = make(map[string]gc.Handle)
	slot.ClassMethods = make(map[string]gc.Handle)
	h.bytesAllocated += 128
	return handle, slot
}

// AllocInvokable allocates a managed Invokable and returns its Handle.
func (h *Heap) AllocInvokable() (gc.Handle, *Invokable) {
	handle, slot := h.Invokables.Alloc()
	h.bytesAllocated += 96
	return handle, slot
}

// ShouldCollect reports whether enough has been allocated since the last
// Collect to justify running one. No caller in this repository checks it.
func (h *Heap) ShouldCollect() bool {
	return h.bytesAllocated >= h.nextCollectAt
}

// noteCollected resets the allocation counter after a Collect, doubling
// the threshold for the next cycle up to a ceiling, a standard
// generational-free heuristic for a heap with no generations.
func (h *Heap) noteCollected() {
	h.bytesAllocated = 0
	if h.nextCollectAt < 64<<20 {
		h.nextCollectAt *= 2
	}
}

// ValuesEqual reports whether a and b are `=` in SOM terms: the same bit
// pattern, a numeric cross-type comparison (int/double/bigint, in any
// combination), or two Strings/Symbols with identical contents. This is
// the richer half of value.Value.Equal that that type's own doc comment
// defers here, since only package objects can reach the backing String
// and BigInteger data a bare Value handle points at.
func (h *Heap) ValuesEqual(a, b value.Value) bool {
	if a.Equal(b) {
		return true
	}

	aBig, aIsBig := h.bigIntOf(a)
	bBig, bIsBig := h.bigIntOf(b)
	switch {
	case aIsBig && bIsBig:
		return aBig.Cmp(bBig) == 0
	case aIsBig:
		if bi, ok := b.AsInteger(); ok {
			return aBig.Cmp(big.NewInt(int64(bi))) == 0
		}
		if bd, ok := b.AsDouble(); ok {
			bf, _ := new(big.Float).SetInt(aBig).Float64()
			return bf == bd
		}
		return false
	case bIsBig:
		return h.ValuesEqual(b, a)
	}

	// Symbols are interned ids (immediate values): two symbols with the
	// same contents already share one encoding and were caught by
	// a.Equal(b) above. Only distinct String objects need a content
	// comparison here.
	if a.IsString() && b.IsString() {
		return h.stringContents(a) == h.stringContents(b)
	}
	return false
}

func (h *Heap) bigIntOf(v value.Value) (*big.Int, bool) {
	if !v.IsBigInt() {
		return nil, false
	}
	handle, _ := v.AsHandle(value.TagBigInt)
	return h.BigInts.Get(gc.Handle(handle)).Data, true
}

func (h *Heap) stringContents(v value.Value) string {
	handle, _ := v.AsHandle(value.TagString)
	return h.Strings.Get(gc.Handle(handle)).Data
}
