package objects

import (
	"fmt"

	"github.com/kristofer/smogvm/pkg/gc"
	"github.com/kristofer/smogvm/pkg/value"
)

// Frame is a method or block activation record.
//
// Unlike the seven kinds this package arena-allocates, a Frame is never
// handed a gc.Handle: it lives as an ordinary Go-GC-tracked *Frame, and its
// arguments, locals, and evaluation stack share one contiguous
// []value.Value rather than three separate allocations, addressed by
// index rather than by unsafe byte offset (the Rust source computes
// pointers into a single inline allocation with raw pointer arithmetic;
// Go gives us a growable slice instead, so we use that). Go's collector is
// free to move *Frame values and nothing here depends on it not doing so;
// what it must never do is trace through the bit pattern of a value.Value,
// which is exactly why the seven pointer-tagged kinds live in arenas
// instead of as ordinary Go pointers.
type Frame struct {
	Prev        *Frame    // caller's frame (methods and blocks alike; a block's lexical link is Owner.Outer), nil at the root
	Method      gc.Handle // TagInvokable handle of the method/block body this frame is running
	BytecodeIdx int       // bytecode engine program counter into Method's instruction stream
	NumArgs     int       // storage[0:NumArgs) are the arguments; argument 0 is self
	NumLocals   int       // storage[NumArgs:NumArgs+NumLocals) are the method/block locals
	MaxStack    int
	storage     []value.Value
	stackLen    int // live entries in storage[NumArgs+NumLocals:]
	IsBlock     bool
	Owner       *Block    // the Block object this frame is an activation of, nil for method frames
	Escaped     bool      // true once the method call that created this frame has returned
	HolderClass gc.Handle // defining class of the running method, for super-sends; blocks inherit their home frame's
	ClassSide   bool      // true when the running method was found via a Class value's ClassMethods chain
}

// NewFrame allocates a fresh activation record with room for nArgs
// arguments (args[0] must be filled in as self by the caller), nLocals
// locals (nil-initialized), and up to maxStack transient stack slots.
func NewFrame(prev *Frame, method gc.Handle, args []value.Value, nLocals, maxStack int, isBlock bool, holderClass gc.Handle, classSide bool) *Frame {
	f := &Frame{
		Prev:        prev,
		Method:      method,
		NumArgs:     len(args),
		NumLocals:   nLocals,
		MaxStack:    maxStack,
		IsBlock:     isBlock,
		HolderClass: holderClass,
		ClassSide:   classSide,
		storage:     make([]value.Value, len(args)+nLocals+maxStack),
	}
	copy(f.storage, args)
	for i := len(args); i < len(args)+nLocals; i++ {
		f.storage[i] = value.Nil()
	}
	return f
}

// Self returns argument slot 0, the receiver.
func (f *Frame) Self() value.Value { return f.storage[0] }

// Arg returns argument idx.
func (f *Frame) Arg(idx int) value.Value { return f.storage[idx] }

// SetArg overwrites argument idx.
func (f *Frame) SetArg(idx int, v value.Value) { f.storage[idx] = v }

// Local returns local idx.
func (f *Frame) Local(idx int) value.Value { return f.storage[f.NumArgs+idx] }

// SetLocal overwrites local idx.
func (f *Frame) SetLocal(idx int, v value.Value) { f.storage[f.NumArgs+idx] = v }

// stackBase is the offset into storage where the evaluation stack begins.
func (f *Frame) stackBase() int { return f.NumArgs + f.NumLocals }

// Push pushes v onto the evaluation stack.
func (f *Frame) Push(v value.Value) {
	f.storage[f.stackBase()+f.stackLen] = v
	f.stackLen++
}

// Pop pops and returns the top of the evaluation stack.
func (f *Frame) Pop() value.Value {
	f.stackLen--
	return f.storage[f.stackBase()+f.stackLen]
}

// Top returns, without removing, the top of the evaluation stack.
func (f *Frame) Top() value.Value {
	return f.storage[f.stackBase()+f.stackLen-1]
}

// NthFromTop returns the nth-from-top stack entry (0 = top) without
// removing anything.
func (f *Frame) NthFromTop(n int) value.Value {
	return f.storage[f.stackBase()+f.stackLen-1-n]
}

// Dup duplicates the top of the evaluation stack.
func (f *Frame) Dup() { f.Push(f.Top()) }

// PopN discards the top n entries of the evaluation stack.
func (f *Frame) PopN(n int) { f.stackLen -= n }

// StackLen reports the number of live evaluation-stack entries.
func (f *Frame) StackLen() int { return f.stackLen }

// NthFrameBack walks n lexically enclosing frames back through block
// captures (Owner.Outer), the way a non-local variable reference at
// lexical nesting depth n resolves its target frame. It panics if the
// chain runs out before n steps, which can only indicate a compiler bug
// (an inliner/reindexing defect producing an out-of-range nesting depth).
func (f *Frame) NthFrameBack(n int) *Frame {
	cur := f
	for i := 0; i < n; i++ {
		if cur.Owner == nil {
			panic(fmt.Sprintf("objects: NthFrameBack(%d): frame chain exhausted at depth %d", n, i))
		}
		cur = cur.Owner.Outer
	}
	return cur
}

// NthFrameBackDynamic walks n frames back through the dynamic call chain
// (Prev) instead of the lexical chain. Neither engine calls it: both
// detect an escaped non-local return target through Frame.Escaped.
func (f *Frame) NthFrameBackDynamic(n int) *Frame {
	cur := f
	for i := 0; i < n && cur != nil; i++ {
		cur = cur.Prev
	}
	return cur
}

// IsOnStack reports whether target is reachable by walking Prev links from
// f, i.e. whether a non-local return to target's method is still live
// rather than escaped.
func (f *Frame) IsOnStack(target *Frame) bool {
	for cur := f; cur != nil; cur = cur.Prev {
		if cur == target {
			return true
		}
	}
	return false
}
