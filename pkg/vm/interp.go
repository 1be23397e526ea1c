// Package vm is the bytecode stack-machine execution engine: it runs a
// compiled bytecode.Method's instruction stream against a live Universe.
// It exists alongside package astwalk, rather than instead of it, so a
// classfile compiled with universe.EngineBoth can be run through either
// engine and compared - this is the more conventional of the two (a flat
// fetch-decode-execute loop over one Frame at a time, matching how
// com.sun.squawk-style and most production Smalltalk VMs are actually
// built), and the one the inline cache and trivial-method fast paths were
// designed for first.
//
// Both engines share the same compiled-once representation where it
// matters (package objects' Frame/Block/Class/Invokable, and package
// universe's Lookup/LookupSuper/ClassOf); only the dispatch loop and the
// compiled body it walks differ.
package vm

import (
	"fmt"

	"github.com/kristofer/smogvm/pkg/bytecode"
	"github.com/kristofer/smogvm/pkg/gc"
	"github.com/kristofer/smogvm/pkg/interner"
	"github.com/kristofer/smogvm/pkg/objects"
	"github.com/kristofer/smogvm/pkg/somerr"
	"github.com/kristofer/smogvm/pkg/universe"
	"github.com/kristofer/smogvm/pkg/value"
)

// Interp runs SOM programs against a Universe by interpreting their
// compiled bytecode.
type Interp struct {
	U *universe.Universe

	// selector symbol ids for the four block-activation selectors,
	// resolved once so the hot Send path compares interned ids instead of
	// strings - see dispatchSend.
	symValue                uint32
	symValueColon           uint32
	symValueValueColon      uint32
	symValueValueValueColon uint32
}

// New returns an Interp bound to u.
func New(u *universe.Universe) *Interp {
	it := &Interp{U: u}
	it.symValue = uint32(u.Interns.Intern("value"))
	it.symValueColon = uint32(u.Interns.Intern("value:"))
	it.symValueValueColon = uint32(u.Interns.Intern("value:value:"))
	it.symValueValueValueColon = uint32(u.Interns.Intern("value:value:value:"))
	return it
}

// nonLocalReturn is the control-transfer signal OpReturnNonLocal produces:
// it unwinds through every intervening runFrame/invoke call, returned as a
// plain Go error, until it reaches the invoke whose frame matches target.
// Unlike package astwalk (whose per-AST-node recursion needs a dedicated
// out-parameter to keep this separate from ordinary error propagation
// inside one frame's own evaluation), the bytecode loop only ever crosses
// a Go call boundary at a Send/SuperSend, so threading this through the
// ordinary error channel is enough.
type nonLocalReturn struct {
	target *objects.Frame
	value  value.Value
}

func (n *nonLocalReturn) Error() string {
	return "vm: uncaught non-local return (escaped block evaluated outside its activation)"
}

// Send invokes selector on receiver with args, from the given caller frame
// (nil at the top level), resolving through the ordinary lookup chain -
// the entry point primitives call back into for `perform:`-style sends and
// what LoadSource's caller uses to send a program's first message.
func (it *Interp) Send(caller *objects.Frame, receiver value.Value, selector string, args []value.Value) (value.Value, error) {
	full := make([]value.Value, 0, len(args)+1)
	full = append(full, receiver)
	full = append(full, args...)

	if receiver.IsClass() {
		h, _ := receiver.AsHandle(value.TagClass)
		classHandle := gc.Handle(h)
		inv, ok := it.U.LookupClassSide(nil, classHandle, selector)
		if !ok {
			return it.sendDoesNotUnderstand(caller, receiver, classHandle, selector, args)
		}
		return it.invoke(caller, inv, full)
	}

	class := it.U.ClassOf(receiver)
	inv, ok := it.U.Lookup(nil, class, selector)
	if !ok {
		return it.sendDoesNotUnderstand(caller, receiver, class, selector, args)
	}
	return it.invoke(caller, inv, full)
}

// InvokeBlock activates blockVal (which must be a Block) with args,
// satisfying objects.Invoker - the hook a primitive uses to call back into
// whichever engine is currently running (Array>>do:, Integer>>timesRepeat:,
// and the like).
func (it *Interp) InvokeBlock(caller *objects.Frame, blockVal value.Value, args []value.Value) (value.Value, error) {
	h, ok := blockVal.AsHandle(value.TagBlock)
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "InvokeBlock: value is not a Block"}
	}
	blk := it.U.Heap.Blocks.Get(gc.Handle(h))
	return it.invokeBlock(caller, blk, args)
}

// sendDoesNotUnderstand looks for a doesNotUnderstand:arguments: hook
// starting at class - the dynamic class for an ordinary receiver, or the
// receiver's own Class handle (searched class-side) for a Class receiver,
// matching whichever lookup chain the failed send itself used.
func (it *Interp) sendDoesNotUnderstand(caller *objects.Frame, receiver value.Value, class gc.Handle, selector string, args []value.Value) (value.Value, error) {
	lookup := it.U.Lookup
	if receiver.IsClass() {
		lookup = it.U.LookupClassSide
	}
	if hook, ok := lookup(nil, class, "doesNotUnderstand:arguments:"); ok {
		argsArray := it.U.Heap.AllocArray(len(args))
		h, _ := argsArray.AsHandle(value.TagArray)
		arr := it.U.Heap.Arrays.Get(gc.Handle(h))
		copy(arr.Elements, args)
		sel := it.U.Heap.AllocString(selector)
		return it.invoke(caller, hook, []value.Value{receiver, sel, argsArray})
	}
	return value.Nil(), &somerr.DoesNotUnderstandError{ClassName: it.U.ClassName(class), Selector: selector}
}

// invoke runs inv (a method or block Invokable) with args already
// including the receiver at args[0]. A trivial method (IsTrivial) never
// gets a Frame at all. The new frame's HolderClass comes from the
// Invokable's own Holder (the class that defined the method), matching
// package astwalk's invoke exactly - see that package's doc comment for
// why this must not be the dynamic receiver's class.
func (it *Interp) invoke(caller *objects.Frame, invHandle gc.Handle, args []value.Value) (value.Value, error) {
	inv := it.U.Heap.Invokables.Get(invHandle)
	if inv.Kind == objects.InvokablePrimitive {
		v, err := inv.Primitive(it.U.Heap, it, caller, args)
		if err != nil {
			return value.Nil(), &somerr.PrimitiveError{Selector: inv.Signature, Err: err}
		}
		return v, nil
	}

	m, ok := inv.Bytecode.(*bytecode.Method)
	if !ok {
		return value.Nil(), fmt.Errorf("vm: %s has no bytecode body compiled", inv.Signature)
	}

	if v, trivial, err := it.tryTrivial(m, args); trivial {
		return v, err
	}

	f := objects.NewFrame(caller, invHandle, args, m.NumLocals, m.MaxStack, false, inv.Holder, inv.ClassSide)
	defer func() { f.Escaped = true }()

	result, err := it.runFrame(f, m)
	if err != nil {
		if ctrl, ok := err.(*nonLocalReturn); ok && ctrl.target == f {
			return ctrl.value, nil
		}
		return value.Nil(), err
	}
	return result, nil
}

// invokeBlock activates blk with args (not including the receiver, which
// is taken from the closed-over Block object itself).
func (it *Interp) invokeBlock(caller *objects.Frame, blk *objects.Block, args []value.Value) (value.Value, error) {
	inv := it.U.Heap.Invokables.Get(blk.Method)
	m, ok := inv.Bytecode.(*bytecode.Method)
	if !ok {
		return value.Nil(), fmt.Errorf("vm: block has no bytecode body compiled")
	}

	full := make([]value.Value, 0, len(args)+1)
	full = append(full, blk.Receiver)
	full = append(full, args...)

	holderClass := gc.Handle(0)
	classSide := false
	if blk.Outer != nil {
		holderClass = blk.Outer.HolderClass
		classSide = blk.Outer.ClassSide
	}

	f := objects.NewFrame(caller, blk.Method, full, m.NumLocals, m.MaxStack, true, holderClass, classSide)
	f.Owner = &objects.Block{Method: blk.Method, Outer: blk.Outer, Receiver: blk.Receiver}
	defer func() { f.Escaped = true }()

	result, err := it.runFrame(f, m)
	if err != nil {
		return value.Nil(), err
	}
	return result, nil
}

// InvokeMethod runs invHandle (a method or block Invokable, already
// resolved by the caller) directly, satisfying objects.Invoker - used by
// a primitive that has done its own lookup (perform:inSuperclass:) and
// just needs to activate what it found.
func (it *Interp) InvokeMethod(caller *objects.Frame, invHandle gc.Handle, args []value.Value) (value.Value, error) {
	return it.invoke(caller, invHandle, args)
}

// ClassOf, Lookup, LookupSuper, and ClassName satisfy objects.Invoker by
// delegating to the Universe every primitive otherwise has no access to.
func (it *Interp) ClassOf(v value.Value) gc.Handle { return it.U.ClassOf(v) }

func (it *Interp) Lookup(class gc.Handle, selector string) (gc.Handle, bool) {
	return it.U.Lookup(nil, class, selector)
}

func (it *Interp) LookupSuper(holderClass gc.Handle, selector string, classSide bool) (gc.Handle, bool) {
	return it.U.LookupSuper(holderClass, selector, classSide)
}

func (it *Interp) ClassName(class gc.Handle) string { return it.U.ClassName(class) }

func (it *Interp) SymbolName(id uint32) string { return it.U.Interns.Lookup(interner.Symbol(id)) }

func (it *Interp) Intern(s string) uint32 { return uint32(it.U.Interns.Intern(s)) }

func (it *Interp) Global(name string) (value.Value, bool) { return it.U.Global(name) }

func (it *Interp) SetGlobal(name string, v value.Value) { it.U.SetGlobal(name, v) }

func (it *Interp) CollectGarbage(frames []*objects.Frame) { it.U.CollectGarbage(frames) }

// escapedBlockHook runs when OpReturnNonLocal targets a frame that has
// already returned: f is the (still-live) block frame the return was
// executing in. Sends escapedBlock: to the block's home receiver with the
// block itself as argument, falling back to a fatal EscapedBlockError if
// the receiver's class has no such hook defined.
func (it *Interp) escapedBlockHook(f *objects.Frame, selector string) (value.Value, error) {
	receiver := f.Self()
	var blockVal value.Value
	if f.Owner != nil {
		blockVal = it.U.Heap.AllocBlock(f.Owner.Method, f.Owner.Outer, f.Owner.Receiver)
	} else {
		blockVal = value.Nil()
	}
	class := it.U.ClassOf(receiver)
	if hook, ok := it.U.Lookup(nil, class, "escapedBlock:"); ok {
		return it.invoke(f, hook, []value.Value{receiver, blockVal})
	}
	return value.Nil(), &somerr.EscapedBlockError{Selector: selector}
}

// tryTrivial evaluates one of the four fast-path method shapes directly
// from args, with no Frame at all. trivial is false when m isn't one of
// them, in which case the caller must fall through to the ordinary Frame
// path; the returned value/error are meaningless in that case.
func (it *Interp) tryTrivial(m *bytecode.Method, args []value.Value) (value.Value, bool, error) {
	switch {
	case m.TrivialLiteral != nil:
		return *m.TrivialLiteral, true, nil
	case m.TrivialGlobal != nil:
		name := it.U.Interns.Lookup(interner.Symbol(*m.TrivialGlobal))
		v, err := it.U.ResolveGlobalOrHook(name)
		return v, true, err
	case m.TrivialGetter != nil:
		h, _ := args[0].AsHandle(value.TagInstance)
		inst := it.U.Heap.Instances.Get(gc.Handle(h))
		return inst.Fields[*m.TrivialGetter], true, nil
	case m.TrivialSetter != nil:
		h, _ := args[0].AsHandle(value.TagInstance)
		inst := it.U.Heap.Instances.Get(gc.Handle(h))
		inst.Fields[m.TrivialSetter.FieldIdx] = args[m.TrivialSetter.ArgIdx]
		return args[0], true, nil
	default:
		return value.Nil(), false, nil
	}
}
