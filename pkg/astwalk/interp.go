// Package astwalk is the tree-walking execution engine: it evaluates a
// resolved ast.Statement/ast.Expression body directly against a live
// Universe, without ever lowering it to bytecode. It exists alongside
// package vm, rather than instead of it, so a classfile compiled with
// universe.EngineBoth can be run through either engine and compared -
// the tree walker is the simpler of the two to read, and a useful
// cross-check for the stack machine's jump arithmetic.
//
// Both engines share the compiler's resolve pass (package compiler), the
// same Frame/Block/Class representation (package objects), and the same
// method lookup (package universe); this engine walks the resolved tree
// (universe.ASTBody), while package vm runs the bytecode emitted from it.
package astwalk

import (
	"fmt"

	"github.com/kristofer/smogvm/pkg/ast"
	"github.com/kristofer/smogvm/pkg/gc"
	"github.com/kristofer/smogvm/pkg/interner"
	"github.com/kristofer/smogvm/pkg/objects"
	"github.com/kristofer/smogvm/pkg/somerr"
	"github.com/kristofer/smogvm/pkg/universe"
	"github.com/kristofer/smogvm/pkg/value"
)

// Interp runs SOM programs against a Universe by walking their resolved
// AST directly.
type Interp struct {
	U *universe.Universe
}

// New returns an Interp bound to u.
func New(u *universe.Universe) *Interp {
	return &Interp{U: u}
}

// nonLocalReturn is the control-transfer signal every `^expr` statement
// produces (even a same-frame LocalReturn, with target set to the
// frame it is already in): evaluation unwinds the Go call stack
// returning this value as an error until it reaches the Invoke call
// whose frame matches target, exactly mirroring how a non-local return
// unwinds the bytecode engine's explicit frame chain.
type nonLocalReturn struct {
	target *objects.Frame
	value  value.Value
}

func (n *nonLocalReturn) Error() string {
	return "astwalk: uncaught non-local return (escaped block evaluated outside its activation)"
}

// Send invokes selector on receiver with args, from the given caller
// frame (nil at the top level), resolving through the ordinary lookup
// chain - the entry point primitives call back into for `perform:` style
// sends, and what LoadSource's caller uses to
// send the program's first message.
func (it *Interp) Send(caller *objects.Frame, receiver value.Value, selector string, args []value.Value) (value.Value, error) {
	if receiver.IsClass() {
		h, _ := receiver.AsHandle(value.TagClass)
		classHandle := gc.Handle(h)
		inv, ok := it.U.LookupClassSide(nil, classHandle, selector)
		if !ok {
			return it.sendDoesNotUnderstand(caller, receiver, classHandle, selector, args)
		}
		return it.invoke(caller, inv, append([]value.Value{receiver}, args...))
	}
	class := it.U.ClassOf(receiver)
	inv, ok := it.U.Lookup(nil, class, selector)
	if !ok {
		return it.sendDoesNotUnderstand(caller, receiver, class, selector, args)
	}
	return it.invoke(caller, inv, append([]value.Value{receiver}, args...))
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
		arr := it.U.Heap.Arrays.Get(mustArrayHandle(argsArray))
		copy(arr.Elements, args)
		sel := it.U.Heap.AllocString(selector)
		return it.invoke(caller, hook, []value.Value{receiver, sel, argsArray})
	}
	return value.Nil(), &somerr.DoesNotUnderstandError{ClassName: it.U.ClassName(class), Selector: selector}
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

func mustArrayHandle(v value.Value) gc.Handle {
	h, _ := v.AsHandle(value.TagArray)
	return gc.Handle(h)
}

// escapedBlockHook runs when a non-local return targets a frame that has
// already returned: f is the (still-live) block frame the `^` was
// evaluated in. Sends escapedBlock: to the block's home receiver with the
// block itself as argument, falling back to a fatal EscapedBlockError if
// the receiver's class has no such hook defined.
func (it *Interp) escapedBlockHook(f *objects.Frame) (value.Value, error) {
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
	return value.Nil(), &somerr.EscapedBlockError{Selector: "^"}
}

// invoke runs inv (a method or block Invokable) with args already
// including the receiver at args[0]. The new frame's HolderClass comes
// from the Invokable's own Holder (the class that defined the method),
// not from whatever class Lookup started its walk at - a super-send
// three levels deep needs the class that defined the *current* method,
// which is frequently a superclass of the dynamic receiver's class.
func (it *Interp) invoke(caller *objects.Frame, invHandle gc.Handle, args []value.Value) (value.Value, error) {
	inv := it.U.Heap.Invokables.Get(invHandle)
	if inv.Kind == objects.InvokablePrimitive {
		v, err := inv.Primitive(it.U.Heap, it, caller, args)
		if err != nil {
			return value.Nil(), &somerr.PrimitiveError{Selector: inv.Signature, Err: err}
		}
		return v, nil
	}

	body, ok := inv.ASTBody.(*universe.ASTBody)
	if !ok {
		return value.Nil(), fmt.Errorf("astwalk: %s has no AST body compiled", inv.Signature)
	}

	f := objects.NewFrame(caller, invHandle, args, body.NumLocals(), 0, false, inv.Holder, inv.ClassSide)
	defer func() { f.Escaped = true }()

	result, ctrl, err := it.evalBody(f, body.Stmts(), false)
	if err != nil {
		return value.Nil(), err
	}
	if ctrl != nil {
		if ctrl.target == f {
			return ctrl.value, nil
		}
		return value.Nil(), ctrl
	}
	return result, nil
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

// invokeBlock activates blk with args (not including the receiver,
// which is taken from the closed-over Block object itself).
func (it *Interp) invokeBlock(caller *objects.Frame, blk *objects.Block, args []value.Value) (value.Value, error) {
	inv := it.U.Heap.Invokables.Get(blk.Method)
	body, ok := inv.ASTBody.(*universe.ASTBody)
	if !ok {
		return value.Nil(), fmt.Errorf("astwalk: block has no AST body compiled")
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

	f := objects.NewFrame(caller, blk.Method, full, body.NumLocals(), 0, true, holderClass, classSide)
	f.Owner = &objects.Block{Method: blk.Method, Outer: blk.Outer, Receiver: blk.Receiver}
	defer func() { f.Escaped = true }()

	result, ctrl, err := it.evalBody(f, body.Stmts(), true)
	if err != nil {
		return value.Nil(), err
	}
	if ctrl != nil {
		if ctrl.target == f {
			return ctrl.value, nil
		}
		return value.Nil(), ctrl
	}
	return result, nil
}

// evalBody runs stmts in order. isBlock controls what an implicit
// fall-off (no explicit `^`) produces: self for a method body, the
// last expression statement's value for a block body - matching
// package compiler's codegen.compileBody exactly. Any explicit return
// encountered (local or non-local) short-circuits immediately as ctrl,
// to be resolved by the caller (invoke consumes one whose target is its
// own frame; invokeBlock consumes only the escapedBlock: result, which
// targets the block frame itself, and propagates every other one).
func (it *Interp) evalBody(f *objects.Frame, stmts []ast.Statement, isBlock bool) (value.Value, *nonLocalReturn, error) {
	last := value.Nil()
	for _, stmt := range stmts {
		v, ctrl, err := it.evalStatement(f, stmt)
		if err != nil {
			return value.Nil(), nil, err
		}
		if ctrl != nil {
			return value.Nil(), ctrl, nil
		}
		last = v
	}
	if isBlock {
		return last, nil, nil
	}
	return f.Self(), nil, nil
}

// asNonLocalReturn recovers a *nonLocalReturn that entered the plain
// (value.Value, error) world - evalExpr and everything built on it,
// including the inlined-body evaluators in expr.go, can only surface a
// pending ctrl by smuggling it through their err return - and reports
// whether err was actually one of these rather than a genuine failure.
func asNonLocalReturn(err error) (*nonLocalReturn, bool) {
	ctrl, ok := err.(*nonLocalReturn)
	return ctrl, ok
}

func (it *Interp) evalStatement(f *objects.Frame, stmt ast.Statement) (value.Value, *nonLocalReturn, error) {
	switch n := stmt.(type) {
	case *ast.ExpressionStatement:
		v, err := it.evalExpr(f, n.Expr)
		if ctrl, ok := asNonLocalReturn(err); ok {
			return value.Nil(), ctrl, nil
		}
		return v, nil, err

	case *ast.LocalReturn:
		v, err := it.evalExpr(f, n.Expr)
		if ctrl, ok := asNonLocalReturn(err); ok {
			return value.Nil(), ctrl, nil
		}
		if err != nil {
			return value.Nil(), nil, err
		}
		return value.Nil(), &nonLocalReturn{target: f, value: v}, nil

	case *ast.NonLocalReturn:
		v, err := it.evalExpr(f, n.Expr)
		if ctrl, ok := asNonLocalReturn(err); ok {
			return value.Nil(), ctrl, nil
		}
		if err != nil {
			return value.Nil(), nil, err
		}
		target := f.NthFrameBack(n.Scope)
		if target.Escaped {
			result, err := it.escapedBlockHook(f)
			if err != nil {
				return value.Nil(), nil, err
			}
			return value.Nil(), &nonLocalReturn{target: f, value: result}, nil
		}
		return value.Nil(), &nonLocalReturn{target: target, value: v}, nil

	default:
		return value.Nil(), nil, fmt.Errorf("astwalk: unknown statement %T", stmt)
	}
}

func (it *Interp) evalStatements(f *objects.Frame, stmts []ast.Statement) (value.Value, *nonLocalReturn, error) {
	last := value.Nil()
	for _, stmt := range stmts {
		v, ctrl, err := it.evalStatement(f, stmt)
		if err != nil {
			return value.Nil(), nil, err
		}
		if ctrl != nil {
			return value.Nil(), ctrl, nil
		}
		last = v
	}
	return last, nil, nil
}
