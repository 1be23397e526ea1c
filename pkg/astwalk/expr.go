package astwalk

import (
	"fmt"
	"math/big"

	"github.com/kristofer/smogvm/pkg/ast"
	"github.com/kristofer/smogvm/pkg/gc"
	"github.com/kristofer/smogvm/pkg/objects"
	"github.com/kristofer/smogvm/pkg/somerr"
	"github.com/kristofer/smogvm/pkg/universe"
	"github.com/kristofer/smogvm/pkg/value"
)

func (it *Interp) evalExpr(f *objects.Frame, expr ast.Expression) (value.Value, error) {
	switch n := expr.(type) {
	case *ast.Self:
		return f.Self(), nil

	case *ast.Super:
		return value.Nil(), fmt.Errorf("astwalk: super evaluated outside a send receiver position")

	case *ast.GlobalRef:
		if n.Name == "nil" {
			return value.Nil(), nil
		}
		return it.U.ResolveGlobalOrHook(n.Name)

	case *ast.ArgRef:
		return it.frameAt(f, n.UpIdx).Arg(n.Idx), nil

	case *ast.ArgAssign:
		v, err := it.evalExpr(f, n.Value)
		if err != nil {
			return value.Nil(), err
		}
		it.frameAt(f, n.UpIdx).SetArg(n.Idx, v)
		return v, nil

	case *ast.LocalVarRef:
		return f.Local(n.Idx), nil

	case *ast.LocalVarAssign:
		v, err := it.evalExpr(f, n.Value)
		if err != nil {
			return value.Nil(), err
		}
		f.SetLocal(n.Idx, v)
		return v, nil

	case *ast.NonLocalVarRef:
		return it.frameAt(f, n.UpIdx).Local(n.Idx), nil

	case *ast.NonLocalVarAssign:
		v, err := it.evalExpr(f, n.Value)
		if err != nil {
			return value.Nil(), err
		}
		it.frameAt(f, n.UpIdx).SetLocal(n.Idx, v)
		return v, nil

	case *ast.FieldRef:
		return it.selfInstance(f).Fields[n.Idx], nil

	case *ast.FieldAssign:
		v, err := it.evalExpr(f, n.Value)
		if err != nil {
			return value.Nil(), err
		}
		it.selfInstance(f).Fields[n.Idx] = v
		return v, nil

	case *ast.IntLiteral:
		if int64(int32(n.Value)) != n.Value {
			return it.U.Heap.AllocBigInt(big.NewInt(n.Value)), nil
		}
		return value.NewInteger(int32(n.Value)), nil

	case *ast.DoubleLiteral:
		return value.NewDouble(n.Value), nil

	case *ast.StringLiteral:
		return it.U.Heap.AllocString(n.Value), nil

	case *ast.SymbolLiteral:
		return value.NewSymbol(uint32(it.U.Interns.Intern(n.Value))), nil

	case *ast.ArrayLiteral:
		return it.evalArrayLiteral(f, n)

	case *ast.Send:
		return it.evalSend(f, n)

	case *ast.Block:
		return it.evalBlockLiteral(f, n)

	case *ast.IfInlined:
		return it.evalIfInlined(f, n)

	case *ast.IfElseInlined:
		return it.evalIfElseInlined(f, n)

	case *ast.WhileInlined:
		return it.evalWhileInlined(f, n)

	case *ast.AndOrInlined:
		return it.evalAndOrInlined(f, n)

	case *ast.ToDoInlined:
		return it.evalToDoInlined(f, n)

	case *ast.IfNilInlined:
		return it.evalIfNilInlined(f, n)

	case *ast.IfNilElseInlined:
		return it.evalIfNilElseInlined(f, n)

	default:
		return value.Nil(), fmt.Errorf("astwalk: unknown expression %T", expr)
	}
}

// frameAt walks upIdx lexical block boundaries back from f, the same way
// package compiler's scope.resolveName counted them when it produced
// this UpIdx in the first place.
func (it *Interp) frameAt(f *objects.Frame, upIdx int) *objects.Frame {
	if upIdx == 0 {
		return f
	}
	return f.NthFrameBack(upIdx)
}

func (it *Interp) selfInstance(f *objects.Frame) *objects.Instance {
	h, _ := f.Self().AsHandle(value.TagInstance)
	return it.U.Heap.Instances.Get(gc.Handle(h))
}

func (it *Interp) evalArrayLiteral(f *objects.Frame, n *ast.ArrayLiteral) (value.Value, error) {
	arrVal := it.U.Heap.AllocArray(len(n.Elements))
	h, _ := arrVal.AsHandle(value.TagArray)
	arr := it.U.Heap.Arrays.Get(gc.Handle(h))
	for i, el := range n.Elements {
		v, err := it.evalExpr(f, el)
		if err != nil {
			return value.Nil(), err
		}
		arr.Elements[i] = v
	}
	return arrVal, nil
}

// evalBlockLiteral instantiates a runtime Block closing over f. The
// block's compiled body is built once, lazily, and cached directly on
// the ast.Block node (BlockInvokable): the same node is reused across
// every activation of its enclosing method, so the Invokable it wraps
// must be too.
func (it *Interp) evalBlockLiteral(f *objects.Frame, n *ast.Block) (value.Value, error) {
	if n.BlockInvokable == 0 {
		handle, inv := it.U.Heap.AllocInvokable()
		inv.Kind = objects.InvokableCompiled
		// +1 for the implicit receiver, matching how an ordinary method's
		// NumArgs already counts self - ClassOf's Block1/Block2/Block3
		// switch keys off this field expecting that convention.
		inv.NumArgs = n.NumArgs() + 1
		inv.NumLocals = n.ResolvedNumLocals
		inv.IsBlock = true
		inv.ASTBody = universe.NewASTBody(n.NumArgs(), n.ResolvedNumLocals, n.Body)
		n.BlockInvokable = handle
	}
	return it.U.Heap.AllocBlock(n.BlockInvokable, f, f.Self()), nil
}

func (it *Interp) evalSend(f *objects.Frame, n *ast.Send) (value.Value, error) {
	var receiver value.Value
	if !n.IsSuper {
		r, err := it.evalExpr(f, n.Receiver)
		if err != nil {
			return value.Nil(), err
		}
		receiver = r
	}

	args := make([]value.Value, len(n.Args))
	for i, a := range n.Args {
		v, err := it.evalExpr(f, a)
		if err != nil {
			return value.Nil(), err
		}
		args[i] = v
	}

	if n.IsSuper {
		receiver := f.Self()
		invHandle, ok := it.U.LookupSuper(f.HolderClass, n.Selector, f.ClassSide)
		if !ok {
			return it.sendDoesNotUnderstand(f, receiver, it.U.ClassOf(receiver), n.Selector, args)
		}
		full := append([]value.Value{receiver}, args...)
		return it.invoke(f, invHandle, full)
	}

	if n.Selector == "value" || n.Selector == "value:" || n.Selector == "value:value:" || n.Selector == "value:value:value:" {
		if receiver.IsBlock() {
			return it.sendValueToBlock(f, receiver, args)
		}
	}

	if n.IC == nil {
		n.IC = &objects.InlineCache{}
	}

	// A message sent directly to a Class value resolves through that
	// class's own ClassMethods chain (LookupClassSide), not through
	// ClassOf+Lookup: ClassOf collapses every class to the shared
	// Metaclass core class, which carries no class's actual class-side
	// methods (see universe.ClassOf's metaclassOf case).
	if receiver.IsClass() {
		h, _ := receiver.AsHandle(value.TagClass)
		classHandle := gc.Handle(h)
		invHandle, ok := it.U.LookupClassSide(n.IC, classHandle, n.Selector)
		if !ok {
			return it.sendDoesNotUnderstand(f, receiver, classHandle, n.Selector, args)
		}
		full := make([]value.Value, 0, len(args)+1)
		full = append(full, receiver)
		full = append(full, args...)
		return it.invoke(f, invHandle, full)
	}

	class := it.U.ClassOf(receiver)
	invHandle, ok := it.U.Lookup(n.IC, class, n.Selector)
	if !ok {
		return it.sendDoesNotUnderstand(f, receiver, class, n.Selector, args)
	}
	full := make([]value.Value, 0, len(args)+1)
	full = append(full, receiver)
	full = append(full, args...)
	return it.invoke(f, invHandle, full)
}

func (it *Interp) sendValueToBlock(f *objects.Frame, receiver value.Value, args []value.Value) (value.Value, error) {
	h, _ := receiver.AsHandle(value.TagBlock)
	blk := it.U.Heap.Blocks.Get(gc.Handle(h))
	return it.invokeBlock(f, blk, args)
}

func truthyOf(v value.Value) (bool, error) {
	b, ok := v.AsBoolean()
	if !ok {
		return false, &somerr.RuntimeError{Message: "condition did not evaluate to a Boolean"}
	}
	return b, nil
}

func (it *Interp) evalIfInlined(f *objects.Frame, n *ast.IfInlined) (value.Value, error) {
	cond, err := it.evalExpr(f, n.Cond)
	if err != nil {
		return value.Nil(), err
	}
	b, err := truthyOf(cond)
	if err != nil {
		return value.Nil(), err
	}
	if b == n.WantTrue {
		return it.evalInlinedBodyValue(f, n.Body)
	}
	return value.Nil(), nil
}

func (it *Interp) evalIfElseInlined(f *objects.Frame, n *ast.IfElseInlined) (value.Value, error) {
	cond, err := it.evalExpr(f, n.Cond)
	if err != nil {
		return value.Nil(), err
	}
	b, err := truthyOf(cond)
	if err != nil {
		return value.Nil(), err
	}
	if b == n.WantTrue {
		return it.evalInlinedBodyValue(f, n.ThenBody)
	}
	return it.evalInlinedBodyValue(f, n.ElseBody)
}

func (it *Interp) evalWhileInlined(f *objects.Frame, n *ast.WhileInlined) (value.Value, error) {
	for {
		cond, err := it.evalInlinedBodyValue(f, n.CondBody)
		if err != nil {
			return value.Nil(), err
		}
		b, err := truthyOf(cond)
		if err != nil {
			return value.Nil(), err
		}
		if b != n.WantTrue {
			return value.Nil(), nil
		}
		if _, err := it.evalInlinedBodyValue(f, n.Body); err != nil {
			return value.Nil(), err
		}
	}
}

func (it *Interp) evalAndOrInlined(f *objects.Frame, n *ast.AndOrInlined) (value.Value, error) {
	left, err := it.evalExpr(f, n.Left)
	if err != nil {
		return value.Nil(), err
	}
	b, err := truthyOf(left)
	if err != nil {
		return value.Nil(), err
	}
	if n.IsAnd && !b {
		return value.NewBoolean(false), nil
	}
	if !n.IsAnd && b {
		return value.NewBoolean(true), nil
	}
	return it.evalInlinedBodyValue(f, n.Body)
}

func (it *Interp) evalToDoInlined(f *objects.Frame, n *ast.ToDoInlined) (value.Value, error) {
	start, err := it.evalExpr(f, n.Start)
	if err != nil {
		return value.Nil(), err
	}
	stop, err := it.evalExpr(f, n.Stop)
	if err != nil {
		return value.Nil(), err
	}
	startI, ok := start.AsInteger()
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "to:do: receiver must be an Integer"}
	}
	stopI, ok := stop.AsInteger()
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "to:do: limit must be an Integer"}
	}
	f.SetLocal(n.IndexIdx, start)
	for i := startI; i <= stopI; i++ {
		f.SetLocal(n.IndexIdx, value.NewInteger(i))
		if _, ctrl, err := it.evalStatements(f, n.Body); err != nil {
			return value.Nil(), err
		} else if ctrl != nil {
			return value.Nil(), ctrl
		}
	}
	return start, nil
}

// evalIfNilInlined evaluates `recv ifNil: [...]` / `recv ifNotNil:
// [...]`. When the branch isn't taken, the receiver itself is the
// result (value-on-top semantics) rather than nil.
func (it *Interp) evalIfNilInlined(f *objects.Frame, n *ast.IfNilInlined) (value.Value, error) {
	recv, err := it.evalExpr(f, n.Recv)
	if err != nil {
		return value.Nil(), err
	}
	if recv.IsNil() == n.WantNil {
		return it.evalInlinedBodyValue(f, n.Body)
	}
	return recv, nil
}

// evalIfNilElseInlined evaluates the two-arm `ifNil:ifNotNil:` /
// `ifNotNil:ifNil:`: a genuine branch, like evalIfElseInlined, where both
// arms produce their own value and the receiver itself is discarded.
func (it *Interp) evalIfNilElseInlined(f *objects.Frame, n *ast.IfNilElseInlined) (value.Value, error) {
	recv, err := it.evalExpr(f, n.Recv)
	if err != nil {
		return value.Nil(), err
	}
	if recv.IsNil() == n.WantNil {
		return it.evalInlinedBodyValue(f, n.ThenBody)
	}
	return it.evalInlinedBodyValue(f, n.ElseBody)
}

// evalInlinedBodyValue evaluates an inlined block's statement list,
// returning the value of the last expression statement - matching how a
// genuine block invocation would leave its final expression's value as
// its result. A `^` inside one of these statements is a true
// non-local/local return and must propagate rather than just resolve to
// a value, so a pending ctrl from evalStatements surfaces through the
// error return here.
func (it *Interp) evalInlinedBodyValue(f *objects.Frame, stmts []ast.Statement) (value.Value, error) {
	v, ctrl, err := it.evalStatements(f, stmts)
	if err != nil {
		return value.Nil(), err
	}
	if ctrl != nil {
		return value.Nil(), ctrl
	}
	return v, nil
}
