package vm

import (
	"math/big"

	"github.com/kristofer/smogvm/pkg/bytecode"
	"github.com/kristofer/smogvm/pkg/gc"
	"github.com/kristofer/smogvm/pkg/interner"
	"github.com/kristofer/smogvm/pkg/objects"
	"github.com/kristofer/smogvm/pkg/somerr"
	"github.com/kristofer/smogvm/pkg/value"
)

// runFrame executes m's instruction stream against f until a Return
// opcode ends it or a Send propagates an error up out of it. A normal
// return (OpReturnSelf, OpReturnLocal, or a fully-consumed
// OpReturnNonLocal targeting f itself - which can only happen one level
// up, in invoke) yields (value, nil). Anything else - a genuine
// non-local return still looking for its target frame, a
// DoesNotUnderstand, a primitive failure - propagates as the error
// result, exactly like an ordinary Go error return.
func (it *Interp) runFrame(f *objects.Frame, m *bytecode.Method) (value.Value, error) {
	for {
		pc := f.BytecodeIdx
		ins := m.Body[pc]
		f.BytecodeIdx++

		switch ins.Op {
		case bytecode.OpDup:
			f.Dup()
		case bytecode.OpDup2:
			a, b := f.NthFromTop(1), f.NthFromTop(0)
			f.Push(a)
			f.Push(b)
		case bytecode.OpPop:
			f.Pop()
		case bytecode.OpPopX:
			f.PopN(int(ins.A))

		case bytecode.OpPushLocal:
			f.Push(f.Local(int(ins.A)))
		case bytecode.OpPushNonLocal:
			f.Push(frameAt(f, int(ins.A)).Local(int(ins.B)))
		case bytecode.OpPushArg:
			f.Push(f.Arg(int(ins.A)))
		case bytecode.OpPushNonLocalArg:
			f.Push(frameAt(f, int(ins.A)).Arg(int(ins.B)))
		case bytecode.OpPushField:
			v, err := it.fieldOf(f, int(ins.A))
			if err != nil {
				return value.Nil(), err
			}
			f.Push(v)
		case bytecode.OpPushBlock:
			f.Push(it.instantiateBlock(f, m, int(ins.A)))
		case bytecode.OpPushConstant:
			v, err := it.resolveConstant(m, int(ins.A))
			if err != nil {
				return value.Nil(), err
			}
			f.Push(v)
		case bytecode.OpPushConstant0:
			v, err := it.resolveConstant(m, 0)
			if err != nil {
				return value.Nil(), err
			}
			f.Push(v)
		case bytecode.OpPushConstant1:
			v, err := it.resolveConstant(m, 1)
			if err != nil {
				return value.Nil(), err
			}
			f.Push(v)
		case bytecode.OpPushGlobal:
			v, err := it.pushGlobal(m, int(ins.A))
			if err != nil {
				return value.Nil(), err
			}
			f.Push(v)
		case bytecode.OpPushSelf, bytecode.OpPushSuper:
			f.Push(f.Self())
		case bytecode.OpPushNil:
			f.Push(value.Nil())

		case bytecode.OpPopLocal:
			f.SetLocal(int(ins.A), f.Pop())
		case bytecode.OpPopNonLocal:
			frameAt(f, int(ins.A)).SetLocal(int(ins.B), f.Pop())
		case bytecode.OpPopArg:
			f.SetArg(int(ins.A), f.Pop())
		case bytecode.OpPopNonLocalArg:
			frameAt(f, int(ins.A)).SetArg(int(ins.B), f.Pop())
		case bytecode.OpPopField:
			if err := it.setFieldOf(f, int(ins.A), f.Pop()); err != nil {
				return value.Nil(), err
			}

		case bytecode.OpSend1:
			v, err := it.dispatchSend(f, m, int(ins.A), 0, pc, false)
			if err != nil {
				return value.Nil(), err
			}
			f.Push(v)
		case bytecode.OpSend2:
			v, err := it.dispatchSend(f, m, int(ins.A), 1, pc, false)
			if err != nil {
				return value.Nil(), err
			}
			f.Push(v)
		case bytecode.OpSend3:
			v, err := it.dispatchSend(f, m, int(ins.A), 2, pc, false)
			if err != nil {
				return value.Nil(), err
			}
			f.Push(v)
		case bytecode.OpSendN:
			v, err := it.dispatchSend(f, m, int(ins.A), int(ins.B), pc, false)
			if err != nil {
				return value.Nil(), err
			}
			f.Push(v)
		case bytecode.OpSuperSend:
			v, err := it.dispatchSend(f, m, int(ins.A), int(ins.B), pc, true)
			if err != nil {
				return value.Nil(), err
			}
			f.Push(v)

		case bytecode.OpReturnSelf:
			return f.Self(), nil
		case bytecode.OpReturnLocal:
			return f.Pop(), nil
		case bytecode.OpReturnNonLocal:
			v := f.Pop()
			target := f.NthFrameBack(int(ins.A))
			if target.Escaped {
				return it.escapedBlockHook(f, m.Signature)
			}
			return value.Nil(), &nonLocalReturn{target: target, value: v}

		case bytecode.OpJump:
			f.BytecodeIdx = pc + int(ins.Jump)
		case bytecode.OpJumpBackward:
			f.BytecodeIdx = pc + int(ins.Jump)

		case bytecode.OpJumpOnTruePop:
			b, err := truthyPop(f)
			if err != nil {
				return value.Nil(), err
			}
			if b {
				f.BytecodeIdx = pc + int(ins.Jump)
			}
		case bytecode.OpJumpOnFalsePop:
			b, err := truthyPop(f)
			if err != nil {
				return value.Nil(), err
			}
			if !b {
				f.BytecodeIdx = pc + int(ins.Jump)
			}

		// The *TopNil jumps back the inlined and:/or: sends: the
		// short-circuit result is already sitting on top of the stack
		// (Left itself, already the correct true/false), so the taken
		// branch simply leaves it there and jumps past the rhs block's
		// code; the not-taken branch pops it to make room for the rhs
		// block's own result.
		case bytecode.OpJumpOnTrueTopNil:
			b, err := truthyTop(f)
			if err != nil {
				return value.Nil(), err
			}
			if b {
				f.BytecodeIdx = pc + int(ins.Jump)
			} else {
				f.Pop()
			}
		case bytecode.OpJumpOnFalseTopNil:
			b, err := truthyTop(f)
			if err != nil {
				return value.Nil(), err
			}
			if !b {
				f.BytecodeIdx = pc + int(ins.Jump)
			} else {
				f.Pop()
			}

		// Emitted by the compiler's inlined ifNil:/ifNotNil: family
		// (compileIfNilInlined and compileIfNilElseInlined).
		case bytecode.OpJumpOnNotNilPop:
			v := f.Pop()
			if !v.IsNil() {
				f.BytecodeIdx = pc + int(ins.Jump)
			}
		case bytecode.OpJumpOnNilPop:
			v := f.Pop()
			if v.IsNil() {
				f.BytecodeIdx = pc + int(ins.Jump)
			}
		case bytecode.OpJumpOnNotNilTopTop:
			if !f.Top().IsNil() {
				f.BytecodeIdx = pc + int(ins.Jump)
			}
		case bytecode.OpJumpOnNilTopTop:
			if f.Top().IsNil() {
				f.BytecodeIdx = pc + int(ins.Jump)
			}

		case bytecode.OpJumpIfGreater:
			stopV := f.Pop()
			idxV := f.Pop()
			idxI, ok1 := idxV.AsInteger()
			stopI, ok2 := stopV.AsInteger()
			if !ok1 || !ok2 {
				return value.Nil(), &somerr.RuntimeError{Message: "to:do: bounds must be Integer"}
			}
			if idxI > stopI {
				f.BytecodeIdx = pc + int(ins.Jump)
			}

		case bytecode.OpIncLocal:
			i, _ := f.Local(int(ins.A)).AsInteger()
			f.SetLocal(int(ins.A), value.NewInteger(i+1))
		case bytecode.OpDecLocal:
			i, _ := f.Local(int(ins.A)).AsInteger()
			f.SetLocal(int(ins.A), value.NewInteger(i-1))

		case bytecode.OpHalt:
			if f.StackLen() > 0 {
				return f.Top(), nil
			}
			return f.Self(), nil

		default:
			return value.Nil(), &somerr.RuntimeError{Message: "unknown opcode " + ins.Op.String()}
		}
	}
}

func truthyPop(f *objects.Frame) (bool, error) {
	v := f.Pop()
	b, ok := v.AsBoolean()
	if !ok {
		return false, &somerr.RuntimeError{Message: "condition did not evaluate to a Boolean"}
	}
	return b, nil
}

func truthyTop(f *objects.Frame) (bool, error) {
	b, ok := f.Top().AsBoolean()
	if !ok {
		return false, &somerr.RuntimeError{Message: "condition did not evaluate to a Boolean"}
	}
	return b, nil
}

// frameAt walks upIdx lexical block boundaries back from f, the same way
// package compiler's scope.resolveName counted them when it produced this
// UpIdx in the first place.
func frameAt(f *objects.Frame, upIdx int) *objects.Frame {
	if upIdx == 0 {
		return f
	}
	return f.NthFrameBack(upIdx)
}

func (it *Interp) selfInstance(f *objects.Frame) (*objects.Instance, bool) {
	h, ok := f.Self().AsHandle(value.TagInstance)
	if !ok {
		return nil, false
	}
	return it.U.Heap.Instances.Get(gc.Handle(h)), true
}

func (it *Interp) fieldOf(f *objects.Frame, idx int) (value.Value, error) {
	inst, ok := it.selfInstance(f)
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "field access on a receiver with no fields"}
	}
	return inst.Fields[idx], nil
}

func (it *Interp) setFieldOf(f *objects.Frame, idx int, v value.Value) error {
	inst, ok := it.selfInstance(f)
	if !ok {
		return &somerr.RuntimeError{Message: "field assignment on a receiver with no fields"}
	}
	inst.Fields[idx] = v
	return nil
}

// instantiateBlock builds a runtime Block for the LiteralBlock literal at
// idx, closing over f. The nested compiled body is wrapped in an
// Invokable once per (Method, literal index) pair and cached on m - see
// bytecode.Method.BlockInvokableHandle - so every activation of the
// enclosing method reuses the same Invokable instead of allocating a new
// one per loop iteration.
func (it *Interp) instantiateBlock(f *objects.Frame, m *bytecode.Method, idx int) value.Value {
	handle, ok := m.BlockInvokableHandle(idx)
	if !ok {
		lit := m.Literals[idx]
		h, inv := it.U.Heap.AllocInvokable()
		inv.Kind = objects.InvokableCompiled
		inv.NumArgs = lit.Block.NumArgs
		inv.NumLocals = lit.Block.NumLocals
		inv.MaxStack = lit.Block.MaxStack
		inv.IsBlock = true
		inv.Bytecode = lit.Block
		handle = h
		m.SetBlockInvokableHandle(idx, handle)
	}
	return it.U.Heap.AllocBlock(handle, f, f.Self())
}

// resolveConstant resolves literal-pool index idx to a heap Value,
// caching the result on m for every kind but Integer/Double/Symbol, which
// are cheap enough to reconstruct on every push - see
// bytecode.Method.CachedConstant.
func (it *Interp) resolveConstant(m *bytecode.Method, idx int) (value.Value, error) {
	lit := m.Literals[idx]
	switch lit.Kind {
	case bytecode.LiteralInteger:
		return value.NewInteger(lit.Integer), nil
	case bytecode.LiteralDouble:
		return value.NewDouble(lit.Double), nil
	case bytecode.LiteralSymbol:
		return value.NewSymbol(lit.Symbol), nil
	}

	if v, ok := m.CachedConstant(idx); ok {
		return v, nil
	}

	var v value.Value
	switch lit.Kind {
	case bytecode.LiteralString:
		v = it.U.Heap.AllocString(lit.Str)
	case bytecode.LiteralBigInteger:
		n, ok := new(big.Int).SetString(lit.BigInt, 10)
		if !ok {
			return value.Nil(), &somerr.RuntimeError{Message: "malformed BigInteger literal " + lit.BigInt}
		}
		v = it.U.Heap.AllocBigInt(n)
	case bytecode.LiteralArray:
		arrVal := it.U.Heap.AllocArray(len(lit.Elements))
		h, _ := arrVal.AsHandle(value.TagArray)
		arr := it.U.Heap.Arrays.Get(gc.Handle(h))
		for i, elemIdx := range lit.Elements {
			ev, err := it.resolveConstant(m, elemIdx)
			if err != nil {
				return value.Nil(), err
			}
			arr.Elements[i] = ev
		}
		v = arrVal
	default:
		return value.Nil(), &somerr.RuntimeError{Message: "unresolvable literal kind in PushConstant"}
	}
	m.SetCachedConstant(idx, v)
	return v, nil
}

// pushGlobal resolves the Symbol named by literal-pool index idx against
// the globals table.
func (it *Interp) pushGlobal(m *bytecode.Method, idx int) (value.Value, error) {
	lit := m.Literals[idx]
	name := it.U.Interns.Lookup(interner.Symbol(lit.Symbol))
	return it.U.ResolveGlobalOrHook(name)
}

// dispatchSend performs one Send1/Send2/Send3/SendN/SuperSend: it pops
// the receiver and argc arguments off f's evaluation stack (already
// pushed by the preceding instructions), resolves selector, and invokes
// the result - or activates the receiver directly when it is a Block and
// selector is one of the four value-family selectors, since a block
// activation needs the interpreter's own Frame machinery and has no
// PrimitiveFn shape to fit into.
func (it *Interp) dispatchSend(f *objects.Frame, m *bytecode.Method, selIdx, argc, pc int, isSuper bool) (value.Value, error) {
	lit := m.Literals[selIdx]
	selector := it.U.Interns.Lookup(interner.Symbol(lit.Symbol))

	args := make([]value.Value, argc)
	for i := argc - 1; i >= 0; i-- {
		args[i] = f.Pop()
	}
	receiver := f.Pop()

	if isSuper {
		invHandle, ok := it.U.LookupSuper(f.HolderClass, selector, f.ClassSide)
		if !ok {
			return it.sendDoesNotUnderstand(f, receiver, it.U.ClassOf(receiver), selector, args)
		}
		full := make([]value.Value, 0, argc+1)
		full = append(full, receiver)
		full = append(full, args...)
		return it.invoke(f, invHandle, full)
	}

	if receiver.IsBlock() && isValueSelector(it, lit.Symbol, argc) {
		return it.InvokeBlock(f, receiver, args)
	}

	full := make([]value.Value, 0, argc+1)
	full = append(full, receiver)
	full = append(full, args...)

	// A message sent directly to a Class value resolves through that
	// class's own ClassMethods chain (LookupClassSide), not through
	// ClassOf+Lookup: ClassOf collapses every class to the shared
	// Metaclass core class, which carries no class's actual class-side
	// methods (see universe.ClassOf's metaclassOf case).
	if receiver.IsClass() {
		h, _ := receiver.AsHandle(value.TagClass)
		classHandle := gc.Handle(h)
		ic := m.IC(pc)
		invHandle, ok := it.U.LookupClassSide(ic, classHandle, selector)
		if !ok {
			return it.sendDoesNotUnderstand(f, receiver, classHandle, selector, args)
		}
		return it.invoke(f, invHandle, full)
	}

	ic := m.IC(pc)
	class := it.U.ClassOf(receiver)
	invHandle, ok := it.U.Lookup(ic, class, selector)
	if !ok {
		return it.sendDoesNotUnderstand(f, receiver, class, selector, args)
	}
	return it.invoke(f, invHandle, full)
}

func isValueSelector(it *Interp, sym uint32, argc int) bool {
	switch argc {
	case 0:
		return sym == it.symValue
	case 1:
		return sym == it.symValueColon
	case 2:
		return sym == it.symValueValueColon
	case 3:
		return sym == it.symValueValueValueColon
	default:
		return false
	}
}
