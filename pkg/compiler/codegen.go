package compiler

import (
	"github.com/kristofer/smogvm/pkg/ast"
	"github.com/kristofer/smogvm/pkg/bytecode"
	"github.com/kristofer/smogvm/pkg/interner"
)

// emitter accumulates one method or block body's instruction stream and
// literal pool. Stack depth is tracked with a simple running counter
// rather than full abstract interpretation across merge points: every
// emit* helper below reports its own net stack effect, and the
// interpreter's own bytecode is simple enough (no irreducible control
// flow; every jump is either a forward skip or a single backward loop
// edge) that a straight-line running counter taken at its high-water mark
// is already the true maximum.
type emitter struct {
	in       *interner.Interner
	body     []bytecode.Instruction
	literals []bytecode.Literal
	litIndex map[string]int
	depth    int
	maxDepth int
}

func newEmitter(in *interner.Interner) *emitter {
	return &emitter{in: in, litIndex: map[string]int{}}
}

func (e *emitter) emit(ins bytecode.Instruction) int {
	e.body = append(e.body, ins)
	return len(e.body) - 1
}

func (e *emitter) push() {
	e.depth++
	if e.depth > e.maxDepth {
		e.maxDepth = e.depth
	}
}
func (e *emitter) pop()      { e.depth-- }
func (e *emitter) popN(n int) { e.depth -= n }

func (e *emitter) symbolLiteral(name string) int {
	key := "sym:" + name
	if idx, ok := e.litIndex[key]; ok {
		return idx
	}
	idx := len(e.literals)
	e.literals = append(e.literals, bytecode.Literal{Kind: bytecode.LiteralSymbol, Symbol: uint32(e.in.Intern(name))})
	e.litIndex[key] = idx
	return idx
}

func (e *emitter) stringLiteral(s string) int {
	idx := len(e.literals)
	e.literals = append(e.literals, bytecode.Literal{Kind: bytecode.LiteralString, Str: s})
	return idx
}

func (e *emitter) doubleLiteral(f float64) int {
	idx := len(e.literals)
	e.literals = append(e.literals, bytecode.Literal{Kind: bytecode.LiteralDouble, Double: f})
	return idx
}

func (e *emitter) intLiteral(n int64) int {
	idx := len(e.literals)
	if n >= -(1<<31) && n < (1<<31) {
		e.literals = append(e.literals, bytecode.Literal{Kind: bytecode.LiteralInteger, Integer: int32(n)})
	} else {
		e.literals = append(e.literals, bytecode.Literal{Kind: bytecode.LiteralBigInteger, BigInt: bigDecimal(n)})
	}
	return idx
}

func bigDecimal(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	u := uint64(n)
	if neg {
		u = uint64(-n)
	}
	var buf [24]byte
	pos := len(buf)
	for u > 0 {
		pos--
		buf[pos] = byte('0' + u%10)
		u /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// compileBody emits stmts. isBlock controls the implicit-fallthrough
// behavior: a method falling off the end returns self, a block falling
// off the end returns the value of its last expression.
func (e *emitter) compileBody(r *resolver, stmts []ast.Statement, isBlock bool) {
	if len(stmts) == 0 {
		if isBlock {
			e.emit(bytecode.Instruction{Op: bytecode.OpPushNil})
			e.push()
			e.emit(bytecode.Instruction{Op: bytecode.OpReturnLocal})
			e.pop()
		} else {
			e.emit(bytecode.Instruction{Op: bytecode.OpReturnSelf})
		}
		return
	}
	for i, stmt := range stmts {
		last := i == len(stmts)-1
		e.compileStatement(stmt, last, isBlock)
	}
}

func (e *emitter) compileStatement(stmt ast.Statement, last, isBlock bool) {
	switch n := stmt.(type) {
	case *ast.ExpressionStatement:
		e.compileExpr(n.Expr)
		if last {
			if isBlock {
				e.emit(bytecode.Instruction{Op: bytecode.OpReturnLocal})
			} else {
				e.emit(bytecode.Instruction{Op: bytecode.OpPop})
				e.pop()
				e.emit(bytecode.Instruction{Op: bytecode.OpReturnSelf})
			}
		} else {
			e.emit(bytecode.Instruction{Op: bytecode.OpPop})
			e.pop()
		}
	case *ast.LocalReturn:
		e.compileExpr(n.Expr)
		e.emit(bytecode.Instruction{Op: bytecode.OpReturnLocal})
	case *ast.NonLocalReturn:
		e.compileExpr(n.Expr)
		e.emit(bytecode.Instruction{Op: bytecode.OpReturnNonLocal, A: uint8(n.Scope)})
	default:
		panic("compiler: unexpected statement node in compileStatement")
	}
}

func (e *emitter) compileExpr(expr ast.Expression) {
	switch n := expr.(type) {
	case *ast.Self:
		e.emit(bytecode.Instruction{Op: bytecode.OpPushSelf})
		e.push()
	case *ast.Super:
		e.emit(bytecode.Instruction{Op: bytecode.OpPushSuper})
		e.push()
	case *ast.GlobalRef:
		switch n.Name {
		case "nil":
			e.emit(bytecode.Instruction{Op: bytecode.OpPushNil})
		default:
			e.emit(bytecode.Instruction{Op: bytecode.OpPushGlobal, A: uint8(e.symbolLiteral(n.Name))})
		}
		e.push()
	case *ast.ArgRef:
		if n.UpIdx == 0 {
			e.emit(bytecode.Instruction{Op: bytecode.OpPushArg, A: uint8(n.Idx)})
		} else {
			e.emit(bytecode.Instruction{Op: bytecode.OpPushNonLocalArg, A: uint8(n.UpIdx), B: uint8(n.Idx)})
		}
		e.push()
	case *ast.ArgAssign:
		e.compileExpr(n.Value)
		e.emit(bytecode.Instruction{Op: bytecode.OpDup})
		e.push()
		if n.UpIdx == 0 {
			e.emit(bytecode.Instruction{Op: bytecode.OpPopArg, A: uint8(n.Idx)})
		} else {
			e.emit(bytecode.Instruction{Op: bytecode.OpPopNonLocalArg, A: uint8(n.UpIdx), B: uint8(n.Idx)})
		}
		e.pop()
	case *ast.LocalVarRef:
		e.emit(bytecode.Instruction{Op: bytecode.OpPushLocal, A: uint8(n.Idx)})
		e.push()
	case *ast.LocalVarAssign:
		e.compileExpr(n.Value)
		e.emit(bytecode.Instruction{Op: bytecode.OpDup})
		e.push()
		e.emit(bytecode.Instruction{Op: bytecode.OpPopLocal, A: uint8(n.Idx)})
		e.pop()
	case *ast.NonLocalVarRef:
		e.emit(bytecode.Instruction{Op: bytecode.OpPushNonLocal, A: uint8(n.UpIdx), B: uint8(n.Idx)})
		e.push()
	case *ast.NonLocalVarAssign:
		e.compileExpr(n.Value)
		e.emit(bytecode.Instruction{Op: bytecode.OpDup})
		e.push()
		e.emit(bytecode.Instruction{Op: bytecode.OpPopNonLocal, A: uint8(n.UpIdx), B: uint8(n.Idx)})
		e.pop()
	case *ast.FieldRef:
		e.emit(bytecode.Instruction{Op: bytecode.OpPushField, A: uint8(n.Idx)})
		e.push()
	case *ast.FieldAssign:
		e.compileExpr(n.Value)
		e.emit(bytecode.Instruction{Op: bytecode.OpDup})
		e.push()
		e.emit(bytecode.Instruction{Op: bytecode.OpPopField, A: uint8(n.Idx)})
		e.pop()
	case *ast.IntLiteral:
		idx := e.intLiteral(n.Value)
		e.emitPushConstant(idx)
	case *ast.DoubleLiteral:
		idx := e.doubleLiteral(n.Value)
		e.emitPushConstant(idx)
	case *ast.StringLiteral:
		idx := e.stringLiteral(n.Value)
		e.emitPushConstant(idx)
	case *ast.SymbolLiteral:
		idx := e.symbolLiteral(n.Value)
		e.emitPushConstant(idx)
	case *ast.ArrayLiteral:
		e.compileArrayLiteral(n)
	case *ast.Send:
		e.compileSend(n)
	case *ast.Block:
		e.compileGenuineBlock(n)
	case *ast.IfInlined:
		e.compileIfInlined(n)
	case *ast.IfElseInlined:
		e.compileIfElseInlined(n)
	case *ast.WhileInlined:
		e.compileWhileInlined(n)
	case *ast.AndOrInlined:
		e.compileAndOrInlined(n)
	case *ast.ToDoInlined:
		e.compileToDoInlined(n)
	case *ast.IfNilInlined:
		e.compileIfNilInlined(n)
	case *ast.IfNilElseInlined:
		e.compileIfNilElseInlined(n)
	default:
		panic("compiler: unexpected expression node in compileExpr")
	}
}

func (e *emitter) emitPushConstant(idx int) {
	switch idx {
	case 0:
		e.emit(bytecode.Instruction{Op: bytecode.OpPushConstant0})
	case 1:
		e.emit(bytecode.Instruction{Op: bytecode.OpPushConstant1})
	default:
		e.emit(bytecode.Instruction{Op: bytecode.OpPushConstant, A: uint8(idx)})
	}
	e.push()
}

func (e *emitter) compileArrayLiteral(n *ast.ArrayLiteral) {
	// Literal arrays made only of compile-time constants are themselves
	// stored as one literal-array pool entry; element expressions here
	// are always literals or nested literal arrays by construction (see
	// package parser), so this never needs a runtime Send sequence.
	elemIdx := make([]int, len(n.Elements))
	for i, el := range n.Elements {
		elemIdx[i] = e.literalIndexOf(el)
	}
	idx := len(e.literals)
	e.literals = append(e.literals, bytecode.Literal{Kind: bytecode.LiteralArray, Elements: elemIdx})
	e.emitPushConstant(idx)
}

func (e *emitter) literalIndexOf(el ast.Expression) int {
	switch n := el.(type) {
	case *ast.IntLiteral:
		return e.intLiteral(n.Value)
	case *ast.DoubleLiteral:
		return e.doubleLiteral(n.Value)
	case *ast.StringLiteral:
		return e.stringLiteral(n.Value)
	case *ast.SymbolLiteral:
		return e.symbolLiteral(n.Value)
	case *ast.GlobalRef:
		return e.symbolLiteral(n.Name) // nil/true/false used bare inside #(...)
	case *ast.ArrayLiteral:
		elemIdx := make([]int, len(n.Elements))
		for i, sub := range n.Elements {
			elemIdx[i] = e.literalIndexOf(sub)
		}
		idx := len(e.literals)
		e.literals = append(e.literals, bytecode.Literal{Kind: bytecode.LiteralArray, Elements: elemIdx})
		return idx
	default:
		return e.stringLiteral("")
	}
}

func (e *emitter) compileSend(n *ast.Send) {
	e.compileExpr(n.Receiver)
	for _, a := range n.Args {
		e.compileExpr(a)
	}
	selIdx := e.symbolLiteral(n.Selector)
	argc := len(n.Args)
	e.popN(argc + 1)
	e.push()
	if n.IsSuper {
		e.emit(bytecode.Instruction{Op: bytecode.OpSuperSend, A: uint8(selIdx), B: uint8(argc)})
		return
	}
	switch argc {
	case 0:
		e.emit(bytecode.Instruction{Op: bytecode.OpSend1, A: uint8(selIdx)})
	case 1:
		e.emit(bytecode.Instruction{Op: bytecode.OpSend2, A: uint8(selIdx)})
	case 2:
		e.emit(bytecode.Instruction{Op: bytecode.OpSend3, A: uint8(selIdx)})
	default:
		e.emit(bytecode.Instruction{Op: bytecode.OpSendN, A: uint8(selIdx), B: uint8(argc)})
	}
}

// compileGenuineBlock compiles a non-inlined block literal into its own
// bytecode.Method, stored as a block literal, and emits the instruction
// that instantiates a runtime Block closing over the current frame.
func (e *emitter) compileGenuineBlock(n *ast.Block) {
	sub := newEmitter(e.in)
	sub.compileBody(nil, n.Body, true)
	method := &bytecode.Method{
		// +1 for the implicit receiver, matching how an ordinary method's
		// NumArgs already counts self - ClassOf's Block1/Block2/Block3
		// switch keys off this field expecting that convention.
		NumArgs:   len(n.ArgNames) + 1,
		NumLocals: n.ResolvedNumLocals,
		MaxStack:  sub.maxDepth,
		Body:      sub.body,
		Literals:  sub.literals,
	}
	idx := len(e.literals)
	e.literals = append(e.literals, bytecode.Literal{Kind: bytecode.LiteralBlock, Block: method})
	e.emit(bytecode.Instruction{Op: bytecode.OpPushBlock, A: uint8(idx)})
	e.push()
}

// jumpFamily below all follow the same shape: emit the condition/receiver,
// a placeholder jump, the body, then backpatch the placeholder's offset
// once the body's length is known.

func (e *emitter) patchJump(at int, target int) {
	e.body[at].Jump = int16(target - at)
}

func (e *emitter) compileIfInlined(n *ast.IfInlined) {
	e.compileExpr(n.Cond)
	e.pop()
	op := bytecode.OpJumpOnFalsePop
	if !n.WantTrue {
		op = bytecode.OpJumpOnTruePop
	}
	jmp := e.emit(bytecode.Instruction{Op: op})
	depthBefore := e.depth
	e.compileInlinedBodyValue(n.Body)
	afterJmp := e.emit(bytecode.Instruction{Op: bytecode.OpJump})
	e.depth = depthBefore
	nilAt := e.emit(bytecode.Instruction{Op: bytecode.OpPushNil})
	e.push()
	e.patchJump(jmp, nilAt)
	e.patchJump(afterJmp, len(e.body))
}

func (e *emitter) compileIfElseInlined(n *ast.IfElseInlined) {
	e.compileExpr(n.Cond)
	e.pop()
	op := bytecode.OpJumpOnFalsePop
	if !n.WantTrue {
		op = bytecode.OpJumpOnTruePop
	}
	jmp := e.emit(bytecode.Instruction{Op: op})
	depthBefore := e.depth
	e.compileInlinedBodyValue(n.ThenBody)
	toEnd := e.emit(bytecode.Instruction{Op: bytecode.OpJump})
	e.depth = depthBefore
	e.patchJump(jmp, len(e.body))
	e.compileInlinedBodyValue(n.ElseBody)
	e.patchJump(toEnd, len(e.body))
}

func (e *emitter) compileWhileInlined(n *ast.WhileInlined) {
	top := len(e.body)
	e.compileInlinedBodyValue(n.CondBody)
	e.pop()
	op := bytecode.OpJumpOnFalsePop
	if !n.WantTrue {
		op = bytecode.OpJumpOnTruePop
	}
	exit := e.emit(bytecode.Instruction{Op: op})
	depthBefore := e.depth
	e.compileInlinedBodyValue(n.Body)
	e.emit(bytecode.Instruction{Op: bytecode.OpPop})
	e.pop()
	back := e.emit(bytecode.Instruction{Op: bytecode.OpJumpBackward})
	e.body[back].Jump = int16(top - back)
	e.depth = depthBefore
	e.patchJump(exit, len(e.body))
	e.emit(bytecode.Instruction{Op: bytecode.OpPushNil})
	e.push()
}

func (e *emitter) compileAndOrInlined(n *ast.AndOrInlined) {
	e.compileExpr(n.Left)
	op := bytecode.OpJumpOnFalseTopNil
	if !n.IsAnd {
		op = bytecode.OpJumpOnTrueTopNil
	}
	jmp := e.emit(bytecode.Instruction{Op: op})
	e.pop()
	depthBefore := e.depth
	e.compileInlinedBodyValue(n.Body)
	e.depth = depthBefore
	e.push()
	e.patchJump(jmp, len(e.body))
}

// compileToDoInlined emits `start to: stop do: [:i | body]` as a counted
// loop: evaluate start into the hidden index local, loop while index <=
// stop, running body then incrementing index. Left uninlined in the
// source material this is grounded on; built here directly from the
// general inlining shape the while/and/or cases already establish.
//
// to:do: returns its receiver (the start value), not self, so a copy of
// it is kept parked on the stack underneath the whole loop rather than
// re-evaluating n.Start (which could re-run a side-effecting expression)
// or substituting self (which is simply the wrong value whenever the
// enclosing method's self isn't what `start` happened to be).
func (e *emitter) compileToDoInlined(n *ast.ToDoInlined) {
	e.compileExpr(n.Start)
	e.emit(bytecode.Instruction{Op: bytecode.OpDup})
	e.push()
	e.emit(bytecode.Instruction{Op: bytecode.OpPopLocal, A: uint8(n.IndexIdx)})
	e.pop()

	top := len(e.body)
	e.emit(bytecode.Instruction{Op: bytecode.OpPushLocal, A: uint8(n.IndexIdx)})
	e.push()
	e.compileExpr(n.Stop)
	exit := e.emit(bytecode.Instruction{Op: bytecode.OpJumpIfGreater})
	e.popN(2)

	depthBefore := e.depth
	for _, stmt := range n.Body {
		e.compileStatement(stmt, false, true)
	}
	e.depth = depthBefore

	e.emit(bytecode.Instruction{Op: bytecode.OpIncLocal, A: uint8(n.IndexIdx)})
	back := e.emit(bytecode.Instruction{Op: bytecode.OpJumpBackward})
	e.body[back].Jump = int16(top - back)
	e.patchJump(exit, len(e.body))

	// The parked copy of start's value is still on the stack here: that
	// is the to:do: expression's result.
}

// compileIfNilInlined compiles `recv ifNil: [...]` / `recv ifNotNil:
// [...]`. The *TopTop jump opcodes never pop: when the branch isn't
// taken, the receiver itself is left in place as the result, so only the
// taken path needs to pop it before computing the body's value.
func (e *emitter) compileIfNilInlined(n *ast.IfNilInlined) {
	e.compileExpr(n.Recv)
	op := bytecode.OpJumpOnNotNilTopTop
	if !n.WantNil {
		op = bytecode.OpJumpOnNilTopTop
	}
	jmp := e.emit(bytecode.Instruction{Op: op})
	depthBefore := e.depth
	e.emit(bytecode.Instruction{Op: bytecode.OpPop})
	e.pop()
	e.compileInlinedBodyValue(n.Body)
	e.depth = depthBefore
	e.patchJump(jmp, len(e.body))
}

// compileIfNilElseInlined compiles the two-arm `ifNil:ifNotNil:` /
// `ifNotNil:ifNil:`: both arms produce their own value, so the receiver
// is popped unconditionally up front, same shape as compileIfElseInlined.
func (e *emitter) compileIfNilElseInlined(n *ast.IfNilElseInlined) {
	e.compileExpr(n.Recv)
	e.pop()
	op := bytecode.OpJumpOnNotNilPop
	if !n.WantNil {
		op = bytecode.OpJumpOnNilPop
	}
	jmp := e.emit(bytecode.Instruction{Op: op})
	depthBefore := e.depth
	e.compileInlinedBodyValue(n.ThenBody)
	toEnd := e.emit(bytecode.Instruction{Op: bytecode.OpJump})
	e.depth = depthBefore
	e.patchJump(jmp, len(e.body))
	e.compileInlinedBodyValue(n.ElseBody)
	e.patchJump(toEnd, len(e.body))
}

// compileInlinedBodyValue compiles an inlined block's statement list so
// that exactly one value is left on the stack (the block's "result"),
// matching how a real block invocation would leave its last expression's
// value behind.
func (e *emitter) compileInlinedBodyValue(stmts []ast.Statement) {
	if len(stmts) == 0 {
		e.emit(bytecode.Instruction{Op: bytecode.OpPushNil})
		e.push()
		return
	}
	for i, stmt := range stmts {
		last := i == len(stmts)-1
		if last {
			if es, ok := stmt.(*ast.ExpressionStatement); ok {
				e.compileExpr(es.Expr)
				continue
			}
		}
		e.compileStatement(stmt, false, true)
	}
}
