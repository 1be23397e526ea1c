package compiler

import "github.com/kristofer/smogvm/pkg/ast"

// FieldTable maps a field name to its index for the class currently being
// compiled, already including inherited fields with the superclass's
// fields occupying the lowest indices (matching how package objects lays
// out Instance.Fields).
type FieldTable []string

func (t FieldTable) indexOf(name string) (int, bool) {
	for i, f := range t {
		if f == name {
			return i, true
		}
	}
	return -1, false
}

// resolver carries the state threaded through one method's resolution:
// the class's field table, constant throughout.
type resolver struct {
	fields FieldTable
}

// nesting counts genuine (non-inlined) block boundaries the statement or
// expression being resolved sits inside of, relative to its home method.
// It is threaded explicitly rather than carried on scope because scope
// already has its own, different notion of depth (one that inlined
// scopes do not increment).

func (r *resolver) resolveStatements(s *scope, stmts []ast.Statement, nesting int) []ast.Statement {
	out := make([]ast.Statement, len(stmts))
	for i, stmt := range stmts {
		out[i] = r.resolveStatement(s, stmt, nesting)
	}
	return out
}

func (r *resolver) resolveStatement(s *scope, stmt ast.Statement, nesting int) ast.Statement {
	switch n := stmt.(type) {
	case *ast.ExpressionStatement:
		return &ast.ExpressionStatement{Expr: r.resolveExpr(s, n.Expr, nesting)}
	case *ast.LocalReturn:
		expr := r.resolveExpr(s, n.Expr, nesting)
		if nesting > 0 {
			return &ast.NonLocalReturn{Expr: expr, Scope: nesting}
		}
		return &ast.LocalReturn{Expr: expr}
	default:
		return stmt
	}
}

// resolveExpr resolves e against s, inlining any control-selector send
// whose block arguments are literal blocks of the expected arity.
func (r *resolver) resolveExpr(s *scope, e ast.Expression, nesting int) ast.Expression {
	switch n := e.(type) {
	case *ast.Identifier:
		return r.resolveIdentifier(s, n.Name)
	case *ast.Assign:
		value := r.resolveExpr(s, n.Value, nesting)
		if target, ok := s.resolveAssignTarget(n.Name, value); ok {
			return target
		}
		if idx, ok := r.fields.indexOf(n.Name); ok {
			return &ast.FieldAssign{Idx: idx, Value: value}
		}
		return &ast.FieldAssign{Idx: -1, Value: value}
	case *ast.Send:
		if inlined := r.tryInline(s, n, nesting); inlined != nil {
			return inlined
		}
		args := make([]ast.Expression, len(n.Args))
		for i, a := range n.Args {
			args[i] = r.resolveExpr(s, a, nesting)
		}
		return &ast.Send{Receiver: r.resolveExpr(s, n.Receiver, nesting), Selector: n.Selector, Args: args, IsSuper: isSuper(n.Receiver)}
	case *ast.Block:
		return r.resolveGenuineBlock(s, n, nesting)
	case *ast.ArrayLiteral:
		elems := make([]ast.Expression, len(n.Elements))
		for i, el := range n.Elements {
			elems[i] = r.resolveExpr(s, el, nesting)
		}
		return &ast.ArrayLiteral{Elements: elems}
	default:
		return e
	}
}

func isSuper(e ast.Expression) bool {
	_, ok := e.(*ast.Super)
	return ok
}

func (r *resolver) resolveIdentifier(s *scope, name string) ast.Expression {
	if ref, ok := s.resolveName(name); ok {
		return ref
	}
	if idx, ok := r.fields.indexOf(name); ok {
		return &ast.FieldRef{Idx: idx}
	}
	return &ast.GlobalRef{Name: name}
}

// resolveGenuineBlock resolves a block literal that is compiled as a real
// Block object (pushed with its own Frame at runtime), because it was not
// the argument of an inlinable control send. Its body is resolved in a
// fresh child scope, one nesting level deeper.
func (r *resolver) resolveGenuineBlock(s *scope, blk *ast.Block, nesting int) *ast.Block {
	child := newBlockScope(s, blk.ArgNames, blk.Locals)
	body := r.resolveStatements(child, blk.Body, nesting+1)
	return &ast.Block{
		ArgNames:          blk.ArgNames,
		Locals:            blk.Locals,
		Body:              body,
		ResolvedNumLocals: child.numLocals(),
	}
}

func (r *resolver) tryInline(s *scope, send *ast.Send, nesting int) ast.Expression {
	switch send.Selector {
	case "ifTrue:", "ifFalse:":
		blk, ok := asZeroArgBlock(send.Args[0])
		if !ok {
			return nil
		}
		return &ast.IfInlined{
			Cond:     r.resolveExpr(s, send.Receiver, nesting),
			WantTrue: send.Selector == "ifTrue:",
			Body:     r.inlineBlockBody(s, blk, nesting),
		}
	case "ifTrue:ifFalse:", "ifFalse:ifTrue:":
		b1, ok1 := asZeroArgBlock(send.Args[0])
		b2, ok2 := asZeroArgBlock(send.Args[1])
		if !ok1 || !ok2 {
			return nil
		}
		wantTrue := send.Selector == "ifTrue:ifFalse:"
		cond := r.resolveExpr(s, send.Receiver, nesting)
		return &ast.IfElseInlined{
			Cond:     cond,
			WantTrue: wantTrue,
			ThenBody: r.inlineBlockBody(s, b1, nesting),
			ElseBody: r.inlineBlockBody(s, b2, nesting),
		}
	case "whileTrue:", "whileFalse:":
		condBlk, ok := asZeroArgBlock(send.Receiver)
		if !ok {
			return nil
		}
		bodyBlk, ok := asZeroArgBlock(send.Args[0])
		if !ok {
			return nil
		}
		return &ast.WhileInlined{
			CondBody: r.inlineBlockBody(s, condBlk, nesting),
			WantTrue: send.Selector == "whileTrue:",
			Body:     r.inlineBlockBody(s, bodyBlk, nesting),
		}
	case "and:", "or:":
		blk, ok := asZeroArgBlock(send.Args[0])
		if !ok {
			return nil
		}
		return &ast.AndOrInlined{
			Left:  r.resolveExpr(s, send.Receiver, nesting),
			IsAnd: send.Selector == "and:",
			Body:  r.inlineBlockBody(s, blk, nesting),
		}
	case "ifNil:", "ifNotNil:":
		blk, ok := asZeroArgBlock(send.Args[0])
		if !ok {
			return nil
		}
		return &ast.IfNilInlined{
			Recv:    r.resolveExpr(s, send.Receiver, nesting),
			WantNil: send.Selector == "ifNil:",
			Body:    r.inlineBlockBody(s, blk, nesting),
		}
	case "ifNil:ifNotNil:", "ifNotNil:ifNil:":
		b1, ok1 := asZeroArgBlock(send.Args[0])
		b2, ok2 := asZeroArgBlock(send.Args[1])
		if !ok1 || !ok2 {
			return nil
		}
		recv := r.resolveExpr(s, send.Receiver, nesting)
		return &ast.IfNilElseInlined{
			Recv:     recv,
			WantNil:  send.Selector == "ifNil:ifNotNil:",
			ThenBody: r.inlineBlockBody(s, b1, nesting),
			ElseBody: r.inlineBlockBody(s, b2, nesting),
		}
	case "to:do:":
		blk, ok := send.Args[1].(*ast.Block)
		if !ok || len(blk.ArgNames) != 1 {
			return nil
		}
		start := r.resolveExpr(s, send.Receiver, nesting)
		stop := r.resolveExpr(s, send.Args[0], nesting)
		idx := s.addLocal(blk.ArgNames[0])
		for _, loc := range blk.Locals {
			s.addLocal(loc)
		}
		body := r.resolveStatements(s, blk.Body, nesting)
		return &ast.ToDoInlined{
			Start:    start,
			Stop:     stop,
			IndexIdx: idx,
			Body:     body,
		}
	default:
		return nil
	}
}

func asZeroArgBlock(e ast.Expression) (*ast.Block, bool) {
	blk, ok := e.(*ast.Block)
	if !ok || len(blk.ArgNames) != 0 {
		return nil, false
	}
	return blk, true
}

// inlineBlockBody folds blk's locals into s and resolves its body there,
// in place, implementing the scope-merge that makes `ifTrue:`/`whileTrue:`
// etc. free of any runtime block allocation or send. nesting is passed
// through unchanged: an inlined block is not a real lexical boundary.
func (r *resolver) inlineBlockBody(s *scope, blk *ast.Block, nesting int) []ast.Statement {
	for _, loc := range blk.Locals {
		s.addLocal(loc)
	}
	return r.resolveStatements(s, blk.Body, nesting)
}
