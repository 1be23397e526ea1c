package compiler

import (
	"github.com/kristofer/smogvm/pkg/ast"
	"github.com/kristofer/smogvm/pkg/bytecode"
	"github.com/kristofer/smogvm/pkg/interner"
	"github.com/kristofer/smogvm/pkg/value"
)

func litValueInt(n int64) value.Value    { return value.NewInteger(int32(n)) }
func litValueDouble(f float64) value.Value { return value.NewDouble(f) }

// Compiled is the result of compiling one method or class-side method
// body: a resolved statement list (consumed by the AST-walk engine) and
// the bytecode produced from the same tree (consumed by the bytecode
// engine). Producing both from one resolve pass is what keeps the two
// engines' observable behavior - in particular, which control sends get
// inlined - identical.
type Compiled struct {
	Selector     string
	NumArgs      int
	NumLocals    int
	IsPrimitive  bool
	ResolvedBody []ast.Statement
	Bytecode     *bytecode.Method
}

// CompileMethod resolves and compiles one ast.MethodDef against fields,
// the defining class's instance (or class-side) field table. A method
// whose body is the bare word `primitive` is returned with IsPrimitive
// set and no compiled body at all; package universe binds it to a native
// implementation from package primitives by selector instead.
func CompileMethod(in *interner.Interner, className string, fields FieldTable, m *ast.MethodDef) *Compiled {
	if m.Primitive {
		return &Compiled{Selector: m.Selector, NumArgs: len(m.ArgNames) + 1, IsPrimitive: true}
	}

	r := &resolver{fields: fields}
	s := newMethodScope(m.ArgNames, m.Locals)
	body := r.resolveStatements(s, m.Body, 0)

	e := newEmitter(in)
	e.compileBody(r, body, false)

	method := &bytecode.Method{
		Signature: m.Selector,
		Holder:    className,
		NumArgs:   s.numArgs(),
		NumLocals: s.numLocals(),
		MaxStack:  e.maxDepth,
		Body:      e.body,
		Literals:  e.literals,
		Debug:     bytecode.BlockDebugInfo{ArgNames: append([]string{"self"}, m.ArgNames...), LocalNames: m.Locals},
	}
	detectTrivial(in, method, body)

	return &Compiled{
		Selector:     m.Selector,
		NumArgs:      s.numArgs(),
		NumLocals:    s.numLocals(),
		ResolvedBody: body,
		Bytecode:     method,
	}
}

// detectTrivial recognizes the four method-body shapes package vm fast
// paths around the general interpreter loop (package astwalk always walks
// the resolved body): `^<literal>`, `^GlobalName`,
// `^fieldN` (a bare getter), and `field := argN. ^self` (a bare setter).
// Anything else compiles normally.
func detectTrivial(in *interner.Interner, method *bytecode.Method, body []ast.Statement) {
	if len(body) == 1 {
		ret, ok := body[0].(*ast.LocalReturn)
		if ok {
			switch n := ret.Expr.(type) {
			case *ast.IntLiteral:
				if int64(int32(n.Value)) != n.Value {
					break // a BigInteger literal takes the general path
				}
				v := litValueInt(n.Value)
				method.TrivialLiteral = &v
				return
			case *ast.DoubleLiteral:
				v := litValueDouble(n.Value)
				method.TrivialLiteral = &v
				return
			case *ast.GlobalRef:
				if n.Name != "nil" {
					sym := uint32(in.Intern(n.Name))
					method.TrivialGlobal = &sym
					return
				}
			case *ast.FieldRef:
				idx := n.Idx
				method.TrivialGetter = &idx
				return
			}
		}
	}
	if len(body) == 2 {
		assign, ok1 := body[0].(*ast.ExpressionStatement)
		ret, ok2 := body[1].(*ast.LocalReturn)
		if ok1 && ok2 {
			if fa, ok := assign.Expr.(*ast.FieldAssign); ok {
				if argRef, ok := fa.Value.(*ast.ArgRef); ok && argRef.UpIdx == 0 {
					if _, isSelf := ret.Expr.(*ast.Self); isSelf {
						method.TrivialSetter = bytecode.NewTrivialSetter(fa.Idx, argRef.Idx)
					}
				}
			}
		}
	}
}
