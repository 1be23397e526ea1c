package universe

import (
	"fmt"

	"github.com/kristofer/smogvm/pkg/ast"
	"github.com/kristofer/smogvm/pkg/compiler"
	"github.com/kristofer/smogvm/pkg/gc"
	"github.com/kristofer/smogvm/pkg/objects"
	"github.com/kristofer/smogvm/pkg/parser"
	"github.com/kristofer/smogvm/pkg/primitiveregistry"
	"github.com/kristofer/smogvm/pkg/somerr"
	"github.com/kristofer/smogvm/pkg/value"
)

// Engine selects which compiled representation LoadSource populates on
// every Invokable it builds. Both can be populated at once (EngineBoth),
// which is what the test suite does so it can run the same program
// through both engines and compare results.
type Engine int

const (
	EngineBytecode Engine = 1 << iota
	EngineAST
	EngineBoth = EngineBytecode | EngineAST
)

// LoadSource parses src as one classfile and installs its class into the
// universe: allocates the Class object (wiring up its superclass, which
// must already be registered), compiles every method with package
// compiler, and registers each compiled body as an Invokable.
func (u *Universe) LoadSource(src string, engine Engine) error {
	p := parser.New(src)
	file := p.ParseFile()
	if errs := p.Errors(); len(errs) > 0 {
		return &somerr.BootstrapError{Class: "<parse>", Err: fmt.Errorf("%v", errs)}
	}
	return u.installClass(file.Class, engine)
}

func (u *Universe) installClass(def *ast.ClassDef, engine Engine) error {
	superName := def.SuperName
	if superName == "" {
		superName = "Object"
	}
	superVal, ok := u.Global(superName)
	if !ok {
		return &somerr.BootstrapError{Class: def.Name, Err: &somerr.ClassNotFoundError{Name: superName}}
	}
	superHandle, _ := superVal.AsHandle(value.TagClass)

	fields := append([]string{}, u.Heap.Classes.Get(gc.Handle(superHandle)).InstanceFields...)
	fields = append(fields, def.InstanceFields...)

	handle, class := u.Heap.AllocClass(def.Name)
	class.Super = gc.Handle(superHandle)
	class.HasSuper = true
	class.InstanceFields = fields
	class.ClassFields = def.ClassFields

	for _, m := range def.InstanceMethods {
		inv, err := u.compileAndAllocInvokable(def.Name, handle, compiler.FieldTable(fields), m, engine, false)
		if err != nil {
			return err
		}
		class.Methods[m.Selector] = inv
	}
	for _, m := range def.ClassMethods {
		inv, err := u.compileAndAllocInvokable(def.Name, handle, compiler.FieldTable(def.ClassFields), m, engine, true)
		if err != nil {
			return err
		}
		class.ClassMethods[m.Selector] = inv
	}

	u.SetGlobal(def.Name, value.NewClass(uint32(handle)))
	return nil
}

func (u *Universe) compileAndAllocInvokable(className string, holderHandle gc.Handle, fields compiler.FieldTable, m *ast.MethodDef, engine Engine, classSide bool) (gc.Handle, error) {
	compiled := compiler.CompileMethod(u.Interns, className, fields, m)

	handle, inv := u.Heap.AllocInvokable()
	inv.Signature = compiled.Selector
	inv.NumArgs = compiled.NumArgs
	inv.Holder = holderHandle
	inv.ClassSide = classSide

	if compiled.IsPrimitive {
		fn, ok := primitiveregistry.Lookup(className, compiled.Selector)
		if !ok {
			return handle, &somerr.BootstrapError{Class: className, Err: fmt.Errorf("no primitive registered for %s>>#%s", className, compiled.Selector)}
		}
		inv.Kind = objects.InvokablePrimitive
		inv.Primitive = fn
		return handle, nil
	}

	inv.Kind = objects.InvokableCompiled
	inv.NumLocals = compiled.NumLocals
	inv.MaxStack = compiled.Bytecode.MaxStack
	if engine&EngineBytecode != 0 {
		inv.Bytecode = compiled.Bytecode
	}
	if engine&EngineAST != 0 {
		inv.ASTBody = &ASTBody{numArgs: compiled.NumArgs, numLocals: compiled.NumLocals, stmts: compiled.ResolvedBody}
	}
	return handle, nil
}

// LoadKernelMethods parses src as a classfile and merges its methods onto
// a class Bootstrap has already allocated, instead of allocating a new
// Class object the way LoadSource's installClass does - the core classes
// (Object, Integer, Array, ...) must keep the exact Handle Bootstrap gave
// them, since u.Core and every ClassOf/AllocBlock switch already closed
// over those handles before this ever runs. Used once, at startup, to
// attach the kernel's primitive and ordinary method bodies (see package
// primitives' kernel sources) to the classes Bootstrap built as bare
// Go data.
func (u *Universe) LoadKernelMethods(src string, engine Engine) error {
	p := parser.New(src)
	file := p.ParseFile()
	if errs := p.Errors(); len(errs) > 0 {
		return &somerr.BootstrapError{Class: "<kernel>", Err: fmt.Errorf("%v", errs)}
	}
	def := file.Class

	classVal, ok := u.Global(def.Name)
	if !ok {
		return &somerr.BootstrapError{Class: def.Name, Err: &somerr.ClassNotFoundError{Name: def.Name}}
	}
	h, _ := classVal.AsHandle(value.TagClass)
	handle := gc.Handle(h)
	class := u.Heap.Classes.Get(handle)

	fields := append([]string{}, class.InstanceFields...)
	for _, m := range def.InstanceMethods {
		inv, err := u.compileAndAllocInvokable(def.Name, handle, compiler.FieldTable(fields), m, engine, false)
		if err != nil {
			return err
		}
		class.Methods[m.Selector] = inv
	}
	classFields := append([]string{}, def.ClassFields...)
	for _, m := range def.ClassMethods {
		inv, err := u.compileAndAllocInvokable(def.Name, handle, compiler.FieldTable(classFields), m, engine, true)
		if err != nil {
			return err
		}
		class.ClassMethods[m.Selector] = inv
	}
	return nil
}

// ASTBody implements objects.CompiledASTNode. It is defined here, rather
// than in package astwalk, because package astwalk depends on package
// universe for dispatch (Lookup/LookupSuper) and a dependency the other
// way would cycle; package astwalk reads one back out through the small
// accessor methods below.
type ASTBody struct {
	numArgs   int
	numLocals int
	stmts     []ast.Statement
}

// NewASTBody wraps a block literal's or method's resolved body for
// storage on an Invokable. Exported because package astwalk allocates
// one directly the first time it instantiates a given block literal
// (see astwalk.evalBlockLiteral), rather than going through
// compileAndAllocInvokable, which only runs for top-level method
// definitions.
func NewASTBody(numArgs, numLocals int, stmts []ast.Statement) *ASTBody {
	return &ASTBody{numArgs: numArgs, numLocals: numLocals, stmts: stmts}
}

func (*ASTBody) IsCompiledASTNode() {}

func (b *ASTBody) NumArgs() int           { return b.numArgs }
func (b *ASTBody) NumLocals() int         { return b.numLocals }
func (b *ASTBody) Stmts() []ast.Statement { return b.stmts }
