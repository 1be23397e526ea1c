// Package ast defines the syntax tree produced by package parser and
// consumed by package compiler. It covers a full SOM classfile: class and
// method definitions, blocks, and every expression/statement shape a
// method body can contain, including the scoped variable-reference node
// kinds (local/non-local/argument/field/global) the compiler's inliner
// rewrites in place.
package ast

import (
	"github.com/kristofer/smogvm/pkg/gc"
	"github.com/kristofer/smogvm/pkg/objects"
)

// Node is implemented by every AST node.
type Node interface {
	node()
}

// Expression is implemented by every node that produces a Value.
type Expression interface {
	Node
	expressionNode()
}

// Statement is implemented by every node usable as one element of a
// method/block body.
type Statement interface {
	Node
	statementNode()
}

// File is a parsed classfile: exactly one class definition.
type File struct {
	Class *ClassDef
}

func (*File) node() {}

// ClassDef is `Name [= SuperName] ( ... )`.
type ClassDef struct {
	Name            string
	SuperName       string // "" means Object
	InstanceFields  []string
	InstanceMethods []*MethodDef
	ClassFields     []string
	ClassMethods    []*MethodDef
}

func (*ClassDef) node() {}

// PatternKind is a method's parameter pattern: unary (no args), binary (one
// operator arg), or keyword (N keyword:arg pairs).
type PatternKind int

const (
	PatternUnary PatternKind = iota
	PatternBinary
	PatternKeyword
)

// MethodDef is one method body: a signature pattern plus a body that is
// either a parsed statement sequence or a primitive marker.
type MethodDef struct {
	Kind      PatternKind
	Selector  string // full selector, e.g. "at:put:" or "+" or "printNl"
	ArgNames  []string
	Primitive bool // true when the body is the bare word `primitive`
	Locals    []string
	Body      []Statement
}

func (*MethodDef) node() {}

// Block is `[:a :b | |l| stmts]`. ResolvedNumLocals is filled in by the
// resolver once block-internal inlining has finished adding its own
// hidden locals (an inlined `ifTrue:`/`to:do:` nested inside this block's
// body folds extra locals into it); len(Locals) alone undercounts those.
type Block struct {
	ArgNames          []string
	Locals            []string
	Body              []Statement
	ResolvedNumLocals int

	// BlockInvokable is this block literal's compiled body, allocated
	// once (lazily, by whichever engine instantiates this node first)
	// and reused for every activation - a block literal evaluated inside
	// a loop must not allocate a fresh Invokable on every iteration.
	BlockInvokable gc.Handle
}

func (b *Block) NumArgs() int { return len(b.ArgNames) }

func (*Block) node()           {}
func (*Block) expressionNode() {}

// ExpressionStatement wraps an Expression used as a statement (its value
// is discarded, except the last statement of a block body, whose value
// the block answers on fall-off; a method body falls off returning self).
type ExpressionStatement struct {
	Expr Expression
}

func (*ExpressionStatement) node()          {}
func (*ExpressionStatement) statementNode() {}

// LocalReturn is `^expr` at scope depth 0 (returns from the immediately
// enclosing method).
type LocalReturn struct {
	Expr Expression
}

func (*LocalReturn) node()          {}
func (*LocalReturn) statementNode() {}

// NonLocalReturn is `^expr` written inside a block, scope tagged with how
// many lexical block-nestings it starts beyond its home method at parse
// time (the inliner collapses this to LocalReturn when every intervening
// scope gets inlined away).
type NonLocalReturn struct {
	Expr  Expression
	Scope int
}

func (*NonLocalReturn) node()          {}
func (*NonLocalReturn) statementNode() {}

// Identifier is an unresolved name as written in source; the compiler
// resolves it to one of LocalVarRef/ArgRef/FieldRef/GlobalRef during
// compilation (the parser does not have scope information).
type Identifier struct {
	Name string
}

func (*Identifier) node()           {}
func (*Identifier) expressionNode() {}

// Assign is an unresolved `name := expr`; the compiler resolves name to
// one of LocalVarAssign/NonLocalVarAssign/ArgAssign/FieldAssign the same
// way it resolves a bare Identifier read.
type Assign struct {
	Name  string
	Value Expression
}

func (*Assign) node()           {}
func (*Assign) expressionNode() {}

// LocalVarRef/LocalVarAssign address a local in the current scope.
type LocalVarRef struct{ Idx int }

func (*LocalVarRef) node()           {}
func (*LocalVarRef) expressionNode() {}

type LocalVarAssign struct {
	Idx   int
	Value Expression
}

func (*LocalVarAssign) node()           {}
func (*LocalVarAssign) expressionNode() {}

// NonLocalVarRef/NonLocalVarAssign address a local UpIdx block-nestings
// out from the current scope.
type NonLocalVarRef struct {
	UpIdx int
	Idx   int
}

func (*NonLocalVarRef) node()           {}
func (*NonLocalVarRef) expressionNode() {}

type NonLocalVarAssign struct {
	UpIdx int
	Idx   int
	Value Expression
}

func (*NonLocalVarAssign) node()           {}
func (*NonLocalVarAssign) expressionNode() {}

// ArgRef/ArgAssign address an argument (ArgRef{UpIdx:0,Idx:0} is self).
type ArgRef struct {
	UpIdx int
	Idx   int
}

func (*ArgRef) node()           {}
func (*ArgRef) expressionNode() {}

type ArgAssign struct {
	UpIdx int
	Idx   int
	Value Expression
}

func (*ArgAssign) node()           {}
func (*ArgAssign) expressionNode() {}

// FieldRef/FieldAssign address an instance field of self.
type FieldRef struct{ Idx int }

func (*FieldRef) node()           {}
func (*FieldRef) expressionNode() {}

type FieldAssign struct {
	Idx   int
	Value Expression
}

func (*FieldAssign) node()           {}
func (*FieldAssign) expressionNode() {}

// GlobalRef addresses a universe global by name (a class, or a reserved
// name like `nil`/`true`/`false`/`system`).
type GlobalRef struct{ Name string }

func (*GlobalRef) node()           {}
func (*GlobalRef) expressionNode() {}

// Self/Super are the two receiver pseudo-variables. Super only ever
// appears as the receiver of a Send, never standalone.
type Self struct{}

func (*Self) node()           {}
func (*Self) expressionNode() {}

type Super struct{}

func (*Super) node()           {}
func (*Super) expressionNode() {}

// IntLiteral/DoubleLiteral/StringLiteral/SymbolLiteral/CharLiteral are the
// scalar literal forms.
type IntLiteral struct{ Value int64 } // parser widens to int64; compiler decides int32 vs BigInteger

func (*IntLiteral) node()           {}
func (*IntLiteral) expressionNode() {}

type DoubleLiteral struct{ Value float64 }

func (*DoubleLiteral) node()           {}
func (*DoubleLiteral) expressionNode() {}

type StringLiteral struct{ Value string }

func (*StringLiteral) node()           {}
func (*StringLiteral) expressionNode() {}

type SymbolLiteral struct{ Value string }

func (*SymbolLiteral) node()           {}
func (*SymbolLiteral) expressionNode() {}

// ArrayLiteral is `#(1 2 #foo 'str' #(nested))`.
type ArrayLiteral struct{ Elements []Expression }

func (*ArrayLiteral) node()           {}
func (*ArrayLiteral) expressionNode() {}

// Send is a message send: unary (no Args), binary (one Arg), or keyword
// (len(Args) == number of keyword parts). IC is this call site's
// monomorphic inline cache, lazily allocated by whichever engine first
// evaluates this node; since a resolved method body is built once and
// reused by every activation, the cache persists across calls the same
// way a bytecode call site's cache slot does.
type Send struct {
	Receiver Expression
	Selector string
	Args     []Expression
	IsSuper  bool
	IC       *objects.InlineCache
}

func (*Send) node()           {}
func (*Send) expressionNode() {}

// The Inlined* nodes below are produced by the resolver's inlining pass
// (package compiler) in place of a Send to one of the handful of control
// selectors every SOM compiler special-cases. A block literal that gets
// inlined never becomes a runtime Block: its argument and locals are
// folded into the enclosing scope before these nodes are built, so Body
// here is just a statement list addressed in the surrounding scope's
// already-resolved coordinates.

// IfInlined is `recv ifTrue: [...]` / `recv ifFalse: [...]`.
type IfInlined struct {
	Cond      Expression
	WantTrue  bool // true for ifTrue:, false for ifFalse:
	Body      []Statement
}

func (*IfInlined) node()           {}
func (*IfInlined) expressionNode() {}

// IfElseInlined is `recv ifTrue:ifFalse:` / `ifFalse:ifTrue:`.
type IfElseInlined struct {
	Cond      Expression
	WantTrue  bool
	ThenBody  []Statement
	ElseBody  []Statement
}

func (*IfElseInlined) node()           {}
func (*IfElseInlined) expressionNode() {}

// WhileInlined is `recv whileTrue: [...]` / `whileFalse: [...]`.
type WhileInlined struct {
	CondBody []Statement
	WantTrue bool
	Body     []Statement
}

func (*WhileInlined) node()           {}
func (*WhileInlined) expressionNode() {}

// AndOrInlined is `recv and: [...]` / `recv or: [...]`, short-circuiting.
type AndOrInlined struct {
	Left  Expression
	IsAnd bool
	Body  []Statement
}

func (*AndOrInlined) node()           {}
func (*AndOrInlined) expressionNode() {}

// ToDoInlined is `start to: stop do: [:i | ...]`, a counted ascending
// loop with a hidden per-iteration index local (IndexIdx, in the
// enclosing scope's already-resolved local coordinates).
type ToDoInlined struct {
	Start    Expression
	Stop     Expression
	IndexIdx int
	Body     []Statement
}

func (*ToDoInlined) node()           {}
func (*ToDoInlined) expressionNode() {}

// IfNilInlined is `recv ifNil: [...]` / `recv ifNotNil: [...]`. Unlike
// IfInlined, the untaken branch leaves the receiver itself on top as the
// result (value-on-top semantics) rather than nil: the whole point of
// `ifNil:` is "answer myself unless I'm nil", and vice versa.
type IfNilInlined struct {
	Recv    Expression
	WantNil bool // true for ifNil:, false for ifNotNil:
	Body    []Statement
}

func (*IfNilInlined) node()           {}
func (*IfNilInlined) expressionNode() {}

// IfNilElseInlined is `recv ifNil:ifNotNil:` / `recv ifNotNil:ifNil:`, a
// genuine two-arm branch like IfElseInlined: the receiver is discarded
// either way since both arms produce their own value. ThenBody is always
// the first keyword part's block, ElseBody the second's; WantNil records
// which selector spelling was written so evalIfNilElseInlined knows which
// arm answers the nil case.
type IfNilElseInlined struct {
	Recv     Expression
	WantNil  bool // true for ifNil:ifNotNil: (ThenBody runs when Recv is nil)
	ThenBody []Statement
	ElseBody []Statement
}

func (*IfNilElseInlined) node()           {}
func (*IfNilElseInlined) expressionNode() {}
