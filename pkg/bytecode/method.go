package bytecode

import (
	"github.com/kristofer/smogvm/pkg/gc"
	"github.com/kristofer/smogvm/pkg/objects"
	"github.com/kristofer/smogvm/pkg/value"
)

// Instruction is one decoded bytecode instruction: an opcode plus up to
// two byte operands (a third, wider operand - a jump offset - is carried
// separately in Jump, since it needs 16 bits to reach across a large
// method body).
type Instruction struct {
	Op   Op
	A, B uint8
	Jump int16 // relative bytecode-index offset, valid only for the jump family
}

// LiteralKind distinguishes what a literal pool slot actually holds.
type LiteralKind int

const (
	LiteralSymbol LiteralKind = iota
	LiteralString
	LiteralDouble
	LiteralInteger
	LiteralBigInteger
	LiteralArray // Elements holds literal-pool indices of the array's elements
	LiteralBlock // Block holds the nested compiled body
)

// Literal is one entry of a compiled method's literal pool. Symbols,
// strings, and blocks are resolved to heap Values once, lazily, the first
// time they are pushed (strings/blocks) or are immediate already
// (symbols, via the interner) - see package vm's PushConstant handling.
type Literal struct {
	Kind     LiteralKind
	Symbol   uint32 // interner.Symbol, for LiteralSymbol and as the selector name for sends
	Str      string
	Double   float64
	Integer  int32
	BigInt   string // decimal text of a BigInteger literal too large for int32
	Elements []int  // LiteralArray: literal-pool indices of each element
	Block    *Method
}

// BlockDebugInfo captures source-level names for locals/args, used only by
// the disassembler and error messages; never consulted by the interpreter
// loop itself.
type BlockDebugInfo struct {
	ArgNames   []string
	LocalNames []string
}

// Method is the bytecode engine's compiled representation of a method or
// block body.
type Method struct {
	Signature string
	Holder    string // defining class name, for disassembly/error messages
	NumArgs   int
	NumLocals int
	MaxStack  int
	Body      []Instruction
	Literals  []Literal
	Debug     BlockDebugInfo

	// ICs holds one inline cache per bytecode index, populated lazily by
	// package vm the first time it executes a Send/SuperSend at that
	// index; most slots (everything that isn't a call site) stay zero
	// value and unused.
	ICs []objects.InlineCache

	// constCache and constSet hold PushConstant's resolved heap Value per
	// literal-pool index, populated lazily the first time each constant is
	// pushed: a LiteralString/LiteralArray/LiteralBigInteger needs a fresh
	// heap allocation to turn into a Value, and doing that once per Method
	// rather than once per activation matters on anything running in a
	// loop. LiteralInteger/LiteralDouble/LiteralSymbol never touch this,
	// since constructing their Value is free every time.
	constCache []value.Value
	constSet   []bool

	// blockInvokables holds the TagInvokable handle wrapping each
	// LiteralBlock literal's nested *Method, allocated once on first
	// PushBlock and reused for every later activation - the bytecode
	// engine's analogue of astwalk's ast.Block.BlockInvokable.
	blockInvokables []gc.Handle

	// Trivial method fast paths. At most one of these is non-nil; when
	// one is, package vm bypasses Body entirely (package astwalk does not
	// consult these fields).
	TrivialLiteral *value.Value // body is exactly `^<literal>`
	TrivialGlobal  *uint32      // body is exactly `^Global`, the interned Symbol to look up
	TrivialGetter  *int         // body is exactly `^fieldN`, the field index
	TrivialSetter  *trivialSetter
}

// trivialSetter captures a method body that is exactly `field := arg. ^self`.
type trivialSetter struct {
	FieldIdx int
	ArgIdx   int
}

// NewTrivialSetter returns a TrivialSetter descriptor for a method whose
// entire body assigns argument argIdx into field fieldIdx and returns
// self.
func NewTrivialSetter(fieldIdx, argIdx int) *trivialSetter {
	return &trivialSetter{FieldIdx: fieldIdx, ArgIdx: argIdx}
}

// NumBytecodes satisfies objects.CompiledMethod.
func (m *Method) NumBytecodes() int { return len(m.Body) }

// IC returns the inline cache slot for the Send/SuperSend at bytecode
// index pc, allocating the backing slice on first use.
func (m *Method) IC(pc int) *objects.InlineCache {
	if len(m.ICs) != len(m.Body) {
		grown := make([]objects.InlineCache, len(m.Body))
		copy(grown, m.ICs)
		m.ICs = grown
	}
	return &m.ICs[pc]
}

// CachedConstant returns the previously-resolved Value for literal-pool
// index idx, if PushConstant has already resolved one.
func (m *Method) CachedConstant(idx int) (value.Value, bool) {
	if idx < len(m.constSet) && m.constSet[idx] {
		return m.constCache[idx], true
	}
	return value.Value{}, false
}

// SetCachedConstant records v as the resolved Value for literal-pool index
// idx, growing the backing slices on first use.
func (m *Method) SetCachedConstant(idx int, v value.Value) {
	if idx >= len(m.constCache) {
		grownV := make([]value.Value, idx+1)
		copy(grownV, m.constCache)
		m.constCache = grownV
		grownB := make([]bool, idx+1)
		copy(grownB, m.constSet)
		m.constSet = grownB
	}
	m.constCache[idx] = v
	m.constSet[idx] = true
}

// BlockInvokableHandle returns the cached Invokable handle for the
// LiteralBlock at literal-pool index idx, or (0, false) if PushBlock has
// not yet wrapped it.
func (m *Method) BlockInvokableHandle(idx int) (gc.Handle, bool) {
	if idx < len(m.blockInvokables) && m.blockInvokables[idx] != 0 {
		return m.blockInvokables[idx], true
	}
	return 0, false
}

// SetBlockInvokableHandle caches h as the Invokable wrapping the
// LiteralBlock at literal-pool index idx.
func (m *Method) SetBlockInvokableHandle(idx int, h gc.Handle) {
	if idx >= len(m.blockInvokables) {
		grown := make([]gc.Handle, idx+1)
		copy(grown, m.blockInvokables)
		m.blockInvokables = grown
	}
	m.blockInvokables[idx] = h
}

// IsTrivial reports whether m has one of the four fast-path shapes,
// meaning package vm need not push a real Frame to invoke it.
func (m *Method) IsTrivial() bool {
	return m.TrivialLiteral != nil || m.TrivialGlobal != nil || m.TrivialGetter != nil || m.TrivialSetter != nil
}
