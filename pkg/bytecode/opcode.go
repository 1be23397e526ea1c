// Package bytecode defines the instruction set and compiled-method
// representation consumed by the bytecode stack-machine engine (package
// vm). The AST-walk engine (package astwalk) never touches this package;
// the two engines share the object model (package objects) and the
// compiler's front end, but not a compiled representation.
package bytecode

// Op is a single bytecode instruction's opcode.
type Op byte

const (
	// Stack shuffling.
	OpDup Op = iota
	OpDup2
	OpPop
	OpPopX // pop and discard, operand = count (package compiler never emits it; package vm honors it)

	// Pushes.
	OpPushLocal       // operand: localIdx (uint8)
	OpPushNonLocal    // operands: upIdx, localIdx (uint8, uint8)
	OpPushArg         // operand: argIdx (uint8)
	OpPushNonLocalArg // operands: upIdx, argIdx (uint8, uint8)
	OpPushField       // operand: fieldIdx (uint8)
	OpPushBlock       // operand: literal index of the Block's compiled body
	OpPushConstant    // operand: literal index
	OpPushConstant0   // no operand, literal index 0
	OpPushConstant1   // no operand, literal index 1
	OpPushGlobal      // operand: literal index of the global's Symbol
	OpPushSelf        // no operand; equivalent to PushArg 0 but marked distinctly for clarity/specialization
	OpPushSuper       // no operand; pushes self, used solely to tag the receiver for a following SuperSend
	OpPushNil         // no operand

	// Pops / assigns.
	OpPopLocal       // operand: localIdx
	OpPopNonLocal    // operands: upIdx, localIdx
	OpPopArg         // operand: argIdx
	OpPopNonLocalArg // operands: upIdx, argIdx
	OpPopField       // operand: fieldIdx

	// Sends.
	OpSend1     // operand: literal index of selector Symbol; 1 receiver, 0 args
	OpSend2     // 1 receiver, 1 arg
	OpSend3     // 1 receiver, 2 args
	OpSendN     // operands: literal index of selector, argument count (uint8)
	OpSuperSend // operands: literal index of selector, argument count (uint8)

	// Returns.
	OpReturnSelf
	OpReturnLocal
	OpReturnNonLocal // operand: scope count (uint8) of lexically enclosing frames to walk back to the home method frame

	// Control flow (all jump offsets are relative, in bytecode indices,
	// and are patched by the compiler/inliner once the jump target is
	// known).
	OpJump
	OpJumpBackward
	OpJumpOnTruePop
	OpJumpOnFalsePop
	OpJumpOnTrueTopNil  // when taken, leaves the tested true/false on the stack; when not taken, pops it
	OpJumpOnFalseTopNil
	OpJumpOnNotNilPop
	OpJumpOnNilPop
	OpJumpOnNotNilTopTop // does not pop; replaces or keeps as-is per the InlineIfNil family
	OpJumpOnNilTopTop
	OpJumpIfGreater // pops two integers, jumps if second-from-top > top (to:do: loop test fast path)

	// Arithmetic fast paths. The inlined to:do: loop emits IncLocal to step
	// its counter; no compiler pass emits DecLocal.
	OpIncLocal // operand: localIdx; increments that local's integer in place
	OpDecLocal

	// Halt: an explicit stopping instruction for the interpreter loop. No
	// compiler pass emits it; package vm honors it.
	OpHalt

	opCount
)

var names = [opCount]string{
	OpDup: "Dup", OpDup2: "Dup2", OpPop: "Pop", OpPopX: "PopX",
	OpPushLocal: "PushLocal", OpPushNonLocal: "PushNonLocal", OpPushArg: "PushArg",
	OpPushNonLocalArg: "PushNonLocalArg", OpPushField: "PushField", OpPushBlock: "PushBlock",
	OpPushConstant: "PushConstant", OpPushConstant0: "PushConstant0", OpPushConstant1: "PushConstant1",
	OpPushGlobal: "PushGlobal", OpPushSelf: "PushSelf", OpPushSuper: "PushSuper", OpPushNil: "PushNil",
	OpPopLocal: "PopLocal", OpPopNonLocal: "PopNonLocal", OpPopArg: "PopArg",
	OpPopNonLocalArg: "PopNonLocalArg", OpPopField: "PopField",
	OpSend1: "Send1", OpSend2: "Send2", OpSend3: "Send3", OpSendN: "SendN", OpSuperSend: "SuperSend",
	OpReturnSelf: "ReturnSelf", OpReturnLocal: "ReturnLocal", OpReturnNonLocal: "ReturnNonLocal",
	OpJump: "Jump", OpJumpBackward: "JumpBackward",
	OpJumpOnTruePop: "JumpOnTruePop", OpJumpOnFalsePop: "JumpOnFalsePop",
	OpJumpOnTrueTopNil: "JumpOnTrueTopNil", OpJumpOnFalseTopNil: "JumpOnFalseTopNil",
	OpJumpOnNotNilPop: "JumpOnNotNilPop", OpJumpOnNilPop: "JumpOnNilPop",
	OpJumpOnNotNilTopTop: "JumpOnNotNilTopTop", OpJumpOnNilTopTop: "JumpOnNilTopTop",
	OpJumpIfGreater: "JumpIfGreater",
	OpIncLocal:      "IncLocal", OpDecLocal: "DecLocal",
	OpHalt: "Halt",
}

func (op Op) String() string {
	if int(op) < len(names) && names[op] != "" {
		return names[op]
	}
	return "Op(?)"
}
