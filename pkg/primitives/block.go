package primitives

import (
	"github.com/kristofer/smogvm/pkg/objects"
	"github.com/kristofer/smogvm/pkg/primitiveregistry"
	"github.com/kristofer/smogvm/pkg/value"
)

// Block's value/value:/value:value:/value:value:value: are registered
// here purely so a classfile listing them as `<primitive>` still resolves
// one at load time; both engines' Send/evalSend special-case a literal
// `aBlock value` send before ever reaching the ordinary lookup path (see
// astwalk.evalSend and vm's dispatchSend), so these
// bodies are a fallback for an indirect invocation (perform:, a Block
// held in a variable and sent `value` through Object>>perform:) rather
// than the hot path.
func init() {
	R := primitiveregistry.Register
	R("Block1", "value", blkValue0)
	R("Block2", "value:", blkValue1)
	R("Block3", "value:value:", blkValue2)
	R("Block3", "value:value:value:", blkValue3)
	R("Block", "valueWithArguments:", blkValueWithArguments)
}

func blkValue0(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	return inv.InvokeBlock(caller, args[0], nil)
}

func blkValue1(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	return inv.InvokeBlock(caller, args[0], args[1:])
}

func blkValue2(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	return inv.InvokeBlock(caller, args[0], args[1:])
}

func blkValue3(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	return inv.InvokeBlock(caller, args[0], args[1:])
}

func blkValueWithArguments(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	argsArr, err := arrayOf(h, args[1])
	if err != nil {
		return value.Nil(), err
	}
	return inv.InvokeBlock(caller, args[0], append([]value.Value{}, argsArr.Elements...))
}
