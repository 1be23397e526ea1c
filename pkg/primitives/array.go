package primitives

import (
	"github.com/kristofer/smogvm/pkg/gc"
	"github.com/kristofer/smogvm/pkg/objects"
	"github.com/kristofer/smogvm/pkg/primitiveregistry"
	"github.com/kristofer/smogvm/pkg/somerr"
	"github.com/kristofer/smogvm/pkg/value"
)

func init() {
	R := primitiveregistry.Register
	R("Array", "at:", arrAt)
	R("Array", "at:put:", arrAtPut)
	R("Array", "length", arrLength)
	R("Array", "do:", arrDo)
	R("Array", "new:", arrClassNew)
	R("Array", "new:withAll:", arrClassNewWithAll)
}

func arrayOf(h *objects.Heap, v value.Value) (*objects.Array, error) {
	hd, ok := v.AsHandle(value.TagArray)
	if !ok {
		return nil, &somerr.RuntimeError{Message: "expected an Array"}
	}
	return h.Arrays.Get(gc.Handle(hd)), nil
}

func arrAt(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	arr, err := arrayOf(h, args[0])
	if err != nil {
		return value.Nil(), err
	}
	idx, ok := args[1].AsInteger()
	if !ok || idx < 1 || int(idx) > len(arr.Elements) {
		return value.Nil(), &somerr.RuntimeError{Message: "at: index out of range"}
	}
	return arr.Elements[idx-1], nil
}

func arrAtPut(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	arr, err := arrayOf(h, args[0])
	if err != nil {
		return value.Nil(), err
	}
	idx, ok := args[1].AsInteger()
	if !ok || idx < 1 || int(idx) > len(arr.Elements) {
		return value.Nil(), &somerr.RuntimeError{Message: "at:put: index out of range"}
	}
	arr.Elements[idx-1] = args[2]
	return args[0], nil
}

func arrLength(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	arr, err := arrayOf(h, args[0])
	if err != nil {
		return value.Nil(), err
	}
	return value.NewInteger(int32(len(arr.Elements))), nil
}

// do: is never inlined by the compiler, so every Array>>do: send reaches
// this primitive, whether its block argument is a literal or a variable.
func arrDo(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	arr, err := arrayOf(h, args[0])
	if err != nil {
		return value.Nil(), err
	}
	elems := append([]value.Value{}, arr.Elements...)
	for _, el := range elems {
		if _, err := inv.InvokeBlock(caller, args[1], []value.Value{el}); err != nil {
			return value.Nil(), err
		}
	}
	return args[0], nil
}

func arrClassNew(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	n, ok := args[1].AsInteger()
	if !ok || n < 0 {
		return value.Nil(), &somerr.RuntimeError{Message: "new: size must be a non-negative Integer"}
	}
	return h.AllocArray(int(n)), nil
}

func arrClassNewWithAll(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	n, ok := args[1].AsInteger()
	if !ok || n < 0 {
		return value.Nil(), &somerr.RuntimeError{Message: "new:withAll: size must be a non-negative Integer"}
	}
	v := h.AllocArray(int(n))
	arr, _ := arrayOf(h, v)
	for i := range arr.Elements {
		arr.Elements[i] = args[2]
	}
	return v, nil
}
