package primitives

import (
	"math"
	"strconv"

	"github.com/kristofer/smogvm/pkg/objects"
	"github.com/kristofer/smogvm/pkg/primitiveregistry"
	"github.com/kristofer/smogvm/pkg/somerr"
	"github.com/kristofer/smogvm/pkg/value"
)

func init() {
	R := primitiveregistry.Register
	R("Double", "+", dblAdd)
	R("Double", "-", dblSub)
	R("Double", "*", dblMul)
	R("Double", "/", dblDiv)
	R("Double", "<", dblLess)
	R("Double", "=", dblEqual)
	R("Double", "sqrt", dblSqrt)
	R("Double", "round", dblRound)
	R("Double", "asInteger", dblAsInteger)
	R("Double", "asString", dblAsString)
	R("Double", "fromString:", dblFromString)
}

func dblBinop(args []value.Value, f func(a, b float64) float64) (value.Value, error) {
	a, ok := numericOf(args[0])
	b, ok2 := numericOf(args[1])
	if !ok || !ok2 {
		return value.Nil(), &somerr.RuntimeError{Message: "Double operation requires a numeric argument"}
	}
	return value.NewDouble(f(a, b)), nil
}

func dblAdd(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	return dblBinop(args, func(a, b float64) float64 { return a + b })
}

func dblSub(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	return dblBinop(args, func(a, b float64) float64 { return a - b })
}

func dblMul(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	return dblBinop(args, func(a, b float64) float64 { return a * b })
}

func dblDiv(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	b, _ := numericOf(args[1])
	if b == 0 {
		return value.Nil(), &somerr.RuntimeError{Message: "division by zero"}
	}
	return dblBinop(args, func(a, b float64) float64 { return a / b })
}

func dblLess(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	a, ok := numericOf(args[0])
	b, ok2 := numericOf(args[1])
	if !ok || !ok2 {
		return value.Nil(), &somerr.RuntimeError{Message: "< requires a numeric argument"}
	}
	return value.NewBoolean(a < b), nil
}

func dblEqual(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	return value.NewBoolean(h.ValuesEqual(args[0], args[1])), nil
}

func dblSqrt(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	a, ok := numericOf(args[0])
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "sqrt receiver must be numeric"}
	}
	return value.NewDouble(math.Sqrt(a)), nil
}

func dblRound(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	a, ok := numericOf(args[0])
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "round receiver must be numeric"}
	}
	return value.NewInteger(int32(math.Round(a))), nil
}

func dblAsInteger(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	a, ok := numericOf(args[0])
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "asInteger receiver must be numeric"}
	}
	return value.NewInteger(int32(math.Trunc(a))), nil
}

func dblAsString(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	a, ok := numericOf(args[0])
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "asString receiver must be numeric"}
	}
	return h.AllocString(strconv.FormatFloat(a, 'g', -1, 64)), nil
}

func dblFromString(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	s, err := stringOf(h, args[1])
	if err != nil {
		return value.Nil(), err
	}
	f, perr := strconv.ParseFloat(s, 64)
	if perr != nil {
		return value.Nil(), &somerr.RuntimeError{Message: "fromString: not a valid double literal: " + s}
	}
	return value.NewDouble(f), nil
}
