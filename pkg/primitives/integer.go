package primitives

import (
	"math"
	"math/big"
	"math/rand"

	"github.com/kristofer/smogvm/pkg/gc"
	"github.com/kristofer/smogvm/pkg/objects"
	"github.com/kristofer/smogvm/pkg/primitiveregistry"
	"github.com/kristofer/smogvm/pkg/somerr"
	"github.com/kristofer/smogvm/pkg/value"
)

func init() {
	R := primitiveregistry.Register
	R("Integer", "+", intAdd)
	R("Integer", "-", intSub)
	R("Integer", "*", intMul)
	R("Integer", "/", intDiv)
	R("Integer", "//", intIntDiv)
	R("Integer", "%", intMod)
	R("Integer", "rem:", intRem)
	R("Integer", "&", intBitAnd)
	R("Integer", "<<", intShiftLeft)
	R("Integer", ">>>", intShiftRight)
	R("Integer", "bitXor:", intBitXor)
	R("Integer", "<", intLess)
	R("Integer", "=", intEqual)
	R("Integer", "sqrt", intSqrt)
	R("Integer", "asString", intAsString)
	R("Integer", "asDouble", intAsDouble)
	R("Integer", "asInteger", intAsInteger)
	R("Integer", "atRandom", intAtRandom)
	R("Integer", "to:do:", intToDo)
	R("Integer", "to:by:do:", intToByDo)
	R("Integer", "downTo:do:", intDownToDo)
	R("Integer", "downTo:by:do:", intDownToByDo)
	R("Integer", "timesRepeat:", intTimesRepeat)
	R("Integer", "fromString:", intClassFromString)
}

// intOperands returns both operands as int64 when both are plain
// fixnums, which covers every arithmetic primitive's fast path (int32
// magnitudes never overflow int64 arithmetic).
func intOperands(args []value.Value) (int64, int64, bool) {
	a, ok := args[0].AsInteger()
	if !ok {
		return 0, 0, false
	}
	b, ok := args[1].AsInteger()
	if !ok {
		return 0, 0, false
	}
	return int64(a), int64(b), true
}

// bigOperands promotes both operands to *big.Int, covering the case
// where one or both sides already overflowed into a BigInteger.
func bigOperands(h *objects.Heap, args []value.Value) (*big.Int, *big.Int, bool) {
	a, ok := asBigInt(h, args[0])
	if !ok {
		return nil, nil, false
	}
	b, ok := asBigInt(h, args[1])
	if !ok {
		return nil, nil, false
	}
	return a, b, true
}

func asBigInt(h *objects.Heap, v value.Value) (*big.Int, bool) {
	if i, ok := v.AsInteger(); ok {
		return big.NewInt(int64(i)), true
	}
	if v.IsBigInt() {
		hd, _ := v.AsHandle(value.TagBigInt)
		return h.BigInts.Get(gc.Handle(hd)).Data, true
	}
	return nil, false
}

// intResult packs n back down to a fixnum Value if it fits in int32,
// promoting to a managed BigInteger otherwise - the inverse of the
// compiler's own bigint-overflow check for literal folding.
func intResult(h *objects.Heap, n *big.Int) value.Value {
	if n.IsInt64() {
		i := n.Int64()
		if i >= math.MinInt32 && i <= math.MaxInt32 {
			return value.NewInteger(int32(i))
		}
	}
	return h.AllocBigInt(n)
}

func intAdd(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	if a, b, ok := intOperands(args); ok {
		return clampOrBig(h, a+b), nil
	}
	a, b, ok := bigOperands(h, args)
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "+ requires a numeric argument"}
	}
	return intResult(h, new(big.Int).Add(a, b)), nil
}

func intSub(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	if a, b, ok := intOperands(args); ok {
		return clampOrBig(h, a-b), nil
	}
	a, b, ok := bigOperands(h, args)
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "- requires a numeric argument"}
	}
	return intResult(h, new(big.Int).Sub(a, b)), nil
}

func intMul(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	if a, b, ok := intOperands(args); ok {
		return clampOrBig(h, a*b), nil
	}
	a, b, ok := bigOperands(h, args)
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "* requires a numeric argument"}
	}
	return intResult(h, new(big.Int).Mul(a, b)), nil
}

// clampOrBig packs n as a fixnum if it fits int32, else promotes to a
// managed BigInteger - every +/-/* primitive above funnels its int64
// fast-path result through this, since an int32*int32 can overflow
// int32 (though never int64).
func clampOrBig(h *objects.Heap, n int64) value.Value {
	if n >= math.MinInt32 && n <= math.MaxInt32 {
		return value.NewInteger(int32(n))
	}
	return h.AllocBigInt(big.NewInt(n))
}

func intDiv(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	a, ok := numericOf(args[0])
	b, ok2 := numericOf(args[1])
	if !ok || !ok2 {
		return value.Nil(), &somerr.RuntimeError{Message: "/ requires a numeric argument"}
	}
	if b == 0 {
		return value.Nil(), &somerr.RuntimeError{Message: "division by zero"}
	}
	if args[0].IsDouble() || args[1].IsDouble() {
		return value.NewDouble(a / b), nil
	}
	ai, _ := args[0].AsInteger()
	bi, _ := args[1].AsInteger()
	return clampOrBig(h, floorDiv(int64(ai), int64(bi))), nil
}

func intIntDiv(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	a, b, ok := intOperands(args)
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "// requires an Integer argument"}
	}
	if b == 0 {
		return value.Nil(), &somerr.RuntimeError{Message: "division by zero"}
	}
	return clampOrBig(h, floorDiv(a, b)), nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func intMod(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	a, b, ok := intOperands(args)
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "% requires an Integer argument"}
	}
	if b == 0 {
		return value.Nil(), &somerr.RuntimeError{Message: "division by zero"}
	}
	m := a % b
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return clampOrBig(h, m), nil
}

func intRem(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	a, b, ok := intOperands(args)
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "rem: requires an Integer argument"}
	}
	if b == 0 {
		return value.Nil(), &somerr.RuntimeError{Message: "division by zero"}
	}
	return clampOrBig(h, a%b), nil
}

func intBitAnd(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	a, b, ok := intOperands(args)
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "& requires an Integer argument"}
	}
	return value.NewInteger(int32(a & b)), nil
}

func intBitXor(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	a, b, ok := intOperands(args)
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "bitXor: requires an Integer argument"}
	}
	return value.NewInteger(int32(a ^ b)), nil
}

func intShiftLeft(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	a, b, ok := intOperands(args)
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "<< requires an Integer argument"}
	}
	return intResult(h, new(big.Int).Lsh(big.NewInt(a), uint(b))), nil
}

func intShiftRight(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	a, b, ok := intOperands(args)
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: ">>> requires an Integer argument"}
	}
	return value.NewInteger(int32(uint32(a) >> uint(b))), nil
}

func intLess(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	if a, b, ok := intOperands(args); ok {
		return value.NewBoolean(a < b), nil
	}
	a, ok := numericOf(args[0])
	b, ok2 := numericOf(args[1])
	if ok && ok2 {
		return value.NewBoolean(a < b), nil
	}
	ba, bb, ok3 := bigOperands(h, args)
	if !ok3 {
		return value.Nil(), &somerr.RuntimeError{Message: "< requires a numeric argument"}
	}
	return value.NewBoolean(ba.Cmp(bb) < 0), nil
}

func intEqual(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	return value.NewBoolean(h.ValuesEqual(args[0], args[1])), nil
}

func intSqrt(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	a, ok := args[0].AsInteger()
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "sqrt receiver must be an Integer"}
	}
	return value.NewDouble(math.Sqrt(float64(a))), nil
}

func intAsString(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	if a, ok := args[0].AsInteger(); ok {
		return h.AllocString(itoa64(int64(a))), nil
	}
	if args[0].IsBigInt() {
		hd, _ := args[0].AsHandle(value.TagBigInt)
		return h.AllocString(h.BigInts.Get(gc.Handle(hd)).Data.String()), nil
	}
	return value.Nil(), &somerr.RuntimeError{Message: "asString receiver must be an Integer"}
}

func itoa64(i int64) string {
	return big.NewInt(i).String()
}

func intAsDouble(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	if a, ok := args[0].AsInteger(); ok {
		return value.NewDouble(float64(a)), nil
	}
	if args[0].IsBigInt() {
		hd, _ := args[0].AsHandle(value.TagBigInt)
		f, _ := new(big.Float).SetInt(h.BigInts.Get(gc.Handle(hd)).Data).Float64()
		return value.NewDouble(f), nil
	}
	return value.Nil(), &somerr.RuntimeError{Message: "asDouble receiver must be an Integer"}
}

func intAsInteger(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	return args[0], nil
}

func intAtRandom(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	a, ok := args[0].AsInteger()
	if !ok || a <= 0 {
		return value.NewInteger(0), nil
	}
	return value.NewInteger(rand.Int31n(a)), nil
}

func intClassFromString(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	s, err := stringOf(h, args[1])
	if err != nil {
		return value.Nil(), err
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "fromString: not a valid integer literal: " + s}
	}
	return intResult(h, n), nil
}

func intToDo(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	return loopRange(inv, caller, args[0], args[1], value.NewInteger(1), args[2])
}

func intToByDo(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	return loopRange(inv, caller, args[0], args[1], args[2], args[3])
}

func intDownToDo(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	return loopRange(inv, caller, args[0], args[1], value.NewInteger(-1), args[2])
}

func intDownToByDo(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	neg, _ := args[2].AsInteger()
	return loopRange(inv, caller, args[0], args[1], value.NewInteger(-neg), args[3])
}

// loopRange drives any of the four to:.../downTo:... primitives. The
// compiler inlines only to:do: with a literal block (a ToDoInlined node),
// so this runs for to:do: with a non-literal block argument and for every
// to:by:do:, downTo:do:, and downTo:by:do: send.
func loopRange(inv objects.Invoker, caller *objects.Frame, start, stop, step, block value.Value) (value.Value, error) {
	s, ok := start.AsInteger()
	e, ok2 := stop.AsInteger()
	d, ok3 := step.AsInteger()
	if !ok || !ok2 || !ok3 || d == 0 {
		return value.Nil(), &somerr.RuntimeError{Message: "to:do: bounds and step must be non-zero Integers"}
	}
	if d > 0 {
		for i := s; i <= e; i += d {
			if _, err := inv.InvokeBlock(caller, block, []value.Value{value.NewInteger(i)}); err != nil {
				return value.Nil(), err
			}
		}
	} else {
		for i := s; i >= e; i += d {
			if _, err := inv.InvokeBlock(caller, block, []value.Value{value.NewInteger(i)}); err != nil {
				return value.Nil(), err
			}
		}
	}
	return start, nil
}

func intTimesRepeat(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	n, ok := args[0].AsInteger()
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "timesRepeat: receiver must be an Integer"}
	}
	for i := int32(1); i <= n; i++ {
		if _, err := inv.InvokeBlock(caller, args[1], nil); err != nil {
			return value.Nil(), err
		}
	}
	return args[0], nil
}
