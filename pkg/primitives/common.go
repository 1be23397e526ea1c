package primitives

import (
	"strconv"

	"github.com/kristofer/smogvm/pkg/gc"
	"github.com/kristofer/smogvm/pkg/objects"
	"github.com/kristofer/smogvm/pkg/somerr"
	"github.com/kristofer/smogvm/pkg/value"
)

// stringOf returns v's backing text if it is a String. A Symbol, or any
// other kind of Value, is rejected with a RuntimeError; selectorOf is the
// helper that accepts both Symbols and Strings.
func stringOf(h *objects.Heap, v value.Value) (string, error) {
	if v.IsString() {
		hd, _ := v.AsHandle(value.TagString)
		return h.Strings.Get(gc.Handle(hd)).Data, nil
	}
	return "", &somerr.RuntimeError{Message: "expected a String"}
}

// selectorOf returns the selector text a perform:-family primitive was
// given, accepting either a Symbol (the normal case, resolved through
// inv.SymbolName since a Symbol Value only carries an interned id) or a
// String.
func selectorOf(inv objects.Invoker, h *objects.Heap, v value.Value) (string, error) {
	if sym, ok := v.AsSymbol(); ok {
		return inv.SymbolName(sym), nil
	}
	if v.IsString() {
		hd, _ := v.AsHandle(value.TagString)
		return h.Strings.Get(gc.Handle(hd)).Data, nil
	}
	return "", &somerr.RuntimeError{Message: "expected a Symbol or String selector"}
}

// intOf returns v's integer value, for a primitive that only accepts a
// fixnum argument; a BigInteger reports false.
func intOf(v value.Value) (int32, bool) {
	return v.AsInteger()
}

// numericOf returns v reinterpreted as a float64 if it is an Integer or
// a Double, for primitives whose arithmetic is defined over both.
func numericOf(v value.Value) (float64, bool) {
	if i, ok := v.AsInteger(); ok {
		return float64(i), true
	}
	if d, ok := v.AsDouble(); ok {
		return d, true
	}
	return 0, false
}

// printStringOf renders v the way System>>printString: does: a String or
// Symbol prints as its own text (unquoted - SOM's printString never
// re-quotes a string the way an inspector would), a Class prints as its
// name, an Instance that defines no printOn:-style override prints as
// "a ClassName", and everything with a stable Value.String() rendering
// (nil, booleans, numbers, characters) falls back to that. This is the
// one place that needs to format every object kind at once, which is why
// it lives here rather than beside any single kind's other primitives.
func printStringOf(h *objects.Heap, inv objects.Invoker, v value.Value) string {
	switch {
	case v.IsString():
		s, _ := stringOf(h, v)
		return s
	case v.IsSymbol():
		id, _ := v.AsSymbol()
		return inv.SymbolName(id)
	case v.IsBigInt():
		hd, _ := v.AsHandle(value.TagBigInt)
		return h.BigInts.Get(gc.Handle(hd)).Data.String()
	case v.IsArray():
		hd, _ := v.AsHandle(value.TagArray)
		arr := h.Arrays.Get(gc.Handle(hd))
		return "(" + strconv.Itoa(len(arr.Elements)) + " elements)"
	case v.IsClass():
		hd, _ := v.AsHandle(value.TagClass)
		return inv.ClassName(gc.Handle(hd))
	case v.IsBlock():
		return "a Block"
	default:
		if v.IsInstance() || v.IsInvokable() {
			return "a " + inv.ClassName(inv.ClassOf(v))
		}
		return v.String()
	}
}

