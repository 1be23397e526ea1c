package primitives

import (
	"strconv"
	"strings"

	"github.com/kristofer/smogvm/pkg/objects"
	"github.com/kristofer/smogvm/pkg/primitiveregistry"
	"github.com/kristofer/smogvm/pkg/somerr"
	"github.com/kristofer/smogvm/pkg/value"
)

func init() {
	R := primitiveregistry.Register
	R("String", "concatenate:", strConcatenate)
	R("String", "asSymbol", strAsSymbol)
	R("String", "asInteger", strAsInteger)
	R("String", "length", strLength)
	R("String", "=", strEqual)
	R("String", "hashcode", strHashcode)
	R("String", "isLetters", strIsLetters)
	R("String", "isDigits", strIsDigits)
	R("String", "isWhiteSpace", strIsWhiteSpace)
	R("String", "primSubstringFrom:to:", strSubstring)
	R("String", "primCharAt:", strCharAt)
}

func strConcatenate(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	a, err := stringOf(h, args[0])
	if err != nil {
		return value.Nil(), err
	}
	b, err := stringOf(h, args[1])
	if err != nil {
		return value.Nil(), err
	}
	return h.AllocString(a + b), nil
}

func strAsSymbol(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	s, err := stringOf(h, args[0])
	if err != nil {
		return value.Nil(), err
	}
	id := inv.Intern(s)
	return value.NewSymbol(id), nil
}

func strAsInteger(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	s, err := stringOf(h, args[0])
	if err != nil {
		return value.Nil(), err
	}
	n, perr := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if perr != nil {
		return value.NewInteger(0), nil
	}
	return value.NewInteger(int32(n)), nil
}

func strLength(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	s, err := stringOf(h, args[0])
	if err != nil {
		return value.Nil(), err
	}
	return value.NewInteger(int32(len([]rune(s)))), nil
}

func strEqual(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	return value.NewBoolean(h.ValuesEqual(args[0], args[1])), nil
}

func strHashcode(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	s, err := stringOf(h, args[0])
	if err != nil {
		return value.Nil(), err
	}
	var hv int32
	for _, r := range s {
		hv = hv*31 + int32(r)
	}
	return value.NewInteger(hv), nil
}

func strIsLetters(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	s, err := stringOf(h, args[0])
	if err != nil {
		return value.Nil(), err
	}
	if s == "" {
		return value.NewBoolean(false), nil
	}
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return value.NewBoolean(false), nil
		}
	}
	return value.NewBoolean(true), nil
}

func strIsDigits(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	s, err := stringOf(h, args[0])
	if err != nil {
		return value.Nil(), err
	}
	if s == "" {
		return value.NewBoolean(false), nil
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return value.NewBoolean(false), nil
		}
	}
	return value.NewBoolean(true), nil
}

func strIsWhiteSpace(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	s, err := stringOf(h, args[0])
	if err != nil {
		return value.Nil(), err
	}
	if s == "" {
		return value.NewBoolean(false), nil
	}
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return value.NewBoolean(false), nil
		}
	}
	return value.NewBoolean(true), nil
}

func strSubstring(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	s, err := stringOf(h, args[0])
	if err != nil {
		return value.Nil(), err
	}
	from, ok := args[1].AsInteger()
	to, ok2 := args[2].AsInteger()
	if !ok || !ok2 {
		return value.Nil(), &somerr.RuntimeError{Message: "primSubstringFrom:to: bounds must be Integers"}
	}
	runes := []rune(s)
	if from < 1 || to > int32(len(runes)) || from > to {
		return h.AllocString(""), nil
	}
	return h.AllocString(string(runes[from-1 : to])), nil
}

func strCharAt(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	s, err := stringOf(h, args[0])
	if err != nil {
		return value.Nil(), err
	}
	idx, ok := args[1].AsInteger()
	runes := []rune(s)
	if !ok || idx < 1 || int(idx) > len(runes) {
		return value.Nil(), &somerr.RuntimeError{Message: "primCharAt: index out of range"}
	}
	return value.NewChar(byte(runes[idx-1])), nil
}
