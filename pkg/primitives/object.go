// Package primitives registers every native Go implementation of a
// `<primitive>`-tagged SOM method, and carries the embedded kernel source
// (see kernel.go) that attaches those primitives, plus the ordinary
// (non-primitive) methods layered on top of them, to the core classes
// package universe's Bootstrap builds as bare Go data.
//
// Importing this package for its side effect (the init functions below)
// is what makes a freshly bootstrapped Universe able to run anything:
// without it, every `<primitive>` method in the kernel source would fail
// to compile with "no primitive registered".
package primitives

import (
	"github.com/kristofer/smogvm/pkg/gc"
	"github.com/kristofer/smogvm/pkg/objects"
	"github.com/kristofer/smogvm/pkg/primitiveregistry"
	"github.com/kristofer/smogvm/pkg/somerr"
	"github.com/kristofer/smogvm/pkg/value"
)

func init() {
	primitiveregistry.Register("Object", "class", objClass)
	primitiveregistry.Register("Object", "==", objIdentical)
	primitiveregistry.Register("Object", "hashcode", objHashcode)
	primitiveregistry.Register("Object", "objectSize", objObjectSize)
	primitiveregistry.Register("Object", "halt", objHalt)
	primitiveregistry.Register("Object", "instVarAt:", objInstVarAt)
	primitiveregistry.Register("Object", "instVarAt:put:", objInstVarAtPut)
	primitiveregistry.Register("Object", "instVarNamed:", objInstVarNamed)
	primitiveregistry.Register("Object", "perform:", objPerform)
	primitiveregistry.Register("Object", "perform:withArguments:", objPerformWithArguments)
	primitiveregistry.Register("Object", "perform:inSuperclass:", objPerformInSuperclass)
	primitiveregistry.Register("Object", "perform:withArguments:inSuperclass:", objPerformWithArgumentsInSuperclass)
}

func objClass(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	return value.NewClass(uint32(inv.ClassOf(args[0]))), nil
}

func objIdentical(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	return value.NewBoolean(args[0].Equal(args[1])), nil
}

func objHashcode(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	return value.NewInteger(int32(args[0].Bits())), nil
}

func objObjectSize(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	recv := args[0]
	if recv.IsInstance() {
		hd, _ := recv.AsHandle(value.TagInstance)
		inst := h.Instances.Get(gc.Handle(hd))
		return value.NewInteger(int32(len(inst.Fields))), nil
	}
	return value.NewInteger(0), nil
}

func objHalt(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	return args[0], nil
}

func objInstVarAt(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	hd, ok := args[0].AsHandle(value.TagInstance)
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "instVarAt: receiver is not an Instance"}
	}
	idx, ok := args[1].AsInteger()
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "instVarAt: index must be an Integer"}
	}
	inst := h.Instances.Get(gc.Handle(hd))
	if idx < 1 || int(idx) > len(inst.Fields) {
		return value.Nil(), &somerr.RuntimeError{Message: "instVarAt: index out of range"}
	}
	return inst.Fields[idx-1], nil
}

func objInstVarAtPut(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	hd, ok := args[0].AsHandle(value.TagInstance)
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "instVarAt:put: receiver is not an Instance"}
	}
	idx, ok := args[1].AsInteger()
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "instVarAt:put: index must be an Integer"}
	}
	inst := h.Instances.Get(gc.Handle(hd))
	if idx < 1 || int(idx) > len(inst.Fields) {
		return value.Nil(), &somerr.RuntimeError{Message: "instVarAt:put: index out of range"}
	}
	inst.Fields[idx-1] = args[2]
	return args[2], nil
}

func objInstVarNamed(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	hd, ok := args[0].AsHandle(value.TagInstance)
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "instVarNamed: receiver is not an Instance"}
	}
	name, err := stringOf(h, args[1])
	if err != nil {
		return value.Nil(), err
	}
	inst := h.Instances.Get(gc.Handle(hd))
	fields := h.Classes.Get(inst.Class).InstanceFields
	for i, f := range fields {
		if f == name {
			return inst.Fields[i], nil
		}
	}
	return value.Nil(), &somerr.RuntimeError{Message: "instVarNamed: no such field " + name}
}

// perform: sends selector (a Symbol) to the receiver with no arguments.
func objPerform(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	sel, err := selectorOf(inv, h, args[1])
	if err != nil {
		return value.Nil(), err
	}
	return inv.Send(caller, args[0], sel, nil)
}

func objPerformWithArguments(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	sel, err := selectorOf(inv, h, args[1])
	if err != nil {
		return value.Nil(), err
	}
	argHandle, ok := args[2].AsHandle(value.TagArray)
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "perform:withArguments: second argument must be an Array"}
	}
	arr := h.Arrays.Get(gc.Handle(argHandle))
	return inv.Send(caller, args[0], sel, append([]value.Value{}, arr.Elements...))
}

// perform:inSuperclass: resolves selector starting in the given class (a
// Class value) rather than the receiver's own dynamic class, bypassing
// the ordinary lookup - SOM programs use this for an explicit
// super-dispatch to a named ancestor, not just the immediate superclass.
func objPerformInSuperclass(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	return performInSuperclass(h, inv, caller, args[0], args[1], args[2], nil)
}

func objPerformWithArgumentsInSuperclass(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	argHandle, ok := args[2].AsHandle(value.TagArray)
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "perform:withArguments:inSuperclass: arguments must be an Array"}
	}
	arr := h.Arrays.Get(gc.Handle(argHandle))
	return performInSuperclass(h, inv, caller, args[0], args[1], args[3], append([]value.Value{}, arr.Elements...))
}

func performInSuperclass(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, receiver, selVal, classVal value.Value, extraArgs []value.Value) (value.Value, error) {
	sel, err := selectorOf(inv, h, selVal)
	if err != nil {
		return value.Nil(), err
	}
	classHandle, ok := classVal.AsHandle(value.TagClass)
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "perform:inSuperclass: third argument must be a Class"}
	}
	target, ok := inv.Lookup(gc.Handle(classHandle), sel)
	if !ok {
		return value.Nil(), &somerr.DoesNotUnderstandError{ClassName: inv.ClassName(gc.Handle(classHandle)), Selector: sel}
	}
	full := append([]value.Value{receiver}, extraArgs...)
	return inv.InvokeMethod(caller, target, full)
}
