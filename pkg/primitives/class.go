package primitives

import (
	"golang.org/x/exp/slices"

	"github.com/kristofer/smogvm/pkg/gc"
	"github.com/kristofer/smogvm/pkg/objects"
	"github.com/kristofer/smogvm/pkg/primitiveregistry"
	"github.com/kristofer/smogvm/pkg/somerr"
	"github.com/kristofer/smogvm/pkg/value"
)

// Every one of these is registered under "Object" and attached, in
// kernel.go's Object classfile, to Object's CLASS-SIDE method dictionary
// rather than any dedicated "Class" classfile: universe.lookupChain walks
// a class-side lookup up the ordinary superclass chain (Class.Super), and
// every user class's superclass chain bottoms out at Object, never at the
// shared Class/Metaclass pair those dispatch past (see
// universe.metaclassOf). Registering these reflective operations as a
// Class classfile's own instance methods instead would make them
// unreachable from an arbitrary class value.
func init() {
	R := primitiveregistry.Register
	R("Object", "new", clsNew)
	R("Object", "name", clsName)
	R("Object", "superclass", clsSuperclass)
	R("Object", "instanceFieldNames", clsInstanceFieldNames)
	R("Object", "methods", clsMethods)
	R("Object", "comment", clsComment)
}

func clsNew(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	classHandle, ok := args[0].AsHandle(value.TagClass)
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "new: receiver must be a Class"}
	}
	class := h.Classes.Get(gc.Handle(classHandle))
	return h.AllocInstance(gc.Handle(classHandle), len(class.InstanceFields)), nil
}

func clsName(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	classHandle, ok := args[0].AsHandle(value.TagClass)
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "name: receiver must be a Class"}
	}
	id := inv.Intern(inv.ClassName(gc.Handle(classHandle)))
	return value.NewSymbol(id), nil
}

func clsSuperclass(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	classHandle, ok := args[0].AsHandle(value.TagClass)
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "superclass: receiver must be a Class"}
	}
	class := h.Classes.Get(gc.Handle(classHandle))
	if !class.HasSuper {
		return value.Nil(), nil
	}
	return value.NewClass(uint32(class.Super)), nil
}

func clsInstanceFieldNames(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	classHandle, ok := args[0].AsHandle(value.TagClass)
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "instanceFieldNames: receiver must be a Class"}
	}
	class := h.Classes.Get(gc.Handle(classHandle))
	arrVal := h.AllocArray(len(class.InstanceFields))
	hd, _ := arrVal.AsHandle(value.TagArray)
	arr := h.Arrays.Get(gc.Handle(hd))
	for i, name := range class.InstanceFields {
		arr.Elements[i] = value.NewSymbol(inv.Intern(name))
	}
	return arrVal, nil
}

// clsMethods answers the class's own method selectors, sorted: Methods
// is a map, and `do:`-ing over an unsorted selector list would make
// doesNotUnderstand:'s respondsTo: probing (kernel.go's Object>>
// respondsTo:) observe a different iteration order on every run.
func clsMethods(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	classHandle, ok := args[0].AsHandle(value.TagClass)
	if !ok {
		return value.Nil(), &somerr.RuntimeError{Message: "methods: receiver must be a Class"}
	}
	class := h.Classes.Get(gc.Handle(classHandle))
	selectors := make([]string, 0, len(class.Methods))
	for selector := range class.Methods {
		selectors = append(selectors, selector)
	}
	slices.Sort(selectors)

	arrVal := h.AllocArray(len(selectors))
	hd, _ := arrVal.AsHandle(value.TagArray)
	arr := h.Arrays.Get(gc.Handle(hd))
	for i, selector := range selectors {
		arr.Elements[i] = value.NewSymbol(inv.Intern(selector))
	}
	return arrVal, nil
}

// comment has no backing kernel source comment table (classfiles don't
// preserve free text past parsing), so it always answers nil - a user
// class that wants one can still override the selector itself.
func clsComment(h *objects.Heap, inv objects.Invoker, caller *objects.Frame, args []value.Value) (value.Value, error) {
	return value.Nil(), nil
}
