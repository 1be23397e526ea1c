package universe

import (
	"github.com/kristofer/smogvm/pkg/gc"
	"github.com/kristofer/smogvm/pkg/somerr"
	"github.com/kristofer/smogvm/pkg/value"
)

// coreClassSpec describes one class to build directly in Go during
// Bootstrap, rather than by parsing an embedded .som source file: the
// core classes are few, fixed, and load-bearing enough (every primitive
// dispatches against them) that constructing them as plain Go data is
// more reliable than round-tripping them through the classfile parser at
// startup, the same tradeoff the source's with_classpath bootstrap makes
// by hand-assembling its CoreClasses table before any user classpath is
// read.
type coreClassSpec struct {
	name       string
	superName  string // "" only for Object
	fields     []string
}

var coreSpecs = []coreClassSpec{
	{name: "Object"},
	{name: "Class", superName: "Object"},
	{name: "Metaclass", superName: "Class"},
	{name: "Nil", superName: "Object"},
	{name: "Boolean", superName: "Object"},
	{name: "True", superName: "Boolean"},
	{name: "False", superName: "Boolean"},
	{name: "Integer", superName: "Object"},
	{name: "Double", superName: "Object"},
	{name: "String", superName: "Object"},
	{name: "Symbol", superName: "String"},
	{name: "Char", superName: "Object"},
	{name: "Array", superName: "Object"},
	{name: "Block", superName: "Object"},
	{name: "Block1", superName: "Block"},
	{name: "Block2", superName: "Block"},
	{name: "Block3", superName: "Block"},
	{name: "Method", superName: "Object"},
	{name: "Primitive", superName: "Method"},
	{name: "System", superName: "Object"},
}

// Bootstrap constructs every core class and registers each one's global,
// populating u.Core. It must run exactly once, before any user classfile
// is loaded or any program executes.
func (u *Universe) Bootstrap() error {
	byName := map[string]gc.Handle{}
	for _, spec := range coreSpecs {
		handle, class := u.Heap.AllocClass(spec.name)
		class.InstanceFields = append([]string{}, spec.fields...)
		if spec.superName != "" {
			super, ok := byName[spec.superName]
			if !ok {
				return &somerr.BootstrapError{Class: spec.name, Err: &somerr.ClassNotFoundError{Name: spec.superName}}
			}
			class.Super = super
			class.HasSuper = true
		}
		byName[spec.name] = handle
		u.SetGlobal(spec.name, value.NewClass(uint32(handle)))
	}

	u.Core = CoreClasses{
		Object: byName["Object"], Class: byName["Class"], Metaclass: byName["Metaclass"],
		Nil: byName["Nil"], Boolean: byName["Boolean"], True: byName["True"], False: byName["False"],
		Integer: byName["Integer"], Double: byName["Double"],
		String: byName["String"], Symbol: byName["Symbol"], Char: byName["Char"],
		Array: byName["Array"],
		Block:  byName["Block"], Block1: byName["Block1"], Block2: byName["Block2"], Block3: byName["Block3"],
		Method: byName["Method"], Primitive: byName["Primitive"],
		System: byName["System"],
	}

	u.SetGlobal("nil", value.Nil())
	u.SetGlobal("true", value.NewBoolean(true))
	u.SetGlobal("false", value.NewBoolean(false))
	sysInstance := u.Heap.AllocInstance(u.Core.System, 0)
	u.SetGlobal("system", sysInstance)
	return nil
}

// ClassOf returns the Handle of v's class, resolving immediates against
// the bootstrapped core classes and pointer-tagged values against their
// managed Class field (Instance) or the matching core class (String,
// Array, Block1/2/3, ...).
func (u *Universe) ClassOf(v value.Value) gc.Handle {
	switch {
	case v.IsNil():
		return u.Core.Nil
	case v.IsInteger():
		return u.Core.Integer
	case v.IsDouble():
		return u.Core.Double
	case v.IsBoolean():
		b, _ := v.AsBoolean()
		if b {
			return u.Core.True
		}
		return u.Core.False
	case v.IsSymbol():
		return u.Core.Symbol
	case v.IsChar():
		return u.Core.Char
	case v.IsString():
		return u.Core.String
	case v.IsBigInt():
		return u.Core.Integer
	case v.IsArray():
		return u.Core.Array
	case v.IsBlock():
		h, _ := v.AsHandle(value.TagBlock)
		blk := u.Heap.Blocks.Get(gc.Handle(h))
		inv := u.Heap.Invokables.Get(blk.Method)
		switch inv.NumArgs {
		case 1:
			return u.Core.Block1
		case 2:
			return u.Core.Block2
		default:
			return u.Core.Block3
		}
	case v.IsInstance():
		h, _ := v.AsHandle(value.TagInstance)
		return u.Heap.Instances.Get(gc.Handle(h)).Class
	case v.IsClass():
		h, _ := v.AsHandle(value.TagClass)
		return u.metaclassOf(gc.Handle(h))
	case v.IsInvokable():
		return u.Core.Method
	default:
		return u.Core.Object
	}
}

// metaclassOf returns the class a Class value itself belongs to: in full
// SOM this is a dedicated per-class Metaclass instance; this runtime
// collapses every class's metaclass to the shared Metaclass core class.
// This is only ever consulted for reflection (`aClass class`) - an
// ordinary send to a Class value does not go through ClassOf at all, it
// resolves against that class's own ClassMethods chain directly via
// LookupClassSide (see dispatch.go and each engine's Send/dispatchSend),
// since collapsing every class to one shared Metaclass object would
// otherwise make every user class's class-side methods unreachable.
func (u *Universe) metaclassOf(gc.Handle) gc.Handle {
	return u.Core.Metaclass
}
