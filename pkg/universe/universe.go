// Package universe owns the one mutable piece of global state a running
// program shares: the globals table (class names, and anything a method
// installs into it at runtime), the interner, the heap, and the core
// class set every SOM program can assume exists without defining it
// itself.
//
// Method lookup and super-send resolution live here too, rather than in
// either engine, because both the bytecode interpreter (package vm) and
// the tree walker (package astwalk) need exactly the same answer to "what
// does selector resolve to on this receiver's class" - including the
// monomorphic inline cache each call site keeps, which is a property of
// the call site, not of either engine's stack machinery.
package universe

import (
	"github.com/dolthub/swiss"

	"github.com/kristofer/smogvm/pkg/gc"
	"github.com/kristofer/smogvm/pkg/interner"
	"github.com/kristofer/smogvm/pkg/objects"
	"github.com/kristofer/smogvm/pkg/somerr"
	"github.com/kristofer/smogvm/pkg/value"
)

// CoreClasses holds the Handle of every class a bootstrapped universe
// guarantees to exist, named the way the globals table also names them
// (so `Integer` as a GlobalRef and u.Core.Integer resolve to the same
// Handle).
type CoreClasses struct {
	Object, Class, Metaclass                     gc.Handle
	Nil, Boolean, True, False                     gc.Handle
	Integer, Double                               gc.Handle
	String, Symbol, Char                          gc.Handle
	Array                                         gc.Handle
	Block, Block1, Block2, Block3                 gc.Handle
	Method, Primitive                             gc.Handle
	System                                        gc.Handle
}

// Universe is the root of a running program: heap, interner, globals, and
// the bootstrapped core classes.
type Universe struct {
	Heap    *objects.Heap
	Interns *interner.Interner
	Core    CoreClasses

	globals *swiss.Map[string, value.Value]

	// ClassPath holds classpath directories for callers. Nothing in this
	// package reads it, and a GlobalRef naming a class that is not yet in
	// globals does not load that class.
	ClassPath []string
}

// New returns a Universe with an empty heap and interner, and an empty
// globals table; call Bootstrap to populate Core and register every core
// class's global.
func New() *Universe {
	return &Universe{
		Heap:    objects.NewHeap(),
		Interns: interner.New(256),
		globals: swiss.NewMap[string, value.Value](128),
	}
}

// Global looks up a name in the globals table.
func (u *Universe) Global(name string) (value.Value, bool) {
	return u.globals.Get(name)
}

// SetGlobal installs or overwrites a global. Used both by Bootstrap (to
// register each core class) and by the `System>>global:put:` primitive.
func (u *Universe) SetGlobal(name string, v value.Value) {
	u.globals.Put(name, v)
}

// ResolveGlobalOrHook looks up name and returns an UnknownGlobalError when
// it is not registered. It sends no unknownGlobal: message, and neither
// engine's global read (astwalk's GlobalRef case, vm's pushGlobal and
// trivial-global path) sends one either, so the kernel's
// Object>>unknownGlobal: is not reached by a failed global read.
func (u *Universe) ResolveGlobalOrHook(name string) (value.Value, error) {
	if v, ok := u.globals.Get(name); ok {
		return v, nil
	}
	return value.Nil(), &somerr.UnknownGlobalError{Name: name}
}

// CollectGarbage runs a full Heap.Collect rooted at the given live
// frames, rewriting the globals table's pointer-tagged Values afterward
// since swiss.Map values, like Go map values, are not addressable.
func (u *Universe) CollectGarbage(frames []*objects.Frame) {
	u.Heap.Collect(objects.Roots{
		Frames: frames,
		MarkGlobals: func(visit func(value.Value)) {
			u.globals.Iter(func(_ string, v value.Value) bool {
				visit(v)
				return false
			})
		},
		RewriteGlobals: func(remap func(value.Value) value.Value) {
			type pair struct {
				k string
				v value.Value
			}
			var all []pair
			u.globals.Iter(func(k string, v value.Value) bool {
				all = append(all, pair{k, v})
				return false
			})
			for _, p := range all {
				u.globals.Put(p.k, remap(p.v))
			}
		},
	})
}
