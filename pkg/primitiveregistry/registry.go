// Package primitiveregistry is the name-based table package universe
// consults to bind a `<primitive>` method body to its native Go
// implementation.
//
// It exists as its own package, separate from both package primitives
// (which populates it via init) and package universe (which reads it
// while loading a classfile), purely to break the import cycle that
// would otherwise result: package primitives needs package objects (to
// allocate results) and package universe needs to look primitives up
// while building Invokables, but primitives implementations do not need
// anything universe-specific.
package primitiveregistry

import "github.com/kristofer/smogvm/pkg/objects"

var table = map[string]objects.PrimitiveFn{}

func key(className, selector string) string { return className + ">>" + selector }

// Register installs fn as the primitive implementation for
// className>>selector. Called from package primitives' init functions;
// re-registering the same key is a programming error and panics
// immediately rather than silently shadowing.
func Register(className, selector string, fn objects.PrimitiveFn) {
	k := key(className, selector)
	if _, exists := table[k]; exists {
		panic("primitiveregistry: duplicate registration for " + k)
	}
	table[k] = fn
}

// Lookup returns the registered primitive for className>>selector, if
// any.
func Lookup(className, selector string) (objects.PrimitiveFn, bool) {
	fn, ok := table[key(className, selector)]
	return fn, ok
}
