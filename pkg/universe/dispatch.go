package universe

import (
	"github.com/kristofer/smogvm/pkg/gc"
	"github.com/kristofer/smogvm/pkg/objects"
)

// Lookup resolves selector on receiverClass: InlineCache hit first, then
// a walk up the superclass chain, updating the cache on a hit. ok is
// false when no class in the chain defines selector (a DoesNotUnderstand
// candidate).
func (u *Universe) Lookup(ic *objects.InlineCache, receiverClass gc.Handle, selector string) (gc.Handle, bool) {
	if ic != nil && ic.HasClass && ic.Class == receiverClass {
		return ic.Invokable, true
	}
	inv, ok := u.lookupChain(receiverClass, selector, false)
	if ok && ic != nil {
		ic.Class, ic.HasClass, ic.Invokable = receiverClass, true, inv
	}
	return inv, ok
}

// LookupClassSide resolves selector against receiverClass's class-side
// (ClassMethods) dictionary chain, for a message sent directly to a Class
// value.
func (u *Universe) LookupClassSide(ic *objects.InlineCache, receiverClass gc.Handle, selector string) (gc.Handle, bool) {
	if ic != nil && ic.HasClass && ic.Class == receiverClass {
		return ic.Invokable, true
	}
	inv, ok := u.lookupChain(receiverClass, selector, true)
	if ok && ic != nil {
		ic.Class, ic.HasClass, ic.Invokable = receiverClass, true, inv
	}
	return inv, ok
}

func (u *Universe) lookupChain(class gc.Handle, selector string, classSide bool) (gc.Handle, bool) {
	for {
		c := u.Heap.Classes.Get(class)
		dict := c.Methods
		if classSide {
			dict = c.ClassMethods
		}
		if inv, ok := dict[selector]; ok {
			return inv, true
		}
		if !c.HasSuper {
			return 0, false
		}
		class = c.Super
	}
}

// LookupSuper resolves selector starting one class above holderClass (the
// class that defined the method performing the super-send), rather than
// starting at the dynamic receiver's class - the standard SOM super-send
// semantics. Super-sends never consult or populate an InlineCache: their
// receiver class is already statically known at compile time (it is
// holderClass's superclass), so there is nothing for a cache to
// speculate about.
func (u *Universe) LookupSuper(holderClass gc.Handle, selector string, classSide bool) (gc.Handle, bool) {
	c := u.Heap.Classes.Get(holderClass)
	if !c.HasSuper {
		return 0, false
	}
	return u.lookupChain(c.Super, selector, classSide)
}

// ClassName returns a class's name, for error messages and printString.
func (u *Universe) ClassName(class gc.Handle) string {
	return u.Heap.Classes.Get(class).Name
}
