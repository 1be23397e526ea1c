// Package interner maps selector and identifier strings to small integer
// symbol IDs.
//
// Every selector ("printNl", "at:put:", "+"), every global name, and every
// field name that flows through the compiler and the universe is interned
// exactly once. Downstream components (the NaN-boxed Value, the bytecode
// literal pool, the globals table) then only ever carry an Interned ID
// around, which is cheap to copy, cheap to compare, and cheap to pack into
// a tagged 64-bit value.
//
// Interning is monotonic: symbols are never evicted, and the same string
// always maps back to the same ID for the lifetime of the process. This
// mirrors the universe's other mutable-but-monotonic piece of global state,
// the globals table (see package universe).
package interner

import "github.com/dolthub/swiss"

// Symbol is a small integer handle for an interned string. SYMBOL_TAG values
// in package value carry a Symbol in their low 32 bits (16 in the common
// case, 32 when the interner has grown beyond 2^16 entries).
type Symbol uint32

// Interner interns strings into Symbols and looks them back up.
//
// The forward direction (string -> Symbol) is backed by a swiss-table map,
// chosen for the same reason the universe uses one for globals: lookups on
// this map sit on the hot path of every message send (every selector is
// resolved through it during compilation, and some primitives intern at
// runtime), so a low-overhead open-addressing map pays for itself.
type Interner struct {
	bySymbol []string
	byString *swiss.Map[string, Symbol]
}

// New returns an empty interner with room for capacity strings before its
// backing map needs to grow.
func New(capacity int) *Interner {
	if capacity < 8 {
		capacity = 8
	}
	return &Interner{
		bySymbol: make([]string, 0, capacity),
		byString: swiss.NewMap[string, Symbol](uint32(capacity)),
	}
}

// Intern returns the Symbol for s, allocating a new one if s has not been
// seen before.
func (in *Interner) Intern(s string) Symbol {
	if sym, ok := in.byString.Get(s); ok {
		return sym
	}
	sym := Symbol(len(in.bySymbol))
	in.bySymbol = append(in.bySymbol, s)
	in.byString.Put(s, sym)
	return sym
}

// Lookup returns the string behind a Symbol. It panics if the Symbol was
// never produced by this interner: that can only happen from a programming
// error (a stale Symbol crossing into a different Universe), not from user
// input.
func (in *Interner) Lookup(sym Symbol) string {
	return in.bySymbol[int(sym)]
}

// ReverseLookup returns the Symbol already assigned to s, if any, without
// interning it, so a caller can ask whether a name has been seen without
// forcing it into existence.
func (in *Interner) ReverseLookup(s string) (Symbol, bool) {
	return in.byString.Get(s)
}

// Len returns the number of distinct interned strings.
func (in *Interner) Len() int {
	return len(in.bySymbol)
}
