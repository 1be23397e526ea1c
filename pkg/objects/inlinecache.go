package objects

import "github.com/kristofer/smogvm/pkg/gc"

// InlineCache is one call site's monomorphic inline cache: the receiver
// class it last saw, and the Invokable that selector resolved to against
// that class. A hit short-circuits method lookup entirely; a miss
// overwrites both fields unconditionally, so a call site alternating
// between two receiver classes simply never gets a hit rather than
// growing into a polymorphic cache - the standard tradeoff for a
// two-word inline cache with no allocation.
//
// It lives here, rather than in package universe (which actually
// performs the lookup a miss triggers), so that both a bytecode.Method's
// per-instruction cache slots and an ast.Send node's single cache slot
// can hold one without either of those packages importing universe.
type InlineCache struct {
	Class     gc.Handle
	HasClass  bool
	Invokable gc.Handle
}
