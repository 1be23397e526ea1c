// Package compiler resolves a parsed method/block body's free variable
// references against its enclosing scopes and fields, inlines the
// handful of control-flow selectors every SOM compiler special-cases, and
// emits bytecode for the resulting resolved tree.
//
// Resolution and inlining happen once, over the ast package's tree,
// before either execution engine sees the method: inlining a block
// literal folds its argument and locals directly into the enclosing
// scope's name lists at resolve time, so no separate reindexing pass is
// needed afterward (the source this is grounded on runs resolution and
// inlining as two passes, one of them rewriting already-assigned variable
// coordinates; doing the fold before any coordinate is assigned removes
// that rewrite entirely, for both engines at once).
package compiler

import "github.com/kristofer/smogvm/pkg/ast"

// scope tracks the argument and local names visible while resolving one
// method or (non-inlined) block body. Inlining a block literal appends
// its names to the scope that contains the send, rather than pushing a
// new scope, which is what makes the fold-at-resolve-time approach work.
type scope struct {
	parent *scope
	args   []string
	locals []string
}

func newMethodScope(argNames, localNames []string) *scope {
	return &scope{args: append([]string{"self"}, argNames...), locals: append([]string{}, localNames...)}
}

func newBlockScope(parent *scope, argNames, localNames []string) *scope {
	return &scope{parent: parent, args: append([]string{"self"}, argNames...), locals: append([]string{}, localNames...)}
}

// addLocal appends name as a new local of s and returns its index.
func (s *scope) addLocal(name string) int {
	s.locals = append(s.locals, name)
	return len(s.locals) - 1
}

// resolveName looks up name against s and its ancestor scopes. upIdx
// counts genuine (non-inlined) scope boundaries crossed; 0 means found in
// s itself.
func (s *scope) resolveName(name string) (ast.Expression, bool) {
	upIdx := 0
	for cur := s; cur != nil; cur = cur.parent {
		for i, a := range cur.args {
			if a == name {
				return &ast.ArgRef{UpIdx: upIdx, Idx: i}, true
			}
		}
		for i, l := range cur.locals {
			if l == name {
				if upIdx == 0 {
					return &ast.LocalVarRef{Idx: i}, true
				}
				return &ast.NonLocalVarRef{UpIdx: upIdx, Idx: i}, true
			}
		}
		upIdx++
	}
	return nil, false
}

// resolveAssignTarget is resolveName's counterpart for `name := value`.
func (s *scope) resolveAssignTarget(name string, value ast.Expression) (ast.Expression, bool) {
	upIdx := 0
	for cur := s; cur != nil; cur = cur.parent {
		for i, a := range cur.args {
			if a == name {
				return &ast.ArgAssign{UpIdx: upIdx, Idx: i, Value: value}, true
			}
		}
		for i, l := range cur.locals {
			if l == name {
				if upIdx == 0 {
					return &ast.LocalVarAssign{Idx: i, Value: value}, true
				}
				return &ast.NonLocalVarAssign{UpIdx: upIdx, Idx: i, Value: value}, true
			}
		}
		upIdx++
	}
	return nil, false
}

// numArgs/numLocals report the scope's current (post-inlining) slot
// counts, used once resolution of a method or top-level block body is
// complete to size its Frame.
func (s *scope) numArgs() int   { return len(s.args) }
func (s *scope) numLocals() int { return len(s.locals) }
