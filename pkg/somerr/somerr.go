// Package somerr collects the error taxonomy shared by every compilation
// and execution stage: parse/compile errors, bootstrap errors, and the
// runtime errors a send, a primitive, or the interpreter loop itself can
// raise. Each is a plain struct implementing error; the two that carry an
// underlying cause (BootstrapError, PrimitiveError) expose it through
// Unwrap, so errors.Is/errors.As reach through to it; there is
// no dedicated error-handling or logging library anywhere in the
// dependency set this builds on, so sticking to errors/fmt.Errorf is the
// grounded choice here, not a gap.
package somerr

import "fmt"

// ParseError reports a lexical or syntactic problem found while parsing a
// classfile, tagged with source position.
type ParseError struct {
	Line    int
	Column  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Message)
}

// BootstrapError reports a failure while constructing the universe's core
// classes or loading the initial classpath - these are always fatal,
// since nothing can run without a complete core class set.
type BootstrapError struct {
	Class string
	Err   error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("bootstrap failed for class %q: %v", e.Class, e.Err)
}
func (e *BootstrapError) Unwrap() error { return e.Err }

// ClassNotFoundError reports a classpath lookup that found no matching
// .som file.
type ClassNotFoundError struct {
	Name string
}

func (e *ClassNotFoundError) Error() string {
	return fmt.Sprintf("class not found on classpath: %s", e.Name)
}

// DoesNotUnderstandError is raised when a send's selector has no matching
// method on the receiver's class or any of its superclasses, and the
// receiver's class (or one of its superclasses) has no user-overridden
// doesNotUnderstand:arguments: either (the default implementation raises
// this rather than looping).
type DoesNotUnderstandError struct {
	ClassName string
	Selector  string
}

func (e *DoesNotUnderstandError) Error() string {
	return fmt.Sprintf("%s does not understand #%s", e.ClassName, e.Selector)
}

// EscapedBlockError is raised when a non-local return targets a method
// frame that has already returned, and the receiver's class has no
// user-overridden escapedBlock: hook.
type EscapedBlockError struct {
	Selector string
}

func (e *EscapedBlockError) Error() string {
	return fmt.Sprintf("non-local return from escaped block in #%s", e.Selector)
}

// UnknownGlobalError is raised when a GlobalRef names something absent
// from the universe's globals table. No unknownGlobal: message is sent
// first.
type UnknownGlobalError struct {
	Name string
}

func (e *UnknownGlobalError) Error() string {
	return fmt.Sprintf("unknown global: %s", e.Name)
}

// PrimitiveError wraps a failure a native primitive implementation
// reported (wrong argument type, index out of bounds, division by zero,
// ...), tagged with the primitive's selector for error messages.
type PrimitiveError struct {
	Selector string
	Err      error
}

func (e *PrimitiveError) Error() string {
	return fmt.Sprintf("primitive #%s failed: %v", e.Selector, e.Err)
}
func (e *PrimitiveError) Unwrap() error { return e.Err }

// RuntimeError is a catch-all for failures that are not one of the above:
// interpreter-loop faults (a stack discipline violation, a malformed
// bytecode operand) and the argument errors primitives report (a wrong
// argument type, an index out of range, division by zero), which the
// engines wrap in a PrimitiveError.
type RuntimeError struct {
	Message string
}

func (e *RuntimeError) Error() string { return "runtime error: " + e.Message }
