package universe_test

// End-to-end scenarios straight out of this runtime's design notes: each
// one is run through both engines independently (a fresh instance per
// engine, so one engine's field mutations can never leak into the
// other's result) and the two results are required to agree - the
// property that actually matters here is that inlining, primitive
// dispatch, and non-local returns behave identically whichever engine
// compiled and ran the method.

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/smogvm/pkg/astwalk"
	"github.com/kristofer/smogvm/pkg/gc"
	"github.com/kristofer/smogvm/pkg/objects"
	"github.com/kristofer/smogvm/pkg/primitives"
	"github.com/kristofer/smogvm/pkg/universe"
	"github.com/kristofer/smogvm/pkg/value"
	"github.com/kristofer/smogvm/pkg/vm"
)

func newTestUniverse(t *testing.T) *universe.Universe {
	t.Helper()
	u := universe.New()
	require.NoError(t, u.Bootstrap())
	require.NoError(t, primitives.LoadKernel(u, universe.EngineBoth))
	return u
}

// newInstance allocates a fresh instance of the named, already-loaded
// class - one per engine, so engines never share mutable instance state.
func newInstance(t *testing.T, u *universe.Universe, className string) value.Value {
	t.Helper()
	classVal, ok := u.Global(className)
	require.True(t, ok, "class %s not loaded", className)
	h, ok := classVal.AsHandle(value.TagClass)
	require.True(t, ok)
	class := u.Heap.Classes.Get(gc.Handle(h))
	return u.Heap.AllocInstance(gc.Handle(h), len(class.InstanceFields))
}

func bothInvokers(u *universe.Universe) (ast, vmEng objects.Invoker) {
	return astwalk.New(u), vm.New(u)
}

// runDoit wraps a single SOM expression as a throwaway method's body, the
// way the REPL does, loads it under both engines, and sends it to a
// fresh receiver on each.
func runDoit(t *testing.T, expr string) (astResult, vmResult value.Value) {
	t.Helper()
	u := newTestUniverse(t)
	src := "Doit = ( run = ( " + expr + " ) )"
	require.NoError(t, u.LoadSource(src, universe.EngineBoth))

	ai, vi := bothInvokers(u)
	astRecv := newInstance(t, u, "Doit")
	vmRecv := newInstance(t, u, "Doit")

	var err error
	astResult, err = ai.Send(nil, astRecv, "run", nil)
	require.NoError(t, err)
	vmResult, err = vi.Send(nil, vmRecv, "run", nil)
	require.NoError(t, err)
	return astResult, vmResult
}

// Scenario 1: `^ 3 + 8` -> integer 11.
func TestIntegerArithmetic(t *testing.T) {
	ast, vmRes := runDoit(t, "^ 3 + 8")
	for name, r := range map[string]value.Value{"ast": ast, "vm": vmRes} {
		i, ok := r.AsInteger()
		require.Truef(t, ok, "%s engine: expected integer, got %s", name, r.String())
		assert.Equal(t, int32(11), i, "%s engine", name)
	}
}

// A `^` taken inside an inlined ifTrue: body must unwind to the
// enclosing method rather than being swallowed as an engine error -
// Integer>>max: (kernel.go) is written exactly this way.
func TestNonLocalReturnInsideInlinedIf(t *testing.T) {
	ast, vmRes := runDoit(t, "^ 5 max: 3")
	for name, r := range map[string]value.Value{"ast": ast, "vm": vmRes} {
		i, ok := r.AsInteger()
		require.Truef(t, ok, "%s engine: expected integer, got %s", name, r.String())
		assert.Equal(t, int32(5), i, "%s engine", name)
	}
}

// Scenario 2: a deeply nested block's non-local return unwinds every
// intervening block frame and resumes the enclosing method, answering
// its receiver - not whatever `[...] value` would otherwise answer.
func TestNonLocalReturnThroughNestedBlocks(t *testing.T) {
	u := newTestUniverse(t)
	src := `NonLocalReturn = (
		testReturnSelf = (
			[ [ [ ^ self ] value ] value ] value.
			^ nil
		)
	)`
	require.NoError(t, u.LoadSource(src, universe.EngineBoth))

	ai, vi := bothInvokers(u)
	astRecv := newInstance(t, u, "NonLocalReturn")
	vmRecv := newInstance(t, u, "NonLocalReturn")

	astResult, err := ai.Send(nil, astRecv, "testReturnSelf", nil)
	require.NoError(t, err)
	vmResult, err := vi.Send(nil, vmRecv, "testReturnSelf", nil)
	require.NoError(t, err)

	assert.True(t, u.Heap.ValuesEqual(astResult, astRecv), "ast engine: non-local return should answer the enclosing method's receiver")
	assert.True(t, u.Heap.ValuesEqual(vmResult, vmRecv), "vm engine: non-local return should answer the enclosing method's receiver")
}

// Scenario 3: `to:do:` inlining plus IncLocal specialization sums 1..10.
func TestToDoInlining(t *testing.T) {
	ast, vmRes := runDoit(t, "| i | i := 0. 1 to: 10 do: [:x | i := i + x]. ^ i")
	for name, r := range map[string]value.Value{"ast": ast, "vm": vmRes} {
		i, ok := r.AsInteger()
		require.Truef(t, ok, "%s engine: expected integer, got %s", name, r.String())
		assert.Equal(t, int32(55), i, "%s engine", name)
	}
}

// Scenario 4: `Array new: 3 withAll: nil` answers a length-3 array of nils.
func TestArrayNewWithAll(t *testing.T) {
	ast, vmRes := runDoit(t, "^ Array new: 3 withAll: nil")
	for name, r := range map[string]value.Value{"ast": ast, "vm": vmRes} {
		require.Truef(t, r.IsArray(), "%s engine: expected array, got %s", name, r.String())
	}
}

// Scenario 5: object creation, primitive dispatch, and a hot loop -
// 1,000,000 sends of `inc` must each land on the same primitive-backed
// `+` and leave the counter at exactly that count. The block literal
// driving `timesRepeat:` is written in SOM source, not built from Go,
// since both engines only ever compile blocks as part of a method body.
func TestTimesRepeatHotLoop(t *testing.T) {
	const n = 1000000
	expr := `| c |
		c := Counter new.
		c init.
		` + strconv.Itoa(n) + ` timesRepeat: [ c inc ].
		^ c value`

	u := newTestUniverse(t)
	require.NoError(t, u.LoadSource(`Counter = (
		| count |
		init = ( count := 0 )
		inc = ( count := count + 1 )
		value = ( ^ count )
	)`, universe.EngineBoth))
	require.NoError(t, u.LoadSource("Doit = ( run = ( "+expr+" ) )", universe.EngineBoth))

	ai, vi := bothInvokers(u)
	astRecv := newInstance(t, u, "Doit")
	vmRecv := newInstance(t, u, "Doit")

	astResult, err := ai.Send(nil, astRecv, "run", nil)
	require.NoError(t, err)
	vmResult, err := vi.Send(nil, vmRecv, "run", nil)
	require.NoError(t, err)

	for name, r := range map[string]value.Value{"ast": astResult, "vm": vmResult} {
		i, ok := r.AsInteger()
		require.Truef(t, ok, "%s engine: expected integer, got %s", name, r.String())
		assert.Equal(t, int32(n), i, "%s engine", name)
	}
}

// ifNil:/ifNotNil: (and both-arm variants) use value-on-top semantics:
// the untaken branch answers the receiver itself, not nil.
func TestIfNilInlining(t *testing.T) {
	ast, vmRes := runDoit(t, "^ nil ifNil: [ 1 ]")
	for name, r := range map[string]value.Value{"ast": ast, "vm": vmRes} {
		i, ok := r.AsInteger()
		require.Truef(t, ok, "%s engine: expected integer, got %s", name, r.String())
		assert.Equal(t, int32(1), i, "%s engine", name)
	}

	ast, vmRes = runDoit(t, "^ 7 ifNil: [ 1 ]")
	for name, r := range map[string]value.Value{"ast": ast, "vm": vmRes} {
		i, ok := r.AsInteger()
		require.Truef(t, ok, "%s engine: expected integer, got %s", name, r.String())
		assert.Equal(t, int32(7), i, "%s engine", name)
	}

	ast, vmRes = runDoit(t, "^ 7 ifNotNil: [ 1 ]")
	for name, r := range map[string]value.Value{"ast": ast, "vm": vmRes} {
		i, ok := r.AsInteger()
		require.Truef(t, ok, "%s engine: expected integer, got %s", name, r.String())
		assert.Equal(t, int32(1), i, "%s engine", name)
	}

	ast, vmRes = runDoit(t, "^ nil ifNil: [ 1 ] ifNotNil: [ 2 ]")
	for name, r := range map[string]value.Value{"ast": ast, "vm": vmRes} {
		i, ok := r.AsInteger()
		require.Truef(t, ok, "%s engine: expected integer, got %s", name, r.String())
		assert.Equal(t, int32(1), i, "%s engine", name)
	}

	ast, vmRes = runDoit(t, "^ 7 ifNil: [ 1 ] ifNotNil: [ 2 ]")
	for name, r := range map[string]value.Value{"ast": ast, "vm": vmRes} {
		i, ok := r.AsInteger()
		require.Truef(t, ok, "%s engine: expected integer, got %s", name, r.String())
		assert.Equal(t, int32(2), i, "%s engine", name)
	}
}

// Scenario 6: the CLI's BenchmarkHarness invocation contract -
// System>>initialize: with ["BenchmarkHarness", "Bounce", "1", "1"]
// answers an Instance of BenchmarkHarness.
func TestBenchmarkHarnessInvocation(t *testing.T) {
	u := newTestUniverse(t)
	require.NoError(t, u.LoadSource("BenchmarkHarness = (\n)", universe.EngineBoth))

	ai, vi := bothInvokers(u)
	sysVal, ok := u.Global("system")
	require.True(t, ok)

	argv := []string{"BenchmarkHarness", "Bounce", "1", "1"}

	for name, inv := range map[string]objects.Invoker{"ast": ai, "vm": vi} {
		argsVal := u.Heap.AllocArray(len(argv))
		hd, _ := argsVal.AsHandle(value.TagArray)
		arr := u.Heap.Arrays.Get(gc.Handle(hd))
		for i, a := range argv {
			arr.Elements[i] = u.Heap.AllocString(a)
		}

		result, err := inv.Send(nil, sysVal, "initialize:", []value.Value{argsVal})
		require.NoErrorf(t, err, "%s engine", name)
		require.Truef(t, result.IsInstance(), "%s engine: expected Instance, got %s", name, result.String())

		resultClass := inv.ClassOf(result)
		harnessClassVal, _ := u.Global("BenchmarkHarness")
		harnessHandle, _ := harnessClassVal.AsHandle(value.TagClass)
		assert.Equalf(t, gc.Handle(harnessHandle), resultClass, "%s engine: result should be an instance of BenchmarkHarness", name)
	}
}

