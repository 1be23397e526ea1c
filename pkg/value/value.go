// Package value implements the NaN-boxed tagged value representation that
// both execution engines operate on.
//
// A Value is a single 64-bit word. Non-pointer values (nil, the `system`
// object, booleans, 32-bit integers, characters, interned symbols) and
// pointer values (big integers, strings, arrays, blocks, classes, instances,
// invokables) are both folded into the bit patterns of an IEEE-754 double:
// every Value that is not itself a legitimate double is encoded as one of
// the enormous space of bit patterns that would otherwise all mean NaN.
//
// Layout (s = sign, e = exponent, m = mantissa):
//
//	SEEEEEEEEEEEMMMM MMMMMMMMMMMMMMMMMMMMMMMMMMMMMMMMMMMMMMMMMMMMMMMM
//	0111111111111000 000...                  -> the one true double NaN
//	0111111111111xxx yyyyyyy...              -> xxx = immediate tag, yyy = payload
//	1111111111111xxx yyyyyyy...              -> xxx = pointer tag,   yyy = handle
//
// The top 16 bits are the tag field; the low 48 bits are the payload. The
// sign bit (bit 63) distinguishes an immediate (0) from a managed pointer
// (1). This is the same scheme som-rs uses; it buys the hot path (integers,
// doubles, nil, booleans) a representation that never needs a heap
// dereference to test or extract.
package value

import (
	"math"
	"strconv"
)

// CanonicalNaNBits is the single bit pattern used to represent an actual
// double NaN. Every double produced by NewDouble that is NaN is
// canonicalized to this pattern, satisfying the invariant that all NaNs
// compare bitwise-equal.
const CanonicalNaNBits uint64 = 0x7FF8000000000000

// baseTag is the bit pattern every non-double tag must have set: exponent
// bits all one, top mantissa bit set.
const baseTag uint64 = 0x7FF8

// cellBaseTag additionally sets the sign bit, marking a tag as a managed
// pointer (a "cell") rather than an immediate.
const cellBaseTag uint64 = 0x8000 | baseTag

// Tag values. Non-pointer (immediate) tags first, then pointer tags. Each
// occupies the low 3 bits available after baseTag/cellBaseTag, mirroring
// som-rs's bit assignment so the reindexing and dispatch logic ported
// alongside it lines up with the same constants.
const (
	TagNil       uint64 = 0b001 | baseTag
	TagSystem    uint64 = 0b010 | baseTag
	TagInteger   uint64 = 0b011 | baseTag
	TagBoolean   uint64 = 0b100 | baseTag
	TagSymbol    uint64 = 0b101 | baseTag
	TagChar      uint64 = 0b110 | baseTag
	TagString    uint64 = 0b001 | cellBaseTag
	TagBigInt    uint64 = 0b011 | cellBaseTag
	TagArray     uint64 = 0b010 | cellBaseTag
	TagBlock     uint64 = 0b100 | cellBaseTag
	TagClass     uint64 = 0b101 | cellBaseTag
	TagInstance  uint64 = 0b110 | cellBaseTag
	TagInvokable uint64 = 0b111 | cellBaseTag
)

const (
	tagShift      = 48
	tagExtraction = uint64(0xFFFF) << tagShift
	isPtrPattern  = cellBaseTag << tagShift
)

// Value is a NaN-boxed tagged 64-bit word. The zero Value is NOT nil (use
// Nil()): it is bit pattern 0, which decodes as the (non-canonical,
// non-NaN) double +0.0. Always construct Values through the constructors
// below.
type Value struct {
	encoded uint64
}

func fromTagPayload(tag, payload uint64) Value {
	return Value{encoded: CanonicalNaNBits | ((tag << tagShift) & tagExtraction) | (payload &^ tagExtraction)}
}

// FromBits wraps a raw bit pattern as a Value. Used by the GC and by tests
// that need to manufacture specific bit patterns.
func FromBits(bits uint64) Value { return Value{encoded: bits} }

// Bits returns the raw 64-bit encoding.
func (v Value) Bits() uint64 { return v.encoded }

// Predefined immediates. These are process-wide constants: every `nil`,
// `true`, `false`, and `system` value anywhere in a running universe has
// exactly this bit pattern.
var (
	Vnil    = fromTagPayload(TagNil, 0)
	Vtrue   = fromTagPayload(TagBoolean, 1)
	Vfalse  = fromTagPayload(TagBoolean, 0)
	Vsystem = fromTagPayload(TagSystem, 0)
)

// Nil returns the canonical nil value.
func Nil() Value { return Vnil }

// System returns the canonical `system` value.
func System() Value { return Vsystem }

// NewBoolean returns the canonical true or false value.
func NewBoolean(b bool) Value {
	if b {
		return Vtrue
	}
	return Vfalse
}

// NewInteger returns a tagged 32-bit integer value.
func NewInteger(i int32) Value {
	return fromTagPayload(TagInteger, uint64(uint32(i)))
}

// NewDouble returns a tagged double value, canonicalizing NaN to the single
// bit pattern every other NaN compares equal to.
func NewDouble(f float64) Value {
	if math.IsNaN(f) {
		return Value{encoded: CanonicalNaNBits}
	}
	return Value{encoded: math.Float64bits(f)}
}

// NewSymbol returns a tagged interned-symbol value. Symbol IDs fit in 32
// bits; the tag/predicate pair treats them identically regardless of
// whether the interner has grown past 16 bits.
func NewSymbol(id uint32) Value {
	return fromTagPayload(TagSymbol, uint64(id))
}

// NewChar returns a tagged character value.
func NewChar(c byte) Value {
	return fromTagPayload(TagChar, uint64(c))
}

// newPointer returns a tagged managed-pointer value. handle is the gc.Handle
// for the object, widened to 64 bits; the payload is sign-extended back out
// on extraction so arbitrary negative/high bits never leak into the tag
// field by accident (handles never use more than 32 bits in practice, but
// the encoding is defined generally, as in the source).
func newPointer(tag uint64, handle uint32) Value {
	return fromTagPayload(tag, uint64(handle))
}

// NewString, NewBigInt, NewArray, NewBlock, NewClass, NewInstance and
// NewInvokable wrap a gc.Handle (passed as a raw uint32 to avoid this
// package depending on package gc) into the matching pointer-tagged Value.
func NewString(handle uint32) Value    { return newPointer(TagString, handle) }
func NewBigInt(handle uint32) Value    { return newPointer(TagBigInt, handle) }
func NewArray(handle uint32) Value     { return newPointer(TagArray, handle) }
func NewBlock(handle uint32) Value     { return newPointer(TagBlock, handle) }
func NewClass(handle uint32) Value     { return newPointer(TagClass, handle) }
func NewInstance(handle uint32) Value  { return newPointer(TagInstance, handle) }
func NewInvokable(handle uint32) Value { return newPointer(TagInvokable, handle) }

// Tag returns the 16-bit tag field.
func (v Value) Tag() uint64 { return (v.encoded & tagExtraction) >> tagShift }

// Payload returns the low 48 payload bits, unextended.
func (v Value) Payload() uint64 { return v.encoded &^ tagExtraction }

// IsPtrType reports whether v holds a managed pointer (any of the cell
// tags), rather than an immediate.
func (v Value) IsPtrType() bool { return (v.encoded & isPtrPattern) == isPtrPattern }

// ExtractPointerBits returns the payload of a pointer-tagged value,
// sign-extended from bit 47 the way a real 48-bit pointer would be: shift
// the top 16 bits away, then arithmetic-shift them back so bits 47..63 all
// equal bit 47.
func (v Value) ExtractPointerBits() uint64 {
	return uint64((int64(v.encoded<<16) >> 16))
}

// Handle returns the gc.Handle encoded in a pointer-tagged Value's payload.
func (v Value) Handle() uint32 { return uint32(v.ExtractPointerBits()) }

// Predicates. Exactly one of IsInteger/IsDouble/IsNil/IsSystem/IsBoolean/
// IsSymbol/IsChar/IsPtrType is true for any Value, except that IsInteger
// and IsDouble never both hold.
func (v Value) IsNil() bool     { return v.Tag() == TagNil }
func (v Value) IsSystem() bool  { return v.Tag() == TagSystem }
func (v Value) IsInteger() bool { return v.Tag() == TagInteger }
func (v Value) IsBoolean() bool { return v.Tag() == TagBoolean }
func (v Value) IsSymbol() bool  { return v.Tag() == TagSymbol }
func (v Value) IsChar() bool    { return v.Tag() == TagChar }
func (v Value) IsString() bool  { return v.Tag() == TagString }
func (v Value) IsBigInt() bool  { return v.Tag() == TagBigInt }
func (v Value) IsArray() bool   { return v.Tag() == TagArray }
func (v Value) IsBlock() bool   { return v.Tag() == TagBlock }
func (v Value) IsClass() bool   { return v.Tag() == TagClass }
func (v Value) IsInstance() bool { return v.Tag() == TagInstance }
func (v Value) IsInvokable() bool { return v.Tag() == TagInvokable }

// IsDouble reports whether v is a legitimate double: any bit pattern that
// does not have the full "NaN tag" set, plus the one canonical NaN pattern
// itself.
func (v Value) IsDouble() bool {
	return (v.encoded&CanonicalNaNBits) != CanonicalNaNBits || v.encoded == CanonicalNaNBits
}

// AsInteger returns the payload as an int32 iff v is an integer.
func (v Value) AsInteger() (int32, bool) {
	if !v.IsInteger() {
		return 0, false
	}
	return int32(uint32(v.encoded)), true
}

// AsDouble returns v reinterpreted as a float64 iff v is a double.
func (v Value) AsDouble() (float64, bool) {
	if !v.IsDouble() {
		return 0, false
	}
	return math.Float64frombits(v.encoded), true
}

// AsBoolean returns the payload as a bool iff v is a boolean.
func (v Value) AsBoolean() (bool, bool) {
	if !v.IsBoolean() {
		return false, false
	}
	return v.encoded&1 == 1, true
}

// AsBooleanUnchecked returns the truthiness of a value already known to be
// boolean-tagged, without re-checking the tag. Used on the interpreter's
// hot conditional-jump path.
func (v Value) AsBooleanUnchecked() bool { return v.Payload() != 0 }

// AsSymbol returns the payload as a Symbol ID iff v is a symbol.
func (v Value) AsSymbol() (uint32, bool) {
	if !v.IsSymbol() {
		return 0, false
	}
	return uint32(v.encoded), true
}

// AsChar returns the payload as a byte iff v is a character.
func (v Value) AsChar() (byte, bool) {
	if !v.IsChar() {
		return 0, false
	}
	return byte(v.encoded), true
}

// AsHandle returns the pointer payload of v iff v holds a managed pointer
// of exactly the given tag.
func (v Value) AsHandle(tag uint64) (uint32, bool) {
	if v.Tag() != tag {
		return 0, false
	}
	return v.Handle(), true
}

// String renders a Value without a universe: package primitives'
// printString uses it for nil, booleans, integers, doubles, and
// characters. It never resolves symbols or object contents (that
// requires a universe), so a Symbol prints as "#<symbol>" and a
// pointer-typed value as "<ptr>".
func (v Value) String() string {
	switch {
	case v.IsNil():
		return "nil"
	case v.IsSystem():
		return "system"
	case v.IsBoolean():
		b, _ := v.AsBoolean()
		if b {
			return "true"
		}
		return "false"
	case v.IsInteger():
		i, _ := v.AsInteger()
		return strconv.FormatInt(int64(i), 10)
	case v.IsDouble():
		d, _ := v.AsDouble()
		return ftoa(d)
	case v.IsChar():
		c, _ := v.AsChar()
		return string(rune(c))
	case v.IsSymbol():
		return "#<symbol>"
	default:
		return "<ptr>"
	}
}

// Equal implements SOM's `==` identity/numeric-equality semantics for
// immediates. Bitwise-equal values are always equal (this is what makes all
// NaNs compare equal to each other, and what makes two interned symbols or
// two small integers compare equal without unpacking them). Failing that, a
// mixed int/double comparison is still numeric equality, matching the
// source's PartialEq impl. Pointer-tagged values (strings, big integers,
// arrays, ...) only compare equal here when they are literally the same
// handle; content equality for those (e.g. two distinct String objects
// holding "abc") is resolved one level up, in package objects, where the
// actual backing data is reachable.
func (v Value) Equal(other Value) bool {
	if v.encoded == other.encoded {
		return true
	}
	vi, vIsInt := v.AsInteger()
	oi, oIsInt := other.AsInteger()
	vd, vIsDouble := v.AsDouble()
	od, oIsDouble := other.AsDouble()
	switch {
	case vIsInt && oIsDouble:
		return float64(vi) == od
	case vIsDouble && oIsInt:
		return vd == float64(oi)
	case vIsDouble && oIsDouble:
		return vd == od
	default:
		return false
	}
}

func ftoa(f float64) string {
	// Shortest round-trip formatting; this is also the text a Double's
	// SOM-visible printString produces, through Value.String.
	return strconv.FormatFloat(f, 'g', -1, 64)
}
