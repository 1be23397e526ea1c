package primitives

import "github.com/kristofer/smogvm/pkg/universe"

// kernelSources lists one classfile per core class, in the order
// Bootstrap's own coreSpecs table declares them - LoadKernelMethods
// doesn't actually require that ordering (every class it merges onto
// already exists as bare Go data before any of these run), but keeping
// the two tables in the same order makes it easy to eyeball that nothing
// Bootstrap built was left without kernel method bodies.
var kernelSources = []string{
	objectKernel,
	classReflectionKernel,
	nilKernel,
	booleanKernel,
	trueKernel,
	falseKernel,
	integerKernel,
	doubleKernel,
	stringKernel,
	symbolKernel,
	arrayKernel,
	blockKernel,
	block1Kernel,
	block2Kernel,
	block3Kernel,
	systemKernel,
}

// LoadKernel attaches every core class's method bodies - the primitive
// declarations that bind to this package's native Go functions, plus the
// ordinary SOM-level methods layered on top of them - to the bare Class
// objects Bootstrap already built. Must run once, after Bootstrap and
// before any user classpath is loaded.
func LoadKernel(u *universe.Universe, engine universe.Engine) error {
	for _, src := range kernelSources {
		if err := u.LoadKernelMethods(src, engine); err != nil {
			return err
		}
	}
	return nil
}

const objectKernel = `Object (
	= other = ( ^ self == other )
	~= other = ( ^ (self == other) not )
	~~ other = ( ^ (self == other) not )
	== other = primitive
	class = primitive
	hashcode = primitive
	objectSize = primitive
	halt = primitive
	isNil = ( ^ false )
	notNil = ( ^ true )
	ifNil: nilBlock = ( self isNil ifTrue: [ ^ nilBlock value ]. ^ self )
	ifNotNil: notNilBlock = ( self isNil ifTrue: [ ^ self ]. ^ notNilBlock value )
	ifNil: nilBlock ifNotNil: notNilBlock = ( self isNil ifTrue: [ ^ nilBlock value ]. ^ notNilBlock value )
	ifNotNil: notNilBlock ifNil: nilBlock = ( self isNil ifTrue: [ ^ nilBlock value ]. ^ notNilBlock value )
	isKindOf: aClass = (
		| c |
		c := self class.
		[ c notNil ] whileTrue: [
			(c == aClass) ifTrue: [ ^ true ].
			c := c superclass.
		].
		^ false
	)
	isMemberOf: aClass = ( ^ self class == aClass )
	respondsTo: aSymbol = (
		| found |
		found := false.
		self class methods do: [ :m | (m == aSymbol) ifTrue: [ found := true ] ].
		^ found
	)
	instVarAt: idx = primitive
	instVarAt: idx put: val = primitive
	instVarNamed: aName = primitive
	perform: sel = primitive
	perform: sel withArguments: argArray = primitive
	perform: sel inSuperclass: cls = primitive
	perform: sel withArguments: argArray inSuperclass: cls = primitive
	printString = ( ^ system printString: self )
	print = ( system print: self printString. ^ self )
	println = ( system print: self printString. system printNewline. ^ self )
	error: aString = ( system errorPrintln: aString. ^ self )
	doesNotUnderstand: aSymbol arguments: argArray = (
		system errorPrint: 'error: '.
		system errorPrint: self class name.
		system errorPrint: ' does not understand '.
		system errorPrintln: aSymbol.
		^ nil
	)
	unknownGlobal: aSymbol = (
		system errorPrint: 'error: unknown global '.
		system errorPrintln: aSymbol.
		^ nil
	)
	escapedBlock: aBlock = (
		system errorPrintln: 'error: non-local return from an escaped block'.
		^ nil
	)
	----
	new = primitive
	name = primitive
	superclass = primitive
	instanceFieldNames = primitive
	methods = primitive
	comment = primitive
)`

// classReflectionKernel's only job is to give the Class and Metaclass
// core classes themselves an ordinary Object-style instance protocol
// (they are classes, but also objects: `SomeClass class` must still
// understand `printString`/`==`/etc, which it already inherits from
// Object's own instance side - this file exists to document that no
// separate override is needed, and is otherwise empty on purpose).
const classReflectionKernel = `Class (
)`

const nilKernel = `Nil (
	isNil = ( ^ true )
	notNil = ( ^ false )
	printString = ( ^ 'nil' )
)`

const booleanKernel = `Boolean (
	xor: aBoolean = ( ^ self ~= aBoolean )
)`

const trueKernel = `True (
	ifTrue: trueBlock = ( ^ trueBlock value )
	ifFalse: falseBlock = ( ^ nil )
	ifTrue: trueBlock ifFalse: falseBlock = ( ^ trueBlock value )
	ifFalse: falseBlock ifTrue: trueBlock = ( ^ trueBlock value )
	and: aBlock = ( ^ aBlock value )
	or: aBlock = ( ^ true )
	not = ( ^ false )
	printString = ( ^ 'true' )
)`

const falseKernel = `False (
	ifTrue: trueBlock = ( ^ nil )
	ifFalse: falseBlock = ( ^ falseBlock value )
	ifTrue: trueBlock ifFalse: falseBlock = ( ^ falseBlock value )
	ifFalse: falseBlock ifTrue: trueBlock = ( ^ falseBlock value )
	and: aBlock = ( ^ false )
	or: aBlock = ( ^ aBlock value )
	not = ( ^ true )
	printString = ( ^ 'false' )
)`

const integerKernel = `Integer (
	+ other = primitive
	- other = primitive
	* other = primitive
	/ other = primitive
	// other = primitive
	% other = primitive
	rem: other = primitive
	& other = primitive
	<< other = primitive
	>>> other = primitive
	bitXor: other = primitive
	< other = primitive
	<= other = ( ^ (other < self) not )
	> other = ( ^ other < self )
	>= other = ( ^ (self < other) not )
	= other = primitive
	sqrt = primitive
	asString = primitive
	asDouble = primitive
	asInteger = primitive
	atRandom = primitive
	to: stop do: aBlock = primitive
	to: stop by: step do: aBlock = primitive
	downTo: stop do: aBlock = primitive
	downTo: stop by: step do: aBlock = primitive
	timesRepeat: aBlock = primitive
	max: other = ( (self > other) ifTrue: [ ^ self ]. ^ other )
	min: other = ( (self < other) ifTrue: [ ^ self ]. ^ other )
	abs = ( (self < 0) ifTrue: [ ^ 0 - self ]. ^ self )
	----
	fromString: aString = primitive
)`

const doubleKernel = `Double (
	+ other = primitive
	- other = primitive
	* other = primitive
	/ other = primitive
	< other = primitive
	<= other = ( ^ (other < self) not )
	> other = ( ^ other < self )
	>= other = ( ^ (self < other) not )
	= other = primitive
	sqrt = primitive
	round = primitive
	asInteger = primitive
	asString = primitive
	----
	fromString: aString = primitive
)`

const stringKernel = `String (
	concatenate: other = primitive
	asSymbol = primitive
	asInteger = primitive
	length = primitive
	= other = primitive
	hashcode = primitive
	isLetters = primitive
	isDigits = primitive
	isWhiteSpace = primitive
	primSubstringFrom: start to: stop = primitive
	primCharAt: idx = primitive
	, other = ( ^ self concatenate: other )
	isEmpty = ( ^ self length = 0 )
)`

const symbolKernel = `Symbol (
)`

const arrayKernel = `Array (
	at: idx = primitive
	at: idx put: val = primitive
	length = primitive
	do: aBlock = primitive
	isEmpty = ( ^ self length = 0 )
	----
	new: size = primitive
	new: size withAll: val = primitive
)`

const blockKernel = `Block (
	valueWithArguments: argArray = primitive
)`

const block1Kernel = `Block1 (
	value = primitive
)`

const block2Kernel = `Block2 (
	value: arg1 = primitive
)`

const block3Kernel = `Block3 (
	value: arg1 value: arg2 = primitive
	value: arg1 value: arg2 value: arg3 = primitive
)`

const systemKernel = `System (
	printString: anObject = primitive
	print: anObject = primitive
	printNewline = primitive
	errorPrint: anObject = primitive
	errorPrintln: anObject = primitive
	global: aSymbol = primitive
	global: aSymbol put: aValue = primitive
	hasGlobal: aSymbol = primitive
	exit: code = primitive
	ticks = primitive
	time = primitive
	fullGC = primitive
	initialize: args = (
		| className cls |
		className := args at: 1.
		cls := self global: className asSymbol.
		^ cls new
	)
)`
