// Package ollir defines the OLLIR intermediate representation.
// OLLIR is a linear three-address code: each method is an ordered list of
// instructions, control flow is expressed with labels, gotos and conditional
// branches, and every variable carries a type suffix (x.i32, a.array.i32).
package ollir

import "sort"

// --- Types ---

// Type is an OLLIR type: a base (i32, bool, V, String or a class name),
// optionally wrapped in one array level.
type Type struct {
	Base  string
	Array bool
}

// Common types
var (
	Int32    = Type{Base: "i32"}
	Bool     = Type{Base: "bool"}
	Void     = Type{Base: "V"}
	IntArray = Type{Base: "i32", Array: true}
)

func (t Type) String() string {
	if t.Array {
		return "array." + t.Base
	}
	return t.Base
}

// IsPrimitive reports whether values of the type are held as JVM ints
func (t Type) IsPrimitive() bool {
	return !t.Array && (t.Base == "i32" || t.Base == "bool")
}

// IsVoid reports whether the type is V
func (t Type) IsVoid() bool {
	return !t.Array && t.Base == "V"
}

// --- Elements ---

// Element is an instruction operand: a literal or a variable reference
type Element interface {
	implElement()
	ElemType() Type
}

// Literal is a constant such as 1.i32, 0.bool or "s".String
type Literal struct {
	Value string
	Type  Type
}

// Operand names a variable (local, parameter, field or this)
type Operand struct {
	Name string
	Type Type
}

// ArrayOperand is an indexed element of an array variable: a[i.i32].i32
type ArrayOperand struct {
	Name  string
	Index []Element
	Type  Type // element type
}

func (Literal) implElement()      {}
func (Operand) implElement()      {}
func (ArrayOperand) implElement() {}

func (l Literal) ElemType() Type      { return l.Type }
func (o Operand) ElemType() Type      { return o.Type }
func (a ArrayOperand) ElemType() Type { return a.Type }

// --- Operations ---

// OpKind is a unary or binary operator
type OpKind int

const (
	OpAdd OpKind = iota
	OpSub
	OpMul
	OpDiv
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe
	OpAnd // &&
	OpOr  // ||
	OpNot // !
	OpNeg // unary -
)

var opSymbols = map[OpKind]string{
	OpAdd: "+",
	OpSub: "-",
	OpMul: "*",
	OpDiv: "/",
	OpLt:  "<",
	OpLe:  "<=",
	OpGt:  ">",
	OpGe:  ">=",
	OpEq:  "==",
	OpNe:  "!=",
	OpAnd: "&&",
	OpOr:  "||",
	OpNot: "!",
	OpNeg: "-",
}

func (o OpKind) String() string {
	return opSymbols[o]
}

// IsComparison reports whether the operator produces a bool from two ints
func (o OpKind) IsComparison() bool {
	switch o {
	case OpLt, OpLe, OpGt, OpGe, OpEq, OpNe:
		return true
	}
	return false
}

// CallKind is the invocation form of a call instruction
type CallKind int

const (
	InvokeStatic CallKind = iota
	InvokeVirtual
	InvokeSpecial
	New
	ArrayLength
)

var callNames = map[CallKind]string{
	InvokeStatic:  "invokestatic",
	InvokeVirtual: "invokevirtual",
	InvokeSpecial: "invokespecial",
	New:           "new",
	ArrayLength:   "arraylength",
}

func (c CallKind) String() string {
	return callNames[c]
}

// --- Instruction Types ---

// Instruction is the interface for OLLIR instructions
type Instruction interface {
	implInstruction()
}

// Assign stores the value of Rhs into Dest (an Operand or ArrayOperand)
type Assign struct {
	Dest Element
	Type Type
	Rhs  Instruction
}

// SingleOp evaluates to a single element
type SingleOp struct {
	Operand Element
}

// UnaryOp applies a prefix operator
type UnaryOp struct {
	Op      OpKind
	Operand Element
	Type    Type
}

// BinaryOp applies an infix operator
type BinaryOp struct {
	Op    OpKind
	Left  Element
	Right Element
	Type  Type
}

// Call invokes a method, allocates an object or array, or reads an array length.
// Caller is the receiver object of invokevirtual/invokespecial and the array of
// arraylength; it is nil otherwise. Class names the target of invokestatic and new.
type Call struct {
	Kind       CallKind
	Caller     Element
	Class      string
	Method     string
	Args       []Element
	ReturnType Type
}

// GetField reads Object.Field
type GetField struct {
	Object Element
	Field  Operand
}

// PutField writes Value into Object.Field
type PutField struct {
	Object Element
	Field  Operand
	Value  Element
}

// Return leaves the method, with an optional value
type Return struct {
	Operand Element // nil for void returns
	Type    Type
}

// Goto is an unconditional jump
type Goto struct {
	Label string
}

// CondBranch jumps to Label when Cond evaluates to true and falls through otherwise
type CondBranch struct {
	Cond  Instruction // SingleOp, UnaryOp or BinaryOp
	Label string
}

// Marker methods for Instruction interface
func (Assign) implInstruction()     {}
func (SingleOp) implInstruction()   {}
func (UnaryOp) implInstruction()    {}
func (BinaryOp) implInstruction()   {}
func (Call) implInstruction()       {}
func (GetField) implInstruction()   {}
func (PutField) implInstruction()   {}
func (Return) implInstruction()     {}
func (Goto) implInstruction()       {}
func (CondBranch) implInstruction() {}

// --- Variable table ---

// VarKind classifies a variable table entry
type VarKind int

const (
	KindLocal VarKind = iota
	KindParameter
	KindField
	KindReceiver
)

var kindNames = map[VarKind]string{
	KindLocal:     "local",
	KindParameter: "parameter",
	KindField:     "field",
	KindReceiver:  "this",
}

func (k VarKind) String() string {
	return kindNames[k]
}

// Unassigned marks a descriptor that has no register yet
const Unassigned = -1

// Descriptor describes one variable of a method
type Descriptor struct {
	Kind     VarKind
	Register int
	Type     Type
}

// --- Class and Method ---

// Param is a formal parameter
type Param struct {
	Name string
	Type Type
}

// Method is one routine of a class
type Method struct {
	Name         string
	Access       string // public, private or empty
	IsStatic     bool
	IsConstruct  bool
	Params       []Param
	ReturnType   Type
	Instructions []Instruction
	Labels       map[string]int // label -> instruction index
	VarTable     map[string]*Descriptor
}

// Field is a class field
type Field struct {
	Name   string
	Access string
	Type   Type
}

// Class is a compilation unit
type Class struct {
	Name    string
	Super   string
	Imports []string // fully qualified, dot separated
	Fields  []Field
	Methods []*Method
}

// NewMethod creates a method with initialized label and variable maps
func NewMethod(name string) *Method {
	return &Method{
		Name:     name,
		Labels:   make(map[string]int),
		VarTable: make(map[string]*Descriptor),
	}
}

// LabelsAt returns the labels attached to instruction index i, sorted
func (m *Method) LabelsAt(i int) []string {
	var labels []string
	for name, idx := range m.Labels {
		if idx == i {
			labels = append(labels, name)
		}
	}
	sort.Strings(labels)
	return labels
}

// Method returns the method with the given name, or nil
func (c *Class) Method(name string) *Method {
	for _, m := range c.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}
