package ollir

// ReceiverName is the implicit object reference of instance methods
const ReceiverName = "this"

// BuildVarTable fills m.VarTable from the method parameters and every variable
// named by the instructions. The receiver takes register 0 in instance methods
// and parameters follow it in declaration order. Locals are left Unassigned.
// Fields are only reachable through getfield/putfield, so a bare operand that
// shares a field's name is a local.
func BuildVarTable(c *Class, m *Method) {
	m.VarTable = make(map[string]*Descriptor)

	reg := 0
	if !m.IsStatic {
		m.VarTable[ReceiverName] = &Descriptor{Kind: KindReceiver, Register: 0, Type: Type{Base: c.Name}}
		reg = 1
	}
	for _, p := range m.Params {
		m.VarTable[p.Name] = &Descriptor{Kind: KindParameter, Register: reg, Type: p.Type}
		reg++
	}

	for _, instr := range m.Instructions {
		visitInstruction(instr, func(name string, t Type) {
			if _, ok := m.VarTable[name]; ok {
				return
			}
			m.VarTable[name] = &Descriptor{Kind: KindLocal, Register: Unassigned, Type: t}
		})
	}
}

// FirstLocalRegister is the lowest register index available to locals:
// the receiver (instance methods only) and the parameters come first.
func (m *Method) FirstLocalRegister() int {
	n := len(m.Params)
	if !m.IsStatic {
		n++
	}
	return n
}

// AssignSequentialRegisters gives every local its own register in order of
// first appearance. This is the numbering used when allocation is skipped.
func AssignSequentialRegisters(m *Method) {
	reg := m.FirstLocalRegister()
	seen := make(map[string]bool)
	for _, instr := range m.Instructions {
		visitInstruction(instr, func(name string, _ Type) {
			d, ok := m.VarTable[name]
			if !ok || d.Kind != KindLocal || seen[name] {
				return
			}
			seen[name] = true
			d.Register = reg
			reg++
		})
	}
}

// MaxRegister returns the highest register index in the variable table,
// or -1 when no variable has a register.
func (m *Method) MaxRegister() int {
	max := -1
	for _, d := range m.VarTable {
		if d.Kind != KindField && d.Register > max {
			max = d.Register
		}
	}
	return max
}

// visitInstruction calls fn for every variable name referenced by instr,
// in source order. Field names inside getfield/putfield are not variables.
func visitInstruction(instr Instruction, fn func(name string, t Type)) {
	switch i := instr.(type) {
	case Assign:
		visitElement(i.Dest, fn)
		visitInstruction(i.Rhs, fn)
	case SingleOp:
		visitElement(i.Operand, fn)
	case UnaryOp:
		visitElement(i.Operand, fn)
	case BinaryOp:
		visitElement(i.Left, fn)
		visitElement(i.Right, fn)
	case Call:
		visitElement(i.Caller, fn)
		for _, a := range i.Args {
			visitElement(a, fn)
		}
	case GetField:
		visitElement(i.Object, fn)
	case PutField:
		visitElement(i.Object, fn)
		visitElement(i.Value, fn)
	case Return:
		visitElement(i.Operand, fn)
	case CondBranch:
		visitInstruction(i.Cond, fn)
	}
}

func visitElement(e Element, fn func(name string, t Type)) {
	switch el := e.(type) {
	case Operand:
		fn(el.Name, el.Type)
	case ArrayOperand:
		fn(el.Name, Type{Base: el.Type.Base, Array: true})
		for _, idx := range el.Index {
			visitElement(idx, fn)
		}
	}
}
