package jasmin

import (
	"fmt"
	"strconv"

	"github.com/raymyers/ralph-jmm/pkg/ollir"
)

var arithOps = map[ollir.OpKind]string{
	ollir.OpAdd: "iadd",
	ollir.OpSub: "isub",
	ollir.OpMul: "imul",
	ollir.OpDiv: "idiv",
	ollir.OpAnd: "iand",
	ollir.OpOr:  "ior",
}

var compareJumps = map[ollir.OpKind]string{
	ollir.OpLt: "if_icmplt",
	ollir.OpLe: "if_icmple",
	ollir.OpGt: "if_icmpgt",
	ollir.OpGe: "if_icmpge",
	ollir.OpEq: "if_icmpeq",
	ollir.OpNe: "if_icmpne",
}

// emitInstruction emits one statement. Values it leaves on the stack are
// popped by the caller.
func (g *Generator) emitInstruction(instr ollir.Instruction) {
	switch i := instr.(type) {
	case ollir.Assign:
		g.emitAssign(i)
	case ollir.PutField:
		g.emitPutField(i)
	case ollir.Return:
		g.emitReturn(i)
	case ollir.Goto:
		g.emit("goto %s", i.Label)
	case ollir.CondBranch:
		g.emitBranch(i)
	default:
		g.emitValue(instr)
	}
}

// emitConstruction fuses "x := new(C); invokespecial(x, "<init>")" into
// new/dup/invokespecial/astore. It reports whether the pair was consumed.
func (g *Generator) emitConstruction(m *ollir.Method, i int) bool {
	if i+1 >= len(m.Instructions) || len(m.LabelsAt(i+1)) > 0 {
		return false
	}
	assign, ok := m.Instructions[i].(ollir.Assign)
	if !ok {
		return false
	}
	dest, ok := assign.Dest.(ollir.Operand)
	if !ok {
		return false
	}
	alloc, ok := assign.Rhs.(ollir.Call)
	if !ok || alloc.Kind != ollir.New || alloc.Class == "" {
		return false
	}
	init, ok := m.Instructions[i+1].(ollir.Call)
	if !ok || init.Kind != ollir.InvokeSpecial || init.Method != "<init>" {
		return false
	}
	if caller, ok := init.Caller.(ollir.Operand); !ok || caller.Name != dest.Name {
		return false
	}

	class := g.classPath(alloc.Class)
	g.emit("new %s", class)
	g.emit("dup")
	g.push(2)
	types := g.loadArgs(init.Args)
	g.emit("invokespecial %s/<init>%s", class, g.methodDescriptor(types, ollir.Void))
	g.pop(1 + len(init.Args))
	g.emit("%s", slotInstr("astore", g.register(dest.Name)))
	g.pop(1)
	return true
}

func (g *Generator) emitAssign(a ollir.Assign) {
	switch dest := a.Dest.(type) {
	case ollir.ArrayOperand:
		g.loadArrayRef(dest)
		g.load(dest.Index[0])
		g.emitValue(a.Rhs)
		g.emit("%sastore", typePrefix(dest.Type))
		g.pop(3)
	case ollir.Operand:
		if g.emitIncrement(dest, a.Rhs) {
			return
		}
		g.emitValue(a.Rhs)
		g.emit("%s", slotInstr(typePrefix(dest.Type)+"store", g.register(dest.Name)))
		g.pop(1)
	}
}

// emitIncrement lowers x := x + c, x := c + x and x := x - c to iinc
// when c fits in a signed byte.
func (g *Generator) emitIncrement(dest ollir.Operand, rhs ollir.Instruction) bool {
	bin, ok := rhs.(ollir.BinaryOp)
	if !ok || dest.Type != ollir.Int32 {
		return false
	}
	var lit ollir.Literal
	switch {
	case bin.Op != ollir.OpAdd && bin.Op != ollir.OpSub:
		return false
	case isVar(bin.Left, dest.Name) && isLiteral(bin.Right):
		lit = bin.Right.(ollir.Literal)
	case bin.Op == ollir.OpAdd && isLiteral(bin.Left) && isVar(bin.Right, dest.Name):
		lit = bin.Left.(ollir.Literal)
	default:
		return false
	}
	n, err := strconv.Atoi(lit.Value)
	if err != nil {
		return false
	}
	if bin.Op == ollir.OpSub {
		n = -n
	}
	if n < -128 || n > 127 {
		return false
	}
	g.emit("iinc %d %d", g.register(dest.Name), n)
	return true
}

func isVar(e ollir.Element, name string) bool {
	op, ok := e.(ollir.Operand)
	return ok && op.Name == name
}

func isLiteral(e ollir.Element) bool {
	_, ok := e.(ollir.Literal)
	return ok
}

// emitValue emits an expression that leaves at most one value on the stack
func (g *Generator) emitValue(instr ollir.Instruction) {
	switch i := instr.(type) {
	case ollir.SingleOp:
		g.load(i.Operand)
	case ollir.UnaryOp:
		g.load(i.Operand)
		if i.Op == ollir.OpNot {
			g.emit("iconst_1")
			g.push(1)
			g.emit("ixor")
			g.pop(1)
		} else {
			g.emit("ineg")
		}
	case ollir.BinaryOp:
		g.emitBinary(i)
	case ollir.Call:
		g.emitCall(i)
	case ollir.GetField:
		g.load(i.Object)
		g.emit("getfield %s/%s %s", g.owner(i.Object), i.Field.Name, g.descriptor(i.Field.Type))
	}
}

func (g *Generator) emitBinary(b ollir.BinaryOp) {
	g.load(b.Left)
	g.load(b.Right)
	if op, ok := arithOps[b.Op]; ok {
		g.emit("%s", op)
		g.pop(1)
		return
	}

	n := g.nextLabel()
	trueLabel := fmt.Sprintf("cmp_true_%d", n)
	endLabel := fmt.Sprintf("cmp_end_%d", n)
	g.emit("%s %s", compareJumps[b.Op], trueLabel)
	g.pop(2)
	g.emit("iconst_0")
	g.emit("goto %s", endLabel)
	fmt.Fprintf(g.body, "%s:\n", trueLabel)
	g.emit("iconst_1")
	fmt.Fprintf(g.body, "%s:\n", endLabel)
	g.push(1)
}

func (g *Generator) emitBranch(b ollir.CondBranch) {
	switch c := b.Cond.(type) {
	case ollir.BinaryOp:
		if jump, ok := compareJumps[c.Op]; ok {
			g.load(c.Left)
			g.load(c.Right)
			g.emit("%s %s", jump, b.Label)
			g.pop(2)
			return
		}
	case ollir.UnaryOp:
		if c.Op == ollir.OpNot {
			g.load(c.Operand)
			g.emit("ifeq %s", b.Label)
			g.pop(1)
			return
		}
	}
	g.emitValue(b.Cond)
	g.emit("ifne %s", b.Label)
	g.pop(1)
}

func (g *Generator) emitCall(c ollir.Call) {
	switch c.Kind {
	case ollir.New:
		if c.Class != "" {
			g.emit("new %s", g.classPath(c.Class))
			g.push(1)
			return
		}
		for _, a := range c.Args {
			g.load(a)
		}
		switch elem := c.ReturnType.Base; elem {
		case "i32":
			g.emit("newarray int")
		case "bool":
			g.emit("newarray boolean")
		case "String":
			g.emit("anewarray java/lang/String")
		default:
			g.emit("anewarray %s", g.classPath(elem))
		}
		g.pop(len(c.Args))
		g.push(1)
		return
	case ollir.ArrayLength:
		g.load(c.Caller)
		g.emit("arraylength")
		return
	}

	var owner string
	consumed := len(c.Args)
	if c.Kind == ollir.InvokeStatic {
		owner = g.classPath(c.Class)
	} else {
		g.load(c.Caller)
		consumed++
		owner = g.owner(c.Caller)
		if c.Kind == ollir.InvokeSpecial && c.Method == "<init>" && isVar(c.Caller, ollir.ReceiverName) && g.method.IsConstruct {
			owner = g.superPath()
		}
	}
	types := g.loadArgs(c.Args)
	g.emit("%s %s/%s%s", c.Kind, owner, c.Method, g.methodDescriptor(types, c.ReturnType))
	g.pop(consumed)
	if !c.ReturnType.IsVoid() {
		g.push(1)
	}
}

func (g *Generator) emitPutField(p ollir.PutField) {
	g.load(p.Object)
	g.load(p.Value)
	g.emit("putfield %s/%s %s", g.owner(p.Object), p.Field.Name, g.descriptor(p.Field.Type))
	g.pop(2)
}

func (g *Generator) emitReturn(r ollir.Return) {
	if r.Operand == nil {
		g.emit("return")
		return
	}
	g.load(r.Operand)
	g.emit("%sreturn", typePrefix(r.Type))
	g.pop(1)
}

// owner returns the class path of the object an element refers to
func (g *Generator) owner(e ollir.Element) string {
	if isVar(e, ollir.ReceiverName) {
		return g.class.Name
	}
	return g.classPath(e.ElemType().Base)
}

func (g *Generator) loadArgs(args []ollir.Element) []ollir.Type {
	types := make([]ollir.Type, len(args))
	for i, a := range args {
		g.load(a)
		types[i] = a.ElemType()
	}
	return types
}

func (g *Generator) load(e ollir.Element) {
	switch el := e.(type) {
	case ollir.Literal:
		g.loadLiteral(el)
	case ollir.Operand:
		g.emit("%s", slotInstr(typePrefix(el.Type)+"load", g.register(el.Name)))
		g.push(1)
	case ollir.ArrayOperand:
		g.loadArrayRef(el)
		g.load(el.Index[0])
		g.emit("%saload", typePrefix(el.Type))
		g.pop(1)
	}
}

func (g *Generator) loadArrayRef(a ollir.ArrayOperand) {
	g.emit("%s", slotInstr("aload", g.register(a.Name)))
	g.push(1)
}

func (g *Generator) loadLiteral(l ollir.Literal) {
	g.push(1)
	if l.Type.Base == "String" && !l.Type.Array {
		g.emit("ldc %q", l.Value)
		return
	}
	value := l.Value
	switch value {
	case "true":
		value = "1"
	case "false":
		value = "0"
	}
	n, err := strconv.Atoi(value)
	switch {
	case err != nil:
		g.emit("ldc %s", value)
	case n == -1:
		g.emit("iconst_m1")
	case n >= 0 && n <= 5:
		g.emit("iconst_%d", n)
	case n >= -128 && n <= 127:
		g.emit("bipush %d", n)
	case n >= -32768 && n <= 32767:
		g.emit("sipush %d", n)
	default:
		g.emit("ldc %d", n)
	}
}

func (g *Generator) nextLabel() int {
	g.labelCount++
	return g.labelCount
}
