package ollir

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Printer outputs OLLIR in its textual syntax
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new OLLIR printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintClass prints a complete compilation unit
func (p *Printer) PrintClass(c *Class) {
	for _, imp := range c.Imports {
		fmt.Fprintf(p.w, "import %s;\n", imp)
	}
	if len(c.Imports) > 0 {
		fmt.Fprintln(p.w)
	}

	fmt.Fprint(p.w, c.Name)
	if c.Super != "" {
		fmt.Fprintf(p.w, " extends %s", c.Super)
	}
	fmt.Fprintln(p.w, " {")

	for _, f := range c.Fields {
		fmt.Fprint(p.w, "    .field ")
		if f.Access != "" {
			fmt.Fprintf(p.w, "%s ", f.Access)
		}
		fmt.Fprintf(p.w, "%s.%s;\n", f.Name, f.Type)
	}

	for _, m := range c.Methods {
		fmt.Fprintln(p.w)
		p.PrintMethod(m)
	}
	fmt.Fprintln(p.w, "}")
}

// PrintMethod prints one method with its labels
func (p *Printer) PrintMethod(m *Method) {
	if m.IsConstruct {
		fmt.Fprint(p.w, "    .construct ")
	} else {
		fmt.Fprint(p.w, "    .method ")
		if m.Access != "" {
			fmt.Fprintf(p.w, "%s ", m.Access)
		}
		if m.IsStatic {
			fmt.Fprint(p.w, "static ")
		}
	}
	params := make([]string, len(m.Params))
	for i, param := range m.Params {
		params[i] = param.Name + "." + param.Type.String()
	}
	fmt.Fprintf(p.w, "%s(%s).%s {\n", m.Name, strings.Join(params, ", "), m.ReturnType)

	for i, instr := range m.Instructions {
		for _, label := range m.LabelsAt(i) {
			fmt.Fprintf(p.w, "    %s:\n", label)
		}
		fmt.Fprintf(p.w, "        %s;\n", FormatInstruction(instr))
	}
	for _, label := range m.LabelsAt(len(m.Instructions)) {
		fmt.Fprintf(p.w, "    %s:\n", label)
	}
	fmt.Fprintln(p.w, "    }")
}

// PrintRegisters prints the variable table of a method ordered by register
func (p *Printer) PrintRegisters(m *Method) {
	names := make([]string, 0, len(m.VarTable))
	for name, d := range m.VarTable {
		if d.Kind != KindField {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := m.VarTable[names[i]].Register, m.VarTable[names[j]].Register
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})

	fmt.Fprintf(p.w, "%s:\n", m.Name)
	for _, name := range names {
		d := m.VarTable[name]
		if d.Register == Unassigned {
			fmt.Fprintf(p.w, "  %-12s %-9s -\n", name, d.Kind)
			continue
		}
		fmt.Fprintf(p.w, "  %-12s %-9s r%d\n", name, d.Kind, d.Register)
	}
}

// FormatInstruction renders a single instruction without the trailing ';'
func FormatInstruction(instr Instruction) string {
	switch i := instr.(type) {
	case Assign:
		return fmt.Sprintf("%s :=.%s %s", FormatElement(i.Dest), i.Type, FormatInstruction(i.Rhs))
	case SingleOp:
		return FormatElement(i.Operand)
	case UnaryOp:
		return fmt.Sprintf("%s.%s %s", i.Op, i.Type, FormatElement(i.Operand))
	case BinaryOp:
		return fmt.Sprintf("%s %s.%s %s", FormatElement(i.Left), i.Op, i.Type, FormatElement(i.Right))
	case Call:
		return formatCall(i)
	case GetField:
		return fmt.Sprintf("getfield(%s, %s).%s", FormatElement(i.Object), FormatElement(i.Field), i.Field.Type)
	case PutField:
		return fmt.Sprintf("putfield(%s, %s, %s).V", FormatElement(i.Object), FormatElement(i.Field), FormatElement(i.Value))
	case Return:
		if i.Operand == nil {
			return fmt.Sprintf("ret.%s", i.Type)
		}
		return fmt.Sprintf("ret.%s %s", i.Type, FormatElement(i.Operand))
	case Goto:
		return "goto " + i.Label
	case CondBranch:
		return fmt.Sprintf("if (%s) goto %s", FormatInstruction(i.Cond), i.Label)
	default:
		return "???"
	}
}

func formatCall(c Call) string {
	var args []string
	switch c.Kind {
	case New:
		if c.Class == "" {
			args = append(args, "array")
		} else {
			args = append(args, c.Class)
		}
	case ArrayLength:
		args = append(args, FormatElement(c.Caller))
	case InvokeStatic:
		args = append(args, c.Class, fmt.Sprintf("%q", c.Method))
	default:
		args = append(args, FormatElement(c.Caller), fmt.Sprintf("%q", c.Method))
	}
	for _, a := range c.Args {
		args = append(args, FormatElement(a))
	}
	return fmt.Sprintf("%s(%s).%s", c.Kind, strings.Join(args, ", "), c.ReturnType)
}

// FormatElement renders an element with its type suffix
func FormatElement(e Element) string {
	switch el := e.(type) {
	case Literal:
		if el.Type.Base == "String" && !el.Type.Array {
			return fmt.Sprintf("%q.String", el.Value)
		}
		return el.Value + "." + el.Type.String()
	case Operand:
		if el.Type == (Type{}) {
			return el.Name
		}
		return el.Name + "." + el.Type.String()
	case ArrayOperand:
		idx := make([]string, len(el.Index))
		for i, e := range el.Index {
			idx[i] = FormatElement(e)
		}
		return fmt.Sprintf("%s[%s].%s", el.Name, strings.Join(idx, ", "), el.Type)
	default:
		return "???"
	}
}
