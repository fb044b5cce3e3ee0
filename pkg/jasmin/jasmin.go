// Package jasmin emits Jasmin assembly for an allocated OLLIR class.
//
// Every local must already hold a register (either from regalloc or from the
// sequential numbering); a missing register is reported and the affected
// method is still emitted so that all problems surface in one run.
package jasmin

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/raymyers/ralph-jmm/pkg/ollir"
	"github.com/raymyers/ralph-jmm/pkg/report"
)

const defaultSuper = "java/lang/Object"

// Generator holds the emission state of one class
type Generator struct {
	class   *ollir.Class
	imports map[string]string // simple class name -> slash path
	reports []report.Report

	out *bytes.Buffer

	// per method
	method     *ollir.Method
	body       *bytes.Buffer
	stack      int
	maxStack   int
	unassigned map[string]bool

	labelCount int
}

// NewGenerator creates a generator for c
func NewGenerator(c *ollir.Class) *Generator {
	g := &Generator{
		class:   c,
		imports: make(map[string]string),
		out:     &bytes.Buffer{},
	}
	for _, imp := range c.Imports {
		parts := strings.Split(imp, ".")
		g.imports[parts[len(parts)-1]] = strings.ReplaceAll(imp, ".", "/")
	}
	return g
}

// Generate returns the Jasmin text of c and the reports raised while emitting it
func Generate(c *ollir.Class) (string, []report.Report) {
	g := NewGenerator(c)
	g.emitClass()
	return g.out.String(), g.reports
}

// classPath resolves a class name through the imports
func (g *Generator) classPath(name string) string {
	if path, ok := g.imports[name]; ok {
		return path
	}
	return name
}

func (g *Generator) superPath() string {
	if g.class.Super == "" {
		return defaultSuper
	}
	return g.classPath(g.class.Super)
}

// descriptor returns the JVM type descriptor of t
func (g *Generator) descriptor(t ollir.Type) string {
	if t.Array {
		return "[" + g.descriptor(ollir.Type{Base: t.Base})
	}
	switch t.Base {
	case "i32":
		return "I"
	case "bool":
		return "Z"
	case "V":
		return "V"
	case "String":
		return "Ljava/lang/String;"
	default:
		return "L" + g.classPath(t.Base) + ";"
	}
}

func (g *Generator) methodDescriptor(params []ollir.Type, ret ollir.Type) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range params {
		sb.WriteString(g.descriptor(p))
	}
	sb.WriteByte(')')
	sb.WriteString(g.descriptor(ret))
	return sb.String()
}

func (g *Generator) emitClass() {
	c := g.class
	fmt.Fprintf(g.out, ".class public %s\n", c.Name)
	fmt.Fprintf(g.out, ".super %s\n", g.superPath())

	if len(c.Fields) > 0 {
		fmt.Fprintln(g.out)
	}
	for _, f := range c.Fields {
		access := f.Access
		if access == "" {
			access = "public"
		}
		fmt.Fprintf(g.out, ".field %s %s %s\n", access, f.Name, g.descriptor(f.Type))
	}

	hasConstructor := false
	for _, m := range c.Methods {
		if m.IsConstruct {
			hasConstructor = true
		}
	}
	if !hasConstructor {
		fmt.Fprintf(g.out, "\n.method public <init>()V\n")
		fmt.Fprintf(g.out, "\t.limit stack 1\n\t.limit locals 1\n")
		fmt.Fprintf(g.out, "\taload_0\n\tinvokespecial %s/<init>()V\n\treturn\n.end method\n", g.superPath())
	}

	for _, m := range c.Methods {
		g.emitMethod(m)
	}
}

func (g *Generator) emitMethod(m *ollir.Method) {
	g.method = m
	g.body = &bytes.Buffer{}
	g.stack, g.maxStack = 0, 0
	g.unassigned = make(map[string]bool)

	for i := 0; i < len(m.Instructions); i++ {
		for _, label := range m.LabelsAt(i) {
			fmt.Fprintf(g.body, "%s:\n", label)
		}
		if g.emitConstruction(m, i) {
			i++
		} else {
			g.emitInstruction(m.Instructions[i])
		}
		for g.stack > 0 {
			g.emit("pop")
			g.pop(1)
		}
	}
	for _, label := range m.LabelsAt(len(m.Instructions)) {
		fmt.Fprintf(g.body, "%s:\n", label)
	}
	if m.ReturnType.IsVoid() && !endsWithReturn(m) {
		g.emit("return")
	}

	name := m.Name
	if m.IsConstruct {
		name = "<init>"
	}
	access := m.Access
	if access == "" {
		access = "public"
	}
	static := ""
	if m.IsStatic {
		static = "static "
	}
	params := make([]ollir.Type, len(m.Params))
	for i, p := range m.Params {
		params[i] = p.Type
	}

	locals := m.MaxRegister() + 1
	if first := m.FirstLocalRegister(); locals < first {
		locals = first
	}

	fmt.Fprintf(g.out, "\n.method %s %s%s%s\n", access, static, name, g.methodDescriptor(params, m.ReturnType))
	fmt.Fprintf(g.out, "\t.limit stack %d\n", g.maxStack)
	fmt.Fprintf(g.out, "\t.limit locals %d\n", locals)
	g.out.Write(g.body.Bytes())
	fmt.Fprintln(g.out, ".end method")

	g.method = nil
}

func endsWithReturn(m *ollir.Method) bool {
	if len(m.Instructions) == 0 {
		return false
	}
	if len(m.LabelsAt(len(m.Instructions))) > 0 {
		return false
	}
	_, ok := m.Instructions[len(m.Instructions)-1].(ollir.Return)
	return ok
}

func (g *Generator) emit(format string, args ...any) {
	fmt.Fprintf(g.body, "\t"+format+"\n", args...)
}

func (g *Generator) push(n int) {
	g.stack += n
	if g.stack > g.maxStack {
		g.maxStack = g.stack
	}
}

func (g *Generator) pop(n int) {
	g.stack -= n
}

// register returns the slot of a variable. A variable without one is
// reported once per method and mapped to slot 0.
func (g *Generator) register(name string) int {
	if name == ollir.ReceiverName {
		return 0
	}
	d, ok := g.method.VarTable[name]
	if ok && d.Register != ollir.Unassigned {
		return d.Register
	}
	if !g.unassigned[name] {
		g.unassigned[name] = true
		g.reports = append(g.reports, report.New(report.Generation, g.method.Name,
			fmt.Sprintf("variable %s has no register", name)))
	}
	return 0
}

// slotInstr renders xload/xstore with the short form for slots 0..3
func slotInstr(op string, reg int) string {
	if reg >= 0 && reg <= 3 {
		return fmt.Sprintf("%s_%d", op, reg)
	}
	return fmt.Sprintf("%s %d", op, reg)
}

// typePrefix is 'i' for values held as JVM ints and 'a' for references
func typePrefix(t ollir.Type) string {
	if t.IsPrimitive() {
		return "i"
	}
	return "a"
}
