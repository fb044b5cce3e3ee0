// Package regalloc assigns JVM local-variable slots to OLLIR locals.
//
// Allocation runs per method: liveness analysis over the instruction list,
// an interference graph built from the live-out sets, Chaitin-style
// simplify/select colouring with optimistic spilling, and finally the
// translation of colours into register indices after the receiver and
// parameter slots.
package regalloc

import (
	"errors"
	"fmt"
	"io"

	"github.com/raymyers/ralph-jmm/pkg/ollir"
)

// ErrMalformedIR reports IR that violates the shape the allocator relies on
var ErrMalformedIR = errors.New("malformed IR")

// Liveness holds the dataflow sets of a method, indexed by instruction
type Liveness struct {
	Used    []VarSet
	Defined []VarSet
	Succ    [][]int
	LiveIn  []VarSet
	LiveOut []VarSet
}

// AnalyzeLiveness computes live-in and live-out sets for every instruction of m.
// Only locals are tracked: the receiver, parameters and fields already have
// their storage and never take part in allocation.
func AnalyzeLiveness(m *ollir.Method) (*Liveness, error) {
	n := len(m.Instructions)
	lv := &Liveness{
		Used:    make([]VarSet, n),
		Defined: make([]VarSet, n),
		Succ:    make([][]int, n),
		LiveIn:  make([]VarSet, n),
		LiveOut: make([]VarSet, n),
	}

	for i, instr := range m.Instructions {
		du := &defUse{vars: m.VarTable, used: NewVarSet(), defined: NewVarSet()}
		if err := du.instruction(instr); err != nil {
			return nil, fmt.Errorf("instruction %d of %s: %w", i, m.Name, err)
		}
		lv.Used[i] = du.used
		lv.Defined[i] = du.defined
		lv.LiveIn[i] = NewVarSet()
		lv.LiveOut[i] = NewVarSet()
	}

	if err := lv.buildSuccessors(m); err != nil {
		return nil, err
	}
	lv.solve()
	return lv, nil
}

// buildSuccessors records the control-flow edges of every instruction.
// Only goto drops the fallthrough edge; ret keeps it.
func (lv *Liveness) buildSuccessors(m *ollir.Method) error {
	n := len(m.Instructions)
	for i, instr := range m.Instructions {
		var succ []int
		switch in := instr.(type) {
		case ollir.Goto:
			t, err := labelTarget(m, in.Label)
			if err != nil {
				return err
			}
			if t < n {
				succ = append(succ, t)
			}
		case ollir.CondBranch:
			if i+1 < n {
				succ = append(succ, i+1)
			}
			t, err := labelTarget(m, in.Label)
			if err != nil {
				return err
			}
			if t < n && t != i+1 {
				succ = append(succ, t)
			}
		default:
			if i+1 < n {
				succ = append(succ, i+1)
			}
		}
		lv.Succ[i] = succ
	}
	return nil
}

// labelTarget resolves a label. A label placed after the last instruction
// resolves to len(m.Instructions), the method exit.
func labelTarget(m *ollir.Method, label string) (int, error) {
	t, ok := m.Labels[label]
	if !ok {
		return 0, fmt.Errorf("%w: undefined label %s in %s", ErrMalformedIR, label, m.Name)
	}
	if t < 0 || t > len(m.Instructions) {
		return 0, fmt.Errorf("%w: label %s of %s points outside the method", ErrMalformedIR, label, m.Name)
	}
	return t, nil
}

// solve iterates the backward dataflow equations to their least fixpoint:
//
//	out[i] = ∪ in[s] for s in succ[i]
//	in[i]  = used[i] ∪ (out[i] − defined[i])
func (lv *Liveness) solve() {
	for changed := true; changed; {
		changed = false
		for i := len(lv.Succ) - 1; i >= 0; i-- {
			out := NewVarSet()
			for _, s := range lv.Succ[i] {
				for v := range lv.LiveIn[s] {
					out.Add(v)
				}
			}
			in := lv.Used[i].Union(out.Minus(lv.Defined[i]))

			if !in.Equal(lv.LiveIn[i]) || !out.Equal(lv.LiveOut[i]) {
				changed = true
			}
			lv.LiveIn[i] = in
			lv.LiveOut[i] = out
		}
	}
}

// IsFixpoint re-checks both dataflow equations for every instruction
func (lv *Liveness) IsFixpoint() bool {
	for i := range lv.Succ {
		out := NewVarSet()
		for _, s := range lv.Succ[i] {
			out = out.Union(lv.LiveIn[s])
		}
		if !out.Equal(lv.LiveOut[i]) {
			return false
		}
		if !lv.Used[i].Union(out.Minus(lv.Defined[i])).Equal(lv.LiveIn[i]) {
			return false
		}
	}
	return true
}

// Variables returns every variable that is live-out somewhere
func (lv *Liveness) Variables() VarSet {
	vars := NewVarSet()
	for _, out := range lv.LiveOut {
		for v := range out {
			vars.Add(v)
		}
	}
	return vars
}

// Print writes the liveness sets of m next to its instructions
func (lv *Liveness) Print(w io.Writer, m *ollir.Method) {
	fmt.Fprintf(w, "%s:\n", m.Name)
	for i, instr := range m.Instructions {
		fmt.Fprintf(w, "  %3d: %s\n", i, ollir.FormatInstruction(instr))
		fmt.Fprintf(w, "       succ=%v in=%v out=%v\n", lv.Succ[i], lv.LiveIn[i].Sorted(), lv.LiveOut[i].Sorted())
	}
}

// defUse collects the variables read and written by one instruction
type defUse struct {
	vars    map[string]*ollir.Descriptor
	used    VarSet
	defined VarSet
}

// allocatable reports whether name is a local. Names missing from the
// variable table are treated as locals.
func (d *defUse) allocatable(name string) bool {
	if name == ollir.ReceiverName {
		return false
	}
	desc, ok := d.vars[name]
	return !ok || desc.Kind == ollir.KindLocal
}

func (d *defUse) instruction(instr ollir.Instruction) error {
	switch i := instr.(type) {
	case ollir.Assign:
		return d.assign(i)
	case ollir.SingleOp:
		d.use(i.Operand)
	case ollir.UnaryOp:
		d.use(i.Operand)
	case ollir.BinaryOp:
		d.use(i.Left)
		d.use(i.Right)
	case ollir.Call:
		d.use(i.Caller)
		for _, a := range i.Args {
			d.use(a)
		}
	case ollir.GetField:
		d.use(i.Object)
	case ollir.PutField:
		d.use(i.Object)
		d.use(i.Value)
	case ollir.Return:
		d.use(i.Operand)
	case ollir.CondBranch:
		return d.instruction(i.Cond)
	case ollir.Goto:
	}
	return nil
}

func (d *defUse) assign(a ollir.Assign) error {
	switch dest := a.Dest.(type) {
	case ollir.Operand:
		if d.allocatable(dest.Name) {
			d.defined.Add(dest.Name)
		}
	case ollir.ArrayOperand:
		// Storing an element mutates the array through its reference; the
		// reference itself is read, not replaced.
		d.use(dest)
	default:
		return fmt.Errorf("%w: assignment destination %T", ErrMalformedIR, a.Dest)
	}
	return d.instruction(a.Rhs)
}

func (d *defUse) use(e ollir.Element) {
	switch el := e.(type) {
	case ollir.Operand:
		if d.allocatable(el.Name) {
			d.used.Add(el.Name)
		}
	case ollir.ArrayOperand:
		if d.allocatable(el.Name) {
			d.used.Add(el.Name)
		}
		for _, idx := range el.Index {
			d.use(idx)
		}
	}
}
