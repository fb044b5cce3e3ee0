package regalloc

import (
	"fmt"

	"github.com/raymyers/ralph-jmm/pkg/ollir"
	"github.com/raymyers/ralph-jmm/pkg/report"
)

// Allocation holds every intermediate result of allocating one method
type Allocation struct {
	Method   *ollir.Method
	Liveness *Liveness
	Graph    *Graph
	Coloring *Coloring
	Reports  []report.Report
}

// AssignRegisters writes offset+colour into the variable table of m for every
// coloured variable. The offset skips the receiver slot of instance methods
// and one slot per parameter.
func AssignRegisters(m *ollir.Method, c *Coloring) {
	offset := m.FirstLocalRegister()
	for name, color := range c.Colors {
		d, ok := m.VarTable[name]
		if !ok {
			d = &ollir.Descriptor{Kind: ollir.KindLocal, Register: ollir.Unassigned}
			m.VarTable[name] = d
		}
		if d.Kind != ollir.KindLocal {
			continue
		}
		d.Register = offset + color
	}
}

// AllocateMethod runs liveness, interference, colouring and assignment on m.
// A finite limit that cannot be honoured yields an Optimization report; the
// registers are assigned regardless.
func AllocateMethod(m *ollir.Method, limit int) (*Allocation, error) {
	lv, err := AnalyzeLiveness(m)
	if err != nil {
		return nil, fmt.Errorf("register allocation for %s: %w", m.Name, err)
	}
	g := BuildInterferenceGraph(lv)
	col, err := Color(g, limit)
	if err != nil {
		return nil, fmt.Errorf("register allocation for %s: %w", m.Name, err)
	}
	if !col.Valid(g) {
		return nil, fmt.Errorf("register allocation for %s: %w: conflicting colours", m.Name, ErrColorInvariant)
	}

	if placeUnlinked(lv, col) && limit != Unbounded {
		col.BudgetExceeded = true
	}
	AssignRegisters(m, col)

	alloc := &Allocation{Method: m, Liveness: lv, Graph: g, Coloring: col}
	if col.BudgetExceeded {
		alloc.Reports = append(alloc.Reports, report.New(report.Optimization, m.Name,
			fmt.Sprintf("unable to allocate locals within %d registers, %d needed", limit, col.NumColors())))
	}
	return alloc, nil
}

// AllocateClass allocates every method of c in declaration order
func AllocateClass(c *ollir.Class, limit int) ([]report.Report, error) {
	var reports []report.Report
	for _, m := range c.Methods {
		alloc, err := AllocateMethod(m, limit)
		if err != nil {
			return reports, err
		}
		reports = append(reports, alloc.Reports...)
	}
	return reports, nil
}

// placeUnlinked colours the locals that never appear in a live-out set and so
// have no node in the graph: stores whose value is never read, and reads of
// variables that were never written. Each takes the lowest colour not held by
// a variable live across its definitions or live into its uses. It reports
// whether any of them needed a colour at or past the limit.
func placeUnlinked(lv *Liveness, col *Coloring) bool {
	defs := make(map[string][]int)
	uses := make(map[string][]int)
	pending := NewVarSet()
	for i := range lv.Succ {
		for v := range lv.Defined[i] {
			if _, ok := col.Colors[v]; !ok {
				defs[v] = append(defs[v], i)
				pending.Add(v)
			}
		}
		for v := range lv.Used[i] {
			if _, ok := col.Colors[v]; !ok {
				uses[v] = append(uses[v], i)
				pending.Add(v)
			}
		}
	}

	exceeded := false
	for _, v := range pending.Sorted() {
		taken := make(map[int]bool)
		for _, i := range defs[v] {
			markTaken(taken, lv.LiveOut[i], col.Colors, v)
		}
		for _, i := range uses[v] {
			markTaken(taken, lv.LiveIn[i], col.Colors, v)
		}
		color := 0
		for taken[color] {
			color++
		}
		col.Colors[v] = color
		if col.Limit != Unbounded && color >= col.Limit {
			exceeded = true
		}
	}
	return exceeded
}

func markTaken(taken map[int]bool, live VarSet, colors map[string]int, self string) {
	for v := range live {
		if v == self {
			continue
		}
		if c, ok := colors[v]; ok {
			taken[c] = true
		}
	}
}
