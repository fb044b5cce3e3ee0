package regalloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/raymyers/ralph-jmm/pkg/ollir"
)

// parseMethod parses a single-class OLLIR source and returns its first method
func parseMethod(t *testing.T, src string) *ollir.Method {
	t.Helper()
	c, err := ollir.Parse(src)
	require.NoError(t, err)
	require.NotEmpty(t, c.Methods, "no methods parsed")
	return c.Methods[0]
}

const loopSrc = `Loop {
    .method public static sum(n.i32).i32 {
        s.i32 :=.i32 0.i32;
        i.i32 :=.i32 0.i32;
    Head:
        if (i.i32 >=.bool n.i32) goto End;
        t.i32 :=.i32 i.i32 *.i32 2.i32;
        s.i32 :=.i32 s.i32 +.i32 t.i32;
        i.i32 :=.i32 i.i32 +.i32 1.i32;
        goto Head;
    End:
        ret.i32 s.i32;
    }
}`

func TestVarSetOperations(t *testing.T) {
	t.Run("Add and Contains", func(t *testing.T) {
		s := NewVarSet()
		s.Add("a")
		s.Add("b")

		require.True(t, s.Contains("a"))
		require.True(t, s.Contains("b"))
		require.False(t, s.Contains("c"))
	})

	t.Run("Union", func(t *testing.T) {
		u := NewVarSet("a", "b").Union(NewVarSet("b", "c"))
		require.Equal(t, []string{"a", "b", "c"}, u.Sorted())
	})

	t.Run("Minus", func(t *testing.T) {
		diff := NewVarSet("a", "b", "c").Minus(NewVarSet("b"))
		require.Equal(t, []string{"a", "c"}, diff.Sorted())
	})

	t.Run("Equal", func(t *testing.T) {
		require.True(t, NewVarSet("a", "b").Equal(NewVarSet("b", "a")))
		require.False(t, NewVarSet("a", "b").Equal(NewVarSet("a")), "sets of different size")
		require.False(t, NewVarSet("a").Equal(NewVarSet("b")), "sets with different names")
	})

	t.Run("Copy is independent", func(t *testing.T) {
		s := NewVarSet("a")
		c := s.Copy()
		c.Add("b")
		require.False(t, s.Contains("b"))
	})

	t.Run("Sorted", func(t *testing.T) {
		require.Equal(t, []string{"a", "b", "c"}, NewVarSet("c", "a", "b").Sorted())
	})
}

func TestDefUse(t *testing.T) {
	vars := map[string]*ollir.Descriptor{
		"this": {Kind: ollir.KindReceiver, Register: 0},
		"p":    {Kind: ollir.KindParameter, Register: 1},
		"f":    {Kind: ollir.KindField, Register: ollir.Unassigned},
		"x":    {Kind: ollir.KindLocal, Register: ollir.Unassigned},
	}
	one := ollir.Literal{Value: "1", Type: ollir.Int32}
	op := func(name string) ollir.Operand { return ollir.Operand{Name: name, Type: ollir.Int32} }

	tests := []struct {
		name        string
		instr       ollir.Instruction
		wantUsed    VarSet
		wantDefined VarSet
	}{
		{
			name:        "binary assign",
			instr:       ollir.Assign{Dest: op("x"), Type: ollir.Int32, Rhs: ollir.BinaryOp{Op: ollir.OpAdd, Left: op("a"), Right: one, Type: ollir.Int32}},
			wantUsed:    NewVarSet("a"),
			wantDefined: NewVarSet("x"),
		},
		{
			name:        "self increment",
			instr:       ollir.Assign{Dest: op("x"), Type: ollir.Int32, Rhs: ollir.BinaryOp{Op: ollir.OpAdd, Left: op("x"), Right: one, Type: ollir.Int32}},
			wantUsed:    NewVarSet("x"),
			wantDefined: NewVarSet("x"),
		},
		{
			name:        "parameter and receiver are not tracked",
			instr:       ollir.Assign{Dest: op("x"), Type: ollir.Int32, Rhs: ollir.Call{Kind: ollir.InvokeVirtual, Caller: ollir.Operand{Name: "this"}, Method: "m", Args: []ollir.Element{op("p"), op("y")}, ReturnType: ollir.Int32}},
			wantUsed:    NewVarSet("y"),
			wantDefined: NewVarSet("x"),
		},
		{
			name:        "assignment to a parameter defines nothing",
			instr:       ollir.Assign{Dest: op("p"), Type: ollir.Int32, Rhs: ollir.SingleOp{Operand: op("y")}},
			wantUsed:    NewVarSet("y"),
			wantDefined: NewVarSet(),
		},
		{
			name: "array element write uses base and index",
			instr: ollir.Assign{
				Dest: ollir.ArrayOperand{Name: "arr", Index: []ollir.Element{op("i")}, Type: ollir.Int32},
				Type: ollir.Int32,
				Rhs:  ollir.SingleOp{Operand: op("v")},
			},
			wantUsed:    NewVarSet("arr", "i", "v"),
			wantDefined: NewVarSet(),
		},
		{
			name:        "array element read",
			instr:       ollir.Assign{Dest: op("x"), Type: ollir.Int32, Rhs: ollir.SingleOp{Operand: ollir.ArrayOperand{Name: "arr", Index: []ollir.Element{one}, Type: ollir.Int32}}},
			wantUsed:    NewVarSet("arr"),
			wantDefined: NewVarSet("x"),
		},
		{
			name:        "getfield on a local object",
			instr:       ollir.Assign{Dest: op("x"), Type: ollir.Int32, Rhs: ollir.GetField{Object: op("obj"), Field: op("f")}},
			wantUsed:    NewVarSet("obj"),
			wantDefined: NewVarSet("x"),
		},
		{
			name:        "putfield uses the stored value",
			instr:       ollir.PutField{Object: ollir.Operand{Name: "this"}, Field: op("f"), Value: op("v")},
			wantUsed:    NewVarSet("v"),
			wantDefined: NewVarSet(),
		},
		{
			name:        "return",
			instr:       ollir.Return{Operand: op("x"), Type: ollir.Int32},
			wantUsed:    NewVarSet("x"),
			wantDefined: NewVarSet(),
		},
		{
			name:        "void return",
			instr:       ollir.Return{Type: ollir.Void},
			wantUsed:    NewVarSet(),
			wantDefined: NewVarSet(),
		},
		{
			name:        "conditional branch",
			instr:       ollir.CondBranch{Cond: ollir.BinaryOp{Op: ollir.OpLt, Left: op("a"), Right: op("b"), Type: ollir.Bool}, Label: "L"},
			wantUsed:    NewVarSet("a", "b"),
			wantDefined: NewVarSet(),
		},
		{
			name:        "goto",
			instr:       ollir.Goto{Label: "L"},
			wantUsed:    NewVarSet(),
			wantDefined: NewVarSet(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			du := &defUse{vars: vars, used: NewVarSet(), defined: NewVarSet()}
			require.NoError(t, du.instruction(tt.instr))
			require.Equal(t, tt.wantUsed.Sorted(), du.used.Sorted(), "used")
			require.Equal(t, tt.wantDefined.Sorted(), du.defined.Sorted(), "defined")
		})
	}
}

func TestAnalyzeLivenessSimple(t *testing.T) {
	m := parseMethod(t, `Simple {
    .method public static f().i32 {
        a.i32 :=.i32 1.i32;
        b.i32 :=.i32 2.i32;
        c.i32 :=.i32 a.i32 +.i32 b.i32;
        ret.i32 c.i32;
    }
}`)

	lv, err := AnalyzeLiveness(m)
	require.NoError(t, err)

	wantOut := [][]string{{"a"}, {"a", "b"}, {"c"}, {}}
	for i, want := range wantOut {
		require.Equal(t, want, lv.LiveOut[i].Sorted(), "LiveOut[%d]", i)
	}
	require.Empty(t, lv.LiveIn[0], "nothing is live on entry")
	require.True(t, lv.IsFixpoint())
}

func TestAnalyzeLivenessWithBranch(t *testing.T) {
	m := parseMethod(t, loopSrc)
	lv, err := AnalyzeLiveness(m)
	require.NoError(t, err)

	const branch = 2
	require.Equal(t, []int{3, 7}, lv.Succ[branch])
	want := lv.LiveIn[3].Union(lv.LiveIn[7])
	require.Equal(t, want.Sorted(), lv.LiveOut[branch].Sorted())
}

func TestAnalyzeLivenessWithLoop(t *testing.T) {
	m := parseMethod(t, loopSrc)
	lv, err := AnalyzeLiveness(m)
	require.NoError(t, err)

	// t is only used inside the loop body
	require.True(t, lv.LiveOut[3].Contains("t"))
	const exit = 7
	require.False(t, lv.LiveIn[exit].Contains("t"))
	require.Empty(t, lv.LiveOut[exit], "nothing is live after the last return")

	// the back edge keeps the loop counters alive
	require.Equal(t, []string{"i", "s"}, lv.LiveOut[6].Sorted())
	for i := range lv.LiveIn {
		require.False(t, lv.LiveIn[i].Contains("n"), "parameter n is never tracked (LiveIn[%d])", i)
	}
	require.True(t, lv.IsFixpoint())
}

func TestAnalyzeLivenessReturnFallsThrough(t *testing.T) {
	m := parseMethod(t, `Early {
    .method public static f(c.bool).i32 {
        y.i32 :=.i32 2.i32;
        if (c.bool) goto Other;
        ret.i32 1.i32;
    Other:
        ret.i32 y.i32;
    }
}`)
	lv, err := AnalyzeLiveness(m)
	require.NoError(t, err)

	require.Equal(t, []int{3}, lv.Succ[2])
	require.Equal(t, []string{"y"}, lv.LiveOut[2].Sorted())
	require.Empty(t, lv.Succ[3], "the last return has no successor")
	require.True(t, lv.IsFixpoint())
}

func TestAnalyzeLivenessTrailingLabel(t *testing.T) {
	m := parseMethod(t, `Trailing {
    .method public static f(c.bool).V {
        x.i32 :=.i32 1.i32;
        if (c.bool) goto Done;
        x.i32 :=.i32 x.i32 +.i32 1.i32;
    Done:
    }
}`)
	lv, err := AnalyzeLiveness(m)
	require.NoError(t, err)
	require.Equal(t, []int{2}, lv.Succ[1], "a jump to the method exit adds no edge")
}

func TestAnalyzeLivenessLocalNamedLikeField(t *testing.T) {
	m := parseMethod(t, `Shadow {
    .field private a.i32;
    .method public f().i32 {
        a.i32 :=.i32 5.i32;
        b.i32 :=.i32 getfield(this, a.i32).i32;
        c.i32 :=.i32 a.i32 +.i32 b.i32;
        ret.i32 c.i32;
    }
}`)
	lv, err := AnalyzeLiveness(m)
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, lv.Defined[0].Sorted())
	require.Equal(t, []string{"a", "b"}, lv.LiveOut[1].Sorted())
}

func TestAnalyzeLivenessUndefinedLabel(t *testing.T) {
	m := ollir.NewMethod("broken")
	m.IsStatic = true
	m.Instructions = []ollir.Instruction{ollir.Goto{Label: "Nowhere"}}
	m.VarTable = map[string]*ollir.Descriptor{}

	_, err := AnalyzeLiveness(m)
	require.ErrorIs(t, err, ErrMalformedIR)
}

func TestAnalyzeLivenessLiteralDestination(t *testing.T) {
	m := ollir.NewMethod("broken")
	m.IsStatic = true
	m.Instructions = []ollir.Instruction{
		ollir.Assign{Dest: ollir.Literal{Value: "1", Type: ollir.Int32}, Type: ollir.Int32, Rhs: ollir.SingleOp{Operand: ollir.Literal{Value: "2", Type: ollir.Int32}}},
	}
	m.VarTable = map[string]*ollir.Descriptor{}

	_, err := AnalyzeLiveness(m)
	require.ErrorIs(t, err, ErrMalformedIR)
}
