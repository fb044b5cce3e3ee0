package regalloc

import (
	"fmt"
	"io"
)

// Graph is the interference graph of a method.
// Two variables interfere if they are both live-out of the same instruction.
type Graph struct {
	// Nodes are the variables live-out somewhere in the method
	Nodes VarSet
	// Edges maps each variable to its interfering neighbors
	Edges map[string]VarSet
}

// NewGraph creates an empty interference graph
func NewGraph() *Graph {
	return &Graph{
		Nodes: NewVarSet(),
		Edges: make(map[string]VarSet),
	}
}

// AddNode adds a variable to the graph
func (g *Graph) AddNode(v string) {
	g.Nodes.Add(v)
	if g.Edges[v] == nil {
		g.Edges[v] = NewVarSet()
	}
}

// AddEdge adds an interference edge between two variables
func (g *Graph) AddEdge(a, b string) {
	if a == b {
		return // No self-edges
	}
	g.AddNode(a)
	g.AddNode(b)
	g.Edges[a].Add(b)
	g.Edges[b].Add(a)
}

// HasEdge returns true if there is an interference edge
func (g *Graph) HasEdge(a, b string) bool {
	if edges, ok := g.Edges[a]; ok {
		return edges.Contains(b)
	}
	return false
}

// Degree returns the number of neighbors of a variable
func (g *Graph) Degree(v string) int {
	return len(g.Edges[v])
}

// Neighbors returns the interfering neighbors of a variable
func (g *Graph) Neighbors(v string) VarSet {
	if edges, ok := g.Edges[v]; ok {
		return edges.Copy()
	}
	return NewVarSet()
}

// RemoveNode removes a variable and all its edges
func (g *Graph) RemoveNode(v string) {
	for neighbor := range g.Edges[v] {
		delete(g.Edges[neighbor], v)
	}
	delete(g.Nodes, v)
	delete(g.Edges, v)
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	return len(g.Nodes)
}

// Copy returns an independent copy of the graph
func (g *Graph) Copy() *Graph {
	c := NewGraph()
	for v := range g.Nodes {
		c.AddNode(v)
	}
	for v, edges := range g.Edges {
		c.Edges[v] = edges.Copy()
	}
	return c
}

// EdgeCount returns the number of undirected edges
func (g *Graph) EdgeCount() int {
	n := 0
	for _, edges := range g.Edges {
		n += len(edges)
	}
	return n / 2
}

// BuildInterferenceGraph constructs the interference graph from liveness info.
// Every variable in a live-out set becomes a node, and the variables of each
// live-out set are pairwise connected.
//
// Edges come from shared live-out sets only. A definition whose value is dead
// (the variable is overwritten before any read) adds no edge to the variables
// live across it, so both may receive the same slot and the dead store then
// clobbers the live value in the emitted code. Locals that are never live-out
// at all are placed clear of such conflicts by AllocateMethod; graph nodes are
// not.
func BuildInterferenceGraph(lv *Liveness) *Graph {
	g := NewGraph()
	for _, out := range lv.LiveOut {
		vars := out.Sorted()
		for i, a := range vars {
			g.AddNode(a)
			for _, b := range vars[i+1:] {
				g.AddEdge(a, b)
			}
		}
	}
	return g
}

// Print writes the adjacency lists in name order
func (g *Graph) Print(w io.Writer) {
	for _, v := range g.Nodes.Sorted() {
		fmt.Fprintf(w, "  %s: %v\n", v, g.Edges[v].Sorted())
	}
}
