package regalloc

import (
	"errors"
	"fmt"
)

// Unbounded is the colour limit meaning "use as few colours as possible"
const Unbounded = 0

// ErrColorInvariant reports a simplified node that found no free colour.
// Simplify only pushes nodes whose remaining degree is below the limit, so
// this indicates a bug rather than a property of the input.
var ErrColorInvariant = errors.New("no colour left for a simplified node")

// Coloring is the result of colouring an interference graph
type Coloring struct {
	// Colors maps every node to a colour in [0, n)
	Colors map[string]int
	// Spilled lists the nodes that could not be simplified, in removal order
	Spilled []string
	// Limit is the colour limit the graph was coloured with
	Limit int
	// BudgetExceeded is set when a finite limit forced spills
	BudgetExceeded bool
}

// NumColors returns the number of distinct colours used
func (c *Coloring) NumColors() int {
	n := 0
	for _, color := range c.Colors {
		if color+1 > n {
			n = color + 1
		}
	}
	return n
}

// Valid reports whether no two neighbors of g share a colour
func (c *Coloring) Valid(g *Graph) bool {
	for v := range g.Nodes {
		cv, ok := c.Colors[v]
		if !ok {
			return false
		}
		for n := range g.Edges[v] {
			if cn, ok := c.Colors[n]; ok && cn == cv {
				return false
			}
		}
	}
	return true
}

// colorer runs simplify/select over a working copy of the graph
type colorer struct {
	graph       *Graph
	work        *Graph
	K           int
	colors      map[string]int
	selectStack []string
	spilled     []string
}

// Color assigns a colour to every node of g. With a finite limit, nodes are
// simplified while their degree stays below limit; the others are set aside
// and coloured afterwards with the lowest colour free among their neighbors,
// which may reach past the limit. With Unbounded every node takes the
// second path, which yields a greedy colouring in removal order.
func Color(g *Graph, limit int) (*Coloring, error) {
	if limit < 0 {
		return nil, fmt.Errorf("invalid colour limit %d", limit)
	}
	c := &colorer{
		graph:  g,
		work:   g.Copy(),
		K:      limit,
		colors: make(map[string]int),
	}

	for c.work.Len() > 0 {
		v := c.lowestDegree()
		if c.work.Degree(v) < c.K {
			c.simplify(v)
		} else {
			c.selectSpill(v)
		}
	}

	if err := c.assignColors(); err != nil {
		return nil, err
	}
	c.colorSpills()

	return &Coloring{
		Colors:         c.colors,
		Spilled:        c.spilled,
		Limit:          limit,
		BudgetExceeded: limit != Unbounded && len(c.spilled) > 0,
	}, nil
}

// lowestDegree picks the remaining node with the fewest neighbors, breaking
// ties by name so that the removal order does not depend on the limit.
func (c *colorer) lowestDegree() string {
	best, bestDeg := "", -1
	for _, v := range c.work.Nodes.Sorted() {
		if d := c.work.Degree(v); bestDeg == -1 || d < bestDeg {
			best, bestDeg = v, d
		}
	}
	return best
}

func (c *colorer) simplify(v string) {
	c.selectStack = append(c.selectStack, v)
	c.work.RemoveNode(v)
}

func (c *colorer) selectSpill(v string) {
	c.spilled = append(c.spilled, v)
	c.work.RemoveNode(v)
}

// assignColors pops the select stack, giving each node the lowest colour
// not held by an already coloured neighbor.
func (c *colorer) assignColors() error {
	for len(c.selectStack) > 0 {
		n := len(c.selectStack) - 1
		v := c.selectStack[n]
		c.selectStack = c.selectStack[:n]

		color := c.freeColor(v)
		if color >= c.K {
			return fmt.Errorf("%w: %s", ErrColorInvariant, v)
		}
		c.colors[v] = color
	}
	return nil
}

func (c *colorer) colorSpills() {
	for _, v := range c.spilled {
		c.colors[v] = c.freeColor(v)
	}
}

func (c *colorer) freeColor(v string) int {
	used := make(map[int]bool)
	for neighbor := range c.graph.Edges[v] {
		if color, ok := c.colors[neighbor]; ok {
			used[color] = true
		}
	}
	color := 0
	for used[color] {
		color++
	}
	return color
}
