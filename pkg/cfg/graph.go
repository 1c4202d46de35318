package cfg

import (
	"fmt"
	"io"
	"sort"

	"github.com/oleiade/lane"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/raymyers/p4c-of/pkg/diag"
)

func (g *Graph) directed() *simple.DirectedGraph {
	dg := simple.NewDirectedGraph()
	for _, n := range g.Nodes {
		dg.AddNode(simple.Node(n.ID))
	}
	for _, n := range g.Nodes {
		for _, e := range n.Successors.Edges() {
			if e.Node.ID == n.ID {
				continue // self loops are reported by Verify
			}
			dg.SetEdge(dg.NewEdge(simple.Node(n.ID), simple.Node(e.Node.ID)))
		}
	}
	return dg
}

// Verify checks that the graph is acyclic.
func (g *Graph) Verify() error {
	var errs diag.Reporter
	for _, n := range g.Nodes {
		if n.Successors.IsDestination(n) {
			errs.Report(diag.Errorf(diag.StructuralError, n, "node %d is its own successor", n.ID))
		}
	}
	if _, err := topo.Sort(g.directed()); err != nil {
		errs.Report(diag.Errorf(diag.StructuralError, g, "control flow contains a cycle: %v", err))
	}
	return errs.Err()
}

// Reachable returns the nodes reachable from the entry, sorted by id.
func (g *Graph) Reachable() []*Node {
	seen := make(map[int]bool)
	var out []*Node
	q := lane.NewQueue()
	for q.Enqueue(g.Entry); !q.Empty(); {
		n := q.Dequeue().(*Node)
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		out = append(out, n)
		for _, e := range n.Successors.Edges() {
			if !seen[e.Node.ID] {
				q.Enqueue(e.Node)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Printer outputs a CFG one node per line.
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new CFG printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintGraph prints every node with its successors.
func (p *Printer) PrintGraph(g *Graph) {
	fmt.Fprintf(p.w, "cfg %s {\n", g.Control.Name)
	for _, n := range g.Nodes {
		fmt.Fprintf(p.w, "  %d: %s %s =>", n.ID, n.Kind, n.Name)
		if n.Successors.Len() > 0 {
			fmt.Fprintf(p.w, " %s", n.Successors)
		}
		fmt.Fprintln(p.w)
	}
	fmt.Fprintln(p.w, "}")
	fmt.Fprintf(p.w, "entry: %d\n", g.Entry.ID)
}
