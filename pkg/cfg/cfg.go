// Package cfg builds the control-flow graph of a pipeline control.
// Nodes are tables, conditionals and dummy staging points; their ids
// become the stage numbers of the generated flows.
package cfg

import (
	"fmt"
	"strings"

	"github.com/raymyers/p4c-of/pkg/p4"
)

// NodeKind distinguishes CFG nodes.
type NodeKind int

const (
	TableNode NodeKind = iota
	IfNode
	DummyNode
)

func (k NodeKind) String() string {
	switch k {
	case TableNode:
		return "table"
	case IfNode:
		return "if"
	default:
		return "dummy"
	}
}

// Node is a CFG node. Predecessors are recorded while the graph is built;
// Successors are derived from them by Graph.ComputeSuccessors.
type Node struct {
	ID   int
	Kind NodeKind
	Name string

	Table *p4.Table // TableNode
	Cond  p4.Expr   // IfNode

	Predecessors *EdgeSet
	Successors   *EdgeSet
}

func newNode(id int, kind NodeKind, name string) *Node {
	return &Node{
		ID:           id,
		Kind:         kind,
		Name:         name,
		Predecessors: NewEdgeSet(),
		Successors:   NewEdgeSet(),
	}
}

func (n *Node) String() string {
	return n.Name
}

// AddPredecessors merges set into the node's predecessors.
func (n *Node) AddPredecessors(set *EdgeSet) {
	if set != nil {
		n.Predecessors.Merge(set)
	}
}

// SameDestination reports whether a and b are the same CFG destination.
// Distinct table nodes of the same table count as the same destination.
func SameDestination(a, b *Node) bool {
	if a == b {
		return true
	}
	return a.Kind == TableNode && b.Kind == TableNode && a.Table != nil && a.Table == b.Table
}

// EdgeKind is the condition under which an edge is taken.
type EdgeKind int

const (
	Unconditional EdgeKind = iota
	True
	False
	Label
)

// Edge points at Node. Whether Node is the source or the destination
// depends on the set holding the edge.
type Edge struct {
	Node  *Node
	Kind  EdgeKind
	Label string // only for Label edges
}

func (e Edge) String() string {
	switch e.Kind {
	case True:
		return e.Node.Name + "(true)"
	case False:
		return e.Node.Name + "(false)"
	case Label:
		return e.Node.Name + "(" + e.Label + ")"
	default:
		return e.Node.Name
	}
}

func (e Edge) same(o Edge) bool {
	return e.Node == o.Node && e.Kind == o.Kind && e.Label == o.Label
}

// EdgeSet is an insertion-ordered set of edges.
type EdgeSet struct {
	edges []Edge
}

// NewEdgeSet returns a set holding the given edges.
func NewEdgeSet(edges ...Edge) *EdgeSet {
	s := &EdgeSet{}
	for _, e := range edges {
		s.Add(e)
	}
	return s
}

// Add inserts e unless an identical edge is present.
func (s *EdgeSet) Add(e Edge) {
	for _, x := range s.edges {
		if x.same(e) {
			return
		}
	}
	s.edges = append(s.edges, e)
}

// Merge adds every edge of other. Merging is idempotent.
func (s *EdgeSet) Merge(other *EdgeSet) {
	if other == nil {
		return
	}
	for _, e := range other.edges {
		s.Add(e)
	}
}

// Clone returns a copy of the set.
func (s *EdgeSet) Clone() *EdgeSet {
	c := &EdgeSet{edges: make([]Edge, len(s.edges))}
	copy(c.edges, s.edges)
	return c
}

// Edges returns the edges in insertion order.
func (s *EdgeSet) Edges() []Edge {
	return s.edges
}

// Len returns the number of edges.
func (s *EdgeSet) Len() int {
	return len(s.edges)
}

// IsDestination reports whether some edge of the set leads to n.
func (s *EdgeSet) IsDestination(n *Node) bool {
	for _, e := range s.edges {
		if SameDestination(e.Node, n) {
			return true
		}
	}
	return false
}

// Find returns the node of the first edge with the given kind and label.
func (s *EdgeSet) Find(kind EdgeKind, label string) *Node {
	for _, e := range s.edges {
		if e.Kind == kind && (kind != Label || e.Label == label) {
			return e.Node
		}
	}
	return nil
}

func (s *EdgeSet) String() string {
	parts := make([]string, len(s.edges))
	for i, e := range s.edges {
		parts[i] = e.String()
	}
	return strings.Join(parts, " ")
}

// IDAllocator hands out node ids. One allocator is shared by every graph
// of a compilation so ids never repeat.
type IDAllocator struct {
	next int
}

// NewIDAllocator creates an allocator whose first id is first.
func NewIDAllocator(first int) *IDAllocator {
	return &IDAllocator{next: first}
}

// Next allocates a fresh id.
func (a *IDAllocator) Next() int {
	id := a.next
	a.next++
	return id
}

// Peek returns the id the next call to Next will return.
func (a *IDAllocator) Peek() int {
	return a.next
}

// NewDummy creates a dummy node outside any graph, such as the multicast stage.
func NewDummy(ids *IDAllocator, name string) *Node {
	return newNode(ids.Next(), DummyNode, name)
}

// Graph is the CFG of one control.
type Graph struct {
	Control *p4.Control
	Entry   *Node
	Exit    *Node
	Nodes   []*Node // in id order
}

func (g *Graph) String() string {
	return fmt.Sprintf("cfg(%s)", g.Control.Name)
}

// ComputeSuccessors derives every node's successors from the recorded
// predecessors. Edges to the same destination, as decided by
// SameDestination, are added once.
func (g *Graph) ComputeSuccessors() {
	for _, n := range g.Nodes {
		n.Successors = NewEdgeSet()
	}
	for _, n := range g.Nodes {
		for _, e := range n.Predecessors.Edges() {
			succ := Edge{Node: n, Kind: e.Kind, Label: e.Label}
			if hasEquivalent(e.Node.Successors, succ) {
				continue
			}
			e.Node.Successors.Add(succ)
		}
	}
}

func hasEquivalent(s *EdgeSet, e Edge) bool {
	for _, x := range s.Edges() {
		if x.Kind == e.Kind && x.Label == e.Label && SameDestination(x.Node, e.Node) {
			return true
		}
	}
	return false
}

// Lookup returns the node with the given id.
func (g *Graph) Lookup(id int) *Node {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
