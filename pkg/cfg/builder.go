package cfg

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/raymyers/p4c-of/pkg/diag"
	"github.com/raymyers/p4c-of/pkg/p4"
)

// Builder walks the statements of a control, threading the set of live
// edges (the pending predecessors of the next node) through the walk.
type Builder struct {
	ids   *IDAllocator
	graph *Graph
	live  *EdgeSet
	exits *EdgeSet // edges ending at the exit node
	errs  diag.Reporter
}

// Build constructs the CFG of c. Node ids come from ids; the entry node
// gets the first id and the exit node the last.
func Build(c *p4.Control, ids *IDAllocator) (*Graph, error) {
	b := &Builder{
		ids:   ids,
		graph: &Graph{Control: c},
		exits: NewEdgeSet(),
	}
	g := b.graph
	g.Entry = b.makeNode(DummyNode, c.Name+".entry")
	b.live = NewEdgeSet(Edge{Node: g.Entry})

	b.visit(c.Body)

	g.Exit = b.makeNode(DummyNode, c.Name+".exit")
	g.Exit.AddPredecessors(b.exits)
	g.Exit.AddPredecessors(b.live)
	g.ComputeSuccessors()

	if b.errs.HasErrors() {
		return nil, b.errs.Err()
	}
	log.Debugf("cfg: %s has %d nodes (%d..%d)", c.Name, len(g.Nodes), g.Entry.ID, g.Exit.ID)
	return g, nil
}

func (b *Builder) makeNode(kind NodeKind, name string) *Node {
	n := newNode(b.ids.Next(), kind, name)
	if name == "" {
		n.Name = fmt.Sprintf("node_%d", n.ID)
	}
	b.graph.Nodes = append(b.graph.Nodes, n)
	return n
}

func (b *Builder) makeTableNode(t *p4.Table) *Node {
	n := b.makeNode(TableNode, t.Name)
	n.Table = t
	return n
}

func (b *Builder) visit(s p4.Stmt) {
	switch s := s.(type) {
	case nil:
	case *p4.Block:
		for _, st := range s.Stmts {
			b.visit(st)
		}
	case *p4.Empty:
	case *p4.Exit, *p4.Return:
		b.exits.Merge(b.live)
		b.live = NewEdgeSet()
	case *p4.Apply:
		n := b.makeTableNode(s.Table)
		n.AddPredecessors(b.live)
		b.live = NewEdgeSet(Edge{Node: n})
	case *p4.If:
		b.visitIf(s)
	case *p4.Switch:
		b.visitSwitch(s)
	default:
		b.errs.Report(diag.Errorf(diag.UnsupportedConstruct, s,
			"only table applications, if, switch, exit and return are allowed in a control body"))
	}
}

// hitTest recognizes t.apply().hit, t.apply().miss and their negations.
// It returns the table and the edge kind taken on a hit.
func hitTest(e p4.Expr) (*p4.Table, bool, bool) {
	switch e := e.(type) {
	case *p4.TableHit:
		return e.Table, e.Hit, true
	case *p4.Unary:
		if e.Op == "!" {
			if t, hit, ok := hitTest(e.X); ok {
				return t, !hit, true
			}
		}
	}
	return nil, false, false
}

func (b *Builder) visitIf(s *p4.If) {
	var n *Node
	condition := true
	if t, hit, ok := hitTest(s.Cond); ok {
		// The hit/miss outcome is decided by the table's own flows.
		n = b.makeTableNode(t)
		condition = hit
	} else {
		n = b.makeNode(IfNode, "")
		n.Cond = s.Cond
	}
	n.AddPredecessors(b.live)

	b.live = NewEdgeSet(boolEdge(n, condition))
	b.visit(s.Then)
	result := b.live.Clone()

	if s.Else != nil {
		b.live = NewEdgeSet(boolEdge(n, !condition))
		b.visit(s.Else)
		result.Merge(b.live)
	} else {
		result.Add(boolEdge(n, !condition))
	}
	b.live = result
}

func boolEdge(n *Node, b bool) Edge {
	if b {
		return Edge{Node: n, Kind: True}
	}
	return Edge{Node: n, Kind: False}
}

func (b *Builder) visitSwitch(s *p4.Switch) {
	run, ok := s.Subject.(*p4.ActionRun)
	if !ok {
		b.errs.Report(diag.Errorf(diag.StructuralError, s.Subject, "switch must select on a table's action_run"))
		return
	}
	n := b.makeTableNode(run.Table)
	n.AddPredecessors(b.live)

	// taken when no label matches
	result := NewEdgeSet(Edge{Node: n})
	labels := NewEdgeSet()
	for _, c := range s.Cases {
		labels.Add(Edge{Node: n, Kind: Label, Label: c.Label})
		if c.Body == nil {
			// labels accumulate until a case with a body
			continue
		}
		b.live = labels
		b.visit(c.Body)
		result.Merge(b.live)
		labels = NewEdgeSet()
	}
	// trailing labels without a body continue after the switch
	result.Merge(labels)
	b.live = result
}
