package ddloggen

import (
	"fmt"
	"math/big"

	log "github.com/sirupsen/logrus"

	"github.com/raymyers/p4c-of/pkg/cfg"
	"github.com/raymyers/p4c-of/pkg/ddlog"
	"github.com/raymyers/p4c-of/pkg/diag"
	"github.com/raymyers/p4c-of/pkg/of"
	"github.com/raymyers/p4c-of/pkg/ofgen"
	"github.com/raymyers/p4c-of/pkg/ofopt"
	"github.com/raymyers/p4c-of/pkg/p4"
)

// Priorities of the generated flows.
const (
	HighPriority      = 100
	MulticastPriority = 50
	LowPriority       = 1
)

// flowGen emits the Flow rules of one compilation.
type flowGen struct {
	ctx    *CompilationContext
	stages Stages
	bad    map[*p4.Table]bool
	lpm    map[int]bool // widths needing a prefix_mask helper
	out    []ddlog.Decl
}

func (g *flowGen) report(err error) {
	g.ctx.Errs.Report(err)
}

// fact emits a flow with no free variables.
func (g *flowGen) fact(comment string, f *of.MatchAndAction) {
	f = ofopt.Flow(f)
	g.out = append(g.out, ddlog.Fact(comment, FlowRelation, ddlog.Str(f.String())))
}

// rule emits a flow whose text interpolates variables bound by body.
func (g *flowGen) rule(comment string, f *of.MatchAndAction, body ...ddlog.Term) {
	f = ofopt.Flow(f)
	body = append(body, &ddlog.Assign{Name: "flow", Value: ddlog.Str(f.String())})
	g.out = append(g.out, &ddlog.Rule{
		Comment: comment,
		Head:    &ddlog.Atom{Relation: FlowRelation, Args: []ddlog.Expr{ddlog.V("flow")}},
		Body:    body,
	})
}

func stageMatch(stage int, priority of.Expr, rest ...of.Match) of.Match {
	ms := []of.Match{&of.TableMatch{ID: stage}}
	if priority != nil {
		ms = append(ms, &of.PriorityMatch{Priority: priority})
	}
	return of.SeqM(append(ms, rest...)...)
}

func resubmit(n *cfg.Node) of.Action {
	return &of.ResubmitAction{Stage: n.ID}
}

func firstOf(nodes ...*cfg.Node) *cfg.Node {
	for _, n := range nodes {
		if n != nil {
			return n
		}
	}
	return nil
}

// entrySuccessor is where a packet goes after an entry running action a.
func entrySuccessor(n *cfg.Node, g *cfg.Graph, action string) *cfg.Node {
	s := n.Successors
	return firstOf(s.Find(cfg.Label, action), s.Find(cfg.Label, "default"),
		s.Find(cfg.True, ""), s.Find(cfg.Unconditional, ""), g.Exit)
}

// defaultSuccessor is where a packet goes after a miss.
func defaultSuccessor(n *cfg.Node, g *cfg.Graph, action string) *cfg.Node {
	s := n.Successors
	return firstOf(s.Find(cfg.Label, action), s.Find(cfg.Label, "default"),
		s.Find(cfg.False, ""), s.Find(cfg.Unconditional, ""), g.Exit)
}

// Built-in stages

func (g *flowGen) init() {
	ctx := g.ctx
	g.fact("initialize output port and multicast group", &of.MatchAndAction{
		Match: &of.TableMatch{ID: g.stages.Init},
		Action: of.Seq(
			&of.LoadAction{Src: of.NewConstant(new(big.Int).SetUint64(ctx.Target.DropPort), 16), Dst: of.NewRegister(ctx.outPort)},
			&of.LoadAction{Src: of.IntConstant(0), Dst: of.NewRegister(ctx.mcast)},
			&of.ResubmitAction{Stage: g.stages.IngressEntry},
		),
	})
}

func (g *flowGen) ingressExit(n *cfg.Node) {
	g.fact("ingress exit", &of.MatchAndAction{
		Match:  &of.TableMatch{ID: n.ID},
		Action: &of.ResubmitAction{Stage: g.stages.Multicast},
	})
}

// multicast emits the replication stage. Group 0 goes straight to
// egress. Every other group clones the packet once per member port, each
// clone coming back to this stage with the group cleared.
func (g *flowGen) multicast() {
	ctx := g.ctx
	stage := g.stages.Multicast
	mcast := of.NewRegister(ctx.mcast)
	g.fact("multicast: no group", &of.MatchAndAction{
		Match:  stageMatch(stage, of.IntConstant(HighPriority), &of.EqualsMatch{Left: mcast, Right: of.IntConstant(0)}),
		Action: &of.ResubmitAction{Stage: g.stages.EgressEntry},
	})

	clone := &of.CloneAction{Action: of.Seq(
		&of.LoadAction{Src: &of.InterpolatedVar{Expr: "port", Width: 16}, Dst: of.NewRegister(ctx.outPort)},
		&of.LoadAction{Src: of.IntConstant(0), Dst: mcast},
		&of.ResubmitAction{Stage: stage},
	)}
	joined := &ddlog.Apply{
		Left: &ddlog.Apply{
			Left:   &ddlog.Apply{Left: ddlog.V("clone_action"), Method: "group_by", Args: []ddlog.Expr{ddlog.V("mcast_id")}},
			Method: "to_vec",
		},
		Method: "join",
		Args:   []ddlog.Expr{ddlog.Str(", ")},
	}
	g.rule("multicast: one clone per member port",
		&of.MatchAndAction{
			Match: stageMatch(stage, of.IntConstant(MulticastPriority),
				&of.EqualsMatch{Left: mcast, Right: &of.InterpolatedVar{Expr: "mcast_id", Width: 16}}),
			Action: &of.InterpolatedVarAction{Name: "actions"},
		},
		&ddlog.Atom{Relation: MulticastRelation, Args: []ddlog.Expr{ddlog.V("mcast_id"), ddlog.V("port")}},
		&ddlog.Condition{Cond: &ddlog.Binary{Op: "!=", Left: ddlog.V("mcast_id"), Right: &ddlog.IntLit{Value: "0"}}},
		&ddlog.Assign{Name: "clone_action", Value: ddlog.Str(ofopt.Action(clone).String())},
		&ddlog.Assign{Name: "actions", Value: joined},
	)
}

func (g *flowGen) egressExit(n *cfg.Node) {
	ctx := g.ctx
	out := of.NewRegister(ctx.outPort)
	drop := of.NewConstant(new(big.Int).SetUint64(ctx.Target.DropPort), 16)
	g.fact("egress exit: no output port", &of.MatchAndAction{
		Match:  stageMatch(n.ID, of.IntConstant(HighPriority), &of.EqualsMatch{Left: out, Right: drop}),
		Action: &of.DropAction{},
	})
	g.fact("egress exit", &of.MatchAndAction{
		Match:  stageMatch(n.ID, of.IntConstant(LowPriority)),
		Action: &of.OutputAction{Port: out},
	})
}

// graph emits the flows of every node reachable in cg, in id order. The
// exit node is left to exit.
func (g *flowGen) graph(cg *cfg.Graph, exit func(*cfg.Node)) {
	count := len(g.out)
	for _, n := range cg.Reachable() {
		switch {
		case n == cg.Exit:
			exit(n)
		case n.Kind == cfg.DummyNode:
			for _, e := range n.Successors.Edges() {
				g.fact(n.Name, &of.MatchAndAction{Match: &of.TableMatch{ID: n.ID}, Action: resubmit(e.Node)})
			}
		case n.Kind == cfg.IfNode:
			g.ifNode(n, cg)
		case n.Kind == cfg.TableNode:
			g.tableNode(n, cg)
		}
	}
	log.Debugf("ddloggen: %s: %d flows", cg.Control.Name, len(g.out)-count)
}

func (g *flowGen) ifNode(n *cfg.Node, cg *cfg.Graph) {
	cond, err := g.ctx.tr.Match(n.Cond, nil)
	if err != nil {
		g.report(err)
		return
	}
	s := n.Successors
	then := firstOf(s.Find(cfg.True, ""), cg.Exit)
	els := firstOf(s.Find(cfg.False, ""), cg.Exit)
	comment := fmt.Sprintf("if %s", n.Cond)
	g.fact(comment, &of.MatchAndAction{Match: stageMatch(n.ID, of.IntConstant(HighPriority), cond), Action: resubmit(then)})
	g.fact(comment+" else", &of.MatchAndAction{Match: stageMatch(n.ID, of.IntConstant(LowPriority)), Action: resubmit(els)})
}

func (g *flowGen) tableNode(n *cfg.Node, cg *cfg.Graph) {
	t := n.Table
	if g.bad[t] {
		return
	}
	if parametric(t) {
		g.entryRule(n, cg)
	}
	if t.ConstEntries {
		g.constEntries(n, cg)
	}
	g.defaultFlow(n, cg)
}

// actionFlow runs a's body then continues at next.
func (g *flowGen) actionFlow(a *p4.Action, sub ofgen.Substitution, cg *cfg.Graph, next *cfg.Node) (of.Action, error) {
	body, err := g.ctx.tr.Action(a.Body, cg.Exit.ID, sub)
	if err != nil {
		return nil, err
	}
	return ofopt.Action(of.Seq(body, resubmit(next))), nil
}

func paramSub(a *p4.Action) ofgen.Substitution {
	sub := make(ofgen.Substitution)
	for _, p := range a.Params {
		sub[p] = &of.InterpolatedVar{Expr: paramVar(p), Width: p.Type.Width}
	}
	return sub
}

func (g *flowGen) constSub(a *p4.Action, args []p4.Expr) (ofgen.Substitution, error) {
	if len(args) != len(a.Params) {
		return nil, diag.Errorf(diag.MalformedTableShape, a, "action %s takes %d arguments, got %d", a.Name, len(a.Params), len(args))
	}
	sub := make(ofgen.Substitution)
	for i, p := range a.Params {
		v, err := g.ctx.tr.Value(args[i], nil)
		if err != nil {
			return nil, err
		}
		c, ok := v.(*of.Constant)
		if !ok {
			return nil, diag.Errorf(diag.UnsupportedConstruct, args[i], "action arguments must be constants")
		}
		if c.Value.BitLen() > p.Type.Width {
			return nil, diag.Errorf(diag.UnsupportedConstruct, args[i], "argument does not fit in %d bits", p.Type.Width)
		}
		sub[p] = c
	}
	return sub, nil
}

// actionCases builds the match arms selecting among actions, each
// pattern binding the action's parameters.
func (g *flowGen) actionCases(typeName string, actions []*p4.Action, cg *cfg.Graph, next func(*p4.Action) *cfg.Node) ([]ddlog.Case, error) {
	var cases []ddlog.Case
	for _, a := range actions {
		act, err := g.actionFlow(a, paramSub(a), cg, next(a))
		if err != nil {
			return nil, err
		}
		pat := &ddlog.CtorExpr{Name: constructorName(typeName, a)}
		for _, p := range a.Params {
			pat.Args = append(pat.Args, ddlog.V(paramVar(p)))
		}
		cases = append(cases, ddlog.Case{Pattern: pat, Result: ddlog.Str(act.String())})
	}
	return cases, nil
}

// keyMatch is the translation of one key element in a parametric rule.
type keyMatch struct {
	arg   ddlog.Expr   // pattern in the relation atom
	terms []ddlog.Term // extra bindings
	match of.Match
	pre   []of.Match
}

func (g *flowGen) keyMatch(k *p4.Key) (*keyMatch, error) {
	left, err := g.ctx.tr.Value(k.Expr, nil)
	if err != nil {
		return nil, err
	}
	typ := p4.TypeOf(k.Expr)
	v := KeyVar(k)
	iv := func(expr string) *of.InterpolatedVar { return &of.InterpolatedVar{Expr: expr, Width: typ.Width} }
	km := &keyMatch{arg: ddlog.V(v), pre: ofgen.Prerequisites(k.Expr)}
	switch k.MatchKind {
	case p4.Exact:
		if typ.Bool {
			b := "b_" + v[2:]
			km.terms = append(km.terms, &ddlog.Assign{Name: b, Value: &ddlog.IfElse{
				Cond: ddlog.V(v), Then: &ddlog.IntLit{Value: "1'd1"}, Else: &ddlog.IntLit{Value: "1'd0"},
			}})
			v = b
		}
		km.match = &of.EqualsMatch{Left: left, Right: iv(v)}
	case p4.Ternary:
		km.arg = &ddlog.Tuple{Elems: []ddlog.Expr{ddlog.V(v + "_value"), ddlog.V(v + "_mask")}}
		km.match = &of.EqualsMatch{Left: left, Right: iv(v + "_value"), Mask: iv(v + "_mask")}
	case p4.LPM:
		g.lpm[typ.Width] = true
		km.arg = &ddlog.Tuple{Elems: []ddlog.Expr{ddlog.V(v + "_value"), ddlog.V(v + "_plen")}}
		km.match = &of.EqualsMatch{Left: left, Right: iv(v + "_value"),
			Mask: iv(PrefixMaskName(typ.Width) + "(" + v + "_plen)")}
	case p4.Optional:
		some := "v_" + v[2:]
		text := ", " + of.SeqM(append(km.pre, &of.EqualsMatch{Left: left, Right: iv(some)})...).String()
		m := "m_" + v[2:]
		km.terms = append(km.terms, &ddlog.Assign{Name: m, Value: &ddlog.Match{
			Subject: ddlog.V(v),
			Cases: []ddlog.Case{
				{Pattern: &ddlog.CtorExpr{Name: "Some", Args: []ddlog.Expr{ddlog.V(some)}}, Result: ddlog.Str(text)},
				{Pattern: &ddlog.CtorExpr{Name: "None"}, Result: ddlog.Str("")},
			},
		}})
		km.match = &of.InterpolatedMatch{Expr: m}
		km.pre = nil
	default:
		return nil, diag.Errorf(diag.UnsupportedConstruct, k.Expr, "%s match has no flow form", k.MatchKind)
	}
	return km, nil
}

// dedupe drops prerequisite matches already present.
func dedupe(ms []of.Match) []of.Match {
	seen := make(map[string]bool)
	var out []of.Match
	for _, m := range ms {
		if s := m.String(); !seen[s] {
			seen[s] = true
			out = append(out, m)
		}
	}
	return out
}

// entryRule emits the rule turning each control-plane entry of the table
// into a flow.
func (g *flowGen) entryRule(n *cfg.Node, cg *cfg.Graph) {
	t := n.Table
	atom := &ddlog.Atom{Relation: RelationName(t)}
	var terms []ddlog.Term
	var pre, matches []of.Match
	for _, k := range t.Keys {
		km, err := g.keyMatch(k)
		if err != nil {
			g.report(err)
			return
		}
		atom.Args = append(atom.Args, km.arg)
		terms = append(terms, km.terms...)
		pre = append(pre, km.pre...)
		matches = append(matches, km.match)
	}
	var priority of.Expr = of.IntConstant(HighPriority)
	if !allExact(t) {
		atom.Args = append(atom.Args, ddlog.V("priority"))
		priority = &of.InterpolatedVar{Expr: "priority", Width: 32}
	}
	match := stageMatch(n.ID, priority, append(dedupe(pre), matches...)...)
	body := append([]ddlog.Term{atom}, terms...)

	if !needsActions(t) {
		a := entryActions(t)[0]
		act, err := g.actionFlow(a, nil, cg, entrySuccessor(n, cg, a.Name))
		if err != nil {
			g.report(err)
			return
		}
		g.rule("table "+t.FullName(), &of.MatchAndAction{Match: match, Action: act}, body...)
		return
	}

	atom.Args = append(atom.Args, ddlog.V("action"))
	cases, err := g.actionCases(ActionTypeName(t), entryActions(t), cg, func(a *p4.Action) *cfg.Node {
		return entrySuccessor(n, cg, a.Name)
	})
	if err != nil {
		g.report(err)
		return
	}
	body = append(body, &ddlog.Assign{Name: "actions", Value: &ddlog.Match{Subject: ddlog.V("action"), Cases: cases}})
	g.rule("table "+t.FullName(), &of.MatchAndAction{Match: match, Action: &of.InterpolatedVarAction{Name: "actions"}}, body...)
}

// constEntries emits one fact per compile-time entry, the first entry
// with the highest priority.
func (g *flowGen) constEntries(n *cfg.Node, cg *cfg.Graph) {
	t := n.Table
	for i, e := range t.Entries {
		priority := e.Priority
		if priority == 0 {
			priority = len(t.Entries) - i + LowPriority
		}
		var pre, matches []of.Match
		failed := false
		for j, k := range t.Keys {
			m, err := g.entryKeyMatch(k, e.Keys[j])
			if err != nil {
				g.report(err)
				failed = true
				continue
			}
			if m != nil {
				pre = append(pre, ofgen.Prerequisites(k.Expr)...)
				matches = append(matches, m)
			}
		}
		sub, err := g.constSub(e.Action, e.Args)
		if err != nil {
			g.report(err)
			continue
		}
		act, err := g.actionFlow(e.Action, sub, cg, entrySuccessor(n, cg, e.Action.Name))
		if err != nil {
			g.report(err)
			continue
		}
		if failed {
			continue
		}
		g.fact(fmt.Sprintf("table %s entry %d", t.FullName(), i+1), &of.MatchAndAction{
			Match:  stageMatch(n.ID, of.IntConstant(int64(priority)), append(dedupe(pre), matches...)...),
			Action: act,
		})
	}
}

// entryKeyMatch translates one key of a compile-time entry. Don't-care
// keys match everything and produce nil.
func (g *flowGen) entryKeyMatch(k *p4.Key, key p4.Expr) (of.Match, error) {
	tr := g.ctx.tr
	width := p4.TypeOf(k.Expr).Width
	left, err := tr.Value(k.Expr, nil)
	if err != nil {
		return nil, err
	}
	constant := func(e p4.Expr) (*of.Constant, error) {
		v, err := tr.Value(e, nil)
		if err != nil {
			return nil, err
		}
		c, ok := v.(*of.Constant)
		if !ok {
			return nil, diag.Errorf(diag.UnsupportedConstruct, e, "entry keys must be constants")
		}
		if c.Value.BitLen() > width {
			return nil, diag.Errorf(diag.UnsupportedConstruct, e, "key value does not fit in %d bits", width)
		}
		return c, nil
	}
	switch key := key.(type) {
	case *p4.DontCare:
		return nil, nil
	case *p4.Binary:
		if key.Op == "&&&" {
			v, err := constant(key.Left)
			if err != nil {
				return nil, err
			}
			m, err := constant(key.Right)
			if err != nil {
				return nil, err
			}
			return &of.EqualsMatch{Left: left, Right: v, Mask: m}, nil
		}
	}
	v, err := constant(key)
	if err != nil {
		return nil, err
	}
	return &of.EqualsMatch{Left: left, Right: v}, nil
}

// defaultFlow emits the lowest priority flow of the table: a fact when
// the default action is fixed, a rule over the default relation otherwise.
func (g *flowGen) defaultFlow(n *cfg.Node, cg *cfg.Graph) {
	t := n.Table
	comment := "table " + t.FullName() + " default"
	match := stageMatch(n.ID, of.IntConstant(LowPriority))
	if constDefault(t) {
		var act of.Action
		if t.Default == nil {
			act = resubmit(defaultSuccessor(n, cg, ""))
		} else {
			a := t.Default.Action
			sub, err := g.constSub(a, t.Default.Args)
			if err != nil {
				g.report(err)
				return
			}
			if act, err = g.actionFlow(a, sub, cg, defaultSuccessor(n, cg, a.Name)); err != nil {
				g.report(err)
				return
			}
		}
		g.fact(comment, &of.MatchAndAction{Match: match, Action: act})
		return
	}
	cases, err := g.actionCases(DefaultActionTypeName(t), defaultActions(t), cg, func(a *p4.Action) *cfg.Node {
		return defaultSuccessor(n, cg, a.Name)
	})
	if err != nil {
		g.report(err)
		return
	}
	g.rule(comment, &of.MatchAndAction{Match: match, Action: &of.InterpolatedVarAction{Name: "actions"}},
		&ddlog.Atom{Relation: DefaultRelationName(t), Args: []ddlog.Expr{ddlog.V("action")}},
		&ddlog.Assign{Name: "actions", Value: &ddlog.Match{Subject: ddlog.V("action"), Cases: cases}},
	)
}
