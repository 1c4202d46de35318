package ddloggen

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/raymyers/p4c-of/pkg/cfg"
	"github.com/raymyers/p4c-of/pkg/ddlog"
	"github.com/raymyers/p4c-of/pkg/diag"
	"github.com/raymyers/p4c-of/pkg/of"
	"github.com/raymyers/p4c-of/pkg/p4"
	"github.com/raymyers/p4c-of/pkg/resources"
)

// Output is a compiled pipeline.
type Output struct {
	Helpers      []ddlog.Decl // register accessors and prefix masks
	Declarations []ddlog.Decl // types and relations
	Flows        []ddlog.Decl // Flow facts and rules
	Graphs       []*cfg.Graph // ingress then egress
	Stages       Stages
}

// Program returns helpers, declarations and flows in output order.
func (o *Output) Program() *ddlog.Program {
	p := &ddlog.Program{}
	p.Add(o.Helpers...)
	p.Add(o.Declarations...)
	p.Add(o.Flows...)
	return p
}

// Compile compiles prog for the target.
func Compile(prog *p4.Program, target resources.Target) (*Output, error) {
	return NewContext(target).Compile(prog)
}

// Compile runs the declaration pass and then the flow pass. Errors in
// independent tables and nodes are all reported; any error suppresses
// the output.
func (ctx *CompilationContext) Compile(prog *p4.Program) (*Output, error) {
	if prog.Ingress == nil || prog.Egress == nil {
		return nil, &diag.Error{Kind: diag.StructuralError, Msg: "a pipeline needs an ingress and an egress control"}
	}
	ctx.allocateRegisters(prog)

	ingress := ctx.buildGraph(prog.Ingress)
	mcast := cfg.NewDummy(ctx.IDs, "multicast")
	egress := ctx.buildGraph(prog.Egress)
	if ingress == nil || egress == nil {
		return nil, ctx.Errs.Err()
	}
	ctx.checkStages()

	out := &Output{
		Graphs: []*cfg.Graph{ingress, egress},
		Stages: Stages{
			Init:         InitStage,
			IngressEntry: ingress.Entry.ID,
			IngressExit:  ingress.Exit.ID,
			Multicast:    mcast.ID,
			EgressEntry:  egress.Entry.ID,
			EgressExit:   egress.Exit.ID,
		},
	}

	var bad map[*p4.Table]bool
	out.Declarations, bad = ctx.declarations(prog)

	g := &flowGen{ctx: ctx, stages: out.Stages, bad: bad, lpm: make(map[int]bool)}
	g.init()
	g.graph(ingress, g.ingressExit)
	g.multicast()
	g.graph(egress, g.egressExit)
	out.Flows = g.out

	out.Helpers = append(registerHelpers(ctx.Regs.Allocated()), prefixMaskHelpers(g.lpm)...)

	if ctx.Errs.HasErrors() {
		return nil, ctx.Errs.Err()
	}
	log.Debugf("ddloggen: %d declarations, %d flows, stages %d..%d",
		len(out.Declarations), len(out.Flows), InitStage, out.Stages.EgressExit)
	return out, nil
}

// declarations is the declaration pass. Tables failing validation are
// returned in bad and declare nothing.
func (ctx *CompilationContext) declarations(prog *p4.Program) (decls []ddlog.Decl, bad map[*p4.Table]bool) {
	bad = make(map[*p4.Table]bool)
	decls = builtinDecls()
	for _, c := range prog.Controls() {
		for _, t := range c.Tables {
			if err := ctx.validateTable(t); err != nil {
				ctx.Errs.Report(err)
				bad[t] = true
				continue
			}
			decls = append(decls, tableDecls(t)...)
		}
	}
	return decls, bad
}

func (ctx *CompilationContext) buildGraph(c *p4.Control) *cfg.Graph {
	g, err := cfg.Build(c, ctx.IDs)
	if err != nil {
		ctx.Errs.Report(err)
		return nil
	}
	if err := g.Verify(); err != nil {
		ctx.Errs.Report(err)
		return nil
	}
	return g
}

// validateTable checks the shape of t and translates everything its
// flows will need, so that a table with errors emits no declarations.
func (ctx *CompilationContext) validateTable(t *p4.Table) error {
	var errs diag.Reporter
	shape := func(format string, args ...interface{}) {
		errs.Report(diag.Errorf(diag.MalformedTableShape, t, format, args...))
	}
	if len(t.Actions) == 0 {
		shape("table has no actions")
	}
	for _, k := range t.Keys {
		typ := p4.TypeOf(k.Expr)
		switch {
		case k.MatchKind == p4.Range:
			errs.Report(diag.Errorf(diag.UnsupportedConstruct, k.Expr, "range match has no flow form"))
			continue
		case typ.Bool && k.MatchKind != p4.Exact:
			errs.Report(diag.Errorf(diag.UnsupportedConstruct, k.Expr, "boolean keys must be exact"))
			continue
		}
		v, err := ctx.tr.Value(k.Expr, nil)
		if err != nil {
			errs.Report(err)
			continue
		}
		if _, ok := of.AsRegister(v); !ok {
			errs.Report(diag.Errorf(diag.UnsupportedConstruct, k.Expr, "keys must be fields or locals"))
		}
	}
	for i, e := range t.Entries {
		ref := t.LookupAction(e.Action.Name)
		switch {
		case ref == nil:
			shape("entry %d runs %s, which the table does not list", i+1, e.Action.Name)
		case ref.DefaultOnly:
			shape("entry %d runs default-only action %s", i+1, e.Action.Name)
		}
		if len(e.Keys) != len(t.Keys) {
			shape("entry %d has %d keys, the table has %d", i+1, len(e.Keys), len(t.Keys))
		}
		if len(e.Args) != len(e.Action.Params) {
			shape("entry %d passes %d arguments to %s, which takes %d", i+1, len(e.Args), e.Action.Name, len(e.Action.Params))
		}
	}
	if d := t.Default; d != nil {
		ref := t.LookupAction(d.Action.Name)
		switch {
		case ref == nil:
			shape("default action %s is not listed", d.Action.Name)
		case ref.TableOnly:
			shape("default action %s is table-only", d.Action.Name)
		}
		if d.Const && len(d.Args) != len(d.Action.Params) {
			shape("default action %s takes %d arguments, got %d", d.Action.Name, len(d.Action.Params), len(d.Args))
		}
	}
	for _, r := range t.Actions {
		if _, err := ctx.tr.Action(r.Action.Body, 0, paramSub(r.Action)); err != nil {
			errs.Report(fmt.Errorf("table %s: %w", t.FullName(), err))
		}
	}
	return errs.Err()
}
