package frontend

import (
	"strings"

	"github.com/raymyers/p4c-of/pkg/p4"
)

// scope binds names inside one control, and inside one action when
// action is set.
type scope struct {
	b       *builder
	control *p4.Control
	action  *p4.Action
}

func (s *scope) withAction(a *p4.Action) *scope {
	return &scope{b: s.b, control: s.control, action: a}
}

func (s *scope) where() string {
	if s.action != nil {
		return "action " + s.action.Name
	}
	return "control " + s.control.Name
}

func (s *scope) block(b *p4.Block) *p4.Block {
	out := &p4.Block{}
	if b == nil {
		return out
	}
	for _, st := range b.Stmts {
		if r := s.stmt(st); r != nil {
			out.Stmts = append(out.Stmts, r)
		}
	}
	return out
}

func (s *scope) stmt(st p4.Stmt) p4.Stmt {
	switch st := st.(type) {
	case *p4.Block:
		return s.block(st)
	case *p4.If:
		cond := s.expr(st.Cond)
		then := s.stmt(st.Then)
		if cond == nil || then == nil {
			return nil
		}
		r := &p4.If{Cond: cond, Then: then}
		if st.Else != nil {
			r.Else = s.stmt(st.Else)
		}
		return r
	case *p4.Switch:
		return s.switchStmt(st)
	case *p4.CallStmt:
		return s.callStmt(st)
	case *p4.Assign:
		left, right := s.expr(st.Left), s.expr(st.Right)
		if left == nil || right == nil {
			return nil
		}
		return &p4.Assign{Left: left, Right: right}
	case *p4.Exit, *p4.Return, *p4.Empty, *p4.Apply:
		return st
	default:
		s.b.errorf("%s: unexpected statement %s", s.where(), st)
		return nil
	}
}

func (s *scope) switchStmt(st *p4.Switch) p4.Stmt {
	subject := s.expr(st.Subject)
	run, ok := subject.(*p4.ActionRun)
	if !ok {
		if subject != nil {
			s.b.errorf("%s: switch must select on t.apply().action_run, got %s", s.where(), st.Subject)
		}
		return nil
	}
	r := &p4.Switch{Subject: run}
	for _, c := range st.Cases {
		if c.Label != "default" && run.Table.LookupAction(c.Label) == nil {
			s.b.errorf("%s: switch label %s is not an action of table %s", s.where(), c.Label, run.Table.Name)
			continue
		}
		rc := p4.SwitchCase{Label: c.Label}
		if c.Body != nil {
			rc.Body = s.block(c.Body)
		}
		r.Cases = append(r.Cases, rc)
	}
	return r
}

func (s *scope) callStmt(st *p4.CallStmt) p4.Stmt {
	call := st.Call
	if call.Target == nil {
		args := make([]p4.Expr, 0, len(call.Args))
		for _, a := range call.Args {
			if r := s.arg(a); r != nil {
				args = append(args, r)
			}
		}
		return &p4.CallStmt{Call: &p4.MethodCall{Method: call.Method, Args: args}}
	}
	if call.Method == "apply" {
		if t := s.control.LookupTable(call.Target.Name); t != nil {
			return &p4.Apply{Table: t}
		}
	}
	s.b.errorf("%s: cannot resolve call %s", s.where(), call)
	return nil
}

// arg resolves a call argument. A bare control parameter, as in
// mark_to_drop(std), is kept as a path.
func (s *scope) arg(e p4.Expr) p4.Expr {
	if p, ok := e.(*p4.Path); ok {
		for _, prm := range s.control.Params {
			if prm.Name == p.Name {
				return p
			}
		}
	}
	return s.expr(e)
}

func (s *scope) exprs(es []p4.Expr) []p4.Expr {
	var out []p4.Expr
	for _, e := range es {
		if r := s.expr(e); r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (s *scope) expr(e p4.Expr) p4.Expr {
	switch e := e.(type) {
	case nil:
		return nil
	case *p4.Path:
		return s.path(e)
	case *p4.MethodCall:
		if e.Method == "isValid" && e.Target != nil {
			if h := s.header(e.Target.Name); h != nil {
				return &p4.IsValid{Header: h}
			}
		}
		s.b.errorf("%s: cannot resolve call %s", s.where(), e)
		return nil
	case *p4.Member:
		call, ok := e.Expr.(*p4.MethodCall)
		if ok && call.Method == "apply" && call.Target != nil {
			if t := s.control.LookupTable(call.Target.Name); t != nil {
				switch e.Member {
				case "hit":
					return &p4.TableHit{Table: t, Hit: true}
				case "miss":
					return &p4.TableHit{Table: t, Hit: false}
				case "action_run":
					return &p4.ActionRun{Table: t}
				}
			}
		}
		s.b.errorf("%s: cannot resolve %s", s.where(), e)
		return nil
	case *p4.Binary:
		left, right := s.expr(e.Left), s.expr(e.Right)
		if left == nil || right == nil {
			return nil
		}
		return &p4.Binary{Op: e.Op, Left: left, Right: right}
	case *p4.Unary:
		x := s.expr(e.X)
		if x == nil {
			return nil
		}
		return &p4.Unary{Op: e.Op, X: x}
	case *p4.Slice:
		x := s.expr(e.X)
		if x == nil {
			return nil
		}
		return &p4.Slice{X: x, High: e.High, Low: e.Low}
	case *p4.Cast:
		x := s.expr(e.X)
		if x == nil {
			return nil
		}
		return &p4.Cast{Type: e.Type, X: x}
	default:
		return e
	}
}

func (s *scope) path(p *p4.Path) p4.Expr {
	parts := strings.Split(p.Name, ".")
	if len(parts) == 1 {
		if s.action != nil {
			for _, prm := range s.action.Params {
				if prm.Name == p.Name {
					return &p4.ParamRef{Param: prm, Action: s.action}
				}
			}
		}
		for _, l := range s.control.Locals {
			if l.Name == p.Name {
				return &p4.LocalRef{Local: l}
			}
		}
	} else if prefix := s.paramPrefix(parts[0]); prefix != "" {
		if f, ok := s.b.fields[prefix+strings.Join(parts[1:], ".")]; ok {
			return &p4.FieldRef{Field: f}
		}
	}
	s.b.errorf("%s: unknown name %s", s.where(), p.Name)
	return nil
}

// paramPrefix maps the control's parameter names to the qualified field
// prefixes: headers, metadata and standard metadata, in that order.
func (s *scope) paramPrefix(name string) string {
	prefixes := []string{"hdr.", "meta.", "std."}
	for i, prm := range s.control.Params {
		if i < len(prefixes) && prm.Name == name {
			return prefixes[i]
		}
	}
	return ""
}

func (s *scope) header(path string) *p4.Header {
	parts := strings.Split(path, ".")
	if len(parts) != 2 || s.paramPrefix(parts[0]) != "hdr." {
		return nil
	}
	return s.b.headers[parts[1]]
}
