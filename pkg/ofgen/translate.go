// Package ofgen translates resolved P4 expressions and action bodies into
// the OpenFlow match/action IR.
package ofgen

import (
	"fmt"
	"math/big"

	"github.com/raymyers/p4c-of/pkg/diag"
	"github.com/raymyers/p4c-of/pkg/of"
	"github.com/raymyers/p4c-of/pkg/p4"
	"github.com/raymyers/p4c-of/pkg/resources"
)

// Names of the registers reserved for the output port and multicast group.
const (
	OutputPortRegister     = "out_port"
	MulticastGroupRegister = "mcast_grp"
)

// Registers hands out register ranges for metadata and locals.
type Registers interface {
	Allocate(name string, declared, minimum int, isBool bool) (resources.Register, error)
	Lookup(name string) (resources.Register, bool)
}

// Substitution gives the value each action parameter takes in the flow
// being generated: a constant for compile-time entries, an interpolated
// variable for control-plane supplied ones.
type Substitution map[*p4.Param]of.Expr

// Translator converts expressions and statements. It holds no state of
// its own besides the register file, so the same action body can be
// translated once per calling context.
type Translator struct {
	regs   Registers
	target resources.Target
}

// New creates a translator allocating from regs.
func New(regs Registers, target resources.Target) *Translator {
	return &Translator{regs: regs, target: target}
}

// FieldRegister returns the register or packet field holding f. Slice
// annotations are validated here.
func (t *Translator) FieldRegister(f *p4.Field) (resources.Register, error) {
	width := f.Type.Width
	switch f.Builtin {
	case p4.OutputPort:
		return t.reserved(OutputPortRegister, f)
	case p4.MulticastGroup:
		return t.reserved(MulticastGroupRegister, f)
	}
	if f.OF == "" {
		r, err := t.regs.Allocate(f.Name, width, f.Type.MinWidth(), f.Type.Bool)
		if err != nil {
			return resources.Register{}, err
		}
		return r, nil
	}
	if f.Slice == nil {
		return resources.FieldRegister(f.OF, width, 0, width-1), nil
	}
	s := f.Slice
	if s.Low < 0 || s.Low > s.High || s.High >= s.Size {
		return resources.Register{}, &diag.Error{
			Kind:      diag.InvalidSliceAnnotation,
			Construct: f.Name,
			Msg:       fmt.Sprintf("slice [%d..%d] does not fit in a %d-bit field", s.Low, s.High, s.Size),
		}
	}
	if s.High-s.Low+1 != width {
		return resources.Register{}, &diag.Error{
			Kind:      diag.InvalidSliceAnnotation,
			Construct: f.Name,
			Msg:       fmt.Sprintf("slice [%d..%d] covers %d bits, field has %d", s.Low, s.High, s.High-s.Low+1, width),
		}
	}
	return resources.FieldRegister(f.OF, s.Size, s.Low, s.High), nil
}

func (t *Translator) reserved(name string, f *p4.Field) (resources.Register, error) {
	r, ok := t.regs.Lookup(name)
	if !ok {
		return resources.Register{}, &diag.Error{Kind: diag.StructuralError, Construct: f.Name, Msg: "reserved register " + name + " is not allocated"}
	}
	if r.Width() < f.Type.Width {
		return resources.Register{}, &diag.Error{
			Kind:      diag.UnsupportedConstruct,
			Construct: f.Name,
			Msg:       fmt.Sprintf("%d bits do not fit the %d-bit %s register", f.Type.Width, r.Width(), name),
		}
	}
	return r, nil
}

// LocalRegister returns the register holding a control local.
func (t *Translator) LocalRegister(l *p4.Local) (resources.Register, error) {
	name := l.Name
	if l.Control != nil {
		name = l.Control.Name + "." + l.Name
	}
	return t.regs.Allocate(name, l.Type.Width, l.Type.MinWidth(), l.Type.Bool)
}

// Prerequisites returns the prerequisite matches of every field read by e,
// in order of appearance and without repeats.
func Prerequisites(e p4.Expr) []of.Match {
	var out []of.Match
	seen := make(map[string]bool)
	var walk func(p4.Expr)
	walk = func(e p4.Expr) {
		switch e := e.(type) {
		case *p4.FieldRef:
			if p := e.Field.Prereq; p != "" && !seen[p] {
				seen[p] = true
				out = append(out, &of.PrerequisiteMatch{Text: p})
			}
		case *p4.Binary:
			walk(e.Left)
			walk(e.Right)
		case *p4.Unary:
			walk(e.X)
		case *p4.Slice:
			walk(e.X)
		case *p4.Cast:
			walk(e.X)
		}
	}
	walk(e)
	return out
}

// Match translates a condition. A nil match with a nil error means the
// condition always holds.
func (t *Translator) Match(e p4.Expr, sub Substitution) (of.Match, error) {
	m, err := t.match(e, sub)
	if err != nil || m == nil {
		return m, err
	}
	pre := Prerequisites(e)
	if len(pre) == 0 {
		return m, nil
	}
	return of.SeqM(append(pre, m)...), nil
}

func (t *Translator) match(e p4.Expr, sub Substitution) (of.Match, error) {
	switch e := e.(type) {
	case *p4.BoolLit:
		if e.Value {
			return nil, nil
		}
		return nil, diag.Errorf(diag.UnsupportedConstruct, e, "a condition that never holds has no flow")
	case *p4.IsValid:
		if e.Header.Protocol == "" {
			return nil, diag.Errorf(diag.UnsupportedConstruct, e, "header %s has no validity match", e.Header.Name)
		}
		return &of.ProtocolMatch{Proto: e.Header.Protocol}, nil
	case *p4.Binary:
		switch e.Op {
		case "&&":
			left, err := t.match(e.Left, sub)
			if err != nil {
				return nil, err
			}
			right, err := t.match(e.Right, sub)
			if err != nil {
				return nil, err
			}
			if left == nil {
				return right, nil
			}
			if right == nil {
				return left, nil
			}
			return &of.SeqMatch{Left: left, Right: right}, nil
		case "==":
			return t.equals(e, sub)
		}
		return nil, diag.Errorf(diag.UnsupportedConstruct, e, "operator %s cannot be matched", e.Op)
	case *p4.FieldRef, *p4.LocalRef, *p4.Slice, *p4.Cast:
		if !p4.TypeOf(e).Bool {
			return nil, diag.Errorf(diag.UnsupportedConstruct, e, "only boolean values can be used as conditions")
		}
		left, err := t.Value(e, sub)
		if err != nil {
			return nil, err
		}
		// booleans have no native match form
		return &of.EqualsMatch{Left: left, Right: of.IntConstant(1)}, nil
	}
	return nil, diag.Errorf(diag.UnsupportedConstruct, e, "cannot be used as a match")
}

func isStorage(e p4.Expr) bool {
	switch e := e.(type) {
	case *p4.FieldRef, *p4.LocalRef:
		return true
	case *p4.Slice:
		return isStorage(e.X)
	case *p4.Cast:
		return isStorage(e.X)
	}
	return false
}

func (t *Translator) equals(e *p4.Binary, sub Substitution) (of.Match, error) {
	left, right := e.Left, e.Right
	if !isStorage(left) {
		left, right = right, left
	}
	if !isStorage(left) || isStorage(right) {
		return nil, diag.Errorf(diag.UnsupportedConstruct, e, "equality must compare a field with a value")
	}
	l, err := t.Value(left, sub)
	if err != nil {
		return nil, err
	}
	r, err := t.Value(right, sub)
	if err != nil {
		return nil, err
	}
	if err := fits(r, p4.TypeOf(left).Width, e); err != nil {
		return nil, err
	}
	return &of.EqualsMatch{Left: l, Right: r}, nil
}

func fits(v of.Expr, width int, construct fmt.Stringer) error {
	c, ok := v.(*of.Constant)
	if !ok || width == 0 {
		return nil
	}
	if c.Value.BitLen() > width {
		return diag.Errorf(diag.UnsupportedConstruct, construct, "constant %s does not fit in %d bits", c, width)
	}
	return nil
}

// Value translates an expression read or written by an action or match.
func (t *Translator) Value(e p4.Expr, sub Substitution) (of.Expr, error) {
	switch e := e.(type) {
	case *p4.FieldRef:
		r, err := t.FieldRegister(e.Field)
		if err != nil {
			return nil, err
		}
		return of.NewRegister(r), nil
	case *p4.LocalRef:
		r, err := t.LocalRegister(e.Local)
		if err != nil {
			return nil, err
		}
		return of.NewRegister(r), nil
	case *p4.ParamRef:
		v, ok := sub[e.Param]
		if !ok {
			return nil, diag.Errorf(diag.UnsupportedConstruct, e, "parameter %s has no value here", e.Param.Name)
		}
		return v, nil
	case *p4.Constant:
		return constant(e)
	case *p4.BoolLit:
		if e.Value {
			return of.IntConstant(1), nil
		}
		return of.IntConstant(0), nil
	case *p4.Slice:
		width := p4.TypeOf(e.X).Width
		if e.Low < 0 || e.Low > e.High || e.High >= width {
			return nil, diag.Errorf(diag.UnsupportedConstruct, e, "slice [%d:%d] of a %d-bit value", e.High, e.Low, width)
		}
		base, err := t.Value(e.X, sub)
		if err != nil {
			return nil, err
		}
		if c, ok := base.(*of.Constant); ok {
			v := new(big.Int).Rsh(c.Value, uint(e.Low))
			return of.NewConstant(v.And(v, resources.GetMask(e.High-e.Low+1)), c.Base), nil
		}
		return &of.Slice{Base: base, Low: e.Low, High: e.High}, nil
	case *p4.Cast:
		return t.cast(e, sub)
	}
	return nil, diag.Errorf(diag.UnsupportedConstruct, e, "not supported on this target")
}

func constant(e *p4.Constant) (of.Expr, error) {
	if e.Value.Sign() < 0 {
		return nil, diag.Errorf(diag.UnsupportedConstruct, e, "negative constants are not supported")
	}
	if e.Width > 0 && e.Value.BitLen() > e.Width {
		return nil, diag.Errorf(diag.UnsupportedConstruct, e, "constant does not fit in %d bits", e.Width)
	}
	base := 10
	if e.Base == 16 {
		base = 16
	}
	return of.NewConstant(new(big.Int).Set(e.Value), base), nil
}

// cast allows narrowing, and widening of constants only.
func (t *Translator) cast(e *p4.Cast, sub Substitution) (of.Expr, error) {
	x, err := t.Value(e.X, sub)
	if err != nil {
		return nil, err
	}
	to := e.Type.Width
	from := p4.TypeOf(e.X).Width
	if c, ok := x.(*of.Constant); ok {
		v := new(big.Int).And(c.Value, resources.GetMask(to))
		return of.NewConstant(v, c.Base), nil
	}
	switch {
	case from == to:
		return x, nil
	case from > to:
		return &of.Slice{Base: x, Low: 0, High: to - 1}, nil
	}
	return nil, diag.Errorf(diag.UnsupportedConstruct, e, "widening cast from %d to %d bits", from, to)
}

// Action translates a statement of an action body or control. Statements
// after exit or return are not translated.
func (t *Translator) Action(s p4.Stmt, exitStage int, sub Substitution) (of.Action, error) {
	a, _, err := t.action(s, exitStage, sub)
	return a, err
}

// action also reports whether s ends the action.
func (t *Translator) action(s p4.Stmt, exitStage int, sub Substitution) (of.Action, bool, error) {
	switch s := s.(type) {
	case nil, *p4.Empty:
		return &of.EmptyAction{}, false, nil
	case *p4.Block:
		if s == nil {
			return &of.EmptyAction{}, false, nil
		}
		var parts []of.Action
		for _, st := range s.Stmts {
			a, done, err := t.action(st, exitStage, sub)
			if err != nil {
				return nil, false, err
			}
			parts = append(parts, a)
			if done {
				return of.Seq(parts...), true, nil
			}
		}
		return of.Seq(parts...), false, nil
	case *p4.Exit:
		return &of.ResubmitAction{Stage: exitStage}, true, nil
	case *p4.Return:
		return &of.EmptyAction{}, true, nil
	case *p4.Assign:
		a, err := t.assign(s, sub)
		return a, false, err
	case *p4.CallStmt:
		a, err := t.call(s)
		return a, false, err
	}
	return nil, false, diag.Errorf(diag.UnsupportedConstruct, s, "statement not supported in an action")
}

func (t *Translator) assign(s *p4.Assign, sub Substitution) (of.Action, error) {
	if !isStorage(s.Left) {
		return nil, diag.Errorf(diag.UnsupportedConstruct, s, "can only assign to fields and locals")
	}
	dst, err := t.Value(s.Left, sub)
	if err != nil {
		return nil, err
	}
	src, err := t.Value(s.Right, sub)
	if err != nil {
		return nil, err
	}
	width := p4.TypeOf(s.Left).Width
	switch src := src.(type) {
	case *of.Constant, *of.InterpolatedVar:
		if err := fits(src, width, s); err != nil {
			return nil, err
		}
		return &of.LoadAction{Src: src, Dst: dst}, nil
	}
	if w := p4.TypeOf(s.Right).Width; w != width {
		return nil, diag.Errorf(diag.UnsupportedConstruct, s, "moving %d bits into %d bits", w, width)
	}
	return &of.MoveAction{Src: src, Dst: dst}, nil
}

func (t *Translator) call(s *p4.CallStmt) (of.Action, error) {
	switch s.Call.Method {
	case "mark_to_drop":
		r, ok := t.regs.Lookup(OutputPortRegister)
		if !ok {
			return nil, diag.Errorf(diag.StructuralError, s, "output port register is not allocated")
		}
		return &of.LoadAction{
			Src: of.NewConstant(new(big.Int).SetUint64(t.target.DropPort), 16),
			Dst: of.NewRegister(r),
		}, nil
	}
	return nil, diag.Errorf(diag.UnsupportedConstruct, s, "unknown builtin %s", s.Call.Method)
}
