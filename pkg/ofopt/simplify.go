// Peephole simplification of OpenFlow match/action trees.
// Slices of registers become narrower registers, empty actions vanish
// from sequences and nothing survives after the first resubmit.
package ofopt

import (
	"github.com/raymyers/p4c-of/pkg/of"
)

// Flow simplifies both halves of a flow until nothing changes.
func Flow(f *of.MatchAndAction) *of.MatchAndAction {
	return &of.MatchAndAction{Match: Match(f.Match), Action: Action(f.Action)}
}

// Action simplifies an action tree to a fixed point.
func Action(a of.Action) of.Action {
	for {
		next, changed := action(a)
		if !changed {
			return next
		}
		a = next
	}
}

// Match simplifies a match tree to a fixed point.
func Match(m of.Match) of.Match {
	for {
		next, changed := match(m)
		if !changed {
			return next
		}
		m = next
	}
}

// Terminates reports whether a ends in a transfer of control, after which
// no other action may run.
func Terminates(a of.Action) bool {
	switch a := a.(type) {
	case *of.ResubmitAction:
		return true
	case *of.SeqAction:
		return Terminates(a.Left) || Terminates(a.Right)
	}
	return false
}

func isEmpty(a of.Action) bool {
	_, ok := a.(*of.EmptyAction)
	return ok
}

// action performs one rewriting pass.
func action(a of.Action) (of.Action, bool) {
	switch a := a.(type) {
	case *of.SeqAction:
		left, lc := action(a.Left)
		if Terminates(left) {
			// the right operand is unreachable
			return left, true
		}
		right, rc := action(a.Right)
		switch {
		case isEmpty(left):
			return right, true
		case isEmpty(right):
			return left, true
		}
		if lc || rc {
			return &of.SeqAction{Left: left, Right: right}, true
		}
		return a, false
	case *of.CloneAction:
		inner, changed := action(a.Action)
		if changed {
			return &of.CloneAction{Action: inner}, true
		}
		return a, false
	case *of.MoveAction:
		src, sc := expr(a.Src)
		dst, dc := expr(a.Dst)
		if sc || dc {
			return &of.MoveAction{Src: src, Dst: dst}, true
		}
		return a, false
	case *of.LoadAction:
		dst, changed := expr(a.Dst)
		if changed {
			return &of.LoadAction{Src: a.Src, Dst: dst}, true
		}
		return a, false
	case *of.OutputAction:
		port, changed := expr(a.Port)
		if changed {
			return &of.OutputAction{Port: port}, true
		}
		return a, false
	}
	return a, false
}

func match(m of.Match) (of.Match, bool) {
	switch m := m.(type) {
	case *of.SeqMatch:
		left, lc := match(m.Left)
		right, rc := match(m.Right)
		if lc || rc {
			return &of.SeqMatch{Left: left, Right: right}, true
		}
		return m, false
	case *of.EqualsMatch:
		left, changed := expr(m.Left)
		if changed {
			return &of.EqualsMatch{Left: left, Right: m.Right, Mask: m.Mask}, true
		}
		return m, false
	}
	return m, false
}

func expr(e of.Expr) (of.Expr, bool) {
	s, ok := e.(*of.Slice)
	if !ok {
		return e, false
	}
	base, changed := expr(s.Base)
	if r, ok := base.(*of.Register); ok {
		if folded, ok := r.Slice(s.Low, s.High); ok {
			return of.NewRegister(folded), true
		}
	}
	if changed {
		return &of.Slice{Base: base, Low: s.Low, High: s.High}, true
	}
	return e, false
}
