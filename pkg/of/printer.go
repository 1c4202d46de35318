package of

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/raymyers/p4c-of/pkg/resources"
)

func (f *MatchAndAction) String() string {
	return f.Match.String() + " actions=" + f.Action.String()
}

// Expressions. Outside a match registers use the action form.

func (r *Register) String() string {
	return r.ActionString()
}

func (c *Constant) String() string {
	switch c.Base {
	case 16:
		if c.Value.Sign() < 0 {
			return "-0x" + new(big.Int).Neg(c.Value).Text(16)
		}
		return "0x" + c.Value.Text(16)
	case 2:
		return "0b" + c.Value.Text(2)
	default:
		return c.Value.Text(10)
	}
}

func (v *InterpolatedVar) String() string {
	return "${" + v.Expr + "}"
}

func (s *Slice) String() string {
	return fmt.Sprintf("%s[%d..%d]", s.Base, s.Low, s.High)
}

// Matches

func (m *TableMatch) String() string {
	return "table=" + strconv.Itoa(m.ID)
}

func (m *ProtocolMatch) String() string {
	return m.Proto
}

func (m *PrerequisiteMatch) String() string {
	return m.Text
}

func (m *PriorityMatch) String() string {
	return "priority=" + m.Priority.String()
}

func (m *InterpolatedMatch) String() string {
	return "${" + m.Expr + "}"
}

func (m *SeqMatch) String() string {
	if _, ok := m.Right.(*InterpolatedMatch); ok {
		return m.Left.String() + m.Right.String()
	}
	return m.Left.String() + ", " + m.Right.String()
}

func (m *EqualsMatch) String() string {
	r, ok := AsRegister(m.Left)
	if !ok {
		return m.Left.String() + "=" + m.Right.String()
	}
	s := r.BaseName() + "=" + positioned(m.Right, r)
	switch {
	case m.Mask != nil:
		s += "/" + positioned(m.Mask, r)
	case r.Field == "" || !r.FullRange():
		s += "/0x" + r.Mask().Text(16)
	}
	return s
}

// AsRegister returns the register e denotes, folding slices of registers.
func AsRegister(e Expr) (resources.Register, bool) {
	switch e := e.(type) {
	case *Register:
		return e.Register, true
	case *Slice:
		base, ok := AsRegister(e.Base)
		if !ok {
			return resources.Register{}, false
		}
		return base.Slice(e.Low, e.High)
	}
	return resources.Register{}, false
}

// positioned renders a value moved to the bit offset of r within its base.
func positioned(v Expr, r resources.Register) string {
	switch v := v.(type) {
	case *Constant:
		if r.Low == 0 {
			return v.String()
		}
		return "0x" + new(big.Int).Lsh(v.Value, uint(r.Low)).Text(16)
	case *InterpolatedVar:
		if r.Low == 0 {
			return v.String()
		}
		return fmt.Sprintf("${(%s as bit<%d>) << %d}", v.Expr, r.Size, r.Low)
	}
	return v.String()
}

// MaskRange returns the bit range of a contiguous mask. ok is false for
// zero or non-contiguous masks.
func MaskRange(mask *big.Int) (low, high int, ok bool) {
	if mask.Sign() <= 0 {
		return 0, 0, false
	}
	low = int(mask.TrailingZeroBits())
	high = mask.BitLen() - 1
	want := new(big.Int).Xor(resources.GetMask(high+1), resources.GetMask(low))
	return low, high, want.Cmp(mask) == 0
}

// Actions

func (*EmptyAction) String() string {
	return ""
}

func (a *ExplicitAction) String() string {
	return a.Text
}

func (a *MoveAction) String() string {
	return "move(" + a.Src.String() + "->" + a.Dst.String() + ")"
}

func (a *LoadAction) String() string {
	return "load(" + a.Src.String() + "->" + a.Dst.String() + ")"
}

func (a *SeqAction) String() string {
	l, r := a.Left.String(), a.Right.String()
	switch {
	case l == "":
		return r
	case r == "":
		return l
	}
	return l + ", " + r
}

func (*DropAction) String() string {
	return "drop"
}

func (a *CloneAction) String() string {
	return "clone(" + a.Action.String() + ")"
}

func (a *OutputAction) String() string {
	return "output(" + a.Port.String() + ")"
}

func (a *ResubmitAction) String() string {
	return "resubmit(," + strconv.Itoa(a.Stage) + ")"
}

func (a *InterpolatedVarAction) String() string {
	return "${" + a.Name + "}"
}
