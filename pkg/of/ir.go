// Package of defines the OpenFlow match/action IR produced by the
// backend and renders it in ovs-ofctl flow syntax.
package of

import (
	"math/big"

	"github.com/raymyers/p4c-of/pkg/resources"
)

// Node is implemented by every IR node.
type Node interface {
	String() string
}

// Expr is a value read or written by a match or action.
type Expr interface {
	Node
	implExpr()
}

// Register is a register range or packet field.
type Register struct {
	resources.Register
}

// Constant is an integer literal. Base selects decimal or hex output.
type Constant struct {
	Value *big.Int
	Base  int
}

// InterpolatedVar is a value supplied by a DDlog binding at rule
// instantiation time, rendered as ${Expr}. Width is the width of the
// bound value in bits.
type InterpolatedVar struct {
	Expr  string
	Width int
}

// Slice is bits [Low, High] of Base.
type Slice struct {
	Base Expr
	Low  int
	High int
}

func (*Register) implExpr()        {}
func (*Constant) implExpr()        {}
func (*InterpolatedVar) implExpr() {}
func (*Slice) implExpr()           {}

// NewRegister wraps an allocated register.
func NewRegister(r resources.Register) *Register {
	return &Register{Register: r}
}

// NewConstant builds a constant in the given base.
func NewConstant(v *big.Int, base int) *Constant {
	return &Constant{Value: v, Base: base}
}

// IntConstant builds a decimal constant.
func IntConstant(v int64) *Constant {
	return &Constant{Value: big.NewInt(v), Base: 10}
}

// Match is one condition of a flow.
type Match interface {
	Node
	implMatch()
}

// TableMatch selects the stage: table=ID.
type TableMatch struct {
	ID int
}

// EqualsMatch compares Left against Right, optionally under Mask.
// Left is a register or a slice of one.
type EqualsMatch struct {
	Left  Expr
	Right Expr
	Mask  Expr // nil: the bits covered by Left
}

// ProtocolMatch requires a protocol, for example "ip" or "vlan_tci=0x1000/0x1000".
type ProtocolMatch struct {
	Proto string
}

// PrerequisiteMatch is fixed match text that must precede a field's match.
type PrerequisiteMatch struct {
	Text string
}

// PriorityMatch sets the flow priority.
type PriorityMatch struct {
	Priority Expr
}

// InterpolatedMatch is match text computed by DDlog. The computed text
// carries its own leading ", " when non-empty.
type InterpolatedMatch struct {
	Expr string
}

// SeqMatch is Left followed by Right.
type SeqMatch struct {
	Left  Match
	Right Match
}

func (*TableMatch) implMatch()        {}
func (*EqualsMatch) implMatch()       {}
func (*ProtocolMatch) implMatch()     {}
func (*PrerequisiteMatch) implMatch() {}
func (*PriorityMatch) implMatch()     {}
func (*InterpolatedMatch) implMatch() {}
func (*SeqMatch) implMatch()          {}

// Action is one action of a flow.
type Action interface {
	Node
	implAction()
}

// EmptyAction does nothing and renders as nothing.
type EmptyAction struct{}

// ExplicitAction is literal action text.
type ExplicitAction struct {
	Text string
}

// MoveAction copies Src into Dst.
type MoveAction struct {
	Src Expr
	Dst Expr
}

// LoadAction stores the constant Src into Dst.
type LoadAction struct {
	Src Expr
	Dst Expr
}

// SeqAction is Left followed by Right.
type SeqAction struct {
	Left  Action
	Right Action
}

// DropAction drops the packet.
type DropAction struct{}

// CloneAction runs Action on a copy of the packet.
type CloneAction struct {
	Action Action
}

// OutputAction sends the packet to the port held in Port.
type OutputAction struct {
	Port Expr
}

// ResubmitAction continues processing at stage Stage.
type ResubmitAction struct {
	Stage int
}

// InterpolatedVarAction is action text computed by DDlog: ${Name}.
type InterpolatedVarAction struct {
	Name string
}

func (*EmptyAction) implAction()           {}
func (*ExplicitAction) implAction()        {}
func (*MoveAction) implAction()            {}
func (*LoadAction) implAction()            {}
func (*SeqAction) implAction()             {}
func (*DropAction) implAction()            {}
func (*CloneAction) implAction()           {}
func (*OutputAction) implAction()          {}
func (*ResubmitAction) implAction()        {}
func (*InterpolatedVarAction) implAction() {}

// MatchAndAction is one flow.
type MatchAndAction struct {
	Match  Match
	Action Action
}

// Seq chains actions left to right. Nil entries are skipped.
func Seq(actions ...Action) Action {
	var result Action
	for _, a := range actions {
		if a == nil {
			continue
		}
		if result == nil {
			result = a
		} else {
			result = &SeqAction{Left: result, Right: a}
		}
	}
	if result == nil {
		return &EmptyAction{}
	}
	return result
}

// SeqM chains matches left to right. Nil entries are skipped.
func SeqM(matches ...Match) Match {
	var result Match
	for _, m := range matches {
		if m == nil {
			continue
		}
		if result == nil {
			result = m
		} else {
			result = &SeqMatch{Left: result, Right: m}
		}
	}
	return result
}
