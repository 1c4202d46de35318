package of

import (
	"math/big"
	"testing"

	"github.com/raymyers/p4c-of/pkg/resources"
)

func reg(number, bundle, low, high int) *Register {
	return NewRegister(resources.Register{Number: number, Bundle: bundle, Size: 32 * bundle, Low: low, High: high})
}

func TestMatchString(t *testing.T) {
	vid := NewRegister(resources.FieldRegister("vlan_tci", 16, 0, 11))
	inPort := NewRegister(resources.FieldRegister("in_port", 16, 0, 15))

	tests := []struct {
		name string
		m    Match
		want string
	}{
		{"table", &TableMatch{ID: 3}, "table=3"},
		{"register constant", &EqualsMatch{Left: reg(0, 1, 16, 31), Right: IntConstant(5)}, "reg0=0x50000/0xffff0000"},
		{"low register", &EqualsMatch{Left: reg(1, 1, 0, 7), Right: IntConstant(9)}, "reg1=9/0xff"},
		{"bundle", &EqualsMatch{Left: reg(4, 2, 0, 47), Right: NewConstant(big.NewInt(255), 16)}, "xreg2=0xff/0xffffffffffff"},
		{"partial field", &EqualsMatch{Left: vid, Right: IntConstant(10)}, "vlan_tci=10/0xfff"},
		{"whole field", &EqualsMatch{Left: inPort, Right: IntConstant(1)}, "in_port=1"},
		{"interpolated", &EqualsMatch{Left: reg(0, 1, 8, 15), Right: &InterpolatedVar{Expr: "k_port", Width: 8}},
			"reg0=${(k_port as bit<32>) << 8}/0xff00"},
		{"explicit mask", &EqualsMatch{Left: inPort, Right: &InterpolatedVar{Expr: "v"}, Mask: &InterpolatedVar{Expr: "m"}},
			"in_port=${v}/${m}"},
		{"slice", &EqualsMatch{Left: &Slice{Base: reg(2, 1, 8, 23), Low: 0, High: 3}, Right: IntConstant(1)},
			"reg2=0x100/0xf00"},
		{"seq", SeqM(&TableMatch{ID: 1}, &PriorityMatch{Priority: IntConstant(100)}, &ProtocolMatch{Proto: "ip"}),
			"table=1, priority=100, ip"},
		{"seq interpolated", SeqM(&TableMatch{ID: 1}, &InterpolatedMatch{Expr: "opt"}), "table=1${opt}"},
		{"prereq", SeqM(&PrerequisiteMatch{Text: "vlan_tci=0x1000/0x1000"}, &EqualsMatch{Left: vid, Right: IntConstant(2)}),
			"vlan_tci=0x1000/0x1000, vlan_tci=2/0xfff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionString(t *testing.T) {
	out := reg(0, 1, 0, 15)
	tests := []struct {
		name string
		a    Action
		want string
	}{
		{"empty", &EmptyAction{}, ""},
		{"drop", &DropAction{}, "drop"},
		{"resubmit", &ResubmitAction{Stage: 7}, "resubmit(,7)"},
		{"move", &MoveAction{Src: reg(1, 1, 0, 31), Dst: reg(2, 1, 4, 4)}, "move(reg1[]->reg2[4])"},
		{"load", &LoadAction{Src: NewConstant(big.NewInt(0xffff), 16), Dst: out}, "load(0xffff->reg0[0..15])"},
		{"output", &OutputAction{Port: out}, "output(reg0[0..15])"},
		{"clone", &CloneAction{Action: Seq(&LoadAction{Src: IntConstant(2), Dst: out}, &ResubmitAction{Stage: 9})},
			"clone(load(2->reg0[0..15]), resubmit(,9))"},
		{"seq elides empty", Seq(&EmptyAction{}, &DropAction{}, &EmptyAction{}), "drop"},
		{"interpolated", Seq(&InterpolatedVarAction{Name: "a"}, &ResubmitAction{Stage: 2}), "${a}, resubmit(,2)"},
		{"nothing", Seq(), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFlowString(t *testing.T) {
	tests := []struct {
		flow *MatchAndAction
		want string
	}{
		{&MatchAndAction{Match: &TableMatch{ID: 0}, Action: &ResubmitAction{Stage: 1}}, "table=0 actions=resubmit(,1)"},
		{&MatchAndAction{Match: SeqM(&TableMatch{ID: 1}, &PriorityMatch{Priority: IntConstant(1)}), Action: &DropAction{}},
			"table=1, priority=1 actions=drop"},
	}
	for _, tt := range tests {
		if got := tt.flow.String(); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}

func TestMaskRange(t *testing.T) {
	tests := []struct {
		mask      int64
		low, high int
		ok        bool
	}{
		{0xff, 0, 7, true},
		{0xff00, 8, 15, true},
		{0x10, 4, 4, true},
		{0x0, 0, 0, false},
		{0x101, 0, 8, false},
	}
	for _, tt := range tests {
		low, high, ok := MaskRange(big.NewInt(tt.mask))
		if ok != tt.ok || (ok && (low != tt.low || high != tt.high)) {
			t.Errorf("MaskRange(%#x) = %d, %d, %v; want %d, %d, %v", tt.mask, low, high, ok, tt.low, tt.high, tt.ok)
		}
	}
}
