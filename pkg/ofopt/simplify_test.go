package ofopt

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/raymyers/p4c-of/pkg/of"
	"github.com/raymyers/p4c-of/pkg/resources"
)

func meta(low, high int) *of.Register {
	return of.NewRegister(resources.Register{Number: 1, Bundle: 1, Size: 32, Low: low, High: high, Friendly: "vlan"})
}

func TestSimplifyAction(t *testing.T) {
	resubmit := func(n int) of.Action { return &of.ResubmitAction{Stage: n} }
	load := &of.LoadAction{Src: of.IntConstant(1), Dst: meta(0, 11)}

	tests := []struct {
		name string
		in   of.Action
		want string
	}{
		{"truncate after resubmit", of.Seq(load, resubmit(3), &of.DropAction{}, resubmit(4)), "load(1->reg1[0..11]), resubmit(,3)"},
		{"truncate nested right", &of.SeqAction{Left: load, Right: of.Seq(resubmit(2), resubmit(5))}, "load(1->reg1[0..11]), resubmit(,2)"},
		{"empty left", &of.SeqAction{Left: &of.EmptyAction{}, Right: resubmit(1)}, "resubmit(,1)"},
		{"empty right", &of.SeqAction{Left: load, Right: &of.EmptyAction{}}, "load(1->reg1[0..11])"},
		{"empty inside clone", &of.CloneAction{Action: of.Seq(&of.EmptyAction{}, resubmit(9))}, "clone(resubmit(,9))"},
		{"resubmit in clone does not terminate", of.Seq(&of.CloneAction{Action: resubmit(9)}, resubmit(8)), "clone(resubmit(,9)), resubmit(,8)"},
		{"slice fold", &of.MoveAction{Src: &of.Slice{Base: meta(4, 15), Low: 0, High: 3}, Dst: meta(0, 3)}, "move(reg1[4..7]->reg1[0..3])"},
		{"nested slices", &of.LoadAction{Src: of.IntConstant(0), Dst: &of.Slice{Base: &of.Slice{Base: meta(8, 31), Low: 4, High: 11}, Low: 1, High: 1}}, "load(0->reg1[13])"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Action(tt.in)
			if got.String() != tt.want {
				t.Errorf("got %q, want %q", got.String(), tt.want)
			}
		})
	}
}

func TestSliceDropsFriendlyName(t *testing.T) {
	got, _ := expr(&of.Slice{Base: meta(0, 11), Low: 0, High: 3})
	r, ok := got.(*of.Register)
	if !ok {
		t.Fatalf("got %T, want a register", got)
	}
	if r.Friendly != "" {
		t.Errorf("friendly name %q survived the fold", r.Friendly)
	}
	if r.Low != 0 || r.High != 3 {
		t.Errorf("range = %d..%d, want 0..3", r.Low, r.High)
	}
}

func TestSimplifyIdempotent(t *testing.T) {
	trees := []of.Action{
		of.Seq(&of.EmptyAction{}, &of.ResubmitAction{Stage: 1}, &of.DropAction{}),
		of.Seq(&of.CloneAction{Action: of.Seq(&of.EmptyAction{}, &of.ResubmitAction{Stage: 3})}, &of.DropAction{}),
		&of.MoveAction{Src: &of.Slice{Base: meta(0, 31), Low: 8, High: 15}, Dst: meta(0, 7)},
		of.Seq(),
	}
	for _, tree := range trees {
		once := Action(tree)
		twice := Action(once)
		if diff := cmp.Diff(once.String(), twice.String()); diff != "" {
			t.Errorf("second pass changed %q (-once +twice):\n%s", tree, diff)
		}
	}
}

func TestSimplifyMatch(t *testing.T) {
	m := of.SeqM(&of.TableMatch{ID: 2}, &of.EqualsMatch{Left: &of.Slice{Base: meta(16, 31), Low: 0, High: 7}, Right: of.IntConstant(1)})
	got := Match(m)
	if want := "table=2, reg1=0x10000/0xff0000"; got.String() != want {
		t.Errorf("got %q, want %q", got, want)
	}
	eq := got.(*of.SeqMatch).Right.(*of.EqualsMatch)
	if _, ok := eq.Left.(*of.Register); !ok {
		t.Errorf("left = %T, want folded register", eq.Left)
	}
}

func TestFlow(t *testing.T) {
	f := Flow(&of.MatchAndAction{
		Match:  &of.TableMatch{ID: 4},
		Action: of.Seq(&of.DropAction{}, &of.ResubmitAction{Stage: 5}, &of.ResubmitAction{Stage: 6}),
	})
	if want := "table=4 actions=drop, resubmit(,5)"; f.String() != want {
		t.Errorf("got %q, want %q", f, want)
	}
}
