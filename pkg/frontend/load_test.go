package frontend

import (
	"strings"
	"testing"

	"github.com/raymyers/p4c-of/pkg/diag"
	"github.com/raymyers/p4c-of/pkg/p4"
)

func TestLoadFile(t *testing.T) {
	prog, err := LoadFile("../../testdata/vlan_switch.yaml")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(prog.Headers) != 2 || len(prog.Metadata) != 2 || len(prog.Standard) != 3 {
		t.Errorf("got %d headers, %d metadata, %d standard fields", len(prog.Headers), len(prog.Metadata), len(prog.Standard))
	}

	vid := prog.Headers[1].Fields[0]
	if vid.Name != "hdr.vlan.vid" || vid.Header != prog.Headers[1] || vid.Slice == nil || vid.Slice.Size != 16 {
		t.Errorf("vid = %+v", vid)
	}
	if got := prog.Standard[1].Builtin; got != p4.OutputPort {
		t.Errorf("std.output_port builtin = %v", got)
	}
	if got := prog.Standard[2].Builtin; got != p4.MulticastGroup {
		t.Errorf("std.mcast_grp builtin = %v", got)
	}
	if !prog.Metadata[1].Type.Bool {
		t.Errorf("meta.tagged is not bool")
	}

	in := prog.Ingress.LookupTable("in_vlan")
	if in == nil {
		t.Fatal("no table in_vlan")
	}
	if len(in.Keys) != 2 || in.Keys[0].Name != "port" || in.Keys[1].MatchKind != p4.Optional {
		t.Errorf("in_vlan keys = %v", in.Keys)
	}
	if in.Default == nil || in.Default.Action.Name != "drop" || !in.Default.Const {
		t.Errorf("in_vlan default = %+v", in.Default)
	}

	acl := prog.Ingress.LookupTable("acl")
	if acl.Keys[0].Name != "eth_type" {
		t.Errorf("derived key name = %q, want eth_type", acl.Keys[0].Name)
	}
	if !acl.ConstEntries || len(acl.Entries) != 2 {
		t.Fatalf("acl entries = %v", acl.Entries)
	}
	if m, ok := acl.Entries[0].Keys[0].(*p4.Binary); !ok || m.Op != "&&&" {
		t.Errorf("entry 1 key = %s", acl.Entries[0].Keys[0])
	}
	if _, ok := acl.Entries[1].Keys[0].(*p4.DontCare); !ok {
		t.Errorf("entry 2 key = %s", acl.Entries[1].Keys[0])
	}

	dst := prog.Ingress.LookupTable("dst_mac")
	if ref := dst.LookupAction("flood"); ref == nil || !ref.DefaultOnly {
		t.Errorf("flood ref = %+v", ref)
	}
}

func TestResolve(t *testing.T) {
	prog, err := LoadFile("../../testdata/vlan_switch.yaml")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	ing := prog.Ingress

	setVlan := ing.LookupAction("set_vlan")
	assign := setVlan.Body.Stmts[0].(*p4.Assign)
	if f, ok := assign.Left.(*p4.FieldRef); !ok || f.Field != prog.Metadata[0] {
		t.Errorf("set_vlan assigns to %s", assign.Left)
	}
	if p, ok := assign.Right.(*p4.ParamRef); !ok || p.Param != setVlan.Params[0] || p.Action != setVlan {
		t.Errorf("set_vlan reads %s", assign.Right)
	}

	drop := ing.LookupAction("drop").Body.Stmts[0].(*p4.CallStmt)
	if drop.Call.Method != "mark_to_drop" {
		t.Errorf("drop calls %s", drop.Call)
	}

	body := ing.Body.Stmts
	if len(body) != 4 {
		t.Fatalf("ingress body has %d statements", len(body))
	}
	if a, ok := body[0].(*p4.Apply); !ok || a.Table != ing.LookupTable("in_vlan") {
		t.Errorf("statement 1 = %s", body[0])
	}
	sw, ok := body[1].(*p4.Switch)
	if !ok {
		t.Fatalf("statement 2 = %s", body[1])
	}
	if run := sw.Subject.(*p4.ActionRun); run.Table != ing.LookupTable("acl") {
		t.Errorf("switch on %s", sw.Subject)
	}
	cond := body[2].(*p4.If).Cond.(*p4.Binary)
	if f, ok := cond.Left.(*p4.FieldRef); !ok || f.Field.OF != "dl_type" {
		t.Errorf("condition reads %s", cond.Left)
	}

	eg := prog.Egress.Body.Stmts[0].(*p4.If)
	if _, ok := eg.Cond.(*p4.FieldRef); !ok {
		t.Errorf("egress condition = %s", eg.Cond)
	}
}

const minimal = `
metadata:
  - {name: m, width: 8}
ingress:
  params: [hdr, meta, std]
  locals: [{name: tmp, width: 8}]
  actions:
    - {name: a, body: "tmp = meta.m;"}
  tables:
    - name: t
      keys: [{expr: meta.m}]
      actions: [{name: a}]
  apply: |
    if (t.apply().hit) { exit; }
egress:
  params: [hdr, meta, std]
`

func TestLoadDefaults(t *testing.T) {
	prog, err := Load(strings.NewReader(minimal))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if prog.Ingress.Name != "ingress" || prog.Egress.Name != "egress" {
		t.Errorf("control names %q, %q", prog.Ingress.Name, prog.Egress.Name)
	}
	tbl := prog.Ingress.Tables[0]
	if k := tbl.Keys[0]; k.MatchKind != p4.Exact || k.Name != "m" {
		t.Errorf("key = %+v", k)
	}
	if tbl.ConstEntries || tbl.Default != nil {
		t.Errorf("table t has entries or a default")
	}
	local := prog.Ingress.Actions[0].Body.Stmts[0].(*p4.Assign).Left.(*p4.LocalRef)
	if local.Local.Control != prog.Ingress {
		t.Errorf("local not bound to its control")
	}
	hit := prog.Ingress.Body.Stmts[0].(*p4.If).Cond.(*p4.TableHit)
	if hit.Table != tbl || !hit.Hit {
		t.Errorf("condition = %s", hit)
	}
	if len(prog.Egress.Body.Stmts) != 0 {
		t.Errorf("egress body = %s", prog.Egress.Body)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing egress", `
ingress: {params: [hdr, meta, std]}
`, "no egress control"},
		{"parameter count", `
ingress: {params: [hdr, meta]}
egress: {params: [hdr, meta, std]}
`, "expected 3 parameters"},
		{"unknown name", `
ingress:
  params: [hdr, meta, std]
  apply: "if (meta.nope == 1) exit;"
egress: {params: [hdr, meta, std]}
`, "unknown name meta.nope"},
		{"unknown action", `
ingress:
  params: [hdr, meta, std]
  tables: [{name: t, actions: [{name: a}]}]
egress: {params: [hdr, meta, std]}
`, "unknown action a"},
		{"unknown match kind", `
metadata: [{name: m, width: 8}]
ingress:
  params: [hdr, meta, std]
  tables: [{name: t, keys: [{expr: meta.m, match: fuzzy}]}]
egress: {params: [hdr, meta, std]}
`, `unknown match kind "fuzzy"`},
		{"duplicate field", `
metadata: [{name: m, width: 8}, {name: m, width: 4}]
ingress: {params: [hdr, meta, std]}
egress: {params: [hdr, meta, std]}
`, "field meta.m declared twice"},
		{"unknown builtin", `
standard: [{name: p, width: 16, builtin: teleport}]
ingress: {params: [hdr, meta, std]}
egress: {params: [hdr, meta, std]}
`, `unknown builtin "teleport"`},
		{"switch label", `
ingress:
  params: [hdr, meta, std]
  actions: [{name: a}]
  tables: [{name: t, actions: [{name: a}]}]
  apply: "switch (t.apply().action_run) { b: { exit; } }"
egress: {params: [hdr, meta, std]}
`, "switch label b is not an action of table t"},
		{"unknown table", `
ingress:
  params: [hdr, meta, std]
  apply: "u.apply();"
egress: {params: [hdr, meta, std]}
`, "cannot resolve call"},
		{"syntax error", `
ingress:
  params: [hdr, meta, std]
  apply: "if (exit;"
egress: {params: [hdr, meta, std]}
`, "control ingress"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.src))
			if err == nil {
				t.Fatalf("Load succeeded, want error containing %q", tt.want)
			}
			if !diag.Is(err, diag.StructuralError) {
				t.Errorf("err = %v, want structural error", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestLoadUnknownKey(t *testing.T) {
	_, err := Load(strings.NewReader("ingres: {}\n"))
	if err == nil || !strings.Contains(err.Error(), "decoding program") {
		t.Errorf("err = %v, want decoding error", err)
	}
}

func TestKeyName(t *testing.T) {
	tests := map[string]string{
		"meta.vlan":      "vlan",
		"hdr.vlan.vid":   "vlan_vid",
		"std.input_port": "input_port",
		"tmp":            "tmp",
	}
	for in, want := range tests {
		if got := keyName(in); got != want {
			t.Errorf("keyName(%q) = %q, want %q", in, got, want)
		}
	}
}
