// Package frontend reads a pipeline program from its YAML description,
// parses the embedded P4 text and resolves every name, producing the
// p4.Program the backend compiles.
package frontend

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/raymyers/p4c-of/pkg/diag"
	"github.com/raymyers/p4c-of/pkg/lexer"
	"github.com/raymyers/p4c-of/pkg/p4"
	"github.com/raymyers/p4c-of/pkg/parser"
)

type fileProgram struct {
	Headers  []fileHeader `yaml:"headers"`
	Metadata []fileField  `yaml:"metadata"`
	Standard []fileField  `yaml:"standard"`
	Ingress  *fileControl `yaml:"ingress"`
	Egress   *fileControl `yaml:"egress"`
}

type fileHeader struct {
	Name     string      `yaml:"name"`
	Protocol string      `yaml:"protocol"`
	Fields   []fileField `yaml:"fields"`
}

type fileField struct {
	Name    string     `yaml:"name"`
	Width   int        `yaml:"width"`
	Bool    bool       `yaml:"bool"`
	Signed  bool       `yaml:"signed"`
	Varbit  bool       `yaml:"varbit"`
	OF      string     `yaml:"of"`
	Slice   *fileSlice `yaml:"slice"`
	Prereq  string     `yaml:"prereq"`
	Builtin string     `yaml:"builtin"`
}

type fileSlice struct {
	Low  int `yaml:"low"`
	High int `yaml:"high"`
	Size int `yaml:"size"`
}

type fileControl struct {
	Name    string       `yaml:"name"`
	Params  []string     `yaml:"params"`
	Locals  []fileField  `yaml:"locals"`
	Actions []fileAction `yaml:"actions"`
	Tables  []fileTable  `yaml:"tables"`
	Apply   string       `yaml:"apply"`
}

type fileAction struct {
	Name   string      `yaml:"name"`
	Params []fileField `yaml:"params"`
	Body   string      `yaml:"body"`
}

type fileTable struct {
	Name          string          `yaml:"name"`
	Keys          []fileKey       `yaml:"keys"`
	Actions       []fileActionRef `yaml:"actions"`
	DefaultAction *fileDefault    `yaml:"default_action"`
	ConstEntries  []fileEntry     `yaml:"const_entries"`
}

type fileKey struct {
	Expr  string `yaml:"expr"`
	Match string `yaml:"match"`
	Name  string `yaml:"name"`
}

type fileActionRef struct {
	Name        string `yaml:"name"`
	TableOnly   bool   `yaml:"table_only"`
	DefaultOnly bool   `yaml:"default_only"`
}

type fileDefault struct {
	Name  string   `yaml:"name"`
	Args  []string `yaml:"args"`
	Const bool     `yaml:"const"`
}

type fileEntry struct {
	Keys     []string `yaml:"keys"`
	Action   string   `yaml:"action"`
	Args     []string `yaml:"args"`
	Priority int      `yaml:"priority"`
}

// LoadFile reads and resolves the program in filename.
func LoadFile(filename string) (*p4.Program, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	defer f.Close()
	prog, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return prog, nil
}

// Load reads and resolves a program. All structural problems found are
// returned together.
func Load(r io.Reader) (*p4.Program, error) {
	var fp fileProgram
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fp); err != nil {
		return nil, fmt.Errorf("decoding program: %w", err)
	}

	b := &builder{fields: make(map[string]*p4.Field), headers: make(map[string]*p4.Header)}
	prog := b.program(&fp)
	if b.errs.HasErrors() {
		return nil, b.errs.Err()
	}
	log.Debugf("frontend: loaded %d headers, %d metadata fields, %d controls",
		len(prog.Headers), len(prog.Metadata), len(prog.Controls()))
	return prog, nil
}

type builder struct {
	errs    diag.Reporter
	fields  map[string]*p4.Field  // qualified name -> field
	headers map[string]*p4.Header // header name -> header
}

func (b *builder) errorf(format string, args ...interface{}) {
	b.errs.Report(&diag.Error{Kind: diag.StructuralError, Msg: fmt.Sprintf(format, args...)})
}

func (b *builder) program(fp *fileProgram) *p4.Program {
	prog := &p4.Program{}
	for _, fh := range fp.Headers {
		h := &p4.Header{Name: fh.Name, Protocol: fh.Protocol}
		for _, ff := range fh.Fields {
			f := b.field("hdr."+fh.Name+".", ff)
			f.Header = h
			h.Fields = append(h.Fields, f)
		}
		b.headers[h.Name] = h
		prog.Headers = append(prog.Headers, h)
	}
	for _, ff := range fp.Metadata {
		prog.Metadata = append(prog.Metadata, b.field("meta.", ff))
	}
	for _, ff := range fp.Standard {
		prog.Standard = append(prog.Standard, b.field("std.", ff))
	}

	if fp.Ingress == nil {
		b.errorf("program has no ingress control")
	} else {
		prog.Ingress = b.control(fp.Ingress, "ingress")
	}
	if fp.Egress == nil {
		b.errorf("program has no egress control")
	} else {
		prog.Egress = b.control(fp.Egress, "egress")
	}
	return prog
}

func (b *builder) field(prefix string, ff fileField) *p4.Field {
	f := &p4.Field{
		Name:   prefix + ff.Name,
		Type:   fieldType(ff),
		OF:     ff.OF,
		Prereq: ff.Prereq,
	}
	if ff.Slice != nil {
		f.Slice = &p4.SliceAnnotation{Low: ff.Slice.Low, High: ff.Slice.High, Size: ff.Slice.Size}
	}
	switch ff.Builtin {
	case "":
	case "output_port":
		f.Builtin = p4.OutputPort
	case "multicast_group":
		f.Builtin = p4.MulticastGroup
	default:
		b.errorf("field %s: unknown builtin %q", f.Name, ff.Builtin)
	}
	if _, dup := b.fields[f.Name]; dup {
		b.errorf("field %s declared twice", f.Name)
	}
	b.fields[f.Name] = f
	return f
}

func fieldType(ff fileField) p4.Type {
	if ff.Bool {
		return p4.Type{Width: 1, Bool: true}
	}
	return p4.Type{Width: ff.Width, Signed: ff.Signed, Varbit: ff.Varbit}
}

func (b *builder) control(fc *fileControl, role string) *p4.Control {
	c := &p4.Control{Name: fc.Name}
	if c.Name == "" {
		c.Name = role
	}
	if len(fc.Params) != 3 {
		b.errorf("control %s: expected 3 parameters (headers, metadata, standard metadata), got %d", c.Name, len(fc.Params))
	}
	for _, name := range fc.Params {
		c.Params = append(c.Params, &p4.Param{Name: name})
	}
	for _, fl := range fc.Locals {
		c.Locals = append(c.Locals, &p4.Local{Name: fl.Name, Type: fieldType(fl), Control: c})
	}
	for _, fa := range fc.Actions {
		a := &p4.Action{Name: fa.Name, Control: c}
		for _, fp := range fa.Params {
			a.Params = append(a.Params, &p4.Param{Name: fp.Name, Type: fieldType(fp)})
		}
		if c.LookupAction(a.Name) != nil {
			b.errorf("control %s: action %s declared twice", c.Name, a.Name)
		}
		c.Actions = append(c.Actions, a)
	}
	// Tables are created before any body is resolved so that actions and
	// the apply block can refer to them.
	for _, ft := range fc.Tables {
		c.Tables = append(c.Tables, &p4.Table{Name: ft.Name, Control: c})
	}

	scope := &scope{b: b, control: c}
	for i, fa := range fc.Actions {
		a := c.Actions[i]
		body := b.parseStatements(fa.Body, "action "+a.Name)
		s := scope.withAction(a)
		a.Body = s.block(body)
	}
	for i, ft := range fc.Tables {
		b.table(scope, c.Tables[i], ft)
	}
	c.Body = scope.block(b.parseStatements(fc.Apply, "control "+c.Name))
	return c
}

func (b *builder) table(s *scope, t *p4.Table, ft fileTable) {
	where := "table " + t.FullName()
	for _, fk := range ft.Keys {
		kind, ok := p4.ParseMatchKind(fk.Match)
		if fk.Match == "" {
			kind, ok = p4.Exact, true
		}
		if !ok {
			b.errorf("%s: unknown match kind %q", where, fk.Match)
			continue
		}
		e := s.expr(b.parseExpr(fk.Expr, where))
		if e == nil {
			continue
		}
		name := fk.Name
		if name == "" {
			name = keyName(fk.Expr)
		}
		t.Keys = append(t.Keys, &p4.Key{Name: name, Expr: e, MatchKind: kind})
	}
	for _, fr := range ft.Actions {
		a := t.Control.LookupAction(fr.Name)
		if a == nil {
			b.errorf("%s: unknown action %s", where, fr.Name)
			continue
		}
		t.Actions = append(t.Actions, &p4.ActionRef{Action: a, TableOnly: fr.TableOnly, DefaultOnly: fr.DefaultOnly})
	}
	if fd := ft.DefaultAction; fd != nil {
		a := t.Control.LookupAction(fd.Name)
		if a == nil {
			b.errorf("%s: unknown default action %s", where, fd.Name)
		} else {
			t.Default = &p4.DefaultAction{Action: a, Const: fd.Const, Args: s.exprs(b.parseExprs(fd.Args, where))}
		}
	}
	if ft.ConstEntries != nil {
		t.ConstEntries = true
	}
	for _, fe := range ft.ConstEntries {
		a := t.Control.LookupAction(fe.Action)
		if a == nil {
			b.errorf("%s: entry uses unknown action %s", where, fe.Action)
			continue
		}
		entry := &p4.Entry{Action: a, Priority: fe.Priority, Args: s.exprs(b.parseExprs(fe.Args, where))}
		for _, k := range fe.Keys {
			p := parser.New(lexer.New(k))
			ks := p.ParseKeyset()
			if errs := p.Errors(); len(errs) > 0 {
				b.errorf("%s: entry key %q: %s", where, k, errs[0])
				continue
			}
			entry.Keys = append(entry.Keys, ks)
		}
		t.Entries = append(t.Entries, entry)
	}
}

// keyName derives a control-plane name from a key expression:
// the path without its leading parameter, dots replaced by underscores.
func keyName(expr string) string {
	out := []byte{}
	start := 0
	for i := 0; i < len(expr); i++ {
		if expr[i] == '.' {
			start = i + 1
			break
		}
	}
	for i := start; i < len(expr); i++ {
		c := expr[i]
		switch {
		case c == '.':
			out = append(out, '_')
		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9':
			out = append(out, c)
		}
	}
	return string(out)
}

func (b *builder) parseStatements(src, where string) *p4.Block {
	p := parser.New(lexer.New(src))
	block := p.ParseStatements()
	for _, e := range p.Errors() {
		b.errorf("%s: %s", where, e)
	}
	return block
}

func (b *builder) parseExpr(src, where string) p4.Expr {
	p := parser.New(lexer.New(src))
	e := p.ParseExpression()
	if errs := p.Errors(); len(errs) > 0 {
		b.errorf("%s: %q: %s", where, src, errs[0])
		return nil
	}
	return e
}

func (b *builder) parseExprs(srcs []string, where string) []p4.Expr {
	var es []p4.Expr
	for _, src := range srcs {
		if e := b.parseExpr(src, where); e != nil {
			es = append(es, e)
		}
	}
	return es
}
