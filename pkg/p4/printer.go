package p4

import (
	"fmt"
	"io"
	"strings"
)

// Printer outputs a program as P4-like source text.
type Printer struct {
	w      io.Writer
	indent int
}

// NewPrinter creates a new program printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintProgram prints headers, metadata and both controls.
func (p *Printer) PrintProgram(prog *Program) {
	for _, h := range prog.Headers {
		fmt.Fprintf(p.w, "header %s", h.Name)
		if h.Protocol != "" {
			fmt.Fprintf(p.w, " @protocol(%q)", h.Protocol)
		}
		fmt.Fprintln(p.w, " {")
		for _, f := range h.Fields {
			p.printField(f)
		}
		fmt.Fprintln(p.w, "}")
	}
	if len(prog.Metadata) > 0 {
		fmt.Fprintln(p.w, "struct metadata {")
		for _, f := range prog.Metadata {
			p.printField(f)
		}
		fmt.Fprintln(p.w, "}")
	}
	if len(prog.Standard) > 0 {
		fmt.Fprintln(p.w, "struct standard_metadata {")
		for _, f := range prog.Standard {
			p.printField(f)
		}
		fmt.Fprintln(p.w, "}")
	}
	for _, c := range prog.Controls() {
		fmt.Fprintln(p.w)
		p.PrintControl(c)
	}
}

func (p *Printer) printField(f *Field) {
	fmt.Fprintf(p.w, "    %s %s;", typeString(f.Type), lastComponent(f.Name))
	var notes []string
	if f.OF != "" {
		notes = append(notes, "of="+f.OF)
	}
	if f.Slice != nil {
		notes = append(notes, fmt.Sprintf("slice=%d..%d/%d", f.Slice.Low, f.Slice.High, f.Slice.Size))
	}
	if f.Prereq != "" {
		notes = append(notes, "prereq="+f.Prereq)
	}
	if len(notes) > 0 {
		fmt.Fprintf(p.w, " // %s", strings.Join(notes, " "))
	}
	fmt.Fprintln(p.w)
}

// PrintControl prints one control with its locals, actions and tables.
func (p *Printer) PrintControl(c *Control) {
	params := make([]string, len(c.Params))
	for i, prm := range c.Params {
		params[i] = prm.Name
	}
	fmt.Fprintf(p.w, "control %s(%s) {\n", c.Name, strings.Join(params, ", "))
	for _, l := range c.Locals {
		fmt.Fprintf(p.w, "    %s %s;\n", typeString(l.Type), l.Name)
	}
	for _, a := range c.Actions {
		fmt.Fprintf(p.w, "    action %s(%s) ", a.Name, paramList(a.Params))
		p.indent = 1
		p.printBlock(a.Body)
		fmt.Fprintln(p.w)
	}
	for _, t := range c.Tables {
		p.printTable(t)
	}
	fmt.Fprint(p.w, "    apply ")
	p.indent = 1
	p.printBlock(c.Body)
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, "}")
}

func (p *Printer) printTable(t *Table) {
	fmt.Fprintf(p.w, "    table %s {\n", t.Name)
	if len(t.Keys) > 0 {
		fmt.Fprintln(p.w, "        key = {")
		for _, k := range t.Keys {
			fmt.Fprintf(p.w, "            %s: %s @name(%q);\n", k.Expr, k.MatchKind, k.Name)
		}
		fmt.Fprintln(p.w, "        }")
	}
	fmt.Fprintln(p.w, "        actions = {")
	for _, a := range t.Actions {
		prefix := ""
		if a.TableOnly {
			prefix = "@tableonly "
		}
		if a.DefaultOnly {
			prefix = "@defaultonly "
		}
		fmt.Fprintf(p.w, "            %s%s;\n", prefix, a.Action.Name)
	}
	fmt.Fprintln(p.w, "        }")
	if t.Default != nil {
		c := ""
		if t.Default.Const {
			c = "const "
		}
		fmt.Fprintf(p.w, "        %sdefault_action = %s(%s);\n", c, t.Default.Action.Name, exprList(t.Default.Args))
	}
	if t.ConstEntries {
		fmt.Fprintln(p.w, "        const entries = {")
		for _, e := range t.Entries {
			fmt.Fprintf(p.w, "            (%s): %s(%s);\n", exprList(e.Keys), e.Action.Name, exprList(e.Args))
		}
		fmt.Fprintln(p.w, "        }")
	}
	fmt.Fprintln(p.w, "    }")
}

func (p *Printer) pad() string {
	return strings.Repeat("    ", p.indent)
}

func (p *Printer) printBlock(b *Block) {
	if b == nil || len(b.Stmts) == 0 {
		fmt.Fprint(p.w, "{}")
		return
	}
	fmt.Fprintln(p.w, "{")
	p.indent++
	for _, s := range b.Stmts {
		fmt.Fprint(p.w, p.pad())
		p.printStmt(s)
		fmt.Fprintln(p.w)
	}
	p.indent--
	fmt.Fprint(p.w, p.pad()+"}")
}

func (p *Printer) printStmt(s Stmt) {
	switch s := s.(type) {
	case *Block:
		p.printBlock(s)
	case *If:
		fmt.Fprintf(p.w, "if (%s) ", s.Cond)
		p.printStmt(s.Then)
		if s.Else != nil {
			fmt.Fprint(p.w, " else ")
			p.printStmt(s.Else)
		}
	case *Switch:
		fmt.Fprintf(p.w, "switch (%s) {\n", s.Subject)
		p.indent++
		for _, c := range s.Cases {
			fmt.Fprintf(p.w, "%s%s:", p.pad(), c.Label)
			if c.Body != nil {
				fmt.Fprint(p.w, " ")
				p.printBlock(c.Body)
			}
			fmt.Fprintln(p.w)
		}
		p.indent--
		fmt.Fprint(p.w, p.pad()+"}")
	default:
		fmt.Fprint(p.w, s.String())
	}
}

func typeString(t Type) string {
	switch {
	case t.Bool:
		return "bool"
	case t.Varbit:
		return fmt.Sprintf("varbit<%d>", t.Width)
	case t.Signed:
		return fmt.Sprintf("int<%d>", t.Width)
	default:
		return fmt.Sprintf("bit<%d>", t.Width)
	}
}

func (t Type) String() string {
	return typeString(t)
}

func lastComponent(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

func paramList(params []*Param) string {
	parts := make([]string, len(params))
	for i, prm := range params {
		parts[i] = typeString(prm.Type) + " " + prm.Name
	}
	return strings.Join(parts, ", ")
}

func exprList(es []Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

func stmtString(s Stmt) string {
	var sb strings.Builder
	p := &Printer{w: &sb}
	p.printStmt(s)
	return sb.String()
}

func (s *Block) String() string  { return stmtString(s) }
func (s *If) String() string     { return stmtString(s) }
func (s *Switch) String() string { return stmtString(s) }
func (s *Apply) String() string  { return s.Table.Name + ".apply();" }
func (*Exit) String() string     { return "exit;" }
func (*Return) String() string   { return "return;" }
func (*Empty) String() string    { return ";" }
func (s *Assign) String() string { return fmt.Sprintf("%s = %s;", s.Left, s.Right) }
func (s *CallStmt) String() string {
	return s.Call.String() + ";"
}

func (e *Path) String() string { return e.Name }

func (e *MethodCall) String() string {
	if e.Target == nil {
		return fmt.Sprintf("%s(%s)", e.Method, exprList(e.Args))
	}
	return fmt.Sprintf("%s.%s(%s)", e.Target.Name, e.Method, exprList(e.Args))
}

func (e *Member) String() string   { return e.Expr.String() + "." + e.Member }
func (e *FieldRef) String() string { return e.Field.Name }
func (e *LocalRef) String() string { return e.Local.Name }
func (e *ParamRef) String() string { return e.Param.Name }
func (e *IsValid) String() string  { return "hdr." + e.Header.Name + ".isValid()" }

func (e *TableHit) String() string {
	if e.Hit {
		return e.Table.Name + ".apply().hit"
	}
	return e.Table.Name + ".apply().miss"
}

func (e *ActionRun) String() string { return e.Table.Name + ".apply().action_run" }

func (e *Constant) String() string {
	var digits string
	switch e.Base {
	case 16:
		digits = "0x" + e.Value.Text(16)
	case 2:
		digits = "0b" + e.Value.Text(2)
	default:
		digits = e.Value.Text(10)
	}
	if e.Width > 0 {
		w := "w"
		if e.Signed {
			w = "s"
		}
		return fmt.Sprintf("%d%s%s", e.Width, w, digits)
	}
	return digits
}

func (e *BoolLit) String() string {
	if e.Value {
		return "true"
	}
	return "false"
}

func (e *Binary) String() string { return fmt.Sprintf("%s %s %s", e.Left, e.Op, e.Right) }
func (e *Unary) String() string  { return e.Op + e.X.String() }
func (e *Slice) String() string  { return fmt.Sprintf("%s[%d:%d]", e.X, e.High, e.Low) }
func (e *Cast) String() string   { return fmt.Sprintf("(%s)%s", e.Type, e.X) }
func (*DontCare) String() string { return "_" }

func (a *Action) String() string {
	if a.Control == nil {
		return a.Name
	}
	return a.Control.Name + "." + a.Name
}

func (t *Table) String() string { return t.FullName() }
