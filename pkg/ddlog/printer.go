package ddlog

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Printer outputs a DDlog program
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new DDlog printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintProgram prints every declaration followed by a newline.
func (p *Printer) PrintProgram(prog *Program) {
	for _, d := range prog.Decls {
		p.PrintDecl(d)
	}
}

// PrintDecl prints one declaration.
func (p *Printer) PrintDecl(d Decl) {
	fmt.Fprintln(p.w, d.String())
}

func join[T Node](items []T, sep string) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = it.String()
	}
	return strings.Join(parts, sep)
}

func fields(fs []Field) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = f.String()
	}
	return strings.Join(parts, ", ")
}

func (f Field) String() string {
	return f.Name + ": " + f.Type.String()
}

// Types

func (t *BitType) String() string {
	if t.Signed {
		return "signed<" + strconv.Itoa(t.Width) + ">"
	}
	return "bit<" + strconv.Itoa(t.Width) + ">"
}

func (*BoolType) String() string   { return "bool" }
func (*StringType) String() string { return "string" }

func (t *TupleType) String() string {
	return "(" + join(t.Elems, ", ") + ")"
}

func (t *OptionType) String() string {
	return "Option<" + t.Elem.String() + ">"
}

func (t *NamedType) String() string {
	return t.Name
}

func (c *Constructor) String() string {
	return c.Name + "{" + fields(c.Fields) + "}"
}

func (t *SumType) String() string {
	return join(t.Alts, " | ")
}

// Declarations

func (t *Typedef) String() string {
	return "typedef " + t.Name + " = " + t.Type.String()
}

func (r *Relation) String() string {
	var prefix string
	switch r.Direction {
	case Input:
		prefix = "input "
	case Output:
		prefix = "output "
	}
	return prefix + "relation " + r.Name + "(" + fields(r.Fields) + ")"
}

func (f *Function) String() string {
	return "function " + f.Name + "(" + fields(f.Params) + "): " + f.Return.String() +
		" {\n    " + f.Body.String() + "\n}"
}

func (r *Rule) String() string {
	var sb strings.Builder
	if r.Comment != "" {
		sb.WriteString("// " + r.Comment + "\n")
	}
	sb.WriteString(r.Head.String())
	if len(r.Body) > 0 {
		sb.WriteString(" :- ")
		sb.WriteString(join(r.Body, ",\n   "))
	}
	sb.WriteString(".\n")
	return sb.String()
}

func (c *Comment) String() string {
	return "// " + c.Text
}

// Expressions

func (v *Var) String() string {
	return v.Name
}

func (s *StringLit) String() string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s.Value) + `"`
}

func (i *IntLit) String() string {
	return i.Value
}

func (b *BoolLit) String() string {
	return strconv.FormatBool(b.Value)
}

func (c Case) String() string {
	return c.Pattern.String() + " -> " + c.Result.String()
}

func (m *Match) String() string {
	parts := make([]string, len(m.Cases))
	for i, c := range m.Cases {
		parts[i] = "    " + c.String()
	}
	return "match(" + m.Subject.String() + ") {\n" + strings.Join(parts, ",\n") + "\n}"
}

func (c *CtorExpr) String() string {
	return c.Name + "{" + join(c.Args, ", ") + "}"
}

func (c *Call) String() string {
	return c.Func + "(" + join(c.Args, ", ") + ")"
}

func (a *Apply) String() string {
	return a.Left.String() + "." + a.Method + "(" + join(a.Args, ", ") + ")"
}

func (b *Binary) String() string {
	return "(" + b.Left.String() + " " + b.Op + " " + b.Right.String() + ")"
}

func (c *Cast) String() string {
	return "(" + c.X.String() + " as " + c.Type.String() + ")"
}

func (e *IfElse) String() string {
	return "if (" + e.Cond.String() + ") { " + e.Then.String() + " } else { " + e.Else.String() + " }"
}

func (t *Tuple) String() string {
	return "(" + join(t.Elems, ", ") + ")"
}

func (*Wildcard) String() string {
	return "_"
}

// Terms

func (a *Atom) String() string {
	return a.Relation + "(" + join(a.Args, ", ") + ")"
}

func (a *Assign) String() string {
	return "var " + a.Name + " = " + a.Value.String()
}

func (c *Condition) String() string {
	return c.Cond.String()
}
