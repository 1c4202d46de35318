// Package p4 defines the resolved pipeline program the backend compiles:
// controls, tables, actions, statements and expressions with known field
// widths and switch annotations.
package p4

import "math/big"

// Node is implemented by every statement and expression.
type Node interface {
	String() string
}

// Type is the type of a value. Bool values have Width 1.
type Type struct {
	Width  int
	Bool   bool
	Signed bool
	Varbit bool
}

// MinWidth is the smallest width that can hold every value of the type.
// It differs from Width only for varbit.
func (t Type) MinWidth() int {
	if t.Varbit {
		return 0
	}
	return t.Width
}

// MatchKind is how a table key element is matched.
type MatchKind int

const (
	Exact MatchKind = iota
	Ternary
	LPM
	Range
	Optional
)

var matchKindNames = map[MatchKind]string{
	Exact:    "exact",
	Ternary:  "ternary",
	LPM:      "lpm",
	Range:    "range",
	Optional: "optional",
}

func (k MatchKind) String() string {
	return matchKindNames[k]
}

// ParseMatchKind maps a match kind name to its value.
func ParseMatchKind(s string) (MatchKind, bool) {
	for k, name := range matchKindNames {
		if name == s {
			return k, true
		}
	}
	return Exact, false
}

// Builtin marks standard fields bound to reserved registers.
type Builtin int

const (
	NotBuiltin Builtin = iota
	OutputPort
	MulticastGroup
)

// SliceAnnotation places a field inside a wider packet field.
// Low and High are inclusive bit positions within a field of Size bits.
type SliceAnnotation struct {
	Low  int
	High int
	Size int
}

// Field is a header, metadata or standard field.
type Field struct {
	Name    string // qualified name, e.g. "hdr.vlan.vid"
	Type    Type
	OF      string // switch packet field; empty for register-backed fields
	Slice   *SliceAnnotation
	Prereq  string // match text that must hold whenever the field is matched
	Builtin Builtin
	Header  *Header // nil for metadata and standard fields
}

// Header is a packet header. Protocol is the match text of its validity test.
type Header struct {
	Name     string
	Protocol string
	Fields   []*Field
}

// Param is a control or action parameter.
type Param struct {
	Name string
	Type Type
}

// Local is a variable declared in a control and used as scratch storage.
type Local struct {
	Name    string
	Type    Type
	Control *Control
}

// Action is an action declared in a control.
type Action struct {
	Name    string
	Params  []*Param
	Body    *Block
	Control *Control
}

// ActionRef is an entry of a table's action list.
type ActionRef struct {
	Action      *Action
	TableOnly   bool
	DefaultOnly bool
}

// Key is one element of a table key.
type Key struct {
	Name      string // control-plane name of the key element
	Expr      Expr
	MatchKind MatchKind
}

// Entry is a compile-time table entry.
type Entry struct {
	Keys     []Expr // Constant, Mask or DontCare per key element
	Action   *Action
	Args     []Expr
	Priority int // 0 when unspecified
}

// DefaultAction is the action applied on a miss.
type DefaultAction struct {
	Action *Action
	Args   []Expr
	Const  bool
}

// Table is a match-action table.
type Table struct {
	Name         string
	Control      *Control
	Keys         []*Key
	Actions      []*ActionRef
	Default      *DefaultAction
	Entries      []*Entry
	ConstEntries bool
}

// FullName is the table name qualified by its control.
func (t *Table) FullName() string {
	return t.Control.Name + "." + t.Name
}

// LookupAction finds an action in the table's action list.
func (t *Table) LookupAction(name string) *ActionRef {
	for _, a := range t.Actions {
		if a.Action.Name == name {
			return a
		}
	}
	return nil
}

// Control is a pipeline control block.
type Control struct {
	Name    string
	Params  []*Param
	Locals  []*Local
	Actions []*Action
	Tables  []*Table
	Body    *Block
}

// LookupTable finds a table by name.
func (c *Control) LookupTable(name string) *Table {
	for _, t := range c.Tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// LookupAction finds an action by name.
func (c *Control) LookupAction(name string) *Action {
	for _, a := range c.Actions {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// Program is a complete resolved pipeline.
type Program struct {
	Headers  []*Header
	Metadata []*Field
	Standard []*Field
	Ingress  *Control
	Egress   *Control
}

// Controls returns the pipeline controls in compilation order.
func (p *Program) Controls() []*Control {
	var cs []*Control
	if p.Ingress != nil {
		cs = append(cs, p.Ingress)
	}
	if p.Egress != nil {
		cs = append(cs, p.Egress)
	}
	return cs
}

// Stmt is a statement.
type Stmt interface {
	Node
	implStmt()
}

// Block is a braced statement list.
type Block struct {
	Stmts []Stmt
}

// If is a conditional. Else may be nil.
type If struct {
	Cond Expr
	Then Stmt
	Else Stmt
}

// SwitchCase is one label of a switch. A nil Body falls through to the
// next case with a body.
type SwitchCase struct {
	Label string // action name or "default"
	Body  *Block
}

// Switch selects on the action a table ran. Subject is ActionRun once resolved.
type Switch struct {
	Subject Expr
	Cases   []SwitchCase
}

// Apply invokes a table.
type Apply struct {
	Table *Table
}

// Exit ends pipeline processing.
type Exit struct{}

// Return ends the current action or control.
type Return struct{}

// Empty is the empty statement.
type Empty struct{}

// Assign stores Right into Left.
type Assign struct {
	Left  Expr
	Right Expr
}

// CallStmt is a call in statement position. Resolution turns table
// invocations into Apply; other calls are builtins such as mark_to_drop.
type CallStmt struct {
	Call *MethodCall
}

func (*Block) implStmt()    {}
func (*If) implStmt()       {}
func (*Switch) implStmt()   {}
func (*Apply) implStmt()    {}
func (*Exit) implStmt()     {}
func (*Return) implStmt()   {}
func (*Empty) implStmt()    {}
func (*Assign) implStmt()   {}
func (*CallStmt) implStmt() {}

// Expr is an expression.
type Expr interface {
	Node
	implExpr()
}

// Path is an unresolved dotted name.
type Path struct {
	Name string
}

// MethodCall is name.method(args) or a plain call when Target is nil.
type MethodCall struct {
	Target *Path
	Method string
	Args   []Expr
}

// Member selects a member of a call result, as in t.apply().hit.
type Member struct {
	Expr   Expr
	Member string
}

// FieldRef refers to a header, metadata or standard field.
type FieldRef struct {
	Field *Field
}

// LocalRef refers to a control local.
type LocalRef struct {
	Local *Local
}

// ParamRef refers to an action parameter.
type ParamRef struct {
	Param  *Param
	Action *Action
}

// IsValid tests that a header is present.
type IsValid struct {
	Header *Header
}

// TableHit is t.apply().hit, or .miss when Hit is false.
type TableHit struct {
	Table *Table
	Hit   bool
}

// ActionRun is t.apply().action_run.
type ActionRun struct {
	Table *Table
}

// Constant is an integer literal. Width is 0 for unsized literals.
type Constant struct {
	Value  *big.Int
	Width  int
	Base   int
	Signed bool
}

// BoolLit is true or false.
type BoolLit struct {
	Value bool
}

// Binary is a binary operation: ==, !=, &&, || or &&& (value and mask).
type Binary struct {
	Op    string
	Left  Expr
	Right Expr
}

// Unary is a unary operation, currently only !.
type Unary struct {
	Op string
	X  Expr
}

// Slice is X[High:Low].
type Slice struct {
	X    Expr
	High int
	Low  int
}

// Cast is (Type) X.
type Cast struct {
	Type Type
	X    Expr
}

// DontCare is _ in an entry key.
type DontCare struct{}

func (*Path) implExpr()       {}
func (*MethodCall) implExpr() {}
func (*Member) implExpr()     {}
func (*FieldRef) implExpr()   {}
func (*LocalRef) implExpr()   {}
func (*ParamRef) implExpr()   {}
func (*IsValid) implExpr()    {}
func (*TableHit) implExpr()   {}
func (*ActionRun) implExpr()  {}
func (*Constant) implExpr()   {}
func (*BoolLit) implExpr()    {}
func (*Binary) implExpr()     {}
func (*Unary) implExpr()      {}
func (*Slice) implExpr()      {}
func (*Cast) implExpr()       {}
func (*DontCare) implExpr()   {}

// NewConstant builds a decimal constant of the given width.
func NewConstant(v int64, width int) *Constant {
	return &Constant{Value: big.NewInt(v), Width: width, Base: 10}
}

// TypeOf returns the type of a resolved expression. Widths of unsized
// constants are 0.
func TypeOf(e Expr) Type {
	switch e := e.(type) {
	case *FieldRef:
		return e.Field.Type
	case *LocalRef:
		return e.Local.Type
	case *ParamRef:
		return e.Param.Type
	case *Constant:
		return Type{Width: e.Width, Signed: e.Signed}
	case *BoolLit, *IsValid, *TableHit:
		return Type{Width: 1, Bool: true}
	case *Binary:
		if e.Op == "&&&" {
			return TypeOf(e.Left)
		}
		return Type{Width: 1, Bool: true}
	case *Unary:
		return Type{Width: 1, Bool: true}
	case *Slice:
		return Type{Width: e.High - e.Low + 1}
	case *Cast:
		return e.Type
	default:
		return Type{}
	}
}
