// Package ddlog defines the subset of DDlog the backend emits: type
// declarations, relations, helper functions and rules.
package ddlog

// Node is implemented by all DDlog nodes.
type Node interface {
	String() string
}

// Decl is a top-level declaration.
type Decl interface {
	Node
	implDecl()
}

// Type is a DDlog type.
type Type interface {
	Node
	implType()
}

// Expr is a DDlog expression.
type Expr interface {
	Node
	implExpr()
}

// Term is one conjunct of a rule body.
type Term interface {
	Node
	implTerm()
}

// Types

// BitType is bit<N> or signed<N>.
type BitType struct {
	Width  int
	Signed bool
}

// BoolType is bool.
type BoolType struct{}

// StringType is string.
type StringType struct{}

// TupleType is (T1, T2, ...).
type TupleType struct {
	Elems []Type
}

// OptionType is Option<T>.
type OptionType struct {
	Elem Type
}

// NamedType refers to a typedef.
type NamedType struct {
	Name string
}

// Constructor is one alternative of a sum type.
type Constructor struct {
	Name   string
	Fields []Field
}

// SumType is a list of alternatives.
type SumType struct {
	Alts []*Constructor
}

func (*BitType) implType()     {}
func (*BoolType) implType()    {}
func (*StringType) implType()  {}
func (*TupleType) implType()   {}
func (*OptionType) implType()  {}
func (*NamedType) implType()   {}
func (*Constructor) implType() {}
func (*SumType) implType()     {}

// Field is a named, typed relation column, parameter or struct field.
type Field struct {
	Name string
	Type Type
}

// Declarations

// Direction of a relation.
type Direction int

const (
	Internal Direction = iota
	Input
	Output
)

// Typedef declares a named type.
type Typedef struct {
	Name string
	Type Type
}

// Relation declares a relation with explicit columns.
type Relation struct {
	Direction Direction
	Name      string
	Fields    []Field
}

// Function declares a helper function.
type Function struct {
	Name   string
	Params []Field
	Return Type
	Body   Expr
}

// Rule is a fact when Body is empty.
type Rule struct {
	Comment string
	Head    *Atom
	Body    []Term
}

// Comment is a standalone comment line.
type Comment struct {
	Text string
}

func (*Typedef) implDecl()  {}
func (*Relation) implDecl() {}
func (*Function) implDecl() {}
func (*Rule) implDecl()     {}
func (*Comment) implDecl()  {}

// Expressions

// Var references a variable.
type Var struct {
	Name string
}

// StringLit is a string literal. ${...} inside it is interpolated by DDlog.
type StringLit struct {
	Value string
}

// IntLit is an integer literal.
type IntLit struct {
	Value string
}

// BoolLit is true or false.
type BoolLit struct {
	Value bool
}

// Case is one arm of a match expression.
type Case struct {
	Pattern Expr
	Result  Expr
}

// Match is match(Subject) { pattern -> result, ... }.
type Match struct {
	Subject Expr
	Cases   []Case
}

// CtorExpr builds or matches a constructor: Name{a, b}.
type CtorExpr struct {
	Name string
	Args []Expr
}

// Call is f(args).
type Call struct {
	Func string
	Args []Expr
}

// Apply is a method-style call: Left.Method(args).
type Apply struct {
	Left   Expr
	Method string
	Args   []Expr
}

// Binary is a binary operation.
type Binary struct {
	Op    string
	Left  Expr
	Right Expr
}

// Cast is (X as T).
type Cast struct {
	X    Expr
	Type Type
}

// IfElse is if (Cond) { Then } else { Else }.
type IfElse struct {
	Cond Expr
	Then Expr
	Else Expr
}

// Tuple is (a, b, ...). Also used as a pattern.
type Tuple struct {
	Elems []Expr
}

// Wildcard is the _ pattern.
type Wildcard struct{}

func (*Var) implExpr()       {}
func (*StringLit) implExpr() {}
func (*IntLit) implExpr()    {}
func (*BoolLit) implExpr()   {}
func (*Match) implExpr()     {}
func (*CtorExpr) implExpr()  {}
func (*Call) implExpr()      {}
func (*Apply) implExpr()     {}
func (*Binary) implExpr()    {}
func (*Cast) implExpr()      {}
func (*IfElse) implExpr()    {}
func (*Tuple) implExpr()     {}
func (*Wildcard) implExpr()  {}

// Terms

// Atom is Relation(args). It is also the head of a rule.
type Atom struct {
	Relation string
	Args     []Expr
}

// Assign binds a variable: var Name = Value.
type Assign struct {
	Name  string
	Value Expr
}

// Condition filters the rule by a boolean expression.
type Condition struct {
	Cond Expr
}

func (*Atom) implTerm()      {}
func (*Assign) implTerm()    {}
func (*Condition) implTerm() {}

// Program is a list of declarations in output order.
type Program struct {
	Decls []Decl
}

// Add appends declarations.
func (p *Program) Add(decls ...Decl) {
	p.Decls = append(p.Decls, decls...)
}

// Relations returns the declared relations by name.
func (p *Program) Relations() map[string]*Relation {
	m := make(map[string]*Relation)
	for _, d := range p.Decls {
		if r, ok := d.(*Relation); ok {
			m[r.Name] = r
		}
	}
	return m
}

// Rules returns the rules and facts whose head is the named relation.
func (p *Program) Rules(relation string) []*Rule {
	var out []*Rule
	for _, d := range p.Decls {
		if r, ok := d.(*Rule); ok && r.Head.Relation == relation {
			out = append(out, r)
		}
	}
	return out
}

// Helpers

// Bit returns bit<width>.
func Bit(width int) *BitType {
	return &BitType{Width: width}
}

// Str returns a string literal.
func Str(s string) *StringLit {
	return &StringLit{Value: s}
}

// V returns a variable reference.
func V(name string) *Var {
	return &Var{Name: name}
}

// Fact builds a rule with no body.
func Fact(comment, relation string, args ...Expr) *Rule {
	return &Rule{Comment: comment, Head: &Atom{Relation: relation, Args: args}}
}
