package ddloggen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/raymyers/p4c-of/pkg/ddlog"
	"github.com/raymyers/p4c-of/pkg/p4"
	"github.com/raymyers/p4c-of/pkg/resources"
)

// Relations present in every generated program.
const (
	FlowRelation      = "Flow"
	MulticastRelation = "MulticastGroup"
)

// RelationName is the input relation holding the entries of t.
func RelationName(t *p4.Table) string {
	return capitalize(identifier(t.Control.Name)) + "_" + identifier(t.Name)
}

// ActionTypeName is the sum type of the actions an entry of t may run.
func ActionTypeName(t *p4.Table) string {
	return RelationName(t) + "Action"
}

// DefaultRelationName is the relation holding the default action of t.
func DefaultRelationName(t *p4.Table) string {
	return RelationName(t) + "DefaultAction"
}

// DefaultActionTypeName is the sum type of the default relation. A
// relation also declares a type of its own name, so the two must differ.
func DefaultActionTypeName(t *p4.Table) string {
	return DefaultRelationName(t) + "Type"
}

func constructorName(typeName string, a *p4.Action) string {
	return typeName + "_" + identifier(a.Name)
}

// KeyVar is the rule variable bound to key element k.
func KeyVar(k *p4.Key) string {
	return "k_" + identifier(k.Name)
}

func paramVar(p *p4.Param) string {
	return "p_" + identifier(p.Name)
}

// HelperName is the accessor function of a named register.
func HelperName(friendly string) string {
	return "r_" + identifier(friendly)
}

func identifier(s string) string {
	var sb strings.Builder
	for _, c := range s {
		switch {
		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9':
			sb.WriteRune(c)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// valueType is the DDlog type of a value of type t.
func valueType(t p4.Type) ddlog.Type {
	if t.Bool {
		return &ddlog.BoolType{}
	}
	return &ddlog.BitType{Width: t.Width, Signed: t.Signed}
}

// keyType is the DDlog column type of a key element.
func keyType(k *p4.Key) ddlog.Type {
	v := valueType(p4.TypeOf(k.Expr))
	switch k.MatchKind {
	case p4.Ternary, p4.Range:
		return &ddlog.TupleType{Elems: []ddlog.Type{v, v}}
	case p4.LPM:
		return &ddlog.TupleType{Elems: []ddlog.Type{v, ddlog.Bit(32)}}
	case p4.Optional:
		return &ddlog.OptionType{Elem: v}
	}
	return v
}

func allExact(t *p4.Table) bool {
	for _, k := range t.Keys {
		if k.MatchKind != p4.Exact {
			return false
		}
	}
	return true
}

// parametric reports whether entries of t come from the control plane.
func parametric(t *p4.Table) bool {
	return !t.ConstEntries && len(t.Keys) > 0 && len(entryActions(t)) > 0
}

// needsActions reports whether entries of t must say which action they
// run. A table with one parameterless entry action has nothing to say.
func needsActions(t *p4.Table) bool {
	acts := entryActions(t)
	return len(acts) != 1 || len(acts[0].Params) > 0
}

// constDefault reports whether the default action of t is fixed.
func constDefault(t *p4.Table) bool {
	return t.Default == nil || t.Default.Const
}

func entryActions(t *p4.Table) []*p4.Action {
	var out []*p4.Action
	for _, r := range t.Actions {
		if !r.DefaultOnly {
			out = append(out, r.Action)
		}
	}
	return out
}

func defaultActions(t *p4.Table) []*p4.Action {
	var out []*p4.Action
	for _, r := range t.Actions {
		if !r.TableOnly {
			out = append(out, r.Action)
		}
	}
	return out
}

// Action parameters are plain bit vectors in DDlog so that they
// interpolate as numbers.
func paramType(p *p4.Param) ddlog.Type {
	return ddlog.Bit(p.Type.Width)
}

func sumType(typeName string, actions []*p4.Action) *ddlog.Typedef {
	st := &ddlog.SumType{}
	for _, a := range actions {
		c := &ddlog.Constructor{Name: constructorName(typeName, a)}
		for _, p := range a.Params {
			c.Fields = append(c.Fields, ddlog.Field{Name: identifier(p.Name), Type: paramType(p)})
		}
		st.Alts = append(st.Alts, c)
	}
	return &ddlog.Typedef{Name: typeName, Type: st}
}

// tableDecls returns the declarations of one table: the entry action
// type and relation when entries come from the control plane, and the
// default action type and relation when the default is not fixed. The
// entry action type is left out when there is only one action to run.
func tableDecls(t *p4.Table) []ddlog.Decl {
	var decls []ddlog.Decl
	if parametric(t) {
		typeName := ActionTypeName(t)
		if needsActions(t) {
			decls = append(decls, sumType(typeName, entryActions(t)))
		}
		rel := &ddlog.Relation{Direction: ddlog.Input, Name: RelationName(t)}
		for _, k := range t.Keys {
			rel.Fields = append(rel.Fields, ddlog.Field{Name: KeyVar(k), Type: keyType(k)})
		}
		if !allExact(t) {
			rel.Fields = append(rel.Fields, ddlog.Field{Name: "priority", Type: ddlog.Bit(32)})
		}
		if needsActions(t) {
			rel.Fields = append(rel.Fields, ddlog.Field{Name: "action", Type: &ddlog.NamedType{Name: typeName}})
		}
		decls = append(decls, rel)
	}
	if !constDefault(t) {
		typeName := DefaultActionTypeName(t)
		decls = append(decls,
			sumType(typeName, defaultActions(t)),
			&ddlog.Relation{Direction: ddlog.Input, Name: DefaultRelationName(t), Fields: []ddlog.Field{
				{Name: "action", Type: &ddlog.NamedType{Name: typeName}},
			}})
	}
	return decls
}

// builtinDecls are declared by every program.
func builtinDecls() []ddlog.Decl {
	return []ddlog.Decl{
		&ddlog.Relation{Direction: ddlog.Input, Name: MulticastRelation, Fields: []ddlog.Field{
			{Name: "mcast_id", Type: ddlog.Bit(16)},
			{Name: "port", Type: ddlog.Bit(16)},
		}},
		&ddlog.Relation{Direction: ddlog.Output, Name: FlowRelation, Fields: []ddlog.Field{
			{Name: "flow", Type: &ddlog.StringType{}},
		}},
	}
}

// registerHelpers returns one accessor per named register, giving its
// match form or its action form.
func registerHelpers(regs []resources.Register) []ddlog.Decl {
	var decls []ddlog.Decl
	for _, r := range regs {
		if r.Friendly == "" {
			continue
		}
		decls = append(decls, &ddlog.Function{
			Name:   HelperName(r.Friendly),
			Params: []ddlog.Field{{Name: "in_match", Type: &ddlog.BoolType{}}},
			Return: &ddlog.StringType{},
			Body: &ddlog.IfElse{
				Cond: ddlog.V("in_match"),
				Then: ddlog.Str(r.MatchString()),
				Else: ddlog.Str(r.ActionString()),
			},
		})
	}
	return decls
}

// PrefixMaskName is the helper turning a prefix length into a mask.
func PrefixMaskName(width int) string {
	return fmt.Sprintf("prefix_mask_%d", width)
}

// prefixMaskHelpers returns one prefix_mask_N function per lpm key width.
func prefixMaskHelpers(widths map[int]bool) []ddlog.Decl {
	var ws []int
	for w := range widths {
		ws = append(ws, w)
	}
	sort.Ints(ws)
	var decls []ddlog.Decl
	for _, w := range ws {
		ones := fmt.Sprintf("%d'h%s", w, resources.GetMask(w).Text(16))
		decls = append(decls, &ddlog.Function{
			Name:   PrefixMaskName(w),
			Params: []ddlog.Field{{Name: "plen", Type: ddlog.Bit(32)}},
			Return: ddlog.Bit(w),
			Body: &ddlog.IfElse{
				Cond: &ddlog.Binary{Op: "==", Left: ddlog.V("plen"), Right: &ddlog.IntLit{Value: "0"}},
				Then: &ddlog.IntLit{Value: "0"},
				Else: &ddlog.Binary{
					Op:    "<<",
					Left:  &ddlog.IntLit{Value: ones},
					Right: &ddlog.Binary{Op: "-", Left: &ddlog.IntLit{Value: fmt.Sprint(w)}, Right: ddlog.V("plen")},
				},
			},
		})
	}
	return decls
}
