package parser

import (
	"os"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/raymyers/p4c-of/pkg/lexer"
	"github.com/raymyers/p4c-of/pkg/p4"
)

// TestSpec represents a test case from parse.yaml
type TestSpec struct {
	Name   string   `yaml:"name"`
	Kind   string   `yaml:"kind"` // stmts, expr or keyset
	Input  string   `yaml:"input"`
	Expect []string `yaml:"expect"` // printed form of each statement, or of the expression
	Error  bool     `yaml:"error,omitempty"`
}

// TestFile represents the parse.yaml file structure
type TestFile struct {
	Tests []TestSpec `yaml:"tests"`
}

func TestParseYAML(t *testing.T) {
	data, err := os.ReadFile("../../testdata/parse.yaml")
	if err != nil {
		t.Fatalf("failed to read parse.yaml: %v", err)
	}

	var testFile TestFile
	if err := yaml.Unmarshal(data, &testFile); err != nil {
		t.Fatalf("failed to parse parse.yaml: %v", err)
	}

	for _, tc := range testFile.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			p := New(lexer.New(tc.Input))
			var got []string
			switch tc.Kind {
			case "expr":
				if e := p.ParseExpression(); e != nil {
					got = append(got, e.String())
				}
			case "keyset":
				if e := p.ParseKeyset(); e != nil {
					got = append(got, e.String())
				}
			default:
				for _, s := range p.ParseStatements().Stmts {
					got = append(got, s.String())
				}
			}

			if tc.Error {
				if len(p.Errors()) == 0 {
					t.Fatalf("expected a parse error, got %v", got)
				}
				return
			}
			if len(p.Errors()) > 0 {
				t.Fatalf("parser errors: %v", p.Errors())
			}
			if len(got) != len(tc.Expect) {
				t.Fatalf("got %d results %q, want %d", len(got), got, len(tc.Expect))
			}
			for i := range got {
				if got[i] != tc.Expect[i] {
					t.Errorf("result %d = %q, want %q", i, got[i], tc.Expect[i])
				}
			}
		})
	}
}

func TestPrecedence(t *testing.T) {
	p := New(lexer.New("a == 1 && b || !c"))
	e := p.ParseExpression()
	if len(p.Errors()) > 0 {
		t.Fatalf("parser errors: %v", p.Errors())
	}

	or, ok := e.(*p4.Binary)
	if !ok || or.Op != "||" {
		t.Fatalf("top = %T %v, want ||", e, e)
	}
	and, ok := or.Left.(*p4.Binary)
	if !ok || and.Op != "&&" {
		t.Fatalf("left of || = %v, want &&", or.Left)
	}
	eq, ok := and.Left.(*p4.Binary)
	if !ok || eq.Op != "==" {
		t.Fatalf("left of && = %v, want ==", and.Left)
	}
	if _, ok := or.Right.(*p4.Unary); !ok {
		t.Errorf("right of || = %T, want *p4.Unary", or.Right)
	}
}

func TestApplyMember(t *testing.T) {
	p := New(lexer.New("t.apply().hit"))
	e := p.ParseExpression()
	m, ok := e.(*p4.Member)
	if !ok {
		t.Fatalf("got %T, want *p4.Member", e)
	}
	if m.Member != "hit" {
		t.Errorf("member = %q, want hit", m.Member)
	}
	call, ok := m.Expr.(*p4.MethodCall)
	if !ok {
		t.Fatalf("member base = %T, want *p4.MethodCall", m.Expr)
	}
	if call.Target == nil || call.Target.Name != "t" || call.Method != "apply" {
		t.Errorf("call = %v", call)
	}
}

func TestCastAndSlice(t *testing.T) {
	p := New(lexer.New("(bit<8>) meta.x[11:4]"))
	e := p.ParseExpression()
	c, ok := e.(*p4.Cast)
	if !ok {
		t.Fatalf("got %T, want *p4.Cast", e)
	}
	if c.Type.Width != 8 || c.Type.Signed {
		t.Errorf("cast type = %v, want bit<8>", c.Type)
	}
	s, ok := c.X.(*p4.Slice)
	if !ok {
		t.Fatalf("cast operand = %T, want *p4.Slice", c.X)
	}
	if s.High != 11 || s.Low != 4 {
		t.Errorf("slice = [%d:%d], want [11:4]", s.High, s.Low)
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		lit    string
		value  int64
		width  int
		base   int
		signed bool
	}{
		{"42", 42, 0, 10, false},
		{"0x2a", 42, 0, 16, false},
		{"0b101", 5, 0, 2, false},
		{"16w42", 42, 16, 10, false},
		{"12w0xfff", 0xfff, 12, 16, false},
		{"8s3", 3, 8, 10, true},
	}
	for _, tt := range tests {
		c, err := ParseInt(tt.lit)
		if err != nil {
			t.Errorf("ParseInt(%q) error: %v", tt.lit, err)
			continue
		}
		if c.Value.Int64() != tt.value || c.Width != tt.width || c.Base != tt.base || c.Signed != tt.signed {
			t.Errorf("ParseInt(%q) = %v (w=%d base=%d signed=%v)", tt.lit, c.Value, c.Width, c.Base, c.Signed)
		}
	}

	if _, err := ParseInt("0xzz"); err == nil {
		t.Error("ParseInt(0xzz) should fail")
	}
}
