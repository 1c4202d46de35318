package lexer

import "testing"

func TestNextToken(t *testing.T) {
	input := `if (hdr.vlan.isValid()) { meta.vlan = hdr.vlan.vid; } else { exit; }`

	tests := []struct {
		expectedType    TokenType
		expectedLiteral string
	}{
		{TokenIf, "if"},
		{TokenLParen, "("},
		{TokenIdent, "hdr"},
		{TokenDot, "."},
		{TokenIdent, "vlan"},
		{TokenDot, "."},
		{TokenIdent, "isValid"},
		{TokenLParen, "("},
		{TokenRParen, ")"},
		{TokenRParen, ")"},
		{TokenLBrace, "{"},
		{TokenIdent, "meta"},
		{TokenDot, "."},
		{TokenIdent, "vlan"},
		{TokenAssign, "="},
		{TokenIdent, "hdr"},
		{TokenDot, "."},
		{TokenIdent, "vlan"},
		{TokenDot, "."},
		{TokenIdent, "vid"},
		{TokenSemicolon, ";"},
		{TokenRBrace, "}"},
		{TokenElse, "else"},
		{TokenLBrace, "{"},
		{TokenExit, "exit"},
		{TokenSemicolon, ";"},
		{TokenRBrace, "}"},
		{TokenEOF, ""},
	}

	l := New(input)

	for i, tt := range tests {
		tok := l.NextToken()

		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q",
				i, tt.expectedType, tok.Type)
		}

		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q",
				i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestOperators(t *testing.T) {
	input := `= == != && || ! &&& & : < > [ ] ,`

	tests := []struct {
		expectedType    TokenType
		expectedLiteral string
	}{
		{TokenAssign, "="},
		{TokenEq, "=="},
		{TokenNe, "!="},
		{TokenAnd, "&&"},
		{TokenOr, "||"},
		{TokenNot, "!"},
		{TokenMask, "&&&"},
		{TokenAmpersand, "&"},
		{TokenColon, ":"},
		{TokenLt, "<"},
		{TokenGt, ">"},
		{TokenLBracket, "["},
		{TokenRBracket, "]"},
		{TokenComma, ","},
		{TokenEOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Type != tt.expectedType || tok.Literal != tt.expectedLiteral {
			t.Errorf("tests[%d] = %s %q, want %s %q", i, tok.Type, tok.Literal, tt.expectedType, tt.expectedLiteral)
		}
	}
}

func TestNumbers(t *testing.T) {
	tests := []string{"42", "0x2a", "0b101", "16w42", "12w0xfff", "8s3"}
	for _, input := range tests {
		tok := New(input).NextToken()
		if tok.Type != TokenInt {
			t.Errorf("%q: type = %s, want INT", input, tok.Type)
		}
		if tok.Literal != input {
			t.Errorf("%q: literal = %q", input, tok.Literal)
		}
	}
}

func TestTypeKeywords(t *testing.T) {
	l := New("(bit<12>) bool varbit int")
	want := []TokenType{TokenLParen, TokenBit, TokenLt, TokenInt, TokenGt, TokenRParen, TokenBool, TokenVarbit, TokenInt_, TokenEOF}
	for i, w := range want {
		if tok := l.NextToken(); tok.Type != w {
			t.Errorf("token %d = %s, want %s", i, tok.Type, w)
		}
	}
}

func TestComments(t *testing.T) {
	l := New("// drop everything\nexit; /* done */ return;")
	want := []TokenType{TokenExit, TokenSemicolon, TokenReturn, TokenSemicolon, TokenEOF}
	for i, w := range want {
		if tok := l.NextToken(); tok.Type != w {
			t.Errorf("token %d = %s, want %s", i, tok.Type, w)
		}
	}
}

func TestLineTracking(t *testing.T) {
	l := New("exit;\n  return;")
	l.NextToken()
	l.NextToken()
	tok := l.NextToken()
	if tok.Line != 2 {
		t.Errorf("line = %d, want 2", tok.Line)
	}
	if tok.Column != 3 {
		t.Errorf("column = %d, want 3", tok.Column)
	}
}
