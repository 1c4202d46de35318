// Package parser implements a recursive descent parser for P4 control
// bodies, action bodies, expressions and table entry keysets.
// It produces unresolved p4 nodes; names are bound by the frontend.
package parser

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/raymyers/p4c-of/pkg/lexer"
	"github.com/raymyers/p4c-of/pkg/p4"
)

// Parser parses P4 source text into p4 nodes
type Parser struct {
	l         *lexer.Lexer
	curToken  lexer.Token
	peekToken lexer.Token
	errors    []string
}

// New creates a new Parser for the given lexer
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}
	// Read two tokens to initialize curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

// Errors returns the list of parsing errors
func (p *Parser) Errors() []string {
	return p.errors
}

func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, fmt.Sprintf("line %d, col %d: %s",
		p.curToken.Line, p.curToken.Column, msg))
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t lexer.TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) expect(t lexer.TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf("expected %s, got %s", t, p.curToken.Type))
	return false
}

// ParseStatements parses statements until end of input.
func (p *Parser) ParseStatements() *p4.Block {
	block := &p4.Block{}
	for !p.curTokenIs(lexer.TokenEOF) {
		before := len(p.errors)
		stmt := p.parseStatement()
		if stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
		if len(p.errors) > before {
			break
		}
	}
	return block
}

// ParseExpression parses a single expression spanning the whole input.
func (p *Parser) ParseExpression() p4.Expr {
	e := p.parseExpression()
	if !p.curTokenIs(lexer.TokenEOF) {
		p.addError(fmt.Sprintf("unexpected %s after expression", p.curToken.Type))
	}
	return e
}

// ParseKeyset parses one key of a table entry: an expression, a
// value &&& mask pair, or _ / default for a wildcard.
func (p *Parser) ParseKeyset() p4.Expr {
	var e p4.Expr
	if p.curTokenIs(lexer.TokenDefault) || (p.curTokenIs(lexer.TokenIdent) && p.curToken.Literal == "_") {
		p.nextToken()
		e = &p4.DontCare{}
	} else {
		e = p.parseExpression()
		if p.curTokenIs(lexer.TokenMask) {
			p.nextToken()
			mask := p.parseExpression()
			e = &p4.Binary{Op: "&&&", Left: e, Right: mask}
		}
	}
	if !p.curTokenIs(lexer.TokenEOF) {
		p.addError(fmt.Sprintf("unexpected %s after keyset", p.curToken.Type))
	}
	return e
}

func (p *Parser) parseBlock() *p4.Block {
	block := &p4.Block{}

	p.nextToken() // consume '{'

	for !p.curTokenIs(lexer.TokenRBrace) && !p.curTokenIs(lexer.TokenEOF) {
		before := len(p.errors)
		stmt := p.parseStatement()
		if stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
		if len(p.errors) > before {
			return block
		}
	}

	p.expect(lexer.TokenRBrace)
	return block
}

func (p *Parser) parseStatement() p4.Stmt {
	switch p.curToken.Type {
	case lexer.TokenLBrace:
		return p.parseBlock()
	case lexer.TokenIf:
		return p.parseIf()
	case lexer.TokenSwitch:
		return p.parseSwitch()
	case lexer.TokenExit:
		p.nextToken()
		if !p.expect(lexer.TokenSemicolon) {
			return nil
		}
		return &p4.Exit{}
	case lexer.TokenReturn:
		p.nextToken()
		if !p.expect(lexer.TokenSemicolon) {
			return nil
		}
		return &p4.Return{}
	case lexer.TokenSemicolon:
		p.nextToken()
		return &p4.Empty{}
	case lexer.TokenIdent:
		return p.parseAssignOrCall()
	default:
		p.addError(fmt.Sprintf("unexpected token in statement: %s", p.curToken.Type))
		p.nextToken()
		return nil
	}
}

func (p *Parser) parseIf() p4.Stmt {
	p.nextToken() // consume 'if'
	if !p.expect(lexer.TokenLParen) {
		return nil
	}
	cond := p.parseExpression()
	if !p.expect(lexer.TokenRParen) {
		return nil
	}
	then := p.parseStatement()
	if then == nil {
		return nil
	}
	stmt := &p4.If{Cond: cond, Then: then}
	if p.curTokenIs(lexer.TokenElse) {
		p.nextToken()
		stmt.Else = p.parseStatement()
		if stmt.Else == nil {
			return nil
		}
	}
	return stmt
}

func (p *Parser) parseSwitch() p4.Stmt {
	p.nextToken() // consume 'switch'
	if !p.expect(lexer.TokenLParen) {
		return nil
	}
	subject := p.parseExpression()
	if !p.expect(lexer.TokenRParen) {
		return nil
	}
	if !p.curTokenIs(lexer.TokenLBrace) {
		p.addError(fmt.Sprintf("expected '{', got %s", p.curToken.Type))
		return nil
	}
	p.nextToken() // consume '{'

	stmt := &p4.Switch{Subject: subject}
	for !p.curTokenIs(lexer.TokenRBrace) && !p.curTokenIs(lexer.TokenEOF) {
		var label string
		switch p.curToken.Type {
		case lexer.TokenIdent:
			label = p.curToken.Literal
		case lexer.TokenDefault:
			label = "default"
		default:
			p.addError(fmt.Sprintf("expected switch label, got %s", p.curToken.Type))
			return nil
		}
		p.nextToken()
		if !p.expect(lexer.TokenColon) {
			return nil
		}
		c := p4.SwitchCase{Label: label}
		if p.curTokenIs(lexer.TokenLBrace) {
			c.Body = p.parseBlock()
		}
		stmt.Cases = append(stmt.Cases, c)
	}
	if !p.expect(lexer.TokenRBrace) {
		return nil
	}
	return stmt
}

func (p *Parser) parseAssignOrCall() p4.Stmt {
	left := p.parsePostfix()
	if left == nil {
		return nil
	}
	if p.curTokenIs(lexer.TokenAssign) {
		p.nextToken()
		right := p.parseExpression()
		if !p.expect(lexer.TokenSemicolon) {
			return nil
		}
		return &p4.Assign{Left: left, Right: right}
	}
	call, ok := left.(*p4.MethodCall)
	if !ok {
		p.addError(fmt.Sprintf("expected assignment or call, got %s", left))
		return nil
	}
	if !p.expect(lexer.TokenSemicolon) {
		return nil
	}
	return &p4.CallStmt{Call: call}
}

// Precedence, lowest first: ||, &&, == and !=.
func (p *Parser) parseExpression() p4.Expr {
	return p.parseOr()
}

func (p *Parser) parseOr() p4.Expr {
	left := p.parseAnd()
	for left != nil && p.curTokenIs(lexer.TokenOr) {
		p.nextToken()
		right := p.parseAnd()
		if right == nil {
			return nil
		}
		left = &p4.Binary{Op: "||", Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAnd() p4.Expr {
	left := p.parseEquality()
	for left != nil && p.curTokenIs(lexer.TokenAnd) {
		p.nextToken()
		right := p.parseEquality()
		if right == nil {
			return nil
		}
		left = &p4.Binary{Op: "&&", Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseEquality() p4.Expr {
	left := p.parseUnary()
	for left != nil && (p.curTokenIs(lexer.TokenEq) || p.curTokenIs(lexer.TokenNe)) {
		op := p.curToken.Literal
		p.nextToken()
		right := p.parseUnary()
		if right == nil {
			return nil
		}
		left = &p4.Binary{Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() p4.Expr {
	switch {
	case p.curTokenIs(lexer.TokenNot):
		p.nextToken()
		x := p.parseUnary()
		if x == nil {
			return nil
		}
		return &p4.Unary{Op: "!", X: x}
	case p.curTokenIs(lexer.TokenLParen) && isTypeToken(p.peekToken.Type):
		p.nextToken() // consume '('
		typ, ok := p.parseType()
		if !ok || !p.expect(lexer.TokenRParen) {
			return nil
		}
		x := p.parseUnary()
		if x == nil {
			return nil
		}
		return &p4.Cast{Type: typ, X: x}
	}
	return p.parsePostfix()
}

func isTypeToken(t lexer.TokenType) bool {
	switch t {
	case lexer.TokenBit, lexer.TokenInt_, lexer.TokenVarbit, lexer.TokenBool:
		return true
	}
	return false
}

// parseType parses bool, bit<N>, int<N> or varbit<N>.
func (p *Parser) parseType() (p4.Type, bool) {
	tok := p.curToken.Type
	p.nextToken()
	if tok == lexer.TokenBool {
		return p4.Type{Width: 1, Bool: true}, true
	}
	if !p.expect(lexer.TokenLt) {
		return p4.Type{}, false
	}
	if !p.curTokenIs(lexer.TokenInt) {
		p.addError(fmt.Sprintf("expected width, got %s", p.curToken.Type))
		return p4.Type{}, false
	}
	width, err := strconv.Atoi(p.curToken.Literal)
	if err != nil {
		p.addError(fmt.Sprintf("invalid width %q", p.curToken.Literal))
		return p4.Type{}, false
	}
	p.nextToken()
	if !p.expect(lexer.TokenGt) {
		return p4.Type{}, false
	}
	return p4.Type{
		Width:  width,
		Signed: tok == lexer.TokenInt_,
		Varbit: tok == lexer.TokenVarbit,
	}, true
}

func (p *Parser) parsePostfix() p4.Expr {
	e := p.parsePrimary()
	for e != nil {
		switch p.curToken.Type {
		case lexer.TokenDot:
			p.nextToken()
			if !p.curTokenIs(lexer.TokenIdent) {
				p.addError(fmt.Sprintf("expected member name, got %s", p.curToken.Type))
				return nil
			}
			name := p.curToken.Literal
			p.nextToken()
			if path, ok := e.(*p4.Path); ok {
				e = &p4.Path{Name: path.Name + "." + name}
			} else {
				e = &p4.Member{Expr: e, Member: name}
			}
		case lexer.TokenLParen:
			path, ok := e.(*p4.Path)
			if !ok {
				p.addError(fmt.Sprintf("cannot call %s", e))
				return nil
			}
			args, ok := p.parseArgs()
			if !ok {
				return nil
			}
			call := &p4.MethodCall{Method: path.Name, Args: args}
			if i := strings.LastIndex(path.Name, "."); i >= 0 {
				call.Target = &p4.Path{Name: path.Name[:i]}
				call.Method = path.Name[i+1:]
			}
			e = call
		case lexer.TokenLBracket:
			p.nextToken()
			high, ok := p.parseSmallInt()
			if !ok || !p.expect(lexer.TokenColon) {
				return nil
			}
			low, ok := p.parseSmallInt()
			if !ok || !p.expect(lexer.TokenRBracket) {
				return nil
			}
			e = &p4.Slice{X: e, High: high, Low: low}
		default:
			return e
		}
	}
	return e
}

func (p *Parser) parseArgs() ([]p4.Expr, bool) {
	p.nextToken() // consume '('
	var args []p4.Expr
	for !p.curTokenIs(lexer.TokenRParen) {
		arg := p.parseExpression()
		if arg == nil {
			return nil, false
		}
		args = append(args, arg)
		if !p.curTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
	}
	if !p.expect(lexer.TokenRParen) {
		return nil, false
	}
	return args, true
}

func (p *Parser) parseSmallInt() (int, bool) {
	if !p.curTokenIs(lexer.TokenInt) {
		p.addError(fmt.Sprintf("expected integer, got %s", p.curToken.Type))
		return 0, false
	}
	c, err := ParseInt(p.curToken.Literal)
	if err != nil || !c.Value.IsInt64() {
		p.addError(fmt.Sprintf("invalid integer %q", p.curToken.Literal))
		return 0, false
	}
	p.nextToken()
	return int(c.Value.Int64()), true
}

func (p *Parser) parsePrimary() p4.Expr {
	switch p.curToken.Type {
	case lexer.TokenInt:
		c, err := ParseInt(p.curToken.Literal)
		if err != nil {
			p.addError(err.Error())
			return nil
		}
		p.nextToken()
		return c
	case lexer.TokenTrue:
		p.nextToken()
		return &p4.BoolLit{Value: true}
	case lexer.TokenFalse:
		p.nextToken()
		return &p4.BoolLit{Value: false}
	case lexer.TokenIdent:
		name := p.curToken.Literal
		p.nextToken()
		return &p4.Path{Name: name}
	case lexer.TokenLParen:
		p.nextToken()
		e := p.parseExpression()
		if e == nil || !p.expect(lexer.TokenRParen) {
			return nil
		}
		return e
	default:
		p.addError(fmt.Sprintf("expected expression, got %s", p.curToken.Type))
		return nil
	}
}

// ParseInt parses an integer literal such as 42, 0x2a, 0b101, 16w5 or 8s0x7f.
func ParseInt(lit string) (*p4.Constant, error) {
	c := &p4.Constant{Base: 10}
	digits := lit
	if i := strings.IndexAny(lit, "ws"); i > 0 && !strings.HasPrefix(lit, "0x") && !strings.HasPrefix(lit, "0X") {
		w, err := strconv.Atoi(lit[:i])
		if err != nil {
			return nil, fmt.Errorf("invalid width in %q", lit)
		}
		c.Width = w
		c.Signed = lit[i] == 's'
		digits = lit[i+1:]
	}
	digits = strings.ReplaceAll(digits, "_", "")
	if len(digits) > 2 && digits[0] == '0' {
		switch digits[1] {
		case 'x', 'X':
			c.Base = 16
		case 'b', 'B':
			c.Base = 2
		case 'o', 'O':
			c.Base = 8
		case 'd', 'D':
			c.Base = 10
		}
		if c.Base != 10 || digits[1] == 'd' || digits[1] == 'D' {
			digits = digits[2:]
		}
	}
	v, ok := new(big.Int).SetString(digits, c.Base)
	if !ok {
		return nil, fmt.Errorf("invalid integer literal %q", lit)
	}
	c.Value = v
	return c, nil
}
