package lexer

// TokenType represents the type of a token
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenIllegal

	// Literals
	TokenIdent  // hdr, apply, mark_to_drop
	TokenInt    // 42, 0x2a, 16w42, 8s0b101
	TokenString // "hello"

	// Keywords
	TokenIf      // if
	TokenElse    // else
	TokenSwitch  // switch
	TokenDefault // default
	TokenExit    // exit
	TokenReturn  // return
	TokenTrue    // true
	TokenFalse   // false
	TokenBit     // bit
	TokenInt_    // int
	TokenVarbit  // varbit
	TokenBool    // bool

	// Operators
	TokenAssign    // =
	TokenEq        // ==
	TokenNe        // !=
	TokenLt        // <
	TokenGt        // >
	TokenAnd       // &&
	TokenOr        // ||
	TokenNot       // !
	TokenMask      // &&&
	TokenAmpersand // &
	TokenColon     // :

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenSemicolon // ;
	TokenComma     // ,
	TokenDot       // .
)

var tokenNames = map[TokenType]string{
	TokenEOF:       "EOF",
	TokenIllegal:   "ILLEGAL",
	TokenIdent:     "IDENT",
	TokenInt:       "INT",
	TokenString:    "STRING",
	TokenIf:        "if",
	TokenElse:      "else",
	TokenSwitch:    "switch",
	TokenDefault:   "default",
	TokenExit:      "exit",
	TokenReturn:    "return",
	TokenTrue:      "true",
	TokenFalse:     "false",
	TokenBit:       "bit",
	TokenInt_:      "int",
	TokenVarbit:    "varbit",
	TokenBool:      "bool",
	TokenAssign:    "=",
	TokenEq:        "==",
	TokenNe:        "!=",
	TokenLt:        "<",
	TokenGt:        ">",
	TokenAnd:       "&&",
	TokenOr:        "||",
	TokenNot:       "!",
	TokenMask:      "&&&",
	TokenAmpersand: "&",
	TokenColon:     ":",
	TokenLParen:    "(",
	TokenRParen:    ")",
	TokenLBrace:    "{",
	TokenRBrace:    "}",
	TokenLBracket:  "[",
	TokenRBracket:  "]",
	TokenSemicolon: ";",
	TokenComma:     ",",
	TokenDot:       ".",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Token represents a lexical token
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

// keywords maps keyword strings to token types
var keywords = map[string]TokenType{
	"if":      TokenIf,
	"else":    TokenElse,
	"switch":  TokenSwitch,
	"default": TokenDefault,
	"exit":    TokenExit,
	"return":  TokenReturn,
	"true":    TokenTrue,
	"false":   TokenFalse,
	"bit":     TokenBit,
	"int":     TokenInt_,
	"varbit":  TokenVarbit,
	"bool":    TokenBool,
}

// LookupIdent returns the token type for an identifier (keyword or IDENT)
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TokenIdent
}
