package ollir

import "fmt"

// TokenType represents the type of a token
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenIllegal

	// Literals
	TokenIdent  // tmp0, i32, invokevirtual
	TokenInt    // 42
	TokenString // "hello"

	// Punctuation
	TokenAssign    // :=
	TokenDot       // .
	TokenColon     // :
	TokenSemicolon // ;
	TokenComma     // ,
	TokenLParen    // (
	TokenRParen    // )
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenLBrace    // {
	TokenRBrace    // }

	// Operators
	TokenPlus   // +
	TokenMinus  // -
	TokenStar   // *
	TokenSlash  // /
	TokenLt     // <
	TokenLe     // <=
	TokenGt     // >
	TokenGe     // >=
	TokenEq     // ==
	TokenNe     // !=
	TokenAndAnd // &&
	TokenOrOr   // ||
	TokenNot    // !
)

var tokenNames = map[TokenType]string{
	TokenEOF:       "EOF",
	TokenIllegal:   "ILLEGAL",
	TokenIdent:     "IDENT",
	TokenInt:       "INT",
	TokenString:    "STRING",
	TokenAssign:    ":=",
	TokenDot:       ".",
	TokenColon:     ":",
	TokenSemicolon: ";",
	TokenComma:     ",",
	TokenLParen:    "(",
	TokenRParen:    ")",
	TokenLBracket:  "[",
	TokenRBracket:  "]",
	TokenLBrace:    "{",
	TokenRBrace:    "}",
	TokenPlus:      "+",
	TokenMinus:     "-",
	TokenStar:      "*",
	TokenSlash:     "/",
	TokenLt:        "<",
	TokenLe:        "<=",
	TokenGt:        ">",
	TokenGe:        ">=",
	TokenEq:        "==",
	TokenNe:        "!=",
	TokenAndAnd:    "&&",
	TokenOrOr:      "||",
	TokenNot:       "!",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Token is a lexical token with its position
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

// binaryOps maps operator tokens to the OLLIR operators they denote
var binaryOps = map[TokenType]OpKind{
	TokenPlus:   OpAdd,
	TokenMinus:  OpSub,
	TokenStar:   OpMul,
	TokenSlash:  OpDiv,
	TokenLt:     OpLt,
	TokenLe:     OpLe,
	TokenGt:     OpGt,
	TokenGe:     OpGe,
	TokenEq:     OpEq,
	TokenNe:     OpNe,
	TokenAndAnd: OpAnd,
	TokenOrOr:   OpOr,
}
