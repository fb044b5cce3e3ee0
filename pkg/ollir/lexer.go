package ollir

// Lexer tokenizes OLLIR source
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // next reading position
	ch      byte // current character
	line    int
	column  int
}

// NewLexer creates a new Lexer for the given input
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1, column: 0}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
	l.column++

	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// NextToken returns the next token from the input
func (l *Lexer) NextToken() Token {
	l.skipSpaceAndComments()

	tok := Token{Line: l.line, Column: l.column}

	switch l.ch {
	case 0:
		tok.Type = TokenEOF
		return tok
	case ':':
		if l.peekChar() == '=' {
			l.readChar()
			tok.Type, tok.Literal = TokenAssign, ":="
		} else {
			tok.Type, tok.Literal = TokenColon, ":"
		}
	case '.':
		tok.Type, tok.Literal = TokenDot, "."
	case ';':
		tok.Type, tok.Literal = TokenSemicolon, ";"
	case ',':
		tok.Type, tok.Literal = TokenComma, ","
	case '(':
		tok.Type, tok.Literal = TokenLParen, "("
	case ')':
		tok.Type, tok.Literal = TokenRParen, ")"
	case '[':
		tok.Type, tok.Literal = TokenLBracket, "["
	case ']':
		tok.Type, tok.Literal = TokenRBracket, "]"
	case '{':
		tok.Type, tok.Literal = TokenLBrace, "{"
	case '}':
		tok.Type, tok.Literal = TokenRBrace, "}"
	case '+':
		tok.Type, tok.Literal = TokenPlus, "+"
	case '-':
		tok.Type, tok.Literal = TokenMinus, "-"
	case '*':
		tok.Type, tok.Literal = TokenStar, "*"
	case '/':
		tok.Type, tok.Literal = TokenSlash, "/"
	case '<':
		tok.Type, tok.Literal = l.twoChar('=', TokenLt, TokenLe)
	case '>':
		tok.Type, tok.Literal = l.twoChar('=', TokenGt, TokenGe)
	case '!':
		tok.Type, tok.Literal = l.twoChar('=', TokenNot, TokenNe)
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			tok.Type, tok.Literal = TokenEq, "=="
		} else {
			tok.Type, tok.Literal = TokenIllegal, "="
		}
	case '&':
		if l.peekChar() == '&' {
			l.readChar()
			tok.Type, tok.Literal = TokenAndAnd, "&&"
		} else {
			tok.Type, tok.Literal = TokenIllegal, "&"
		}
	case '|':
		if l.peekChar() == '|' {
			l.readChar()
			tok.Type, tok.Literal = TokenOrOr, "||"
		} else {
			tok.Type, tok.Literal = TokenIllegal, "|"
		}
	case '"':
		tok.Type = TokenString
		tok.Literal = l.readString()
		return tok
	default:
		if isLetter(l.ch) {
			tok.Type = TokenIdent
			tok.Literal = l.readIdentifier()
			return tok
		}
		if isDigit(l.ch) {
			tok.Type = TokenInt
			tok.Literal = l.readNumber()
			return tok
		}
		tok.Type, tok.Literal = TokenIllegal, string(l.ch)
	}

	l.readChar()
	return tok
}

// twoChar reads an operator that may be followed by second
func (l *Lexer) twoChar(second byte, single, double TokenType) (TokenType, string) {
	first := l.ch
	if l.peekChar() == second {
		l.readChar()
		return double, string([]byte{first, second})
	}
	return single, string(first)
}

func (l *Lexer) skipSpaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}
		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		return
	}
}

func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

func (l *Lexer) readNumber() string {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readString reads a double-quoted string and returns it without the quotes
func (l *Lexer) readString() string {
	l.readChar() // opening quote
	start := l.pos
	for l.ch != '"' && l.ch != 0 {
		l.readChar()
	}
	s := l.input[start:l.pos]
	if l.ch == '"' {
		l.readChar()
	}
	return s
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_' || ch == '$'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
