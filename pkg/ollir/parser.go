package ollir

import (
	"errors"
	"fmt"
	"strings"
)

// ErrParse is returned when OLLIR text cannot be parsed
var ErrParse = errors.New("ollir parse error")

// Parser parses OLLIR text into a Class
type Parser struct {
	l         *Lexer
	curToken  Token
	peekToken Token
	errors    []string

	className string
	method    *Method
}

// NewParser creates a new Parser for the given lexer
func NewParser(l *Lexer) *Parser {
	p := &Parser{l: l}
	// Read two tokens to initialize curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a complete OLLIR compilation unit and builds the variable
// table of every method.
func Parse(src string) (*Class, error) {
	p := NewParser(NewLexer(src))
	c := p.ParseClass()
	if len(p.Errors()) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrParse, strings.Join(p.Errors(), "; "))
	}
	for _, m := range c.Methods {
		BuildVarTable(c, m)
	}
	return c, nil
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

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) curIdentIs(word string) bool {
	return p.curToken.Type == TokenIdent && p.curToken.Literal == word
}

func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf("expected %s, got %s %q", t, p.curToken.Type, p.curToken.Literal))
	return false
}

func (p *Parser) expectIdent() (string, bool) {
	if !p.curTokenIs(TokenIdent) {
		p.addError(fmt.Sprintf("expected identifier, got %s %q", p.curToken.Type, p.curToken.Literal))
		return "", false
	}
	name := p.curToken.Literal
	p.nextToken()
	return name, true
}

// synchronize skips to the end of the current statement after an error
func (p *Parser) synchronize() {
	for !p.curTokenIs(TokenEOF) && !p.curTokenIs(TokenRBrace) {
		if p.curTokenIs(TokenSemicolon) {
			p.nextToken()
			return
		}
		p.nextToken()
	}
}

// ParseClass parses imports followed by one class declaration
func (p *Parser) ParseClass() *Class {
	c := &Class{}

	for p.curIdentIs("import") {
		p.nextToken()
		var parts []string
		for {
			part, ok := p.expectIdent()
			if !ok {
				p.synchronize()
				break
			}
			parts = append(parts, part)
			if !p.curTokenIs(TokenDot) {
				break
			}
			p.nextToken()
		}
		if len(parts) > 0 {
			c.Imports = append(c.Imports, strings.Join(parts, "."))
		}
		if p.curTokenIs(TokenSemicolon) {
			p.nextToken()
		}
	}

	name, ok := p.expectIdent()
	if !ok {
		return c
	}
	c.Name = name
	p.className = name

	if p.curIdentIs("extends") {
		p.nextToken()
		c.Super, _ = p.expectIdent()
	}
	if !p.expect(TokenLBrace) {
		return c
	}

	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		if !p.expect(TokenDot) {
			p.synchronize()
			continue
		}
		switch {
		case p.curIdentIs("field"):
			p.nextToken()
			if f, ok := p.parseField(); ok {
				c.Fields = append(c.Fields, f)
			}
		case p.curIdentIs("construct"):
			p.nextToken()
			if m := p.parseMethod(true); m != nil {
				c.Methods = append(c.Methods, m)
			}
		case p.curIdentIs("method"):
			p.nextToken()
			if m := p.parseMethod(false); m != nil {
				c.Methods = append(c.Methods, m)
			}
		default:
			p.addError(fmt.Sprintf("unexpected directive %q", p.curToken.Literal))
			p.synchronize()
		}
	}
	p.expect(TokenRBrace)
	return c
}

func isAccessModifier(word string) bool {
	switch word {
	case "public", "private", "protected", "default":
		return true
	}
	return false
}

func (p *Parser) parseField() (Field, bool) {
	var f Field
	for p.curTokenIs(TokenIdent) && p.peekTokenIs(TokenIdent) {
		if isAccessModifier(p.curToken.Literal) {
			f.Access = p.curToken.Literal
		}
		p.nextToken()
	}
	name, ok := p.expectIdent()
	if !ok {
		p.synchronize()
		return f, false
	}
	f.Name = name
	f.Type, ok = p.parseType()
	if !ok {
		p.synchronize()
		return f, false
	}
	return f, p.expect(TokenSemicolon)
}

func (p *Parser) parseMethod(construct bool) *Method {
	m := NewMethod("")
	m.IsConstruct = construct

	// Modifiers run until the identifier directly followed by '('
	for p.curTokenIs(TokenIdent) && !p.peekTokenIs(TokenLParen) {
		switch word := p.curToken.Literal; {
		case isAccessModifier(word):
			m.Access = word
		case word == "static":
			m.IsStatic = true
		}
		p.nextToken()
	}
	name, ok := p.expectIdent()
	if !ok {
		p.synchronize()
		return nil
	}
	m.Name = name
	p.method = m

	if !p.expect(TokenLParen) {
		return nil
	}
	for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) {
		pname, ok := p.expectIdent()
		if !ok {
			return nil
		}
		ptype, ok := p.parseType()
		if !ok {
			return nil
		}
		m.Params = append(m.Params, Param{Name: pname, Type: ptype})
		if p.curTokenIs(TokenComma) {
			p.nextToken()
		}
	}
	if !p.expect(TokenRParen) {
		return nil
	}
	if m.ReturnType, ok = p.parseType(); !ok {
		return nil
	}
	if !p.expect(TokenLBrace) {
		return nil
	}

	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		p.parseStatement()
	}
	p.expect(TokenRBrace)

	for label, idx := range m.Labels {
		if idx > len(m.Instructions) {
			p.addError(fmt.Sprintf("label %s out of range in %s", label, m.Name))
		}
	}
	p.checkJumpTargets(m)
	p.method = nil
	return m
}

func (p *Parser) checkJumpTargets(m *Method) {
	for _, instr := range m.Instructions {
		var label string
		switch i := instr.(type) {
		case Goto:
			label = i.Label
		case CondBranch:
			label = i.Label
		default:
			continue
		}
		if _, ok := m.Labels[label]; !ok {
			p.addError(fmt.Sprintf("undefined label %s in %s", label, m.Name))
		}
	}
}

// parseType parses a type suffix: .i32, .bool, .V, .ClassName or .array.T
func (p *Parser) parseType() (Type, bool) {
	if !p.expect(TokenDot) {
		return Type{}, false
	}
	base, ok := p.expectIdent()
	if !ok {
		return Type{}, false
	}
	if base != "array" {
		return Type{Base: base}, true
	}
	if !p.expect(TokenDot) {
		return Type{}, false
	}
	elem, ok := p.expectIdent()
	if !ok {
		return Type{}, false
	}
	return Type{Base: elem, Array: true}, true
}

func (p *Parser) parseStatement() {
	m := p.method

	// Label
	if p.curTokenIs(TokenIdent) && p.peekTokenIs(TokenColon) {
		label := p.curToken.Literal
		if _, dup := m.Labels[label]; dup {
			p.addError(fmt.Sprintf("duplicate label %s", label))
		}
		m.Labels[label] = len(m.Instructions)
		p.nextToken()
		p.nextToken()
		return
	}

	instr, ok := p.parseInstruction()
	if !ok {
		p.synchronize()
		return
	}
	if !p.expect(TokenSemicolon) {
		p.synchronize()
		return
	}
	m.Instructions = append(m.Instructions, instr)
}

func (p *Parser) parseInstruction() (Instruction, bool) {
	switch {
	case p.curIdentIs("goto"):
		p.nextToken()
		label, ok := p.expectIdent()
		return Goto{Label: label}, ok

	case p.curIdentIs("if") && p.peekTokenIs(TokenLParen):
		p.nextToken()
		p.nextToken()
		cond, ok := p.parseExpression()
		if !ok || !p.expect(TokenRParen) {
			return nil, false
		}
		if !p.curIdentIs("goto") {
			p.addError(fmt.Sprintf("expected goto, got %q", p.curToken.Literal))
			return nil, false
		}
		p.nextToken()
		label, ok := p.expectIdent()
		return CondBranch{Cond: cond, Label: label}, ok

	case p.curIdentIs("ret") && p.peekTokenIs(TokenDot):
		p.nextToken()
		t, ok := p.parseType()
		if !ok {
			return nil, false
		}
		if p.curTokenIs(TokenSemicolon) {
			return Return{Type: t}, true
		}
		if p.curTokenIs(TokenAssign) {
			// a variable that happens to be called ret
			return p.parseAssign(Operand{Name: "ret", Type: t})
		}
		if t.IsVoid() {
			return Return{Type: t}, true
		}
		e, ok := p.parseElement()
		return Return{Operand: e, Type: t}, ok

	case p.isCallStart():
		return p.parseCallLike()
	}

	dest, ok := p.parseElement()
	if !ok {
		return nil, false
	}
	return p.parseAssign(dest)
}

// parseAssign parses ":=.T rhs" after the destination
func (p *Parser) parseAssign(dest Element) (Instruction, bool) {
	if !p.expect(TokenAssign) {
		return nil, false
	}
	t, ok := p.parseType()
	if !ok {
		return nil, false
	}
	rhs, ok := p.parseExpression()
	if !ok {
		return nil, false
	}
	return Assign{Dest: dest, Type: t, Rhs: rhs}, true
}

var callWords = map[string]bool{
	"invokestatic":  true,
	"invokevirtual": true,
	"invokespecial": true,
	"new":           true,
	"arraylength":   true,
	"getfield":      true,
	"putfield":      true,
}

func (p *Parser) isCallStart() bool {
	return p.curTokenIs(TokenIdent) && callWords[p.curToken.Literal] && p.peekTokenIs(TokenLParen)
}

// parseExpression parses an assignment right-hand side or branch condition
func (p *Parser) parseExpression() (Instruction, bool) {
	if p.isCallStart() {
		return p.parseCallLike()
	}

	// Unary operators carry a type: !.bool x.bool, -.i32 x.i32
	if p.curTokenIs(TokenNot) || (p.curTokenIs(TokenMinus) && p.peekTokenIs(TokenDot)) {
		op := OpNot
		if p.curTokenIs(TokenMinus) {
			op = OpNeg
		}
		p.nextToken()
		t, ok := p.parseType()
		if !ok {
			return nil, false
		}
		e, ok := p.parseElement()
		return UnaryOp{Op: op, Operand: e, Type: t}, ok
	}

	left, ok := p.parseElement()
	if !ok {
		return nil, false
	}
	op, isBinary := binaryOps[p.curToken.Type]
	if !isBinary {
		return SingleOp{Operand: left}, true
	}
	p.nextToken()
	t, ok := p.parseType()
	if !ok {
		return nil, false
	}
	right, ok := p.parseElement()
	if !ok {
		return nil, false
	}
	return BinaryOp{Op: op, Left: left, Right: right, Type: t}, true
}

// parseElement parses a literal, a typed variable or an indexed array element
func (p *Parser) parseElement() (Element, bool) {
	switch {
	case p.curTokenIs(TokenInt), p.curTokenIs(TokenMinus) && p.peekTokenIs(TokenInt):
		value := ""
		if p.curTokenIs(TokenMinus) {
			value = "-"
			p.nextToken()
		}
		value += p.curToken.Literal
		p.nextToken()
		t, ok := p.parseType()
		return Literal{Value: value, Type: t}, ok

	case p.curTokenIs(TokenString):
		value := p.curToken.Literal
		p.nextToken()
		t := Type{Base: "String"}
		if p.curTokenIs(TokenDot) {
			var ok bool
			if t, ok = p.parseType(); !ok {
				return nil, false
			}
		}
		return Literal{Value: value, Type: t}, true

	case p.curTokenIs(TokenIdent):
		name := p.curToken.Literal
		p.nextToken()

		if p.curTokenIs(TokenLBracket) {
			p.nextToken()
			var index []Element
			for {
				idx, ok := p.parseElement()
				if !ok {
					return nil, false
				}
				index = append(index, idx)
				if !p.curTokenIs(TokenComma) {
					break
				}
				p.nextToken()
			}
			if !p.expect(TokenRBracket) {
				return nil, false
			}
			t, ok := p.parseType()
			return ArrayOperand{Name: name, Index: index, Type: t}, ok
		}

		if name == ReceiverName && !p.curTokenIs(TokenDot) {
			return Operand{Name: name, Type: Type{Base: p.className}}, true
		}
		t, ok := p.parseType()
		return Operand{Name: name, Type: t}, ok
	}

	p.addError(fmt.Sprintf("expected element, got %s %q", p.curToken.Type, p.curToken.Literal))
	return nil, false
}

// parseClassRef parses the class argument of invokestatic and new,
// accepting an optional type suffix.
func (p *Parser) parseClassRef() (string, bool) {
	name, ok := p.expectIdent()
	if !ok {
		return "", false
	}
	if p.curTokenIs(TokenDot) {
		if _, ok := p.parseType(); !ok {
			return "", false
		}
	}
	return name, true
}

func (p *Parser) parseMethodName() (string, bool) {
	if !p.expect(TokenComma) {
		return "", false
	}
	if !p.curTokenIs(TokenString) {
		p.addError(fmt.Sprintf("expected method name string, got %s", p.curToken.Type))
		return "", false
	}
	name := p.curToken.Literal
	p.nextToken()
	return name, true
}

func (p *Parser) parseArgs() ([]Element, bool) {
	var args []Element
	for p.curTokenIs(TokenComma) {
		p.nextToken()
		e, ok := p.parseElement()
		if !ok {
			return nil, false
		}
		args = append(args, e)
	}
	return args, p.expect(TokenRParen)
}

// parseCallLike parses invoke*, new, arraylength, getfield and putfield
func (p *Parser) parseCallLike() (Instruction, bool) {
	word := p.curToken.Literal
	p.nextToken()
	if !p.expect(TokenLParen) {
		return nil, false
	}

	switch word {
	case "getfield":
		obj, ok := p.parseElement()
		if !ok || !p.expect(TokenComma) {
			return nil, false
		}
		field, ok := p.parseFieldRef()
		if !ok || !p.expect(TokenRParen) {
			return nil, false
		}
		if _, ok := p.parseType(); !ok {
			return nil, false
		}
		return GetField{Object: obj, Field: field}, true

	case "putfield":
		obj, ok := p.parseElement()
		if !ok || !p.expect(TokenComma) {
			return nil, false
		}
		field, ok := p.parseFieldRef()
		if !ok || !p.expect(TokenComma) {
			return nil, false
		}
		value, ok := p.parseElement()
		if !ok || !p.expect(TokenRParen) {
			return nil, false
		}
		if _, ok := p.parseType(); !ok {
			return nil, false
		}
		return PutField{Object: obj, Field: field, Value: value}, true

	case "new":
		if p.curIdentIs("array") {
			p.nextToken()
			args, ok := p.parseArgs()
			if !ok {
				return nil, false
			}
			t, ok := p.parseType()
			return Call{Kind: New, Args: args, ReturnType: t}, ok
		}
		class, ok := p.parseClassRef()
		if !ok {
			return nil, false
		}
		args, ok := p.parseArgs()
		if !ok {
			return nil, false
		}
		t, ok := p.parseType()
		return Call{Kind: New, Class: class, Args: args, ReturnType: t}, ok

	case "arraylength":
		arr, ok := p.parseElement()
		if !ok || !p.expect(TokenRParen) {
			return nil, false
		}
		t, ok := p.parseType()
		return Call{Kind: ArrayLength, Caller: arr, ReturnType: t}, ok

	case "invokestatic":
		class, ok := p.parseClassRef()
		if !ok {
			return nil, false
		}
		method, ok := p.parseMethodName()
		if !ok {
			return nil, false
		}
		args, ok := p.parseArgs()
		if !ok {
			return nil, false
		}
		t, ok := p.parseType()
		return Call{Kind: InvokeStatic, Class: class, Method: method, Args: args, ReturnType: t}, ok
	}

	kind := InvokeVirtual
	if word == "invokespecial" {
		kind = InvokeSpecial
	}
	caller, ok := p.parseElement()
	if !ok {
		return nil, false
	}
	method, ok := p.parseMethodName()
	if !ok {
		return nil, false
	}
	args, ok := p.parseArgs()
	if !ok {
		return nil, false
	}
	t, ok := p.parseType()
	return Call{Kind: kind, Caller: caller, Method: method, Args: args, ReturnType: t}, ok
}

// parseFieldRef parses the field name argument of getfield/putfield
func (p *Parser) parseFieldRef() (Operand, bool) {
	name, ok := p.expectIdent()
	if !ok {
		return Operand{}, false
	}
	t, ok := p.parseType()
	return Operand{Name: name, Type: t}, ok
}
