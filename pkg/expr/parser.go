package expr

// Limits bounds the size of the expressions Compile accepts. A zero field means no limit.
type Limits struct {
	// MaxLength is the maximum length of the expression source in bytes.
	MaxLength int

	// MaxDepth is the maximum nesting depth of the parsed expression.
	MaxDepth int
}

// binaryPrecedence maps each binary operator to its binding power. Higher binds tighter.
var binaryPrecedence = map[string]int{
	"||": 1,
	"&&": 2,
	"==": 3, "!=": 3,
	"<": 4, "<=": 4, ">": 4, ">=": 4,
	"+": 5, "-": 5,
	"*": 6, "/": 6, "%": 6,
}

type parser struct {
	tokens []token
	pos    int
	depth  int
	limits Limits
}

func parse(src string, limits Limits) (node, error) {
	if limits.MaxLength > 0 && len(src) > limits.MaxLength {
		return nil, newError(RangeError, 0, "expression is %d bytes, limit is %d", len(src), limits.MaxLength)
	}
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens, limits: limits}
	if p.peek().kind == tokEOF {
		return nil, newError(SyntaxError, 0, "empty expression")
	}
	n, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, newError(SyntaxError, tok.pos, "unexpected %s", describe(tok))
	}
	return n, nil
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) isPunct(text string) bool {
	tok := p.peek()
	return tok.kind == tokPunct && tok.text == text
}

func (p *parser) expect(text string) (token, error) {
	tok := p.next()
	if tok.kind != tokPunct || tok.text != text {
		return tok, newError(SyntaxError, tok.pos, "expected %q, found %s", text, describe(tok))
	}
	return tok, nil
}

func (p *parser) enter(pos int) error {
	p.depth++
	if p.limits.MaxDepth > 0 && p.depth > p.limits.MaxDepth {
		return newError(RangeError, pos, "expression nesting exceeds %d levels", p.limits.MaxDepth)
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func (p *parser) parseExpression() (node, error) {
	if err := p.enter(p.peek().pos); err != nil {
		return nil, err
	}
	defer p.leave()

	test, err := p.parseBinary(1)
	if err != nil {
		return nil, err
	}
	if !p.isPunct("?") {
		return test, nil
	}
	q := p.next()
	then, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err = p.expect(":"); err != nil {
		return nil, err
	}
	els, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &conditional{pos: q.pos, test: test, then: then, els: els}, nil
}

// parseBinary is a precedence climbing parser for left-associative binary operators.
func (p *parser) parseBinary(minPrec int) (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokPunct {
			return left, nil
		}
		prec, ok := binaryPrecedence[tok.text]
		if !ok || prec < minPrec {
			return left, nil
		}
		p.next()
		right, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &binary{pos: tok.pos, op: tok.text, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if p.isPunct("!") || p.isPunct("-") || p.isPunct("+") {
		tok := p.next()
		if err := p.enter(tok.pos); err != nil {
			return nil, err
		}
		defer p.leave()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unary{pos: tok.pos, op: tok.text, x: x}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (node, error) {
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isPunct("."):
			dot := p.next()
			name := p.next()
			if name.kind != tokIdent {
				return nil, newError(SyntaxError, name.pos, "expected property name after '.', found %s", describe(name))
			}
			n = &member{pos: dot.pos, obj: n, name: name.text}
		case p.isPunct("["):
			open := p.next()
			key, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err = p.expect("]"); err != nil {
				return nil, err
			}
			n = &index{pos: open.pos, obj: n, key: key}
		case p.isPunct("("):
			id, ok := n.(*identifier)
			if !ok {
				return nil, newError(SyntaxError, p.peek().pos, "only builtin functions can be called")
			}
			p.next()
			args, err := p.parseList(")")
			if err != nil {
				return nil, err
			}
			n = &call{pos: id.pos, name: id.name, args: args}
		default:
			return n, nil
		}
	}
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		return &literal{pos: tok.pos, val: tok.num}, nil
	case tokString:
		return &literal{pos: tok.pos, val: tok.text}, nil
	case tokIdent:
		switch tok.text {
		case "true":
			return &literal{pos: tok.pos, val: true}, nil
		case "false":
			return &literal{pos: tok.pos, val: false}, nil
		case "null":
			return &literal{pos: tok.pos, val: nil}, nil
		}
		return &identifier{pos: tok.pos, name: tok.text}, nil
	case tokPunct:
		switch tok.text {
		case "(":
			n, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err = p.expect(")"); err != nil {
				return nil, err
			}
			return n, nil
		case "[":
			if err := p.enter(tok.pos); err != nil {
				return nil, err
			}
			defer p.leave()
			elems, err := p.parseList("]")
			if err != nil {
				return nil, err
			}
			return &arrayLiteral{pos: tok.pos, elems: elems}, nil
		}
	}
	return nil, newError(SyntaxError, tok.pos, "unexpected %s", describe(tok))
}

// parseList parses comma separated expressions up to and including the closing punctuator.
func (p *parser) parseList(closing string) ([]node, error) {
	var items []node
	if p.isPunct(closing) {
		p.next()
		return items, nil
	}
	for {
		item, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.isPunct(",") {
			p.next()
			continue
		}
		if _, err = p.expect(closing); err != nil {
			return nil, err
		}
		return items, nil
	}
}

func describe(tok token) string {
	switch tok.kind {
	case tokEOF:
		return "end of expression"
	case tokString:
		return "string literal"
	case tokNumber:
		return "number " + tok.text
	default:
		return "'" + tok.text + "'"
	}
}
