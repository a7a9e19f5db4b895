package expr

// parser is a recursive-descent parser with one function per precedence
// level. Each level loops while the current token is one of its operators and
// builds a left-associative binary node.
type parser struct {
	tokens []token
	pos    int
}

func parse(input string) (node, error) {
	tokens, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.current().typ != tokenEOF {
		return nil, errorf("unexpected token %q after expression at position %d",
			p.current().text, p.current().pos)
	}
	return root, nil
}

func (p *parser) current() token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *parser) advance() token {
	tok := p.current()
	p.pos++
	return tok
}

func (p *parser) expectPunct(text string) error {
	tok := p.current()
	if tok.typ != tokenPunct || tok.text != text {
		return errorf("expected %q, got %q at position %d", text, tok.text, tok.pos)
	}
	p.pos++
	return nil
}

func (p *parser) atOperator(ops ...string) bool {
	tok := p.current()
	if tok.typ != tokenOperator {
		return false
	}
	for _, op := range ops {
		if tok.text == op {
			return true
		}
	}
	return false
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.atOperator("||") {
		op := p.advance().text
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binaryNode{left: left, op: op, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.atOperator("&&") {
		op := p.advance().text
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = binaryNode{left: left, op: op, right: right}
	}
	return left, nil
}

// parseComparison parses a single, non-chaining comparison.
func (p *parser) parseComparison() (node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if p.atOperator("==", "!=", "<", "<=", ">", ">=", "in", "not in") {
		op := p.advance().text
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return binaryNode{left: left, op: op, right: right}, nil
	}
	return left, nil
}

func (p *parser) parseAdditive() (node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.atOperator("+", "-") {
		op := p.advance().text
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = binaryNode{left: left, op: op, right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.atOperator("*", "/", "%") {
		op := p.advance().text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{left: left, op: op, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.atOperator("not") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: "not", operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.current()

	switch tok.typ {
	case tokenNumber:
		p.advance()
		return literalNode{value: tok.num}, nil

	case tokenString:
		p.advance()
		return literalNode{value: tok.text}, nil

	case tokenBool:
		p.advance()
		return literalNode{value: tok.boolean}, nil

	case tokenNull:
		p.advance()
		return literalNode{value: nil}, nil

	case tokenVariable:
		p.advance()
		return p.parseIndexChain(variableNode{name: tok.text})

	case tokenFunction:
		return p.parseCall()

	case tokenPunct:
		switch tok.text {
		case "(":
			p.advance()
			inner, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return inner, nil
		case "[":
			return p.parseArrayLiteral()
		}
	}

	return nil, errorf("unexpected token %s %q at position %d", tok.typ, tok.text, tok.pos)
}

// parseIndexChain parses chained bracket indexing after a primary,
// e.g. items[0][1].
func (p *parser) parseIndexChain(target node) (node, error) {
	for p.current().typ == tokenPunct && p.current().text == "[" {
		p.advance()
		index, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct("]"); err != nil {
			return nil, err
		}
		target = indexNode{target: target, index: index}
	}
	return target, nil
}

func (p *parser) parseArrayLiteral() (node, error) {
	if err := p.expectPunct("["); err != nil {
		return nil, err
	}
	var elements []node
	if !(p.current().typ == tokenPunct && p.current().text == "]") {
		for {
			element, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			elements = append(elements, element)
			if p.current().typ == tokenPunct && p.current().text == "," {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expectPunct("]"); err != nil {
		return nil, err
	}
	return arrayNode{elements: elements}, nil
}

func (p *parser) parseCall() (node, error) {
	name := p.advance().text
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var args []node
	if !(p.current().typ == tokenPunct && p.current().text == ")") {
		for {
			arg, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.current().typ == tokenPunct && p.current().text == "," {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return callNode{name: name, args: args}, nil
}
