package eval

import (
	"fmt"
	"strconv"
)

type node interface{}

type literalNode struct{ value any }
type identNode struct{ name string }
type memberNode struct {
	obj  node
	name string
}
type indexNode struct{ obj, idx node }
type callNode struct {
	fn   node
	args []node
}
type unaryNode struct {
	op      string
	operand node
}
type binaryNode struct {
	op          string
	left, right node
}
type ternaryNode struct{ cond, then, els node }
type lambdaNode struct {
	param string
	body  node
}
type objectNode struct {
	keys   []string
	values []node
}
type arrayNode struct{ elems []node }

type exprParser struct {
	tokens []token
	pos    int
}

func parseExpr(input string) (node, error) {
	tokens, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &exprParser{tokens: tokens}
	n, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if p.peek().typ != tokenEOF {
		return nil, fmt.Errorf("unexpected %q at position %d", p.peek().val, p.peek().pos)
	}
	return n, nil
}

func (p *exprParser) peek() token {
	return p.tokens[p.pos]
}

func (p *exprParser) advance() token {
	tok := p.tokens[p.pos]
	if tok.typ != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *exprParser) acceptPunct(val string) bool {
	if p.peek().typ == tokenPunct && p.peek().val == val {
		p.pos++
		return true
	}
	return false
}

func (p *exprParser) expectPunct(val string) error {
	if !p.acceptPunct(val) {
		return fmt.Errorf("expected %q, got %q at position %d", val, p.peek().val, p.peek().pos)
	}
	return nil
}

func (p *exprParser) ternary() (node, error) {
	cond, err := p.binary(0)
	if err != nil {
		return nil, err
	}
	if !p.acceptPunct("?") {
		return cond, nil
	}
	then, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(":"); err != nil {
		return nil, err
	}
	els, err := p.ternary()
	if err != nil {
		return nil, err
	}
	return &ternaryNode{cond: cond, then: then, els: els}, nil
}

var precedence = map[string]int{
	"||": 1,
	"&&": 2,
	"==": 3, "!=": 3,
	"<": 4, "<=": 4, ">": 4, ">=": 4,
	"+": 5, "-": 5,
	"*": 6, "/": 6, "%": 6,
}

func (p *exprParser) binary(minPrec int) (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.typ != tokenPunct {
			return left, nil
		}
		prec, ok := precedence[tok.val]
		if !ok || prec < minPrec {
			return left, nil
		}
		p.advance()
		right, err := p.binary(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: tok.val, left: left, right: right}
	}
}

func (p *exprParser) unary() (node, error) {
	if p.peek().typ == tokenPunct && (p.peek().val == "!" || p.peek().val == "-") {
		op := p.advance().val
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: op, operand: operand}, nil
	}
	return p.postfix()
}

func (p *exprParser) postfix() (node, error) {
	n, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.acceptPunct("."):
			tok := p.advance()
			if tok.typ != tokenIdent {
				return nil, fmt.Errorf("expected property name at position %d", tok.pos)
			}
			n = &memberNode{obj: n, name: tok.val}
		case p.acceptPunct("["):
			idx, err := p.ternary()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			n = &indexNode{obj: n, idx: idx}
		case p.acceptPunct("("):
			args, err := p.argList()
			if err != nil {
				return nil, err
			}
			n = &callNode{fn: n, args: args}
		default:
			return n, nil
		}
	}
}

func (p *exprParser) argList() ([]node, error) {
	var args []node
	if p.acceptPunct(")") {
		return args, nil
	}
	for {
		arg, err := p.ternary()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.acceptPunct(")") {
			return args, nil
		}
		if err := p.expectPunct(","); err != nil {
			return nil, err
		}
	}
}

func (p *exprParser) primary() (node, error) {
	tok := p.peek()
	switch tok.typ {
	case tokenNumber:
		p.advance()
		f, err := strconv.ParseFloat(tok.val, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at position %d", tok.val, tok.pos)
		}
		return &literalNode{value: f}, nil

	case tokenString:
		p.advance()
		return &literalNode{value: tok.val}, nil

	case tokenIdent:
		p.advance()
		switch tok.val {
		case "true":
			return &literalNode{value: true}, nil
		case "false":
			return &literalNode{value: false}, nil
		case "null":
			return &literalNode{value: nil}, nil
		}
		// single-parameter lambda: x => expr
		if p.acceptPunct("=>") {
			body, err := p.ternary()
			if err != nil {
				return nil, err
			}
			return &lambdaNode{param: tok.val, body: body}, nil
		}
		return &identNode{name: tok.val}, nil

	case tokenPunct:
		switch tok.val {
		case "(":
			p.advance()
			n, err := p.ternary()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return n, nil
		case "[":
			return p.arrayLiteral()
		case "{":
			return p.objectLiteral()
		}
	}
	return nil, fmt.Errorf("unexpected %q at position %d", tok.val, tok.pos)
}

func (p *exprParser) arrayLiteral() (node, error) {
	p.advance() // consume [
	arr := &arrayNode{}
	if p.acceptPunct("]") {
		return arr, nil
	}
	for {
		elem, err := p.ternary()
		if err != nil {
			return nil, err
		}
		arr.elems = append(arr.elems, elem)
		if p.acceptPunct("]") {
			return arr, nil
		}
		if err := p.expectPunct(","); err != nil {
			return nil, err
		}
	}
}

func (p *exprParser) objectLiteral() (node, error) {
	p.advance() // consume {
	obj := &objectNode{}
	if p.acceptPunct("}") {
		return obj, nil
	}
	for {
		tok := p.advance()
		if tok.typ != tokenIdent && tok.typ != tokenString {
			return nil, fmt.Errorf("expected object key at position %d", tok.pos)
		}
		if err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		value, err := p.ternary()
		if err != nil {
			return nil, err
		}
		obj.keys = append(obj.keys, tok.val)
		obj.values = append(obj.values, value)
		if p.acceptPunct("}") {
			return obj, nil
		}
		if err := p.expectPunct(","); err != nil {
			return nil, err
		}
	}
}
