package calc

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Grammar, loosest binding first:
//
//	expr    = term { ("+" | "-") term }
//	term    = factor { ("*" | "/" | "%" | "//") factor }
//	factor  = ("+" | "-") factor | power
//	power   = primary [ "**" factor ]
//	primary = number | "(" expr ")"
//
// "**" takes a factor on its right, which makes it right-associative and
// lets the exponent carry its own sign: 2**-1, -2**2 == -(2**2).
type parser struct {
	expr   string
	tokens []Token
	pos    int
}

// Parse checks the character whitelist and builds the syntax tree for expr.
func Parse(expr string) (Node, error) {
	if err := checkAllowed(expr); err != nil {
		return nil, err
	}
	return parse(expr)
}

func parse(expr string) (Node, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, newError(expr, "empty expression")
	}

	tokens, err := lex(expr)
	if err != nil {
		return nil, err
	}

	p := &parser{expr: expr, tokens: tokens}
	n, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Kind != TokenEOF {
		return nil, p.unexpected(tok)
	}
	return n, nil
}

func (p *parser) peek() Token {
	return p.tokens[p.pos]
}

func (p *parser) next() Token {
	tok := p.tokens[p.pos]
	if tok.Kind != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) unexpected(tok Token) error {
	if tok.Kind == TokenEOF {
		return newError(p.expr, "invalid syntax: unexpected end of expression")
	}
	return newError(p.expr, "invalid syntax: unexpected %q at position %d", tok.Text, tok.Pos)
}

func (p *parser) parseExpr() (Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		var op Operator
		switch p.peek().Kind {
		case TokenPlus:
			op = OpAdd
		case TokenMinus:
			op = OpSub
		default:
			return left, nil
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseTerm() (Node, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for {
		var op Operator
		switch p.peek().Kind {
		case TokenStar:
			op = OpMul
		case TokenSlash:
			op = OpDiv
		case TokenPercent:
			op = OpMod
		case TokenFloorDiv:
			op = OpFloorDiv
		default:
			return left, nil
		}
		p.next()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseFactor() (Node, error) {
	var op Operator
	switch p.peek().Kind {
	case TokenPlus:
		op = OpPos
	case TokenMinus:
		op = OpNeg
	default:
		return p.parsePower()
	}
	p.next()
	operand, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	return &UnaryOp{Op: op, Operand: operand}, nil
}

func (p *parser) parsePower() (Node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.peek().Kind != TokenPower {
		return base, nil
	}
	p.next()
	exp, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	return &BinaryOp{Op: OpPow, Left: base, Right: exp}, nil
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.next()
	switch tok.Kind {
	case TokenNumber:
		v, err := parseLiteral(tok.Text)
		if err != nil {
			return nil, wrapError(p.expr, err, "invalid number %q at position %d", tok.Text, tok.Pos)
		}
		return &Literal{Value: v}, nil
	case TokenLParen:
		if p.peek().Kind == TokenRParen {
			return nil, newError(p.expr, "invalid syntax: empty parentheses at position %d", tok.Pos)
		}
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.Kind != TokenRParen {
			if closing.Kind == TokenEOF {
				return nil, newError(p.expr, "invalid syntax: '(' at position %d was never closed", tok.Pos)
			}
			return nil, p.unexpected(closing)
		}
		return inner, nil
	default:
		return nil, p.unexpected(tok)
	}
}

func parseLiteral(text string) (Number, error) {
	if !strings.Contains(text, ".") {
		i, ok := new(big.Int).SetString(text, 10)
		if !ok {
			return Number{}, strconv.ErrSyntax
		}
		return Number{kind: KindInt, i: decimal.NewFromBigInt(i, 0)}, nil
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Number{}, err
	}
	if math.IsInf(f, 0) {
		return Number{}, strconv.ErrRange
	}
	return Float(f), nil
}
