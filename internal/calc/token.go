package calc

import (
	"fmt"
	"strings"
)

// TokenKind identifies a lexical token.
type TokenKind int

const (
	TokenEOF      TokenKind = iota
	TokenNumber             // 12, 1.5, .5, 5.
	TokenPlus               // +
	TokenMinus              // -
	TokenStar               // *
	TokenSlash              // /
	TokenPercent            // %
	TokenPower              // **
	TokenFloorDiv           // //
	TokenLParen             // (
	TokenRParen             // )
)

var tokenNames = map[TokenKind]string{
	TokenEOF:      "end of expression",
	TokenNumber:   "number",
	TokenPlus:     "+",
	TokenMinus:    "-",
	TokenStar:     "*",
	TokenSlash:    "/",
	TokenPercent:  "%",
	TokenPower:    "**",
	TokenFloorDiv: "//",
	TokenLParen:   "(",
	TokenRParen:   ")",
}

func (k TokenKind) String() string {
	if s, ok := tokenNames[k]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(k))
}

// Token is a single lexeme with its byte offset in the input.
type Token struct {
	Kind TokenKind
	Text string
	Pos  int
}

// lex splits a whitelisted expression into tokens. The whitelist guarantees
// that every byte is ASCII, so offsets are byte offsets.
func lex(expr string) ([]Token, error) {
	var tokens []Token
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == ' ':
			i++
		case isDigit(c) || c == '.':
			start := i
			for i < len(expr) && (isDigit(expr[i]) || expr[i] == '.') {
				i++
			}
			text := expr[start:i]
			if err := checkNumber(text); err != nil {
				return nil, wrapError(expr, err, "invalid syntax at position %d: %v", start, err)
			}
			tokens = append(tokens, Token{Kind: TokenNumber, Text: text, Pos: start})
		case c == '*' || c == '/':
			kind := TokenStar
			if c == '/' {
				kind = TokenSlash
			}
			if i+1 < len(expr) && expr[i+1] == c {
				if c == '*' {
					kind = TokenPower
				} else {
					kind = TokenFloorDiv
				}
				tokens = append(tokens, Token{Kind: kind, Text: expr[i : i+2], Pos: i})
				i += 2
				continue
			}
			tokens = append(tokens, Token{Kind: kind, Text: string(c), Pos: i})
			i++
		case c == '+':
			tokens = append(tokens, Token{Kind: TokenPlus, Text: "+", Pos: i})
			i++
		case c == '-':
			tokens = append(tokens, Token{Kind: TokenMinus, Text: "-", Pos: i})
			i++
		case c == '%':
			tokens = append(tokens, Token{Kind: TokenPercent, Text: "%", Pos: i})
			i++
		case c == '(':
			tokens = append(tokens, Token{Kind: TokenLParen, Text: "(", Pos: i})
			i++
		case c == ')':
			tokens = append(tokens, Token{Kind: TokenRParen, Text: ")", Pos: i})
			i++
		default:
			return nil, newError(expr, "invalid character %q at position %d", c, i)
		}
	}
	tokens = append(tokens, Token{Kind: TokenEOF, Pos: len(expr)})
	return tokens, nil
}

// checkNumber validates a run of digits and dots as a numeric literal.
func checkNumber(text string) error {
	if strings.Count(text, ".") > 1 {
		return fmt.Errorf("malformed number %q", text)
	}
	if strings.Trim(text, ".") == "" {
		return fmt.Errorf("malformed number %q", text)
	}
	if !strings.Contains(text, ".") && len(text) > 1 && text[0] == '0' && strings.Trim(text, "0") != "" {
		return fmt.Errorf("leading zeros in integer literal %q are not permitted", text)
	}
	return nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
