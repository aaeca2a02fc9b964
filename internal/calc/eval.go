// Package calc evaluates plain arithmetic expressions without executing code.
//
// Input is restricted to digits, the operators + - * / % ** and parentheses,
// '.' and spaces. Integers are exact at any size; '/' always yields a float.
package calc

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"advisor/pkg/errors"
)

// maxPowBits caps the size of exact integer powers.
const maxPowBits = 1 << 16

var (
	errDivisionByZero = errors.New("division by zero")
	errModuloByZero   = errors.New("integer modulo by zero")
	errZeroNegPower   = errors.New("0 cannot be raised to a negative power")
	errNonReal        = errors.New("negative number cannot be raised to a fractional power")
	errOverflow       = errors.New("numerical result out of range")
	errTooLarge       = errors.New("exponent too large")
)

type binaryFunc func(a, b Number) (Number, error)

type unaryFunc func(a Number) Number

// binaryOps is the operator table. Operators missing from it, such as "//",
// parse but fail evaluation.
var binaryOps = map[Operator]binaryFunc{
	OpAdd: add,
	OpSub: sub,
	OpMul: mul,
	OpDiv: div,
	OpMod: mod,
	OpPow: pow,
}

var unaryOps = map[Operator]unaryFunc{
	OpNeg: neg,
	OpPos: func(a Number) Number { return a },
}

// Evaluate computes the value of expr.
func Evaluate(expr string) (Number, error) {
	tree, err := Parse(expr)
	if err != nil {
		return Number{}, err
	}
	return eval(expr, tree)
}

// checkAllowed accepts only [0-9+\-*/().% ], and at least one of them.
func checkAllowed(expr string) error {
	if expr == "" {
		return newError(expr, "invalid characters in mathematical expression")
	}
	for i := 0; i < len(expr); i++ {
		switch c := expr[i]; {
		case c >= '0' && c <= '9':
		case c == '+', c == '-', c == '*', c == '/', c == '(', c == ')', c == '.', c == '%', c == ' ':
		default:
			return newError(expr, "invalid characters in mathematical expression")
		}
	}
	return nil
}

func eval(expr string, n Node) (Number, error) {
	switch n := n.(type) {
	case *Literal:
		return n.Value, nil
	case *UnaryOp:
		fn, ok := unaryOps[n.Op]
		if !ok {
			return Number{}, newError(expr, "unsupported operator: unary %s", n.Op)
		}
		v, err := eval(expr, n.Operand)
		if err != nil {
			return Number{}, err
		}
		return fn(v), nil
	case *BinaryOp:
		fn, ok := binaryOps[n.Op]
		if !ok {
			return Number{}, newError(expr, "unsupported operator: %s", n.Op)
		}
		left, err := eval(expr, n.Left)
		if err != nil {
			return Number{}, err
		}
		right, err := eval(expr, n.Right)
		if err != nil {
			return Number{}, err
		}
		v, err := fn(left, right)
		if err != nil {
			return Number{}, wrapError(expr, err, "%v", err)
		}
		return v, nil
	default:
		return Number{}, newError(expr, "unsupported node type: %T", n)
	}
}

func finite(f float64) (Number, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return Number{}, errOverflow
	}
	return Float(f), nil
}

func floats(a, b Number) (float64, float64, error) {
	x, y := a.Float64(), b.Float64()
	if math.IsInf(x, 0) || math.IsInf(y, 0) {
		return 0, 0, errOverflow
	}
	return x, y, nil
}

func add(a, b Number) (Number, error) {
	if a.IsInt() && b.IsInt() {
		return Number{kind: KindInt, i: a.i.Add(b.i)}, nil
	}
	x, y, err := floats(a, b)
	if err != nil {
		return Number{}, err
	}
	return finite(x + y)
}

func sub(a, b Number) (Number, error) {
	if a.IsInt() && b.IsInt() {
		return Number{kind: KindInt, i: a.i.Sub(b.i)}, nil
	}
	x, y, err := floats(a, b)
	if err != nil {
		return Number{}, err
	}
	return finite(x - y)
}

func mul(a, b Number) (Number, error) {
	if a.IsInt() && b.IsInt() {
		return Number{kind: KindInt, i: a.i.Mul(b.i)}, nil
	}
	x, y, err := floats(a, b)
	if err != nil {
		return Number{}, err
	}
	return finite(x * y)
}

func div(a, b Number) (Number, error) {
	if b.sign() == 0 {
		return Number{}, errDivisionByZero
	}
	if a.IsInt() && b.IsInt() {
		// correctly rounded quotient even when the operands exceed float64 range
		q, _ := new(big.Rat).SetFrac(a.bigInt(), b.bigInt()).Float64()
		return finite(q)
	}
	x, y, err := floats(a, b)
	if err != nil {
		return Number{}, err
	}
	return finite(x / y)
}

// mod is floored: the result takes the sign of the divisor.
func mod(a, b Number) (Number, error) {
	if b.sign() == 0 {
		if a.IsInt() && b.IsInt() {
			return Number{}, errModuloByZero
		}
		return Number{}, errors.New("float modulo by zero")
	}
	if a.IsInt() && b.IsInt() {
		x, y := a.bigInt(), b.bigInt()
		r := new(big.Int).Rem(x, y)
		if r.Sign() != 0 && r.Sign() != y.Sign() {
			r.Add(r, y)
		}
		return Number{kind: KindInt, i: decimal.NewFromBigInt(r, 0)}, nil
	}
	x, y, err := floats(a, b)
	if err != nil {
		return Number{}, err
	}
	r := math.Mod(x, y)
	switch {
	case r == 0:
		// a zero remainder takes the divisor's sign
		r = math.Copysign(0, y)
	case (r < 0) != (y < 0):
		r += y
	}
	return finite(r)
}

func pow(a, b Number) (Number, error) {
	if a.IsInt() && b.IsInt() {
		if b.sign() >= 0 {
			return intPow(a, b)
		}
		if a.sign() == 0 {
			return Number{}, errZeroNegPower
		}
	}

	x, y, err := floats(a, b)
	if err != nil {
		return Number{}, err
	}
	if x == 0 && y < 0 {
		return Number{}, errZeroNegPower
	}
	if x < 0 && y != math.Trunc(y) {
		return Number{}, errNonReal
	}
	return finite(math.Pow(x, y))
}

func intPow(a, b Number) (Number, error) {
	base, exp := a.bigInt(), b.bigInt()

	// 0, 1 and -1 stay small for any exponent
	if base.CmpAbs(big.NewInt(1)) <= 0 {
		if base.Sign() < 0 && exp.Bit(0) == 0 {
			return Int(1), nil
		}
		if exp.Sign() == 0 {
			return Int(1), nil
		}
		return a, nil
	}

	if !exp.IsInt64() || exp.Int64() > maxPowBits || exp.Int64()*int64(base.BitLen()-1) > maxPowBits {
		return Number{}, errTooLarge
	}
	return Number{kind: KindInt, i: decimal.NewFromBigInt(new(big.Int).Exp(base, exp, nil), 0)}, nil
}

func neg(a Number) Number {
	if a.IsInt() {
		return Number{kind: KindInt, i: a.i.Neg()}
	}
	return Float(-a.f)
}
