package calc

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind tells integers from floats.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
)

func (k Kind) String() string {
	if k == KindInt {
		return "int"
	}
	return "float"
}

// Number is the result of an evaluation: an exact integer of any size or a float64.
// The zero value is the integer 0.
type Number struct {
	kind Kind
	i    decimal.Decimal // exponent is always 0 for KindInt
	f    float64
}

// Int returns an integer Number.
func Int(v int64) Number {
	return Number{kind: KindInt, i: decimal.NewFromInt(v)}
}

// BigInt returns an integer Number holding a copy of v.
func BigInt(v *big.Int) Number {
	return Number{kind: KindInt, i: decimal.NewFromBigInt(new(big.Int).Set(v), 0)}
}

// Float returns a float Number.
func Float(v float64) Number {
	return Number{kind: KindFloat, f: v}
}

func (n Number) Kind() Kind { return n.kind }

func (n Number) IsInt() bool { return n.kind == KindInt }

// Float64 converts the value to float64. Huge integers round to ±Inf.
func (n Number) Float64() float64 {
	if n.kind == KindFloat {
		return n.f
	}
	return n.i.InexactFloat64()
}

// Int64 returns the integer value when it fits in an int64.
func (n Number) Int64() (int64, bool) {
	if n.kind != KindInt {
		return 0, false
	}
	b := n.i.BigInt()
	if !b.IsInt64() {
		return 0, false
	}
	return b.Int64(), true
}

// Decimal exposes the integer value. It is the zero Decimal for floats.
func (n Number) Decimal() decimal.Decimal {
	return n.i
}

func (n Number) bigInt() *big.Int {
	return n.i.BigInt()
}

func (n Number) sign() int {
	if n.kind == KindInt {
		return n.i.Sign()
	}
	switch {
	case n.f > 0:
		return 1
	case n.f < 0:
		return -1
	}
	return 0
}

// Equal reports whether both numbers hold the same kind and value.
func (n Number) Equal(o Number) bool {
	if n.kind != o.kind {
		return false
	}
	if n.kind == KindInt {
		return n.i.Equal(o.i)
	}
	return n.f == o.f
}

// String renders integers as plain digits and floats in their shortest
// round-trip form, always showing a fraction or an exponent: 25.0, 0.5, 1e+16.
func (n Number) String() string {
	if n.kind == KindInt {
		return n.i.String()
	}
	return formatFloat(n.f)
}

// MarshalJSON emits the same text as String as a JSON number.
func (n Number) MarshalJSON() ([]byte, error) {
	if n.kind == KindFloat && (math.IsInf(n.f, 0) || math.IsNaN(n.f)) {
		return nil, &EvaluationError{Message: "non-finite result cannot be encoded"}
	}
	return []byte(n.String()), nil
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}

	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e16 || abs < 1e-4) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
