package calc

import "fmt"

// Operator names an arithmetic operator as written in the source.
type Operator string

const (
	OpAdd      Operator = "+"
	OpSub      Operator = "-"
	OpMul      Operator = "*"
	OpDiv      Operator = "/"
	OpMod      Operator = "%"
	OpPow      Operator = "**"
	OpFloorDiv Operator = "//"
	OpNeg      Operator = "-"
	OpPos      Operator = "+"
)

// Node is the closed set of syntax tree nodes: *Literal, *BinaryOp and *UnaryOp.
type Node interface {
	node() // marker method
	String() string
}

// Literal is a numeric constant.
type Literal struct {
	Value Number
}

func (n *Literal) node() {}
func (n *Literal) String() string {
	return n.Value.String()
}

// BinaryOp applies Op to Left and Right.
type BinaryOp struct {
	Op    Operator
	Left  Node
	Right Node
}

func (n *BinaryOp) node() {}
func (n *BinaryOp) String() string {
	return fmt.Sprintf("(%s %s %s)", n.Left, n.Op, n.Right)
}

// UnaryOp applies a sign to Operand.
type UnaryOp struct {
	Op      Operator
	Operand Node
}

func (n *UnaryOp) node() {}
func (n *UnaryOp) String() string {
	return fmt.Sprintf("(%s%s)", n.Op, n.Operand)
}
