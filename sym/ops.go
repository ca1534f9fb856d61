package sym

import (
	"fmt"

	"github.com/holiman/uint256"
)

type BinaryOp uint8

const (
	Add BinaryOp = iota
	Sub
	Mul
	Div
	Mod
	And
	Or
	Xor
	Lt
	Gt
	Eq
)

var binaryOpSymbols = [...]string{
	Add: "+",
	Sub: "-",
	Mul: "*",
	Div: "/",
	Mod: "%",
	And: "&",
	Or:  "|",
	Xor: "^",
	Lt:  "<",
	Gt:  ">",
	Eq:  "==",
}

func (op BinaryOp) String() string {
	if int(op) < len(binaryOpSymbols) {
		return binaryOpSymbols[op]
	}
	return fmt.Sprintf("binop(%d)", uint8(op))
}

// IsComparison reports whether the result is a 0/1 word.
func (op BinaryOp) IsComparison() bool {
	return op == Lt || op == Gt || op == Eq
}

// Apply sets z to x op y with the word's native modulus; division and modulo
// by zero give zero.
func (op BinaryOp) Apply(z, x, y *uint256.Int) *uint256.Int {
	switch op {
	case Add:
		return z.Add(x, y)
	case Sub:
		return z.Sub(x, y)
	case Mul:
		return z.Mul(x, y)
	case Div:
		return z.Div(x, y)
	case Mod:
		return z.Mod(x, y)
	case And:
		return z.And(x, y)
	case Or:
		return z.Or(x, y)
	case Xor:
		return z.Xor(x, y)
	case Lt:
		return setBool(z, x.Lt(y))
	case Gt:
		return setBool(z, x.Gt(y))
	case Eq:
		return setBool(z, x.Eq(y))
	default:
		panic(fmt.Sprintf("unknown binary operation '%s'", op))
	}
}

type UnaryOp uint8

const (
	Not UnaryOp = iota
	IsZero
)

func (op UnaryOp) String() string {
	switch op {
	case Not:
		return "~"
	case IsZero:
		return "iszero"
	default:
		return fmt.Sprintf("unop(%d)", uint8(op))
	}
}

func (op UnaryOp) Apply(z, x *uint256.Int) *uint256.Int {
	switch op {
	case Not:
		return z.Not(x)
	case IsZero:
		return setBool(z, x.IsZero())
	default:
		panic(fmt.Sprintf("unknown unary operation '%s'", op))
	}
}

func setBool(z *uint256.Int, b bool) *uint256.Int {
	if b {
		return z.SetOne()
	}
	return z.Clear()
}
