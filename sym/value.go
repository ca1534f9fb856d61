package sym

import "github.com/holiman/uint256"

// Value is the content of a single stack slot: a concrete word or an
// expression over calldata that is not reducible to a word yet.
type Value struct {
	word uint256.Int
	expr Expr
}

func Concrete(w *uint256.Int) Value {
	return Value{word: *w}
}

func ConcreteUint64(x uint64) Value {
	return Value{word: *uint256.NewInt(x)}
}

func Symbolic(e Expr) Value {
	if e == nil {
		panic("sym: nil expression")
	}
	return Value{expr: e}
}

func (v Value) IsConcrete() bool {
	return v.expr == nil
}

// Word returns the concrete word, ok is false for symbolic values.
func (v Value) Word() (w uint256.Int, ok bool) {
	return v.word, v.expr == nil
}

// Expr returns the expression of a symbolic value. Concrete values become a
// Base leaf.
func (v Value) Expr() Expr {
	if v.expr == nil {
		return Base{Word: v.word}
	}
	return v.expr
}

// Eval resolves the value under concrete calldata.
func (v Value) Eval(calldata []byte) uint256.Int {
	if v.expr == nil {
		return v.word
	}
	return v.expr.Eval(calldata)
}

func (v Value) String() string {
	if v.expr == nil {
		return v.word.Hex()
	}
	return v.expr.String()
}

// Fold1 applies a unary operation: concrete operand is computed right away,
// symbolic operand is wrapped into a UnOp node.
func Fold1(op UnaryOp, x Value) Value {
	if x.IsConcrete() {
		var z uint256.Int
		op.Apply(&z, &x.word)
		return Value{word: z}
	}
	return Value{expr: UnOp{Op: op, X: x.expr}}
}

// Fold2 applies a binary operation with the same two cases as Fold1. A
// concrete operand next to a symbolic one ends up as a Base leaf.
func Fold2(op BinaryOp, x, y Value) Value {
	if x.IsConcrete() && y.IsConcrete() {
		var z uint256.Int
		op.Apply(&z, &x.word, &y.word)
		return Value{word: z}
	}
	return Value{expr: BinOp{Op: op, X: x.Expr(), Y: y.Expr()}}
}
