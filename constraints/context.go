// Package constraints translates path predicates into Z3 bit-vector
// formulas and extracts calldata witnesses from models.
package constraints

import (
	"fmt"

	"github.com/aclements/go-z3/z3"
	"github.com/pkg/errors"

	"slava0135/symevm/sym"
)

const (
	wordBits = sym.WordSize * 8
	byteBits = 8
)

// ErrMalformedExpr is returned for expression nodes the encoder does not know.
var ErrMalformedExpr = errors.New("malformed expression")

// EncodingContext owns one Z3 context together with the calldata byte
// variables created in it.
type EncodingContext struct {
	*z3.Context

	calldataLen int

	wordSort z3.Sort
	byteSort z3.Sort
	zero     z3.BV
	one      z3.BV
	zeroByte z3.BV

	inputs map[int]z3.BV
	// bounds collects padding constraints for new variables until drained.
	bounds []z3.Bool
}

func NewEncodingContext(calldataLen int) *EncodingContext {
	ctx := &EncodingContext{
		Context:     z3.NewContext(nil),
		calldataLen: calldataLen,
		inputs:      make(map[int]z3.BV),
	}
	ctx.wordSort = ctx.BVSort(wordBits)
	ctx.byteSort = ctx.BVSort(byteBits)
	ctx.zero = ctx.FromInt(0, ctx.wordSort).(z3.BV)
	ctx.one = ctx.FromInt(1, ctx.wordSort).(z3.BV)
	ctx.zeroByte = ctx.FromInt(0, ctx.byteSort).(z3.BV)
	return ctx
}

// Input returns the 8-bit variable of calldata byte offset. Bytes past the
// declared calldata length are pinned to zero.
func (ctx *EncodingContext) Input(offset int) z3.BV {
	if v, ok := ctx.inputs[offset]; ok {
		return v
	}
	v := ctx.BVConst(fmt.Sprintf("calldata[%d]", offset), byteBits)
	ctx.inputs[offset] = v
	if offset >= ctx.calldataLen {
		ctx.bounds = append(ctx.bounds, v.Eq(ctx.zeroByte))
	}
	return v
}

// DrainBounds returns the padding constraints created since the last call.
func (ctx *EncodingContext) DrainBounds() []z3.Bool {
	bounds := ctx.bounds
	ctx.bounds = nil
	return bounds
}

func (ctx *EncodingContext) Encode(e sym.Expr) (z3.BV, error) {
	var zero z3.BV
	switch e := e.(type) {
	case sym.Base:
		return ctx.FromBigInt(e.Word.ToBig(), ctx.wordSort).(z3.BV), nil
	case sym.Input:
		if e.Size < 1 || e.Size > sym.WordSize || e.Offset < 0 {
			return zero, errors.Wrapf(ErrMalformedExpr, "input %d:%d", e.Offset, e.Size)
		}
		v := ctx.Input(e.Offset)
		for i := 1; i < e.Size; i++ {
			v = v.Concat(ctx.Input(e.Offset + i))
		}
		if e.Size < sym.WordSize {
			v = v.ZeroExtend((sym.WordSize - e.Size) * byteBits)
		}
		return v, nil
	case sym.UnOp:
		x, err := ctx.Encode(e.X)
		if err != nil {
			return zero, err
		}
		switch e.Op {
		case sym.Not:
			return x.Not(), nil
		case sym.IsZero:
			return ctx.fromBool(x.Eq(ctx.zero)), nil
		}
		return zero, errors.Wrapf(ErrMalformedExpr, "unary operation '%s'", e.Op)
	case sym.BinOp:
		x, err := ctx.Encode(e.X)
		if err != nil {
			return zero, err
		}
		y, err := ctx.Encode(e.Y)
		if err != nil {
			return zero, err
		}
		return ctx.binary(e.Op, x, y)
	case nil:
		return zero, errors.Wrap(ErrMalformedExpr, "nil expression")
	default:
		return zero, errors.Wrapf(ErrMalformedExpr, "node %T", e)
	}
}

func (ctx *EncodingContext) binary(op sym.BinaryOp, x, y z3.BV) (z3.BV, error) {
	switch op {
	case sym.Add:
		return x.Add(y), nil
	case sym.Sub:
		return x.Sub(y), nil
	case sym.Mul:
		return x.Mul(y), nil
	case sym.Div:
		// bvudiv by zero is all ones in Z3, the machine gives zero
		return y.Eq(ctx.zero).IfThenElse(ctx.zero, x.UDiv(y)).(z3.BV), nil
	case sym.Mod:
		return y.Eq(ctx.zero).IfThenElse(ctx.zero, x.URem(y)).(z3.BV), nil
	case sym.And:
		return x.And(y), nil
	case sym.Or:
		return x.Or(y), nil
	case sym.Xor:
		return x.Xor(y), nil
	case sym.Lt:
		return ctx.fromBool(x.ULT(y)), nil
	case sym.Gt:
		return ctx.fromBool(x.UGT(y)), nil
	case sym.Eq:
		return ctx.fromBool(x.Eq(y)), nil
	}
	var zero z3.BV
	return zero, errors.Wrapf(ErrMalformedExpr, "binary operation '%s'", op)
}

func (ctx *EncodingContext) fromBool(b z3.Bool) z3.BV {
	return b.IfThenElse(ctx.one, ctx.zero).(z3.BV)
}

// Constraint encodes a predicate as a boolean formula.
func (ctx *EncodingContext) Constraint(p sym.Pred) (z3.Bool, error) {
	var zero z3.Bool
	switch p := p.(type) {
	case sym.EqZero:
		x, err := ctx.Encode(p.X)
		if err != nil {
			return zero, err
		}
		return x.Eq(ctx.zero), nil
	case sym.NotEqZero:
		x, err := ctx.Encode(p.X)
		if err != nil {
			return zero, err
		}
		return x.NE(ctx.zero), nil
	case nil:
		return zero, errors.Wrap(ErrMalformedExpr, "nil predicate")
	default:
		return zero, errors.Wrapf(ErrMalformedExpr, "predicate %T", p)
	}
}
