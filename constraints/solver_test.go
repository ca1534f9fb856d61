package constraints

import (
	"context"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slava0135/symevm/machine"
	"slava0135/symevm/sym"
)

func solve(t *testing.T, preds []sym.Pred, n int) ([]byte, bool) {
	t.Helper()
	witness, sat, err := Solve(preds, n)
	require.NoError(t, err)
	if sat {
		require.Len(t, witness, n)
		assert.True(t, sym.AllHold(preds, witness), "witness %x", witness)
	}
	return witness, sat
}

func TestEqZeroInput(t *testing.T) {
	witness, sat := solve(t, []sym.Pred{sym.EqZero{X: sym.InputByte(0)}}, 1)
	require.True(t, sat)
	assert.Equal(t, []byte{0}, witness)
}

func TestNotEqZeroInput(t *testing.T) {
	witness, sat := solve(t, []sym.Pred{sym.NotEqZero{X: sym.InputByte(0)}}, 1)
	require.True(t, sat)
	assert.NotEqual(t, byte(0), witness[0])
}

func TestEmptyPredicates(t *testing.T) {
	witness, sat := solve(t, nil, 4)
	require.True(t, sat)
	assert.Len(t, witness, 4)
}

func TestContradiction(t *testing.T) {
	x := sym.InputByte(3)
	witness, sat := solve(t, []sym.Pred{sym.EqZero{X: x}, sym.NotEqZero{X: x}}, 4)
	assert.False(t, sat)
	assert.Nil(t, witness)
}

func TestPaddingIsZero(t *testing.T) {
	// calldata[5] lies past a 4 byte input and reads as zero.
	_, sat := solve(t, []sym.Pred{sym.NotEqZero{X: sym.InputByte(5)}}, 4)
	assert.False(t, sat)

	_, sat = solve(t, []sym.Pred{sym.EqZero{X: sym.InputByte(5)}}, 4)
	assert.True(t, sat)
}

func TestWordInputShorterCalldata(t *testing.T) {
	want := new(uint256.Int).Lsh(uint256.NewInt(0x42), 248)
	pred := sym.EqZero{X: sym.BinOp{Op: sym.Sub, X: sym.InputWord(0), Y: sym.Base{Word: *want}}}
	witness, sat := solve(t, []sym.Pred{pred}, 1)
	require.True(t, sat)
	assert.Equal(t, []byte{0x42}, witness)
}

func TestMagicValue(t *testing.T) {
	magic := sym.NewBase(0xdeadbeef)
	pred := sym.NotEqZero{X: sym.BinOp{Op: sym.Eq, X: magic, Y: sym.InputWord(0)}}
	witness, sat := solve(t, []sym.Pred{pred}, 32)
	require.True(t, sat)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, witness[28:])
	assert.Equal(t, make([]byte, 28), witness[:28])
}

func TestDivisionByZero(t *testing.T) {
	div := sym.BinOp{Op: sym.Div, X: sym.NewBase(7), Y: sym.InputByte(0)}
	witness, sat := solve(t, []sym.Pred{sym.NotEqZero{X: div}}, 1)
	require.True(t, sat)
	assert.True(t, witness[0] >= 1 && witness[0] <= 7, "witness %x", witness)

	// x % 0 is 0, so a nonzero remainder rules out a zero divisor.
	mod := sym.BinOp{Op: sym.Mod, X: sym.InputByte(0), Y: sym.InputByte(1)}
	witness, sat = solve(t, []sym.Pred{sym.NotEqZero{X: mod}}, 2)
	require.True(t, sat)
	assert.NotEqual(t, byte(0), witness[1])

	zeroDiv := sym.BinOp{Op: sym.Div, X: sym.InputByte(0), Y: sym.NewBase(0)}
	_, sat = solve(t, []sym.Pred{sym.NotEqZero{X: zeroDiv}}, 1)
	assert.False(t, sat)
}

func TestComparisonsAndBitwise(t *testing.T) {
	x, y := sym.InputByte(0), sym.InputByte(1)
	preds := []sym.Pred{
		sym.NotEqZero{X: sym.BinOp{Op: sym.Lt, X: x, Y: y}},
		sym.NotEqZero{X: sym.BinOp{Op: sym.Gt, X: x, Y: sym.NewBase(0x10)}},
		sym.EqZero{X: sym.BinOp{Op: sym.And, X: y, Y: sym.NewBase(1)}},
		sym.NotEqZero{X: sym.BinOp{Op: sym.Xor, X: sym.BinOp{Op: sym.Or, X: x, Y: y}, Y: y}},
		sym.EqZero{X: sym.UnOp{Op: sym.IsZero, X: sym.BinOp{Op: sym.Mul, X: x, Y: sym.NewBase(3)}}},
		sym.NotEqZero{X: sym.UnOp{Op: sym.Not, X: x}},
	}
	witness, sat := solve(t, preds, 2)
	require.True(t, sat)
	assert.Less(t, witness[0], witness[1])
	assert.Greater(t, witness[0], byte(0x10))
	assert.Equal(t, byte(0), witness[1]&1)
}

func TestMalformed(t *testing.T) {
	cases := []sym.Pred{
		nil,
		sym.EqZero{},
		sym.NotEqZero{X: sym.BinOp{Op: sym.BinaryOp(99), X: sym.NewBase(1), Y: sym.NewBase(2)}},
		sym.EqZero{X: sym.UnOp{Op: sym.UnaryOp(99), X: sym.NewBase(1)}},
		sym.EqZero{X: sym.Input{Offset: 0, Size: 33}},
	}
	for _, p := range cases {
		_, _, err := Solve([]sym.Pred{p}, 1)
		assert.ErrorIs(t, err, ErrMalformedExpr, "%v", p)
	}
}

func TestCheckWithKeepsConjunction(t *testing.T) {
	x := sym.InputByte(0)
	s, err := NewSolver(1)
	require.NoError(t, err)
	require.NoError(t, s.Assert(sym.NotEqZero{X: x}))

	_, sat, err := s.CheckWith(context.Background(), sym.EqZero{X: x})
	require.NoError(t, err)
	assert.False(t, sat)

	witness, sat, err := s.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, sat)
	assert.NotEqual(t, byte(0), witness[0])

	// A variable first seen under CheckWith keeps its padding constraint.
	_, sat, err = s.CheckWith(context.Background(), sym.EqZero{X: sym.InputByte(9)})
	require.NoError(t, err)
	assert.True(t, sat)
	_, sat, err = s.CheckWith(context.Background(), sym.NotEqZero{X: sym.InputByte(9)})
	require.NoError(t, err)
	assert.False(t, sat)
}

func TestCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := SolveContext(ctx, []sym.Pred{sym.EqZero{X: sym.InputByte(0)}}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

// Factoring a 123-bit semiprime keeps Z3 busy far longer than the deadline,
// so the check is interrupted while running.
func TestDeadlineInterruptsCheck(t *testing.T) {
	x, y := sym.NewInput(0, 8), sym.NewInput(8, 8)
	one := sym.NewBase(1)
	product := sym.Base{Word: *uint256.MustFromHex("0x7fffffffffffff8a000000000000039")}
	preds := []sym.Pred{
		sym.NotEqZero{X: sym.BinOp{Op: sym.Eq, X: sym.BinOp{Op: sym.Mul, X: x, Y: y}, Y: product}},
		sym.NotEqZero{X: sym.BinOp{Op: sym.Gt, X: x, Y: one}},
		sym.NotEqZero{X: sym.BinOp{Op: sym.Gt, X: y, Y: one}},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, sat, err := SolveContext(ctx, preds, 16)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, sat)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestNegativeCalldataLength(t *testing.T) {
	_, err := NewSolver(-1)
	assert.ErrorIs(t, err, ErrCalldataLength)

	_, _, err = Solve(nil, -1)
	assert.ErrorIs(t, err, ErrCalldataLength)
}

// The witness of a negated branch drives a fresh run down the other side.
func TestNegatedBranchFlipsRun(t *testing.T) {
	code := []byte{
		0x60, 0x01, 0x35, // PUSH1 1 CALLDATALOAD
		0x60, 0x00, 0x35, // PUSH1 0 CALLDATALOAD
		0x01,       // ADD
		0x60, 0x0b, // PUSH1 11
		0x57, // JUMPI
		0x00, // STOP
		0x5b, // JUMPDEST
	}
	m := machine.NewSymbolic(code, nil)
	require.NoError(t, m.Run())
	preds := m.TakePredicates()
	require.Len(t, preds, 1)

	witness, sat := solve(t, preds, 2)
	require.True(t, sat)
	assert.Equal(t, byte(0), witness[0]+witness[1])

	witness, sat = solve(t, []sym.Pred{preds[0].Negate()}, 2)
	require.True(t, sat)

	m = machine.NewSymbolic(code, witness)
	require.NoError(t, m.Run())
	assert.Equal(t, []sym.Pred{preds[0].Negate()}, m.Predicates())
	assert.Equal(t, uint64(12), m.PC())
}
