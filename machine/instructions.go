package machine

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"

	"slava0135/symevm/sym"
)

type executionFunc func(m *Machine) error

var instructions [256]executionFunc

func init() {
	instructions[STOP] = opStop
	instructions[ADD] = binary(sym.Add)
	instructions[MUL] = binary(sym.Mul)
	instructions[SUB] = binary(sym.Sub)
	instructions[DIV] = binary(sym.Div)
	instructions[MOD] = binary(sym.Mod)
	instructions[LT] = binary(sym.Lt)
	instructions[GT] = binary(sym.Gt)
	instructions[EQ] = binary(sym.Eq)
	instructions[ISZERO] = unary(sym.IsZero)
	instructions[AND] = binary(sym.And)
	instructions[OR] = binary(sym.Or)
	instructions[XOR] = binary(sym.Xor)
	instructions[NOT] = unary(sym.Not)
	instructions[CALLDATALOAD] = opCalldataLoad
	instructions[CALLDATASIZE] = opCalldataSize
	instructions[POP] = opPop
	instructions[JUMP] = opJump
	instructions[JUMPI] = opJumpi
	instructions[PC] = opPc
	instructions[JUMPDEST] = opJumpdest
	instructions[RETURN] = opReturn
	instructions[REVERT] = opRevert
	instructions[INVALID] = opInvalid
	for i := 0; i < 32; i++ {
		instructions[PUSH1+OpCode(i)] = makePush(i + 1)
	}
	for i := 0; i < 16; i++ {
		instructions[DUP1+OpCode(i)] = makeDup(i + 1)
		instructions[SWAP1+OpCode(i)] = makeSwap(i + 1)
	}
}

// binary pops a then b and pushes a op b.
func binary(op sym.BinaryOp) executionFunc {
	return func(m *Machine) error {
		x, err := m.stack.Pop()
		if err != nil {
			return err
		}
		y, err := m.stack.Pop()
		if err != nil {
			return err
		}
		return m.stack.Push(sym.Fold2(op, x, y))
	}
}

func unary(op sym.UnaryOp) executionFunc {
	return func(m *Machine) error {
		x, err := m.stack.Pop()
		if err != nil {
			return err
		}
		return m.stack.Push(sym.Fold1(op, x))
	}
}

func opStop(m *Machine) error {
	return errStopToken
}

func opCalldataLoad(m *Machine) error {
	x, err := m.stack.Pop()
	if err != nil {
		return err
	}
	w, ok := x.Word()
	if !ok {
		return fmt.Errorf("%w: CALLDATALOAD offset %s", ErrSymbolicOperand, x)
	}
	if !w.IsUint64() || w.Uint64() > math.MaxInt32 {
		return m.stack.Push(sym.ConcreteUint64(0))
	}
	offset := int(w.Uint64())
	if m.cfg.Symbolic {
		return m.stack.Push(sym.Symbolic(sym.InputWord(offset)))
	}
	word := sym.ReadCalldata(m.cfg.Calldata, offset, sym.WordSize)
	return m.stack.Push(sym.Concrete(&word))
}

func opCalldataSize(m *Machine) error {
	return m.stack.Push(sym.ConcreteUint64(uint64(len(m.cfg.Calldata))))
}

func opPop(m *Machine) error {
	_, err := m.stack.Pop()
	return err
}

func opJump(m *Machine) error {
	dest, err := m.stack.Pop()
	if err != nil {
		return err
	}
	return m.jump(dest)
}

// opJumpi follows a concrete condition directly. A symbolic condition is
// decided by the seed calldata and the choice is recorded as a predicate.
func opJumpi(m *Machine) error {
	dest, err := m.stack.Pop()
	if err != nil {
		return err
	}
	cond, err := m.stack.Pop()
	if err != nil {
		return err
	}
	var taken bool
	if w, ok := cond.Word(); ok {
		taken = !w.IsZero()
	} else {
		w := cond.Eval(m.cfg.Calldata)
		taken = !w.IsZero()
		m.record(cond.Expr(), taken)
	}
	if !taken {
		return nil
	}
	return m.jump(dest)
}

func (m *Machine) jump(dest sym.Value) error {
	w, ok := dest.Word()
	if !ok {
		return fmt.Errorf("%w: jump destination %s", ErrSymbolicOperand, dest)
	}
	if !w.IsUint64() || !m.validJumpdest(w.Uint64()) {
		return fmt.Errorf("%w: %s", ErrInvalidJump, w.Hex())
	}
	m.pc = w.Uint64()
	return nil
}

func opPc(m *Machine) error {
	return m.stack.Push(sym.ConcreteUint64(m.pc - 1))
}

func opJumpdest(m *Machine) error {
	return nil
}

// opReturn takes the memory offset and size operands. Memory is not
// modelled, so the run just halts.
func opReturn(m *Machine) error {
	for i := 0; i < 2; i++ {
		if _, err := m.stack.Pop(); err != nil {
			return err
		}
	}
	return errStopToken
}

func opRevert(m *Machine) error {
	for i := 0; i < 2; i++ {
		if _, err := m.stack.Pop(); err != nil {
			return err
		}
	}
	return ErrExecutionReverted
}

func opInvalid(m *Machine) error {
	return fmt.Errorf("%w: %s", ErrInvalidOpcode, INVALID)
}

// makePush reads size immediate bytes. Code that ends early is padded with
// zeros on the right.
func makePush(size int) executionFunc {
	return func(m *Machine) error {
		var buf [sym.WordSize]byte
		start := m.pc
		for i := 0; i < size; i++ {
			if pos := start + uint64(i); pos < uint64(len(m.code)) {
				buf[sym.WordSize-size+i] = m.code[pos]
			}
		}
		m.pc += uint64(size)
		var w uint256.Int
		w.SetBytes32(buf[:])
		return m.stack.Push(sym.Concrete(&w))
	}
}

func makeDup(n int) executionFunc {
	return func(m *Machine) error {
		v, err := m.stack.Peek(n)
		if err != nil {
			return err
		}
		return m.stack.Push(v)
	}
}

func makeSwap(n int) executionFunc {
	return func(m *Machine) error {
		return m.stack.Swap(n)
	}
}
