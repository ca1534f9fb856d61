package machine

import "errors"

var (
	ErrStackUnderflow    = errors.New("stack underflow")
	ErrStackOverflow     = errors.New("stack overflow")
	ErrInvalidOpcode     = errors.New("invalid opcode")
	ErrInvalidJump       = errors.New("invalid jump destination")
	ErrSymbolicOperand   = errors.New("symbolic operand")
	ErrSymbolicValue     = errors.New("symbolic value on concrete stack")
	ErrOutOfGas          = errors.New("out of gas")
	ErrExecutionReverted = errors.New("execution reverted")

	// errStopToken ends a run without an error.
	errStopToken = errors.New("stop token")
)
