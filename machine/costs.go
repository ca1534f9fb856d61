package machine

// CostModel prices a single instruction. Values and predicates never depend
// on it; it only bounds how long a run may go on.
type CostModel interface {
	Cost(op OpCode) uint64
}

const (
	GasZeroStep    uint64 = 0
	GasJumpDest    uint64 = 1
	GasQuickStep   uint64 = 2
	GasFastestStep uint64 = 3
	GasFastStep    uint64 = 5
	GasMidStep     uint64 = 8
	GasSlowStep    uint64 = 10
)

// CostTable is a flat price per opcode byte.
type CostTable [256]uint64

func (t *CostTable) Cost(op OpCode) uint64 {
	return t[op]
}

// DefaultCosts prices the core instructions with the classic step tiers.
var DefaultCosts = newDefaultCosts()

func newDefaultCosts() *CostTable {
	t := new(CostTable)
	for _, op := range []OpCode{ADD, SUB, LT, GT, EQ, ISZERO, AND, OR, XOR, NOT, CALLDATALOAD} {
		t[op] = GasFastestStep
	}
	for _, op := range []OpCode{MUL, DIV, MOD} {
		t[op] = GasFastStep
	}
	for _, op := range []OpCode{CALLDATASIZE, POP, PC} {
		t[op] = GasQuickStep
	}
	for op := PUSH1; op <= PUSH32; op++ {
		t[op] = GasFastestStep
	}
	for i := 0; i < 16; i++ {
		t[DUP1+OpCode(i)] = GasFastestStep
		t[SWAP1+OpCode(i)] = GasFastestStep
	}
	t[JUMP] = GasMidStep
	t[JUMPI] = GasSlowStep
	t[JUMPDEST] = GasJumpDest
	return t
}
