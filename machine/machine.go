package machine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"slava0135/symevm/logs"
	"slava0135/symevm/sym"
)

// Host executes opcodes the core instruction table does not define.
type Host interface {
	Exec(op OpCode, m *Machine) error
}

type Config struct {
	// Symbolic makes CALLDATALOAD push calldata expressions instead of words.
	Symbolic bool
	// Calldata is the program input. In symbolic mode it is only the seed
	// used to pick a side of every symbolic branch.
	Calldata []byte

	// Costs enables gas accounting against GasLimit when set.
	Costs    CostModel
	GasLimit uint64

	Host   Host
	Logger *slog.Logger
	// Tracer is called with every instruction before it executes.
	Tracer func(pc uint64, op OpCode)
}

// Machine runs one program once. It is not reusable.
type Machine struct {
	code      []byte
	jumpdests bitvec
	pc        uint64
	stack     Stack
	cfg       Config
	gas       uint64

	predicates []sym.Pred
	branches   []uint64

	log *slog.Logger
}

func New(code []byte, stack Stack, cfg Config) *Machine {
	m := &Machine{
		code:      code,
		jumpdests: analyzeJumpdests(code),
		stack:     stack,
		cfg:       cfg,
		gas:       cfg.GasLimit,
		log:       cfg.Logger,
	}
	if m.log == nil {
		m.log = logs.Discard()
	}
	return m
}

// NewConcrete prepares a plain run over concrete calldata.
func NewConcrete(code, calldata []byte) *Machine {
	return New(code, NewConcreteStack(), Config{Calldata: calldata})
}

// NewSymbolic prepares a run where calldata is symbolic and seed decides
// symbolic branches.
func NewSymbolic(code, seed []byte) *Machine {
	return New(code, NewSymStack(), Config{Symbolic: true, Calldata: seed})
}

// Run steps until a terminal signal. Falling off the end of the code, STOP
// and RETURN end the run with a nil error; anything else is returned as is.
func (m *Machine) Run() error {
	debug := m.log.Enabled(context.Background(), slog.LevelDebug)
	for m.pc < uint64(len(m.code)) {
		op := OpCode(m.code[m.pc])
		if debug {
			m.log.Debug("step", "pc", m.pc, "op", op, "depth", m.stack.Len())
		}
		if m.cfg.Tracer != nil {
			m.cfg.Tracer(m.pc, op)
		}
		m.pc++
		if err := m.charge(op); err != nil {
			return err
		}
		err := m.exec(op)
		if errors.Is(err, errStopToken) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) exec(op OpCode) error {
	if fn := instructions[op]; fn != nil {
		return fn(m)
	}
	if m.cfg.Host != nil {
		return m.cfg.Host.Exec(op, m)
	}
	return fmt.Errorf("%w: %s", ErrInvalidOpcode, op)
}

func (m *Machine) charge(op OpCode) error {
	if m.cfg.Costs == nil {
		return nil
	}
	cost := m.cfg.Costs.Cost(op)
	if cost > m.gas {
		m.gas = 0
		return ErrOutOfGas
	}
	m.gas -= cost
	return nil
}

// record appends the predicate for a symbolic branch and the pc of the
// branching instruction. An iszero wrapper is folded into the polarity.
func (m *Machine) record(cond sym.Expr, taken bool) {
	for {
		u, ok := cond.(sym.UnOp)
		if !ok || u.Op != sym.IsZero {
			break
		}
		cond = u.X
		taken = !taken
	}
	var p sym.Pred
	if taken {
		p = sym.NotEqZero{X: cond}
	} else {
		p = sym.EqZero{X: cond}
	}
	m.predicates = append(m.predicates, p)
	m.branches = append(m.branches, m.pc-1)
	m.log.Debug("branch", "pc", m.pc-1, "predicate", p)
}

func (m *Machine) Stack() Stack {
	return m.stack
}

// PC is the position of the next instruction.
func (m *Machine) PC() uint64 {
	return m.pc
}

func (m *Machine) Calldata() []byte {
	return m.cfg.Calldata
}

func (m *Machine) Symbolic() bool {
	return m.cfg.Symbolic
}

func (m *Machine) GasUsed() uint64 {
	return m.cfg.GasLimit - m.gas
}

// Predicates returns the path predicates gathered so far.
func (m *Machine) Predicates() []sym.Pred {
	return m.predicates
}

// TakePredicates moves the predicates out of the machine.
func (m *Machine) TakePredicates() []sym.Pred {
	preds := m.predicates
	m.predicates = nil
	return preds
}

// Branches returns the pc of every symbolic branch in the order taken.
func (m *Machine) Branches() []uint64 {
	return m.branches
}
