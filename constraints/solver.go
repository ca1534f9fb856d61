package constraints

import (
	"context"

	"github.com/aclements/go-z3/z3"
	"github.com/pkg/errors"

	"slava0135/symevm/sym"
)

// ErrInconsistentModel means Z3 produced a model the predicates do not
// accept, or a byte variable without an 8-bit literal value.
var ErrInconsistentModel = errors.New("inconsistent model")

var ErrCalldataLength = errors.New("negative calldata length")

// Solver keeps a growing conjunction of predicates. Check and CheckWith may
// be called repeatedly; CheckWith leaves the conjunction unchanged.
type Solver struct {
	enc         *EncodingContext
	solver      *z3.Solver
	calldataLen int
	asserted    []sym.Pred
}

func NewSolver(calldataLen int) (*Solver, error) {
	if calldataLen < 0 {
		return nil, errors.Wrapf(ErrCalldataLength, "%d", calldataLen)
	}
	enc := NewEncodingContext(calldataLen)
	return &Solver{
		enc:         enc,
		solver:      z3.NewSolver(enc.Context),
		calldataLen: calldataLen,
	}, nil
}

// Assert adds p to the conjunction.
func (s *Solver) Assert(p sym.Pred) error {
	c, err := s.encode(p)
	if err != nil {
		return err
	}
	s.solver.Assert(c)
	s.asserted = append(s.asserted, p)
	return nil
}

// Check looks for calldata satisfying every asserted predicate.
func (s *Solver) Check(ctx context.Context) ([]byte, bool, error) {
	return s.check(ctx, s.asserted)
}

// CheckWith looks for calldata satisfying the asserted predicates and p.
func (s *Solver) CheckWith(ctx context.Context, p sym.Pred) ([]byte, bool, error) {
	c, err := s.encode(p)
	if err != nil {
		return nil, false, err
	}
	s.solver.Push()
	defer s.solver.Pop()
	s.solver.Assert(c)
	preds := append(s.asserted[:len(s.asserted):len(s.asserted)], p)
	return s.check(ctx, preds)
}

// encode also asserts the padding constraints of any new input variable.
// They hold on every path, so they go outside of any push scope.
func (s *Solver) encode(p sym.Pred) (z3.Bool, error) {
	c, err := s.enc.Constraint(p)
	if err != nil {
		return c, err
	}
	for _, b := range s.enc.DrainBounds() {
		s.solver.Assert(b)
	}
	return c, nil
}

type checkResult struct {
	sat bool
	err error
}

func (s *Solver) check(ctx context.Context, preds []sym.Pred) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	done := make(chan checkResult, 1)
	go func() {
		sat, err := s.solver.Check()
		done <- checkResult{sat, err}
	}()

	var res checkResult
	select {
	case res = <-done:
	case <-ctx.Done():
		s.enc.Interrupt()
		<-done
		return nil, false, ctx.Err()
	}
	if res.err != nil {
		return nil, false, errors.Wrap(res.err, "z3 check")
	}
	if !res.sat {
		return nil, false, nil
	}

	witness, err := s.witness(s.solver.Model())
	if err != nil {
		return nil, false, err
	}
	if !sym.AllHold(preds, witness) {
		return nil, false, errors.Wrapf(ErrInconsistentModel, "witness %x", witness)
	}
	return witness, true, nil
}

// witness reads every in-range byte variable from the model. Bytes no
// predicate mentions are zero.
func (s *Solver) witness(model *z3.Model) ([]byte, error) {
	calldata := make([]byte, s.calldataLen)
	for offset, v := range s.enc.inputs {
		if offset >= s.calldataLen {
			continue
		}
		val, ok := model.Eval(v, true).(z3.BV)
		if !ok {
			return nil, errors.Wrapf(ErrInconsistentModel, "calldata[%d] is not a bit-vector", offset)
		}
		b, isLiteral, ok := val.AsUint64()
		if !isLiteral || !ok || b > 0xff {
			return nil, errors.Wrapf(ErrInconsistentModel, "calldata[%d] = %s", offset, val)
		}
		calldata[offset] = byte(b)
	}
	return calldata, nil
}

// Solve checks the conjunction of preds over calldata of calldataLen bytes.
// Unsatisfiable predicates give sat == false and a nil error.
func Solve(preds []sym.Pred, calldataLen int) (witness []byte, sat bool, err error) {
	return SolveContext(context.Background(), preds, calldataLen)
}

// SolveContext is Solve that gives up when ctx is done.
func SolveContext(ctx context.Context, preds []sym.Pred, calldataLen int) ([]byte, bool, error) {
	s, err := NewSolver(calldataLen)
	if err != nil {
		return nil, false, err
	}
	for _, p := range preds {
		if err := s.Assert(p); err != nil {
			return nil, false, err
		}
	}
	return s.Check(ctx)
}
