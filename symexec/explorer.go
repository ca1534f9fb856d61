// Package symexec explores the paths of a program by running it on seeds
// and solving negated branch predicates for new ones.
package symexec

import (
	"context"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"slava0135/symevm/constraints"
	"slava0135/symevm/logs"
	"slava0135/symevm/machine"
	"slava0135/symevm/sym"
)

// State is a seed waiting in the queue. Predicates before bound were
// already negated by an earlier generation.
type State struct {
	calldata []byte
	bound    int
}

// Testcase is one explored path: the calldata that drives it and what the
// run did.
type Testcase struct {
	Calldata   []byte
	Predicates []sym.Pred
	Branches   []uint64
	Err        error
}

func (tc Testcase) PathKey() string {
	return sym.PathKey(tc.Predicates)
}

// Status is "ok" for a normal halt, otherwise the run error.
func (tc Testcase) Status() string {
	if tc.Err == nil {
		return "ok"
	}
	return tc.Err.Error()
}

type Explorer struct {
	Code         []byte
	CalldataSize int
	// Queue defaults to depth-first order.
	Queue Queue
	// MaxRuns bounds the number of machine runs, zero is unbounded.
	MaxRuns int
	// SolverTimeout bounds a single solver check, zero is unbounded.
	SolverTimeout time.Duration
	Costs         machine.CostModel
	GasLimit      uint64
	Logger        *slog.Logger
	// Tracer sees every instruction of every run.
	Tracer func(pc uint64, op machine.OpCode)
}

// Explore runs seeds until the queue drains, MaxRuns is reached or ctx is
// done. Testcases are returned in run order, one per distinct path. When
// ctx ends early the paths found so far come back with ctx.Err().
func (e *Explorer) Explore(ctx context.Context) ([]Testcase, error) {
	log := e.Logger
	if log == nil {
		log = logs.Discard()
	}
	queue := e.Queue
	if queue == nil {
		queue = &DFSQueue{}
	}
	if e.CalldataSize < 0 {
		return nil, errors.Wrapf(constraints.ErrCalldataLength, "calldata size %d", e.CalldataSize)
	}
	queue.push(&State{calldata: make([]byte, e.CalldataSize)})

	var (
		testcases []Testcase
		seen      = make(map[string]struct{})
		runs      int
	)
	for !queue.empty() {
		if err := ctx.Err(); err != nil {
			return testcases, err
		}
		if e.MaxRuns > 0 && runs >= e.MaxRuns {
			log.Info("run limit reached", "runs", runs, "pending", queue.Len())
			break
		}
		state := queue.pop()
		runs++

		m := machine.New(e.Code, machine.NewSymStack(), machine.Config{
			Symbolic: true,
			Calldata: state.calldata,
			Costs:    e.Costs,
			GasLimit: e.GasLimit,
			Logger:   log,
			Tracer:   e.Tracer,
		})
		runErr := m.Run()
		preds := m.TakePredicates()
		key := sym.PathKey(preds)
		if _, ok := seen[key]; ok {
			log.Debug("duplicate path", "calldata", hex.EncodeToString(state.calldata))
			continue
		}
		seen[key] = struct{}{}

		tc := Testcase{
			Calldata:   state.calldata,
			Predicates: preds,
			Branches:   m.Branches(),
			Err:        runErr,
		}
		testcases = append(testcases, tc)
		log.Info("path",
			"n", len(testcases),
			"calldata", hex.EncodeToString(tc.Calldata),
			"branches", len(preds),
			"status", tc.Status(),
		)

		if err := e.expand(ctx, log, queue, state, preds); err != nil {
			return testcases, err
		}
	}
	return testcases, nil
}

// expand negates every predicate from the state bound on and queues each
// satisfiable flip with its witness as the new seed.
func (e *Explorer) expand(ctx context.Context, log *slog.Logger, queue Queue, state *State, preds []sym.Pred) error {
	solver, err := constraints.NewSolver(len(state.calldata))
	if err != nil {
		return err
	}
	for i, p := range preds {
		if i >= state.bound {
			witness, sat, err := e.checkFlip(ctx, solver, p.Negate())
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case errors.Is(err, context.DeadlineExceeded):
				log.Warn("solver timeout", "branch", i, "predicate", p.Negate())
			case err != nil:
				return err
			case sat:
				log.Debug("new seed", "branch", i, "calldata", hex.EncodeToString(witness))
				queue.push(&State{calldata: witness, bound: i + 1})
			default:
				log.Debug("unsat", "branch", i, "predicate", p.Negate())
			}
		}
		if err := solver.Assert(p); err != nil {
			return err
		}
	}
	return nil
}

func (e *Explorer) checkFlip(ctx context.Context, solver *constraints.Solver, p sym.Pred) ([]byte, bool, error) {
	if e.SolverTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.SolverTimeout)
		defer cancel()
	}
	return solver.CheckWith(ctx, p)
}
