package symexec

import (
	"math/rand"
	"strings"

	"github.com/pkg/errors"
)

var ErrUnknownStrategy = errors.New("unknown search strategy")

// Queue holds the seeds still waiting for a run. The pop order is the
// search strategy.
type Queue interface {
	push(s *State)
	pop() *State
	empty() bool
	Len() int
}

// NewQueue picks a queue by strategy name: dfs, bfs or random.
func NewQueue(strategy string) (Queue, error) {
	switch strings.ToLower(strategy) {
	case "", "dfs":
		return &DFSQueue{}, nil
	case "bfs":
		return &BFSQueue{}, nil
	case "random":
		return &RandomQueue{}, nil
	}
	return nil, errors.Wrapf(ErrUnknownStrategy, "'%s'", strategy)
}

type RandomQueue struct {
	states []*State
}

type BFSQueue struct {
	states []*State
}

// DFSQueue is a stack: the newest seed runs first.
type DFSQueue struct {
	states []*State
}

func (q *RandomQueue) push(s *State) {
	q.states = append(q.states, s)
}

func (q *RandomQueue) pop() *State {
	i := rand.Intn(len(q.states))
	next := q.states[i]
	last := len(q.states) - 1
	q.states[i] = q.states[last]
	q.states[last] = nil
	q.states = q.states[:last]
	return next
}

func (q *RandomQueue) empty() bool { return len(q.states) == 0 }
func (q *RandomQueue) Len() int    { return len(q.states) }

func (q *BFSQueue) push(s *State) {
	q.states = append(q.states, s)
}

func (q *BFSQueue) pop() *State {
	next := q.states[0]
	q.states[0] = nil
	q.states = q.states[1:]
	return next
}

func (q *BFSQueue) empty() bool { return len(q.states) == 0 }
func (q *BFSQueue) Len() int    { return len(q.states) }

func (q *DFSQueue) push(s *State) {
	q.states = append(q.states, s)
}

func (q *DFSQueue) pop() *State {
	last := len(q.states) - 1
	next := q.states[last]
	q.states[last] = nil
	q.states = q.states[:last]
	return next
}

func (q *DFSQueue) empty() bool { return len(q.states) == 0 }
func (q *DFSQueue) Len() int    { return len(q.states) }
