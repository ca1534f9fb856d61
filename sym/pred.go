package sym

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Pred is a path predicate. Predicates wrap value expressions but never
// appear inside them.
type Pred interface {
	fmt.Stringer

	// Holds evaluates the predicate under concrete calldata.
	Holds(calldata []byte) bool
	Negate() Pred
	Operand() Expr
	ScanInputs(offsets map[int]struct{})

	pred()
}

// EqZero holds when X evaluates to zero.
type EqZero struct {
	X Expr
}

// NotEqZero holds when X evaluates to anything but zero.
type NotEqZero struct {
	X Expr
}

func (EqZero) pred()    {}
func (NotEqZero) pred() {}

func (p EqZero) String() string {
	return fmt.Sprintf("%s == 0", p.X)
}

func (p EqZero) Holds(calldata []byte) bool {
	v := p.X.Eval(calldata)
	return v.IsZero()
}

func (p EqZero) Negate() Pred {
	return NotEqZero{X: p.X}
}

func (p EqZero) Operand() Expr {
	return p.X
}

func (p EqZero) ScanInputs(offsets map[int]struct{}) {
	p.X.ScanInputs(offsets)
}

func (p NotEqZero) String() string {
	return fmt.Sprintf("%s != 0", p.X)
}

func (p NotEqZero) Holds(calldata []byte) bool {
	v := p.X.Eval(calldata)
	return !v.IsZero()
}

func (p NotEqZero) Negate() Pred {
	return EqZero{X: p.X}
}

func (p NotEqZero) Operand() Expr {
	return p.X
}

func (p NotEqZero) ScanInputs(offsets map[int]struct{}) {
	p.X.ScanInputs(offsets)
}

// PathKey identifies the path a predicate list characterizes.
func PathKey(preds []Pred) string {
	var s []string
	for _, p := range preds {
		s = append(s, p.String())
	}
	return strings.Join(s, " && ")
}

// AllHold reports whether calldata satisfies every predicate.
func AllHold(preds []Pred, calldata []byte) bool {
	for _, p := range preds {
		if !p.Holds(calldata) {
			return false
		}
	}
	return true
}

// Inputs lists the calldata offsets the predicates depend on, ascending.
func Inputs(preds []Pred) []int {
	offsets := make(map[int]struct{})
	for _, p := range preds {
		p.ScanInputs(offsets)
	}
	return slices.Sorted(maps.Keys(offsets))
}
