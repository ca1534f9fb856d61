package machine

import (
	"github.com/holiman/uint256"

	"slava0135/symevm/sym"
)

const StackLimit = 1024

// Stack is everything the machine and its instructions know about the
// operand stack. Peek and Swap count from the top, starting at 1.
type Stack interface {
	Push(v sym.Value) error
	Pop() (sym.Value, error)
	Peek(n int) (sym.Value, error)
	Swap(n int) error
	Len() int
}

// SymStack holds concrete and symbolic values.
type SymStack struct {
	data []sym.Value
}

func NewSymStack() *SymStack {
	return &SymStack{data: make([]sym.Value, 0, StackLimit)}
}

func (st *SymStack) Push(v sym.Value) error {
	if len(st.data) >= StackLimit {
		return ErrStackOverflow
	}
	st.data = append(st.data, v)
	return nil
}

func (st *SymStack) Pop() (sym.Value, error) {
	if len(st.data) == 0 {
		return sym.Value{}, ErrStackUnderflow
	}
	last := len(st.data) - 1
	v := st.data[last]
	st.data[last] = sym.Value{}
	st.data = st.data[:last]
	return v, nil
}

func (st *SymStack) Peek(n int) (sym.Value, error) {
	if n < 1 || n > len(st.data) {
		return sym.Value{}, ErrStackUnderflow
	}
	return st.data[len(st.data)-n], nil
}

func (st *SymStack) Swap(n int) error {
	if n < 1 || n >= len(st.data) {
		return ErrStackUnderflow
	}
	top := len(st.data) - 1
	st.data[top], st.data[top-n] = st.data[top-n], st.data[top]
	return nil
}

func (st *SymStack) Len() int {
	return len(st.data)
}

// ConcreteStack only holds words and rejects symbolic values.
type ConcreteStack struct {
	data []uint256.Int
}

func NewConcreteStack() *ConcreteStack {
	return &ConcreteStack{data: make([]uint256.Int, 0, StackLimit)}
}

func (st *ConcreteStack) Push(v sym.Value) error {
	w, ok := v.Word()
	if !ok {
		return ErrSymbolicValue
	}
	if len(st.data) >= StackLimit {
		return ErrStackOverflow
	}
	st.data = append(st.data, w)
	return nil
}

func (st *ConcreteStack) Pop() (sym.Value, error) {
	if len(st.data) == 0 {
		return sym.Value{}, ErrStackUnderflow
	}
	last := len(st.data) - 1
	w := st.data[last]
	st.data = st.data[:last]
	return sym.Concrete(&w), nil
}

func (st *ConcreteStack) Peek(n int) (sym.Value, error) {
	if n < 1 || n > len(st.data) {
		return sym.Value{}, ErrStackUnderflow
	}
	return sym.Concrete(&st.data[len(st.data)-n]), nil
}

func (st *ConcreteStack) Swap(n int) error {
	if n < 1 || n >= len(st.data) {
		return ErrStackUnderflow
	}
	top := len(st.data) - 1
	st.data[top], st.data[top-n] = st.data[top-n], st.data[top]
	return nil
}

func (st *ConcreteStack) Len() int {
	return len(st.data)
}

// Values returns a copy of the stack contents, bottom first.
func Values(st Stack) []sym.Value {
	n := st.Len()
	vals := make([]sym.Value, n)
	for i := 0; i < n; i++ {
		vals[i], _ = st.Peek(n - i)
	}
	return vals
}
