package vm

import (
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
)

// Stack is the word stack of a single frame.
type Stack struct {
	data []uint256.Int
}

func newStack() *Stack {
	return &Stack{data: make([]uint256.Int, 0, 16)}
}

// Data returns the stack items, bottom first. Callers must not modify them.
func (st *Stack) Data() []uint256.Int { return st.data }

func (st *Stack) Len() int { return len(st.data) }

// Push appends v and reports false on overflow.
func (st *Stack) Push(v *uint256.Int) bool {
	if uint64(len(st.data)) >= params.StackLimit {
		return false
	}
	st.data = append(st.data, *v)
	return true
}

// Pop removes the top item.
func (st *Stack) Pop() (uint256.Int, bool) {
	if len(st.data) == 0 {
		return uint256.Int{}, false
	}
	v := st.data[len(st.data)-1]
	st.data = st.data[:len(st.data)-1]
	return v, true
}

// Peek returns a pointer to the n-th item from the top (0 is the top).
func (st *Stack) Peek(n int) *uint256.Int {
	if n < 0 || n >= len(st.data) {
		return nil
	}
	return &st.data[len(st.data)-1-n]
}

// Dup pushes a copy of the n-th item from the top, n starting at 1.
func (st *Stack) Dup(n int) InstructionResult {
	if len(st.data) < n {
		return StackUnderflow
	}
	if uint64(len(st.data)) >= params.StackLimit {
		return StackOverflow
	}
	st.data = append(st.data, st.data[len(st.data)-n])
	return Continue
}

// Swap exchanges the top item with the n-th item below it, n starting at 1.
func (st *Stack) Swap(n int) InstructionResult {
	if len(st.data) <= n {
		return StackUnderflow
	}
	top := len(st.data) - 1
	st.data[top], st.data[top-n] = st.data[top-n], st.data[top]
	return Continue
}
