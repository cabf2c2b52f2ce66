package inspector

import (
	"cmp"
	"slices"

	"github.com/clydemeng/evminspect/core/vm"
	gethvm "github.com/ethereum/go-ethereum/core/vm"
)

// OpcodeStat is the execution count and total gas of one opcode.
type OpcodeStat struct {
	Op    gethvm.OpCode
	Count uint64
	Gas   uint64
}

// OpcodeCounter builds a histogram of executed opcodes.
type OpcodeCounter struct {
	GasInspector

	op    byte
	stats [256]OpcodeStat
}

func NewOpcodeCounter() *OpcodeCounter { return &OpcodeCounter{} }

func (c *OpcodeCounter) Step(in *vm.Interpreter, ctx *vm.Context) {
	c.GasInspector.Step(in, ctx)
	c.op = in.CurrentOpcode()
}

func (c *OpcodeCounter) StepEnd(in *vm.Interpreter, ctx *vm.Context) {
	c.GasInspector.StepEnd(in, ctx)
	s := &c.stats[c.op]
	s.Op = gethvm.OpCode(c.op)
	s.Count++
	s.Gas += c.LastGasCost()
}

// Stats returns the executed opcodes, most frequent first.
func (c *OpcodeCounter) Stats() []OpcodeStat {
	var out []OpcodeStat
	for _, s := range c.stats {
		if s.Count > 0 {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b OpcodeStat) int {
		if n := cmp.Compare(b.Count, a.Count); n != 0 {
			return n
		}
		return cmp.Compare(a.Op, b.Op)
	})
	return out
}
