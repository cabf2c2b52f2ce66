package inspector

import (
	"github.com/clydemeng/evminspect/core/vm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// Multi fans every hook out to a list of inspectors, in order.
//
// The first inspector returning an outcome from Call or Create wins: the ones
// after it are not consulted, and the ones before it receive CallEnd or
// CreateEnd with the outcome so that every inspector that saw the start of a
// sub execution also sees its end. End hooks thread the result through every
// inspector.
type Multi struct {
	inspectors []Inspector
}

// NewMulti returns a Multi over inspectors. Nil entries are dropped.
func NewMulti(inspectors ...Inspector) *Multi {
	m := &Multi{}
	for _, insp := range inspectors {
		if insp != nil {
			m.inspectors = append(m.inspectors, insp)
		}
	}
	return m
}

// Add appends an inspector.
func (m *Multi) Add(insp Inspector) {
	m.inspectors = append(m.inspectors, insp)
}

func (m *Multi) Len() int { return len(m.inspectors) }

func (m *Multi) InitializeInterp(in *vm.Interpreter, ctx *vm.Context) {
	for _, insp := range m.inspectors {
		insp.InitializeInterp(in, ctx)
	}
}

// Step stops at the first inspector that halts the interpreter.
func (m *Multi) Step(in *vm.Interpreter, ctx *vm.Context) {
	for _, insp := range m.inspectors {
		insp.Step(in, ctx)
		if in.InstructionResult != vm.Continue {
			return
		}
	}
}

func (m *Multi) StepEnd(in *vm.Interpreter, ctx *vm.Context) {
	for _, insp := range m.inspectors {
		insp.StepEnd(in, ctx)
	}
}

func (m *Multi) Log(ctx *vm.Context, l *types.Log) {
	for _, insp := range m.inspectors {
		insp.Log(ctx, l)
	}
}

func (m *Multi) Call(ctx *vm.Context, inputs *vm.CallInputs) *vm.CallOutcome {
	for i, insp := range m.inspectors {
		out := insp.Call(ctx, inputs)
		if out == nil {
			continue
		}
		result := out.Result()
		for j := i - 1; j >= 0; j-- {
			result = m.inspectors[j].CallEnd(ctx, result)
		}
		return vm.NewCallOutcome(result, out.MemoryOffset())
	}
	return nil
}

func (m *Multi) CallEnd(ctx *vm.Context, result vm.InterpreterResult) vm.InterpreterResult {
	for _, insp := range m.inspectors {
		result = insp.CallEnd(ctx, result)
	}
	return result
}

func (m *Multi) Create(ctx *vm.Context, inputs *vm.CreateInputs) *vm.CreateOutcome {
	for i, insp := range m.inspectors {
		out := insp.Create(ctx, inputs)
		if out == nil {
			continue
		}
		result, address := out.Result, out.Address
		for j := i - 1; j >= 0; j-- {
			result, address = m.inspectors[j].CreateEnd(ctx, result, address)
		}
		return vm.NewCreateOutcome(result, address)
	}
	return nil
}

func (m *Multi) CreateEnd(ctx *vm.Context, result vm.InterpreterResult, address *common.Address) (vm.InterpreterResult, *common.Address) {
	for _, insp := range m.inspectors {
		result, address = insp.CreateEnd(ctx, result, address)
	}
	return result, address
}

func (m *Multi) Selfdestruct(contract, target common.Address, value *uint256.Int) {
	for _, insp := range m.inspectors {
		insp.Selfdestruct(contract, target, value)
	}
}
