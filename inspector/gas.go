package inspector

import (
	"github.com/clydemeng/evminspect/core/vm"
	"github.com/ethereum/go-ethereum/common"
)

// GasInspector tracks the gas left before each instruction and the cost of
// the last executed one.
type GasInspector struct {
	NoOpInspector

	gasRemaining uint64
	lastGasCost  uint64
}

func NewGasInspector() *GasInspector { return &GasInspector{} }

// GasRemaining returns the gas left as of the latest hook.
func (g *GasInspector) GasRemaining() uint64 { return g.gasRemaining }

// LastGasCost returns the gas charged by the last executed instruction,
// including gas forwarded to a nested frame.
func (g *GasInspector) LastGasCost() uint64 { return g.lastGasCost }

func (g *GasInspector) InitializeInterp(in *vm.Interpreter, _ *vm.Context) {
	g.gasRemaining = in.Gas.Limit()
}

func (g *GasInspector) Step(in *vm.Interpreter, _ *vm.Context) {
	g.gasRemaining = in.Gas.Remaining()
}

func (g *GasInspector) StepEnd(in *vm.Interpreter, _ *vm.Context) {
	remaining := in.Gas.Remaining()
	if g.gasRemaining > remaining {
		g.lastGasCost = g.gasRemaining - remaining
	} else {
		g.lastGasCost = 0
	}
	g.gasRemaining = remaining
}

// CallEnd burns the gas of a frame that halted with an error.
func (g *GasInspector) CallEnd(_ *vm.Context, result vm.InterpreterResult) vm.InterpreterResult {
	if result.IsError() {
		result.Gas.SpendAll()
		g.gasRemaining = 0
	}
	return result
}

func (g *GasInspector) CreateEnd(ctx *vm.Context, result vm.InterpreterResult, address *common.Address) (vm.InterpreterResult, *common.Address) {
	return g.CallEnd(ctx, result), address
}
