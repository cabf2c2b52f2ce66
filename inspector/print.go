package inspector

import (
	"fmt"
	"io"

	"github.com/clydemeng/evminspect/core/vm"
	"github.com/ethereum/go-ethereum/common"
	gethvm "github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/fatih/color"
	"github.com/holiman/uint256"
)

// PrintTracer writes a human readable line per step and per nested call,
// create, log and selfdestruct.
type PrintTracer struct {
	NoOpInspector

	w   io.Writer
	gas GasInspector

	opColor   *color.Color
	callColor *color.Color
	errColor  *color.Color
}

// NewPrintTracer returns a tracer writing to w. Colors are only emitted when
// color output is enabled, see color.NoColor.
func NewPrintTracer(w io.Writer) *PrintTracer {
	return &PrintTracer{
		w:         w,
		opColor:   color.New(color.FgCyan, color.Bold),
		callColor: color.New(color.FgYellow),
		errColor:  color.New(color.FgRed),
	}
}

func (p *PrintTracer) InitializeInterp(in *vm.Interpreter, ctx *vm.Context) {
	p.gas.InitializeInterp(in, ctx)
}

func (p *PrintTracer) Step(in *vm.Interpreter, ctx *vm.Context) {
	p.gas.Step(in, ctx)
	op := gethvm.OpCode(in.CurrentOpcode())
	fmt.Fprintf(p.w, "depth:%d, PC:%d, gas:%#x(%d), OPCODE: %s(%d)  refund:%#x(%d) Stack:%v, Data size:%d\n",
		ctx.Journal.Depth(),
		in.PC,
		in.Gas.Remaining(), in.Gas.Remaining(),
		p.opColor.Sprint(op.String()), byte(op),
		in.Gas.Refunded(), in.Gas.Refunded(),
		stackStrings(in.StackData()),
		in.Memory.Len(),
	)
}

func (p *PrintTracer) StepEnd(in *vm.Interpreter, ctx *vm.Context) {
	p.gas.StepEnd(in, ctx)
	if in.InstructionResult.IsError() {
		p.errColor.Fprintf(p.w, "  halted: %s\n", in.InstructionResult)
	}
}

func (p *PrintTracer) Call(_ *vm.Context, inputs *vm.CallInputs) *vm.CallOutcome {
	p.callColor.Fprintf(p.w, "SM %s: %s, caller:%s, is_static:%t, value:%s, input_size:%d\n",
		inputs.Scheme, inputs.Contract, inputs.Caller, inputs.IsStatic, inputs.Value.Dec(), len(inputs.Input))
	return nil
}

func (p *PrintTracer) CallEnd(ctx *vm.Context, result vm.InterpreterResult) vm.InterpreterResult {
	return p.gas.CallEnd(ctx, result)
}

func (p *PrintTracer) Create(_ *vm.Context, inputs *vm.CreateInputs) *vm.CreateOutcome {
	p.callColor.Fprintf(p.w, "CREATE %s: caller:%s, value:%s, init_code_size:%d, gas_limit:%d\n",
		inputs.Scheme, inputs.Caller, inputs.Value.Dec(), len(inputs.InitCode), inputs.GasLimit)
	return nil
}

func (p *PrintTracer) CreateEnd(ctx *vm.Context, result vm.InterpreterResult, address *common.Address) (vm.InterpreterResult, *common.Address) {
	return p.gas.CallEnd(ctx, result), address
}

func (p *PrintTracer) Log(_ *vm.Context, l *types.Log) {
	fmt.Fprintf(p.w, "LOG%d: %s topics:%v data:%#x\n", len(l.Topics), l.Address, l.Topics, l.Data)
}

func (p *PrintTracer) Selfdestruct(contract, target common.Address, value *uint256.Int) {
	p.errColor.Fprintf(p.w, "SELFDESTRUCT: contract:%s, refund target:%s, value:%s\n", contract, target, value.Dec())
}

func stackStrings(stack []uint256.Int) []string {
	out := make([]string, len(stack))
	for i := range stack {
		out[i] = stack[i].Hex()
	}
	return out
}
