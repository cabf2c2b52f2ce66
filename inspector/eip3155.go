package inspector

import (
	"encoding/json"
	"io"

	"github.com/clydemeng/evminspect/core/vm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethvm "github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/log"
)

// eip3155Step is one line of an EIP-3155 trace.
type eip3155Step struct {
	Pc         uint64         `json:"pc"`
	Op         uint8          `json:"op"`
	Gas        hexutil.Uint64 `json:"gas"`
	GasCost    hexutil.Uint64 `json:"gasCost"`
	Stack      []string       `json:"stack"`
	Depth      int            `json:"depth"`
	ReturnData hexutil.Bytes  `json:"returnData"`
	Refund     hexutil.Uint64 `json:"refund"`
	MemSize    uint64         `json:"memSize"`
	OpName     string         `json:"opName"`
	Error      string         `json:"error,omitempty"`
	Memory     hexutil.Bytes  `json:"memory,omitempty"`
}

// eip3155Summary is written when the outermost frame ends.
type eip3155Summary struct {
	Output  hexutil.Bytes  `json:"output"`
	GasUsed hexutil.Uint64 `json:"gasUsed"`
	Pass    bool           `json:"pass"`
	Error   string         `json:"error,omitempty"`
}

// EIP3155Tracer writes a JSON line per executed instruction in the format of
// EIP-3155, followed by a summary line when the transaction's outermost frame
// ends.
type EIP3155Tracer struct {
	NoOpInspector

	enc           *json.Encoder
	includeMemory bool
	gas           GasInspector

	depth int
	step  eip3155Step
}

// NewEIP3155Tracer returns a tracer writing to w.
func NewEIP3155Tracer(w io.Writer, includeMemory bool) *EIP3155Tracer {
	return &EIP3155Tracer{enc: json.NewEncoder(w), includeMemory: includeMemory}
}

func (t *EIP3155Tracer) InitializeInterp(in *vm.Interpreter, ctx *vm.Context) {
	t.gas.InitializeInterp(in, ctx)
}

func (t *EIP3155Tracer) Step(in *vm.Interpreter, ctx *vm.Context) {
	t.gas.Step(in, ctx)

	op := in.CurrentOpcode()
	stack := in.StackData()
	t.step = eip3155Step{
		Pc:         in.PC,
		Op:         op,
		Gas:        hexutil.Uint64(in.Gas.Remaining()),
		Stack:      make([]string, len(stack)),
		Depth:      t.depth,
		ReturnData: in.ReturnData,
		MemSize:    uint64(in.Memory.Len()),
		OpName:     gethvm.OpCode(op).String(),
	}
	if refund := in.Gas.Refunded(); refund > 0 {
		t.step.Refund = hexutil.Uint64(refund)
	}
	for i := range stack {
		t.step.Stack[i] = stack[i].Hex()
	}
	if t.includeMemory {
		t.step.Memory = append(hexutil.Bytes(nil), in.MemoryData()...)
	}
}

func (t *EIP3155Tracer) StepEnd(in *vm.Interpreter, ctx *vm.Context) {
	t.gas.StepEnd(in, ctx)
	t.step.GasCost = hexutil.Uint64(t.gas.LastGasCost())
	if in.InstructionResult.IsError() {
		t.step.Error = in.InstructionResult.String()
	}
	t.write(&t.step)
}

func (t *EIP3155Tracer) Call(*vm.Context, *vm.CallInputs) *vm.CallOutcome {
	t.depth++
	return nil
}

func (t *EIP3155Tracer) Create(*vm.Context, *vm.CreateInputs) *vm.CreateOutcome {
	t.depth++
	return nil
}

func (t *EIP3155Tracer) CallEnd(ctx *vm.Context, result vm.InterpreterResult) vm.InterpreterResult {
	result = t.gas.CallEnd(ctx, result)
	t.end(result)
	return result
}

func (t *EIP3155Tracer) CreateEnd(ctx *vm.Context, result vm.InterpreterResult, address *common.Address) (vm.InterpreterResult, *common.Address) {
	result = t.gas.CallEnd(ctx, result)
	t.end(result)
	return result, address
}

func (t *EIP3155Tracer) end(result vm.InterpreterResult) {
	t.depth--
	if t.depth > 0 {
		return
	}
	summary := eip3155Summary{
		Output:  result.Output,
		GasUsed: hexutil.Uint64(result.Gas.Spent()),
		Pass:    result.IsOk(),
	}
	if !result.IsOk() {
		summary.Error = result.Result.String()
	}
	t.write(&summary)
}

func (t *EIP3155Tracer) write(v any) {
	if err := t.enc.Encode(v); err != nil {
		log.Warn("Failed to write trace line", "err", err)
	}
}
