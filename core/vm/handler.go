package vm

import "github.com/ethereum/go-ethereum/log"

// ExecutionLoop holds the overridable steps of frame construction and
// teardown.
type ExecutionLoop struct {
	// CreateFirstFrame builds the frame of the transaction itself.
	CreateFirstFrame func(ctx *Context, gasLimit uint64) FrameOrResult
	// SubCall builds the frame of a nested call issued by frame. A nil return
	// means the call completed immediately and its result was inserted into
	// frame.
	SubCall func(ctx *Context, inputs *CallInputs, frame *Frame, returnRange MemoryRange) *Frame
	// SubCreate is the create counterpart of SubCall.
	SubCreate func(ctx *Context, frame *Frame, inputs *CreateInputs) *Frame
	// FrameReturn merges the result of child into parent. When parent is nil
	// child was the first frame and its final result is returned.
	FrameReturn func(ctx *Context, child *Frame, parent *Frame, result InterpreterResult) *FrameResult
}

// Handler is the set of functions the EVM driver executes with.
type Handler struct {
	Spec             SpecID
	InstructionTable *InstructionTable
	ExecutionLoop    ExecutionLoop
}

// NewHandler returns the default handler for spec.
func NewHandler(spec SpecID) *Handler {
	return &Handler{
		Spec:             spec,
		InstructionTable: NewInstructionTable(spec),
		ExecutionLoop: ExecutionLoop{
			CreateFirstFrame: createFirstFrame,
			SubCall:          subCall,
			SubCreate:        subCreate,
			FrameReturn:      frameReturn,
		},
	}
}

// TakeInstructionTable hands the table over to the caller and leaves the
// handler without one. It returns nil if the table was already taken.
func (h *Handler) TakeInstructionTable() *InstructionTable {
	table := h.InstructionTable
	h.InstructionTable = nil
	return table
}

func createFirstFrame(ctx *Context, gasLimit uint64) FrameOrResult {
	if ctx.Env.Tx.IsCreate() {
		return ctx.MakeCreateFrame(NewCreateInputs(&ctx.Env.Tx, gasLimit))
	}
	return ctx.MakeCallFrame(NewCallInputs(&ctx.Env.Tx, gasLimit), MemoryRange{})
}

func subCall(ctx *Context, inputs *CallInputs, frame *Frame, returnRange MemoryRange) *Frame {
	res := ctx.MakeCallFrame(inputs, returnRange)
	if res.Frame != nil {
		return res.Frame
	}
	frame.Interpreter.InsertCallOutput(res.Result.Result, returnRange)
	return nil
}

func subCreate(ctx *Context, frame *Frame, inputs *CreateInputs) *Frame {
	res := ctx.MakeCreateFrame(inputs)
	if res.Frame != nil {
		return res.Frame
	}
	frame.Interpreter.InsertCreateOutput(res.Result.Result, res.Result.Address)
	return nil
}

func frameReturn(ctx *Context, child *Frame, parent *Frame, result InterpreterResult) *FrameResult {
	log.Trace("Frame return", "kind", child.Kind, "result", result.Result, "depth", ctx.Journal.Depth())
	switch child.Kind {
	case FrameCreate:
		result = ctx.CreateReturn(result, child.CreatedAddress, child.Checkpoint)
		address := child.ResultAddress()
		if parent == nil {
			return NewCreateResult(NewCreateOutcome(result, address))
		}
		parent.Interpreter.InsertCreateOutput(result, address)
	default:
		result = ctx.CallReturn(result, child.Checkpoint)
		if parent == nil {
			return NewCallResult(NewCallOutcome(result, child.ReturnMemoryRange))
		}
		parent.Interpreter.InsertCallOutput(result, child.ReturnMemoryRange)
	}
	return nil
}
