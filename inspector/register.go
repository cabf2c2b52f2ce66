package inspector

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/clydemeng/evminspect/core/vm"
	"github.com/ethereum/go-ethereum/common"
	gethvm "github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/log"
)

// Register instruments h with insp.
//
// Every slot of the instruction table is wrapped with WrapInstruction. The LOG
// and SELFDESTRUCT slots get an outer wrapper that reports the log or
// destroyed account they journaled. The first frame, sub call and sub create
// hooks consult insp before a frame is built, and frame return lets insp
// rewrite the result before it is merged into the parent.
//
// Register panics if h has no instruction table.
func Register(h *vm.Handler, insp Inspector) {
	table := h.TakeInstructionTable()
	if table == nil {
		panic("inspector: handler must have an instruction table")
	}
	wrapped := new(vm.InstructionTable)
	for i, instr := range table {
		wrapped[i] = WrapInstruction(insp, instr)
	}
	for op := gethvm.LOG0; op <= gethvm.LOG4; op++ {
		wrapped[op] = inspectLog(insp, wrapped[op])
	}
	wrapped[gethvm.SELFDESTRUCT] = inspectSelfdestruct(insp, wrapped[gethvm.SELFDESTRUCT])
	h.InstructionTable = wrapped

	loop := &h.ExecutionLoop
	loop.CreateFirstFrame = func(ctx *vm.Context, gasLimit uint64) vm.FrameOrResult {
		tx := &ctx.Env.Tx
		if tx.IsCreate() {
			inputs := vm.NewCreateInputs(tx, gasLimit)
			if out := insp.Create(ctx, inputs); out != nil {
				shortCircuitCounter.Inc(1)
				return vm.FrameOrResult{Result: vm.NewCreateResult(out)}
			}
			return ctx.MakeCreateFrame(inputs)
		}
		inputs := vm.NewCallInputs(tx, gasLimit)
		if out := insp.Call(ctx, inputs); out != nil {
			shortCircuitCounter.Inc(1)
			return vm.FrameOrResult{Result: vm.NewCallResult(out)}
		}
		// The first call frame has no caller memory to return into.
		return ctx.MakeCallFrame(inputs, vm.MemoryRange{})
	}

	loop.SubCreate = func(ctx *vm.Context, frame *vm.Frame, inputs *vm.CreateInputs) *vm.Frame {
		if out := insp.Create(ctx, inputs); out != nil {
			shortCircuitCounter.Inc(1)
			frame.Interpreter.InsertCreateOutput(out.Result, out.Address)
			return nil
		}
		res := ctx.MakeCreateFrame(inputs)
		if res.Frame != nil {
			framesCounter.Inc(1)
			insp.InitializeInterp(res.Frame.Interpreter, ctx)
			return res.Frame
		}
		result, address := insp.CreateEnd(ctx, res.Result.Result, res.Result.Address)
		frame.Interpreter.InsertCreateOutput(result, address)
		return nil
	}

	loop.SubCall = func(ctx *vm.Context, inputs *vm.CallInputs, frame *vm.Frame, returnRange vm.MemoryRange) *vm.Frame {
		if out := insp.Call(ctx, inputs); out != nil {
			shortCircuitCounter.Inc(1)
			frame.Interpreter.InsertCallOutput(out.Result(), out.MemoryOffset())
			return nil
		}
		res := ctx.MakeCallFrame(inputs, returnRange)
		if res.Frame != nil {
			framesCounter.Inc(1)
			insp.InitializeInterp(res.Frame.Interpreter, ctx)
			return res.Frame
		}
		result := insp.CallEnd(ctx, res.Result.Result)
		frame.Interpreter.InsertCallOutput(result, returnRange)
		return nil
	}

	frameReturn := loop.FrameReturn
	loop.FrameReturn = func(ctx *vm.Context, child *vm.Frame, parent *vm.Frame, result vm.InterpreterResult) *vm.FrameResult {
		switch child.Kind {
		case vm.FrameCreate:
			var address *common.Address
			result, address = insp.CreateEnd(ctx, result, child.CreatedAddressPtr())
			if address != nil && *address != child.CreatedAddress {
				child.ReportedAddress = address
			}
		default:
			result = insp.CallEnd(ctx, result)
		}
		return frameReturn(ctx, child, parent, result)
	}

	log.Debug("Registered inspector", "inspector", fmt.Sprintf("%T", insp), "spec", h.Spec)
}

// WrapInstruction decorates instr with the Step and StepEnd hooks of insp.
//
// The run loop advances the PC past the opcode before dispatching, so the PC
// is moved back by one while Step runs and restored before instr executes. If
// Step leaves the interpreter in a non-Continue state, instr and StepEnd are
// skipped.
func WrapInstruction(insp Inspector, instr vm.Instruction) vm.Instruction {
	return func(in *vm.Interpreter, ctx *vm.Context) {
		in.PC--
		insp.Step(in, ctx)
		if in.InstructionResult != vm.Continue {
			return
		}
		in.PC++
		instr(in, ctx)
		insp.StepEnd(in, ctx)
	}
}

// inspectLog reports the log appended by a LOG instruction. A LOG that failed
// leaves the log count unchanged and is not reported.
func inspectLog(insp Inspector, instr vm.Instruction) vm.Instruction {
	return func(in *vm.Interpreter, ctx *vm.Context) {
		before := ctx.Journal.LogCount()
		instr(in, ctx)
		if ctx.Journal.LogCount() != before+1 {
			return
		}
		logs := ctx.Journal.Logs()
		l := *logs[len(logs)-1]
		l.Topics = slices.Clone(l.Topics)
		l.Data = bytes.Clone(l.Data)
		logsCounter.Inc(1)
		insp.Log(ctx, &l)
	}
}

// inspectSelfdestruct reports the account destroyed by SELFDESTRUCT. Only an
// AccountDestroyed entry journaled by this instruction counts. Committed child
// frames leave their entries at the journal tail, so an unchanged position
// means nothing was destroyed.
func inspectSelfdestruct(insp Inspector, instr vm.Instruction) vm.Instruction {
	return func(in *vm.Interpreter, ctx *vm.Context) {
		before := ctx.Journal.Position()
		instr(in, ctx)
		if ctx.Journal.Position() == before {
			return
		}
		entry, ok := ctx.Journal.LastEntry().(vm.AccountDestroyed)
		if !ok {
			return
		}
		selfdestructCounter.Inc(1)
		insp.Selfdestruct(entry.Address, entry.Target, &entry.HadBalance)
	}
}
