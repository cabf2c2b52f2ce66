package vm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ActionKind tells the execution loop what a paused interpreter wants next.
type ActionKind uint8

const (
	ActionNone ActionKind = iota
	ActionCall
	ActionCreate
	ActionReturn
)

// InterpreterAction is returned by Run whenever the interpreter stops.
type InterpreterAction struct {
	Kind ActionKind

	// set for ActionCall
	CallInputs        *CallInputs
	ReturnMemoryRange MemoryRange

	// set for ActionCreate
	CreateInputs *CreateInputs

	// set for ActionReturn
	Result InterpreterResult
}

// Interpreter executes the code of a single frame.
//
// PC is the instruction pointer. The run loop advances it past the opcode byte
// before the instruction handler is invoked, handlers that read immediates
// (PUSHn) or jump move it further.
type Interpreter struct {
	Contract          *Contract
	PC                uint64
	Gas               Gas
	Stack             *Stack
	Memory            *Memory
	ReturnData        []byte
	InstructionResult InstructionResult
	IsStatic          bool
	NextAction        InterpreterAction

	output []byte
}

// NewInterpreter returns an interpreter ready to execute contract.
func NewInterpreter(contract *Contract, gasLimit uint64, isStatic bool) *Interpreter {
	return &Interpreter{
		Contract: contract,
		Gas:      NewGas(gasLimit),
		Stack:    newStack(),
		Memory:   newMemory(),
		IsStatic: isStatic,
	}
}

// CurrentOpcode returns the opcode at the instruction pointer.
func (in *Interpreter) CurrentOpcode() byte {
	return in.Contract.opAt(in.PC)
}

// Run executes instructions until the status leaves Continue and returns what
// the interpreter asks for next: a nested call, a nested create, or the
// frame's final result. A frame paused on CallOrCreate resumes where it
// stopped; a fatal status set while inserting a child result is kept.
func (in *Interpreter) Run(table *InstructionTable, ctx *Context) InterpreterAction {
	in.NextAction = InterpreterAction{}
	if in.InstructionResult == CallOrCreate {
		in.InstructionResult = Continue
	}
	for in.InstructionResult == Continue {
		op := in.Contract.opAt(in.PC)
		in.PC++
		table[op](in, ctx)
	}
	if in.NextAction.Kind != ActionNone {
		action := in.NextAction
		in.NextAction = InterpreterAction{}
		return action
	}
	return InterpreterAction{
		Kind: ActionReturn,
		Result: InterpreterResult{
			Result: in.InstructionResult,
			Output: in.output,
			Gas:    in.Gas,
		},
	}
}

// InsertCallOutput resumes the interpreter after a nested call finished,
// copying as much output as fits into memRange.
func (in *Interpreter) InsertCallOutput(result InterpreterResult, memRange MemoryRange) {
	in.ReturnData = result.Output
	switch {
	case result.Result.IsOk():
		in.writeCallOutput(result.Output, memRange)
		in.Gas.EraseCost(result.Gas.Remaining())
		in.Gas.RecordRefund(result.Gas.Refunded())
		in.push(uint256.NewInt(1))
	case result.Result.IsRevert():
		in.writeCallOutput(result.Output, memRange)
		in.Gas.EraseCost(result.Gas.Remaining())
		in.push(new(uint256.Int))
	case result.Result == FatalExternalError:
		in.InstructionResult = FatalExternalError
	default:
		in.push(new(uint256.Int))
	}
}

func (in *Interpreter) push(v *uint256.Int) {
	if !in.Stack.Push(v) {
		in.InstructionResult = StackOverflow
	}
}

// writeCallOutput copies min(len(memRange), len(output)) bytes, clipped to the
// memory that is actually allocated.
func (in *Interpreter) writeCallOutput(output []byte, memRange MemoryRange) {
	n := min(memRange.Len(), uint64(len(output)))
	size := uint64(in.Memory.Len())
	if memRange.Start >= size {
		return
	}
	n = min(n, size-memRange.Start)
	in.Memory.Set(memRange.Start, output[:n])
}

// InsertCreateOutput resumes the interpreter after a nested create finished.
func (in *Interpreter) InsertCreateOutput(result InterpreterResult, address *common.Address) {
	if result.Result.IsRevert() {
		in.ReturnData = result.Output
	} else {
		in.ReturnData = nil
	}
	switch {
	case result.Result.IsOk():
		var v uint256.Int
		if address != nil {
			v.SetBytes(address.Bytes())
		}
		in.push(&v)
		in.Gas.EraseCost(result.Gas.Remaining())
		in.Gas.RecordRefund(result.Gas.Refunded())
	case result.Result.IsRevert():
		in.push(new(uint256.Int))
		in.Gas.EraseCost(result.Gas.Remaining())
	case result.Result == FatalExternalError:
		in.InstructionResult = FatalExternalError
	default:
		in.push(new(uint256.Int))
	}
}

// MemoryData returns the frame memory. Callers must not modify it.
func (in *Interpreter) MemoryData() []byte { return in.Memory.Data() }

// StackData returns the frame stack. Callers must not modify it.
func (in *Interpreter) StackData() []uint256.Int { return in.Stack.Data() }

func (in *Interpreter) Caller() common.Address  { return in.Contract.Caller }
func (in *Interpreter) Address() common.Address { return in.Contract.Address }
func (in *Interpreter) CallValue() *uint256.Int { return &in.Contract.Value }
func (in *Interpreter) CallInput() []byte       { return in.Contract.Input }
func (in *Interpreter) ContractCode() []byte    { return in.Contract.Code }
