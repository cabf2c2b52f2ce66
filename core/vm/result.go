package vm

import "fmt"

// InstructionResult is the status an interpreter is left in after executing an
// instruction. Anything other than Continue stops the run loop of the frame.
type InstructionResult uint8

const (
	Continue InstructionResult = iota

	// success family
	Stop
	Return
	SelfDestruct

	// revert family
	Revert
	CallTooDeep
	OutOfFunds

	// error family
	OutOfGas
	MemoryOOG
	StackUnderflow
	StackOverflow
	InvalidJump
	InvalidOpcode
	OpcodeNotFound
	StateChangeDuringStaticCall
	CreateCollision
	CreateContractSizeLimit
	CreateContractStartingWithEF
	CreateInitCodeSizeLimit
	OutOfOffset
	FatalExternalError

	// CallOrCreate pauses the interpreter while a nested frame runs.
	CallOrCreate
)

var instructionResultNames = [...]string{
	Continue:                     "continue",
	Stop:                         "stop",
	Return:                       "return",
	SelfDestruct:                 "selfdestruct",
	Revert:                       "revert",
	CallTooDeep:                  "call too deep",
	OutOfFunds:                   "out of funds",
	OutOfGas:                     "out of gas",
	MemoryOOG:                    "memory out of gas",
	StackUnderflow:               "stack underflow",
	StackOverflow:                "stack overflow",
	InvalidJump:                  "invalid jump",
	InvalidOpcode:                "invalid opcode",
	OpcodeNotFound:               "opcode not found",
	StateChangeDuringStaticCall:  "state change during static call",
	CreateCollision:              "create collision",
	CreateContractSizeLimit:      "create contract size limit",
	CreateContractStartingWithEF: "create contract starting with 0xEF",
	CreateInitCodeSizeLimit:      "create init code size limit",
	OutOfOffset:                  "return data out of bounds",
	FatalExternalError:           "fatal external error",
	CallOrCreate:                 "call or create",
}

func (r InstructionResult) String() string {
	if int(r) < len(instructionResultNames) {
		return instructionResultNames[r]
	}
	return fmt.Sprintf("instruction result %d", r)
}

// IsOk reports whether the frame halted successfully.
func (r InstructionResult) IsOk() bool {
	return r == Continue || r == Stop || r == Return || r == SelfDestruct
}

// IsRevert reports whether the frame reverted and keeps its remaining gas.
func (r InstructionResult) IsRevert() bool {
	return r == Revert || r == CallTooDeep || r == OutOfFunds
}

// IsError reports whether the frame halted exceptionally.
func (r InstructionResult) IsError() bool {
	return r >= OutOfGas && r <= FatalExternalError
}

// Gas tracks the gas of a single frame.
type Gas struct {
	limit     uint64
	remaining uint64
	refunded  int64
}

// NewGas returns a gas tracker with the full limit available.
func NewGas(limit uint64) Gas {
	return Gas{limit: limit, remaining: limit}
}

// NewGasSpent returns a gas tracker with nothing left.
func NewGasSpent(limit uint64) Gas {
	return Gas{limit: limit}
}

func (g Gas) Limit() uint64     { return g.limit }
func (g Gas) Remaining() uint64 { return g.remaining }
func (g Gas) Refunded() int64   { return g.refunded }

// Spent returns the amount of gas consumed so far.
func (g Gas) Spent() uint64 { return g.limit - g.remaining }

// RecordCost charges cost and reports whether there was enough gas. On failure
// the remaining gas is left untouched.
func (g *Gas) RecordCost(cost uint64) bool {
	if g.remaining < cost {
		return false
	}
	g.remaining -= cost
	return true
}

// EraseCost gives back gas a child frame did not use.
func (g *Gas) EraseCost(returned uint64) {
	g.remaining += returned
}

// RecordRefund adds to the refund counter. Negative values are allowed.
func (g *Gas) RecordRefund(refund int64) {
	g.refunded += refund
}

// SpendAll consumes everything that is left.
func (g *Gas) SpendAll() {
	g.remaining = 0
}

// InterpreterResult is the outcome of a completed frame.
type InterpreterResult struct {
	Result InstructionResult
	Output []byte
	Gas    Gas
}

func (r InterpreterResult) IsOk() bool     { return r.Result.IsOk() }
func (r InterpreterResult) IsRevert() bool { return r.Result.IsRevert() }
func (r InterpreterResult) IsError() bool  { return r.Result.IsError() }
