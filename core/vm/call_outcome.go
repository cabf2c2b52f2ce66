package vm

import "github.com/ethereum/go-ethereum/common"

// MemoryRange is a half-open byte range [Start, End) in a frame's memory.
type MemoryRange struct {
	Start uint64
	End   uint64
}

// NewMemoryRange returns the range covering length bytes from offset.
func NewMemoryRange(offset, length uint64) MemoryRange {
	return MemoryRange{Start: offset, End: offset + length}
}

// Len returns the number of bytes covered by the range.
func (r MemoryRange) Len() uint64 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

// CallOutcome is the result of a completed call frame together with the range
// of the caller's memory the output has to be copied into.
//
// A CallOutcome is produced once per completed call and read by the caller;
// its accessors never mutate it. An empty memory range is valid and only means
// that no output bytes are copied, the output itself may still be non-empty.
type CallOutcome struct {
	result       InterpreterResult
	memoryOffset MemoryRange
}

// NewCallOutcome bundles a frame result with the caller memory range. It
// panics if the range is inverted.
func NewCallOutcome(result InterpreterResult, memoryOffset MemoryRange) *CallOutcome {
	if memoryOffset.Start > memoryOffset.End {
		panic("call outcome: inverted memory range")
	}
	return &CallOutcome{result: result, memoryOffset: memoryOffset}
}

// Result returns the complete interpreter result.
func (o *CallOutcome) Result() InterpreterResult { return o.result }

// InstructionResult returns the status the call ended with.
func (o *CallOutcome) InstructionResult() InstructionResult { return o.result.Result }

// Gas returns the gas accounting of the call.
func (o *CallOutcome) Gas() Gas { return o.result.Gas }

// Output returns the bytes returned by the call. Callers must not modify them.
func (o *CallOutcome) Output() []byte { return o.result.Output }

// MemoryOffset returns the destination range in the caller's memory.
func (o *CallOutcome) MemoryOffset() MemoryRange { return o.memoryOffset }

// MemoryStart returns the first byte of the destination range.
func (o *CallOutcome) MemoryStart() uint64 { return o.memoryOffset.Start }

// MemoryLength returns the length of the destination range.
func (o *CallOutcome) MemoryLength() uint64 { return o.memoryOffset.Len() }

// CreateOutcome is the result of a completed create frame. Address is nil when
// no contract address is available, e.g. the creation failed before an address
// was derived.
type CreateOutcome struct {
	Result  InterpreterResult
	Address *common.Address
}

// NewCreateOutcome bundles a create result with the created address.
func NewCreateOutcome(result InterpreterResult, address *common.Address) *CreateOutcome {
	return &CreateOutcome{Result: result, Address: address}
}
