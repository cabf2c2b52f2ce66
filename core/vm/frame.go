package vm

import "github.com/ethereum/go-ethereum/common"

// FrameKind tags a frame as a message call or a contract creation.
type FrameKind uint8

const (
	FrameCall FrameKind = iota
	FrameCreate
)

func (k FrameKind) String() string {
	if k == FrameCreate {
		return "create"
	}
	return "call"
}

// Frame is one entry of the execution stack.
type Frame struct {
	Kind FrameKind

	// CreatedAddress is the address the code of a create frame is deployed at.
	CreatedAddress common.Address
	// ReportedAddress, when set, is handed to the parent or the transaction
	// result in place of CreatedAddress. Code is still deployed at
	// CreatedAddress.
	ReportedAddress *common.Address
	// ReturnMemoryRange is where the output of a call frame goes in the
	// parent's memory.
	ReturnMemoryRange MemoryRange

	Checkpoint  Checkpoint
	Interpreter *Interpreter
}

// CreatedAddressPtr returns the created address of a create frame and nil for
// call frames.
func (f *Frame) CreatedAddressPtr() *common.Address {
	if f.Kind != FrameCreate {
		return nil
	}
	addr := f.CreatedAddress
	return &addr
}

// ResultAddress returns the address a finished create frame reports to its
// parent, and nil for call frames.
func (f *Frame) ResultAddress() *common.Address {
	if f.Kind == FrameCreate && f.ReportedAddress != nil {
		addr := *f.ReportedAddress
		return &addr
	}
	return f.CreatedAddressPtr()
}

// FrameResult is the result of a frame that finished, or was never built.
type FrameResult struct {
	Kind   FrameKind
	Result InterpreterResult

	MemoryRange MemoryRange     // call only
	Address     *common.Address // create only
}

// NewCallResult wraps a call outcome.
func NewCallResult(outcome *CallOutcome) *FrameResult {
	return &FrameResult{Kind: FrameCall, Result: outcome.Result(), MemoryRange: outcome.MemoryOffset()}
}

// NewCreateResult wraps a create outcome.
func NewCreateResult(outcome *CreateOutcome) *FrameResult {
	return &FrameResult{Kind: FrameCreate, Result: outcome.Result, Address: outcome.Address}
}

// CallOutcome returns the result as a CallOutcome.
func (r *FrameResult) CallOutcome() *CallOutcome {
	return NewCallOutcome(r.Result, r.MemoryRange)
}

// CreateOutcome returns the result as a CreateOutcome.
func (r *FrameResult) CreateOutcome() *CreateOutcome {
	return NewCreateOutcome(r.Result, r.Address)
}

// FrameOrResult holds exactly one of a new frame to push or an immediate
// result.
type FrameOrResult struct {
	Frame  *Frame
	Result *FrameResult
}
