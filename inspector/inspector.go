// Package inspector instruments the EVM in core/vm. Register wraps every
// instruction of a handler and its frame lifecycle so that an Inspector sees
// each step, nested call, create, log and selfdestruct, and may replace the
// result of calls and creates.
package inspector

import (
	"github.com/clydemeng/evminspect/core/vm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// Inspector observes and optionally steers an execution. All hooks run
// synchronously on the executing goroutine and must not retain the
// interpreter or context after returning.
type Inspector interface {
	// InitializeInterp is called once for every nested frame before it runs.
	InitializeInterp(in *vm.Interpreter, ctx *vm.Context)

	// Step is called before each instruction with the PC at the opcode. Setting
	// in.InstructionResult to anything but Continue halts the frame without
	// executing the instruction.
	Step(in *vm.Interpreter, ctx *vm.Context)

	// StepEnd is called after each executed instruction.
	StepEnd(in *vm.Interpreter, ctx *vm.Context)

	// Log is called after a LOG instruction appended l to the journal.
	Log(ctx *vm.Context, l *types.Log)

	// Call is called before a call frame is built. A non-nil outcome is used
	// as the result of the call and no frame is built.
	Call(ctx *vm.Context, inputs *vm.CallInputs) *vm.CallOutcome

	// CallEnd is called when a call completes and returns the result the
	// caller sees.
	CallEnd(ctx *vm.Context, result vm.InterpreterResult) vm.InterpreterResult

	// Create is the create counterpart of Call.
	Create(ctx *vm.Context, inputs *vm.CreateInputs) *vm.CreateOutcome

	// CreateEnd is the create counterpart of CallEnd. A non-nil returned
	// address replaces the created address.
	CreateEnd(ctx *vm.Context, result vm.InterpreterResult, address *common.Address) (vm.InterpreterResult, *common.Address)

	// Selfdestruct is called after contract was destroyed and its balance
	// value moved to target.
	Selfdestruct(contract, target common.Address, value *uint256.Int)
}

// NoOpInspector implements every hook as a no-op. Embed it to implement only
// the hooks you need.
type NoOpInspector struct{}

func (NoOpInspector) InitializeInterp(*vm.Interpreter, *vm.Context) {}
func (NoOpInspector) Step(*vm.Interpreter, *vm.Context)             {}
func (NoOpInspector) StepEnd(*vm.Interpreter, *vm.Context)          {}
func (NoOpInspector) Log(*vm.Context, *types.Log)                   {}

func (NoOpInspector) Call(*vm.Context, *vm.CallInputs) *vm.CallOutcome { return nil }

func (NoOpInspector) CallEnd(_ *vm.Context, result vm.InterpreterResult) vm.InterpreterResult {
	return result
}

func (NoOpInspector) Create(*vm.Context, *vm.CreateInputs) *vm.CreateOutcome { return nil }

func (NoOpInspector) CreateEnd(_ *vm.Context, result vm.InterpreterResult, address *common.Address) (vm.InterpreterResult, *common.Address) {
	return result, address
}

func (NoOpInspector) Selfdestruct(common.Address, common.Address, *uint256.Int) {}

var _ Inspector = NoOpInspector{}
