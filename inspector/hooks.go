package inspector

import (
	"errors"
	"math/big"

	"github.com/clydemeng/evminspect/core/vm"
	"github.com/ethereum/go-ethereum/common"
	gethtracing "github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	gethvm "github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"
)

// HooksInspector drives go-ethereum tracing hooks from inspector callbacks so
// that tracers written against core/tracing can observe this interpreter.
//
// OnOpcode fires after the instruction ran, when its cost is known; the scope
// then reflects the state after the instruction. OnFault fires in addition
// for instructions that halted with an error.
type HooksInspector struct {
	NoOpInspector

	hooks *gethtracing.Hooks
	gas   GasInspector
	depth int

	pc uint64
	op byte
}

// NewHooksInspector returns an inspector calling hooks. Nil hook fields are
// skipped.
func NewHooksInspector(hooks *gethtracing.Hooks) *HooksInspector {
	if hooks == nil {
		hooks = new(gethtracing.Hooks)
	}
	return &HooksInspector{hooks: hooks}
}

func (h *HooksInspector) InitializeInterp(in *vm.Interpreter, ctx *vm.Context) {
	h.gas.InitializeInterp(in, ctx)
}

func (h *HooksInspector) Step(in *vm.Interpreter, ctx *vm.Context) {
	h.gas.Step(in, ctx)
	h.pc, h.op = in.PC, in.CurrentOpcode()
}

func (h *HooksInspector) StepEnd(in *vm.Interpreter, ctx *vm.Context) {
	before := h.gas.GasRemaining()
	h.gas.StepEnd(in, ctx)
	cost := h.gas.LastGasCost()
	err := gethError(in.InstructionResult)
	if h.hooks.OnOpcode != nil {
		h.hooks.OnOpcode(h.pc, h.op, before, cost, in, in.ReturnData, h.depth, err)
	}
	if err != nil && in.InstructionResult.IsError() && h.hooks.OnFault != nil {
		h.hooks.OnFault(h.pc, h.op, before, cost, in, h.depth, err)
	}
}

func (h *HooksInspector) Call(_ *vm.Context, inputs *vm.CallInputs) *vm.CallOutcome {
	if h.hooks.OnEnter != nil {
		typ := gethvm.CALL
		if inputs.Scheme == vm.CallSchemeStaticCall {
			typ = gethvm.STATICCALL
		}
		h.hooks.OnEnter(h.depth, byte(typ), inputs.Caller, inputs.Contract, inputs.Input, inputs.GasLimit, inputs.Value.ToBig())
	}
	h.depth++
	return nil
}

func (h *HooksInspector) CallEnd(ctx *vm.Context, result vm.InterpreterResult) vm.InterpreterResult {
	result = h.gas.CallEnd(ctx, result)
	h.exit(result)
	return result
}

func (h *HooksInspector) Create(ctx *vm.Context, inputs *vm.CreateInputs) *vm.CreateOutcome {
	if h.hooks.OnEnter != nil {
		var nonce uint64
		if acc, err := ctx.Journal.LoadAccount(ctx.DB, inputs.Caller); err == nil {
			nonce = acc.Info.Nonce
		}
		typ := gethvm.CREATE
		if inputs.Scheme == vm.CreateSchemeCreate2 {
			typ = gethvm.CREATE2
		}
		h.hooks.OnEnter(h.depth, byte(typ), inputs.Caller, inputs.CreatedAddress(nonce), inputs.InitCode, inputs.GasLimit, inputs.Value.ToBig())
	}
	h.depth++
	return nil
}

func (h *HooksInspector) CreateEnd(ctx *vm.Context, result vm.InterpreterResult, address *common.Address) (vm.InterpreterResult, *common.Address) {
	result = h.gas.CallEnd(ctx, result)
	h.exit(result)
	return result, address
}

func (h *HooksInspector) exit(result vm.InterpreterResult) {
	h.depth--
	if h.hooks.OnExit != nil {
		h.hooks.OnExit(h.depth, result.Output, result.Gas.Spent(), gethError(result.Result), result.IsRevert())
	}
}

func (h *HooksInspector) Log(_ *vm.Context, l *types.Log) {
	if h.hooks.OnLog != nil {
		h.hooks.OnLog(l)
	}
}

// Selfdestruct is reported the way go-ethereum reports it: as a zero gas
// SELFDESTRUCT frame plus the balance leaving the contract.
func (h *HooksInspector) Selfdestruct(contract, target common.Address, value *uint256.Int) {
	if h.hooks.OnEnter != nil {
		h.hooks.OnEnter(h.depth, byte(gethvm.SELFDESTRUCT), contract, target, nil, 0, value.ToBig())
	}
	if h.hooks.OnExit != nil {
		h.hooks.OnExit(h.depth, nil, 0, nil, false)
	}
	if h.hooks.OnBalanceChange != nil && !value.IsZero() {
		h.hooks.OnBalanceChange(contract, value.ToBig(), new(big.Int), gethtracing.BalanceDecreaseSelfdestruct)
	}
}

// gethError maps a halting status onto the go-ethereum error tracers expect.
func gethError(r vm.InstructionResult) error {
	switch r {
	case vm.Continue, vm.Stop, vm.Return, vm.SelfDestruct, vm.CallOrCreate:
		return nil
	case vm.Revert:
		return gethvm.ErrExecutionReverted
	case vm.CallTooDeep:
		return gethvm.ErrDepth
	case vm.OutOfFunds:
		return gethvm.ErrInsufficientBalance
	case vm.OutOfGas, vm.MemoryOOG:
		return gethvm.ErrOutOfGas
	case vm.StackUnderflow:
		return &gethvm.ErrStackUnderflow{}
	case vm.StackOverflow:
		return &gethvm.ErrStackOverflow{}
	case vm.InvalidJump:
		return gethvm.ErrInvalidJump
	case vm.InvalidOpcode, vm.OpcodeNotFound:
		return &gethvm.ErrInvalidOpCode{}
	case vm.StateChangeDuringStaticCall:
		return gethvm.ErrWriteProtection
	case vm.CreateCollision:
		return gethvm.ErrContractAddressCollision
	case vm.CreateContractSizeLimit:
		return gethvm.ErrMaxCodeSizeExceeded
	case vm.CreateContractStartingWithEF:
		return gethvm.ErrInvalidCode
	case vm.CreateInitCodeSizeLimit:
		return gethvm.ErrMaxInitCodeSizeExceeded
	case vm.OutOfOffset:
		return gethvm.ErrReturnDataOutOfBounds
	}
	return errors.New(r.String())
}
