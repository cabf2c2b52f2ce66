package vm

import (
	"errors"
	"fmt"

	"github.com/clydemeng/evminspect/tracing"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
)

var (
	ErrIntrinsicGas      = errors.New("intrinsic gas too low")
	ErrInsufficientFunds = errors.New("insufficient funds for gas * price + value")
	ErrNonceMismatch     = errors.New("nonce mismatch")
	ErrNonceMax          = errors.New("nonce has max value")
	ErrNoCommit          = errors.New("database does not support commit")
)

// ResultKind classifies how a transaction ended.
type ResultKind uint8

const (
	ResultSuccess ResultKind = iota
	ResultRevert
	ResultHalt
)

func (k ResultKind) String() string {
	switch k {
	case ResultSuccess:
		return "success"
	case ResultRevert:
		return "revert"
	default:
		return "halt"
	}
}

// ExecutionResult is the outcome of a transaction after gas settlement.
type ExecutionResult struct {
	Kind        ResultKind
	Reason      InstructionResult
	GasUsed     uint64
	GasRefunded uint64
	Logs        []*types.Log // success only
	Output      []byte
	// ContractAddress is set for successful creations.
	ContractAddress *common.Address
}

func (r *ExecutionResult) IsSuccess() bool { return r.Kind == ResultSuccess }

// ResultAndState bundles the execution result with the state it produced.
// Frame is the result of the first frame as returned by the execution loop.
type ResultAndState struct {
	Result ExecutionResult
	State  State
	Frame  *FrameResult
}

// EVM drives a transaction through a Handler.
type EVM struct {
	Context *Context
	Handler *Handler
}

// NewEVM returns an EVM with the default handler for env's fork.
func NewEVM(env *Env, db Database) *EVM {
	return &EVM{
		Context: NewContext(env, db),
		Handler: NewHandler(env.Cfg.Spec),
	}
}

// IntrinsicGas returns the gas charged before any code runs.
func IntrinsicGas(spec SpecID, tx *TxEnv) uint64 {
	gas := params.TxGas
	if tx.IsCreate() && spec.Enabled(Homestead) {
		gas = params.TxGasContractCreation
	}
	nonZeroGas := params.TxDataNonZeroGasFrontier
	if spec.Enabled(Istanbul) {
		nonZeroGas = params.TxDataNonZeroGasEIP2028
	}
	for _, b := range tx.Data {
		if b == 0 {
			gas += params.TxDataZeroGas
		} else {
			gas += nonZeroGas
		}
	}
	if tx.IsCreate() && spec.Enabled(Shanghai) {
		gas += params.InitCodeWordGas * toWordSize(uint64(len(tx.Data)))
	}
	return gas
}

// Transact executes the transaction in the environment and returns the
// result together with the changed state. The database is not modified.
func (evm *EVM) Transact() (res *ResultAndState, err error) {
	ctx := evm.Context
	ctx.Error = nil
	defer func() {
		if err != nil {
			ctx.Journal.Finalize()
		}
	}()

	spec := ctx.Spec()
	tx := &ctx.Env.Tx
	intrinsic := IntrinsicGas(spec, tx)
	if tx.GasLimit < intrinsic {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrIntrinsicGas, tx.GasLimit, intrinsic)
	}
	if err := evm.buyGas(tx); err != nil {
		return nil, err
	}

	first := evm.Handler.ExecutionLoop.CreateFirstFrame(ctx, tx.GasLimit-intrinsic)
	var frameResult *FrameResult
	if first.Frame != nil {
		frameResult = evm.runFrames(first.Frame)
	} else {
		frameResult = first.Result
	}
	if ctx.Error != nil {
		return nil, fmt.Errorf("execution aborted: %w", ctx.Error)
	}
	return evm.settle(tx, frameResult)
}

// buyGas validates the sender and deducts gas * price up front.
func (evm *EVM) buyGas(tx *TxEnv) error {
	ctx := evm.Context
	caller, err := ctx.Journal.LoadAccount(ctx.DB, tx.Caller)
	if err != nil {
		return err
	}
	if !ctx.Env.Cfg.DisableNonceCheck && tx.Nonce != nil && *tx.Nonce != caller.Info.Nonce {
		return fmt.Errorf("%w: address %s, tx %d, state %d", ErrNonceMismatch, tx.Caller, *tx.Nonce, caller.Info.Nonce)
	}
	fee := new(uint256.Int).Mul(uint256.NewInt(tx.GasLimit), &tx.GasPrice)
	cost := new(uint256.Int).Add(fee, &tx.Value)
	if caller.Info.Balance.Lt(cost) {
		if !ctx.Env.Cfg.DisableBalanceCheck {
			return fmt.Errorf("%w: address %s have %s want %s", ErrInsufficientFunds, tx.Caller, &caller.Info.Balance, cost)
		}
		caller.Info.Balance.Set(cost)
	}
	caller.Info.Balance.Sub(&caller.Info.Balance, fee)
	ctx.Journal.Touch(tx.Caller)
	if !tx.IsCreate() && !ctx.Journal.IncNonce(tx.Caller, tracing.NonceChangeTransaction) {
		return ErrNonceMax
	}
	return nil
}

// runFrames executes frames on an explicit stack until the first frame
// returns.
func (evm *EVM) runFrames(first *Frame) *FrameResult {
	table := evm.Handler.InstructionTable
	if table == nil {
		panic("vm: handler has no instruction table")
	}
	ctx, loop := evm.Context, &evm.Handler.ExecutionLoop
	stack := []*Frame{first}
	for {
		frame := stack[len(stack)-1]
		action := frame.Interpreter.Run(table, ctx)
		switch action.Kind {
		case ActionCall:
			if child := loop.SubCall(ctx, action.CallInputs, frame, action.ReturnMemoryRange); child != nil {
				stack = append(stack, child)
			}
		case ActionCreate:
			if child := loop.SubCreate(ctx, frame, action.CreateInputs); child != nil {
				stack = append(stack, child)
			}
		case ActionReturn:
			stack = stack[:len(stack)-1]
			var parent *Frame
			if len(stack) > 0 {
				parent = stack[len(stack)-1]
			}
			res := loop.FrameReturn(ctx, frame, parent, action.Result)
			if parent == nil {
				if res == nil {
					res = &FrameResult{Kind: frame.Kind, Result: action.Result, MemoryRange: frame.ReturnMemoryRange, Address: frame.ResultAddress()}
				}
				return res
			}
		}
	}
}

// settle reimburses unused gas, pays the coinbase and builds the result.
func (evm *EVM) settle(tx *TxEnv, frame *FrameResult) (*ResultAndState, error) {
	ctx := evm.Context
	result := frame.Result

	gas := NewGasSpent(tx.GasLimit)
	switch {
	case result.IsOk():
		gas.EraseCost(result.Gas.Remaining())
		gas.RecordRefund(result.Gas.Refunded())
	case result.IsRevert():
		gas.EraseCost(result.Gas.Remaining())
	}
	quotient := params.RefundQuotient
	if ctx.Spec().Enabled(London) {
		quotient = params.RefundQuotientEIP3529
	}
	var refund uint64
	if gas.Refunded() > 0 {
		refund = min(uint64(gas.Refunded()), gas.Spent()/quotient)
	}

	caller, err := ctx.Journal.LoadAccount(ctx.DB, tx.Caller)
	if err != nil {
		return nil, err
	}
	reimburse := new(uint256.Int).Mul(uint256.NewInt(gas.Remaining()+refund), &tx.GasPrice)
	caller.Info.Balance.Add(&caller.Info.Balance, reimburse)

	coinbase, err := ctx.Journal.LoadAccount(ctx.DB, ctx.Env.Block.Coinbase)
	if err != nil {
		return nil, err
	}
	reward := new(uint256.Int).Mul(uint256.NewInt(gas.Spent()-refund), &tx.GasPrice)
	coinbase.Info.Balance.Add(&coinbase.Info.Balance, reward)
	ctx.Journal.Touch(ctx.Env.Block.Coinbase)

	state, logs := ctx.Journal.Finalize()
	out := ExecutionResult{
		Reason:      result.Result,
		GasUsed:     gas.Spent() - refund,
		GasRefunded: refund,
		Output:      result.Output,
	}
	switch {
	case result.IsOk():
		out.Kind = ResultSuccess
		out.Logs = logs
		if frame.Kind == FrameCreate {
			out.ContractAddress = frame.Address
		}
	case result.IsRevert():
		out.Kind = ResultRevert
	default:
		out.Kind = ResultHalt
		out.Output = nil
	}
	log.Debug("Transaction executed", "result", out.Kind, "reason", out.Reason, "gasUsed", out.GasUsed, "refund", refund)
	return &ResultAndState{Result: out, State: state, Frame: frame}, nil
}

// TransactCommit executes the transaction and commits the resulting state to
// the database.
func (evm *EVM) TransactCommit() (*ExecutionResult, error) {
	committer, ok := evm.Context.DB.(DatabaseCommit)
	if !ok {
		return nil, ErrNoCommit
	}
	res, err := evm.Transact()
	if err != nil {
		return nil, err
	}
	committer.Commit(res.State)
	return &res.Result, nil
}
