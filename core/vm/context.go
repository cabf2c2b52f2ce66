package vm

import (
	"github.com/clydemeng/evminspect/tracing"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
)

// Context is the host side of an execution: environment, journal and
// database. It is owned by the EVM and passed to every instruction and hook.
type Context struct {
	Env     *Env
	Journal *JournaledState
	DB      Database

	// Error is the first database error hit during execution. It turns the
	// running frame into a FatalExternalError.
	Error error
}

// NewContext returns a context over db.
func NewContext(env *Env, db Database) *Context {
	return &Context{
		Env:     env,
		Journal: NewJournaledState(env.Cfg.Spec),
		DB:      db,
	}
}

// Spec returns the active fork.
func (c *Context) Spec() SpecID { return c.Env.Cfg.Spec }

func (c *Context) fail(err error) InstructionResult {
	if c.Error == nil {
		c.Error = err
	}
	return FatalExternalError
}

// MakeCallFrame prepares the frame for a message call. Calls that cannot run
// (too deep, insufficient funds, no code) complete immediately.
func (c *Context) MakeCallFrame(inputs *CallInputs, returnRange MemoryRange) FrameOrResult {
	gas := NewGas(inputs.GasLimit)
	result := func(r InstructionResult) FrameOrResult {
		return FrameOrResult{Result: NewCallResult(NewCallOutcome(InterpreterResult{Result: r, Gas: gas}, returnRange))}
	}
	if c.Journal.Depth() > int(params.CallCreateDepth) {
		return result(CallTooDeep)
	}
	acc, err := c.Journal.LoadCode(c.DB, inputs.Contract)
	if err != nil {
		return result(c.fail(err))
	}
	code, codeHash := acc.Info.Code, acc.Info.CodeHash
	cp := c.Journal.Checkpoint()
	res, err := c.Journal.Transfer(c.DB, inputs.Caller, inputs.Contract, &inputs.Value, tracing.BalanceChangeTransfer)
	if err != nil {
		c.Journal.CheckpointRevert(cp)
		return result(c.fail(err))
	}
	if res != Continue {
		c.Journal.CheckpointRevert(cp)
		return result(res)
	}
	if len(code) == 0 {
		c.Journal.CheckpointCommit()
		return result(Stop)
	}
	contract := NewContract(inputs.Input, code, codeHash, inputs.Contract, inputs.Caller, &inputs.Value)
	log.Trace("Call frame", "depth", c.Journal.Depth(), "to", inputs.Contract, "gas", inputs.GasLimit)
	return FrameOrResult{Frame: &Frame{
		Kind:              FrameCall,
		ReturnMemoryRange: returnRange,
		Checkpoint:        cp,
		Interpreter:       NewInterpreter(contract, gas.Limit(), inputs.IsStatic),
	}}
}

// MakeCreateFrame prepares the frame running the init code of a new contract.
func (c *Context) MakeCreateFrame(inputs *CreateInputs) FrameOrResult {
	gas := NewGas(inputs.GasLimit)
	result := func(r InstructionResult) FrameOrResult {
		return FrameOrResult{Result: NewCreateResult(NewCreateOutcome(InterpreterResult{Result: r, Gas: gas}, nil))}
	}
	if c.Journal.Depth() > int(params.CallCreateDepth) {
		return result(CallTooDeep)
	}
	caller, err := c.Journal.LoadAccount(c.DB, inputs.Caller)
	if err != nil {
		return result(c.fail(err))
	}
	if caller.Info.Balance.Lt(&inputs.Value) {
		return result(OutOfFunds)
	}
	nonce := caller.Info.Nonce
	if !c.Journal.IncNonce(inputs.Caller, tracing.NonceChangeContractCreator) {
		return result(Return)
	}
	address := inputs.CreatedAddress(nonce)
	cp, res, err := c.Journal.CreateAccountCheckpoint(c.DB, inputs.Caller, address, &inputs.Value)
	if err != nil {
		return result(c.fail(err))
	}
	if res != Continue {
		return result(res)
	}
	contract := NewContract(nil, inputs.InitCode, crypto.Keccak256Hash(inputs.InitCode), address, inputs.Caller, &inputs.Value)
	log.Trace("Create frame", "depth", c.Journal.Depth(), "address", address, "gas", inputs.GasLimit)
	return FrameOrResult{Frame: &Frame{
		Kind:           FrameCreate,
		CreatedAddress: address,
		Checkpoint:     cp,
		Interpreter:    NewInterpreter(contract, gas.Limit(), false),
	}}
}

// CallReturn settles the checkpoint of a finished call frame.
func (c *Context) CallReturn(result InterpreterResult, cp Checkpoint) InterpreterResult {
	if result.IsOk() {
		c.Journal.CheckpointCommit()
	} else {
		c.Journal.CheckpointRevert(cp)
	}
	return result
}

// CreateReturn settles the checkpoint of a finished create frame and deploys
// the returned code.
func (c *Context) CreateReturn(result InterpreterResult, address common.Address, cp Checkpoint) InterpreterResult {
	if !result.IsOk() {
		c.Journal.CheckpointRevert(cp)
		return result
	}
	spec := c.Spec()
	if spec.Enabled(London) && len(result.Output) > 0 && result.Output[0] == 0xEF {
		c.Journal.CheckpointRevert(cp)
		result.Result = CreateContractStartingWithEF
		return result
	}
	if spec.Enabled(SpuriousDragon) && len(result.Output) > params.MaxCodeSize {
		c.Journal.CheckpointRevert(cp)
		result.Result = CreateContractSizeLimit
		return result
	}
	if !result.Gas.RecordCost(uint64(len(result.Output)) * params.CreateDataGas) {
		if spec.Enabled(Homestead) {
			c.Journal.CheckpointRevert(cp)
			result.Result = OutOfGas
			return result
		}
		result.Output = nil
	}
	c.Journal.CheckpointCommit()
	c.Journal.SetCode(address, result.Output)
	result.Result = Return
	return result
}
