package vm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
)

// Storage and account access are priced as warm from Berlin on; access lists
// are not tracked.
func sloadGas(spec SpecID) uint64 {
	switch {
	case spec.Enabled(Berlin):
		return params.WarmStorageReadCostEIP2929
	case spec.Enabled(Istanbul):
		return params.SloadGasEIP2200
	case spec.Enabled(Tangerine):
		return params.SloadGasEIP150
	default:
		return params.SloadGasFrontier
	}
}

func opSload(in *Interpreter, ctx *Context) {
	if !in.require(1) || !in.gas(sloadGas(ctx.Spec())) {
		return
	}
	key := in.Stack.Peek(0)
	val, err := ctx.Journal.SLoad(ctx.DB, in.Contract.Address, common.Hash(key.Bytes32()))
	if err != nil {
		in.InstructionResult = ctx.fail(err)
		return
	}
	key.Set(&val)
}

func opSstore(in *Interpreter, ctx *Context) {
	if !in.notStatic() || !in.require(2) {
		return
	}
	spec := ctx.Spec()
	if spec.Enabled(Istanbul) && in.Gas.Remaining() <= params.SstoreSentryGasEIP2200 {
		in.InstructionResult = OutOfGas
		return
	}
	key, val := in.pop(), in.pop()
	slotKey := common.Hash(key.Bytes32())
	current, err := ctx.Journal.SLoad(ctx.DB, in.Contract.Address, slotKey)
	if err != nil {
		in.InstructionResult = ctx.fail(err)
		return
	}
	original := ctx.Journal.State[in.Contract.Address].Storage[slotKey].Original

	var cost uint64
	switch {
	case current == val:
		cost = sloadGas(spec)
	case original == current && original.IsZero():
		cost = params.SstoreSetGas
	case original == current:
		cost = params.SstoreResetGas
	default:
		cost = sloadGas(spec)
	}
	if !in.gas(cost) {
		return
	}
	if !current.IsZero() && val.IsZero() {
		if spec.Enabled(London) {
			in.Gas.RecordRefund(int64(params.SstoreClearsScheduleRefundEIP3529))
		} else {
			in.Gas.RecordRefund(int64(params.SstoreClearsScheduleRefundEIP2200))
		}
	}
	if _, err := ctx.Journal.SStore(ctx.DB, in.Contract.Address, slotKey, &val); err != nil {
		in.InstructionResult = ctx.fail(err)
	}
}

// makeLog builds LOG0..LOG4. Offset and size are taken and paid for before
// the topics are checked, so a short stack fails without journaling a log.
func makeLog(n int) Instruction {
	return func(in *Interpreter, ctx *Context) {
		if !in.notStatic() || !in.require(2) {
			return
		}
		offset, size := in.pop(), in.pop()
		off, sz, ok := memoryRange(&offset, &size)
		if !ok {
			in.InstructionResult = OutOfGas
			return
		}
		if !in.gas(params.LogGas + params.LogTopicGas*uint64(n) + params.LogDataGas*sz) {
			return
		}
		if !in.expandMemory(off, sz) {
			return
		}
		data := in.Memory.GetCopy(off, sz)
		if !in.require(n) {
			return
		}
		topics := make([]common.Hash, n)
		for i := range topics {
			t := in.pop()
			topics[i] = t.Bytes32()
		}
		ctx.Journal.Log(&types.Log{
			Address:     in.Contract.Address,
			Topics:      topics,
			Data:        data,
			BlockNumber: ctx.Env.Block.Number,
		})
	}
}

// makeReturn builds RETURN and REVERT.
func makeReturn(status InstructionResult) Instruction {
	return func(in *Interpreter, ctx *Context) {
		if !in.require(2) {
			return
		}
		offset, size := in.pop(), in.pop()
		off, sz, ok := in.memoryArgs(&offset, &size)
		if !ok {
			return
		}
		in.output = in.Memory.GetCopy(off, sz)
		in.InstructionResult = status
	}
}

func callBaseGas(spec SpecID) uint64 {
	switch {
	case spec.Enabled(Berlin):
		return params.WarmStorageReadCostEIP2929
	case spec.Enabled(Tangerine):
		return params.CallGasEIP150
	default:
		return params.CallGasFrontier
	}
}

// makeCall builds CALL and STATICCALL. The instruction only prepares the
// inputs; the execution loop builds the frame.
func makeCall(scheme CallScheme) Instruction {
	return func(in *Interpreter, ctx *Context) {
		n := 7
		if scheme == CallSchemeStaticCall {
			n = 6
		}
		if !in.require(n) {
			return
		}
		gasReq, addr := in.pop(), in.pop()
		var value uint256.Int
		if scheme == CallSchemeCall {
			value = in.pop()
			if in.IsStatic && !value.IsZero() {
				in.InstructionResult = StateChangeDuringStaticCall
				return
			}
		}
		inOffset, inSize, outOffset, outSize := in.pop(), in.pop(), in.pop(), in.pop()
		inOff, inSz, ok := in.memoryArgs(&inOffset, &inSize)
		if !ok {
			return
		}
		outOff, outSz, ok := in.memoryArgs(&outOffset, &outSize)
		if !ok {
			return
		}
		input := in.Memory.GetCopy(inOff, inSz)

		spec := ctx.Spec()
		to := wordToAddress(&addr)
		target, err := ctx.Journal.LoadAccount(ctx.DB, to)
		if err != nil {
			in.InstructionResult = ctx.fail(err)
			return
		}
		cost := callBaseGas(spec)
		if !value.IsZero() {
			cost += params.CallValueTransferGas
		}
		if scheme == CallSchemeCall {
			empty := !target.Exists() || target.Info.IsEmpty()
			if spec.Enabled(SpuriousDragon) {
				if !value.IsZero() && empty {
					cost += params.CallNewAccountGas
				}
			} else if !target.Exists() {
				cost += params.CallNewAccountGas
			}
		}
		if !in.gas(cost) {
			return
		}

		var gasLimit uint64
		if spec.Enabled(Tangerine) {
			available := in.Gas.Remaining()
			available -= available / 64
			gasLimit = available
			if gasReq.IsUint64() && gasReq.Uint64() < available {
				gasLimit = gasReq.Uint64()
			}
		} else {
			if !gasReq.IsUint64() {
				in.InstructionResult = OutOfGas
				return
			}
			gasLimit = gasReq.Uint64()
		}
		if !in.gas(gasLimit) {
			return
		}
		if !value.IsZero() {
			gasLimit += params.CallStipend
		}

		in.NextAction = InterpreterAction{
			Kind: ActionCall,
			CallInputs: &CallInputs{
				Contract: to,
				Caller:   in.Contract.Address,
				Value:    value,
				Input:    input,
				GasLimit: gasLimit,
				Scheme:   scheme,
				IsStatic: in.IsStatic || scheme == CallSchemeStaticCall,
			},
			ReturnMemoryRange: NewMemoryRange(outOff, outSz),
		}
		in.InstructionResult = CallOrCreate
	}
}

// makeCreate builds CREATE and CREATE2.
func makeCreate(scheme CreateScheme) Instruction {
	return func(in *Interpreter, ctx *Context) {
		n := 3
		if scheme == CreateSchemeCreate2 {
			n = 4
		}
		if !in.notStatic() || !in.require(n) {
			return
		}
		value, offset, size := in.pop(), in.pop(), in.pop()
		var salt uint256.Int
		if scheme == CreateSchemeCreate2 {
			salt = in.pop()
		}
		off, sz, ok := in.memoryArgs(&offset, &size)
		if !ok {
			return
		}
		spec := ctx.Spec()
		cost := params.CreateGas
		words := toWordSize(sz)
		if spec.Enabled(Shanghai) {
			if sz > params.MaxInitCodeSize {
				in.InstructionResult = CreateInitCodeSizeLimit
				return
			}
			cost += params.InitCodeWordGas * words
		}
		if scheme == CreateSchemeCreate2 {
			cost += params.Keccak256WordGas * words
		}
		if !in.gas(cost) {
			return
		}
		initCode := in.Memory.GetCopy(off, sz)

		gasLimit := in.Gas.Remaining()
		if spec.Enabled(Tangerine) {
			gasLimit -= gasLimit / 64
		}
		if !in.gas(gasLimit) {
			return
		}
		in.NextAction = InterpreterAction{
			Kind: ActionCreate,
			CreateInputs: &CreateInputs{
				Caller:   in.Contract.Address,
				Scheme:   scheme,
				Salt:     salt,
				Value:    value,
				InitCode: initCode,
				GasLimit: gasLimit,
			},
		}
		in.InstructionResult = CallOrCreate
	}
}

func opSelfdestruct(in *Interpreter, ctx *Context) {
	if !in.notStatic() || !in.require(1) {
		return
	}
	addr := in.pop()
	res, err := ctx.Journal.Selfdestruct(ctx.DB, in.Contract.Address, wordToAddress(&addr))
	if err != nil {
		in.InstructionResult = ctx.fail(err)
		return
	}
	spec := ctx.Spec()
	if !spec.Enabled(London) && !res.PreviouslyDestroyed {
		in.Gas.RecordRefund(int64(params.SelfdestructRefundGas))
	}
	var cost uint64
	if spec.Enabled(Tangerine) {
		cost = params.SelfdestructGasEIP150
		topup := !res.TargetExists
		if spec.Enabled(SpuriousDragon) {
			topup = res.HadValue && !res.TargetExists
		}
		if topup {
			cost += params.CreateBySelfdestructGas
		}
	}
	if !in.gas(cost) {
		return
	}
	in.InstructionResult = SelfDestruct
}
