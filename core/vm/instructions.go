package vm

import (
	"github.com/ethereum/go-ethereum/common"
	gethvm "github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
)

// gas charges cost and halts the frame with OutOfGas when it cannot.
func (in *Interpreter) gas(cost uint64) bool {
	if !in.Gas.RecordCost(cost) {
		in.InstructionResult = OutOfGas
		return false
	}
	return true
}

// require checks that the stack holds at least n items.
func (in *Interpreter) require(n int) bool {
	if in.Stack.Len() < n {
		in.InstructionResult = StackUnderflow
		return false
	}
	return true
}

// pop removes the top item. Callers check the stack size first.
func (in *Interpreter) pop() uint256.Int {
	v, _ := in.Stack.Pop()
	return v
}

func (in *Interpreter) notStatic() bool {
	if in.IsStatic {
		in.InstructionResult = StateChangeDuringStaticCall
		return false
	}
	return true
}

// expandMemory grows memory to cover [offset, offset+size) and charges for it.
func (in *Interpreter) expandMemory(offset, size uint64) bool {
	if size == 0 {
		return true
	}
	newSize := toWordSize(offset+size) * 32
	if newSize <= uint64(in.Memory.Len()) {
		return true
	}
	if !in.Gas.RecordCost(in.Memory.expansionCost(newSize)) {
		in.InstructionResult = MemoryOOG
		return false
	}
	in.Memory.resize(newSize)
	return true
}

// memoryArgs validates an offset/size pair and expands memory to fit it.
func (in *Interpreter) memoryArgs(offset, size *uint256.Int) (uint64, uint64, bool) {
	off, sz, ok := memoryRange(offset, size)
	if !ok {
		in.InstructionResult = OutOfGas
		return 0, 0, false
	}
	if !in.expandMemory(off, sz) {
		return 0, 0, false
	}
	return off, sz, true
}

// getData returns size bytes of data from start, zero padded past the end.
func getData(data []byte, start *uint256.Int, size uint64) []byte {
	out := make([]byte, size)
	if !start.IsUint64() || start.Uint64() >= uint64(len(data)) {
		return out
	}
	copy(out, data[start.Uint64():])
	return out
}

func addressToWord(addr common.Address) *uint256.Int {
	return new(uint256.Int).SetBytes(addr.Bytes())
}

func wordToAddress(v *uint256.Int) common.Address {
	return common.Address(v.Bytes20())
}

func opStop(in *Interpreter, ctx *Context) {
	in.InstructionResult = Stop
}

func opNotFound(in *Interpreter, ctx *Context) {
	in.InstructionResult = OpcodeNotFound
}

func opInvalid(in *Interpreter, ctx *Context) {
	in.InstructionResult = InvalidOpcode
}

// binaryOp pops a, peeks b and replaces b with f(a, b).
func binaryOp(cost uint64, f func(z, a, b *uint256.Int)) Instruction {
	return func(in *Interpreter, ctx *Context) {
		if !in.require(2) || !in.gas(cost) {
			return
		}
		a := in.pop()
		b := in.Stack.Peek(0)
		f(b, &a, b)
	}
}

func boolWord(z *uint256.Int, v bool) {
	if v {
		z.SetOne()
	} else {
		z.Clear()
	}
}

var (
	opAdd = binaryOp(gethvm.GasFastestStep, func(z, a, b *uint256.Int) { z.Add(a, b) })
	opMul = binaryOp(gethvm.GasFastStep, func(z, a, b *uint256.Int) { z.Mul(a, b) })
	opSub = binaryOp(gethvm.GasFastestStep, func(z, a, b *uint256.Int) { z.Sub(a, b) })
	opDiv = binaryOp(gethvm.GasFastStep, func(z, a, b *uint256.Int) { z.Div(a, b) })
	opMod = binaryOp(gethvm.GasFastStep, func(z, a, b *uint256.Int) { z.Mod(a, b) })
	opLt  = binaryOp(gethvm.GasFastestStep, func(z, a, b *uint256.Int) { boolWord(z, a.Lt(b)) })
	opGt  = binaryOp(gethvm.GasFastestStep, func(z, a, b *uint256.Int) { boolWord(z, a.Gt(b)) })
	opEq  = binaryOp(gethvm.GasFastestStep, func(z, a, b *uint256.Int) { boolWord(z, a.Eq(b)) })
	opAnd = binaryOp(gethvm.GasFastestStep, func(z, a, b *uint256.Int) { z.And(a, b) })
	opOr  = binaryOp(gethvm.GasFastestStep, func(z, a, b *uint256.Int) { z.Or(a, b) })
	opXor = binaryOp(gethvm.GasFastestStep, func(z, a, b *uint256.Int) { z.Xor(a, b) })

	// a is the shift amount, b the value.
	opShl = binaryOp(gethvm.GasFastestStep, func(z, a, b *uint256.Int) {
		if a.LtUint64(256) {
			z.Lsh(b, uint(a.Uint64()))
		} else {
			z.Clear()
		}
	})
	opShr = binaryOp(gethvm.GasFastestStep, func(z, a, b *uint256.Int) {
		if a.LtUint64(256) {
			z.Rsh(b, uint(a.Uint64()))
		} else {
			z.Clear()
		}
	})
)

func opIsZero(in *Interpreter, ctx *Context) {
	if !in.require(1) || !in.gas(gethvm.GasFastestStep) {
		return
	}
	x := in.Stack.Peek(0)
	boolWord(x, x.IsZero())
}

func opNot(in *Interpreter, ctx *Context) {
	if !in.require(1) || !in.gas(gethvm.GasFastestStep) {
		return
	}
	x := in.Stack.Peek(0)
	x.Not(x)
}

func opKeccak256(in *Interpreter, ctx *Context) {
	if !in.require(2) {
		return
	}
	offset, size := in.pop(), in.pop()
	off, sz, ok := in.memoryArgs(&offset, &size)
	if !ok || !in.gas(params.Keccak256Gas+params.Keccak256WordGas*toWordSize(sz)) {
		return
	}
	hash := crypto.Keccak256(in.Memory.GetCopy(off, sz))
	in.push(new(uint256.Int).SetBytes(hash))
}

// pushWord returns an instruction pushing the value produced by f.
func pushWord(cost uint64, f func(in *Interpreter, ctx *Context) *uint256.Int) Instruction {
	return func(in *Interpreter, ctx *Context) {
		if !in.gas(cost) {
			return
		}
		in.push(f(in, ctx))
	}
}

var (
	opAddress = pushWord(gethvm.GasQuickStep, func(in *Interpreter, ctx *Context) *uint256.Int {
		return addressToWord(in.Contract.Address)
	})
	opOrigin = pushWord(gethvm.GasQuickStep, func(in *Interpreter, ctx *Context) *uint256.Int {
		return addressToWord(ctx.Env.Tx.Caller)
	})
	opCaller = pushWord(gethvm.GasQuickStep, func(in *Interpreter, ctx *Context) *uint256.Int {
		return addressToWord(in.Contract.Caller)
	})
	opCallValue = pushWord(gethvm.GasQuickStep, func(in *Interpreter, ctx *Context) *uint256.Int {
		return new(uint256.Int).Set(&in.Contract.Value)
	})
	opCallDataSize = pushWord(gethvm.GasQuickStep, func(in *Interpreter, ctx *Context) *uint256.Int {
		return uint256.NewInt(uint64(len(in.Contract.Input)))
	})
	opCodeSize = pushWord(gethvm.GasQuickStep, func(in *Interpreter, ctx *Context) *uint256.Int {
		return uint256.NewInt(uint64(len(in.Contract.Code)))
	})
	opGasPrice = pushWord(gethvm.GasQuickStep, func(in *Interpreter, ctx *Context) *uint256.Int {
		return new(uint256.Int).Set(&ctx.Env.Tx.GasPrice)
	})
	opReturnDataSize = pushWord(gethvm.GasQuickStep, func(in *Interpreter, ctx *Context) *uint256.Int {
		return uint256.NewInt(uint64(len(in.ReturnData)))
	})
	opCoinbase = pushWord(gethvm.GasQuickStep, func(in *Interpreter, ctx *Context) *uint256.Int {
		return addressToWord(ctx.Env.Block.Coinbase)
	})
	opTimestamp = pushWord(gethvm.GasQuickStep, func(in *Interpreter, ctx *Context) *uint256.Int {
		return uint256.NewInt(ctx.Env.Block.Timestamp)
	})
	opNumber = pushWord(gethvm.GasQuickStep, func(in *Interpreter, ctx *Context) *uint256.Int {
		return uint256.NewInt(ctx.Env.Block.Number)
	})
	opGasLimit = pushWord(gethvm.GasQuickStep, func(in *Interpreter, ctx *Context) *uint256.Int {
		return uint256.NewInt(ctx.Env.Block.GasLimit)
	})
	opChainID = pushWord(gethvm.GasQuickStep, func(in *Interpreter, ctx *Context) *uint256.Int {
		return uint256.NewInt(ctx.Env.Cfg.ChainID)
	})
	opPc = pushWord(gethvm.GasQuickStep, func(in *Interpreter, ctx *Context) *uint256.Int {
		return uint256.NewInt(in.PC - 1)
	})
	opMsize = pushWord(gethvm.GasQuickStep, func(in *Interpreter, ctx *Context) *uint256.Int {
		return uint256.NewInt(uint64(in.Memory.Len()))
	})
	opGas = pushWord(gethvm.GasQuickStep, func(in *Interpreter, ctx *Context) *uint256.Int {
		return uint256.NewInt(in.Gas.Remaining())
	})
)

func balanceGas(spec SpecID) uint64 {
	switch {
	case spec.Enabled(Berlin):
		return params.WarmStorageReadCostEIP2929
	case spec.Enabled(Istanbul):
		return params.BalanceGasEIP1884
	case spec.Enabled(Tangerine):
		return params.BalanceGasEIP150
	default:
		return params.BalanceGasFrontier
	}
}

func opBalance(in *Interpreter, ctx *Context) {
	if !in.require(1) || !in.gas(balanceGas(ctx.Spec())) {
		return
	}
	top := in.Stack.Peek(0)
	acc, err := ctx.Journal.LoadAccount(ctx.DB, wordToAddress(top))
	if err != nil {
		in.InstructionResult = ctx.fail(err)
		return
	}
	top.Set(&acc.Info.Balance)
}

func opSelfBalance(in *Interpreter, ctx *Context) {
	if !in.gas(gethvm.GasFastStep) {
		return
	}
	acc, err := ctx.Journal.LoadAccount(ctx.DB, in.Contract.Address)
	if err != nil {
		in.InstructionResult = ctx.fail(err)
		return
	}
	in.push(new(uint256.Int).Set(&acc.Info.Balance))
}

func opBlockhash(in *Interpreter, ctx *Context) {
	if !in.require(1) || !in.gas(gethvm.GasExtStep) {
		return
	}
	num := in.Stack.Peek(0)
	current := ctx.Env.Block.Number
	if !num.IsUint64() || num.Uint64() >= current || current-num.Uint64() > 256 {
		num.Clear()
		return
	}
	hash, err := ctx.DB.BlockHash(num.Uint64())
	if err != nil {
		in.InstructionResult = ctx.fail(err)
		return
	}
	num.SetBytes(hash.Bytes())
}

func opCallDataLoad(in *Interpreter, ctx *Context) {
	if !in.require(1) || !in.gas(gethvm.GasFastestStep) {
		return
	}
	x := in.Stack.Peek(0)
	x.SetBytes(getData(in.Contract.Input, x, 32))
}

// makeCopy builds CALLDATACOPY, CODECOPY and RETURNDATACOPY.
func makeCopy(source func(in *Interpreter) []byte, strict bool) Instruction {
	return func(in *Interpreter, ctx *Context) {
		if !in.require(3) {
			return
		}
		memOffset, dataOffset, length := in.pop(), in.pop(), in.pop()
		if !in.gas(gethvm.GasFastestStep) {
			return
		}
		src := source(in)
		if strict {
			end, overflow := new(uint256.Int).AddOverflow(&dataOffset, &length)
			if overflow || !end.IsUint64() || end.Uint64() > uint64(len(src)) {
				in.InstructionResult = OutOfOffset
				return
			}
		}
		off, sz, ok := memoryRange(&memOffset, &length)
		if !ok {
			in.InstructionResult = OutOfGas
			return
		}
		if !in.gas(params.CopyGas*toWordSize(sz)) || !in.expandMemory(off, sz) {
			return
		}
		in.Memory.Set(off, getData(src, &dataOffset, sz))
	}
}

var (
	opCallDataCopy   = makeCopy(func(in *Interpreter) []byte { return in.Contract.Input }, false)
	opCodeCopy       = makeCopy(func(in *Interpreter) []byte { return in.Contract.Code }, false)
	opReturnDataCopy = makeCopy(func(in *Interpreter) []byte { return in.ReturnData }, true)
)

func opPop(in *Interpreter, ctx *Context) {
	if !in.require(1) || !in.gas(gethvm.GasQuickStep) {
		return
	}
	in.pop()
}

func opMload(in *Interpreter, ctx *Context) {
	if !in.require(1) || !in.gas(gethvm.GasFastestStep) {
		return
	}
	top := in.Stack.Peek(0)
	off, _, ok := in.memoryArgs(top, uint256.NewInt(32))
	if !ok {
		return
	}
	top.SetBytes(in.Memory.GetCopy(off, 32))
}

func opMstore(in *Interpreter, ctx *Context) {
	if !in.require(2) || !in.gas(gethvm.GasFastestStep) {
		return
	}
	offset, val := in.pop(), in.pop()
	off, _, ok := in.memoryArgs(&offset, uint256.NewInt(32))
	if !ok {
		return
	}
	in.Memory.Set32(off, &val)
}

func opMstore8(in *Interpreter, ctx *Context) {
	if !in.require(2) || !in.gas(gethvm.GasFastestStep) {
		return
	}
	offset, val := in.pop(), in.pop()
	off, _, ok := in.memoryArgs(&offset, uint256.NewInt(1))
	if !ok {
		return
	}
	in.Memory.store[off] = byte(val.Uint64())
}

func opJump(in *Interpreter, ctx *Context) {
	if !in.require(1) || !in.gas(gethvm.GasMidStep) {
		return
	}
	dest := in.pop()
	if !in.Contract.validJumpdest(&dest) {
		in.InstructionResult = InvalidJump
		return
	}
	in.PC = dest.Uint64()
}

func opJumpi(in *Interpreter, ctx *Context) {
	if !in.require(2) || !in.gas(gethvm.GasSlowStep) {
		return
	}
	dest, cond := in.pop(), in.pop()
	if cond.IsZero() {
		return
	}
	if !in.Contract.validJumpdest(&dest) {
		in.InstructionResult = InvalidJump
		return
	}
	in.PC = dest.Uint64()
}

func opJumpdest(in *Interpreter, ctx *Context) {
	in.gas(params.JumpdestGas)
}

func opPush0(in *Interpreter, ctx *Context) {
	if !in.gas(gethvm.GasQuickStep) {
		return
	}
	in.push(new(uint256.Int))
}

// makePush reads n immediate bytes following the opcode.
func makePush(n uint64) Instruction {
	return func(in *Interpreter, ctx *Context) {
		if !in.gas(gethvm.GasFastestStep) {
			return
		}
		code := in.Contract.Code
		start := min(in.PC, uint64(len(code)))
		end := min(in.PC+n, uint64(len(code)))
		var buf [32]byte
		copy(buf[32-n:], code[start:end])
		in.push(new(uint256.Int).SetBytes(buf[32-n:]))
		in.PC += n
	}
}

func makeDup(n int) Instruction {
	return func(in *Interpreter, ctx *Context) {
		if !in.gas(gethvm.GasFastestStep) {
			return
		}
		if r := in.Stack.Dup(n); r != Continue {
			in.InstructionResult = r
		}
	}
}

func makeSwap(n int) Instruction {
	return func(in *Interpreter, ctx *Context) {
		if !in.gas(gethvm.GasFastestStep) {
			return
		}
		if r := in.Stack.Swap(n); r != Continue {
			in.InstructionResult = r
		}
	}
}
