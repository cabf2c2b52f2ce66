package vm

import gethvm "github.com/ethereum/go-ethereum/core/vm"

// Instruction executes one opcode against the interpreter and host.
type Instruction func(in *Interpreter, ctx *Context)

// InstructionTable maps every opcode byte to its handler. All 256 slots are
// always populated.
type InstructionTable [256]Instruction

// NewInstructionTable returns the table of the given fork.
func NewInstructionTable(spec SpecID) *InstructionTable {
	var t InstructionTable
	for i := range t {
		t[i] = opNotFound
	}
	set := func(op gethvm.OpCode, fn Instruction) { t[op] = fn }

	set(gethvm.STOP, opStop)
	set(gethvm.ADD, opAdd)
	set(gethvm.MUL, opMul)
	set(gethvm.SUB, opSub)
	set(gethvm.DIV, opDiv)
	set(gethvm.MOD, opMod)
	set(gethvm.LT, opLt)
	set(gethvm.GT, opGt)
	set(gethvm.EQ, opEq)
	set(gethvm.ISZERO, opIsZero)
	set(gethvm.AND, opAnd)
	set(gethvm.OR, opOr)
	set(gethvm.XOR, opXor)
	set(gethvm.NOT, opNot)
	set(gethvm.KECCAK256, opKeccak256)

	set(gethvm.ADDRESS, opAddress)
	set(gethvm.BALANCE, opBalance)
	set(gethvm.ORIGIN, opOrigin)
	set(gethvm.CALLER, opCaller)
	set(gethvm.CALLVALUE, opCallValue)
	set(gethvm.CALLDATALOAD, opCallDataLoad)
	set(gethvm.CALLDATASIZE, opCallDataSize)
	set(gethvm.CALLDATACOPY, opCallDataCopy)
	set(gethvm.CODESIZE, opCodeSize)
	set(gethvm.CODECOPY, opCodeCopy)
	set(gethvm.GASPRICE, opGasPrice)
	set(gethvm.BLOCKHASH, opBlockhash)
	set(gethvm.COINBASE, opCoinbase)
	set(gethvm.TIMESTAMP, opTimestamp)
	set(gethvm.NUMBER, opNumber)
	set(gethvm.GASLIMIT, opGasLimit)

	set(gethvm.POP, opPop)
	set(gethvm.MLOAD, opMload)
	set(gethvm.MSTORE, opMstore)
	set(gethvm.MSTORE8, opMstore8)
	set(gethvm.SLOAD, opSload)
	set(gethvm.SSTORE, opSstore)
	set(gethvm.JUMP, opJump)
	set(gethvm.JUMPI, opJumpi)
	set(gethvm.PC, opPc)
	set(gethvm.MSIZE, opMsize)
	set(gethvm.GAS, opGas)
	set(gethvm.JUMPDEST, opJumpdest)

	for i := 0; i < 32; i++ {
		set(gethvm.PUSH1+gethvm.OpCode(i), makePush(uint64(i+1)))
	}
	for i := 0; i < 16; i++ {
		set(gethvm.DUP1+gethvm.OpCode(i), makeDup(i+1))
		set(gethvm.SWAP1+gethvm.OpCode(i), makeSwap(i+1))
	}
	for i := 0; i <= 4; i++ {
		set(gethvm.LOG0+gethvm.OpCode(i), makeLog(i))
	}

	set(gethvm.CREATE, makeCreate(CreateSchemeCreate))
	set(gethvm.CALL, makeCall(CallSchemeCall))
	set(gethvm.RETURN, makeReturn(Return))
	set(gethvm.INVALID, opInvalid)
	set(gethvm.SELFDESTRUCT, opSelfdestruct)

	if spec.Enabled(Byzantium) {
		set(gethvm.RETURNDATASIZE, opReturnDataSize)
		set(gethvm.RETURNDATACOPY, opReturnDataCopy)
		set(gethvm.STATICCALL, makeCall(CallSchemeStaticCall))
		set(gethvm.REVERT, makeReturn(Revert))
	}
	if spec.Enabled(Constantinople) {
		set(gethvm.SHL, opShl)
		set(gethvm.SHR, opShr)
		set(gethvm.CREATE2, makeCreate(CreateSchemeCreate2))
	}
	if spec.Enabled(Istanbul) {
		set(gethvm.CHAINID, opChainID)
		set(gethvm.SELFBALANCE, opSelfBalance)
	}
	if spec.Enabled(Shanghai) {
		set(gethvm.PUSH0, opPush0)
	}
	return &t
}
