package inspector

import (
	"testing"

	"github.com/clydemeng/evminspect/core/vm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	sender      = common.HexToAddress("0x1000000000000000000000000000000000000001")
	addrA       = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	addrB       = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	beneficiary = common.HexToAddress("0x00000000000000000000000000000000000000cc")

	logTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

	// Deploys a runtime returning 1 + 2.
	addCreationCode = common.FromHex("600d600c600039600d6000f3" + "600160020160005260206000f3")
	// Stores calldata in slot 0, or returns slot 0 when called without data.
	rwRuntime = common.FromHex("3615600c57600035600055005b60005460005260206000f3")
	// Returns 42.
	answerRuntime = common.FromHex("602a60005260206000f3")
	// Emits LOG1 with logTopic over a word holding 0xaa.
	logRuntime = common.FromHex("60aa600052" + "7f" + logTopic.Hex()[2:] + "60206000a100")
	// LOG1 with only two stack items.
	badLogRuntime = common.FromHex("60006000a1")
	// Creates a contract with value 1 it does not own.
	poorCreateRuntime = common.FromHex("600060006001f000")
)

// callerRuntime calls target with no input and returns the first word of its
// output.
func callerRuntime(target common.Address) []byte {
	code := common.FromHex("6020600060006000600073")
	code = append(code, target.Bytes()...)
	return append(code, common.FromHex("5af15060206000f3")...)
}

// createRuntime deploys initCode with CREATE and returns the pushed address as
// a word. initCode must fit in one word.
func createRuntime(initCode []byte) []byte {
	size := len(initCode)
	code := append([]byte{byte(0x5f + size)}, initCode...)
	code = append(code, 0x60, 0x00, 0x52)
	code = append(code, 0x60, byte(size), 0x60, byte(32-size), 0x60, 0x00, 0xf0)
	return append(code, common.FromHex("60005260206000f3")...)
}

// callFlagRuntime calls target and returns its first output word followed by
// the success flag CALL pushed.
func callFlagRuntime(target common.Address) []byte {
	code := common.FromHex("6020600060006000600073")
	code = append(code, target.Bytes()...)
	return append(code, common.FromHex("5af1602052" + "60406000f3")...)
}

func selfdestructRuntime(target common.Address) []byte {
	code := append([]byte{0x73}, target.Bytes()...)
	return append(code, 0xff)
}

func newEnv(spec vm.SpecID, to *common.Address, data []byte) *vm.Env {
	env := &vm.Env{
		Cfg:   vm.CfgEnv{ChainID: 1, Spec: spec},
		Block: vm.BlockEnv{Number: 1, GasLimit: 30_000_000, Coinbase: common.HexToAddress("0xc0ffee")},
		Tx:    vm.TxEnv{Caller: sender, To: to, Data: data, GasLimit: 1_000_000},
	}
	env.Tx.GasPrice.SetUint64(1)
	return env
}

func newDB(code map[common.Address][]byte) *vm.MemoryDB {
	db := vm.NewMemoryDB()
	db.SetBalance(sender, uint256.MustFromDecimal("100000000000000000000"))
	for addr, c := range code {
		db.SetCode(addr, c)
	}
	return db
}

type selfdestructEvent struct {
	contract, target common.Address
	value            uint256.Int
}

// recorder counts every hook and remembers what it was shown.
type recorder struct {
	NoOpInspector

	inits      int
	pcs        []uint64
	ops        []byte
	stepEnds   int
	logs       []*types.Log
	calls      []*vm.CallInputs
	callEnds   []vm.InterpreterResult
	creates    []*vm.CreateInputs
	createEnds []*common.Address
	destructs  []selfdestructEvent
}

func (r *recorder) InitializeInterp(*vm.Interpreter, *vm.Context) { r.inits++ }

func (r *recorder) Step(in *vm.Interpreter, _ *vm.Context) {
	r.pcs = append(r.pcs, in.PC)
	r.ops = append(r.ops, in.CurrentOpcode())
}

func (r *recorder) StepEnd(*vm.Interpreter, *vm.Context) { r.stepEnds++ }

func (r *recorder) Log(_ *vm.Context, l *types.Log) { r.logs = append(r.logs, l) }

func (r *recorder) Call(_ *vm.Context, inputs *vm.CallInputs) *vm.CallOutcome {
	r.calls = append(r.calls, inputs)
	return nil
}

func (r *recorder) CallEnd(_ *vm.Context, result vm.InterpreterResult) vm.InterpreterResult {
	r.callEnds = append(r.callEnds, result)
	return result
}

func (r *recorder) Create(_ *vm.Context, inputs *vm.CreateInputs) *vm.CreateOutcome {
	r.creates = append(r.creates, inputs)
	return nil
}

func (r *recorder) CreateEnd(_ *vm.Context, result vm.InterpreterResult, address *common.Address) (vm.InterpreterResult, *common.Address) {
	r.createEnds = append(r.createEnds, address)
	return result, address
}

func (r *recorder) Selfdestruct(contract, target common.Address, value *uint256.Int) {
	r.destructs = append(r.destructs, selfdestructEvent{contract, target, *value})
}

// stubCall answers calls to one address without running its code.
type stubCall struct {
	recorder
	target  common.Address
	outcome func(inputs *vm.CallInputs) *vm.CallOutcome
}

func (s *stubCall) Call(ctx *vm.Context, inputs *vm.CallInputs) *vm.CallOutcome {
	s.recorder.Call(ctx, inputs)
	if inputs.Contract != s.target {
		return nil
	}
	return s.outcome(inputs)
}

// haltAt stops the frame before the first occurrence of op.
type haltAt struct {
	recorder
	op     byte
	status vm.InstructionResult
}

func (h *haltAt) Step(in *vm.Interpreter, ctx *vm.Context) {
	h.recorder.Step(in, ctx)
	if in.CurrentOpcode() == h.op {
		in.InstructionResult = h.status
	}
}

func TestNoOpInspectorIsTransparent(t *testing.T) {
	tests := []struct {
		name string
		code map[common.Address][]byte
		to   *common.Address
		data []byte
	}{
		{name: "deploy", data: addCreationCode},
		{name: "nested call", code: map[common.Address][]byte{addrA: callerRuntime(addrB), addrB: answerRuntime}, to: &addrA},
		{name: "storage write", code: map[common.Address][]byte{addrA: rwRuntime}, to: &addrA, data: common.LeftPadBytes([]byte{7}, 32)},
		{name: "log", code: map[common.Address][]byte{addrA: logRuntime}, to: &addrA},
		{name: "failed log", code: map[common.Address][]byte{addrA: badLogRuntime}, to: &addrA},
		{name: "selfdestruct", code: map[common.Address][]byte{addrA: selfdestructRuntime(beneficiary)}, to: &addrA},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plain, err := vm.NewEVM(newEnv(vm.Shanghai, tt.to, tt.data), newDB(tt.code)).Transact()
			require.NoError(t, err)
			inspected, err := NewEVM(newEnv(vm.Shanghai, tt.to, tt.data), newDB(tt.code), NoOpInspector{}).Transact()
			require.NoError(t, err)
			require.Equal(t, plain.Result, inspected.Result)
			require.Equal(t, plain.State, inspected.State)
		})
	}
}

func TestRegisterWithoutTable(t *testing.T) {
	h := vm.NewHandler(vm.Cancun)
	h.TakeInstructionTable()
	require.Panics(t, func() { Register(h, NoOpInspector{}) })
}

func TestStepSeesOpcodePosition(t *testing.T) {
	code := common.FromHex("600160020100")
	rec := new(recorder)
	res, err := NewEVM(newEnv(vm.Cancun, &addrA, nil), newDB(map[common.Address][]byte{addrA: code}), rec).Transact()
	require.NoError(t, err)
	require.True(t, res.Result.IsSuccess())

	require.Equal(t, []uint64{0, 2, 4, 5}, rec.pcs)
	require.Equal(t, []byte{0x60, 0x60, 0x01, 0x00}, rec.ops)
	require.Equal(t, 4, rec.stepEnds)
	// The first frame is never initialized through the inspector.
	require.Zero(t, rec.inits)
}

func TestWrapInstructionRestoresPC(t *testing.T) {
	contract := vm.NewContract(nil, common.FromHex("5b00"), common.Hash{}, addrA, sender, new(uint256.Int))
	in := vm.NewInterpreter(contract, 100, false)
	in.PC = 1

	var stepPC, execPC uint64
	insp := &stepFunc{fn: func(in *vm.Interpreter) { stepPC = in.PC }}
	WrapInstruction(insp, func(in *vm.Interpreter, _ *vm.Context) { execPC = in.PC })(in, nil)
	require.Equal(t, uint64(0), stepPC)
	require.Equal(t, uint64(1), execPC)
	require.Equal(t, uint64(1), in.PC)
	require.Equal(t, 1, insp.stepEnds)
}

type stepFunc struct {
	NoOpInspector
	fn       func(in *vm.Interpreter)
	stepEnds int
}

func (s *stepFunc) Step(in *vm.Interpreter, _ *vm.Context) { s.fn(in) }
func (s *stepFunc) StepEnd(*vm.Interpreter, *vm.Context) { s.stepEnds++ }

func TestStepHaltSkipsInstruction(t *testing.T) {
	db := newDB(map[common.Address][]byte{addrA: rwRuntime})
	insp := &haltAt{op: 0x55, status: vm.Stop}
	res, err := NewEVM(newEnv(vm.Cancun, &addrA, common.LeftPadBytes([]byte{9}, 32)), db, insp).TransactCommit()
	require.NoError(t, err)
	require.Equal(t, vm.Stop, res.Reason)

	slot, err := db.Storage(addrA, common.Hash{})
	require.NoError(t, err)
	require.Equal(t, common.Hash{}, slot)
	require.Equal(t, byte(0x55), insp.ops[len(insp.ops)-1])
	require.Equal(t, len(insp.ops)-1, insp.stepEnds)
}

func TestStepHaltWithError(t *testing.T) {
	insp := &haltAt{op: 0x01, status: vm.InvalidOpcode}
	code := common.FromHex("600160020100")
	res, err := NewEVM(newEnv(vm.Cancun, &addrA, nil), newDB(map[common.Address][]byte{addrA: code}), insp).Transact()
	require.NoError(t, err)
	require.Equal(t, vm.ResultHalt, res.Result.Kind)
	require.Equal(t, vm.InvalidOpcode, res.Result.Reason)
	require.Equal(t, 2, insp.stepEnds)
}

func TestLogHook(t *testing.T) {
	rec := new(recorder)
	res, err := NewEVM(newEnv(vm.Cancun, &addrA, nil), newDB(map[common.Address][]byte{addrA: logRuntime}), rec).Transact()
	require.NoError(t, err)
	require.True(t, res.Result.IsSuccess())
	require.Len(t, rec.logs, 1)
	require.Len(t, res.Result.Logs, 1)

	got := rec.logs[0]
	require.Equal(t, addrA, got.Address)
	require.Equal(t, []common.Hash{logTopic}, got.Topics)
	require.Equal(t, common.LeftPadBytes([]byte{0xaa}, 32), got.Data)

	// The hook receives a copy of the journaled log.
	got.Topics[0] = common.Hash{}
	got.Data[31] = 0
	require.Equal(t, logTopic, res.Result.Logs[0].Topics[0])
	require.Equal(t, byte(0xaa), res.Result.Logs[0].Data[31])
}

func TestFailedLogNotReported(t *testing.T) {
	rec := new(recorder)
	res, err := NewEVM(newEnv(vm.Cancun, &addrA, nil), newDB(map[common.Address][]byte{addrA: badLogRuntime}), rec).Transact()
	require.NoError(t, err)
	require.Equal(t, vm.StackUnderflow, res.Result.Reason)
	require.Empty(t, rec.logs)
}

func TestSelfdestructHook(t *testing.T) {
	code := map[common.Address][]byte{addrA: selfdestructRuntime(beneficiary)}

	db := newDB(code)
	db.SetBalance(addrA, uint256.NewInt(500))
	rec := new(recorder)
	res, err := NewEVM(newEnv(vm.Shanghai, &addrA, nil), db, rec).Transact()
	require.NoError(t, err)
	require.Equal(t, vm.SelfDestruct, res.Result.Reason)
	require.Equal(t, []selfdestructEvent{{contract: addrA, target: beneficiary, value: *uint256.NewInt(500)}}, rec.destructs)

	// From Cancun a contract that predates the transaction is not destroyed.
	db = newDB(code)
	db.SetBalance(addrA, uint256.NewInt(500))
	rec = new(recorder)
	res, err = NewEVM(newEnv(vm.Cancun, &addrA, nil), db, rec).Transact()
	require.NoError(t, err)
	require.Equal(t, vm.SelfDestruct, res.Result.Reason)
	require.Empty(t, rec.destructs)
	require.Equal(t, uint64(500), res.State[beneficiary].Info.Balance.Uint64())
}

func TestShortCircuitedCallMatchesExecution(t *testing.T) {
	code := map[common.Address][]byte{addrA: callerRuntime(addrB), addrB: answerRuntime}

	rec := new(recorder)
	executed, err := NewEVM(newEnv(vm.Cancun, &addrA, nil), newDB(code), rec).Transact()
	require.NoError(t, err)
	require.True(t, executed.Result.IsSuccess())

	stub := &stubCall{target: addrB, outcome: func(inputs *vm.CallInputs) *vm.CallOutcome {
		result := vm.InterpreterResult{
			Result: vm.Return,
			Output: common.LeftPadBytes([]byte{42}, 32),
			Gas:    vm.NewGas(inputs.GasLimit),
		}
		return vm.NewCallOutcome(result, vm.NewMemoryRange(0, 32))
	}}
	shortCircuited, err := NewEVM(newEnv(vm.Cancun, &addrA, nil), newDB(code), stub).Transact()
	require.NoError(t, err)
	require.True(t, shortCircuited.Result.IsSuccess())
	require.Equal(t, executed.Result.Output, shortCircuited.Result.Output)

	// Both calls ran through the hooks when executed; the stubbed one never
	// built a frame and never reached CallEnd.
	require.Len(t, rec.calls, 2)
	require.Len(t, rec.callEnds, 2)
	require.Equal(t, 1, rec.inits)
	require.Len(t, stub.calls, 2)
	require.Len(t, stub.callEnds, 1)
	require.Zero(t, stub.inits)
	require.Less(t, len(stub.pcs), len(rec.pcs))
}

func TestTopLevelShortCircuit(t *testing.T) {
	stub := &stubCall{target: addrA, outcome: func(*vm.CallInputs) *vm.CallOutcome {
		result := vm.InterpreterResult{Result: vm.Stop, Gas: vm.NewGas(0), Output: []byte{0x12, 0x34}}
		return vm.NewCallOutcome(result, vm.MemoryRange{})
	}}
	env := newEnv(vm.Cancun, &addrA, nil)
	res, err := NewEVM(env, newDB(map[common.Address][]byte{addrA: answerRuntime}), stub).Transact()
	require.NoError(t, err)

	require.Empty(t, stub.pcs)
	require.Empty(t, stub.callEnds)
	require.Equal(t, vm.FrameCall, res.Frame.Kind)
	outcome := res.Frame.CallOutcome()
	require.Equal(t, vm.Stop, outcome.InstructionResult())
	require.Equal(t, []byte{0x12, 0x34}, outcome.Output())
	require.Zero(t, outcome.Gas().Remaining())
	require.Equal(t, []byte{0x12, 0x34}, res.Result.Output)
	require.Equal(t, env.Tx.GasLimit, res.Result.GasUsed)
}

func TestFrameReturnDispatchedOnce(t *testing.T) {
	rec := new(recorder)
	res, err := NewEVM(newEnv(vm.Cancun, nil, addCreationCode), newDB(nil), rec).Transact()
	require.NoError(t, err)
	require.True(t, res.Result.IsSuccess())

	want := crypto.CreateAddress(sender, 0)
	require.Len(t, rec.creates, 1)
	require.Equal(t, []*common.Address{&want}, rec.createEnds)
	require.Empty(t, rec.calls)
	require.Empty(t, rec.callEnds)
	require.Equal(t, &want, res.Result.ContractAddress)
}

func TestFailedSubCreateReportsEnd(t *testing.T) {
	rec := new(recorder)
	res, err := NewEVM(newEnv(vm.Cancun, &addrA, nil), newDB(map[common.Address][]byte{addrA: poorCreateRuntime}), rec).Transact()
	require.NoError(t, err)
	require.True(t, res.Result.IsSuccess())

	require.Len(t, rec.creates, 1)
	require.Equal(t, []*common.Address{nil}, rec.createEnds)
	require.Zero(t, rec.inits)
}

// renameCreate reports every created contract at another address.
type renameCreate struct {
	recorder
	to common.Address
}

func (r *renameCreate) CreateEnd(ctx *vm.Context, result vm.InterpreterResult, address *common.Address) (vm.InterpreterResult, *common.Address) {
	r.recorder.CreateEnd(ctx, result, address)
	if address == nil {
		return result, nil
	}
	to := r.to
	return result, &to
}

func TestCreateEndReplacesAddress(t *testing.T) {
	renamed := common.HexToAddress("0x000000000000000000000000000000000000dead")
	runtime := addCreationCode[12:]

	// Top-level creation: the transaction reports the replaced address while
	// the code lands at the derived one.
	insp := &renameCreate{to: renamed}
	res, err := NewEVM(newEnv(vm.Cancun, nil, addCreationCode), newDB(nil), insp).Transact()
	require.NoError(t, err)
	require.True(t, res.Result.IsSuccess())

	created := crypto.CreateAddress(sender, 0)
	require.Equal(t, []*common.Address{&created}, insp.createEnds)
	require.Equal(t, &renamed, res.Result.ContractAddress)
	require.Equal(t, &renamed, res.Frame.Address)
	require.Equal(t, runtime, res.State[created].Info.Code)
	require.NotContains(t, res.State, renamed)

	// Nested creation: the parent gets the replaced address on its stack.
	insp = &renameCreate{to: renamed}
	code := map[common.Address][]byte{addrA: createRuntime(addCreationCode)}
	res, err = NewEVM(newEnv(vm.Cancun, &addrA, nil), newDB(code), insp).Transact()
	require.NoError(t, err)
	require.True(t, res.Result.IsSuccess())

	created = crypto.CreateAddress(addrA, 0)
	require.Equal(t, []*common.Address{&created}, insp.createEnds)
	require.Equal(t, common.LeftPadBytes(renamed.Bytes(), 32), res.Result.Output)
	require.Equal(t, runtime, res.State[created].Info.Code)
}

// stubCreate answers every nested creation without building a frame.
type stubCreate struct {
	recorder
	outcome func(inputs *vm.CreateInputs) *vm.CreateOutcome
}

func (s *stubCreate) Create(ctx *vm.Context, inputs *vm.CreateInputs) *vm.CreateOutcome {
	s.recorder.Create(ctx, inputs)
	return s.outcome(inputs)
}

func TestSubCreateShortCircuit(t *testing.T) {
	stubbed := common.HexToAddress("0x000000000000000000000000000000000000beef")
	code := map[common.Address][]byte{addrA: createRuntime(addCreationCode)}

	run := func(gas func(limit uint64) vm.Gas) (*vm.ResultAndState, *stubCreate, uint64) {
		var forwarded uint64
		stub := &stubCreate{outcome: func(inputs *vm.CreateInputs) *vm.CreateOutcome {
			forwarded = inputs.GasLimit
			result := vm.InterpreterResult{Result: vm.Return, Gas: gas(inputs.GasLimit)}
			return vm.NewCreateOutcome(result, &stubbed)
		}}
		res, err := NewEVM(newEnv(vm.Cancun, &addrA, nil), newDB(code), stub).Transact()
		require.NoError(t, err)
		require.True(t, res.Result.IsSuccess())
		return res, stub, forwarded
	}

	unused, stub, forwarded := run(vm.NewGas)
	require.Equal(t, common.LeftPadBytes(stubbed.Bytes(), 32), unused.Result.Output)
	require.Len(t, stub.creates, 1)
	require.Empty(t, stub.createEnds)
	require.Zero(t, stub.inits)
	// Only the parent frame stepped: the init code never ran.
	require.NotContains(t, stub.ops, byte(0x39)) // CODECOPY
	require.NotContains(t, unused.State, crypto.CreateAddress(addrA, 0))
	require.Zero(t, unused.State[addrA].Info.Nonce)

	// The parent is credited with whatever gas the outcome did not spend.
	spent, _, _ := run(vm.NewGasSpent)
	require.Equal(t, unused.Result.Output, spent.Result.Output)
	require.Equal(t, forwarded, spent.Result.GasUsed-unused.Result.GasUsed)
}

// rewriteCallEnd replaces the result of the first call frame that ends.
type rewriteCallEnd struct {
	recorder
	rewrite func(vm.InterpreterResult) vm.InterpreterResult
}

func (r *rewriteCallEnd) CallEnd(ctx *vm.Context, result vm.InterpreterResult) vm.InterpreterResult {
	first := len(r.callEnds) == 0
	r.recorder.CallEnd(ctx, result)
	if !first {
		return result
	}
	return r.rewrite(result)
}

func TestCallEndReplacesResult(t *testing.T) {
	code := map[common.Address][]byte{addrA: callFlagRuntime(addrB), addrB: answerRuntime}

	insp := &rewriteCallEnd{rewrite: func(result vm.InterpreterResult) vm.InterpreterResult {
		result.Result = vm.Revert
		result.Output = common.LeftPadBytes([]byte{7}, 32)
		return result
	}}
	res, err := NewEVM(newEnv(vm.Cancun, &addrA, nil), newDB(code), insp).Transact()
	require.NoError(t, err)
	require.True(t, res.Result.IsSuccess())

	// The hook saw the real result of B.
	require.Len(t, insp.callEnds, 2)
	require.Equal(t, vm.Return, insp.callEnds[0].Result)
	require.Equal(t, common.LeftPadBytes([]byte{42}, 32), insp.callEnds[0].Output)

	// The parent copied the replaced output and pushed a failure flag.
	want := append(common.LeftPadBytes([]byte{7}, 32), make([]byte, 32)...)
	require.Equal(t, want, res.Result.Output)
}

func TestFailedSelfdestructAfterChildNotReported(t *testing.T) {
	// A calls B, which selfdestructs, then runs SELFDESTRUCT on an empty stack.
	parent := common.FromHex("6000600060006000600073")
	parent = append(parent, addrB.Bytes()...)
	parent = append(parent, common.FromHex("5af150ff")...)

	db := newDB(map[common.Address][]byte{addrA: parent, addrB: selfdestructRuntime(beneficiary)})
	db.SetBalance(addrB, uint256.NewInt(7))
	rec := new(recorder)
	res, err := NewEVM(newEnv(vm.Shanghai, &addrA, nil), db, rec).Transact()
	require.NoError(t, err)
	require.Equal(t, vm.StackUnderflow, res.Result.Reason)
	require.Equal(t, []selfdestructEvent{{contract: addrB, target: beneficiary, value: *uint256.NewInt(7)}}, rec.destructs)
}
