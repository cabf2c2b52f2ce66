package inspector

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/clydemeng/evminspect/core/vm"
	"github.com/ethereum/go-ethereum/common"
	gethtracing "github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	gethvm "github.com/ethereum/go-ethereum/core/vm"
	"github.com/fatih/color"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var addrC = common.HexToAddress("0x00000000000000000000000000000000000000c1")

func TestMultiFirstShortCircuitWins(t *testing.T) {
	code := map[common.Address][]byte{addrA: callerRuntime(addrB), addrB: answerRuntime}
	before, after := new(recorder), new(recorder)
	stub := &stubCall{target: addrB, outcome: func(inputs *vm.CallInputs) *vm.CallOutcome {
		result := vm.InterpreterResult{Result: vm.Return, Output: common.LeftPadBytes([]byte{42}, 32), Gas: vm.NewGas(inputs.GasLimit)}
		return vm.NewCallOutcome(result, vm.NewMemoryRange(0, 32))
	}}
	multi := NewMulti(before, nil, stub, after)
	require.Equal(t, 3, multi.Len())

	res, err := NewEVM(newEnv(vm.Cancun, &addrA, nil), newDB(code), multi).Transact()
	require.NoError(t, err)
	require.Equal(t, uint64(42), new(uint256.Int).SetBytes(res.Result.Output).Uint64())

	// before saw both calls start and end, after never saw the stubbed call.
	require.Len(t, before.calls, 2)
	require.Len(t, before.callEnds, 2)
	require.Equal(t, vm.Return, before.callEnds[0].Result)
	require.Len(t, after.calls, 1)
	require.Len(t, after.callEnds, 1)
	require.Equal(t, len(before.pcs), len(after.pcs))
}

func TestMultiStepHaltStopsFanOut(t *testing.T) {
	halt := &haltAt{op: 0x01, status: vm.Stop}
	rec := new(recorder)
	multi := NewMulti(halt)
	multi.Add(rec)

	code := common.FromHex("600160020100")
	res, err := NewEVM(newEnv(vm.Cancun, &addrA, nil), newDB(map[common.Address][]byte{addrA: code}), multi).Transact()
	require.NoError(t, err)
	require.Equal(t, vm.Stop, res.Result.Reason)
	require.Equal(t, []uint64{0, 2, 4}, halt.pcs)
	require.Equal(t, []uint64{0, 2}, rec.pcs)
	require.Equal(t, 2, rec.stepEnds)
}

// gasCosts records the cost of every executed instruction.
type gasCosts struct {
	GasInspector
	costs []uint64
}

func (g *gasCosts) StepEnd(in *vm.Interpreter, ctx *vm.Context) {
	g.GasInspector.StepEnd(in, ctx)
	g.costs = append(g.costs, g.LastGasCost())
}

func TestGasInspector(t *testing.T) {
	insp := new(gasCosts)
	code := common.FromHex("600160020100")
	env := newEnv(vm.Cancun, &addrA, nil)
	_, err := NewEVM(env, newDB(map[common.Address][]byte{addrA: code}), insp).Transact()
	require.NoError(t, err)
	require.Equal(t, []uint64{3, 3, 3, 0}, insp.costs)
	require.Equal(t, env.Tx.GasLimit-vm.IntrinsicGas(vm.Cancun, &env.Tx)-9, insp.GasRemaining())

	// A halting frame loses all of its gas.
	insp = new(gasCosts)
	res, err := NewEVM(newEnv(vm.Cancun, &addrA, nil), newDB(map[common.Address][]byte{addrA: {0xfe}}), insp).Transact()
	require.NoError(t, err)
	require.Equal(t, vm.InvalidOpcode, res.Result.Reason)
	require.Zero(t, res.Frame.Result.Gas.Remaining())
	require.Zero(t, insp.GasRemaining())
}

func TestAccessListInspector(t *testing.T) {
	code := common.FromHex("60055450") // SLOAD 5 of the recipient
	code = append(code, 0x73)
	code = append(code, addrB.Bytes()...)
	code = append(code, common.FromHex("3150")...) // BALANCE
	code = append(code, common.FromHex("600060006000600060007"+"3")...)
	code = append(code, addrC.Bytes()...)
	code = append(code, common.FromHex("5af15000")...) // CALL

	db := newDB(map[common.Address][]byte{
		addrA: code,
		addrC: common.FromHex("60075400"),
	})
	insp := NewAccessListInspector(sender, addrA, nil)
	res, err := NewEVM(newEnv(vm.Cancun, &addrA, nil), db, insp).Transact()
	require.NoError(t, err)
	require.True(t, res.Result.IsSuccess(), res.Result.Reason.String())

	want := types.AccessList{
		{Address: addrB, StorageKeys: []common.Hash{}},
		{Address: addrC, StorageKeys: []common.Hash{common.BigToHash(big.NewInt(7))}},
	}
	require.Equal(t, want, insp.AccessList())
}

func TestEIP3155Tracer(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewEIP3155Tracer(&buf, true)
	code := common.FromHex("600160020100")
	env := newEnv(vm.Cancun, &addrA, nil)
	_, err := NewEVM(env, newDB(map[common.Address][]byte{addrA: code}), tracer).Transact()
	require.NoError(t, err)

	dec := json.NewDecoder(&buf)
	var steps []eip3155Step
	for i := 0; i < 4; i++ {
		var step eip3155Step
		require.NoError(t, dec.Decode(&step))
		steps = append(steps, step)
	}
	var summary eip3155Summary
	require.NoError(t, dec.Decode(&summary))
	require.False(t, dec.More())

	startGas := env.Tx.GasLimit - vm.IntrinsicGas(vm.Cancun, &env.Tx)
	require.Equal(t, uint64(0), steps[0].Pc)
	require.Equal(t, "PUSH1", steps[0].OpName)
	require.Equal(t, uint64(startGas), uint64(steps[0].Gas))
	require.Equal(t, uint64(3), uint64(steps[0].GasCost))
	require.Equal(t, 1, steps[0].Depth)
	require.Equal(t, []string{"0x1", "0x2"}, steps[2].Stack)
	require.Equal(t, "ADD", steps[2].OpName)
	require.Equal(t, []string{"0x3"}, steps[3].Stack)

	require.True(t, summary.Pass)
	require.Equal(t, uint64(9), uint64(summary.GasUsed))
	require.Empty(t, summary.Error)
}

func TestEIP3155TracerNested(t *testing.T) {
	var buf bytes.Buffer
	code := map[common.Address][]byte{addrA: callerRuntime(addrB), addrB: answerRuntime}
	_, err := NewEVM(newEnv(vm.Cancun, &addrA, nil), newDB(code), NewEIP3155Tracer(&buf, false)).Transact()
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var depths []int
	for _, line := range lines[:len(lines)-1] {
		var step eip3155Step
		require.NoError(t, json.Unmarshal([]byte(line), &step))
		require.Empty(t, step.Memory)
		depths = append(depths, step.Depth)
	}
	require.Contains(t, depths, 2)
	require.Equal(t, 1, depths[len(depths)-1])

	var summary eip3155Summary
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &summary))
	require.True(t, summary.Pass)
	require.Len(t, summary.Output, 32)
}

func TestPrintTracer(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	code := map[common.Address][]byte{addrA: callerRuntime(addrB), addrB: logRuntime}
	_, err := NewEVM(newEnv(vm.Cancun, &addrA, nil), newDB(code), NewPrintTracer(&buf)).Transact()
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, "OPCODE: PUSH1(96)")
	require.Contains(t, out, "SM CALL: "+addrB.Hex())
	require.Contains(t, out, "LOG1: "+addrB.Hex())
	require.NotContains(t, out, "halted")
}

func TestHooksInspector(t *testing.T) {
	type frame struct {
		depth int
		typ   byte
		to    common.Address
	}
	var (
		enters  []frame
		exits   []int
		opcodes int
		logs    []*types.Log
		faults  []error
		changes []gethtracing.BalanceChangeReason
	)
	hooks := &gethtracing.Hooks{
		OnEnter: func(depth int, typ byte, from, to common.Address, input []byte, gas uint64, value *big.Int) {
			enters = append(enters, frame{depth, typ, to})
		},
		OnExit: func(depth int, output []byte, gasUsed uint64, err error, reverted bool) {
			exits = append(exits, depth)
		},
		OnOpcode: func(pc uint64, op byte, gas, cost uint64, scope gethtracing.OpContext, rData []byte, depth int, err error) {
			opcodes++
		},
		OnFault: func(pc uint64, op byte, gas, cost uint64, scope gethtracing.OpContext, depth int, err error) {
			faults = append(faults, err)
		},
		OnLog: func(l *types.Log) { logs = append(logs, l) },
		OnBalanceChange: func(addr common.Address, prev, new *big.Int, reason gethtracing.BalanceChangeReason) {
			changes = append(changes, reason)
		},
	}

	code := map[common.Address][]byte{addrA: callerRuntime(addrB), addrB: logRuntime}
	_, err := NewEVM(newEnv(vm.Cancun, &addrA, nil), newDB(code), NewHooksInspector(hooks)).Transact()
	require.NoError(t, err)
	require.Equal(t, []frame{{0, byte(gethvm.CALL), addrA}, {1, byte(gethvm.CALL), addrB}}, enters)
	require.Equal(t, []int{1, 0}, exits)
	require.Len(t, logs, 1)
	require.Positive(t, opcodes)
	require.Empty(t, faults)

	_, err = NewEVM(newEnv(vm.Cancun, &addrA, nil), newDB(map[common.Address][]byte{addrA: {0xfe}}), NewHooksInspector(hooks)).Transact()
	require.NoError(t, err)
	require.Len(t, faults, 1)
	require.IsType(t, &gethvm.ErrInvalidOpCode{}, faults[0])

	enters, exits = nil, nil
	db := newDB(map[common.Address][]byte{addrA: selfdestructRuntime(beneficiary)})
	db.SetBalance(addrA, uint256.NewInt(500))
	_, err = NewEVM(newEnv(vm.Shanghai, &addrA, nil), db, NewHooksInspector(hooks)).Transact()
	require.NoError(t, err)
	require.Equal(t, frame{1, byte(gethvm.SELFDESTRUCT), beneficiary}, enters[1])
	require.Equal(t, []int{1, 0}, exits)
	require.Equal(t, []gethtracing.BalanceChangeReason{gethtracing.BalanceDecreaseSelfdestruct}, changes)
}

func TestHooksInspectorNilHooks(t *testing.T) {
	code := map[common.Address][]byte{addrA: logRuntime}
	res, err := NewEVM(newEnv(vm.Cancun, &addrA, nil), newDB(code), NewHooksInspector(nil)).Transact()
	require.NoError(t, err)
	require.True(t, res.Result.IsSuccess())
}

func TestOpcodeCounter(t *testing.T) {
	counter := NewOpcodeCounter()
	code := common.FromHex("600160020160030100")
	_, err := NewEVM(newEnv(vm.Cancun, &addrA, nil), newDB(map[common.Address][]byte{addrA: code}), counter).Transact()
	require.NoError(t, err)

	want := []OpcodeStat{
		{Op: gethvm.PUSH1, Count: 3, Gas: 9},
		{Op: gethvm.ADD, Count: 2, Gas: 6},
		{Op: gethvm.STOP, Count: 1, Gas: 0},
	}
	require.Equal(t, want, counter.Stats())
}
