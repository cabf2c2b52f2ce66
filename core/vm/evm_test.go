package vm

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	// Creation code deploying a runtime that computes 1 + 2 and returns it.
	addCreationCode = []byte{
		0x60, 0x0d, 0x60, 0x0c, 0x60, 0x00, 0x39, 0x60, 0x0d, 0x60, 0x00, 0xf3, // copy runtime and return
		0x60, 0x01, 0x60, 0x02, 0x01, 0x60, 0x00, 0x52, 0x60, 0x20, 0x60, 0x00, 0xf3, // runtime: 1 2 ADD store return
	}
	// Stores calldata in slot 0, or returns slot 0 when called without data.
	rwRuntime = common.FromHex("3615600c57600035600055005b60005460005260206000f3")
	// Returns 42.
	answerRuntime = common.FromHex("602a60005260206000f3")

	deployer = common.HexToAddress("0x1000000000000000000000000000000000000001")
)

// callerRuntime calls target with no input and returns the first 32 bytes of
// its output.
func callerRuntime(target common.Address) []byte {
	code := common.FromHex("60206000600060006000" + "73")
	code = append(code, target.Bytes()...)
	return append(code, common.FromHex("5af15060206000f3")...)
}

func testEnv(spec SpecID, to *common.Address, data []byte) *Env {
	env := &Env{
		Cfg:   CfgEnv{ChainID: 1, Spec: spec},
		Block: BlockEnv{Number: 1, GasLimit: 30_000_000, Coinbase: common.HexToAddress("0xc0ffee")},
		Tx:    TxEnv{Caller: deployer, To: to, Data: data, GasLimit: 1_000_000},
	}
	env.Tx.GasPrice.SetUint64(1)
	return env
}

func fundedDB() *MemoryDB {
	db := NewMemoryDB()
	db.SetBalance(deployer, uint256.MustFromDecimal("100000000000000000000"))
	return db
}

func TestEVMDeployAndCall(t *testing.T) {
	db := fundedDB()

	res, err := NewEVM(testEnv(Cancun, nil, addCreationCode), db).TransactCommit()
	require.NoError(t, err)
	require.True(t, res.IsSuccess(), res.Reason.String())
	require.NotNil(t, res.ContractAddress)

	contractAddr := crypto.CreateAddress(deployer, 0)
	require.Equal(t, contractAddr, *res.ContractAddress)
	info, err := db.Basic(contractAddr)
	require.NoError(t, err)
	require.Equal(t, addCreationCode[12:], info.Code)
	require.Equal(t, uint64(1), info.Nonce)

	sender, err := db.Basic(deployer)
	require.NoError(t, err)
	require.Equal(t, uint64(1), sender.Nonce)

	res, err = NewEVM(testEnv(Cancun, &contractAddr, nil), db).TransactCommit()
	require.NoError(t, err)
	require.True(t, res.IsSuccess())
	require.Equal(t, "0000000000000000000000000000000000000000000000000000000000000003", common.Bytes2Hex(res.Output))
}

func TestEVMStorageReadWrite(t *testing.T) {
	db := fundedDB()
	contract := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	db.SetCode(contract, rwRuntime)

	data := make([]byte, 32)
	data[31] = 99
	res, err := NewEVM(testEnv(Cancun, &contract, data), db).TransactCommit()
	require.NoError(t, err)
	require.True(t, res.IsSuccess(), res.Reason.String())

	slot, err := db.Storage(contract, common.Hash{})
	require.NoError(t, err)
	require.Equal(t, byte(99), slot[31])

	res, err = NewEVM(testEnv(Cancun, &contract, nil), db).TransactCommit()
	require.NoError(t, err)
	require.Equal(t, byte(99), res.Output[31])
}

func TestEVMNestedCall(t *testing.T) {
	db := fundedDB()
	callee := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	caller := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	db.SetCode(callee, answerRuntime)
	db.SetCode(caller, callerRuntime(callee))

	res, err := NewEVM(testEnv(Cancun, &caller, nil), db).Transact()
	require.NoError(t, err)
	require.True(t, res.Result.IsSuccess(), res.Result.Reason.String())
	require.Equal(t, uint64(42), new(uint256.Int).SetBytes(res.Result.Output).Uint64())
	require.Equal(t, FrameCall, res.Frame.Kind)
	require.Equal(t, MemoryRange{}, res.Frame.MemoryRange)
}

func TestEVMRevert(t *testing.T) {
	db := fundedDB()
	contract := common.HexToAddress("0xdd")
	db.SetCode(contract, common.FromHex("60006000fd"))

	res, err := NewEVM(testEnv(Cancun, &contract, nil), db).Transact()
	require.NoError(t, err)
	require.Equal(t, ResultRevert, res.Result.Kind)
	require.Equal(t, Revert, res.Result.Reason)
	require.Nil(t, res.Result.Logs)
}

func TestEVMHaltBurnsGas(t *testing.T) {
	db := fundedDB()
	contract := common.HexToAddress("0xdd")
	db.SetCode(contract, []byte{0xfe})

	env := testEnv(Cancun, &contract, nil)
	res, err := NewEVM(env, db).Transact()
	require.NoError(t, err)
	require.Equal(t, ResultHalt, res.Result.Kind)
	require.Equal(t, InvalidOpcode, res.Result.Reason)
	require.Equal(t, env.Tx.GasLimit, res.Result.GasUsed)
}

func TestEVMValidation(t *testing.T) {
	contract := common.HexToAddress("0xdd")

	env := testEnv(Cancun, &contract, nil)
	env.Tx.GasLimit = 20_000
	_, err := NewEVM(env, fundedDB()).Transact()
	require.True(t, errors.Is(err, ErrIntrinsicGas))

	env = testEnv(Cancun, &contract, nil)
	nonce := uint64(5)
	env.Tx.Nonce = &nonce
	_, err = NewEVM(env, fundedDB()).Transact()
	require.True(t, errors.Is(err, ErrNonceMismatch))

	env = testEnv(Cancun, &contract, nil)
	evm := NewEVM(env, NewMemoryDB())
	_, err = evm.Transact()
	require.True(t, errors.Is(err, ErrInsufficientFunds))
	require.Empty(t, evm.Context.Journal.State)

	env.Cfg.DisableBalanceCheck = true
	res, err := evm.Transact()
	require.NoError(t, err)
	require.True(t, res.Result.IsSuccess())
}

func TestEVMPlainTransfer(t *testing.T) {
	db := fundedDB()
	to := common.HexToAddress("0xee")
	env := testEnv(Cancun, &to, nil)
	env.Tx.Value.SetUint64(1000)

	res, err := NewEVM(env, db).TransactCommit()
	require.NoError(t, err)
	require.Equal(t, Stop, res.Reason)
	require.Equal(t, uint64(21_000), res.GasUsed)

	info, err := db.Basic(to)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), info.Balance.Uint64())
}

func TestEVMMissingInstructionTable(t *testing.T) {
	contract := common.HexToAddress("0xdd")
	db := fundedDB()
	db.SetCode(contract, common.FromHex("00"))
	evm := NewEVM(testEnv(Cancun, &contract, nil), db)
	evm.Handler.TakeInstructionTable()
	require.Nil(t, evm.Handler.TakeInstructionTable())
	require.Panics(t, func() { evm.Transact() })
}
