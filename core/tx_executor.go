package core

import (
	"fmt"
	"time"

	"github.com/clydemeng/evminspect/core/vm"
	"github.com/clydemeng/evminspect/inspector"
	"github.com/clydemeng/evminspect/statedb"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
)

const largeTxGasLimit = 10_000_000 // transactions above this are timed

// TxExecutor runs single transactions of a block against the overlay of a
// StateDB. The StateProcessor drives it without knowing whether execution is
// instrumented.
type TxExecutor interface {
	// Engine returns a short identifier of the execution setup.
	Engine() string

	// ExecuteTx runs msg, commits its state to db and returns the receipt.
	// usedGas is the gas used by the block so far and is advanced by the
	// transaction's gas.
	ExecuteTx(msg *Message, tx *types.Transaction, txIdx int, gp *GasPool, db *statedb.Database, header *types.Header, usedGas *uint64) (*types.Receipt, error)
}

// NewTxExecutor returns an executor for config. Execution is instrumented
// with insp when it is not nil.
func NewTxExecutor(config *params.ChainConfig, insp inspector.Inspector) TxExecutor {
	return &interpreterExecutor{config: config, insp: insp}
}

type interpreterExecutor struct {
	config *params.ChainConfig
	insp   inspector.Inspector
}

func (e *interpreterExecutor) Engine() string {
	if e.insp != nil {
		return "interpreter+inspector"
	}
	return "interpreter"
}

func (e *interpreterExecutor) newEVM(env *vm.Env, db vm.Database) *vm.EVM {
	if e.insp != nil {
		return inspector.NewEVM(env, db, e.insp)
	}
	return vm.NewEVM(env, db)
}

func (e *interpreterExecutor) ExecuteTx(msg *Message, tx *types.Transaction, txIdx int, gp *GasPool, db *statedb.Database, header *types.Header, usedGas *uint64) (*types.Receipt, error) {
	if err := gp.SubGas(msg.GasLimit); err != nil {
		return nil, fmt.Errorf("%w: have %d, want %d", err, gp.Gas(), msg.GasLimit)
	}
	start := time.Now()
	res, err := e.newEVM(NewEnv(e.config, header, msg), db).Transact()
	if err != nil {
		gp.AddGas(msg.GasLimit)
		return nil, err
	}
	db.Commit(res.State)

	result := &res.Result
	gp.AddGas(msg.GasLimit - result.GasUsed)
	*usedGas += result.GasUsed
	if msg.GasLimit > largeTxGasLimit {
		log.Info("Large transaction executed", "block", header.Number, "tx", tx.Hash(), "gasUsed", result.GasUsed, "elapsed", time.Since(start))
	}
	return MakeReceipt(result, msg, tx, txIdx, header, *usedGas), nil
}

// MakeReceipt builds the receipt of an executed transaction. Log indices are
// relative to the transaction, the StateProcessor rebases them onto the
// block.
func MakeReceipt(result *vm.ExecutionResult, msg *Message, tx *types.Transaction, txIdx int, header *types.Header, cumulativeGasUsed uint64) *types.Receipt {
	blockHash := header.Hash()
	receipt := &types.Receipt{
		Type:              tx.Type(),
		CumulativeGasUsed: cumulativeGasUsed,
		TxHash:            tx.Hash(),
		GasUsed:           result.GasUsed,
		EffectiveGasPrice: msg.GasPrice.ToBig(),
		BlockHash:         blockHash,
		BlockNumber:       header.Number,
		TransactionIndex:  uint(txIdx),
	}
	if result.IsSuccess() {
		receipt.Status = types.ReceiptStatusSuccessful
	} else {
		receipt.Status = types.ReceiptStatusFailed
	}
	if msg.To == nil {
		receipt.ContractAddress = crypto.CreateAddress(msg.From, msg.Nonce)
	}
	receipt.Logs = make([]*types.Log, 0, len(result.Logs))
	for _, l := range result.Logs {
		l.TxHash = receipt.TxHash
		l.TxIndex = receipt.TransactionIndex
		l.BlockHash = blockHash
		l.BlockNumber = header.Number.Uint64()
		receipt.Logs = append(receipt.Logs, l)
	}
	receipt.Bloom = logsBloom(receipt.Logs)
	return receipt
}

func logsBloom(logs []*types.Log) types.Bloom {
	var bloom types.Bloom
	for _, l := range logs {
		bloom.Add(l.Address.Bytes())
		for _, topic := range l.Topics {
			bloom.Add(topic.Bytes())
		}
	}
	return bloom
}
