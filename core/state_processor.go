package core

import (
	"fmt"

	"github.com/clydemeng/evminspect/inspector"
	"github.com/clydemeng/evminspect/statedb"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
)

// StateProcessor applies the transactions of a block to a StateDB.
type StateProcessor struct {
	config   *params.ChainConfig
	executor TxExecutor

	// BlockHashes resolves BLOCKHASH during processing when set.
	BlockHashes func(number uint64) common.Hash
}

// NewStateProcessor returns a processor for config. Every transaction is
// instrumented with insp when it is not nil.
func NewStateProcessor(config *params.ChainConfig, insp inspector.Inspector) *StateProcessor {
	return &StateProcessor{config: config, executor: NewTxExecutor(config, insp)}
}

// ProcessResult holds what processing a block produced.
type ProcessResult struct {
	Receipts types.Receipts
	Logs     []*types.Log
	GasUsed  uint64
}

// Process executes every transaction of block on top of sdb. State changes
// accumulate in an overlay and are written to sdb once all transactions
// succeeded, so a failing block leaves sdb untouched.
func (p *StateProcessor) Process(block *types.Block, sdb *state.StateDB) (*ProcessResult, error) {
	var (
		header   = block.Header()
		signer   = types.MakeSigner(p.config, header.Number, header.Time)
		db       = statedb.New(sdb)
		gp       = new(GasPool).AddGas(header.GasLimit)
		usedGas  = new(uint64)
		receipts = make(types.Receipts, 0, len(block.Transactions()))
		allLogs  []*types.Log
	)
	if p.BlockHashes != nil {
		db.SetBlockHashResolver(p.BlockHashes)
	}
	log.Debug("Processing block", "number", header.Number, "txs", len(block.Transactions()), "engine", p.executor.Engine())

	msgs := make([]*Message, len(block.Transactions()))
	for i, tx := range block.Transactions() {
		msg, err := TransactionToMessage(tx, signer, header.BaseFee)
		if err != nil {
			return nil, fmt.Errorf("could not apply tx %d [%v]: %w", i, tx.Hash().Hex(), err)
		}
		msgs[i] = msg
	}
	db.Prefetch(touchedAccounts(header, msgs))

	for i, tx := range block.Transactions() {
		receipt, err := p.executor.ExecuteTx(msgs[i], tx, i, gp, db, header, usedGas)
		if err != nil {
			return nil, fmt.Errorf("could not apply tx %d [%v]: %w", i, tx.Hash().Hex(), err)
		}
		for _, l := range receipt.Logs {
			l.Index = uint(len(allLogs))
			allLogs = append(allLogs, l)
		}
		receipts = append(receipts, receipt)
	}
	db.Flush()
	sdb.Finalise(true)

	accounts, slots := db.MissCounters()
	log.Debug("Processed block", "number", header.Number, "gasUsed", *usedGas, "logs", len(allLogs), "accountMisses", accounts, "storageMisses", slots)
	return &ProcessResult{Receipts: receipts, Logs: allLogs, GasUsed: *usedGas}, nil
}

// touchedAccounts lists the accounts a block is known to touch before it
// runs: the coinbase, every sender, recipient and created contract.
func touchedAccounts(header *types.Header, msgs []*Message) []statedb.BatchKey {
	seen := map[common.Address]struct{}{header.Coinbase: {}}
	keys := []statedb.BatchKey{{Address: header.Coinbase}}
	add := func(addr common.Address) {
		if _, ok := seen[addr]; ok {
			return
		}
		seen[addr] = struct{}{}
		keys = append(keys, statedb.BatchKey{Address: addr})
	}
	for _, msg := range msgs {
		add(msg.From)
		if msg.To != nil {
			add(*msg.To)
		} else {
			add(crypto.CreateAddress(msg.From, msg.Nonce))
		}
	}
	return keys
}
