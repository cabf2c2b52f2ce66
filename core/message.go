package core

import (
	"fmt"
	"math/big"

	"github.com/clydemeng/evminspect/core/vm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
)

// Message is a transaction with its sender recovered and its gas price
// resolved against the block base fee.
type Message struct {
	From     common.Address
	To       *common.Address
	Nonce    uint64
	Value    *uint256.Int
	GasLimit uint64
	GasPrice *uint256.Int
	Data     []byte
}

// TransactionToMessage converts tx into a Message. baseFee is nil before
// London.
func TransactionToMessage(tx *types.Transaction, s types.Signer, baseFee *big.Int) (*Message, error) {
	from, err := types.Sender(s, tx)
	if err != nil {
		return nil, fmt.Errorf("recover sender: %w", err)
	}
	price := new(big.Int).Set(tx.GasPrice())
	if baseFee != nil {
		price = math.BigMin(price.Add(tx.GasTipCap(), baseFee), tx.GasFeeCap())
	}
	gasPrice, overflow := uint256.FromBig(price)
	if overflow {
		return nil, fmt.Errorf("gas price %s overflows", price)
	}
	value, overflow := uint256.FromBig(tx.Value())
	if overflow {
		return nil, fmt.Errorf("value %s overflows", tx.Value())
	}
	return &Message{
		From:     from,
		To:       tx.To(),
		Nonce:    tx.Nonce(),
		Value:    value,
		GasLimit: tx.Gas(),
		GasPrice: gasPrice,
		Data:     tx.Data(),
	}, nil
}

// NewEnv builds the execution environment of msg inside the block described
// by header.
func NewEnv(config *params.ChainConfig, header *types.Header, msg *Message) *vm.Env {
	nonce := msg.Nonce
	env := &vm.Env{
		Cfg: vm.CfgEnv{
			ChainID: config.ChainID.Uint64(),
			Spec:    vm.SpecFromChainConfig(config, header.Number.Uint64(), header.Time),
		},
		Block: vm.BlockEnv{
			Number:    header.Number.Uint64(),
			Coinbase:  header.Coinbase,
			Timestamp: header.Time,
			GasLimit:  header.GasLimit,
		},
		Tx: vm.TxEnv{
			Caller:   msg.From,
			To:       msg.To,
			Data:     msg.Data,
			GasLimit: msg.GasLimit,
			Nonce:    &nonce,
		},
	}
	if msg.Value != nil {
		env.Tx.Value.Set(msg.Value)
	}
	if msg.GasPrice != nil {
		env.Tx.GasPrice.Set(msg.GasPrice)
	}
	return env
}
