package vm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Env carries everything a transaction execution reads from outside the
// state: configuration, block and transaction fields.
type Env struct {
	Cfg   CfgEnv
	Block BlockEnv
	Tx    TxEnv
}

// CfgEnv holds chain level configuration.
type CfgEnv struct {
	ChainID uint64
	Spec    SpecID

	// DisableNonceCheck skips comparing TxEnv.Nonce with the sender nonce.
	DisableNonceCheck bool
	// DisableBalanceCheck lets a sender run a transaction it cannot pay for.
	DisableBalanceCheck bool
}

// BlockEnv holds the fields of the block the transaction is executed in.
type BlockEnv struct {
	Number    uint64
	Coinbase  common.Address
	Timestamp uint64
	GasLimit  uint64
}

// TxEnv describes the transaction. A nil To means contract creation.
type TxEnv struct {
	Caller   common.Address
	To       *common.Address
	Value    uint256.Int
	Data     []byte
	GasLimit uint64
	GasPrice uint256.Int
	Nonce    *uint64
}

// IsCreate reports whether the transaction deploys a contract.
func (tx *TxEnv) IsCreate() bool { return tx.To == nil }
