package vm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// CallScheme is the flavour of a message call.
type CallScheme uint8

const (
	CallSchemeCall CallScheme = iota
	CallSchemeStaticCall
)

func (s CallScheme) String() string {
	if s == CallSchemeStaticCall {
		return "STATICCALL"
	}
	return "CALL"
}

// CallInputs describes a message call before its frame is built.
type CallInputs struct {
	Contract common.Address // code and storage owner
	Caller   common.Address
	Value    uint256.Int
	Input    []byte
	GasLimit uint64
	Scheme   CallScheme
	IsStatic bool
}

// NewCallInputs derives the top-level call from a transaction. It returns nil
// for contract creations.
func NewCallInputs(tx *TxEnv, gasLimit uint64) *CallInputs {
	if tx.To == nil {
		return nil
	}
	inputs := &CallInputs{
		Contract: *tx.To,
		Caller:   tx.Caller,
		Input:    tx.Data,
		GasLimit: gasLimit,
		Scheme:   CallSchemeCall,
	}
	inputs.Value.Set(&tx.Value)
	return inputs
}

// TransfersValue reports whether the call moves a non-zero amount.
func (c *CallInputs) TransfersValue() bool { return !c.Value.IsZero() }

// CreateScheme selects the address derivation of a contract creation.
type CreateScheme uint8

const (
	CreateSchemeCreate CreateScheme = iota
	CreateSchemeCreate2
)

func (s CreateScheme) String() string {
	if s == CreateSchemeCreate2 {
		return "CREATE2"
	}
	return "CREATE"
}

// CreateInputs describes a contract creation before its frame is built.
type CreateInputs struct {
	Caller   common.Address
	Scheme   CreateScheme
	Salt     uint256.Int // CREATE2 only
	Value    uint256.Int
	InitCode []byte
	GasLimit uint64
}

// NewCreateInputs derives the top-level creation from a transaction. It
// returns nil for message calls.
func NewCreateInputs(tx *TxEnv, gasLimit uint64) *CreateInputs {
	if tx.To != nil {
		return nil
	}
	inputs := &CreateInputs{
		Caller:   tx.Caller,
		Scheme:   CreateSchemeCreate,
		InitCode: tx.Data,
		GasLimit: gasLimit,
	}
	inputs.Value.Set(&tx.Value)
	return inputs
}

// CreatedAddress returns the address the contract will be deployed at, given
// the caller nonce before it is incremented.
func (c *CreateInputs) CreatedAddress(nonce uint64) common.Address {
	if c.Scheme == CreateSchemeCreate2 {
		return crypto.CreateAddress2(c.Caller, c.Salt.Bytes32(), crypto.Keccak256(c.InitCode))
	}
	return crypto.CreateAddress(c.Caller, nonce)
}
