package vm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// AccountInfo is the basic account data stored in the database.
type AccountInfo struct {
	Balance  uint256.Int
	Nonce    uint64
	CodeHash common.Hash
	Code     []byte // may be nil until loaded by hash
}

// NewAccountInfo returns an empty account with the empty code hash.
func NewAccountInfo() AccountInfo {
	return AccountInfo{CodeHash: types.EmptyCodeHash}
}

// IsEmpty reports whether the account has zero nonce, zero balance and no code.
func (a *AccountInfo) IsEmpty() bool {
	return a.Nonce == 0 && a.Balance.IsZero() && (a.CodeHash == types.EmptyCodeHash || a.CodeHash == (common.Hash{}))
}

// StorageSlot keeps the value a slot had when first loaded next to the
// present value.
type StorageSlot struct {
	Original uint256.Int
	Present  uint256.Int
}

// IsChanged reports whether the slot differs from its original value.
func (s *StorageSlot) IsChanged() bool { return s.Original != s.Present }

type accountStatus uint8

const (
	statusTouched accountStatus = 1 << iota
	statusCreated
	statusSelfDestructed
	statusNotExisting
)

// Account is the in-memory view of an account during a transaction.
type Account struct {
	Info    AccountInfo
	Storage map[common.Hash]*StorageSlot

	status accountStatus
}

func newAccount(info AccountInfo, existing bool) *Account {
	acc := &Account{Info: info, Storage: make(map[common.Hash]*StorageSlot)}
	if !existing {
		acc.status |= statusNotExisting
	}
	return acc
}

func (a *Account) IsTouched() bool        { return a.status&statusTouched != 0 }
func (a *Account) IsCreated() bool        { return a.status&statusCreated != 0 }
func (a *Account) IsSelfDestructed() bool { return a.status&statusSelfDestructed != 0 }

// Exists reports whether the account was present in the database or has
// been created since.
func (a *Account) Exists() bool {
	return a.status&statusNotExisting == 0 || a.IsCreated()
}

func (a *Account) mark(s accountStatus)   { a.status |= s }
func (a *Account) unmark(s accountStatus) { a.status &^= s }

// State is the set of accounts loaded or modified by a transaction.
type State map[common.Address]*Account
