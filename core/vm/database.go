package vm

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// ErrCodeNotFound is returned when a code hash has no known preimage.
var ErrCodeNotFound = errors.New("code not found")

// Database is the read side of account storage.
type Database interface {
	// Basic returns the account at addr, or nil if it does not exist.
	Basic(addr common.Address) (*AccountInfo, error)
	CodeByHash(hash common.Hash) ([]byte, error)
	Storage(addr common.Address, key common.Hash) (common.Hash, error)
	BlockHash(number uint64) (common.Hash, error)
}

// DatabaseCommit persists the state produced by a transaction.
type DatabaseCommit interface {
	Commit(state State)
}

// MemoryDB is a map backed Database used by tests and the CLI.
type MemoryDB struct {
	accounts map[common.Address]*memAccount
	code     map[common.Hash][]byte
}

type memAccount struct {
	info    AccountInfo
	storage map[common.Hash]common.Hash
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		accounts: make(map[common.Address]*memAccount),
		code:     make(map[common.Hash][]byte),
	}
}

func (db *MemoryDB) account(addr common.Address) *memAccount {
	acc, ok := db.accounts[addr]
	if !ok {
		acc = &memAccount{info: NewAccountInfo(), storage: make(map[common.Hash]common.Hash)}
		db.accounts[addr] = acc
	}
	return acc
}

// SetBalance overwrites the balance of addr, creating the account if needed.
func (db *MemoryDB) SetBalance(addr common.Address, balance *uint256.Int) {
	db.account(addr).info.Balance.Set(balance)
}

func (db *MemoryDB) SetNonce(addr common.Address, nonce uint64) {
	db.account(addr).info.Nonce = nonce
}

// SetCode installs code at addr.
func (db *MemoryDB) SetCode(addr common.Address, code []byte) {
	acc := db.account(addr)
	if len(code) == 0 {
		acc.info.CodeHash = types.EmptyCodeHash
		acc.info.Code = nil
		return
	}
	hash := crypto.Keccak256Hash(code)
	acc.info.CodeHash = hash
	acc.info.Code = code
	db.code[hash] = code
}

func (db *MemoryDB) SetStorage(addr common.Address, key, value common.Hash) {
	db.account(addr).storage[key] = value
}

func (db *MemoryDB) Basic(addr common.Address) (*AccountInfo, error) {
	acc, ok := db.accounts[addr]
	if !ok {
		return nil, nil
	}
	info := acc.info
	return &info, nil
}

func (db *MemoryDB) CodeByHash(hash common.Hash) ([]byte, error) {
	if hash == types.EmptyCodeHash {
		return nil, nil
	}
	code, ok := db.code[hash]
	if !ok {
		return nil, ErrCodeNotFound
	}
	return code, nil
}

func (db *MemoryDB) Storage(addr common.Address, key common.Hash) (common.Hash, error) {
	acc, ok := db.accounts[addr]
	if !ok {
		return common.Hash{}, nil
	}
	return acc.storage[key], nil
}

// BlockHash returns keccak256 of the big-endian block number, which is enough for
// deterministic tests.
func (db *MemoryDB) BlockHash(number uint64) (common.Hash, error) {
	return crypto.Keccak256Hash(new(uint256.Int).SetUint64(number).Bytes()), nil
}

// Commit applies touched accounts. Selfdestructed accounts are removed.
func (db *MemoryDB) Commit(state State) {
	for addr, acc := range state {
		if !acc.IsTouched() {
			continue
		}
		if acc.IsSelfDestructed() {
			delete(db.accounts, addr)
			continue
		}
		stored := db.account(addr)
		if acc.IsCreated() {
			stored.storage = make(map[common.Hash]common.Hash)
		}
		stored.info = acc.Info
		if len(acc.Info.Code) > 0 {
			db.code[acc.Info.CodeHash] = acc.Info.Code
		}
		for key, slot := range acc.Storage {
			if slot.IsChanged() {
				stored.storage[key] = slot.Present.Bytes32()
			}
		}
	}
}
