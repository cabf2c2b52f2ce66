// Package statedb backs the interpreter with a go-ethereum StateDB.
//
// Transactions commit into a block-level overlay that is only written to the
// StateDB by Flush, so the StateDB sees one consistent set of changes per
// block no matter how many transactions ran against the overlay.
package statedb

import (
	"bytes"
	"sync"

	"github.com/clydemeng/evminspect/core/vm"
	"github.com/clydemeng/evminspect/tracing"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
)

const codeCacheSize = 1024

// pendingAccount is the overlay entry of an account changed during the block.
type pendingAccount struct {
	info    *vm.AccountInfo // nil once destroyed
	storage map[common.Hash]common.Hash
	// cleared is set when the account was destroyed or created, so slots
	// missing from storage read as zero instead of falling through.
	cleared bool
	created bool
}

// Database implements vm.Database and vm.DatabaseCommit on top of a StateDB.
type Database struct {
	db        *state.StateDB
	codeCache *lru.Cache[common.Hash, []byte]

	pending map[common.Address]*pendingAccount

	// blockHashes resolves BLOCKHASH queries. Unknown blocks resolve to the
	// zero hash.
	blockHashes func(number uint64) common.Hash

	accountMisses *metrics.Counter
	storageMisses *metrics.Counter

	// StateDB is not safe for concurrent use.
	mu sync.Mutex
}

// New wraps db.
func New(db *state.StateDB) *Database {
	return &Database{
		db:            db,
		codeCache:     lru.NewCache[common.Hash, []byte](codeCacheSize),
		pending:       make(map[common.Address]*pendingAccount),
		accountMisses: metrics.NewCounter(),
		storageMisses: metrics.NewCounter(),
	}
}

// SetBlockHashResolver installs the resolver used for BLOCKHASH.
func (d *Database) SetBlockHashResolver(fn func(number uint64) common.Hash) {
	d.blockHashes = fn
}

// StateDB returns the wrapped state.
func (d *Database) StateDB() *state.StateDB { return d.db }

// Basic returns the account at addr, reading through the overlay.
func (d *Database) Basic(addr common.Address) (*vm.AccountInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pending[addr]; ok {
		if p.info == nil {
			return nil, nil
		}
		info := *p.info
		return &info, nil
	}
	d.accountMisses.Inc(1)
	return d.loadAccount(addr), nil
}

func (d *Database) loadAccount(addr common.Address) *vm.AccountInfo {
	if !d.db.Exist(addr) {
		return nil
	}
	info := &vm.AccountInfo{
		Nonce:    d.db.GetNonce(addr),
		CodeHash: d.db.GetCodeHash(addr),
	}
	info.Balance.Set(d.db.GetBalance(addr))
	if info.CodeHash == (common.Hash{}) {
		info.CodeHash = types.EmptyCodeHash
	}
	if info.CodeHash != types.EmptyCodeHash {
		code, ok := d.codeCache.Get(info.CodeHash)
		if !ok {
			code = bytes.Clone(d.db.GetCode(addr))
			d.codeCache.Add(info.CodeHash, code)
		}
		info.Code = code
	}
	return info
}

// CodeByHash returns code seen through Basic or committed to the overlay.
func (d *Database) CodeByHash(hash common.Hash) ([]byte, error) {
	if hash == types.EmptyCodeHash {
		return nil, nil
	}
	if code, ok := d.codeCache.Get(hash); ok {
		return code, nil
	}
	return nil, vm.ErrCodeNotFound
}

// Storage returns the value of key in the storage of addr.
func (d *Database) Storage(addr common.Address, key common.Hash) (common.Hash, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pending[addr]; ok {
		if val, ok := p.storage[key]; ok {
			return val, nil
		}
		if p.cleared {
			return common.Hash{}, nil
		}
	}
	d.storageMisses.Inc(1)
	return d.db.GetState(addr, key), nil
}

func (d *Database) BlockHash(number uint64) (common.Hash, error) {
	if d.blockHashes == nil {
		return common.Hash{}, nil
	}
	return d.blockHashes(number), nil
}

// Commit records the touched accounts of a transaction in the overlay.
func (d *Database) Commit(changes vm.State) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for addr, acc := range changes {
		if !acc.IsTouched() {
			continue
		}
		p, ok := d.pending[addr]
		if !ok {
			p = &pendingAccount{storage: make(map[common.Hash]common.Hash)}
			d.pending[addr] = p
		}
		if acc.IsSelfDestructed() {
			p.info = nil
			p.storage = make(map[common.Hash]common.Hash)
			p.cleared = true
			p.created = false
			continue
		}
		if acc.IsCreated() {
			p.storage = make(map[common.Hash]common.Hash)
			p.cleared = true
			p.created = true
		}
		info := acc.Info
		p.info = &info
		if len(info.Code) > 0 {
			d.codeCache.Add(info.CodeHash, info.Code)
		}
		for key, slot := range acc.Storage {
			if slot.IsChanged() {
				p.storage[key] = slot.Present.Bytes32()
			}
		}
	}
}

// HasPending reports whether the overlay holds changes not yet flushed.
func (d *Database) HasPending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending) > 0
}

// Flush writes the overlay to the StateDB and clears it. It is meant to be
// called once per block, before the state root is computed.
func (d *Database) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.pending) == 0 {
		return
	}
	balanceReason := tracing.BalanceChangeTransfer.ToGeth()
	nonceReason := tracing.NonceChangeTransaction.ToGeth()
	for addr, p := range d.pending {
		if p.info == nil {
			if d.db.Exist(addr) {
				d.db.SelfDestruct(addr)
			}
			continue
		}
		if p.created {
			d.db.CreateAccount(addr)
			d.db.CreateContract(addr)
		}
		// Empty accounts are left to the StateDB's own pruning on commit.
		if p.info.IsEmpty() && !d.db.Exist(addr) {
			continue
		}
		if prev := d.db.GetBalance(addr); !prev.Eq(&p.info.Balance) {
			d.db.SetBalance(addr, &p.info.Balance, balanceReason)
		}
		if d.db.GetNonce(addr) != p.info.Nonce {
			d.db.SetNonce(addr, p.info.Nonce, nonceReason)
		}
		if p.info.CodeHash != types.EmptyCodeHash && d.db.GetCodeHash(addr) != p.info.CodeHash {
			code := p.info.Code
			if code == nil {
				code, _ = d.codeCache.Get(p.info.CodeHash)
			}
			d.db.SetCode(addr, code)
		}
		for key, val := range p.storage {
			d.db.SetState(addr, key, val)
		}
		log.Trace("Flushed account", "addr", addr, "balance", &p.info.Balance, "nonce", p.info.Nonce, "slots", len(p.storage))
	}
	log.Debug("Flushed pending state", "accounts", len(d.pending))
	d.pending = make(map[common.Address]*pendingAccount)
}
