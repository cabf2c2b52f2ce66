package statedb

import (
	"github.com/ethereum/go-ethereum/common"
)

// BatchKey identifies an account, and optionally one of its storage slots, to
// load ahead of execution. A zero Slot only loads the account.
type BatchKey struct {
	Address common.Address
	Slot    common.Hash
}

// Prefetch loads keys into the StateDB object cache and the code cache so that
// execution does not hit the trie. It is best-effort: unknown accounts and
// slots are skipped, and keys already in the overlay are not read.
func (d *Database) Prefetch(keys []BatchKey) {
	if len(keys) == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, k := range keys {
		p, pending := d.pending[k.Address]
		if !pending {
			d.loadAccount(k.Address)
		}
		if k.Slot == (common.Hash{}) {
			continue
		}
		if pending {
			if _, ok := p.storage[k.Slot]; ok || p.cleared {
				continue
			}
		}
		d.db.GetState(k.Address, k.Slot)
	}
}
