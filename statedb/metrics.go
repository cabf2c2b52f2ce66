package statedb

// ResetMissCounters zeroes the miss counters.
func (d *Database) ResetMissCounters() {
	d.accountMisses.Clear()
	d.storageMisses.Clear()
}

// MissCounters returns how many account and storage reads fell through the
// overlay to the StateDB since the last reset.
func (d *Database) MissCounters() (accounts, storage int64) {
	return d.accountMisses.Snapshot().Count(), d.storageMisses.Snapshot().Count()
}
