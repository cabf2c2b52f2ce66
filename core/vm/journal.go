package vm

import (
	"fmt"

	"github.com/clydemeng/evminspect/tracing"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// JournalEntry is a single reversible state change.
type JournalEntry interface {
	revert(state State)
}

// AccountLoaded records that an account was pulled into the state cache.
type AccountLoaded struct {
	Address common.Address
}

// AccountTouched records the first touch of an account.
type AccountTouched struct {
	Address common.Address
}

// AccountDestroyed records a selfdestruct. HadBalance was moved to Target.
type AccountDestroyed struct {
	Address      common.Address
	Target       common.Address
	WasDestroyed bool
	HadBalance   uint256.Int
}

// BalanceTransfer records a value movement between two accounts.
type BalanceTransfer struct {
	From    common.Address
	To      common.Address
	Balance uint256.Int
	Reason  tracing.BalanceChangeReason
}

// NonceChange records a nonce increment.
type NonceChange struct {
	Address common.Address
	Reason  tracing.NonceChangeReason
}

// AccountCreated records that a contract account was created.
type AccountCreated struct {
	Address common.Address
}

// StorageChange records a slot write together with the value it replaced.
type StorageChange struct {
	Address  common.Address
	Key      common.Hash
	HadValue uint256.Int
}

// CodeChange records code being installed on an account.
type CodeChange struct {
	Address common.Address
}

func (e AccountLoaded) revert(state State) {
	delete(state, e.Address)
}

func (e AccountTouched) revert(state State) {
	state[e.Address].unmark(statusTouched)
}

func (e AccountDestroyed) revert(state State) {
	acc := state[e.Address]
	if !e.WasDestroyed {
		acc.unmark(statusSelfDestructed)
	}
	acc.Info.Balance.Add(&acc.Info.Balance, &e.HadBalance)
	if e.Address != e.Target {
		target := state[e.Target]
		target.Info.Balance.Sub(&target.Info.Balance, &e.HadBalance)
	}
}

func (e BalanceTransfer) revert(state State) {
	from, to := state[e.From], state[e.To]
	from.Info.Balance.Add(&from.Info.Balance, &e.Balance)
	to.Info.Balance.Sub(&to.Info.Balance, &e.Balance)
}

func (e NonceChange) revert(state State) {
	state[e.Address].Info.Nonce--
}

func (e AccountCreated) revert(state State) {
	acc := state[e.Address]
	acc.unmark(statusCreated)
	acc.Info.Nonce = 0
}

func (e StorageChange) revert(state State) {
	state[e.Address].Storage[e.Key].Present = e.HadValue
}

func (e CodeChange) revert(state State) {
	acc := state[e.Address]
	acc.Info.CodeHash = types.EmptyCodeHash
	acc.Info.Code = nil
}

// Checkpoint marks a position in the journal and the log list that can be
// reverted to.
type Checkpoint struct {
	LogIndex     int
	JournalIndex int
}

// JournaledState is the account cache of a transaction together with the
// journal of every change made to it. The journal is split into one segment
// per checkpoint.
type JournaledState struct {
	State   State
	journal [][]JournalEntry
	logs    []*types.Log
	depth   int
	spec    SpecID
}

// NewJournaledState returns an empty journal for the given fork.
func NewJournaledState(spec SpecID) *JournaledState {
	return &JournaledState{
		State:   make(State),
		journal: [][]JournalEntry{{}},
		spec:    spec,
	}
}

// Depth is the current call depth.
func (j *JournaledState) Depth() int { return j.depth }

func (j *JournaledState) Spec() SpecID { return j.spec }

// Logs returns the logs emitted so far. Callers must not modify them.
func (j *JournaledState) Logs() []*types.Log { return j.logs }

func (j *JournaledState) LogCount() int { return len(j.logs) }

// LastEntry returns the most recent entry of the last journal segment, or nil
// if that segment is empty. Committed child segments are not popped.
func (j *JournaledState) LastEntry() JournalEntry {
	if len(j.journal) == 0 {
		return nil
	}
	seg := j.journal[len(j.journal)-1]
	if len(seg) == 0 {
		return nil
	}
	return seg[len(seg)-1]
}

// JournalPosition is the end of the journal: the number of segments and the
// length of the last one. Committed segments stay in place, so comparing two
// positions tells whether anything was journaled in between.
type JournalPosition struct {
	Segments int
	Entries  int
}

// Position returns the current end of the journal.
func (j *JournaledState) Position() JournalPosition {
	pos := JournalPosition{Segments: len(j.journal)}
	if pos.Segments > 0 {
		pos.Entries = len(j.journal[pos.Segments-1])
	}
	return pos
}

func (j *JournaledState) push(e JournalEntry) {
	last := len(j.journal) - 1
	j.journal[last] = append(j.journal[last], e)
}

// Checkpoint opens a new journal segment one level deeper.
func (j *JournaledState) Checkpoint() Checkpoint {
	cp := Checkpoint{LogIndex: len(j.logs), JournalIndex: len(j.journal)}
	j.depth++
	j.journal = append(j.journal, []JournalEntry{})
	return cp
}

// CheckpointCommit keeps every change made since the checkpoint.
func (j *JournaledState) CheckpointCommit() {
	j.depth--
}

// CheckpointRevert undoes every change made since cp, newest first.
func (j *JournaledState) CheckpointRevert(cp Checkpoint) {
	j.depth--
	for i := len(j.journal) - 1; i >= cp.JournalIndex; i-- {
		seg := j.journal[i]
		for k := len(seg) - 1; k >= 0; k-- {
			seg[k].revert(j.State)
		}
	}
	j.journal = j.journal[:cp.JournalIndex]
	j.logs = j.logs[:cp.LogIndex]
}

// LoadAccount returns the account at addr, reading it from db on first use.
func (j *JournaledState) LoadAccount(db Database, addr common.Address) (*Account, error) {
	if acc, ok := j.State[addr]; ok {
		return acc, nil
	}
	info, err := db.Basic(addr)
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", addr, err)
	}
	var acc *Account
	if info == nil {
		acc = newAccount(NewAccountInfo(), false)
	} else {
		acc = newAccount(*info, true)
	}
	j.State[addr] = acc
	j.push(AccountLoaded{Address: addr})
	return acc, nil
}

// LoadCode returns the account at addr with its code resolved.
func (j *JournaledState) LoadCode(db Database, addr common.Address) (*Account, error) {
	acc, err := j.LoadAccount(db, addr)
	if err != nil {
		return nil, err
	}
	if acc.Info.Code == nil && acc.Info.CodeHash != types.EmptyCodeHash && acc.Info.CodeHash != (common.Hash{}) {
		code, err := db.CodeByHash(acc.Info.CodeHash)
		if err != nil {
			return nil, fmt.Errorf("load code %s: %w", acc.Info.CodeHash, err)
		}
		acc.Info.Code = code
	}
	return acc, nil
}

// Touch marks a loaded account as touched.
func (j *JournaledState) Touch(addr common.Address) {
	acc := j.State[addr]
	if acc == nil || acc.IsTouched() {
		return
	}
	acc.mark(statusTouched)
	j.push(AccountTouched{Address: addr})
}

// Transfer moves value between two accounts. It returns OutOfFunds when the
// sender cannot cover it.
func (j *JournaledState) Transfer(db Database, from, to common.Address, value *uint256.Int, reason tracing.BalanceChangeReason) (InstructionResult, error) {
	fromAcc, err := j.LoadAccount(db, from)
	if err != nil {
		return FatalExternalError, err
	}
	toAcc, err := j.LoadAccount(db, to)
	if err != nil {
		return FatalExternalError, err
	}
	j.Touch(from)
	j.Touch(to)
	if value.IsZero() {
		return Continue, nil
	}
	if fromAcc.Info.Balance.Lt(value) {
		return OutOfFunds, nil
	}
	fromAcc.Info.Balance.Sub(&fromAcc.Info.Balance, value)
	toAcc.Info.Balance.Add(&toAcc.Info.Balance, value)
	j.push(BalanceTransfer{From: from, To: to, Balance: *value, Reason: reason})
	return Continue, nil
}

// IncNonce bumps the nonce of a loaded account. It returns false on overflow.
func (j *JournaledState) IncNonce(addr common.Address, reason tracing.NonceChangeReason) bool {
	acc := j.State[addr]
	if acc.Info.Nonce == ^uint64(0) {
		return false
	}
	j.Touch(addr)
	acc.Info.Nonce++
	j.push(NonceChange{Address: addr, Reason: reason})
	return true
}

// CreateAccountCheckpoint opens a checkpoint for a new contract at address and
// moves the endowment into it. On failure no checkpoint is left open.
func (j *JournaledState) CreateAccountCheckpoint(db Database, caller, address common.Address, value *uint256.Int) (Checkpoint, InstructionResult, error) {
	acc, err := j.LoadAccount(db, address)
	if err != nil {
		return Checkpoint{}, FatalExternalError, err
	}
	if acc.Info.Nonce != 0 || (acc.Info.CodeHash != types.EmptyCodeHash && acc.Info.CodeHash != (common.Hash{})) {
		return Checkpoint{}, CreateCollision, nil
	}
	cp := j.Checkpoint()
	acc.mark(statusCreated)
	j.push(AccountCreated{Address: address})
	j.Touch(address)
	if j.spec.Enabled(SpuriousDragon) {
		acc.Info.Nonce = 1
	}
	res, err := j.Transfer(db, caller, address, value, tracing.BalanceChangeCreateEndowment)
	if err != nil || res != Continue {
		j.CheckpointRevert(cp)
		return Checkpoint{}, res, err
	}
	return cp, Continue, nil
}

// SetCode installs code on a loaded account.
func (j *JournaledState) SetCode(addr common.Address, code []byte) {
	acc := j.State[addr]
	j.Touch(addr)
	j.push(CodeChange{Address: addr})
	acc.Info.Code = code
	if len(code) == 0 {
		acc.Info.CodeHash = types.EmptyCodeHash
	} else {
		acc.Info.CodeHash = crypto.Keccak256Hash(code)
	}
}

// SLoad reads a storage slot of a loaded account.
func (j *JournaledState) SLoad(db Database, addr common.Address, key common.Hash) (uint256.Int, error) {
	acc, err := j.LoadAccount(db, addr)
	if err != nil {
		return uint256.Int{}, err
	}
	if slot, ok := acc.Storage[key]; ok {
		return slot.Present, nil
	}
	var value uint256.Int
	if !acc.IsCreated() {
		raw, err := db.Storage(addr, key)
		if err != nil {
			return uint256.Int{}, fmt.Errorf("load storage %s/%s: %w", addr, key, err)
		}
		value.SetBytes32(raw[:])
	}
	acc.Storage[key] = &StorageSlot{Original: value, Present: value}
	return value, nil
}

// SStore writes a storage slot and returns the value it replaced.
func (j *JournaledState) SStore(db Database, addr common.Address, key common.Hash, value *uint256.Int) (uint256.Int, error) {
	prev, err := j.SLoad(db, addr, key)
	if err != nil {
		return uint256.Int{}, err
	}
	if prev == *value {
		return prev, nil
	}
	j.Touch(addr)
	j.push(StorageChange{Address: addr, Key: key, HadValue: prev})
	j.State[addr].Storage[key].Present = *value
	return prev, nil
}

// Log appends a log record.
func (j *JournaledState) Log(l *types.Log) {
	j.logs = append(j.logs, l)
}

// SelfdestructResult describes what a selfdestruct did.
type SelfdestructResult struct {
	HadValue            bool
	TargetExists        bool
	PreviouslyDestroyed bool
}

// Selfdestruct moves the balance of address to target and, unless EIP-6780
// applies, marks the account destroyed.
func (j *JournaledState) Selfdestruct(db Database, address, target common.Address) (SelfdestructResult, error) {
	targetAcc, err := j.LoadAccount(db, target)
	if err != nil {
		return SelfdestructResult{}, err
	}
	targetExists := targetAcc.Exists() && !targetAcc.Info.IsEmpty()
	acc := j.State[address]
	balance := acc.Info.Balance
	if address != target {
		j.Touch(target)
		targetAcc.Info.Balance.Add(&targetAcc.Info.Balance, &balance)
	}
	previouslyDestroyed := acc.IsSelfDestructed()
	switch {
	case acc.IsCreated() || !j.spec.Enabled(Cancun):
		j.Touch(address)
		acc.mark(statusSelfDestructed)
		acc.Info.Balance.Clear()
		j.push(AccountDestroyed{
			Address:      address,
			Target:       target,
			WasDestroyed: previouslyDestroyed,
			HadBalance:   balance,
		})
	case address != target:
		acc.Info.Balance.Clear()
		j.push(BalanceTransfer{From: address, To: target, Balance: balance, Reason: tracing.BalanceChangeSelfdestruct})
	}
	return SelfdestructResult{
		HadValue:            !balance.IsZero(),
		TargetExists:        targetExists,
		PreviouslyDestroyed: previouslyDestroyed,
	}, nil
}

// Finalize hands over the state and logs of the transaction and resets the
// journal.
func (j *JournaledState) Finalize() (State, []*types.Log) {
	state, logs := j.State, j.logs
	for i, l := range logs {
		l.Index = uint(i)
	}
	j.State = make(State)
	j.journal = [][]JournalEntry{{}}
	j.logs = nil
	j.depth = 0
	return state, logs
}
