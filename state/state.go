// Copyright (c) 2024 Ember Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at emberlabs.dev/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package state provides an in-memory, journal-backed implementation of the
// transaction context required to run transactions. Every modification is
// recorded in a journal of inverse operations, allowing arbitrarily nested
// snapshots to be restored in LIFO order.
package state

import (
	"github.com/ember-vm/ember"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/exp/maps"
)

// Account is the externally visible representation of a single account. It is
// used to initialize a state and to inspect its content.
type Account struct {
	Balance ember.Value
	Nonce   uint64
	Code    ember.Code
	Storage map[ember.Key]ember.Word
}

type account struct {
	balance ember.Value
	nonce   uint64
	code    ember.Code
	storage map[ember.Key]ember.Word
}

func (a *account) isEmpty() bool {
	return a.balance.IsZero() && a.nonce == 0 && len(a.code) == 0
}

type slotId struct {
	addr ember.Address
	key  ember.Key
}

// BlockHashSource provides the hashes of recent blocks for the BLOCKHASH
// instruction. It may be nil, in which case all hashes are zero.
type BlockHashSource func(number int64) ember.Hash

// State implements a transaction context over an in-memory world state. It is
// not thread-safe; a single state must not be used by multiple transactions
// concurrently.
type State struct {
	accounts map[ember.Address]*account

	journal   []journalEntry
	snapshots []int // journal length at the time of each snapshot

	// per-transaction tracking, reset by BeginTransaction
	committedStorage map[slotId]ember.Word
	accessedAccounts map[ember.Address]struct{}
	accessedSlots    map[slotId]struct{}
	transientStorage map[slotId]ember.Word
	selfDestructed   map[ember.Address]struct{}

	// logs accumulate over a whole block so the journal can revert them
	// across transaction boundaries; txLogsStart marks the first log of
	// the ongoing transaction.
	logs        []ember.Log
	txLogsStart int

	blockHashes BlockHashSource
}

// NewState creates a state initialized with the given accounts.
func NewState(accounts map[ember.Address]Account) *State {
	s := &State{
		accounts:         map[ember.Address]*account{},
		committedStorage: map[slotId]ember.Word{},
		accessedAccounts: map[ember.Address]struct{}{},
		accessedSlots:    map[slotId]struct{}{},
		transientStorage: map[slotId]ember.Word{},
		selfDestructed:   map[ember.Address]struct{}{},
	}
	for addr, cur := range accounts {
		s.accounts[addr] = &account{
			balance: cur.Balance,
			nonce:   cur.Nonce,
			code:    cur.Code,
			storage: maps.Clone(cur.Storage),
		}
	}
	return s
}

// WithBlockHashSource sets the provider of historic block hashes.
func (s *State) WithBlockHashSource(source BlockHashSource) *State {
	s.blockHashes = source
	return s
}

// GetAccount returns a copy of the account with the given address.
func (s *State) GetAccount(addr ember.Address) Account {
	cur, found := s.accounts[addr]
	if !found {
		return Account{}
	}
	return Account{
		Balance: cur.balance,
		Nonce:   cur.nonce,
		Code:    cur.code,
		Storage: maps.Clone(cur.storage),
	}
}

// BeginBlock discards the journal and the collected logs of the previous
// block. Snapshots created before this call must no longer be restored.
func (s *State) BeginBlock() {
	s.journal = s.journal[:0]
	s.snapshots = s.snapshots[:0]
	s.logs = nil // receipts may still reference the old slice
	s.txLogsStart = 0
}

// BeginTransaction resets all per-transaction tracking: access lists,
// transient storage, logs, self-destruct markers, and the record of committed
// storage values. State modified by earlier transactions remains in place,
// and so does the journal, allowing a block-level snapshot to span multiple
// transactions.
func (s *State) BeginTransaction() {
	maps.Clear(s.committedStorage)
	maps.Clear(s.accessedAccounts)
	maps.Clear(s.accessedSlots)
	maps.Clear(s.transientStorage)
	maps.Clear(s.selfDestructed)
	// The log marker move is journaled so a block-level revert crossing
	// this transaction's start restores the previous transaction's logs.
	s.journal = append(s.journal, logMarkerMoved{s.txLogsStart})
	s.txLogsStart = len(s.logs)
}

// EndTransaction concludes the ongoing transaction by removing all accounts
// that have self-destructed during its execution. The removals are journaled
// and thus covered by snapshots that are still live.
func (s *State) EndTransaction() {
	for addr := range s.selfDestructed {
		if cur, found := s.accounts[addr]; found {
			s.journal = append(s.journal, accountDeleted{addr, cur})
			delete(s.accounts, addr)
		}
	}
	maps.Clear(s.selfDestructed)
}

// ------------------ world state ------------------

func (s *State) AccountExists(addr ember.Address) bool {
	cur, found := s.accounts[addr]
	return found && !cur.isEmpty()
}

func (s *State) GetBalance(addr ember.Address) ember.Value {
	if cur, found := s.accounts[addr]; found {
		return cur.balance
	}
	return ember.Value{}
}

func (s *State) SetBalance(addr ember.Address, balance ember.Value) {
	cur := s.getOrCreateAccount(addr)
	if cur.balance == balance {
		return
	}
	s.journal = append(s.journal, balanceChange{addr, cur.balance})
	cur.balance = balance
}

func (s *State) GetNonce(addr ember.Address) uint64 {
	if cur, found := s.accounts[addr]; found {
		return cur.nonce
	}
	return 0
}

func (s *State) SetNonce(addr ember.Address, nonce uint64) {
	cur := s.getOrCreateAccount(addr)
	if cur.nonce == nonce {
		return
	}
	s.journal = append(s.journal, nonceChange{addr, cur.nonce})
	cur.nonce = nonce
}

func (s *State) GetCode(addr ember.Address) ember.Code {
	if cur, found := s.accounts[addr]; found {
		return cur.code
	}
	return nil
}

func (s *State) GetCodeHash(addr ember.Address) ember.Hash {
	cur, found := s.accounts[addr]
	if !found {
		return ember.Hash{}
	}
	return ember.Hash(crypto.Keccak256Hash(cur.code))
}

func (s *State) GetCodeSize(addr ember.Address) int {
	return len(s.GetCode(addr))
}

func (s *State) SetCode(addr ember.Address, code ember.Code) {
	cur := s.getOrCreateAccount(addr)
	s.journal = append(s.journal, codeChange{addr, cur.code})
	cur.code = code
}

func (s *State) GetStorage(addr ember.Address, key ember.Key) ember.Word {
	if cur, found := s.accounts[addr]; found {
		return cur.storage[key]
	}
	return ember.Word{}
}

func (s *State) SetStorage(addr ember.Address, key ember.Key, value ember.Word) ember.StorageStatus {
	current := s.GetStorage(addr, key)
	original := s.GetCommittedStorage(addr, key)

	id := slotId{addr, key}
	if _, found := s.committedStorage[id]; !found {
		s.committedStorage[id] = original
	}

	if current != value {
		cur := s.getOrCreateAccount(addr)
		if cur.storage == nil {
			cur.storage = map[ember.Key]ember.Word{}
		}
		// the account-creation entry is journaled first, such that a revert
		// removes the slot before removing the account
		s.journal = append(s.journal, storageChange{addr, key, current})
		cur.storage[key] = value
	}
	return ember.GetStorageStatus(original, current, value)
}

func (s *State) SelfDestruct(addr ember.Address, beneficiary ember.Address) bool {
	balance := s.GetBalance(addr)
	if addr != beneficiary {
		s.SetBalance(beneficiary, ember.Add(s.GetBalance(beneficiary), balance))
	}
	s.SetBalance(addr, ember.Value{})

	if _, destroyed := s.selfDestructed[addr]; destroyed {
		return false
	}
	s.journal = append(s.journal, selfDestructMark{addr})
	s.selfDestructed[addr] = struct{}{}
	return true
}

func (s *State) HasSelfDestructed(addr ember.Address) bool {
	_, found := s.selfDestructed[addr]
	return found
}

func (s *State) getOrCreateAccount(addr ember.Address) *account {
	if cur, found := s.accounts[addr]; found {
		return cur
	}
	cur := &account{}
	s.accounts[addr] = cur
	s.journal = append(s.journal, accountCreated{addr})
	return cur
}

// ------------------ snapshots ------------------

func (s *State) CreateSnapshot() ember.Snapshot {
	s.snapshots = append(s.snapshots, len(s.journal))
	return ember.Snapshot(len(s.snapshots) - 1)
}

func (s *State) RestoreSnapshot(snapshot ember.Snapshot) {
	if int(snapshot) >= len(s.snapshots) {
		return
	}
	limit := s.snapshots[snapshot]
	for len(s.journal) > limit {
		entry := s.journal[len(s.journal)-1]
		s.journal = s.journal[:len(s.journal)-1]
		entry.revert(s)
	}
	s.snapshots = s.snapshots[:snapshot]
}

// ------------------ transient storage ------------------

func (s *State) GetTransientStorage(addr ember.Address, key ember.Key) ember.Word {
	return s.transientStorage[slotId{addr, key}]
}

func (s *State) SetTransientStorage(addr ember.Address, key ember.Key, value ember.Word) {
	id := slotId{addr, key}
	current := s.transientStorage[id]
	if current == value {
		return
	}
	s.journal = append(s.journal, transientStorageChange{id, current})
	s.transientStorage[id] = value
}

// ------------------ access lists ------------------

func (s *State) AccessAccount(addr ember.Address) ember.AccessStatus {
	if _, found := s.accessedAccounts[addr]; found {
		return ember.WarmAccess
	}
	s.journal = append(s.journal, accountAccess{addr})
	s.accessedAccounts[addr] = struct{}{}
	return ember.ColdAccess
}

func (s *State) AccessStorage(addr ember.Address, key ember.Key) ember.AccessStatus {
	id := slotId{addr, key}
	if _, found := s.accessedSlots[id]; found {
		return ember.WarmAccess
	}
	s.journal = append(s.journal, slotAccess{id})
	s.accessedSlots[id] = struct{}{}
	return ember.ColdAccess
}

// ------------------ logs ------------------

func (s *State) EmitLog(log ember.Log) {
	s.journal = append(s.journal, logEmitted{})
	s.logs = append(s.logs, log)
}

func (s *State) GetLogs() []ember.Log {
	return s.logs[s.txLogsStart:]
}

// ------------------ miscellaneous ------------------

func (s *State) GetBlockHash(number int64) ember.Hash {
	if s.blockHashes == nil {
		return ember.Hash{}
	}
	return s.blockHashes(number)
}

func (s *State) GetCommittedStorage(addr ember.Address, key ember.Key) ember.Word {
	if value, found := s.committedStorage[slotId{addr, key}]; found {
		return value
	}
	return s.GetStorage(addr, key)
}
