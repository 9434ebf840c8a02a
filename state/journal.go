// Copyright (c) 2024 Ember Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at emberlabs.dev/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package state

import "github.com/ember-vm/ember"

// journalEntry is a single reverse operation recorded for a state
// modification. Reverting entries in reverse order of their creation restores
// the state at any earlier point of the ongoing transaction.
type journalEntry interface {
	revert(*State)
}

type balanceChange struct {
	addr ember.Address
	prev ember.Value
}

func (c balanceChange) revert(s *State) {
	s.accounts[c.addr].balance = c.prev
}

type nonceChange struct {
	addr ember.Address
	prev uint64
}

func (c nonceChange) revert(s *State) {
	s.accounts[c.addr].nonce = c.prev
}

type codeChange struct {
	addr ember.Address
	prev ember.Code
}

func (c codeChange) revert(s *State) {
	s.accounts[c.addr].code = c.prev
}

type storageChange struct {
	addr ember.Address
	key  ember.Key
	prev ember.Word
}

func (c storageChange) revert(s *State) {
	s.accounts[c.addr].storage[c.key] = c.prev
}

type accountCreated struct {
	addr ember.Address
}

func (c accountCreated) revert(s *State) {
	delete(s.accounts, c.addr)
}

type accountDeleted struct {
	addr    ember.Address
	account *account
}

func (c accountDeleted) revert(s *State) {
	s.accounts[c.addr] = c.account
}

type selfDestructMark struct {
	addr ember.Address
}

func (c selfDestructMark) revert(s *State) {
	delete(s.selfDestructed, c.addr)
}

type transientStorageChange struct {
	id   slotId
	prev ember.Word
}

func (c transientStorageChange) revert(s *State) {
	s.transientStorage[c.id] = c.prev
}

type accountAccess struct {
	addr ember.Address
}

func (c accountAccess) revert(s *State) {
	delete(s.accessedAccounts, c.addr)
}

type slotAccess struct {
	id slotId
}

func (c slotAccess) revert(s *State) {
	delete(s.accessedSlots, c.id)
}

type logEmitted struct{}

func (c logEmitted) revert(s *State) {
	s.logs = s.logs[:len(s.logs)-1]
}

type logMarkerMoved struct {
	prev int
}

func (c logMarkerMoved) revert(s *State) {
	s.txLogsStart = c.prev
}
