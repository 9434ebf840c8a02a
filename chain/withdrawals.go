// Copyright (c) 2024 Ember Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at emberlabs.dev/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package chain

import (
	"github.com/ember-vm/ember"
	"github.com/ember-vm/ember/state"
)

// Withdrawal credits funds to an account as part of a block, outside of the
// transaction flow. Amounts are denominated in Gwei.
type Withdrawal struct {
	Index          uint64
	ValidatorIndex uint64
	Recipient      ember.Address
	Amount         uint64
}

// gweiScale is the value of one Gwei in the smallest currency unit.
const gweiScale = 1_000_000_000

// processWithdrawals credits all withdrawal amounts to their recipients.
// Withdrawals cannot fail; accounts are created as needed.
func processWithdrawals(worldState *state.State, withdrawals []Withdrawal) {
	for _, withdrawal := range withdrawals {
		amount := ember.NewValue(withdrawal.Amount).Scale(gweiScale)
		balance := worldState.GetBalance(withdrawal.Recipient)
		worldState.SetBalance(withdrawal.Recipient, ember.Add(balance, amount))
	}
}
