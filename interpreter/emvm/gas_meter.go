// Copyright (c) 2024 Ember Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at emberlabs.dev/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package emvm

import "github.com/ember-vm/ember"

// gasMeter tracks the gas consumption of a single computation against a
// fixed limit, together with the refund counter accumulated by storage
// clearing operations. Consumption is monotonic; an attempt to consume more
// than the remaining gas clamps the consumption at the limit and is terminal.
type gasMeter struct {
	limit     ember.Gas
	consumed  ember.Gas
	refund    ember.Gas
	exhausted bool
}

func newGasMeter(limit ember.Gas) gasMeter {
	return gasMeter{limit: limit}
}

// consume deducts the given amount of gas. If the amount exceeds the
// remaining gas, all remaining gas is consumed and errOutOfGas is returned.
// Once exhausted, every further consumption fails as well.
func (m *gasMeter) consume(amount ember.Gas) error {
	if m.exhausted || amount < 0 || m.remaining() < amount {
		m.consumed = m.limit
		m.exhausted = true
		return errOutOfGas
	}
	m.consumed += amount
	return nil
}

// consumeAll marks the remaining gas as consumed. It is used when a
// computation terminates with an error, which charges the full gas budget.
func (m *gasMeter) consumeAll() {
	m.consumed = m.limit
}

// returnGas credits back gas that a nested computation did not consume.
func (m *gasMeter) returnGas(amount ember.Gas) {
	m.consumed -= amount
}

func (m *gasMeter) remaining() ember.Gas {
	return m.limit - m.consumed
}

// addRefund adjusts the refund counter by the given amount, which may be
// negative. The counter is unbounded here; it is capped against the total
// gas consumption when the enclosing transaction is finalized.
func (m *gasMeter) addRefund(amount ember.Gas) {
	m.refund += amount
}
