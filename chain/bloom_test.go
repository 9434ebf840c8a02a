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
	"testing"

	"github.com/ember-vm/ember"
)

func TestBloom_CoversAddressesAndTopics(t *testing.T) {
	address := ember.Address{0x01}
	topic := ember.Hash{0x02}
	bloom := NewBloom([]ember.Log{{
		Address: address,
		Topics:  []ember.Hash{topic},
	}})

	if !bloom.Contains(address[:]) {
		t.Errorf("bloom filter does not cover the log address")
	}
	if !bloom.Contains(topic[:]) {
		t.Errorf("bloom filter does not cover the log topic")
	}

	other := ember.Hash{0x03}
	if bloom.Contains(other[:]) {
		t.Errorf("bloom filter covers unrelated data")
	}
}

func TestBloom_EmptyFilterContainsNothing(t *testing.T) {
	bloom := Bloom{}
	data := ember.Address{0x01}
	if bloom.Contains(data[:]) {
		t.Errorf("empty bloom filter must not contain anything")
	}
}

func TestBloom_OrMergesFilters(t *testing.T) {
	first := ember.Address{0x01}
	second := ember.Address{0x02}

	a := NewBloom([]ember.Log{{Address: first}})
	b := NewBloom([]ember.Log{{Address: second}})
	a.Or(b)

	if !a.Contains(first[:]) || !a.Contains(second[:]) {
		t.Errorf("merged bloom filter must cover both inputs")
	}
}

func TestAggregateBlooms_CombinesAllReceipts(t *testing.T) {
	addresses := []ember.Address{{0x01}, {0x02}, {0x03}}
	receipts := make([]Receipt, 0, len(addresses))
	for _, address := range addresses {
		receipts = append(receipts, Receipt{
			Bloom: NewBloom([]ember.Log{{Address: address}}),
		})
	}

	bloom := AggregateBlooms(receipts)
	for _, address := range addresses {
		if !bloom.Contains(address[:]) {
			t.Errorf("aggregated bloom filter does not cover address %x", address)
		}
	}
}
