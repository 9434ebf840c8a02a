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
	"github.com/ethereum/go-ethereum/crypto"
)

// Bloom is a 2048-bit filter over the addresses and topics of a set of logs.
// It allows a quick check whether a block may contain logs of interest
// without inspecting every receipt.
type Bloom [256]byte

// NewBloom creates a bloom filter covering the given logs.
func NewBloom(logs []ember.Log) Bloom {
	bloom := Bloom{}
	for _, log := range logs {
		bloom.add(log.Address[:])
		for _, topic := range log.Topics {
			bloom.add(topic[:])
		}
	}
	return bloom
}

// add sets the three filter bits derived from the given data. Each bit index
// is formed from a pair of bytes of the data's keccak256 hash, reduced to the
// filter size.
func (b *Bloom) add(data []byte) {
	hash := crypto.Keccak256(data)
	for i := 0; i < 6; i += 2 {
		bit := (uint(hash[i])<<8 | uint(hash[i+1])) & 0x7FF
		b[len(b)-1-int(bit/8)] |= 1 << (bit % 8)
	}
}

// Contains returns true if all filter bits derived from the given data are
// set. False positives are possible, false negatives are not.
func (b *Bloom) Contains(data []byte) bool {
	hash := crypto.Keccak256(data)
	for i := 0; i < 6; i += 2 {
		bit := (uint(hash[i])<<8 | uint(hash[i+1])) & 0x7FF
		if b[len(b)-1-int(bit/8)]&(1<<(bit%8)) == 0 {
			return false
		}
	}
	return true
}

// Or merges the given filter into this one.
func (b *Bloom) Or(other Bloom) {
	for i := range b {
		b[i] |= other[i]
	}
}

// AggregateBlooms combines the bloom filters of all given receipts into a
// single block-level filter.
func AggregateBlooms(receipts []Receipt) Bloom {
	bloom := Bloom{}
	for _, receipt := range receipts {
		bloom.Or(receipt.Bloom)
	}
	return bloom
}
