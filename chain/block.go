// Copyright (c) 2024 Ember Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at emberlabs.dev/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package chain implements the import of blocks on top of a world state.
// Transactions of a block are applied strictly in order; any invalid
// transaction aborts the whole import, restoring the pre-block state.
package chain

import (
	"github.com/ember-vm/ember"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// BlockHeader carries the execution-relevant fields of a block.
type BlockHeader struct {
	ParentHash ember.Hash
	Number     int64
	Timestamp  int64
	Coinbase   ember.Address
	GasLimit   ember.Gas
	PrevRandao ember.Hash
	BaseFee    ember.Value
}

// Block bundles a header with its ordered list of transactions and the
// withdrawals to be credited after their execution.
type Block struct {
	Header       BlockHeader
	Transactions []ember.Transaction
	Withdrawals  []Withdrawal
}

// Hash computes the hash identifying the block header. The header is
// canonically RLP encoded and hashed using keccak256.
func (h *BlockHeader) Hash() ember.Hash {
	encoded, err := rlp.EncodeToBytes([]interface{}{
		h.ParentHash[:],
		uint64(h.Number),
		uint64(h.Timestamp),
		h.Coinbase[:],
		uint64(h.GasLimit),
		h.PrevRandao[:],
		h.BaseFee.ToBig(),
	})
	if err != nil {
		// all fields above are RLP-encodable; this cannot fail
		panic(err)
	}
	return ember.Hash(crypto.Keccak256Hash(encoded))
}

// Receipt extends a transaction receipt by its position within a block: the
// cumulative gas used up to and including the transaction and the bloom
// filter over its logs.
type Receipt struct {
	ember.Receipt
	CumulativeGasUsed ember.Gas
	Bloom             Bloom
}
