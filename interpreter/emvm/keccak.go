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

import (
	"sync"

	"github.com/ember-vm/ember"
	"golang.org/x/crypto/sha3"
)

// keccakHasher is the subset of the sha3 state used for computing hashes.
// The Read method retrieves the hash without the final-copy overhead of Sum.
type keccakHasher interface {
	Reset()
	Write(data []byte) (int, error)
	Read(out []byte) (int, error)
}

var keccakHasherPool = sync.Pool{
	New: func() any {
		return sha3.NewLegacyKeccak256().(keccakHasher)
	},
}

// keccak256 computes the Keccak256 hash of the given data using a pooled
// hasher instance. This function is thread-safe.
func keccak256(data []byte) ember.Hash {
	hasher := keccakHasherPool.Get().(keccakHasher)
	defer keccakHasherPool.Put(hasher)

	hasher.Reset()
	hasher.Write(data)

	var hash ember.Hash
	hasher.Read(hash[:])
	return hash
}

// emptyCodeHash is the Keccak256 hash of empty input.
var emptyCodeHash = keccak256(nil)
