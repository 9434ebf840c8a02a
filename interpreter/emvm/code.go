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
	"github.com/ember-vm/ember"
	lru "github.com/hashicorp/golang-lru/v2"
)

// codeAnalysis holds the result of scanning a code sequence for valid jump
// destinations. A position is a valid jump destination if it holds a JUMPDEST
// opcode that is not part of the immediate data of a preceding PUSH.
type codeAnalysis struct {
	jumpDestinations bitvec
}

// analyzeCode scans the given code and marks all valid jump destinations.
func analyzeCode(code ember.Code) *codeAnalysis {
	destinations := newBitvec(len(code))
	for i := 0; i < len(code); i++ {
		op := OpCode(code[i])
		if op == JUMPDEST {
			destinations.set(i)
		} else if op.isPush() {
			i += op.pushSize()
		}
	}
	return &codeAnalysis{jumpDestinations: destinations}
}

// isValidJumpDestination returns true if the given position is a JUMPDEST
// outside of any PUSH immediate data.
func (a *codeAnalysis) isValidJumpDestination(position uint64) bool {
	return a.jumpDestinations.get(position)
}

// bitvec is a bit vector with one bit per code position.
type bitvec []byte

func newBitvec(size int) bitvec {
	return make(bitvec, (size+7)/8)
}

func (v bitvec) set(i int) {
	v[i/8] |= 1 << (i % 8)
}

func (v bitvec) get(i uint64) bool {
	if i/8 >= uint64(len(v)) {
		return false
	}
	return v[i/8]&(1<<(i%8)) != 0
}

// maxCachedCodeLength is the maximum length of codes cached in the analysis
// cache of an analyzer. Larger codes need to be re-analyzed for each run.
const maxCachedCodeLength = 1 << 16

// analyzer analyzes codes and caches results by code hash to avoid repeated
// scans of frequently executed contracts. Instances are thread-safe.
type analyzer struct {
	cache *lru.Cache[ember.Hash, *codeAnalysis]
}

func newAnalyzer(capacity int) *analyzer {
	cache, err := lru.New[ember.Hash, *codeAnalysis](capacity)
	if err != nil {
		// lru.New only fails for non-positive capacity
		panic(err)
	}
	return &analyzer{cache: cache}
}

// analyze obtains the jump destination analysis for the given code. If a
// non-nil code hash is provided, the result is served from and stored in the
// analysis cache.
func (a *analyzer) analyze(code ember.Code, codeHash *ember.Hash) *codeAnalysis {
	if codeHash == nil || len(code) > maxCachedCodeLength {
		return analyzeCode(code)
	}
	if res, found := a.cache.Get(*codeHash); found {
		return res
	}
	res := analyzeCode(code)
	a.cache.Add(*codeHash, res)
	return res
}
