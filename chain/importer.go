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
	"errors"
	"fmt"

	"github.com/ember-vm/ember"
	"github.com/ember-vm/ember/state"
)

const (
	errInvalidGasLimit   = ember.ConstError("block gas limit must not be zero")
	errInvalidTimestamp  = ember.ConstError("block timestamp must not be zero")
	errInvalidParentHash = ember.ConstError("block does not extend the current chain head")
	errBlockGasExceeded  = ember.ConstError("cumulative gas exceeds the block gas limit")
)

// BlockError wraps the cause of a failed block import, identifying the
// offending transaction where applicable.
type BlockError struct {
	TransactionIndex int // -1 if the block itself is malformed
	err              error
}

func (e *BlockError) Error() string {
	if e.TransactionIndex < 0 {
		return fmt.Sprintf("invalid block: %v", e.err)
	}
	return fmt.Sprintf("invalid block: transaction %d: %v", e.TransactionIndex, e.err)
}

func (e *BlockError) Unwrap() error {
	return e.err
}

// Importer applies blocks to a world state using the given processor. It
// tracks the hash of the most recently imported block for parent linkage
// checks and serves recent block hashes to the executed code.
type Importer struct {
	processor ember.Processor
	state     *state.State

	headHash   ember.Hash
	headNumber int64
	hashes     map[int64]ember.Hash // hashes of imported blocks
}

// NewImporter creates an importer applying blocks on top of the given state.
func NewImporter(processor ember.Processor, worldState *state.State) *Importer {
	importer := &Importer{
		processor: processor,
		state:     worldState,
		hashes:    map[int64]ember.Hash{},
	}
	worldState.WithBlockHashSource(func(number int64) ember.Hash {
		return importer.hashes[number]
	})
	return importer
}

// ImportBlock validates and applies the given block. Transactions are
// executed strictly in order, each observing the effects of its predecessors.
// Any invalid transaction aborts the import; in that case the world state is
// left unchanged and a BlockError describing the cause is returned. On
// success, the ordered list of receipts is returned.
func (i *Importer) ImportBlock(block Block) ([]Receipt, error) {
	if err := i.checkHeader(&block.Header); err != nil {
		return nil, &BlockError{TransactionIndex: -1, err: err}
	}

	blockParameters := ember.BlockParameters{
		BlockNumber: block.Header.Number,
		Timestamp:   block.Header.Timestamp,
		Coinbase:    block.Header.Coinbase,
		GasLimit:    block.Header.GasLimit,
		PrevRandao:  block.Header.PrevRandao,
		BaseFee:     block.Header.BaseFee,
	}

	// The outer snapshot covers the full block; a failing transaction
	// reverts everything applied so far.
	i.state.BeginBlock()
	blockSnapshot := i.state.CreateSnapshot()

	receipts := make([]Receipt, 0, len(block.Transactions))
	gasUsed := ember.Gas(0)
	for index, transaction := range block.Transactions {
		i.state.BeginTransaction()
		receipt, err := i.processor.Run(blockParameters, transaction, i.state)
		if err == nil && gasUsed+receipt.GasUsed > block.Header.GasLimit {
			err = errBlockGasExceeded
		}
		if err != nil {
			i.state.RestoreSnapshot(blockSnapshot)
			return nil, &BlockError{TransactionIndex: index, err: err}
		}
		i.state.EndTransaction()

		gasUsed += receipt.GasUsed
		receipts = append(receipts, Receipt{
			Receipt:           receipt,
			CumulativeGasUsed: gasUsed,
			Bloom:             NewBloom(receipt.Logs),
		})
	}

	processWithdrawals(i.state, block.Withdrawals)

	i.headHash = block.Header.Hash()
	i.headNumber = block.Header.Number
	i.hashes[block.Header.Number] = i.headHash
	return receipts, nil
}

// checkHeader verifies the block header against basic validity rules and the
// current chain head.
func (i *Importer) checkHeader(header *BlockHeader) error {
	if header.GasLimit <= 0 {
		return errInvalidGasLimit
	}
	if header.Timestamp <= 0 {
		return errInvalidTimestamp
	}
	// The first imported block is accepted as-is; subsequent blocks must
	// link to the head.
	if i.headNumber != 0 || i.headHash != (ember.Hash{}) {
		if header.ParentHash != i.headHash {
			return errInvalidParentHash
		}
		if header.Number != i.headNumber+1 {
			return errInvalidParentHash
		}
	}
	return nil
}

// IsBlockError returns true if the given error was caused by a failed block
// import.
func IsBlockError(err error) bool {
	var blockError *BlockError
	return errors.As(err, &blockError)
}
