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
	"fmt"
	"math"

	"github.com/ember-vm/ember"
	"github.com/holiman/uint256"
)

// Memory represents the byte-addressable scratch space of an execution frame.
// It grows in 32-byte words and never shrinks. The quadratic cost of grown
// memory is charged incrementally on expansion.
type Memory struct {
	store             []byte
	currentMemoryCost ember.Gas
}

func NewMemory() *Memory {
	return &Memory{}
}

// toValidMemorySize rounds the given size up to the next multiple of 32.
// Returns math.MaxUint64 in case of an overflow.
func toValidMemorySize(size uint64) uint64 {
	fullWordsSize := ((size + 31) / 32) * 32
	if fullWordsSize < size {
		return math.MaxUint64
	}
	return fullWordsSize
}

// maxMemoryExpansionSize is the size of the memory for which the expansion
// costs overflow the int64 gas range. Larger expansions are rejected as out
// of gas without computing the cost.
const maxMemoryExpansionSize = 0x1FFFFFFFE0 // 2^37 - 32

func (m *Memory) getExpansionCosts(size uint64) ember.Gas {
	if m.length() >= size {
		return 0
	}

	if size > maxMemoryExpansionSize {
		return ember.Gas(math.MaxInt64)
	}

	size = toValidMemorySize(size)
	words := ember.Gas(size / 32)
	newCosts := (words*words)/512 + 3*words
	return newCosts - m.currentMemoryCost
}

// expandMemory grows the memory to accommodate the range [offset, offset+size)
// and charges the expansion costs to the given gas meter. A size of zero never
// expands the memory, regardless of the offset.
func (m *Memory) expandMemory(offset, size uint64, gas *gasMeter) error {
	if size == 0 {
		return nil
	}
	needed := offset + size
	if needed < offset { // overflow
		gas.consumeAll()
		return errGasUintOverflow
	}
	if m.length() >= needed {
		return nil
	}
	fee := m.getExpansionCosts(needed)
	if err := gas.consume(fee); err != nil {
		return err
	}
	m.currentMemoryCost += fee
	m.expandMemoryWithoutCharging(needed)
	return nil
}

func (m *Memory) expandMemoryWithoutCharging(needed uint64) {
	size := toValidMemorySize(needed)
	if size > m.length() {
		m.store = append(m.store, make([]byte, size-m.length())...)
	}
}

func (m *Memory) length() uint64 {
	return uint64(len(m.store))
}

// getSlice obtains a slice of the memory covering the range
// [offset, offset+size), expanding and charging for the memory as needed.
// The returned slice aliases the memory store; writes through it are
// writes to the memory. A size of zero results in a nil slice.
func (m *Memory) getSlice(offset, size uint64, gas *gasMeter) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	if err := m.expandMemory(offset, size, gas); err != nil {
		return nil, err
	}
	return m.store[offset : offset+size], nil
}

// readWord reads a 32-byte word at the given offset into the target,
// expanding the memory as needed.
func (m *Memory) readWord(offset uint64, target *uint256.Int, gas *gasMeter) error {
	data, err := m.getSlice(offset, 32, gas)
	if err != nil {
		return err
	}
	target.SetBytes32(data)
	return nil
}

// setByte writes a single byte at the given offset, expanding the memory as
// needed.
func (m *Memory) setByte(offset uint64, value byte, gas *gasMeter) error {
	data, err := m.getSlice(offset, 1, gas)
	if err != nil {
		return err
	}
	data[0] = value
	return nil
}

// setWord writes a 32-byte word at the given offset, expanding the memory as
// needed.
func (m *Memory) setWord(offset uint64, value *uint256.Int, gas *gasMeter) error {
	data, err := m.getSlice(offset, 32, gas)
	if err != nil {
		return err
	}
	value.WriteToSlice(data)
	return nil
}

// set copies the given value into memory at the given offset. The memory must
// already be large enough to hold the value.
func (m *Memory) set(offset uint64, value []byte) error {
	if len(value) == 0 {
		return nil
	}
	if offset+uint64(len(value)) > m.length() {
		return fmt.Errorf("memory too small, size %d, attempted to write %d bytes at %d",
			m.length(), len(value), offset)
	}
	copy(m.store[offset:], value)
	return nil
}

// copyData copies a slice of data into the memory at the given offset. Data
// that extends beyond the source is zero-padded.
func (m *Memory) copyData(offset uint64, data []byte) {
	if m.length() < offset+uint64(len(data)) {
		m.expandMemoryWithoutCharging(offset + uint64(len(data)))
	}
	copy(m.store[offset:], data)
}
