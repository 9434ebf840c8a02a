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
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/ember-vm/ember"
	"github.com/holiman/uint256"
)

func TestMemory_ExpansionCosts(t *testing.T) {
	tests := []struct {
		size uint64
		cost ember.Gas
	}{
		{0, 0},
		{1, 3},
		{32, 3},
		{33, 6},
		{64, 6},
		{256, 24},
		{1024, 98},
		{32 * 1024, 5120},
		{maxMemoryExpansionSize + 1, math.MaxInt64},
	}

	for _, test := range tests {
		m := NewMemory()
		if want, got := test.cost, m.getExpansionCosts(test.size); want != got {
			t.Errorf("unexpected expansion costs for size %d, wanted %d, got %d", test.size, want, got)
		}
	}
}

func TestMemory_ExpansionChargesOnlyTheDifference(t *testing.T) {
	m := NewMemory()
	gas := newGasMeter(1000)

	if err := m.expandMemory(0, 32, &gas); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := ember.Gas(1000-3), gas.remaining(); want != got {
		t.Fatalf("unexpected remaining gas, wanted %d, got %d", want, got)
	}

	if err := m.expandMemory(32, 32, &gas); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := ember.Gas(1000-6), gas.remaining(); want != got {
		t.Errorf("unexpected remaining gas, wanted %d, got %d", want, got)
	}
}

func TestMemory_SizeZeroDoesNotExpand(t *testing.T) {
	m := NewMemory()
	gas := newGasMeter(10)

	if err := m.expandMemory(math.MaxUint64, 0, &gas); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := uint64(0), m.length(); want != got {
		t.Errorf("unexpected memory size, wanted %d, got %d", want, got)
	}
	if want, got := ember.Gas(10), gas.remaining(); want != got {
		t.Errorf("unexpected remaining gas, wanted %d, got %d", want, got)
	}
}

func TestMemory_OffsetOverflowIsDetected(t *testing.T) {
	m := NewMemory()
	gas := newGasMeter(10)

	err := m.expandMemory(math.MaxUint64, 2, &gas)
	if !errors.Is(err, errGasUintOverflow) {
		t.Fatalf("expected overflow error, got %v", err)
	}
	if want, got := ember.Gas(0), gas.remaining(); want != got {
		t.Errorf("unexpected remaining gas, wanted %d, got %d", want, got)
	}
}

func TestMemory_ReadAndWriteWord(t *testing.T) {
	m := NewMemory()
	gas := newGasMeter(100)

	value := uint256.NewInt(0).SetBytes([]byte{1, 2, 3, 4})
	if err := m.setWord(10, value, &gas); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	restored := uint256.NewInt(0)
	if err := m.readWord(10, restored, &gas); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value.Cmp(restored) != 0 {
		t.Errorf("unexpected value, wanted %v, got %v", value, restored)
	}
}

func TestMemory_SetWordWritesAllBytesBigEndian(t *testing.T) {
	m := NewMemory()
	gas := newGasMeter(100)

	if err := m.setWord(0, uint256.NewInt(0).SetAllOne(), &gas); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.setWord(0, uint256.NewInt(0x0102), &gas); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := make([]byte, 32)
	want[30] = 0x01
	want[31] = 0x02
	if !bytes.Equal(want, m.store[:32]) {
		t.Errorf("unexpected memory content, wanted %x, got %x", want, m.store[:32])
	}
}

func TestMemory_GetSliceAliasesTheStore(t *testing.T) {
	m := NewMemory()
	gas := newGasMeter(100)

	data, err := m.getSlice(0, 4, &gas)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	copy(data, []byte{1, 2, 3, 4})

	data, err = m.getSlice(0, 4, &gas)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []byte{1, 2, 3, 4}; !bytes.Equal(want, data) {
		t.Errorf("unexpected data, wanted %x, got %x", want, data)
	}
}

func TestMemory_CopyDataExpandsWithoutCharging(t *testing.T) {
	m := NewMemory()
	m.copyData(10, []byte{1, 2, 3})
	if want, got := uint64(32), m.length(); want != got {
		t.Errorf("unexpected memory size, wanted %d, got %d", want, got)
	}
	if want, got := byte(2), m.store[11]; want != got {
		t.Errorf("unexpected byte, wanted %d, got %d", want, got)
	}
}
