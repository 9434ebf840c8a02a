// Copyright (c) 2024 Ember Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at emberlabs.dev/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ember

import (
	"math"
	"testing"
)

func TestGetStorageStatus_CoversAllTransitions(t *testing.T) {
	x := Word{31: 1}
	y := Word{31: 2}
	z := Word{31: 3}
	zero := Word{}

	tests := []struct {
		original, current, new Word
		want                   StorageStatus
	}{
		{zero, zero, zero, StorageAssigned},
		{x, x, x, StorageAssigned},
		{x, y, y, StorageAssigned},
		{zero, zero, z, StorageAdded},
		{x, x, zero, StorageDeleted},
		{x, x, z, StorageModified},
		{x, zero, z, StorageDeletedAdded},
		{x, y, zero, StorageModifiedDeleted},
		{x, zero, x, StorageDeletedRestored},
		{zero, y, zero, StorageAddedDeleted},
		{x, y, x, StorageModifiedRestored},
	}

	covered := map[StorageStatus]struct{}{}
	for _, test := range tests {
		got := GetStorageStatus(test.original, test.current, test.new)
		if test.want != got {
			t.Errorf("unexpected status for %v/%v/%v, wanted %v, got %v",
				test.original, test.current, test.new, test.want, got)
		}
		covered[got] = struct{}{}
	}

	// every status must be reachable through some transition
	for _, status := range GetAllStorageStatuses() {
		if _, found := covered[status]; !found {
			t.Errorf("status %v is not produced by any transition", status)
		}
	}
}

func TestSizeInWords_RoundsUpToFullWords(t *testing.T) {
	tests := []struct {
		size uint64
		want uint64
	}{
		{0, 0},
		{1, 1},
		{32, 1},
		{33, 2},
		{64, 2},
		{math.MaxUint64, math.MaxUint64/32 + 1},
	}
	for _, test := range tests {
		if want, got := test.want, SizeInWords(test.size); want != got {
			t.Errorf("unexpected word count for size %d, wanted %d, got %d", test.size, want, got)
		}
	}
}

func TestIsPrecompiledContract_AcceptsOnlyAddressesOneToNine(t *testing.T) {
	for i := 0; i < 12; i++ {
		address := Address{19: byte(i)}
		if want, got := 1 <= i && i <= 9, IsPrecompiledContract(address); want != got {
			t.Errorf("unexpected result for address %v, wanted %t, got %t", address, want, got)
		}
	}
	if IsPrecompiledContract(Address{0: 1, 19: 5}) {
		t.Errorf("address with non-zero prefix must not be a precompiled contract")
	}
}
