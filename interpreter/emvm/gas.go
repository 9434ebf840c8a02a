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
	"github.com/holiman/uint256"
)

const (
	CallNewAccountGas    ember.Gas = 25000 // Paid for CALL when the destination address didn't exist prior.
	CallValueTransferGas ember.Gas = 9000  // Paid for CALL when the value transfer is non-zero.
	CallStipend          ember.Gas = 2300  // Free gas given at beginning of a value-bearing call.

	ColdSloadCost         ember.Gas = 2100 // Cost of a cold SLOAD.
	ColdAccountAccessCost ember.Gas = 2600 // Cost of a cold account access.
	WarmStorageReadCost   ember.Gas = 100  // Cost of reading warm storage or a warm account.

	// CreateBySelfdestructGas is charged when the beneficiary of a
	// selfdestruct does not exist. This logic is similar to call.
	CreateBySelfdestructGas ember.Gas = 25000

	SelfdestructGas ember.Gas = 5000 // Gas cost of SELFDESTRUCT.

	SstoreClearsScheduleRefund ember.Gas = 4800  // Refund for clearing a storage slot to zero.
	SstoreSentryGas            ember.Gas = 2300  // Minimum gas required to be present for an SSTORE, not consumed.
	SstoreSetGas               ember.Gas = 20000 // Once per SSTORE operation from clean zero to non-zero.
	SstoreResetGas             ember.Gas = 5000  // Once per SSTORE operation from clean non-zero to something else.
)

var staticGasPrices = [numOpCodes]ember.Gas{}

func init() {
	for i := 0; i < numOpCodes; i++ {
		staticGasPrices[i] = getStaticGasPriceInternal(OpCode(i))
	}
}

func getStaticGasPriceInternal(op OpCode) ember.Gas {
	if op.isPush() {
		return 3
	}
	if DUP1 <= op && op <= DUP16 {
		return 3
	}
	if SWAP1 <= op && op <= SWAP16 {
		return 3
	}
	if LT <= op && op <= SAR {
		return 3
	}
	switch op {
	case STOP, RETURN, REVERT:
		return 0
	case ADD, SUB:
		return 3
	case MUL, DIV, SDIV, MOD, SMOD, SIGNEXTEND:
		return 5
	case ADDMOD, MULMOD:
		return 8
	case EXP:
		return 10
	case SHA3:
		return 30
	case ADDRESS, ORIGIN, CALLER, CALLVALUE, CALLDATASIZE, CODESIZE,
		GASPRICE, RETURNDATASIZE, COINBASE, TIMESTAMP, NUMBER,
		PREVRANDAO, GASLIMIT, CHAINID, BASEFEE, POP, PC, MSIZE, GAS, PUSH0:
		return 2
	case CALLDATALOAD, CALLDATACOPY, CODECOPY, RETURNDATACOPY,
		MLOAD, MSTORE, MSTORE8, MCOPY:
		return 3
	case BLOCKHASH:
		return 20
	case SELFBALANCE:
		return 5
	case JUMP:
		return 8
	case JUMPI:
		return 10
	case JUMPDEST:
		return 1
	case TLOAD, TSTORE:
		return 100
	case LOG0:
		return 375
	case LOG1:
		return 750
	case LOG2:
		return 1125
	case LOG3:
		return 1500
	case LOG4:
		return 1875
	case CREATE, CREATE2:
		return 32000
	case SELFDESTRUCT:
		return 5000
	}
	// BALANCE, EXTCODESIZE, EXTCODECOPY, EXTCODEHASH, SLOAD, SSTORE, and the
	// CALL family charge their full costs dynamically, depending on warm or
	// cold access.
	return 0
}

// getAccessCost returns the dynamic gas price of an account or storage access
// depending on its cold/warm status.
func getAccessCost(accessStatus ember.AccessStatus) ember.Gas {
	if accessStatus == ember.ColdAccess {
		return ColdAccountAccessCost
	}
	return WarmStorageReadCost
}

// getDynamicCostsForSstore returns the gas costs of an SSTORE operation with
// the given effect on its storage slot. Costs for a cold access of the slot
// are not included.
func getDynamicCostsForSstore(storageStatus ember.StorageStatus) ember.Gas {
	switch storageStatus {
	case ember.StorageAdded:
		return SstoreSetGas
	case ember.StorageDeleted, ember.StorageModified:
		return SstoreResetGas - ColdSloadCost
	default:
		return WarmStorageReadCost
	}
}

// getRefundForSstore returns the gas refund to be recorded for an SSTORE
// operation with the given effect on its storage slot. The result may be
// negative, reversing refunds granted earlier in the same transaction.
func getRefundForSstore(storageStatus ember.StorageStatus) ember.Gas {
	switch storageStatus {
	case ember.StorageDeleted, ember.StorageModifiedDeleted:
		return SstoreClearsScheduleRefund
	case ember.StorageDeletedAdded:
		return -SstoreClearsScheduleRefund
	case ember.StorageDeletedRestored:
		return -SstoreClearsScheduleRefund +
			SstoreResetGas - ColdSloadCost - WarmStorageReadCost
	case ember.StorageAddedDeleted:
		return SstoreSetGas - WarmStorageReadCost
	case ember.StorageModifiedRestored:
		return SstoreResetGas - ColdSloadCost - WarmStorageReadCost
	}
	return 0
}

// callGas returns the amount of gas forwarded to a nested call. Of the gas
// remaining after the base costs, all but one 64th may be passed on, capped
// by the amount requested by the caller.
func callGas(availableGas ember.Gas, requested *uint256.Int) ember.Gas {
	gas := availableGas - availableGas/64
	if requested.IsUint64() && gas >= ember.Gas(requested.Uint64()) {
		return ember.Gas(requested.Uint64())
	}
	return gas
}
