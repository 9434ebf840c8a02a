// Copyright (c) 2024 Ember Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at emberlabs.dev/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package furnace

import "github.com/ember-vm/ember"

// Validation errors reported for transactions that must not be included in a
// block. They are returned before any state is modified.
const (
	errNonceMismatch       = ember.ConstError("transaction nonce does not match sender nonce")
	errSenderNotEOA        = ember.ConstError("sender is not an externally owned account")
	errInitCodeTooLarge    = ember.ConstError("initialization code exceeds maximum size")
	errIntrinsicGasTooLow  = ember.ConstError("gas limit below intrinsic gas costs")
	errInsufficientBalance = ember.ConstError("insufficient balance to cover gas and value")
)
