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

import "github.com/ember-vm/ember"

const (
	errGasUintOverflow        = ember.ConstError("gas uint64 overflow")
	errInitCodeTooLarge       = ember.ConstError("init code larger than allowed")
	errInvalidJump            = ember.ConstError("invalid jump destination")
	errInvalidOpCode          = ember.ConstError("invalid instruction")
	errOutOfGas               = ember.ConstError("out of gas")
	errOverflow               = ember.ConstError("offset or size overflow")
	errReturnDataOutOfBounds  = ember.ConstError("return data out of bounds")
	errStackOverflow          = ember.ConstError("stack overflow")
	errStackUnderflow         = ember.ConstError("stack underflow")
	errStaticContextViolation = ember.ConstError("write protection")
)
