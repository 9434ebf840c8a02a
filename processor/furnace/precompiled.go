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

import (
	"github.com/ember-vm/ember"
	"github.com/ethereum/go-ethereum/common"
	geth "github.com/ethereum/go-ethereum/core/vm"
)

// runPrecompiledContract executes one of the predefined contracts occupying
// the low address range. Gas is charged upfront; a failing execution consumes
// the full gas budget of the call.
func runPrecompiledContract(address ember.Address, input ember.Data, gas ember.Gas) ember.CallResult {
	contract, found := geth.PrecompiledContractsBerlin[common.Address(address)]
	if !found {
		return ember.CallResult{}
	}

	cost := ember.Gas(contract.RequiredGas(input))
	if cost < 0 || gas < cost {
		return ember.CallResult{}
	}

	output, err := contract.Run(input)
	if err != nil {
		return ember.CallResult{}
	}
	return ember.CallResult{
		Output:  output,
		GasLeft: gas - cost,
		Success: true,
	}
}
