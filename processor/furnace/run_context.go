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
	"github.com/ethereum/go-ethereum/crypto"
)

// runContext implements the call dispatch of the execution engine. It links
// the interpreter back into recursive contract calls and contract creations.
// Each call frame uses its own copy, tracking the frame's depth and static
// mode.
type runContext struct {
	ember.TransactionContext
	interpreter           ember.Interpreter
	blockParameters       ember.BlockParameters
	transactionParameters ember.TransactionParameters
	depth                 int
	static                bool
}

func (c runContext) Call(kind ember.CallKind, parameters ember.CallParameters) (ember.CallResult, error) {
	if c.depth >= MaxCallDepth {
		return ember.CallResult{GasLeft: parameters.Gas}, nil
	}
	if kind == ember.Create || kind == ember.Create2 {
		return c.executeCreate(kind, parameters)
	}
	return c.executeCall(kind, parameters)
}

func (c runContext) executeCall(kind ember.CallKind, parameters ember.CallParameters) (ember.CallResult, error) {
	snapshot := c.CreateSnapshot()

	if kind == ember.Call && !parameters.Value.IsZero() {
		if !transferValue(c, parameters.Value, parameters.Sender, parameters.Recipient) {
			c.RestoreSnapshot(snapshot)
			return ember.CallResult{GasLeft: parameters.Gas}, nil
		}
	}

	codeAddress := parameters.Recipient
	if kind == ember.DelegateCall || kind == ember.CallCode {
		codeAddress = parameters.CodeAddress
	}

	if ember.IsPrecompiledContract(codeAddress) {
		result := runPrecompiledContract(codeAddress, parameters.Input, parameters.Gas)
		if !result.Success {
			c.RestoreSnapshot(snapshot)
		}
		return result, nil
	}

	codeHash := c.GetCodeHash(codeAddress)
	result, err := c.interpreter.Run(ember.Parameters{
		BlockParameters:       c.blockParameters,
		TransactionParameters: c.transactionParameters,
		Context:               c.forNestedFrame(kind),
		Kind:                  kind,
		Static:                c.static || kind == ember.StaticCall,
		Depth:                 c.depth,
		Gas:                   parameters.Gas,
		Recipient:             parameters.Recipient,
		Sender:                parameters.Sender,
		Input:                 parameters.Input,
		Value:                 parameters.Value,
		CodeHash:              &codeHash,
		Code:                  c.GetCode(codeAddress),
	})
	if err != nil {
		return ember.CallResult{}, err
	}

	if !result.Success {
		c.RestoreSnapshot(snapshot)
	}
	return ember.CallResult{
		Output:    result.Output,
		GasLeft:   result.GasLeft,
		GasRefund: result.GasRefund,
		Success:   result.Success,
	}, nil
}

func (c runContext) executeCreate(kind ember.CallKind, parameters ember.CallParameters) (ember.CallResult, error) {
	sender := parameters.Sender
	nonce := c.GetNonce(sender)
	if nonce+1 < nonce {
		return ember.CallResult{GasLeft: parameters.Gas}, nil
	}
	// The nonce increment of the creator is not reverted if the creation
	// fails; it happens before the snapshot is taken.
	c.SetNonce(sender, nonce+1)

	createdAddress := computeCreateAddress(kind, sender, nonce, parameters.Salt, parameters.Input)
	c.AccessAccount(createdAddress)

	// An account with a nonce or code at the target address makes the
	// creation fail without running any code; all gas is consumed.
	if c.GetNonce(createdAddress) != 0 || c.GetCodeSize(createdAddress) != 0 {
		return ember.CallResult{}, nil
	}

	snapshot := c.CreateSnapshot()

	c.SetNonce(createdAddress, 1)
	if !parameters.Value.IsZero() {
		if !transferValue(c, parameters.Value, sender, createdAddress) {
			c.RestoreSnapshot(snapshot)
			return ember.CallResult{GasLeft: parameters.Gas}, nil
		}
	}

	result, err := c.interpreter.Run(ember.Parameters{
		BlockParameters:       c.blockParameters,
		TransactionParameters: c.transactionParameters,
		Context:               c.forNestedFrame(kind),
		Kind:                  kind,
		Depth:                 c.depth,
		Gas:                   parameters.Gas,
		Recipient:             createdAddress,
		Sender:                sender,
		Value:                 parameters.Value,
		Code:                  ember.Code(parameters.Input),
	})
	if err != nil {
		return ember.CallResult{}, err
	}

	if !result.Success {
		c.RestoreSnapshot(snapshot)
		return ember.CallResult{
			Output:  result.Output,
			GasLeft: result.GasLeft,
		}, nil
	}

	code := result.Output
	depositGas := ember.Gas(len(code)) * CreateGasCostPerByte
	if len(code) > MaxCodeSize ||
		(len(code) > 0 && code[0] == 0xEF) ||
		result.GasLeft < depositGas {
		c.RestoreSnapshot(snapshot)
		return ember.CallResult{}, nil
	}

	c.SetCode(createdAddress, ember.Code(code))
	return ember.CallResult{
		GasLeft:        result.GasLeft - depositGas,
		GasRefund:      result.GasRefund,
		CreatedAddress: createdAddress,
		Success:        true,
	}, nil
}

// forNestedFrame derives the run context handed to the interpreter for the
// resulting frame.
func (c runContext) forNestedFrame(kind ember.CallKind) runContext {
	c.depth++
	c.static = c.static || kind == ember.StaticCall
	return c
}

// transferValue moves the given value between the two accounts. It returns
// false if the sender's balance is insufficient.
func transferValue(context ember.TransactionContext, value ember.Value, from, to ember.Address) bool {
	balance := context.GetBalance(from)
	if balance.Cmp(value) < 0 {
		return false
	}
	if from == to {
		return true
	}
	context.SetBalance(from, ember.Sub(balance, value))
	context.SetBalance(to, ember.Add(context.GetBalance(to), value))
	return true
}

// computeCreateAddress derives the address of a new contract. Plain creations
// use the creator address and nonce, salted creations the creator address,
// the salt, and the hash of the initialization code.
func computeCreateAddress(kind ember.CallKind, sender ember.Address, nonce uint64, salt ember.Hash, initCode ember.Data) ember.Address {
	if kind == ember.Create2 {
		initCodeHash := crypto.Keccak256Hash(initCode)
		return ember.Address(crypto.CreateAddress2(common.Address(sender), [32]byte(salt), initCodeHash[:]))
	}
	return ember.Address(crypto.CreateAddress(common.Address(sender), nonce))
}
