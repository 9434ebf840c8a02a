// Copyright (c) 2024 Ember Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at emberlabs.dev/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package furnace implements the transaction-level state transition function.
// It validates transactions, charges gas fees, dispatches the root call or
// contract creation to an interpreter, and settles refunds and the coinbase
// payment afterwards.
package furnace

import (
	"github.com/ember-vm/ember"
)

func init() {
	ember.RegisterProcessorFactory("furnace", NewProcessor)
}

const (
	TxGas                     ember.Gas = 21000 // base costs of a transaction
	TxGasContractCreation     ember.Gas = 53000 // base costs of a contract-creating transaction
	TxDataNonZeroGas          ember.Gas = 16    // per non-zero byte of transaction input
	TxDataZeroGas             ember.Gas = 4     // per zero byte of transaction input
	TxAccessListAddressGas    ember.Gas = 2400  // per address in the transaction access list
	TxAccessListStorageKeyGas ember.Gas = 1900  // per storage key in the transaction access list
	InitCodeWordGas           ember.Gas = 2     // per word of initialization code

	CreateGasCostPerByte ember.Gas = 200 // deposit costs per byte of deployed code

	MaxCodeSize     = 24576           // maximum length of deployed contract code
	MaxInitCodeSize = 2 * MaxCodeSize // maximum length of initialization code

	MaxCallDepth = 1024 // maximum nesting depth of recursive calls

	// maxRefundQuotient bounds the gas refund of a transaction to a fraction
	// of its total gas consumption.
	maxRefundQuotient = 5
)

// processor is the default Processor implementation of this project.
type processor struct {
	interpreter ember.Interpreter
}

// NewProcessor creates a processor executing contract code with the given
// interpreter.
func NewProcessor(interpreter ember.Interpreter) ember.Processor {
	return &processor{interpreter: interpreter}
}

func (p *processor) Run(
	blockParameters ember.BlockParameters,
	transaction ember.Transaction,
	context ember.TransactionContext,
) (ember.Receipt, error) {
	if err := validateTransaction(transaction, context); err != nil {
		return ember.Receipt{}, err
	}

	gasPrice := transaction.GasPrice.ToUint256()
	limit := gasPrice.Mul(gasPrice, ember.NewValue(uint64(transaction.GasLimit)).ToUint256())
	upfrontCost := ember.ValueFromUint256(limit)

	// Gas purchase and nonce increment are not covered by the execution
	// snapshot; they remain in place even if the execution fails. For
	// contract creations the increment is owned by the creation itself,
	// so the contract address derives from the transaction nonce.
	sender := transaction.Sender
	context.SetBalance(sender, ember.Sub(context.GetBalance(sender), upfrontCost))
	if transaction.Recipient != nil {
		context.SetNonce(sender, context.GetNonce(sender)+1)
	}

	gas := transaction.GasLimit - intrinsicGas(transaction)

	setUpAccessList(transaction, blockParameters.Coinbase, context)

	rootContext := runContext{
		TransactionContext: context,
		interpreter:        p.interpreter,
		blockParameters:    blockParameters,
		transactionParameters: ember.TransactionParameters{
			Origin:   sender,
			GasPrice: transaction.GasPrice,
		},
	}

	kind := ember.Call
	parameters := ember.CallParameters{
		Sender: sender,
		Value:  transaction.Value,
		Input:  transaction.Input,
		Gas:    gas,
	}
	if transaction.Recipient == nil {
		kind = ember.Create
	} else {
		parameters.Recipient = *transaction.Recipient
	}

	result, err := rootContext.Call(kind, parameters)
	if err != nil {
		return ember.Receipt{}, err
	}

	// Cap the refund against the total gas consumption of the transaction,
	// including its intrinsic costs.
	gasUsed := transaction.GasLimit - result.GasLeft
	refund := result.GasRefund
	if refund > gasUsed/maxRefundQuotient {
		refund = gasUsed / maxRefundQuotient
	}
	gasUsed -= refund

	// Return the fees for unused gas to the sender and pay the block
	// producer for the consumed gas.
	returnedFees := transaction.GasPrice.Scale(uint64(transaction.GasLimit - gasUsed))
	context.SetBalance(sender, ember.Add(context.GetBalance(sender), returnedFees))

	coinbase := blockParameters.Coinbase
	producerFees := transaction.GasPrice.Scale(uint64(gasUsed))
	context.SetBalance(coinbase, ember.Add(context.GetBalance(coinbase), producerFees))

	receipt := ember.Receipt{
		Success: result.Success,
		Output:  result.Output,
		GasUsed: gasUsed,
	}
	if result.Success {
		receipt.Logs = context.GetLogs()
		if transaction.Recipient == nil {
			created := result.CreatedAddress
			receipt.ContractAddress = &created
		}
	}
	return receipt, nil
}

// validateTransaction checks all properties that make a transaction eligible
// for inclusion in a block. A failed check makes the whole transaction
// invalid; no state is modified.
func validateTransaction(transaction ember.Transaction, context ember.TransactionContext) error {
	sender := transaction.Sender

	if context.GetNonce(sender) != transaction.Nonce {
		return errNonceMismatch
	}
	// Only externally owned accounts may send transactions.
	if context.GetCodeSize(sender) > 0 {
		return errSenderNotEOA
	}
	if transaction.Recipient == nil && len(transaction.Input) > MaxInitCodeSize {
		return errInitCodeTooLarge
	}
	if transaction.GasLimit < intrinsicGas(transaction) {
		return errIntrinsicGasTooLow
	}

	// The sender must be able to pay for the full gas budget and the
	// transferred value.
	gasPrice := transaction.GasPrice.ToUint256()
	cost := gasPrice.Mul(gasPrice, ember.NewValue(uint64(transaction.GasLimit)).ToUint256())
	cost = cost.Add(cost, transaction.Value.ToUint256())
	if context.GetBalance(sender).ToUint256().Lt(cost) {
		return errInsufficientBalance
	}
	return nil
}

// intrinsicGas computes the gas charged for a transaction before any code is
// executed.
func intrinsicGas(transaction ember.Transaction) ember.Gas {
	gas := TxGas
	if transaction.Recipient == nil {
		gas = TxGasContractCreation
		words := ember.Gas(ember.SizeInWords(uint64(len(transaction.Input))))
		gas += words * InitCodeWordGas
	}

	for _, cur := range transaction.Input {
		if cur == 0 {
			gas += TxDataZeroGas
		} else {
			gas += TxDataNonZeroGas
		}
	}

	for _, tuple := range transaction.AccessList {
		gas += TxAccessListAddressGas
		gas += ember.Gas(len(tuple.Keys)) * TxAccessListStorageKeyGas
	}
	return gas
}

// setUpAccessList marks all accounts and storage slots known to be touched by
// the transaction as warm before the execution starts.
func setUpAccessList(transaction ember.Transaction, coinbase ember.Address, context ember.TransactionContext) {
	context.AccessAccount(transaction.Sender)
	if transaction.Recipient != nil {
		context.AccessAccount(*transaction.Recipient)
	}
	context.AccessAccount(coinbase)

	// precompiled contracts are always warm
	for i := byte(1); i <= 9; i++ {
		context.AccessAccount(ember.Address{19: i})
	}

	for _, tuple := range transaction.AccessList {
		context.AccessAccount(tuple.Address)
		for _, key := range tuple.Keys {
			context.AccessStorage(tuple.Address, key)
		}
	}
}
