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
	"errors"
	"testing"

	"github.com/ember-vm/ember"
	_ "github.com/ember-vm/ember/interpreter/emvm"
	"github.com/ember-vm/ember/state"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/mock/gomock"
)

func TestIntrinsicGas(t *testing.T) {
	recipient := ember.Address{0x42}
	tests := map[string]struct {
		transaction ember.Transaction
		want        ember.Gas
	}{
		"simple transfer": {
			ember.Transaction{Recipient: &recipient},
			21000,
		},
		"input data": {
			ember.Transaction{Recipient: &recipient, Input: ember.Data{1, 0, 2, 0}},
			21000 + 2*16 + 2*4,
		},
		"contract creation": {
			ember.Transaction{},
			53000,
		},
		"contract creation with init code": {
			ember.Transaction{Input: ember.Data{1, 0}},
			53000 + 16 + 4 + 2, // data costs plus one word of init code
		},
		"access list": {
			ember.Transaction{
				Recipient: &recipient,
				AccessList: []ember.AccessTuple{
					{Address: ember.Address{0x01}, Keys: []ember.Key{{0x01}, {0x02}}},
					{Address: ember.Address{0x02}},
				},
			},
			21000 + 2*2400 + 2*1900,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if want, got := test.want, intrinsicGas(test.transaction); want != got {
				t.Errorf("unexpected intrinsic gas, wanted %d, got %d", want, got)
			}
		})
	}
}

func TestProcessor_InvalidTransactionsAreRejected(t *testing.T) {
	recipient := ember.Address{0x42}
	tests := map[string]struct {
		setup       func(*ember.MockTransactionContext)
		transaction ember.Transaction
		want        error
	}{
		"nonce mismatch": {
			func(context *ember.MockTransactionContext) {
				context.EXPECT().GetNonce(gomock.Any()).Return(uint64(5)).AnyTimes()
			},
			ember.Transaction{Recipient: &recipient, Nonce: 4},
			errNonceMismatch,
		},
		"sender with code": {
			func(context *ember.MockTransactionContext) {
				context.EXPECT().GetNonce(gomock.Any()).Return(uint64(0)).AnyTimes()
				context.EXPECT().GetCodeSize(gomock.Any()).Return(10).AnyTimes()
			},
			ember.Transaction{Recipient: &recipient},
			errSenderNotEOA,
		},
		"gas limit below intrinsic gas": {
			func(context *ember.MockTransactionContext) {
				context.EXPECT().GetNonce(gomock.Any()).Return(uint64(0)).AnyTimes()
				context.EXPECT().GetCodeSize(gomock.Any()).Return(0).AnyTimes()
			},
			ember.Transaction{Recipient: &recipient, GasLimit: 20000},
			errIntrinsicGasTooLow,
		},
		"insufficient balance": {
			func(context *ember.MockTransactionContext) {
				context.EXPECT().GetNonce(gomock.Any()).Return(uint64(0)).AnyTimes()
				context.EXPECT().GetCodeSize(gomock.Any()).Return(0).AnyTimes()
				context.EXPECT().GetBalance(gomock.Any()).Return(ember.NewValue(100)).AnyTimes()
			},
			ember.Transaction{
				Recipient: &recipient,
				GasLimit:  21000,
				GasPrice:  ember.NewValue(1),
			},
			errInsufficientBalance,
		},
		"oversized init code": {
			func(context *ember.MockTransactionContext) {
				context.EXPECT().GetNonce(gomock.Any()).Return(uint64(0)).AnyTimes()
				context.EXPECT().GetCodeSize(gomock.Any()).Return(0).AnyTimes()
			},
			ember.Transaction{Input: make(ember.Data, MaxInitCodeSize+1)},
			errInitCodeTooLarge,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			context := ember.NewMockTransactionContext(ctrl)
			test.setup(context)

			processor := NewProcessor(ember.NewMockInterpreter(ctrl))
			_, err := processor.Run(ember.BlockParameters{}, test.transaction, context)
			if !errors.Is(err, test.want) {
				t.Errorf("unexpected error, wanted %v, got %v", test.want, err)
			}
		})
	}
}

func TestProcessor_SimpleValueTransfer(t *testing.T) {
	sender := ember.Address{0x01}
	recipient := ember.Address{0x02}
	coinbase := ember.Address{0x03}

	context := state.NewState(map[ember.Address]state.Account{
		sender: {Balance: ember.NewValue(30000)},
	})
	context.BeginTransaction()

	interpreter, err := ember.NewInterpreter("emvm")
	if err != nil {
		t.Fatalf("failed to create interpreter: %v", err)
	}
	processor := NewProcessor(interpreter)

	receipt, err := processor.Run(
		ember.BlockParameters{Coinbase: coinbase},
		ember.Transaction{
			Sender:    sender,
			Recipient: &recipient,
			Value:     ember.NewValue(10),
			GasLimit:  21000,
			GasPrice:  ember.NewValue(1),
		},
		context,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !receipt.Success {
		t.Errorf("expected the transaction to succeed")
	}
	if want, got := ember.Gas(21000), receipt.GasUsed; want != got {
		t.Errorf("unexpected gas usage, wanted %d, got %d", want, got)
	}
	if want, got := ember.NewValue(30000-21000-10), context.GetBalance(sender); want != got {
		t.Errorf("unexpected sender balance, wanted %v, got %v", want, got)
	}
	if want, got := ember.NewValue(10), context.GetBalance(recipient); want != got {
		t.Errorf("unexpected recipient balance, wanted %v, got %v", want, got)
	}
	if want, got := ember.NewValue(21000), context.GetBalance(coinbase); want != got {
		t.Errorf("unexpected coinbase balance, wanted %v, got %v", want, got)
	}
	if want, got := uint64(1), context.GetNonce(sender); want != got {
		t.Errorf("unexpected sender nonce, wanted %d, got %d", want, got)
	}
}

func TestProcessor_UnusedGasIsReturned(t *testing.T) {
	ctrl := gomock.NewController(t)
	interpreter := ember.NewMockInterpreter(ctrl)
	interpreter.EXPECT().Run(gomock.Any()).
		Return(ember.Result{Success: true, GasLeft: 5000}, nil)

	sender := ember.Address{0x01}
	recipient := ember.Address{0x02}
	context := state.NewState(map[ember.Address]state.Account{
		sender:    {Balance: ember.NewValue(100000)},
		recipient: {Code: ember.Code{0x00}},
	})
	context.BeginTransaction()

	receipt, err := NewProcessor(interpreter).Run(
		ember.BlockParameters{},
		ember.Transaction{
			Sender:    sender,
			Recipient: &recipient,
			GasLimit:  30000,
			GasPrice:  ember.NewValue(1),
		},
		context,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want, got := ember.Gas(30000-5000), receipt.GasUsed; want != got {
		t.Errorf("unexpected gas usage, wanted %d, got %d", want, got)
	}
	if want, got := ember.NewValue(100000-25000), context.GetBalance(sender); want != got {
		t.Errorf("unexpected sender balance, wanted %v, got %v", want, got)
	}
}

func TestProcessor_RefundIsCappedByTotalConsumption(t *testing.T) {
	ctrl := gomock.NewController(t)
	interpreter := ember.NewMockInterpreter(ctrl)
	interpreter.EXPECT().Run(gomock.Any()).
		Return(ember.Result{Success: true, GasLeft: 0, GasRefund: 1000000}, nil)

	sender := ember.Address{0x01}
	recipient := ember.Address{0x02}
	context := state.NewState(map[ember.Address]state.Account{
		sender:    {Balance: ember.NewValue(100000)},
		recipient: {Code: ember.Code{0x00}},
	})
	context.BeginTransaction()

	receipt, err := NewProcessor(interpreter).Run(
		ember.BlockParameters{},
		ember.Transaction{
			Sender:    sender,
			Recipient: &recipient,
			GasLimit:  30000,
			GasPrice:  ember.NewValue(1),
		},
		context,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// the refund is capped to one fifth of the total gas consumption
	if want, got := ember.Gas(30000-30000/5), receipt.GasUsed; want != got {
		t.Errorf("unexpected gas usage, wanted %d, got %d", want, got)
	}
}

func TestProcessor_FailedExecutionKeepsNonceAndGasCharge(t *testing.T) {
	ctrl := gomock.NewController(t)
	interpreter := ember.NewMockInterpreter(ctrl)
	interpreter.EXPECT().Run(gomock.Any()).
		Return(ember.Result{Success: false}, nil)

	sender := ember.Address{0x01}
	recipient := ember.Address{0x02}
	context := state.NewState(map[ember.Address]state.Account{
		sender:    {Balance: ember.NewValue(100000)},
		recipient: {Code: ember.Code{0x00}},
	})
	context.BeginTransaction()

	receipt, err := NewProcessor(interpreter).Run(
		ember.BlockParameters{},
		ember.Transaction{
			Sender:    sender,
			Recipient: &recipient,
			GasLimit:  30000,
			GasPrice:  ember.NewValue(1),
		},
		context,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receipt.Success {
		t.Errorf("expected the execution to fail")
	}
	if want, got := ember.Gas(30000), receipt.GasUsed; want != got {
		t.Errorf("unexpected gas usage, wanted %d, got %d", want, got)
	}
	if want, got := ember.NewValue(100000-30000), context.GetBalance(sender); want != got {
		t.Errorf("unexpected sender balance, wanted %v, got %v", want, got)
	}
	if want, got := uint64(1), context.GetNonce(sender); want != got {
		t.Errorf("unexpected sender nonce, wanted %d, got %d", want, got)
	}
}

func TestProcessor_ContractCreationDeploysCode(t *testing.T) {
	deployedCode := ember.Code{0x60, 0x00}

	ctrl := gomock.NewController(t)
	interpreter := ember.NewMockInterpreter(ctrl)
	interpreter.EXPECT().Run(gomock.Any()).
		Return(ember.Result{Success: true, GasLeft: 10000, Output: ember.Data(deployedCode)}, nil)

	sender := ember.Address{0x01}
	context := state.NewState(map[ember.Address]state.Account{
		sender: {Balance: ember.NewValue(1000000)},
	})
	context.BeginTransaction()

	receipt, err := NewProcessor(interpreter).Run(
		ember.BlockParameters{},
		ember.Transaction{
			Sender:   sender,
			Input:    ember.Data{0x60, 0x00}, // init code, result provided by the mock
			GasLimit: 100000,
			GasPrice: ember.NewValue(1),
		},
		context,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !receipt.Success {
		t.Fatalf("expected the creation to succeed")
	}
	if receipt.ContractAddress == nil {
		t.Fatalf("expected a contract address in the receipt")
	}
	created := *receipt.ContractAddress
	if want, got := len(deployedCode), context.GetCodeSize(created); want != got {
		t.Errorf("unexpected deployed code size, wanted %d, got %d", want, got)
	}
	if want, got := uint64(1), context.GetNonce(created); want != got {
		t.Errorf("unexpected nonce of the created account, wanted %d, got %d", want, got)
	}
	// the creator's nonce is bumped exactly once
	if want, got := uint64(1), context.GetNonce(sender); want != got {
		t.Errorf("unexpected sender nonce, wanted %d, got %d", want, got)
	}
}

func TestProcessor_ContractAddressDerivesFromTheTransactionNonce(t *testing.T) {
	ctrl := gomock.NewController(t)
	interpreter := ember.NewMockInterpreter(ctrl)
	interpreter.EXPECT().Run(gomock.Any()).
		Return(ember.Result{Success: true, GasLeft: 10000}, nil)

	sender := ember.Address{0x01}
	context := state.NewState(map[ember.Address]state.Account{
		sender: {Balance: ember.NewValue(1000000), Nonce: 7},
	})
	context.BeginTransaction()

	receipt, err := NewProcessor(interpreter).Run(
		ember.BlockParameters{},
		ember.Transaction{
			Sender:   sender,
			Nonce:    7,
			GasLimit: 100000,
			GasPrice: ember.NewValue(1),
		},
		context,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.ContractAddress == nil {
		t.Fatalf("expected a contract address in the receipt")
	}

	want := ember.Address(crypto.CreateAddress(common.Address(sender), 7))
	if got := *receipt.ContractAddress; want != got {
		t.Errorf("unexpected contract address, wanted %v, got %v", want, got)
	}
	if want, got := uint64(8), context.GetNonce(sender); want != got {
		t.Errorf("unexpected sender nonce, wanted %d, got %d", want, got)
	}
}

func TestProcessor_EndToEndStorageUpdate(t *testing.T) {
	// PUSH1 0x2A, PUSH1 0x00, SSTORE
	code := ember.Code{0x60, 0x2A, 0x60, 0x00, 0x55}

	sender := ember.Address{0x01}
	contract := ember.Address{0x02}
	context := state.NewState(map[ember.Address]state.Account{
		sender:   {Balance: ember.NewValue(10000000)},
		contract: {Code: code, Nonce: 1},
	})
	context.BeginTransaction()

	interpreter, err := ember.NewInterpreter("emvm")
	if err != nil {
		t.Fatalf("failed to create interpreter: %v", err)
	}

	receipt, err := NewProcessor(interpreter).Run(
		ember.BlockParameters{},
		ember.Transaction{
			Sender:    sender,
			Recipient: &contract,
			GasLimit:  100000,
			GasPrice:  ember.NewValue(1),
		},
		context,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !receipt.Success {
		t.Fatalf("expected the transaction to succeed")
	}
	if want, got := (ember.Word{31: 0x2A}), context.GetStorage(contract, ember.Key{}); want != got {
		t.Errorf("unexpected storage value, wanted %v, got %v", want, got)
	}
	// intrinsic 21000 + 2x PUSH1 + cold access and fresh set of the slot
	want := ember.Gas(21000 + 6 + 2100 + 20000)
	if got := receipt.GasUsed; want != got {
		t.Errorf("unexpected gas usage, wanted %d, got %d", want, got)
	}
}
