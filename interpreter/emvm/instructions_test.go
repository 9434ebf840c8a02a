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
	"testing"

	"github.com/ember-vm/ember"
	"go.uber.org/mock/gomock"
)

// runBinaryOp executes a program applying the given instruction to the two
// given operands and returning the 32-byte result.
func runBinaryOp(t *testing.T, op OpCode, a, b byte) []byte {
	t.Helper()
	code := ember.Code{
		byte(PUSH1), b,
		byte(PUSH1), a,
		byte(op),
		byte(PUSH1), 0x00,
		byte(MSTORE),
		byte(PUSH1), 0x20,
		byte(PUSH1), 0x00,
		byte(RETURN),
	}
	result := runCode(t, code, 1000, nil, nil)
	if !result.Success {
		t.Fatalf("execution of %v failed", op)
	}
	return result.Output
}

func TestInstructions_BinaryOperations(t *testing.T) {
	tests := []struct {
		op   OpCode
		a, b byte
		want byte
	}{
		{ADD, 3, 4, 7},
		{SUB, 9, 4, 5},
		{MUL, 3, 4, 12},
		{DIV, 12, 4, 3},
		{DIV, 1, 0, 0},
		{MOD, 14, 4, 2},
		{MOD, 1, 0, 0},
		{EXP, 2, 10, 0},  // dynamic gas included, result 1024 > one byte
		{LT, 3, 4, 1},
		{LT, 4, 3, 0},
		{GT, 4, 3, 1},
		{EQ, 4, 4, 1},
		{EQ, 4, 3, 0},
		{AND, 0x0F, 0x11, 0x01},
		{OR, 0x0F, 0x10, 0x1F},
		{XOR, 0x0F, 0x11, 0x1E},
		{SHL, 1, 2, 4}, // shifts b by a positions
		{SHR, 1, 2, 1},
	}

	for _, test := range tests {
		t.Run(test.op.String(), func(t *testing.T) {
			output := runBinaryOp(t, test.op, test.a, test.b)
			if want, got := test.want, output[31]; want != got {
				t.Errorf("unexpected result of %d %v %d, wanted %d, got %d",
					test.a, test.op, test.b, want, got)
			}
		})
	}
}

func TestInstructions_CallDataLoadPadsWithZeros(t *testing.T) {
	code := ember.Code{
		byte(PUSH1), 0x1F, // last byte of the input word, rest beyond the input
		byte(CALLDATALOAD),
		byte(PUSH1), 0x00,
		byte(MSTORE),
		byte(PUSH1), 0x20,
		byte(PUSH1), 0x00,
		byte(RETURN),
	}
	result := runCode(t, code, 1000, nil, func(p *ember.Parameters) {
		p.Input = make(ember.Data, 32)
		p.Input[31] = 0x42
	})
	if !result.Success {
		t.Fatalf("execution failed")
	}
	if want, got := byte(0x42), result.Output[0]; want != got {
		t.Errorf("unexpected first output byte, wanted %d, got %d", want, got)
	}
	for i := 1; i < 32; i++ {
		if result.Output[i] != 0 {
			t.Fatalf("expected zero padding at position %d, got %d", i, result.Output[i])
		}
	}
}

func TestInstructions_SloadChargesColdAndWarmAccesses(t *testing.T) {
	tests := map[string]struct {
		accessStatus ember.AccessStatus
		cost         ember.Gas
	}{
		"cold": {ember.ColdAccess, ColdSloadCost},
		"warm": {ember.WarmAccess, WarmStorageReadCost},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			runContext := ember.NewMockRunContext(ctrl)
			runContext.EXPECT().AccessStorage(ember.Address{}, ember.Key{}).Return(test.accessStatus)
			runContext.EXPECT().GetStorage(ember.Address{}, ember.Key{}).Return(ember.Word{31: 7})

			code := ember.Code{byte(PUSH1), 0x00, byte(SLOAD), byte(STOP)}
			result := runCode(t, code, 10000, runContext, nil)

			if !result.Success {
				t.Fatalf("execution failed")
			}
			if want, got := ember.Gas(10000-3)-test.cost, result.GasLeft; want != got {
				t.Errorf("unexpected remaining gas, wanted %d, got %d", want, got)
			}
		})
	}
}

func TestInstructions_SstoreChargesByStorageStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := ember.NewMockRunContext(ctrl)
	runContext.EXPECT().AccessStorage(ember.Address{}, ember.Key{}).Return(ember.ColdAccess)
	runContext.EXPECT().SetStorage(ember.Address{}, ember.Key{}, ember.Word{31: 1}).
		Return(ember.StorageAdded)

	code := ember.Code{
		byte(PUSH1), 0x01,
		byte(PUSH1), 0x00,
		byte(SSTORE),
		byte(STOP),
	}
	result := runCode(t, code, 30000, runContext, nil)

	if !result.Success {
		t.Fatalf("execution failed")
	}
	// 2x PUSH1 + cold access + set costs
	want := ember.Gas(30000) - 6 - ColdSloadCost - SstoreSetGas
	if got := result.GasLeft; want != got {
		t.Errorf("unexpected remaining gas, wanted %d, got %d", want, got)
	}
}

func TestInstructions_SstoreGrantsRefundForClearedSlot(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := ember.NewMockRunContext(ctrl)
	runContext.EXPECT().AccessStorage(gomock.Any(), gomock.Any()).Return(ember.WarmAccess)
	runContext.EXPECT().SetStorage(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(ember.StorageDeleted)

	code := ember.Code{
		byte(PUSH1), 0x00,
		byte(PUSH1), 0x00,
		byte(SSTORE),
		byte(STOP),
	}
	result := runCode(t, code, 30000, runContext, nil)

	if !result.Success {
		t.Fatalf("execution failed")
	}
	if want, got := SstoreClearsScheduleRefund, result.GasRefund; want != got {
		t.Errorf("unexpected refund, wanted %d, got %d", want, got)
	}
}

func TestInstructions_SstoreInStaticContextFails(t *testing.T) {
	code := ember.Code{
		byte(PUSH1), 0x01,
		byte(PUSH1), 0x00,
		byte(SSTORE),
	}
	result := runCode(t, code, 30000, nil, func(p *ember.Parameters) {
		p.Static = true
	})

	if result.Success {
		t.Errorf("expected the execution to fail")
	}
	if want, got := ember.Gas(0), result.GasLeft; want != got {
		t.Errorf("unexpected remaining gas, wanted %d, got %d", want, got)
	}
}

func TestInstructions_SstoreBelowSentryGasFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := ember.NewMockRunContext(ctrl)

	code := ember.Code{
		byte(PUSH1), 0x01,
		byte(PUSH1), 0x00,
		byte(SSTORE),
	}
	// 6 gas for the pushes, leaving exactly the sentry amount
	result := runCode(t, code, 6+ember.Gas(SstoreSentryGas), runContext, nil)

	if result.Success {
		t.Errorf("expected the execution to fail")
	}
}

func TestInstructions_TransientStorage(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := ember.NewMockRunContext(ctrl)
	runContext.EXPECT().SetTransientStorage(ember.Address{}, ember.Key{}, ember.Word{31: 5})
	runContext.EXPECT().GetTransientStorage(ember.Address{}, ember.Key{}).Return(ember.Word{31: 5})

	code := ember.Code{
		byte(PUSH1), 0x05,
		byte(PUSH1), 0x00,
		byte(TSTORE),
		byte(PUSH1), 0x00,
		byte(TLOAD),
		byte(PUSH1), 0x00,
		byte(MSTORE),
		byte(PUSH1), 0x20,
		byte(PUSH1), 0x00,
		byte(RETURN),
	}
	result := runCode(t, code, 10000, runContext, nil)

	if !result.Success {
		t.Fatalf("execution failed")
	}
	if want, got := byte(5), result.Output[31]; want != got {
		t.Errorf("unexpected output, wanted %d, got %d", want, got)
	}
}

func TestInstructions_LogEmitsTopicsAndData(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := ember.NewMockRunContext(ctrl)

	var log ember.Log
	runContext.EXPECT().EmitLog(gomock.Any()).Do(func(l ember.Log) { log = l })

	code := ember.Code{
		byte(PUSH1), 0x42,
		byte(PUSH1), 0x00,
		byte(MSTORE),
		byte(PUSH1), 0x07, // topic
		byte(PUSH1), 0x20, // size
		byte(PUSH1), 0x00, // offset
		byte(LOG1),
		byte(STOP),
	}
	result := runCode(t, code, 10000, runContext, nil)

	if !result.Success {
		t.Fatalf("execution failed")
	}
	if want, got := 1, len(log.Topics); want != got {
		t.Fatalf("unexpected number of topics, wanted %d, got %d", want, got)
	}
	if want, got := (ember.Hash{31: 7}), log.Topics[0]; want != got {
		t.Errorf("unexpected topic, wanted %x, got %x", want, got)
	}
	if want, got := 32, len(log.Data); want != got {
		t.Fatalf("unexpected data length, wanted %d, got %d", want, got)
	}
	if want, got := byte(0x42), log.Data[31]; want != got {
		t.Errorf("unexpected data, wanted %d, got %d", want, got)
	}
}

func TestInstructions_LogInStaticContextFails(t *testing.T) {
	code := ember.Code{
		byte(PUSH1), 0x00,
		byte(PUSH1), 0x00,
		byte(LOG0),
	}
	result := runCode(t, code, 10000, nil, func(p *ember.Parameters) {
		p.Static = true
	})
	if result.Success {
		t.Errorf("expected the execution to fail")
	}
}

func TestInstructions_CallForwardsParameters(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := ember.NewMockRunContext(ctrl)

	sender := ember.Address{0x01}
	target := ember.Address{19: 0x42}

	runContext.EXPECT().AccessAccount(target).Return(ember.WarmAccess)

	var kind ember.CallKind
	var parameters ember.CallParameters
	runContext.EXPECT().Call(gomock.Any(), gomock.Any()).
		DoAndReturn(func(k ember.CallKind, p ember.CallParameters) (ember.CallResult, error) {
			kind, parameters = k, p
			return ember.CallResult{Success: true, GasLeft: 4000, GasRefund: 5}, nil
		})

	code := ember.Code{
		byte(PUSH1), 0x00, // retSize
		byte(PUSH1), 0x00, // retOffset
		byte(PUSH1), 0x00, // inSize
		byte(PUSH1), 0x00, // inOffset
		byte(PUSH1), 0x00, // value
		byte(PUSH1), 0x42, // target address
		byte(PUSH2), 0x10, 0x00, // gas
		byte(CALL),
		byte(STOP),
	}
	result := runCode(t, code, 100000, runContext, func(p *ember.Parameters) {
		p.Recipient = sender
	})

	if !result.Success {
		t.Fatalf("execution failed")
	}
	if want, got := ember.Call, kind; want != got {
		t.Errorf("unexpected call kind, wanted %v, got %v", want, got)
	}
	if want, got := sender, parameters.Sender; want != got {
		t.Errorf("unexpected sender, wanted %x, got %x", want, got)
	}
	if want, got := target, parameters.Recipient; want != got {
		t.Errorf("unexpected recipient, wanted %x, got %x", want, got)
	}
	if want, got := ember.Gas(0x1000), parameters.Gas; want != got {
		t.Errorf("unexpected gas, wanted %d, got %d", want, got)
	}

	// 7 pushes + warm access + forwarded gas, of which 4000 were returned
	want := ember.Gas(100000) - 21 - WarmStorageReadCost - 0x1000 + 4000
	if got := result.GasLeft; want != got {
		t.Errorf("unexpected remaining gas, wanted %d, got %d", want, got)
	}
	if want, got := ember.Gas(5), result.GasRefund; want != got {
		t.Errorf("unexpected refund, wanted %d, got %d", want, got)
	}
}

func TestInstructions_DelegateCallRetainsSenderAndValue(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := ember.NewMockRunContext(ctrl)

	runContext.EXPECT().AccessAccount(gomock.Any()).Return(ember.WarmAccess)

	var kind ember.CallKind
	var parameters ember.CallParameters
	runContext.EXPECT().Call(gomock.Any(), gomock.Any()).
		DoAndReturn(func(k ember.CallKind, p ember.CallParameters) (ember.CallResult, error) {
			kind, parameters = k, p
			return ember.CallResult{Success: true}, nil
		})

	code := ember.Code{
		byte(PUSH1), 0x00, // retSize
		byte(PUSH1), 0x00, // retOffset
		byte(PUSH1), 0x00, // inSize
		byte(PUSH1), 0x00, // inOffset
		byte(PUSH1), 0x42, // target address
		byte(PUSH1), 0x00, // gas
		byte(DELEGATECALL),
		byte(STOP),
	}
	sender := ember.Address{0x01}
	recipient := ember.Address{0x02}
	value := ember.NewValue(12)
	result := runCode(t, code, 100000, runContext, func(p *ember.Parameters) {
		p.Sender = sender
		p.Recipient = recipient
		p.Value = value
	})

	if !result.Success {
		t.Fatalf("execution failed")
	}
	if want, got := ember.DelegateCall, kind; want != got {
		t.Errorf("unexpected call kind, wanted %v, got %v", want, got)
	}
	if want, got := sender, parameters.Sender; want != got {
		t.Errorf("unexpected sender, wanted %x, got %x", want, got)
	}
	if want, got := recipient, parameters.Recipient; want != got {
		t.Errorf("unexpected recipient, wanted %x, got %x", want, got)
	}
	if want, got := (ember.Address{19: 0x42}), parameters.CodeAddress; want != got {
		t.Errorf("unexpected code address, wanted %x, got %x", want, got)
	}
	if want, got := value, parameters.Value; want != got {
		t.Errorf("unexpected value, wanted %v, got %v", want, got)
	}
}

func TestInstructions_StaticCallContextTurnsCallsStatic(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := ember.NewMockRunContext(ctrl)
	runContext.EXPECT().AccessAccount(gomock.Any()).Return(ember.WarmAccess)

	var kind ember.CallKind
	runContext.EXPECT().Call(gomock.Any(), gomock.Any()).
		DoAndReturn(func(k ember.CallKind, p ember.CallParameters) (ember.CallResult, error) {
			kind = k
			return ember.CallResult{Success: true}, nil
		})

	code := ember.Code{
		byte(PUSH1), 0x00, // retSize
		byte(PUSH1), 0x00, // retOffset
		byte(PUSH1), 0x00, // inSize
		byte(PUSH1), 0x00, // inOffset
		byte(PUSH1), 0x00, // value
		byte(PUSH1), 0x42, // target address
		byte(PUSH1), 0x00, // gas
		byte(CALL),
		byte(STOP),
	}
	result := runCode(t, code, 100000, runContext, func(p *ember.Parameters) {
		p.Static = true
	})

	if !result.Success {
		t.Fatalf("execution failed")
	}
	if want, got := ember.StaticCall, kind; want != got {
		t.Errorf("unexpected call kind, wanted %v, got %v", want, got)
	}
}

func TestInstructions_ValueTransferInStaticContextFails(t *testing.T) {
	code := ember.Code{
		byte(PUSH1), 0x00, // retSize
		byte(PUSH1), 0x00, // retOffset
		byte(PUSH1), 0x00, // inSize
		byte(PUSH1), 0x00, // inOffset
		byte(PUSH1), 0x01, // value
		byte(PUSH1), 0x42, // target address
		byte(PUSH1), 0x00, // gas
		byte(CALL),
	}
	result := runCode(t, code, 100000, nil, func(p *ember.Parameters) {
		p.Static = true
	})
	if result.Success {
		t.Errorf("expected the execution to fail")
	}
}

func TestInstructions_CreateForwardsInitCodeAndValue(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := ember.NewMockRunContext(ctrl)

	created := ember.Address{0x33}
	runContext.EXPECT().GetBalance(gomock.Any()).Return(ember.NewValue(100))

	var kind ember.CallKind
	var parameters ember.CallParameters
	runContext.EXPECT().Call(gomock.Any(), gomock.Any()).
		DoAndReturn(func(k ember.CallKind, p ember.CallParameters) (ember.CallResult, error) {
			kind, parameters = k, p
			return ember.CallResult{Success: true, CreatedAddress: created}, nil
		})

	code := ember.Code{
		byte(PUSH1), 0x42,
		byte(PUSH1), 0x00,
		byte(MSTORE8),
		byte(PUSH1), 0x01, // size
		byte(PUSH1), 0x00, // offset
		byte(PUSH1), 0x0A, // value
		byte(CREATE),
		byte(PUSH1), 0x00,
		byte(MSTORE),
		byte(PUSH1), 0x20,
		byte(PUSH1), 0x00,
		byte(RETURN),
	}
	result := runCode(t, code, 100000, runContext, nil)

	if !result.Success {
		t.Fatalf("execution failed")
	}
	if want, got := ember.Create, kind; want != got {
		t.Errorf("unexpected call kind, wanted %v, got %v", want, got)
	}
	if want, got := ember.NewValue(10), parameters.Value; want != got {
		t.Errorf("unexpected value, wanted %v, got %v", want, got)
	}
	if want, got := byte(0x42), parameters.Input[0]; want != got {
		t.Errorf("unexpected init code, wanted %d, got %d", want, got)
	}
	if want, got := created[:], result.Output[12:]; !bytes.Equal(want, got) {
		t.Errorf("unexpected created address on the stack, wanted %x, got %x", want, got)
	}
}

func TestInstructions_CreateWithInsufficientBalancePushesZero(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := ember.NewMockRunContext(ctrl)
	runContext.EXPECT().GetBalance(gomock.Any()).Return(ember.NewValue(1))

	code := ember.Code{
		byte(PUSH1), 0x00, // size
		byte(PUSH1), 0x00, // offset
		byte(PUSH1), 0x0A, // value
		byte(CREATE),
		byte(PUSH1), 0x00,
		byte(MSTORE),
		byte(PUSH1), 0x20,
		byte(PUSH1), 0x00,
		byte(RETURN),
	}
	result := runCode(t, code, 100000, runContext, nil)

	if !result.Success {
		t.Fatalf("execution failed")
	}
	for i := 0; i < 32; i++ {
		if result.Output[i] != 0 {
			t.Fatalf("expected zero result, got %x", result.Output)
		}
	}
}

func TestInstructions_SelfDestructStopsExecution(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := ember.NewMockRunContext(ctrl)
	beneficiary := ember.Address{19: 0x42}
	runContext.EXPECT().AccessAccount(beneficiary).Return(ember.WarmAccess)
	runContext.EXPECT().AccountExists(beneficiary).Return(true)
	runContext.EXPECT().GetBalance(gomock.Any()).Return(ember.NewValue(5))
	runContext.EXPECT().SelfDestruct(ember.Address{}, beneficiary).Return(true)

	code := ember.Code{
		byte(PUSH1), 0x42,
		byte(SELFDESTRUCT),
		byte(INVALID), // never reached
	}
	result := runCode(t, code, 10000, runContext, nil)

	if !result.Success {
		t.Fatalf("expected the execution to succeed")
	}
	// PUSH1 + SELFDESTRUCT base costs
	if want, got := ember.Gas(10000-3)-SelfdestructGas, result.GasLeft; want != got {
		t.Errorf("unexpected remaining gas, wanted %d, got %d", want, got)
	}
}

func TestInstructions_SelfDestructToNewAccountPaysCreationCosts(t *testing.T) {
	ctrl := gomock.NewController(t)
	runContext := ember.NewMockRunContext(ctrl)
	beneficiary := ember.Address{19: 0x42}
	runContext.EXPECT().AccessAccount(beneficiary).Return(ember.ColdAccess)
	runContext.EXPECT().AccountExists(beneficiary).Return(false)
	runContext.EXPECT().GetBalance(gomock.Any()).Return(ember.NewValue(5))
	runContext.EXPECT().SelfDestruct(ember.Address{}, beneficiary).Return(true)

	code := ember.Code{
		byte(PUSH1), 0x42,
		byte(SELFDESTRUCT),
	}
	result := runCode(t, code, 40000, runContext, nil)

	if !result.Success {
		t.Fatalf("expected the execution to succeed")
	}
	want := ember.Gas(40000-3) - SelfdestructGas - ColdAccountAccessCost - CreateBySelfdestructGas
	if got := result.GasLeft; want != got {
		t.Errorf("unexpected remaining gas, wanted %d, got %d", want, got)
	}
}
