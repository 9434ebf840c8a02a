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
)

// status is the current state of an execution frame.
type status byte

const (
	statusRunning        status = iota
	statusStopped               // the execution stopped with the STOP instruction or ran out of code
	statusReturned              // the execution stopped with the RETURN instruction
	statusReverted              // the execution stopped with the REVERT instruction
	statusSelfDestructed        // the execution stopped with the SELFDESTRUCT instruction
)

// context is the execution environment of a single frame. It aggregates the
// static parameters of the run with the mutable machine state: program
// counter, gas meter, stack, memory, and the return data buffer of the most
// recent nested call.
type context struct {
	params   ember.Parameters
	context  ember.RunContext
	code     ember.Code
	analysis *codeAnalysis

	pc     int
	gas    gasMeter
	stack  *stack
	memory *Memory
	status status

	returnData []byte // output of the most recent nested call
	output     []byte // output of this frame, set by RETURN and REVERT
}

func run(c *context) (ember.Result, error) {
	// Execution of contracts without code is always successful. This shortcut
	// also covers calls to externally owned accounts.
	if len(c.code) == 0 {
		return ember.Result{Success: true, GasLeft: c.gas.remaining()}, nil
	}

	if err := steps(c); err != nil {
		// All errors encountered during the execution are issues of the
		// executed code. The full gas budget is charged and no output or
		// refund is retained.
		c.gas.consumeAll()
		return ember.Result{Success: false}, nil
	}
	return generateResult(c), nil
}

func steps(c *context) error {
	for c.status == statusRunning {
		if c.pc >= len(c.code) {
			c.status = statusStopped
			return nil
		}

		op := OpCode(c.code[c.pc])

		if err := checkStackLimits(c.stack.len(), op); err != nil {
			return err
		}
		if err := c.gas.consume(staticGasPrices[op]); err != nil {
			return err
		}
		if err := execute(c, op); err != nil {
			return err
		}
		c.pc++
	}
	return nil
}

func checkStackLimits(size int, op OpCode) error {
	limits := staticStackBoundary[op]
	if size < limits.stackMin {
		return errStackUnderflow
	}
	if size > limits.stackMax {
		return errStackOverflow
	}
	return nil
}

func generateResult(c *context) ember.Result {
	switch c.status {
	case statusStopped, statusSelfDestructed:
		return ember.Result{
			Success:   true,
			GasLeft:   c.gas.remaining(),
			GasRefund: c.gas.refund,
		}
	case statusReturned:
		return ember.Result{
			Success:   true,
			Output:    c.output,
			GasLeft:   c.gas.remaining(),
			GasRefund: c.gas.refund,
		}
	case statusReverted:
		// A revert returns the remaining gas but forfeits all refunds.
		return ember.Result{
			Success: false,
			Output:  c.output,
			GasLeft: c.gas.remaining(),
		}
	}
	return ember.Result{Success: false}
}

func execute(c *context, op OpCode) error {
	if op.isPush() {
		return opPush(c, op.pushSize())
	}
	if DUP1 <= op && op <= DUP16 {
		c.stack.dup(int(op) - int(DUP1))
		return nil
	}
	if SWAP1 <= op && op <= SWAP16 {
		c.stack.swap(int(op) - int(SWAP1) + 1)
		return nil
	}
	if LOG0 <= op && op <= LOG4 {
		return opLog(c, int(op)-int(LOG0))
	}

	switch op {
	case STOP:
		c.status = statusStopped
		return nil
	case ADD:
		return opAdd(c)
	case MUL:
		return opMul(c)
	case SUB:
		return opSub(c)
	case DIV:
		return opDiv(c)
	case SDIV:
		return opSDiv(c)
	case MOD:
		return opMod(c)
	case SMOD:
		return opSMod(c)
	case ADDMOD:
		return opAddMod(c)
	case MULMOD:
		return opMulMod(c)
	case EXP:
		return opExp(c)
	case SIGNEXTEND:
		return opSignExtend(c)
	case LT:
		return opLt(c)
	case GT:
		return opGt(c)
	case SLT:
		return opSlt(c)
	case SGT:
		return opSgt(c)
	case EQ:
		return opEq(c)
	case ISZERO:
		return opIsZero(c)
	case AND:
		return opAnd(c)
	case OR:
		return opOr(c)
	case XOR:
		return opXor(c)
	case NOT:
		return opNot(c)
	case BYTE:
		return opByte(c)
	case SHL:
		return opShl(c)
	case SHR:
		return opShr(c)
	case SAR:
		return opSar(c)
	case SHA3:
		return opSha3(c)
	case ADDRESS:
		return opAddress(c)
	case BALANCE:
		return opBalance(c)
	case ORIGIN:
		return opOrigin(c)
	case CALLER:
		return opCaller(c)
	case CALLVALUE:
		return opCallValue(c)
	case CALLDATALOAD:
		return opCallDataLoad(c)
	case CALLDATASIZE:
		return opCallDataSize(c)
	case CALLDATACOPY:
		return opCallDataCopy(c)
	case CODESIZE:
		return opCodeSize(c)
	case CODECOPY:
		return opCodeCopy(c)
	case GASPRICE:
		return opGasPrice(c)
	case EXTCODESIZE:
		return opExtCodeSize(c)
	case EXTCODECOPY:
		return opExtCodeCopy(c)
	case RETURNDATASIZE:
		return opReturnDataSize(c)
	case RETURNDATACOPY:
		return opReturnDataCopy(c)
	case EXTCODEHASH:
		return opExtCodeHash(c)
	case BLOCKHASH:
		return opBlockHash(c)
	case COINBASE:
		return opCoinbase(c)
	case TIMESTAMP:
		return opTimestamp(c)
	case NUMBER:
		return opNumber(c)
	case PREVRANDAO:
		return opPrevRandao(c)
	case GASLIMIT:
		return opGasLimit(c)
	case CHAINID:
		return opChainId(c)
	case SELFBALANCE:
		return opSelfBalance(c)
	case BASEFEE:
		return opBaseFee(c)
	case POP:
		c.stack.pop()
		return nil
	case MLOAD:
		return opMLoad(c)
	case MSTORE:
		return opMStore(c)
	case MSTORE8:
		return opMStore8(c)
	case SLOAD:
		return opSLoad(c)
	case SSTORE:
		return opSStore(c)
	case JUMP:
		return opJump(c)
	case JUMPI:
		return opJumpi(c)
	case PC:
		return opPc(c)
	case MSIZE:
		return opMSize(c)
	case GAS:
		return opGas(c)
	case JUMPDEST:
		return nil
	case TLOAD:
		return opTLoad(c)
	case TSTORE:
		return opTStore(c)
	case MCOPY:
		return opMCopy(c)
	case PUSH0:
		c.stack.pushUndefined().Clear()
		return nil
	case CREATE:
		return genericCreate(c, ember.Create)
	case CREATE2:
		return genericCreate(c, ember.Create2)
	case CALL:
		return genericCall(c, ember.Call)
	case CALLCODE:
		return genericCall(c, ember.CallCode)
	case DELEGATECALL:
		return genericCall(c, ember.DelegateCall)
	case STATICCALL:
		return genericCall(c, ember.StaticCall)
	case RETURN:
		return opEndWithResult(c, statusReturned)
	case REVERT:
		return opEndWithResult(c, statusReverted)
	case SELFDESTRUCT:
		return opSelfDestruct(c)
	}
	return errInvalidOpCode
}
