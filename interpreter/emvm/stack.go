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
	"fmt"
	"strings"
	"sync"

	"github.com/holiman/uint256"
)

const maxStackSize = 1024 // Maximum size of the VM stack allowed.

// stack is the 1024-element 256-bit word-wide stack used by the VM.
// It is a fixed-size stack to prevent memory reallocation during execution.
// Boundaries are not checked here. Users of the stack must prevent over- and
// underflow situations; the dispatch loop does this through the per-opcode
// stack limits before executing an instruction.
//
// Each stack consumes 1024 * 32 bytes = 32KB of memory. Thus, creating and
// destroying stacks could incur significant overhead. To mitigate this, a
// stack pool is provided to reuse stack instances. To obtain an empty stack
// from the pool, use NewStack(). To return a stack to the pool, use
// ReturnStack(s).
//
// The stack is not thread-safe. NewStack() and ReturnStack() are thread-safe.
type stack struct {
	data         [maxStackSize]uint256.Int
	stackPointer int
}

// push adds a copy of the given value to the top of the stack.
func (s *stack) push(d *uint256.Int) {
	s.data[s.stackPointer] = *d
	s.stackPointer++
}

// pushUndefined adds a value with an undefined content to the top of the
// stack and returns a pointer to this element. Use this function if the
// element on the top of the stack is directly overwritten afterwards.
func (s *stack) pushUndefined() *uint256.Int {
	s.stackPointer++
	return &s.data[s.stackPointer-1]
}

// pop removes the top element from the stack and returns a pointer to it. The
// obtained pointer is only valid until the next push operation.
func (s *stack) pop() *uint256.Int {
	s.stackPointer--
	return &s.data[s.stackPointer]
}

// peek returns a pointer to the top element of the stack without removing it.
// The returned pointer is only valid until the next operation on the stack.
func (s *stack) peek() *uint256.Int {
	return &s.data[s.len()-1]
}

// peekN returns a pointer to the n-th element from the top of the stack
// without removing it. The top element is at index 0. Thus, peekN(0) is
// equivalent to peek().
func (s *stack) peekN(n int) *uint256.Int {
	return &s.data[s.len()-n-1]
}

// len returns the number of elements on the stack.
func (s *stack) len() int {
	return s.stackPointer
}

// swap exchanges the top element with the n-th element below it.
func (s *stack) swap(n int) {
	s.data[s.len()-n-1], s.data[s.len()-1] = s.data[s.len()-1], s.data[s.len()-n-1]
}

// dup duplicates the n-th element from the top and pushes it to the top of
// the stack. The top element is at index 0.
func (s *stack) dup(n int) {
	s.data[s.stackPointer] = s.data[s.stackPointer-n-1]
	s.stackPointer++
}

// get returns the element at the given index. The bottom element is at index 0.
func (s *stack) get(i int) *uint256.Int {
	return &s.data[i]
}

func (s *stack) String() string {
	toHex := func(z *uint256.Int) string {
		b := strings.Builder{}
		b.WriteString("0x")
		bytes := z.Bytes32()
		for i, cur := range bytes {
			b.WriteString(fmt.Sprintf("%02x", cur))
			if (i+1)%8 == 0 {
				b.WriteString(" ")
			}
		}
		return b.String()
	}

	b := strings.Builder{}
	for i := 0; i < s.len(); i++ {
		b.WriteString(fmt.Sprintf("    [%4d] %v\n", s.len()-i-1, toHex(s.peekN(i))))
	}
	return b.String()
}

// ------------------ Stack Pool ------------------

var stackPool = sync.Pool{
	New: func() interface{} {
		return &stack{}
	},
}

// NewStack returns a stack instance from a reuse pool. Heavy stack users
// should use this function to prevent memory reallocation overhead.
// This function is thread-safe.
func NewStack() *stack {
	return stackPool.Get().(*stack)
}

// ReturnStack returns the stack to the reuse pool. Any stack may only be
// returned once to avoid concurrent re-use. This is not checked internally.
// This function is thread-safe.
func ReturnStack(s *stack) {
	s.stackPointer = 0
	stackPool.Put(s)
}

// ------------------ Stack Boundary ------------------

// instructionStack summarizes the stack requirements of an instruction: the
// minimum number of elements that must be present before execution, and the
// maximum number of elements that may be present such that the instruction
// does not overflow the stack.
type instructionStack struct {
	stackMin int
	stackMax int
}

var staticStackBoundary = [numOpCodes]instructionStack{}

func init() {
	for i := 0; i < numOpCodes; i++ {
		staticStackBoundary[OpCode(i)] = getStaticStackInternal(OpCode(i))
	}
}

// newInstructionStack describes an instruction popping min elements and
// growing the stack by up to grow elements.
func newInstructionStack(min, grow int) instructionStack {
	return instructionStack{
		stackMin: min,
		stackMax: maxStackSize - grow,
	}
}

func getStaticStackInternal(op OpCode) instructionStack {
	if op.isPush() {
		return newInstructionStack(0, 1)
	}
	if DUP1 <= op && op <= DUP16 {
		return newInstructionStack(int(op)-int(DUP1)+1, 1)
	}
	if SWAP1 <= op && op <= SWAP16 {
		return newInstructionStack(int(op)-int(SWAP1)+2, 0)
	}
	if LOG0 <= op && op <= LOG4 {
		return newInstructionStack(int(op)-int(LOG0)+2, 0)
	}

	switch op {
	case JUMPDEST, STOP, INVALID:
		return newInstructionStack(0, 0)
	case ADD, SUB, MUL, DIV, SDIV, MOD, SMOD, EXP, SIGNEXTEND,
		SHA3, LT, GT, SLT, SGT, EQ, AND, XOR, OR, BYTE,
		SHL, SHR, SAR:
		return newInstructionStack(2, 0)
	case ADDMOD, MULMOD:
		return newInstructionStack(3, 0)
	case ISZERO, NOT, BALANCE, CALLDATALOAD, EXTCODESIZE,
		BLOCKHASH, MLOAD, SLOAD, TLOAD, EXTCODEHASH:
		return newInstructionStack(1, 0)
	case PUSH0, MSIZE, ADDRESS, ORIGIN, CALLER, CALLVALUE, CALLDATASIZE,
		CODESIZE, GASPRICE, COINBASE, TIMESTAMP, NUMBER,
		PREVRANDAO, GASLIMIT, PC, GAS, RETURNDATASIZE,
		SELFBALANCE, CHAINID, BASEFEE:
		return newInstructionStack(0, 1)
	case POP, JUMP, SELFDESTRUCT:
		return newInstructionStack(1, 0)
	case MSTORE, MSTORE8, SSTORE, TSTORE, JUMPI, RETURN, REVERT:
		return newInstructionStack(2, 0)
	case CALLDATACOPY, CODECOPY, RETURNDATACOPY, MCOPY, CREATE:
		return newInstructionStack(3, 0)
	case EXTCODECOPY, CREATE2:
		return newInstructionStack(4, 0)
	case CALL, CALLCODE:
		return newInstructionStack(7, 0)
	case STATICCALL, DELEGATECALL:
		return newInstructionStack(6, 0)
	}
	return newInstructionStack(0, 0)
}
