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

	"github.com/ember-vm/ember"
	"github.com/holiman/uint256"
)

// maxInitCodeSize is the maximum length of contract initialization code.
const maxInitCodeSize = 49152

// checkSizeOffsetUint64Overflow verifies that a memory range given by an
// offset and a size fits into the uint64 range. A size of zero makes the
// offset irrelevant.
func checkSizeOffsetUint64Overflow(offset, size *uint256.Int) error {
	if size.IsZero() {
		return nil
	}
	if !size.IsUint64() || !offset.IsUint64() {
		return errOverflow
	}
	return nil
}

// ------------------ Arithmetic ------------------

func opAdd(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Add(a, b)
	return nil
}

func opMul(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Mul(a, b)
	return nil
}

func opSub(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Sub(a, b)
	return nil
}

func opDiv(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Div(a, b)
	return nil
}

func opSDiv(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.SDiv(a, b)
	return nil
}

func opMod(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Mod(a, b)
	return nil
}

func opSMod(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.SMod(a, b)
	return nil
}

func opAddMod(c *context) error {
	a := c.stack.pop()
	b := c.stack.pop()
	n := c.stack.peek()
	n.AddMod(a, b, n)
	return nil
}

func opMulMod(c *context) error {
	a := c.stack.pop()
	b := c.stack.pop()
	n := c.stack.peek()
	n.MulMod(a, b, n)
	return nil
}

func opExp(c *context) error {
	base := c.stack.pop()
	exponent := c.stack.peek()
	if err := c.gas.consume(ember.Gas(50 * exponent.ByteLen())); err != nil {
		return err
	}
	exponent.Exp(base, exponent)
	return nil
}

func opSignExtend(c *context) error {
	back := c.stack.pop()
	num := c.stack.peek()
	num.ExtendSign(num, back)
	return nil
}

// ------------------ Comparison and bitwise logic ------------------

func opLt(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Lt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
	return nil
}

func opGt(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Gt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
	return nil
}

func opSlt(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Slt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
	return nil
}

func opSgt(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Sgt(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
	return nil
}

func opEq(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	if a.Eq(b) {
		b.SetOne()
	} else {
		b.Clear()
	}
	return nil
}

func opIsZero(c *context) error {
	a := c.stack.peek()
	if a.IsZero() {
		a.SetOne()
	} else {
		a.Clear()
	}
	return nil
}

func opAnd(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.And(a, b)
	return nil
}

func opOr(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Or(a, b)
	return nil
}

func opXor(c *context) error {
	a := c.stack.pop()
	b := c.stack.peek()
	b.Xor(a, b)
	return nil
}

func opNot(c *context) error {
	a := c.stack.peek()
	a.Not(a)
	return nil
}

func opByte(c *context) error {
	i := c.stack.pop()
	w := c.stack.peek()
	w.Byte(i)
	return nil
}

func opShl(c *context) error {
	shift := c.stack.pop()
	value := c.stack.peek()
	if shift.LtUint64(256) {
		value.Lsh(value, uint(shift.Uint64()))
	} else {
		value.Clear()
	}
	return nil
}

func opShr(c *context) error {
	shift := c.stack.pop()
	value := c.stack.peek()
	if shift.LtUint64(256) {
		value.Rsh(value, uint(shift.Uint64()))
	} else {
		value.Clear()
	}
	return nil
}

func opSar(c *context) error {
	shift := c.stack.pop()
	value := c.stack.peek()
	if shift.GtUint64(256) {
		if value.Sign() >= 0 {
			value.Clear()
		} else {
			value.SetAllOne()
		}
		return nil
	}
	value.SRsh(value, uint(shift.Uint64()))
	return nil
}

// ------------------ Hashing ------------------

func opSha3(c *context) error {
	offset := c.stack.pop()
	size := c.stack.peek()

	if err := checkSizeOffsetUint64Overflow(offset, size); err != nil {
		return err
	}
	words := ember.Gas(ember.SizeInWords(size.Uint64()))
	if err := c.gas.consume(6 * words); err != nil {
		return err
	}
	data, err := c.memory.getSlice(offset.Uint64(), size.Uint64(), &c.gas)
	if err != nil {
		return err
	}
	hash := keccak256(data)
	size.SetBytes32(hash[:])
	return nil
}

// ------------------ Environmental information ------------------

func opAddress(c *context) error {
	c.stack.pushUndefined().SetBytes20(c.params.Recipient[:])
	return nil
}

func opBalance(c *context) error {
	top := c.stack.peek()
	address := ember.Address(top.Bytes20())
	if err := c.gas.consume(getAccessCost(c.context.AccessAccount(address))); err != nil {
		return err
	}
	balance := c.context.GetBalance(address)
	top.SetBytes32(balance[:])
	return nil
}

func opOrigin(c *context) error {
	c.stack.pushUndefined().SetBytes20(c.params.Origin[:])
	return nil
}

func opCaller(c *context) error {
	c.stack.pushUndefined().SetBytes20(c.params.Sender[:])
	return nil
}

func opCallValue(c *context) error {
	c.stack.pushUndefined().SetBytes32(c.params.Value[:])
	return nil
}

func opCallDataLoad(c *context) error {
	top := c.stack.peek()
	var value [32]byte
	if top.IsUint64() && top.Uint64() < uint64(len(c.params.Input)) {
		copy(value[:], c.params.Input[top.Uint64():])
	}
	top.SetBytes32(value[:])
	return nil
}

func opCallDataSize(c *context) error {
	c.stack.pushUndefined().SetUint64(uint64(len(c.params.Input)))
	return nil
}

func opCallDataCopy(c *context) error {
	destOffset := c.stack.pop()
	dataOffset := c.stack.pop()
	size := c.stack.pop()
	return copyDataToMemory(c, c.params.Input, destOffset, dataOffset, size)
}

func opCodeSize(c *context) error {
	c.stack.pushUndefined().SetUint64(uint64(len(c.code)))
	return nil
}

func opCodeCopy(c *context) error {
	destOffset := c.stack.pop()
	codeOffset := c.stack.pop()
	size := c.stack.pop()
	return copyDataToMemory(c, c.code, destOffset, codeOffset, size)
}

func opGasPrice(c *context) error {
	c.stack.pushUndefined().SetBytes32(c.params.GasPrice[:])
	return nil
}

func opExtCodeSize(c *context) error {
	top := c.stack.peek()
	address := ember.Address(top.Bytes20())
	if err := c.gas.consume(getAccessCost(c.context.AccessAccount(address))); err != nil {
		return err
	}
	top.SetUint64(uint64(c.context.GetCodeSize(address)))
	return nil
}

func opExtCodeCopy(c *context) error {
	address := ember.Address(c.stack.pop().Bytes20())
	destOffset := c.stack.pop()
	codeOffset := c.stack.pop()
	size := c.stack.pop()
	if err := c.gas.consume(getAccessCost(c.context.AccessAccount(address))); err != nil {
		return err
	}
	return copyDataToMemory(c, c.context.GetCode(address), destOffset, codeOffset, size)
}

func opReturnDataSize(c *context) error {
	c.stack.pushUndefined().SetUint64(uint64(len(c.returnData)))
	return nil
}

func opReturnDataCopy(c *context) error {
	destOffset := c.stack.pop()
	dataOffset := c.stack.pop()
	size := c.stack.pop()

	if err := checkSizeOffsetUint64Overflow(destOffset, size); err != nil {
		return err
	}
	// Unlike the other copy instructions, reading beyond the end of the
	// return data is an error, not zero-padded.
	if !dataOffset.IsUint64() {
		return errReturnDataOutOfBounds
	}
	end := dataOffset.Uint64() + size.Uint64()
	if end < dataOffset.Uint64() || end > uint64(len(c.returnData)) {
		return errReturnDataOutOfBounds
	}

	words := ember.Gas(ember.SizeInWords(size.Uint64()))
	if err := c.gas.consume(3 * words); err != nil {
		return err
	}
	dest, err := c.memory.getSlice(destOffset.Uint64(), size.Uint64(), &c.gas)
	if err != nil {
		return err
	}
	copy(dest, c.returnData[dataOffset.Uint64():end])
	return nil
}

func opExtCodeHash(c *context) error {
	top := c.stack.peek()
	address := ember.Address(top.Bytes20())
	if err := c.gas.consume(getAccessCost(c.context.AccessAccount(address))); err != nil {
		return err
	}
	hash := c.context.GetCodeHash(address)
	if !c.context.AccountExists(address) {
		top.Clear()
	} else {
		top.SetBytes32(hash[:])
	}
	return nil
}

// ------------------ Block information ------------------

func opBlockHash(c *context) error {
	top := c.stack.peek()
	upper := uint64(c.params.BlockNumber)
	var lower uint64
	if upper > 256 {
		lower = upper - 256
	}
	if top.IsUint64() && top.Uint64() >= lower && top.Uint64() < upper {
		hash := c.context.GetBlockHash(int64(top.Uint64()))
		top.SetBytes32(hash[:])
	} else {
		top.Clear()
	}
	return nil
}

func opCoinbase(c *context) error {
	c.stack.pushUndefined().SetBytes20(c.params.Coinbase[:])
	return nil
}

func opTimestamp(c *context) error {
	c.stack.pushUndefined().SetUint64(uint64(c.params.Timestamp))
	return nil
}

func opNumber(c *context) error {
	c.stack.pushUndefined().SetUint64(uint64(c.params.BlockNumber))
	return nil
}

func opPrevRandao(c *context) error {
	c.stack.pushUndefined().SetBytes32(c.params.PrevRandao[:])
	return nil
}

func opGasLimit(c *context) error {
	c.stack.pushUndefined().SetUint64(uint64(c.params.GasLimit))
	return nil
}

func opChainId(c *context) error {
	c.stack.pushUndefined().SetBytes32(c.params.ChainID[:])
	return nil
}

func opSelfBalance(c *context) error {
	balance := c.context.GetBalance(c.params.Recipient)
	c.stack.pushUndefined().SetBytes32(balance[:])
	return nil
}

func opBaseFee(c *context) error {
	c.stack.pushUndefined().SetBytes32(c.params.BaseFee[:])
	return nil
}

// ------------------ Memory ------------------

func opMLoad(c *context) error {
	top := c.stack.peek()
	if !top.IsUint64() {
		c.gas.consumeAll()
		return errGasUintOverflow
	}
	return c.memory.readWord(top.Uint64(), top, &c.gas)
}

func opMStore(c *context) error {
	offset := c.stack.pop()
	value := c.stack.pop()
	if !offset.IsUint64() {
		c.gas.consumeAll()
		return errGasUintOverflow
	}
	return c.memory.setWord(offset.Uint64(), value, &c.gas)
}

func opMStore8(c *context) error {
	offset := c.stack.pop()
	value := c.stack.pop()
	if !offset.IsUint64() {
		c.gas.consumeAll()
		return errGasUintOverflow
	}
	return c.memory.setByte(offset.Uint64(), byte(value.Uint64()), &c.gas)
}

func opMSize(c *context) error {
	c.stack.pushUndefined().SetUint64(c.memory.length())
	return nil
}

func opMCopy(c *context) error {
	destOffset := c.stack.pop()
	srcOffset := c.stack.pop()
	size := c.stack.pop()

	if err := checkSizeOffsetUint64Overflow(destOffset, size); err != nil {
		return err
	}
	if err := checkSizeOffsetUint64Overflow(srcOffset, size); err != nil {
		return err
	}
	if size.IsZero() {
		return nil
	}

	words := ember.Gas(ember.SizeInWords(size.Uint64()))
	if err := c.gas.consume(3 * words); err != nil {
		return err
	}
	// Expand for both ranges before slicing, a later expansion would
	// invalidate an earlier slice.
	if err := c.memory.expandMemory(srcOffset.Uint64(), size.Uint64(), &c.gas); err != nil {
		return err
	}
	dest, err := c.memory.getSlice(destOffset.Uint64(), size.Uint64(), &c.gas)
	if err != nil {
		return err
	}
	src, err := c.memory.getSlice(srcOffset.Uint64(), size.Uint64(), &c.gas)
	if err != nil {
		return err
	}
	copy(dest, src)
	return nil
}

// copyDataToMemory implements the shared semantics of the CALLDATACOPY,
// CODECOPY, and EXTCODECOPY instructions: data read beyond the end of the
// source is zero-padded.
func copyDataToMemory(c *context, data []byte, destOffset, dataOffset, size *uint256.Int) error {
	if err := checkSizeOffsetUint64Overflow(destOffset, size); err != nil {
		return err
	}
	if size.IsZero() {
		return nil
	}
	words := ember.Gas(ember.SizeInWords(size.Uint64()))
	if err := c.gas.consume(3 * words); err != nil {
		return err
	}
	dest, err := c.memory.getSlice(destOffset.Uint64(), size.Uint64(), &c.gas)
	if err != nil {
		return err
	}
	var src []byte
	if dataOffset.IsUint64() && dataOffset.Uint64() < uint64(len(data)) {
		src = data[dataOffset.Uint64():]
	}
	n := copy(dest, src)
	for i := n; i < len(dest); i++ {
		dest[i] = 0
	}
	return nil
}

// ------------------ Storage ------------------

func opSLoad(c *context) error {
	top := c.stack.peek()
	key := ember.Key(top.Bytes32())
	cost := WarmStorageReadCost
	if c.context.AccessStorage(c.params.Recipient, key) == ember.ColdAccess {
		cost = ColdSloadCost
	}
	if err := c.gas.consume(cost); err != nil {
		return err
	}
	value := c.context.GetStorage(c.params.Recipient, key)
	top.SetBytes32(value[:])
	return nil
}

func opSStore(c *context) error {
	if c.params.Static {
		return errStaticContextViolation
	}
	// An SSTORE requires more gas than the value-call stipend to be left to
	// guard re-entrancy through value-bearing calls.
	if c.gas.remaining() <= SstoreSentryGas {
		return errOutOfGas
	}

	key := ember.Key(c.stack.pop().Bytes32())
	value := ember.Word(c.stack.pop().Bytes32())

	if c.context.AccessStorage(c.params.Recipient, key) == ember.ColdAccess {
		if err := c.gas.consume(ColdSloadCost); err != nil {
			return err
		}
	}

	storageStatus := c.context.SetStorage(c.params.Recipient, key, value)
	if err := c.gas.consume(getDynamicCostsForSstore(storageStatus)); err != nil {
		return err
	}
	c.gas.addRefund(getRefundForSstore(storageStatus))
	return nil
}

func opTLoad(c *context) error {
	top := c.stack.peek()
	key := ember.Key(top.Bytes32())
	value := c.context.GetTransientStorage(c.params.Recipient, key)
	top.SetBytes32(value[:])
	return nil
}

func opTStore(c *context) error {
	if c.params.Static {
		return errStaticContextViolation
	}
	key := ember.Key(c.stack.pop().Bytes32())
	value := ember.Word(c.stack.pop().Bytes32())
	c.context.SetTransientStorage(c.params.Recipient, key, value)
	return nil
}

// ------------------ Control flow ------------------

func opJump(c *context) error {
	destination := c.stack.pop()
	return jumpTo(c, destination)
}

func opJumpi(c *context) error {
	destination := c.stack.pop()
	condition := c.stack.pop()
	if condition.IsZero() {
		return nil
	}
	return jumpTo(c, destination)
}

func jumpTo(c *context, destination *uint256.Int) error {
	if !destination.IsUint64() || destination.Uint64() >= uint64(len(c.code)) {
		return errInvalidJump
	}
	if !c.analysis.isValidJumpDestination(destination.Uint64()) {
		return errInvalidJump
	}
	// The dispatch loop increments the program counter after each
	// instruction, compensate for that.
	c.pc = int(destination.Uint64()) - 1
	return nil
}

func opPc(c *context) error {
	c.stack.pushUndefined().SetUint64(uint64(c.pc))
	return nil
}

func opGas(c *context) error {
	c.stack.pushUndefined().SetUint64(uint64(c.gas.remaining()))
	return nil
}

func opPush(c *context, size int) error {
	var data [32]byte
	copy(data[32-size:], getPushData(c.code, c.pc+1, size))
	c.stack.pushUndefined().SetBytes32(data[:])
	c.pc += size
	return nil
}

// getPushData returns the immediate data of a PUSH instruction. Data reaching
// beyond the end of the code is truncated; the caller pads with zeros on the
// right.
func getPushData(code ember.Code, start, size int) []byte {
	if start >= len(code) {
		return nil
	}
	end := start + size
	if end > len(code) {
		end = len(code)
	}
	return code[start:end]
}

// ------------------ Logging ------------------

func opLog(c *context, numTopics int) error {
	if c.params.Static {
		return errStaticContextViolation
	}
	offset := c.stack.pop()
	size := c.stack.pop()

	topics := make([]ember.Hash, numTopics)
	for i := 0; i < numTopics; i++ {
		topics[i] = ember.Hash(c.stack.pop().Bytes32())
	}

	if err := checkSizeOffsetUint64Overflow(offset, size); err != nil {
		return err
	}
	if err := c.gas.consume(8 * ember.Gas(size.Uint64())); err != nil {
		return err
	}
	data, err := c.memory.getSlice(offset.Uint64(), size.Uint64(), &c.gas)
	if err != nil {
		return err
	}

	c.context.EmitLog(ember.Log{
		Address: c.params.Recipient,
		Topics:  topics,
		Data:    bytes.Clone(data),
	})
	return nil
}

// ------------------ Frame termination ------------------

func opEndWithResult(c *context, endStatus status) error {
	offset := c.stack.pop()
	size := c.stack.pop()
	if err := checkSizeOffsetUint64Overflow(offset, size); err != nil {
		return err
	}
	data, err := c.memory.getSlice(offset.Uint64(), size.Uint64(), &c.gas)
	if err != nil {
		return err
	}
	c.output = bytes.Clone(data)
	c.status = endStatus
	return nil
}

func opSelfDestruct(c *context) error {
	if c.params.Static {
		return errStaticContextViolation
	}
	beneficiary := ember.Address(c.stack.pop().Bytes20())

	if c.context.AccessAccount(beneficiary) == ember.ColdAccess {
		if err := c.gas.consume(ColdAccountAccessCost); err != nil {
			return err
		}
	}
	// Sending funds to a non-existing account pays the account creation
	// costs, mirroring value-bearing calls.
	balance := c.context.GetBalance(c.params.Recipient)
	if !c.context.AccountExists(beneficiary) && !balance.IsZero() {
		if err := c.gas.consume(CreateBySelfdestructGas); err != nil {
			return err
		}
	}
	c.context.SelfDestruct(c.params.Recipient, beneficiary)
	c.status = statusSelfDestructed
	return nil
}

// ------------------ Recursive calls ------------------

func genericCreate(c *context, kind ember.CallKind) error {
	if c.params.Static {
		return errStaticContextViolation
	}
	value := c.stack.pop()
	offset := c.stack.pop()
	size := c.stack.pop()
	var salt *uint256.Int
	if kind == ember.Create2 {
		salt = c.stack.pop()
	}

	if err := checkSizeOffsetUint64Overflow(offset, size); err != nil {
		return err
	}
	if size.Uint64() > maxInitCodeSize {
		return errInitCodeTooLarge
	}

	words := ember.Gas(ember.SizeInWords(size.Uint64()))
	initCodeCost := 2 * words
	if kind == ember.Create2 {
		initCodeCost += 6 * words // hashing costs of the init code
	}
	if err := c.gas.consume(initCodeCost); err != nil {
		return err
	}

	input, err := c.memory.getSlice(offset.Uint64(), size.Uint64(), &c.gas)
	if err != nil {
		return err
	}

	c.returnData = nil

	balance := c.context.GetBalance(c.params.Recipient)
	if balance.ToUint256().Lt(value) {
		c.stack.pushUndefined().Clear()
		return nil
	}

	// All but one 64th of the remaining gas is passed to the nested frame.
	nestedGas := c.gas.remaining() - c.gas.remaining()/64
	if err := c.gas.consume(nestedGas); err != nil {
		return err
	}

	parameters := ember.CallParameters{
		Sender: c.params.Recipient,
		Value:  ember.ValueFromUint256(value),
		Input:  input,
		Gas:    nestedGas,
	}
	if salt != nil {
		parameters.Salt = ember.Hash(salt.Bytes32())
	}

	result, err := c.context.Call(kind, parameters)
	if err != nil {
		return err
	}

	if result.Success {
		c.stack.pushUndefined().SetBytes20(result.CreatedAddress[:])
	} else {
		c.stack.pushUndefined().Clear()
		// Only an explicit revert of the constructor produces return data.
		c.returnData = result.Output
	}
	c.gas.returnGas(result.GasLeft)
	c.gas.addRefund(result.GasRefund)
	return nil
}

func genericCall(c *context, kind ember.CallKind) error {
	requestedGas := c.stack.pop()
	target := c.stack.pop()
	value := uint256.NewInt(0)
	if kind == ember.Call || kind == ember.CallCode {
		value = c.stack.pop()
	}
	inOffset := c.stack.pop()
	inSize := c.stack.pop()
	retOffset := c.stack.pop()
	retSize := c.stack.pop()

	if c.params.Static && kind == ember.Call && !value.IsZero() {
		return errStaticContextViolation
	}

	if err := checkSizeOffsetUint64Overflow(inOffset, inSize); err != nil {
		return err
	}
	if err := checkSizeOffsetUint64Overflow(retOffset, retSize); err != nil {
		return err
	}

	input, err := c.memory.getSlice(inOffset.Uint64(), inSize.Uint64(), &c.gas)
	if err != nil {
		return err
	}
	output, err := c.memory.getSlice(retOffset.Uint64(), retSize.Uint64(), &c.gas)
	if err != nil {
		return err
	}

	toAddress := ember.Address(target.Bytes20())

	if err := c.gas.consume(getAccessCost(c.context.AccessAccount(toAddress))); err != nil {
		return err
	}
	if !value.IsZero() {
		if err := c.gas.consume(CallValueTransferGas); err != nil {
			return err
		}
	}
	if kind == ember.Call && !value.IsZero() && !c.context.AccountExists(toAddress) {
		if err := c.gas.consume(CallNewAccountGas); err != nil {
			return err
		}
	}

	nestedGas := callGas(c.gas.remaining(), requestedGas)
	if err := c.gas.consume(nestedGas); err != nil {
		return err
	}
	// Value-bearing calls grant the callee a gas stipend beyond the gas
	// consumed from this frame.
	if !value.IsZero() {
		nestedGas += CallStipend
	}

	c.returnData = nil

	if !value.IsZero() {
		balance := c.context.GetBalance(c.params.Recipient)
		if balance.ToUint256().Lt(value) {
			c.gas.returnGas(nestedGas)
			c.stack.pushUndefined().Clear()
			return nil
		}
	}

	parameters := ember.CallParameters{
		Input: input,
		Gas:   nestedGas,
		Value: ember.ValueFromUint256(value),
	}
	switch kind {
	case ember.Call, ember.StaticCall:
		parameters.Sender = c.params.Recipient
		parameters.Recipient = toAddress
	case ember.CallCode:
		parameters.Sender = c.params.Recipient
		parameters.Recipient = c.params.Recipient
		parameters.CodeAddress = toAddress
	case ember.DelegateCall:
		parameters.Sender = c.params.Sender
		parameters.Recipient = c.params.Recipient
		parameters.CodeAddress = toAddress
		parameters.Value = c.params.Value
	}

	// In a static context every plain call is implicitly static.
	if c.params.Static && kind == ember.Call {
		kind = ember.StaticCall
	}

	result, err := c.context.Call(kind, parameters)
	if err != nil {
		return err
	}

	copy(output, result.Output)
	if result.Success {
		c.stack.pushUndefined().SetOne()
	} else {
		c.stack.pushUndefined().Clear()
	}
	c.gas.returnGas(result.GasLeft)
	c.gas.addRefund(result.GasRefund)
	c.returnData = result.Output
	return nil
}
