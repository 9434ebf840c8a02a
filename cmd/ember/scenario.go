// Copyright (c) 2024 Ember Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at emberlabs.dev/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ember-vm/ember"
	"github.com/ember-vm/ember/chain"
	"github.com/ember-vm/ember/state"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// scenario is the on-disk input format of the run command: an initial world
// state and a sequence of blocks to be imported on top of it. Addresses,
// keys, and words are fixed-length 0x-prefixed hex strings, amounts are
// decimal numbers.
type scenario struct {
	State  map[ember.Address]scenarioAccount `json:"state"`
	Blocks []scenarioBlock                   `json:"blocks"`
}

type scenarioAccount struct {
	Balance uint64                   `json:"balance"`
	Nonce   uint64                   `json:"nonce"`
	Code    hexutil.Bytes            `json:"code,omitempty"`
	Storage map[ember.Key]ember.Word `json:"storage,omitempty"`
}

type scenarioBlock struct {
	Number       int64                 `json:"number"`
	Timestamp    int64                 `json:"timestamp"`
	Coinbase     ember.Address         `json:"coinbase"`
	GasLimit     int64                 `json:"gasLimit"`
	PrevRandao   ember.Hash            `json:"prevRandao"`
	BaseFee      uint64                `json:"baseFee"`
	ParentHash   ember.Hash            `json:"parentHash"`
	Transactions []scenarioTransaction `json:"transactions"`
	Withdrawals  []scenarioWithdrawal  `json:"withdrawals,omitempty"`
}

type scenarioTransaction struct {
	Sender    ember.Address  `json:"sender"`
	Recipient *ember.Address `json:"recipient"` // nil for contract creation
	Nonce     uint64         `json:"nonce"`
	Input     hexutil.Bytes  `json:"input,omitempty"`
	Value     uint64         `json:"value"`
	GasLimit  int64          `json:"gasLimit"`
	GasPrice  uint64         `json:"gasPrice"`
}

type scenarioWithdrawal struct {
	Index          uint64        `json:"index"`
	ValidatorIndex uint64        `json:"validatorIndex"`
	Recipient      ember.Address `json:"recipient"`
	Amount         uint64        `json:"amount"`
}

// loadScenario reads and parses a scenario file.
func loadScenario(path string) (scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return scenario{}, fmt.Errorf("failed to read scenario: %w", err)
	}
	var result scenario
	if err := json.Unmarshal(data, &result); err != nil {
		return scenario{}, fmt.Errorf("failed to parse scenario: %w", err)
	}
	return result, nil
}

// initialState converts the scenario's pre-state into state accounts.
func (s *scenario) initialState() map[ember.Address]state.Account {
	accounts := map[ember.Address]state.Account{}
	for address, account := range s.State {
		accounts[address] = state.Account{
			Balance: ember.NewValue(account.Balance),
			Nonce:   account.Nonce,
			Code:    ember.Code(account.Code),
			Storage: account.Storage,
		}
	}
	return accounts
}

func (b *scenarioBlock) toBlock() chain.Block {
	transactions := make([]ember.Transaction, 0, len(b.Transactions))
	for _, transaction := range b.Transactions {
		transactions = append(transactions, ember.Transaction{
			Sender:    transaction.Sender,
			Recipient: transaction.Recipient,
			Nonce:     transaction.Nonce,
			Input:     ember.Data(transaction.Input),
			Value:     ember.NewValue(transaction.Value),
			GasLimit:  ember.Gas(transaction.GasLimit),
			GasPrice:  ember.NewValue(transaction.GasPrice),
		})
	}
	withdrawals := make([]chain.Withdrawal, 0, len(b.Withdrawals))
	for _, withdrawal := range b.Withdrawals {
		withdrawals = append(withdrawals, chain.Withdrawal{
			Index:          withdrawal.Index,
			ValidatorIndex: withdrawal.ValidatorIndex,
			Recipient:      withdrawal.Recipient,
			Amount:         withdrawal.Amount,
		})
	}
	return chain.Block{
		Header: chain.BlockHeader{
			ParentHash: b.ParentHash,
			Number:     b.Number,
			Timestamp:  b.Timestamp,
			Coinbase:   b.Coinbase,
			GasLimit:   ember.Gas(b.GasLimit),
			PrevRandao: b.PrevRandao,
			BaseFee:    ember.NewValue(b.BaseFee),
		},
		Transactions: transactions,
		Withdrawals:  withdrawals,
	}
}
