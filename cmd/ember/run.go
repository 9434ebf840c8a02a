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
	"fmt"
	"time"

	"github.com/dsnet/golib/unitconv"
	"github.com/ember-vm/ember"
	"github.com/ember-vm/ember/chain"
	"github.com/ember-vm/ember/state"
	"github.com/urfave/cli/v2"

	_ "github.com/ember-vm/ember/interpreter/emvm"
	_ "github.com/ember-vm/ember/processor/furnace"
)

var RunCmd = cli.Command{
	Action:    doRun,
	Name:      "run",
	Usage:     "Import the blocks of a scenario file and report the receipts",
	ArgsUsage: "<scenario.json>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "interpreter",
			Usage: "name of the interpreter implementation to use",
			Value: "emvm",
		},
		&cli.StringFlag{
			Name:  "processor",
			Usage: "name of the processor implementation to use",
			Value: "furnace",
		},
	},
}

func doRun(context *cli.Context) error {
	if context.Args().Len() != 1 {
		return fmt.Errorf("expected a single scenario file as argument")
	}

	scenario, err := loadScenario(context.Args().Get(0))
	if err != nil {
		return err
	}

	interpreter, err := ember.NewInterpreter(context.String("interpreter"))
	if err != nil {
		return err
	}
	processorName := context.String("processor")
	processor := ember.NewProcessor(processorName, interpreter)
	if processor == nil {
		return fmt.Errorf("processor not found: %s", processorName)
	}

	worldState := state.NewState(scenario.initialState())
	importer := chain.NewImporter(processor, worldState)

	totalGas := ember.Gas(0)
	start := time.Now()
	for _, blockDescription := range scenario.Blocks {
		block := blockDescription.toBlock()
		receipts, err := importer.ImportBlock(block)
		if err != nil {
			return fmt.Errorf("failed to import block %d: %w", block.Header.Number, err)
		}

		fmt.Fprintf(context.App.Writer, "block %d: %d transaction(s)\n",
			block.Header.Number, len(receipts))
		for index, receipt := range receipts {
			printReceipt(context, index, receipt)
		}
		if len(receipts) > 0 {
			totalGas += receipts[len(receipts)-1].CumulativeGasUsed
		}
	}
	elapsed := time.Since(start)

	rate := float64(totalGas) / elapsed.Seconds()
	fmt.Fprintf(context.App.Writer, "imported %d block(s) in %v, ~%sgas/s\n",
		len(scenario.Blocks), elapsed.Round(time.Microsecond),
		unitconv.FormatPrefix(rate, unitconv.SI, 0))
	return nil
}

func printReceipt(context *cli.Context, index int, receipt chain.Receipt) {
	status := "ok"
	if !receipt.Success {
		status = "failed"
	}
	fmt.Fprintf(context.App.Writer, "  tx %d: %s, gas used %d, %d log(s)\n",
		index, status, receipt.GasUsed, len(receipt.Logs))
	if receipt.ContractAddress != nil {
		fmt.Fprintf(context.App.Writer, "  tx %d: created contract %v\n",
			index, *receipt.ContractAddress)
	}
}
