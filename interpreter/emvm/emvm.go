// Copyright (c) 2024 Ember Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at emberlabs.dev/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package emvm implements a stack-based byte-code interpreter. Code is
// executed directly from its canonical byte representation; the jump
// destination analysis required for control-flow validation is cached
// across runs, keyed by code hash.
package emvm

import (
	"fmt"

	"github.com/ember-vm/ember"
)

func init() {
	err := ember.RegisterInterpreterFactory(
		"emvm",
		func(config any) (ember.Interpreter, error) {
			if config == nil {
				config = Config{}
			}
			c, ok := config.(Config)
			if !ok {
				return nil, fmt.Errorf("unexpected configuration type, got %T, wanted emvm.Config", config)
			}
			return NewInterpreter(c)
		},
	)
	if err != nil {
		panic(fmt.Sprintf("failed to register emvm interpreter: %v", err))
	}
}

// Config provides a set of user-definable options for the interpreter.
type Config struct {
	// AnalysisCacheCapacity is the maximum number of code analyses retained
	// in the interpreter's cache. If zero, a default capacity is used.
	AnalysisCacheCapacity int
}

const defaultAnalysisCacheCapacity = 1 << 14

type emvm struct {
	analyzer *analyzer
}

// NewInterpreter creates an interpreter instance with the given configuration.
func NewInterpreter(config Config) (ember.Interpreter, error) {
	capacity := config.AnalysisCacheCapacity
	if capacity <= 0 {
		capacity = defaultAnalysisCacheCapacity
	}
	return &emvm{analyzer: newAnalyzer(capacity)}, nil
}

func (e *emvm) Run(params ember.Parameters) (ember.Result, error) {
	ctxt := context{
		params:   params,
		context:  params.Context,
		code:     params.Code,
		analysis: e.analyzer.analyze(params.Code, params.CodeHash),
		gas:      newGasMeter(params.Gas),
		stack:    NewStack(),
		memory:   NewMemory(),
	}
	defer ReturnStack(ctxt.stack)

	return run(&ctxt)
}
