// Copyright (c) 2024 Ember Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at emberlabs.dev/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ember

import (
	"strings"
	"sync"

	"golang.org/x/exp/maps"
)

// NewProcessor performs a lookup for the given name (case-insensitive) in
// the processor registry and creates a new Processor using the given
// interpreter. The result is nil if no processor was registered under the
// given name.
func NewProcessor(name string, interpreter Interpreter) Processor {
	factory := GetProcessorFactory(name)
	if factory == nil {
		return nil
	}
	return factory(interpreter)
}

// GetProcessorFactory performs a lookup for the given name
// (case-insensitive) in the registry. The result is nil if no factory was
// registered under the given name.
func GetProcessorFactory(name string) ProcessorFactory {
	processorRegistryLock.Lock()
	defer processorRegistryLock.Unlock()
	return processorRegistry[strings.ToLower(name)]
}

// GetAllRegisteredProcessorFactories obtains all registered implementations.
func GetAllRegisteredProcessorFactories() map[string]ProcessorFactory {
	processorRegistryLock.Lock()
	defer processorRegistryLock.Unlock()
	return maps.Clone(processorRegistry)
}

// RegisterProcessorFactory registers a new Processor implementation to be
// exported for general use in the binary. The name is not case-sensitive,
// and a panic is triggered if a factory was bound to the same name before,
// or the factory is nil. This function is mainly intended to be used by
// package initialization code.
func RegisterProcessorFactory(name string, factory ProcessorFactory) {
	key := strings.ToLower(name)
	if factory == nil {
		panic("invalid initialization: nil processor factory for `" + key + "`")
	}
	processorRegistryLock.Lock()
	defer processorRegistryLock.Unlock()
	if _, found := processorRegistry[key]; found {
		panic("invalid initialization: multiple processor factories registered for `" + key + "`")
	}
	processorRegistry[key] = factory
}

// ProcessorFactory is the type of a function that creates a new Processor
// instance executing transactions using the given interpreter.
type ProcessorFactory func(interpreter Interpreter) Processor

// processorRegistry is a global registry for Processor factories of
// different implementations.
var processorRegistry = map[string]ProcessorFactory{}
var processorRegistryLock sync.Mutex
