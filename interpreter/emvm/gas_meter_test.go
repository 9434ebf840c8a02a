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
	"errors"
	"testing"

	"github.com/ember-vm/ember"
)

func TestGasMeter_ConsumeReducesRemainingGas(t *testing.T) {
	meter := newGasMeter(100)
	if err := meter.consume(30); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := ember.Gas(70), meter.remaining(); want != got {
		t.Errorf("unexpected remaining gas, wanted %d, got %d", want, got)
	}
}

func TestGasMeter_ConsumingMoreThanRemainingDrainsTheMeter(t *testing.T) {
	meter := newGasMeter(100)
	if err := meter.consume(101); !errors.Is(err, errOutOfGas) {
		t.Fatalf("expected out-of-gas error, got %v", err)
	}
	if want, got := ember.Gas(0), meter.remaining(); want != got {
		t.Errorf("unexpected remaining gas, wanted %d, got %d", want, got)
	}
	// once drained, every further consumption fails
	if err := meter.consume(0); !errors.Is(err, errOutOfGas) {
		t.Errorf("expected out-of-gas error, got %v", err)
	}
}

func TestGasMeter_NegativeAmountsDrainTheMeter(t *testing.T) {
	meter := newGasMeter(100)
	if err := meter.consume(-1); !errors.Is(err, errOutOfGas) {
		t.Fatalf("expected out-of-gas error, got %v", err)
	}
	if want, got := ember.Gas(0), meter.remaining(); want != got {
		t.Errorf("unexpected remaining gas, wanted %d, got %d", want, got)
	}
}

func TestGasMeter_ReturnGasCreditsUnconsumedGas(t *testing.T) {
	meter := newGasMeter(100)
	if err := meter.consume(50); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	meter.returnGas(20)
	if want, got := ember.Gas(70), meter.remaining(); want != got {
		t.Errorf("unexpected remaining gas, wanted %d, got %d", want, got)
	}
}

func TestGasMeter_RefundCounterMayGoNegative(t *testing.T) {
	meter := newGasMeter(100)
	meter.addRefund(4800)
	meter.addRefund(-4800)
	meter.addRefund(-2000)
	if want, got := ember.Gas(-2000), meter.refund; want != got {
		t.Errorf("unexpected refund, wanted %d, got %d", want, got)
	}
}
