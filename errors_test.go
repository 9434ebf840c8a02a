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
	"errors"
	"fmt"
	"testing"
)

func TestConstError_Error(t *testing.T) {
	const myError = ConstError("this is a constant error")

	if want, got := "this is a constant error", myError.Error(); want != got {
		t.Errorf("unexpected error message, wanted %q, got %q", want, got)
	}

	if !errors.Is(myError, ConstError("this is a constant error")) {
		t.Errorf("errors with equal message should be identical")
	}
}

func TestConstError_CanBeWrappedAndUnwrapped(t *testing.T) {
	const myError = ConstError("base issue")
	wrapped := fmt.Errorf("higher level issue: %w", myError)

	if !errors.Is(wrapped, myError) {
		t.Errorf("wrapped error should match the base error")
	}
}
