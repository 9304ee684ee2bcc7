// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestInfoNamesProtocol(t *testing.T) {
	if !strings.Contains(Info(), "protocol 1") {
		t.Errorf("Info() = %q, missing protocol revision", Info())
	}
	if !strings.HasPrefix(Full(), Info()) {
		t.Errorf("Full() does not start with Info()")
	}
}

func TestCompatible(t *testing.T) {
	if !Compatible(Protocol) {
		t.Error("own protocol revision reported incompatible")
	}
	if Compatible(Protocol + 1) {
		t.Error("future protocol revision reported compatible")
	}
}
