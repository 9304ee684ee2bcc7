// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"net"
	"strconv"
	"testing"

	"github.com/hashicorp/mdns"

	"github.com/bureau-foundation/holdfast/lib/version"
)

func TestCollect(t *testing.T) {
	entries := []*mdns.ServiceEntry{
		{Name: "zeta._holdfast._tcp.local.", AddrV4: net.IPv4(10, 0, 0, 2), Port: 7400, InfoFields: []string{"protocol=1"}},
		{Name: "alpha._holdfast._tcp.local.", AddrV4: net.IPv4(10, 0, 0, 1), Port: 7400, InfoFields: []string{"version=dev", "protocol=1"}},
		// Same authority heard twice.
		{Name: "alpha._holdfast._tcp.local.", AddrV4: net.IPv4(10, 0, 0, 1), Port: 7400},
		// No address yet.
		{Name: "beta._holdfast._tcp.local.", Port: 7400},
		// No port.
		{Name: "gamma._holdfast._tcp.local.", AddrV4: net.IPv4(10, 0, 0, 3)},
		nil,
	}
	got := collect(entries)
	if len(got) != 2 {
		t.Fatalf("collect returned %d authorities, want 2: %+v", len(got), got)
	}
	if got[0].Instance != "alpha" || got[0].Address != "10.0.0.1:7400" || got[0].Protocol != 1 {
		t.Errorf("first = %+v, want alpha at 10.0.0.1:7400 protocol 1", got[0])
	}
	if got[1].Instance != "zeta" {
		t.Errorf("second instance = %q, want zeta", got[1].Instance)
	}
}

func TestProtocolFromTXT(t *testing.T) {
	tests := []struct {
		fields []string
		want   int
	}{
		{nil, 0},
		{[]string{"protocol=3"}, 3},
		{[]string{"version=x", "protocol=2"}, 2},
		{[]string{"protocol=abc"}, 0},
	}
	for _, test := range tests {
		if got := protocolFromTXT(test.fields); got != test.want {
			t.Errorf("protocolFromTXT(%q) = %d, want %d", test.fields, got, test.want)
		}
	}
}

func TestTXTRecordAdvertisesProtocol(t *testing.T) {
	if got := protocolFromTXT(txtRecord()); got != version.Protocol {
		t.Errorf("advertised protocol = %d, want %d", got, version.Protocol)
	}
}

func TestAuthorityCompatible(t *testing.T) {
	if !(Authority{}).Compatible() {
		t.Error("authority without protocol should be treated as compatible")
	}
	if !(Authority{Protocol: version.Protocol}).Compatible() {
		t.Error("same protocol reported incompatible")
	}
	if (Authority{Protocol: version.Protocol + 1}).Compatible() {
		t.Error("newer protocol reported compatible")
	}
}

func TestAdvertiseRejectsBadPort(t *testing.T) {
	for _, port := range []int{0, -1, 70000} {
		if _, err := Advertise("desk", port); err == nil {
			t.Errorf("Advertise accepted port %s", strconv.Itoa(port))
		}
	}
}
