// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestBindFlagsTypesAndDefaults(t *testing.T) {
	type params struct {
		JSONOutput
		Peer     string        `flag:"peer,p" desc:"peer id" default:"operator"`
		Distance float64       `flag:"distance" desc:"min point distance" default:"0.01"`
		Points   int           `flag:"points" desc:"point count" default:"16"`
		Timeout  time.Duration `flag:"timeout" desc:"browse timeout" default:"2s"`
		Tags     []string      `flag:"tags" desc:"tags"`
		Ignored  string
	}

	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&p, flagSet); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}
	if err := flagSet.Parse([]string{"--json", "-p", "alice", "--tags", "a,b"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if !p.OutputJSON {
		t.Error("OutputJSON = false, want true")
	}
	if p.Peer != "alice" {
		t.Errorf("Peer = %q, want alice", p.Peer)
	}
	if p.Distance != 0.01 || p.Points != 16 || p.Timeout != 2*time.Second {
		t.Errorf("defaults = %v, %d, %s", p.Distance, p.Points, p.Timeout)
	}
	if len(p.Tags) != 2 {
		t.Errorf("Tags = %v, want [a b]", p.Tags)
	}
	if flagSet.Lookup("ignored") != nil {
		t.Error("untagged field was bound")
	}
}

func TestBindFlagsUsesFlagBinder(t *testing.T) {
	var p struct {
		AdminConnection
	}
	t.Setenv(EnvAdminSocket, "/run/holdfast/test.sock")
	flagSet := FlagsFromParams("test", &p)
	if err := flagSet.Parse(nil); err != nil {
		t.Fatal(err)
	}
	if p.SocketPath != "/run/holdfast/test.sock" {
		t.Errorf("SocketPath = %q, want the environment override", p.SocketPath)
	}
}

func TestBindFlagsErrors(t *testing.T) {
	type unsupported struct {
		Value complex128 `flag:"value"`
	}
	type badDefault struct {
		Count int `flag:"count" default:"many"`
	}

	tests := []struct {
		name   string
		params any
		want   string
	}{
		{"not a pointer", unsupported{}, "pointer to a struct"},
		{"unsupported type", &unsupported{}, "unsupported type"},
		{"bad default", &badDefault{}, "default for --count"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := BindFlags(test.params, pflag.NewFlagSet("test", pflag.ContinueOnError))
			if err == nil || !strings.Contains(err.Error(), test.want) {
				t.Errorf("BindFlags error = %v, want one containing %q", err, test.want)
			}
		})
	}
}

func TestBindFlagsDefaultsShareTheFlagParser(t *testing.T) {
	var p struct {
		ICE     []string      `flag:"ice" desc:"STUN/TURN URL" default:"stun:a.example,stun:b.example"`
		Timeout time.Duration `flag:"timeout" desc:"browse timeout" default:"1500ms"`
	}
	flagSet := FlagsFromParams("test", &p)
	if got := flagSet.Lookup("timeout").DefValue; got != "1.5s" {
		t.Errorf("timeout DefValue = %q, want 1.5s", got)
	}
	if err := flagSet.Parse([]string{"--ice", "turn:relay.example"}); err != nil {
		t.Fatal(err)
	}
	if len(p.ICE) != 1 || p.ICE[0] != "turn:relay.example" {
		t.Errorf("ICE = %v, want the command-line value to replace the default", p.ICE)
	}
	if flagSet.Changed("timeout") {
		t.Error("timeout reported as changed though only the default applied")
	}
	if p.Timeout != 1500*time.Millisecond {
		t.Errorf("Timeout = %s, want 1.5s", p.Timeout)
	}
}
