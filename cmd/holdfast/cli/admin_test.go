// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/holdfast/lib/service"
	"github.com/bureau-foundation/holdfast/lib/testutil"
)

func TestAdminCallWithoutAuthority(t *testing.T) {
	admin := AdminConnection{SocketPath: filepath.Join(t.TempDir(), "missing.sock")}
	err := admin.Call(context.Background(), "status", nil, nil)

	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("err = %v, want *ToolError", err)
	}
	if toolErr.Category != CategoryTransient {
		t.Errorf("category = %s, want transient", toolErr.Category)
	}
	if toolErr.Hint == "" {
		t.Error("no hint for a missing authority")
	}
	if !errors.Is(err, service.ErrUnavailable) {
		t.Error("ToolError does not wrap ErrUnavailable")
	}
}

func TestAdminCallCategorizesServiceErrors(t *testing.T) {
	socketPath := filepath.Join(testutil.SocketDir(t), "admin.sock")
	server := service.NewSocketServer(socketPath, slog.New(slog.NewTextHandler(io.Discard, nil)))
	server.Handle("force-release", func(ctx context.Context, call *service.Request) (any, error) {
		return nil, errors.New("object not found: ghost")
	})
	server.Handle("status", func(ctx context.Context, call *service.Request) (any, error) {
		return nil, errors.New("missing required field: object")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	defer func() {
		cancel()
		testutil.RequireReceive(t, done, 5*time.Second, "server did not stop")
	}()
	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "server not ready")

	admin := AdminConnection{SocketPath: socketPath}
	tests := []struct {
		action string
		want   ErrorCategory
	}{
		{"force-release", CategoryNotFound},
		{"status", CategoryValidation},
	}
	for _, test := range tests {
		err := admin.Call(context.Background(), test.action, nil, nil)
		var toolErr *ToolError
		if !errors.As(err, &toolErr) {
			t.Fatalf("%s: err = %v, want *ToolError", test.action, err)
		}
		if toolErr.Category != test.want {
			t.Errorf("%s: category = %s, want %s", test.action, toolErr.Category, test.want)
		}
	}
}
