// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/holdfast/lib/config"
	"github.com/bureau-foundation/holdfast/lib/service"
)

// EnvAdminSocket overrides the default admin socket path.
const EnvAdminSocket = "HOLDFAST_ADMIN_SOCKET"

// AdminConnection is embedded in the params of commands that talk to a
// running authority's admin socket.
type AdminConnection struct {
	SocketPath string
}

// AddFlags registers --admin-socket. The default comes from
// HOLDFAST_ADMIN_SOCKET, then the config file named by HOLDFAST_CONFIG,
// then the built-in default.
func (a *AdminConnection) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&a.SocketPath, "admin-socket", defaultAdminSocket(), "authority admin socket path")
}

func defaultAdminSocket() string {
	if path := os.Getenv(EnvAdminSocket); path != "" {
		return path
	}
	if os.Getenv(config.EnvConfig) != "" {
		if cfg, err := config.Load(); err == nil {
			return cfg.Authority.AdminSocket
		}
	}
	return config.DefaultAdminSocket()
}

// Call invokes action and decodes the response into result. Failures
// come back as categorized ToolErrors.
func (a *AdminConnection) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	client := service.NewClient(a.SocketPath)
	err := client.Call(ctx, action, fields, result)
	if err == nil {
		return nil
	}
	return diagnoseAdminError(err, a.SocketPath)
}

func diagnoseAdminError(err error, socketPath string) *ToolError {
	var serviceErr *service.ServiceError
	switch {
	case errors.Is(err, service.ErrUnavailable):
		return Transient("no authority listening on %s", socketPath).
			WithHint("Is holdfast-authority running? Pass --admin-socket or set " + EnvAdminSocket +
				" if it uses a different admin socket.")
	case errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM):
		return Validation("permission denied accessing %s", socketPath).
			WithHint("The admin socket is private to the user running the authority. " +
				"Run this command as that user.")
	case errors.As(err, &serviceErr):
		if strings.Contains(serviceErr.Message, "not found") {
			return &ToolError{Category: CategoryNotFound, Err: err}
		}
		return &ToolError{Category: CategoryValidation, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &ToolError{Category: CategoryTransient, Err: err}
	default:
		return &ToolError{Category: CategoryInternal, Err: err}
	}
}
