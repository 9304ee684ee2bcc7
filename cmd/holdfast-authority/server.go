// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/bureau-foundation/holdfast/lib/authority"
	"github.com/bureau-foundation/holdfast/lib/config"
	"github.com/bureau-foundation/holdfast/lib/discovery"
	"github.com/bureau-foundation/holdfast/lib/service"
	"github.com/bureau-foundation/holdfast/lib/snapshot"
	"github.com/bureau-foundation/holdfast/transport"
)

// server owns the authority and everything that feeds it.
type server struct {
	cfg       *config.Config
	logger    *slog.Logger
	authority *authority.Authority
	admin     *service.SocketServer

	listeners []namedListener
	tcp       *transport.TCPListener
}

type namedListener struct {
	name     string
	listener transport.Listener
}

// newServer builds the authority, seeds the world and binds every
// configured listener. Nothing is served until run.
func newServer(cfg *config.Config, logger *slog.Logger) (*server, error) {
	compression, err := snapshot.ParseCompression(cfg.Authority.SnapshotCompression)
	if err != nil {
		return nil, err
	}
	secret, err := cfg.Authority.JoinSecret()
	if err != nil {
		return nil, err
	}

	a, err := authority.New(authority.Options{
		Logger:      logger,
		RateLimit:   cfg.Authority.RateLimit,
		RateBurst:   cfg.Authority.RateBurst,
		OutboxSize:  cfg.Authority.OutboxSize,
		Compression: compression,
		JoinSecret:  secret,
		MaxPoints:   cfg.Authority.MaxPoints,
	})
	if err != nil {
		return nil, err
	}
	if err := a.Seed(cfg.World); err != nil {
		return nil, fmt.Errorf("seeding world: %w", err)
	}

	s := &server{
		cfg:       cfg,
		logger:    logger,
		authority: a,
		admin:     service.NewSocketServer(cfg.Authority.AdminSocket, logger),
	}
	a.RegisterAdmin(s.admin)

	if address := cfg.Authority.ListenTCP; address != "" {
		listener, err := transport.NewTCPListener(address)
		if err != nil {
			s.close()
			return nil, err
		}
		s.tcp = listener
		s.listeners = append(s.listeners, namedListener{"tcp", listener})
	}
	if address := cfg.Authority.ListenWebSocket; address != "" {
		listener, err := transport.NewWebSocketListener(address)
		if err != nil {
			s.close()
			return nil, err
		}
		s.listeners = append(s.listeners, namedListener{"websocket", listener})
	}
	if address := cfg.Authority.ListenWebRTC; address != "" {
		ice := transport.ICEConfigFromURLs(cfg.Authority.ICEServers, "", "")
		listener, err := transport.NewWebRTCListener(address, ice, logger)
		if err != nil {
			s.close()
			return nil, err
		}
		s.listeners = append(s.listeners, namedListener{"webrtc", listener})
	}
	return s, nil
}

// close releases listeners bound by a newServer that failed part way.
func (s *server) close() {
	for _, named := range s.listeners {
		named.listener.Close()
	}
}

// run serves until ctx is cancelled or any component fails. The first
// failure stops the rest; all errors are returned joined.
func (s *server) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	start := func(name string, serve func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := serve(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
				cancel()
			}
		}()
	}

	start("authority", s.authority.Run)
	start("admin socket", s.admin.Serve)
	for _, named := range s.listeners {
		listener := named.listener
		start(named.name, func(ctx context.Context) error {
			return listener.Serve(ctx, s.authority.Handle)
		})
		s.logger.Info("listening", "transport", named.name, "address", listener.Address())
	}

	if advertiser := s.advertise(); advertiser != nil {
		defer func() {
			if err := advertiser.Shutdown(); err != nil {
				s.logger.Warn("stopping mDNS advertisement", "error", err)
			}
		}()
	}

	s.logger.Info("authority running", "environment", s.cfg.Environment, "admin_socket", s.cfg.Authority.AdminSocket)
	<-ctx.Done()
	s.logger.Info("shutting down")
	wg.Wait()
	return errors.Join(errs...)
}

// advertise publishes the TCP listener over mDNS when configured. A
// failure is logged and the authority keeps running unadvertised.
func (s *server) advertise() *discovery.Advertiser {
	if !s.cfg.Authority.Advertise || s.tcp == nil {
		return nil
	}
	_, portText, err := net.SplitHostPort(s.tcp.Address())
	if err != nil {
		s.logger.Warn("not advertising", "error", err)
		return nil
	}
	port, err := strconv.Atoi(portText)
	if err != nil {
		s.logger.Warn("not advertising", "error", err)
		return nil
	}
	advertiser, err := discovery.Advertise(s.cfg.Authority.Instance, port)
	if err != nil {
		s.logger.Warn("not advertising", "error", err)
		return nil
	}
	s.logger.Info("advertising over mDNS", "service", discovery.ServiceType, "port", port)
	return advertiser
}
