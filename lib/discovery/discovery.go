// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package discovery finds authorities on the local network over mDNS.
// The authority advertises a _holdfast._tcp service whose TXT record
// carries its protocol version; peers browse for it instead of being
// told an address.
package discovery

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"

	"github.com/bureau-foundation/holdfast/lib/version"
)

// ServiceType is the DNS-SD service type.
const ServiceType = "_holdfast._tcp"

// DefaultBrowseTimeout is how long Browse listens when the caller
// passes zero.
const DefaultBrowseTimeout = 2 * time.Second

// Advertiser publishes one authority until Shutdown.
type Advertiser struct {
	server *mdns.Server
}

// Advertise publishes an authority listening on port. An empty
// instance uses the hostname.
func Advertise(instance string, port int) (*Advertiser, error) {
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("advertising authority: invalid port %d", port)
	}
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("advertising authority: hostname: %w", err)
		}
		instance = host
	}
	service, err := mdns.NewMDNSService(instance, ServiceType, "", "", port, nil, txtRecord())
	if err != nil {
		return nil, fmt.Errorf("creating mDNS service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service, Logger: log.New(io.Discard, "", 0)})
	if err != nil {
		return nil, fmt.Errorf("starting mDNS server: %w", err)
	}
	return &Advertiser{server: server}, nil
}

// Shutdown stops answering queries.
func (a *Advertiser) Shutdown() error {
	return a.server.Shutdown()
}

func txtRecord() []string {
	return []string{
		"protocol=" + strconv.Itoa(version.Protocol),
		"version=" + version.Version,
	}
}

// Authority is one discovered authority.
type Authority struct {
	Instance string
	Address  string // host:port
	Protocol int    // zero if the TXT record did not say
}

// Compatible reports whether this build can talk to the authority.
func (a Authority) Compatible() bool {
	return a.Protocol == 0 || version.Compatible(a.Protocol)
}

// Browse listens for authorities until timeout or ctx is done and
// returns what it heard, sorted by instance name.
func Browse(ctx context.Context, timeout time.Duration) ([]Authority, error) {
	if timeout <= 0 {
		timeout = DefaultBrowseTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *mdns.ServiceEntry, 16)
	collected := make(chan []Authority, 1)
	go func() {
		var found []*mdns.ServiceEntry
		for entry := range entries {
			found = append(found, entry)
		}
		collected <- collect(found)
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	params.Logger = log.New(io.Discard, "", 0)
	err := mdns.QueryContext(ctx, params)
	close(entries)
	authorities := <-collected
	if err != nil && ctx.Err() == nil {
		return authorities, fmt.Errorf("browsing for %s: %w", ServiceType, err)
	}
	return authorities, nil
}

// collect turns raw service entries into authorities, dropping entries
// without an address and duplicates of the same address.
func collect(entries []*mdns.ServiceEntry) []Authority {
	seen := make(map[string]bool)
	var authorities []Authority
	for _, entry := range entries {
		if entry == nil || entry.Port == 0 {
			continue
		}
		var ip net.IP
		switch {
		case entry.AddrV4 != nil:
			ip = entry.AddrV4
		case entry.AddrV6 != nil:
			ip = entry.AddrV6
		default:
			continue
		}
		address := net.JoinHostPort(ip.String(), strconv.Itoa(entry.Port))
		if seen[address] {
			continue
		}
		seen[address] = true
		authorities = append(authorities, Authority{
			Instance: instanceName(entry.Name),
			Address:  address,
			Protocol: protocolFromTXT(entry.InfoFields),
		})
	}
	sort.Slice(authorities, func(i, j int) bool {
		if authorities[i].Instance != authorities[j].Instance {
			return authorities[i].Instance < authorities[j].Instance
		}
		return authorities[i].Address < authorities[j].Address
	})
	return authorities
}

// instanceName strips the service and domain suffix from a full
// instance name ("desk._holdfast._tcp.local." becomes "desk").
func instanceName(full string) string {
	if index := strings.Index(full, "."+ServiceType); index >= 0 {
		return full[:index]
	}
	return strings.TrimSuffix(full, ".")
}

func protocolFromTXT(fields []string) int {
	for _, field := range fields {
		value, ok := strings.CutPrefix(field, "protocol=")
		if !ok {
			continue
		}
		protocol, err := strconv.Atoi(value)
		if err != nil {
			return 0
		}
		return protocol
	}
	return 0
}
