package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
)

const (
	DefaultServiceType = "_peerdrop-relay._tcp"
	DefaultDomain      = "local"

	// TXT record keys.
	TxtDescription = "desc"
	TxtProtocol    = "proto"

	// ProtocolVersion is the relay envelope version a relay announces.
	ProtocolVersion = "1"
)

var ErrNoRelay = errors.New("no relay found on the local network")

// ServiceInfo describes one announced relay.
type ServiceInfo struct {
	Name   string // instance name
	Type   string // service type, e.g. "_peerdrop-relay._tcp"
	Domain string // domain, e.g. "local"
	Addr   net.IP
	Port   int
	Text   map[string]string
}

// URL is the http base address clients hand to api.Dial.
func (s ServiceInfo) URL() string {
	return "http://" + net.JoinHostPort(s.Addr.String(), strconv.Itoa(s.Port))
}

// Compatible reports whether the relay speaks our envelope version. Relays
// that announce no version are assumed compatible.
func (s ServiceInfo) Compatible() bool {
	v, ok := s.Text[TxtProtocol]
	return !ok || v == ProtocolVersion
}

// DiscoveryResult carries either a snapshot of the currently visible
// services or a browse error.
type DiscoveryResult struct {
	Services []ServiceInfo
	Error    error
}

type Adapter interface {
	Announce(ctx context.Context, service ServiceInfo) error
	Discover(ctx context.Context, service string) <-chan DiscoveryResult
}

// RelayService returns the announcement for a relay listening on port.
func RelayService(name string, port int) ServiceInfo {
	return ServiceInfo{
		Name:   name,
		Type:   DefaultServiceType,
		Domain: DefaultDomain,
		Port:   port,
	}
}

// FindRelay browses until the first relay shows up or ctx expires.
func FindRelay(ctx context.Context, a Adapter) (ServiceInfo, error) {
	query := fmt.Sprintf("%s.%s.", DefaultServiceType, DefaultDomain)
	for result := range a.Discover(ctx, query) {
		if result.Error != nil {
			return ServiceInfo{}, result.Error
		}
		for _, s := range result.Services {
			if s.Addr == nil {
				continue
			}
			if !s.Compatible() {
				slog.Warn("Skipping relay with another protocol version", "name", s.Name, "proto", s.Text[TxtProtocol])
				continue
			}
			return s, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return ServiceInfo{}, fmt.Errorf("%w: %v", ErrNoRelay, err)
	}
	return ServiceInfo{}, ErrNoRelay
}
