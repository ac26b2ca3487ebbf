package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/brutella/dnssd"
)

// MDNSAdapter announces and browses relays with multicast DNS.
type MDNSAdapter struct{}

var _ Adapter = (*MDNSAdapter)(nil)

// Announce answers mDNS queries for relay until ctx is cancelled.
func (m *MDNSAdapter) Announce(ctx context.Context, relay ServiceInfo) error {
	text := map[string]string{
		TxtDescription: "peerdrop signaling relay",
		TxtProtocol:    ProtocolVersion,
	}
	for k, v := range relay.Text {
		text[k] = v
	}

	service, err := dnssd.NewService(dnssd.Config{
		Name:   relay.Name,
		Type:   relay.Type,
		Domain: relay.Domain,
		Text:   text,
		Port:   relay.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to create mDNS service: %w", err)
	}
	responder, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("failed to create mDNS responder: %w", err)
	}
	if _, err := responder.Add(service); err != nil {
		return fmt.Errorf("failed to add mDNS service: %w", err)
	}

	slog.Info("Announcing relay", "name", relay.Name, "type", relay.Type, "port", relay.Port)
	err = responder.Respond(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mDNS responder stopped: %w", err)
	}
	slog.Info("Stopped relay announcement", "name", relay.Name)
	return nil
}

// relaySet is the browse state shared by the dnssd callbacks.
type relaySet struct {
	mu      sync.Mutex
	entries map[string]ServiceInfo
}

func entryKey(e dnssd.BrowseEntry) string {
	return e.Name + "." + e.Type + "." + e.Domain
}

// preferredIP picks an IPv4 address when the entry has one.
func preferredIP(ips []net.IP) net.IP {
	for _, ip := range ips {
		if ip.To4() != nil {
			return ip
		}
	}
	return ips[0]
}

func (r *relaySet) add(e dnssd.BrowseEntry) bool {
	if len(e.IPs) == 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entryKey(e)] = ServiceInfo{
		Name:   e.Name,
		Type:   e.Type,
		Domain: e.Domain,
		Addr:   preferredIP(e.IPs),
		Port:   e.Port,
		Text:   e.Text,
	}
	return true
}

func (r *relaySet) remove(e dnssd.BrowseEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, entryKey(e))
}

func (r *relaySet) snapshot() []ServiceInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ServiceInfo, 0, len(r.entries))
	for _, s := range r.entries {
		out = append(out, s)
	}
	return out
}

// Discover browses for service and emits the full set of visible relays
// whenever it changes. Snapshots are dropped if the reader falls behind. The
// channel is closed when ctx ends.
func (m *MDNSAdapter) Discover(ctx context.Context, service string) <-chan DiscoveryResult {
	out := make(chan DiscoveryResult, 10)
	set := &relaySet{entries: make(map[string]ServiceInfo)}

	emit := func(r DiscoveryResult) {
		select {
		case out <- r:
		default:
		}
	}
	onAdd := func(e dnssd.BrowseEntry) {
		if set.add(e) {
			emit(DiscoveryResult{Services: set.snapshot()})
		}
	}
	onRemove := func(e dnssd.BrowseEntry) {
		set.remove(e)
		emit(DiscoveryResult{Services: set.snapshot()})
	}

	go func() {
		defer close(out)
		err := dnssd.LookupType(ctx, service, onAdd, onRemove)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			emit(DiscoveryResult{Error: fmt.Errorf("mDNS lookup failed: %w", err)})
		}
	}()
	return out
}
