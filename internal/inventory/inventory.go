// Package inventory resolves a node's IP address to the datacenter and
// hostname used to enrich a topology.Node before DC-aware planning.
package inventory

import (
	"fmt"
	"net"
)

// Inventory maps an IP address to its datacenter and hostname. A failing
// or missing lookup is not necessarily fatal: callers decide whether to
// downgrade to simple mode for the unknown node or abort.
type Inventory interface {
	Lookup(ip string) (dc, hostname string, err error)
}

// Simple is the host-as-group inventory: every node is its own
// datacenter, so group-by-datacenter and group-by-host coincide. It never
// fails a lookup.
type Simple struct{}

// Lookup returns ip as both the datacenter and hostname.
func (Simple) Lookup(ip string) (dc, hostname string, err error) {
	return ip, ip, nil
}

// Entry is one static mapping record.
type Entry struct {
	Datacenter string
	Hostname   string
}

// Static is a DC-aware inventory backed by a caller-supplied map, loaded
// from the same config surface as credentials (a "[datacenters]" INI
// section - see internal/config). Unmapped IPs fall back to Simple's
// behaviour: downgrading to simple mode for the unknown node, rather than
// failing the lookup outright.
type Static struct {
	entries map[string]Entry
	onMiss  func(ip string)
}

// NewStatic builds a Static inventory from entries keyed by IP. onMiss, if
// non-nil, is called once per unmapped IP (the CLI wires this to a warning
// log).
func NewStatic(entries map[string]Entry, onMiss func(ip string)) *Static {
	return &Static{entries: entries, onMiss: onMiss}
}

// Lookup returns the mapped datacenter/hostname for ip, or falls back to
// treating ip as its own datacenter and hostname when unmapped. An entry
// that names a datacenter but no hostname is completed via reverse DNS.
func (s *Static) Lookup(ip string) (dc, hostname string, err error) {
	if e, ok := s.entries[ip]; ok {
		if e.Hostname != "" {
			return e.Datacenter, e.Hostname, nil
		}
		if name, err := reverseDNS(ip); err == nil {
			return e.Datacenter, name, nil
		}
		return e.Datacenter, ip, nil
	}
	if s.onMiss != nil {
		s.onMiss(ip)
	}
	return ip, ip, nil
}

// reverseDNS populates Hostname from the network when a Static entry
// names only a datacenter.
func reverseDNS(ip string) (string, error) {
	names, err := net.LookupAddr(ip)
	if err != nil || len(names) == 0 {
		return "", fmt.Errorf("inventory: no reverse DNS record for %s", ip)
	}
	return names[0], nil
}
