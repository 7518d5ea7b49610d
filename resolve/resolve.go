// Package resolve finds the mail exchangers of a domain and the numeric
// endpoints of each exchanger, in the order they must be probed.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNoMXRecords is returned when a domain has no usable MX records,
	// including when the lookup itself fails.
	ErrNoMXRecords = errors.New("resolve: no MX records")

	// ErrNoAddresses is returned when an MX host resolves to nothing.
	ErrNoAddresses = errors.New("resolve: no addresses")
)

// Backend performs the raw DNS queries. *net.Resolver satisfies it.
type Backend interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// MXHost is one mail exchanger of a domain.
type MXHost struct {
	Host string
	Pref uint16
}

// Family is the address family of an Endpoint.
type Family int

const (
	IPv4 Family = 4
	IPv6 Family = 6
)

func (f Family) String() string {
	if f == IPv6 {
		return "ipv6"
	}
	return "ipv4"
}

// Endpoint is an MX host resolved to one concrete address.
type Endpoint struct {
	Host string
	Pref uint16
	Addr netip.Addr
}

// Family reports whether the endpoint is IPv4 or IPv6.
func (e Endpoint) Family() Family {
	if e.Addr.Is4() {
		return IPv4
	}
	return IPv6
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s[%s]", e.Host, e.Addr)
}

// Config is the resolver configuration.
type Config struct {
	// Timeout bounds every individual lookup. Default: 5s
	Timeout time.Duration
	Logger  *zap.Logger
}

// Resolver orders MX hosts by preference and endpoints by family.
type Resolver struct {
	cfg     Config
	backend Backend
}

// New creates a Resolver backed by the system resolver.
func New(cfg Config) *Resolver {
	return NewWithBackend(cfg, net.DefaultResolver)
}

// NewWithBackend creates a Resolver with a custom backend, e.g. a DNSClient
// or a test fake.
func NewWithBackend(cfg Config, b Backend) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Resolver{cfg: cfg, backend: b}
}

// ResolveMxHosts returns the MX hosts of domain, lowest preference first.
// Hosts with equal preference keep the order the backend returned them in.
// The returned slice is never empty when err is nil.
func (r *Resolver) ResolveMxHosts(ctx context.Context, domain string) ([]MXHost, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	records, err := r.backend.LookupMX(ctx, domain)
	if err != nil {
		// net.Resolver returns the valid records alongside some errors; a
		// failed lookup is still treated as no MX.
		return nil, fmt.Errorf("%w for %s: %w", ErrNoMXRecords, domain, err)
	}

	hosts := make([]MXHost, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		host := strings.ToLower(strings.TrimSuffix(rec.Host, "."))
		if host == "" {
			// RFC 7505 null MX: the domain accepts no mail.
			continue
		}
		hosts = append(hosts, MXHost{Host: host, Pref: rec.Pref})
	}
	if len(hosts) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoMXRecords, domain)
	}

	slices.SortStableFunc(hosts, func(a, b MXHost) int {
		return int(a.Pref) - int(b.Pref)
	})

	r.cfg.Logger.Debug("resolved MX hosts",
		zap.String("domain", domain),
		zap.Int("count", len(hosts)),
		zap.String("primary", hosts[0].Host))
	return hosts, nil
}

// ResolveEndpoints resolves host to its addresses, IPv4 before IPv6, keeping
// discovery order within each family. An IP-literal host resolves to itself.
func (r *Resolver) ResolveEndpoints(ctx context.Context, host MXHost) ([]Endpoint, error) {
	if addr, err := netip.ParseAddr(host.Host); err == nil {
		return []Endpoint{{Host: host.Host, Pref: host.Pref, Addr: addr.Unmap()}}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	ips, err := r.backend.LookupIPAddr(ctx, host.Host)
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %w", ErrNoAddresses, host.Host, err)
	}

	var v4, v6 []Endpoint
	seen := make(map[netip.Addr]struct{}, len(ips))
	for _, ip := range ips {
		addr, ok := netip.AddrFromSlice(ip.IP)
		if !ok {
			continue
		}
		addr = addr.Unmap()
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}

		ep := Endpoint{Host: host.Host, Pref: host.Pref, Addr: addr}
		if addr.Is4() {
			v4 = append(v4, ep)
		} else {
			v6 = append(v6, ep)
		}
	}
	if len(v4)+len(v6) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoAddresses, host.Host)
	}
	return append(v4, v6...), nil
}
