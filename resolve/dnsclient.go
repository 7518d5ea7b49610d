package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// DNSClient is a Backend that queries a fixed list of nameservers directly
// instead of going through the system resolver.
type DNSClient struct {
	client  *dns.Client
	servers []string
}

// NewDNSClient creates a DNSClient. Servers without a port get ":53".
func NewDNSClient(servers []string, timeout time.Duration) *DNSClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	normalized := make([]string, 0, len(servers))
	for _, s := range servers {
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(s, "53")
		}
		normalized = append(normalized, s)
	}
	return &DNSClient{
		client:  &dns.Client{Timeout: timeout},
		servers: normalized,
	}
}

// LookupMX queries MX records for name.
func (c *DNSClient) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	resp, err := c.exchange(ctx, name, dns.TypeMX)
	if err != nil {
		return nil, err
	}
	var out []*net.MX
	for _, rr := range resp.Answer {
		if mx, ok := rr.(*dns.MX); ok {
			out = append(out, &net.MX{Host: mx.Mx, Pref: mx.Preference})
		}
	}
	return out, nil
}

// LookupIPAddr queries A then AAAA records for host. Either family may be
// missing; an error is returned only when both queries fail.
func (c *DNSClient) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	var out []net.IPAddr
	var errs []error
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		resp, err := c.exchange(ctx, host, qtype)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, rr := range resp.Answer {
			switch rec := rr.(type) {
			case *dns.A:
				out = append(out, net.IPAddr{IP: rec.A})
			case *dns.AAAA:
				out = append(out, net.IPAddr{IP: rec.AAAA})
			}
		}
	}
	if len(errs) == 2 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// exchange sends the question to each server in turn until one answers.
func (c *DNSClient) exchange(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	if len(c.servers) == 0 {
		return nil, errors.New("resolve: no nameservers configured")
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range c.servers {
		resp, _, err := c.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = fmt.Errorf("query %s %s via %s: %w", dns.TypeToString[qtype], name, server, err)
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}
		switch resp.Rcode {
		case dns.RcodeSuccess:
			return resp, nil
		case dns.RcodeNameError:
			return nil, &net.DNSError{Err: "no such host", Name: name, Server: server, IsNotFound: true}
		default:
			lastErr = &net.DNSError{Err: dns.RcodeToString[resp.Rcode], Name: name, Server: server}
		}
	}
	return nil, lastErr
}
