package mxprobe_test

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/optimode/mxprobe"
)

// fakeDNS is a resolve.Backend with fixed answers.
type fakeDNS struct {
	mx      map[string][]*net.MX
	ips     map[string][]string
	mxCalls atomic.Int64
}

func (f *fakeDNS) LookupMX(_ context.Context, name string) ([]*net.MX, error) {
	f.mxCalls.Add(1)
	recs, ok := f.mx[name]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
	}
	return recs, nil
}

func (f *fakeDNS) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	ss, ok := f.ips[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	out := make([]net.IPAddr, len(ss))
	for i, s := range ss {
		out[i] = net.IPAddr{IP: net.ParseIP(s)}
	}
	return out, nil
}

// rcptFunc answers RCPT TO for one recipient with a raw reply.
type rcptFunc func(rcpt string) string

func always(reply string) rcptFunc {
	return func(string) string { return reply }
}

// only accepts the given mailboxes and rejects the rest with 550.
func only(mailboxes ...string) rcptFunc {
	return func(rcpt string) string {
		for _, m := range mailboxes {
			if strings.EqualFold(rcpt, m) {
				return "250 OK"
			}
		}
		return "550 5.1.1 no such user"
	}
}

// fakeNet routes dials by "ip:port" to scripted SMTP peers on net.Pipe.
// Addresses without a peer refuse the connection.
type fakeNet struct {
	peers map[string]rcptFunc

	mu     sync.Mutex
	dialed []string
}

func (n *fakeNet) dial(_ context.Context, _, address string) (net.Conn, error) {
	n.mu.Lock()
	n.dialed = append(n.dialed, address)
	n.mu.Unlock()

	rcpt, ok := n.peers[address]
	if !ok {
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	}
	client, server := net.Pipe()
	go servePeer(server, rcpt)
	return client, nil
}

func (n *fakeNet) contacted() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.dialed...)
}

func servePeer(conn net.Conn, rcpt rcptFunc) {
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	if _, err := fmt.Fprint(conn, "220 mx.test ESMTP\r\n"); err != nil {
		return
	}
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimRight(line, "\r\n")
		var resp string
		switch {
		case strings.HasPrefix(cmd, "EHLO"):
			resp = "250-mx.test\r\n250 PIPELINING"
		case strings.HasPrefix(cmd, "MAIL FROM"):
			resp = "250 OK"
		case strings.HasPrefix(cmd, "RCPT TO:<"):
			resp = rcpt(strings.TrimSuffix(strings.TrimPrefix(cmd, "RCPT TO:<"), ">"))
		case strings.HasPrefix(cmd, "QUIT"):
			return
		default:
			resp = "502 not implemented"
		}
		if _, err := fmt.Fprintf(conn, "%s\r\n", resp); err != nil {
			return
		}
	}
}

func newVerifier(dns *fakeDNS, n *fakeNet) *mxprobe.Verifier {
	return mxprobe.New().
		WithSMTP(mxprobe.SMTPOptions{
			HeloDomain: "probe.test",
			MailFrom:   "verify@probe.test",
			Timeout:    2 * time.Second,
		}).
		WithResolverBackend(dns).
		WithDialer(n.dial)
}

func mx(host string, pref uint16) *net.MX {
	return &net.MX{Host: host + ".", Pref: pref}
}

func requireNotContacted(t *testing.T, n *fakeNet, address string) {
	t.Helper()
	for _, a := range n.contacted() {
		if a == address {
			t.Fatalf("%s must not be contacted, dialed %v", address, n.contacted())
		}
	}
}
