package mxprobe_test

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimode/mxprobe"
	"github.com/optimode/mxprobe/metrics"
	"github.com/optimode/mxprobe/probe"
)

func singleHost(reply rcptFunc) (*fakeDNS, *fakeNet) {
	dns := &fakeDNS{
		mx:  map[string][]*net.MX{"example.com": {mx("mx1.example.com", 10)}},
		ips: map[string][]string{"mx1.example.com": {"192.0.2.1"}},
	}
	n := &fakeNet{peers: map[string]rcptFunc{"192.0.2.1:25": reply}}
	return dns, n
}

func TestVerifyAddress_Accepted(t *testing.T) {
	dns, n := singleHost(always("250 2.1.5 OK"))

	vd, err := newVerifier(dns, n).VerifyAddress(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, mxprobe.StatusValid, vd.Status)
	assert.Equal(t, 95, vd.Confidence)
	assert.Equal(t, "user@example.com", vd.Email)
	assert.Equal(t, "mx1.example.com", vd.MXHost)
	assert.Equal(t, 250, vd.SMTPCode)
	assert.Equal(t, "smtp", vd.Source)
}

func TestVerifyAddress_Rejected(t *testing.T) {
	dns, n := singleHost(always("550 5.1.1 no such user"))

	vd, err := newVerifier(dns, n).VerifyAddress(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Equal(t, mxprobe.StatusInvalid, vd.Status)
	assert.Equal(t, 0, vd.Confidence)
	assert.Equal(t, 550, vd.SMTPCode)
}

func TestVerifyAddress_Greylisted(t *testing.T) {
	dns, n := singleHost(always("450 4.7.1 greylisted"))

	vd, err := newVerifier(dns, n).VerifyAddress(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, mxprobe.StatusValid, vd.Status)
	assert.Equal(t, 80, vd.Confidence)
	assert.True(t, vd.Greylisted)
}

func TestVerifyAddress_FirstDecisiveWins(t *testing.T) {
	dns := &fakeDNS{
		mx: map[string][]*net.MX{"example.com": {
			mx("mx3.example.com", 30),
			mx("mx1.example.com", 10),
			mx("mx2.example.com", 20),
		}},
		ips: map[string][]string{
			"mx1.example.com": {"192.0.2.1"},
			"mx2.example.com": {"192.0.2.2"},
			"mx3.example.com": {"192.0.2.3"},
		},
	}
	n := &fakeNet{peers: map[string]rcptFunc{
		"192.0.2.1:25": always("451 4.3.0 try later"),
		"192.0.2.2:25": always("550 no such user"),
		"192.0.2.3:25": always("250 OK"),
	}}

	vd, err := newVerifier(dns, n).VerifyAddress(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, mxprobe.StatusInvalid, vd.Status)
	assert.Equal(t, 0, vd.Confidence)
	assert.Equal(t, "mx2.example.com", vd.MXHost)
	assert.Equal(t, []string{"192.0.2.1:25", "192.0.2.2:25"}, n.contacted())
	requireNotContacted(t, n, "192.0.2.3:25")
}

func TestVerifyAddress_IPv4BeforeIPv6(t *testing.T) {
	dns := &fakeDNS{
		mx:  map[string][]*net.MX{"example.com": {mx("mx1.example.com", 10)}},
		ips: map[string][]string{"mx1.example.com": {"2001:db8::1", "192.0.2.1"}},
	}
	n := &fakeNet{peers: map[string]rcptFunc{
		"192.0.2.1:25":     always("250 OK"),
		"[2001:db8::1]:25": always("250 OK"),
	}}

	_, err := newVerifier(dns, n).VerifyAddress(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.1:25"}, n.contacted())
}

func TestVerifyAddress_SharedAddressProbedOnce(t *testing.T) {
	dns := &fakeDNS{
		mx: map[string][]*net.MX{"example.com": {
			mx("mx1.example.com", 10),
			mx("mx2.example.com", 20),
		}},
		ips: map[string][]string{
			"mx1.example.com": {"192.0.2.1"},
			"mx2.example.com": {"192.0.2.1"},
		},
	}
	n := &fakeNet{peers: map[string]rcptFunc{"192.0.2.1:25": always("452 too many recipients")}}

	vd, err := newVerifier(dns, n).VerifyAddress(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, mxprobe.StatusRisky, vd.Status)
	assert.Len(t, n.contacted(), 1)
}

func TestVerifyAddress_IndeterminateExhaustion(t *testing.T) {
	dns, n := singleHost(always("421 service not available"))

	vd, err := newVerifier(dns, n).VerifyAddress(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, mxprobe.StatusRisky, vd.Status)
	assert.Equal(t, 50, vd.Confidence)
	assert.Equal(t, 421, vd.SMTPCode)
}

func TestVerifyAddress_UnavailableThenIndeterminate(t *testing.T) {
	dns := &fakeDNS{
		mx: map[string][]*net.MX{"example.com": {
			mx("mx1.example.com", 10),
			mx("mx2.example.com", 20),
		}},
		ips: map[string][]string{
			"mx1.example.com": {"192.0.2.1"},
			"mx2.example.com": {"192.0.2.2"},
		},
	}
	n := &fakeNet{peers: map[string]rcptFunc{"192.0.2.2:25": always("451 later")}}

	vd, err := newVerifier(dns, n).VerifyAddress(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, 50, vd.Confidence)
}

func TestVerifyAddress_AllUnavailable(t *testing.T) {
	dns, _ := singleHost(nil)
	n := &fakeNet{}

	vd, err := newVerifier(dns, n).VerifyAddress(context.Background(), "user@example.com")
	assert.ErrorIs(t, err, mxprobe.ErrSMTPUnavailable)
	assert.ErrorIs(t, err, probe.ErrEndpointUnavailable)
	assert.Equal(t, mxprobe.StatusRisky, vd.Status)
	assert.Equal(t, 30, vd.Confidence)
}

func TestVerifyAddress_NoMX(t *testing.T) {
	dns := &fakeDNS{}
	n := &fakeNet{}

	vd, err := newVerifier(dns, n).VerifyAddress(context.Background(), "user@nowhere.test")
	require.NoError(t, err)
	assert.Equal(t, mxprobe.StatusRisky, vd.Status)
	assert.Equal(t, 30, vd.Confidence)
	assert.Equal(t, "dns", vd.Source)
	assert.Empty(t, n.contacted())
}

func TestVerifyAddress_NullMX(t *testing.T) {
	dns := &fakeDNS{mx: map[string][]*net.MX{"example.com": {{Host: ".", Pref: 0}}}}

	vd, err := newVerifier(dns, &fakeNet{}).VerifyAddress(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, 30, vd.Confidence)
	assert.Equal(t, "dns", vd.Source)
}

func TestVerifyAddress_NoHostAddresses(t *testing.T) {
	dns := &fakeDNS{mx: map[string][]*net.MX{"example.com": {
		mx("mx1.example.com", 10),
		mx("mx2.example.com", 20),
	}}}
	n := &fakeNet{}

	vd, err := newVerifier(dns, n).VerifyAddress(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, mxprobe.StatusRisky, vd.Status)
	assert.Equal(t, 30, vd.Confidence)
	assert.Equal(t, "dns", vd.Source)
	assert.Empty(t, n.contacted())
}

func TestVerifyAddress_InvalidSyntax(t *testing.T) {
	dns := &fakeDNS{}
	for _, email := range []string{"", "no-at-sign", "user@", "user..name@example.com"} {
		vd, err := newVerifier(dns, &fakeNet{}).VerifyAddress(context.Background(), email)
		require.NoError(t, err)
		assert.Equal(t, mxprobe.StatusInvalid, vd.Status, email)
		assert.Equal(t, 0, vd.Confidence)
		assert.Equal(t, "syntax", vd.Source)
	}
	assert.Zero(t, dns.mxCalls.Load())
}

func TestVerifyAddress_IDNDomain(t *testing.T) {
	dns := &fakeDNS{
		mx:  map[string][]*net.MX{"xn--mnchen-3ya.de": {mx("mx.xn--mnchen-3ya.de", 10)}},
		ips: map[string][]string{"mx.xn--mnchen-3ya.de": {"192.0.2.9"}},
	}
	n := &fakeNet{peers: map[string]rcptFunc{"192.0.2.9:25": only("user@xn--mnchen-3ya.de")}}

	vd, err := newVerifier(dns, n).VerifyAddress(context.Background(), "user@münchen.de")
	require.NoError(t, err)
	assert.Equal(t, mxprobe.StatusValid, vd.Status)
	assert.Equal(t, "user@münchen.de", vd.Email)
}

func TestVerifyAddress_Configuration(t *testing.T) {
	_, err := mxprobe.New().VerifyAddress(context.Background(), "user@example.com")
	assert.ErrorIs(t, err, mxprobe.ErrSMTPNotConfigured)

	_, err = mxprobe.New().WithSMTP(mxprobe.SMTPOptions{}).VerifyAddress(context.Background(), "user@example.com")
	assert.ErrorIs(t, err, mxprobe.ErrInvalidSMTPOptions)

	_, err = mxprobe.New().WithSMTP(mxprobe.SMTPOptions{
		HeloDomain: "probe.test",
		MailFrom:   "verify@probe.test",
		Proxy:      "http://proxy:8080",
	}).VerifyMany(context.Background(), []string{"user@example.com"})
	assert.ErrorIs(t, err, mxprobe.ErrInvalidSMTPOptions)
}

func TestVerifyAddress_Disposable(t *testing.T) {
	dns := &fakeDNS{}
	v := newVerifier(dns, &fakeNet{}).WithDomainChecks()

	vd, err := v.VerifyAddress(context.Background(), "admin@mailinator.com")
	require.NoError(t, err)
	assert.Equal(t, mxprobe.StatusRisky, vd.Status)
	assert.Equal(t, 20, vd.Confidence)
	assert.True(t, vd.Disposable)
	assert.True(t, vd.Role)
	assert.Zero(t, dns.mxCalls.Load())
}

func TestVerifyAddress_RoleIsAnnotationOnly(t *testing.T) {
	dns, n := singleHost(always("250 OK"))
	v := newVerifier(dns, n).WithDomainChecks()

	vd, err := v.VerifyAddress(context.Background(), "postmaster@example.com")
	require.NoError(t, err)
	assert.Equal(t, mxprobe.StatusValid, vd.Status)
	assert.True(t, vd.Role)
}

func TestVerifyAddress_CatchAll(t *testing.T) {
	newCatchAll := func(dns *fakeDNS, n *fakeNet) *mxprobe.Verifier {
		return mxprobe.New().
			WithSMTP(mxprobe.SMTPOptions{
				HeloDomain: "probe.test",
				MailFrom:   "verify@probe.test",
				Timeout:    2 * time.Second,
				CatchAll:   true,
			}).
			WithResolverBackend(dns).
			WithDialer(n.dial)
	}

	t.Run("accepts everything", func(t *testing.T) {
		dns, n := singleHost(always("250 OK"))
		vd, err := newCatchAll(dns, n).VerifyAddress(context.Background(), "user@example.com")
		require.NoError(t, err)
		assert.Equal(t, mxprobe.StatusValid, vd.Status)
		assert.True(t, vd.CatchAll)
		assert.Equal(t, 70, vd.Confidence)
		assert.Len(t, n.contacted(), 2)
	})

	t.Run("real mailbox", func(t *testing.T) {
		dns, n := singleHost(only("user@example.com"))
		vd, err := newCatchAll(dns, n).VerifyAddress(context.Background(), "user@example.com")
		require.NoError(t, err)
		assert.False(t, vd.CatchAll)
		assert.Equal(t, 95, vd.Confidence)
	})
}

func TestVerifyAddress_Breaker(t *testing.T) {
	dns, _ := singleHost(nil)
	n := &fakeNet{}
	v := newVerifier(dns, n).WithBreaker(mxprobe.BreakerOptions{Failures: 1, Cooldown: time.Hour})

	_, err := v.VerifyAddress(context.Background(), "a@example.com")
	assert.ErrorIs(t, err, mxprobe.ErrSMTPUnavailable)
	require.Len(t, n.contacted(), 1)

	_, err = v.VerifyAddress(context.Background(), "b@example.com")
	assert.ErrorIs(t, err, mxprobe.ErrSMTPUnavailable)
	var ue *probe.UnavailableError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, probe.CauseCircuitOpen, ue.Cause)
	assert.Len(t, n.contacted(), 1)
}

func TestVerifyAddress_Canceled(t *testing.T) {
	dns, n := singleHost(always("250 OK"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	vd, err := newVerifier(dns, n).VerifyAddress(ctx, "user@example.com")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, mxprobe.StatusRisky, vd.Status)
}

func TestVerifyAddress_Metrics(t *testing.T) {
	dns, n := singleHost(only("user@example.com"))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	v := newVerifier(dns, n).WithMetrics(m)

	_, _ = v.VerifyAddress(context.Background(), "user@example.com")
	_, _ = v.VerifyAddress(context.Background(), "ghost@example.com")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Verdicts.WithLabelValues("valid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Verdicts.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Probes.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Probes.WithLabelValues("rejected")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MXLookups.WithLabelValues("ok")))
}

func TestVerifyAddress_NormalizesDomainCase(t *testing.T) {
	dns, n := singleHost(always("250 OK"))
	vd, err := newVerifier(dns, n).VerifyAddress(context.Background(), "User@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, mxprobe.StatusValid, vd.Status)
	assert.True(t, strings.HasSuffix(vd.Email, "EXAMPLE.com"))
}
