package mxprobe

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/optimode/mxprobe/check"
	"github.com/optimode/mxprobe/internal/breaker"
	"github.com/optimode/mxprobe/metrics"
	"github.com/optimode/mxprobe/probe"
	"github.com/optimode/mxprobe/resolve"
)

// Verifier is the main fluent builder struct.
// Instantiate with the New() function and configure it before the first
// Verify call; a configured Verifier is safe for concurrent use.
type Verifier struct {
	err error // configuration error, returned on every Verify call

	smtp      SMTPOptions
	smtpSet   bool
	dns       DNSOptions
	backend   resolve.Backend
	dial      probe.DialFunc
	log       *zap.Logger
	metrics   *metrics.Collector
	breakerOn bool
	breakOpts BreakerOptions

	syntax *check.SyntaxChecker
	domain *check.DomainChecker

	once     sync.Once
	resolver *resolve.Resolver
	prober   *probe.Prober
	breakers *breaker.Set
}

// New creates a new Verifier. WithSMTP must be called before verifying.
// Syntax checking always runs and cannot be disabled, because a valid
// address is a prerequisite for everything else.
func New() *Verifier {
	return &Verifier{
		dns:    defaultDNSOptions(),
		log:    zap.NewNop(),
		syntax: check.NewSyntaxChecker(),
	}
}

// WithSMTP configures the SMTP probe. SMTPOptions.HeloDomain and MailFrom
// are required.
func (v *Verifier) WithSMTP(opts SMTPOptions) *Verifier {
	if err := opts.validate(); err != nil {
		v.setErr(err)
		return v
	}
	opts = opts.withDefaults()
	d, err := opts.dialer()
	if err != nil {
		v.setErr(err)
		return v
	}
	if d != nil && v.dial == nil {
		v.dial = d
	}
	v.smtp = opts
	v.smtpSet = true
	return v
}

// WithDNS overrides the default DNSOptions. With Servers set, lookups go
// straight to those nameservers.
func (v *Verifier) WithDNS(opts ...DNSOptions) *Verifier {
	o := defaultDNSOptions()
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultDNSOptions().Timeout
	}
	v.dns = o
	if len(o.Servers) > 0 && v.backend == nil {
		v.backend = resolve.NewDNSClient(o.Servers, o.Timeout)
	}
	return v
}

// WithDomainChecks adds the disposable-domain, role-account and typo checks.
func (v *Verifier) WithDomainChecks(opts ...DomainOptions) *Verifier {
	o := defaultDomainOptions()
	if len(opts) > 0 {
		o = opts[0]
	}
	v.domain = check.NewDomainChecker(check.DomainConfig{
		CheckDisposable: o.CheckDisposable,
		CheckRole:       o.CheckRole,
		CheckTypos:      o.CheckTypos,
		TypoThreshold:   o.TypoThreshold,
	})
	return v
}

// WithBreaker skips endpoints that were repeatedly unavailable, across
// calls on this Verifier, for a cooldown period.
func (v *Verifier) WithBreaker(opts ...BreakerOptions) *Verifier {
	o := defaultBreakerOptions()
	if len(opts) > 0 {
		o = opts[0]
	}
	v.breakerOn = true
	v.breakOpts = o
	return v
}

// WithLogger sets the logger. Default: zap.NewNop()
func (v *Verifier) WithLogger(l *zap.Logger) *Verifier {
	if l != nil {
		v.log = l
	}
	return v
}

// WithMetrics records probe and verdict metrics on c.
func (v *Verifier) WithMetrics(c *metrics.Collector) *Verifier {
	v.metrics = c
	return v
}

// WithResolverBackend replaces the DNS backend, e.g. with a resolve.DNSClient
// or a fake in tests.
func (v *Verifier) WithResolverBackend(b resolve.Backend) *Verifier {
	v.backend = b
	return v
}

// WithDialer replaces the connection dialer. It takes precedence over
// SMTPOptions.Proxy.
func (v *Verifier) WithDialer(d probe.DialFunc) *Verifier {
	v.dial = d
	return v
}

func (v *Verifier) setErr(err error) {
	if v.err == nil {
		v.err = err
	}
}

// ready finishes construction on first use.
func (v *Verifier) ready() error {
	if v.err != nil {
		return v.err
	}
	if !v.smtpSet {
		return ErrSMTPNotConfigured
	}
	v.once.Do(func() {
		rcfg := resolve.Config{Timeout: v.dns.Timeout, Logger: v.log.Named("resolve")}
		if v.backend != nil {
			v.resolver = resolve.NewWithBackend(rcfg, v.backend)
		} else {
			v.resolver = resolve.New(rcfg)
		}
		v.prober = probe.New(probe.Config{
			HeloDomain: v.smtp.HeloDomain,
			MailFrom:   v.smtp.MailFrom,
			Port:       v.smtp.Port,
			Timeout:    v.smtp.Timeout,
			Dial:       v.dial,
			Logger:     v.log.Named("probe"),
		})
		if v.breakerOn {
			v.breakers = breaker.New(breaker.Config{
				Failures: v.breakOpts.Failures,
				Cooldown: v.breakOpts.Cooldown,
				IsFailure: func(err error) bool {
					var ue *probe.UnavailableError
					return errors.As(err, &ue) && ue.Cause != probe.CauseCanceled
				},
				Logger: v.log.Named("breaker"),
			})
		}
	})
	return nil
}
