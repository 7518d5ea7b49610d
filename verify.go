package mxprobe

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/optimode/mxprobe/internal/breaker"
	"github.com/optimode/mxprobe/internal/dnscache"
	"github.com/optimode/mxprobe/internal/parse"
	"github.com/optimode/mxprobe/probe"
	"github.com/optimode/mxprobe/resolve"
	"github.com/optimode/mxprobe/types"
)

// VerifyAddress verifies one address. It always returns a verdict. The only
// error besides configuration errors is ErrSMTPUnavailable (and the context
// error when ctx ends first), returned together with a risky verdict.
func (v *Verifier) VerifyAddress(ctx context.Context, email string) (Verdict, error) {
	if err := v.ready(); err != nil {
		return Verdict{Email: email}, err
	}
	return v.verify(ctx, email, dnscache.New(v.lookupMX))
}

// attempt is one step of the ordered search: either an endpoint that was
// probed, or an MX host whose addresses could not be resolved.
type attempt struct {
	host       resolve.MXHost
	endpoint   resolve.Endpoint
	result     probe.Result
	err        error // probe unavailability
	resolveErr error
}

func (v *Verifier) verify(ctx context.Context, email string, cache *dnscache.Cache) (Verdict, error) {
	vd, err := v.decide(ctx, email, cache)
	v.metrics.ObserveVerdict(vd.Status)
	return vd, err
}

func (v *Verifier) decide(ctx context.Context, email string, cache *dnscache.Cache) (Verdict, error) {
	parsed := parse.NewEmail(email)
	if err := v.syntax.Check(parsed); err != nil {
		return Verdict{
			Email:      email,
			Status:     types.StatusInvalid,
			Confidence: ConfidenceInvalid,
			Message:    err.Error(),
			Source:     types.SourceSyntax,
		}, nil
	}

	base := Verdict{Email: email}
	if v.domain != nil {
		rep := v.domain.Check(parsed)
		base.Disposable, base.Role, base.Suggestion = rep.Disposable, rep.Role, rep.Suggestion
		if rep.Disposable {
			base.Status = types.StatusRisky
			base.Confidence = ConfidenceDisposable
			base.Message = "disposable email domain"
			base.Source = types.SourceDomain
			return base, nil
		}
	}

	hosts, err := cache.Hosts(ctx, parsed.Domain)
	if err != nil {
		vd := risky(base, ConfidenceUnresolved, types.SourceDNS, err.Error())
		if ctx.Err() != nil {
			return vd, ctx.Err()
		}
		return vd, nil
	}

	log := v.log.With(zap.String("email", email))
	var (
		probes, unavailable, indeterminate int
		lastUnavailable                    error
		lastIndeterminate                  attempt
	)
	for a := range v.attempts(ctx, parsed.Address(), hosts) {
		switch {
		case a.resolveErr != nil:
			log.Debug("mx host has no addresses", zap.String("host", a.host.Host), zap.Error(a.resolveErr))
		case a.err != nil:
			probes++
			unavailable++
			lastUnavailable = a.err
		case a.result.Outcome == probe.Accepted:
			return v.accepted(ctx, base, parsed, a), nil
		case a.result.Outcome == probe.Rejected:
			base.Status = types.StatusInvalid
			base.Confidence = ConfidenceInvalid
			base.Message = a.result.Reason
			base.Source = types.SourceSMTP
			base.MXHost = a.host.Host
			base.SMTPCode = a.result.Code
			return base, nil
		default:
			probes++
			indeterminate++
			lastIndeterminate = a
		}
	}

	switch {
	case ctx.Err() != nil:
		return risky(base, ConfidenceUnavailable, types.SourceSMTP, "verification interrupted"), ctx.Err()
	case indeterminate > 0:
		vd := risky(base, ConfidenceIndeterminate, types.SourceSMTP,
			"mail exchangers gave no decisive answer: "+lastIndeterminate.result.Reason)
		vd.MXHost = lastIndeterminate.host.Host
		vd.SMTPCode = lastIndeterminate.result.Code
		return vd, nil
	case unavailable > 0:
		log.Warn("all mail exchangers unavailable", zap.Int("attempts", probes), zap.Error(lastUnavailable))
		vd := risky(base, ConfidenceUnavailable, types.SourceSMTP, "no mail exchanger reachable")
		return vd, fmt.Errorf("%w for %s: %w", ErrSMTPUnavailable, email, lastUnavailable)
	default:
		log.Warn("no mail exchanger address resolved", zap.Int("hosts", len(hosts)))
		return risky(base, ConfidenceUnresolved, types.SourceDNS, "no mail exchanger address resolved"), nil
	}
}

// attempts yields the endpoints of hosts in probe order, probing each one as
// it is reached. Hosts come in preference order, endpoints IPv4 first. An
// address shared by several hosts is probed once. Iteration stops when the
// consumer stops or ctx ends.
func (v *Verifier) attempts(ctx context.Context, email string, hosts []resolve.MXHost) iter.Seq[attempt] {
	return func(yield func(attempt) bool) {
		seen := make(map[netip.Addr]struct{})
		for _, host := range hosts {
			if ctx.Err() != nil {
				return
			}
			eps, err := v.resolver.ResolveEndpoints(ctx, host)
			if err != nil {
				if !yield(attempt{host: host, resolveErr: err}) {
					return
				}
				continue
			}
			for _, ep := range eps {
				if ctx.Err() != nil {
					return
				}
				if _, dup := seen[ep.Addr]; dup {
					continue
				}
				seen[ep.Addr] = struct{}{}

				res, err := v.probe(ctx, email, ep)
				if !yield(attempt{host: host, endpoint: ep, result: res, err: err}) {
					return
				}
			}
		}
	}
}

// accepted builds the valid verdict, running the catch-all probe if enabled.
func (v *Verifier) accepted(ctx context.Context, base Verdict, parsed parse.Email, a attempt) Verdict {
	base.Status = types.StatusValid
	base.Confidence = ConfidenceAccepted
	base.Message = a.result.Reason
	base.Source = types.SourceSMTP
	base.MXHost = a.host.Host
	base.SMTPCode = a.result.Code
	if a.result.Greylisted {
		base.Greylisted = true
		base.Confidence = ConfidenceGreylisted
		return base
	}
	if !v.smtp.CatchAll {
		return base
	}

	random := "mxprobe-" + uuid.NewString() + "@" + parsed.Domain
	res, err := v.probe(ctx, random, a.endpoint)
	if err == nil && res.Outcome == probe.Accepted {
		base.CatchAll = true
		base.Confidence = ConfidenceCatchAll
		base.Message = "domain accepts any address"
	}
	return base
}

// probe runs one probe through the breaker and records metrics.
func (v *Verifier) probe(ctx context.Context, email string, ep resolve.Endpoint) (probe.Result, error) {
	start := time.Now()
	var res probe.Result
	run := func() error {
		var err error
		res, err = v.prober.Probe(ctx, email, ep)
		return err
	}

	var err error
	if v.breakers != nil {
		err = v.breakers.Do(ep.String(), run)
		if errors.Is(err, breaker.ErrOpen) {
			err = probe.Unavailable(ep.String(), probe.CauseCircuitOpen, err)
		}
	} else {
		err = run()
	}

	outcome := res.Outcome.String()
	if err != nil {
		outcome = "unavailable"
	}
	v.metrics.ObserveProbe(outcome, time.Since(start))
	return res, err
}

func (v *Verifier) lookupMX(ctx context.Context, domain string) ([]resolve.MXHost, error) {
	hosts, err := v.resolver.ResolveMxHosts(ctx, domain)
	v.metrics.ObserveMXLookup(err == nil)
	if err != nil {
		v.log.Warn("mx lookup failed", zap.String("domain", domain), zap.Error(err))
	}
	return hosts, err
}

func risky(base Verdict, confidence int, source types.Source, msg string) Verdict {
	base.Status = types.StatusRisky
	base.Confidence = confidence
	base.Source = source
	base.Message = msg
	return base
}
