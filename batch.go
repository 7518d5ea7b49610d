package mxprobe

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/optimode/mxprobe/candidate"
	"github.com/optimode/mxprobe/internal/dnscache"
)

// VerifyMany verifies emails and returns one verdict per input, in input
// order. Every domain is resolved at most once per call. Unavailability of
// the mail network does not abort the batch: those addresses get the risky
// low-confidence verdict instead. The returned error is non-nil only for
// configuration errors or when ctx ends.
func (v *Verifier) VerifyMany(ctx context.Context, emails []string, opts ...ConcurrencyOptions) ([]Verdict, error) {
	if err := v.ready(); err != nil {
		return nil, err
	}
	return v.verifyMany(ctx, emails, workers(opts), dnscache.New(v.lookupMX))
}

// FindForPerson generates candidate addresses for a person at domain and
// verifies all of them in one batch. When last is empty, name is split on
// whitespace into a first and a last name.
func (v *Verifier) FindForPerson(ctx context.Context, name, last, domain string, opts ...ConcurrencyOptions) ([]Verdict, error) {
	if err := v.ready(); err != nil {
		return nil, err
	}
	first := name
	if last == "" {
		first, last = candidate.SplitFullName(name)
	}
	emails := candidate.Generate(first, last, domain)
	v.log.Debug("generated candidates",
		zap.String("first", first),
		zap.String("last", last),
		zap.String("domain", domain),
		zap.Int("count", len(emails)))
	return v.verifyMany(ctx, emails, workers(opts), dnscache.New(v.lookupMX))
}

func (v *Verifier) verifyMany(ctx context.Context, emails []string, workers int, cache *dnscache.Cache) ([]Verdict, error) {
	out := make([]Verdict, len(emails))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, email := range emails {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			vd, err := v.verify(gctx, email, cache)
			if errors.Is(err, ErrSMTPUnavailable) {
				v.log.Warn("downgrading unavailable address", zap.String("email", email), zap.Error(err))
				err = nil
			}
			out[i] = vd
			if err != nil {
				return fmt.Errorf("verifying %q: %w", email, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return out, err
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}
