// Package dnscache memoizes MX host lookups for the lifetime of one batch.
// Concurrent lookups for the same domain are deduplicated: only one query is
// performed and every waiter receives its result. Failures are remembered
// like successes, so a broken domain is looked up at most once per batch.
package dnscache

import (
	"context"
	"errors"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/optimode/mxprobe/resolve"
)

// LookupFunc resolves the ordered MX hosts of a domain.
type LookupFunc func(ctx context.Context, domain string) ([]resolve.MXHost, error)

// Cache is a thread-safe, insert-once domain to MX hosts map.
// The zero value is not usable; create one with New.
type Cache struct {
	lookup LookupFunc
	group  singleflight.Group

	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	hosts []resolve.MXHost
	err   error
}

// New creates an empty cache backed by lookup.
func New(lookup LookupFunc) *Cache {
	return &Cache{
		lookup:  lookup,
		entries: make(map[string]entry),
	}
}

// Hosts returns the MX hosts of domain, performing the lookup only if no
// earlier caller did. The returned slice is a private copy.
func (c *Cache) Hosts(ctx context.Context, domain string) ([]resolve.MXHost, error) {
	if e, ok := c.get(domain); ok {
		return slices.Clone(e.hosts), e.err
	}

	v, _, _ := c.group.Do(domain, func() (any, error) {
		// Another flight may have finished between get and Do.
		if e, ok := c.get(domain); ok {
			return e, nil
		}
		hosts, err := c.lookup(ctx, domain)
		e := entry{hosts: hosts, err: err}
		if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			// This caller gave up; it says nothing about the domain.
			return e, nil
		}
		c.mu.Lock()
		c.entries[domain] = e
		c.mu.Unlock()
		return e, nil
	})
	e := v.(entry)
	return slices.Clone(e.hosts), e.err
}

// Len returns the number of domains with a stored result.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) get(domain string) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[domain]
	return e, ok
}
