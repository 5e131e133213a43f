package importer

import (
	"context"
	"sync"

	domain "github.com/mohammadpnp/school-import/internal/domain/school"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

type postalEntry struct {
	addr  domain.PostalAddress
	found bool
}

// postalCache memoizes lookups for a single Enrich call. Concurrent requests
// for the same code share one outbound call. Lookup failures are not cached.
type postalCache struct {
	lookup domain.PostalLookup
	logger *logrus.Entry

	mu      sync.Mutex
	entries map[string]postalEntry
	group   singleflight.Group
}

func newPostalCache(lookup domain.PostalLookup, logger *logrus.Entry) *postalCache {
	return &postalCache{
		lookup:  lookup,
		logger:  logger,
		entries: make(map[string]postalEntry),
	}
}

func (c *postalCache) get(ctx context.Context, code string) (domain.PostalAddress, bool) {
	m := getMetrics()

	c.mu.Lock()
	entry, ok := c.entries[code]
	c.mu.Unlock()
	if ok {
		m.postalLookupsTotal.WithLabelValues("hit").Inc()
		return entry.addr, entry.found
	}

	v, err, _ := c.group.Do(code, func() (any, error) {
		c.mu.Lock()
		cached, ok := c.entries[code]
		c.mu.Unlock()
		if ok {
			return cached, nil
		}

		addr, found, err := c.lookup.Lookup(ctx, code)
		if err != nil {
			return postalEntry{}, err
		}
		e := postalEntry{addr: addr, found: found}
		c.mu.Lock()
		c.entries[code] = e
		c.mu.Unlock()
		return e, nil
	})
	if err != nil {
		m.postalLookupsTotal.WithLabelValues("error").Inc()
		c.logger.WithError(err).WithField("postal_code", code).Warn("postal lookup failed")
		return domain.PostalAddress{}, false
	}

	entry = v.(postalEntry)
	if entry.found {
		m.postalLookupsTotal.WithLabelValues("found").Inc()
	} else {
		m.postalLookupsTotal.WithLabelValues("not_found").Inc()
	}
	return entry.addr, entry.found
}
