package aopswiki

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"aopskey/lib/pagestore"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

type CacheOptions struct {
	// Store enables persistence across runs; nil keeps the cache purely
	// in-memory.
	Store *pagestore.Store
	// MaxAge is the staleness threshold for persisted entries; older ones
	// are treated as absent so wiki edits eventually surface. Defaults to
	// 24h.
	MaxAge time.Duration
}

// Cache memoizes fetch results by logical address for the duration of a
// run. Entries are write-once and immutable; "not found" outcomes are
// cached too. Concurrent fetches of the same address collapse into a
// single underlying call.
type Cache struct {
	inner PageFetcher
	group singleflight.Group

	mu    sync.RWMutex
	pages map[string]cacheEntry

	store  *pagestore.Store
	maxAge time.Duration
}

type cacheEntry struct {
	page Page
	err  error
}

func NewCache(inner PageFetcher, opts CacheOptions) *Cache {
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = time.Hour * 24
	}
	return &Cache{
		inner:  inner,
		pages:  map[string]cacheEntry{},
		store:  opts.Store,
		maxAge: maxAge,
	}
}

func (c *Cache) Fetch(ctx context.Context, addr Address) (Page, error) {
	ctx, span := tracer.Start(ctx, "cache:Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("address", addr.Key()))

	key := addr.Key()
	if entry, ok := c.lookup(key); ok {
		span.SetStatus(codes.Ok, "CACHE HIT")
		return entry.page, entry.err
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		if entry, ok := c.lookup(key); ok {
			return entry, nil
		}
		if entry, ok := c.lookupStore(ctx, addr); ok {
			c.remember(key, entry)
			return entry, nil
		}

		page, err := c.inner.Fetch(ctx, addr)
		entry := cacheEntry{page: page, err: err}
		if err == nil || errors.Is(err, ErrNotFound) {
			c.remember(key, entry)
			c.persist(ctx, addr, entry)
		}
		return entry, nil
	})

	entry := v.(cacheEntry)
	if entry.err != nil {
		span.RecordError(entry.err)
	}
	return entry.page, entry.err
}

func (c *Cache) lookup(key string) (cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.pages[key]
	return entry, ok
}

// remember is write-once: a re-fetch never mutates an existing entry.
func (c *Cache) remember(key string, entry cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pages[key]; ok {
		return
	}
	c.pages[key] = entry
}

func (c *Cache) lookupStore(ctx context.Context, addr Address) (cacheEntry, bool) {
	if c.store == nil {
		return cacheEntry{}, false
	}

	stored, err := c.store.Get(ctx, addr.Key())
	if err == pagestore.ErrNotCached {
		return cacheEntry{}, false
	}
	if err != nil {
		slog.WarnContext(ctx, "page store read failed", "address", addr.Key(), "err", err)
		return cacheEntry{}, false
	}
	if time.Since(stored.FetchedAt) > c.maxAge {
		return cacheEntry{}, false
	}

	if stored.Outcome == pagestore.OutcomeNotFound {
		return cacheEntry{
			err: &FetchError{Address: addr, Kind: ErrNotFound},
		}, true
	}
	return cacheEntry{
		page: Page{Address: addr, Body: stored.Body, FetchedAt: stored.FetchedAt},
	}, true
}

func (c *Cache) persist(ctx context.Context, addr Address, entry cacheEntry) {
	if c.store == nil {
		return
	}

	stored := pagestore.Entry{
		Key:       addr.Key(),
		Outcome:   pagestore.OutcomeOk,
		Body:      entry.page.Body,
		FetchedAt: entry.page.FetchedAt,
	}
	if entry.err != nil {
		stored.Outcome = pagestore.OutcomeNotFound
		stored.Body = nil
		stored.FetchedAt = time.Now()
	}

	err := c.store.Put(ctx, stored)
	if err != nil {
		slog.WarnContext(ctx, "page store write failed", "address", addr.Key(), "err", err)
	}
}
