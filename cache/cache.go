package cache

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"starboard-bot/metrics"
	"starboard-bot/models"
)

// Store is the part of the persistent store the cache reads through.
type Store interface {
	FindByID(ctx context.Context, id int64) (*models.CuratedMessage, error)
	FindBySourceMessage(ctx context.Context, sourceMessageID string) (*models.CuratedMessage, error)
	FindByPostedMessage(ctx context.Context, postedMessageID string) (*models.CuratedMessage, error)
	UpdateStarCount(ctx context.Context, id int64, count int) error
}

type entry struct {
	rec     *models.CuratedMessage
	touched atomic.Int64
}

func newEntry(rec *models.CuratedMessage, now time.Time) *entry {
	e := &entry{rec: rec}
	e.touched.Store(now.UnixNano())
	return e
}

// Cache is the in-memory working set of recently touched curated messages.
// Entries are immutable snapshots replaced wholesale on every write.
type Cache struct {
	store    Store
	metrics  *metrics.Metrics
	byID     *ShardedMap[*entry]
	bySource *ShardedMap[int64]
	byPosted *ShardedMap[int64]

	// invalidations counts status-affecting writes. A read-through fill that
	// started before a write must not install the row it read.
	invalidations atomic.Uint64
	now           func() time.Time
}

// New creates a cache backed by store. m may be nil.
func New(store Store, m *metrics.Metrics) *Cache {
	return &Cache{
		store:    store,
		metrics:  m,
		byID:     NewShardedMap[*entry](DefaultShards),
		bySource: NewShardedMap[int64](DefaultShards),
		byPosted: NewShardedMap[int64](DefaultShards),
		now:      time.Now,
	}
}

func idKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Get resolves a curated message by its source message id or by the id of its
// queue/highlight post. Denied records are never returned.
func (c *Cache) Get(ctx context.Context, messageID string) (*models.CuratedMessage, error) {
	if rec := c.lookupIndex(c.bySource, messageID, func(r *models.CuratedMessage) string { return r.SourceMessageID }); rec != nil {
		c.metrics.CacheLookup(true)
		return rec, nil
	}
	if rec := c.lookupIndex(c.byPosted, messageID, func(r *models.CuratedMessage) string { return r.PostedMessageID }); rec != nil {
		c.metrics.CacheLookup(true)
		return rec, nil
	}
	c.metrics.CacheLookup(false)

	seq := c.invalidations.Load()
	rec, err := c.store.FindBySourceMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.Status == models.StatusDenied {
		posted, err := c.store.FindByPostedMessage(ctx, messageID)
		if err != nil {
			return nil, err
		}
		if posted != nil {
			rec = posted
		}
	}
	return c.fill(rec, seq), nil
}

// GetByID resolves a curated message by its store id.
func (c *Cache) GetByID(ctx context.Context, id int64) (*models.CuratedMessage, error) {
	if e, ok := c.byID.Load(idKey(id)); ok {
		e.touched.Store(c.now().UnixNano())
		c.metrics.CacheLookup(true)
		return e.rec.Clone(), nil
	}
	c.metrics.CacheLookup(false)

	seq := c.invalidations.Load()
	rec, err := c.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.fill(rec, seq), nil
}

func (c *Cache) lookupIndex(index *ShardedMap[int64], messageID string, field func(*models.CuratedMessage) string) *models.CuratedMessage {
	id, ok := index.Load(messageID)
	if !ok {
		return nil
	}
	e, ok := c.byID.Load(idKey(id))
	if !ok || field(e.rec) != messageID {
		// stale index entry
		return nil
	}
	e.touched.Store(c.now().UnixNano())
	return e.rec.Clone()
}

// fill installs a row read from the store unless a status-affecting write
// happened since the read started or a newer entry is already present.
func (c *Cache) fill(rec *models.CuratedMessage, seq uint64) *models.CuratedMessage {
	if rec == nil || rec.Status == models.StatusDenied {
		return nil
	}
	snapshot := rec.Clone()
	installed := false
	c.byID.Update(idKey(snapshot.ID), func(cur *entry, exists bool) (*entry, bool) {
		if exists || c.invalidations.Load() != seq {
			return cur, exists
		}
		installed = true
		return newEntry(snapshot, c.now()), true
	})
	if installed {
		c.index(snapshot)
	}
	return rec.Clone()
}

func (c *Cache) index(rec *models.CuratedMessage) {
	if rec.SourceMessageID != "" {
		c.bySource.Store(rec.SourceMessageID, rec.ID)
	}
	if rec.PostedMessageID != "" {
		c.byPosted.Store(rec.PostedMessageID, rec.ID)
	}
}

func (c *Cache) unindex(rec *models.CuratedMessage) {
	same := func(id int64) bool { return id == rec.ID }
	if rec.SourceMessageID != "" {
		c.bySource.DeleteIf(rec.SourceMessageID, same)
	}
	if rec.PostedMessageID != "" {
		c.byPosted.DeleteIf(rec.PostedMessageID, same)
	}
}

// Put replaces the entry for rec.ID with a copy of rec. It must only be called
// with a row that has been committed to the store. Denied records are evicted
// instead of stored.
func (c *Cache) Put(rec *models.CuratedMessage) {
	if rec == nil {
		return
	}
	if rec.Status == models.StatusDenied {
		c.Evict(rec.ID)
		return
	}
	c.invalidations.Add(1)

	snapshot := rec.Clone()
	var previous *models.CuratedMessage
	c.byID.Update(idKey(snapshot.ID), func(cur *entry, exists bool) (*entry, bool) {
		if exists {
			previous = cur.rec
		}
		return newEntry(snapshot, c.now()), true
	})
	if previous != nil {
		c.unindex(previous)
	}
	c.index(snapshot)
}

// Evict drops the entry for id. Later lookups fall through to the store.
func (c *Cache) Evict(id int64) {
	c.invalidations.Add(1)

	var previous *models.CuratedMessage
	c.byID.Update(idKey(id), func(cur *entry, exists bool) (*entry, bool) {
		if exists {
			previous = cur.rec
		}
		return nil, false
	})
	if previous != nil {
		c.unindex(previous)
	}
}

// UpdateStarCount writes count through to the store and then to the cached
// entry. Counts never decrease and are frozen once the record leaves review.
func (c *Cache) UpdateStarCount(ctx context.Context, id int64, count int) error {
	if err := c.store.UpdateStarCount(ctx, id, count); err != nil {
		return err
	}
	c.byID.Update(idKey(id), func(cur *entry, exists bool) (*entry, bool) {
		if !exists {
			return nil, false
		}
		if cur.rec.Status != models.StatusInReview || count <= cur.rec.StarCount {
			return cur, true
		}
		next := cur.rec.Clone()
		next.StarCount = count
		e := newEntry(next, time.Unix(0, cur.touched.Load()))
		return e, true
	})
	return nil
}

// Prune evicts entries that have not been touched since cutoff and returns how
// many were removed.
func (c *Cache) Prune(cutoff time.Time) int {
	limit := cutoff.UnixNano()
	var stale []int64
	c.byID.Range(func(_ string, e *entry) bool {
		if e.touched.Load() < limit {
			stale = append(stale, e.rec.ID)
		}
		return true
	})

	removed := 0
	for _, id := range stale {
		dropped := false
		var previous *models.CuratedMessage
		c.byID.Update(idKey(id), func(cur *entry, exists bool) (*entry, bool) {
			if !exists {
				return nil, false
			}
			if cur.touched.Load() >= limit {
				return cur, true
			}
			dropped = true
			previous = cur.rec
			return nil, false
		})
		if dropped {
			c.unindex(previous)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	return c.byID.Len()
}
