package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"hund/internal/eventbus"
	"hund/internal/headsup"
	"hund/internal/notif"
	"hund/internal/preprocess"
	logx "hund/pkg/logx"
)

// Center is the notification core facade. It keeps the current item set and
// ranking snapshot, drives the heads-up manager on every change, and runs the
// preprocessing pipeline on demand for the persistent list.
//
// It implements ingest.Handler, so the socket listener feeds it directly.
type Center struct {
	manager *headsup.Manager
	bus     eventbus.Bus
	lock    *lockFlag
	log     logx.Logger

	mu      sync.RWMutex
	items   map[string]*notif.Item
	ranking *notif.RankingSnapshot
	names   preprocess.StaticAppNames
}

func NewCenter(manager *headsup.Manager, bus eventbus.Bus, lock *lockFlag, names map[string]string, log logx.Logger) *Center {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Center{
		manager: manager,
		bus:     bus,
		lock:    lock,
		log:     log,
		items:   map[string]*notif.Item{},
		ranking: notif.NewRankingSnapshot(nil),
		names:   preprocess.StaticAppNames(names),
	}
}

// Posted stores or replaces the item, lets the heads-up manager decide
// promotion, and signals list subscribers.
func (c *Center) Posted(ctx context.Context, it *notif.Item) error {
	c.mu.Lock()
	c.items[it.Key] = it
	ranking := c.ranking
	c.mu.Unlock()

	if err := c.manager.Show(it, ranking); err != nil {
		c.log.Warn("headsup show failed",
			logx.String("key", it.Key), logx.Err(err))
	}
	c.publishListUpdated()
	return nil
}

// Removed drops the item and withdraws any active heads-up for it.
func (c *Center) Removed(ctx context.Context, it *notif.Item) error {
	c.mu.Lock()
	delete(c.items, it.Key)
	c.mu.Unlock()

	if err := c.manager.Remove(it); err != nil {
		c.log.Warn("headsup remove failed",
			logx.String("key", it.Key), logx.Err(err))
	}
	c.publishListUpdated()
	return nil
}

// RankingUpdated swaps the snapshot. It does not retroactively re-evaluate
// active heads-up entries; the next post or update picks up the new ranking.
func (c *Center) RankingUpdated(ctx context.Context, snapshot *notif.RankingSnapshot) {
	if snapshot == nil {
		snapshot = notif.NewRankingSnapshot(nil)
	}
	c.mu.Lock()
	c.ranking = snapshot
	c.mu.Unlock()
	c.publishListUpdated()
}

// LockChanged records the display lock state consulted by the eligibility
// policy.
func (c *Center) LockChanged(ctx context.Context, locked bool) {
	c.lock.Set(locked)
	c.log.Debug("lock state changed", logx.Bool("locked", locked))
}

// Dismiss forwards a user dismissal from a surface to the heads-up manager.
func (c *Center) Dismiss(key string) {
	c.manager.Dismiss(key)
}

// Groups runs the preprocessing pipeline over the current item set and
// returns the ordered groups for the persistent list.
func (c *Center) Groups() []*notif.Group {
	c.mu.RLock()
	items := make([]*notif.Item, 0, len(c.items))
	for _, it := range c.items {
		items = append(items, it)
	}
	ranking := c.ranking
	names := c.names
	c.mu.RUnlock()

	// Map iteration order is random; pipeline input should be stable.
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })

	return preprocess.NewPipeline(names).Process(items, ranking)
}

// SetAppNames replaces the display-name resolver on config reload.
func (c *Center) SetAppNames(names map[string]string) {
	c.mu.Lock()
	c.names = preprocess.StaticAppNames(names)
	c.mu.Unlock()
}

// Size reports the number of tracked notifications.
func (c *Center) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Center) publishListUpdated() {
	if c.bus == nil {
		return
	}
	c.bus.Publish(eventbus.Event{
		Type: eventbus.TypeListUpdated,
		Time: time.Now(),
	})
}
