package app

import (
	"context"
	"testing"
	"time"

	"hund/internal/eventbus"
	"hund/internal/headsup"
	"hund/internal/notif"
	logx "hund/pkg/logx"
)

func newTestCenter(t *testing.T, bus eventbus.Bus) (*Center, *headsup.Manager, *lockFlag) {
	t.Helper()
	cfg := headsup.Config{
		Duration:   time.Minute,
		MinDisplay: time.Nanosecond,
		Snooze:     time.Minute,
	}
	lock := &lockFlag{}
	policy := headsup.NewPolicy(cfg, lock, newMuteList(nil), newTrustList(nil))
	manager := headsup.New(cfg, headsup.Deps{
		Policy:  policy,
		Surface: logSurface{log: logx.Nop()},
		Bus:     bus,
	})
	t.Cleanup(manager.Stop)
	return NewCenter(manager, bus, lock, map[string]string{"com.mail": "Mail"}, logx.Nop()), manager, lock
}

func highRanking(keys ...string) *notif.RankingSnapshot {
	entries := map[string]notif.Ranking{}
	for i, k := range keys {
		entries[k] = notif.Ranking{Rank: i, Importance: notif.ImportanceHigh}
	}
	return notif.NewRankingSnapshot(entries)
}

func drain(ch <-chan eventbus.Event) []string {
	var types []string
	for {
		select {
		case e := <-ch:
			types = append(types, e.Type)
		default:
			return types
		}
	}
}

func TestPostedPromotesEligibleItem(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(32)
	defer unsub()

	c, m, _ := newTestCenter(t, bus)
	ctx := context.Background()

	c.RankingUpdated(ctx, highRanking("mail|1"))
	if err := c.Posted(ctx, &notif.Item{Key: "mail|1", PackageName: "com.mail", Title: "hi"}); err != nil {
		t.Fatalf("Posted: %v", err)
	}

	if got := c.Size(); got != 1 {
		t.Fatalf("Size = %d, want 1", got)
	}
	if got := m.ActiveCount(); got != 1 {
		t.Fatalf("ActiveCount = %d, want 1", got)
	}

	types := drain(events)
	var shown, listUpdates int
	for _, typ := range types {
		switch typ {
		case eventbus.TypeHeadsUpShown:
			shown++
		case eventbus.TypeListUpdated:
			listUpdates++
		}
	}
	if shown != 1 {
		t.Fatalf("shown events = %d, want 1 (got %v)", shown, types)
	}
	if listUpdates != 2 {
		t.Fatalf("list.updated events = %d, want 2 (got %v)", listUpdates, types)
	}
}

func TestLockedDisplayBlocksPromotion(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	c, m, _ := newTestCenter(t, bus)
	ctx := context.Background()

	c.LockChanged(ctx, true)
	c.RankingUpdated(ctx, highRanking("mail|1"))
	if err := c.Posted(ctx, &notif.Item{Key: "mail|1", PackageName: "com.mail"}); err != nil {
		t.Fatalf("Posted: %v", err)
	}

	if got := m.ActiveCount(); got != 0 {
		t.Fatalf("ActiveCount = %d, want 0 while locked", got)
	}
	// The item still joins the persistent list.
	if got := c.Size(); got != 1 {
		t.Fatalf("Size = %d, want 1", got)
	}

	c.LockChanged(ctx, false)
	if err := c.Posted(ctx, &notif.Item{Key: "mail|1", PackageName: "com.mail"}); err != nil {
		t.Fatalf("Posted after unlock: %v", err)
	}
	if got := m.ActiveCount(); got != 1 {
		t.Fatalf("ActiveCount = %d, want 1 after unlock", got)
	}
}

func TestRemovedDropsItemAndHeadsUp(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	c, m, _ := newTestCenter(t, bus)
	ctx := context.Background()

	it := &notif.Item{Key: "mail|1", PackageName: "com.mail"}
	c.RankingUpdated(ctx, highRanking("mail|1"))
	if err := c.Posted(ctx, it); err != nil {
		t.Fatalf("Posted: %v", err)
	}
	if err := c.Removed(ctx, it); err != nil {
		t.Fatalf("Removed: %v", err)
	}

	if got := c.Size(); got != 0 {
		t.Fatalf("Size = %d, want 0", got)
	}
	if got := m.ActiveCount(); got != 0 {
		t.Fatalf("ActiveCount = %d, want 0", got)
	}
}

func TestGroupsOrderedByRank(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	c, _, _ := newTestCenter(t, bus)
	ctx := context.Background()

	c.RankingUpdated(ctx, notif.NewRankingSnapshot(map[string]notif.Ranking{
		"a": {Rank: 5},
		"b": {Rank: 1},
	}))
	for _, it := range []*notif.Item{
		{Key: "a", PackageName: "com.a"},
		{Key: "b", PackageName: "com.b"},
	} {
		if err := c.Posted(ctx, it); err != nil {
			t.Fatalf("Posted %s: %v", it.Key, err)
		}
	}

	groups := c.Groups()
	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d, want 2", len(groups))
	}
	if got := groups[0].Representative().Key; got != "b" {
		t.Fatalf("groups[0] = %q, want %q (lowest rank first)", got, "b")
	}
}

func TestDismissForwardsToManager(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	c, m, _ := newTestCenter(t, bus)
	ctx := context.Background()

	c.RankingUpdated(ctx, highRanking("mail|1"))
	if err := c.Posted(ctx, &notif.Item{Key: "mail|1", PackageName: "com.mail"}); err != nil {
		t.Fatalf("Posted: %v", err)
	}
	c.Dismiss("mail|1")
	if got := m.ActiveCount(); got != 0 {
		t.Fatalf("ActiveCount = %d, want 0 after dismiss", got)
	}
}
