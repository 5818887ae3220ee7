package headsup

import (
	"testing"
	"time"

	"hund/internal/notif"
)

func eligItem(key string, cat notif.Category, flags notif.Flags) *notif.Item {
	return &notif.Item{
		Key:         key,
		PackageName: "com.example",
		Category:    cat,
		Flags:       flags,
		PostTime:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestShouldShowRuleOrder(t *testing.T) {
	t.Parallel()

	highRanking := func(key string) *notif.RankingSnapshot {
		return notif.NewRankingSnapshot(map[string]notif.Ranking{
			key: {Rank: 1, Importance: notif.ImportanceHigh},
		})
	}
	lowRanking := func(key string) *notif.RankingSnapshot {
		return notif.NewRankingSnapshot(map[string]notif.Ranking{
			key: {Rank: 1, Importance: notif.ImportanceDefault},
		})
	}
	empty := notif.NewRankingSnapshot(nil)

	tests := []struct {
		name    string
		item    *notif.Item
		ranking *notif.RankingSnapshot
		locked  bool
		navOK   bool
		muted   bool
		trusted bool
		carMsg  bool
		want    bool
	}{
		{
			name:    "locked display suppresses everything",
			item:    eligItem("k", notif.CategoryCall, 0),
			ranking: highRanking("k"),
			locked:  true,
			want:    false,
		},
		{
			name:    "navigation disabled by config",
			item:    eligItem("k", notif.CategoryNavigation, 0),
			ranking: highRanking("k"),
			navOK:   false,
			want:    false,
		},
		{
			name:    "navigation enabled passes to importance gate",
			item:    eligItem("k", notif.CategoryNavigation, 0),
			ranking: highRanking("k"),
			navOK:   true,
			want:    true,
		},
		{
			name:    "group alert suppression",
			item:    eligItem("k", notif.CategoryMessage, notif.FlagSuppressGroupAlert),
			ranking: highRanking("k"),
			want:    false,
		},
		{
			name:    "muted conversation",
			item:    eligItem("k", notif.CategoryMessage, 0),
			ranking: highRanking("k"),
			muted:   true,
			want:    false,
		},
		{
			name:    "high importance promotes plain item",
			item:    eligItem("k", notif.CategoryNone, 0),
			ranking: highRanking("k"),
			want:    true,
		},
		{
			name:    "low importance decides even for call category",
			item:    eligItem("k", notif.CategoryCall, 0),
			ranking: lowRanking("k"),
			want:    false,
		},
		{
			name:    "unknown importance falls through to trust override",
			item:    eligItem("k", notif.CategoryNone, 0),
			ranking: empty,
			trusted: true,
			want:    true,
		},
		{
			name:    "unknown importance falls through to car-compatible shape",
			item:    eligItem("k", notif.CategoryNone, 0),
			ranking: empty,
			carMsg:  true,
			want:    true,
		},
		{
			name:    "unknown importance with call category uses allowlist",
			item:    eligItem("k", notif.CategoryCall, 0),
			ranking: empty,
			want:    true,
		},
		{
			name:    "unknown importance with plain item stays quiet",
			item:    eligItem("k", notif.CategoryNone, 0),
			ranking: empty,
			want:    false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := NewPolicy(
				Config{NavigationHeadsUp: tt.navOK},
				&fakeLock{locked: tt.locked},
				&fakeMute{muted: map[string]bool{tt.item.Key: tt.muted}},
				&fakeTrust{
					trusted: map[string]bool{tt.item.Key: tt.trusted},
					carMsg:  map[string]bool{tt.item.Key: tt.carMsg},
				},
			)
			if got := p.ShouldShow(tt.item, tt.ranking); got != tt.want {
				t.Fatalf("ShouldShow = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldShowNilRankingSnapshot(t *testing.T) {
	t.Parallel()
	p := NewPolicy(Config{}, &fakeLock{}, &fakeMute{muted: map[string]bool{}}, &fakeTrust{})
	// nil snapshot behaves like an empty one: call category still promotes.
	if !p.ShouldShow(eligItem("k", notif.CategoryCall, 0), nil) {
		t.Fatal("call item with nil ranking should promote")
	}
}
