package preprocess

import (
	"testing"
	"time"

	"hund/internal/notif"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func post(key, pkg, groupKey string, offset time.Duration) *notif.Item {
	return &notif.Item{
		Key:         key,
		PackageName: pkg,
		GroupKey:    groupKey,
		PostTime:    base.Add(offset),
	}
}

func summary(key, pkg, groupKey, overrideKey string) *notif.Item {
	return &notif.Item{
		Key:              key,
		PackageName:      pkg,
		GroupKey:         groupKey,
		OverrideGroupKey: overrideKey,
		IsGroupSummary:   true,
		PostTime:         base,
	}
}

func TestGroupBucketsByIdentity(t *testing.T) {
	t.Parallel()
	items := []*notif.Item{
		post("m1", "com.mail", "inbox", 0),
		post("c1", "com.chat", "inbox", time.Second),
		post("m2", "com.mail", "inbox", 2*time.Second),
		post("solo", "com.nav", "", 3*time.Second),
	}

	groups := Group(items)
	if len(groups) != 3 {
		t.Fatalf("got %d groups, want 3", len(groups))
	}

	// Same app-supplied group key in different packages must not merge.
	for _, g := range groups {
		id := g.GroupKey()
		for _, c := range g.Children() {
			if c.GroupIdentity() != id {
				t.Fatalf("child %s has identity %q inside group %q", c.Key, c.GroupIdentity(), id)
			}
		}
		if h := g.Header(); h != nil && h.GroupIdentity() != id {
			t.Fatalf("header %s has identity %q inside group %q", h.Key, h.GroupIdentity(), id)
		}
	}
}

func TestGroupChildrenSortedNewestFirst(t *testing.T) {
	t.Parallel()
	items := []*notif.Item{
		post("old", "com.mail", "inbox", 0),
		post("newest", "com.mail", "inbox", 2*time.Minute),
		post("mid", "com.mail", "inbox", time.Minute),
	}

	groups := Group(items)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	want := []string{"newest", "mid", "old"}
	for i, k := range want {
		if got := groups[0].Children()[i].Key; got != k {
			t.Fatalf("children[%d] = %s, want %s", i, got, k)
		}
	}
}

func TestGroupSummaryBecomesHeader(t *testing.T) {
	t.Parallel()
	items := []*notif.Item{
		post("m1", "com.mail", "inbox", 0),
		summary("hdr", "com.mail", "inbox", ""),
		post("m2", "com.mail", "inbox", time.Second),
	}

	groups := Group(items)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	g := groups[0]
	if g.Header() == nil || g.Header().Key != "hdr" {
		t.Fatalf("header = %v, want hdr", g.Header())
	}
	if g.ChildCount() != 2 {
		t.Fatalf("child count = %d, want 2", g.ChildCount())
	}
}

func TestGroupDeterministicOrder(t *testing.T) {
	t.Parallel()
	items := []*notif.Item{
		post("b", "com.b", "", 0),
		post("a", "com.a", "", time.Second),
	}
	first := Group(items)
	second := Group(items)
	for i := range first {
		if first[i].GroupKey() != second[i].GroupKey() {
			t.Fatalf("pass order differs at %d: %q vs %q", i, first[i].GroupKey(), second[i].GroupKey())
		}
	}
}

func TestSummarizeDerivesForSynthesizedHeaderOnly(t *testing.T) {
	t.Parallel()
	names := StaticAppNames{"com.mail": "Mail"}

	mk := func(overrideKey, bigTitle, summaryText string) *notif.Group {
		hdr := summary("hdr", "com.mail", "inbox", overrideKey)
		hdr.BigTitle = bigTitle
		hdr.SummaryText = summaryText
		g := notif.NewGroup()
		g.AddChild(post("m1", "com.mail", "inbox", 0))
		g.AddChild(post("m2", "com.mail", "inbox", time.Second))
		g.SetHeader(hdr)
		return g
	}

	// Synthesized header: both fields derived.
	g := mk("forced", "", "")
	Summarize([]*notif.Group{g}, names)
	if g.HeaderText.Title != "Mail" {
		t.Fatalf("derived title = %q, want Mail", g.HeaderText.Title)
	}
	if g.HeaderText.Summary != "2 new notifications" {
		t.Fatalf("derived summary = %q", g.HeaderText.Summary)
	}

	// Authored text wins: nothing is derived over it.
	g = mk("forced", "Inbox", "3 unread mails")
	Summarize([]*notif.Group{g}, names)
	if g.HeaderText.Title != "" || g.HeaderText.Summary != "" {
		t.Fatalf("derived over authored text: %+v", g.HeaderText)
	}
	if g.Header().BigTitle != "Inbox" || g.Header().SummaryText != "3 unread mails" {
		t.Fatal("authored header item was mutated")
	}

	// App-authored header (no override key): untouched.
	g = mk("", "", "")
	Summarize([]*notif.Group{g}, names)
	if g.HeaderText.Title != "" || g.HeaderText.Summary != "" {
		t.Fatalf("derived text for app-authored header: %+v", g.HeaderText)
	}
}

func TestRankOrderAndMissingFallback(t *testing.T) {
	t.Parallel()
	items := []*notif.Item{
		post("low", "com.a", "", 0),
		post("unranked1", "com.b", "", time.Second),
		post("high", "com.c", "", 2*time.Second),
		post("unranked2", "com.d", "", 3*time.Second),
	}
	ranking := notif.NewRankingSnapshot(map[string]notif.Ranking{
		"high": {Rank: 1},
		"low":  {Rank: 7},
	})

	groups := Rank(Group(items), ranking)
	got := make([]string, len(groups))
	for i, g := range groups {
		got[i] = g.Representative().Key
	}
	// Unranked groups sort last, keeping their relative order.
	want := []string{"high", "low", "unranked1", "unranked2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rank order = %v, want %v", got, want)
		}
	}
}

func TestRankStableOnEqualRanks(t *testing.T) {
	t.Parallel()
	items := []*notif.Item{
		post("first", "com.a", "", 0),
		post("second", "com.b", "", time.Second),
	}
	ranking := notif.NewRankingSnapshot(map[string]notif.Ranking{
		"first":  {Rank: 3},
		"second": {Rank: 3},
	})

	groups := Rank(Group(items), ranking)
	if groups[0].Representative().Key != "first" || groups[1].Representative().Key != "second" {
		t.Fatal("equal ranks did not preserve input order")
	}
}

func TestProcessIsPureAndIdempotent(t *testing.T) {
	t.Parallel()
	p := NewPipeline(StaticAppNames{})
	items := []*notif.Item{
		post("m1", "com.mail", "inbox", 0),
		summary("hdr", "com.mail", "inbox", "forced"),
		post("m2", "com.mail", "inbox", time.Second),
		post("solo", "com.nav", "", 2*time.Second),
	}
	ranking := notif.NewRankingSnapshot(map[string]notif.Ranking{
		"hdr":  {Rank: 2},
		"solo": {Rank: 1},
	})

	first := p.Process(items, ranking)
	second := p.Process(items, ranking)

	if len(first) != len(second) {
		t.Fatalf("pass sizes differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Representative().Key != second[i].Representative().Key {
			t.Fatalf("pass order differs at %d", i)
		}
		if first[i] == second[i] {
			t.Fatal("groups must be freshly allocated per pass")
		}
	}
}
