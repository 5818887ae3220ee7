package notif

import (
	"fmt"
	"sort"
)

// HeaderText is the presentation derived for a synthesized group header by the
// summarize step. It lives next to the immutable header item instead of being
// backfilled into it.
type HeaderText struct {
	Title   string
	Summary string
}

// Group is one row in the persistent notification list: either a single
// notification, a header with no children, or a header plus children.
//
// Groups are rebuilt from scratch on every preprocessing pass so list
// consumers relying on identity-based change detection see fresh objects.
type Group struct {
	groupKey string
	keySet   bool

	children []*Item
	header   *Item

	// HeaderText is filled by the summarize step for synthesized headers.
	HeaderText HeaderText
}

func NewGroup() *Group { return &Group{} }

// AddChild appends an item and keeps children ordered by
// (group key ascending, post time descending).
func (g *Group) AddChild(it *Item) {
	g.assertSameGroupKey(it.GroupIdentity())
	g.children = append(g.children, it)
	sortChildren(g.children)
}

// SetHeader installs the group summary item. An already-present header is
// demoted to an ordinary child.
func (g *Group) SetHeader(it *Item) {
	g.assertSameGroupKey(it.GroupIdentity())
	if g.header != nil {
		g.children = append(g.children, g.header)
		sortChildren(g.children)
	}
	g.header = it
}

func (g *Group) GroupKey() string { return g.groupKey }

func (g *Group) ChildCount() int { return len(g.children) }

func (g *Group) Children() []*Item { return g.children }

func (g *Group) Header() *Item { return g.header }

// IsGroup reports whether this renders as a collapsed group: a header plus
// more than one child.
func (g *Group) IsGroup() bool { return g.header != nil && len(g.children) > 1 }

// Representative returns the item used for ranking and sorting: the header if
// present, otherwise the first child. A header with zero children represents
// itself. Returns nil only for an empty group, which the grouping step never
// produces.
func (g *Group) Representative() *Item {
	if g.header != nil {
		return g.header
	}
	if len(g.children) > 0 {
		return g.children[0]
	}
	return nil
}

// assertSameGroupKey pins the group key on first use. A second item with a
// different identity is a programmer error upstream, so fail loudly instead
// of silently corrupting the group.
func (g *Group) assertSameGroupKey(key string) {
	if !g.keySet {
		g.groupKey = key
		g.keySet = true
		return
	}
	if g.groupKey != key {
		panic(fmt.Sprintf("notif: group key mismatch: group has %q, item has %q", g.groupKey, key))
	}
}

func sortChildren(items []*Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].GroupKey != items[j].GroupKey {
			return items[i].GroupKey < items[j].GroupKey
		}
		return items[i].PostTime.After(items[j].PostTime)
	})
}
