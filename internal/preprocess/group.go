package preprocess

import (
	"sort"

	"hund/internal/notif"
)

// Group buckets items into display groups by group identity.
//
// Output order is sorted by group identity, which keeps passes deterministic
// for identical input regardless of arrival interleaving. Groups are always
// freshly allocated; the input items are never touched.
func Group(items []*notif.Item) []*notif.Group {
	grouped := map[string]*notif.Group{}

	for _, it := range items {
		id := it.GroupIdentity()
		g, ok := grouped[id]
		if !ok {
			g = notif.NewGroup()
			grouped[id] = g
		}
		if it.IsGroupSummary {
			g.SetHeader(it)
		} else {
			g.AddChild(it)
		}
	}

	ids := make([]string, 0, len(grouped))
	for id := range grouped {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*notif.Group, 0, len(ids))
	for _, id := range ids {
		out = append(out, grouped[id])
	}
	return out
}
