package preprocess

import (
	"math"
	"sort"

	"hund/internal/notif"
)

// missingRank is the sentinel for representatives absent from the ranking
// snapshot. It places them after every ranked group; the sort is stable, so
// unranked groups keep their input order among themselves.
const missingRank = math.MaxInt32

// Rank orders groups by the ranking snapshot's rank for each group's
// representative item, ascending. Equal ranks preserve input order.
func Rank(groups []*notif.Group, ranking *notif.RankingSnapshot) []*notif.Group {
	sort.SliceStable(groups, func(i, j int) bool {
		return rankOf(groups[i], ranking) < rankOf(groups[j], ranking)
	})
	return groups
}

func rankOf(g *notif.Group, ranking *notif.RankingSnapshot) int {
	rep := g.Representative()
	if rep == nil {
		return missingRank
	}
	if r, ok := ranking.Get(rep.Key); ok {
		return r.Rank
	}
	return missingRank
}
