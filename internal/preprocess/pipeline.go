package preprocess

import (
	"hund/internal/notif"
)

// Pipeline composes the three preprocessing steps. It carries no state beyond
// the injected name resolver; Process may be called from any goroutine.
type Pipeline struct {
	names AppNameResolver
}

func NewPipeline(names AppNameResolver) *Pipeline {
	return &Pipeline{names: names}
}

// Process returns the ordered groups for the persistent list:
// Rank(Summarize(Group(items))).
func (p *Pipeline) Process(items []*notif.Item, ranking *notif.RankingSnapshot) []*notif.Group {
	return Rank(Summarize(Group(items), p.names), ranking)
}
