package notif

// Importance mirrors the platform's channel importance ladder.
type Importance int

const (
	ImportanceNone Importance = iota
	ImportanceMin
	ImportanceLow
	ImportanceDefault
	ImportanceHigh
	ImportanceMax
)

// Ranking is one entry of a ranking snapshot.
type Ranking struct {
	Rank         int        `json:"rank"`
	Importance   Importance `json:"importance"`
	ChannelSound string     `json:"channel_sound,omitempty"`
}

// RankingSnapshot is a point-in-time, read-only mapping from notification key
// to ranking data. It may not contain every currently known key.
type RankingSnapshot struct {
	entries map[string]Ranking
}

// NewRankingSnapshot copies entries so later mutation of the argument cannot
// leak into the snapshot.
func NewRankingSnapshot(entries map[string]Ranking) *RankingSnapshot {
	cp := make(map[string]Ranking, len(entries))
	for k, v := range entries {
		cp[k] = v
	}
	return &RankingSnapshot{entries: cp}
}

// Get is nil-safe: a nil snapshot behaves like an empty one.
func (s *RankingSnapshot) Get(key string) (Ranking, bool) {
	if s == nil {
		return Ranking{}, false
	}
	r, ok := s.entries[key]
	return r, ok
}

func (s *RankingSnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}
