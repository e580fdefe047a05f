// Package leaderboard derives ordered ranking snapshots from the scoring
// ledger. It holds no state of its own and never mutates a record.
package leaderboard

import (
	"context"
	"sort"

	"amberhill.org/internal/scoring"
)

// Entry is one row of the ranking projection.
type Entry struct {
	Position int          `json:"position"`
	MemberID string       `json:"member_id"`
	Name     string       `json:"name,omitempty"`
	Points   int          `json:"points"`
	Rank     scoring.Rank `json:"rank"`
	Level    int          `json:"level"`
	Badges   int          `json:"badges"`
}

// NameResolver maps member ids to display names. May be nil.
type NameResolver interface {
	DisplayName(id string) string
}

// View computes leaderboards on demand from ledger snapshots.
type View struct {
	ledger scoring.Service
	names  NameResolver
}

// NewView builds a view over the given ledger. names may be nil.
func NewView(ledger scoring.Service, names NameResolver) *View {
	return &View{ledger: ledger, names: names}
}

const defaultLimit = 10

// Top returns up to limit entries ordered by descending points. Ties are
// broken by record creation order: the member who reached the total first
// ranks higher.
func (v *View) Top(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	recs, err := v.ledger.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Points != recs[j].Points {
			return recs[i].Points > recs[j].Points
		}
		return recs[i].Sequence < recs[j].Sequence
	})

	if limit > len(recs) {
		limit = len(recs)
	}
	out := make([]Entry, 0, limit)
	for i := 0; i < limit; i++ {
		rec := recs[i]
		entry := Entry{
			Position: i + 1,
			MemberID: rec.MemberID,
			Points:   rec.Points,
			Rank:     rec.Rank,
			Level:    rec.Level,
			Badges:   len(rec.Badges),
		}
		if v.names != nil {
			entry.Name = v.names.DisplayName(rec.MemberID)
		}
		out = append(out, entry)
	}
	return out, nil
}
