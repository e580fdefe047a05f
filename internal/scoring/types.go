package scoring

import (
	"errors"
	"time"
)

// Kind enumerates the point-earning member activities.
type Kind string

const (
	KindResourceShared    Kind = "resource_shared"
	KindComplaintResolved Kind = "complaint_resolved"
	KindForumPost         Kind = "forum_post"
	KindAmenityBooking    Kind = "amenity_booking"
	KindPollVote          Kind = "poll_vote"
	KindHelpfulAnswer     Kind = "helpful_answer"
)

// pointValues is the fixed award table. Values are part of the public
// contract; collaborators and tests rely on them.
var pointValues = map[Kind]int{
	KindResourceShared:    10,
	KindComplaintResolved: 15,
	KindForumPost:         5,
	KindAmenityBooking:    3,
	KindPollVote:          2,
	KindHelpfulAnswer:     20,
}

// Points returns the fixed point value for a kind.
func Points(kind Kind) (int, error) {
	pts, ok := pointValues[kind]
	if !ok {
		return 0, ErrInvalidKind
	}
	return pts, nil
}

// Rank is a named tier derived solely from cumulative points.
type Rank string

const (
	RankBronze   Rank = "Bronze"
	RankSilver   Rank = "Silver"
	RankGold     Rank = "Gold"
	RankPlatinum Rank = "Platinum"
	RankDiamond  Rank = "Diamond"
)

var rankThresholds = []struct {
	Rank      Rank
	MinPoints int
}{
	{RankBronze, 0},
	{RankSilver, 50},
	{RankGold, 150},
	{RankPlatinum, 300},
	{RankDiamond, 500},
}

// RankFor returns the highest rank whose minimum does not exceed points.
// Exactly hitting a threshold yields the higher rank.
func RankFor(points int) Rank {
	for i := len(rankThresholds) - 1; i >= 0; i-- {
		if points >= rankThresholds[i].MinPoints {
			return rankThresholds[i].Rank
		}
	}
	return RankBronze
}

// LevelFor derives the member level from cumulative points.
func LevelFor(points int) int {
	return points/50 + 1
}

// Activity is an immutable record of a single point-earning action.
type Activity struct {
	Kind        Kind      `json:"kind"`
	Points      int       `json:"points"`
	Description string    `json:"description,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Badge is a one-time achievement marker.
type Badge struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	EarnedAt    time.Time `json:"earned_at"`
}

// Record is the per-member score ledger: cumulative points, the append-only
// activity sequence, earned badges, and the derived rank and level. Points is
// always the sum of Activity.Points; Rank and Level are pure functions of
// Points and are recomputed on every change.
type Record struct {
	MemberID   string     `json:"member_id"`
	Points     int        `json:"points"`
	Rank       Rank       `json:"rank"`
	Level      int        `json:"level"`
	Activities []Activity `json:"activities"`
	Badges     []Badge    `json:"badges"`
	CreatedAt  time.Time  `json:"created_at"`
	Sequence   uint64     `json:"sequence"` // creation order, used for leaderboard tie-breaks
}

var (
	ErrInvalidKind = errors.New("scoring: invalid activity kind")
	ErrNotFound    = errors.New("scoring: not found")
)

// ZeroRecord is the empty state returned for members with no activity yet.
func ZeroRecord(memberID string) Record {
	return Record{
		MemberID: memberID,
		Points:   0,
		Rank:     RankFor(0),
		Level:    LevelFor(0),
	}
}
