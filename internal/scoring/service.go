package scoring

import (
	"context"
	"sync"
	"time"
)

// Service defines scoring ledger operations.
type Service interface {
	// Award appends an activity to the member's record, recomputes points,
	// rank and level, and grants any newly satisfied badges. The record is
	// created lazily on first activity. The returned badge slice holds only
	// badges granted by this call.
	Award(ctx context.Context, memberID string, kind Kind, description string) (Record, []Badge, error)
	// Stats returns the member's record, or the zero state if none exists.
	Stats(ctx context.Context, memberID string) (Record, error)
	// RecentActivities returns the most recent activities, newest first.
	RecentActivities(ctx context.Context, memberID string, limit int) ([]Activity, error)
	// Snapshot returns a copy of every record, for read projections.
	Snapshot(ctx context.Context) ([]Record, error)
}

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
)

// InMemory implements Service with in-process concurrency safety. Per-member
// mutation is serialized by the service lock, so concurrent awards cannot
// lose updates or double-grant a badge.
type InMemory struct {
	mu    sync.RWMutex
	recs  map[string]*Record
	seq   uint64
	rules []BadgeRule
	now   func() time.Time
}

// NewInMemory creates a fresh ledger with the default badge rules.
func NewInMemory() *InMemory {
	return &InMemory{
		recs:  make(map[string]*Record),
		rules: DefaultBadgeRules(),
		now:   time.Now,
	}
}

var _ Service = (*InMemory)(nil)

func (s *InMemory) Award(ctx context.Context, memberID string, kind Kind, description string) (Record, []Badge, error) {
	pts, err := Points(kind)
	if err != nil {
		return Record{}, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	rec, ok := s.recs[memberID]
	if !ok {
		s.seq++
		rec = &Record{
			MemberID:  memberID,
			Rank:      RankFor(0),
			Level:     LevelFor(0),
			CreatedAt: now,
			Sequence:  s.seq,
		}
		s.recs[memberID] = rec
	}

	rec.Activities = append(rec.Activities, Activity{
		Kind:        kind,
		Points:      pts,
		Description: description,
		OccurredAt:  now,
	})
	rec.Points += pts
	rec.Rank = RankFor(rec.Points)
	rec.Level = LevelFor(rec.Points)

	earned := EvaluateBadges(*rec, s.rules, now)
	rec.Badges = append(rec.Badges, earned...)

	return copyRecord(rec), earned, nil
}

func (s *InMemory) Stats(ctx context.Context, memberID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[memberID]
	if !ok {
		return ZeroRecord(memberID), nil
	}
	return copyRecord(rec), nil
}

func (s *InMemory) RecentActivities(ctx context.Context, memberID string, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[memberID]
	if !ok {
		return nil, nil
	}
	// Insertion order is chronological; walk backwards for newest first.
	n := len(rec.Activities)
	if limit > n {
		limit = n
	}
	out := make([]Activity, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, rec.Activities[i])
	}
	return out, nil
}

func (s *InMemory) Snapshot(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.recs))
	for _, rec := range s.recs {
		out = append(out, copyRecord(rec))
	}
	return out, nil
}

func copyRecord(rec *Record) Record {
	out := *rec
	out.Activities = append([]Activity(nil), rec.Activities...)
	out.Badges = append([]Badge(nil), rec.Badges...)
	return out
}
