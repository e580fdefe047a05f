package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"amberhill.org/internal/scoring"
)

// ScoreStore implements scoring.Service on PostgreSQL. Rank, level and badge
// grants are computed in Go from the stored point total; the database holds
// the facts, not the derivations.
type ScoreStore struct {
	db *sql.DB
}

var _ scoring.Service = (*ScoreStore)(nil)

func (s *ScoreStore) Award(ctx context.Context, memberID string, kind scoring.Kind, description string) (scoring.Record, []scoring.Badge, error) {
	pts, err := scoring.Points(kind)
	if err != nil {
		return scoring.Record{}, nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return scoring.Record{}, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	var rec scoring.Record
	err = tx.QueryRowContext(ctx, `
		insert into score_records(member_id, points, created_at)
		values ($1, $2, $3)
		on conflict (member_id) do update
		set points = score_records.points + excluded.points
		returning member_id, points, created_at, sequence
	`, memberID, pts, now).Scan(&rec.MemberID, &rec.Points, &rec.CreatedAt, &rec.Sequence)
	if err != nil {
		return scoring.Record{}, nil, err
	}
	rec.Rank = scoring.RankFor(rec.Points)
	rec.Level = scoring.LevelFor(rec.Points)

	if _, err := tx.ExecContext(ctx, `
		insert into score_activities(member_id, kind, points, description, occurred_at)
		values ($1, $2, $3, $4, $5)
	`, memberID, string(kind), pts, description, now); err != nil {
		return scoring.Record{}, nil, err
	}

	rec.Activities, err = loadActivities(ctx, tx, memberID)
	if err != nil {
		return scoring.Record{}, nil, err
	}
	rec.Badges, err = loadBadges(ctx, tx, memberID)
	if err != nil {
		return scoring.Record{}, nil, err
	}

	earned := scoring.EvaluateBadges(rec, scoring.DefaultBadgeRules(), now)
	for _, b := range earned {
		if _, err := tx.ExecContext(ctx, `
			insert into score_badges(member_id, name, description, icon, earned_at)
			values ($1, $2, $3, $4, $5)
			on conflict (member_id, name) do nothing
		`, memberID, b.Name, b.Description, b.Icon, b.EarnedAt); err != nil {
			return scoring.Record{}, nil, err
		}
	}
	rec.Badges = append(rec.Badges, earned...)

	if err := tx.Commit(); err != nil {
		return scoring.Record{}, nil, err
	}
	return rec, earned, nil
}

func (s *ScoreStore) Stats(ctx context.Context, memberID string) (scoring.Record, error) {
	var rec scoring.Record
	err := s.db.QueryRowContext(ctx, `
		select member_id, points, created_at, sequence
		from score_records where member_id=$1
	`, memberID).Scan(&rec.MemberID, &rec.Points, &rec.CreatedAt, &rec.Sequence)
	if errors.Is(err, sql.ErrNoRows) {
		return scoring.ZeroRecord(memberID), nil
	}
	if err != nil {
		return scoring.Record{}, err
	}
	rec.Rank = scoring.RankFor(rec.Points)
	rec.Level = scoring.LevelFor(rec.Points)

	if rec.Activities, err = loadActivities(ctx, s.db, memberID); err != nil {
		return scoring.Record{}, err
	}
	if rec.Badges, err = loadBadges(ctx, s.db, memberID); err != nil {
		return scoring.Record{}, err
	}
	return rec, nil
}

func (s *ScoreStore) RecentActivities(ctx context.Context, memberID string, limit int) ([]scoring.Activity, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select kind, points, description, occurred_at
		from score_activities
		where member_id=$1
		order by id desc
		limit $2
	`, memberID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []scoring.Activity
	for rows.Next() {
		var act scoring.Activity
		var kind string
		if err := rows.Scan(&kind, &act.Points, &act.Description, &act.OccurredAt); err != nil {
			return nil, err
		}
		act.Kind = scoring.Kind(kind)
		out = append(out, act)
	}
	return out, rows.Err()
}

func (s *ScoreStore) Snapshot(ctx context.Context) ([]scoring.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.member_id, r.points, r.created_at, r.sequence,
			(select count(*) from score_badges b where b.member_id = r.member_id)
		from score_records r
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []scoring.Record
	for rows.Next() {
		var rec scoring.Record
		var badgeCount int
		if err := rows.Scan(&rec.MemberID, &rec.Points, &rec.CreatedAt, &rec.Sequence, &badgeCount); err != nil {
			return nil, err
		}
		rec.Rank = scoring.RankFor(rec.Points)
		rec.Level = scoring.LevelFor(rec.Points)
		// Leaderboards only need the badge count, not the badge rows.
		rec.Badges = make([]scoring.Badge, badgeCount)
		out = append(out, rec)
	}
	return out, rows.Err()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadActivities(ctx context.Context, q queryer, memberID string) ([]scoring.Activity, error) {
	rows, err := q.QueryContext(ctx, `
		select kind, points, description, occurred_at
		from score_activities
		where member_id=$1
		order by id asc
	`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []scoring.Activity
	for rows.Next() {
		var act scoring.Activity
		var kind string
		if err := rows.Scan(&kind, &act.Points, &act.Description, &act.OccurredAt); err != nil {
			return nil, err
		}
		act.Kind = scoring.Kind(kind)
		out = append(out, act)
	}
	return out, rows.Err()
}

func loadBadges(ctx context.Context, q queryer, memberID string) ([]scoring.Badge, error) {
	rows, err := q.QueryContext(ctx, `
		select name, description, icon, earned_at
		from score_badges
		where member_id=$1
		order by earned_at asc
	`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []scoring.Badge
	for rows.Next() {
		var b scoring.Badge
		if err := rows.Scan(&b.Name, &b.Description, &b.Icon, &b.EarnedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
