package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"amberhill.org/internal/ids"
	"amberhill.org/internal/polls"
)

// PollStore implements polls.Service on PostgreSQL. The one-ballot-per-member
// rule is enforced by a unique index on (poll_id, member_id), so two
// concurrent sessions cannot both land a vote for the same member.
type PollStore struct {
	db    *sql.DB
	names polls.NameResolver
}

var _ polls.Service = (*PollStore)(nil)

// WithNames sets the resolver used for analytics voter labels.
func (s *PollStore) WithNames(names polls.NameResolver) *PollStore {
	s.names = names
	return s
}

func (s *PollStore) Create(ctx context.Context, params polls.CreateParams) (polls.Poll, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return polls.Poll{}, polls.ErrInvalidTitle
	}
	var opts []string
	for _, text := range params.Options {
		if text = strings.TrimSpace(text); text != "" {
			opts = append(opts, text)
		}
	}
	if len(opts) < 2 {
		return polls.Poll{}, polls.ErrInsufficientOptions
	}
	category := strings.TrimSpace(strings.ToLower(params.Category))
	if category == "" {
		category = polls.CategoryOther
	}
	if !polls.ValidCategory(category) {
		return polls.Poll{}, polls.ErrInvalidCategory
	}
	status := polls.StatusActive
	if params.Draft {
		status = polls.StatusDraft
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return polls.Poll{}, err
	}
	defer func() { _ = tx.Rollback() }()

	id := ids.New()
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		insert into polls(id, title, description, category, anonymous, status, created_by, end_date, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, id, title, strings.TrimSpace(params.Description), category, params.Anonymous,
		string(status), params.CreatedBy, params.EndDate, now); err != nil {
		return polls.Poll{}, err
	}
	for i, text := range opts {
		if _, err := tx.ExecContext(ctx, `
			insert into poll_options(poll_id, idx, text, votes)
			values ($1,$2,$3,0)
		`, id, i, text); err != nil {
			return polls.Poll{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return polls.Poll{}, err
	}
	return s.Get(ctx, id)
}

func (s *PollStore) Get(ctx context.Context, id string) (polls.Poll, error) {
	return loadPoll(ctx, s.db, id)
}

func (s *PollStore) List(ctx context.Context) ([]polls.Poll, error) {
	rows, err := s.db.QueryContext(ctx, `select id from polls order by created_at desc, id desc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pollIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		pollIDs = append(pollIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]polls.Poll, 0, len(pollIDs))
	for _, id := range pollIDs {
		p, err := loadPoll(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *PollStore) Activate(ctx context.Context, pollID, actorID string, admin bool) (polls.Poll, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return polls.Poll{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var status, createdBy string
	err = tx.QueryRowContext(ctx, `select status, created_by from polls where id=$1 for update`, pollID).
		Scan(&status, &createdBy)
	if errors.Is(err, sql.ErrNoRows) {
		return polls.Poll{}, polls.ErrNotFound
	}
	if err != nil {
		return polls.Poll{}, err
	}
	if createdBy != actorID && !admin {
		return polls.Poll{}, polls.ErrUnauthorized
	}
	if polls.Status(status) != polls.StatusDraft {
		return polls.Poll{}, polls.ErrNotActive
	}
	if _, err := tx.ExecContext(ctx, `update polls set status=$2 where id=$1`, pollID, string(polls.StatusActive)); err != nil {
		return polls.Poll{}, err
	}
	if err := tx.Commit(); err != nil {
		return polls.Poll{}, err
	}
	return s.Get(ctx, pollID)
}

func (s *PollStore) Vote(ctx context.Context, pollID, memberID string, optionIndex int) (polls.Poll, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return polls.Poll{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	var anonymous bool
	var endDate sql.NullTime
	var optionCount int
	err = tx.QueryRowContext(ctx, `
		select p.status, p.anonymous, p.end_date,
			(select count(*) from poll_options o where o.poll_id = p.id)
		from polls p where p.id=$1 for update
	`, pollID).Scan(&status, &anonymous, &endDate, &optionCount)
	if errors.Is(err, sql.ErrNoRows) {
		return polls.Poll{}, polls.ErrNotFound
	}
	if err != nil {
		return polls.Poll{}, err
	}

	now := time.Now().UTC()
	if polls.Status(status) != polls.StatusActive {
		return polls.Poll{}, polls.ErrNotActive
	}
	if endDate.Valid && now.After(endDate.Time) {
		return polls.Poll{}, polls.ErrNotActive
	}
	if optionIndex < 0 || optionIndex >= optionCount {
		return polls.Poll{}, polls.ErrInvalidOption
	}

	if _, err := tx.ExecContext(ctx, `
		insert into poll_votes(poll_id, member_id, option_idx, anonymous, voted_at)
		values ($1,$2,$3,$4,$5)
	`, pollID, memberID, optionIndex, anonymous, now); err != nil {
		if isUniqueViolation(err) {
			return polls.Poll{}, polls.ErrDuplicateVote
		}
		return polls.Poll{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		update poll_options set votes = votes + 1
		where poll_id=$1 and idx=$2
	`, pollID, optionIndex); err != nil {
		return polls.Poll{}, err
	}
	if err := tx.Commit(); err != nil {
		return polls.Poll{}, err
	}
	return s.Get(ctx, pollID)
}

func (s *PollStore) Close(ctx context.Context, pollID, actorID string, admin bool) (polls.Poll, error) {
	var createdBy string
	err := s.db.QueryRowContext(ctx, `select created_by from polls where id=$1`, pollID).Scan(&createdBy)
	if errors.Is(err, sql.ErrNoRows) {
		return polls.Poll{}, polls.ErrNotFound
	}
	if err != nil {
		return polls.Poll{}, err
	}
	if createdBy != actorID && !admin {
		return polls.Poll{}, polls.ErrUnauthorized
	}
	if _, err := s.db.ExecContext(ctx, `update polls set status=$2 where id=$1`, pollID, string(polls.StatusClosed)); err != nil {
		return polls.Poll{}, err
	}
	return s.Get(ctx, pollID)
}

func (s *PollStore) Analytics(ctx context.Context, pollID string) (polls.Analytics, error) {
	p, err := s.Get(ctx, pollID)
	if err != nil {
		return polls.Analytics{}, err
	}
	return polls.BuildAnalytics(p, s.names), nil
}

func loadPoll(ctx context.Context, db *sql.DB, id string) (polls.Poll, error) {
	var p polls.Poll
	var status string
	var endDate sql.NullTime
	err := db.QueryRowContext(ctx, `
		select id, title, description, category, anonymous, status, created_by, end_date, created_at
		from polls where id=$1
	`, id).Scan(&p.ID, &p.Title, &p.Description, &p.Category, &p.Anonymous,
		&status, &p.CreatedBy, &endDate, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return polls.Poll{}, polls.ErrNotFound
	}
	if err != nil {
		return polls.Poll{}, err
	}
	p.Status = polls.Status(status)
	if endDate.Valid {
		end := endDate.Time
		p.EndDate = &end
	}

	optRows, err := db.QueryContext(ctx, `
		select text, votes from poll_options where poll_id=$1 order by idx asc
	`, id)
	if err != nil {
		return polls.Poll{}, err
	}
	defer optRows.Close()
	for optRows.Next() {
		var opt polls.Option
		if err := optRows.Scan(&opt.Text, &opt.Votes); err != nil {
			return polls.Poll{}, err
		}
		p.Options = append(p.Options, opt)
	}
	if err := optRows.Err(); err != nil {
		return polls.Poll{}, err
	}

	voteRows, err := db.QueryContext(ctx, `
		select member_id, option_idx, anonymous, voted_at
		from poll_votes where poll_id=$1 order by voted_at asc, member_id asc
	`, id)
	if err != nil {
		return polls.Poll{}, err
	}
	defer voteRows.Close()
	for voteRows.Next() {
		var v polls.Vote
		if err := voteRows.Scan(&v.MemberID, &v.Option, &v.Anonymous, &v.VotedAt); err != nil {
			return polls.Poll{}, err
		}
		p.Votes = append(p.Votes, v)
	}
	return p, voteRows.Err()
}
