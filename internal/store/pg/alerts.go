package pg

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"amberhill.org/internal/alerts"
	"amberhill.org/internal/ids"
)

// AlertStore implements alerts.Service on PostgreSQL. Transition checks run
// inside a row-locking transaction so a race cannot produce two terminal
// outcomes.
type AlertStore struct {
	db *sql.DB
}

var _ alerts.Service = (*AlertStore)(nil)

func (s *AlertStore) Report(ctx context.Context, params alerts.ReportParams) (alerts.Alert, error) {
	if !alerts.ValidType(params.Type) {
		return alerts.Alert{}, alerts.ErrInvalidType
	}
	severity := params.Severity
	if severity == "" {
		severity = alerts.SeverityMedium
	}
	if !alerts.ValidSeverity(severity) {
		return alerts.Alert{}, alerts.ErrInvalidSeverity
	}
	if params.IsPanic {
		severity = alerts.SeverityCritical
	}
	location := strings.TrimSpace(params.Location)
	if location == "" {
		return alerts.Alert{}, alerts.ErrMissingLocation
	}

	a := alerts.Alert{
		ID:          ids.New(),
		Type:        params.Type,
		Severity:    severity,
		Location:    location,
		Description: strings.TrimSpace(params.Description),
		ReportedBy:  params.ReportedBy,
		IsPanic:     params.IsPanic,
		Status:      alerts.StatusActive,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		insert into alerts(id, type, severity, location, description, reported_by, is_panic, status, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, a.ID, string(a.Type), string(a.Severity), a.Location, a.Description,
		a.ReportedBy, a.IsPanic, string(a.Status), a.CreatedAt)
	if err != nil {
		return alerts.Alert{}, err
	}
	return a, nil
}

const alertColumns = `id, type, severity, location, description, reported_by, is_panic, status,
	coalesce(acknowledged_by,''), acknowledged_at, coalesce(resolved_by,''), resolved_at,
	coalesce(resolution,''), created_at`

func (s *AlertStore) Get(ctx context.Context, id string) (alerts.Alert, error) {
	row := s.db.QueryRowContext(ctx, `select `+alertColumns+` from alerts where id=$1`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return alerts.Alert{}, alerts.ErrNotFound
	}
	return a, err
}

func (s *AlertStore) List(ctx context.Context, filter alerts.Filter) ([]alerts.Alert, error) {
	query := `select ` + alertColumns + ` from alerts where 1=1`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` and status=$` + strconv.Itoa(len(args))
	}
	if filter.Severity != "" {
		args = append(args, string(filter.Severity))
		query += ` and severity=$` + strconv.Itoa(len(args))
	}
	if filter.ReportedBy != "" {
		args = append(args, filter.ReportedBy)
		query += ` and reported_by=$` + strconv.Itoa(len(args))
	}
	query += ` order by created_at desc, id desc`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []alerts.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *AlertStore) Acknowledge(ctx context.Context, alertID, actorID string) (alerts.Alert, error) {
	return s.transition(ctx, alertID, func(status alerts.Status) error {
		if status != alerts.StatusActive {
			return alerts.ErrInvalidTransition
		}
		return nil
	}, `update alerts set status=$2, acknowledged_by=$3, acknowledged_at=$4 where id=$1`,
		string(alerts.StatusAcknowledged), actorID, time.Now().UTC())
}

func (s *AlertStore) Resolve(ctx context.Context, alertID, actorID, resolution string) (alerts.Alert, error) {
	return s.transition(ctx, alertID, func(status alerts.Status) error {
		if status != alerts.StatusActive && status != alerts.StatusAcknowledged {
			return alerts.ErrInvalidTransition
		}
		return nil
	}, `update alerts set status=$2, resolved_by=$3, resolved_at=$4, resolution=$5 where id=$1`,
		string(alerts.StatusResolved), actorID, time.Now().UTC(), strings.TrimSpace(resolution))
}

func (s *AlertStore) MarkFalseAlarm(ctx context.Context, alertID string) (alerts.Alert, error) {
	return s.transition(ctx, alertID, func(status alerts.Status) error {
		if status != alerts.StatusActive {
			return alerts.ErrInvalidTransition
		}
		return nil
	}, `update alerts set status=$2 where id=$1`, string(alerts.StatusFalseAlarm))
}

func (s *AlertStore) Stats(ctx context.Context) (alerts.Stats, error) {
	var stats alerts.Stats
	err := s.db.QueryRowContext(ctx, `
		select count(*),
			count(*) filter (where status='active'),
			count(*) filter (where status='acknowledged'),
			count(*) filter (where status='resolved'),
			count(*) filter (where severity='critical'),
			count(*) filter (where is_panic)
		from alerts
	`).Scan(&stats.Total, &stats.Active, &stats.Acknowledged,
		&stats.Resolved, &stats.Critical, &stats.Panic)
	return stats, err
}

// transition locks the alert row, validates the current status and applies
// the update statement with the alert id prepended to args.
func (s *AlertStore) transition(ctx context.Context, alertID string, check func(alerts.Status) error, stmt string, args ...any) (alerts.Alert, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return alerts.Alert{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	err = tx.QueryRowContext(ctx, `select status from alerts where id=$1 for update`, alertID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return alerts.Alert{}, alerts.ErrNotFound
	}
	if err != nil {
		return alerts.Alert{}, err
	}
	if err := check(alerts.Status(status)); err != nil {
		return alerts.Alert{}, err
	}

	if _, err := tx.ExecContext(ctx, stmt, append([]any{alertID}, args...)...); err != nil {
		return alerts.Alert{}, err
	}
	if err := tx.Commit(); err != nil {
		return alerts.Alert{}, err
	}
	return s.Get(ctx, alertID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (alerts.Alert, error) {
	var a alerts.Alert
	var typ, severity, status string
	var ackAt, resAt sql.NullTime
	err := row.Scan(&a.ID, &typ, &severity, &a.Location, &a.Description,
		&a.ReportedBy, &a.IsPanic, &status,
		&a.AcknowledgedBy, &ackAt, &a.ResolvedBy, &resAt,
		&a.Resolution, &a.CreatedAt)
	if err != nil {
		return alerts.Alert{}, err
	}
	a.Type = alerts.Type(typ)
	a.Severity = alerts.Severity(severity)
	a.Status = alerts.Status(status)
	if ackAt.Valid {
		t := ackAt.Time
		a.AcknowledgedAt = &t
	}
	if resAt.Valid {
		t := resAt.Time
		a.ResolvedAt = &t
	}
	return a, nil
}

