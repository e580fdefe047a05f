// Package engage composes the scoring ledger, ballot box, alert lifecycle and
// leaderboard behind a single entry point. Handlers talk to the engine, not to
// the individual services, so cross-cutting behavior like the vote scoring
// award lives in exactly one place.
package engage

import (
	"context"
	"fmt"

	"amberhill.org/internal/alerts"
	"amberhill.org/internal/audit"
	"amberhill.org/internal/events"
	"amberhill.org/internal/leaderboard"
	"amberhill.org/internal/obs"
	"amberhill.org/internal/polls"
	"amberhill.org/internal/scoring"
)

// voteActivityDescription labels the ledger entry created for a cast ballot.
const voteActivityDescription = "Voted in community poll"

// Engine is the engagement facade. All methods are safe for concurrent use;
// they inherit the locking of the underlying services.
type Engine struct {
	ledger scoring.Service
	ballot polls.Service
	alerts alerts.Service
	board  *leaderboard.View
	feed   *events.Stream
}

// New wires the engine. board may be nil when no ranking surface is needed.
func New(ledger scoring.Service, ballot polls.Service, alertSvc alerts.Service, board *leaderboard.View) *Engine {
	return &Engine{
		ledger: ledger,
		ballot: ballot,
		alerts: alertSvc,
		board:  board,
		feed:   events.New(),
	}
}

// Events exposes the live engagement feed for SSE subscribers.
func (e *Engine) Events() *events.Stream {
	return e.feed
}

// RecordActivity awards points for a member action and reports the updated
// record plus any badges earned by this call.
func (e *Engine) RecordActivity(ctx context.Context, memberID string, kind scoring.Kind, description string) (scoring.Record, []scoring.Badge, error) {
	rec, earned, err := e.ledger.Award(ctx, memberID, kind, description)
	if err != nil {
		return scoring.Record{}, nil, err
	}
	if pts, perr := scoring.Points(kind); perr == nil {
		obs.ObservePointsAwarded(string(kind), pts)
		e.feed.Publish(events.Event{Kind: events.KindPointsAwarded, Fields: map[string]any{
			"member_id": memberID,
			"kind":      string(kind),
			"points":    pts,
		}})
	}
	_ = audit.LogEvent(ctx, "engage.activity_recorded", map[string]any{
		"member_id": memberID,
		"kind":      string(kind),
		"points":    rec.Points,
		"badges":    len(earned),
	})
	return rec, earned, nil
}

// MemberStats returns a member's current ledger record. Members with no
// activity get the zero state.
func (e *Engine) MemberStats(ctx context.Context, memberID string) (scoring.Record, error) {
	return e.ledger.Stats(ctx, memberID)
}

// RecentActivities returns a member's latest ledger entries, newest first.
func (e *Engine) RecentActivities(ctx context.Context, memberID string, limit int) ([]scoring.Activity, error) {
	return e.ledger.RecentActivities(ctx, memberID, limit)
}

// Leaderboard returns the top-ranked members.
func (e *Engine) Leaderboard(ctx context.Context, limit int) ([]leaderboard.Entry, error) {
	if e.board == nil {
		return nil, nil
	}
	return e.board.Top(ctx, limit)
}

// CreatePoll opens a new poll.
func (e *Engine) CreatePoll(ctx context.Context, params polls.CreateParams) (polls.Poll, error) {
	p, err := e.ballot.Create(ctx, params)
	if err != nil {
		return polls.Poll{}, err
	}
	_ = audit.LogEvent(ctx, "engage.poll_created", map[string]any{
		"poll_id":  p.ID,
		"category": p.Category,
		"status":   string(p.Status),
	})
	return p, nil
}

// GetPoll returns one poll with its ballot history.
func (e *Engine) GetPoll(ctx context.Context, pollID string) (polls.Poll, error) {
	return e.ballot.Get(ctx, pollID)
}

// ListPolls returns all polls, newest first.
func (e *Engine) ListPolls(ctx context.Context) ([]polls.Poll, error) {
	return e.ballot.List(ctx)
}

// ActivatePoll opens a draft poll for voting.
func (e *Engine) ActivatePoll(ctx context.Context, pollID, actorID string, admin bool) (polls.Poll, error) {
	return e.ballot.Activate(ctx, pollID, actorID, admin)
}

// Vote casts a ballot and then awards participation points. The ballot is the
// source of truth: a failed award never fails or rolls back the vote, it is
// logged and the member's points catch up on their next activity sweep.
func (e *Engine) Vote(ctx context.Context, pollID, memberID string, optionIndex int) (polls.Poll, error) {
	p, err := e.ballot.Vote(ctx, pollID, memberID, optionIndex)
	if err != nil {
		return polls.Poll{}, err
	}
	obs.ObserveVoteCast()
	_ = audit.LogEvent(ctx, "engage.vote_cast", map[string]any{
		"poll_id":   pollID,
		"member_id": memberID,
	})
	fields := map[string]any{"poll_id": pollID, "total_votes": len(p.Votes)}
	if !p.Anonymous {
		fields["member_id"] = memberID
	}
	e.feed.Publish(events.Event{Kind: events.KindVoteCast, Fields: fields})

	if _, _, err := e.ledger.Award(ctx, memberID, scoring.KindPollVote, voteActivityDescription); err != nil {
		obs.LogRequest(map[string]any{
			"level":     "error",
			"msg":       "vote recorded but point award failed",
			"error":     fmt.Sprintf("%v", err),
			"poll_id":   pollID,
			"member_id": memberID,
		})
	} else if pts, perr := scoring.Points(scoring.KindPollVote); perr == nil {
		obs.ObservePointsAwarded(string(scoring.KindPollVote), pts)
	}
	return p, nil
}

// ClosePoll ends voting on a poll.
func (e *Engine) ClosePoll(ctx context.Context, pollID, actorID string, admin bool) (polls.Poll, error) {
	p, err := e.ballot.Close(ctx, pollID, actorID, admin)
	if err != nil {
		return polls.Poll{}, err
	}
	_ = audit.LogEvent(ctx, "engage.poll_closed", map[string]any{"poll_id": pollID})
	e.feed.Publish(events.Event{Kind: events.KindPollClosed, Fields: map[string]any{
		"poll_id":     pollID,
		"total_votes": len(p.Votes),
	}})
	return p, nil
}

// PollAnalytics returns the tally projection for a poll.
func (e *Engine) PollAnalytics(ctx context.Context, pollID string) (polls.Analytics, error) {
	return e.ballot.Analytics(ctx, pollID)
}

// ReportAlert files a new incident alert.
func (e *Engine) ReportAlert(ctx context.Context, params alerts.ReportParams) (alerts.Alert, error) {
	a, err := e.alerts.Report(ctx, params)
	if err != nil {
		return alerts.Alert{}, err
	}
	obs.ObserveAlertReported(string(a.Severity))
	e.feed.Publish(events.Event{Kind: events.KindAlertReported, Fields: map[string]any{
		"alert_id": a.ID,
		"type":     string(a.Type),
		"severity": string(a.Severity),
		"location": a.Location,
		"is_panic": a.IsPanic,
	}})
	_ = audit.LogEvent(ctx, "engage.alert_reported", map[string]any{
		"alert_id": a.ID,
		"type":     string(a.Type),
		"severity": string(a.Severity),
		"is_panic": a.IsPanic,
	})
	return a, nil
}

// GetAlert returns one alert.
func (e *Engine) GetAlert(ctx context.Context, alertID string) (alerts.Alert, error) {
	return e.alerts.Get(ctx, alertID)
}

// ListAlerts returns alerts matching the filter, newest first.
func (e *Engine) ListAlerts(ctx context.Context, filter alerts.Filter) ([]alerts.Alert, error) {
	return e.alerts.List(ctx, filter)
}

// AcknowledgeAlert moves an active alert to acknowledged.
func (e *Engine) AcknowledgeAlert(ctx context.Context, alertID, actorID string) (alerts.Alert, error) {
	a, err := e.alerts.Acknowledge(ctx, alertID, actorID)
	if err != nil {
		return alerts.Alert{}, err
	}
	_ = audit.LogEvent(ctx, "engage.alert_acknowledged", map[string]any{
		"alert_id": alertID,
		"actor_id": actorID,
	})
	return a, nil
}

// ResolveAlert closes out an alert with a resolution note.
func (e *Engine) ResolveAlert(ctx context.Context, alertID, actorID, resolution string) (alerts.Alert, error) {
	a, err := e.alerts.Resolve(ctx, alertID, actorID, resolution)
	if err != nil {
		return alerts.Alert{}, err
	}
	_ = audit.LogEvent(ctx, "engage.alert_resolved", map[string]any{
		"alert_id": alertID,
		"actor_id": actorID,
	})
	e.feed.Publish(events.Event{Kind: events.KindAlertResolved, Fields: map[string]any{
		"alert_id": alertID,
	}})
	return a, nil
}

// MarkFalseAlarm retires an active alert as a false alarm.
func (e *Engine) MarkFalseAlarm(ctx context.Context, alertID string) (alerts.Alert, error) {
	a, err := e.alerts.MarkFalseAlarm(ctx, alertID)
	if err != nil {
		return alerts.Alert{}, err
	}
	_ = audit.LogEvent(ctx, "engage.alert_false_alarm", map[string]any{"alert_id": alertID})
	return a, nil
}

// AlertStats returns the aggregate alert counters.
func (e *Engine) AlertStats(ctx context.Context) (alerts.Stats, error) {
	return e.alerts.Stats(ctx)
}
