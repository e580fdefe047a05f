package alerts

import (
	"context"
	"strings"
	"sync"
	"time"

	"amberhill.org/internal/ids"
)

// Service defines alert lifecycle operations.
type Service interface {
	// Report files a new alert in active status. A panic alert is stored
	// with critical severity regardless of the supplied value.
	Report(ctx context.Context, params ReportParams) (Alert, error)
	Get(ctx context.Context, id string) (Alert, error)
	// List returns alerts matching the filter, newest first.
	List(ctx context.Context, filter Filter) ([]Alert, error)
	// Acknowledge moves an active alert to acknowledged.
	Acknowledge(ctx context.Context, alertID, actorID string) (Alert, error)
	// Resolve closes out an active or acknowledged alert.
	Resolve(ctx context.Context, alertID, actorID, resolution string) (Alert, error)
	// MarkFalseAlarm retires an active alert. An acknowledged alert must be
	// resolved instead.
	MarkFalseAlarm(ctx context.Context, alertID string) (Alert, error)
	Stats(ctx context.Context) (Stats, error)
}

// InMemory implements Service with in-process concurrency safety. Status
// transitions on the same alert are serialized by the service lock, so a race
// cannot produce two terminal outcomes or overwrite a set timestamp.
type InMemory struct {
	mu     sync.RWMutex
	alerts map[string]*Alert
	order  []string
	now    func() time.Time
}

// NewInMemory creates an empty alert store.
func NewInMemory() *InMemory {
	return &InMemory{
		alerts: make(map[string]*Alert),
		now:    time.Now,
	}
}

var _ Service = (*InMemory)(nil)

func (s *InMemory) Report(ctx context.Context, params ReportParams) (Alert, error) {
	if !ValidType(params.Type) {
		return Alert{}, ErrInvalidType
	}
	severity := params.Severity
	if severity == "" {
		severity = SeverityMedium
	}
	if !ValidSeverity(severity) {
		return Alert{}, ErrInvalidSeverity
	}
	// A panic press always escalates to critical, whatever the caller sent.
	if params.IsPanic {
		severity = SeverityCritical
	}
	if strings.TrimSpace(params.Location) == "" {
		return Alert{}, ErrMissingLocation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a := &Alert{
		ID:          ids.New(),
		Type:        params.Type,
		Severity:    severity,
		Location:    strings.TrimSpace(params.Location),
		Description: strings.TrimSpace(params.Description),
		ReportedBy:  params.ReportedBy,
		IsPanic:     params.IsPanic,
		Status:      StatusActive,
		CreatedAt:   s.now().UTC(),
	}
	s.alerts[a.ID] = a
	s.order = append(s.order, a.ID)
	return *a, nil
}

func (s *InMemory) Get(ctx context.Context, id string) (Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return Alert{}, ErrNotFound
	}
	return *a, nil
}

func (s *InMemory) List(ctx context.Context, filter Filter) ([]Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Alert, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		a := s.alerts[s.order[i]]
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.Severity != "" && a.Severity != filter.Severity {
			continue
		}
		if filter.ReportedBy != "" && a.ReportedBy != filter.ReportedBy {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (s *InMemory) Acknowledge(ctx context.Context, alertID, actorID string) (Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[alertID]
	if !ok {
		return Alert{}, ErrNotFound
	}
	if a.Status != StatusActive {
		return Alert{}, ErrInvalidTransition
	}

	now := s.now().UTC()
	a.Status = StatusAcknowledged
	a.AcknowledgedBy = actorID
	a.AcknowledgedAt = &now
	return *a, nil
}

func (s *InMemory) Resolve(ctx context.Context, alertID, actorID, resolution string) (Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[alertID]
	if !ok {
		return Alert{}, ErrNotFound
	}
	if a.Status != StatusActive && a.Status != StatusAcknowledged {
		return Alert{}, ErrInvalidTransition
	}

	now := s.now().UTC()
	a.Status = StatusResolved
	a.ResolvedBy = actorID
	a.ResolvedAt = &now
	a.Resolution = strings.TrimSpace(resolution)
	return *a, nil
}

func (s *InMemory) MarkFalseAlarm(ctx context.Context, alertID string) (Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[alertID]
	if !ok {
		return Alert{}, ErrNotFound
	}
	if a.Status != StatusActive {
		return Alert{}, ErrInvalidTransition
	}

	a.Status = StatusFalseAlarm
	return *a, nil
}

func (s *InMemory) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats Stats
	for _, a := range s.alerts {
		stats.Total++
		switch a.Status {
		case StatusActive:
			stats.Active++
		case StatusAcknowledged:
			stats.Acknowledged++
		case StatusResolved:
			stats.Resolved++
		}
		if a.Severity == SeverityCritical {
			stats.Critical++
		}
		if a.IsPanic {
			stats.Panic++
		}
	}
	return stats, nil
}
