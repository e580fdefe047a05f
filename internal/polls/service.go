package polls

import (
	"context"
	"strings"
	"sync"
	"time"

	"amberhill.org/internal/ids"
)

// NameResolver maps member ids to display names for analytics. May be nil.
type NameResolver interface {
	DisplayName(id string) string
}

// Service defines ballot box operations.
type Service interface {
	Create(ctx context.Context, params CreateParams) (Poll, error)
	Get(ctx context.Context, id string) (Poll, error)
	List(ctx context.Context) ([]Poll, error)
	// Activate moves a draft poll to active. Creator or admin only.
	Activate(ctx context.Context, pollID, actorID string, admin bool) (Poll, error)
	// Vote admits at most one ballot per member per poll. The duplicate
	// check, the vote append and the tally increment form one atomic unit.
	Vote(ctx context.Context, pollID, memberID string, optionIndex int) (Poll, error)
	// Close ends voting. Closing an already-closed poll is a no-op success.
	Close(ctx context.Context, pollID, actorID string, admin bool) (Poll, error)
	Analytics(ctx context.Context, pollID string) (Analytics, error)
}

// InMemory implements Service with in-process concurrency safety. Vote
// admission is serialized by the service lock, so two concurrent ballots from
// the same member cannot both land.
type InMemory struct {
	mu    sync.RWMutex
	polls map[string]*Poll
	order []string // creation order, newest listings walk backwards
	names NameResolver
	now   func() time.Time
}

// NewInMemory creates an empty ballot box. names may be nil.
func NewInMemory(names NameResolver) *InMemory {
	return &InMemory{
		polls: make(map[string]*Poll),
		names: names,
		now:   time.Now,
	}
}

var _ Service = (*InMemory)(nil)

func (s *InMemory) Create(ctx context.Context, params CreateParams) (Poll, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return Poll{}, ErrInvalidTitle
	}

	var opts []Option
	for _, text := range params.Options {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		opts = append(opts, Option{Text: text})
	}
	if len(opts) < 2 {
		return Poll{}, ErrInsufficientOptions
	}

	category := strings.TrimSpace(strings.ToLower(params.Category))
	if category == "" {
		category = CategoryOther
	}
	if !ValidCategory(category) {
		return Poll{}, ErrInvalidCategory
	}

	status := StatusActive
	if params.Draft {
		status = StatusDraft
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := &Poll{
		ID:          ids.New(),
		Title:       title,
		Description: strings.TrimSpace(params.Description),
		Category:    category,
		Options:     opts,
		Anonymous:   params.Anonymous,
		Status:      status,
		CreatedBy:   params.CreatedBy,
		EndDate:     params.EndDate,
		CreatedAt:   s.now().UTC(),
	}
	s.polls[p.ID] = p
	s.order = append(s.order, p.ID)
	return copyPoll(p), nil
}

func (s *InMemory) Get(ctx context.Context, id string) (Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.polls[id]
	if !ok {
		return Poll{}, ErrNotFound
	}
	return copyPoll(p), nil
}

func (s *InMemory) List(ctx context.Context) ([]Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Poll, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, copyPoll(s.polls[s.order[i]]))
	}
	return out, nil
}

func (s *InMemory) Activate(ctx context.Context, pollID, actorID string, admin bool) (Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[pollID]
	if !ok {
		return Poll{}, ErrNotFound
	}
	if p.CreatedBy != actorID && !admin {
		return Poll{}, ErrUnauthorized
	}
	if p.Status != StatusDraft {
		return Poll{}, ErrNotActive
	}
	p.Status = StatusActive
	return copyPoll(p), nil
}

func (s *InMemory) Vote(ctx context.Context, pollID, memberID string, optionIndex int) (Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.polls[pollID]
	if !ok {
		return Poll{}, ErrNotFound
	}
	now := s.now().UTC()
	if p.Status != StatusActive {
		return Poll{}, ErrNotActive
	}
	if p.EndDate != nil && now.After(*p.EndDate) {
		return Poll{}, ErrNotActive
	}
	if optionIndex < 0 || optionIndex >= len(p.Options) {
		return Poll{}, ErrInvalidOption
	}
	for _, v := range p.Votes {
		if v.MemberID == memberID {
			return Poll{}, ErrDuplicateVote
		}
	}

	p.Votes = append(p.Votes, Vote{
		MemberID:  memberID,
		Option:    optionIndex,
		Anonymous: p.Anonymous,
		VotedAt:   now,
	})
	p.Options[optionIndex].Votes++

	return copyPoll(p), nil
}

func (s *InMemory) Close(ctx context.Context, pollID, actorID string, admin bool) (Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.polls[pollID]
	if !ok {
		return Poll{}, ErrNotFound
	}
	if p.CreatedBy != actorID && !admin {
		return Poll{}, ErrUnauthorized
	}
	// Closing twice is a no-op; the poll stays closed.
	p.Status = StatusClosed
	return copyPoll(p), nil
}

func (s *InMemory) Analytics(ctx context.Context, pollID string) (Analytics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.polls[pollID]
	if !ok {
		return Analytics{}, ErrNotFound
	}
	return BuildAnalytics(copyPoll(p), s.names), nil
}

func copyPoll(p *Poll) Poll {
	out := *p
	out.Options = append([]Option(nil), p.Options...)
	out.Votes = append([]Vote(nil), p.Votes...)
	if p.EndDate != nil {
		end := *p.EndDate
		out.EndDate = &end
	}
	return out
}
