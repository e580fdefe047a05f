package polls

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"amberhill.org/internal/members"
)

func newPoll(t *testing.T, s *InMemory, options ...string) Poll {
	t.Helper()
	if len(options) == 0 {
		options = []string{"Yes", "No"}
	}
	p, err := s.Create(context.Background(), CreateParams{
		Title:       "Repaint the lobby?",
		Description: "Budget vote for Q4",
		Category:    CategoryBudget,
		Options:     options,
		CreatedBy:   "creator",
	})
	if err != nil {
		t.Fatalf("create poll: %v", err)
	}
	return p
}

func TestCreateValidation(t *testing.T) {
	s := NewInMemory(nil)
	ctx := context.Background()

	if _, err := s.Create(ctx, CreateParams{Title: "x", Options: []string{"only one"}, CreatedBy: "c"}); err != ErrInsufficientOptions {
		t.Fatalf("expected ErrInsufficientOptions, got %v", err)
	}
	// Blank option texts do not count.
	if _, err := s.Create(ctx, CreateParams{Title: "x", Options: []string{"a", "   "}, CreatedBy: "c"}); err != ErrInsufficientOptions {
		t.Fatalf("expected ErrInsufficientOptions, got %v", err)
	}
	if _, err := s.Create(ctx, CreateParams{Options: []string{"a", "b"}, CreatedBy: "c"}); err != ErrInvalidTitle {
		t.Fatalf("expected ErrInvalidTitle, got %v", err)
	}
	if _, err := s.Create(ctx, CreateParams{Title: "x", Category: "gossip", Options: []string{"a", "b"}, CreatedBy: "c"}); err != ErrInvalidCategory {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}

	p, err := s.Create(ctx, CreateParams{Title: "x", Options: []string{"a", "b"}, CreatedBy: "c"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Category != CategoryOther {
		t.Fatalf("expected default category, got %s", p.Category)
	}
	if p.Status != StatusActive {
		t.Fatalf("expected active status, got %s", p.Status)
	}
}

func TestVoteTalliesAndRejectsDuplicates(t *testing.T) {
	s := NewInMemory(nil)
	ctx := context.Background()
	p := newPoll(t, s)

	if _, err := s.Vote(ctx, p.ID, "alice", 0); err != nil {
		t.Fatal(err)
	}
	updated, err := s.Vote(ctx, p.ID, "bob", 1)
	if err != nil {
		t.Fatal(err)
	}

	if updated.Options[0].Votes != 1 || updated.Options[1].Votes != 1 {
		t.Fatalf("unexpected tallies: %+v", updated.Options)
	}
	if got := updated.Options[0].Votes + updated.Options[1].Votes; got != len(updated.Votes) {
		t.Fatalf("cached tallies %d != vote count %d", got, len(updated.Votes))
	}

	if _, err := s.Vote(ctx, p.ID, "alice", 1); err != ErrDuplicateVote {
		t.Fatalf("expected ErrDuplicateVote, got %v", err)
	}
	if _, err := s.Vote(ctx, "missing", "alice", 0); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Vote(ctx, p.ID, "carol", 7); err != ErrInvalidOption {
		t.Fatalf("expected ErrInvalidOption, got %v", err)
	}
}

func TestVoteRequiresActivePoll(t *testing.T) {
	s := NewInMemory(nil)
	ctx := context.Background()

	draft, err := s.Create(ctx, CreateParams{Title: "x", Options: []string{"a", "b"}, CreatedBy: "c", Draft: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Vote(ctx, draft.ID, "alice", 0); err != ErrNotActive {
		t.Fatalf("expected ErrNotActive for draft, got %v", err)
	}

	if _, err := s.Activate(ctx, draft.ID, "someone-else", false); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	activated, err := s.Activate(ctx, draft.ID, "c", false)
	if err != nil {
		t.Fatal(err)
	}
	if activated.Status != StatusActive {
		t.Fatalf("expected active, got %s", activated.Status)
	}
	if _, err := s.Vote(ctx, draft.ID, "alice", 0); err != nil {
		t.Fatal(err)
	}

	closed, err := s.Close(ctx, draft.ID, "c", false)
	if err != nil {
		t.Fatal(err)
	}
	if closed.Status != StatusClosed {
		t.Fatalf("expected closed, got %s", closed.Status)
	}
	if _, err := s.Vote(ctx, draft.ID, "bob", 0); err != ErrNotActive {
		t.Fatalf("expected ErrNotActive for closed poll, got %v", err)
	}
}

func TestVoteRejectsExpiredPoll(t *testing.T) {
	s := NewInMemory(nil)
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)
	p, err := s.Create(ctx, CreateParams{Title: "x", Options: []string{"a", "b"}, CreatedBy: "c", EndDate: &past})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Vote(ctx, p.ID, "alice", 0); err != ErrNotActive {
		t.Fatalf("expected ErrNotActive past end date, got %v", err)
	}
}

func TestCloseAuthorization(t *testing.T) {
	s := NewInMemory(nil)
	ctx := context.Background()
	p := newPoll(t, s)

	if _, err := s.Close(ctx, p.ID, "random", false); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	// Admins may close polls they did not create.
	if _, err := s.Close(ctx, p.ID, "random-admin", true); err != nil {
		t.Fatal(err)
	}
	// Closing an already-closed poll succeeds and stays closed.
	closed, err := s.Close(ctx, p.ID, "creator", false)
	if err != nil {
		t.Fatal(err)
	}
	if closed.Status != StatusClosed {
		t.Fatalf("expected closed, got %s", closed.Status)
	}
}

func TestConcurrentDuplicateVotes(t *testing.T) {
	s := NewInMemory(nil)
	ctx := context.Background()
	p := newPoll(t, s)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, duplicates := 0, 0

	N := 25
	for i := 0; i < N; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Vote(ctx, p.ID, "alice", 0)
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				successes++
			case ErrDuplicateVote:
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || duplicates != N-1 {
		t.Fatalf("expected exactly one success, got %d successes / %d duplicates", successes, duplicates)
	}

	final, _ := s.Get(ctx, p.ID)
	if len(final.Votes) != 1 || final.Options[0].Votes != 1 {
		t.Fatalf("tally corrupted: votes=%d tally=%d", len(final.Votes), final.Options[0].Votes)
	}
}

func TestAnalyticsPercentagesAndPattern(t *testing.T) {
	dir := members.NewDirectory()
	dir.Register("alice", "Alice", "member")
	dir.Register("bob", "Bob", "member")

	s := NewInMemory(dir)
	ctx := context.Background()
	p := newPoll(t, s)

	if _, err := s.Vote(ctx, p.ID, "alice", 0); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Vote(ctx, p.ID, "bob", 1); err != nil {
		t.Fatal(err)
	}

	a, err := s.Analytics(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if a.TotalVotes != 2 {
		t.Fatalf("unexpected total: %d", a.TotalVotes)
	}
	if a.Options[0].Percentage != 50.00 || a.Options[1].Percentage != 50.00 {
		t.Fatalf("unexpected percentages: %+v", a.Options)
	}

	sum := 0.0
	for _, opt := range a.Options {
		sum += opt.Percentage
	}
	if math.Abs(sum-100) > 0.01 {
		t.Fatalf("percentages do not sum to 100: %f", sum)
	}

	if a.VotingPattern[0].Voter != "Alice" || a.VotingPattern[0].Option != "Yes" {
		t.Fatalf("unexpected pattern entry: %+v", a.VotingPattern[0])
	}
}

func TestAnalyticsEmptyPoll(t *testing.T) {
	s := NewInMemory(nil)
	p := newPoll(t, s)

	a, err := s.Analytics(context.Background(), p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if a.TotalVotes != 0 {
		t.Fatalf("unexpected total: %d", a.TotalVotes)
	}
	for _, opt := range a.Options {
		if opt.Percentage != 0 {
			t.Fatalf("expected zero percentages, got %+v", a.Options)
		}
	}
}

func TestAnonymousPollHidesVoters(t *testing.T) {
	dir := members.NewDirectory()
	dir.Register("alice", "Alice", "member")

	s := NewInMemory(dir)
	ctx := context.Background()
	p, err := s.Create(ctx, CreateParams{
		Title:     "Secret ballot",
		Options:   []string{"a", "b"},
		Anonymous: true,
		CreatedBy: "creator",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Vote(ctx, p.ID, "alice", 0); err != nil {
		t.Fatal(err)
	}

	a, err := s.Analytics(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if a.VotingPattern[0].Voter != AnonymousLabel {
		t.Fatalf("voter identity leaked: %+v", a.VotingPattern[0])
	}
}

func TestListNewestFirst(t *testing.T) {
	s := NewInMemory(nil)
	ctx := context.Background()
	first := newPoll(t, s)
	second := newPoll(t, s)

	list, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("unexpected order: %+v", list)
	}
}
