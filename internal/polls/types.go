package polls

import (
	"errors"
	"time"
)

// Status is the poll lifecycle state. Transitions only move forward:
// draft -> active -> closed.
type Status string

const (
	StatusDraft  Status = "draft"
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Poll categories, mirroring the community board's taxonomy.
const (
	CategoryMaintenance = "maintenance"
	CategoryBudget      = "budget"
	CategoryAmenity     = "amenity"
	CategoryRules       = "rules"
	CategoryEvent       = "event"
	CategoryOther       = "other"
)

var validCategories = map[string]struct{}{
	CategoryMaintenance: {},
	CategoryBudget:      {},
	CategoryAmenity:     {},
	CategoryRules:       {},
	CategoryEvent:       {},
	CategoryOther:       {},
}

// ValidCategory reports whether the category belongs to the taxonomy.
func ValidCategory(c string) bool {
	_, ok := validCategories[c]
	return ok
}

// Option is one choice on the ballot. Votes is a cached tally kept equal to
// the number of Vote entries pointing at this option.
type Option struct {
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

// Vote is a single member's ballot entry. Anonymous is copied from the poll
// at vote time.
type Vote struct {
	MemberID  string    `json:"member_id"`
	Option    int       `json:"option"`
	Anonymous bool      `json:"anonymous"`
	VotedAt   time.Time `json:"voted_at"`
}

// Poll is a community vote with its full ballot history.
type Poll struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Options     []Option   `json:"options"`
	Anonymous   bool       `json:"anonymous"`
	Status      Status     `json:"status"`
	CreatedBy   string     `json:"created_by"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Votes       []Vote     `json:"votes"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CreateParams carries poll creation input.
type CreateParams struct {
	Title       string
	Description string
	Category    string
	Options     []string
	Anonymous   bool
	CreatedBy   string
	EndDate     *time.Time
	Draft       bool
}

var (
	ErrNotFound            = errors.New("polls: poll not found")
	ErrNotActive           = errors.New("polls: poll is not active")
	ErrDuplicateVote       = errors.New("polls: member already voted")
	ErrInsufficientOptions = errors.New("polls: at least two options are required")
	ErrInvalidOption       = errors.New("polls: option index out of range")
	ErrInvalidCategory     = errors.New("polls: invalid category")
	ErrUnauthorized        = errors.New("polls: only the creator or an admin may do this")
	ErrInvalidTitle        = errors.New("polls: title is required")
)

// OptionAnalytics is the per-option slice of the analytics projection.
type OptionAnalytics struct {
	Text       string  `json:"text"`
	Votes      int     `json:"votes"`
	Percentage float64 `json:"percentage"`
}

// PatternEntry is one row of the voting pattern. Voter is "Anonymous" for
// anonymous polls regardless of the per-vote flag.
type PatternEntry struct {
	Voter   string    `json:"voter"`
	Option  string    `json:"option"`
	VotedAt time.Time `json:"voted_at"`
}

// Analytics is the tally projection for a single poll.
type Analytics struct {
	TotalVotes    int               `json:"total_votes"`
	Options       []OptionAnalytics `json:"options"`
	VotingPattern []PatternEntry    `json:"voting_pattern"`
}
