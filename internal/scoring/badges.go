package scoring

import "time"

// BadgeRule pairs an award predicate with the badge it grants. Rules are
// evaluated independently after every point change; a badge already present
// on the record is never granted twice.
type BadgeRule struct {
	Predicate func(Record) bool
	Template  Badge
}

// pointsAtLeast builds the common threshold predicate.
func pointsAtLeast(min int) func(Record) bool {
	return func(r Record) bool { return r.Points >= min }
}

// DefaultBadgeRules is the active rule set. New badges are added here without
// touching the award path.
func DefaultBadgeRules() []BadgeRule {
	return []BadgeRule{
		{
			Predicate: pointsAtLeast(10),
			Template:  Badge{Name: "First Share", Description: "Shared your first resource", Icon: "🎁"},
		},
		{
			Predicate: pointsAtLeast(100),
			Template:  Badge{Name: "Active Participant", Description: "Earned 100 points", Icon: "⭐"},
		},
		{
			Predicate: pointsAtLeast(200),
			Template:  Badge{Name: "Super Helper", Description: "Helped community members", Icon: "🦸"},
		},
	}
}

// EvaluateBadges returns the badges newly earned by rec under rules. The
// returned badges carry now as their earned timestamp; rec is not modified.
func EvaluateBadges(rec Record, rules []BadgeRule, now time.Time) []Badge {
	var earned []Badge
	for _, rule := range rules {
		if hasBadge(rec, rule.Template.Name) {
			continue
		}
		if !rule.Predicate(rec) {
			continue
		}
		b := rule.Template
		b.EarnedAt = now
		earned = append(earned, b)
	}
	return earned
}

func hasBadge(rec Record, name string) bool {
	for _, b := range rec.Badges {
		if b.Name == name {
			return true
		}
	}
	return false
}
