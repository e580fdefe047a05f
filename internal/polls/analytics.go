package polls

import "math"

// AnonymousLabel replaces voter names in analytics for anonymous polls.
const AnonymousLabel = "Anonymous"

// BuildAnalytics computes the tally projection for a poll. Percentages are
// rounded to two decimals and are all zero when the poll has no votes. The
// poll's anonymous flag hides every voter label, regardless of the per-vote
// flag.
func BuildAnalytics(p Poll, names NameResolver) Analytics {
	total := len(p.Votes)

	opts := make([]OptionAnalytics, len(p.Options))
	for i, opt := range p.Options {
		pct := 0.0
		if total > 0 {
			pct = math.Round(float64(opt.Votes)/float64(total)*100*100) / 100
		}
		opts[i] = OptionAnalytics{Text: opt.Text, Votes: opt.Votes, Percentage: pct}
	}

	pattern := make([]PatternEntry, len(p.Votes))
	for i, v := range p.Votes {
		label := AnonymousLabel
		if !p.Anonymous {
			if names != nil {
				label = names.DisplayName(v.MemberID)
			} else {
				label = v.MemberID
			}
		}
		pattern[i] = PatternEntry{
			Voter:   label,
			Option:  p.Options[v.Option].Text,
			VotedAt: v.VotedAt,
		}
	}

	return Analytics{TotalVotes: total, Options: opts, VotingPattern: pattern}
}
