package obs

import "strings"

// CanonicalPath collapses resource identifiers in request paths so metric
// labels stay low-cardinality.
func CanonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(segments) < 3 || segments[0] != "v1" {
		return path
	}

	switch segments[1] {
	case "polls", "alerts":
		// /v1/polls/:id, /v1/polls/:id/vote, /v1/alerts/:id/resolve, ...
		if segments[2] == "stats" {
			return path
		}
		if len(segments) == 3 {
			return "/v1/" + segments[1] + "/:id"
		}
		if len(segments) == 4 {
			return "/v1/" + segments[1] + "/:id/" + segments[3]
		}
	case "scores":
		// /v1/scores/:member_id, /v1/scores/:member_id/activities
		if len(segments) == 3 {
			return "/v1/scores/:member_id"
		}
		if len(segments) == 4 {
			return "/v1/scores/:member_id/" + segments[3]
		}
	}
	return path
}
