package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"amberhill.org/internal/auth"
	"amberhill.org/internal/leaderboard"
	"amberhill.org/internal/scoring"
)

type recordActivityRequest struct {
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

type recordActivityResponse struct {
	Record    scoring.Record  `json:"record"`
	NewBadges []scoring.Badge `json:"new_badges"`
}

type listActivitiesResponse struct {
	Items []scoring.Activity `json:"items"`
	AsOf  time.Time          `json:"as_of"`
}

type leaderboardResponse struct {
	Entries []leaderboard.Entry `json:"entries"`
	AsOf    time.Time           `json:"as_of"`
}

func (a *API) handleActivities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	memberID, ok := auth.MemberIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var req recordActivityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	kind := scoring.Kind(strings.TrimSpace(req.Kind))
	if kind == "" {
		writeError(w, r, http.StatusBadRequest, "kind is required")
		return
	}

	rec, earned, err := a.engine.RecordActivity(r.Context(), memberID, kind, strings.TrimSpace(req.Description))
	if err != nil {
		handleScoringError(w, r, err)
		return
	}
	if earned == nil {
		earned = []scoring.Badge{}
	}
	writeJSON(w, http.StatusCreated, recordActivityResponse{
		Record:    rec,
		NewBadges: earned,
	})
}

func (a *API) handleScoreResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1/scores/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if strings.HasSuffix(path, "/activities") {
		memberID := strings.TrimSuffix(path, "/activities")
		memberID = strings.TrimSuffix(memberID, "/")
		if memberID == "" {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		a.listActivities(w, r, memberID)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	a.getStats(w, r, path)
}

func (a *API) getStats(w http.ResponseWriter, r *http.Request, memberID string) {
	rec, err := a.engine.MemberStats(r.Context(), memberID)
	if err != nil {
		handleScoringError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) listActivities(w http.ResponseWriter, r *http.Request, memberID string) {
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 0, 1, 100)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	items, err := a.engine.RecentActivities(r.Context(), memberID, limit)
	if err != nil {
		handleScoringError(w, r, err)
		return
	}
	if items == nil {
		items = []scoring.Activity{}
	}
	writeJSON(w, http.StatusOK, listActivitiesResponse{
		Items: items,
		AsOf:  time.Now().UTC(),
	})
}

func (a *API) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 0, 1, 100)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := a.engine.Leaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{
		Entries: entries,
		AsOf:    time.Now().UTC(),
	})
}

func handleScoringError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, scoring.ErrInvalidKind):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, scoring.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
