package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"amberhill.org/internal/auth"
	"amberhill.org/internal/polls"
)

type createPollRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Options     []string   `json:"options"`
	Anonymous   bool       `json:"anonymous"`
	EndDate     *time.Time `json:"end_date"`
	Draft       bool       `json:"draft"`
}

type voteRequest struct {
	Option int `json:"option"`
}

type listPollsResponse struct {
	Items []polls.Poll `json:"items"`
	AsOf  time.Time    `json:"as_of"`
}

func (a *API) handlePollsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createPoll(w, r)
	case http.MethodGet:
		a.listPolls(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePollResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/polls/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	id, action, hasAction := strings.Cut(path, "/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if !hasAction {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.getPoll(w, r, id)
		return
	}

	switch action {
	case "activate":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.activatePoll(w, r, id)
	case "vote":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.votePoll(w, r, id)
	case "close":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.closePoll(w, r, id)
	case "analytics":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.pollAnalytics(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) createPoll(w http.ResponseWriter, r *http.Request) {
	memberID, ok := auth.MemberIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createPollRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Options) > 20 {
		writeError(w, r, http.StatusBadRequest, "too many options")
		return
	}
	if req.EndDate != nil && req.EndDate.Before(time.Now()) {
		writeError(w, r, http.StatusBadRequest, "end_date must be in the future")
		return
	}

	p, err := a.engine.CreatePoll(r.Context(), polls.CreateParams{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Options:     req.Options,
		Anonymous:   req.Anonymous,
		CreatedBy:   memberID,
		EndDate:     req.EndDate,
		Draft:       req.Draft,
	})
	if err != nil {
		handlePollError(w, r, err)
		return
	}

	w.Header().Set("Location", "/v1/polls/"+p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) listPolls(w http.ResponseWriter, r *http.Request) {
	items, err := a.engine.ListPolls(r.Context())
	if err != nil {
		handlePollError(w, r, err)
		return
	}
	if items == nil {
		items = []polls.Poll{}
	}
	writeJSON(w, http.StatusOK, listPollsResponse{
		Items: items,
		AsOf:  time.Now().UTC(),
	})
}

func (a *API) getPoll(w http.ResponseWriter, r *http.Request, id string) {
	p, err := a.engine.GetPoll(r.Context(), id)
	if err != nil {
		handlePollError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) activatePoll(w http.ResponseWriter, r *http.Request, id string) {
	memberID, ok := auth.MemberIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	p, err := a.engine.ActivatePoll(r.Context(), id, memberID, auth.HasRole(r.Context(), auth.RoleAdmin))
	if err != nil {
		handlePollError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) votePoll(w http.ResponseWriter, r *http.Request, id string) {
	memberID, ok := auth.MemberIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var req voteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	p, err := a.engine.Vote(r.Context(), id, memberID, req.Option)
	if err != nil {
		handlePollError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) closePoll(w http.ResponseWriter, r *http.Request, id string) {
	memberID, ok := auth.MemberIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	p, err := a.engine.ClosePoll(r.Context(), id, memberID, auth.HasRole(r.Context(), auth.RoleAdmin))
	if err != nil {
		handlePollError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) pollAnalytics(w http.ResponseWriter, r *http.Request, id string) {
	analytics, err := a.engine.PollAnalytics(r.Context(), id)
	if err != nil {
		handlePollError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

func handlePollError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, polls.ErrInvalidTitle),
		errors.Is(err, polls.ErrInsufficientOptions),
		errors.Is(err, polls.ErrInvalidCategory),
		errors.Is(err, polls.ErrInvalidOption):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, polls.ErrNotActive), errors.Is(err, polls.ErrDuplicateVote):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, polls.ErrUnauthorized):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, polls.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
