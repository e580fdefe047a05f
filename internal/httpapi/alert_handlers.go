package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"amberhill.org/internal/alerts"
	"amberhill.org/internal/auth"
)

type reportAlertRequest struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Location    string `json:"location"`
	Description string `json:"description"`
	IsPanic     bool   `json:"is_panic"`
}

type resolveAlertRequest struct {
	Resolution string `json:"resolution"`
}

type listAlertsResponse struct {
	Items []alerts.Alert `json:"items"`
	AsOf  time.Time      `json:"as_of"`
}

func (a *API) handleAlertsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.reportAlert(w, r)
	case http.MethodGet:
		a.listAlerts(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleAlertStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	stats, err := a.engine.AlertStats(r.Context())
	if err != nil {
		handleAlertError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleAlertResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/alerts/")
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
		a.getAlert(w, r, id)
		return
	}

	switch action {
	case "acknowledge":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.acknowledgeAlert(w, r, id)
	case "resolve":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.resolveAlert(w, r, id)
	case "false-alarm":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.markFalseAlarm(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) reportAlert(w http.ResponseWriter, r *http.Request) {
	memberID, ok := auth.MemberIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var req reportAlertRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	alert, err := a.engine.ReportAlert(r.Context(), alerts.ReportParams{
		Type:        alerts.Type(strings.TrimSpace(req.Type)),
		Severity:    alerts.Severity(strings.TrimSpace(req.Severity)),
		Location:    req.Location,
		Description: req.Description,
		ReportedBy:  memberID,
		IsPanic:     req.IsPanic,
	})
	if err != nil {
		handleAlertError(w, r, err)
		return
	}

	w.Header().Set("Location", "/v1/alerts/"+alert.ID)
	writeJSON(w, http.StatusCreated, alert)
}

func (a *API) listAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := alerts.Filter{
		Status:     alerts.Status(strings.TrimSpace(q.Get("status"))),
		Severity:   alerts.Severity(strings.TrimSpace(q.Get("severity"))),
		ReportedBy: strings.TrimSpace(q.Get("reported_by")),
	}
	items, err := a.engine.ListAlerts(r.Context(), filter)
	if err != nil {
		handleAlertError(w, r, err)
		return
	}
	if items == nil {
		items = []alerts.Alert{}
	}
	writeJSON(w, http.StatusOK, listAlertsResponse{
		Items: items,
		AsOf:  time.Now().UTC(),
	})
}

func (a *API) getAlert(w http.ResponseWriter, r *http.Request, id string) {
	alert, err := a.engine.GetAlert(r.Context(), id)
	if err != nil {
		handleAlertError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (a *API) acknowledgeAlert(w http.ResponseWriter, r *http.Request, id string) {
	actorID, ok := a.requireAdmin(w, r)
	if !ok {
		return
	}
	alert, err := a.engine.AcknowledgeAlert(r.Context(), id, actorID)
	if err != nil {
		handleAlertError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (a *API) resolveAlert(w http.ResponseWriter, r *http.Request, id string) {
	actorID, ok := a.requireAdmin(w, r)
	if !ok {
		return
	}

	var req resolveAlertRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	alert, err := a.engine.ResolveAlert(r.Context(), id, actorID, req.Resolution)
	if err != nil {
		handleAlertError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (a *API) markFalseAlarm(w http.ResponseWriter, r *http.Request, id string) {
	memberID, ok := auth.MemberIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	// Admins may dismiss any active alert; a resident only their own report.
	if !auth.HasRole(r.Context(), auth.RoleAdmin) {
		alert, err := a.engine.GetAlert(r.Context(), id)
		if err != nil {
			handleAlertError(w, r, err)
			return
		}
		if alert.ReportedBy != memberID {
			writeError(w, r, http.StatusForbidden, "only the reporter or an admin may dismiss an alert")
			return
		}
	}

	alert, err := a.engine.MarkFalseAlarm(r.Context(), id)
	if err != nil {
		handleAlertError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (a *API) requireAdmin(w http.ResponseWriter, r *http.Request) (string, bool) {
	memberID, ok := auth.MemberIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	if !auth.HasRole(r.Context(), auth.RoleAdmin) {
		writeError(w, r, http.StatusForbidden, "admin role required")
		return "", false
	}
	return memberID, true
}

func handleAlertError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, alerts.ErrInvalidType),
		errors.Is(err, alerts.ErrInvalidSeverity),
		errors.Is(err, alerts.ErrMissingLocation):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, alerts.ErrInvalidTransition):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, alerts.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
