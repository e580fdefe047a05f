package httpapi

import (
	"net/http"
	"strings"
	"time"

	"amberhill.org/internal/audit"
	"amberhill.org/internal/auth"
)

type tokenRequest struct {
	MemberID string   `json:"member_id"`
	Name     string   `json:"name"`
	Roles    []string `json:"roles"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

const tokenTTL = 15 * time.Minute

func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	memberID := strings.TrimSpace(req.MemberID)
	if memberID == "" {
		writeError(w, r, http.StatusBadRequest, "member_id is required")
		return
	}
	roles := make([]string, 0, len(req.Roles))
	for _, role := range req.Roles {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		roles = append(roles, role)
	}
	if len(roles) == 0 {
		roles = []string{auth.RoleMember}
	}

	token, err := auth.GenerateToken(memberID, req.Name, roles, tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	// Known members resolve to display names in leaderboards and analytics.
	if a.members != nil && strings.TrimSpace(req.Name) != "" {
		a.members.Register(memberID, strings.TrimSpace(req.Name), roles[0])
	}

	expiresAt := time.Now().UTC().Add(tokenTTL)
	_ = audit.LogEvent(r.Context(), "auth.token.issued", map[string]any{
		"member_id":  memberID,
		"roles":      roles,
		"expires_at": expiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
