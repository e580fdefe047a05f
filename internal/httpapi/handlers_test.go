package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"amberhill.org/internal/alerts"
	"amberhill.org/internal/auth"
	"amberhill.org/internal/engage"
	"amberhill.org/internal/leaderboard"
	"amberhill.org/internal/members"
	"amberhill.org/internal/polls"
	"amberhill.org/internal/scoring"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("AMBERHILL_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()

	directory := members.NewDirectory()
	ledger := scoring.NewInMemory()
	ballot := polls.NewInMemory(directory)
	board := leaderboard.NewView(ledger, directory)
	engine := engage.New(ledger, ballot, alerts.NewInMemory(), board)

	api := New(ReadyProbe{}, "test", engine, directory)
	api.rateBurst = 1000
	api.ratePerSec = 1000

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func (c *apiClient) obtainToken(memberID, name string, roles []string) map[string]string {
	c.t.Helper()
	resp := c.post("/v1/auth/token", map[string]any{
		"member_id": memberID,
		"name":      name,
		"roles":     roles,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected token status: %d", resp.StatusCode)
	}
	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode token response: %v", err)
	}
	if payload.Token == "" {
		c.t.Fatalf("empty token issued")
	}
	return map[string]string{"Authorization": "Bearer " + payload.Token}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestPollVotingFlow(t *testing.T) {
	api := newTestAPI(t)
	alice := api.obtainToken("alice", "Alice", nil)
	bob := api.obtainToken("bob", "Bob", nil)

	resp := api.post("/v1/polls", map[string]any{
		"title":    "Install bike racks?",
		"category": "amenity",
		"options":  []string{"Yes", "No"},
	}, alice)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected create status: %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc == "" {
		t.Fatal("missing Location header")
	}
	poll := decode[polls.Poll](t, resp)

	resp = api.post("/v1/polls/"+poll.ID+"/vote", map[string]any{"option": 0}, alice)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected vote status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// One ballot per member.
	resp = api.post("/v1/polls/"+poll.ID+"/vote", map[string]any{"option": 1}, alice)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate vote, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/polls/"+poll.ID+"/vote", map[string]any{"option": 1}, bob)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected vote status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/polls/"+poll.ID+"/analytics", nil, alice)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected analytics status: %d", resp.StatusCode)
	}
	analytics := decode[polls.Analytics](t, resp)
	if analytics.TotalVotes != 2 {
		t.Fatalf("unexpected total votes: %d", analytics.TotalVotes)
	}
	if analytics.Options[0].Percentage != 50.00 {
		t.Fatalf("unexpected percentage: %+v", analytics.Options)
	}
	if analytics.VotingPattern[0].Voter != "Alice" {
		t.Fatalf("voter name not resolved: %+v", analytics.VotingPattern[0])
	}

	// Voting pays participation points.
	resp = api.get("/v1/scores/alice", nil, alice)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected stats status: %d", resp.StatusCode)
	}
	rec := decode[scoring.Record](t, resp)
	if rec.Points != 2 {
		t.Fatalf("expected 2 points, got %d", rec.Points)
	}

	resp = api.get("/v1/leaderboard", nil, alice)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected leaderboard status: %d", resp.StatusCode)
	}
	board := decode[leaderboardResponse](t, resp)
	if len(board.Entries) != 2 {
		t.Fatalf("unexpected leaderboard size: %d", len(board.Entries))
	}
	if board.Entries[0].Name != "Alice" {
		t.Fatalf("leaderboard name not resolved: %+v", board.Entries[0])
	}
}

func TestPollCloseAuthorization(t *testing.T) {
	api := newTestAPI(t)
	creator := api.obtainToken("creator", "Creator", nil)
	stranger := api.obtainToken("stranger", "Stranger", nil)
	admin := api.obtainToken("root", "Root", []string{"admin"})

	resp := api.post("/v1/polls", map[string]any{
		"title":   "Quiet hours from 10pm?",
		"options": []string{"Yes", "No"},
	}, creator)
	poll := decode[polls.Poll](t, resp)

	resp = api.post("/v1/polls/"+poll.ID+"/close", nil, stranger)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/polls/"+poll.ID+"/close", nil, admin)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected admin close to succeed, got %d", resp.StatusCode)
	}
	closed := decode[polls.Poll](t, resp)
	if closed.Status != polls.StatusClosed {
		t.Fatalf("unexpected status: %s", closed.Status)
	}
}

func TestActivityRecording(t *testing.T) {
	api := newTestAPI(t)
	alice := api.obtainToken("alice", "Alice", nil)

	resp := api.post("/v1/activities", map[string]any{
		"kind":        "resource_shared",
		"description": "Shared a pressure washer",
	}, alice)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	result := decode[recordActivityResponse](t, resp)
	if result.Record.Points != 10 {
		t.Fatalf("unexpected points: %d", result.Record.Points)
	}
	if len(result.NewBadges) != 1 || result.NewBadges[0].Name != "First Share" {
		t.Fatalf("expected First Share badge, got %+v", result.NewBadges)
	}

	resp = api.post("/v1/activities", map[string]any{"kind": "loitering"}, alice)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown kind, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAlertFlow(t *testing.T) {
	api := newTestAPI(t)
	resident := api.obtainToken("dave", "Dave", nil)
	admin := api.obtainToken("root", "Root", []string{"admin"})

	resp := api.post("/v1/alerts", map[string]any{
		"type":     "security",
		"severity": "low",
		"location": "Block B stairwell",
		"is_panic": true,
	}, resident)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected report status: %d", resp.StatusCode)
	}
	alert := decode[alerts.Alert](t, resp)
	if alert.Severity != alerts.SeverityCritical {
		t.Fatalf("panic alert not escalated: %s", alert.Severity)
	}

	// Residents cannot work the alert queue.
	resp = api.post("/v1/alerts/"+alert.ID+"/acknowledge", nil, resident)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/alerts/"+alert.ID+"/acknowledge", nil, admin)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected acknowledge status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/alerts/"+alert.ID+"/resolve", map[string]any{
		"resolution": "patrol checked, no intrusion",
	}, admin)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected resolve status: %d", resp.StatusCode)
	}
	resolved := decode[alerts.Alert](t, resp)
	if resolved.Status != alerts.StatusResolved {
		t.Fatalf("unexpected status: %s", resolved.Status)
	}

	// A second resolve is an invalid transition.
	resp = api.post("/v1/alerts/"+alert.ID+"/resolve", map[string]any{
		"resolution": "again",
	}, admin)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/alerts/stats", nil, admin)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected stats status: %d", resp.StatusCode)
	}
	stats := decode[alerts.Stats](t, resp)
	if stats.Total != 1 || stats.Resolved != 1 || stats.Panic != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestFalseAlarmOwnership(t *testing.T) {
	api := newTestAPI(t)
	reporter := api.obtainToken("erin", "Erin", nil)
	other := api.obtainToken("frank", "Frank", nil)

	resp := api.post("/v1/alerts", map[string]any{
		"type":     "fire",
		"location": "Kitchen, unit 12",
	}, reporter)
	alert := decode[alerts.Alert](t, resp)

	resp = api.post("/v1/alerts/"+alert.ID+"/false-alarm", nil, other)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-reporter, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/alerts/"+alert.ID+"/false-alarm", nil, reporter)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected dismiss status: %d", resp.StatusCode)
	}
	dismissed := decode[alerts.Alert](t, resp)
	if dismissed.Status != alerts.StatusFalseAlarm {
		t.Fatalf("unexpected status: %s", dismissed.Status)
	}
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/v1/polls", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/polls", nil, map[string]string{"Authorization": "Bearer not-a-token"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Health endpoints stay public.
	resp = api.get("/healthz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for healthz, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCreatePollValidation(t *testing.T) {
	api := newTestAPI(t)
	alice := api.obtainToken("alice", "Alice", nil)

	resp := api.post("/v1/polls", map[string]any{
		"title":   "Lonely poll",
		"options": []string{"only one"},
	}, alice)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/polls", map[string]any{
		"title":    "Bad category",
		"category": "gossip",
		"options":  []string{"a", "b"},
	}, alice)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Unknown fields are rejected.
	resp = api.post("/v1/polls", map[string]any{
		"title":   "Extra",
		"options": []string{"a", "b"},
		"bogus":   true,
	}, alice)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestZeroScoreForUnknownMember(t *testing.T) {
	api := newTestAPI(t)
	alice := api.obtainToken("alice", "Alice", nil)

	resp := api.get("/v1/scores/ghost", nil, alice)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	rec := decode[scoring.Record](t, resp)
	if rec.Points != 0 || rec.Rank != scoring.RankBronze || rec.Level != 1 {
		t.Fatalf("unexpected zero record: %+v", rec)
	}
}
