// Command smoke-engine runs an end-to-end exercise against a running API:
// issue tokens, open a poll, cast ballots, and verify the tally and the
// participation points line up.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

func main() {
	base := os.Getenv("AMBERHILL_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	client := &http.Client{Timeout: 10 * time.Second}

	run := fmt.Sprintf("smoke-%d", time.Now().UnixNano())
	alice := obtainToken(client, base, run+"-alice", "Smoke Alice")
	bob := obtainToken(client, base, run+"-bob", "Smoke Bob")

	var poll struct {
		ID string `json:"id"`
	}
	post(client, base+"/v1/polls", alice, map[string]any{
		"title":    "Smoke check: keep the rooftop garden?",
		"category": "amenity",
		"options":  []string{"Keep it", "Replace it"},
	}, http.StatusCreated, &poll)

	post(client, base+"/v1/polls/"+poll.ID+"/vote", alice, map[string]any{"option": 0}, http.StatusOK, nil)
	post(client, base+"/v1/polls/"+poll.ID+"/vote", bob, map[string]any{"option": 1}, http.StatusOK, nil)

	// A duplicate ballot must be rejected.
	post(client, base+"/v1/polls/"+poll.ID+"/vote", alice, map[string]any{"option": 1}, http.StatusConflict, nil)

	var analytics struct {
		TotalVotes int `json:"total_votes"`
		Options    []struct {
			Percentage float64 `json:"percentage"`
		} `json:"options"`
	}
	get(client, base+"/v1/polls/"+poll.ID+"/analytics", alice, &analytics)
	if analytics.TotalVotes != 2 {
		log.Fatalf("expected 2 votes, got %d", analytics.TotalVotes)
	}
	sum := 0.0
	for _, opt := range analytics.Options {
		sum += opt.Percentage
	}
	if sum < 99.99 || sum > 100.01 {
		log.Fatalf("percentages do not sum to 100: %f", sum)
	}

	var record struct {
		Points int `json:"points"`
	}
	get(client, base+"/v1/scores/"+run+"-alice", alice, &record)
	if record.Points != 2 {
		log.Fatalf("expected 2 participation points, got %d", record.Points)
	}

	fmt.Printf("engine smoke test passed: poll=%s\n", poll.ID)
}

func obtainToken(client *http.Client, base, memberID, name string) string {
	var payload struct {
		Token string `json:"token"`
	}
	post(client, base+"/v1/auth/token", "", map[string]any{
		"member_id": memberID,
		"name":      name,
	}, http.StatusOK, &payload)
	if payload.Token == "" {
		log.Fatal("empty token issued")
	}
	return payload.Token
}

func post(client *http.Client, url, token string, body map[string]any, wantStatus int, out any) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		log.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	do(client, req, wantStatus, out)
}

func get(client *http.Client, url, token string, out any) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		log.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	do(client, req, http.StatusOK, out)
}

func do(client *http.Client, req *http.Request, wantStatus int, out any) {
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		log.Fatalf("%s %s: status %d, want %d", req.Method, req.URL.Path, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("decode %s response: %v", req.URL.Path, err)
		}
	}
}
