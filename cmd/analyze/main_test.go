package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/battleship/game/session"
)

var start = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func sampleResults() []session.GameResult {
	return []session.GameResult{
		{RoomID: "a1", WinnerUsername: "alice", LoserUsername: "bob", Reason: "fleet_destroyed", Shots: 40,
			StartedAt: start, FinishedAt: start.Add(3 * time.Minute)},
		{RoomID: "b2", WinnerUsername: "alice", LoserUsername: "carol", Reason: "fleet_destroyed", Shots: 22,
			StartedAt: start, FinishedAt: start.Add(time.Minute)},
		{RoomID: "c3", WinnerUsername: "bob", LoserUsername: "alice", Reason: "forfeit", Shots: 3,
			StartedAt: start, FinishedAt: start.Add(10 * time.Minute)},
	}
}

func TestAnalyze(t *testing.T) {
	report := Analyze(sampleResults())

	if report.Games != 3 {
		t.Errorf("Expected 3 games, got %d", report.Games)
	}
	if report.ByReason["fleet_destroyed"] != 2 || report.ByReason["forfeit"] != 1 {
		t.Errorf("Unexpected reasons: %v", report.ByReason)
	}
	if report.AverageShots() != 65.0/3 {
		t.Errorf("Expected average %.2f, got %.2f", 65.0/3, report.AverageShots())
	}

	// forfeits never count as the shortest game
	if report.Shortest == nil || report.Shortest.RoomID != "b2" {
		t.Errorf("Expected shortest game b2, got %+v", report.Shortest)
	}
	if report.Longest == nil || report.Longest.RoomID != "c3" || report.LongestSpent != 10*time.Minute {
		t.Errorf("Expected longest game c3, got %+v", report.Longest)
	}

	if len(report.Players) != 3 {
		t.Fatalf("Expected 3 players, got %d", len(report.Players))
	}
	top := report.Players[0]
	if top.Username != "alice" || top.Wins != 2 || top.Losses != 1 {
		t.Errorf("Expected alice first with 2-1, got %+v", top)
	}
}

func TestAnalyze_Empty(t *testing.T) {
	report := Analyze(nil)
	if report.Games != 0 || report.AverageShots() != 0 {
		t.Errorf("Expected empty report, got %+v", report)
	}

	var out bytes.Buffer
	Print(&out, report)
	if !strings.Contains(out.String(), "No finished games") {
		t.Errorf("Unexpected output: %s", out.String())
	}
}

func TestPrint(t *testing.T) {
	var out bytes.Buffer
	Print(&out, Analyze(sampleResults()))

	expected := []string{
		"Games: 3",
		"fleet_destroyed: 2",
		"forfeit: 1",
		"Shortest game: b2, alice beat carol in 22 shots",
		"Longest game: c3, 10m0s",
		"Most games were played to the end",
	}
	for _, want := range expected {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected %q in output, got: %s", want, out.String())
		}
	}
}

func TestPrint_ForfeitWarning(t *testing.T) {
	results := []session.GameResult{
		{RoomID: "x", WinnerUsername: "a", LoserUsername: "b", Reason: "forfeit"},
		{RoomID: "y", WinnerUsername: "a", LoserUsername: "b", Reason: "forfeit"},
	}

	var out bytes.Buffer
	Print(&out, Analyze(results))
	if !strings.Contains(out.String(), "WARNING: 2 of 2 games ended by forfeit") {
		t.Errorf("Expected forfeit warning, got: %s", out.String())
	}
}

func TestDecodeResults(t *testing.T) {
	data, _ := json.Marshal(sampleResults())

	results, err := decodeResults(bytes.NewReader(data))
	if err != nil || len(results) != 3 {
		t.Errorf("Bare array: got %d results, err %v", len(results), err)
	}

	wrapped, _ := json.Marshal(map[string]any{"count": 3, "results": sampleResults()})
	results, err = decodeResults(bytes.NewReader(wrapped))
	if err != nil || len(results) != 3 {
		t.Errorf("Wrapped body: got %d results, err %v", len(results), err)
	}

	if _, err := decodeResults(strings.NewReader("{not json")); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestFetchResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/results" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"count": 3, "results": sampleResults()})
	}))
	defer server.Close()

	results, err := fetchResults(context.Background(), server.URL+"/")
	if err != nil {
		t.Fatalf("fetchResults failed: %v", err)
	}
	if len(results) != 3 || results[0].RoomID != "a1" {
		t.Errorf("Unexpected results: %+v", results)
	}

	if _, err := fetchResults(context.Background(), server.URL+"/missing"); err == nil {
		t.Error("Expected error for non-200 response")
	}
}
