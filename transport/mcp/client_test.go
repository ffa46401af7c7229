package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/wricardo/mcp-training/battleship/api"
	"github.com/wricardo/mcp-training/battleship/game/engine"
	"github.com/wricardo/mcp-training/battleship/game/service"
	"github.com/wricardo/mcp-training/battleship/game/session"
)

type firstSlot struct{}

func (firstSlot) IntN(int) int { return 0 }

// newBackedClient starts a real REST server in which slot 0 always fires first
func newBackedClient(t *testing.T) *Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := session.NewManager(logger, session.WithRandomSource(firstSlot{}))
	server := httptest.NewServer(api.NewServer(service.NewGameService(manager, logger), nil, logger))
	t.Cleanup(server.Close)
	return NewClient(server.URL)
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), name string, args map[string]interface{}) (string, bool) {
	t.Helper()
	result, err := handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	if err != nil {
		t.Fatalf("%s failed: %v", name, err)
	}
	if result == nil || len(result.Content) == 0 {
		t.Fatalf("%s returned no content", name)
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("%s: expected text content", name)
	}
	return text.Text, result.IsError
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/")

	if client.baseURL != "http://localhost:8080" {
		t.Errorf("Expected trailing slash trimmed, got %s", client.baseURL)
	}
	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}
	if client.GetMCPServer() == nil {
		t.Error("Expected MCP server to be initialized")
	}
}

func TestClient_apiCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var response map[string]string
	if err := client.apiCall(context.Background(), "GET", "/healthz", nil, &response); err != nil {
		t.Fatalf("apiCall failed: %v", err)
	}
	if response["status"] != "healthy" {
		t.Errorf("Expected healthy, got %v", response)
	}
}

func TestClient_apiCall_Error(t *testing.T) {
	client := NewClient("http://invalid-url-that-does-not-exist:9999")
	client.httpClient.Timeout = time.Second

	if err := client.apiCall(context.Background(), "GET", "/api/rules", nil, nil); err == nil {
		t.Error("Expected error for invalid URL")
	}
}

func TestClient_apiCall_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
	}))
	defer server.Close()

	err := NewClient(server.URL).apiCall(context.Background(), "GET", "/api", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "API error") {
		t.Errorf("Expected 'API error', got: %v", err)
	}
}

func TestClient_apiCall_ErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "not your turn", "code": "not_your_turn"})
	}))
	defer server.Close()

	err := NewClient(server.URL).apiCall(context.Background(), "POST", "/api/rooms/x/fire", map[string]string{}, nil)
	if err == nil || err.Error() != "not your turn (not_your_turn)" {
		t.Errorf("Expected decoded error body, got: %v", err)
	}
}

func TestParseShips(t *testing.T) {
	ships, err := parseShips([]interface{}{
		[]interface{}{"A1", "A2"},
		[]interface{}{"C5"},
	})
	if err != nil {
		t.Fatalf("parseShips failed: %v", err)
	}
	if len(ships) != 2 || len(ships[0]) != 2 || ships[1][0] != "C5" {
		t.Errorf("Unexpected ships: %v", ships)
	}

	bad := []interface{}{
		"A1",
		[]interface{}{"A1"},
		[]interface{}{[]interface{}{1}},
		[]interface{}{"A1", "B1"},
	}
	for _, raw := range bad {
		if _, err := parseShips(raw); err == nil {
			t.Errorf("Expected error for %v", raw)
		}
	}
}

func TestClient_FullGame(t *testing.T) {
	client := newBackedClient(t)

	text, isErr := callTool(t, client.handleJoin, "join_game", map[string]interface{}{
		"username":      "alice",
		"connection_id": "alice-conn",
	})
	if isErr || !strings.Contains(text, "connection_id: alice-conn") {
		t.Fatalf("Unexpected join result: %s", text)
	}
	roomID := strings.TrimSpace(strings.SplitN(strings.SplitN(text, "room_id: ", 2)[1], "\n", 2)[0])

	text, _ = callTool(t, client.handleJoin, "join_game", map[string]interface{}{
		"username":      "bob",
		"connection_id": "bob-conn",
	})
	if !strings.Contains(text, "room_id: "+roomID) {
		t.Fatalf("Expected bob in room %s, got: %s", roomID, text)
	}

	for conn, cell := range map[string]string{"alice-conn": "A1", "bob-conn": "B1"} {
		text, isErr = callTool(t, client.handlePlaceFleet, "place_fleet", map[string]interface{}{
			"room_id":       roomID,
			"connection_id": conn,
			"ships":         []interface{}{[]interface{}{cell}},
		})
		if isErr || !strings.Contains(text, "Fleet accepted.") {
			t.Fatalf("place_fleet for %s failed: %s", conn, text)
		}
	}

	text, _ = callTool(t, client.handleGameState, "game_state", map[string]interface{}{
		"room_id":       roomID,
		"connection_id": "alice-conn",
	})
	if !strings.Contains(text, "It is YOUR turn") || !strings.Contains(text, "[A1]") {
		t.Errorf("Expected alice's turn with her fleet, got: %s", text)
	}

	text, isErr = callTool(t, client.handleFire, "fire", map[string]interface{}{
		"room_id":       roomID,
		"connection_id": "bob-conn",
		"target":        "A1",
	})
	if !isErr || !strings.Contains(text, "not_your_turn") {
		t.Errorf("Expected not_your_turn, got: %s", text)
	}

	text, isErr = callTool(t, client.handleFire, "fire", map[string]interface{}{
		"room_id":       roomID,
		"connection_id": "alice-conn",
		"target":        "B1",
	})
	if isErr || !strings.Contains(text, "GAME OVER. Winner: slot 0") {
		t.Errorf("Expected finishing shot, got: %s", text)
	}

	text, isErr = callTool(t, client.handleGameState, "game_state", map[string]interface{}{"room_id": roomID})
	if !isErr || !strings.Contains(text, "game_result") {
		t.Errorf("Expected a pointer to game_result, got: %s", text)
	}

	text, isErr = callTool(t, client.handleGameResult, "game_result", map[string]interface{}{"room_id": roomID})
	if isErr || !strings.Contains(text, "Winner: alice (slot 0)") || !strings.Contains(text, "Loser: bob") {
		t.Errorf("Unexpected result: %s", text)
	}
}

func TestClient_LeaveForfeits(t *testing.T) {
	client := newBackedClient(t)

	callTool(t, client.handleJoin, "join_game", map[string]interface{}{"connection_id": "c0"})
	callTool(t, client.handleJoin, "join_game", map[string]interface{}{"connection_id": "c1"})

	text, isErr := callTool(t, client.handleListRooms, "list_rooms", nil)
	if isErr || !strings.Contains(text, "1 live rooms") || !strings.Contains(text, string(engine.PlacingShips)) {
		t.Errorf("Unexpected room list: %s", text)
	}

	text, isErr = callTool(t, client.handleLeave, "leave_game", map[string]interface{}{"connection_id": "c0"})
	if isErr {
		t.Fatalf("leave_game failed: %s", text)
	}

	text, _ = callTool(t, client.handleListRooms, "list_rooms", nil)
	if text != "No live rooms." {
		t.Errorf("Expected no rooms after forfeit, got: %s", text)
	}

	_, isErr = callTool(t, client.handleLeave, "leave_game", map[string]interface{}{"connection_id": "c0"})
	if !isErr {
		t.Error("Expected a second leave to fail")
	}
}

func TestClient_PlaceFleetRejectsBadShips(t *testing.T) {
	client := newBackedClient(t)

	text, isErr := callTool(t, client.handlePlaceFleet, "place_fleet", map[string]interface{}{
		"room_id":       "abc",
		"connection_id": "c0",
		"ships":         "A1",
	})
	if !isErr || !strings.Contains(text, "array") {
		t.Errorf("Expected ships shape error, got: %s", text)
	}
}

func TestClient_handleGameRules(t *testing.T) {
	client := newBackedClient(t)

	text, isErr := callTool(t, client.handleGameRules, "game_rules", nil)
	if isErr {
		t.Fatalf("game_rules failed: %s", text)
	}
	for _, want := range []string{"RULES", "Max ships: unlimited", "FLOW", "1. "} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in rules, got: %s", want, text)
		}
	}
}

func TestFormatSnapshot_Spectator(t *testing.T) {
	snap := &engine.Snapshot{
		RoomID:   "r1",
		State:    engine.Finished,
		Winner:   1,
		Reason:   engine.FinishReason("forfeit"),
		YourSlot: engine.NoPlayer,
		Players: []engine.PlayerView{
			{Slot: 0, Username: "alice"},
			{Slot: 1, Username: "bob", HasPlacedShips: true, ShipsRemaining: 2},
		},
	}

	text := formatSnapshot(snap)
	for _, want := range []string{"Room r1: finished", "slot 1: bob placed=true ships_remaining=2", "Winner: slot 1 (forfeit)"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q, got: %s", want, text)
		}
	}
	if strings.Contains(text, "(you)") {
		t.Error("Spectator view should not mark a player as you")
	}
}
