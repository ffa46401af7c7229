package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/mcp-training/battleship/game/engine"
	"github.com/wricardo/mcp-training/battleship/game/service"
	"github.com/wricardo/mcp-training/battleship/game/session"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Battleship",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Battleship - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Sink every ship of your opponent before they sink yours.

FLOW:
1. join_game pairs you with the next player. Keep the returned connection_id and room_id.
2. place_fleet submits all of your ships at once, each ship a list of cells like ["A1","A2"].
3. Poll game_state until it is your turn, then fire at one cell. Turns alternate after every shot.
4. When the room is gone, game_result tells you who won. leave_game forfeits.

AVAILABLE TOOLS:
- join_game, place_fleet, fire, game_state, game_result, leave_game, list_rooms, game_rules`),
	)

	// Register all tools
	c.registerTools()
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Matchmaking
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "join_game",
		Description: "Join the matchmaking queue. You are paired with the next player who joins.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"username":      stringProp("Display name (optional)"),
				"connection_id": stringProp("Reuse an identity from an earlier game (optional)"),
			},
		},
	}, c.handleJoin)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "leave_game",
		Description: "Leave your room. A game in progress is forfeited to the opponent.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"connection_id": stringProp("Your connection ID"),
			},
			Required: []string{"connection_id"},
		},
	}, c.handleLeave)

	// Game operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "place_fleet",
		Description: "Place all of your ships at once. Cells must not repeat.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id":       stringProp("Room ID from join_game"),
				"connection_id": stringProp("Your connection ID"),
				"ships": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type":  "array",
						"items": map[string]interface{}{"type": "string"},
					},
					"description": `One list of cells per ship, e.g. [["A1","A2","A3"],["C5"]]`,
				},
			},
			Required: []string{"room_id", "connection_id", "ships"},
		},
	}, c.handlePlaceFleet)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "fire",
		Description: "Fire at one cell of the opponent's grid. Only allowed on your turn.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id":       stringProp("Room ID"),
				"connection_id": stringProp("Your connection ID"),
				"target":        stringProp("Cell to fire at, e.g. B4"),
			},
			Required: []string{"room_id", "connection_id", "target"},
		},
	}, c.handleFire)

	// Game state
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_state",
		Description: "Get the room as you see it: state, whose turn, your fleet and the shots so far",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id":       stringProp("Room ID"),
				"connection_id": stringProp("Your connection ID (omit for a spectator view)"),
			},
			Required: []string{"room_id"},
		},
	}, c.handleGameState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_result",
		Description: "Get the outcome of a finished game",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": stringProp("Room ID"),
			},
			Required: []string{"room_id"},
		},
	}, c.handleGameResult)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List live rooms",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListRooms)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_rules",
		Description: "Get the placement limits and the game flow",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameRules)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// apiCall performs a REST call and decodes the JSON response into result
func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return fmt.Errorf("%s (%s)", errResp.Error, errResp.Code)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func (c *Client) handleJoin(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	username, _ := args["username"].(string)
	connectionID, _ := args["connection_id"].(string)

	body := map[string]string{
		"username":      username,
		"connection_id": connectionID,
	}

	var joined service.JoinInfo
	if err := c.apiCall(ctx, "POST", "/api/join", body, &joined); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatJoin(&joined)), nil
}

func (c *Client) handleLeave(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	connectionID, _ := arguments(request)["connection_id"].(string)

	err := c.apiCall(ctx, "DELETE", "/api/connections/"+url.PathEscape(connectionID), nil, nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Connection %s left its room.", connectionID)), nil
}

func (c *Client) handlePlaceFleet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	roomID, _ := args["room_id"].(string)
	connectionID, _ := args["connection_id"].(string)

	ships, err := parseShips(args["ships"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body := map[string]interface{}{
		"connection_id": connectionID,
		"ships":         ships,
	}

	var snap engine.Snapshot
	if err := c.apiCall(ctx, "POST", "/api/rooms/"+url.PathEscape(roomID)+"/fleet", body, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Fleet accepted.\n\n" + formatSnapshot(&snap)), nil
}

func (c *Client) handleFire(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	roomID, _ := args["room_id"].(string)
	connectionID, _ := args["connection_id"].(string)
	target, _ := args["target"].(string)

	body := map[string]string{
		"connection_id": connectionID,
		"target":        target,
	}

	var result service.FireResult
	if err := c.apiCall(ctx, "POST", "/api/rooms/"+url.PathEscape(roomID)+"/fire", body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatFire(&result)), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	roomID, _ := args["room_id"].(string)
	connectionID, _ := args["connection_id"].(string)

	path := "/api/rooms/" + url.PathEscape(roomID)
	if connectionID != "" {
		path += "?connection_id=" + url.QueryEscape(connectionID)
	}

	var snap engine.Snapshot
	if err := c.apiCall(ctx, "GET", path, nil, &snap); err != nil {
		return mcp.NewToolResultError(err.Error() + "\nIf the game has ended, use game_result."), nil
	}

	return mcp.NewToolResultText(formatSnapshot(&snap)), nil
}

func (c *Client) handleGameResult(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roomID, _ := arguments(request)["room_id"].(string)

	var result session.GameResult
	if err := c.apiCall(ctx, "GET", "/api/results/"+url.PathEscape(roomID), nil, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatResult(&result)), nil
}

func (c *Client) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var resp struct {
		Count int                 `json:"count"`
		Rooms []*service.RoomInfo `json:"rooms"`
	}
	if err := c.apiCall(ctx, "GET", "/api/rooms", nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if resp.Count == 0 {
		return mcp.NewToolResultText("No live rooms."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d live rooms:\n", resp.Count)
	for _, room := range resp.Rooms {
		fmt.Fprintf(&b, "- %s [%s] players: %s, shots: %d\n",
			room.ID, room.State, strings.Join(room.Players, " vs "), room.Shots)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGameRules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var rules service.RulesInfo
	if err := c.apiCall(ctx, "GET", "/api/rules", nil, &rules); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("RULES\n")
	fmt.Fprintf(&b, "Max ships: %s\n", limitText(rules.MaxShips))
	fmt.Fprintf(&b, "Max cells per ship: %s\n", limitText(rules.MaxShipCells))
	fmt.Fprintf(&b, "Coordinates: %s\n\nFLOW\n", rules.Coordinates)
	for i, step := range rules.Flow {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// parseShips converts the JSON ships argument into cell lists
func parseShips(raw interface{}) ([][]string, error) {
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("ships must be an array of arrays of cells")
	}
	ships := make([][]string, 0, len(list))
	for i, item := range list {
		cells, ok := item.([]interface{})
		if !ok {
			return nil, fmt.Errorf("ship %d must be an array of cells", i+1)
		}
		ship := make([]string, 0, len(cells))
		for _, cell := range cells {
			s, ok := cell.(string)
			if !ok {
				return nil, fmt.Errorf("ship %d has a non-string cell: %v", i+1, cell)
			}
			ship = append(ship, s)
		}
		ships = append(ships, ship)
	}
	return ships, nil
}

func limitText(n int) string {
	if n == 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d", n)
}

func formatJoin(joined *service.JoinInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", joined.Message)
	fmt.Fprintf(&b, "connection_id: %s\n", joined.ConnectionID)
	fmt.Fprintf(&b, "room_id: %s\n", joined.RoomID)
	fmt.Fprintf(&b, "username: %s (slot %d)\n", joined.Username, joined.Slot)
	if joined.Waiting {
		b.WriteString("\nPoll game_state until the state is placing_ships, then place_fleet.")
	} else {
		b.WriteString("\nPlace your fleet now with place_fleet.")
	}
	return b.String()
}

func formatSnapshot(snap *engine.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Room %s: %s\n", snap.RoomID, snap.State)

	for _, p := range snap.Players {
		marker := ""
		if p.Slot == snap.YourSlot {
			marker = " (you)"
		}
		fmt.Fprintf(&b, "  slot %d: %s%s placed=%t ships_remaining=%d\n",
			p.Slot, p.Username, marker, p.HasPlacedShips, p.ShipsRemaining)
	}

	switch snap.State {
	case engine.ActivePlay:
		if snap.YourSlot == engine.NoPlayer {
			fmt.Fprintf(&b, "Turn: slot %d\n", snap.Turn)
		} else if snap.YourTurn {
			b.WriteString("It is YOUR turn. Fire!\n")
		} else {
			b.WriteString("Waiting for the opponent to fire.\n")
		}
	case engine.Finished:
		fmt.Fprintf(&b, "Winner: slot %d (%s)\n", snap.Winner, snap.Reason)
	}

	if len(snap.YourFleet) > 0 {
		b.WriteString("\nYour fleet:\n")
		for i, ship := range snap.YourFleet {
			status := "afloat"
			if ship.Sunk {
				status = "SUNK"
			}
			fmt.Fprintf(&b, "  %d. %s hits=%s %s\n", i+1, joinCells(ship.Cells), joinCells(ship.Hits), status)
		}
	}
	if len(snap.OpponentSunk) > 0 {
		b.WriteString("\nOpponent ships sunk:\n")
		for _, ship := range snap.OpponentSunk {
			fmt.Fprintf(&b, "  %s\n", joinCells(ship.Cells))
		}
	}

	if len(snap.Shots) > 0 {
		fmt.Fprintf(&b, "\nShots (%d):\n", snap.ShotCount)
		for _, shot := range snap.Shots {
			result := "miss"
			if shot.Sunk {
				result = "hit, sunk"
			} else if shot.Hit {
				result = "hit"
			}
			fmt.Fprintf(&b, "  slot %d -> %s: %s\n", shot.Shooter, shot.Target, result)
		}
	}
	return b.String()
}

func formatFire(result *service.FireResult) string {
	var b strings.Builder
	b.WriteString(result.Message)
	fmt.Fprintf(&b, "\nShips remaining: slot 0 = %d, slot 1 = %d\n", result.Remaining[0], result.Remaining[1])
	if result.Finished {
		fmt.Fprintf(&b, "GAME OVER. Winner: slot %d\n", result.Winner)
	} else {
		fmt.Fprintf(&b, "Next turn: slot %d\n", result.NextTurn)
	}
	return b.String()
}

func formatResult(result *session.GameResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Room %s finished (%s)\n", result.RoomID, result.Reason)
	fmt.Fprintf(&b, "Winner: %s (slot %d)\n", result.WinnerUsername, result.Winner)
	fmt.Fprintf(&b, "Loser: %s\n", result.LoserUsername)
	fmt.Fprintf(&b, "Shots fired: %d\n", result.Shots)
	fmt.Fprintf(&b, "Duration: %s\n", result.FinishedAt.Sub(result.StartedAt).Round(time.Second))
	return b.String()
}

func joinCells(cells []engine.Coordinate) string {
	if len(cells) == 0 {
		return "[]"
	}
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = string(c)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
