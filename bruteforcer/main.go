// Command bruteforcer is an automated battleship player. It joins a server
// over the REST API, places a random or file-based fleet, and fires with a
// hunt-and-target strategy until the game ends.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/battleship/game/engine"
	"github.com/wricardo/mcp-training/battleship/game/service"
	"github.com/wricardo/mcp-training/battleship/game/session"
)

// classicSizes is the standard five ship fleet
var classicSizes = []int{5, 4, 3, 3, 2}

// APIError is a failed REST call
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func errorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// Client calls the REST API as one connection
type Client struct {
	baseURL      string
	connectionID string
	client       *http.Client
}

func NewClient(baseURL, connectionID string) *Client {
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		connectionID: connectionID,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return &APIError{Status: resp.StatusCode, Code: errResp.Code, Message: errResp.Error}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("parse %s response: %w", path, err)
		}
	}
	return nil
}

func (c *Client) Join(ctx context.Context, username string) (*service.JoinInfo, error) {
	var joined service.JoinInfo
	body := map[string]string{"connection_id": c.connectionID, "username": username}
	if err := c.do(ctx, http.MethodPost, "/api/join", body, &joined); err != nil {
		return nil, err
	}
	c.connectionID = joined.ConnectionID
	return &joined, nil
}

func (c *Client) State(ctx context.Context, roomID string) (*engine.Snapshot, error) {
	var snap engine.Snapshot
	path := "/api/rooms/" + url.PathEscape(roomID) + "?connection_id=" + url.QueryEscape(c.connectionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *Client) PlaceFleet(ctx context.Context, roomID string, ships [][]string) error {
	body := map[string]any{"connection_id": c.connectionID, "ships": ships}
	return c.do(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(roomID)+"/fleet", body, nil)
}

func (c *Client) Fire(ctx context.Context, roomID string, target engine.Coordinate) (*service.FireResult, error) {
	var result service.FireResult
	body := map[string]string{"connection_id": c.connectionID, "target": string(target)}
	if err := c.do(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(roomID)+"/fire", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Result(ctx context.Context, roomID string) (*session.GameResult, error) {
	var result session.GameResult
	if err := c.do(ctx, http.MethodGet, "/api/results/"+url.PathEscape(roomID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Player plays whole games through a Client
type Player struct {
	client   *Client
	username string
	strategy *HuntStrategy
	fleet    func() ([][]string, error)
	poll     time.Duration
	delay    time.Duration
	logger   *slog.Logger
}

// GameSummary is what one finished game looked like from this player
type GameSummary struct {
	RoomID string
	Slot   int
	Won    bool
	Reason string
	Shots  int
	Hits   int
}

// Play joins, places the fleet, and fires until the room closes
func (p *Player) Play(ctx context.Context) (*GameSummary, error) {
	joined, err := p.client.Join(ctx, p.username)
	if err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}
	roomID := joined.RoomID
	p.logger.Info("joined", "room_id", roomID, "slot", joined.Slot, "waiting", joined.Waiting)

	p.strategy.Reset()
	summary := &GameSummary{RoomID: roomID, Slot: joined.Slot}
	placed := false

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		snap, err := p.client.State(ctx, roomID)
		if errorCode(err) == engine.CodeUnknownRoom {
			// Rooms are torn down as soon as a game ends
			return p.finish(ctx, summary)
		}
		if err != nil {
			return nil, fmt.Errorf("state: %w", err)
		}

		switch {
		case snap.State == engine.Finished:
			return p.finish(ctx, summary)

		case snap.State == engine.PlacingShips && !placed:
			ships, err := p.fleet()
			if err != nil {
				return nil, err
			}
			err = p.client.PlaceFleet(ctx, roomID, ships)
			switch errorCode(err) {
			case engine.CodeUnknownRoom:
				return p.finish(ctx, summary)
			case engine.CodeNotInState:
				// the opponent left; the next poll sees the end
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("place fleet: %w", err)
			}
			placed = true
			p.logger.Debug("fleet placed", "room_id", roomID, "ships", len(ships))
			continue

		case snap.YourTurn:
			target := p.strategy.NextShot()
			if target == "" {
				return nil, fmt.Errorf("no cells left to fire at in room %s", roomID)
			}
			result, err := p.client.Fire(ctx, roomID, target)
			switch errorCode(err) {
			case engine.CodeUnknownRoom:
				return p.finish(ctx, summary)
			case engine.CodeNotInState:
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("fire at %s: %w", target, err)
			}
			summary.Shots++
			if result.Hit {
				summary.Hits++
			}
			p.strategy.Record(target, result.Hit, result.Sunk)
			p.logger.Debug("fired", "room_id", roomID, "target", target, "hit", result.Hit, "sunk", result.Sunk != nil)
			if result.Finished {
				return p.finish(ctx, summary)
			}
			if p.delay > 0 {
				time.Sleep(p.delay)
			}
			continue
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.poll):
		}
	}
}

func (p *Player) finish(ctx context.Context, summary *GameSummary) (*GameSummary, error) {
	result, err := p.client.Result(ctx, summary.RoomID)
	if err != nil {
		return nil, fmt.Errorf("result: %w", err)
	}
	summary.Won = result.Winner == summary.Slot
	summary.Reason = result.Reason
	return summary, nil
}

// loadFleet reads the ships of a fleet file
func loadFleet(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fleet: %w", err)
	}
	var file struct {
		Ships [][]string `json:"ships"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse fleet: %w", err)
	}
	return file.Ships, nil
}

func main() {
	cmd := &cli.Command{
		Name:  "bruteforcer",
		Usage: "Play battleship automatically over the REST API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "Game server URL", Sources: cli.EnvVars("BATTLESHIP_API_URL")},
			&cli.StringFlag{Name: "username", Value: "bruteforcer", Usage: "Display name"},
			&cli.StringFlag{Name: "fleet", Usage: "Fleet file to place instead of a random fleet"},
			&cli.IntFlag{Name: "grid", Value: 10, Usage: "Grid size to fire at"},
			&cli.IntFlag{Name: "games", Value: 1, Usage: "Games to play in a row"},
			&cli.IntFlag{Name: "seed", Usage: "Random seed (0 picks one)"},
			&cli.DurationFlag{Name: "poll", Value: 200 * time.Millisecond, Usage: "State polling interval"},
			&cli.DurationFlag{Name: "delay", Usage: "Delay between shots"},
			&cli.BoolFlag{Name: "v", Usage: "Verbose output"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	level := slog.LevelInfo
	if cmd.Bool("v") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	seed := uint64(cmd.Int("seed"))
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	grid := int(cmd.Int("grid"))

	fleet := func() ([][]string, error) { return RandomFleet(grid, classicSizes, rng) }
	if path := cmd.String("fleet"); path != "" {
		ships, err := loadFleet(path)
		if err != nil {
			return err
		}
		fleet = func() ([][]string, error) { return ships, nil }
	}

	player := &Player{
		client:   NewClient(cmd.String("url"), ""),
		username: cmd.String("username"),
		strategy: NewHuntStrategy(grid, rng),
		fleet:    fleet,
		poll:     cmd.Duration("poll"),
		delay:    cmd.Duration("delay"),
		logger:   logger,
	}

	logger.Info("connecting to game server", "url", cmd.String("url"), "seed", seed)

	wins := 0
	games := int(cmd.Int("games"))
	for i := 1; i <= games; i++ {
		summary, err := player.Play(ctx)
		if err != nil {
			return fmt.Errorf("game %d: %w", i, err)
		}
		if summary.Won {
			wins++
		}
		logger.Info("game over",
			"game", i,
			"room_id", summary.RoomID,
			"won", summary.Won,
			"reason", summary.Reason,
			"shots", summary.Shots,
			"hits", summary.Hits)
	}

	logger.Info("done", "games", games, "wins", wins)
	return nil
}
