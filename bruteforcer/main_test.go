package main

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/battleship/api"
	"github.com/wricardo/mcp-training/battleship/game/engine"
	"github.com/wricardo/mcp-training/battleship/game/service"
	"github.com/wricardo/mcp-training/battleship/game/session"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startAPI(t *testing.T) string {
	t.Helper()
	manager := session.NewManager(quietLogger())
	server := httptest.NewServer(api.NewServer(service.NewGameService(manager, quietLogger()), nil, quietLogger()))
	t.Cleanup(server.Close)
	return server.URL
}

func newPlayer(baseURL, username string, seed uint64) *Player {
	rng := newRand(seed)
	return &Player{
		client:   NewClient(baseURL, ""),
		username: username,
		strategy: NewHuntStrategy(10, rng),
		fleet:    func() ([][]string, error) { return RandomFleet(10, classicSizes, rng) },
		poll:     5 * time.Millisecond,
		logger:   quietLogger(),
	}
}

func TestBotsPlayFullGame(t *testing.T) {
	baseURL := startAPI(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	type outcome struct {
		summary *GameSummary
		err     error
	}
	results := make(chan outcome, 2)

	for i, name := range []string{"alpha", "bravo"} {
		p := newPlayer(baseURL, name, uint64(i+10))
		go func() {
			summary, err := p.Play(ctx)
			results <- outcome{summary, err}
		}()
	}

	var summaries []*GameSummary
	for i := 0; i < 2; i++ {
		res := <-results
		require.NoError(t, res.err)
		summaries = append(summaries, res.summary)
	}

	assert.Equal(t, summaries[0].RoomID, summaries[1].RoomID)
	assert.NotEqual(t, summaries[0].Won, summaries[1].Won, "exactly one player wins")
	for _, s := range summaries {
		assert.Equal(t, string(engine.ReasonFleetDestroyed), s.Reason)
		if s.Won {
			// every cell of the classic fleet was hit
			assert.Equal(t, 17, s.Hits)
		}
	}
}

func TestPlayerSurvivesForfeit(t *testing.T) {
	baseURL := startAPI(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bot := newPlayer(baseURL, "bot", 1)
	done := make(chan *GameSummary, 1)
	go func() {
		summary, err := bot.Play(ctx)
		assert.NoError(t, err)
		done <- summary
	}()

	// a human joins and leaves once the game is paired
	human := NewClient(baseURL, "human")
	joined, err := human.Join(ctx, "human")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		snap, err := human.State(ctx, joined.RoomID)
		return err == nil && snap.State != engine.WaitingForOpponent
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, human.do(ctx, "DELETE", "/api/connections/human", nil, nil))

	select {
	case summary := <-done:
		require.NotNil(t, summary)
		assert.True(t, summary.Won)
		assert.Equal(t, string(engine.ReasonForfeit), summary.Reason)
	case <-ctx.Done():
		t.Fatal("bot did not notice the forfeit")
	}
}

func TestClientErrors(t *testing.T) {
	client := NewClient(startAPI(t), "nobody")

	_, err := client.State(context.Background(), "missing")
	assert.Equal(t, engine.CodeUnknownRoom, errorCode(err))

	_, err = client.Result(context.Background(), "missing")
	assert.Equal(t, service.CodeResultNotFound, errorCode(err))

	assert.Empty(t, errorCode(assert.AnError))
}

func TestLoadFleet(t *testing.T) {
	ships, err := loadFleet(filepath.Join("..", "fleets", "classic.json"))
	if errors.Is(err, fs.ErrNotExist) {
		t.Skip("Skipping test - fleets directory not found")
	}
	require.NoError(t, err)
	assert.Len(t, ships, 5)

	_, err = loadFleet("/non/existent/fleet.json")
	assert.Error(t, err)
}
