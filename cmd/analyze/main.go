// Command analyze prints quick, human-readable statistics about finished
// games. It reads the results history from a running server, or from a JSON
// file saved from GET /api/results, and summarizes how games ended, how long
// they took and how each player fared.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/battleship/game/engine"
	"github.com/wricardo/mcp-training/battleship/game/session"
)

// forfeitWarnRatio flags a history where too many games end early
const forfeitWarnRatio = 0.5

// PlayerRecord is one username's tally
type PlayerRecord struct {
	Username string
	Wins     int
	Losses   int
}

// Report is the analysis of a results history
type Report struct {
	Games    int
	ByReason map[string]int
	Players  []PlayerRecord

	TotalShots   int
	Shortest     *session.GameResult
	Longest      *session.GameResult
	LongestSpent time.Duration
}

// AverageShots per completed game, zero when there were none
func (r *Report) AverageShots() float64 {
	if r.Games == 0 {
		return 0
	}
	return float64(r.TotalShots) / float64(r.Games)
}

// Analyze tallies results
func Analyze(results []session.GameResult) *Report {
	report := &Report{ByReason: make(map[string]int)}
	players := make(map[string]*PlayerRecord)

	record := func(name string) *PlayerRecord {
		if players[name] == nil {
			players[name] = &PlayerRecord{Username: name}
		}
		return players[name]
	}

	for i := range results {
		res := &results[i]
		report.Games++
		report.ByReason[res.Reason]++
		report.TotalShots += res.Shots

		record(res.WinnerUsername).Wins++
		record(res.LoserUsername).Losses++

		// Only games played to the end count for length
		if res.Reason == string(engine.ReasonFleetDestroyed) {
			if report.Shortest == nil || res.Shots < report.Shortest.Shots {
				report.Shortest = res
			}
		}
		if spent := res.FinishedAt.Sub(res.StartedAt); report.Longest == nil || spent > report.LongestSpent {
			report.Longest = res
			report.LongestSpent = spent
		}
	}

	for _, p := range players {
		report.Players = append(report.Players, *p)
	}
	sort.Slice(report.Players, func(i, j int) bool {
		a, b := report.Players[i], report.Players[j]
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		return a.Username < b.Username
	})
	return report
}

// Print writes the report
func Print(w io.Writer, report *Report) {
	fmt.Fprintf(w, "Games: %d\n", report.Games)
	if report.Games == 0 {
		fmt.Fprintln(w, "No finished games to analyze")
		return
	}

	reasons := make([]string, 0, len(report.ByReason))
	for reason := range report.ByReason {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(w, "  %s: %d\n", reason, report.ByReason[reason])
	}

	fmt.Fprintf(w, "Average shots per game: %.1f\n", report.AverageShots())
	if report.Shortest != nil {
		fmt.Fprintf(w, "Shortest game: %s, %s beat %s in %d shots\n",
			report.Shortest.RoomID, report.Shortest.WinnerUsername, report.Shortest.LoserUsername, report.Shortest.Shots)
	}
	if report.Longest != nil {
		fmt.Fprintf(w, "Longest game: %s, %s\n", report.Longest.RoomID, report.LongestSpent.Round(time.Second))
	}

	fmt.Fprintln(w, "\nPlayers:")
	for _, p := range report.Players {
		fmt.Fprintf(w, "  %-20s %3d W %3d L\n", p.Username, p.Wins, p.Losses)
	}

	forfeits := report.ByReason[string(engine.ReasonForfeit)]
	if ratio := float64(forfeits) / float64(report.Games); ratio > forfeitWarnRatio {
		fmt.Fprintf(w, "\n⚠️  WARNING: %d of %d games ended by forfeit\n", forfeits, report.Games)
	} else {
		fmt.Fprintf(w, "\n✅ Most games were played to the end\n")
	}
}

// decodeResults accepts either the GET /api/results body or a bare array
func decodeResults(r io.Reader) ([]session.GameResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	if trimmed := strings.TrimSpace(string(data)); strings.HasPrefix(trimmed, "[") {
		var results []session.GameResult
		if err := json.Unmarshal(data, &results); err != nil {
			return nil, fmt.Errorf("parse results: %w", err)
		}
		return results, nil
	}

	var body struct {
		Results []session.GameResult `json:"results"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}
	return body.Results, nil
}

func fetchResults(ctx context.Context, baseURL string) ([]session.GameResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(baseURL, "/")+"/api/results", nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch results: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch results: %s", resp.Status)
	}
	return decodeResults(resp.Body)
}

func main() {
	cmd := &cli.Command{
		Name:  "analyze",
		Usage: "Summarize finished battleship games",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "Server to read /api/results from", Sources: cli.EnvVars("BATTLESHIP_API_URL")},
			&cli.StringFlag{Name: "file", Usage: "Read results from a JSON file instead"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var results []session.GameResult
			var err error
			if path := cmd.String("file"); path != "" {
				f, openErr := os.Open(path)
				if openErr != nil {
					return openErr
				}
				defer f.Close()
				results, err = decodeResults(f)
			} else {
				results, err = fetchResults(ctx, cmd.String("url"))
			}
			if err != nil {
				return err
			}

			Print(os.Stdout, Analyze(results))
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
