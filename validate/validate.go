// Command validate checks fleet layout JSON files, by default every file in
// the fleets directory. It checks:
//   - JSON structure and required fields
//   - The placement rules the server enforces (no blank or duplicate cells,
//     ship and cell limits)
//   - On a classic grid: every cell is a letter/number pair inside the grid
//   - Connectivity: the cells of each ship form one orthogonally connected
//     straight line
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/battleship/game/engine"
)

// FleetFile mirrors the JSON schema for a fleet layout.
type FleetFile struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Ships       [][]string `json:"ships"`
}

// Options control which checks run.
type Options struct {
	Rules engine.Rules
	// Grid is the side of a lettered grid (10 for A1..J10). Zero skips the
	// grid and shape checks.
	Grid int
}

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// validateFleetFile loads and validates a single fleet file.
func validateFleetFile(filePath string, opts Options) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	var fleet FleetFile
	if err := json.Unmarshal(data, &fleet); err != nil {
		result.fail("Invalid JSON: %v", err)
		return result
	}

	if fleet.Name == "" {
		result.fail("name is required")
	}
	if len(fleet.Ships) == 0 {
		result.fail("ships is empty")
		return result
	}

	cellSets := make([][]engine.Coordinate, len(fleet.Ships))
	totalCells := 0
	for i, ship := range fleet.Ships {
		cellSets[i] = make([]engine.Coordinate, len(ship))
		for j, cell := range ship {
			cellSets[i][j] = engine.Coordinate(cell)
		}
		totalCells += len(ship)
	}

	// Same check the server runs on submission
	if _, err := engine.PlaceShips(cellSets, opts.Rules); err != nil {
		result.fail("Rejected by placement rules: %v", err)
	}

	if opts.Grid > 0 {
		for i, ship := range fleet.Ships {
			shape := validateShipShape(ship, opts.Grid)
			if !shape.Valid {
				result.Valid = false
				for _, msg := range shape.Errors {
					result.Errors = append(result.Errors, fmt.Sprintf("Ship %d: %s", i+1, msg))
				}
			}
		}
	}

	// Add informational data
	if result.Valid {
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Name: %s", fleet.Name))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Ships: %d", len(fleet.Ships)))
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Cells: %d", totalCells))
		if opts.Grid > 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("✓ Grid: %dx%d, all ships straight and connected", opts.Grid, opts.Grid))
		}
	}

	return result
}

// parseCell splits a cell like "C7" into zero-based column and row.
func parseCell(cell string, grid int) (col, row int, ok bool) {
	if len(cell) < 2 {
		return 0, 0, false
	}
	letter := cell[0]
	if letter < 'A' || letter > 'Z' {
		return 0, 0, false
	}
	n, err := strconv.Atoi(cell[1:])
	if err != nil {
		return 0, 0, false
	}
	col, row = int(letter-'A'), n-1
	if col >= grid || row < 0 || row >= grid {
		return 0, 0, false
	}
	return col, row, true
}

// validateShipShape ensures the cells of one ship are on the grid and form a
// single straight line, using a flood fill over 4-directional neighbours.
func validateShipShape(ship []string, grid int) ValidationResult {
	result := ValidationResult{
		Valid:  true,
		Errors: []string{},
	}

	type point struct{ x, y int }
	cells := make(map[point]bool, len(ship))
	var first point
	sameCol, sameRow := true, true
	for i, cell := range ship {
		x, y, ok := parseCell(cell, grid)
		if !ok {
			result.fail("cell %q is not on a %dx%d grid", cell, grid, grid)
			continue
		}
		p := point{x, y}
		if i == 0 {
			first = p
		}
		sameCol = sameCol && p.x == first.x
		sameRow = sameRow && p.y == first.y
		cells[p] = true
	}
	if !result.Valid || len(cells) == 0 {
		return result
	}

	if !sameCol && !sameRow {
		result.fail("cells are not in one row or column")
	}

	// Flood fill from the first cell
	visited := map[point]bool{first: true}
	queue := []point{first}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, dir := range []point{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			next := point{current.x + dir.x, current.y + dir.y}
			if cells[next] && !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	if len(visited) != len(cells) {
		result.fail("cells are not connected: %d of %d reachable from %s", len(visited), len(cells), ship[0])
	}
	return result
}

// run validates every file and prints a concise report. It returns false if
// any file is invalid.
func run(files []string, opts Options) bool {
	allValid := true
	for _, file := range files {
		result := validateFleetFile(file, opts)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All fleets are valid!")
	} else {
		fmt.Println("❌ Some fleets have errors")
	}
	return allValid
}

func main() {
	cmd := &cli.Command{
		Name:      "validate",
		Usage:     "Validate fleet layout files",
		ArgsUsage: "[file.json ...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Value: "fleets", Usage: "Directory scanned when no files are given"},
			&cli.IntFlag{Name: "grid", Value: 10, Usage: "Classic grid size for shape checks (0 disables)"},
			&cli.IntFlag{Name: "max-ships", Usage: "Maximum ships per fleet (0 is unlimited)", Sources: cli.EnvVars("BATTLESHIP_MAX_SHIPS")},
			&cli.IntFlag{Name: "max-ship-cells", Usage: "Maximum cells per ship (0 is unlimited)", Sources: cli.EnvVars("BATTLESHIP_MAX_SHIP_CELLS")},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			files := cmd.Args().Slice()
			if len(files) == 0 {
				var err error
				files, err = filepath.Glob(filepath.Join(cmd.String("dir"), "*.json"))
				if err != nil {
					return fmt.Errorf("finding fleet files: %w", err)
				}
			}
			if len(files) == 0 {
				return fmt.Errorf("no fleet files found")
			}

			opts := Options{
				Rules: engine.Rules{
					MaxShips:     int(cmd.Int("max-ships")),
					MaxShipCells: int(cmd.Int("max-ship-cells")),
				},
				Grid: int(cmd.Int("grid")),
			}
			if !run(files, opts) {
				return cli.Exit("", 1)
			}
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
