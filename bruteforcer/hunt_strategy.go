package main

import (
	"fmt"
	"math/rand/v2"

	"github.com/wricardo/mcp-training/battleship/game/engine"
)

// Cell formats a zero-based column and row as a coordinate like "C7"
func Cell(col, row int) engine.Coordinate {
	return engine.Coordinate(fmt.Sprintf("%c%d", 'A'+col, row+1))
}

type point struct{ x, y int }

// HuntStrategy picks shots on a lettered grid. It hunts on a checkerboard
// until something is hit, then targets the neighbours of every unsunk hit.
type HuntStrategy struct {
	grid int
	rng  *rand.Rand

	// hunt is the checkerboard order, followed by the other half as a fallback
	hunt    []point
	huntIdx int

	targets []point
	fired   map[point]bool
	hits    map[point]bool
}

// NewHuntStrategy plans shots for a grid x grid board
func NewHuntStrategy(grid int, rng *rand.Rand) *HuntStrategy {
	s := &HuntStrategy{grid: grid, rng: rng}
	s.Reset()
	return s
}

// Reset forgets every shot, for a new game
func (s *HuntStrategy) Reset() {
	var even, odd []point
	for y := 0; y < s.grid; y++ {
		for x := 0; x < s.grid; x++ {
			if (x+y)%2 == 0 {
				even = append(even, point{x, y})
			} else {
				odd = append(odd, point{x, y})
			}
		}
	}
	s.rng.Shuffle(len(even), func(i, j int) { even[i], even[j] = even[j], even[i] })
	s.rng.Shuffle(len(odd), func(i, j int) { odd[i], odd[j] = odd[j], odd[i] })

	s.hunt = append(even, odd...)
	s.huntIdx = 0
	s.targets = nil
	s.fired = make(map[point]bool)
	s.hits = make(map[point]bool)
}

// NextShot returns the next cell to fire at, or "" once every cell was tried
func (s *HuntStrategy) NextShot() engine.Coordinate {
	for len(s.targets) > 0 {
		p := s.targets[len(s.targets)-1]
		s.targets = s.targets[:len(s.targets)-1]
		if !s.fired[p] {
			return Cell(p.x, p.y)
		}
	}
	for s.huntIdx < len(s.hunt) {
		p := s.hunt[s.huntIdx]
		s.huntIdx++
		if !s.fired[p] {
			return Cell(p.x, p.y)
		}
	}
	return ""
}

// Record feeds a shot outcome back into the plan
func (s *HuntStrategy) Record(target engine.Coordinate, hit bool, sunk *engine.ShipView) {
	p, ok := s.parse(target)
	if !ok {
		return
	}
	s.fired[p] = true
	if !hit {
		return
	}
	s.hits[p] = true

	if sunk != nil {
		for _, c := range sunk.Cells {
			if q, ok := s.parse(c); ok {
				delete(s.hits, q)
			}
		}
		// Rebuild targets around hits that belong to ships still afloat
		s.targets = s.targets[:0]
		for q := range s.hits {
			s.pushNeighbours(q)
		}
		return
	}
	s.pushNeighbours(p)
}

func (s *HuntStrategy) pushNeighbours(p point) {
	for _, d := range []point{{0, -1}, {0, 1}, {-1, 0}, {1, 0}} {
		n := point{p.x + d.x, p.y + d.y}
		if n.x < 0 || n.y < 0 || n.x >= s.grid || n.y >= s.grid || s.fired[n] {
			continue
		}
		s.targets = append(s.targets, n)
	}
}

func (s *HuntStrategy) parse(c engine.Coordinate) (point, bool) {
	var letter rune
	var row int
	if _, err := fmt.Sscanf(string(c), "%c%d", &letter, &row); err != nil {
		return point{}, false
	}
	p := point{int(letter - 'A'), row - 1}
	if p.x < 0 || p.y < 0 || p.x >= s.grid || p.y >= s.grid {
		return point{}, false
	}
	return p, true
}

// RandomFleet lays out one straight ship per size without overlaps
func RandomFleet(grid int, sizes []int, rng *rand.Rand) ([][]string, error) {
	taken := make(map[point]bool)
	fleet := make([][]string, 0, len(sizes))

	for _, size := range sizes {
		if size < 1 || size > grid {
			return nil, fmt.Errorf("ship of %d cells does not fit a %dx%d grid", size, grid, grid)
		}
		placed := false
		for attempt := 0; attempt < 1000 && !placed; attempt++ {
			dx, dy := 1, 0
			if rng.IntN(2) == 0 {
				dx, dy = 0, 1
			}
			x := rng.IntN(grid - dx*(size-1))
			y := rng.IntN(grid - dy*(size-1))

			cells := make([]point, size)
			free := true
			for i := range cells {
				cells[i] = point{x + dx*i, y + dy*i}
				if taken[cells[i]] {
					free = false
					break
				}
			}
			if !free {
				continue
			}

			ship := make([]string, size)
			for i, p := range cells {
				taken[p] = true
				ship[i] = string(Cell(p.x, p.y))
			}
			fleet = append(fleet, ship)
			placed = true
		}
		if !placed {
			return nil, fmt.Errorf("could not place a ship of %d cells", size)
		}
	}
	return fleet, nil
}
