package engine

import "fmt"

// Ship is a set of cells placed once and then hit by shots.
// Invariant: sunk == (len(hits) == len(cells)).
type Ship struct {
	cells []Coordinate
	index map[Coordinate]struct{}
	hits  map[Coordinate]struct{}
	sunk  bool
}

func newShip(cells []Coordinate) *Ship {
	s := &Ship{
		cells: append([]Coordinate(nil), cells...),
		index: make(map[Coordinate]struct{}, len(cells)),
		hits:  make(map[Coordinate]struct{}, len(cells)),
	}
	for _, c := range cells {
		s.index[c] = struct{}{}
	}
	return s
}

// Cells returns the ship's cells in placement order
func (s *Ship) Cells() []Coordinate {
	return append([]Coordinate(nil), s.cells...)
}

// Hits returns the hit cells in placement order
func (s *Ship) Hits() []Coordinate {
	hits := make([]Coordinate, 0, len(s.hits))
	for _, c := range s.cells {
		if _, ok := s.hits[c]; ok {
			hits = append(hits, c)
		}
	}
	return hits
}

// Sunk reports whether every cell has been hit
func (s *Ship) Sunk() bool { return s.sunk }

// Size is the number of cells
func (s *Ship) Size() int { return len(s.cells) }

// Occupies reports whether c is one of the ship's cells
func (s *Ship) Occupies(c Coordinate) bool {
	_, ok := s.index[c]
	return ok
}

// View returns a copy safe to serialize
func (s *Ship) View() ShipView {
	return ShipView{Cells: s.Cells(), Hits: s.Hits(), Sunk: s.sunk}
}

// hit records c and reports whether the cell was newly hit.
func (s *Ship) hit(c Coordinate) bool {
	if !s.Occupies(c) {
		return false
	}
	if _, already := s.hits[c]; already {
		return false
	}
	s.hits[c] = struct{}{}
	s.sunk = len(s.hits) == len(s.cells)
	return true
}

// Fleet is the ordered list of a player's ships
type Fleet []*Ship

// ShotResult is the outcome of resolving one shot against a fleet
type ShotResult struct {
	Hit  bool
	Sunk *Ship
}

// PlaceShips builds a Fleet with one Ship per cell set. It fails with
// ErrInvalidPlacement when a set is empty, a coordinate is blank, a coordinate
// repeats (within a set or across sets) or a rules limit is exceeded.
func PlaceShips(cellSets [][]Coordinate, rules Rules) (Fleet, error) {
	if len(cellSets) == 0 {
		return nil, fmt.Errorf("%w: fleet has no ships", ErrInvalidPlacement)
	}
	if rules.MaxShips > 0 && len(cellSets) > rules.MaxShips {
		return nil, fmt.Errorf("%w: %d ships exceeds limit of %d", ErrInvalidPlacement, len(cellSets), rules.MaxShips)
	}

	owner := make(map[Coordinate]int)
	fleet := make(Fleet, 0, len(cellSets))
	for i, cells := range cellSets {
		if len(cells) == 0 {
			return nil, fmt.Errorf("%w: ship %d has no cells", ErrInvalidPlacement, i)
		}
		if rules.MaxShipCells > 0 && len(cells) > rules.MaxShipCells {
			return nil, fmt.Errorf("%w: ship %d has %d cells, limit is %d", ErrInvalidPlacement, i, len(cells), rules.MaxShipCells)
		}
		for _, c := range cells {
			if c == "" {
				return nil, fmt.Errorf("%w: ship %d has a blank coordinate", ErrInvalidPlacement, i)
			}
			if prev, taken := owner[c]; taken {
				if prev == i {
					return nil, fmt.Errorf("%w: ship %d repeats cell %s", ErrInvalidPlacement, i, c)
				}
				return nil, fmt.Errorf("%w: ships %d and %d overlap at %s", ErrInvalidPlacement, prev, i, c)
			}
			owner[c] = i
		}
		fleet = append(fleet, newShip(cells))
	}
	return fleet, nil
}

// ResolveShot applies a shot at target. Firing at a cell that was already hit,
// or at open water, returns Hit=false and changes nothing.
func ResolveShot(fleet Fleet, target Coordinate) ShotResult {
	for _, ship := range fleet {
		if !ship.hit(target) {
			continue
		}
		res := ShotResult{Hit: true}
		if ship.sunk {
			res.Sunk = ship
		}
		return res
	}
	return ShotResult{}
}

// RemainingShips counts ships that are not sunk
func RemainingShips(fleet Fleet) int {
	n := 0
	for _, ship := range fleet {
		if !ship.sunk {
			n++
		}
	}
	return n
}

// IsFleetDestroyed reports whether every ship in the fleet is sunk
func IsFleetDestroyed(fleet Fleet) bool {
	return RemainingShips(fleet) == 0
}
