package game

import (
	"fmt"
	"strconv"
	"strings"
)

// ShipSpec names one ship of the configured fleet.
type ShipSpec struct {
	ID   int `json:"id"`
	Size int `json:"size"`
}

// Rules carries the board extent and the ship set. The engine never hard
// codes either; DefaultRules reproduces the classic 5x5 board with ships of
// size 3, 2 and 1.
type Rules struct {
	Width  int        `json:"width"`
	Height int        `json:"height"`
	Ships  []ShipSpec `json:"ships"`
}

func DefaultRules() Rules {
	return Rules{
		Width:  5,
		Height: 5,
		Ships:  []ShipSpec{{ID: 1, Size: 3}, {ID: 2, Size: 2}, {ID: 3, Size: 1}},
	}
}

// RulesFromSizes numbers ships 1..n in the given order.
func RulesFromSizes(width, height int, sizes []int) Rules {
	r := Rules{Width: width, Height: height}
	for i, s := range sizes {
		r.Ships = append(r.Ships, ShipSpec{ID: i + 1, Size: s})
	}
	return r
}

func (r Rules) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("board must be at least 1x1, got %dx%d", r.Width, r.Height)
	}
	if len(r.Ships) == 0 {
		return fmt.Errorf("at least one ship is required")
	}
	seen := make(map[int]bool, len(r.Ships))
	total := 0
	longest := max(r.Width, r.Height)
	for _, s := range r.Ships {
		if s.ID <= 0 {
			return fmt.Errorf("ship id must be positive, got %d", s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("ship id %d listed twice", s.ID)
		}
		seen[s.ID] = true
		if s.Size <= 0 || s.Size > longest {
			return fmt.Errorf("ship %d size %d does not fit a %dx%d board", s.ID, s.Size, r.Width, r.Height)
		}
		total += s.Size
	}
	if total > r.Width*r.Height {
		return fmt.Errorf("fleet needs %d cells, board has %d", total, r.Width*r.Height)
	}
	return nil
}

func (r Rules) InBounds(c Coord) bool {
	return c.X >= 0 && c.X < r.Width && c.Y >= 0 && c.Y < r.Height
}

func (r Rules) Spec(id int) (ShipSpec, bool) {
	for _, s := range r.Ships {
		if s.ID == id {
			return s, true
		}
	}
	return ShipSpec{}, false
}

// FleetCells is the number of cells a complete fleet occupies.
func (r Rules) FleetCells() int {
	n := 0
	for _, s := range r.Ships {
		n += s.Size
	}
	return n
}

// Cells lists every board coordinate, row by row.
func (r Rules) Cells() []Coord {
	out := make([]Coord, 0, r.Width*r.Height)
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			out = append(out, Coord{X: x, Y: y})
		}
	}
	return out
}

// ShipsString encodes the ship set as "id:size,..." for storage.
func (r Rules) ShipsString() string {
	parts := make([]string, len(r.Ships))
	for i, s := range r.Ships {
		parts[i] = strconv.Itoa(s.ID) + ":" + strconv.Itoa(s.Size)
	}
	return strings.Join(parts, ",")
}

// ParseShips reverses ShipsString.
func ParseShips(s string) ([]ShipSpec, error) {
	var out []ShipSpec
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idStr, sizeStr, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("ship spec %q: want id:size", part)
		}
		id, err := strconv.Atoi(idStr)
		if err != nil {
			return nil, fmt.Errorf("ship spec %q: %w", part, err)
		}
		size, err := strconv.Atoi(sizeStr)
		if err != nil {
			return nil, fmt.Errorf("ship spec %q: %w", part, err)
		}
		out = append(out, ShipSpec{ID: id, Size: size})
	}
	return out, nil
}
