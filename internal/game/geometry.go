package game

import (
	"fmt"
	"strings"
)

type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

type Orientation string

const (
	Horizontal Orientation = "horizontal"
	Vertical   Orientation = "vertical"
)

func (o Orientation) Valid() bool {
	return o == Horizontal || o == Vertical
}

// ParseOrientation accepts the full names and their first letters.
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "h", "horizontal":
		return Horizontal, nil
	case "v", "vertical":
		return Vertical, nil
	}
	return "", withMeta(ErrInvalidOrientation, "orientation", s)
}

// Footprint lists the length cells starting at origin. Horizontal grows x,
// vertical grows y. Cells past the board edge are returned as-is; rejecting
// them is the fleet's job.
func Footprint(origin Coord, length int, o Orientation) []Coord {
	if length <= 0 {
		return nil
	}
	out := make([]Coord, length)
	for i := range out {
		if o == Vertical {
			out[i] = Coord{X: origin.X, Y: origin.Y + i}
		} else {
			out[i] = Coord{X: origin.X + i, Y: origin.Y}
		}
	}
	return out
}

// straightLine reports whether cells run in one row with increasing x or one
// column with increasing y, step 1.
func straightLine(cells []Coord) bool {
	if len(cells) < 2 {
		return true
	}
	dx, dy := cells[1].X-cells[0].X, cells[1].Y-cells[0].Y
	if !(dx == 1 && dy == 0) && !(dx == 0 && dy == 1) {
		return false
	}
	for i := 1; i < len(cells); i++ {
		if cells[i].X-cells[i-1].X != dx || cells[i].Y-cells[i-1].Y != dy {
			return false
		}
	}
	return true
}
