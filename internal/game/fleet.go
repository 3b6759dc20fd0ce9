package game

import "strconv"

// Cell is one occupied board square. Struck flips to true once, on the
// opponent's first hit at that square.
type Cell struct {
	Coord
	Struck bool `json:"struck"`
}

type Ship struct {
	ID    int    `json:"id"`
	Size  int    `json:"size"`
	Cells []Cell `json:"cells,omitempty"`
}

func (s Ship) Placed() bool {
	return s.Size > 0 && len(s.Cells) == s.Size
}

func (s Ship) Sunk() bool {
	if !s.Placed() {
		return false
	}
	for _, c := range s.Cells {
		if !c.Struck {
			return false
		}
	}
	return true
}

// Fleet is one player's ships. Methods never modify the receiver; every
// change returns a new Fleet.
type Fleet struct {
	Ships []Ship `json:"ships"`
}

// NewFleet returns the configured ships, all unplaced.
func NewFleet(r Rules) Fleet {
	f := Fleet{Ships: make([]Ship, len(r.Ships))}
	for i, s := range r.Ships {
		f.Ships[i] = Ship{ID: s.ID, Size: s.Size}
	}
	return f
}

func (f Fleet) Clone() Fleet {
	if f.Ships == nil {
		return Fleet{}
	}
	out := Fleet{Ships: make([]Ship, len(f.Ships))}
	for i, s := range f.Ships {
		out.Ships[i] = Ship{ID: s.ID, Size: s.Size}
		if s.Cells != nil {
			out.Ships[i].Cells = append([]Cell(nil), s.Cells...)
		}
	}
	return out
}

func (f Fleet) index(id int) int {
	for i, s := range f.Ships {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (f Fleet) Ship(id int) (Ship, bool) {
	i := f.index(id)
	if i < 0 {
		return Ship{}, false
	}
	return f.Ships[i], true
}

// PlaceShip places (or re-places) ship id at origin. size must match the
// configured size for that ship.
func (f Fleet) PlaceShip(r Rules, id int, origin Coord, size int, o Orientation) (Fleet, error) {
	if !o.Valid() {
		return f, withMeta(ErrInvalidOrientation, "orientation", string(o))
	}
	spec, ok := r.Spec(id)
	if !ok {
		return f, withMeta(ErrUnknownShip, "ship", strconv.Itoa(id))
	}
	if size != spec.Size {
		return f, withMeta(ErrShipSizeMismatch, "ship", strconv.Itoa(id), "size", strconv.Itoa(size))
	}
	return f.Place(r, id, Footprint(origin, size, o))
}

// Place sets the footprint of ship id. Bounds are checked before overlap;
// the ship's own previous cells do not count as overlap.
func (f Fleet) Place(r Rules, id int, footprint []Coord) (Fleet, error) {
	i := f.index(id)
	if i < 0 {
		return f, withMeta(ErrUnknownShip, "ship", strconv.Itoa(id))
	}
	if len(footprint) != f.Ships[i].Size {
		return f, withMeta(ErrShipSizeMismatch, "ship", strconv.Itoa(id), "size", strconv.Itoa(len(footprint)))
	}
	if !straightLine(footprint) {
		return f, withMeta(ErrInvalidFootprint, "ship", strconv.Itoa(id))
	}
	for _, c := range footprint {
		if !r.InBounds(c) {
			return f, withMeta(ErrOutOfBounds, "ship", strconv.Itoa(id), "x", strconv.Itoa(c.X), "y", strconv.Itoa(c.Y))
		}
	}
	for _, c := range footprint {
		if other, ok := f.ShipAt(c); ok && other != id {
			return f, withMeta(ErrOverlap, "ship", strconv.Itoa(id), "other", strconv.Itoa(other),
				"x", strconv.Itoa(c.X), "y", strconv.Itoa(c.Y))
		}
	}

	next := f.Clone()
	cells := make([]Cell, len(footprint))
	for j, c := range footprint {
		cells[j] = Cell{Coord: c}
	}
	next.Ships[i].Cells = cells
	return next, nil
}

// ClearShip removes ship id from the board so it can be placed again.
func (f Fleet) ClearShip(id int) (Fleet, error) {
	i := f.index(id)
	if i < 0 {
		return f, withMeta(ErrUnknownShip, "ship", strconv.Itoa(id))
	}
	next := f.Clone()
	next.Ships[i].Cells = nil
	return next, nil
}

// Complete reports whether every configured ship is on the board.
func (f Fleet) Complete() bool {
	if len(f.Ships) == 0 {
		return false
	}
	for _, s := range f.Ships {
		if !s.Placed() {
			return false
		}
	}
	return true
}

// ShipAt returns the id of the ship covering c.
func (f Fleet) ShipAt(c Coord) (int, bool) {
	for _, s := range f.Ships {
		for _, cell := range s.Cells {
			if cell.Coord == c {
				return s.ID, true
			}
		}
	}
	return 0, false
}

// Occupied reports whether any ship covers c.
func (f Fleet) Occupied(c Coord) bool {
	_, ok := f.ShipAt(c)
	return ok
}

// Strike marks the cell at c as hit. It returns the updated fleet, the id of
// the ship that was hit and whether anything was hit at all. A miss returns
// the receiver unchanged.
func (f Fleet) Strike(c Coord) (Fleet, int, bool) {
	for i, s := range f.Ships {
		for j, cell := range s.Cells {
			if cell.Coord != c {
				continue
			}
			if cell.Struck {
				return f, s.ID, true
			}
			next := f.Clone()
			next.Ships[i].Cells[j].Struck = true
			return next, s.ID, true
		}
	}
	return f, 0, false
}

func (f Fleet) TotalCells() int {
	n := 0
	for _, s := range f.Ships {
		n += len(s.Cells)
	}
	return n
}

// Remaining counts unstruck cells.
func (f Fleet) Remaining() int {
	n := 0
	for _, s := range f.Ships {
		for _, c := range s.Cells {
			if !c.Struck {
				n++
			}
		}
	}
	return n
}

// Destroyed is true when every ship cell is struck. A fleet with no cells
// is never destroyed.
func (f Fleet) Destroyed() bool {
	return f.TotalCells() > 0 && f.Remaining() == 0
}

// Sunk lists the ids of ships with every cell struck.
func (f Fleet) Sunk() []int {
	var out []int
	for _, s := range f.Ships {
		if s.Sunk() {
			out = append(out, s.ID)
		}
	}
	return out
}

// Placement describes where a ship goes, independent of any fleet value.
type Placement struct {
	ShipID      int         `json:"shipId"`
	Origin      Coord       `json:"origin"`
	Orientation Orientation `json:"orientation"`
}

// Placements recovers the placement of every placed ship. Single-cell ships
// report horizontal.
func (f Fleet) Placements() []Placement {
	out := make([]Placement, 0, len(f.Ships))
	for _, s := range f.Ships {
		if !s.Placed() {
			continue
		}
		p := Placement{ShipID: s.ID, Origin: s.Cells[0].Coord, Orientation: Horizontal}
		if len(s.Cells) > 1 && s.Cells[1].X == s.Cells[0].X {
			p.Orientation = Vertical
		}
		out = append(out, p)
	}
	return out
}

// BuildFleet validates placements one ship at a time and requires the
// result to be complete.
func BuildFleet(r Rules, placements []Placement) (Fleet, error) {
	f := NewFleet(r)
	seen := make(map[int]bool, len(placements))
	for _, p := range placements {
		if seen[p.ShipID] {
			return Fleet{}, withMeta(ErrDuplicateShip, "ship", strconv.Itoa(p.ShipID))
		}
		seen[p.ShipID] = true
		spec, ok := r.Spec(p.ShipID)
		if !ok {
			return Fleet{}, withMeta(ErrUnknownShip, "ship", strconv.Itoa(p.ShipID))
		}
		next, err := f.PlaceShip(r, p.ShipID, p.Origin, spec.Size, p.Orientation)
		if err != nil {
			return Fleet{}, err
		}
		f = next
	}
	if !f.Complete() {
		return Fleet{}, ErrIncompleteFleet
	}
	return f, nil
}

// normalize rebuilds f from its placements so that hand-assembled values
// go through the same validation as BuildFleet. Struck flags are dropped.
func (f Fleet) normalize(r Rules) (Fleet, error) {
	if !f.Complete() {
		return Fleet{}, ErrIncompleteFleet
	}
	for _, s := range f.Ships {
		if !straightLine(cellCoords(s.Cells)) {
			return Fleet{}, withMeta(ErrInvalidFootprint, "ship", strconv.Itoa(s.ID))
		}
	}
	return BuildFleet(r, f.Placements())
}

func cellCoords(cells []Cell) []Coord {
	out := make([]Coord, len(cells))
	for i, c := range cells {
		out[i] = c.Coord
	}
	return out
}
