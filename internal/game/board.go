package game

// Mark is what a renderer shows in one square.
type Mark uint8

const (
	MarkWater Mark = iota
	MarkShip
	MarkHit
	MarkMiss
)

// Board is a rendered grid, indexed Cells[y][x].
type Board struct {
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Cells  [][]Mark `json:"cells"`
}

func emptyBoard(w, h int) Board {
	b := Board{Width: w, Height: h, Cells: make([][]Mark, h)}
	for y := range b.Cells {
		b.Cells[y] = make([]Mark, w)
	}
	return b
}

func (b Board) At(c Coord) Mark {
	if c.Y < 0 || c.Y >= len(b.Cells) || c.X < 0 || c.X >= len(b.Cells[c.Y]) {
		return MarkWater
	}
	return b.Cells[c.Y][c.X]
}

func (b Board) set(c Coord, m Mark) {
	if c.Y >= 0 && c.Y < len(b.Cells) && c.X >= 0 && c.X < len(b.Cells[c.Y]) {
		b.Cells[c.Y][c.X] = m
	}
}

// OwnBoard draws a fleet together with the shots an opponent fired at it.
func OwnBoard(r Rules, f Fleet, incoming Ledger) Board {
	b := emptyBoard(r.Width, r.Height)
	for _, s := range f.Ships {
		for _, c := range s.Cells {
			if c.Struck {
				b.set(c.Coord, MarkHit)
			} else {
				b.set(c.Coord, MarkShip)
			}
		}
	}
	for _, a := range incoming {
		if !a.Hit {
			b.set(a.Target, MarkMiss)
		}
	}
	return b
}

// TargetBoard draws the player's own shots. Hit and miss come from the
// ledger; nothing else about the enemy fleet is known.
func TargetBoard(w, h int, shots Ledger) Board {
	b := emptyBoard(w, h)
	for _, a := range shots {
		if a.Hit {
			b.set(a.Target, MarkHit)
		} else {
			b.set(a.Target, MarkMiss)
		}
	}
	return b
}
