package game

// State is the read-only projection every caller may see. It never exposes
// ship positions.
type State struct {
	ID         string      `json:"id"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Status     Status      `json:"status"`
	Players    [2]PlayerID `json:"players"`
	TurnHolder PlayerID    `json:"turnHolder,omitempty"`
	Winner     PlayerID    `json:"winner,omitempty"`
	Moves      Ledger      `json:"moves"`
	Version    int64       `json:"version"`
}

func (g Game) State() State {
	moves := g.Ledger.Clone()
	if moves == nil {
		moves = Ledger{}
	}
	return State{
		ID:         g.ID,
		Width:      g.Rules.Width,
		Height:     g.Rules.Height,
		Status:     g.Status,
		Players:    g.Players,
		TurnHolder: g.TurnHolder(),
		Winner:     g.Winner,
		Moves:      moves,
		Version:    g.Version,
	}
}

// View is the state as seen by one seated player: their own fleet with
// struck flags, both shot histories and which enemy ships are sunk.
type View struct {
	State
	You       PlayerID   `json:"you"`
	Opponent  PlayerID   `json:"opponent,omitempty"`
	YourTurn  bool       `json:"yourTurn"`
	Fleet     Fleet      `json:"fleet"`
	Shots     Ledger     `json:"shots"`
	Incoming  Ledger     `json:"incoming"`
	EnemySunk []int      `json:"enemySunk,omitempty"`
	Ships     []ShipSpec `json:"shipSpecs"`
}

func (g Game) ViewFor(p PlayerID) (View, error) {
	seat, ok := g.Seat(p)
	if !ok {
		return View{}, withMeta(ErrInvalidPlayer, "player", string(p))
	}
	other := seat.Other()
	v := View{
		State:    g.State(),
		You:      p,
		Opponent: g.Players[other],
		Fleet:    g.Fleets[seat].Clone(),
		Shots:    g.Ledger.By(p),
		Ships:    append([]ShipSpec(nil), g.Rules.Ships...),
	}
	v.YourTurn = g.Status == StatusPlaying && g.Turn == seat
	if v.Opponent != "" {
		v.Incoming = g.Ledger.By(v.Opponent)
		v.EnemySunk = g.Fleets[other].Sunk()
	}
	return v, nil
}

// Hit reports whether the view's player has a recorded hit at c, and
// whether they shot there at all.
func (v View) Hit(c Coord) (hit, shot bool) {
	for _, a := range v.Shots {
		if a.Target == c {
			return a.Hit, true
		}
	}
	return false, false
}
