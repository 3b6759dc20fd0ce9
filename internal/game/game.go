package game

import (
	"strconv"
	"strings"
	"time"
)

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Seat indexes the two player slots. The host always sits in seat 0.
type Seat int

const (
	SeatHost  Seat = 0
	SeatGuest Seat = 1
)

func (s Seat) Other() Seat {
	return 1 - s
}

// Game is the authoritative state of one match. Operations in this package
// take a Game by value and return a new one; a rejected operation returns
// the input untouched together with an *Error.
type Game struct {
	ID        string      `json:"id"`
	Rules     Rules       `json:"rules"`
	Players   [2]PlayerID `json:"players"`
	Fleets    [2]Fleet    `json:"fleets"`
	Status    Status      `json:"status"`
	Turn      Seat        `json:"turn"`
	Winner    PlayerID    `json:"winner,omitempty"`
	Ledger    Ledger      `json:"ledger"`
	Version   int64       `json:"version"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Outcome describes a resolved attack.
type Outcome struct {
	Seq          int      `json:"seq"`
	Target       Coord    `json:"target"`
	Hit          bool     `json:"hit"`
	Sunk         int      `json:"sunk,omitempty"`
	GameOver     bool     `json:"gameOver"`
	Winner       PlayerID `json:"winner,omitempty"`
	TurnRetained bool     `json:"turnRetained"`
	TurnHolder   PlayerID `json:"turnHolder,omitempty"`
}

func validPlayer(p PlayerID) bool {
	return strings.TrimSpace(string(p)) != ""
}

// Start seats host with a complete fleet and opens the game for an opponent.
func Start(id string, r Rules, host PlayerID, fleet Fleet, now time.Time) (Game, error) {
	if !validPlayer(host) {
		return Game{}, withMeta(ErrInvalidPlayer, "player", string(host))
	}
	f, err := fleet.normalize(r)
	if err != nil {
		return Game{}, err
	}
	return Game{
		ID:        id,
		Rules:     r,
		Players:   [2]PlayerID{host},
		Fleets:    [2]Fleet{f, {}},
		Status:    StatusWaiting,
		Turn:      SeatHost,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Join seats guest and starts play. The host keeps the first turn.
func Join(g Game, guest PlayerID, fleet Fleet, now time.Time) (Game, error) {
	if g.ID == "" {
		return g, ErrNotFound
	}
	if g.Status != StatusWaiting {
		return g, withMeta(ErrNotWaiting, "status", string(g.Status))
	}
	if !validPlayer(guest) || guest == g.Players[SeatHost] {
		return g, withMeta(ErrInvalidPlayer, "player", string(guest))
	}
	if !g.Fleets[SeatHost].Complete() {
		return g, withMeta(ErrIncompleteFleet, "player", string(g.Players[SeatHost]))
	}
	f, err := fleet.normalize(g.Rules)
	if err != nil {
		return g, err
	}

	next := g.Clone()
	next.Players[SeatGuest] = guest
	next.Fleets[SeatGuest] = f
	next.Status = StatusPlaying
	next.Turn = SeatHost
	next.Version++
	next.UpdatedAt = now
	return next, nil
}

// Attack resolves a shot by attacker at target. A hit keeps the turn with
// the attacker, a miss passes it to the other seat. Sinking the last
// unstruck cell ends the game.
func Attack(g Game, attacker PlayerID, target Coord, now time.Time) (Game, Outcome, error) {
	if g.Status != StatusPlaying {
		return g, Outcome{}, withMeta(ErrIllegalMove, "status", string(g.Status))
	}
	seat, ok := g.Seat(attacker)
	if !ok {
		return g, Outcome{}, withMeta(ErrIllegalMove, "player", string(attacker))
	}
	if seat != g.Turn {
		return g, Outcome{}, withMeta(ErrNotYourTurn, "player", string(attacker), "turn", string(g.Players[g.Turn]))
	}
	if !g.Rules.InBounds(target) {
		return g, Outcome{}, withMeta(ErrOutOfBounds, "x", strconv.Itoa(target.X), "y", strconv.Itoa(target.Y))
	}

	defender := seat.Other()
	struck, shipID, hit := g.Fleets[defender].Strike(target)
	ledger, entry, err := g.Ledger.Record(attacker, target, hit)
	if err != nil {
		return g, Outcome{}, err
	}

	next := g.Clone()
	next.Fleets[defender] = struck
	next.Ledger = ledger
	next.Version++
	next.UpdatedAt = now

	out := Outcome{Seq: entry.Seq, Target: target, Hit: hit}
	if hit {
		if s, ok := struck.Ship(shipID); ok && s.Sunk() {
			out.Sunk = shipID
		}
	}
	switch {
	case struck.Destroyed():
		next.Status = StatusFinished
		next.Winner = attacker
		out.GameOver = true
		out.Winner = attacker
	case hit:
		out.TurnRetained = true
	default:
		next.Turn = defender
	}
	if next.Status == StatusPlaying {
		out.TurnHolder = next.Players[next.Turn]
	}
	return next, out, nil
}

// Seat returns the slot p occupies.
func (g Game) Seat(p PlayerID) (Seat, bool) {
	if !validPlayer(p) {
		return 0, false
	}
	for i, seated := range g.Players {
		if seated == p {
			return Seat(i), true
		}
	}
	return 0, false
}

// TurnHolder is the player allowed to act, or "" once the game is over.
func (g Game) TurnHolder() PlayerID {
	if g.Status == StatusFinished {
		return ""
	}
	return g.Players[g.Turn]
}

// Clone deep-copies the game so stores can hand out values without sharing
// slices with their own copy.
func (g Game) Clone() Game {
	out := g
	out.Rules.Ships = append([]ShipSpec(nil), g.Rules.Ships...)
	for i := range g.Fleets {
		out.Fleets[i] = g.Fleets[i].Clone()
	}
	out.Ledger = g.Ledger.Clone()
	return out
}
