package game

import "strconv"

type PlayerID string

// Move is one ledger entry. Hit is decided when the entry is recorded and
// never changes afterwards.
type Move struct {
	Seq      int      `json:"seq"`
	Attacker PlayerID `json:"attacker"`
	Target   Coord    `json:"target"`
	Hit      bool     `json:"hit"`
}

// Ledger is the append-only attack history of a game.
type Ledger []Move

func (l Ledger) HasAttacked(p PlayerID, c Coord) bool {
	for _, a := range l {
		if a.Attacker == p && a.Target == c {
			return true
		}
	}
	return false
}

// Record returns a new ledger with the attack appended. The receiver's
// backing array is never written to.
func (l Ledger) Record(p PlayerID, c Coord, hit bool) (Ledger, Move, error) {
	if l.HasAttacked(p, c) {
		return l, Move{}, withMeta(ErrDuplicateAttack, "player", string(p), "x", strconv.Itoa(c.X), "y", strconv.Itoa(c.Y))
	}
	a := Move{Seq: len(l) + 1, Attacker: p, Target: c, Hit: hit}
	next := make(Ledger, len(l), len(l)+1)
	copy(next, l)
	return append(next, a), a, nil
}

// By filters the entries made by p.
func (l Ledger) By(p PlayerID) Ledger {
	var out Ledger
	for _, a := range l {
		if a.Attacker == p {
			out = append(out, a)
		}
	}
	return out
}

func (l Ledger) Clone() Ledger {
	if l == nil {
		return nil
	}
	return append(Ledger(nil), l...)
}
