// Package digest fingerprints a game state projection. The hex root changes
// whenever anything a client can observe changes, so it doubles as an HTTP
// ETag and as the version carried by push notifications.
package digest

import (
	"fmt"

	"battleship/internal/game"
)

var statusCodes = map[game.Status]uint64{
	game.StatusWaiting:  1,
	game.StatusPlaying:  2,
	game.StatusFinished: 3,
}

// seatCode maps a player to 1 (host), 2 (guest) or 0 (nobody).
func seatCode(st game.State, p game.PlayerID) uint64 {
	switch {
	case p == "":
		return 0
	case p == st.Players[game.SeatHost]:
		return 1
	case p == st.Players[game.SeatGuest]:
		return 2
	}
	return 0
}

// packMove squeezes one ledger entry into a single field element:
// seq | attacker seat | x | y | hit, 16 bits each.
func packMove(st game.State, a game.Move) uint64 {
	hit := uint64(0)
	if a.Hit {
		hit = 1
	}
	return uint64(a.Seq)<<48 |
		seatCode(st, a.Attacker)<<40 |
		uint64(uint16(a.Target.X))<<24 |
		uint64(uint16(a.Target.Y))<<8 |
		hit
}

func leaves(st game.State) []uint64 {
	guest := uint64(0)
	if st.Players[game.SeatGuest] != "" {
		guest = 1
	}
	out := []uint64{
		statusCodes[st.Status],
		uint64(st.Version),
		seatCode(st, st.TurnHolder),
		seatCode(st, st.Winner),
		guest,
		uint64(st.Width)<<32 | uint64(st.Height),
	}
	for _, a := range st.Moves {
		out = append(out, packMove(st, a))
	}
	return out
}

// Root computes the MiMC Merkle root over the state's leaves.
func Root(st game.State) (string, error) {
	r, err := merkleRoot(leaves(st))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("0x%x", r[:]), nil
}

// ETag wraps Root in the quoted form HTTP expects. It returns "" if the
// digest cannot be built.
func ETag(st game.State) string {
	root, err := Root(st)
	if err != nil {
		return ""
	}
	return `"` + root + `"`
}
