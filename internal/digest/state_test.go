package digest

import (
	"testing"

	bnmimc "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battleship/internal/game"
)

func sample() game.State {
	return game.State{
		ID:         "g",
		Width:      5,
		Height:     5,
		Status:     game.StatusPlaying,
		Players:    [2]game.PlayerID{"a", "b"},
		TurnHolder: "a",
		Moves:      game.Ledger{{Seq: 1, Attacker: "a", Target: game.Coord{X: 1, Y: 2}, Hit: true}},
		Version:    3,
	}
}

func TestMerkleRootPadsWithZeroLeaf(t *testing.T) {
	three, err := merkleRoot([]uint64{1, 2, 3})
	require.NoError(t, err)
	padded, err := merkleRoot([]uint64{1, 2, 3, 0})
	require.NoError(t, err)
	assert.Equal(t, three, padded)

	two, err := merkleRoot([]uint64{1, 2})
	require.NoError(t, err)
	assert.NotEqual(t, three, two)

	one, err := merkleRoot([]uint64{7})
	require.NoError(t, err)
	l, err := leaf(bnmimc.NewMiMC(), 7)
	require.NoError(t, err)
	assert.Equal(t, l, one)
}

func TestRootIsStable(t *testing.T) {
	a, err := Root(sample())
	require.NoError(t, err)
	b, err := Root(sample())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, `"`+a+`"`, ETag(sample()))
}

func TestRootChangesWithState(t *testing.T) {
	base, err := Root(sample())
	require.NoError(t, err)

	mutations := map[string]func(*game.State){
		"status":  func(s *game.State) { s.Status = game.StatusFinished },
		"turn":    func(s *game.State) { s.TurnHolder = "b" },
		"winner":  func(s *game.State) { s.Winner = "a" },
		"version": func(s *game.State) { s.Version++ },
		"hit":     func(s *game.State) { s.Moves[0].Hit = false },
		"target":  func(s *game.State) { s.Moves[0].Target.X = 4 },
		"append": func(s *game.State) {
			s.Moves = append(s.Moves, game.Move{Seq: 2, Attacker: "a", Target: game.Coord{X: 0, Y: 0}})
		},
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			st := sample()
			st.Moves = append(game.Ledger(nil), st.Moves...)
			mutate(&st)
			got, err := Root(st)
			require.NoError(t, err)
			assert.NotEqual(t, base, got)
		})
	}
}
