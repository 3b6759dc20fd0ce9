package ai

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battleship/internal/game"
)

func testRNG() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestBotID(t *testing.T) {
	id := NewBotID()
	assert.True(t, IsBot(id))
	assert.False(t, IsBot("alice"))
	assert.NotEqual(t, id, NewBotID())
}

func TestRandomFleetIsCompleteAndValid(t *testing.T) {
	rng := testRNG()
	r := game.DefaultRules()
	for i := 0; i < 200; i++ {
		f, err := RandomFleet(r, rng)
		require.NoError(t, err)
		require.True(t, f.Complete())
		assert.Equal(t, r.FleetCells(), f.TotalCells())

		// rebuilding from placements runs the same validation as players
		_, err = game.BuildFleet(r, f.Placements())
		require.NoError(t, err)
	}
}

func TestRandomFleetRejectsBadRules(t *testing.T) {
	_, err := RandomFleet(game.Rules{Width: 0, Height: 5}, testRNG())
	assert.Error(t, err)
}

func TestRandomFleetFullBoard(t *testing.T) {
	r := game.RulesFromSizes(2, 2, []int{2, 2})
	f, err := RandomFleet(r, testRNG())
	require.NoError(t, err)
	assert.Equal(t, 4, f.TotalCells())
}

func TestChooseTargetSkipsOwnShots(t *testing.T) {
	st := game.State{Width: 2, Height: 2, Moves: game.Ledger{
		{Seq: 1, Attacker: "bot", Target: game.Coord{X: 0, Y: 0}},
		{Seq: 2, Attacker: "bot", Target: game.Coord{X: 1, Y: 0}},
		{Seq: 3, Attacker: "bot", Target: game.Coord{X: 0, Y: 1}},
		// the opponent's shot at (1,1) does not count
		{Seq: 4, Attacker: "human", Target: game.Coord{X: 1, Y: 1}},
	}}
	rng := testRNG()
	for i := 0; i < 20; i++ {
		c, err := ChooseTarget(st, "bot", rng)
		require.NoError(t, err)
		assert.Equal(t, game.Coord{X: 1, Y: 1}, c)
	}

	st.Moves = append(st.Moves, game.Move{Seq: 5, Attacker: "bot", Target: game.Coord{X: 1, Y: 1}})
	_, err := ChooseTarget(st, "bot", rng)
	assert.ErrorIs(t, err, ErrNoTarget)
}

func TestChooseTargetCoversBoard(t *testing.T) {
	st := game.State{Width: 5, Height: 5}
	rng := testRNG()
	seen := map[game.Coord]bool{}
	for i := 0; i < 2000; i++ {
		c, err := ChooseTarget(st, "bot", rng)
		require.NoError(t, err)
		seen[c] = true
	}
	assert.Len(t, seen, 25)
}

// localGame drives a single game in memory for the opponent.
type localGame struct {
	mu sync.Mutex
	g  game.Game
}

func (l *localGame) Attack(_ context.Context, _ string, p game.PlayerID, c game.Coord) (game.Outcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	next, out, err := game.Attack(l.g, p, c, time.Now())
	if err != nil {
		return game.Outcome{}, err
	}
	l.g = next
	return out, nil
}

func (l *localGame) State(context.Context, string) (game.State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.g.State(), nil
}

func newLocalGame(t *testing.T, o *Opponent, bot game.PlayerID) *localGame {
	t.Helper()
	r := game.DefaultRules()
	human, err := RandomFleet(r, testRNG())
	require.NoError(t, err)
	botFleet, err := o.Fleet(r)
	require.NoError(t, err)
	g, err := game.Start("g", r, "human", human, time.Now())
	require.NoError(t, err)
	g, err = game.Join(g, bot, botFleet, time.Now())
	require.NoError(t, err)
	return &localGame{g: g}
}

func TestMoveOnlyOnBotTurn(t *testing.T) {
	o := NewOpponent(7, 0, zerolog.Nop())
	bot := NewBotID()
	lg := newLocalGame(t, o, bot)

	_, moved, err := o.Move(context.Background(), lg, "g", bot)
	require.NoError(t, err)
	assert.False(t, moved, "host moves first")
	assert.Empty(t, lg.g.Ledger)
}

func TestBotPlaysUntilMissOrWin(t *testing.T) {
	o := NewOpponent(7, 0, zerolog.Nop())
	bot := NewBotID()
	lg := newLocalGame(t, o, bot)
	ctx := context.Background()
	rng := testRNG()

	for lg.g.Status == game.StatusPlaying {
		if lg.g.TurnHolder() == "human" {
			c, err := ChooseTarget(lg.g.State(), "human", rng)
			require.NoError(t, err)
			_, err = lg.Attack(ctx, "g", "human", c)
			require.NoError(t, err)
			continue
		}
		out, moved, err := o.Move(ctx, lg, "g", bot)
		require.NoError(t, err)
		require.True(t, moved)
		if !out.GameOver {
			assert.Equal(t, out.Hit, out.TurnRetained)
		}
	}
	assert.Equal(t, game.StatusFinished, lg.g.Status)
	assert.NotEmpty(t, lg.g.Winner)
}

func TestMoveHonorsCancel(t *testing.T) {
	o := NewOpponent(7, time.Hour, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, moved, err := o.Move(ctx, &localGame{}, "g", "ai:x")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, moved)
}
