package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battleship/internal/ai"
	"battleship/internal/game"
	"battleship/internal/notify"
	"battleship/internal/store/memory"
)

var t0 = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

// hostShips occupies (0,0)-(2,0), (4,0)-(4,1) and (2,2).
var hostShips = []game.Placement{
	{ShipID: 1, Origin: game.Coord{X: 0, Y: 0}, Orientation: game.Horizontal},
	{ShipID: 2, Origin: game.Coord{X: 4, Y: 0}, Orientation: game.Vertical},
	{ShipID: 3, Origin: game.Coord{X: 2, Y: 2}, Orientation: game.Horizontal},
}

// guestShips occupies (0,4)-(2,4), (4,3)-(4,4) and (0,2).
var guestShips = []game.Placement{
	{ShipID: 1, Origin: game.Coord{X: 0, Y: 4}, Orientation: game.Horizontal},
	{ShipID: 2, Origin: game.Coord{X: 4, Y: 3}, Orientation: game.Vertical},
	{ShipID: 3, Origin: game.Coord{X: 0, Y: 2}, Orientation: game.Horizontal},
}

func inline(task func()) { task() }

func newService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	var n atomic.Int64
	base := []Option{
		WithClock(func() time.Time { return t0 }),
		WithIDs(func() string { return fmt.Sprintf("g%d", n.Add(1)) }),
		WithScheduler(inline),
		WithOpponent(ai.NewOpponent(42, 0, zerolog.Nop())),
	}
	s, err := New(memory.New(), game.DefaultRules(), append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func started(t *testing.T, s *Service) string {
	t.Helper()
	ctx := context.Background()
	st, err := s.StartGame(ctx, "alice", hostShips)
	require.NoError(t, err)
	_, err = s.JoinGame(ctx, st.ID, "bob", guestShips)
	require.NoError(t, err)
	return st.ID
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, game.DefaultRules())
	assert.Error(t, err)
	_, err = New(memory.New(), game.Rules{})
	assert.Error(t, err)
}

func TestStartAndJoin(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	st, err := s.StartGame(ctx, "alice", hostShips)
	require.NoError(t, err)
	assert.Equal(t, game.StatusWaiting, st.Status)

	waiting, err := s.ListWaiting(ctx)
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	assert.Equal(t, st.ID, waiting[0].ID)

	st, err = s.JoinGame(ctx, st.ID, "bob", guestShips)
	require.NoError(t, err)
	assert.Equal(t, game.StatusPlaying, st.Status)
	assert.Equal(t, game.PlayerID("alice"), st.TurnHolder)

	waiting, err = s.ListWaiting(ctx)
	require.NoError(t, err)
	assert.Empty(t, waiting)

	_, err = s.JoinGame(ctx, st.ID, "carol", guestShips)
	assert.ErrorIs(t, err, game.ErrNotWaiting)
}

func TestRejections(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	_, err := s.StartGame(ctx, "alice", hostShips[:2])
	assert.ErrorIs(t, err, game.ErrIncompleteFleet)

	_, err = s.StartGame(ctx, "ai:sneaky", hostShips)
	assert.ErrorIs(t, err, game.ErrInvalidPlayer)

	_, err = s.JoinGame(ctx, "missing", "bob", guestShips)
	assert.ErrorIs(t, err, game.ErrNotFound)

	_, err = s.State(ctx, "missing")
	assert.ErrorIs(t, err, game.ErrNotFound)

	_, err = s.Attack(ctx, "", "bob", game.Coord{})
	assert.ErrorIs(t, err, game.ErrNotFound)

	id := started(t, s)
	_, err = s.Attack(ctx, id, "bob", game.Coord{X: 3, Y: 3})
	assert.ErrorIs(t, err, game.ErrNotYourTurn)
	_, err = s.Attack(ctx, id, "alice", game.Coord{X: 5, Y: 0})
	assert.ErrorIs(t, err, game.ErrOutOfBounds)
	_, err = s.View(ctx, id, "mallory")
	assert.ErrorIs(t, err, game.ErrInvalidPlayer)

	st, err := s.State(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, st.Moves, "rejected attacks leave no trace")
}

func TestAttackTurnPolicy(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	id := started(t, s)

	out, err := s.Attack(ctx, id, "alice", game.Coord{X: 0, Y: 4})
	require.NoError(t, err)
	assert.True(t, out.Hit)
	assert.True(t, out.TurnRetained)
	assert.Equal(t, game.PlayerID("alice"), out.TurnHolder)

	out, err = s.Attack(ctx, id, "alice", game.Coord{X: 3, Y: 3})
	require.NoError(t, err)
	assert.False(t, out.Hit)
	assert.Equal(t, game.PlayerID("bob"), out.TurnHolder)

	_, err = s.Attack(ctx, id, "alice", game.Coord{X: 1, Y: 4})
	assert.ErrorIs(t, err, game.ErrNotYourTurn)

	v, err := s.View(ctx, id, "bob")
	require.NoError(t, err)
	assert.True(t, v.YourTurn)
	assert.Len(t, v.Incoming, 2)
	assert.Empty(t, v.Shots)
}

func TestConcurrentAttacksAreSerialized(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	id := started(t, s)

	// every goroutine fires the same miss; exactly one may land
	const n = 16
	var wg sync.WaitGroup
	var ok atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Attack(ctx, id, "alice", game.Coord{X: 3, Y: 3}); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok.Load())

	st, err := s.State(ctx, id)
	require.NoError(t, err)
	assert.Len(t, st.Moves, 1)
	assert.Equal(t, game.PlayerID("bob"), st.TurnHolder)
	assert.Equal(t, 0, s.locks.size())
}

func TestPublishesOnCommit(t *testing.T) {
	hub := notify.NewHub()
	s := newService(t, WithHub(hub))
	ctx := context.Background()

	st, err := s.StartGame(ctx, "alice", hostShips)
	require.NoError(t, err)
	events, cancel := hub.Subscribe(st.ID)
	defer cancel()

	_, err = s.JoinGame(ctx, st.ID, "bob", guestShips)
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, int64(2), ev.Version)
		assert.Equal(t, game.StatusPlaying, ev.Status)
		assert.NotEmpty(t, ev.Digest)
	default:
		t.Fatal("join was not published")
	}
}

func TestAIGamePlaysToTheEnd(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	st, err := s.StartAIGame(ctx, "alice", hostShips)
	require.NoError(t, err)
	require.Equal(t, game.StatusPlaying, st.Status)
	require.True(t, ai.IsBot(st.Players[game.SeatGuest]))
	assert.Equal(t, game.PlayerID("alice"), st.TurnHolder)

	// alice sweeps the board row by row; the bot answers inline on her
	// misses and keeps shooting while it hits
	for _, c := range game.DefaultRules().Cells() {
		st, err = s.State(ctx, st.ID)
		require.NoError(t, err)
		if st.Status == game.StatusFinished {
			break
		}
		require.Equal(t, game.PlayerID("alice"), st.TurnHolder, "bot must hand the turn back")
		_, err = s.Attack(ctx, st.ID, "alice", c)
		require.NoError(t, err)
	}

	st, err = s.State(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, game.StatusFinished, st.Status)
	assert.NotEmpty(t, st.Winner)

	// the shooter only changes after a miss
	for i, m := range st.Moves {
		if i == 0 {
			assert.Equal(t, game.PlayerID("alice"), m.Attacker)
			continue
		}
		prev := st.Moves[i-1]
		if m.Attacker != prev.Attacker {
			assert.False(t, prev.Hit, "turn changed after a hit at seq %d", m.Seq)
		}
	}

	finished, err := s.Finished(ctx)
	require.NoError(t, err)
	assert.Len(t, finished, 1)
}

func TestAsyncBotMove(t *testing.T) {
	s, err := New(memory.New(), game.DefaultRules(),
		WithOpponent(ai.NewOpponent(3, 0, zerolog.Nop())))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	st, err := s.StartAIGame(ctx, "alice", hostShips)
	require.NoError(t, err)

	// keep shooting until a miss hands the turn to the bot
	for _, c := range game.DefaultRules().Cells() {
		out, err := s.Attack(ctx, st.ID, "alice", c)
		require.NoError(t, err)
		if !out.Hit || out.GameOver {
			break
		}
	}
	s.Wait()

	st, err = s.State(ctx, st.ID)
	require.NoError(t, err)
	if st.Status == game.StatusPlaying {
		assert.Equal(t, game.PlayerID("alice"), st.TurnHolder)
	}
	var botShots int
	for _, m := range st.Moves {
		if ai.IsBot(m.Attacker) {
			botShots++
		}
	}
	if st.Status == game.StatusPlaying {
		assert.Positive(t, botShots)
	}
}

func TestEventsFollowVersionOrder(t *testing.T) {
	hub := notify.NewHub()
	s, err := New(memory.New(), game.DefaultRules(),
		WithHub(hub),
		WithOpponent(ai.NewOpponent(7, 0, zerolog.Nop())))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	st, err := s.StartAIGame(ctx, "alice", hostShips)
	require.NoError(t, err)
	events, cancel := hub.Subscribe(st.ID)

	var (
		wg       sync.WaitGroup
		versions []int64
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range events {
			versions = append(versions, ev.Version)
		}
	}()

	for _, c := range game.DefaultRules().Cells() {
		out, err := s.Attack(ctx, st.ID, "alice", c)
		for errors.Is(err, game.ErrNotYourTurn) {
			s.Wait()
			out, err = s.Attack(ctx, st.ID, "alice", c)
		}
		if errors.Is(err, game.ErrIllegalMove) {
			break
		}
		require.NoError(t, err)
		if out.GameOver {
			break
		}
	}
	s.Wait()
	cancel()
	wg.Wait()

	require.NotEmpty(t, versions)
	for i := 1; i < len(versions); i++ {
		assert.Greater(t, versions[i], versions[i-1])
	}
}

func TestPlaceShipHelper(t *testing.T) {
	s := newService(t)
	f, err := s.PlaceShip(game.Fleet{}, 1, game.Coord{X: 0, Y: 0}, game.Horizontal)
	require.NoError(t, err)
	f, err = s.PlaceShip(f, 2, game.Coord{X: 3, Y: 0}, game.Horizontal)
	require.NoError(t, err)
	_, err = s.PlaceShip(f, 3, game.Coord{X: 1, Y: 0}, game.Horizontal)
	assert.ErrorIs(t, err, game.ErrOverlap)
	_, err = s.PlaceShip(f, 9, game.Coord{}, game.Horizontal)
	assert.ErrorIs(t, err, game.ErrUnknownShip)

	rf, err := s.RandomFleet()
	require.NoError(t, err)
	assert.True(t, rf.Complete())
}
