// Package storetest holds the behavior every store.Store implementation
// must share. Backends call Run from their own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battleship/internal/game"
	"battleship/internal/store"
)

// Base is millisecond aligned so backends that store epoch millis
// round-trip exactly.
var Base = time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

func fleet(t *testing.T, ps ...game.Placement) game.Fleet {
	t.Helper()
	f, err := game.BuildFleet(game.DefaultRules(), ps)
	require.NoError(t, err)
	return f
}

// HostFleet occupies (0,0)-(2,0), (4,0)-(4,1) and (2,2).
func HostFleet(t *testing.T) game.Fleet {
	return fleet(t,
		game.Placement{ShipID: 1, Origin: game.Coord{X: 0, Y: 0}, Orientation: game.Horizontal},
		game.Placement{ShipID: 2, Origin: game.Coord{X: 4, Y: 0}, Orientation: game.Vertical},
		game.Placement{ShipID: 3, Origin: game.Coord{X: 2, Y: 2}, Orientation: game.Horizontal},
	)
}

// GuestFleet occupies (0,4)-(2,4), (4,3)-(4,4) and (0,2).
func GuestFleet(t *testing.T) game.Fleet {
	return fleet(t,
		game.Placement{ShipID: 1, Origin: game.Coord{X: 0, Y: 4}, Orientation: game.Horizontal},
		game.Placement{ShipID: 2, Origin: game.Coord{X: 4, Y: 3}, Orientation: game.Vertical},
		game.Placement{ShipID: 3, Origin: game.Coord{X: 0, Y: 2}, Orientation: game.Horizontal},
	)
}

func waiting(t *testing.T, id string, at time.Time) game.Game {
	t.Helper()
	g, err := game.Start(id, game.DefaultRules(), "host-"+game.PlayerID(id), HostFleet(t), at)
	require.NoError(t, err)
	return g
}

// Run exercises a fresh store from newStore against the shared contract.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		g := waiting(t, "g1", Base)
		require.NoError(t, s.Create(ctx, g))

		got, err := s.Get(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, g, got)

		assert.ErrorIs(t, s.Create(ctx, g), store.ErrExists)
	})

	t.Run("missing game", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.Get(ctx, "nope")
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.ErrorIs(t, s.Update(ctx, waiting(t, "nope", Base), 1), store.ErrNotFound)
	})

	t.Run("update round trips moves and struck cells", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		g := waiting(t, "g1", Base)
		require.NoError(t, s.Create(ctx, g))

		joined, err := game.Join(g, "guest", GuestFleet(t), Base.Add(time.Second))
		require.NoError(t, err)
		require.NoError(t, s.Update(ctx, joined, g.Version))

		// host hits (0,4) and keeps the turn, then misses (3,3)
		next, _, err := game.Attack(joined, joined.Players[game.SeatHost], game.Coord{X: 0, Y: 4}, Base.Add(2*time.Second))
		require.NoError(t, err)
		next, _, err = game.Attack(next, joined.Players[game.SeatHost], game.Coord{X: 3, Y: 3}, Base.Add(3*time.Second))
		require.NoError(t, err)
		require.NoError(t, s.Update(ctx, next, joined.Version))

		got, err := s.Get(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, next, got)
		assert.Len(t, got.Ledger, 2)
		assert.Equal(t, 1, got.Fleets[game.SeatGuest].TotalCells()-got.Fleets[game.SeatGuest].Remaining())
		assert.Equal(t, game.PlayerID("guest"), got.TurnHolder())

		// one more move on top of a reloaded snapshot
		after, _, err := game.Attack(got, "guest", game.Coord{X: 0, Y: 0}, Base.Add(4*time.Second))
		require.NoError(t, err)
		require.NoError(t, s.Update(ctx, after, got.Version))
		got, err = s.Get(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, after, got)
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		g := waiting(t, "g1", Base)
		require.NoError(t, s.Create(ctx, g))

		joined, err := game.Join(g, "guest", GuestFleet(t), Base)
		require.NoError(t, err)
		require.NoError(t, s.Update(ctx, joined, g.Version))

		other, err := game.Join(g, "late", GuestFleet(t), Base)
		require.NoError(t, err)
		assert.ErrorIs(t, s.Update(ctx, other, g.Version), store.ErrConflict)

		got, err := s.Get(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, game.PlayerID("guest"), got.Players[game.SeatGuest])
	})

	t.Run("list by status oldest first", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		b := waiting(t, "b", Base.Add(2*time.Second))
		a := waiting(t, "a", Base.Add(time.Second))
		c := waiting(t, "c", Base.Add(3*time.Second))
		for _, g := range []game.Game{b, a, c} {
			require.NoError(t, s.Create(ctx, g))
		}
		joined, err := game.Join(c, "guest", GuestFleet(t), Base.Add(4*time.Second))
		require.NoError(t, err)
		require.NoError(t, s.Update(ctx, joined, c.Version))

		list, err := s.ListByStatus(ctx, game.StatusWaiting)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "a", list[0].ID)
		assert.Equal(t, "b", list[1].ID)
		assert.True(t, list[0].Fleets[game.SeatHost].Complete())

		list, err = s.ListByStatus(ctx, game.StatusFinished)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("returned games are copies", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		g := waiting(t, "g1", Base)
		require.NoError(t, s.Create(ctx, g))

		got, err := s.Get(ctx, "g1")
		require.NoError(t, err)
		got.Fleets[game.SeatHost].Ships[0].Cells[0].Struck = true

		again, err := s.Get(ctx, "g1")
		require.NoError(t, err)
		assert.False(t, again.Fleets[game.SeatHost].Ships[0].Cells[0].Struck)
	})
}
