package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battleship/internal/game"
	"battleship/internal/store"
	"battleship/internal/store/storetest"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "battleship.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return openTemp(t)
	})
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), " ")
	assert.Error(t, err)
}

func TestReopenKeepsGamesAndSkipsMigrations(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "battleship.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	g, err := game.Start("g1", game.DefaultRules(), "host", storetest.HostFleet(t), storetest.Base)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, g))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, g, got)

	var n int
	require.NoError(t, s.sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestMovesAreAppendOnly(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	g, err := game.Start("g1", game.DefaultRules(), "host", storetest.HostFleet(t), storetest.Base)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, g))
	joined, err := game.Join(g, "guest", storetest.GuestFleet(t), storetest.Base)
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, joined, g.Version))

	shot, _, err := game.Attack(joined, "host", game.Coord{X: 3, Y: 3}, storetest.Base.Add(time.Second))
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, shot, joined.Version))

	_, err = s.sqlDB.ExecContext(ctx,
		"INSERT INTO moves (game_id, seq, player_id, x, y, hit, created_at) VALUES ('g1', 9, 'host', 3, 3, 0, 0)")
	assert.Error(t, err, "duplicate attack must violate the unique index")
}
