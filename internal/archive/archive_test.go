package archive

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battleship/internal/game"
)

var t0 = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

// finishedGame ends after the host sinks a single one-cell ship.
func finishedGame(t *testing.T) game.Game {
	t.Helper()
	r := game.RulesFromSizes(3, 3, []int{1})
	host, err := game.BuildFleet(r, []game.Placement{{ShipID: 1, Origin: game.Coord{X: 0, Y: 0}, Orientation: game.Horizontal}})
	require.NoError(t, err)
	guest, err := game.BuildFleet(r, []game.Placement{{ShipID: 1, Origin: game.Coord{X: 2, Y: 2}, Orientation: game.Horizontal}})
	require.NoError(t, err)

	g, err := game.Start("done", r, "alice", host, t0)
	require.NoError(t, err)
	g, err = game.Join(g, "bob", guest, t0)
	require.NoError(t, err)
	g, _, err = game.Attack(g, "alice", game.Coord{X: 1, Y: 1}, t0)
	require.NoError(t, err)
	g, _, err = game.Attack(g, "bob", game.Coord{X: 1, Y: 0}, t0)
	require.NoError(t, err)
	g, out, err := game.Attack(g, "alice", game.Coord{X: 2, Y: 2}, t0.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, out.GameOver)
	return g
}

func TestRowsSkipsUnfinished(t *testing.T) {
	done := finishedGame(t)
	waiting, err := game.Start("open", done.Rules, "carol", done.Fleets[game.SeatHost], t0)
	require.NoError(t, err)

	rows := Rows([]game.Game{waiting, done})
	require.Len(t, rows, 3)
	assert.Equal(t, MoveRow{
		GameID: "done", Seq: 3, Attacker: "alice", Seat: 0, X: 2, Y: 2, Hit: true,
		Winner: "alice", Width: 3, Height: 3, FinishedAt: t0.Add(time.Minute).UnixMilli(),
	}, rows[2])
	assert.Equal(t, int32(1), rows[1].Seat)
}

func TestWriteRead(t *testing.T) {
	rows := Rows([]game.Game{finishedGame(t)})
	path := filepath.Join(t.TempDir(), "out", "moves.parquet")
	require.NoError(t, Write(path, rows))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	_, err = Read(filepath.Join(t.TempDir(), "missing.parquet"))
	assert.Error(t, err)
}
