package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battleship/internal/ai"
	"battleship/internal/app"
	"battleship/internal/game"
	"battleship/internal/store/memory"
)

func newBackend(t *testing.T) *Local {
	t.Helper()
	svc, err := app.New(memory.New(), game.DefaultRules(),
		app.WithScheduler(func(task func()) { task() }),
		app.WithOpponent(ai.NewOpponent(9, 0, zerolog.Nop())),
	)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return NewLocal(svc)
}

func opts(player game.PlayerID, solo bool) Options {
	return Options{Player: player, Solo: solo, PollInterval: time.Millisecond, PollTimeout: time.Hour}
}

// collect runs cmd and returns the messages it produces. Batches are
// expanded; poll ticks are dropped so tests never loop on the timer.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	switch msg := msg.(type) {
	case tea.BatchMsg:
		var out []tea.Msg
		for _, c := range msg {
			out = append(out, collect(c)...)
		}
		return out
	case tickMsg:
		return nil
	case nil:
		return nil
	}
	return []tea.Msg{msg}
}

// settle feeds msg to m and keeps processing follow-up commands.
func settle(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := collect(cmd)
	for i := 0; len(queue) > 0; i++ {
		require.Less(t, i, 100, "update loop did not settle")
		msg := queue[0]
		queue = queue[1:]
		next, c := m.Update(msg)
		m = next.(Model)
		queue = append(queue, collect(c)...)
	}
	return m
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		next, cmd := m.Update(key(k))
		m = settle(t, next.(Model), cmd)
	}
	return m
}

func started(t *testing.T, b Backend, o Options) Model {
	t.Helper()
	m := New(b, o)
	m = settle(t, m, m.Init())
	require.Equal(t, phaseSetup, m.phase)
	return m
}

func TestManualPlacement(t *testing.T) {
	m := started(t, newBackend(t), opts("alice", true))

	// ship 1 (size 3) at (0,0) across
	m = press(t, m, "enter")
	assert.Equal(t, 1, m.selected, "selection moves to the next unplaced ship")

	// ship 2 on top of ship 1 is rejected
	m = press(t, m, "enter")
	assert.ErrorIs(t, m.err, game.ErrOverlap)

	// ship 2 down from (4,0)
	m = press(t, m, "r", "right", "right", "right", "right", "enter")
	require.NoError(t, m.err)

	// continuing early is refused
	m = press(t, m, "c")
	assert.ErrorIs(t, m.err, game.ErrIncompleteFleet)
	assert.Equal(t, phaseSetup, m.phase)

	// ship 3 at (2,2)
	m = press(t, m, "left", "left", "down", "down", "enter")
	require.NoError(t, m.err)
	assert.True(t, m.fleet.Complete())

	// clearing reopens the slot
	m = press(t, m, "x")
	assert.False(t, m.fleet.Complete())
	m = press(t, m, "enter", "c")
	assert.Equal(t, phaseLobby, m.phase)
	assert.Contains(t, m.View(), "play the computer")
}

func TestSoloGameAgainstComputer(t *testing.T) {
	m := started(t, newBackend(t), opts("alice", true))
	m = press(t, m, "g")
	require.True(t, m.fleet.Complete())
	m = press(t, m, "c", "a")

	require.Equal(t, phasePlaying, m.phase)
	require.NotEmpty(t, m.gameID)
	assert.True(t, m.view.YourTurn)

	m = press(t, m, "enter")
	require.NotNil(t, m.last)
	require.NoError(t, m.err)
	assert.Len(t, m.view.Shots, 1)

	if m.phase == phasePlaying && m.view.YourTurn {
		// firing at the same square again is caught locally
		m = press(t, m, "enter")
		assert.ErrorIs(t, m.err, game.ErrDuplicateAttack)
	}

	// sweep the board; the inline bot replies between shots
	for y := 0; y < 5 && m.phase == phasePlaying; y++ {
		for x := 0; x < 5 && m.phase == phasePlaying; x++ {
			m.cursor = game.Coord{X: x, Y: y}
			if _, shot := m.view.Hit(m.cursor); shot || !m.view.YourTurn {
				continue
			}
			m = press(t, m, "enter")
		}
	}
	assert.Equal(t, phaseFinished, m.phase)
	assert.False(t, m.polling)
	assert.Contains(t, m.View(), "win")

	m = press(t, m, "n")
	assert.Equal(t, phaseSetup, m.phase)
	assert.False(t, m.fleet.Complete())
}

func TestLobbyJoin(t *testing.T) {
	b := newBackend(t)

	alice := started(t, b, opts("alice", false))
	alice = press(t, alice, "g", "c", "n")
	require.Equal(t, phaseWaiting, alice.phase)
	assert.Contains(t, alice.View(), "waiting for an opponent")

	bob := started(t, b, opts("bob", false))
	bob = press(t, bob, "g", "c")
	require.Equal(t, phaseLobby, bob.phase)
	require.Len(t, bob.lobby, 1)
	bob = press(t, bob, "enter")
	require.Equal(t, phasePlaying, bob.phase)
	assert.False(t, bob.view.YourTurn)

	// bob cannot shoot out of turn
	bob = press(t, bob, "enter")
	assert.ErrorIs(t, bob.err, game.ErrNotYourTurn)

	// alice's next poll sees the game start
	alice = settle(t, alice, alice.fetchView())
	assert.Equal(t, phasePlaying, alice.phase)
	assert.True(t, alice.view.YourTurn)
}

func TestPollingStopsAfterTimeout(t *testing.T) {
	b := newBackend(t)
	o := opts("alice", false)
	o.PollTimeout = time.Minute
	m := started(t, b, o)

	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }
	m = press(t, m, "g", "c", "n")
	require.True(t, m.polling)

	next, cmd := m.Update(tickMsg{gen: m.pollGen})
	m = next.(Model)
	assert.NotNil(t, cmd, "still inside the window")

	clock = clock.Add(2 * time.Minute)
	next, cmd = m.Update(tickMsg{gen: m.pollGen})
	m = next.(Model)
	assert.Nil(t, cmd)
	assert.False(t, m.polling)
	assert.Contains(t, m.View(), "p resume")

	// stale ticks from the old window are ignored after resuming
	gen := m.pollGen
	m = press(t, m, "p")
	assert.True(t, m.polling)
	next, cmd = m.Update(tickMsg{gen: gen})
	assert.Nil(t, cmd)
	_ = next
}

func TestQuit(t *testing.T) {
	m := started(t, newBackend(t), opts("alice", true))
	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestPreloadedFleet(t *testing.T) {
	o := opts("alice", true)
	o.Fleet = []game.Placement{
		{ShipID: 1, Origin: game.Coord{X: 0, Y: 0}, Orientation: game.Horizontal},
		{ShipID: 2, Origin: game.Coord{X: 4, Y: 0}, Orientation: game.Vertical},
		{ShipID: 3, Origin: game.Coord{X: 2, Y: 2}, Orientation: game.Horizontal},
	}
	m := started(t, newBackend(t), o)
	assert.True(t, m.fleet.Complete())

	o.Fleet = o.Fleet[:1]
	m = started(t, newBackend(t), o)
	assert.ErrorIs(t, m.err, game.ErrIncompleteFleet)
	assert.False(t, m.fleet.Complete())
}

func TestPushedEventsRefreshTheView(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	alice := started(t, b, opts("alice", false))
	alice = press(t, alice, "g", "c")
	alice.opts.Push = true

	next, cmd := alice.Update(key("n"))
	alice = next.(Model)
	seated := collect(cmd)
	require.Len(t, seated, 1)
	next, cmd = alice.Update(seated[0])
	alice = next.(Model)
	require.True(t, alice.polling)

	// the first fetch and the subscription come back together
	var waiting tea.Cmd
	for _, msg := range collect(cmd) {
		next, c := alice.Update(msg)
		alice = next.(Model)
		if _, ok := msg.(watchMsg); ok {
			waiting = c
		}
	}
	require.NotNil(t, waiting)
	require.True(t, alice.live)
	assert.False(t, alice.polling)
	assert.Equal(t, phaseWaiting, alice.phase)
	assert.NotContains(t, alice.View(), "p resume")

	f, err := b.RandomFleet(ctx)
	require.NoError(t, err)
	_, err = b.Join(ctx, alice.gameID, "bob", f.Placements())
	require.NoError(t, err)

	// the join event is buffered, so waiting on it returns at once
	var again tea.Cmd
	for _, msg := range collect(waiting) {
		next, c := alice.Update(msg)
		alice = next.(Model)
		if _, ok := msg.(eventMsg); ok {
			again = c
		}
	}
	require.NotNil(t, again)
	assert.Equal(t, phasePlaying, alice.phase)
	assert.True(t, alice.view.YourTurn)

	// losing the stream falls back to polling
	alice.stopWatch()
	var resumed tea.Cmd
	for _, msg := range collect(again) {
		next, c := alice.Update(msg)
		alice = next.(Model)
		if _, ok := msg.(watchEndedMsg); ok {
			resumed = c
		}
	}
	assert.NotNil(t, resumed)
	assert.False(t, alice.live)
	assert.True(t, alice.polling)
}
