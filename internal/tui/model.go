// Package tui is the terminal client: place a fleet, pick or create a game,
// then fire at the opponent's grid. Opponent moves arrive as pushed events
// when the backend supports it, otherwise by polling.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"battleship/internal/game"
	"battleship/internal/notify"
)

type phase int

const (
	phaseLoading phase = iota
	phaseSetup
	phaseLobby
	phaseWaiting
	phasePlaying
	phaseFinished
)

type Options struct {
	Player game.PlayerID
	// Solo hides human games; only the computer can be challenged.
	Solo         bool
	PollInterval time.Duration
	PollTimeout  time.Duration
	CallTimeout  time.Duration
	// Fleet, when set, is placed as soon as the rules are known.
	Fleet []game.Placement
	// Push follows change events from a Watcher backend and falls back to
	// polling when the stream ends.
	Push bool
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = 10 * time.Minute
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 10 * time.Second
	}
	return o
}

type Model struct {
	backend Backend
	opts    Options
	now     func() time.Time

	phase    phase
	rules    game.Rules
	fleet    game.Fleet
	selected int
	orient   game.Orientation
	cursor   game.Coord

	lobby    []game.State
	lobbyIdx int

	gameID      string
	view        game.View
	last        *game.Outcome
	polling     bool
	pollGen     int
	pollStarted time.Time

	live      bool
	events    <-chan notify.Event
	stopWatch context.CancelFunc

	status string
	err    error
}

func New(b Backend, opts Options) Model {
	return Model{
		backend: b,
		opts:    opts.withDefaults(),
		now:     time.Now,
		orient:  game.Horizontal,
	}
}

// === Messages ===

type rulesMsg struct{ rules game.Rules }

type fleetMsg struct{ fleet game.Fleet }

type lobbyMsg struct{ games []game.State }

type seatedMsg struct{ state game.State }

type viewMsg struct{ view game.View }

type attackMsg struct{ outcome game.Outcome }

type errMsg struct{ err error }

type tickMsg struct{ gen int }

type watchMsg struct {
	id     string
	events <-chan notify.Event
	cancel context.CancelFunc
}

type eventMsg struct {
	id string
	ev notify.Event
}

type watchEndedMsg struct{ id string }

// === Commands ===

func (m Model) call(fn func(ctx context.Context) (tea.Msg, error)) tea.Cmd {
	timeout := m.opts.CallTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		msg, err := fn(ctx)
		if err != nil {
			return errMsg{err}
		}
		return msg
	}
}

func (m Model) loadRules() tea.Cmd {
	return m.call(func(ctx context.Context) (tea.Msg, error) {
		r, err := m.backend.Rules(ctx)
		return rulesMsg{r}, err
	})
}

func (m Model) randomFleet() tea.Cmd {
	return m.call(func(ctx context.Context) (tea.Msg, error) {
		f, err := m.backend.RandomFleet(ctx)
		return fleetMsg{f}, err
	})
}

func (m Model) listGames() tea.Cmd {
	return m.call(func(ctx context.Context) (tea.Msg, error) {
		gs, err := m.backend.ListWaiting(ctx)
		return lobbyMsg{gs}, err
	})
}

func (m Model) create(vsAI bool) tea.Cmd {
	ships := m.fleet.Placements()
	return m.call(func(ctx context.Context) (tea.Msg, error) {
		st, err := m.backend.CreateGame(ctx, m.opts.Player, ships, vsAI)
		return seatedMsg{st}, err
	})
}

func (m Model) join(id string) tea.Cmd {
	ships := m.fleet.Placements()
	return m.call(func(ctx context.Context) (tea.Msg, error) {
		st, err := m.backend.Join(ctx, id, m.opts.Player, ships)
		return seatedMsg{st}, err
	})
}

func (m Model) fetchView() tea.Cmd {
	id := m.gameID
	return m.call(func(ctx context.Context) (tea.Msg, error) {
		v, err := m.backend.View(ctx, id, m.opts.Player)
		return viewMsg{v}, err
	})
}

func (m Model) fire(c game.Coord) tea.Cmd {
	id := m.gameID
	return m.call(func(ctx context.Context) (tea.Msg, error) {
		out, err := m.backend.Attack(ctx, id, m.opts.Player, c)
		return attackMsg{out}, err
	})
}

func tick(d time.Duration, gen int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return tickMsg{gen} })
}

// startPolling begins a fresh polling window. Ticks from an older window
// carry a stale generation and are dropped.
func (m *Model) startPolling() tea.Cmd {
	m.pollGen++
	m.polling = true
	m.pollStarted = m.now()
	return tea.Batch(m.fetchView(), tick(m.opts.PollInterval, m.pollGen))
}

// watch opens a change stream for the current game, or does nothing when
// push is off or the backend cannot push.
func (m Model) watch() tea.Cmd {
	w, ok := m.backend.(Watcher)
	if !m.opts.Push || !ok {
		return nil
	}
	id := m.gameID
	return func() tea.Msg {
		ctx, cancel := context.WithCancel(context.Background())
		events, err := w.Watch(ctx, id)
		if err != nil {
			cancel()
			return watchEndedMsg{id}
		}
		return watchMsg{id: id, events: events, cancel: cancel}
	}
}

func waitEvent(id string, events <-chan notify.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return watchEndedMsg{id}
		}
		return eventMsg{id: id, ev: ev}
	}
}

func (m *Model) stopWatching() {
	if m.stopWatch != nil {
		m.stopWatch()
	}
	m.stopWatch = nil
	m.events = nil
	m.live = false
}

// === Update ===

func (m Model) Init() tea.Cmd {
	return m.loadRules()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.stopWatching()
			return m, tea.Quit
		}
		return m.handleKey(msg.String())

	case errMsg:
		m.err = msg.err
		return m, nil

	case rulesMsg:
		m.rules = msg.rules
		m.fleet = game.NewFleet(msg.rules)
		m.selected = 0
		m.phase = phaseSetup
		if len(m.opts.Fleet) > 0 {
			f, err := game.BuildFleet(msg.rules, m.opts.Fleet)
			if err != nil {
				m.err = fmt.Errorf("saved fleet: %w", err)
				return m, nil
			}
			m.fleet = f
			m.status = "fleet loaded"
		}
		return m, nil

	case fleetMsg:
		m.fleet = msg.fleet
		m.err = nil
		m.status = "random fleet placed"
		return m, nil

	case lobbyMsg:
		m.lobby = msg.games
		if m.lobbyIdx >= len(m.lobby) {
			m.lobbyIdx = 0
		}
		return m, nil

	case seatedMsg:
		m.stopWatching()
		m.gameID = msg.state.ID
		m.err = nil
		m.last = nil
		m.cursor = game.Coord{}
		m.phase = phaseWaiting
		if msg.state.Status == game.StatusPlaying {
			m.phase = phasePlaying
		}
		return m, tea.Batch(m.startPolling(), m.watch())

	case watchMsg:
		if msg.id != m.gameID || m.phase == phaseFinished {
			msg.cancel()
			return m, nil
		}
		m.stopWatching()
		m.live = true
		m.events = msg.events
		m.stopWatch = msg.cancel
		// pushed events replace the poll loop; bumping the generation drops
		// ticks already in flight
		m.polling = false
		m.pollGen++
		return m, tea.Batch(m.fetchView(), waitEvent(msg.id, msg.events))

	case eventMsg:
		if !m.live || msg.id != m.gameID {
			return m, nil
		}
		return m, tea.Batch(m.fetchView(), waitEvent(msg.id, m.events))

	case watchEndedMsg:
		if !m.live || msg.id != m.gameID {
			return m, nil
		}
		m.stopWatching()
		if m.phase == phaseFinished {
			return m, nil
		}
		return m, m.startPolling()

	case viewMsg:
		m.view = msg.view
		switch msg.view.Status {
		case game.StatusWaiting:
			m.phase = phaseWaiting
		case game.StatusPlaying:
			m.phase = phasePlaying
		case game.StatusFinished:
			m.phase = phaseFinished
			m.polling = false
			m.stopWatching()
		}
		return m, nil

	case attackMsg:
		out := msg.outcome
		m.last = &out
		m.err = nil
		// refresh right away; with a local bot the reply may already be in
		return m, m.fetchView()

	case tickMsg:
		if !m.polling || msg.gen != m.pollGen {
			return m, nil
		}
		if m.now().Sub(m.pollStarted) >= m.opts.PollTimeout {
			m.polling = false
			m.status = "stopped refreshing; press p to resume"
			return m, nil
		}
		return m, tea.Batch(m.fetchView(), tick(m.opts.PollInterval, m.pollGen))
	}
	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	switch m.phase {
	case phaseSetup:
		return m.setupKey(key)
	case phaseLobby:
		return m.lobbyKey(key)
	case phaseWaiting, phasePlaying:
		return m.playKey(key)
	case phaseFinished:
		if key == "n" {
			m.stopWatching()
			m.phase = phaseSetup
			m.fleet = game.NewFleet(m.rules)
			m.selected = 0
			m.gameID = ""
			m.view = game.View{}
			m.last = nil
			m.status = ""
		}
	}
	return m, nil
}

func (m *Model) moveCursor(key string) bool {
	switch key {
	case "up", "k":
		if m.cursor.Y > 0 {
			m.cursor.Y--
		}
	case "down", "j":
		if m.cursor.Y < m.rules.Height-1 {
			m.cursor.Y++
		}
	case "left", "h":
		if m.cursor.X > 0 {
			m.cursor.X--
		}
	case "right", "l":
		if m.cursor.X < m.rules.Width-1 {
			m.cursor.X++
		}
	default:
		return false
	}
	return true
}

func (m Model) setupKey(key string) (tea.Model, tea.Cmd) {
	if m.moveCursor(key) {
		return m, nil
	}
	switch key {
	case "r":
		if m.orient == game.Horizontal {
			m.orient = game.Vertical
		} else {
			m.orient = game.Horizontal
		}
	case "tab":
		m.selected = (m.selected + 1) % len(m.rules.Ships)
	case "enter", " ":
		spec := m.rules.Ships[m.selected]
		next, err := m.fleet.PlaceShip(m.rules, spec.ID, m.cursor, spec.Size, m.orient)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.fleet, m.err = next, nil
		m.selectUnplaced()
	case "x":
		next, err := m.fleet.ClearShip(m.rules.Ships[m.selected].ID)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.fleet = next
	case "g":
		return m, m.randomFleet()
	case "c":
		if !m.fleet.Complete() {
			m.err = game.ErrIncompleteFleet
			return m, nil
		}
		m.err = nil
		m.status = ""
		m.phase = phaseLobby
		if m.opts.Solo {
			return m, nil
		}
		return m, m.listGames()
	default:
		if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= len(m.rules.Ships) {
			m.selected = n - 1
		}
	}
	return m, nil
}

// selectUnplaced moves the selection to the next ship still waiting for a
// position, if any.
func (m *Model) selectUnplaced() {
	for i := 1; i <= len(m.rules.Ships); i++ {
		idx := (m.selected + i) % len(m.rules.Ships)
		s, _ := m.fleet.Ship(m.rules.Ships[idx].ID)
		if !s.Placed() {
			m.selected = idx
			return
		}
	}
}

func (m Model) lobbyKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "a":
		return m, m.create(true)
	case "esc":
		m.phase = phaseSetup
		return m, nil
	}
	if m.opts.Solo {
		return m, nil
	}
	switch key {
	case "n":
		return m, m.create(false)
	case "f", "ctrl+r":
		return m, m.listGames()
	case "up", "k":
		if m.lobbyIdx > 0 {
			m.lobbyIdx--
		}
	case "down", "j":
		if m.lobbyIdx < len(m.lobby)-1 {
			m.lobbyIdx++
		}
	case "enter":
		if len(m.lobby) == 0 {
			m.err = fmt.Errorf("no open games; press n to create one")
			return m, nil
		}
		return m, m.join(m.lobby[m.lobbyIdx].ID)
	}
	return m, nil
}

func (m Model) playKey(key string) (tea.Model, tea.Cmd) {
	if m.moveCursor(key) {
		return m, nil
	}
	switch key {
	case "p":
		if !m.polling && !m.live {
			m.status = ""
			return m, m.startPolling()
		}
	case "enter", " ":
		if m.phase != phasePlaying || !m.view.YourTurn {
			m.err = game.ErrNotYourTurn
			return m, nil
		}
		if _, shot := m.view.Hit(m.cursor); shot {
			m.err = game.ErrDuplicateAttack
			return m, nil
		}
		return m, m.fire(m.cursor)
	}
	return m, nil
}
