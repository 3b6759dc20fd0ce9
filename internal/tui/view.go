package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"battleship/internal/game"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	cursorStyle = lipgloss.NewStyle().Reverse(true)

	markStyles = map[game.Mark]lipgloss.Style{
		game.MarkWater: lipgloss.NewStyle().Foreground(lipgloss.Color("24")),
		game.MarkShip:  lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		game.MarkHit:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		game.MarkMiss:  lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	}
	markGlyphs = map[game.Mark]string{
		game.MarkWater: "~",
		game.MarkShip:  "#",
		game.MarkHit:   "X",
		game.MarkMiss:  "o",
	}
)

// renderBoard draws b with column and row labels. cursor is highlighted
// when show is true.
func renderBoard(b game.Board, cursor game.Coord, show bool) string {
	var sb strings.Builder
	sb.WriteString("  ")
	for x := 0; x < b.Width; x++ {
		fmt.Fprintf(&sb, " %d", x)
	}
	sb.WriteString("\n")
	for y := 0; y < b.Height; y++ {
		fmt.Fprintf(&sb, "%2d", y)
		for x := 0; x < b.Width; x++ {
			c := game.Coord{X: x, Y: y}
			mark := b.At(c)
			cell := markStyles[mark].Render(markGlyphs[mark])
			if show && c == cursor {
				cell = cursorStyle.Render(markGlyphs[mark])
			}
			sb.WriteString(" " + cell)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (m Model) View() string {
	var body, help string
	switch m.phase {
	case phaseLoading:
		body = "loading rules..."
	case phaseSetup:
		body, help = m.setupView()
	case phaseLobby:
		body, help = m.lobbyView()
	case phaseWaiting, phasePlaying, phaseFinished:
		body, help = m.gameView()
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("battleship") + "  " + string(m.opts.Player) + "\n\n")
	sb.WriteString(body + "\n")
	if m.status != "" {
		sb.WriteString("\n" + okStyle.Render(m.status))
	}
	if m.err != nil {
		sb.WriteString("\n" + errStyle.Render(m.err.Error()))
	}
	sb.WriteString("\n" + helpStyle.Render(help+"  q quit") + "\n")
	return sb.String()
}

func (m Model) setupView() (string, string) {
	board := renderBoard(game.OwnBoard(m.rules, m.fleet, nil), m.cursor, true)

	var ships strings.Builder
	for i, spec := range m.rules.Ships {
		s, _ := m.fleet.Ship(spec.ID)
		marker := "  "
		if i == m.selected {
			marker = "> "
		}
		state := "unplaced"
		if s.Placed() {
			state = "placed"
		}
		fmt.Fprintf(&ships, "%s%d. size %d  %s\n", marker, i+1, spec.Size, state)
	}
	fmt.Fprintf(&ships, "\norientation: %s", m.orient)

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		panelStyle.Render(board),
		panelStyle.Render(strings.TrimRight(ships.String(), "\n")),
	)
	help := "arrows move  r rotate  tab/1-9 select  enter place  x clear  g random"
	if m.fleet.Complete() {
		help += "  c continue"
	}
	return "Place your fleet\n" + body, help
}

func (m Model) lobbyView() (string, string) {
	if m.opts.Solo {
		return "Fleet ready.", "a play the computer  esc back"
	}
	var sb strings.Builder
	sb.WriteString("Open games\n")
	if len(m.lobby) == 0 {
		sb.WriteString(helpStyle.Render("  none yet"))
	}
	for i, g := range m.lobby {
		marker := "  "
		if i == m.lobbyIdx {
			marker = "> "
		}
		fmt.Fprintf(&sb, "%s%s  hosted by %s\n", marker, g.ID, g.Players[game.SeatHost])
	}
	return strings.TrimRight(sb.String(), "\n"), "n new game  a vs computer  enter join  f refresh  esc back"
}

func (m Model) gameView() (string, string) {
	v := m.view
	r := game.Rules{Width: v.Width, Height: v.Height, Ships: v.Ships}
	if r.Width == 0 {
		r = m.rules
	}
	own := renderBoard(game.OwnBoard(r, v.Fleet, v.Incoming), game.Coord{}, false)
	target := renderBoard(game.TargetBoard(r.Width, r.Height, v.Shots), m.cursor, m.phase == phasePlaying)

	boards := lipgloss.JoinHorizontal(lipgloss.Top,
		panelStyle.Render("your fleet\n"+own),
		panelStyle.Render("enemy waters\n"+target),
	)

	var line string
	switch m.phase {
	case phaseWaiting:
		line = fmt.Sprintf("game %s: waiting for an opponent", m.gameID)
	case phasePlaying:
		if v.YourTurn {
			line = "your turn"
		} else {
			line = fmt.Sprintf("%s is shooting...", v.Opponent)
		}
	case phaseFinished:
		if v.Winner == v.You {
			line = okStyle.Render("you win!")
		} else {
			line = errStyle.Render(fmt.Sprintf("%s wins", v.Winner))
		}
	}
	if m.last != nil {
		last := "miss"
		if m.last.Hit {
			last = "hit"
			if m.last.Sunk != 0 {
				last = fmt.Sprintf("hit, ship %d sunk", m.last.Sunk)
			}
		}
		line += fmt.Sprintf("\nlast shot %s: %s", m.last.Target, last)
	}
	if len(v.EnemySunk) > 0 {
		line += fmt.Sprintf("\nenemy ships sunk: %v", v.EnemySunk)
	}

	help := "arrows aim  enter fire"
	if !m.polling && !m.live && m.phase != phaseFinished {
		help += "  p resume"
	}
	if m.phase == phaseFinished {
		help = "n new game"
	}
	return boards + "\n" + line, help
}
