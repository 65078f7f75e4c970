// Package tui is the interactive terminal front end. It renders the
// synchronizer's view and turns key presses into coordinator calls.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"home-jukebox/internal/models"
	"home-jukebox/internal/ui"
)

const (
	scrubStep     = 5 * time.Second
	refreshRate   = 250 * time.Millisecond
	errorLifetime = 5 * time.Second
)

// Controller is the set of transport operations the terminal UI issues.
type Controller interface {
	Play() error
	Next() error
	Prev() error
	PlayTrackAt(index int) error
	VolumeUp() (int, error)
	VolumeDown() (int, error)
}

// Model is the bubbletea model.
type Model struct {
	controller Controller
	sync       *ui.Synchronizer
	tracks     []models.Track
	keys       keyMap
	help       help.Model

	width  int
	height int
	cursor int

	// lastIndex is the song index seen at the previous render; a change
	// scrolls the cursor to the new song.
	lastIndex int
	view      ui.View

	lastError   error
	errorExpiry time.Time
	quitting    bool
}

// NewModel creates a Model over tracks. The synchronizer must already be
// subscribed to the coordinator.
func NewModel(controller Controller, sync *ui.Synchronizer, tracks []models.Track) Model {
	return Model{
		controller: controller,
		sync:       sync,
		tracks:     tracks,
		keys:       defaultKeyMap(),
		help:       help.New(),
		lastIndex:  -1,
		view:       sync.View(),
	}
}

type changedMsg struct{}
type tickMsg time.Time
type errMsg struct{ err error }
type volumeMsg int

func waitForChange(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-changes
		return changedMsg{}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func run(op func() error) tea.Cmd {
	return func() tea.Msg {
		if err := op(); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func changeVolume(op func() (int, error)) tea.Cmd {
	return func() tea.Msg {
		percent, err := op()
		if err != nil {
			return errMsg{err}
		}
		return volumeMsg(percent)
	}
}

// Init starts listening for display changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForChange(m.sync.Changes()), tick())
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case changedMsg:
		m.refresh()
		return m, waitForChange(m.sync.Changes())

	case tickMsg:
		m.refresh()
		if time.Time(msg).After(m.errorExpiry) {
			m.lastError = nil
		}
		return m, tick()

	case volumeMsg:
		m.sync.ShowVolume(int(msg))
		m.refresh()
		return m, nil

	case errMsg:
		m.lastError = msg.err
		m.errorExpiry = time.Now().Add(errorLifetime)
		return m, nil
	}

	return m, nil
}

func (m *Model) refresh() {
	m.view = m.sync.View()
	if m.view.Index != m.lastIndex {
		m.lastIndex = m.view.Index
		if m.view.ScrollTarget >= 0 && m.view.ScrollTarget < len(m.tracks) {
			m.cursor = m.view.ScrollTarget
		}
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.PlayPause):
		return m, run(m.controller.Play)

	case key.Matches(msg, m.keys.Next):
		return m, run(m.controller.Next)

	case key.Matches(msg, m.keys.Prev):
		return m, run(m.controller.Prev)

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.tracks)-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.SeekBack):
		m.sync.DragBy(-int(scrubStep / time.Millisecond))
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.SeekFwd):
		m.sync.DragBy(int(scrubStep / time.Millisecond))
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Cancel):
		m.sync.CancelDrag()
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Select):
		if m.view.Dragging {
			return m, run(m.sync.EndDrag)
		}
		if len(m.tracks) == 0 {
			return m, nil
		}
		index := m.cursor
		return m, run(func() error { return m.controller.PlayTrackAt(index) })

	case key.Matches(msg, m.keys.VolumeUp):
		return m, changeVolume(m.controller.VolumeUp)

	case key.Matches(msg, m.keys.VolumeDown):
		return m, changeVolume(m.controller.VolumeDown)
	}

	return m, nil
}

// View renders the screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	width := m.width
	if width <= 0 {
		width = 80
	}

	nowPlaying := m.renderNowPlaying(width - 4)
	playlist := m.renderPlaylist(width-4, m.playlistRows())

	sections := []string{nowPlaying, playlist}
	if m.view.VolumeMessage != "" {
		sections = append(sections, toastStyle.Render(m.view.VolumeMessage))
	}
	if m.lastError != nil {
		sections = append(sections, errorStyle.Render("Error: "+m.lastError.Error()))
	}
	sections = append(sections, m.help.View(m.keys))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderNowPlaying(width int) string {
	title := panelTitle("Now Playing", false)

	var content string
	if !m.view.HasTrack {
		content = subtitleStyle.Render("Nothing playing. Press space to start.")
	} else {
		track := m.view.Track
		barWidth := width - 20
		if barWidth < 10 {
			barWidth = 10
		}
		progress := fmt.Sprintf("%s %s %s",
			m.view.Elapsed,
			progressBar(m.view.Progress, barWidth, m.view.Dragging),
			m.view.Total,
		)
		if m.view.Dragging {
			progress += " " + pausedStyle.Render("seek")
		}
		content = lipgloss.JoinVertical(lipgloss.Left,
			statusIcon(m.view.Playing)+" "+titleStyle.Render(track.Title),
			"  "+subtitleStyle.Render(track.Artist),
			"  "+dimStyle.Render(track.Album),
			"",
			progress,
		)
	}

	return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func (m Model) playlistRows() int {
	if m.height <= 0 {
		return 10
	}
	rows := m.height - 16
	if rows < 3 {
		rows = 3
	}
	return rows
}

func (m Model) renderPlaylist(width, rows int) string {
	title := panelTitle(fmt.Sprintf("Playlist (%d)", len(m.tracks)), true)
	if len(m.tracks) == 0 {
		return focusedPanelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left,
			title,
			subtitleStyle.Render("No playable files found in the media directory."),
		))
	}

	start := m.cursor - rows/2
	if start > len(m.tracks)-rows {
		start = len(m.tracks) - rows
	}
	if start < 0 {
		start = 0
	}
	end := start + rows
	if end > len(m.tracks) {
		end = len(m.tracks)
	}

	lines := make([]string, 0, end-start+1)
	lines = append(lines, title)
	for i := start; i < end; i++ {
		lines = append(lines, m.renderRow(i, width-2))
	}
	return focusedPanelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m Model) renderRow(i, width int) string {
	track := m.tracks[i]

	marker := "  "
	if i == m.view.Index {
		marker = statusIcon(m.view.Playing) + " "
	}

	label := fmt.Sprintf("%3d. %s - %s", i+1, track.Title, track.Artist)
	duration := track.Duration()
	room := width - lipgloss.Width(duration) - 4
	if room > 0 && lipgloss.Width(label) > room {
		label = truncate(label, room)
	}
	line := fmt.Sprintf("%s%s  %s", marker, label, dimStyle.Render(duration))

	switch {
	case i == m.cursor:
		return cursorStyle.Render(line)
	case i == m.view.Index:
		return highlightStyle.Render(line)
	default:
		return line
	}
}

func truncate(s string, width int) string {
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes)) > width-1 {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}

// Run starts the terminal UI and blocks until the user quits or ctx is
// cancelled.
func Run(ctx context.Context, controller Controller, sync *ui.Synchronizer, tracks []models.Track) error {
	program := tea.NewProgram(
		NewModel(controller, sync, tracks),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
