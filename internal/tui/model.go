// Package tui is a terminal front end for the search session: a search box
// with a dropdown of suggestions or full results.
package tui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/netpulse/webclient/internal/model"
	"github.com/netpulse/webclient/internal/search"
)

// Session is the part of search.Session the UI drives.
type Session interface {
	SetQuery(query string)
	HandleKey(key search.Key)
	FullSearch()
	Select(i int)
	PointerDown(inside bool)
	State() model.SessionState
}

// Navigation records the route the session navigated to. It never blocks,
// so the session may call it from inside Update.
type Navigation struct {
	mu    sync.Mutex
	route string
}

func (n *Navigation) Navigate(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.route = route
}

func (n *Navigation) Take() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	route := n.route
	n.route = ""
	return route, route != ""
}

// Notifier turns session listener calls into bubbletea messages. Bursts of
// changes coalesce into one refresh.
type Notifier struct {
	ch chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{}, 1)}
}

func (n *Notifier) Notify(model.SessionState) {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

type stateChangedMsg struct{}

func (n *Notifier) wait() tea.Cmd {
	return func() tea.Msg {
		<-n.ch
		return stateChangedMsg{}
	}
}

const (
	inputRow     = 1
	firstItemRow = 2
)

type Model struct {
	session  Session
	nav      *Navigation
	notifier *Notifier
	styles   *Styles

	input   textinput.Model
	spinner spinner.Model
	state   model.SessionState
	route   string
	width   int
}

func New(session Session, nav *Navigation, notifier *Notifier) Model {
	input := textinput.New()
	input.Prompt = "Search: "
	input.Placeholder = "articles, topics, protocols..."
	input.CharLimit = 200
	input.Focus()

	return Model{
		session:  session,
		nav:      nav,
		notifier: notifier,
		styles:   NewStyles(),
		input:    input,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		state:    session.State(),
	}
}

// Route is the route navigated to before the program quit, if any.
func (m Model) Route() string {
	return m.route
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick}
	if m.notifier != nil {
		cmds = append(cmds, m.notifier.wait())
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case stateChangedMsg:
		m.state = m.session.State()
		if m.notifier == nil {
			return m, nil
		}
		return m, m.notifier.wait()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
			return m, nil
		}
		if item := msg.Y - firstItemRow; item >= 0 && item < m.state.ActiveLength() {
			m.session.Select(item)
		} else if !m.inside(msg.Y) {
			m.session.PointerDown(false)
			m.input.SetValue("")
		} else {
			m.session.PointerDown(true)
		}
		return m.afterAction()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyDown:
			m.session.HandleKey(search.KeyDown)
			return m.afterAction()
		case tea.KeyUp:
			m.session.HandleKey(search.KeyUp)
			return m.afterAction()
		case tea.KeyEnter:
			m.session.HandleKey(search.KeyEnter)
			return m.afterAction()
		case tea.KeyEsc:
			m.session.HandleKey(search.KeyEscape)
			m.input.SetValue("")
			return m.afterAction()
		case tea.KeyCtrlA:
			m.session.FullSearch()
			return m.afterAction()
		}

		before := m.input.Value()
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		if value := m.input.Value(); value != before {
			m.session.SetQuery(value)
		}
		next, actionCmd := m.afterAction()
		return next, tea.Batch(cmd, actionCmd)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// afterAction refreshes state and quits once the session has navigated.
func (m Model) afterAction() (tea.Model, tea.Cmd) {
	m.state = m.session.State()
	if route, ok := m.nav.Take(); ok {
		m.route = route
		return m, tea.Quit
	}
	return m, nil
}

// inside reports whether screen row y falls within the search box and its
// dropdown.
func (m Model) inside(y int) bool {
	last := inputRow
	if m.dropdownOpen() {
		last = firstItemRow + max(m.state.ActiveLength(), 1) - 1
	}
	return y >= 0 && y <= last
}

func (m Model) dropdownOpen() bool {
	return m.state.Mode != model.ModeIdle || m.state.Loading
}

func (m Model) View() string {
	if m.route != "" {
		return m.styles.Navigated.Render("→ "+m.route) + "\n"
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render("NetPulse"))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	if m.state.Loading {
		b.WriteString(" " + m.styles.Loading.Render(m.spinner.View()))
	}
	b.WriteString("\n")

	if m.dropdownOpen() {
		b.WriteString(m.renderList())
	}

	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render("↑/↓ move • enter open/search • ctrl+a all results • esc close • ctrl+c quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderList() string {
	var b strings.Builder
	switch m.state.Mode {
	case model.ModeResults:
		if len(m.state.Results) == 0 {
			b.WriteString(m.styles.Empty.Render(fmt.Sprintf("No results for %q", m.state.Query)) + "\n")
		}
		for i, r := range m.state.Results {
			line := r.Title
			if r.Excerpt != "" {
				line += "  " + m.styles.Excerpt.Render(truncate(r.Excerpt, 60))
			}
			b.WriteString(m.row(i, line) + "\n")
		}
	default:
		if len(m.state.Suggestions) == 0 && !m.state.Loading {
			b.WriteString(m.styles.Empty.Render("No suggestions") + "\n")
		}
		for i, s := range m.state.Suggestions {
			line := s.Title
			if s.Category != "" {
				line += "  " + m.styles.Category.Render(s.Category)
			}
			b.WriteString(m.row(i, line) + "\n")
		}
	}
	return b.String()
}

func (m Model) row(i int, line string) string {
	if i == m.state.ActiveIndex {
		return m.styles.Active.Render("›" + line)
	}
	return m.styles.Item.Render(line)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
