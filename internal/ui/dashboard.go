package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/homecam/internal/gateway"
)

// FetchFunc retrieves one status document from a running daemon.
type FetchFunc func(ctx context.Context) (gateway.Status, error)

type statusMsg struct {
	status gateway.Status
	err    error
	at     time.Time
}

type tickMsg time.Time

type dashboardKeyMap struct {
	Refresh key.Binding
	Quit    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k dashboardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k dashboardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Refresh, k.Quit}}
}

// DashboardModel polls a daemon's /status endpoint and renders it.
type DashboardModel struct {
	Target   string
	Interval time.Duration

	fetch   FetchFunc
	timeout time.Duration

	status   gateway.Status
	err      error
	updated  time.Time
	loading  bool
	width    int
	spinner  spinner.Model
	help     help.Model
	keys     dashboardKeyMap
	quitting bool
}

// NewDashboardModel creates a dashboard for target refreshed every interval.
func NewDashboardModel(target string, interval time.Duration, fetch FetchFunc) DashboardModel {
	if interval <= 0 {
		interval = time.Second
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return DashboardModel{
		Target:   target,
		Interval: interval,
		fetch:    fetch,
		timeout:  interval,
		loading:  true,
		width:    TerminalWidth(),
		spinner:  s,
		help:     help.New(),
		keys: dashboardKeyMap{
			Refresh: key.NewBinding(
				key.WithKeys("r"),
				key.WithHelp("r", "refresh"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q", "ctrl+c", "esc"),
				key.WithHelp("q", "quit"),
			),
		},
	}
}

// Init implements tea.Model
func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll())
}

func (m DashboardModel) poll() tea.Cmd {
	fetch, timeout := m.fetch, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		st, err := fetch(ctx)
		return statusMsg{status: st, err: err, at: time.Now()}
	}
}

func (m DashboardModel) scheduleTick() tea.Cmd {
	return tea.Tick(m.Interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = clampWidth(msg.Width)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			if m.loading {
				return m, nil
			}
			m.loading = true
			return m, m.poll()
		}
		return m, nil

	case statusMsg:
		m.loading = false
		m.err = msg.err
		m.updated = msg.at
		if msg.err == nil {
			m.status = msg.status
		}
		return m, m.scheduleTick()

	case tickMsg:
		if m.loading {
			return m, nil
		}
		m.loading = true
		return m, m.poll()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model
func (m DashboardModel) View() string {
	if m.quitting {
		return ""
	}

	title := TitleStyle.Render("HomeCam  " + m.Target)
	if m.loading {
		title += " " + m.spinner.View()
	}

	var body string
	switch {
	case m.updated.IsZero():
		body = HintStyle.Render("waiting for first status...")
	case m.err != nil:
		body = ErrorMessageStyle.Render("Error: "+m.err.Error()) + "\n\n" + renderStatus(m.status)
	default:
		body = renderStatus(m.status)
	}

	footer := HintStyle.Render("updated " + formatAge(m.updated)) + "\n" + m.help.View(m.keys)

	content := lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", footer)
	return boxStyle(PrimaryColor, m.width).Render(content) + "\n"
}

// RenderStatus renders a single status snapshot.
func RenderStatus(st gateway.Status, width int) string {
	return boxStyle(PrimaryColor, clampWidth(width)).Render(renderStatus(st))
}

func renderStatus(st gateway.Status) string {
	state := lipgloss.NewStyle().Foreground(StateColor(st.Connectivity)).Bold(true).Render(orDash(st.Connectivity))

	source := "unbound"
	if st.SourceBound {
		source = orDash(st.Source)
	}
	servers := "none"
	if len(st.Servers) > 0 {
		servers = strings.Join(st.Servers, ", ")
	}

	rows := []Detail{
		{"Address", orDash(st.Address)},
		{"Frame source", source},
		{"Streams", strconv.FormatInt(st.ActiveStreams, 10)},
		{"Listeners", servers},
		{"Version", orDash(st.Version)},
	}

	lines := []string{KeyStyle.Render("Connectivity:") + " " + state}
	for _, r := range rows {
		lines = append(lines, KeyStyle.Render(r.Key+":")+" "+ValueStyle.Render(r.Value))
	}
	return strings.Join(lines, "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return fmt.Sprintf("%s ago", time.Since(t).Truncate(time.Second))
}

func clampWidth(w int) int {
	if w < MinTerminalWidth {
		return MinTerminalWidth
	}
	if w > MaxContentWidth {
		return MaxContentWidth
	}
	return w
}

// RunDashboard runs the dashboard until the user quits.
func RunDashboard(m DashboardModel) error {
	_, err := tea.NewProgram(m).Run()
	return err
}
