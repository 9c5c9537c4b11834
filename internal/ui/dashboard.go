package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Jayphen/habisnooze/internal/types"
)

const (
	defaultRefresh      = 5 * time.Second
	defaultHistoryLimit = 20
	fetchTimeout        = 2 * time.Second
)

// RunSource is where the dashboard reads recorded runs from.
// *redis.Client implements it.
type RunSource interface {
	GetRunHistory(ctx context.Context, limit int) ([]types.RunSummary, error)
	RunLockOwner(ctx context.Context) (string, error)
}

// Trigger starts a snooze run and blocks until it finishes.
type Trigger func(ctx context.Context) types.RunSummary

// Dashboard is the Bubbletea model for 'habisnooze watch'.
type Dashboard struct {
	// Data
	runs          []types.RunSummary
	lockOwner     string
	selectedIndex int

	// UI state
	loading       bool
	running       bool
	confirmRun    bool
	err           error
	statusMessage string
	statusExpiry  time.Time
	width, height int
	version       string

	// Components
	spinner spinner.Model

	// Dependencies
	source  RunSource
	trigger Trigger
	refresh time.Duration
	limit   int
}

// Messages
type (
	runsMsg struct {
		runs      []types.RunSummary
		lockOwner string
	}
	errMsg         error
	tickMsg        time.Time
	statusClearMsg struct{}
	runCompleteMsg types.RunSummary
)

// NewDashboard creates a dashboard over source. trigger may be nil, which
// disables the run key.
func NewDashboard(version string, source RunSource, trigger Trigger) Dashboard {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorCyan)

	return Dashboard{
		version: version,
		loading: true,
		spinner: s,
		source:  source,
		trigger: trigger,
		refresh: defaultRefresh,
		limit:   defaultHistoryLimit,
	}
}

// Init initializes the model.
func (m Dashboard) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.fetchRuns,
		m.tick(),
	)
}

// Update handles messages.
func (m Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case runsMsg:
		m.runs = msg.runs
		m.lockOwner = msg.lockOwner
		m.loading = false
		m.err = nil
		// Ensure selected index is in bounds
		if m.selectedIndex >= len(m.runs) {
			m.selectedIndex = max(len(m.runs)-1, 0)
		}
		return m, nil

	case errMsg:
		m.err = msg
		m.loading = false
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetchRuns, m.tick())

	case statusClearMsg:
		if time.Now().After(m.statusExpiry) {
			m.statusMessage = ""
		}
		return m, nil

	case runCompleteMsg:
		m.running = false
		summary := types.RunSummary(msg)
		m.setStatus(fmt.Sprintf("Run %s: %d snoozed, %d failed", summary.Status, summary.Created, summary.Failed))
		m.selectedIndex = 0
		return m, tea.Batch(m.fetchRuns, m.clearStatusLater())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// handleKey handles keyboard input.
func (m Dashboard) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Handle confirmation dialog
	if m.confirmRun {
		switch msg.String() {
		case "y", "Y":
			m.confirmRun = false
			m.running = true
			m.setStatus("Running...")
			return m, m.startRun()
		case "n", "N", "enter", "esc":
			m.confirmRun = false
			m.setStatus("Cancelled")
			return m, m.clearStatusLater()
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.selectedIndex > 0 {
			m.selectedIndex--
		}
		return m, nil

	case "down", "j":
		if m.selectedIndex < len(m.runs)-1 {
			m.selectedIndex++
		}
		return m, nil

	case "x":
		switch {
		case m.trigger == nil:
			m.setStatus("Running from the dashboard is disabled")
			return m, m.clearStatusLater()
		case m.running:
			m.setStatus("Run already in progress")
			return m, m.clearStatusLater()
		}
		m.confirmRun = true
		return m, nil

	case "r":
		return m, m.fetchRuns
	}

	return m, nil
}

// Helper methods

func (m *Dashboard) setStatus(msg string) {
	m.statusMessage = msg
	m.statusExpiry = time.Now().Add(3 * time.Second)
}

func (m Dashboard) selectedRun() *types.RunSummary {
	if m.selectedIndex >= 0 && m.selectedIndex < len(m.runs) {
		return &m.runs[m.selectedIndex]
	}
	return nil
}

// Commands

func (m Dashboard) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Dashboard) clearStatusLater() tea.Cmd {
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return statusClearMsg{}
	})
}

func (m Dashboard) fetchRuns() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	runs, err := m.source.GetRunHistory(ctx, m.limit)
	if err != nil {
		return errMsg(err)
	}

	// The lock owner is informational
	owner, _ := m.source.RunLockOwner(ctx)

	return runsMsg{runs: runs, lockOwner: owner}
}

func (m Dashboard) startRun() tea.Cmd {
	trigger := m.trigger
	return func() tea.Msg {
		return runCompleteMsg(trigger(context.Background()))
	}
}
