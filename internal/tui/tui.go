// Package tui provides a terminal dashboard for the anomaly platform.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"phalanx/internal/tui/api"
	"phalanx/internal/tui/scenes"
	"phalanx/internal/tui/styles"
)

// Scene represents the current view
type Scene int

const (
	SceneDashboard Scene = iota
	SceneAnomalies
	ScenePolicies
)

// Model is the main TUI model
type Model struct {
	client *api.Client

	scene Scene

	// Scene models - only the active one receives updates
	dashboard *scenes.DashboardScene
	anomalies *scenes.AnomaliesScene
	policies  *scenes.PoliciesScene

	width  int
	height int

	quitting bool
}

// New creates a new TUI model
func New(detectURL, policyURL string) *Model {
	client := api.NewClient(detectURL, policyURL)

	return &Model{
		client:    client,
		scene:     SceneDashboard,
		dashboard: scenes.NewDashboardScene(client),
		anomalies: scenes.NewAnomaliesScene(client),
		policies:  scenes.NewPoliciesScene(client),
	}
}

// Init initializes the TUI
func (m *Model) Init() tea.Cmd {
	// Only the active scene's ticker runs at startup.
	return tea.Batch(
		m.dashboard.Init(),
		m.getActiveSceneTickCmd(),
	)
}

// getActiveSceneTickCmd returns the tick command for the active scene only.
// Inactive scenes must not tick.
func (m *Model) getActiveSceneTickCmd() tea.Cmd {
	switch m.scene {
	case SceneDashboard:
		return m.dashboard.TickCmd()
	case SceneAnomalies:
		return m.anomalies.TickCmd()
	case ScenePolicies:
		return m.policies.TickCmd()
	default:
		return nil
	}
}

// Update handles all messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "1":
			if m.scene != SceneDashboard {
				m.scene = SceneDashboard
				cmds = append(cmds, m.dashboard.Init(), m.dashboard.TickCmd())
			}
			return m, tea.Batch(cmds...)

		case "2":
			if m.scene != SceneAnomalies {
				m.scene = SceneAnomalies
				cmds = append(cmds, m.anomalies.Init(), m.anomalies.TickCmd())
			}
			return m, tea.Batch(cmds...)

		case "3":
			if m.scene != ScenePolicies {
				m.scene = ScenePolicies
				cmds = append(cmds, m.policies.Init(), m.policies.TickCmd())
			}
			return m, tea.Batch(cmds...)

		case "tab":
			m.scene = (m.scene + 1) % 3
			cmds = append(cmds, m.getActiveSceneTickCmd())
			return m, tea.Batch(cmds...)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.dashboard, _ = m.dashboard.Update(msg)
		m.anomalies, _ = m.anomalies.Update(msg)
		m.policies, _ = m.policies.Update(msg)
		return m, nil

	case scenes.TickMsg:
		// Only forward tick to the active scene and schedule its next one.
		var cmd tea.Cmd
		switch m.scene {
		case SceneDashboard:
			m.dashboard, cmd = m.dashboard.Update(msg)
			if cmd != nil {
				cmds = append(cmds, cmd)
			}
			cmds = append(cmds, m.dashboard.TickCmd())
		case SceneAnomalies:
			m.anomalies, cmd = m.anomalies.Update(msg)
			if cmd != nil {
				cmds = append(cmds, cmd)
			}
			cmds = append(cmds, m.anomalies.TickCmd())
		case ScenePolicies:
			m.policies, cmd = m.policies.Update(msg)
			if cmd != nil {
				cmds = append(cmds, cmd)
			}
			cmds = append(cmds, m.policies.TickCmd())
		}
		return m, tea.Batch(cmds...)
	}

	// Forward other messages to active scene only
	var cmd tea.Cmd
	switch m.scene {
	case SceneDashboard:
		m.dashboard, cmd = m.dashboard.Update(msg)
	case SceneAnomalies:
		m.anomalies, cmd = m.anomalies.Update(msg)
	case ScenePolicies:
		m.policies, cmd = m.policies.Update(msg)
	}

	if cmd != nil {
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View renders the current view
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	switch m.scene {
	case SceneDashboard:
		b.WriteString(m.dashboard.View())
	case SceneAnomalies:
		b.WriteString(m.anomalies.View())
	case ScenePolicies:
		b.WriteString(m.policies.View())
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

func (m *Model) renderHeader() string {
	tabs := []struct {
		name  string
		key   string
		scene Scene
	}{
		{"Dashboard", "1", SceneDashboard},
		{"Anomalies", "2", SceneAnomalies},
		{"Policies", "3", ScenePolicies},
	}

	var tabViews []string
	for _, tab := range tabs {
		label := fmt.Sprintf(" %s %s ", tab.key, tab.name)
		if tab.scene == m.scene {
			tabViews = append(tabViews, styles.TabActive.Render(label))
		} else {
			tabViews = append(tabViews, styles.TabInactive.Render(label))
		}
	}

	tabBar := lipgloss.JoinHorizontal(lipgloss.Top, tabViews...)

	header := lipgloss.NewStyle().
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.MutedColor).
		Width(m.width).
		Render(tabBar)

	return header
}

func (m *Model) renderFooter() string {
	help := " [1-3] Switch tabs  [Tab] Next tab  [↑↓/jk] Navigate  [q] Quit "
	return styles.Help.Render(help)
}

// Run starts the TUI application
func Run(detectURL, policyURL string) error {
	m := New(detectURL, policyURL)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
