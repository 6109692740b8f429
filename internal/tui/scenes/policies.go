package scenes

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"phalanx/internal/tui/api"
	"phalanx/internal/tui/styles"
)

// PoliciesScene displays the configured behavioral policies.
type PoliciesScene struct {
	client     *api.Client
	policies   []api.Policy
	err        string
	width      int
	height     int
	cursor     int
	loading    bool
	lastUpdate time.Time
}

// policiesMsg carries updated policies
type policiesMsg struct {
	policies []api.Policy
	err      string
}

// NewPoliciesScene creates a new policies scene
func NewPoliciesScene(client *api.Client) *PoliciesScene {
	return &PoliciesScene{
		client:  client,
		loading: true,
	}
}

// Init initializes the policies scene
func (p *PoliciesScene) Init() tea.Cmd {
	return p.fetchPolicies()
}

func (p *PoliciesScene) fetchPolicies() tea.Cmd {
	return func() tea.Msg {
		resp, err := p.client.GetPolicies()
		if err != nil {
			return policiesMsg{err: err.Error()}
		}
		return policiesMsg{policies: resp.Policies}
	}
}

// TickCmd returns a command that ticks every interval
func (p *PoliciesScene) TickCmd() tea.Cmd {
	return tea.Tick(10*time.Second, func(t time.Time) tea.Msg {
		return TickMsg{Scene: "policies", Time: t}
	})
}

// Update handles messages for the policies scene
func (p *PoliciesScene) Update(msg tea.Msg) (*PoliciesScene, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.height = msg.Height
		return p, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if p.cursor > 0 {
				p.cursor--
			}
		case "down", "j":
			if p.cursor < len(p.policies)-1 {
				p.cursor++
			}
		case "r":
			p.loading = true
			return p, p.fetchPolicies()
		}
		return p, nil

	case policiesMsg:
		p.loading = false
		p.policies = msg.policies
		p.err = msg.err
		p.lastUpdate = time.Now()
		if p.cursor >= len(p.policies) {
			p.cursor = max(0, len(p.policies)-1)
		}
		return p, nil

	case TickMsg:
		if msg.Scene == "policies" {
			return p, p.fetchPolicies()
		}
		return p, nil
	}

	return p, nil
}

// View renders the policy list with the selected policy's rules expanded.
func (p *PoliciesScene) View() string {
	var b strings.Builder

	title := styles.Title.Render("  Policies")
	b.WriteString(title)
	b.WriteString("\n\n")

	if p.loading && len(p.policies) == 0 {
		b.WriteString(styles.Muted.Render("  Loading policies..."))
		return b.String()
	}

	if p.err != "" {
		b.WriteString(styles.StatusError.Render(fmt.Sprintf("  Error: %s", p.err)))
		b.WriteString("\n\n")
		b.WriteString(styles.Muted.Render("  Make sure the policy service is running. Press [r] to retry."))
		return b.String()
	}

	if len(p.policies) == 0 {
		b.WriteString(styles.Muted.Render("  No policies defined."))
		b.WriteString("\n\n")
		b.WriteString(styles.Muted.Render("  Create policies via the HTTP API (POST /v1/policies)."))
		return b.String()
	}

	header := fmt.Sprintf("  %-14s %-24s %-14s %s", "ID", "Name", "Data Type", "Rules")
	b.WriteString(styles.TableHeader.Render(header))
	b.WriteString("\n")

	for i, policy := range p.policies {
		row := fmt.Sprintf("  %-14s %-24s %-14s %d",
			truncate(policy.ID, 14), truncate(policy.Name, 24),
			truncate(policy.DataType, 14), len(policy.Rules))
		if i == p.cursor {
			row = lipgloss.NewStyle().
				Background(styles.Primary).
				Foreground(styles.White).
				Render(row)
		}
		b.WriteString(row)
		b.WriteString("\n")
	}

	// Rule detail for the selected policy.
	if p.cursor < len(p.policies) {
		selected := p.policies[p.cursor]
		b.WriteString("\n")
		b.WriteString(styles.Subtitle.Render(fmt.Sprintf("  %s", selected.Description)))
		b.WriteString("\n")
		for _, rule := range selected.Rules {
			b.WriteString(fmt.Sprintf("    %s %s %v\n", rule.Field, rule.Operator, rule.Value))
		}
	}

	b.WriteString(styles.Muted.Render("\n  [r] Refresh"))
	if !p.lastUpdate.IsZero() {
		b.WriteString(styles.Muted.Render(fmt.Sprintf("  |  Updated: %s", p.lastUpdate.Format("15:04:05"))))
	}

	return b.String()
}
