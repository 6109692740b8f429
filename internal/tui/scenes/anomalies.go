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

// AnomaliesScene displays the recorded anomaly verdicts.
type AnomaliesScene struct {
	client     *api.Client
	anomalies  []api.Verdict
	totalCount int
	err        string
	width      int
	height     int
	cursor     int
	offset     int
	loading    bool
	maxRows    int
	lastUpdate time.Time
}

// anomaliesMsg carries updated verdicts
type anomaliesMsg struct {
	anomalies  []api.Verdict
	totalCount int
	err        string
}

// NewAnomaliesScene creates a new anomalies scene
func NewAnomaliesScene(client *api.Client) *AnomaliesScene {
	return &AnomaliesScene{
		client:  client,
		loading: true,
		maxRows: 10,
	}
}

// Init initializes the anomalies scene
func (a *AnomaliesScene) Init() tea.Cmd {
	return a.fetchAnomalies()
}

func (a *AnomaliesScene) fetchAnomalies() tea.Cmd {
	return func() tea.Msg {
		resp, err := a.client.GetAnomalies()
		if err != nil {
			return anomaliesMsg{err: err.Error()}
		}
		return anomaliesMsg{
			anomalies:  resp.Anomalies,
			totalCount: resp.Total,
		}
	}
}

// TickCmd returns a command that ticks every interval
func (a *AnomaliesScene) TickCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
		return TickMsg{Scene: "anomalies", Time: t}
	})
}

// Update handles messages for the anomalies scene
func (a *AnomaliesScene) Update(msg tea.Msg) (*AnomaliesScene, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.maxRows = max(5, a.height-12)
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if a.cursor > 0 {
				a.cursor--
				if a.cursor < a.offset {
					a.offset = a.cursor
				}
			}
		case "down", "j":
			if a.cursor < len(a.anomalies)-1 {
				a.cursor++
				if a.cursor >= a.offset+a.maxRows {
					a.offset = a.cursor - a.maxRows + 1
				}
			}
		case "pgup":
			a.cursor = max(0, a.cursor-a.maxRows)
			a.offset = max(0, a.offset-a.maxRows)
		case "pgdown":
			a.cursor = min(len(a.anomalies)-1, a.cursor+a.maxRows)
			a.offset = min(max(0, len(a.anomalies)-a.maxRows), a.offset+a.maxRows)
		case "r":
			a.loading = true
			return a, a.fetchAnomalies()
		}
		return a, nil

	case anomaliesMsg:
		a.loading = false
		a.anomalies = msg.anomalies
		a.totalCount = msg.totalCount
		a.err = msg.err
		a.lastUpdate = time.Now()
		if a.cursor >= len(a.anomalies) {
			a.cursor = max(0, len(a.anomalies)-1)
		}
		return a, nil

	case TickMsg:
		if msg.Scene == "anomalies" {
			return a, a.fetchAnomalies()
		}
		return a, nil
	}

	return a, nil
}

// View renders the anomaly list
func (a *AnomaliesScene) View() string {
	var b strings.Builder

	title := styles.Title.Render("  Anomalies")
	b.WriteString(title)
	b.WriteString("\n\n")

	if a.loading && len(a.anomalies) == 0 {
		b.WriteString(styles.Muted.Render("  Loading anomalies..."))
		return b.String()
	}

	if a.err != "" {
		b.WriteString(styles.StatusError.Render(fmt.Sprintf("  Error: %s", a.err)))
		b.WriteString("\n\n")
		b.WriteString(styles.Muted.Render("  Make sure the detection service is running."))
		b.WriteString("\n")
		b.WriteString(styles.Muted.Render("  Press [r] to retry."))
		return b.String()
	}

	if len(a.anomalies) == 0 {
		b.WriteString(styles.Muted.Render("  No anomalies recorded."))
		b.WriteString("\n\n")
		b.WriteString(styles.Muted.Render("  Verdicts appear here as events are checked (POST /v1/check-event)."))
		return b.String()
	}

	countText := fmt.Sprintf("  Showing %d of %d anomalies", len(a.anomalies), a.totalCount)
	b.WriteString(styles.Subtitle.Render(countText))
	if a.loading {
		b.WriteString(styles.Muted.Render("  (refreshing...)"))
	}
	b.WriteString("\n\n")

	header := fmt.Sprintf("  %-10s %-12s %-14s %s",
		"Time", "User", "Event Type", "Reason")
	b.WriteString(styles.TableHeader.Render(header))
	b.WriteString("\n")

	endIdx := min(a.offset+a.maxRows, len(a.anomalies))
	visible := a.anomalies[a.offset:endIdx]
	for i, verdict := range visible {
		idx := a.offset + i
		b.WriteString(a.renderAnomalyRow(verdict, idx == a.cursor))
		b.WriteString("\n")
	}

	if len(a.anomalies) > a.maxRows {
		scrollInfo := fmt.Sprintf("\n  %d-%d of %d (↑↓ to scroll, [r] refresh)",
			a.offset+1, endIdx, len(a.anomalies))
		b.WriteString(styles.Muted.Render(scrollInfo))
	} else {
		b.WriteString(styles.Muted.Render("\n  [r] Refresh"))
	}

	if !a.lastUpdate.IsZero() {
		b.WriteString(styles.Muted.Render(fmt.Sprintf("  |  Updated: %s", a.lastUpdate.Format("15:04:05"))))
	}

	return b.String()
}

func (a *AnomaliesScene) renderAnomalyRow(verdict api.Verdict, selected bool) string {
	timestamp := verdict.Timestamp.Format("15:04:05")
	userID := "-"
	eventType := "-"
	if verdict.Event != nil {
		userID = truncate(verdict.Event.UserID, 12)
		eventType = truncate(verdict.Event.EventType, 14)
	}
	reason := truncate(verdict.Reason, 60)

	row := fmt.Sprintf("  %-10s %-12s %-14s %s", timestamp, userID, eventType, reason)

	if selected {
		return lipgloss.NewStyle().
			Background(styles.Primary).
			Foreground(styles.White).
			Render(row)
	}

	return row
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
