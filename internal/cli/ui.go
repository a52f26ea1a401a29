package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/cortexdesk/internal/storage"
	"github.com/dyike/cortexdesk/models"
)

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Background(lipgloss.Color("#1F2937")).
			Padding(0, 1).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 2).
			Width(80)

	sectionStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#F59E0B")).
			Padding(0, 1).
			Width(80)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	inProgressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	completedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	toolCallStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8B5CF6"))

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Width(14)
)

var signalColors = map[models.Signal]lipgloss.Color{
	models.SignalBuy:  lipgloss.Color("#10B981"),
	models.SignalSell: lipgloss.Color("#EF4444"),
	models.SignalHold: lipgloss.Color("#F59E0B"),
}

func renderSignal(sig models.Signal) string {
	if sig == "" {
		return mutedStyle.Render("-")
	}
	color, ok := signalColors[sig]
	if !ok {
		return string(sig)
	}
	return lipgloss.NewStyle().Bold(true).Foreground(color).Render(string(sig))
}

func renderHeader(ticker, date string, analysts []string) string {
	body := fmt.Sprintf("%s  %s\nanalysts: %s", ticker, date, strings.Join(analysts, ", "))
	return titleStyle.Render("cortexdesk "+Version) + "\n" + headerStyle.Render(body)
}

// renderEvent formats one progress line.
func renderEvent(ev models.AgentEvent) string {
	ts := mutedStyle.Render(ev.Timestamp.Format("15:04:05"))
	switch ev.Kind {
	case models.EventNodeStart:
		return fmt.Sprintf("%s %s %s", ts, inProgressStyle.Render("▶"), ev.Agent)
	case models.EventNodeEnd:
		return fmt.Sprintf("%s %s %s", ts, completedStyle.Render("✓"), ev.Agent)
	case models.EventNodeError:
		return fmt.Sprintf("%s %s %s: %s", ts, errorStyle.Render("✗"), ev.Agent, ev.Err)
	case models.EventToolCall:
		return fmt.Sprintf("%s   %s", ts, toolCallStyle.Render("tool "+ev.Node+" "+truncate(ev.Detail, 60)))
	}
	return fmt.Sprintf("%s %s %s", ts, ev.Kind, ev.Node)
}

func renderResult(res *runResult, showReports bool) string {
	var b strings.Builder
	if res.Err != nil {
		b.WriteString(errorStyle.Render("run failed: "+res.Err.Error()) + "\n")
	}
	rows := [][2]string{
		{"Session", res.SessionID},
		{"Ticker", res.Ticker},
		{"Date", res.Date},
		{"Signal", renderSignal(res.Signal)},
		{"Tokens", fmt.Sprintf("%d (%d calls)", res.Usage.TotalTokens, res.Usage.Calls)},
	}
	if res.ReportDir != "" {
		rows = append(rows, [2]string{"Reports", res.ReportDir})
	}
	for _, r := range rows {
		b.WriteString(labelStyle.Render(r[0]) + r[1] + "\n")
	}

	if showReports && res.State != nil {
		for _, sec := range storage.ReportSections(res.State) {
			b.WriteString("\n" + sectionStyle.Render(lipgloss.NewStyle().Bold(true).Render(sec.Title)+"\n\n"+strings.TrimSpace(sec.Content)) + "\n")
		}
	}
	return b.String()
}

func renderSessions(sessions []models.SessionRecord) string {
	if len(sessions) == 0 {
		return mutedStyle.Render("no sessions recorded yet") + "\n"
	}
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(
		fmt.Sprintf("%-36s  %-8s  %-10s  %-7s  %-6s  %-8s  %s", "SESSION", "SYMBOL", "DATE", "STATUS", "SIGNAL", "RETURNS", "CREATED")) + "\n")
	for _, s := range sessions {
		status := s.Status
		switch status {
		case storage.StatusDone:
			status = completedStyle.Render(fmt.Sprintf("%-7s", status))
		case storage.StatusError:
			status = errorStyle.Render(fmt.Sprintf("%-7s", status))
		default:
			status = fmt.Sprintf("%-7s", status)
		}
		sig := string(s.Signal)
		if sig == "" {
			sig = "-"
		}
		// returns are shown once the run was reflected on
		returns := "-"
		if s.Reflected {
			returns = strconv.FormatFloat(s.Returns, 'f', -1, 64)
		}
		b.WriteString(fmt.Sprintf("%-36s  %-8s  %-10s  %s  %-6s  %-8s  %s\n",
			s.ID, s.Symbol, s.TradeDate, status, sig, returns, s.CreatedAt.Local().Format(time.DateTime)))
	}
	return b.String()
}

func renderMessages(msgs []models.MessageRecord) string {
	var b strings.Builder
	for _, m := range msgs {
		who := m.Role
		if m.Agent != "" {
			who += "/" + m.Agent
		}
		b.WriteString(fmt.Sprintf("%s %s\n%s\n\n", mutedStyle.Render(fmt.Sprintf("#%d", m.Seq)), labelStyle.Render(who), strings.TrimSpace(m.Content)))
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
