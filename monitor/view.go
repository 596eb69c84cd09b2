package monitor

import (
	"fmt"
	"strings"

	"shortsbot/api"
	"shortsbot/types"
)

// View implements tea.Model
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("🎬 Shorts Pipeline Monitor"))
	b.WriteString("\n\n")

	b.WriteString(m.stateText())
	b.WriteString("\n\n")

	if m.Err != nil && m.Connected {
		b.WriteString(warnStyle.Render(fmt.Sprintf("⚠️  %v", m.Err)))
		b.WriteString("\n\n")
	}

	if s := m.Status; s != nil {
		b.WriteString(infoStyle.Render(fmt.Sprintf("📊 Runs: %d", s.RunCount)))
		b.WriteString("\n\n")

		if len(s.Logs) > 0 {
			b.WriteString(infoStyle.Render("📝 Recent Activity:"))
			b.WriteString("\n")
			logs := s.Logs
			if len(logs) > 10 {
				logs = logs[len(logs)-10:]
			}
			for _, entry := range logs {
				line := fmt.Sprintf("   [%s] %s", entry.Timestamp.Local().Format("15:04:05"), entry.Message)
				b.WriteString(infoStyle.Render(line))
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}

		if s.LastResult != nil && s.State != api.StateRunning {
			b.WriteString(boxStyle.Render(formatResult(s.LastResult)))
			b.WriteString("\n\n")
		}
	}

	if m.running() {
		b.WriteString(infoStyle.Render(textFooterRunning))
	} else {
		b.WriteString(infoStyle.Render(textFooterIdle))
	}

	return b.String()
}

func (m Model) stateText() string {
	if !m.Connected {
		errMsg := "waiting for server"
		if m.Err != nil {
			errMsg = m.Err.Error()
		}
		return errorStyle.Render("❌ Not connected: " + errMsg)
	}
	if m.Pending {
		return statusStyle.Render("📤 Starting run...")
	}

	switch m.Status.State {
	case api.StateIdle:
		return highlightStyle.Render("👋 Idle")
	case api.StateRunning:
		started := ""
		if m.Status.StartedAt != nil {
			started = " since " + m.Status.StartedAt.Local().Format("15:04:05")
		}
		return statusStyle.Render(fmt.Sprintf("⏳ Running (%s)%s", m.Status.Trigger, started))
	case api.StateComplete:
		return highlightStyle.Render("✅ COMPLETE")
	case api.StateError:
		return errorStyle.Render("❌ Error: " + m.Status.Error)
	default:
		return string(m.Status.State)
	}
}

func formatResult(r *types.RunResult) string {
	var b strings.Builder

	b.WriteString(highlightStyle.Render("Last Run"))
	b.WriteString("\n\n")

	status := statusStyle.Render("success")
	if !r.Success {
		status = errorStyle.Render("failed")
	}
	b.WriteString(fmt.Sprintf("Run: %s (%s)\n", r.RunID, status))
	if r.Topic != nil {
		topic := r.Topic.Text
		if len(topic) > 80 {
			topic = topic[:80] + "..."
		}
		b.WriteString(fmt.Sprintf("Topic: %s\n", topic))
	}
	if r.Error != "" {
		b.WriteString(errorStyle.Render("Error: "+r.Error) + "\n")
	}

	for _, o := range r.Outputs {
		dest := o.PublicURL
		if dest == "" {
			dest = o.LocalPath
		}
		line := fmt.Sprintf("  %s: %s (%.1fs)", o.Language, dest, o.DurationSeconds)
		if o.Error != "" {
			line += " " + errorStyle.Render(o.Error)
		}
		b.WriteString(line + "\n")
	}

	if len(r.Timings) > 0 {
		b.WriteString("\nTimings:\n")
		for _, st := range r.Timings {
			b.WriteString(fmt.Sprintf("  %s: %.2fs\n", st.Name, st.Duration.Seconds()))
		}
	}
	b.WriteString(fmt.Sprintf("Total: %.1fs", r.TotalSeconds))

	return b.String()
}
