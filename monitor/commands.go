package monitor

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const pollInterval = time.Second

func pollStatus(client *Client) tea.Cmd {
	return func() tea.Msg {
		status, err := client.GetStatus()
		return StatusUpdateMsg{
			Status: status,
			Err:    err,
		}
	}
}

func startRun(client *Client, mode string) tea.Cmd {
	return func() tea.Msg {
		return StartRunMsg{Mode: mode, Err: client.StartRun(mode)}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}
