package monitor

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case TickMsg:
		return m, tea.Batch(pollStatus(m.Client), tickCmd())
	case StatusUpdateMsg:
		return m.handleStatus(msg)
	case StartRunMsg:
		m.Pending = false
		if msg.Err != nil {
			m.Err = fmt.Errorf("failed to start %s run: %w", msg.Mode, msg.Err)
			return m, nil
		}
		m.Err = nil
		return m, pollStatus(m.Client)
	}
	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "s", "S":
		return m.start("full")
	case "t", "T":
		return m.start("test")
	}
	return m, nil
}

func (m Model) start(mode string) (tea.Model, tea.Cmd) {
	if !m.Connected || m.running() {
		return m, nil
	}
	m.Pending = true
	return m, startRun(m.Client, mode)
}

func (m Model) handleStatus(msg StatusUpdateMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.Connected = false
		m.Err = msg.Err
		return m, nil
	}
	m.Connected = true
	m.Status = msg.Status
	if !m.Pending {
		m.Err = nil
	}
	return m, nil
}
