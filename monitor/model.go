package monitor

import (
	tea "github.com/charmbracelet/bubbletea"

	"shortsbot/api"
)

// Model is the monitor's view of the server, refreshed by polling
type Model struct {
	Client *Client

	Status    *api.StatusResponse
	Connected bool
	Err       error
	// Pending is set between a start keypress and the server's reply
	Pending bool
}

// NewModel creates a monitor for the server at baseURL
func NewModel(baseURL string) Model {
	return Model{Client: NewClient(baseURL)}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		pollStatus(m.Client),
		tickCmd(),
	)
}

func (m Model) state() api.State {
	if m.Status == nil {
		return api.StateIdle
	}
	return m.Status.State
}

func (m Model) running() bool {
	return m.Pending || m.state() == api.StateRunning
}
