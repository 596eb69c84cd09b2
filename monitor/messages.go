package monitor

import (
	"time"

	"shortsbot/api"
)

// StatusUpdateMsg carries the result of one status poll
type StatusUpdateMsg struct {
	Status *api.StatusResponse
	Err    error
}

// TickMsg triggers the next poll
type TickMsg struct {
	Time time.Time
}

// StartRunMsg is sent once the start request returns
type StartRunMsg struct {
	Mode string
	Err  error
}
