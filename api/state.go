package api

import (
	"fmt"
	"sync"
	"time"

	"shortsbot/types"
)

// State is the run state shown on /api/status
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateComplete State = "complete"
	StateError    State = "error"
)

// LogEntry is a single log line with timestamp
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// StatusResponse is the JSON response for GET /api/status
type StatusResponse struct {
	State      State              `json:"state"`
	Trigger    string             `json:"trigger,omitempty"`
	StartedAt  *time.Time         `json:"started_at,omitempty"`
	Logs       []LogEntry         `json:"logs"`
	RunCount   int                `json:"run_count"`
	LastResult *types.RunResult   `json:"last_result,omitempty"`
	Batch      []*types.RunResult `json:"batch,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// Tracker holds the API's view of the current run with thread-safe access.
// It is also the single-flight guard: only one run may be started at a time.
type Tracker struct {
	mu sync.RWMutex

	state     State
	trigger   string
	startedAt time.Time
	runCount  int
	last      *types.RunResult
	batch     []*types.RunResult
	lastErr   error

	// Logs (ring buffer)
	logs    []LogEntry
	maxLogs int
	now     func() time.Time
}

// NewTracker creates an idle tracker
func NewTracker() *Tracker {
	return &Tracker{
		state:   StateIdle,
		logs:    make([]LogEntry, 0),
		maxLogs: 50, // Keep last 50 log entries
		now:     time.Now,
	}
}

// TryStart moves to running unless a run is already in progress
func (t *Tracker) TryStart(trigger string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateRunning {
		return false
	}
	t.state = StateRunning
	t.trigger = trigger
	t.startedAt = t.now()
	t.batch = nil
	t.lastErr = nil
	t.addLogLocked(fmt.Sprintf("Run started (%s)", trigger))
	return true
}

// Finish records the outcome of a single run; a nil result means nothing was pending
func (t *Tracker) Finish(result *types.RunResult, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runCount++
	switch {
	case err != nil:
		t.fail(err)
	case result == nil:
		t.state = StateComplete
		t.addLogLocked("No pending topics")
	default:
		t.last = result
		if result.Success {
			t.state = StateComplete
			t.addLogLocked(fmt.Sprintf("Run %s complete: %s", result.RunID, result.FirstURL()))
		} else {
			t.fail(fmt.Errorf("run %s failed: %s", result.RunID, result.Error))
		}
	}
}

// FinishBatch records the outcome of a batch
func (t *Tracker) FinishBatch(results []*types.RunResult, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runCount += len(results)
	t.batch = results
	if len(results) > 0 {
		t.last = results[len(results)-1]
	}
	if err != nil {
		t.fail(err)
		return
	}
	ok := 0
	for _, r := range results {
		if r.Success {
			ok++
		}
	}
	t.state = StateComplete
	t.addLogLocked(fmt.Sprintf("Batch complete: %d/%d succeeded", ok, len(results)))
}

// must hold lock
func (t *Tracker) fail(err error) {
	t.state = StateError
	t.lastErr = err
	t.addLogLocked(fmt.Sprintf("Error: %v", err))
}

// AddLog adds a log entry (thread-safe)
func (t *Tracker) AddLog(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.addLogLocked(message)
}

func (t *Tracker) addLogLocked(message string) {
	t.logs = append(t.logs, LogEntry{Timestamp: t.now(), Message: message})
	if len(t.logs) > t.maxLogs {
		t.logs = t.logs[len(t.logs)-t.maxLogs:]
	}
}

// State returns the current state (thread-safe)
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Status returns a snapshot of the current state (thread-safe)
func (t *Tracker) Status() StatusResponse {
	t.mu.RLock()
	defer t.mu.RUnlock()

	resp := StatusResponse{
		State:      t.state,
		Trigger:    t.trigger,
		Logs:       append([]LogEntry{}, t.logs...),
		RunCount:   t.runCount,
		LastResult: t.last,
		Batch:      append([]*types.RunResult(nil), t.batch...),
	}
	if !t.startedAt.IsZero() {
		started := t.startedAt
		resp.StartedAt = &started
	}
	if t.lastErr != nil {
		resp.Error = t.lastErr.Error()
	}
	return resp
}
