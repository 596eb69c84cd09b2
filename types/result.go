package types

import "time"

// VideoOutput describes the outcome of one language pass
type VideoOutput struct {
	Language         Language        `json:"language"`
	LocalPath        string          `json:"local_path"`
	RemoteBackupPath string          `json:"remote_backup_path,omitempty"`
	PublicURL        string          `json:"public_url,omitempty"`
	Metadata         *VideoMetadata  `json:"metadata,omitempty"`
	DurationSeconds  float64         `json:"duration_seconds"`
	CompositionMode  CompositionMode `json:"composition_mode,omitempty"`
	// Error is only set when passes run independently and this one failed
	Error string `json:"error,omitempty"`
}

// StepTiming is one recorded stage duration
type StepTiming struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// RunResult is the outcome of one orchestrator run
type RunResult struct {
	RunID        string        `json:"run_id"`
	Topic        *Topic        `json:"topic"`
	Outputs      []VideoOutput `json:"outputs"`
	Success      bool          `json:"success"`
	Error        string        `json:"error,omitempty"`
	TotalSeconds float64       `json:"total_seconds"`
	Timings      []StepTiming  `json:"timings,omitempty"`
}

// FirstURL returns the first non-empty public URL among the outputs
func (r *RunResult) FirstURL() string {
	for _, o := range r.Outputs {
		if o.PublicURL != "" {
			return o.PublicURL
		}
	}
	return ""
}
