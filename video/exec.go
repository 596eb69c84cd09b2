// Package video drives the external media tools: speech, images, avatar, subtitles and ffmpeg.
package video

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"shortsbot/types"
)

// Runner executes an external command in dir and returns its combined output
type Runner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec
func ExecRunner(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s: %w: %s", name, err, tail(out, 500))
	}
	return out, nil
}

// splitCommand turns a configured command line into a binary and leading args
func splitCommand(command string) (string, []string, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("empty command")
	}
	return fields[0], fields[1:], nil
}

func tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return s
}

func stageErr(stage types.Stage, what string, err error) error {
	return types.NewStageError(stage, fmt.Sprintf("%s: %v", what, err), err)
}
