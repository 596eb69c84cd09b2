package gpu

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// NvidiaSMI queries the first NVIDIA device through nvidia-smi
type NvidiaSMI struct {
	// Binary defaults to "nvidia-smi"
	Binary  string
	Timeout time.Duration
	// run is swapped in tests
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewNvidiaSMI returns a prober with a 5s query timeout
func NewNvidiaSMI() *NvidiaSMI {
	return &NvidiaSMI{Binary: "nvidia-smi", Timeout: 5 * time.Second, run: runCommand}
}

// Query implements Prober. A missing binary means no accelerator, not an error.
func (n *NvidiaSMI) Query(ctx context.Context) (DeviceInfo, bool, error) {
	bin := n.Binary
	if bin == "" {
		bin = "nvidia-smi"
	}
	run := n.run
	if run == nil {
		run = runCommand
	}
	if n.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.Timeout)
		defer cancel()
	}

	out, err := run(ctx, bin, "--query-gpu=name,memory.total,memory.used", "--format=csv,noheader,nounits")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return DeviceInfo{}, false, nil
		}
		return DeviceInfo{}, false, fmt.Errorf("nvidia-smi: %w", err)
	}
	return parseSMI(out)
}

// parseSMI reads the first line of "name, total MiB, used MiB"
func parseSMI(out []byte) (DeviceInfo, bool, error) {
	line := strings.TrimSpace(string(out))
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if line == "" {
		return DeviceInfo{}, false, nil
	}
	fields := strings.Split(line, ",")
	if len(fields) != 3 {
		return DeviceInfo{}, false, fmt.Errorf("unexpected nvidia-smi output %q", line)
	}
	total, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return DeviceInfo{}, false, fmt.Errorf("parse total memory: %w", err)
	}
	used, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return DeviceInfo{}, false, fmt.Errorf("parse used memory: %w", err)
	}
	return DeviceInfo{
		Name:    strings.TrimSpace(fields[0]),
		TotalGB: total / 1024,
		UsedGB:  used / 1024,
	}, true, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil && stderr.Len() > 0 {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, err
}
