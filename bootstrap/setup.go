package bootstrap

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"

	"shortsbot/config"
	"shortsbot/llm"
)

// Check is the outcome of one environment check
type Check struct {
	Name     string
	OK       bool
	Detail   string
	Required bool
}

// lookPath is replaced in tests
var lookPath = exec.LookPath

// CheckEnvironment verifies the external tools and services the settings rely on
func CheckEnvironment(ctx context.Context, s *config.Settings) []Check {
	var checks []Check
	tool := func(name string, required bool) {
		path, err := lookPath(name)
		c := Check{Name: name, OK: err == nil, Detail: path, Required: required}
		if err != nil {
			c.Detail = "not found on PATH"
		}
		checks = append(checks, c)
	}

	tool("ffmpeg", true)
	tool("ffprobe", true)
	tool("whisper", true)
	if s.Backends.Voice == config.VoiceEdge {
		tool("edge-tts", true)
	}
	tool("nvidia-smi", false)

	checks = append(checks, fileCheck("avatar image", s.Media.AvatarImage, true))
	checks = append(checks, fileCheck("SadTalker", s.Media.SadTalkerDir, false))

	if s.Backends.Text == config.TextOllama {
		o := llm.NewOllama(llm.OllamaConfig{Host: s.Ollama.Host, Model: s.Ollama.Model})
		c := Check{Name: "ollama", OK: o.Healthy(ctx), Detail: s.Ollama.Host, Required: true}
		if !c.OK {
			c.Detail = fmt.Sprintf("%s not reachable (run `ollama serve`)", s.Ollama.Host)
		}
		checks = append(checks, c)
	}
	return checks
}

func fileCheck(name, path string, required bool) Check {
	if _, err := os.Stat(path); err != nil {
		return Check{Name: name, Detail: fmt.Sprintf("%s missing", path), Required: required}
	}
	return Check{Name: name, OK: true, Detail: path, Required: required}
}

// ReportChecks logs every check and reports whether all required ones passed
func ReportChecks(checks []Check) bool {
	ok := true
	for _, c := range checks {
		switch {
		case c.OK:
			log.Printf("✅ %-14s %s", c.Name, c.Detail)
		case c.Required:
			ok = false
			log.Printf("❌ %-14s %s", c.Name, c.Detail)
		default:
			log.Printf("⚠️  %-14s %s", c.Name, c.Detail)
		}
	}
	return ok
}
