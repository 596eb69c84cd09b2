package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"shortsbot/common"
)

// OllamaConfig configures a local Ollama server
type OllamaConfig struct {
	Host        string
	Model       string
	Timeout     time.Duration
	MaxAttempts int
	// AutoStart launches "ollama serve" when the server is not answering
	AutoStart bool
}

// Ollama is a TextModel backed by the Ollama HTTP API
type Ollama struct {
	cfg    OllamaConfig
	client *http.Client
	retry  common.RetryPolicy
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaGenerateRequest struct {
	Model     string         `json:"model"`
	Prompt    string         `json:"prompt,omitempty"`
	Stream    bool           `json:"stream"`
	Options   *ollamaOptions `json:"options,omitempty"`
	KeepAlive *int           `json:"keep_alive,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

// NewOllama builds an Ollama client; generation is retried twice with a 3s base delay
func NewOllama(cfg OllamaConfig) *Ollama {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 300 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	return &Ollama{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		retry: common.RetryPolicy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   3 * time.Second,
			MaxDelay:    30 * time.Second,
			Retryable:   common.RetryableHTTP,
			OnRetry: func(err error, attempt int) {
				log.Printf("⚠️  Ollama attempt %d failed: %v", attempt, err)
			},
		},
	}
}

// Generate implements TextModel. A missing model is pulled once and the request repeated.
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	if err := o.EnsureRunning(ctx); err != nil {
		return "", err
	}
	return common.Retry(ctx, o.retry, func(ctx context.Context) (string, error) {
		out, err := o.generateOnce(ctx, prompt)
		var se *common.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			if perr := o.pull(ctx); perr != nil {
				return "", fmt.Errorf("model %s not found and pull failed: %w", o.cfg.Model, perr)
			}
			out, err = o.generateOnce(ctx, prompt)
		}
		if err != nil {
			return "", fmt.Errorf("ollama generate: %w", err)
		}
		return out, nil
	})
}

func (o *Ollama) generateOnce(ctx context.Context, prompt string) (string, error) {
	var resp ollamaGenerateResponse
	err := common.DoJSON(ctx, o.client, http.MethodPost, o.cfg.Host+"/api/generate", ollamaGenerateRequest{
		Model:  o.cfg.Model,
		Prompt: prompt,
		Stream: false,
		Options: &ollamaOptions{
			Temperature: 0.8,
			TopP:        0.9,
			NumPredict:  500,
		},
	}, &resp)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Response), nil
}

// Unload asks Ollama to drop the model from device memory
func (o *Ollama) Unload(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	zero := 0
	err := common.DoJSON(ctx, o.client, http.MethodPost, o.cfg.Host+"/api/generate", ollamaGenerateRequest{
		Model:     o.cfg.Model,
		KeepAlive: &zero,
	}, nil)
	if err != nil {
		return fmt.Errorf("unload %s: %w", o.cfg.Model, err)
	}
	log.Printf("🧹 Ollama model %s unloaded", o.cfg.Model)
	return nil
}

// Release lets the accelerator manager unload the model on every reclaim
func (o *Ollama) Release(ctx context.Context) error {
	return o.Unload(ctx)
}

// Healthy reports whether the server answers /api/tags
func (o *Ollama) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return common.DoJSON(ctx, o.client, http.MethodGet, o.cfg.Host+"/api/tags", nil, nil) == nil
}

// EnsureRunning checks the server and, if AutoStart is set, launches it and waits up to 20s
func (o *Ollama) EnsureRunning(ctx context.Context) error {
	if o.Healthy(ctx) {
		return nil
	}
	if !o.cfg.AutoStart {
		return fmt.Errorf("ollama server at %s is not available", o.cfg.Host)
	}

	log.Println("🚀 Starting Ollama server...")
	cmd := exec.Command("ollama", "serve")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ollama: %w", err)
	}
	go func() { _ = cmd.Wait() }()

	for i := 1; i <= 10; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
		if o.Healthy(ctx) {
			log.Printf("✅ Ollama server ready (took %ds)", i*2)
			return nil
		}
	}
	return fmt.Errorf("ollama server failed to start after 20s")
}

func (o *Ollama) pull(ctx context.Context) error {
	log.Printf("📥 Pulling model %s (first time, may take minutes)...", o.cfg.Model)
	pullCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()
	return common.DoJSON(pullCtx, &http.Client{}, http.MethodPost, o.cfg.Host+"/api/pull", map[string]any{
		"name":   o.cfg.Model,
		"stream": false,
	}, nil)
}
