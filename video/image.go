package video

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"shortsbot/types"
)

// StyleSuffix returns the cultural look appended to every scene prompt
func StyleSuffix(lang types.Language) string {
	switch lang {
	case types.LanguageTamil:
		return "Indian cultural, warm golden tones, Tamil Nadu landscape"
	case types.LanguageHindi:
		return "Indian cultural, Bollywood cinematic, vibrant colors"
	case types.LanguageEnglish:
		return "Western cinematic, dramatic lighting, modern"
	}
	return "cinematic, dramatic lighting"
}

func scenePrompt(prompt string, lang types.Language) string {
	return fmt.Sprintf("%s, %s, ultra high quality, 8k, no text, atmospheric, inspirational", prompt, StyleSuffix(lang))
}

// Pollinations renders scene images through the pollinations.ai HTTP endpoint
type Pollinations struct {
	BaseURL string
	Width   int
	Height  int
	Client  *http.Client
}

// NewPollinations creates a client for baseURL sized to the output video
func NewPollinations(baseURL string, width, height int) *Pollinations {
	return &Pollinations{
		BaseURL: baseURL,
		Width:   width,
		Height:  height,
		Client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

// GenerateImage downloads the rendered prompt to destination
func (p *Pollinations) GenerateImage(ctx context.Context, prompt string, lang types.Language, destination string) (types.MediaAsset, error) {
	q := url.Values{}
	q.Set("width", strconv.Itoa(p.Width))
	q.Set("height", strconv.Itoa(p.Height))
	q.Set("nologo", "true")
	endpoint := p.BaseURL + url.PathEscape(scenePrompt(prompt, lang)) + "?" + q.Encode()

	log.Printf("🎨 Generating scene image: %.60s...", prompt)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return types.MediaAsset{}, stageErr(types.StageBackground, "build image request", err)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return types.MediaAsset{}, stageErr(types.StageBackground, "image request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return types.MediaAsset{}, types.Stagef(types.StageBackground, "image request failed: status %d", resp.StatusCode)
	}

	if err := writeFile(destination, resp.Body); err != nil {
		return types.MediaAsset{}, stageErr(types.StageBackground, "save image", err)
	}
	log.Printf("✅ Scene image saved: %s", destination)
	return types.MediaAsset{Path: destination, Kind: types.AssetSceneImage}, nil
}

// SDXLCommand renders scene images with a local diffusion script.
// The command receives --prompt, --width, --height and --output.
type SDXLCommand struct {
	Command string
	Width   int
	Height  int
	Run     Runner
}

// NewSDXLCommand wraps command
func NewSDXLCommand(command string, width, height int) *SDXLCommand {
	return &SDXLCommand{Command: command, Width: width, Height: height, Run: ExecRunner}
}

// GenerateImage runs the diffusion script for one prompt
func (s *SDXLCommand) GenerateImage(ctx context.Context, prompt string, lang types.Language, destination string) (types.MediaAsset, error) {
	bin, args, err := splitCommand(s.Command)
	if err != nil {
		return types.MediaAsset{}, stageErr(types.StageBackground, "sdxl command", err)
	}
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return types.MediaAsset{}, stageErr(types.StageBackground, "create scenes dir", err)
	}

	log.Printf("🎨 Generating scene image with SDXL: %.60s...", prompt)
	args = append(args,
		"--prompt", scenePrompt(prompt, lang),
		"--width", strconv.Itoa(s.Width),
		"--height", strconv.Itoa(s.Height),
		"--output", destination,
	)
	if _, err := s.Run(ctx, "", bin, args...); err != nil {
		return types.MediaAsset{}, stageErr(types.StageBackground, "sdxl generation failed", err)
	}
	if _, err := os.Stat(destination); err != nil {
		return types.MediaAsset{}, stageErr(types.StageBackground, "sdxl produced no image", err)
	}
	log.Printf("✅ Scene image saved: %s", destination)
	return types.MediaAsset{Path: destination, Kind: types.AssetSceneImage}, nil
}

func writeFile(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
