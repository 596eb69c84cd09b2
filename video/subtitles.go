package video

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"shortsbot/types"
)

// Whisper transcribes narration with the whisper CLI.
// Models are tried largest first; an out-of-memory failure moves on to the next size.
type Whisper struct {
	Binary string
	Models []string
	Run    Runner
}

var whisperFallbackModels = []string{"medium", "base"}

// NewWhisper returns a transcriber starting at model
func NewWhisper(model string) *Whisper {
	models := []string{model}
	for _, m := range whisperFallbackModels {
		if m != model {
			models = append(models, m)
		}
	}
	return &Whisper{Binary: "whisper", Models: models, Run: ExecRunner}
}

// Transcribe writes an SRT for audioPath to destination
func (w *Whisper) Transcribe(ctx context.Context, audioPath string, lang types.Language, destination string) (types.MediaAsset, error) {
	outDir := filepath.Dir(destination)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return types.MediaAsset{}, stageErr(types.StageSubtitles, "create subtitle dir", err)
	}

	for _, model := range w.Models {
		log.Printf("🎙️  Transcribing with Whisper '%s'...", model)
		args := []string{
			audioPath,
			"--model", model,
			"--language", string(lang),
			"--task", "transcribe",
			"--output_format", "srt",
			"--output_dir", outDir,
		}
		out, err := w.Run(ctx, "", w.Binary, args...)
		if err != nil {
			if ctx.Err() == nil && outOfMemory(out, err) {
				log.Printf("⚠️  Whisper '%s' OOM, trying smaller model...", model)
				continue
			}
			return types.MediaAsset{}, stageErr(types.StageSubtitles, "whisper transcription failed", err)
		}

		// whisper names the file after the audio
		written := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))+".srt")
		if written != destination {
			if err := os.Rename(written, destination); err != nil {
				return types.MediaAsset{}, stageErr(types.StageSubtitles, "move subtitles", err)
			}
		}
		cues, err := CountCues(destination)
		if err != nil {
			return types.MediaAsset{}, stageErr(types.StageSubtitles, "invalid subtitles", err)
		}
		log.Printf("✅ Subtitles generated with Whisper '%s' (%d cues)", model, cues)
		return types.MediaAsset{Path: destination, Kind: types.AssetSubtitleFile}, nil
	}
	return types.MediaAsset{}, types.Stagef(types.StageSubtitles, "all Whisper models failed (%s)", strings.Join(w.Models, ", "))
}

func outOfMemory(out []byte, err error) bool {
	s := strings.ToLower(string(out) + " " + err.Error())
	return strings.Contains(s, "out of memory") || strings.Contains(s, "cuda error")
}

// CountCues checks that path is a non-empty SRT file and returns its cue count
func CountCues(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	cues := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.Contains(scanner.Text(), " --> ") {
			cues++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	if cues == 0 {
		return 0, fmt.Errorf("%s has no subtitle cues", path)
	}
	return cues, nil
}
