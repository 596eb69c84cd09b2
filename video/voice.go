package video

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"shortsbot/types"
)

// fallbackNarrationSeconds is used when the narration cannot be probed
const fallbackNarrationSeconds = 30.0

// EdgeTTS synthesizes narration with the edge-tts CLI
type EdgeTTS struct {
	Binary string
	Rate   string
	Run    Runner
	Probe  ProbeFunc
}

// NewEdgeTTS returns an EdgeTTS using the edge-tts binary on PATH
func NewEdgeTTS() *EdgeTTS {
	return &EdgeTTS{Binary: "edge-tts", Rate: "-5%", Run: ExecRunner, Probe: ProbeDuration}
}

// Synthesize writes an mp3 of text in the language's neural voice
func (e *EdgeTTS) Synthesize(ctx context.Context, text string, lang types.Language, destination string) (types.NarrationAudio, error) {
	voice := lang.Voice()
	log.Printf("🔊 Generating voice with Edge TTS (%s)...", voice)

	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return types.NarrationAudio{}, stageErr(types.StageVoice, "create voice dir", err)
	}
	args := []string{"--voice", voice, "--rate=" + e.Rate, "--text", text, "--write-media", destination}
	if _, err := e.Run(ctx, "", e.Binary, args...); err != nil {
		return types.NarrationAudio{}, stageErr(types.StageVoice, "edge tts synthesis failed", err)
	}
	return narration(destination, lang, voice, e.Probe), nil
}

// CommandTTS delegates synthesis to a configured command line.
// The command receives --voice, --language, --text and --output.
type CommandTTS struct {
	Command string
	Run     Runner
	Probe   ProbeFunc
}

// NewCommandTTS wraps command
func NewCommandTTS(command string) *CommandTTS {
	return &CommandTTS{Command: command, Run: ExecRunner, Probe: ProbeDuration}
}

// Synthesize runs the command for text and destination
func (c *CommandTTS) Synthesize(ctx context.Context, text string, lang types.Language, destination string) (types.NarrationAudio, error) {
	bin, args, err := splitCommand(c.Command)
	if err != nil {
		return types.NarrationAudio{}, stageErr(types.StageVoice, "tts command", err)
	}
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return types.NarrationAudio{}, stageErr(types.StageVoice, "create voice dir", err)
	}
	voice := lang.Voice()
	log.Printf("🔊 Generating voice with %s (%s)...", bin, voice)
	args = append(args, "--voice", voice, "--language", string(lang), "--text", text, "--output", destination)
	if _, err := c.Run(ctx, "", bin, args...); err != nil {
		return types.NarrationAudio{}, stageErr(types.StageVoice, "tts command failed", err)
	}
	return narration(destination, lang, voice, c.Probe), nil
}

func narration(path string, lang types.Language, voice string, probe ProbeFunc) types.NarrationAudio {
	duration, err := probe(path)
	if err != nil {
		log.Printf("⚠️  Could not probe narration, assuming %.0fs: %v", fallbackNarrationSeconds, err)
		duration = fallbackNarrationSeconds
	}
	log.Printf("✅ Voice generated: %.1fs (%s, %s)", duration, lang, voice)
	return types.NarrationAudio{Path: path, DurationSeconds: duration, Language: lang, VoiceID: voice}
}
