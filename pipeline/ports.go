package pipeline

import (
	"context"

	"shortsbot/gpu"
	"shortsbot/types"
)

// TopicSource hands out pending topics and records their status
type TopicSource interface {
	// ClaimNextPending returns the next pending topic, or nil when there is none
	ClaimNextPending(ctx context.Context) (*types.Topic, error)
	// PersistStatus writes the topic's status (and video URL, when set) back to the queue
	PersistStatus(ctx context.Context, topic *types.Topic) error
}

// ScriptGenerator writes the narration for a topic
type ScriptGenerator interface {
	GenerateScript(ctx context.Context, topic string, lang types.Language) (types.Script, error)
}

// MetadataGenerator writes publishing metadata for a script
type MetadataGenerator interface {
	GenerateMetadata(ctx context.Context, topic string, lang types.Language, script string) (types.VideoMetadata, error)
}

// ImagePromptDeriver turns a script into scene image prompts
type ImagePromptDeriver interface {
	DeriveImagePrompts(ctx context.Context, script string, count int) ([]string, error)
}

// TextModelReleaser is implemented by text backends that hold device memory
type TextModelReleaser interface {
	Unload(ctx context.Context) error
}

// NarrationSynthesizer renders a script into speech at destination
type NarrationSynthesizer interface {
	Synthesize(ctx context.Context, text string, lang types.Language, destination string) (types.NarrationAudio, error)
}

// ImageGenerator renders one scene image at destination
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, lang types.Language, destination string) (types.MediaAsset, error)
}

// AvatarAnimator lip-syncs a still portrait to the narration
type AvatarAnimator interface {
	Animate(ctx context.Context, audioPath, imagePath, destination string) (types.MediaAsset, error)
}

// SubtitleGenerator transcribes narration into a timed subtitle file
type SubtitleGenerator interface {
	Transcribe(ctx context.Context, audioPath string, lang types.Language, destination string) (types.MediaAsset, error)
}

// ComposeRequest is everything the composer needs for one final video
type ComposeRequest struct {
	Mode        types.CompositionMode
	SceneImages []string
	AvatarVideo string
	Narration   string
	// Subtitles is empty when transcription failed
	Subtitles       string
	Destination     string
	DurationSeconds float64
}

// VideoComposer renders the final video
type VideoComposer interface {
	Compose(ctx context.Context, req ComposeRequest) (types.MediaAsset, error)
}

// Uploader publishes a video and returns its public URL
type Uploader interface {
	Upload(ctx context.Context, videoPath, title, description string, tags []string) (string, error)
}

// Storage backs up a file and returns its remote location
type Storage interface {
	Save(ctx context.Context, path string) (string, error)
}

// Notifier delivers a completion message; false means the channel declined it
type Notifier interface {
	Send(ctx context.Context, message string) (bool, error)
}

// Accelerator is the device manager the orchestrator coordinates with
type Accelerator interface {
	Probe(ctx context.Context) (gpu.DeviceInfo, bool)
	Reclaim(ctx context.Context) gpu.ReclaimOutcome
}

// Capabilities is the full set of implementations a run uses.
// Uploader, Storage and Notifier may be nil when the channel is not configured.
type Capabilities struct {
	Topics    TopicSource
	Scripts   ScriptGenerator
	Metadata  MetadataGenerator
	Prompts   ImagePromptDeriver
	TextModel TextModelReleaser
	Voice     NarrationSynthesizer
	Images    ImageGenerator
	Avatar    AvatarAnimator
	Subtitles SubtitleGenerator
	Composer  VideoComposer
	Uploader  Uploader
	Storage   Storage
	Notifier  Notifier
}

// Validate reports the first required capability that is missing
func (c Capabilities) Validate() error {
	required := []struct {
		name string
		set  bool
	}{
		{"topic source", c.Topics != nil},
		{"script generator", c.Scripts != nil},
		{"metadata generator", c.Metadata != nil},
		{"image prompt deriver", c.Prompts != nil},
		{"narration synthesizer", c.Voice != nil},
		{"image generator", c.Images != nil},
		{"avatar animator", c.Avatar != nil},
		{"subtitle generator", c.Subtitles != nil},
		{"video composer", c.Composer != nil},
	}
	for _, r := range required {
		if !r.set {
			return types.Stagef(types.StageConfiguration, "missing capability: %s", r.name)
		}
	}
	return nil
}
