// Package pipeline runs one topic through every generation stage and publishes the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"shortsbot/common"
	"shortsbot/config"
	"shortsbot/metrics"
	"shortsbot/types"

	"github.com/google/uuid"
)

// Mode selects how far a run goes
type Mode string

const (
	// ModeFull runs every stage through publishing
	ModeFull Mode = "full"
	// ModeTest stops after narration and returns the audio file
	ModeTest Mode = "test"
)

// ParseMode validates a run mode string
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeFull:
		return ModeFull, nil
	case ModeTest:
		return ModeTest, nil
	}
	return "", fmt.Errorf("unknown run mode %q (want full or test)", s)
}

// PassPolicy decides what a failing language pass does to the rest of the run
type PassPolicy string

const (
	// AbortOnFailure stops the run at the first failing pass
	AbortOnFailure PassPolicy = "abort"
	// IndependentPasses keeps going and reports every pass separately
	IndependentPasses PassPolicy = "independent"
)

// Options tunes the orchestrator; zero values take the package defaults
type Options struct {
	OutputDir        string
	AvatarImage      string
	CompositionMode  types.CompositionMode
	MinWords         int
	MaxWords         int
	ImagePromptCount int
	VoiceTimeout     time.Duration
	AutoUpload       bool
	PassPolicy       PassPolicy
	TimerOptions     []common.TimerOption
	// NewRunID names the run directory; defaults to a short uuid
	NewRunID func() string
}

func (o Options) withDefaults() Options {
	if o.OutputDir == "" {
		o.OutputDir = config.OutputDir
	}
	if o.CompositionMode == "" {
		o.CompositionMode = types.CompositionAvatar
	}
	if o.MinWords <= 0 {
		o.MinWords = config.MinScriptWords
	}
	if o.MaxWords <= 0 {
		o.MaxWords = config.MaxScriptWords
	}
	if o.ImagePromptCount <= 0 {
		o.ImagePromptCount = config.DefaultImagePromptCount
	}
	if o.VoiceTimeout <= 0 {
		o.VoiceTimeout = config.DefaultVoiceTimeout
	}
	if o.PassPolicy == "" {
		o.PassPolicy = AbortOnFailure
	}
	if o.NewRunID == nil {
		o.NewRunID = func() string { return uuid.NewString()[:8] }
	}
	return o
}

// Orchestrator drives topics through the pipeline
type Orchestrator struct {
	caps      Capabilities
	accel     Accelerator
	opts      Options
	publisher *Publisher
}

// NewOrchestrator wires capabilities and the accelerator; accel may be nil
func NewOrchestrator(caps Capabilities, accel Accelerator, opts Options) *Orchestrator {
	return &Orchestrator{
		caps:  caps,
		accel: accel,
		opts:  opts.withDefaults(),
		publisher: &Publisher{
			Storage:  caps.Storage,
			Uploader: caps.Uploader,
			Notifier: caps.Notifier,
		},
	}
}

// WithTopics returns a copy of the orchestrator that claims from src
func (o *Orchestrator) WithTopics(src TopicSource) *Orchestrator {
	c := *o
	c.caps.Topics = src
	return &c
}

// Run claims one pending topic and produces its videos.
// It returns (nil, nil) when nothing is pending and an error only when the claim itself fails.
// Once a topic is claimed, every failure is reported through the result and the topic
// is left Done or Failed.
func (o *Orchestrator) Run(ctx context.Context, mode Mode) (*types.RunResult, error) {
	runID := o.opts.NewRunID()
	timer := common.NewTimer(o.opts.TimerOptions...)
	log.Printf("🚀 Run %s starting (mode=%s)", runID, mode)

	if o.accel != nil {
		o.accel.Probe(ctx)
	}

	timer.Begin("Fetch Topic")
	topic, err := o.caps.Topics.ClaimNextPending(ctx)
	timer.End()
	if err != nil {
		return nil, failStage(types.StageTopicFetch, "claim topic", err)
	}
	if topic == nil {
		log.Println("📭 No pending topics")
		metrics.CountRun(metrics.OutcomeNoWork)
		return nil, nil
	}
	if err := topic.MarkProcessing(); err != nil {
		return nil, failStage(types.StageTopicFetch, "claim topic", err)
	}
	log.Printf("📥 Claimed topic %q (%s, ref=%s)", topic.Text, topic.Language.DisplayName(), topic.SourceRef)
	o.persist(ctx, topic)

	result := &types.RunResult{RunID: runID, Topic: topic}
	runErr := o.runPasses(ctx, runID, timer, topic, mode, result)
	o.finalize(ctx, topic, result, runErr)

	result.Timings = timer.Steps()
	result.TotalSeconds = timer.Summary().Seconds()
	return result, nil
}

// runPasses produces one output per language; panics become errors so the topic is still finalized
func (o *Orchestrator) runPasses(ctx context.Context, runID string, timer *common.Timer, topic *types.Topic, mode Mode, result *types.RunResult) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Unexpected failure: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("unexpected failure: %v", r)
		}
	}()

	var errs []error
	for _, lang := range topic.Language.Expand() {
		log.Printf("🌐 %s pass", lang.DisplayName())
		out, perr := o.generateVideo(ctx, runID, timer, topic.Text, lang, mode)
		if perr != nil {
			log.Printf("❌ %s pass failed: %v", lang.DisplayName(), perr)
			if o.opts.PassPolicy != IndependentPasses {
				return perr
			}
			out = types.VideoOutput{Language: lang, Error: perr.Error()}
			errs = append(errs, fmt.Errorf("%s: %w", lang.DisplayName(), perr))
		}
		result.Outputs = append(result.Outputs, out)
	}
	return errors.Join(errs...)
}

// finalize sets the terminal status exactly once and writes it back
func (o *Orchestrator) finalize(ctx context.Context, topic *types.Topic, result *types.RunResult, runErr error) {
	if runErr == nil {
		result.Success = true
		topic.VideoURL = result.FirstURL()
		if err := topic.MarkDone(); err != nil {
			log.Printf("⚠️  %v", err)
		}
		metrics.CountRun(metrics.OutcomeSuccess)
		log.Printf("✅ Topic %q done", topic.Text)
	} else {
		result.Success = false
		result.Error = runErr.Error()
		if err := topic.MarkFailed(); err != nil {
			log.Printf("⚠️  %v", err)
		}
		metrics.CountRun(metrics.OutcomeFailed)
		log.Printf("❌ Topic %q failed: %v", topic.Text, runErr)
	}

	// Status must reach the queue even if the run was cancelled
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	o.persist(fctx, topic)
}

func (o *Orchestrator) persist(ctx context.Context, topic *types.Topic) {
	if err := o.caps.Topics.PersistStatus(ctx, topic); err != nil {
		log.Printf("⚠️  Could not persist status %s for %q: %v", topic.Status, topic.Text, err)
	}
}

// generateVideo runs every stage for one language
func (o *Orchestrator) generateVideo(ctx context.Context, runID string, timer *common.Timer, topicText string, lang types.Language, mode Mode) (types.VideoOutput, error) {
	name := lang.DisplayName()
	dir := filepath.Join(o.opts.OutputDir, runID, string(lang))
	if err := os.MkdirAll(filepath.Join(dir, config.ScenesDir), 0o755); err != nil {
		return types.VideoOutput{}, fmt.Errorf("create output directory: %w", err)
	}

	var script types.Script
	err := timer.Step(fmt.Sprintf("Script (%s)", name), func() error {
		var err error
		script, err = o.generateScript(ctx, topicText, lang)
		return err
	})
	if err != nil {
		return types.VideoOutput{}, err
	}

	var (
		metadata types.VideoMetadata
		prompts  []string
	)
	err = timer.Step(fmt.Sprintf("Metadata + Prompts (%s)", name), func() error {
		var err error
		if metadata, err = o.generateMetadata(ctx, topicText, lang, script); err != nil {
			return err
		}
		prompts, err = o.derivePrompts(ctx, script)
		return err
	})
	if err != nil {
		return types.VideoOutput{}, err
	}

	timer.Step("Release Text Model", func() error {
		o.releaseTextModel(ctx)
		return nil
	})

	var (
		scenes []types.MediaAsset
		voice  types.NarrationAudio
	)
	err = timer.Step(fmt.Sprintf("Images + Voice (%s)", name), func() error {
		var err error
		scenes, voice, err = o.imagesAndVoice(ctx, script, prompts, lang, dir)
		return err
	})
	o.reclaim(ctx)
	if err != nil {
		return types.VideoOutput{}, err
	}

	if mode == ModeTest {
		log.Printf("🧪 Test mode: narration at %s (%.1fs)", voice.Path, voice.DurationSeconds)
		return types.VideoOutput{
			Language:        lang,
			LocalPath:       voice.Path,
			DurationSeconds: voice.DurationSeconds,
		}, nil
	}

	var avatar types.MediaAsset
	err = timer.Step(fmt.Sprintf("Avatar (%s)", name), func() error {
		var err error
		avatar, err = o.animate(ctx, voice, dir)
		return err
	})
	o.reclaim(ctx)
	if err != nil {
		return types.VideoOutput{}, err
	}

	var subtitles string
	timer.Step(fmt.Sprintf("Subtitles (%s)", name), func() error {
		subtitles = o.transcribe(ctx, voice, lang, dir)
		return nil
	})
	o.reclaim(ctx)

	var final types.MediaAsset
	err = timer.Step(fmt.Sprintf("Compose (%s)", name), func() error {
		var err error
		final, err = o.compose(ctx, ComposeRequest{
			Mode:            o.opts.CompositionMode,
			SceneImages:     assetPaths(scenes),
			AvatarVideo:     avatar.Path,
			Narration:       voice.Path,
			Subtitles:       subtitles,
			Destination:     filepath.Join(dir, config.FinalFile),
			DurationSeconds: voice.DurationSeconds,
		})
		return err
	})
	if err != nil {
		return types.VideoOutput{}, err
	}

	var receipt PublishReceipt
	err = timer.Step(fmt.Sprintf("Publish (%s)", name), func() error {
		var err error
		receipt, err = o.publisher.Publish(ctx, PublishRequest{
			VideoPath:   final.Path,
			Title:       metadata.Title,
			Description: metadata.Description,
			Tags:        metadata.Tags,
			Upload:      o.opts.AutoUpload,
		})
		return err
	})
	if err != nil {
		return types.VideoOutput{}, err
	}

	duration := final.DurationSeconds
	if duration == 0 {
		duration = voice.DurationSeconds
	}
	return types.VideoOutput{
		Language:         lang,
		LocalPath:        final.Path,
		RemoteBackupPath: receipt.BackupPath,
		PublicURL:        receipt.URL,
		Metadata:         &metadata,
		DurationSeconds:  duration,
		CompositionMode:  o.opts.CompositionMode,
	}, nil
}

func assetPaths(assets []types.MediaAsset) []string {
	paths := make([]string, 0, len(assets))
	for _, a := range assets {
		paths = append(paths, a.Path)
	}
	return paths
}
