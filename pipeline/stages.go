package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"shortsbot/config"
	"shortsbot/metrics"
	"shortsbot/types"
)

// failStage tags err with stage unless an adapter already did
func failStage(stage types.Stage, what string, err error) error {
	var se *types.StageError
	if errors.As(err, &se) && se.Stage == stage {
		return err
	}
	return types.NewStageError(stage, fmt.Sprintf("%s: %v", what, err), err)
}

func (o *Orchestrator) generateScript(ctx context.Context, topic string, lang types.Language) (types.Script, error) {
	log.Printf("✍️  Generating %s script...", lang.DisplayName())
	script, err := o.caps.Scripts.GenerateScript(ctx, topic, lang)
	if err != nil {
		return types.Script{}, failStage(types.StageScript, "generate script", err)
	}
	if err := script.Validate(o.opts.MinWords, o.opts.MaxWords); err != nil {
		return types.Script{}, failStage(types.StageScript, "invalid script", err)
	}
	log.Printf("✅ Script ready (%d words)", script.WordCount())
	return script, nil
}

func (o *Orchestrator) generateMetadata(ctx context.Context, topic string, lang types.Language, script types.Script) (types.VideoMetadata, error) {
	md, err := o.caps.Metadata.GenerateMetadata(ctx, topic, lang, script.Text)
	if err != nil {
		return types.VideoMetadata{}, failStage(types.StageMetadata, "generate metadata", err)
	}
	log.Printf("🏷️  Title: %s", md.Title)
	return md, nil
}

func (o *Orchestrator) derivePrompts(ctx context.Context, script types.Script) ([]string, error) {
	raw, err := o.caps.Prompts.DeriveImagePrompts(ctx, script.Text, o.opts.ImagePromptCount)
	if err != nil {
		return nil, failStage(types.StageImagePrompt, "derive image prompts", err)
	}
	var prompts []string
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			prompts = append(prompts, p)
		}
	}
	if len(prompts) == 0 {
		return nil, types.Stagef(types.StageImagePrompt, "no usable image prompt derived from script")
	}
	return prompts, nil
}

// releaseTextModel frees the language model before the image and voice models load
func (o *Orchestrator) releaseTextModel(ctx context.Context) {
	if o.caps.TextModel != nil {
		if err := o.caps.TextModel.Unload(ctx); err != nil {
			log.Printf("⚠️  Text model unload failed: %v", err)
		}
	}
	o.reclaim(ctx)
}

func (o *Orchestrator) reclaim(ctx context.Context) {
	if o.accel == nil {
		return
	}
	out := o.accel.Reclaim(ctx)
	if !out.OK() {
		metrics.CountReclaimFailures(len(out.Failures))
		log.Printf("⚠️  Reclaim incomplete: %v", out.Err())
	}
}

type narration struct {
	audio types.NarrationAudio
	err   error
}

// imagesAndVoice renders scene images on the calling goroutine while narration runs
// in the background. Once the images are done it waits up to VoiceTimeout for narration;
// an image failure is reported ahead of a narration failure.
func (o *Orchestrator) imagesAndVoice(ctx context.Context, script types.Script, prompts []string, lang types.Language, dir string) ([]types.MediaAsset, types.NarrationAudio, error) {
	voiceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan narration, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- narration{err: fmt.Errorf("narration panicked: %v", r)}
			}
		}()
		log.Printf("🔊 Synthesizing %s narration...", lang.DisplayName())
		audio, err := o.caps.Voice.Synthesize(voiceCtx, script.Text, lang, filepath.Join(dir, config.VoiceFile))
		done <- narration{audio: audio, err: err}
	}()

	scenes, imageErr := o.generateScenes(ctx, prompts, lang, dir)
	n := o.joinNarration(ctx, done, cancel)

	if imageErr != nil {
		if n.err != nil {
			log.Printf("⚠️  Narration also failed: %v", n.err)
		}
		return nil, types.NarrationAudio{}, imageErr
	}
	if n.err != nil {
		return nil, types.NarrationAudio{}, failStage(types.StageVoice, "synthesize narration", n.err)
	}
	log.Printf("✅ Narration ready (%.1fs)", n.audio.DurationSeconds)
	return scenes, n.audio, nil
}

// joinNarration takes a finished narration first; otherwise it waits up to VoiceTimeout
// and cancels the task when the deadline passes
func (o *Orchestrator) joinNarration(ctx context.Context, done <-chan narration, cancel context.CancelFunc) narration {
	select {
	case n := <-done:
		return n
	default:
	}

	timer := time.NewTimer(o.opts.VoiceTimeout)
	defer timer.Stop()
	select {
	case n := <-done:
		return n
	case <-timer.C:
		cancel()
		return narration{err: fmt.Errorf("narration did not finish within %s of the scene images: %w", o.opts.VoiceTimeout, context.DeadlineExceeded)}
	case <-ctx.Done():
		return narration{err: ctx.Err()}
	}
}

func (o *Orchestrator) generateScenes(ctx context.Context, prompts []string, lang types.Language, dir string) ([]types.MediaAsset, error) {
	scenes := make([]types.MediaAsset, 0, len(prompts))
	for i, prompt := range prompts {
		dest := filepath.Join(dir, config.ScenesDir, fmt.Sprintf("scene_%02d.png", i+1))
		log.Printf("🎨 Scene %d/%d: %s", i+1, len(prompts), prompt)
		asset, err := o.caps.Images.GenerateImage(ctx, prompt, lang, dest)
		if err != nil {
			return nil, failStage(types.StageBackground, fmt.Sprintf("generate scene %d", i+1), err)
		}
		scenes = append(scenes, asset)
	}
	return scenes, nil
}

func (o *Orchestrator) animate(ctx context.Context, voice types.NarrationAudio, dir string) (types.MediaAsset, error) {
	log.Println("🗣️  Animating avatar...")
	asset, err := o.caps.Avatar.Animate(ctx, voice.Path, o.opts.AvatarImage, filepath.Join(dir, config.AvatarFile))
	if err != nil {
		return types.MediaAsset{}, failStage(types.StageAvatar, "animate avatar", err)
	}
	return asset, nil
}

// transcribe returns the subtitle path, or "" when transcription failed
func (o *Orchestrator) transcribe(ctx context.Context, voice types.NarrationAudio, lang types.Language, dir string) string {
	log.Println("💬 Generating subtitles...")
	asset, err := o.caps.Subtitles.Transcribe(ctx, voice.Path, lang, filepath.Join(dir, config.SubtitlesFile))
	if err != nil {
		log.Printf("⚠️  Subtitles failed, continuing without them: %v", err)
		return ""
	}
	return asset.Path
}

func (o *Orchestrator) compose(ctx context.Context, req ComposeRequest) (types.MediaAsset, error) {
	log.Printf("🎬 Composing %s video...", req.Mode)
	asset, err := o.caps.Composer.Compose(ctx, req)
	if err != nil {
		return types.MediaAsset{}, failStage(types.StageComposition, "compose video", err)
	}
	log.Printf("✅ Video ready: %s", asset.Path)
	return asset, nil
}
