package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shortsbot/types"
)

func TestRunFullModeSingleLanguage(t *testing.T) {
	h := newHarness(types.LanguageEnglish, t.TempDir())

	result, err := h.orchestrator().Run(context.Background(), ModeFull)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result == nil || !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}
	if len(result.Outputs) != 1 {
		t.Fatalf("outputs = %d, want 1", len(result.Outputs))
	}
	out := result.Outputs[0]
	if out.PublicURL != "https://youtube.com/shorts/en" {
		t.Fatalf("PublicURL = %q", out.PublicURL)
	}
	if out.RemoteBackupPath != "s3://videos/final_video.mp4" {
		t.Fatalf("RemoteBackupPath = %q", out.RemoteBackupPath)
	}
	if want := filepath.Join(h.opts.OutputDir, "run1", "en", "final_video.mp4"); out.LocalPath != want {
		t.Fatalf("LocalPath = %q, want %q", out.LocalPath, want)
	}
	if out.Metadata == nil || out.Metadata.Title == "" {
		t.Fatal("metadata missing from output")
	}

	if got := h.topics.persists; len(got) != 2 || got[0] != types.TopicProcessing || got[1] != types.TopicDone {
		t.Fatalf("persisted statuses = %v, want [Processing Done]", got)
	}
	if h.topics.urls[1] != out.PublicURL {
		t.Fatalf("URL written back = %q, want %q", h.topics.urls[1], out.PublicURL)
	}
	if h.accel.probes != 1 {
		t.Fatalf("probes = %d, want 1", h.accel.probes)
	}
	if len(result.Timings) == 0 || result.TotalSeconds < 0 {
		t.Fatalf("missing timings: %+v", result.Timings)
	}
}

func TestRunStageOrder(t *testing.T) {
	h := newHarness(types.LanguageEnglish, t.TempDir())
	if _, err := h.orchestrator().Run(context.Background(), ModeFull); err != nil {
		t.Fatalf("Run: %v", err)
	}

	ev := h.ev
	before := func(a, b string) {
		t.Helper()
		ia, ib := ev.index(a), ev.index(b)
		if ia < 0 || ib < 0 || ia >= ib {
			t.Fatalf("%s (at %d) should happen before %s (at %d): %v", a, ia, b, ib, ev.all())
		}
	}
	before("script", "metadata")
	before("metadata", "prompts")
	before("prompts", "unload")
	before("unload", "reclaim")
	before("reclaim", "image")
	before("reclaim", "voice")
	before("image", "avatar")
	before("voice", "avatar")
	before("avatar", "subtitles")
	before("subtitles", "compose")
	before("compose", "storage")
	before("storage", "upload")
	before("upload", "notify")

	// after text model release, after the parallel window, after avatar, after subtitles
	if n := ev.count("reclaim"); n != 4 {
		t.Fatalf("reclaim calls = %d, want 4", n)
	}
	if got := h.prompts.counts; len(got) != 1 || got[0] != 1 {
		t.Fatalf("prompt counts = %v, want [1]", got)
	}
}

func TestRunBothLanguagesRunsEnglishThenTamil(t *testing.T) {
	h := newHarness(types.LanguageBoth, t.TempDir())

	result, err := h.orchestrator().Run(context.Background(), ModeFull)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success || len(result.Outputs) != 2 {
		t.Fatalf("result = %+v, want 2 successful outputs", result)
	}
	if result.Outputs[0].Language != types.LanguageEnglish || result.Outputs[1].Language != types.LanguageTamil {
		t.Fatalf("output languages = %s, %s", result.Outputs[0].Language, result.Outputs[1].Language)
	}
	if got := h.scripts.langs; len(got) != 2 || got[0] != types.LanguageEnglish || got[1] != types.LanguageTamil {
		t.Fatalf("script languages = %v", got)
	}
	if h.uploader.calls != 2 {
		t.Fatalf("uploads = %d, want 2", h.uploader.calls)
	}
	if h.topics.countStatus(types.TopicDone) != 1 {
		t.Fatalf("Done persisted %d times, want 1", h.topics.countStatus(types.TopicDone))
	}
}

func TestRunScriptTooShortFailsTopic(t *testing.T) {
	h := newHarness(types.LanguageEnglish, t.TempDir())
	h.scripts.text = words(8)

	result, err := h.orchestrator().Run(context.Background(), ModeFull)
	if err != nil {
		t.Fatalf("Run returned error %v; failures after claim belong in the result", err)
	}
	if result.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.Error, "too short") {
		t.Fatalf("Error = %q, want it to mention too short", result.Error)
	}
	if h.topics.countStatus(types.TopicFailed) != 1 {
		t.Fatalf("Failed persisted %d times, want exactly 1", h.topics.countStatus(types.TopicFailed))
	}
	if h.ev.count("metadata") != 0 || h.ev.count("voice") != 0 {
		t.Fatalf("no stage after the script should run: %v", h.ev.all())
	}
	if h.topics.topic.Status != types.TopicFailed {
		t.Fatalf("topic status = %s", h.topics.topic.Status)
	}
}

func TestRunScriptTooLong(t *testing.T) {
	h := newHarness(types.LanguageEnglish, t.TempDir())
	h.scripts.text = words(201)

	result, _ := h.orchestrator().Run(context.Background(), ModeFull)
	if result.Success || !strings.Contains(result.Error, "too long") {
		t.Fatalf("result = %+v, want too long failure", result)
	}
}

func TestRunTestModeStopsAfterNarration(t *testing.T) {
	h := newHarness(types.LanguageEnglish, t.TempDir())

	result, err := h.orchestrator().Run(context.Background(), ModeTest)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success || len(result.Outputs) != 1 {
		t.Fatalf("result = %+v", result)
	}
	out := result.Outputs[0]
	if want := filepath.Join(h.opts.OutputDir, "run1", "en", "voice.mp3"); out.LocalPath != want {
		t.Fatalf("LocalPath = %q, want narration path %q", out.LocalPath, want)
	}
	if out.DurationSeconds != 42.5 {
		t.Fatalf("DurationSeconds = %v, want 42.5", out.DurationSeconds)
	}
	for _, stage := range []string{"avatar", "subtitles", "compose", "storage", "upload", "notify"} {
		if h.ev.count(stage) != 0 {
			t.Fatalf("%s should not run in test mode: %v", stage, h.ev.all())
		}
	}
	if h.topics.countStatus(types.TopicDone) != 1 {
		t.Fatal("test mode should still leave the topic Done")
	}
}

func TestRunSubtitleFailureIsNotFatal(t *testing.T) {
	h := newHarness(types.LanguageEnglish, t.TempDir())
	h.subtitles.err = errors.New("whisper missing")

	result, err := h.orchestrator().Run(context.Background(), ModeFull)
	if err != nil || !result.Success {
		t.Fatalf("Run = %+v, %v; want success", result, err)
	}
	if len(h.composer.reqs) != 1 || h.composer.reqs[0].Subtitles != "" {
		t.Fatalf("compose should run without subtitles: %+v", h.composer.reqs)
	}
	if h.ev.count("reclaim") != 4 {
		t.Fatalf("reclaim calls = %d, want 4 even when subtitles fail", h.ev.count("reclaim"))
	}
}

func TestRunFatalStages(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
		stage types.Stage
		skip  []string
	}{
		{"avatar", func(h *harness) { h.avatar.err = errors.New("cuda oom") }, types.StageAvatar, []string{"subtitles", "compose"}},
		{"compose", func(h *harness) { h.composer.err = errors.New("ffmpeg exited 1") }, types.StageComposition, []string{"storage", "upload"}},
		{"upload", func(h *harness) { h.uploader.err = errors.New("quota exceeded") }, types.StageUpload, []string{"notify"}},
		{"image", func(h *harness) { h.images.err = errors.New("nsfw filter") }, types.StageBackground, []string{"avatar"}},
		{"voice", func(h *harness) { h.voice.err = errors.New("edge-tts 403") }, types.StageVoice, []string{"avatar"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(types.LanguageEnglish, t.TempDir())
			tt.setup(h)

			result, err := h.orchestrator().Run(context.Background(), ModeFull)
			if err != nil {
				t.Fatalf("Run returned error: %v", err)
			}
			if result.Success || result.Error == "" {
				t.Fatalf("result = %+v, want failure", result)
			}
			if h.topics.countStatus(types.TopicFailed) != 1 {
				t.Fatalf("Failed persisted %d times, want 1", h.topics.countStatus(types.TopicFailed))
			}
			for _, s := range tt.skip {
				if h.ev.count(s) != 0 {
					t.Fatalf("%s should not run after %s failure: %v", s, tt.name, h.ev.all())
				}
			}
		})
	}
}

func TestImageFailureStillJoinsNarration(t *testing.T) {
	h := newHarness(types.LanguageEnglish, t.TempDir())
	h.images.err = errors.New("nsfw filter")
	h.voice.delay = 50 * time.Millisecond
	h.voice.err = errors.New("voice failed too")

	o := h.orchestrator()
	_, _, err := o.imagesAndVoice(context.Background(), types.NewScript(words(40), types.LanguageEnglish),
		[]string{"a prompt"}, types.LanguageEnglish, t.TempDir())
	if !types.IsStage(err, types.StageBackground) {
		t.Fatalf("err stage = %q, want image error to take precedence", types.StageOf(err))
	}
	if h.ev.count("voice") != 1 {
		t.Fatal("narration must finish before the window returns")
	}
}

func TestNarrationTimeout(t *testing.T) {
	h := newHarness(types.LanguageEnglish, t.TempDir())
	h.voice.block = true
	h.opts.VoiceTimeout = 20 * time.Millisecond

	result, err := h.orchestrator().Run(context.Background(), ModeFull)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Success || !strings.Contains(result.Error, "did not finish") && !strings.Contains(result.Error, "deadline") {
		t.Fatalf("result = %+v, want narration timeout", result)
	}
	if h.ev.count("avatar") != 0 {
		t.Fatal("avatar should not run after narration timeout")
	}
}

func TestSlowImagesKeepFinishedNarration(t *testing.T) {
	h := newHarness(types.LanguageEnglish, t.TempDir())
	h.opts.VoiceTimeout = 10 * time.Millisecond
	h.images.delay = 30 * time.Millisecond
	o := h.orchestrator()
	script := types.NewScript(words(40), types.LanguageEnglish)

	for i := 0; i < 20; i++ {
		_, audio, err := o.imagesAndVoice(context.Background(), script, []string{"a prompt"}, types.LanguageEnglish, t.TempDir())
		if err != nil {
			t.Fatalf("attempt %d: narration finished before the images but got %v", i, err)
		}
		if audio.DurationSeconds != 42.5 {
			t.Fatalf("attempt %d: audio = %+v", i, audio)
		}
	}
}

func TestSlowImagesDoNotCancelNarration(t *testing.T) {
	h := newHarness(types.LanguageEnglish, t.TempDir())
	h.opts.VoiceTimeout = 40 * time.Millisecond
	h.images.delay = 30 * time.Millisecond
	h.voice.delay = 50 * time.Millisecond

	_, _, err := h.orchestrator().imagesAndVoice(context.Background(), types.NewScript(words(40), types.LanguageEnglish),
		[]string{"a prompt"}, types.LanguageEnglish, t.TempDir())
	if err != nil {
		t.Fatalf("narration finishing within VoiceTimeout of the images should succeed, got %v", err)
	}
}

func TestRunNoWork(t *testing.T) {
	h := newHarness(types.LanguageEnglish, t.TempDir())
	h.topics.topic = nil

	result, err := h.orchestrator().Run(context.Background(), ModeFull)
	if result != nil || err != nil {
		t.Fatalf("Run = %v, %v; want nil, nil", result, err)
	}
	if len(h.ev.all()) != 0 {
		t.Fatalf("no stage should run without work: %v", h.ev.all())
	}
}

func TestRunClaimFailure(t *testing.T) {
	h := newHarness(types.LanguageEnglish, t.TempDir())
	h.topics.claimErr = errors.New("sheets 503")

	result, err := h.orchestrator().Run(context.Background(), ModeFull)
	if result != nil {
		t.Fatalf("result = %+v, want nil", result)
	}
	if !types.IsStage(err, types.StageTopicFetch) {
		t.Fatalf("err = %v, want topic_fetch stage", err)
	}
	if len(h.topics.persists) != 0 {
		t.Fatal("nothing should be persisted when the claim fails")
	}
}

func TestRunPanicStillFinalizesTopic(t *testing.T) {
	h := newHarness(types.LanguageEnglish, t.TempDir())
	h.avatar.panic = true

	result, err := h.orchestrator().Run(context.Background(), ModeFull)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Success || !strings.Contains(result.Error, "unexpected failure") {
		t.Fatalf("result = %+v", result)
	}
	if h.topics.countStatus(types.TopicFailed) != 1 {
		t.Fatal("a panicking stage must still leave the topic Failed")
	}
}

func TestRunPersistFailureDoesNotAbort(t *testing.T) {
	h := newHarness(types.LanguageEnglish, t.TempDir())
	h.topics.persistE = errors.New("sheet locked")

	result, err := h.orchestrator().Run(context.Background(), ModeFull)
	if err != nil || !result.Success {
		t.Fatalf("Run = %+v, %v; want success despite persist errors", result, err)
	}
}

func TestRunAbortOnFirstFailingPass(t *testing.T) {
	h := newHarness(types.LanguageBoth, t.TempDir())
	h.uploader.err = errors.New("quota exceeded")

	result, _ := h.orchestrator().Run(context.Background(), ModeFull)
	if result.Success {
		t.Fatal("expected failure")
	}
	if got := h.scripts.langs; len(got) != 1 {
		t.Fatalf("script calls = %v, Tamil pass should not start", got)
	}
}

func TestRunIndependentPasses(t *testing.T) {
	h := newHarness(types.LanguageBoth, t.TempDir())
	h.opts.PassPolicy = IndependentPasses
	h.uploader.err = errors.New("quota exceeded")

	result, err := h.orchestrator().Run(context.Background(), ModeFull)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Success {
		t.Fatal("a failed pass should fail the run")
	}
	if len(result.Outputs) != 2 || result.Outputs[0].Error == "" || result.Outputs[1].Error == "" {
		t.Fatalf("outputs = %+v, want both passes reported with errors", result.Outputs)
	}
	if !strings.Contains(result.Error, "English") || !strings.Contains(result.Error, "Tamil") {
		t.Fatalf("Error = %q, want both languages", result.Error)
	}
	if h.topics.countStatus(types.TopicFailed) != 1 {
		t.Fatal("Failed should be persisted exactly once")
	}
}

func TestRunSlideshowModeUsesAllScenes(t *testing.T) {
	h := newHarness(types.LanguageEnglish, t.TempDir())
	h.opts.CompositionMode = types.CompositionSlideshow
	h.opts.ImagePromptCount = 3
	h.prompts.prompts = []string{"scene one prompt", "scene two prompt", "scene three prompt"}

	result, err := h.orchestrator().Run(context.Background(), ModeFull)
	if err != nil || !result.Success {
		t.Fatalf("Run = %+v, %v", result, err)
	}
	req := h.composer.reqs[0]
	if req.Mode != types.CompositionSlideshow || len(req.SceneImages) != 3 {
		t.Fatalf("compose request = %+v", req)
	}
	if filepath.Base(req.SceneImages[2]) != "scene_03.png" {
		t.Fatalf("scene naming = %v", req.SceneImages)
	}
	if result.Outputs[0].CompositionMode != types.CompositionSlideshow {
		t.Fatalf("CompositionMode = %s", result.Outputs[0].CompositionMode)
	}
}

func TestRunBlankPromptsFail(t *testing.T) {
	h := newHarness(types.LanguageEnglish, t.TempDir())
	h.prompts.prompts = []string{"  ", ""}

	result, _ := h.orchestrator().Run(context.Background(), ModeFull)
	if result.Success || h.ev.count("image") != 0 {
		t.Fatalf("result = %+v, events = %v", result, h.ev.all())
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode("TEST"); err != nil || m != ModeTest {
		t.Fatalf("ParseMode(TEST) = %s, %v", m, err)
	}
	if m, err := ParseMode(""); err != nil || m != ModeFull {
		t.Fatalf("ParseMode(\"\") = %s, %v", m, err)
	}
	if _, err := ParseMode("dry"); err == nil {
		t.Fatal("expected error")
	}
}
