package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"shortsbot/gpu"
	"shortsbot/types"
)

// events records the order capabilities were called in
type events struct {
	mu   sync.Mutex
	list []string
}

func (e *events) add(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.list = append(e.list, name)
}

func (e *events) all() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.list...)
}

func (e *events) count(name string) int {
	n := 0
	for _, ev := range e.all() {
		if ev == name {
			n++
		}
	}
	return n
}

func (e *events) index(name string) int {
	for i, ev := range e.all() {
		if ev == name {
			return i
		}
	}
	return -1
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("courage ", n))
}

type fakeTopics struct {
	topic    *types.Topic
	claimErr error
	persistE error
	claimed  bool
	persists []types.TopicStatus
	urls     []string
}

func (f *fakeTopics) ClaimNextPending(context.Context) (*types.Topic, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	if f.claimed || f.topic == nil {
		return nil, nil
	}
	f.claimed = true
	return f.topic, nil
}

func (f *fakeTopics) PersistStatus(_ context.Context, t *types.Topic) error {
	f.persists = append(f.persists, t.Status)
	f.urls = append(f.urls, t.VideoURL)
	return f.persistE
}

func (f *fakeTopics) countStatus(s types.TopicStatus) int {
	n := 0
	for _, p := range f.persists {
		if p == s {
			n++
		}
	}
	return n
}

type fakeScripts struct {
	ev    *events
	text  string
	err   error
	langs []types.Language
}

func (f *fakeScripts) GenerateScript(_ context.Context, _ string, lang types.Language) (types.Script, error) {
	f.ev.add("script")
	f.langs = append(f.langs, lang)
	if f.err != nil {
		return types.Script{}, f.err
	}
	return types.NewScript(f.text, lang), nil
}

type fakeMetadata struct{ ev *events }

func (f *fakeMetadata) GenerateMetadata(_ context.Context, topic string, lang types.Language, _ string) (types.VideoMetadata, error) {
	f.ev.add("metadata")
	return types.NewVideoMetadata(topic+" | Motivation #Shorts", "desc", []string{"motivation"}, lang), nil
}

type fakePrompts struct {
	ev      *events
	prompts []string
	counts  []int
}

func (f *fakePrompts) DeriveImagePrompts(_ context.Context, _ string, count int) ([]string, error) {
	f.ev.add("prompts")
	f.counts = append(f.counts, count)
	if f.prompts != nil {
		return f.prompts, nil
	}
	return []string{"a lone climber reaching a summit at dawn"}, nil
}

type fakeTextModel struct{ ev *events }

func (f *fakeTextModel) Unload(context.Context) error {
	f.ev.add("unload")
	return errors.New("unload is best-effort")
}

type fakeVoice struct {
	ev    *events
	err   error
	delay time.Duration
	// block waits for ctx to end
	block bool
}

func (f *fakeVoice) Synthesize(ctx context.Context, _ string, lang types.Language, dest string) (types.NarrationAudio, error) {
	if f.block {
		<-ctx.Done()
		f.ev.add("voice")
		return types.NarrationAudio{}, ctx.Err()
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.ev.add("voice")
	if f.err != nil {
		return types.NarrationAudio{}, f.err
	}
	return types.NarrationAudio{Path: dest, DurationSeconds: 42.5, Language: lang, VoiceID: lang.Voice()}, nil
}

type fakeImages struct {
	ev    *events
	err   error
	delay time.Duration
}

func (f *fakeImages) GenerateImage(_ context.Context, _ string, _ types.Language, dest string) (types.MediaAsset, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.ev.add("image")
	if f.err != nil {
		return types.MediaAsset{}, f.err
	}
	return types.MediaAsset{Path: dest, Kind: types.AssetSceneImage}, nil
}

type fakeAvatar struct {
	ev    *events
	err   error
	panic bool
}

func (f *fakeAvatar) Animate(_ context.Context, _, _, dest string) (types.MediaAsset, error) {
	f.ev.add("avatar")
	if f.panic {
		panic("sadtalker crashed")
	}
	if f.err != nil {
		return types.MediaAsset{}, f.err
	}
	return types.MediaAsset{Path: dest, Kind: types.AssetAvatarVideo, DurationSeconds: 42.5}, nil
}

type fakeSubtitles struct {
	ev  *events
	err error
}

func (f *fakeSubtitles) Transcribe(_ context.Context, _ string, _ types.Language, dest string) (types.MediaAsset, error) {
	f.ev.add("subtitles")
	if f.err != nil {
		return types.MediaAsset{}, f.err
	}
	return types.MediaAsset{Path: dest, Kind: types.AssetSubtitleFile}, nil
}

type fakeComposer struct {
	ev   *events
	err  error
	reqs []ComposeRequest
}

func (f *fakeComposer) Compose(_ context.Context, req ComposeRequest) (types.MediaAsset, error) {
	f.ev.add("compose")
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return types.MediaAsset{}, f.err
	}
	return types.MediaAsset{Path: req.Destination, Kind: types.AssetComposedVideo, DurationSeconds: req.DurationSeconds}, nil
}

type fakeUploader struct {
	ev    *events
	err   error
	calls int
}

func (f *fakeUploader) Upload(_ context.Context, path, _, _ string, _ []string) (string, error) {
	f.ev.add("upload")
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "https://youtube.com/shorts/" + filepath.Base(filepath.Dir(path)), nil
}

type fakeStorage struct {
	ev  *events
	err error
}

func (f *fakeStorage) Save(_ context.Context, path string) (string, error) {
	f.ev.add("storage")
	if f.err != nil {
		return "", f.err
	}
	return "s3://videos/" + filepath.Base(path), nil
}

type fakeNotifier struct {
	ev       *events
	err      error
	declined bool
	messages []string
}

func (f *fakeNotifier) Send(_ context.Context, msg string) (bool, error) {
	f.ev.add("notify")
	f.messages = append(f.messages, msg)
	if f.err != nil {
		return false, f.err
	}
	return !f.declined, nil
}

type fakeAccel struct {
	ev     *events
	probes int
}

func (f *fakeAccel) Probe(context.Context) (gpu.DeviceInfo, bool) {
	f.probes++
	return gpu.DeviceInfo{Name: "fake"}, true
}

func (f *fakeAccel) Reclaim(context.Context) gpu.ReclaimOutcome {
	f.ev.add("reclaim")
	return gpu.ReclaimOutcome{Failures: []gpu.ReleaseFailure{{Name: "flaky", Err: fmt.Errorf("ignored")}}}
}

// harness bundles a full set of fakes
type harness struct {
	ev        *events
	topics    *fakeTopics
	scripts   *fakeScripts
	prompts   *fakePrompts
	voice     *fakeVoice
	images    *fakeImages
	avatar    *fakeAvatar
	subtitles *fakeSubtitles
	composer  *fakeComposer
	uploader  *fakeUploader
	storage   *fakeStorage
	notifier  *fakeNotifier
	accel     *fakeAccel
	opts      Options
}

func newHarness(lang types.Language, outputDir string) *harness {
	ev := &events{}
	topic, err := types.NewTopic("Never give up", lang, "row-2")
	if err != nil {
		panic(err)
	}
	return &harness{
		ev:        ev,
		topics:    &fakeTopics{topic: topic},
		scripts:   &fakeScripts{ev: ev, text: words(120)},
		prompts:   &fakePrompts{ev: ev},
		voice:     &fakeVoice{ev: ev},
		images:    &fakeImages{ev: ev},
		avatar:    &fakeAvatar{ev: ev},
		subtitles: &fakeSubtitles{ev: ev},
		composer:  &fakeComposer{ev: ev},
		uploader:  &fakeUploader{ev: ev},
		storage:   &fakeStorage{ev: ev},
		notifier:  &fakeNotifier{ev: ev},
		accel:     &fakeAccel{ev: ev},
		opts: Options{
			OutputDir:    outputDir,
			AvatarImage:  "assets/avatar.png",
			AutoUpload:   true,
			VoiceTimeout: time.Second,
			NewRunID:     func() string { return "run1" },
		},
	}
}

func (h *harness) orchestrator() *Orchestrator {
	caps := Capabilities{
		Topics:    h.topics,
		Scripts:   h.scripts,
		Metadata:  &fakeMetadata{ev: h.ev},
		Prompts:   h.prompts,
		TextModel: &fakeTextModel{ev: h.ev},
		Voice:     h.voice,
		Images:    h.images,
		Avatar:    h.avatar,
		Subtitles: h.subtitles,
		Composer:  h.composer,
		Uploader:  h.uploader,
		Storage:   h.storage,
		Notifier:  h.notifier,
	}
	return NewOrchestrator(caps, h.accel, h.opts)
}
