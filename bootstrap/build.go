// Package bootstrap turns Settings into a wired orchestrator.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"shortsbot/common"
	"shortsbot/config"
	"shortsbot/distribution"
	"shortsbot/gpu"
	"shortsbot/llm"
	"shortsbot/metrics"
	"shortsbot/pipeline"
	"shortsbot/queue"
	"shortsbot/types"
	"shortsbot/video"
)

// ErrBusy is returned when a run is already in progress
var ErrBusy = errors.New("a run is already in progress")

// App is the wired pipeline plus the resources it owns
type App struct {
	Settings     *config.Settings
	Orchestrator *pipeline.Orchestrator
	GPU          *gpu.Manager
	// Ollama is nil when another text backend is configured
	Ollama *llm.Ollama
	// RunOptions are the options the orchestrator was built with
	RunOptions pipeline.Options

	running sync.Mutex
	closers []io.Closer
}

// Build constructs every adapter the settings select.
// The topic queue is connected only when withQueue is set; ad-hoc and batch runs bring their own.
func Build(ctx context.Context, s *config.Settings, withQueue bool) (*App, error) {
	app := &App{Settings: s, GPU: gpu.NewManager(gpu.NewNvidiaSMI())}

	model, err := app.textModel()
	if err != nil {
		return nil, err
	}
	gens := llm.NewGenerators(model, time.Now().UnixNano())

	caps := pipeline.Capabilities{
		Scripts:   gens,
		Metadata:  gens,
		Prompts:   gens,
		Voice:     voice(s),
		Images:    images(s),
		Avatar:    video.NewSadTalker(s.Media.SadTalkerDir, s.Media.EnableEnhancer),
		Subtitles: video.NewWhisper(s.Media.WhisperModel),
		Composer:  video.NewComposer(s.Video.Width, s.Video.Height, s.Video.FPS, s.Video.FontFile, s.Video.MusicFile),
	}
	if app.Ollama != nil {
		caps.TextModel = app.Ollama
	}

	if withQueue {
		src, err := app.topicSource(ctx)
		if err != nil {
			app.Close()
			return nil, err
		}
		caps.Topics = src
	} else {
		caps.Topics = new(queue.StaticSource)
	}

	if caps.Storage, err = app.storage(ctx); err != nil {
		app.Close()
		return nil, err
	}
	if s.Video.AutoUpload {
		if caps.Uploader, err = app.uploader(ctx); err != nil {
			app.Close()
			return nil, err
		}
	}
	if caps.Notifier, err = app.notifier(); err != nil {
		app.Close()
		return nil, err
	}

	if err := caps.Validate(); err != nil {
		app.Close()
		return nil, err
	}

	app.RunOptions = Options(s)
	if caps.Uploader == nil {
		// Nothing to upload to; publish skips the upload instead of failing the run
		app.RunOptions.AutoUpload = false
	}
	app.Orchestrator = pipeline.NewOrchestrator(caps, app.GPU, app.RunOptions)
	return app, nil
}

// Options maps the pipeline settings onto orchestrator options
func Options(s *config.Settings) pipeline.Options {
	policy := pipeline.AbortOnFailure
	if s.Pipeline.IndependentPasses {
		policy = pipeline.IndependentPasses
	}
	return pipeline.Options{
		OutputDir:        s.Pipeline.OutputDir,
		AvatarImage:      s.Media.AvatarImage,
		CompositionMode:  s.Video.Mode,
		MinWords:         s.Pipeline.MinWords,
		MaxWords:         s.Pipeline.MaxWords,
		ImagePromptCount: s.Pipeline.ImagePromptCount,
		VoiceTimeout:     s.Pipeline.VoiceTimeout,
		AutoUpload:       s.Video.AutoUpload,
		PassPolicy:       policy,
		TimerOptions:     []common.TimerOption{common.WithObserver(metrics.ObserveStage)},
	}
}

func (a *App) textModel() (llm.TextModel, error) {
	s := a.Settings
	switch s.Backends.Text {
	case config.TextCohere:
		return llm.NewCohere(s.Cohere.APIKey, s.Cohere.Model, s.Pipeline.MaxRetries), nil
	case config.TextOllama:
		a.Ollama = llm.NewOllama(llm.OllamaConfig{
			Host:        s.Ollama.Host,
			Model:       s.Ollama.Model,
			Timeout:     config.OllamaRequestTimeout,
			MaxAttempts: s.Pipeline.MaxRetries,
			AutoStart:   true,
		})
		a.GPU.Register("ollama", a.Ollama)
		return a.Ollama, nil
	}
	return nil, types.Stagef(types.StageConfiguration, "unknown text backend %q", s.Backends.Text)
}

func voice(s *config.Settings) pipeline.NarrationSynthesizer {
	if s.Backends.Voice == config.VoiceCommand {
		return video.NewCommandTTS(s.Media.TTSCommand)
	}
	return video.NewEdgeTTS()
}

func images(s *config.Settings) pipeline.ImageGenerator {
	if s.Backends.Image == config.ImageSDXL {
		return video.NewSDXLCommand(s.Media.SDXLCommand, s.Video.Width, s.Video.Height)
	}
	return video.NewPollinations(s.Media.PollinationsURL, s.Video.Width, s.Video.Height)
}

func (a *App) topicSource(ctx context.Context) (pipeline.TopicSource, error) {
	s := a.Settings
	switch s.Backends.Queue {
	case config.QueueRedis:
		src, err := NewRedisQueue(s)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, src)
		return src, nil
	case config.QueueSheets:
		src, err := queue.NewSheetsSource(ctx, s.Google.CredentialsFile, s.Google.SheetURL, s.Google.SheetName)
		if err != nil {
			return nil, types.NewStageError(types.StageTopicFetch, fmt.Sprintf("open topic sheet: %v", err), err)
		}
		return src, nil
	}
	return nil, types.Stagef(types.StageConfiguration, "unknown topic queue %q", s.Backends.Queue)
}

// NewRedisQueue connects the redis topic queue
func NewRedisQueue(s *config.Settings) (*queue.RedisSource, error) {
	src, err := queue.NewRedisSource(queue.RedisConfig{
		Addr:     s.Redis.Addr,
		Password: s.Redis.Password,
		DB:       s.Redis.DB,
		Prefix:   s.Redis.Prefix,
	})
	if err != nil {
		return nil, types.NewStageError(types.StageTopicFetch, err.Error(), err)
	}
	return src, nil
}

// NewSeeder builds a feed seeder on the redis queue; the caller closes the returned queue
func NewSeeder(ctx context.Context, s *config.Settings) (*queue.Seeder, *queue.RedisSource, error) {
	rq, err := NewRedisQueue(s)
	if err != nil {
		return nil, nil, err
	}
	seeder := &queue.Seeder{Feeds: queue.NewGoFeed(), Sink: rq}
	if s.Redis.SeenFilter == "bloom" {
		seeder.Seen = rq.Bloom(ctx, queue.BloomConfig{
			Capacity:  s.Redis.BloomCapacity,
			ErrorRate: s.Redis.BloomErrorRate,
			TTL:       s.Redis.BloomTTL,
		})
	}
	return seeder, rq, nil
}

func (a *App) storage(ctx context.Context) (pipeline.Storage, error) {
	s := a.Settings
	switch s.Backends.Storage {
	case config.StorageDrive:
		d, err := distribution.NewDriveStorage(ctx, s.Google.CredentialsFile, s.Google.DriveFolderID)
		if err != nil {
			return nil, types.NewStageError(types.StageStorage, err.Error(), err)
		}
		return d, nil
	case config.StorageS3:
		store, err := common.NewS3(ctx, common.S3Config{Region: s.S3.Region, Profile: s.S3.Profile, UsePathStyle: s.S3.UsePathStyle})
		if err != nil {
			return nil, types.NewStageError(types.StageStorage, err.Error(), err)
		}
		return distribution.NewS3Storage(store, s.S3.Bucket, s.S3.Prefix), nil
	}
	return nil, nil
}

func (a *App) uploader(ctx context.Context) (pipeline.Uploader, error) {
	s := a.Settings
	if !s.YouTubeEnabled() {
		log.Println("⚠️  AUTO_UPLOAD_YOUTUBE is set but no YouTube credentials are configured; uploads are disabled")
		return nil, nil
	}
	u, err := distribution.NewYouTubeUploader(ctx, distribution.YouTubeConfig{
		ClientID:           s.YouTube.ClientID,
		ClientSecret:       s.YouTube.ClientSecret,
		RefreshToken:       s.YouTube.RefreshToken,
		ServiceAccountFile: s.YouTube.ServiceAccountFile,
		Privacy:            s.YouTube.Privacy,
		CategoryID:         s.YouTube.CategoryID,
		PublishAt:          s.YouTube.PublishAt,
	})
	if err != nil {
		return nil, types.NewStageError(types.StageUpload, err.Error(), err)
	}
	return u, nil
}

func (a *App) notifier() (pipeline.Notifier, error) {
	s := a.Settings
	var channels distribution.MultiNotifier
	for _, n := range s.Backends.Notifiers {
		switch n {
		case config.NotifyTelegram:
			if s.TelegramEnabled() {
				channels = append(channels, distribution.NewTelegram(s.Telegram.BotToken, s.Telegram.ChatID, s.Pipeline.MaxRetries))
			}
		case config.NotifyKafka:
			k, err := distribution.NewKafkaNotifier(s.Kafka.Brokers, s.Kafka.ResultTopic)
			if err != nil {
				return nil, types.NewStageError(types.StageNotification, err.Error(), err)
			}
			a.closers = append(a.closers, k)
			channels = append(channels, k)
		}
	}
	switch len(channels) {
	case 0:
		return nil, nil
	case 1:
		return channels[0], nil
	}
	return channels, nil
}

// Run executes one run; topic nil claims from the queue.
// It returns ErrBusy instead of waiting when another run holds the pipeline.
func (a *App) Run(ctx context.Context, mode pipeline.Mode, topic *types.Topic) (*types.RunResult, error) {
	if !a.running.TryLock() {
		return nil, ErrBusy
	}
	defer a.running.Unlock()

	orch := a.Orchestrator
	if topic != nil {
		orch = orch.WithTopics(queue.Single(topic))
	}
	return orch.Run(ctx, mode)
}

// RunBatch processes every item in order until none remain
func (a *App) RunBatch(ctx context.Context, mode pipeline.Mode, items []queue.BatchItem) ([]*types.RunResult, error) {
	src, err := queue.NewStaticSource(items)
	if err != nil {
		return nil, err
	}
	if !a.running.TryLock() {
		return nil, ErrBusy
	}
	defer a.running.Unlock()

	orch := a.Orchestrator.WithTopics(src)
	var results []*types.RunResult
	for {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result, err := orch.Run(ctx, mode)
		if err != nil {
			return results, err
		}
		if result == nil {
			return results, nil
		}
		results = append(results, result)
	}
}

// Busy reports whether a run currently holds the pipeline
func (a *App) Busy() bool {
	if a.running.TryLock() {
		a.running.Unlock()
		return false
	}
	return true
}

// Close releases connections opened by Build
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}
