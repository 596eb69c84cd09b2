package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shortsbot/api"
	"shortsbot/bootstrap"
	"shortsbot/config"
	"shortsbot/kafka"
	"shortsbot/pipeline"
	"shortsbot/queue"
	"shortsbot/types"
)

// common flags shared by the commands that build the pipeline
type appFlags struct {
	envFile   string
	videoMode string
	noUpload  bool
}

func (f *appFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.envFile, "env-file", ".env", "environment file to load")
	fs.StringVar(&f.videoMode, "video-mode", "", "composition mode override (avatar|slideshow)")
	fs.BoolVar(&f.noUpload, "no-upload", false, "skip the YouTube upload")
}

// settings loads the configuration and applies the command-line overrides
func (f *appFlags) settings() (*config.Settings, error) {
	s, err := config.Load(f.envFile)
	if err != nil {
		return nil, err
	}
	return s, f.apply(s)
}

func (f *appFlags) apply(s *config.Settings) error {
	if f.videoMode != "" {
		mode, err := types.ParseCompositionMode(f.videoMode)
		if err != nil {
			return err
		}
		s.Video.Mode = mode
	}
	if f.noUpload {
		s.Video.AutoUpload = false
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func build(ctx context.Context, f *appFlags, withQueue bool) (*bootstrap.App, error) {
	s, err := f.settings()
	if err != nil {
		return nil, err
	}
	return bootstrap.Build(ctx, s, withQueue)
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	var f appFlags
	f.register(fs)
	modeFlag := fs.String("mode", "full", "run mode (full|test)")
	topicText := fs.String("topic", "", "ad-hoc topic instead of the queue")
	language := fs.String("language", string(types.LanguageEnglish), "language for --topic (ta|en|hi|both)")
	_ = fs.Parse(args)

	mode, err := pipeline.ParseMode(*modeFlag)
	if err != nil {
		return err
	}
	var topic *types.Topic
	if *topicText != "" {
		lang, err := types.ParseLanguage(*language)
		if err != nil {
			return err
		}
		if topic, err = types.NewTopic(*topicText, lang, "cli"); err != nil {
			return err
		}
	}

	ctx, stop := signalContext()
	defer stop()

	app, err := build(ctx, &f, topic == nil)
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.Run(ctx, mode, topic)
	if err != nil {
		return err
	}
	if result == nil {
		log.Println("📭 No pending topics")
		return nil
	}
	printResult(result)
	if !result.Success {
		return fmt.Errorf("run %s failed: %s", result.RunID, result.Error)
	}
	return nil
}

func batchCommand(args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	var f appFlags
	f.register(fs)
	modeFlag := fs.String("mode", "full", "run mode (full|test)")
	input := fs.String("input", "topics.json", "JSON list of {topic, language}")
	_ = fs.Parse(args)

	mode, err := pipeline.ParseMode(*modeFlag)
	if err != nil {
		return err
	}
	items, err := queue.LoadBatchFile(*input)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	app, err := build(ctx, &f, false)
	if err != nil {
		return err
	}
	defer app.Close()

	results, err := app.RunBatch(ctx, mode, items)
	failed := 0
	for _, r := range results {
		printResult(r)
		if !r.Success {
			failed++
		}
	}
	log.Printf("📦 Batch finished: %d/%d succeeded", len(results)-failed, len(results))
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d videos failed", failed, len(results))
	}
	return nil
}

func serveCommand(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	var f appFlags
	f.register(fs)
	port := fs.String("port", "", "listen port (default PORT or 8080)")
	schedule := fs.String("cron", "", "cron schedule for queue runs (default RUN_SCHEDULE)")
	modeFlag := fs.String("mode", "full", "run mode for scheduled runs")
	_ = fs.Parse(args)

	mode, err := pipeline.ParseMode(*modeFlag)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	app, err := build(ctx, &f, true)
	if err != nil {
		return err
	}
	defer app.Close()

	if *port == "" {
		*port = app.Settings.Server.Port
	}
	if *schedule == "" {
		*schedule = app.Settings.Server.Schedule
	}

	server := api.NewServer(app, *port)
	if *schedule != "" {
		if err := server.StartCron(*schedule, mode); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func consumeCommand(args []string) error {
	fs := flag.NewFlagSet("consume", flag.ExitOnError)
	var f appFlags
	f.register(fs)
	_ = fs.Parse(args)

	ctx, stop := signalContext()
	defer stop()

	app, err := build(ctx, &f, true)
	if err != nil {
		return err
	}
	defer app.Close()

	k := app.Settings.Kafka
	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: k.Brokers,
		Topic:   k.TriggerTopic,
		GroupID: k.GroupID,
		Handler: kafka.NewRunHandler(app),
	})
	if err != nil {
		return fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	defer consumer.Close()

	return consumer.Run(ctx)
}

func seedCommand(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	envFile := fs.String("env-file", ".env", "environment file to load")
	feedURL := fs.String("feed", "", "RSS or Atom feed URL")
	language := fs.String("language", string(types.LanguageEnglish), "language for the queued topics")
	maxTitles := fs.Int("max", 10, "maximum titles to read from the feed")
	_ = fs.Parse(args)

	if *feedURL == "" {
		return errors.New("--feed is required")
	}
	lang, err := types.ParseLanguage(*language)
	if err != nil {
		return err
	}
	s, err := config.Load(*envFile)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	seeder, rq, err := bootstrap.NewSeeder(ctx, s)
	if err != nil {
		return err
	}
	defer rq.Close()

	report, err := seeder.Seed(ctx, *feedURL, lang, *maxTitles)
	if err != nil {
		return err
	}
	log.Printf("🌱 Seeded %d new topic(s) from %d title(s), %d duplicate(s)", report.Queued, report.Fetched, report.Duplicates)
	return nil
}

func setupCommand(args []string) error {
	fs := flag.NewFlagSet("setup", flag.ExitOnError)
	envFile := fs.String("env-file", ".env", "environment file to load")
	_ = fs.Parse(args)

	s, err := config.Load(*envFile)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if !bootstrap.ReportChecks(bootstrap.CheckEnvironment(ctx, s)) {
		return errors.New("required tools are missing")
	}
	return nil
}

func printResult(r *types.RunResult) {
	status := "✅"
	if !r.Success {
		status = "❌"
	}
	topic := ""
	if r.Topic != nil {
		topic = r.Topic.Text
	}
	log.Printf("%s Run %s (%.1fs): %s", status, r.RunID, r.TotalSeconds, topic)
	for _, o := range r.Outputs {
		dest := o.PublicURL
		if dest == "" {
			dest = o.LocalPath
		}
		if o.Error != "" {
			log.Printf("   %s: ❌ %s", o.Language, o.Error)
			continue
		}
		log.Printf("   %s: %s", o.Language, dest)
	}
	if r.Error != "" {
		log.Printf("   error: %s", r.Error)
	}
}
