package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"shortsbot/types"

	"github.com/joho/godotenv"
)

// TextBackend selects the language model used for scripts, metadata and prompts
type TextBackend string

const (
	TextOllama TextBackend = "ollama"
	TextCohere TextBackend = "cohere"
)

// VoiceBackend selects the narration engine
type VoiceBackend string

const (
	VoiceEdge    VoiceBackend = "edge"
	VoiceCommand VoiceBackend = "command"
)

// ImageBackend selects the scene image generator
type ImageBackend string

const (
	ImageSDXL         ImageBackend = "sdxl"
	ImagePollinations ImageBackend = "pollinations"
)

// QueueBackend selects where topics are claimed from
type QueueBackend string

const (
	QueueSheets QueueBackend = "sheets"
	QueueRedis  QueueBackend = "redis"
)

// StorageBackend selects where finished videos are backed up
type StorageBackend string

const (
	StorageNone  StorageBackend = "none"
	StorageDrive StorageBackend = "drive"
	StorageS3    StorageBackend = "s3"
)

// NotifierBackend is one completion notification channel
type NotifierBackend string

const (
	NotifyTelegram NotifierBackend = "telegram"
	NotifyKafka    NotifierBackend = "kafka"
)

// Backends holds every backend choice; resolved once at startup
type Backends struct {
	Text      TextBackend
	Voice     VoiceBackend
	Image     ImageBackend
	Queue     QueueBackend
	Storage   StorageBackend
	Notifiers []NotifierBackend
}

// GoogleSettings configures Sheets and Drive access
type GoogleSettings struct {
	CredentialsFile string
	SheetURL        string
	SheetName       string
	DriveFolderID   string
}

// YouTubeSettings configures the upload channel
type YouTubeSettings struct {
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	ServiceAccountFile string
	Privacy            string
	CategoryID         string
	// PublishAt schedules a private upload (RFC 3339); empty publishes immediately
	PublishAt string
}

// TelegramSettings configures completion notifications
type TelegramSettings struct {
	BotToken string
	ChatID   string
}

// OllamaSettings configures the local language model server
type OllamaSettings struct {
	Host  string
	Model string
}

// CohereSettings configures the hosted language model
type CohereSettings struct {
	APIKey string
	Model  string
}

// VideoSettings configures the composed output
type VideoSettings struct {
	Width      int
	Height     int
	FPS        int
	Mode       types.CompositionMode
	AutoUpload bool
	FontFile   string
	MusicFile  string
}

// MediaSettings configures the external media tools
type MediaSettings struct {
	AvatarImage     string
	SadTalkerDir    string
	EnableEnhancer  bool
	WhisperModel    string
	TTSCommand      string
	SDXLCommand     string
	PollinationsURL string
}

// PipelineSettings configures the orchestrator
type PipelineSettings struct {
	OutputDir         string
	MinWords          int
	MaxWords          int
	ImagePromptCount  int
	VoiceTimeout      time.Duration
	MaxRetries        int
	IndependentPasses bool
}

// RedisSettings configures the redis topic queue
type RedisSettings struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	// SeenFilter is "set" (exact) or "bloom" (RedisBloom, needs the module loaded)
	SeenFilter     string
	BloomCapacity  int
	BloomErrorRate float64
	BloomTTL       time.Duration
}

// KafkaSettings configures the run trigger consumer and result notifier
type KafkaSettings struct {
	Brokers      []string
	TriggerTopic string
	ResultTopic  string
	GroupID      string
}

// S3Settings configures the S3 storage backup
type S3Settings struct {
	Bucket       string
	Region       string
	Profile      string
	Prefix       string
	UsePathStyle bool
}

// ServerSettings configures the HTTP API
type ServerSettings struct {
	Port     string
	Schedule string
}

// Settings is the complete runtime configuration
type Settings struct {
	Backends Backends
	Google   GoogleSettings
	YouTube  YouTubeSettings
	Telegram TelegramSettings
	Ollama   OllamaSettings
	Cohere   CohereSettings
	Video    VideoSettings
	Media    MediaSettings
	Pipeline PipelineSettings
	Redis    RedisSettings
	Kafka    KafkaSettings
	S3       S3Settings
	Server   ServerSettings
}

// Load reads envFile (if present) into the environment and builds Settings from it
func Load(envFile string) (*Settings, error) {
	if envFile == "" {
		envFile = ".env"
	}
	// Missing env file is non-fatal
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("⚠️  Could not load %s: %v", envFile, err)
	}
	return FromEnv()
}

// FromEnv builds Settings from the current environment and validates them
func FromEnv() (*Settings, error) {
	mode, err := types.ParseCompositionMode(getEnvOrDefault("VIDEO_MODE", string(types.CompositionAvatar)))
	if err != nil {
		return nil, types.NewStageError(types.StageConfiguration, err.Error(), err)
	}

	s := &Settings{
		Backends: Backends{
			Text:      TextBackend(strings.ToLower(getEnvOrDefault("TEXT_ENGINE", string(TextOllama)))),
			Voice:     VoiceBackend(strings.ToLower(getEnvOrDefault("TTS_ENGINE", string(VoiceEdge)))),
			Image:     ImageBackend(strings.ToLower(getEnvOrDefault("IMAGE_ENGINE", string(ImagePollinations)))),
			Queue:     QueueBackend(strings.ToLower(getEnvOrDefault("TOPIC_QUEUE", string(QueueSheets)))),
			Storage:   StorageBackend(strings.ToLower(getEnvOrDefault("STORAGE_BACKEND", string(StorageNone)))),
			Notifiers: parseNotifiers(getEnvOrDefault("NOTIFIERS", string(NotifyTelegram))),
		},
		Google: GoogleSettings{
			CredentialsFile: getEnvOrDefault("GOOGLE_CREDENTIALS_FILE", "credentials.json"),
			SheetURL:        os.Getenv("SHEET_URL"),
			SheetName:       getEnvOrDefault("SHEET_NAME", "Sheet1"),
			DriveFolderID:   os.Getenv("DRIVE_FOLDER_ID"),
		},
		YouTube: YouTubeSettings{
			ClientID:           os.Getenv("YOUTUBE_CLIENT_ID"),
			ClientSecret:       os.Getenv("YOUTUBE_CLIENT_SECRET"),
			RefreshToken:       os.Getenv("YOUTUBE_REFRESH_TOKEN"),
			ServiceAccountFile: os.Getenv("YOUTUBE_SERVICE_ACCOUNT_FILE"),
			Privacy:            getEnvOrDefault("VIDEO_PRIVACY", YouTubePrivacyStatus),
			CategoryID:         getEnvOrDefault("YOUTUBE_CATEGORY_ID", YouTubeCategoryID),
			PublishAt:          os.Getenv("YOUTUBE_PUBLISH_AT"),
		},
		Telegram: TelegramSettings{
			BotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
			ChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
		},
		Ollama: OllamaSettings{
			Host:  strings.TrimRight(getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434"), "/"),
			Model: getEnvOrDefault("OLLAMA_MODEL", "gemma3:12b"),
		},
		Cohere: CohereSettings{
			APIKey: os.Getenv("COHERE_API_KEY"),
			Model:  getEnvOrDefault("COHERE_MODEL", "command-r-plus"),
		},
		Video: VideoSettings{
			Width:      getEnvInt("VIDEO_WIDTH", VideoWidth),
			Height:     getEnvInt("VIDEO_HEIGHT", VideoHeight),
			FPS:        getEnvInt("VIDEO_FPS", VideoFPS),
			Mode:       mode,
			AutoUpload: getEnvBool("AUTO_UPLOAD_YOUTUBE", true),
			FontFile:   os.Getenv("FONT_FILE"),
			MusicFile:  os.Getenv("BACKGROUND_MUSIC"),
		},
		Media: MediaSettings{
			AvatarImage:     getEnvOrDefault("AVATAR_IMAGE", "assets/avatar.png"),
			SadTalkerDir:    getEnvOrDefault("SADTALKER_DIR", "SadTalker"),
			EnableEnhancer:  getEnvBool("SADTALKER_ENHANCER", false),
			WhisperModel:    getEnvOrDefault("WHISPER_MODEL", "base"),
			TTSCommand:      os.Getenv("TTS_COMMAND"),
			SDXLCommand:     getEnvOrDefault("SDXL_COMMAND", "python3 scripts/sdxl.py"),
			PollinationsURL: getEnvOrDefault("POLLINATIONS_URL", "https://image.pollinations.ai/prompt/"),
		},
		Pipeline: PipelineSettings{
			OutputDir:         getEnvOrDefault("OUTPUT_DIR", OutputDir),
			MinWords:          getEnvInt("MIN_SCRIPT_WORDS", MinScriptWords),
			MaxWords:          getEnvInt("MAX_SCRIPT_WORDS", MaxScriptWords),
			ImagePromptCount:  getEnvInt("IMAGE_PROMPT_COUNT", DefaultImagePromptCount),
			VoiceTimeout:      getEnvDuration("VOICE_TIMEOUT", DefaultVoiceTimeout),
			MaxRetries:        getEnvInt("MAX_RETRIES", 3),
			IndependentPasses: getEnvBool("INDEPENDENT_PASSES", false),
		},
		Redis: RedisSettings{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
			Prefix:   getEnvOrDefault("REDIS_PREFIX", "shorts"),

			SeenFilter:     strings.ToLower(getEnvOrDefault("SEED_DEDUP", "set")),
			BloomCapacity:  getEnvInt("BLOOM_CAPACITY", 100000),
			BloomErrorRate: getEnvFloat("BLOOM_ERROR_RATE", 0.001),
			BloomTTL:       getEnvDuration("BLOOM_TTL", 30*24*time.Hour),
		},
		Kafka: KafkaSettings{
			Brokers:      splitList(getEnvOrDefault("KAFKA_BOOTSTRAP_SERVERS", "localhost:9092")),
			TriggerTopic: getEnvOrDefault("KAFKA_TOPIC_RUN_REQUESTS", "shorts-run-requests"),
			ResultTopic:  getEnvOrDefault("KAFKA_TOPIC_RUN_RESULTS", "shorts-run-results"),
			GroupID:      getEnvOrDefault("KAFKA_CONSUMER_GROUP_ID", "shortsbot"),
		},
		S3: S3Settings{
			Bucket:       os.Getenv("S3_BUCKET"),
			Region:       os.Getenv("S3_REGION"),
			Profile:      os.Getenv("S3_PROFILE"),
			Prefix:       getEnvOrDefault("S3_PREFIX", "shorts"),
			UsePathStyle: getEnvBool("S3_USE_PATH_STYLE", false),
		},
		Server: ServerSettings{
			Port:     getEnvOrDefault("PORT", "8080"),
			Schedule: os.Getenv("RUN_SCHEDULE"),
		},
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate rejects unusable configurations with a configuration StageError
func (s *Settings) Validate() error {
	var problems []string

	switch s.Backends.Text {
	case TextOllama:
		if s.Ollama.Host == "" || s.Ollama.Model == "" {
			problems = append(problems, "ollama host and model are required")
		}
	case TextCohere:
		if s.Cohere.APIKey == "" {
			problems = append(problems, "COHERE_API_KEY is required for the cohere text engine")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown TEXT_ENGINE %q", s.Backends.Text))
	}

	switch s.Backends.Voice {
	case VoiceEdge:
	case VoiceCommand:
		if s.Media.TTSCommand == "" {
			problems = append(problems, "TTS_COMMAND is required for the command tts engine")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown TTS_ENGINE %q", s.Backends.Voice))
	}

	switch s.Backends.Image {
	case ImageSDXL, ImagePollinations:
	default:
		problems = append(problems, fmt.Sprintf("unknown IMAGE_ENGINE %q", s.Backends.Image))
	}

	switch s.Backends.Queue {
	case QueueSheets:
		if s.Google.SheetURL == "" {
			problems = append(problems, "SHEET_URL is required for the sheets topic queue")
		}
	case QueueRedis:
		if s.Redis.Addr == "" {
			problems = append(problems, "REDIS_ADDR is required for the redis topic queue")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown TOPIC_QUEUE %q", s.Backends.Queue))
	}

	switch s.Backends.Storage {
	case StorageNone:
	case StorageDrive:
		if s.Google.DriveFolderID == "" {
			problems = append(problems, "DRIVE_FOLDER_ID is required for drive storage")
		}
	case StorageS3:
		if s.S3.Bucket == "" {
			problems = append(problems, "S3_BUCKET is required for s3 storage")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown STORAGE_BACKEND %q", s.Backends.Storage))
	}

	switch s.Redis.SeenFilter {
	case "set":
	case "bloom":
		if s.Redis.BloomCapacity < 1 || s.Redis.BloomErrorRate <= 0 || s.Redis.BloomErrorRate >= 1 {
			problems = append(problems, "bloom filter needs BLOOM_CAPACITY >= 1 and 0 < BLOOM_ERROR_RATE < 1")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown SEED_DEDUP %q (want set or bloom)", s.Redis.SeenFilter))
	}

	for _, n := range s.Backends.Notifiers {
		switch n {
		case NotifyTelegram, NotifyKafka:
		default:
			problems = append(problems, fmt.Sprintf("unknown notifier %q", n))
		}
	}

	if s.Pipeline.MinWords < 1 || s.Pipeline.MaxWords < s.Pipeline.MinWords {
		problems = append(problems, fmt.Sprintf("invalid script word range [%d, %d]", s.Pipeline.MinWords, s.Pipeline.MaxWords))
	}
	if s.Pipeline.ImagePromptCount < 1 {
		problems = append(problems, "IMAGE_PROMPT_COUNT must be at least 1")
	}
	if s.Pipeline.VoiceTimeout <= 0 {
		problems = append(problems, "VOICE_TIMEOUT must be positive")
	}
	if s.Pipeline.MaxRetries < 1 {
		problems = append(problems, "MAX_RETRIES must be at least 1")
	}
	if s.Video.Width <= 0 || s.Video.Height <= 0 || s.Video.FPS <= 0 {
		problems = append(problems, "video width, height and fps must be positive")
	}
	if !validWhisperModel(s.Media.WhisperModel) {
		problems = append(problems, fmt.Sprintf("unknown WHISPER_MODEL %q", s.Media.WhisperModel))
	}

	if len(problems) > 0 {
		return types.Stagef(types.StageConfiguration, "invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// TelegramEnabled reports whether both Telegram credentials are present
func (s *Settings) TelegramEnabled() bool {
	return s.Telegram.BotToken != "" && s.Telegram.ChatID != ""
}

// YouTubeEnabled reports whether any YouTube credential flow is configured
func (s *Settings) YouTubeEnabled() bool {
	oauth := s.YouTube.ClientID != "" && s.YouTube.ClientSecret != "" && s.YouTube.RefreshToken != ""
	return oauth || s.YouTube.ServiceAccountFile != ""
}

func validWhisperModel(m string) bool {
	switch m {
	case "tiny", "base", "small", "medium", "large-v3":
		return true
	}
	return false
}

func parseNotifiers(v string) []NotifierBackend {
	var out []NotifierBackend
	for _, part := range splitList(v) {
		out = append(out, NotifierBackend(strings.ToLower(part)))
	}
	return out
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("⚠️  Invalid %s=%q, using default %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		log.Printf("⚠️  Invalid %s=%q, using default %g", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		log.Printf("⚠️  Invalid %s=%q, using default %t", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// Bare numbers are seconds
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
		log.Printf("⚠️  Invalid %s=%q, using default %s", key, value, defaultValue)
	}
	return defaultValue
}
