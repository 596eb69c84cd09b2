package config

import "time"

// Script Constants
const (
	// MinScriptWords is the shortest narration accepted (inclusive)
	MinScriptWords = 30

	// MaxScriptWords is the longest narration accepted (inclusive)
	MaxScriptWords = 200

	// DefaultImagePromptCount is how many scene prompts are derived per pass
	DefaultImagePromptCount = 1
)

// Video Output Constants
const (
	// VideoWidth is the output video width (9:16 aspect ratio)
	VideoWidth = 1080

	// VideoHeight is the output video height (9:16 aspect ratio)
	VideoHeight = 1920

	// VideoFPS is the output frame rate
	VideoFPS = 30

	// MaxVideoDuration is the longest short we publish, in seconds
	MaxVideoDuration = 58.0

	// VideoCodec is the video encoding codec
	VideoCodec = "libx264"

	// AudioCodec is the audio encoding codec
	AudioCodec = "aac"

	// AudioBitrate is the audio quality bitrate
	AudioBitrate = "192k"

	// VideoPreset is the ffmpeg encoding speed preset
	VideoPreset = "fast"
)

// Timeouts
const (
	// DefaultVoiceTimeout bounds the narration join in the parallel window
	DefaultVoiceTimeout = 10 * time.Minute

	// OllamaRequestTimeout matches the slowest local generations we have seen
	OllamaRequestTimeout = 300 * time.Second

	// NotifyTimeout bounds a single notification request
	NotifyTimeout = 10 * time.Second

	// UploadTimeout bounds a single storage backup upload
	UploadTimeout = 5 * time.Minute

	// ProbeTimeout bounds accelerator and media probes
	ProbeTimeout = 5 * time.Second
)

// Output layout
const (
	// OutputDir is the default root for generated files
	OutputDir = "output"

	// ScenesDir holds generated scene images inside a pass directory
	ScenesDir = "scenes"

	VoiceFile     = "voice.mp3"
	AvatarFile    = "avatar.mp4"
	SubtitlesFile = "subtitles.srt"
	FinalFile     = "final_video.mp4"
)

// YouTube Constants
const (
	// YouTubeCategoryID for People & Blogs
	YouTubeCategoryID = "22"

	// YouTubePrivacyStatus sets default video visibility
	YouTubePrivacyStatus = "private"
)
