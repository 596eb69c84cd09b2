package types

import (
	"fmt"
	"strings"
)

// MaxTitleLength is the longest title accepted by the upload channel
const MaxTitleLength = 100

// AssetKind classifies a produced media file
type AssetKind string

const (
	AssetAvatarVideo     AssetKind = "avatar_video"
	AssetBackgroundImage AssetKind = "background_image"
	AssetSceneImage      AssetKind = "scene_image"
	AssetVoiceAudio      AssetKind = "voice_audio"
	AssetSubtitleFile    AssetKind = "subtitle_file"
	AssetComposedVideo   AssetKind = "composed_video"
)

// CompositionMode selects how the final video is laid out
type CompositionMode string

const (
	// CompositionAvatar places the talking head over a single background
	CompositionAvatar CompositionMode = "avatar"
	// CompositionSlideshow cycles scene images with the avatar as an overlay
	CompositionSlideshow CompositionMode = "slideshow"
)

// ParseCompositionMode validates a configured composition mode
func ParseCompositionMode(s string) (CompositionMode, error) {
	switch CompositionMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", CompositionAvatar:
		return CompositionAvatar, nil
	case CompositionSlideshow:
		return CompositionSlideshow, nil
	}
	return "", fmt.Errorf("unknown composition mode %q", s)
}

// Script is the narration text for one language pass
type Script struct {
	Text     string   `json:"text"`
	Language Language `json:"language"`
}

// NewScript trims the generated text
func NewScript(text string, lang Language) Script {
	return Script{Text: strings.TrimSpace(text), Language: lang}
}

// WordCount is derived from the text on every call
func (s Script) WordCount() int {
	return len(strings.Fields(s.Text))
}

// Validate enforces the inclusive word count range [min, max]
func (s Script) Validate(min, max int) error {
	n := s.WordCount()
	if n < min {
		return fmt.Errorf("script too short (%d words, minimum %d)", n, min)
	}
	if n > max {
		return fmt.Errorf("script too long (%d words, maximum %d)", n, max)
	}
	return nil
}

// VideoMetadata is the publishing metadata for one video
type VideoMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Language    Language `json:"language"`
}

// NewVideoMetadata truncates the title to MaxTitleLength characters
func NewVideoMetadata(title, description string, tags []string, lang Language) VideoMetadata {
	title = strings.TrimSpace(title)
	if r := []rune(title); len(r) > MaxTitleLength {
		title = string(r[:MaxTitleLength])
	}
	return VideoMetadata{
		Title:       title,
		Description: strings.TrimSpace(description),
		Tags:        tags,
		Language:    lang,
	}
}

// NarrationAudio is the synthesized voice track of a pass
type NarrationAudio struct {
	Path            string   `json:"path"`
	DurationSeconds float64  `json:"duration_seconds"`
	Language        Language `json:"language"`
	VoiceID         string   `json:"voice_id"`
}

// MediaAsset is any file produced by a stage
type MediaAsset struct {
	Path string    `json:"path"`
	Kind AssetKind `json:"kind"`
	// DurationSeconds is zero for still assets
	DurationSeconds float64 `json:"duration_seconds"`
}
