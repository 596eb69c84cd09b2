package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"regexp"
	"strings"

	"shortsbot/types"
)

var (
	storyStyles = []string{
		"a modern-day moral tale",
		"a historical fiction",
		"a parable set in a village",
		"a science fiction metaphor",
		"a fantasy story with symbolic characters",
		"an emotional story based on a real-life scenario",
		"a story set in a school or college",
		"a corporate drama with ethical choices",
	}
	storyTones = []string{
		"inspirational and uplifting",
		"emotional and touching",
		"suspenseful and dramatic",
		"subtle and reflective",
		"humorous but meaningful",
	}
	storyCharacters = []string{
		"a curious child and a wise elder",
		"a struggling entrepreneur",
		"a mentor guiding an apprentice",
		"a king learning humility",
		"an AI discovering purpose",
		"a street artist chasing dreams",
		"a monk teaching a traveler",
		"siblings with contrasting beliefs",
	}

	boldPattern    = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicPattern  = regexp.MustCompile(`\*(.+?)\*`)
	jsonPattern    = regexp.MustCompile(`(?s)\{.*\}`)
	numberingRegex = regexp.MustCompile(`^\d+[\.\):\-]\s*`)

	scriptPreambles = []string{"SCRIPT:", "Here is", "Here's", "Sure", "Okay"}
	promptMetaLines = []string{
		"here are", "here is", "sure", "of course", "certainly",
		"based on", "the following", "i'll", "let me", "below are",
	}
)

// Generators implements the script, metadata and image prompt ports on one TextModel
type Generators struct {
	model TextModel
	rng   *rand.Rand
}

// NewGenerators wraps model; seed fixes the style/tone/character draw for tests
func NewGenerators(model TextModel, seed int64) *Generators {
	return &Generators{model: model, rng: rand.New(rand.NewSource(seed))}
}

// GenerateScript writes a spoken motivational story for topic
func (g *Generators) GenerateScript(ctx context.Context, topic string, lang types.Language) (types.Script, error) {
	raw, err := g.model.Generate(ctx, g.scriptPrompt(topic, lang))
	if err != nil {
		return types.Script{}, types.NewStageError(types.StageScript, fmt.Sprintf("failed to generate story: %v", err), err)
	}
	return types.NewScript(cleanScript(raw), lang), nil
}

func (g *Generators) scriptPrompt(topic string, lang types.Language) string {
	style := storyStyles[g.rng.Intn(len(storyStyles))]
	tone := storyTones[g.rng.Intn(len(storyTones))]
	character := storyCharacters[g.rng.Intn(len(storyCharacters))]

	return fmt.Sprintf(`You are a world-class motivational storytelling expert.
Create a SHORT, POWERFUL motivational story for a YouTube Short.

STYLE: Write %s in a %s tone.
CHARACTERS: Feature %s.

RULES:
- Language: %s
- Topic/Inspiration: %s
- Duration: MUST be speakable in 45-55 seconds
- Start with a JAW-DROPPING hook (first sentence = instant attention)
- Use natural dialogues and emotional depth
- Sentences: SHORT. PUNCHY. POWERFUL.
- End with ONE unforgettable takeaway line
- Around 100-130 words
- NO emojis, NO hashtags, NO stage directions, NO speaker labels
- If Tamil: use conversational spoken Tamil, not formal literary Tamil
- Write ONLY the spoken script. NOTHING else.
- End with: 'Subscribe to my YouTube channel, like, share, and comment.'

SCRIPT:`, style, tone, character, lang.DisplayName(), topic)
}

// cleanScript strips model preambles and markdown emphasis
func cleanScript(text string) string {
	text = strings.TrimSpace(text)
	for _, prefix := range scriptPreambles {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimSpace(text[len(prefix):])
			text = strings.TrimSpace(strings.TrimLeft(text, ",:!."))
		}
	}
	text = boldPattern.ReplaceAllString(text, "$1")
	text = italicPattern.ReplaceAllString(text, "$1")
	text = strings.Trim(text, `"'`)
	return strings.TrimSpace(text)
}

type metadataPayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// GenerateMetadata asks for JSON metadata and falls back to a template when the reply is unusable
func (g *Generators) GenerateMetadata(ctx context.Context, topic string, lang types.Language, _ string) (types.VideoMetadata, error) {
	prompt := fmt.Sprintf(`Generate YouTube Shorts metadata for this video.
Topic: %s
Language: %s

Return EXACTLY this JSON format (no other text):
{
  "title": "catchy title under 60 chars",
  "description": "SEO description under 200 chars with hashtags",
  "tags": ["tag1", "tag2", "tag3", "tag4", "tag5"]
}`, topic, lang.DisplayName())

	raw, err := g.model.Generate(ctx, prompt)
	if err != nil {
		return types.VideoMetadata{}, types.NewStageError(types.StageMetadata, fmt.Sprintf("failed to generate metadata: %v", err), err)
	}
	md, err := parseMetadata(raw, topic, lang)
	if err != nil {
		return fallbackMetadata(topic, lang), nil
	}
	return md, nil
}

func parseMetadata(raw, topic string, lang types.Language) (types.VideoMetadata, error) {
	match := jsonPattern.FindString(raw)
	if match == "" {
		return types.VideoMetadata{}, types.ErrMalformedOutput
	}
	var p metadataPayload
	if err := json.Unmarshal([]byte(match), &p); err != nil {
		return types.VideoMetadata{}, fmt.Errorf("%w: %v", types.ErrMalformedOutput, err)
	}
	if p.Title == "" {
		p.Title = fmt.Sprintf("%s | Motivation #Shorts", topic)
	}
	if p.Description == "" {
		p.Description = topic
	}
	if len(p.Tags) == 0 {
		p.Tags = []string{topic, "motivation", "shorts"}
	}
	return types.NewVideoMetadata(p.Title, p.Description, p.Tags, lang), nil
}

func fallbackMetadata(topic string, lang types.Language) types.VideoMetadata {
	return types.NewVideoMetadata(
		fmt.Sprintf("%s | Motivation #Shorts", topic),
		fmt.Sprintf("%s: a motivational story. #shorts #motivation", topic),
		[]string{topic, "motivation", "shorts", strings.ToLower(lang.DisplayName())},
		lang,
	)
}

// DeriveImagePrompts asks for count numbered scene prompts drawn from the script
func (g *Generators) DeriveImagePrompts(ctx context.Context, script string, count int) ([]string, error) {
	if count < 1 {
		count = 1
	}
	prompt := fmt.Sprintf(`Read the following motivational story and identify exactly %[1]d KEY MOMENTS. For each moment, write a vivid image generation prompt.

CRITICAL RULES:
- Each prompt MUST directly depict a specific scene FROM the story
- Describe the CHARACTERS, their ACTIONS, EMOTIONS, and SETTING
- Include specific visual details: facial expressions, body language, environment
- Each scene must be clearly different and progress the story forward
- Keep prompts 15-25 words each
- NO generic descriptions like 'dramatic lighting' or 'cinematic'
- NO text, words, or letters in the images
- Return ONLY the %[1]d prompts, numbered 1-%[1]d

Story:
%[2]s

Image Prompts:`, count, strings.TrimSpace(script))

	raw, err := g.model.Generate(ctx, prompt)
	if err != nil {
		return nil, types.NewStageError(types.StageImagePrompt, fmt.Sprintf("failed to derive image prompts: %v", err), err)
	}
	return parsePrompts(raw, count), nil
}

// parsePrompts keeps numbered prompt lines, pads with the last one and trims to expected
func parsePrompts(raw string, expected int) []string {
	var prompts []string
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		cleaned := strings.TrimSpace(numberingRegex.ReplaceAllString(strings.TrimSpace(line), ""))
		cleaned = strings.Trim(cleaned, `"'`)
		if cleaned == "" || isMetaLine(cleaned) {
			continue
		}
		if len(cleaned) > 10 {
			prompts = append(prompts, cleaned)
		}
	}
	for len(prompts) > 0 && len(prompts) < expected {
		prompts = append(prompts, prompts[len(prompts)-1])
	}
	if len(prompts) > expected {
		prompts = prompts[:expected]
	}
	return prompts
}

func isMetaLine(line string) bool {
	lower := strings.ToLower(line)
	for _, p := range promptMetaLines {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
