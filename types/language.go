package types

import (
	"fmt"
	"strings"
)

// Language identifies the spoken language of a generated video
type Language string

const (
	LanguageTamil   Language = "ta"
	LanguageEnglish Language = "en"
	LanguageHindi   Language = "hi"
	// LanguageBoth is a queue-level choice; it is expanded into one pass per language
	LanguageBoth Language = "both"
)

var languageDisplayNames = map[Language]string{
	LanguageTamil:   "Tamil",
	LanguageEnglish: "English",
	LanguageHindi:   "Hindi",
	LanguageBoth:    "Tamil + English",
}

// Edge TTS neural voices per concrete language
var languageVoices = map[Language]string{
	LanguageTamil:   "ta-IN-PallaviNeural",
	LanguageEnglish: "en-US-AriaNeural",
	LanguageHindi:   "hi-IN-SwaraNeural",
}

// ParseLanguage accepts a language code or display name (case-insensitive)
func ParseLanguage(s string) (Language, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for lang, name := range languageDisplayNames {
		if v == string(lang) || v == strings.ToLower(name) {
			return lang, nil
		}
	}
	return "", fmt.Errorf("unknown language %q", s)
}

// DisplayName returns the human readable name of the language
func (l Language) DisplayName() string {
	if name, ok := languageDisplayNames[l]; ok {
		return name
	}
	return string(l)
}

// Voice returns the default narration voice for a concrete language.
// English is used for anything without a dedicated voice.
func (l Language) Voice() string {
	if v, ok := languageVoices[l]; ok {
		return v
	}
	return languageVoices[LanguageEnglish]
}

// Expand returns the concrete languages a run must produce, in pass order
func (l Language) Expand() []Language {
	if l == LanguageBoth {
		return []Language{LanguageEnglish, LanguageTamil}
	}
	return []Language{l}
}

// Valid reports whether l is one of the known languages
func (l Language) Valid() bool {
	_, ok := languageDisplayNames[l]
	return ok
}
