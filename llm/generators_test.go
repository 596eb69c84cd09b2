package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"shortsbot/types"
)

type fakeModel struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeModel) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func TestGenerateScriptCleansOutput(t *testing.T) {
	m := &fakeModel{reply: "Here's, **Rise** again. The *climb* is yours.\n"}
	g := NewGenerators(m, 1)

	s, err := g.GenerateScript(context.Background(), "resilience", types.LanguageTamil)
	if err != nil {
		t.Fatalf("GenerateScript: %v", err)
	}
	if s.Text != "Rise again. The climb is yours." {
		t.Fatalf("Text = %q", s.Text)
	}
	if s.Language != types.LanguageTamil {
		t.Fatalf("Language = %s", s.Language)
	}
	if !strings.Contains(m.prompts[0], "Language: Tamil") || !strings.Contains(m.prompts[0], "resilience") {
		t.Fatalf("prompt missing topic or language: %q", m.prompts[0])
	}
}

func TestGenerateScriptTagsModelFailure(t *testing.T) {
	g := NewGenerators(&fakeModel{err: errors.New("connection refused")}, 1)
	_, err := g.GenerateScript(context.Background(), "x", types.LanguageEnglish)
	if !types.IsStage(err, types.StageScript) {
		t.Fatalf("err = %v, want script_generation stage", err)
	}
}

func TestGenerateMetadata(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		wantTitle string
		wantTags  int
	}{
		{
			name:      "json with chatter",
			reply:     "Sure!\n{\"title\": \"Rise Again\", \"description\": \"Never quit #shorts\", \"tags\": [\"a\", \"b\"]}\nEnjoy",
			wantTitle: "Rise Again",
			wantTags:  2,
		},
		{
			name:      "missing fields",
			reply:     `{"description": "d"}`,
			wantTitle: "grit | Motivation #Shorts",
			wantTags:  3,
		},
		{
			name:      "not json",
			reply:     "I cannot help with that",
			wantTitle: "grit | Motivation #Shorts",
			wantTags:  4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGenerators(&fakeModel{reply: tt.reply}, 1)
			md, err := g.GenerateMetadata(context.Background(), "grit", types.LanguageEnglish, "script")
			if err != nil {
				t.Fatalf("GenerateMetadata: %v", err)
			}
			if md.Title != tt.wantTitle {
				t.Fatalf("Title = %q, want %q", md.Title, tt.wantTitle)
			}
			if len(md.Tags) != tt.wantTags {
				t.Fatalf("Tags = %v, want %d", md.Tags, tt.wantTags)
			}
		})
	}
}

func TestParsePrompts(t *testing.T) {
	raw := `Here are the prompts:
1. "A young girl climbs a rocky hill at sunrise, determined face"
2) short
3: An old monk smiles as a traveler bows before him in the rain`

	got := parsePrompts(raw, 3)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3: %v", len(got), got)
	}
	if got[0] != "A young girl climbs a rocky hill at sunrise, determined face" {
		t.Fatalf("got[0] = %q", got[0])
	}
	if got[2] != got[1] {
		t.Fatalf("missing prompt should be padded with the last one: %v", got)
	}

	if got := parsePrompts(raw, 1); len(got) != 1 {
		t.Fatalf("trim to count: %v", got)
	}
	if got := parsePrompts("Sure thing", 2); len(got) != 0 {
		t.Fatalf("meta-only reply should yield nothing: %v", got)
	}
}

func TestDeriveImagePromptsAsksForCount(t *testing.T) {
	m := &fakeModel{reply: "1. A lighthouse keeper lighting the lamp during a storm"}
	g := NewGenerators(m, 1)

	got, err := g.DeriveImagePrompts(context.Background(), "story", 1)
	if err != nil || len(got) != 1 {
		t.Fatalf("DeriveImagePrompts = %v, %v", got, err)
	}
	if !strings.Contains(m.prompts[0], "exactly 1 KEY MOMENTS") {
		t.Fatalf("prompt = %q", m.prompts[0])
	}
}
