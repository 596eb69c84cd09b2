package kafka

import (
	"context"
	"errors"
	"testing"

	"shortsbot/pipeline"
	"shortsbot/types"
)

type ping struct {
	ID string `json:"id"`
}

func TestTypedMessageHandler(t *testing.T) {
	var processed []string
	h := &TypedMessageHandler[ping]{
		Validate: func(p *ping) bool { return p.ID != "" },
		Process: func(_ context.Context, p *ping) error {
			if p.ID == "boom" {
				return errors.New("boom")
			}
			processed = append(processed, p.ID)
			return nil
		},
	}

	tests := []struct {
		name       string
		body       string
		alwaysMark bool
		wantMark   bool
		wantErr    bool
	}{
		{"valid", `{"id":"a"}`, false, true, false},
		{"bad json kept for retry", `{`, false, false, false},
		{"bad json dropped", `{`, true, true, false},
		{"invalid dropped", `{}`, true, true, false},
		{"process error never marked", `{"id":"boom"}`, true, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.AlwaysMark = tt.alwaysMark
			mark, err := h.HandleMessage(context.Background(), []byte(tt.body))
			if mark != tt.wantMark || (err != nil) != tt.wantErr {
				t.Fatalf("mark = %v, err = %v", mark, err)
			}
		})
	}
	if len(processed) != 1 || processed[0] != "a" {
		t.Fatalf("processed = %v", processed)
	}
}

type fakeRunner struct {
	modes  []pipeline.Mode
	topics []*types.Topic
	result *types.RunResult
	err    error
}

func (f *fakeRunner) Run(_ context.Context, mode pipeline.Mode, topic *types.Topic) (*types.RunResult, error) {
	f.modes = append(f.modes, mode)
	f.topics = append(f.topics, topic)
	return f.result, f.err
}

func TestRunHandler(t *testing.T) {
	r := &fakeRunner{result: &types.RunResult{RunID: "r1", Success: true}}
	h := NewRunHandler(r)
	ctx := context.Background()

	if mark, err := h.HandleMessage(ctx, []byte(`{"mode":"test"}`)); !mark || err != nil {
		t.Fatalf("mark = %v, err = %v", mark, err)
	}
	if r.modes[0] != pipeline.ModeTest || r.topics[0] != nil {
		t.Fatalf("mode = %s, topic = %v", r.modes[0], r.topics[0])
	}

	if mark, _ := h.HandleMessage(ctx, []byte(`{"topic":"grit","language":"ta"}`)); !mark {
		t.Fatal("ad-hoc request should be marked")
	}
	if got := r.topics[1]; got == nil || got.Text != "grit" || got.Language != types.LanguageTamil {
		t.Fatalf("topic = %+v", got)
	}

	if mark, _ := h.HandleMessage(ctx, []byte(`{"mode":"turbo"}`)); !mark || len(r.modes) != 2 {
		t.Fatal("unknown mode should be dropped without running")
	}
	if mark, _ := h.HandleMessage(ctx, []byte(`{"topic":"x","language":"fr"}`)); !mark || len(r.modes) != 2 {
		t.Fatal("unknown language should be dropped without running")
	}
}

func TestRunHandlerRedeliversOnRunError(t *testing.T) {
	h := NewRunHandler(&fakeRunner{err: errors.New("run in progress")})
	mark, err := h.HandleMessage(context.Background(), []byte(`{}`))
	if mark || err == nil {
		t.Fatalf("mark = %v, err = %v", mark, err)
	}
}
