package queue

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"shortsbot/types"

	"github.com/redis/go-redis/v9"
)

func TestStaticSourceClaimsInOrder(t *testing.T) {
	src, err := NewStaticSource([]BatchItem{
		{Topic: "discipline", Language: "en"},
		{Topic: "   ", Language: "en"},
		{Topic: "patience", Language: "Tamil"},
	})
	if err != nil {
		t.Fatalf("NewStaticSource: %v", err)
	}

	ctx := context.Background()
	first, _ := src.ClaimNextPending(ctx)
	second, _ := src.ClaimNextPending(ctx)
	third, _ := src.ClaimNextPending(ctx)
	if first == nil || first.Text != "discipline" {
		t.Fatalf("first = %+v", first)
	}
	if second == nil || second.Text != "patience" || second.Language != types.LanguageTamil {
		t.Fatalf("second = %+v", second)
	}
	if third != nil {
		t.Fatalf("third = %+v, want nil", third)
	}
}

func TestStaticSourceRejectsUnknownLanguage(t *testing.T) {
	if _, err := NewStaticSource([]BatchItem{{Topic: "x", Language: "klingon"}}); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadBatchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.json")
	body := `[{"topic":"focus","language":"hi"},{"topic":"grit","language":"both"}]`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	items, err := LoadBatchFile(path)
	if err != nil {
		t.Fatalf("LoadBatchFile: %v", err)
	}
	if len(items) != 2 || items[1].Language != "both" {
		t.Fatalf("items = %+v", items)
	}
}

type fakeValues struct {
	rows    [][]any
	updates map[string][]any
	err     error
}

func (f *fakeValues) Get(context.Context, string) ([][]any, error) {
	return f.rows, f.err
}

func (f *fakeValues) Update(_ context.Context, rng string, row []any) error {
	if f.updates == nil {
		f.updates = map[string][]any{}
	}
	f.updates[rng] = row
	return f.err
}

func TestSheetsClaimSkipsNonPendingRows(t *testing.T) {
	values := &fakeValues{rows: [][]any{
		{"done topic", "en", "Done", "https://youtube.com/shorts/a"},
		{"no status", "en"},
		{"bad lang", "fr", "Pending"},
		{"", "en", "Pending"},
		{"courage", "ta", "pending"},
	}}
	src := newSheetsSource(values, "Topics")

	topic, err := src.ClaimNextPending(context.Background())
	if err != nil {
		t.Fatalf("ClaimNextPending: %v", err)
	}
	if topic == nil || topic.Text != "courage" || topic.SourceRef != "6" {
		t.Fatalf("topic = %+v", topic)
	}
}

func TestSheetsClaimNoWork(t *testing.T) {
	src := newSheetsSource(&fakeValues{rows: [][]any{{"a", "en", "Done"}}}, "")
	topic, err := src.ClaimNextPending(context.Background())
	if err != nil || topic != nil {
		t.Fatalf("topic = %+v, err = %v", topic, err)
	}
}

func TestSheetsClaimFailure(t *testing.T) {
	src := newSheetsSource(&fakeValues{err: errors.New("quota")}, "")
	if _, err := src.ClaimNextPending(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestSheetsPersistStatus(t *testing.T) {
	values := &fakeValues{}
	src := newSheetsSource(values, "Topics")
	ctx := context.Background()

	topic := &types.Topic{Text: "x", Status: types.TopicProcessing, SourceRef: "4"}
	if err := src.PersistStatus(ctx, topic); err != nil {
		t.Fatalf("PersistStatus: %v", err)
	}
	if got := values.updates["Topics!C4"]; len(got) != 1 || got[0] != "Processing" {
		t.Fatalf("status update = %v", values.updates)
	}

	topic.Status = types.TopicDone
	topic.VideoURL = "https://youtube.com/shorts/abc"
	if err := src.PersistStatus(ctx, topic); err != nil {
		t.Fatalf("PersistStatus: %v", err)
	}
	if got := values.updates["Topics!C4:D4"]; len(got) != 2 || got[1] != topic.VideoURL {
		t.Fatalf("url update = %v", values.updates)
	}

	if err := src.PersistStatus(ctx, &types.Topic{Text: "y"}); err == nil {
		t.Fatal("expected error for topic without row")
	}
}

func TestSpreadsheetID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"https://docs.google.com/spreadsheets/d/1AbC_d-9/edit#gid=0", "1AbC_d-9", false},
		{"1AbC_d-9", "1AbC_d-9", false},
		{"", "", true},
		{"https://example.com/nothing", "", true},
	}
	for _, tt := range tests {
		got, err := SpreadsheetID(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("SpreadsheetID(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestTopicFromFields(t *testing.T) {
	topic, err := topicFromFields("id1", map[string]string{"text": "hope", "language": "hi", "status": "Pending"})
	if err != nil {
		t.Fatalf("topicFromFields: %v", err)
	}
	if topic.SourceRef != "id1" || topic.Language != types.LanguageHindi {
		t.Fatalf("topic = %+v", topic)
	}

	bad := []map[string]string{
		{},
		{"text": "hope", "language": "xx"},
		{"text": "hope", "language": "en", "status": "Done"},
		{"text": " ", "language": "en"},
	}
	for _, f := range bad {
		if _, err := topicFromFields("id", f); err == nil {
			t.Errorf("topicFromFields(%v) = nil error", f)
		}
	}
}

func TestRedisKeys(t *testing.T) {
	k := redisKeys{prefix: "shorts"}
	if k.pending() != "shorts:topics:pending" || k.topic("a") != "shorts:topic:a" {
		t.Fatalf("keys = %s %s", k.pending(), k.topic("a"))
	}
}

// fakeLists keeps redis lists and hashes in memory
type fakeLists struct {
	lists   map[string][]string
	hashes  map[string]map[string]string
	hgetErr error
}

func (f *fakeLists) LMove(_ context.Context, src, dst, _, _ string) *redis.StringCmd {
	if len(f.lists[src]) == 0 {
		return redis.NewStringResult("", redis.Nil)
	}
	id := f.lists[src][0]
	f.lists[src] = f.lists[src][1:]
	f.lists[dst] = append(f.lists[dst], id)
	return redis.NewStringResult(id, nil)
}

func (f *fakeLists) HGetAll(_ context.Context, key string) *redis.MapStringStringCmd {
	if f.hgetErr != nil {
		return redis.NewMapStringStringResult(nil, f.hgetErr)
	}
	return redis.NewMapStringStringResult(f.hashes[key], nil)
}

func (f *fakeLists) LRem(_ context.Context, key string, _ int64, value interface{}) *redis.IntCmd {
	kept := f.lists[key][:0]
	removed := int64(0)
	for _, v := range f.lists[key] {
		if removed == 0 && v == value {
			removed++
			continue
		}
		kept = append(kept, v)
	}
	f.lists[key] = kept
	return redis.NewIntResult(removed, nil)
}

func (f *fakeLists) LPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	for _, v := range values {
		f.lists[key] = append([]string{v.(string)}, f.lists[key]...)
	}
	return redis.NewIntResult(int64(len(f.lists[key])), nil)
}

func TestClaimNextRequeuesWhenLoadFails(t *testing.T) {
	keys := redisKeys{prefix: "shorts"}
	store := &fakeLists{
		lists:   map[string][]string{keys.pending(): {"a", "b"}},
		hgetErr: errors.New("connection reset"),
	}

	if _, err := claimNext(context.Background(), store, keys); err == nil {
		t.Fatal("expected load error")
	}
	if got := store.lists[keys.pending()]; len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("pending = %v, want [a b]", got)
	}
	if got := store.lists[keys.processing()]; len(got) != 0 {
		t.Fatalf("processing = %v, want empty", got)
	}
}

func TestClaimNextSkipsInvalidEntries(t *testing.T) {
	keys := redisKeys{prefix: "shorts"}
	store := &fakeLists{
		lists: map[string][]string{keys.pending(): {"gone", "ok"}},
		hashes: map[string]map[string]string{
			keys.topic("ok"): {"text": "keep going", "language": "en", "status": "Pending"},
		},
	}

	topic, err := claimNext(context.Background(), store, keys)
	if err != nil {
		t.Fatalf("claimNext: %v", err)
	}
	if topic == nil || topic.SourceRef != "ok" {
		t.Fatalf("topic = %+v, want ok", topic)
	}
	if got := store.lists[keys.processing()]; len(got) != 1 || got[0] != "ok" {
		t.Fatalf("processing = %v, want [ok]", got)
	}

	topic, err = claimNext(context.Background(), store, keys)
	if err != nil || topic != nil {
		t.Fatalf("empty queue: topic=%v err=%v", topic, err)
	}
}

type fakeFeed struct{ titles []string }

func (f fakeFeed) Titles(context.Context, string, int) ([]string, error) { return f.titles, nil }

type fakeSink struct {
	seen   map[string]bool
	queued []string
}

func (f *fakeSink) Enqueue(_ context.Context, text string, _ types.Language) (string, error) {
	f.queued = append(f.queued, text)
	return "id", nil
}

func (f *fakeSink) MarkSeen(_ context.Context, hash string) (bool, error) {
	if f.seen[hash] {
		return false, nil
	}
	f.seen[hash] = true
	return true, nil
}

func TestSeederSkipsDuplicates(t *testing.T) {
	sink := &fakeSink{seen: map[string]bool{TitleHash("Old News"): true}}
	s := &Seeder{
		Feeds: fakeFeed{titles: []string{"Never  Give Up", "never give up", "old news", "Start Today"}},
		Sink:  sink,
	}

	report, err := s.Seed(context.Background(), "https://example.com/feed", types.LanguageEnglish, 10)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if report.Fetched != 4 || report.Queued != 2 || report.Duplicates != 2 {
		t.Fatalf("report = %+v", report)
	}
	if sink.queued[0] != "Never  Give Up" || sink.queued[1] != "Start Today" {
		t.Fatalf("queued = %v", sink.queued)
	}
}

type fakeSeen struct{ hashes map[string]bool }

func (f *fakeSeen) MarkSeen(_ context.Context, hash string) (bool, error) {
	if f.hashes[hash] {
		return false, nil
	}
	f.hashes[hash] = true
	return true, nil
}

func TestSeederUsesSeenOverride(t *testing.T) {
	sink := &fakeSink{seen: map[string]bool{}}
	seen := &fakeSeen{hashes: map[string]bool{TitleHash("Keep Going"): true}}
	s := &Seeder{
		Feeds: fakeFeed{titles: []string{"Keep Going", "Rest Is Work"}},
		Sink:  sink,
		Seen:  seen,
	}

	report, err := s.Seed(context.Background(), "https://example.com/feed", types.LanguageTamil, 0)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if report.Queued != 1 || report.Duplicates != 1 {
		t.Fatalf("report = %+v", report)
	}
	if len(sink.seen) != 0 {
		t.Fatalf("sink seen set should be bypassed, got %v", sink.seen)
	}
}

func TestBloomBool(t *testing.T) {
	tests := []struct {
		name    string
		reply   any
		want    bool
		wantErr bool
	}{
		{"resp2 added", int64(1), true, false},
		{"resp2 present", int64(0), false, false},
		{"resp3 added", true, true, false},
		{"resp3 present", false, false, false},
		{"string", "1", true, false},
		{"unexpected", []any{}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := bloomBool(tt.reply)
			if (err != nil) != tt.wantErr {
				t.Fatalf("bloomBool(%v) err = %v, wantErr %v", tt.reply, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("bloomBool(%v) = %v, want %v", tt.reply, got, tt.want)
			}
		})
	}
}
