// Package queue holds the topic sources the orchestrator claims work from.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"shortsbot/types"
)

// BatchItem is one entry of a batch file
type BatchItem struct {
	Topic    string `json:"topic"`
	Language string `json:"language"`
}

// LoadBatchFile reads a JSON array of batch items
func LoadBatchFile(path string) ([]BatchItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	var items []BatchItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse batch file %s: %w", path, err)
	}
	return items, nil
}

// StaticSource serves a fixed list of topics from memory.
// It backs `run --topic` and `batch`.
type StaticSource struct {
	mu     sync.Mutex
	topics []*types.Topic
	next   int
}

// NewStaticSource builds a source from batch items, skipping blank topics
func NewStaticSource(items []BatchItem) (*StaticSource, error) {
	s := &StaticSource{}
	for i, item := range items {
		lang, err := types.ParseLanguage(item.Language)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		t, err := types.NewTopic(item.Topic, lang, strconv.Itoa(i))
		if err != nil {
			if errors.Is(err, types.ErrEmptyTopic) {
				continue
			}
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		s.topics = append(s.topics, t)
	}
	return s, nil
}

// Single serves exactly one ad-hoc topic
func Single(t *types.Topic) *StaticSource {
	return &StaticSource{topics: []*types.Topic{t}}
}

// ClaimNextPending hands out topics in order; nil once they are exhausted
func (s *StaticSource) ClaimNextPending(ctx context.Context) (*types.Topic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.next < len(s.topics) {
		t := s.topics[s.next]
		s.next++
		if t.Status == types.TopicPending {
			return t, nil
		}
	}
	return nil, nil
}

// PersistStatus is a no-op; the topic pointer already carries its status
func (s *StaticSource) PersistStatus(context.Context, *types.Topic) error {
	return nil
}

// Topics returns the topics in their current state
func (s *StaticSource) Topics() []types.Topic {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Topic, len(s.topics))
	for i, t := range s.topics {
		out[i] = *t
	}
	return out
}
