package types

import (
	"fmt"
	"strings"
)

// TopicStatus is the lifecycle state of a queued topic
type TopicStatus string

const (
	TopicPending    TopicStatus = "Pending"
	TopicProcessing TopicStatus = "Processing"
	TopicDone       TopicStatus = "Done"
	TopicFailed     TopicStatus = "Failed"
)

// Terminal reports whether no further transition is allowed
func (s TopicStatus) Terminal() bool {
	return s == TopicDone || s == TopicFailed
}

// ParseTopicStatus maps a stored status string back to a TopicStatus
func ParseTopicStatus(s string) (TopicStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pending":
		return TopicPending, nil
	case "processing":
		return TopicProcessing, nil
	case "done":
		return TopicDone, nil
	case "failed":
		return TopicFailed, nil
	}
	return "", fmt.Errorf("unknown topic status %q", s)
}

// Topic is a single unit of work pulled from the topic queue
type Topic struct {
	Text     string      `json:"text"`
	Language Language    `json:"language"`
	Status   TopicStatus `json:"status"`
	// SourceRef locates the topic in its queue (sheet row, redis id, batch index)
	SourceRef string `json:"source_ref"`
	// VideoURL is written back alongside the terminal status when an upload happened
	VideoURL string `json:"video_url,omitempty"`
}

// NewTopic builds a pending topic, rejecting empty or whitespace-only text
func NewTopic(text string, lang Language, ref string) (*Topic, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyTopic
	}
	if !lang.Valid() {
		return nil, fmt.Errorf("topic %q: unknown language %q", text, lang)
	}
	return &Topic{
		Text:      text,
		Language:  lang,
		Status:    TopicPending,
		SourceRef: ref,
	}, nil
}

// MarkProcessing moves a pending topic into processing
func (t *Topic) MarkProcessing() error {
	return t.transition(TopicPending, TopicProcessing)
}

// MarkDone moves a processing topic into its successful terminal state
func (t *Topic) MarkDone() error {
	return t.transition(TopicProcessing, TopicDone)
}

// MarkFailed moves a processing topic into its failed terminal state
func (t *Topic) MarkFailed() error {
	return t.transition(TopicProcessing, TopicFailed)
}

func (t *Topic) transition(from, to TopicStatus) error {
	if t.Status != from {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}
	t.Status = to
	return nil
}
