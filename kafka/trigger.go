package kafka

import (
	"context"
	"log"

	"shortsbot/pipeline"
	"shortsbot/types"
)

// RunRequest asks for one pipeline run
type RunRequest struct {
	// Mode is "full" or "test"; empty means full
	Mode string `json:"mode"`
	// Topic and Language run an ad-hoc topic instead of claiming from the queue
	Topic    string `json:"topic,omitempty"`
	Language string `json:"language,omitempty"`
}

// Runner executes one run request
type Runner interface {
	Run(ctx context.Context, mode pipeline.Mode, topic *types.Topic) (*types.RunResult, error)
}

// NewRunHandler validates run requests and hands them to runner.
// Bad requests are committed and dropped; a claim failure leaves the message for redelivery.
func NewRunHandler(runner Runner) *TypedMessageHandler[RunRequest] {
	return &TypedMessageHandler[RunRequest]{
		AlwaysMark: true,
		Validate: func(req *RunRequest) bool {
			if _, err := pipeline.ParseMode(req.Mode); err != nil {
				log.Printf("⚠️  Dropping run request: %v", err)
				return false
			}
			if req.Topic != "" {
				if _, err := types.ParseLanguage(req.Language); err != nil {
					log.Printf("⚠️  Dropping run request: %v", err)
					return false
				}
			}
			return true
		},
		Process: func(ctx context.Context, req *RunRequest) error {
			mode, _ := pipeline.ParseMode(req.Mode)
			var topic *types.Topic
			if req.Topic != "" {
				lang, _ := types.ParseLanguage(req.Language)
				t, err := types.NewTopic(req.Topic, lang, "kafka")
				if err != nil {
					log.Printf("⚠️  Dropping run request: %v", err)
					return nil
				}
				topic = t
			}

			result, err := runner.Run(ctx, mode, topic)
			if err != nil {
				return err
			}
			switch {
			case result == nil:
				log.Println("📭 Run request found no pending topic")
			case result.Success:
				log.Printf("✅ Run %s finished: %s", result.RunID, result.FirstURL())
			default:
				log.Printf("❌ Run %s failed: %s", result.RunID, result.Error)
			}
			return nil
		},
	}
}
