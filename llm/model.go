// Package llm turns a text model into script, metadata and image prompt generators.
package llm

import "context"

// TextModel completes a prompt
type TextModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
