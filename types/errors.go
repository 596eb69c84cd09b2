package types

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyTopic is returned when a topic has no usable text
	ErrEmptyTopic = errors.New("topic text is empty")
	// ErrInvalidTransition is returned for a status change the lifecycle forbids
	ErrInvalidTransition = errors.New("invalid topic status transition")
	// ErrMalformedOutput marks model output that could not be parsed
	ErrMalformedOutput = errors.New("malformed model output")
)

// Stage names the pipeline step an error originated from
type Stage string

const (
	StageConfiguration Stage = "configuration"
	StageTopicFetch    Stage = "topic_fetch"
	StageScript        Stage = "script_generation"
	StageMetadata      Stage = "metadata_generation"
	StageImagePrompt   Stage = "image_prompt"
	StageVoice         Stage = "voice_generation"
	StageAvatar        Stage = "avatar_animation"
	StageSubtitles     Stage = "subtitle_generation"
	StageBackground    Stage = "background_generation"
	StageComposition   Stage = "video_composition"
	StageUpload        Stage = "upload"
	StageNotification  Stage = "notification"
	StageStorage       Stage = "storage"
)

// StageError tags a failure with the stage that produced it
type StageError struct {
	Stage   Stage
	Message string
	Cause   error
}

// NewStageError builds a StageError; cause may be nil
func NewStageError(stage Stage, message string, cause error) *StageError {
	return &StageError{Stage: stage, Message: message, Cause: cause}
}

// Stagef builds a StageError with a formatted message and no cause
func Stagef(stage Stage, format string, args ...any) *StageError {
	return &StageError{Stage: stage, Message: fmt.Sprintf(format, args...)}
}

func (e *StageError) Error() string {
	if e.Message == "" && e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Message
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// WrapStage tags err with stage unless it already carries a StageError for the same stage
func WrapStage(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) && se.Stage == stage {
		return err
	}
	return &StageError{Stage: stage, Message: err.Error(), Cause: err}
}

// StageOf returns the stage tag carried by err, or "" if there is none
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// IsStage reports whether err carries a StageError for stage
func IsStage(err error, stage Stage) bool {
	return StageOf(err) == stage
}
