package workflow

import (
	"context"
	"errors"

	"decor-ai-be/internal/constant"
	"decor-ai-be/pkg/capability"
)

var (
	ErrInvalidTransition = errors.New("operation not allowed in the current step")
	ErrOptionNotFound    = errors.New("design option not found")
	ErrEmptyImage        = errors.New("uploaded image is empty")
	ErrUnsupportedImage  = errors.New("uploaded file is not an image")
	ErrEmptyInstruction  = errors.New("edit instruction is empty")
	ErrPaletteNotFound   = errors.New("palette not found")
	// ErrStaleResult is returned when a remote result arrives after the
	// workflow was restarted or given a new image. The result is dropped.
	ErrStaleResult = errors.New("result discarded, workflow has moved on")
)

// userMessage turns a remote failure into the banner text shown to the user.
func userMessage(err error, fallback string) string {
	switch {
	case errors.Is(err, capability.ErrParseFailure):
		return constant.ErrMessageParse
	case errors.Is(err, capability.ErrGenerationFailure):
		return constant.ErrMessageGeneration
	case errors.Is(err, capability.ErrEditFailure):
		return constant.ErrMessageEdit
	case errors.Is(err, capability.ErrServiceFailure), errors.Is(err, context.DeadlineExceeded):
		return constant.ErrMessageService
	case fallback != "":
		return fallback
	}
	return constant.ErrMessageUnknown
}
