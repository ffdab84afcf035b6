package controller

import (
	"errors"
	"strings"

	"decor-ai-be/internal/perspective"
	"decor-ai-be/internal/pkg/serverutils"
	"decor-ai-be/internal/service"
	"decor-ai-be/internal/workflow"
	"decor-ai-be/pkg/capability"

	"github.com/gofiber/fiber/v2"
)

// toAppError gives domain errors their HTTP status. Anything unknown is
// returned unchanged and ends up as a 500.
func toAppError(err error) error {
	switch {
	case errors.Is(err, service.ErrWorkspaceNotFound),
		errors.Is(err, service.ErrPreviewNotFound),
		errors.Is(err, workflow.ErrOptionNotFound),
		errors.Is(err, workflow.ErrPaletteNotFound),
		errors.Is(err, perspective.ErrSetNotFound):
		return serverutils.NewNotFoundError(capitalize(err), err)

	case errors.Is(err, workflow.ErrEmptyImage),
		errors.Is(err, workflow.ErrUnsupportedImage),
		errors.Is(err, workflow.ErrEmptyInstruction),
		errors.Is(err, perspective.ErrInvalidAngle):
		return serverutils.NewBadRequestError(capitalize(err), err)

	case errors.Is(err, workflow.ErrInvalidTransition):
		return serverutils.NewConflictError(capitalize(err), err)

	case errors.Is(err, capability.ErrParseFailure),
		errors.Is(err, capability.ErrGenerationFailure),
		errors.Is(err, capability.ErrEditFailure),
		errors.Is(err, capability.ErrServiceFailure):
		return serverutils.NewAppError(fiber.StatusBadGateway, "Design service failure", err)
	}
	return err
}

func capitalize(err error) string {
	msg := err.Error()
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
