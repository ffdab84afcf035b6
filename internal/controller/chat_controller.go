package controller

import (
	"decor-ai-be/internal/dto"
	"decor-ai-be/internal/pkg/serverutils"
	"decor-ai-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Show(ctx *fiber.Ctx) error
	Send(ctx *fiber.Ctx) error
	Dispose(ctx *fiber.Ctx) error
}

type chatController struct {
	service service.IChatService
}

func NewChatController(service service.IChatService) IChatController {
	return &chatController{service: service}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Get(":id", c.Show)
	h.Post(":id", c.Send)
	h.Delete(":id", c.Dispose)
}

func (c *chatController) Show(ctx *fiber.Ctx) error {
	res, err := c.service.Transcript(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return toAppError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get transcript", res))
}

func (c *chatController) Send(ctx *fiber.Ctx) error {
	var req dto.SendChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewBadRequestError("Invalid request body", err)
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Send(ctx.UserContext(), ctx.Params("id"), &req)
	if err != nil {
		return toAppError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success send message", res))
}

func (c *chatController) Dispose(ctx *fiber.Ctx) error {
	res, err := c.service.Dispose(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return toAppError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success reset chat", res))
}
