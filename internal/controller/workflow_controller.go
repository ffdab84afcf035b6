package controller

import (
	"io"

	"decor-ai-be/internal/dto"
	"decor-ai-be/internal/entity"
	"decor-ai-be/internal/pkg/serverutils"
	"decor-ai-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IWorkflowController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	Upload(ctx *fiber.Ctx) error
	Preview(ctx *fiber.Ctx) error
	UpdatePreferences(ctx *fiber.Ctx) error
	Generate(ctx *fiber.Ctx) error
	GeneratePalettes(ctx *fiber.Ctx) error
	SelectPalette(ctx *fiber.Ctx) error
	OpenEditor(ctx *fiber.Ctx) error
	CloseEditor(ctx *fiber.Ctx) error
	ApplyEdit(ctx *fiber.Ctx) error
	OpenPerspective(ctx *fiber.Ctx) error
	ClosePerspective(ctx *fiber.Ctx) error
	ShowPerspective(ctx *fiber.Ctx) error
	SelectPerspective(ctx *fiber.Ctx) error
	RetryPerspective(ctx *fiber.Ctx) error
	Restart(ctx *fiber.Ctx) error
}

type workflowController struct {
	service service.IWorkflowService
}

func NewWorkflowController(service service.IWorkflowService) IWorkflowController {
	return &workflowController{service: service}
}

func (c *workflowController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/workflow/v1")
	h.Post("", c.Create)
	h.Get(":id", c.Show)
	h.Delete(":id", c.Delete)
	h.Post(":id/upload", c.Upload)
	h.Get(":id/preview/:token", c.Preview)
	h.Patch(":id/preferences", c.UpdatePreferences)
	h.Post(":id/generate", c.Generate)
	h.Post(":id/palettes", c.GeneratePalettes)
	h.Post(":id/palettes/:index/select", c.SelectPalette)
	h.Post(":id/editor", c.OpenEditor)
	h.Delete(":id/editor", c.CloseEditor)
	h.Post(":id/editor/apply", c.ApplyEdit)
	h.Post(":id/perspective", c.OpenPerspective)
	h.Delete(":id/perspective", c.ClosePerspective)
	h.Get(":id/perspective/:optionId", c.ShowPerspective)
	h.Put(":id/perspective/:optionId/view", c.SelectPerspective)
	h.Post(":id/perspective/:optionId/retry", c.RetryPerspective)
	h.Post(":id/restart", c.Restart)
}

func (c *workflowController) Create(ctx *fiber.Ctx) error {
	res, err := c.service.CreateWorkspace(ctx.UserContext())
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create workspace", res))
}

func (c *workflowController) Show(ctx *fiber.Ctx) error {
	res, err := c.service.GetState(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return toAppError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get workflow", res))
}

func (c *workflowController) Delete(ctx *fiber.Ctx) error {
	if err := c.service.DeleteWorkspace(ctx.UserContext(), ctx.Params("id")); err != nil {
		return toAppError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete workspace", nil))
}

func (c *workflowController) Upload(ctx *fiber.Ctx) error {
	fileHeader, err := ctx.FormFile("image")
	if err != nil {
		return serverutils.NewBadRequestError("Field 'image' is required", err)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	res, err := c.service.UploadImage(ctx.UserContext(), ctx.Params("id"), data)
	if err != nil {
		return toAppError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success upload image", res))
}

func (c *workflowController) Preview(ctx *fiber.Ctx) error {
	preview, err := c.service.Preview(ctx.UserContext(), ctx.Params("id"), ctx.Params("token"))
	if err != nil {
		return toAppError(err)
	}

	ctx.Set(fiber.HeaderContentType, preview.MimeType)
	ctx.Set(fiber.HeaderCacheControl, "private, max-age=3600")
	return ctx.Send(preview.Data)
}

func (c *workflowController) UpdatePreferences(ctx *fiber.Ctx) error {
	var req dto.UpdatePreferencesRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewBadRequestError("Invalid request body", err)
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.UpdatePreferences(ctx.UserContext(), ctx.Params("id"), &req)
	if err != nil {
		return toAppError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success update preferences", res))
}

func (c *workflowController) Generate(ctx *fiber.Ctx) error {
	res, err := c.service.StartGeneration(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return toAppError(err)
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.AcceptedResponse("Generation started", res))
}

func (c *workflowController) GeneratePalettes(ctx *fiber.Ctx) error {
	res, err := c.service.GeneratePalettes(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return toAppError(err)
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.AcceptedResponse("Palette generation started", res))
}

func (c *workflowController) SelectPalette(ctx *fiber.Ctx) error {
	index, err := ctx.ParamsInt("index")
	if err != nil {
		return serverutils.NewBadRequestError("Palette index must be a number", err)
	}

	res, err := c.service.SelectPalette(ctx.UserContext(), ctx.Params("id"), index)
	if err != nil {
		return toAppError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success select palette", res))
}

func (c *workflowController) OpenEditor(ctx *fiber.Ctx) error {
	var req dto.OptionTargetRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewBadRequestError("Invalid request body", err)
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.OpenEditor(ctx.UserContext(), ctx.Params("id"), req.OptionId)
	if err != nil {
		return toAppError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success open editor", res))
}

func (c *workflowController) CloseEditor(ctx *fiber.Ctx) error {
	res, err := c.service.CloseEditor(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return toAppError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success close editor", res))
}

func (c *workflowController) ApplyEdit(ctx *fiber.Ctx) error {
	var req dto.ApplyEditRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewBadRequestError("Invalid request body", err)
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.ApplyEdit(ctx.UserContext(), ctx.Params("id"), &req)
	if err != nil {
		return toAppError(err)
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.AcceptedResponse("Edit started", res))
}

func (c *workflowController) OpenPerspective(ctx *fiber.Ctx) error {
	var req dto.OptionTargetRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewBadRequestError("Invalid request body", err)
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.OpenPerspective(ctx.UserContext(), ctx.Params("id"), req.OptionId)
	if err != nil {
		return toAppError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success open perspective viewer", res))
}

func (c *workflowController) ClosePerspective(ctx *fiber.Ctx) error {
	res, err := c.service.ClosePerspective(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return toAppError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success close perspective viewer", res))
}

func (c *workflowController) ShowPerspective(ctx *fiber.Ctx) error {
	res, err := c.service.GetPerspective(ctx.UserContext(), ctx.Params("id"), ctx.Params("optionId"))
	if err != nil {
		return toAppError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get perspectives", res))
}

func (c *workflowController) SelectPerspective(ctx *fiber.Ctx) error {
	var req dto.PerspectiveAngleRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewBadRequestError("Invalid request body", err)
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SelectPerspective(ctx.UserContext(), ctx.Params("id"), ctx.Params("optionId"), entity.Angle(req.Angle))
	if err != nil {
		return toAppError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success select perspective", res))
}

func (c *workflowController) RetryPerspective(ctx *fiber.Ctx) error {
	var req dto.PerspectiveAngleRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewBadRequestError("Invalid request body", err)
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.RetryPerspective(ctx.UserContext(), ctx.Params("id"), ctx.Params("optionId"), entity.Angle(req.Angle))
	if err != nil {
		return toAppError(err)
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.AcceptedResponse("Perspective retry started", res))
}

func (c *workflowController) Restart(ctx *fiber.Ctx) error {
	res, err := c.service.Restart(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return toAppError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success restart workflow", res))
}
