package controller

import (
	"docubot-be/internal/pkg/serverutils"
	"docubot-be/internal/service"
	"docubot-be/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

type IDocumentController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	RegisterLegacyRoutes(r fiber.Router, auth fiber.Handler)
	Upload(ctx *fiber.Ctx) error
	Stats(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
}

type documentController struct {
	service service.IDocumentService
}

func NewDocumentController(service service.IDocumentService) IDocumentController {
	return &documentController{service: service}
}

func (c *documentController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/documents")
	h.Use(auth)
	h.Post("", c.Upload)
	h.Get(":user_id", c.Stats)
	h.Delete(":user_id", c.Delete)
}

func (c *documentController) RegisterLegacyRoutes(r fiber.Router, auth fiber.Handler) {
	r.Post("/process-file", auth, c.Upload)
}

func (c *documentController) Upload(ctx *fiber.Ctx) error {
	userID := serverutils.ResolveUserID(ctx, ctx.FormValue("user_id"))
	if userID == "" {
		return apperror.New(apperror.ErrInvalidInput, "user_id is required")
	}

	header, err := ctx.FormFile("file")
	if err != nil {
		return apperror.New(apperror.ErrInvalidInput, "no file provided")
	}
	file, err := header.Open()
	if err != nil {
		return apperror.Wrap(apperror.ErrInvalidInput, "open upload", err)
	}
	defer file.Close()

	res, err := c.service.Index(ctx.UserContext(), userID, header.Filename, file)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("File processed and indexed", res))
}

func (c *documentController) Stats(ctx *fiber.Ctx) error {
	userID := serverutils.ResolveUserID(ctx, ctx.Params("user_id"))

	res, err := c.service.Stats(ctx.UserContext(), userID)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get store stats", res))
}

func (c *documentController) Delete(ctx *fiber.Ctx) error {
	userID := serverutils.ResolveUserID(ctx, ctx.Params("user_id"))

	if err := c.service.Delete(ctx.UserContext(), userID); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Store deleted", nil))
}
