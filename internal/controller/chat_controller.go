package controller

import (
	"docubot-be/internal/dto"
	"docubot-be/internal/pkg/serverutils"
	"docubot-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Ask(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
	Reset(ctx *fiber.Ctx) error
}

type chatController struct {
	service service.IChatService
}

func NewChatController(service service.IChatService) IChatController {
	return &chatController{service: service}
}

func (c *chatController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/chat")
	h.Use(auth)
	h.Post("", c.Ask)
	h.Get(":user_id/history", c.History)
	h.Delete(":user_id/history", c.Reset)

	r.Post("/ask", auth, c.Ask)
}

func (c *chatController) Ask(ctx *fiber.Ctx) error {
	var req dto.AskRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	req.UserID = serverutils.ResolveUserID(ctx, req.UserID)

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Ask(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success answer question", res))
}

func (c *chatController) History(ctx *fiber.Ctx) error {
	userID := serverutils.ResolveUserID(ctx, ctx.Params("user_id"))

	res, err := c.service.History(ctx.UserContext(), userID)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get chat history", res))
}

func (c *chatController) Reset(ctx *fiber.Ctx) error {
	userID := serverutils.ResolveUserID(ctx, ctx.Params("user_id"))

	if err := c.service.Reset(ctx.UserContext(), userID); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Chat history cleared", nil))
}
