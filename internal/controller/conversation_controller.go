package controller

import (
	"docubot-be/internal/dto"
	"docubot-be/internal/pkg/serverutils"
	"docubot-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IConversationController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	RegisterLegacyRoutes(r fiber.Router, auth fiber.Handler)
	Start(ctx *fiber.Ctx) error
	End(ctx *fiber.Ctx) error
	Active(ctx *fiber.Ctx) error
}

type conversationController struct {
	service service.IConversationService
}

func NewConversationController(service service.IConversationService) IConversationController {
	return &conversationController{service: service}
}

func (c *conversationController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/conversations")
	h.Use(auth)
	h.Post("start", c.Start)
	h.Post("end", c.End)
	h.Get("active", c.Active)
}

func (c *conversationController) RegisterLegacyRoutes(r fiber.Router, auth fiber.Handler) {
	r.Post("/start-conversation", auth, c.Start)
	r.Post("/end-conversation", auth, c.End)
}

func (c *conversationController) parse(ctx *fiber.Ctx) (*dto.ConversationRequest, error) {
	var req dto.ConversationRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}
	req.UserID = serverutils.ResolveUserID(ctx, req.UserID)

	if err := serverutils.ValidateRequest(req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *conversationController) Start(ctx *fiber.Ctx) error {
	req, err := c.parse(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Start(ctx.UserContext(), req.UserID)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Conversation started", res))
}

func (c *conversationController) End(ctx *fiber.Ctx) error {
	req, err := c.parse(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.End(ctx.UserContext(), req.UserID)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Conversation ended", res))
}

func (c *conversationController) Active(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get active conversations", c.service.Active(ctx.UserContext())))
}
