package controller

import (
	"iso-risk-agent-be/internal/dto"
	"iso-risk-agent-be/internal/pkg/serverutils"
	"iso-risk-agent-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAgentController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Chat(ctx *fiber.Ctx) error
	SelectControls(ctx *fiber.Ctx) error
}

type agentController struct {
	service service.IAgentService
}

func NewAgentController(service service.IAgentService) IAgentController {
	return &agentController{service: service}
}

func (c *agentController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/agent/v1")
	h.Use(auth)
	h.Post("chat", c.Chat)
	h.Post("select-controls", c.SelectControls)
}

func (c *agentController) Chat(ctx *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Malformed request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.HandleQuery(ctx.UserContext(), serverutils.UserId(ctx), &req)
	if err != nil {
		return err
	}
	message := "Success answer query"
	if res.AwaitingSelection {
		message = "Awaiting control selection"
	}
	return ctx.JSON(serverutils.SuccessResponse(message, res))
}

func (c *agentController) SelectControls(ctx *fiber.Ctx) error {
	var req dto.SelectControlsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Malformed request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.ResumeWithSelection(ctx.UserContext(), serverutils.UserId(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success save selected controls", res))
}
