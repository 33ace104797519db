package controller

import (
	"iso-risk-agent-be/internal/dto"
	"iso-risk-agent-be/internal/pkg/serverutils"
	"iso-risk-agent-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IControlController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	GetAll(ctx *fiber.Ctx) error
	GetByRisk(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
}

type controlController struct {
	service service.IControlService
}

func NewControlController(service service.IControlService) IControlController {
	return &controlController{service: service}
}

func (c *controlController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/control/v1")
	h.Use(auth)
	h.Get("", c.GetAll)
	h.Get("by-risk/:riskId", c.GetByRisk)
	h.Delete(":id", c.Delete)
}

func (c *controlController) GetAll(ctx *fiber.Ctx) error {
	var req dto.ListControlsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Malformed query")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.GetAll(ctx.UserContext(), serverutils.UserId(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get all control", res))
}

func (c *controlController) GetByRisk(ctx *fiber.Ctx) error {
	res, err := c.service.GetByRisk(ctx.UserContext(), serverutils.UserId(ctx), ctx.Params("riskId"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get risk controls", res))
}

func (c *controlController) Delete(ctx *fiber.Ctx) error {
	res, err := c.service.Delete(ctx.UserContext(), serverutils.UserId(ctx), ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success delete control", res))
}
