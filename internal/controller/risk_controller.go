package controller

import (
	"iso-risk-agent-be/internal/dto"
	"iso-risk-agent-be/internal/pkg/serverutils"
	"iso-risk-agent-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IRiskController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	GetAll(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Create(ctx *fiber.Ctx) error
	Update(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
}

type riskController struct {
	service service.IRiskService
}

func NewRiskController(service service.IRiskService) IRiskController {
	return &riskController{service: service}
}

func (c *riskController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/risk/v1")
	h.Use(auth)
	h.Get("", c.GetAll)
	h.Post("", c.Create)
	h.Get(":id", c.Show)
	h.Put(":id", c.Update)
	h.Delete(":id", c.Delete)
}

func (c *riskController) GetAll(ctx *fiber.Ctx) error {
	res, err := c.service.GetAll(ctx.UserContext(), serverutils.UserId(ctx), ctx.Query("category"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get all risk", res))
}

func (c *riskController) Show(ctx *fiber.Ctx) error {
	res, err := c.service.Show(ctx.UserContext(), serverutils.UserId(ctx), ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show risk", res))
}

func (c *riskController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateRiskRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Malformed request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Create(ctx.UserContext(), serverutils.UserId(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create risk", res))
}

func (c *riskController) Update(ctx *fiber.Ctx) error {
	var req dto.UpdateRiskRequest
	if err := ctx.BodyParser(&req.CreateRiskRequest); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Malformed request body")
	}
	req.Id = ctx.Params("id")
	if err := serverutils.ValidateRequest(req.CreateRiskRequest); err != nil {
		return err
	}

	res, err := c.service.Update(ctx.UserContext(), serverutils.UserId(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success update risk", res))
}

func (c *riskController) Delete(ctx *fiber.Ctx) error {
	if err := c.service.Delete(ctx.UserContext(), serverutils.UserId(ctx), ctx.Params("id")); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete risk", nil))
}
