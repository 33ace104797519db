package controller

import (
	"iso-risk-agent-be/internal/pkg/serverutils"
	"iso-risk-agent-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IGraphController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Stats(ctx *fiber.Ctx) error
}

type graphController struct {
	service service.IGraphService
}

func NewGraphController(service service.IGraphService) IGraphController {
	return &graphController{service: service}
}

func (c *graphController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/graph/v1")
	h.Use(auth)
	h.Get("stats", c.Stats)
}

func (c *graphController) Stats(ctx *fiber.Ctx) error {
	res, err := c.service.Stats(ctx.UserContext(), serverutils.UserId(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get graph stats", res))
}
