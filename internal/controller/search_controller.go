package controller

import (
	"iso-risk-agent-be/internal/dto"
	"iso-risk-agent-be/internal/pkg/serverutils"
	"iso-risk-agent-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ISearchController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Context(ctx *fiber.Ctx) error
}

type searchController struct {
	service service.IAgentService
}

func NewSearchController(service service.IAgentService) ISearchController {
	return &searchController{service: service}
}

func (c *searchController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/search/v1")
	h.Use(auth)
	h.Post("context", c.Context)
}

func (c *searchController) Context(ctx *fiber.Ctx) error {
	var req dto.ContextSearchRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Malformed request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.RetrieveContext(ctx.UserContext(), serverutils.UserId(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success retrieve context", res))
}
