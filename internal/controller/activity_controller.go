package controller

import (
	"iso-risk-agent-be/internal/pkg/serverutils"
	"iso-risk-agent-be/internal/service"
	internalWS "iso-risk-agent-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type IActivityController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Recent(ctx *fiber.Ctx) error
	Stream(ctx *fiber.Ctx) error
}

type activityController struct {
	service service.IActivityService
	hub     *internalWS.Hub
}

// NewActivityController serves the feed. Without a hub the live stream route is not registered.
func NewActivityController(service service.IActivityService, hub *internalWS.Hub) IActivityController {
	return &activityController{service: service, hub: hub}
}

func (c *activityController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/activity/v1")
	h.Use(auth)
	h.Get("", c.Recent)
	if c.hub != nil {
		h.Get("ws", c.Stream)
	}
}

func (c *activityController) Recent(ctx *fiber.Ctx) error {
	limit := ctx.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	res, err := c.service.Recent(ctx.UserContext(), serverutils.UserId(ctx), limit)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get activity", res))
}

// Stream upgrades to a push-only socket carrying new activity entries.
func (c *activityController) Stream(ctx *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}
	userId := serverutils.UserId(ctx)
	return websocket.New(func(conn *websocket.Conn) {
		c.hub.Serve(conn, userId)
	})(ctx)
}
