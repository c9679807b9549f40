package supportControllers

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"helpdesk/lifecycle"
	"helpdesk/middleware"
	"helpdesk/realtime"
	"helpdesk/services"
)

// Handler serves the support endpoints.
type Handler struct {
	rooms     *services.RoomService
	tickets   *services.TicketService
	registry  realtime.Registry
	heartbeat time.Duration
}

func NewHandler(rooms *services.RoomService, tickets *services.TicketService, registry realtime.Registry, heartbeat time.Duration) *Handler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &Handler{rooms: rooms, tickets: tickets, registry: registry, heartbeat: heartbeat}
}

func unauthorized(c *fiber.Ctx) error {
	return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
}

func paramID(c *fiber.Ctx) (uint, bool) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, false
	}
	return uint(id), true
}

// respondError maps service errors onto the HTTP status taxonomy.
func respondError(c *fiber.Ctx, err error, fallback string) error {
	var rejection *lifecycle.Rejection
	reason := fallback
	if errors.As(err, &rejection) {
		reason = rejection.Reason
	}

	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, reason, nil)
	case errors.Is(err, lifecycle.ErrForbidden):
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, reason, nil)
	case errors.Is(err, lifecycle.ErrConflict):
		return middleware.JsonResponse(c, fiber.StatusConflict, false, reason, nil)
	case errors.Is(err, lifecycle.ErrInvalidState):
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, reason, nil)
	}

	log.Printf("[SUPPORT] %s %s: %v", c.Method(), c.Path(), err)
	return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, fallback, nil)
}
