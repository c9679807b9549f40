package supportControllers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"helpdesk/lifecycle"
	"helpdesk/middleware"
	"helpdesk/models"
)

type roomTransition func(ctx context.Context, a lifecycle.Actor, roomID uint) (models.ChatRoom, error)

func (h *Handler) roomAction(c *fiber.Ctx, do roomTransition, done, failed string) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	roomID, valid := paramID(c)
	if !valid {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid room id!", nil)
	}

	room, err := do(c.UserContext(), a, roomID)
	if err != nil {
		return respondError(c, err, failed)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, done, room)
}

type ticketTransition func(ctx context.Context, a lifecycle.Actor, ticketID uint) (models.SupportTicket, error)

func (h *Handler) ticketAction(c *fiber.Ctx, do ticketTransition, done, failed string) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	ticketID, valid := paramID(c)
	if !valid {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid ticket id!", nil)
	}

	ticket, err := do(c.UserContext(), a, ticketID)
	if err != nil {
		return respondError(c, err, failed)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, done, ticket)
}
