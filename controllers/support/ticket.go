package supportControllers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"helpdesk/lifecycle"
	"helpdesk/middleware"
	"helpdesk/models"
	"helpdesk/services"
	validator "helpdesk/validators/support"
)

func newTicket(req *validator.CreateTicketRequest) services.NewTicket {
	return services.NewTicket{
		Name:     req.Name,
		Email:    req.Email,
		Subject:  req.Subject,
		Message:  req.Message,
		Priority: req.Priority,
		Category: req.Category,
		Metadata: req.Metadata,
	}
}

func (h *Handler) CreateTicket(c *fiber.Ctx) error {
	customer, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	reqData, ok := c.Locals(validator.ValidatedCreateTicket).(*validator.CreateTicketRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	ticket, err := h.tickets.Create(c.UserContext(), &customer, newTicket(reqData))
	if err != nil {
		return respondError(c, err, "Failed to create support ticket!")
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Support ticket created successfully!", ticket)
}

// CreateGuestTicket accepts tickets from visitors without an account.
func (h *Handler) CreateGuestTicket(c *fiber.Ctx) error {
	reqData, ok := c.Locals(validator.ValidatedCreateTicket).(*validator.CreateTicketRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	ticket, err := h.tickets.Create(c.UserContext(), nil, newTicket(reqData))
	if err != nil {
		return respondError(c, err, "Failed to create support ticket!")
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Support ticket created successfully!", ticket)
}

func (h *Handler) ListTickets(c *fiber.Ctx) error {
	agent, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	reqData, ok := c.Locals(validator.ValidatedTicketList).(*validator.TicketListRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	filter := services.TicketFilter{
		Status:   reqData.Status,
		Priority: reqData.Priority,
		Category: reqData.Category,
		Page:     services.Page{Page: reqData.Page, Limit: reqData.Limit},
	}
	if reqData.Assigned == "me" {
		filter.AgentID = &agent.ID
	}

	tickets, pagination, err := h.tickets.List(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err, "Failed to fetch tickets!")
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Tickets fetched successfully!", fiber.Map{
		"tickets":    tickets,
		"pagination": pagination,
	})
}

func (h *Handler) MyTickets(c *fiber.Ctx) error {
	customer, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	reqData, ok := c.Locals(validator.ValidatedTicketList).(*validator.TicketListRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	tickets, pagination, err := h.tickets.Mine(c.UserContext(), customer, services.Page{Page: reqData.Page, Limit: reqData.Limit})
	if err != nil {
		return respondError(c, err, "Failed to fetch tickets!")
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Tickets fetched successfully!", fiber.Map{
		"tickets":    tickets,
		"pagination": pagination,
	})
}

func (h *Handler) TicketMessages(c *fiber.Ctx) error {
	viewer, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	ticketID, ok := paramID(c)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid ticket id!", nil)
	}

	messages, err := h.tickets.Messages(c.UserContext(), viewer, ticketID)
	if err != nil {
		return respondError(c, err, "Failed to fetch messages!")
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Messages fetched!", messages)
}

func (h *Handler) PostTicketMessage(c *fiber.Ctx) error {
	sender, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	ticketID, ok := paramID(c)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid ticket id!", nil)
	}
	reqData, ok := c.Locals(validator.ValidatedTicketMsg).(*validator.TicketMessageRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	msg, err := h.tickets.PostMessage(c.UserContext(), sender, ticketID, reqData.SenderType, reqData.Message, reqData.IsInternalNote)
	if err != nil {
		return respondError(c, err, "Failed to send reply!")
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Reply sent successfully!", msg)
}

func (h *Handler) ClaimTicket(c *fiber.Ctx) error {
	return h.ticketAction(c, h.tickets.Claim, "Ticket claimed!", "Failed to claim ticket!")
}

func (h *Handler) ReopenTicket(c *fiber.Ctx) error {
	return h.ticketAction(c, h.tickets.Reopen, "Ticket reopened!", "Failed to reopen ticket!")
}

func (h *Handler) ChangeTicketStatus(c *fiber.Ctx) error {
	reqData, ok := c.Locals(validator.ValidatedTicketStatus).(*validator.TicketStatusRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}
	change := func(ctx context.Context, agent lifecycle.Actor, id uint) (models.SupportTicket, error) {
		return h.tickets.ChangeStatus(ctx, agent, id, reqData.Status)
	}
	return h.ticketAction(c, change, "Ticket status updated!", "Failed to update ticket status!")
}
