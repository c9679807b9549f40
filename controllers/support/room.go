package supportControllers

import (
	"github.com/gofiber/fiber/v2"

	"helpdesk/middleware"
	"helpdesk/services"
	validator "helpdesk/validators/support"
)

func (h *Handler) InitiateRoom(c *fiber.Ctx) error {
	customer, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	reqData, ok := c.Locals(validator.ValidatedCreateRoom).(*validator.CreateRoomRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	room, outcome, err := h.rooms.Initiate(c.UserContext(), customer, reqData.Priority)
	if err != nil {
		return respondError(c, err, "Failed to start chat session!")
	}

	status := fiber.StatusOK
	message := "Chat session already open!"
	switch outcome {
	case services.RoomCreated:
		status, message = fiber.StatusCreated, "Chat session started!"
	case services.RoomReactivated:
		message = "Chat session reopened!"
	}
	return middleware.JsonResponse(c, status, true, message, fiber.Map{"room": room, "outcome": outcome})
}

func (h *Handler) CurrentRoom(c *fiber.Ctx) error {
	customer, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	room, err := h.rooms.CurrentRoom(c.UserContext(), customer)
	if err != nil {
		return respondError(c, err, "Failed to fetch chat session!")
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Chat session fetched!", room)
}

func (h *Handler) ListRooms(c *fiber.Ctx) error {
	reqData, ok := c.Locals(validator.ValidatedRoomList).(*validator.RoomListRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	rooms, pagination, err := h.rooms.List(c.UserContext(), services.RoomFilter{
		Status: reqData.Status,
		Page:   services.Page{Page: reqData.Page, Limit: reqData.Limit},
	})
	if err != nil {
		return respondError(c, err, "Failed to fetch chat sessions!")
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Chat sessions fetched!", fiber.Map{
		"rooms":      rooms,
		"pagination": pagination,
	})
}

func (h *Handler) RoomMessages(c *fiber.Ctx) error {
	viewer, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	roomID, ok := paramID(c)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid room id!", nil)
	}

	messages, err := h.rooms.Messages(c.UserContext(), viewer, roomID)
	if err != nil {
		return respondError(c, err, "Failed to fetch messages!")
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Messages fetched!", messages)
}

func (h *Handler) PostRoomMessage(c *fiber.Ctx) error {
	sender, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	roomID, ok := paramID(c)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid room id!", nil)
	}
	reqData, ok := c.Locals(validator.ValidatedRoomMessage).(*validator.RoomMessageRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	msg, err := h.rooms.PostMessage(c.UserContext(), sender, roomID, reqData.SenderType, reqData.Message)
	if err != nil {
		return respondError(c, err, "Failed to send message!")
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Message sent!", msg)
}

func (h *Handler) ClaimRoom(c *fiber.Ctx) error {
	return h.roomAction(c, h.rooms.Claim, "Chat session claimed!", "Failed to claim chat session!")
}

func (h *Handler) CloseRoom(c *fiber.Ctx) error {
	return h.roomAction(c, h.rooms.AgentClose, "Chat session closed!", "Failed to close chat session!")
}

func (h *Handler) EndRoom(c *fiber.Ctx) error {
	return h.roomAction(c, h.rooms.CustomerEnd, "Chat session ended!", "Failed to end chat session!")
}

func (h *Handler) DisconnectRoom(c *fiber.Ctx) error {
	return h.roomAction(c, h.rooms.Disconnect, "Disconnected!", "Failed to disconnect!")
}
