package supportValidators

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"helpdesk/middleware"
	"helpdesk/validators"
)

// Locals keys for validated payloads
const (
	ValidatedCreateRoom  = "validatedCreateRoom"
	ValidatedRoomMessage = "validatedRoomMessage"
	ValidatedRoomList    = "validatedRoomList"
)

type CreateRoomRequest struct {
	Priority string `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
}

type RoomMessageRequest struct {
	Message    string `json:"message" validate:"required,max=4000"`
	SenderType string `json:"sender_type" validate:"required,oneof=customer agent"`
}

type RoomListRequest struct {
	Page   int    `query:"page" validate:"omitempty,min=1"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Status string `query:"status" validate:"omitempty,oneof=waiting active concluded"`
}

func CreateRoom() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(CreateRoomRequest)
		if len(c.Body()) > 0 {
			if err := c.BodyParser(reqData); err != nil {
				return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
			}
		}
		reqData.Priority = strings.ToLower(strings.TrimSpace(reqData.Priority))

		if err := validators.GetValidator().Struct(reqData); err != nil {
			return middleware.ValidationErrorResponse(c, validators.Errors(err))
		}

		c.Locals(ValidatedCreateRoom, reqData)
		return c.Next()
	}
}

func RoomMessage() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(RoomMessageRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}
		reqData.Message = strings.TrimSpace(reqData.Message)
		reqData.SenderType = strings.ToLower(strings.TrimSpace(reqData.SenderType))

		if err := validators.GetValidator().Struct(reqData); err != nil {
			return middleware.ValidationErrorResponse(c, validators.Errors(err))
		}

		c.Locals(ValidatedRoomMessage, reqData)
		return c.Next()
	}
}

func RoomList() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(RoomListRequest)
		if err := c.QueryParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid query parameters!", nil)
		}
		reqData.Status = strings.ToLower(reqData.Status)

		if err := validators.GetValidator().Struct(reqData); err != nil {
			return middleware.ValidationErrorResponse(c, validators.Errors(err))
		}

		c.Locals(ValidatedRoomList, reqData)
		return c.Next()
	}
}
