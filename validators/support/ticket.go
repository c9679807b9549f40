package supportValidators

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"helpdesk/middleware"
	"helpdesk/validators"
)

const (
	ValidatedCreateTicket = "validatedCreateTicket"
	ValidatedTicketMsg    = "validatedTicketMessage"
	ValidatedTicketStatus = "validatedTicketStatus"
	ValidatedTicketList   = "validatedTicketList"
)

type CreateTicketRequest struct {
	Name     string                 `json:"name" validate:"omitempty,max=120"`
	Email    string                 `json:"email" validate:"omitempty,email,max=255"`
	Subject  string                 `json:"subject" validate:"required,min=3,max=200,excludesall=<>{}"`
	Message  string                 `json:"message" validate:"required,max=4000"`
	Priority string                 `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Category string                 `json:"category" validate:"omitempty,oneof=general order payment shipping returns technical"`
	Metadata map[string]interface{} `json:"metadata"`
}

// GuestTicketRequest is CreateTicketRequest with mandatory contact details.
type GuestTicketRequest struct {
	Name     string                 `json:"name" validate:"required,max=120"`
	Email    string                 `json:"email" validate:"required,email,max=255"`
	Subject  string                 `json:"subject" validate:"required,min=3,max=200,excludesall=<>{}"`
	Message  string                 `json:"message" validate:"required,max=4000"`
	Priority string                 `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Category string                 `json:"category" validate:"omitempty,oneof=general order payment shipping returns technical"`
	Metadata map[string]interface{} `json:"metadata"`
}

type TicketMessageRequest struct {
	Message        string `json:"message" validate:"required,max=4000"`
	SenderType     string `json:"sender_type" validate:"required,oneof=customer agent"`
	IsInternalNote bool   `json:"is_internal_note"`
}

type TicketStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=open in_progress waiting_customer resolved closed"`
}

type TicketListRequest struct {
	Page     int    `query:"page" validate:"omitempty,min=1"`
	Limit    int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Status   string `query:"status" validate:"omitempty,oneof=open in_progress waiting_customer resolved closed"`
	Priority string `query:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Category string `query:"category" validate:"omitempty,oneof=general order payment shipping returns technical"`
	Assigned string `query:"assigned" validate:"omitempty,oneof=me"`
}

func CreateTicket() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(CreateTicketRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}
		normalizeTicket(&reqData.Name, &reqData.Email, &reqData.Subject, &reqData.Message, &reqData.Priority, &reqData.Category)

		if err := validators.GetValidator().Struct(reqData); err != nil {
			return middleware.ValidationErrorResponse(c, validators.Errors(err))
		}

		c.Locals(ValidatedCreateTicket, reqData)
		return c.Next()
	}
}

func GuestTicket() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(GuestTicketRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}
		normalizeTicket(&reqData.Name, &reqData.Email, &reqData.Subject, &reqData.Message, &reqData.Priority, &reqData.Category)

		if err := validators.GetValidator().Struct(reqData); err != nil {
			return middleware.ValidationErrorResponse(c, validators.Errors(err))
		}

		// the controller handles both shapes the same way
		c.Locals(ValidatedCreateTicket, &CreateTicketRequest{
			Name:     reqData.Name,
			Email:    reqData.Email,
			Subject:  reqData.Subject,
			Message:  reqData.Message,
			Priority: reqData.Priority,
			Category: reqData.Category,
			Metadata: reqData.Metadata,
		})
		return c.Next()
	}
}

func TicketMessage() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(TicketMessageRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}
		reqData.Message = strings.TrimSpace(reqData.Message)
		reqData.SenderType = strings.ToLower(strings.TrimSpace(reqData.SenderType))

		errs := map[string]string{}
		if err := validators.GetValidator().Struct(reqData); err != nil {
			errs = validators.Errors(err)
		}
		if reqData.IsInternalNote && reqData.SenderType == "customer" {
			errs["is_internal_note"] = "Only agents can write internal notes!"
		}
		if len(errs) > 0 {
			return middleware.ValidationErrorResponse(c, errs)
		}

		c.Locals(ValidatedTicketMsg, reqData)
		return c.Next()
	}
}

func TicketStatus() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(TicketStatusRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}
		reqData.Status = strings.ToLower(strings.TrimSpace(reqData.Status))

		if err := validators.GetValidator().Struct(reqData); err != nil {
			return middleware.ValidationErrorResponse(c, validators.Errors(err))
		}

		c.Locals(ValidatedTicketStatus, reqData)
		return c.Next()
	}
}

func TicketList() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(TicketListRequest)
		if err := c.QueryParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid query parameters!", nil)
		}
		reqData.Status = strings.ToLower(reqData.Status)
		reqData.Priority = strings.ToLower(reqData.Priority)
		reqData.Category = strings.ToLower(reqData.Category)

		if err := validators.GetValidator().Struct(reqData); err != nil {
			return middleware.ValidationErrorResponse(c, validators.Errors(err))
		}

		c.Locals(ValidatedTicketList, reqData)
		return c.Next()
	}
}

func normalizeTicket(name, email, subject, message, priority, category *string) {
	*name = strings.TrimSpace(*name)
	*email = strings.ToLower(strings.TrimSpace(*email))
	*subject = strings.TrimSpace(*subject)
	*message = strings.TrimSpace(*message)
	*priority = strings.ToLower(strings.TrimSpace(*priority))
	*category = strings.ToLower(strings.TrimSpace(*category))
}
