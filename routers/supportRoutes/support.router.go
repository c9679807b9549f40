package supportRoutes

import (
	"github.com/gofiber/fiber/v2"

	"helpdesk/accounts"
	controller "helpdesk/controllers/support"
	"helpdesk/middleware"
	"helpdesk/models"
	validator "helpdesk/validators/support"
)

func SetupSupportRoutes(app *fiber.App, h *controller.Handler, dir accounts.Directory, limiter *middleware.RateLimiter) {
	support := app.Group("/support")

	authed := []fiber.Handler{middleware.JWTMiddleware, middleware.LoadActor(dir)}
	customer := chain(authed, middleware.RequireRole(models.RoleUser))
	staff := chain(authed, middleware.RequireRole(models.RoleAgent, models.RoleAdmin))
	anyone := authed
	limited := middleware.MessageRateLimit(limiter)

	streamAuth := chain([]fiber.Handler{middleware.StreamToken}, authed...)
	support.Get("/stream", chain(streamAuth, h.Stream)...)

	rooms := support.Group("/rooms")
	rooms.Get("/", chain(staff, validator.RoomList(), h.ListRooms)...)
	rooms.Get("/me", chain(customer, h.CurrentRoom)...)
	rooms.Post("/", chain(customer, validator.CreateRoom(), h.InitiateRoom)...)
	rooms.Get("/:id/messages", chain(anyone, h.RoomMessages)...)
	rooms.Post("/:id/messages", chain(anyone, limited, validator.RoomMessage(), h.PostRoomMessage)...)
	rooms.Post("/:id/claim", chain(staff, h.ClaimRoom)...)
	rooms.Post("/:id/close", chain(staff, h.CloseRoom)...)
	rooms.Post("/:id/end", chain(customer, h.EndRoom)...)
	rooms.Post("/:id/disconnect", chain(customer, h.DisconnectRoom)...)

	tickets := support.Group("/tickets")
	tickets.Get("/", chain(staff, validator.TicketList(), h.ListTickets)...)
	tickets.Get("/mine", chain(customer, validator.TicketList(), h.MyTickets)...)
	tickets.Post("/", chain(customer, validator.CreateTicket(), h.CreateTicket)...)
	tickets.Post("/guest", validator.GuestTicket(), h.CreateGuestTicket)
	tickets.Get("/:id/messages", chain(anyone, h.TicketMessages)...)
	tickets.Post("/:id/messages", chain(anyone, limited, validator.TicketMessage(), h.PostTicketMessage)...)
	tickets.Post("/:id/claim", chain(staff, h.ClaimTicket)...)
	tickets.Post("/:id/status", chain(staff, validator.TicketStatus(), h.ChangeTicketStatus)...)
	tickets.Post("/:id/reopen", chain(customer, h.ReopenTicket)...)
}

func chain(base []fiber.Handler, rest ...fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(base)+len(rest))
	out = append(out, base...)
	return append(out, rest...)
}
