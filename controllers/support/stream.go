package supportControllers

import (
	"bufio"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"helpdesk/middleware"
	"helpdesk/realtime"
)

// Stream holds the caller's server-push connection open until the client
// goes away or a newer connection replaces it.
func (h *Handler) Stream(c *fiber.Ctx) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	userID := a.ID
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		stream := realtime.NewSSEStream(w)
		h.registry.Register(userID, stream)
		defer h.registry.Unregister(userID, stream)

		if err := stream.Send(realtime.NewEvent("connected", map[string]interface{}{"user_id": userID})); err != nil {
			return
		}
		log.Printf("[STREAM] user %d connected (%s)", userID, stream.ID())
		stream.Serve(h.heartbeat)
		log.Printf("[STREAM] user %d disconnected (%s)", userID, stream.ID())
	}))
	return nil
}
