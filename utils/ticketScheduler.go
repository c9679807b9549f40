package utils

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jinzhu/now"
	"github.com/robfig/cron/v3"
)

// autoCloser is the part of the ticket service the scheduler drives.
type autoCloser interface {
	AutoCloseResolved(ctx context.Context, cutoff time.Time) (int, error)
}

func logScheduler(message string) {
	log.Printf("[TICKET-SCHEDULER %s] %s", time.Now().Format(time.RFC3339), message)
}

// AutoCloseCutoff is the start of the day `days` days before t. Tickets
// resolved before it are closed, so a ticket always gets at least `days`
// full days for the customer to reopen it.
func AutoCloseCutoff(t time.Time, days int) time.Time {
	return now.With(t).BeginningOfDay().AddDate(0, 0, -days)
}

// RunTicketAutoClose closes stale resolved tickets once.
func RunTicketAutoClose(ctx context.Context, tickets autoCloser, days int, at time.Time) int {
	cutoff := AutoCloseCutoff(at, days)
	closed, err := tickets.AutoCloseResolved(ctx, cutoff)
	if err != nil {
		logScheduler("Error closing resolved tickets: " + err.Error())
		return closed
	}
	if closed > 0 {
		logScheduler(fmt.Sprintf("Auto-closed %d ticket(s) resolved before %s", closed, cutoff.Format(time.RFC3339)))
	}
	return closed
}

// InitializeTicketScheduler starts the auto-close job. It returns nil when
// days is zero or less.
func InitializeTicketScheduler(ctx context.Context, tickets autoCloser, spec string, days int) (*cron.Cron, error) {
	if days <= 0 {
		logScheduler("Ticket auto-close disabled")
		return nil, nil
	}

	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(spec, func() {
		RunTicketAutoClose(ctx, tickets, days, time.Now().UTC())
	}); err != nil {
		return nil, fmt.Errorf("ticket scheduler %q: %w", spec, err)
	}
	c.Start()

	logScheduler(fmt.Sprintf("Ticket auto-close scheduled (%s), closing tickets resolved %d+ days ago", spec, days))
	return c, nil
}
